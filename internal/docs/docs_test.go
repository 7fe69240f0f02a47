package docs

import (
	"strings"
	"testing"
)

func TestTopics(t *testing.T) {
	got := strings.Join(Topics(), ",")
	if got != "keys,stores,sync-protocol" {
		t.Fatalf("Topics() = %q", got)
	}
}

func TestGet(t *testing.T) {
	body, ok := Get(" Stores ")
	if !ok || !strings.Contains(body, "sqlite:///abs/path.db") {
		t.Fatalf("Get(stores) = %v, %q", ok, body)
	}
	for _, bad := range []string{"", "nope", "../docs"} {
		if _, ok := Get(bad); ok {
			t.Fatalf("Get(%q) should fail", bad)
		}
	}
}

func TestRender_NoTTY(t *testing.T) {
	body, _ := Get("keys")
	out, err := Render(body, "notty", 80)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "TUI keys") {
		t.Fatalf("unexpected render: %q", out)
	}
}
