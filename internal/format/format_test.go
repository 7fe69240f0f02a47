package format

import (
	"bytes"
	"strings"
	"testing"

	"tasklist-cli/internal/model"
)

func TestWriteJSON_List(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, List{Path: "projects", Items: []string{"Home", "Work"}}, "json", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := `{"path":"projects","items":["Home","Work"]}` + "\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteEDN_SortsKeysAndEscapes(t *testing.T) {
	var buf bytes.Buffer
	v := List{Path: "tasks/Home", Items: []string{`say "hi"`, "a\x01b"}}
	if err := Write(&buf, v, "edn", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := `{:items ["say \"hi\"" "a\u0001b"] :path "tasks/Home"}` + "\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteEDN_PrettyAndNumbers(t *testing.T) {
	var buf bytes.Buffer
	v := Push{Seq: 3, Path: "projects", Items: []string{}}
	if err := WriteEDN(&buf, v, true); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "{\n  :items []\n  :path \"projects\"\n  :seq 3\n}\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteText_StateMarksCurrentProject(t *testing.T) {
	s := model.State{
		Projects:       []string{"Home", "Work"},
		Tasks:          []string{"Buy milk"},
		CurrentProject: "Work",
		Selected:       true,
	}
	var buf bytes.Buffer
	if err := Write(&buf, s, "text", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"   0  Home\n", "  *1  Work\n", "Tasks for \"Work\"\n", "   0  Buy milk\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestWriteText_EmptyAndUnselected(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, model.State{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "(empty)") || !strings.Contains(got, "No project selected") {
		t.Fatalf("unexpected output:\n%s", got)
	}
}

func TestWriteText_PushIsOneLine(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, Push{Seq: 1, Path: "tasks/Home", Items: nil}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, want := buf.String(), "1\ttasks/Home\t[]\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, 1, "yaml", false); err == nil {
		t.Fatalf("expected error")
	}
	if Valid("yaml") || !Valid("text") {
		t.Fatalf("Valid disagrees with Write")
	}
}
