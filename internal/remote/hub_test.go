package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

func TestHub_PublishReachesOnlyMatchingPath(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	home := make(chan []string, 4)
	work := make(chan []string, 4)
	_, err := h.Add("tasks/Home", func(items []string) { home <- items })
	require.NoError(t, err)
	_, err = h.Add("tasks/Work", func(items []string) { work <- items })
	require.NoError(t, err)

	h.Publish("tasks/Home", []string{"Buy milk"})

	assert.Equal(t, []string{"Buy milk"}, recv(t, home))
	select {
	case v := <-work:
		t.Fatalf("unexpected delivery on other path: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_NilIsDeliveredAsEmpty(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ch := make(chan []string, 1)
	s, err := h.Add("projects", func(items []string) { ch <- items })
	require.NoError(t, err)
	s.Deliver(nil)

	got := recv(t, ch)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestHub_DeliveriesAreCopies(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ch := make(chan []string, 1)
	s, err := h.Add("projects", func(items []string) { ch <- items })
	require.NoError(t, err)

	src := []string{"Home"}
	s.Deliver(src)
	src[0] = "mutated"

	assert.Equal(t, []string{"Home"}, recv(t, ch))
}

func TestHub_CoalescesToLatestWhileListenerBusy(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	release := make(chan struct{})
	ch := make(chan []string, 8)
	s, err := h.Add("projects", func(items []string) {
		ch <- items
		<-release
	})
	require.NoError(t, err)

	s.Deliver([]string{"1"})
	assert.Equal(t, []string{"1"}, recv(t, ch))

	// Listener is blocked; these collapse into the last one.
	s.Deliver([]string{"2"})
	s.Deliver([]string{"3"})
	close(release)

	assert.Equal(t, []string{"3"}, recv(t, ch))
}

func TestHub_CloseStopsDelivery(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	ch := make(chan []string, 4)
	s, err := h.Add("projects", func(items []string) { ch <- items })
	require.NoError(t, err)
	require.NoError(t, s.Close())

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("delivery goroutine did not exit")
	}

	h.Publish("projects", []string{"late"})
	s.Deliver([]string{"late"})
	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery after close: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, h.Count())
}

func TestHub_UnsubscribeByPath(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	_, err := h.Add("tasks/Home", func([]string) {})
	require.NoError(t, err)
	_, err = h.Add("tasks/Home", func([]string) {})
	require.NoError(t, err)
	projects, err := h.Add("projects", func([]string) {})
	require.NoError(t, err)
	assert.True(t, h.Subscribed("tasks/Home"))

	h.Unsubscribe("tasks/Home")
	h.Unsubscribe("tasks/Nowhere")

	assert.Equal(t, []string{"projects"}, h.Paths())
	assert.Equal(t, 1, h.Count())
	assert.False(t, h.Subscribed("tasks/Home"))

	require.NoError(t, projects.Close())
	assert.False(t, h.Subscribed("projects"))
}

func TestHub_AddAfterCloseFails(t *testing.T) {
	h := NewHub(nil)
	h.Close()
	_, err := h.Add("projects", func([]string) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ValidatePath("projects"))
	assert.NoError(t, ValidatePath("tasks/"))
	assert.ErrorIs(t, ValidatePath(""), ErrInvalidPath)
	assert.ErrorIs(t, ValidatePath("/projects"), ErrInvalidPath)
}
