package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(9), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}

	assert.True(t, EventTypeModified.HasContent())
	assert.False(t, EventTypeDeleted.HasContent())
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.NotNil(t, watcher.debouncer)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)
}

func TestFileWatcherAddPathRejectsFiles(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	file := filepath.Join(t.TempDir(), "a.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.Error(t, watcher.AddPath(file))
	assert.Error(t, watcher.AddPath(filepath.Join(t.TempDir(), "missing")))
	assert.NoError(t, watcher.AddPath(filepath.Dir(file)))
}

func TestFileWatcherStopIsIdempotent(t *testing.T) {
	watcher, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, watcher.Start(context.Background()))

	assert.NoError(t, watcher.Stop())
	assert.NoError(t, watcher.Stop())
}

func TestDebouncerDeduplicatesAndSorts(t *testing.T) {
	d := &Debouncer{
		delay:  time.Hour,
		events: make(chan ChangeEvent, 10),
		output: make(chan []ChangeEvent, 1),
	}
	defer d.stop()

	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "/b.md"})
	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "/a.md"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "/b.md"})
	d.flush()

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "/a.md", events[0].Path)
		assert.Equal(t, "/b.md", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type)
	default:
		t.Fatal("flush produced no batch")
	}

	d.flush()
	assert.Empty(t, d.output)
}

func TestFileWatcherDeliversFilteredChanges(t *testing.T) {
	dir := t.TempDir()

	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	watcher.AddFilter(PatternFilter([]string{"*.md"}, []string{"drafts/"}, dir))
	watcher.AddFilter(TextFileFilter)

	batches := make(chan []ChangeEvent, 10)
	watcher.AddHandler(func(events []ChangeEvent) error {
		batches <- events
		return nil
	})

	require.NoError(t, os.Mkdir(filepath.Join(dir, "drafts"), 0o755))
	require.NoError(t, watcher.AddRecursive(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drafts", "wip.md"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "binary.md"), []byte{0, 1, 2, 3}, 0o644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("<prompt>hi</prompt>"), 0o644))
	}

	select {
	case events := <-batches:
		require.Len(t, events, 1)
		assert.Equal(t, filepath.Join(dir, "notes.md"), events[0].Path)
		assert.True(t, events[0].Type.HasContent())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change batch")
	}
}
