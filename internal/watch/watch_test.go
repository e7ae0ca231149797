package watch_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sitterview/internal/watch"
	"github.com/Sumatoshi-tech/sitterview/pkg/document"
	"github.com/Sumatoshi-tech/sitterview/pkg/edit"
)

var errRejected = errors.New("rejected")

// recordingSink applies edits to a document so tests can check the result.
type recordingSink struct {
	mu     sync.Mutex
	doc    *document.Document
	edits  int
	opens  []string
	reject bool
}

func (s *recordingSink) Edit(_ context.Context, deltas ...edit.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reject {
		return errRejected
	}

	for _, d := range deltas {
		err := s.doc.Apply(d)
		if err != nil {
			return err
		}
	}

	s.edits++

	return nil
}

func (s *recordingSink) Open(_ context.Context, text, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.SetText(text)
	s.opens = append(s.opens, text)

	return nil
}

func (s *recordingSink) text() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.doc.Text()
}

func follow(t *testing.T, path, initial string, sink *recordingSink) chan<- struct{} {
	t.Helper()

	changes := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- watch.Follow(context.Background(), changes, path, initial, edit.UTF16, sink, slog.New(slog.DiscardHandler))
	}()

	t.Cleanup(func() {
		close(changes)
		require.NoError(t, <-done)
	})

	return changes
}

func TestFollow_FeedsDiffs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.js")
	require.NoError(t, os.WriteFile(path, []byte("let x = 1\n"), 0o600))

	sink := &recordingSink{doc: document.New("let x = 1\n", edit.UTF16)}
	changes := follow(t, path, "let x = 1\n", sink)

	require.NoError(t, os.WriteFile(path, []byte("let x = 1\nfoo(😀)\n"), 0o600))
	changes <- struct{}{}

	require.NoError(t, os.WriteFile(path, []byte("let y = 1\nfoo(😀)\n"), 0o600))
	changes <- struct{}{}

	// Unchanged content sends nothing.
	changes <- struct{}{}

	require.Eventually(t, func() bool {
		return sink.text() == "let y = 1\nfoo(😀)\n"
	}, time.Second, time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()

	assert.Equal(t, 2, sink.edits)
	assert.Empty(t, sink.opens)
}

func TestFollow_SkipsBinaryContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.js")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o600))

	sink := &recordingSink{doc: document.New("a", edit.UTF16)}
	changes := follow(t, path, "a", sink)

	require.NoError(t, os.WriteFile(path, []byte("a\x00b"), 0o600))
	changes <- struct{}{}

	require.NoError(t, os.WriteFile(path, []byte("ab"), 0o600))
	changes <- struct{}{}

	require.Eventually(t, func() bool {
		return sink.text() == "ab"
	}, time.Second, time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()

	assert.Equal(t, 1, sink.edits)
	assert.Empty(t, sink.opens)
}

func TestFollow_ReopensOnRejection(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "main.js")
	require.NoError(t, os.WriteFile(path, []byte("b"), 0o600))

	sink := &recordingSink{doc: document.New("a", edit.UTF16), reject: true}
	changes := follow(t, path, "a", sink)

	changes <- struct{}{}

	require.Eventually(t, func() bool {
		return sink.text() == "b"
	}, time.Second, time.Millisecond)

	sink.mu.Lock()
	defer sink.mu.Unlock()

	assert.Equal(t, []string{"b"}, sink.opens)
}

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "main.js")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	w, err := watch.New(watch.Config{Path: path, Debounce: 50 * time.Millisecond, Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)

	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err)

	for i := range 5 {
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("x%d", i)), 0o600))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-onChange:
	case <-time.After(2 * time.Second):
		t.Fatal("expected notification but got timeout")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "main.js")
	other := filepath.Join(dir, "other.js")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))

	w, err := watch.New(watch.Config{Path: path, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)

	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(other, []byte("y"), 0o600))

	select {
	case <-onChange:
		t.Fatal("unexpected notification for another file")
	case <-time.After(200 * time.Millisecond):
	}
}
