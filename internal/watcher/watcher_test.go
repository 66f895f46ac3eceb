package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subautotrans/subautotrans/internal/task"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) notify(path string, _ task.Watcher) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func testWatch(dir string) task.Watcher {
	return task.Watcher{
		ID:             1,
		Path:           dir,
		Enabled:        true,
		TargetLanguage: "Chinese",
		Provider:       "openai",
	}
}

func TestManager_DetectsNewFile(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	m := NewManager(rec.notify)
	require.NoError(t, m.Start())
	defer m.Stop()
	require.NoError(t, m.AddWatch(testWatch(dir)))

	path := filepath.Join(dir, "movie.srt")
	require.NoError(t, os.WriteFile(path, []byte("1\n00:00:01,000 --> 00:00:02,000\nhi\n"), 0o644))

	require.Eventually(t, func() bool {
		for _, p := range rec.snapshot() {
			if p == path {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestManager_IgnoresGeneratedOutputs(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	m := NewManager(rec.notify)
	require.NoError(t, m.Start())
	defer m.Stop()
	require.NoError(t, m.AddWatch(testWatch(dir)))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "movie.zh-Hans.translated.srt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestManager_DebouncesRepeatedEvents(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	m := NewManager(rec.notify)
	require.NoError(t, m.Start())
	defer m.Stop()
	require.NoError(t, m.AddWatch(testWatch(dir)))

	path := filepath.Join(dir, "movie.srt")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("abcdefg"), 0o644))
	}

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 1
	}, 2*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1)
}

func TestManager_RemoveWatchStopsEvents(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	m := NewManager(rec.notify)
	require.NoError(t, m.Start())
	defer m.Stop()

	w := testWatch(dir)
	require.NoError(t, m.AddWatch(w))
	m.RemoveWatch(w.ID)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "movie.srt"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestManager_AddWatchRejectsMissingDir(t *testing.T) {
	m := NewManager(func(string, task.Watcher) {})
	require.NoError(t, m.Start())
	defer m.Stop()

	err := m.AddWatch(testWatch(filepath.Join(t.TempDir(), "nope")))
	require.Error(t, err)
}

func TestManager_Scan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))

	write := func(name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	write("movie.srt")
	write("movie.zh-Hans.translated.srt")
	write("readme.txt")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "episode.ass"), []byte("x"), 0o644))

	rec := &recorder{}
	m := NewManager(rec.notify)

	result, err := m.Scan(context.Background(), testWatch(dir))
	require.NoError(t, err)
	// Generated outputs are invisible to the scan, not skipped
	// candidates.
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.Triggered)
	assert.Len(t, rec.snapshot(), 2)
}
