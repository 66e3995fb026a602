package repository

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"filetag-indexer/internal/model"
	"filetag-indexer/test/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupNotifier(t *testing.T, filter string, recursive bool) (ChangeNotifier, string) {
	t.Helper()

	watchDir, err := os.MkdirTemp("", "test-notifier")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(watchDir) })

	notifier, err := NewChangeNotifier(&model.Watcher{
		Name:       "test",
		Path:       watchDir,
		Filter:     filter,
		IncludeSub: recursive,
		BufferSize: 64,
	}, &mocks.MockLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { notifier.Close() })

	return notifier, watchDir
}

// waitForEvent 等待路径与类型都匹配的事件，窗口内无事件返回false
// 同一路径的其他事件(如创建后的写入)跳过
func waitForEvent(t *testing.T, notifier ChangeNotifier, eventType, fullPath string, timeout time.Duration) (model.FileEvent, bool) {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case event, ok := <-notifier.Events():
			if !ok {
				return model.FileEvent{}, false
			}
			if event.FullPath == fullPath && event.Type == eventType {
				return event, true
			}
		case <-deadline:
			return model.FileEvent{}, false
		}
	}
}

func TestChangeNotifierCreateAndDelete(t *testing.T) {
	notifier, watchDir := setupNotifier(t, "*", false)

	fullPath := filepath.Join(watchDir, "note.txt")
	require.NoError(t, os.WriteFile(fullPath, []byte("hello"), 0644))

	event, ok := waitForEvent(t, notifier, model.EventTypeCreated, fullPath, 3*time.Second)
	require.True(t, ok, "expected a created event")
	assert.Equal(t, "note.txt", event.Name)

	require.NoError(t, os.Remove(fullPath))
	_, ok = waitForEvent(t, notifier, model.EventTypeDeleted, fullPath, 3*time.Second)
	require.True(t, ok, "expected a deleted event")
}

func TestChangeNotifierRenamePairing(t *testing.T) {
	notifier, watchDir := setupNotifier(t, "*", false)

	oldPath := filepath.Join(watchDir, "draft.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0644))
	_, ok := waitForEvent(t, notifier, model.EventTypeCreated, oldPath, 3*time.Second)
	require.True(t, ok)

	newPath := filepath.Join(watchDir, "final.txt")
	require.NoError(t, os.Rename(oldPath, newPath))

	event, ok := waitForEvent(t, notifier, model.EventTypeRenamed, newPath, 3*time.Second)
	require.True(t, ok, "expected the rename pair to merge into one event")
	assert.Equal(t, "final.txt", event.Name)
	assert.Equal(t, oldPath, event.OldFullPath)
	assert.Equal(t, "draft.txt", event.OldName)
}

func TestChangeNotifierUnpairedRenameDegradesToDelete(t *testing.T) {
	notifier, watchDir := setupNotifier(t, "*", false)

	outsideDir, err := os.MkdirTemp("", "test-notifier-outside")
	require.NoError(t, err)
	defer os.RemoveAll(outsideDir)

	oldPath := filepath.Join(watchDir, "leaving.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0644))
	_, ok := waitForEvent(t, notifier, model.EventTypeCreated, oldPath, 3*time.Second)
	require.True(t, ok)

	// 移出监视范围：配对窗口内等不到CREATE，降级为删除
	require.NoError(t, os.Rename(oldPath, filepath.Join(outsideDir, "leaving.txt")))

	_, ok = waitForEvent(t, notifier, model.EventTypeDeleted, oldPath, 3*time.Second)
	require.True(t, ok, "expected the orphaned rename to surface as a delete")
}

func TestChangeNotifierNameFilter(t *testing.T) {
	notifier, watchDir := setupNotifier(t, "*.txt", false)

	ignored := filepath.Join(watchDir, "image.png")
	accepted := filepath.Join(watchDir, "doc.txt")
	require.NoError(t, os.WriteFile(ignored, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(accepted, []byte("x"), 0644))

	_, ok := waitForEvent(t, notifier, model.EventTypeCreated, accepted, 3*time.Second)
	require.True(t, ok)

	_, ok = waitForEvent(t, notifier, model.EventTypeCreated, ignored, 500*time.Millisecond)
	assert.False(t, ok, "events for filtered-out names must not surface")
}

func TestChangeNotifierClose(t *testing.T) {
	notifier, _ := setupNotifier(t, "*", false)

	require.NoError(t, notifier.Close())
	// 重复关闭安全
	require.NoError(t, notifier.Close())

	_, open := <-notifier.Events()
	assert.False(t, open, "events channel is closed after Close")
}
