package repository

import (
	"testing"
	"time"

	"filetag-indexer/internal/errs"
	"filetag-indexer/test/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRepository(t *testing.T) {
	dbManager, cleanup := setupTestDB(t)
	defer cleanup()

	logger := &mocks.MockLogger{}
	watcherRepo := NewWatcherRepository(dbManager, logger)
	fileRepo := NewFileRepository(dbManager, logger)

	watcher := mustCreateWatcher(t, watcherRepo, "docs", "/watch/docs")

	t.Run("CreateAndGetFile", func(t *testing.T) {
		created := mustCreateFile(t, fileRepo, watcher.ID, "/watch/docs", "report.txt", 100)

		exists, err := fileRepo.FileExists("/watch/docs/report.txt")
		require.NoError(t, err)
		assert.True(t, exists)

		file, err := fileRepo.GetFileByPath("/watch/docs/report.txt")
		require.NoError(t, err)
		assert.Equal(t, created.ID, file.ID)
		assert.Equal(t, ".txt", file.Ext)
		assert.Equal(t, int64(100), file.Size)
		assert.Nil(t, file.Renamed)

		_, err = fileRepo.GetFileByPath("/watch/docs/missing.txt")
		assert.ErrorIs(t, err, errs.ErrRecordNotFound)
	})

	t.Run("UpdateFile", func(t *testing.T) {
		mustCreateFile(t, fileRepo, watcher.ID, "/watch/docs", "growing.log", 10)

		changed := time.Now().Add(time.Minute)
		err := fileRepo.UpdateFile("/watch/docs/growing.log", FileMetadata{Size: 2048, Changed: changed})
		require.NoError(t, err)

		file, err := fileRepo.GetFileByPath("/watch/docs/growing.log")
		require.NoError(t, err)
		assert.Equal(t, int64(2048), file.Size)

		err = fileRepo.UpdateFile("/watch/docs/missing.log", FileMetadata{Size: 1})
		assert.ErrorIs(t, err, errs.ErrRecordNotFound)
	})

	t.Run("RenameFileKeepsIdentity", func(t *testing.T) {
		created := mustCreateFile(t, fileRepo, watcher.ID, "/watch/docs", "draft.md", 50)

		now := time.Now()
		renamed, err := fileRepo.RenameFile("/watch/docs/draft.md", "/watch/docs/final.md",
			FileMetadata{Size: 50, Created: created.Created, Changed: now})
		require.NoError(t, err)
		assert.Equal(t, created.ID, renamed.ID, "rename must not change record identity")
		assert.Equal(t, "final.md", renamed.Name)
		assert.Equal(t, ".md", renamed.Ext)
		require.NotNil(t, renamed.Renamed)

		exists, err := fileRepo.FileExists("/watch/docs/draft.md")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("RenameAcrossDirectories", func(t *testing.T) {
		created := mustCreateFile(t, fileRepo, watcher.ID, "/watch/docs", "moving.txt", 30)

		renamed, err := fileRepo.RenameFile("/watch/docs/moving.txt", "/watch/docs/sub/moving.txt",
			FileMetadata{Size: 30, Created: created.Created, Changed: created.Changed})
		require.NoError(t, err)
		assert.Equal(t, created.ID, renamed.ID)
		assert.Equal(t, "/watch/docs/sub", renamed.Path)
	})

	t.Run("RenameOntoIndexedTargetConflicts", func(t *testing.T) {
		mustCreateFile(t, fileRepo, watcher.ID, "/watch/docs", "a.txt", 1)
		mustCreateFile(t, fileRepo, watcher.ID, "/watch/docs", "b.txt", 2)

		_, err := fileRepo.RenameFile("/watch/docs/a.txt", "/watch/docs/b.txt", FileMetadata{Size: 1})
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrMutationConflict)

		// 冲突后双方记录保持原状
		a, err := fileRepo.GetFileByPath("/watch/docs/a.txt")
		require.NoError(t, err)
		assert.Equal(t, int64(1), a.Size)
		b, err := fileRepo.GetFileByPath("/watch/docs/b.txt")
		require.NoError(t, err)
		assert.Equal(t, int64(2), b.Size)
	})

	t.Run("DeleteFile", func(t *testing.T) {
		created := mustCreateFile(t, fileRepo, watcher.ID, "/watch/docs", "gone.txt", 5)

		deleted, err := fileRepo.DeleteFile("/watch/docs/gone.txt")
		require.NoError(t, err)
		assert.Equal(t, created.ID, deleted.ID)

		_, err = fileRepo.DeleteFile("/watch/docs/gone.txt")
		assert.ErrorIs(t, err, errs.ErrRecordNotFound)
	})

	t.Run("ListAndCountByWatcher", func(t *testing.T) {
		other := mustCreateWatcher(t, watcherRepo, "other", "/watch/other")
		mustCreateFile(t, fileRepo, other.ID, "/watch/other", "one.txt", 1)
		mustCreateFile(t, fileRepo, other.ID, "/watch/other", "two.txt", 2)

		files, err := fileRepo.ListFilesByWatcher(other.ID)
		require.NoError(t, err)
		assert.Len(t, files, 2)

		count, err := fileRepo.CountFilesByWatcher(other.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		removed, err := fileRepo.DeleteFilesByWatcher(other.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)
	})

	t.Run("LoadTagsJoinIsSortedByName", func(t *testing.T) {
		tagRepo := NewTagRepository(dbManager, logger)
		file := mustCreateFile(t, fileRepo, watcher.ID, "/watch/docs", "tagged.txt", 1)

		for _, name := range []string{"zeta", "alpha", "mid"} {
			tag, err := tagRepo.GetOrCreateTag(name)
			require.NoError(t, err)
			_, err = tagRepo.AttachTag(file.ID, tag.ID)
			require.NoError(t, err)
		}

		require.NoError(t, fileRepo.LoadTagsJoin(file))
		assert.Equal(t, "alpha, mid, zeta", file.TagsJoin)
	})

	t.Run("LoadTagsJoinEmptyWithoutTags", func(t *testing.T) {
		file := mustCreateFile(t, fileRepo, watcher.ID, "/watch/docs", "untagged.txt", 1)

		require.NoError(t, fileRepo.LoadTagsJoin(file))
		assert.Empty(t, file.TagsJoin)
	})
}
