package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"filetag-indexer/internal/config"
	"filetag-indexer/internal/database"
	"filetag-indexer/internal/errs"
	"filetag-indexer/internal/model"
	"filetag-indexer/internal/repository"
	"filetag-indexer/test/mocks"

	_ "github.com/mattn/go-sqlite3" // SQLite3驱动
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// indexTestEnv 索引服务测试环境：临时库加真实的被扫描目录
type indexTestEnv struct {
	watcherRepo repository.WatcherRepository
	fileRepo    repository.FileRepository
	tagRepo     repository.TagRepository
	queryRepo   repository.QueryRepository
	auditRepo   repository.AuditRepository
	index       IndexService
	watchDir    string
}

func setupIndexTest(t *testing.T) (*indexTestEnv, func()) {
	t.Helper()

	config.SetClientConfig(config.DefaultClientConfig)

	tempDir, err := os.MkdirTemp("", "test-index-db")
	require.NoError(t, err)
	watchDir, err := os.MkdirTemp("", "test-index-watch")
	require.NoError(t, err)

	logger := &mocks.MockLogger{}
	dbConfig := &config.DatabaseConfig{
		DataDir:           tempDir,
		DatabaseName:      "test-index.db",
		MaxOpenConns:      10,
		MaxIdleConns:      5,
		ConnMaxLifetime:   30 * time.Minute,
		EnableWAL:         true,
		EnableForeignKeys: true,
	}
	dbManager := database.NewSQLiteManager(dbConfig, logger)
	require.NoError(t, dbManager.Initialize())

	watcherRepo := repository.NewWatcherRepository(dbManager, logger)
	fileRepo := repository.NewFileRepository(dbManager, logger)
	tagRepo := repository.NewTagRepository(dbManager, logger)
	queryRepo := repository.NewQueryRepository(dbManager, logger)
	taggerRepo := repository.NewTaggerRepository(dbManager, queryRepo, logger)
	auditRepo := repository.NewAuditRepository(dbManager, logger)

	filters := NewFilterService(logger)
	tagger := NewTaggerService(filters, fileRepo, tagRepo, taggerRepo, auditRepo, nil, logger)
	index := NewIndexService(watcherRepo, fileRepo, auditRepo, queryRepo, filters, tagger, nil, logger)

	cleanup := func() {
		dbManager.Close()
		os.RemoveAll(tempDir)
		os.RemoveAll(watchDir)
	}

	return &indexTestEnv{
		watcherRepo: watcherRepo,
		fileRepo:    fileRepo,
		tagRepo:     tagRepo,
		queryRepo:   queryRepo,
		auditRepo:   auditRepo,
		index:       index,
		watchDir:    watchDir,
	}, cleanup
}

func (env *indexTestEnv) installWatcher(t *testing.T, name string, includeSub bool) *model.Watcher {
	t.Helper()

	watcher := &model.Watcher{
		Name:       name,
		Path:       env.watchDir,
		Filter:     "*",
		Enabled:    true,
		IncludeSub: includeSub,
		BufferSize: 65536,
	}
	require.NoError(t, env.index.InstallWatcher(watcher))
	return watcher
}

func (env *indexTestEnv) writeFile(t *testing.T, relPath, content string) string {
	t.Helper()

	fullPath := filepath.Join(env.watchDir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0644))
	return fullPath
}

func countAuditByAction(t *testing.T, auditRepo repository.AuditRepository, watcherID int64, action string) int {
	t.Helper()

	entries, err := auditRepo.ListByWatcher(watcherID, 1000)
	require.NoError(t, err)
	count := 0
	for _, entry := range entries {
		if entry.ActionType == action {
			count++
		}
	}
	return count
}

func TestInstallWatcher(t *testing.T) {
	env, cleanup := setupIndexTest(t)
	defer cleanup()

	watcher := env.installWatcher(t, "docs", true)
	assert.Equal(t, 1, countAuditByAction(t, env.auditRepo, watcher.ID, model.ActionInstalled))

	t.Run("DuplicatePathConflicts", func(t *testing.T) {
		duplicate := &model.Watcher{Name: "docs again", Path: env.watchDir, Filter: "*"}
		err := env.index.InstallWatcher(duplicate)
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrMutationConflict)
	})

	t.Run("PathIsCleanedBeforeComparison", func(t *testing.T) {
		duplicate := &model.Watcher{Name: "sneaky", Path: env.watchDir + string(filepath.Separator), Filter: "*"}
		err := env.index.InstallWatcher(duplicate)
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrMutationConflict)
	})

	t.Run("FindWatcherByPath", func(t *testing.T) {
		found, err := env.index.FindWatcherByPath(env.watchDir)
		require.NoError(t, err)
		assert.Equal(t, watcher.ID, found.ID)

		_, err = env.index.FindWatcherByPath("/nowhere")
		assert.ErrorIs(t, err, errs.ErrRecordNotFound)
	})
}

func TestLoadWatcherFiles(t *testing.T) {
	env, cleanup := setupIndexTest(t)
	defer cleanup()

	env.writeFile(t, "top.txt", "top")
	env.writeFile(t, "sub/nested.txt", "nested")
	env.writeFile(t, ".hidden", "invisible")
	env.writeFile(t, "node_modules/skip.js", "ignored")

	t.Run("RecursiveScanSkipsHiddenAndIgnoredFolders", func(t *testing.T) {
		watcher := env.installWatcher(t, "recursive", true)

		loaded, err := env.index.LoadWatcherFiles(watcher)
		require.NoError(t, err)
		assert.Equal(t, 2, loaded)

		exists, err := env.fileRepo.FileExists(filepath.Join(env.watchDir, "sub/nested.txt"))
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = env.fileRepo.FileExists(filepath.Join(env.watchDir, ".hidden"))
		require.NoError(t, err)
		assert.False(t, exists)

		exists, err = env.fileRepo.FileExists(filepath.Join(env.watchDir, "node_modules/skip.js"))
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("RescanRecoversMissedFilesOnly", func(t *testing.T) {
		watcher, err := env.index.FindWatcherByPath(env.watchDir)
		require.NoError(t, err)

		env.writeFile(t, "late.txt", "missed by events")
		_, err = env.index.LoadWatcherFiles(watcher)
		require.NoError(t, err)

		count, err := env.fileRepo.CountFilesByWatcher(watcher.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, count, "rescan adds the missed file without duplicating the rest")
	})
}

func TestLoadWatcherFilesNonRecursive(t *testing.T) {
	env, cleanup := setupIndexTest(t)
	defer cleanup()

	env.writeFile(t, "top.txt", "top")
	env.writeFile(t, "sub/nested.txt", "nested")

	watcher := env.installWatcher(t, "flat", false)
	loaded, err := env.index.LoadWatcherFiles(watcher)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded, "non-recursive scan stays in the root directory")
}

func TestIndexMutations(t *testing.T) {
	env, cleanup := setupIndexTest(t)
	defer cleanup()

	watcher := env.installWatcher(t, "docs", true)

	t.Run("AddFileIsIdempotent", func(t *testing.T) {
		fullPath := env.writeFile(t, "report.txt", "hello")

		require.NoError(t, env.index.AddFile(watcher, fullPath))
		require.NoError(t, env.index.AddFile(watcher, fullPath))

		count, err := env.fileRepo.CountFilesByWatcher(watcher.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, 1, countAuditByAction(t, env.auditRepo, watcher.ID, model.ActionCreated))
	})

	t.Run("UpdateUnindexedFileIsIgnored", func(t *testing.T) {
		fullPath := env.writeFile(t, "unindexed.txt", "data")
		require.NoError(t, env.index.UpdateFile(watcher, fullPath))
		assert.Zero(t, countAuditByAction(t, env.auditRepo, watcher.ID, model.ActionUpdated))
	})

	t.Run("RenameKeepsRecordIdentity", func(t *testing.T) {
		oldPath := env.writeFile(t, "draft.txt", "draft")
		require.NoError(t, env.index.AddFile(watcher, oldPath))
		before, err := env.fileRepo.GetFileByPath(oldPath)
		require.NoError(t, err)

		newPath := filepath.Join(env.watchDir, "final.txt")
		require.NoError(t, os.Rename(oldPath, newPath))
		require.NoError(t, env.index.RenameFile(watcher, oldPath, newPath))

		after, err := env.fileRepo.GetFileByPath(newPath)
		require.NoError(t, err)
		assert.Equal(t, before.ID, after.ID)
		require.NotNil(t, after.Renamed)
		assert.Equal(t, 1, countAuditByAction(t, env.auditRepo, watcher.ID, model.ActionRenamed))
	})

	t.Run("RenameOntoIndexedTargetIsSkipped", func(t *testing.T) {
		aPath := env.writeFile(t, "a.md", "a")
		bPath := env.writeFile(t, "b.md", "b")
		require.NoError(t, env.index.AddFile(watcher, aPath))
		require.NoError(t, env.index.AddFile(watcher, bPath))

		// 冲突被吞掉，调用方不中断
		require.NoError(t, env.index.RenameFile(watcher, aPath, bPath))

		exists, err := env.fileRepo.FileExists(aPath)
		require.NoError(t, err)
		assert.True(t, exists, "conflicting rename leaves the source record in place")
	})

	t.Run("DeleteFileIsIdempotent", func(t *testing.T) {
		fullPath := env.writeFile(t, "gone.txt", "bye")
		require.NoError(t, env.index.AddFile(watcher, fullPath))

		require.NoError(t, env.index.DeleteFile(watcher, fullPath))
		require.NoError(t, env.index.DeleteFile(watcher, fullPath))
		assert.Equal(t, 1, countAuditByAction(t, env.auditRepo, watcher.ID, model.ActionDeleted))
	})
}

func TestUninstallWatcherKeepsAuditTrail(t *testing.T) {
	env, cleanup := setupIndexTest(t)
	defer cleanup()

	watcher := env.installWatcher(t, "doomed", true)
	fullPath := env.writeFile(t, "file.txt", "x")
	require.NoError(t, env.index.AddFile(watcher, fullPath))

	require.NoError(t, env.index.UninstallWatcher(watcher.ID))

	_, err := env.watcherRepo.GetWatcherByID(watcher.ID)
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)

	count, err := env.fileRepo.CountFilesByWatcher(watcher.ID)
	require.NoError(t, err)
	assert.Zero(t, count, "file records are cascaded away")

	// 审计日志保留，包括注销本身的记录
	assert.Equal(t, 1, countAuditByAction(t, env.auditRepo, watcher.ID, model.ActionUninstalled))
	assert.Equal(t, 1, countAuditByAction(t, env.auditRepo, watcher.ID, model.ActionCreated))

	purged, err := env.index.PurgeWatcherLogs(watcher.ID)
	require.NoError(t, err)
	assert.Greater(t, purged, int64(0))
}

func TestSearchFiles(t *testing.T) {
	env, cleanup := setupIndexTest(t)
	defer cleanup()

	watcher := env.installWatcher(t, "docs", true)
	taggedPath := env.writeFile(t, "tagged.txt", "t")
	untaggedPath := env.writeFile(t, "untagged.txt", "u")
	require.NoError(t, env.index.AddFile(watcher, taggedPath))
	require.NoError(t, env.index.AddFile(watcher, untaggedPath))

	taggedFile, err := env.fileRepo.GetFileByPath(taggedPath)
	require.NoError(t, err)
	tag, err := env.tagRepo.GetOrCreateTag("done")
	require.NoError(t, err)
	_, err = env.tagRepo.AttachTag(taggedFile.ID, tag.ID)
	require.NoError(t, err)

	t.Run("SeededRawFilesQueryFindsUntagged", func(t *testing.T) {
		rawFiles, err := env.queryRepo.GetQueryByName("RawFiles")
		require.NoError(t, err)

		matched, err := env.index.SearchFiles(rawFiles.ID)
		require.NoError(t, err)
		require.Len(t, matched, 1)
		assert.Equal(t, "untagged.txt", matched[0].Name)
	})

	t.Run("BrokenQueryDefinitionSurfacesCompileError", func(t *testing.T) {
		broken := &model.Query{
			Name: "broken",
			Filters: []*model.Filter{
				{Field: "Size", Type: model.FilterTypeNumeric, Value: "huge", Comparison: model.ComparisonGt},
			},
		}
		require.NoError(t, env.queryRepo.CreateQuery(broken))

		_, err := env.index.SearchFiles(broken.ID)
		require.Error(t, err)
		assert.True(t, errs.IsInvalidFilter(err))
	})

	t.Run("UnknownQueryID", func(t *testing.T) {
		_, err := env.index.SearchFiles(99999)
		assert.ErrorIs(t, err, errs.ErrRecordNotFound)
	})
}

// 原子保存端到端：两段重命名折叠为一次更新，审计只落一条updated
func TestReconcilerAtomicSaveEndToEnd(t *testing.T) {
	env, cleanup := setupIndexTest(t)
	defer cleanup()

	watcher := env.installWatcher(t, "docs", true)
	fullPath := env.writeFile(t, "report.txt", "v1")
	require.NoError(t, env.index.AddFile(watcher, fullPath))

	rec := NewReconciler(watcher, env.index, nil, &mocks.MockLogger{})

	tmpPath := fullPath + ".tmp"
	rec.HandleEvent(model.FileEvent{
		Type:        model.EventTypeRenamed,
		Name:        "report.txt.tmp",
		FullPath:    tmpPath,
		OldName:     "report.txt",
		OldFullPath: fullPath,
		OccurredAt:  time.Now(),
	})

	// 编辑器此时已写回新内容
	require.NoError(t, os.WriteFile(fullPath, []byte("v2 with more bytes"), 0644))

	rec.HandleEvent(model.FileEvent{
		Type:        model.EventTypeRenamed,
		Name:        "report.txt",
		FullPath:    fullPath,
		OldName:     "report.txt.tmp",
		OldFullPath: tmpPath,
		OccurredAt:  time.Now(),
	})

	count, err := env.fileRepo.CountFilesByWatcher(watcher.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "no ghost records for the temporary name")

	file, err := env.fileRepo.GetFileByPath(fullPath)
	require.NoError(t, err)
	assert.Equal(t, int64(len("v2 with more bytes")), file.Size)

	assert.Equal(t, 1, countAuditByAction(t, env.auditRepo, watcher.ID, model.ActionUpdated))
	assert.Zero(t, countAuditByAction(t, env.auditRepo, watcher.ID, model.ActionDeleted))
	assert.Zero(t, countAuditByAction(t, env.auditRepo, watcher.ID, model.ActionRenamed))
}
