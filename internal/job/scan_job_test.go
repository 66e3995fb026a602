package job

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"filetag-indexer/internal/config"
	"filetag-indexer/internal/database"
	"filetag-indexer/internal/model"
	"filetag-indexer/internal/repository"
	"filetag-indexer/internal/service"
	"filetag-indexer/test/mocks"

	_ "github.com/mattn/go-sqlite3" // SQLite3驱动
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupScanJobTest(t *testing.T) (*ScanJob, repository.FileRepository, *model.Watcher, string, func()) {
	t.Helper()

	config.SetClientConfig(config.DefaultClientConfig)

	tempDir, err := os.MkdirTemp("", "test-scan-db")
	require.NoError(t, err)
	watchDir, err := os.MkdirTemp("", "test-scan-watch")
	require.NoError(t, err)

	logger := &mocks.MockLogger{}
	dbConfig := &config.DatabaseConfig{
		DataDir:           tempDir,
		DatabaseName:      "test-scan.db",
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

	filters := service.NewFilterService(logger)
	tagger := service.NewTaggerService(filters, fileRepo, tagRepo, taggerRepo, auditRepo, nil, logger)
	index := service.NewIndexService(watcherRepo, fileRepo, auditRepo, queryRepo, filters, tagger, nil, logger)

	watcher := &model.Watcher{
		Name:       "docs",
		Path:       watchDir,
		Filter:     "*",
		Enabled:    true,
		IncludeSub: true,
		BufferSize: 65536,
	}
	require.NoError(t, watcherRepo.CreateWatcher(watcher))

	job := NewScanJob(index, watcherRepo, logger, time.Hour)

	cleanup := func() {
		job.Stop()
		dbManager.Close()
		os.RemoveAll(tempDir)
		os.RemoveAll(watchDir)
	}

	return job, fileRepo, watcher, watchDir, cleanup
}

func TestScanJobScanOnce(t *testing.T) {
	job, fileRepo, watcher, watchDir, cleanup := setupScanJobTest(t)
	defer cleanup()

	require.NoError(t, os.WriteFile(filepath.Join(watchDir, "one.txt"), []byte("1"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(watchDir, "two.txt"), []byte("2"), 0644))

	job.ScanOnce()

	count, err := fileRepo.CountFilesByWatcher(watcher.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// 事件丢失后落盘的文件由下一轮扫描补回
	require.NoError(t, os.WriteFile(filepath.Join(watchDir, "three.txt"), []byte("3"), 0644))
	job.ScanOnce()

	count, err = fileRepo.CountFilesByWatcher(watcher.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestScanJobStartStop(t *testing.T) {
	job, fileRepo, watcher, watchDir, cleanup := setupScanJobTest(t)
	defer cleanup()

	require.NoError(t, os.WriteFile(filepath.Join(watchDir, "initial.txt"), []byte("x"), 0644))

	// Start立即执行首轮扫描
	job.Start()
	job.Stop()

	count, err := fileRepo.CountFilesByWatcher(watcher.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
