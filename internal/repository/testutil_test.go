package repository

import (
	"os"
	"testing"
	"time"

	"filetag-indexer/internal/config"
	"filetag-indexer/internal/database"
	"filetag-indexer/internal/model"
	"filetag-indexer/internal/utils"
	"filetag-indexer/test/mocks"

	_ "github.com/mattn/go-sqlite3" // SQLite3驱动
	"github.com/stretchr/testify/require"
)

// setupTestDB 创建临时目录中的测试数据库，执行全部迁移
func setupTestDB(t *testing.T) (database.DatabaseManager, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "test-filetag-db")
	require.NoError(t, err)

	logger := &mocks.MockLogger{}

	dbConfig := &config.DatabaseConfig{
		DataDir:           tempDir,
		DatabaseName:      "test-filetag.db",
		MaxOpenConns:      10,
		MaxIdleConns:      5,
		ConnMaxLifetime:   30 * time.Minute,
		EnableWAL:         true,
		EnableForeignKeys: true,
	}

	dbManager := database.NewSQLiteManager(dbConfig, logger)
	err = dbManager.Initialize()
	require.NoError(t, err)

	cleanup := func() {
		dbManager.Close()
		os.RemoveAll(tempDir)
	}

	return dbManager, cleanup
}

// mustCreateWatcher 创建测试监控目录
func mustCreateWatcher(t *testing.T, repo WatcherRepository, name, path string) *model.Watcher {
	t.Helper()

	watcher := &model.Watcher{
		Name:       name,
		Path:       path,
		Filter:     "*",
		Enabled:    true,
		IncludeSub: true,
		BufferSize: 65536,
	}
	require.NoError(t, repo.CreateWatcher(watcher))
	require.NotZero(t, watcher.ID)
	return watcher
}

// mustCreateFile 创建测试文件记录
func mustCreateFile(t *testing.T, repo FileRepository, watcherID int64, dir, name string, size int64) *model.File {
	t.Helper()

	now := time.Now()
	file := &model.File{
		Path:      dir,
		Name:      name,
		Ext:       utils.FileExt(name),
		Size:      size,
		Created:   now,
		Changed:   now,
		WatcherID: watcherID,
	}
	require.NoError(t, repo.CreateFile(file))
	require.NotZero(t, file.ID)
	return file
}
