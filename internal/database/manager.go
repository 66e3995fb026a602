package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"filetag-indexer/internal/config"
	"filetag-indexer/pkg/logger"

	_ "github.com/mattn/go-sqlite3" // SQLite3驱动
)

// DatabaseManager 数据库管理器接口
type DatabaseManager interface {
	Initialize() error
	Close() error
	GetDB() *sql.DB
	BeginTransaction() (*sql.Tx, error)
	// ClearTable 清理指定表数据并重置ID
	ClearTable(tableName string) error
}

// SQLiteManager SQLite数据库管理器实现
type SQLiteManager struct {
	db       *sql.DB
	config   *config.DatabaseConfig
	logger   logger.Logger
	mutex    sync.RWMutex
	migrator *Migrator
}

// NewSQLiteManager 创建SQLite数据库管理器
func NewSQLiteManager(config *config.DatabaseConfig, logger logger.Logger) DatabaseManager {
	return &SQLiteManager{
		config: config,
		logger: logger,
	}
}

// Initialize 初始化数据库连接和表结构
func (m *SQLiteManager) Initialize() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// 构建数据库文件路径
	dbPath := filepath.Join(m.config.DataDir, m.config.DatabaseName)

	// 创建数据目录
	if err := os.MkdirAll(m.config.DataDir, 0755); err != nil {
		return err
	}

	// 打开数据库连接
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return err
	}

	// 配置连接池
	db.SetMaxOpenConns(m.config.MaxOpenConns)
	db.SetMaxIdleConns(m.config.MaxIdleConns)
	db.SetConnMaxLifetime(m.config.ConnMaxLifetime)

	// 测试连接
	if err := db.Ping(); err != nil {
		return err
	}

	m.db = db

	// 初始化迁移器并自动执行数据库迁移
	m.migrator = NewMigrator(m.db, m.logger)
	if err := m.migrator.AutoMigrate(); err != nil {
		return err
	}

	m.logger.Info("Database initialized successfully")
	return nil
}

// Close 关闭数据库连接
func (m *SQLiteManager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// GetDB 获取数据库连接
func (m *SQLiteManager) GetDB() *sql.DB {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.db
}

// BeginTransaction 开始事务
func (m *SQLiteManager) BeginTransaction() (*sql.Tx, error) {
	return m.db.Begin()
}

// ClearTable 清理指定表数据并重置ID
func (m *SQLiteManager) ClearTable(tableName string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// 验证表名
	validTables := map[string]bool{
		"files":      true,
		"file_tags":  true,
		"audit_logs": true,
	}
	if !validTables[tableName] {
		return fmt.Errorf("invalid table name: %s", tableName)
	}

	if _, err := m.db.Exec(fmt.Sprintf("DELETE FROM %s", tableName)); err != nil {
		return fmt.Errorf("failed to clear table %s: %w", tableName, err)
	}

	// 重置自增ID
	if _, err := m.db.Exec("DELETE FROM sqlite_sequence WHERE name = ?", tableName); err != nil {
		m.logger.Warn("failed to reset sequence for table %s: %v", tableName, err)
	}

	m.logger.Info("table %s cleared", tableName)
	return nil
}
