package repository

import (
	"database/sql"
	"fmt"
	"time"

	"filetag-indexer/internal/database"
	"filetag-indexer/internal/errs"
	"filetag-indexer/internal/model"
	"filetag-indexer/pkg/logger"
)

// WatcherRepository 监控目录数据访问层
type WatcherRepository interface {
	// CreateWatcher 创建监控目录
	CreateWatcher(watcher *model.Watcher) error
	// GetWatcherByID 根据ID获取监控目录
	GetWatcherByID(id int64) (*model.Watcher, error)
	// GetWatcherByPath 根据路径精确获取监控目录
	GetWatcherByPath(path string) (*model.Watcher, error)
	// WatcherExistsForPath 是否已存在根路径与给定路径完全相同的监控目录
	WatcherExistsForPath(path string) (bool, error)
	// ListWatchers 获取全部监控目录
	ListWatchers() ([]*model.Watcher, error)
	// ListEnabledWatchers 获取启用的监控目录
	ListEnabledWatchers() ([]*model.Watcher, error)
	// SetWatcherActive 更新监控目录的活动状态
	SetWatcherActive(id int64, active bool) error
	// DeleteWatcher 删除监控目录及其级联数据
	DeleteWatcher(id int64) error
}

// watcherRepository 监控目录Repository实现
type watcherRepository struct {
	db     database.DatabaseManager
	logger logger.Logger
}

// NewWatcherRepository 创建监控目录Repository
func NewWatcherRepository(db database.DatabaseManager, logger logger.Logger) WatcherRepository {
	return &watcherRepository{
		db:     db,
		logger: logger,
	}
}

const watcherColumns = `id, name, path, filter, enabled, include_sub, buffer_size, active, created_at, updated_at`

// scanWatcher 扫描单行监控目录记录
func scanWatcher(row interface{ Scan(...any) error }) (*model.Watcher, error) {
	var watcher model.Watcher
	err := row.Scan(
		&watcher.ID,
		&watcher.Name,
		&watcher.Path,
		&watcher.Filter,
		&watcher.Enabled,
		&watcher.IncludeSub,
		&watcher.BufferSize,
		&watcher.Active,
		&watcher.CreatedAt,
		&watcher.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &watcher, nil
}

// CreateWatcher 创建监控目录
func (r *watcherRepository) CreateWatcher(watcher *model.Watcher) error {
	// 同一路径只允许一个监控目录
	exists, err := r.WatcherExistsForPath(watcher.Path)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("watcher path already registered: %s: %w", watcher.Path, errs.ErrMutationConflict)
	}

	query := `
		INSERT INTO watchers (name, path, filter, enabled, include_sub, buffer_size, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	result, err := r.db.GetDB().Exec(query,
		watcher.Name,
		watcher.Path,
		watcher.Filter,
		watcher.Enabled,
		watcher.IncludeSub,
		watcher.BufferSize,
		watcher.Active,
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create watcher: %v", err)
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("Failed to get last insert ID: %v", err)
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	watcher.ID = id
	watcher.CreatedAt = now
	watcher.UpdatedAt = now
	return nil
}

// GetWatcherByID 根据ID获取监控目录
func (r *watcherRepository) GetWatcherByID(id int64) (*model.Watcher, error) {
	query := fmt.Sprintf(`SELECT %s FROM watchers WHERE id = ?`, watcherColumns)

	watcher, err := scanWatcher(r.db.GetDB().QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrRecordNotFound
		}
		r.logger.Error("Failed to get watcher by ID: %v", err)
		return nil, fmt.Errorf("failed to get watcher by ID: %w", err)
	}

	return watcher, nil
}

// GetWatcherByPath 根据路径精确获取监控目录
func (r *watcherRepository) GetWatcherByPath(path string) (*model.Watcher, error) {
	query := fmt.Sprintf(`SELECT %s FROM watchers WHERE path = ?`, watcherColumns)

	watcher, err := scanWatcher(r.db.GetDB().QueryRow(query, path))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrRecordNotFound
		}
		r.logger.Error("Failed to get watcher by path: %v", err)
		return nil, fmt.Errorf("failed to get watcher by path: %w", err)
	}

	return watcher, nil
}

// WatcherExistsForPath 是否已存在根路径与给定路径完全相同的监控目录
func (r *watcherRepository) WatcherExistsForPath(path string) (bool, error) {
	var count int
	err := r.db.GetDB().QueryRow(`SELECT COUNT(*) FROM watchers WHERE path = ?`, path).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to check watcher path: %v", err)
		return false, fmt.Errorf("failed to check watcher path: %w", err)
	}
	return count > 0, nil
}

// ListWatchers 获取全部监控目录
func (r *watcherRepository) ListWatchers() ([]*model.Watcher, error) {
	return r.listWatchers(fmt.Sprintf(`SELECT %s FROM watchers ORDER BY id`, watcherColumns))
}

// ListEnabledWatchers 获取启用的监控目录
func (r *watcherRepository) ListEnabledWatchers() ([]*model.Watcher, error) {
	return r.listWatchers(fmt.Sprintf(`SELECT %s FROM watchers WHERE enabled = 1 ORDER BY id`, watcherColumns))
}

func (r *watcherRepository) listWatchers(query string) ([]*model.Watcher, error) {
	rows, err := r.db.GetDB().Query(query)
	if err != nil {
		r.logger.Error("Failed to list watchers: %v", err)
		return nil, fmt.Errorf("failed to list watchers: %w", err)
	}
	defer rows.Close()

	var watchers []*model.Watcher
	for rows.Next() {
		watcher, err := scanWatcher(rows)
		if err != nil {
			r.logger.Error("Failed to scan watcher row: %v", err)
			return nil, fmt.Errorf("failed to scan watcher row: %w", err)
		}
		watchers = append(watchers, watcher)
	}

	return watchers, nil
}

// SetWatcherActive 更新监控目录的活动状态
func (r *watcherRepository) SetWatcherActive(id int64, active bool) error {
	query := `UPDATE watchers SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := r.db.GetDB().Exec(query, active, id)
	if err != nil {
		r.logger.Error("Failed to update watcher active state: %v", err)
		return fmt.Errorf("failed to update watcher active state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected: %v", err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("watcher not found: %d", id)
	}

	return nil
}

// DeleteWatcher 删除监控目录及其级联数据
func (r *watcherRepository) DeleteWatcher(id int64) error {
	result, err := r.db.GetDB().Exec(`DELETE FROM watchers WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete watcher: %v", err)
		return fmt.Errorf("failed to delete watcher: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected: %v", err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("watcher not found: %d", id)
	}

	return nil
}
