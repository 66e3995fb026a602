package repository

import (
	"fmt"
	"time"

	"filetag-indexer/internal/database"
	"filetag-indexer/internal/model"
	"filetag-indexer/pkg/logger"
)

// AuditRepository 审计日志数据访问层
type AuditRepository interface {
	// AppendEntry 追加审计日志
	AppendEntry(entry *model.AuditLog) error
	// ListByWatcher 获取监视器的审计日志，按时间倒序
	ListByWatcher(watcherID int64, limit int) ([]*model.AuditLog, error)
	// ListRecent 获取最近的审计日志，按时间倒序
	ListRecent(limit int) ([]*model.AuditLog, error)
	// DeleteByWatcher 删除监视器的全部审计日志，返回删除数量
	DeleteByWatcher(watcherID int64) (int64, error)
	// DeleteOlderThan 删除指定时间之前的审计日志，返回删除数量
	DeleteOlderThan(cutoff time.Time) (int64, error)
	// CountByWatcher 统计监视器的审计日志数量
	CountByWatcher(watcherID int64) (int64, error)
}

// auditRepository 审计日志Repository实现
type auditRepository struct {
	db     database.DatabaseManager
	logger logger.Logger
}

// NewAuditRepository 创建审计日志Repository
func NewAuditRepository(db database.DatabaseManager, logger logger.Logger) AuditRepository {
	return &auditRepository{
		db:     db,
		logger: logger,
	}
}

const auditColumns = `id, action_type, obj_type, obj_id, obj_name, new_name, comment, watcher_id, created_at`

// scanAuditLog 扫描单行审计日志
func scanAuditLog(row interface{ Scan(dest ...any) error }) (*model.AuditLog, error) {
	var entry model.AuditLog
	err := row.Scan(
		&entry.ID,
		&entry.ActionType,
		&entry.ObjType,
		&entry.ObjID,
		&entry.ObjName,
		&entry.NewName,
		&entry.Comment,
		&entry.WatcherID,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// AppendEntry 追加审计日志
func (r *auditRepository) AppendEntry(entry *model.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	result, err := r.db.GetDB().Exec(`
		INSERT INTO audit_logs (action_type, obj_type, obj_id, obj_name, new_name, comment, watcher_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ActionType, entry.ObjType, entry.ObjID, entry.ObjName, entry.NewName, entry.Comment, entry.WatcherID, entry.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to append audit entry: %v", err)
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("Failed to get last insert ID: %v", err)
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	entry.ID = id

	return nil
}

// ListByWatcher 获取监视器的审计日志，按时间倒序
func (r *auditRepository) ListByWatcher(watcherID int64, limit int) ([]*model.AuditLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE watcher_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, auditColumns)
	return r.listEntries(query, watcherID, limit)
}

// ListRecent 获取最近的审计日志，按时间倒序
func (r *auditRepository) ListRecent(limit int) ([]*model.AuditLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT ?`, auditColumns)
	return r.listEntries(query, limit)
}

func (r *auditRepository) listEntries(query string, args ...any) ([]*model.AuditLog, error) {
	rows, err := r.db.GetDB().Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list audit entries: %v", err)
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditLog
	for rows.Next() {
		entry, err := scanAuditLog(rows)
		if err != nil {
			r.logger.Error("Failed to scan audit row: %v", err)
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// DeleteByWatcher 删除监视器的全部审计日志，返回删除数量
func (r *auditRepository) DeleteByWatcher(watcherID int64) (int64, error) {
	result, err := r.db.GetDB().Exec(`DELETE FROM audit_logs WHERE watcher_id = ?`, watcherID)
	if err != nil {
		r.logger.Error("Failed to delete audit entries by watcher: %v", err)
		return 0, fmt.Errorf("failed to delete audit entries by watcher: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected: %v", err)
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// DeleteOlderThan 删除指定时间之前的审计日志，返回删除数量
func (r *auditRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.GetDB().Exec(`DELETE FROM audit_logs WHERE created_at < ?`, cutoff)
	if err != nil {
		r.logger.Error("Failed to delete expired audit entries: %v", err)
		return 0, fmt.Errorf("failed to delete expired audit entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected: %v", err)
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// CountByWatcher 统计监视器的审计日志数量
func (r *auditRepository) CountByWatcher(watcherID int64) (int64, error) {
	var count int64
	err := r.db.GetDB().QueryRow(`SELECT COUNT(*) FROM audit_logs WHERE watcher_id = ?`, watcherID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count audit entries: %v", err)
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return count, nil
}
