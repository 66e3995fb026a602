package repository

import (
	"database/sql"
	"fmt"
	"time"

	"filetag-indexer/internal/database"
	"filetag-indexer/internal/errs"
	"filetag-indexer/internal/model"
	"filetag-indexer/internal/utils"
	"filetag-indexer/pkg/logger"
)

// FileMetadata 文件元数据，由调用方从文件系统采集
type FileMetadata struct {
	Size    int64
	Created time.Time
	Changed time.Time
}

// FileRepository 文件索引数据访问层
type FileRepository interface {
	// FileExists 完整路径对应的记录是否存在
	FileExists(fullPath string) (bool, error)
	// GetFileByPath 根据完整路径获取文件记录
	GetFileByPath(fullPath string) (*model.File, error)
	// GetFileByID 根据ID获取文件记录
	GetFileByID(id int64) (*model.File, error)
	// CreateFile 创建文件记录
	CreateFile(file *model.File) error
	// UpdateFile 更新文件记录的大小与修改时间
	UpdateFile(fullPath string, meta FileMetadata) error
	// RenameFile 重命名文件记录，保持身份不变
	RenameFile(oldFullPath, newFullPath string, meta FileMetadata) (*model.File, error)
	// DeleteFile 根据完整路径删除文件记录
	DeleteFile(fullPath string) (*model.File, error)
	// ListFilesByWatcher 获取某个监控目录下的全部文件记录
	ListFilesByWatcher(watcherID int64) ([]*model.File, error)
	// CountFilesByWatcher 统计某个监控目录下的文件记录数
	CountFilesByWatcher(watcherID int64) (int, error)
	// DeleteFilesByWatcher 清空某个监控目录下的全部文件记录
	DeleteFilesByWatcher(watcherID int64) (int64, error)
	// LoadTagsJoin 加载文件的标签连接串
	LoadTagsJoin(file *model.File) error
}

// fileRepository 文件索引Repository实现
type fileRepository struct {
	db     database.DatabaseManager
	logger logger.Logger
}

// NewFileRepository 创建文件索引Repository
func NewFileRepository(db database.DatabaseManager, logger logger.Logger) FileRepository {
	return &fileRepository{
		db:     db,
		logger: logger,
	}
}

const fileColumns = `id, path, name, ext, size, created, changed, renamed, watcher_id`

// scanFile 扫描单行文件记录
func scanFile(row interface{ Scan(...any) error }) (*model.File, error) {
	var file model.File
	var renamed sql.NullTime
	err := row.Scan(
		&file.ID,
		&file.Path,
		&file.Name,
		&file.Ext,
		&file.Size,
		&file.Created,
		&file.Changed,
		&renamed,
		&file.WatcherID,
	)
	if err != nil {
		return nil, err
	}
	if renamed.Valid {
		file.Renamed = &renamed.Time
	}
	return &file, nil
}

// FileExists 完整路径对应的记录是否存在
func (r *fileRepository) FileExists(fullPath string) (bool, error) {
	dir, name := utils.SplitFullPath(fullPath)

	var count int
	err := r.db.GetDB().QueryRow(`SELECT COUNT(*) FROM files WHERE path = ? AND name = ?`, dir, name).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to check file existence: %v", err)
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return count > 0, nil
}

// GetFileByPath 根据完整路径获取文件记录
func (r *fileRepository) GetFileByPath(fullPath string) (*model.File, error) {
	dir, name := utils.SplitFullPath(fullPath)
	query := fmt.Sprintf(`SELECT %s FROM files WHERE path = ? AND name = ?`, fileColumns)

	file, err := scanFile(r.db.GetDB().QueryRow(query, dir, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrRecordNotFound
		}
		r.logger.Error("Failed to get file by path: %v", err)
		return nil, fmt.Errorf("failed to get file by path: %w", err)
	}

	return file, nil
}

// GetFileByID 根据ID获取文件记录
func (r *fileRepository) GetFileByID(id int64) (*model.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = ?`, fileColumns)

	file, err := scanFile(r.db.GetDB().QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrRecordNotFound
		}
		r.logger.Error("Failed to get file by ID: %v", err)
		return nil, fmt.Errorf("failed to get file by ID: %w", err)
	}

	return file, nil
}

// CreateFile 创建文件记录
func (r *fileRepository) CreateFile(file *model.File) error {
	query := `
		INSERT INTO files (path, name, ext, size, created, changed, renamed, watcher_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`

	var renamed interface{}
	if file.Renamed != nil {
		renamed = *file.Renamed
	}

	result, err := r.db.GetDB().Exec(query,
		file.Path,
		file.Name,
		file.Ext,
		file.Size,
		file.Created,
		file.Changed,
		renamed,
		file.WatcherID,
	)
	if err != nil {
		r.logger.Error("Failed to create file record: %v", err)
		return fmt.Errorf("failed to create file record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("Failed to get last insert ID: %v", err)
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	file.ID = id
	return nil
}

// UpdateFile 更新文件记录的大小与修改时间
func (r *fileRepository) UpdateFile(fullPath string, meta FileMetadata) error {
	dir, name := utils.SplitFullPath(fullPath)
	query := `
		UPDATE files
		SET size = ?, changed = ?, updated_at = CURRENT_TIMESTAMP
		WHERE path = ? AND name = ?
	`

	result, err := r.db.GetDB().Exec(query, meta.Size, meta.Changed, dir, name)
	if err != nil {
		r.logger.Error("Failed to update file record: %v", err)
		return fmt.Errorf("failed to update file record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected: %v", err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errs.ErrRecordNotFound
	}

	return nil
}

// RenameFile 重命名文件记录，保持身份不变。目录变化也按重命名处理；
// 目标路径已有记录时返回冲突错误，索引保持原状
func (r *fileRepository) RenameFile(oldFullPath, newFullPath string, meta FileMetadata) (*model.File, error) {
	file, err := r.GetFileByPath(oldFullPath)
	if err != nil {
		return nil, err
	}

	targetExists, err := r.FileExists(newFullPath)
	if err != nil {
		return nil, err
	}
	if targetExists {
		return nil, fmt.Errorf("rename target already indexed: %s: %w", newFullPath, errs.ErrMutationConflict)
	}

	newDir, newName := utils.SplitFullPath(newFullPath)
	now := time.Now()
	query := `
		UPDATE files
		SET path = ?, name = ?, ext = ?, size = ?, created = ?, changed = ?, renamed = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err = r.db.GetDB().Exec(query,
		newDir,
		newName,
		utils.FileExt(newName),
		meta.Size,
		meta.Created,
		meta.Changed,
		now,
		file.ID,
	)
	if err != nil {
		r.logger.Error("Failed to rename file record: %v", err)
		return nil, fmt.Errorf("failed to rename file record: %w", err)
	}

	file.Path = newDir
	file.Name = newName
	file.Ext = utils.FileExt(newName)
	file.Size = meta.Size
	file.Created = meta.Created
	file.Changed = meta.Changed
	file.Renamed = &now
	return file, nil
}

// DeleteFile 根据完整路径删除文件记录，返回被删除的记录
func (r *fileRepository) DeleteFile(fullPath string) (*model.File, error) {
	file, err := r.GetFileByPath(fullPath)
	if err != nil {
		return nil, err
	}

	_, err = r.db.GetDB().Exec(`DELETE FROM files WHERE id = ?`, file.ID)
	if err != nil {
		r.logger.Error("Failed to delete file record: %v", err)
		return nil, fmt.Errorf("failed to delete file record: %w", err)
	}

	return file, nil
}

// ListFilesByWatcher 获取某个监控目录下的全部文件记录
func (r *fileRepository) ListFilesByWatcher(watcherID int64) ([]*model.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE watcher_id = ? ORDER BY path, name`, fileColumns)

	rows, err := r.db.GetDB().Query(query, watcherID)
	if err != nil {
		r.logger.Error("Failed to list files by watcher: %v", err)
		return nil, fmt.Errorf("failed to list files by watcher: %w", err)
	}
	defer rows.Close()

	var files []*model.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			r.logger.Error("Failed to scan file row: %v", err)
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		files = append(files, file)
	}

	return files, nil
}

// CountFilesByWatcher 统计某个监控目录下的文件记录数
func (r *fileRepository) CountFilesByWatcher(watcherID int64) (int, error) {
	var count int
	err := r.db.GetDB().QueryRow(`SELECT COUNT(*) FROM files WHERE watcher_id = ?`, watcherID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count files by watcher: %v", err)
		return 0, fmt.Errorf("failed to count files by watcher: %w", err)
	}
	return count, nil
}

// DeleteFilesByWatcher 清空某个监控目录下的全部文件记录
func (r *fileRepository) DeleteFilesByWatcher(watcherID int64) (int64, error) {
	result, err := r.db.GetDB().Exec(`DELETE FROM files WHERE watcher_id = ?`, watcherID)
	if err != nil {
		r.logger.Error("Failed to delete files by watcher: %v", err)
		return 0, fmt.Errorf("failed to delete files by watcher: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected: %v", err)
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// LoadTagsJoin 加载文件的标签连接串：标签名按字典序排序后以逗号连接
func (r *fileRepository) LoadTagsJoin(file *model.File) error {
	query := `
		SELECT t.name
		FROM file_tags ft
		JOIN tags t ON t.id = ft.tag_id
		WHERE ft.file_id = ?
		ORDER BY t.name
	`

	rows, err := r.db.GetDB().Query(query, file.ID)
	if err != nil {
		r.logger.Error("Failed to load file tags: %v", err)
		return fmt.Errorf("failed to load file tags: %w", err)
	}
	defer rows.Close()

	joined := ""
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			r.logger.Error("Failed to scan tag name: %v", err)
			return fmt.Errorf("failed to scan tag name: %w", err)
		}
		if joined != "" {
			joined += ", "
		}
		joined += name
	}

	file.TagsJoin = joined
	return nil
}
