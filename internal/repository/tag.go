package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"filetag-indexer/internal/database"
	"filetag-indexer/internal/errs"
	"filetag-indexer/internal/model"
	"filetag-indexer/pkg/logger"
)

// TagRepository 标签数据访问层
type TagRepository interface {
	// CreateTag 创建标签
	CreateTag(tag *model.Tag) error
	// GetTagByID 根据ID获取标签
	GetTagByID(id int64) (*model.Tag, error)
	// GetTagByName 根据名称获取标签
	GetTagByName(name string) (*model.Tag, error)
	// GetOrCreateTag 获取标签，不存在则创建
	GetOrCreateTag(name string) (*model.Tag, error)
	// ListTags 获取全部标签
	ListTags() ([]*model.Tag, error)
	// DeleteTag 删除标签及其级联绑定
	DeleteTag(id int64) error
	// AttachTag 为文件附加标签，幂等；返回是否实际新增
	AttachTag(fileID, tagID int64) (bool, error)
	// DetachTag 从文件移除标签，幂等；返回是否实际移除
	DetachTag(fileID, tagID int64) (bool, error)
	// ListTagsByFile 获取文件的全部标签
	ListTagsByFile(fileID int64) ([]*model.Tag, error)
	// IsFileTagged 文件是否带有指定标签
	IsFileTagged(fileID, tagID int64) (bool, error)
}

// tagRepository 标签Repository实现
type tagRepository struct {
	db     database.DatabaseManager
	logger logger.Logger
}

// NewTagRepository 创建标签Repository
func NewTagRepository(db database.DatabaseManager, logger logger.Logger) TagRepository {
	return &tagRepository{
		db:     db,
		logger: logger,
	}
}

// CreateTag 创建标签
func (r *tagRepository) CreateTag(tag *model.Tag) error {
	result, err := r.db.GetDB().Exec(`INSERT INTO tags (name) VALUES (?)`, tag.Name)
	if err != nil {
		r.logger.Error("Failed to create tag: %v", err)
		return fmt.Errorf("failed to create tag: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("Failed to get last insert ID: %v", err)
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}

	tag.ID = id
	return nil
}

// GetTagByID 根据ID获取标签
func (r *tagRepository) GetTagByID(id int64) (*model.Tag, error) {
	var tag model.Tag
	err := r.db.GetDB().QueryRow(`SELECT id, name FROM tags WHERE id = ?`, id).Scan(&tag.ID, &tag.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrRecordNotFound
		}
		r.logger.Error("Failed to get tag by ID: %v", err)
		return nil, fmt.Errorf("failed to get tag by ID: %w", err)
	}
	return &tag, nil
}

// GetTagByName 根据名称获取标签
func (r *tagRepository) GetTagByName(name string) (*model.Tag, error) {
	var tag model.Tag
	err := r.db.GetDB().QueryRow(`SELECT id, name FROM tags WHERE name = ?`, name).Scan(&tag.ID, &tag.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrRecordNotFound
		}
		r.logger.Error("Failed to get tag by name: %v", err)
		return nil, fmt.Errorf("failed to get tag by name: %w", err)
	}
	return &tag, nil
}

// GetOrCreateTag 获取标签，不存在则创建
func (r *tagRepository) GetOrCreateTag(name string) (*model.Tag, error) {
	tag, err := r.GetTagByName(name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, errs.ErrRecordNotFound) {
		return nil, err
	}

	tag = &model.Tag{Name: name}
	if err := r.CreateTag(tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// ListTags 获取全部标签
func (r *tagRepository) ListTags() ([]*model.Tag, error) {
	rows, err := r.db.GetDB().Query(`SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		r.logger.Error("Failed to list tags: %v", err)
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []*model.Tag
	for rows.Next() {
		var tag model.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			r.logger.Error("Failed to scan tag row: %v", err)
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, &tag)
	}

	return tags, nil
}

// DeleteTag 删除标签及其级联绑定
func (r *tagRepository) DeleteTag(id int64) error {
	result, err := r.db.GetDB().Exec(`DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete tag: %v", err)
		return fmt.Errorf("failed to delete tag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected: %v", err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("tag not found: %d", id)
	}

	return nil
}

// AttachTag 为文件附加标签，幂等；返回是否实际新增
func (r *tagRepository) AttachTag(fileID, tagID int64) (bool, error) {
	result, err := r.db.GetDB().Exec(
		`INSERT OR IGNORE INTO file_tags (file_id, tag_id) VALUES (?, ?)`,
		fileID, tagID,
	)
	if err != nil {
		r.logger.Error("Failed to attach tag: %v", err)
		return false, fmt.Errorf("failed to attach tag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected: %v", err)
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// DetachTag 从文件移除标签，幂等；返回是否实际移除
func (r *tagRepository) DetachTag(fileID, tagID int64) (bool, error) {
	result, err := r.db.GetDB().Exec(
		`DELETE FROM file_tags WHERE file_id = ? AND tag_id = ?`,
		fileID, tagID,
	)
	if err != nil {
		r.logger.Error("Failed to detach tag: %v", err)
		return false, fmt.Errorf("failed to detach tag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected: %v", err)
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListTagsByFile 获取文件的全部标签
func (r *tagRepository) ListTagsByFile(fileID int64) ([]*model.Tag, error) {
	query := `
		SELECT t.id, t.name
		FROM file_tags ft
		JOIN tags t ON t.id = ft.tag_id
		WHERE ft.file_id = ?
		ORDER BY t.name
	`

	rows, err := r.db.GetDB().Query(query, fileID)
	if err != nil {
		r.logger.Error("Failed to list tags by file: %v", err)
		return nil, fmt.Errorf("failed to list tags by file: %w", err)
	}
	defer rows.Close()

	var tags []*model.Tag
	for rows.Next() {
		var tag model.Tag
		if err := rows.Scan(&tag.ID, &tag.Name); err != nil {
			r.logger.Error("Failed to scan tag row: %v", err)
			return nil, fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, &tag)
	}

	return tags, nil
}

// IsFileTagged 文件是否带有指定标签
func (r *tagRepository) IsFileTagged(fileID, tagID int64) (bool, error) {
	var count int
	err := r.db.GetDB().QueryRow(
		`SELECT COUNT(*) FROM file_tags WHERE file_id = ? AND tag_id = ?`,
		fileID, tagID,
	).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to check file tag: %v", err)
		return false, fmt.Errorf("failed to check file tag: %w", err)
	}
	return count > 0, nil
}
