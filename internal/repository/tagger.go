package repository

import (
	"database/sql"
	"fmt"

	"filetag-indexer/internal/database"
	"filetag-indexer/internal/errs"
	"filetag-indexer/internal/model"
	"filetag-indexer/pkg/logger"
)

// TaggerRepository 自动标签器数据访问层
type TaggerRepository interface {
	// CreateTagger 创建标签器
	CreateTagger(tagger *model.AutoTagger) error
	// GetTaggerByID 根据ID获取标签器，含绑定与标签
	GetTaggerByID(id int64) (*model.AutoTagger, error)
	// ListTaggers 获取全部标签器，含绑定与标签
	ListTaggers() ([]*model.AutoTagger, error)
	// DeleteTagger 删除标签器及其级联绑定
	DeleteTagger(id int64) error
	// AddQueryBinding 为标签器追加查询绑定
	AddQueryBinding(binding *model.AutoTaggerQuery) error
	// RemoveQueryBinding 移除查询绑定
	RemoveQueryBinding(taggerID, queryID int64) error
	// AddTagBinding 为标签器追加标签绑定
	AddTagBinding(taggerID, tagID int64) error
	// RemoveTagBinding 移除标签绑定
	RemoveTagBinding(taggerID, tagID int64) error
}

// taggerRepository 标签器Repository实现
type taggerRepository struct {
	db      database.DatabaseManager
	queries QueryRepository
	logger  logger.Logger
}

// NewTaggerRepository 创建标签器Repository
func NewTaggerRepository(db database.DatabaseManager, queries QueryRepository, logger logger.Logger) TaggerRepository {
	return &taggerRepository{
		db:      db,
		queries: queries,
		logger:  logger,
	}
}

// CreateTagger 创建标签器
func (r *taggerRepository) CreateTagger(tagger *model.AutoTagger) error {
	result, err := r.db.GetDB().Exec(
		`INSERT INTO auto_taggers (name, descr) VALUES (?, ?)`,
		tagger.Name, tagger.Descr,
	)
	if err != nil {
		r.logger.Error("Failed to create tagger: %v", err)
		return fmt.Errorf("failed to create tagger: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("Failed to get last insert ID: %v", err)
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	tagger.ID = id

	return nil
}

// GetTaggerByID 根据ID获取标签器，含绑定与标签
func (r *taggerRepository) GetTaggerByID(id int64) (*model.AutoTagger, error) {
	var tagger model.AutoTagger
	err := r.db.GetDB().QueryRow(
		`SELECT id, name, descr FROM auto_taggers WHERE id = ?`, id,
	).Scan(&tagger.ID, &tagger.Name, &tagger.Descr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrRecordNotFound
		}
		r.logger.Error("Failed to get tagger by ID: %v", err)
		return nil, fmt.Errorf("failed to get tagger by ID: %w", err)
	}

	if err := r.loadAssociations(&tagger); err != nil {
		return nil, err
	}

	return &tagger, nil
}

// ListTaggers 获取全部标签器，含绑定与标签
func (r *taggerRepository) ListTaggers() ([]*model.AutoTagger, error) {
	rows, err := r.db.GetDB().Query(`SELECT id, name, descr FROM auto_taggers ORDER BY id`)
	if err != nil {
		r.logger.Error("Failed to list taggers: %v", err)
		return nil, fmt.Errorf("failed to list taggers: %w", err)
	}
	defer rows.Close()

	var taggers []*model.AutoTagger
	for rows.Next() {
		var tagger model.AutoTagger
		if err := rows.Scan(&tagger.ID, &tagger.Name, &tagger.Descr); err != nil {
			r.logger.Error("Failed to scan tagger row: %v", err)
			return nil, fmt.Errorf("failed to scan tagger row: %w", err)
		}
		taggers = append(taggers, &tagger)
	}

	for _, tagger := range taggers {
		if err := r.loadAssociations(tagger); err != nil {
			return nil, err
		}
	}

	return taggers, nil
}

// loadAssociations 加载标签器的查询绑定与标签绑定
// 绑定按自增ID升序返回，组合求值依此顺序进行
func (r *taggerRepository) loadAssociations(tagger *model.AutoTagger) error {
	rows, err := r.db.GetDB().Query(
		`SELECT id, tagger_id, query_id, logic FROM auto_tagger_queries WHERE tagger_id = ? ORDER BY id`,
		tagger.ID,
	)
	if err != nil {
		r.logger.Error("Failed to list tagger bindings: %v", err)
		return fmt.Errorf("failed to list tagger bindings: %w", err)
	}
	defer rows.Close()

	var bindings []*model.AutoTaggerQuery
	for rows.Next() {
		var binding model.AutoTaggerQuery
		if err := rows.Scan(&binding.ID, &binding.TaggerID, &binding.QueryID, &binding.Logic); err != nil {
			r.logger.Error("Failed to scan binding row: %v", err)
			return fmt.Errorf("failed to scan binding row: %w", err)
		}
		bindings = append(bindings, &binding)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("failed to close binding rows: %w", err)
	}

	for _, binding := range bindings {
		query, err := r.queries.GetQueryByID(binding.QueryID)
		if err != nil {
			return fmt.Errorf("failed to load bound query %d: %w", binding.QueryID, err)
		}
		binding.Query = query
	}
	tagger.Bindings = bindings

	tagRows, err := r.db.GetDB().Query(`
		SELECT t.id, t.name
		FROM auto_tags at
		JOIN tags t ON t.id = at.tag_id
		WHERE at.tagger_id = ?
		ORDER BY t.name
	`, tagger.ID)
	if err != nil {
		r.logger.Error("Failed to list tagger tags: %v", err)
		return fmt.Errorf("failed to list tagger tags: %w", err)
	}
	defer tagRows.Close()

	var tags []*model.Tag
	for tagRows.Next() {
		var tag model.Tag
		if err := tagRows.Scan(&tag.ID, &tag.Name); err != nil {
			r.logger.Error("Failed to scan tag row: %v", err)
			return fmt.Errorf("failed to scan tag row: %w", err)
		}
		tags = append(tags, &tag)
	}
	tagger.Tags = tags

	return nil
}

// DeleteTagger 删除标签器及其级联绑定
func (r *taggerRepository) DeleteTagger(id int64) error {
	result, err := r.db.GetDB().Exec(`DELETE FROM auto_taggers WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete tagger: %v", err)
		return fmt.Errorf("failed to delete tagger: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected: %v", err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("tagger not found: %d", id)
	}

	return nil
}

// AddQueryBinding 为标签器追加查询绑定
func (r *taggerRepository) AddQueryBinding(binding *model.AutoTaggerQuery) error {
	result, err := r.db.GetDB().Exec(
		`INSERT INTO auto_tagger_queries (tagger_id, query_id, logic) VALUES (?, ?, ?)`,
		binding.TaggerID, binding.QueryID, binding.Logic,
	)
	if err != nil {
		r.logger.Error("Failed to add query binding: %v", err)
		return fmt.Errorf("failed to add query binding: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("Failed to get last insert ID: %v", err)
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	binding.ID = id

	return nil
}

// RemoveQueryBinding 移除查询绑定
func (r *taggerRepository) RemoveQueryBinding(taggerID, queryID int64) error {
	result, err := r.db.GetDB().Exec(
		`DELETE FROM auto_tagger_queries WHERE tagger_id = ? AND query_id = ?`,
		taggerID, queryID,
	)
	if err != nil {
		r.logger.Error("Failed to remove query binding: %v", err)
		return fmt.Errorf("failed to remove query binding: %w", err)
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

// AddTagBinding 为标签器追加标签绑定
func (r *taggerRepository) AddTagBinding(taggerID, tagID int64) error {
	_, err := r.db.GetDB().Exec(
		`INSERT OR IGNORE INTO auto_tags (tagger_id, tag_id) VALUES (?, ?)`,
		taggerID, tagID,
	)
	if err != nil {
		r.logger.Error("Failed to add tag binding: %v", err)
		return fmt.Errorf("failed to add tag binding: %w", err)
	}
	return nil
}

// RemoveTagBinding 移除标签绑定
func (r *taggerRepository) RemoveTagBinding(taggerID, tagID int64) error {
	result, err := r.db.GetDB().Exec(
		`DELETE FROM auto_tags WHERE tagger_id = ? AND tag_id = ?`,
		taggerID, tagID,
	)
	if err != nil {
		r.logger.Error("Failed to remove tag binding: %v", err)
		return fmt.Errorf("failed to remove tag binding: %w", err)
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
