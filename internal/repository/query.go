package repository

import (
	"database/sql"
	"fmt"

	"filetag-indexer/internal/database"
	"filetag-indexer/internal/errs"
	"filetag-indexer/internal/model"
	"filetag-indexer/pkg/logger"
)

// QueryRepository 查询定义数据访问层
type QueryRepository interface {
	// CreateQuery 创建查询及其过滤条件
	CreateQuery(query *model.Query) error
	// GetQueryByID 根据ID获取查询，含过滤条件
	GetQueryByID(id int64) (*model.Query, error)
	// GetQueryByName 根据名称获取查询，含过滤条件
	GetQueryByName(name string) (*model.Query, error)
	// ListQueries 获取全部查询，含过滤条件
	ListQueries() ([]*model.Query, error)
	// UpdateQuery 更新查询，整体替换过滤条件
	UpdateQuery(query *model.Query) error
	// DeleteQuery 删除查询及其级联过滤条件
	DeleteQuery(id int64) error
	// AddFilter 为查询追加过滤条件
	AddFilter(filter *model.Filter) error
	// DeleteFilter 删除过滤条件
	DeleteFilter(id int64) error
}

// queryRepository 查询Repository实现
type queryRepository struct {
	db     database.DatabaseManager
	logger logger.Logger
}

// NewQueryRepository 创建查询Repository
func NewQueryRepository(db database.DatabaseManager, logger logger.Logger) QueryRepository {
	return &queryRepository{
		db:     db,
		logger: logger,
	}
}

// CreateQuery 创建查询及其过滤条件
func (r *queryRepository) CreateQuery(query *model.Query) error {
	tx, err := r.db.BeginTransaction()
	if err != nil {
		r.logger.Error("Failed to begin transaction: %v", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO queries (name, descr) VALUES (?, ?)`,
		query.Name, query.Descr,
	)
	if err != nil {
		r.logger.Error("Failed to create query: %v", err)
		return fmt.Errorf("failed to create query: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("Failed to get last insert ID: %v", err)
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	query.ID = id

	for _, filter := range query.Filters {
		filter.QueryID = id
		if err := insertFilter(tx, filter); err != nil {
			r.logger.Error("Failed to create filter: %v", err)
			return fmt.Errorf("failed to create filter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction: %v", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// insertFilter 在事务内插入单条过滤条件
func insertFilter(tx *sql.Tx, filter *model.Filter) error {
	result, err := tx.Exec(
		`INSERT INTO filters (query_id, field, type, value, comparison) VALUES (?, ?, ?, ?, ?)`,
		filter.QueryID, filter.Field, filter.Type, filter.Value, filter.Comparison,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	filter.ID = id
	return nil
}

// GetQueryByID 根据ID获取查询，含过滤条件
func (r *queryRepository) GetQueryByID(id int64) (*model.Query, error) {
	var query model.Query
	err := r.db.GetDB().QueryRow(
		`SELECT id, name, descr FROM queries WHERE id = ?`, id,
	).Scan(&query.ID, &query.Name, &query.Descr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrRecordNotFound
		}
		r.logger.Error("Failed to get query by ID: %v", err)
		return nil, fmt.Errorf("failed to get query by ID: %w", err)
	}

	filters, err := r.listFilters(query.ID)
	if err != nil {
		return nil, err
	}
	query.Filters = filters

	return &query, nil
}

// GetQueryByName 根据名称获取查询，含过滤条件
func (r *queryRepository) GetQueryByName(name string) (*model.Query, error) {
	var query model.Query
	err := r.db.GetDB().QueryRow(
		`SELECT id, name, descr FROM queries WHERE name = ?`, name,
	).Scan(&query.ID, &query.Name, &query.Descr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrRecordNotFound
		}
		r.logger.Error("Failed to get query by name: %v", err)
		return nil, fmt.Errorf("failed to get query by name: %w", err)
	}

	filters, err := r.listFilters(query.ID)
	if err != nil {
		return nil, err
	}
	query.Filters = filters

	return &query, nil
}

// ListQueries 获取全部查询，含过滤条件
func (r *queryRepository) ListQueries() ([]*model.Query, error) {
	rows, err := r.db.GetDB().Query(`SELECT id, name, descr FROM queries ORDER BY name`)
	if err != nil {
		r.logger.Error("Failed to list queries: %v", err)
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	var queries []*model.Query
	for rows.Next() {
		var query model.Query
		if err := rows.Scan(&query.ID, &query.Name, &query.Descr); err != nil {
			r.logger.Error("Failed to scan query row: %v", err)
			return nil, fmt.Errorf("failed to scan query row: %w", err)
		}
		queries = append(queries, &query)
	}

	for _, query := range queries {
		filters, err := r.listFilters(query.ID)
		if err != nil {
			return nil, err
		}
		query.Filters = filters
	}

	return queries, nil
}

// UpdateQuery 更新查询，整体替换过滤条件
func (r *queryRepository) UpdateQuery(query *model.Query) error {
	tx, err := r.db.BeginTransaction()
	if err != nil {
		r.logger.Error("Failed to begin transaction: %v", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE queries SET name = ?, descr = ? WHERE id = ?`,
		query.Name, query.Descr, query.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update query: %v", err)
		return fmt.Errorf("failed to update query: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected: %v", err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errs.ErrRecordNotFound
	}

	if _, err := tx.Exec(`DELETE FROM filters WHERE query_id = ?`, query.ID); err != nil {
		r.logger.Error("Failed to delete old filters: %v", err)
		return fmt.Errorf("failed to delete old filters: %w", err)
	}

	for _, filter := range query.Filters {
		filter.QueryID = query.ID
		if err := insertFilter(tx, filter); err != nil {
			r.logger.Error("Failed to create filter: %v", err)
			return fmt.Errorf("failed to create filter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction: %v", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteQuery 删除查询及其级联过滤条件
func (r *queryRepository) DeleteQuery(id int64) error {
	result, err := r.db.GetDB().Exec(`DELETE FROM queries WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete query: %v", err)
		return fmt.Errorf("failed to delete query: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected: %v", err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("query not found: %d", id)
	}

	return nil
}

// AddFilter 为查询追加过滤条件
func (r *queryRepository) AddFilter(filter *model.Filter) error {
	result, err := r.db.GetDB().Exec(
		`INSERT INTO filters (query_id, field, type, value, comparison) VALUES (?, ?, ?, ?, ?)`,
		filter.QueryID, filter.Field, filter.Type, filter.Value, filter.Comparison,
	)
	if err != nil {
		r.logger.Error("Failed to add filter: %v", err)
		return fmt.Errorf("failed to add filter: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("Failed to get last insert ID: %v", err)
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	filter.ID = id

	return nil
}

// DeleteFilter 删除过滤条件
func (r *queryRepository) DeleteFilter(id int64) error {
	result, err := r.db.GetDB().Exec(`DELETE FROM filters WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete filter: %v", err)
		return fmt.Errorf("failed to delete filter: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Failed to get rows affected: %v", err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("filter not found: %d", id)
	}

	return nil
}

// listFilters 按ID升序获取查询的过滤条件
func (r *queryRepository) listFilters(queryID int64) ([]*model.Filter, error) {
	rows, err := r.db.GetDB().Query(
		`SELECT id, query_id, field, type, value, comparison FROM filters WHERE query_id = ? ORDER BY id`,
		queryID,
	)
	if err != nil {
		r.logger.Error("Failed to list filters: %v", err)
		return nil, fmt.Errorf("failed to list filters: %w", err)
	}
	defer rows.Close()

	var filters []*model.Filter
	for rows.Next() {
		var filter model.Filter
		if err := rows.Scan(&filter.ID, &filter.QueryID, &filter.Field, &filter.Type, &filter.Value, &filter.Comparison); err != nil {
			r.logger.Error("Failed to scan filter row: %v", err)
			return nil, fmt.Errorf("failed to scan filter row: %w", err)
		}
		filters = append(filters, &filter)
	}

	return filters, nil
}
