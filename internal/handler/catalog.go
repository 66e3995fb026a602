// internal/handler/catalog.go - 标签、查询与自动标签器管理API
package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"filetag-indexer/internal/dto"
	"filetag-indexer/internal/errs"
	"filetag-indexer/internal/model"
	"filetag-indexer/internal/repository"
	"filetag-indexer/internal/service"
	"filetag-indexer/internal/utils"
	"filetag-indexer/pkg/logger"
)

// CatalogHandler 配置数据处理器，管理标签、查询与自动标签器
type CatalogHandler struct {
	tagRepo    repository.TagRepository
	queryRepo  repository.QueryRepository
	taggerRepo repository.TaggerRepository
	filters    service.FilterService
	logger     logger.Logger
}

// NewCatalogHandler 创建配置数据处理器
func NewCatalogHandler(
	tagRepo repository.TagRepository,
	queryRepo repository.QueryRepository,
	taggerRepo repository.TaggerRepository,
	filters service.FilterService,
	logger logger.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		tagRepo:    tagRepo,
		queryRepo:  queryRepo,
		taggerRepo: taggerRepo,
		filters:    filters,
		logger:     logger,
	}
}

// ListTags 列出全部标签
func (h *CatalogHandler) ListTags(c *gin.Context) {
	tags, err := h.tagRepo.ListTags()
	if err != nil {
		h.logger.Error("failed to list tags: %v", err)
		utils.InternalError(c, "failed to list tags")
		return
	}
	utils.Success(c, tags)
}

// CreateTag 创建标签，重名时幂等返回既有标签
func (h *CatalogHandler) CreateTag(c *gin.Context) {
	var req dto.CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request format: %v", err)
		utils.Fail(c, "invalid request format")
		return
	}

	tag, err := h.tagRepo.GetOrCreateTag(req.Name)
	if err != nil {
		h.logger.Error("failed to create tag: %v", err)
		utils.InternalError(c, "failed to create tag")
		return
	}

	utils.Success(c, tag)
}

// DeleteTag 删除标签及其全部文件绑定
func (h *CatalogHandler) DeleteTag(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.tagRepo.DeleteTag(id); err != nil {
		h.logger.Error("failed to delete tag: %v", err)
		utils.NotFound(c, "tag not found")
		return
	}

	utils.Success(c, nil)
}

// ListQueries 列出全部查询，含过滤条件
func (h *CatalogHandler) ListQueries(c *gin.Context) {
	queries, err := h.queryRepo.ListQueries()
	if err != nil {
		h.logger.Error("failed to list queries: %v", err)
		utils.InternalError(c, "failed to list queries")
		return
	}
	utils.Success(c, queries)
}

// CreateQuery 创建查询，过滤条件先行编译校验
// 编译失败的定义在此拒绝，绝不静默降级为永不匹配
func (h *CatalogHandler) CreateQuery(c *gin.Context) {
	var req dto.CreateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request format: %v", err)
		utils.Fail(c, "invalid request format")
		return
	}

	query := &model.Query{
		Name:  req.Name,
		Descr: req.Descr,
	}
	for _, f := range req.Filters {
		query.Filters = append(query.Filters, &model.Filter{
			Field:      f.Field,
			Type:       f.Type,
			Value:      f.Value,
			Comparison: f.Comparison,
		})
	}

	if _, err := h.filters.CompileQuery(query); err != nil {
		utils.Fail(c, err.Error())
		return
	}

	if err := h.queryRepo.CreateQuery(query); err != nil {
		h.logger.Error("failed to create query: %v", err)
		utils.InternalError(c, "failed to create query")
		return
	}

	utils.Success(c, query)
}

// UpdateQuery 更新查询，整体替换过滤条件
func (h *CatalogHandler) UpdateQuery(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req dto.CreateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request format: %v", err)
		utils.Fail(c, "invalid request format")
		return
	}

	query := &model.Query{
		ID:    id,
		Name:  req.Name,
		Descr: req.Descr,
	}
	for _, f := range req.Filters {
		query.Filters = append(query.Filters, &model.Filter{
			Field:      f.Field,
			Type:       f.Type,
			Value:      f.Value,
			Comparison: f.Comparison,
		})
	}

	if _, err := h.filters.CompileQuery(query); err != nil {
		utils.Fail(c, err.Error())
		return
	}

	if err := h.queryRepo.UpdateQuery(query); err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			utils.NotFound(c, "query not found")
			return
		}
		h.logger.Error("failed to update query: %v", err)
		utils.InternalError(c, "failed to update query")
		return
	}

	utils.Success(c, query)
}

// DeleteQuery 删除查询及其过滤条件
func (h *CatalogHandler) DeleteQuery(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.queryRepo.DeleteQuery(id); err != nil {
		h.logger.Error("failed to delete query: %v", err)
		utils.NotFound(c, "query not found")
		return
	}

	utils.Success(c, nil)
}

// ListTaggers 列出全部自动标签器，含绑定
func (h *CatalogHandler) ListTaggers(c *gin.Context) {
	taggers, err := h.taggerRepo.ListTaggers()
	if err != nil {
		h.logger.Error("failed to list taggers: %v", err)
		utils.InternalError(c, "failed to list taggers")
		return
	}
	utils.Success(c, taggers)
}

// CreateTagger 创建自动标签器及其查询与标签绑定
// 查询绑定按请求顺序落库，该顺序即组合求值顺序
func (h *CatalogHandler) CreateTagger(c *gin.Context) {
	var req dto.CreateTaggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request format: %v", err)
		utils.Fail(c, "invalid request format")
		return
	}

	tagger := &model.AutoTagger{
		Name:  req.Name,
		Descr: req.Descr,
	}
	if err := h.taggerRepo.CreateTagger(tagger); err != nil {
		h.logger.Error("failed to create tagger: %v", err)
		utils.InternalError(c, "failed to create tagger")
		return
	}

	for _, binding := range req.Queries {
		logic := strings.ToUpper(binding.Logic)
		if logic != model.LogicOr {
			logic = model.LogicAnd
		}
		if err := h.taggerRepo.AddQueryBinding(&model.AutoTaggerQuery{
			TaggerID: tagger.ID,
			QueryID:  binding.QueryID,
			Logic:    logic,
		}); err != nil {
			h.logger.Error("failed to bind query %d: %v", binding.QueryID, err)
			utils.InternalError(c, "failed to bind query")
			return
		}
	}

	for _, name := range req.TagNames {
		tag, err := h.tagRepo.GetOrCreateTag(name)
		if err != nil {
			h.logger.Error("failed to resolve tag %q: %v", name, err)
			utils.InternalError(c, "failed to resolve tag")
			return
		}
		if err := h.taggerRepo.AddTagBinding(tagger.ID, tag.ID); err != nil {
			h.logger.Error("failed to bind tag %q: %v", name, err)
			utils.InternalError(c, "failed to bind tag")
			return
		}
	}

	created, err := h.taggerRepo.GetTaggerByID(tagger.ID)
	if err != nil {
		h.logger.Error("failed to reload tagger: %v", err)
		utils.InternalError(c, "failed to reload tagger")
		return
	}

	utils.Success(c, created)
}

// DeleteTagger 删除自动标签器及其绑定
func (h *CatalogHandler) DeleteTagger(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.taggerRepo.DeleteTagger(id); err != nil {
		h.logger.Error("failed to delete tagger: %v", err)
		utils.NotFound(c, "tagger not found")
		return
	}

	utils.Success(c, nil)
}
