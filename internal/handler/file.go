// internal/handler/file.go - 文件索引查询API
package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"filetag-indexer/internal/dto"
	"filetag-indexer/internal/errs"
	"filetag-indexer/internal/model"
	"filetag-indexer/internal/repository"
	"filetag-indexer/internal/service"
	"filetag-indexer/internal/utils"
	"filetag-indexer/pkg/logger"
)

// FileHandler 文件索引查询处理器
type FileHandler struct {
	index     service.IndexService
	fileRepo  repository.FileRepository
	tagRepo   repository.TagRepository
	auditRepo repository.AuditRepository
	logger    logger.Logger
}

// NewFileHandler 创建文件处理器
func NewFileHandler(
	index service.IndexService,
	fileRepo repository.FileRepository,
	tagRepo repository.TagRepository,
	auditRepo repository.AuditRepository,
	logger logger.Logger,
) *FileHandler {
	return &FileHandler{
		index:     index,
		fileRepo:  fileRepo,
		tagRepo:   tagRepo,
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// ListFiles 列出某监视器下的全部文件，附带标签串
func (h *FileHandler) ListFiles(c *gin.Context) {
	watcherID, err := strconv.ParseInt(c.Query("watcherId"), 10, 64)
	if err != nil || watcherID <= 0 {
		utils.Fail(c, "invalid watcherId")
		return
	}

	files, err := h.fileRepo.ListFilesByWatcher(watcherID)
	if err != nil {
		h.logger.Error("failed to list files: %v", err)
		utils.InternalError(c, "failed to list files")
		return
	}

	for _, file := range files {
		if err := h.fileRepo.LoadTagsJoin(file); err != nil {
			h.logger.Error("failed to load file tags: %v", err)
			utils.InternalError(c, "failed to load file tags")
			return
		}
	}

	utils.Success(c, files)
}

// SearchFiles 用命名查询筛选文件
func (h *FileHandler) SearchFiles(c *gin.Context) {
	queryID, err := strconv.ParseInt(c.Query("queryId"), 10, 64)
	if err != nil || queryID <= 0 {
		utils.Fail(c, "invalid queryId")
		return
	}

	files, err := h.index.SearchFiles(queryID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			utils.NotFound(c, "query not found")
			return
		}
		if errs.IsInvalidFilter(err) {
			// 带全部上下文返回，调用方据此修正过滤条件定义
			utils.Fail(c, err.Error())
			return
		}
		h.logger.Error("failed to search files: %v", err)
		utils.InternalError(c, "failed to search files")
		return
	}

	utils.Success(c, files)
}

// AttachTag 手工为文件附加标签，不存在的标签按需创建
func (h *FileHandler) AttachTag(c *gin.Context) {
	var req dto.FileTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request format: %v", err)
		utils.Fail(c, "invalid request format")
		return
	}

	file, err := h.fileRepo.GetFileByID(req.FileID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			utils.NotFound(c, "file not found")
			return
		}
		h.logger.Error("failed to get file: %v", err)
		utils.InternalError(c, "failed to get file")
		return
	}

	tag, err := h.tagRepo.GetOrCreateTag(req.Tag)
	if err != nil {
		h.logger.Error("failed to resolve tag: %v", err)
		utils.InternalError(c, "failed to resolve tag")
		return
	}

	attached, err := h.tagRepo.AttachTag(file.ID, tag.ID)
	if err != nil {
		h.logger.Error("failed to attach tag: %v", err)
		utils.InternalError(c, "failed to attach tag")
		return
	}
	if attached {
		h.appendTagAudit(model.ActionCreated, tag, file)
	}

	utils.Success(c, gin.H{"attached": attached})
}

// DetachTag 手工从文件摘除标签
func (h *FileHandler) DetachTag(c *gin.Context) {
	var req dto.FileTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request format: %v", err)
		utils.Fail(c, "invalid request format")
		return
	}

	file, err := h.fileRepo.GetFileByID(req.FileID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			utils.NotFound(c, "file not found")
			return
		}
		h.logger.Error("failed to get file: %v", err)
		utils.InternalError(c, "failed to get file")
		return
	}

	tag, err := h.tagRepo.GetTagByName(req.Tag)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			utils.NotFound(c, "tag not found")
			return
		}
		h.logger.Error("failed to get tag: %v", err)
		utils.InternalError(c, "failed to get tag")
		return
	}

	detached, err := h.tagRepo.DetachTag(file.ID, tag.ID)
	if err != nil {
		h.logger.Error("failed to detach tag: %v", err)
		utils.InternalError(c, "failed to detach tag")
		return
	}
	if detached {
		h.appendTagAudit(model.ActionDeleted, tag, file)
	}

	utils.Success(c, gin.H{"detached": detached})
}

// AddTagsToFile 批量为单个文件附加标签，不存在的标签按需创建
func (h *FileHandler) AddTagsToFile(c *gin.Context) {
	fileID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || fileID <= 0 {
		utils.Fail(c, "invalid file id")
		return
	}

	var req dto.FileTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request format: %v", err)
		utils.Fail(c, "invalid request format")
		return
	}

	file, err := h.fileRepo.GetFileByID(fileID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			utils.NotFound(c, "file not found")
			return
		}
		h.logger.Error("failed to get file: %v", err)
		utils.InternalError(c, "failed to get file")
		return
	}

	attached := 0
	for _, name := range req.Tags {
		tag, err := h.tagRepo.GetOrCreateTag(name)
		if err != nil {
			h.logger.Error("failed to resolve tag %s: %v", name, err)
			utils.InternalError(c, "failed to resolve tag")
			return
		}
		ok, err := h.tagRepo.AttachTag(file.ID, tag.ID)
		if err != nil {
			h.logger.Error("failed to attach tag %s: %v", name, err)
			utils.InternalError(c, "failed to attach tag")
			return
		}
		if ok {
			attached++
			h.appendTagAudit(model.ActionCreated, tag, file)
		}
	}

	utils.Success(c, gin.H{"attached": attached})
}

// RemoveTagsFromFile 批量从单个文件摘除标签，未知标签跳过
func (h *FileHandler) RemoveTagsFromFile(c *gin.Context) {
	fileID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || fileID <= 0 {
		utils.Fail(c, "invalid file id")
		return
	}

	var req dto.FileTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request format: %v", err)
		utils.Fail(c, "invalid request format")
		return
	}

	file, err := h.fileRepo.GetFileByID(fileID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			utils.NotFound(c, "file not found")
			return
		}
		h.logger.Error("failed to get file: %v", err)
		utils.InternalError(c, "failed to get file")
		return
	}

	detached := 0
	for _, name := range req.Tags {
		tag, err := h.tagRepo.GetTagByName(name)
		if err != nil {
			if errors.Is(err, errs.ErrRecordNotFound) {
				continue
			}
			h.logger.Error("failed to get tag %s: %v", name, err)
			utils.InternalError(c, "failed to get tag")
			return
		}
		ok, err := h.tagRepo.DetachTag(file.ID, tag.ID)
		if err != nil {
			h.logger.Error("failed to detach tag %s: %v", name, err)
			utils.InternalError(c, "failed to detach tag")
			return
		}
		if ok {
			detached++
			h.appendTagAudit(model.ActionDeleted, tag, file)
		}
	}

	utils.Success(c, gin.H{"detached": detached})
}

// AddTagToFiles 批量为多个文件附加同一标签，未索引的文件跳过
func (h *FileHandler) AddTagToFiles(c *gin.Context) {
	var req dto.TagFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request format: %v", err)
		utils.Fail(c, "invalid request format")
		return
	}

	tag, err := h.tagRepo.GetOrCreateTag(req.Tag)
	if err != nil {
		h.logger.Error("failed to resolve tag: %v", err)
		utils.InternalError(c, "failed to resolve tag")
		return
	}

	attached := 0
	for _, fileID := range req.FileIDs {
		file, err := h.fileRepo.GetFileByID(fileID)
		if err != nil {
			if errors.Is(err, errs.ErrRecordNotFound) {
				continue
			}
			h.logger.Error("failed to get file %d: %v", fileID, err)
			utils.InternalError(c, "failed to get file")
			return
		}
		ok, err := h.tagRepo.AttachTag(file.ID, tag.ID)
		if err != nil {
			h.logger.Error("failed to attach tag: %v", err)
			utils.InternalError(c, "failed to attach tag")
			return
		}
		if ok {
			attached++
			h.appendTagAudit(model.ActionCreated, tag, file)
		}
	}

	utils.Success(c, gin.H{"attached": attached})
}

// RemoveTagFromFiles 批量从多个文件摘除同一标签
func (h *FileHandler) RemoveTagFromFiles(c *gin.Context) {
	var req dto.TagFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request format: %v", err)
		utils.Fail(c, "invalid request format")
		return
	}

	tag, err := h.tagRepo.GetTagByName(req.Tag)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			utils.NotFound(c, "tag not found")
			return
		}
		h.logger.Error("failed to get tag: %v", err)
		utils.InternalError(c, "failed to get tag")
		return
	}

	detached := 0
	for _, fileID := range req.FileIDs {
		file, err := h.fileRepo.GetFileByID(fileID)
		if err != nil {
			if errors.Is(err, errs.ErrRecordNotFound) {
				continue
			}
			h.logger.Error("failed to get file %d: %v", fileID, err)
			utils.InternalError(c, "failed to get file")
			return
		}
		ok, err := h.tagRepo.DetachTag(file.ID, tag.ID)
		if err != nil {
			h.logger.Error("failed to detach tag: %v", err)
			utils.InternalError(c, "failed to detach tag")
			return
		}
		if ok {
			detached++
			h.appendTagAudit(model.ActionDeleted, tag, file)
		}
	}

	utils.Success(c, gin.H{"detached": detached})
}

// appendTagAudit 记录手工标签变更
func (h *FileHandler) appendTagAudit(action string, tag *model.Tag, file *model.File) {
	entry := &model.AuditLog{
		ActionType: action,
		ObjType:    model.ObjectTag,
		ObjID:      tag.ID,
		ObjName:    tag.Name,
		NewName:    file.FullPath(),
		WatcherID:  file.WatcherID,
	}
	if err := h.auditRepo.AppendEntry(entry); err != nil {
		h.logger.Warn("failed to append tag audit entry: %v", err)
	}
}
