// internal/handler/audit.go - 审计日志查询API
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"filetag-indexer/internal/repository"
	"filetag-indexer/internal/utils"
	"filetag-indexer/pkg/logger"
)

const defaultAuditLimit = 100

// AuditHandler 审计日志处理器
type AuditHandler struct {
	auditRepo repository.AuditRepository
	logger    logger.Logger
}

// NewAuditHandler 创建审计日志处理器
func NewAuditHandler(auditRepo repository.AuditRepository, logger logger.Logger) *AuditHandler {
	return &AuditHandler{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// ListAuditLogs 列出审计日志，可按监视器过滤，按时间倒序
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.Fail(c, "invalid limit")
			return
		}
		limit = parsed
	}

	if raw := c.Query("watcherId"); raw != "" {
		watcherID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || watcherID <= 0 {
			utils.Fail(c, "invalid watcherId")
			return
		}
		entries, err := h.auditRepo.ListByWatcher(watcherID, limit)
		if err != nil {
			h.logger.Error("failed to list audit entries: %v", err)
			utils.InternalError(c, "failed to list audit entries")
			return
		}
		utils.Success(c, entries)
		return
	}

	entries, err := h.auditRepo.ListRecent(limit)
	if err != nil {
		h.logger.Error("failed to list audit entries: %v", err)
		utils.InternalError(c, "failed to list audit entries")
		return
	}
	utils.Success(c, entries)
}
