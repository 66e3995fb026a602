// internal/handler/watcher.go - 监视器管理API
package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"filetag-indexer/internal/daemon"
	"filetag-indexer/internal/dto"
	"filetag-indexer/internal/errs"
	"filetag-indexer/internal/model"
	"filetag-indexer/internal/repository"
	"filetag-indexer/internal/service"
	"filetag-indexer/internal/utils"
	"filetag-indexer/pkg/logger"
)

// WatcherHandler 监视器管理处理器
type WatcherHandler struct {
	index       service.IndexService
	watcherRepo repository.WatcherRepository
	fileRepo    repository.FileRepository
	daemon      *daemon.Daemon
	logger      logger.Logger
}

// NewWatcherHandler 创建监视器处理器
func NewWatcherHandler(
	index service.IndexService,
	watcherRepo repository.WatcherRepository,
	fileRepo repository.FileRepository,
	d *daemon.Daemon,
	logger logger.Logger,
) *WatcherHandler {
	return &WatcherHandler{
		index:       index,
		watcherRepo: watcherRepo,
		fileRepo:    fileRepo,
		daemon:      d,
		logger:      logger,
	}
}

// ListWatchers 列出全部监视器
func (h *WatcherHandler) ListWatchers(c *gin.Context) {
	watchers, err := h.watcherRepo.ListWatchers()
	if err != nil {
		h.logger.Error("failed to list watchers: %v", err)
		utils.InternalError(c, "failed to list watchers")
		return
	}

	responses := make([]dto.WatcherResponse, 0, len(watchers))
	for _, watcher := range watchers {
		count, err := h.fileRepo.CountFilesByWatcher(watcher.ID)
		if err != nil {
			h.logger.Error("failed to count watcher files: %v", err)
			utils.InternalError(c, "failed to count watcher files")
			return
		}
		responses = append(responses, toWatcherResponse(watcher, count, h.daemon.IsWatcherRunning(watcher.ID)))
	}

	utils.Success(c, responses)
}

// GetWatcher 获取单个监视器
func (h *WatcherHandler) GetWatcher(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	watcher, err := h.watcherRepo.GetWatcherByID(id)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			utils.NotFound(c, "watcher not found")
			return
		}
		h.logger.Error("failed to get watcher: %v", err)
		utils.InternalError(c, "failed to get watcher")
		return
	}

	count, err := h.fileRepo.CountFilesByWatcher(watcher.ID)
	if err != nil {
		h.logger.Error("failed to count watcher files: %v", err)
		utils.InternalError(c, "failed to count watcher files")
		return
	}

	utils.Success(c, toWatcherResponse(watcher, count, h.daemon.IsWatcherRunning(watcher.ID)))
}

// CreateWatcher 注册监视器，执行初始目录载入并启动调和器
func (h *WatcherHandler) CreateWatcher(c *gin.Context) {
	var req dto.CreateWatcherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request format: %v", err)
		utils.Fail(c, "invalid request format")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	watcher := &model.Watcher{
		Name:       req.Name,
		Path:       req.Path,
		Filter:     req.Filter,
		Enabled:    enabled,
		IncludeSub: req.IncludeSub,
		BufferSize: req.BufferSize,
	}

	if err := h.index.InstallWatcher(watcher); err != nil {
		if errors.Is(err, errs.ErrMutationConflict) {
			utils.Conflict(c, "a watcher for this path already exists")
			return
		}
		h.logger.Error("failed to install watcher: %v", err)
		utils.InternalError(c, "failed to install watcher")
		return
	}

	loaded, err := h.index.LoadWatcherFiles(watcher)
	if err != nil {
		h.logger.Error("initial load failed for watcher %s: %v", watcher.Name, err)
	}
	h.logger.Info("watcher %s installed, loaded %d files", watcher.Name, loaded)

	if watcher.Enabled {
		if err := h.daemon.StartWatcher(watcher); err != nil {
			h.logger.Error("failed to start watcher %s: %v", watcher.Name, err)
		}
	}

	utils.Success(c, toWatcherResponse(watcher, loaded, h.daemon.IsWatcherRunning(watcher.ID)))
}

// DeleteWatcher 停止并注销监视器，级联删除其文件记录
func (h *WatcherHandler) DeleteWatcher(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.daemon.StopWatcher(id); err != nil {
		h.logger.Warn("failed to stop watcher %d: %v", id, err)
	}

	if err := h.index.UninstallWatcher(id); err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			utils.NotFound(c, "watcher not found")
			return
		}
		h.logger.Error("failed to uninstall watcher: %v", err)
		utils.InternalError(c, "failed to uninstall watcher")
		return
	}

	utils.Success(c, nil)
}

// RescanWatcher 立即补扫监视器根目录
func (h *WatcherHandler) RescanWatcher(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	watcher, err := h.watcherRepo.GetWatcherByID(id)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			utils.NotFound(c, "watcher not found")
			return
		}
		h.logger.Error("failed to get watcher: %v", err)
		utils.InternalError(c, "failed to get watcher")
		return
	}

	loaded, err := h.index.LoadWatcherFiles(watcher)
	if err != nil {
		h.logger.Error("rescan failed for watcher %s: %v", watcher.Name, err)
		utils.InternalError(c, "rescan failed")
		return
	}

	utils.Success(c, gin.H{"loaded": loaded})
}

// PurgeWatcherFiles 清空监视器的文件索引
func (h *WatcherHandler) PurgeWatcherFiles(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	deleted, err := h.index.PurgeWatcherFiles(id)
	if err != nil {
		h.logger.Error("failed to purge watcher files: %v", err)
		utils.InternalError(c, "failed to purge watcher files")
		return
	}

	utils.Success(c, gin.H{"deleted": deleted})
}

// PurgeWatcherLogs 清空监视器的审计日志
func (h *WatcherHandler) PurgeWatcherLogs(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	deleted, err := h.index.PurgeWatcherLogs(id)
	if err != nil {
		h.logger.Error("failed to purge watcher logs: %v", err)
		utils.InternalError(c, "failed to purge watcher logs")
		return
	}

	utils.Success(c, gin.H{"deleted": deleted})
}

// parseIDParam 解析路径中的数字ID
func parseIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.Fail(c, "invalid id")
		return 0, false
	}
	return id, true
}

// toWatcherResponse 组装监视器响应
func toWatcherResponse(watcher *model.Watcher, filesCount int, running bool) dto.WatcherResponse {
	return dto.WatcherResponse{
		ID:         watcher.ID,
		Name:       watcher.Name,
		Path:       watcher.Path,
		Filter:     watcher.Filter,
		Enabled:    watcher.Enabled,
		IncludeSub: watcher.IncludeSub,
		BufferSize: watcher.BufferSize,
		Active:     running,
		FilesCount: filesCount,
	}
}
