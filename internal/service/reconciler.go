package service

import (
	"context"
	"strings"
	"sync"

	"filetag-indexer/internal/model"
	"filetag-indexer/internal/repository"
	"filetag-indexer/pkg/logger"
	"filetag-indexer/pkg/metrics"
)

// Reconciler 单个监视器的事件调和状态机
// 将原始文件系统事件折叠为幂等的索引变更意图，
// 编辑器的两段式原子保存(写临时名再改回原名)折叠为一次更新
type Reconciler interface {
	// HandleEvent 处理单个原始事件
	HandleEvent(event model.FileEvent)
	// Run 消费事件通道直至其关闭或上下文取消
	Run(ctx context.Context, events <-chan model.FileEvent)
}

// reconciler 调和器实现
// 瞬态的待定重命名对为本实例独占，不与其他监视器共享
type reconciler struct {
	watcher *model.Watcher
	index   IndexService
	metrics *metrics.Metrics
	logger  logger.Logger

	mu             sync.Mutex
	pendingOldName string
	pendingOldPath string
	pendingNewName string
	pendingNewPath string
}

// NewReconciler 为监视器创建调和器
func NewReconciler(watcher *model.Watcher, index IndexService, m *metrics.Metrics, logger logger.Logger) Reconciler {
	return &reconciler{
		watcher: watcher,
		index:   index,
		metrics: m,
		logger:  logger,
	}
}

// Run 消费事件通道直至其关闭或上下文取消
func (r *reconciler) Run(ctx context.Context, events <-chan model.FileEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			r.HandleEvent(event)
		}
	}
}

// HandleEvent 处理单个原始事件
// 每个意图在下一个事件处理前同步落库，单监视器内严格保序
func (r *reconciler) HandleEvent(event model.FileEvent) {
	r.metrics.EventReceived(r.watcher.Name)

	// 目录事件一律忽略，索引只跟踪文件
	if event.IsDir {
		r.metrics.EventDropped(r.watcher.Name, "directory")
		return
	}

	if !repository.InScope(r.watcher.Path, event.FullPath, r.watcher.IncludeSub) {
		// 监视器拆除后的尾部事件属于正常情况，静默丢弃
		r.metrics.EventDropped(r.watcher.Name, "out_of_scope")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Type {
	case model.EventTypeRenamed:
		r.handleRenamed(event)
	case model.EventTypeCreated:
		r.handleCreated(event)
	case model.EventTypeChanged:
		r.handleChanged(event)
	case model.EventTypeDeleted:
		r.handleDeleted(event)
	default:
		r.metrics.EventDropped(r.watcher.Name, "unknown_type")
	}
}

// handleRenamed 处理重命名事件
func (r *reconciler) handleRenamed(event model.FileEvent) {
	renamedToScratch := strings.HasPrefix(event.Name, event.OldName) && event.Name != event.OldName
	// 临时名一半可能已被删除事件清除，回名判定只依赖原始名一半
	renamedBack := event.Name == r.pendingOldName && event.FullPath == r.pendingOldPath &&
		(event.OldFullPath == r.pendingNewPath || r.pendingNewPath == "")

	switch {
	case renamedBack:
		// 原子保存的第二段：按原始路径落一次更新，不产生删除或新建
		if err := r.index.UpdateFile(r.watcher, event.FullPath); err != nil {
			r.logger.Error("Failed to apply atomic save update for %s: %v", event.FullPath, err)
		}
		r.clearPending()
	case renamedToScratch:
		// 原子保存的第一段：记住待定对，暂不变更索引
		r.pendingOldName = event.OldName
		r.pendingOldPath = event.OldFullPath
		r.pendingNewName = event.Name
		r.pendingNewPath = event.FullPath
	default:
		if err := r.index.RenameFile(r.watcher, event.OldFullPath, event.FullPath); err != nil {
			r.logger.Error("Failed to apply rename %s -> %s: %v", event.OldFullPath, event.FullPath, err)
		}
	}
}

// handleCreated 处理创建事件
func (r *reconciler) handleCreated(event model.FileEvent) {
	if r.matchesPending(event.FullPath) {
		r.metrics.EventDropped(r.watcher.Name, "pending_rename")
		return
	}
	if isScratchName(event.Name) {
		r.metrics.EventDropped(r.watcher.Name, "scratch")
		return
	}

	if err := r.index.AddFile(r.watcher, event.FullPath); err != nil {
		r.logger.Error("Failed to apply create for %s: %v", event.FullPath, err)
	}
}

// handleChanged 处理写入事件，待定重命名期间的写入全部视为噪声
func (r *reconciler) handleChanged(event model.FileEvent) {
	if r.pendingOldPath != "" || r.pendingNewPath != "" {
		r.metrics.EventDropped(r.watcher.Name, "pending_rename")
		return
	}
	if isScratchName(event.Name) {
		r.metrics.EventDropped(r.watcher.Name, "scratch")
		return
	}

	if err := r.index.UpdateFile(r.watcher, event.FullPath); err != nil {
		r.logger.Error("Failed to apply update for %s: %v", event.FullPath, err)
	}
}

// handleDeleted 处理删除事件
func (r *reconciler) handleDeleted(event model.FileEvent) {
	if event.FullPath == r.pendingNewPath && r.pendingNewPath != "" {
		// 中间临时产物被清理，只清除待定对的新名一半
		r.pendingNewName = ""
		r.pendingNewPath = ""
		r.metrics.EventDropped(r.watcher.Name, "pending_rename")
		return
	}
	if isScratchName(event.Name) {
		r.metrics.EventDropped(r.watcher.Name, "scratch")
		return
	}

	if err := r.index.DeleteFile(r.watcher, event.FullPath); err != nil {
		r.logger.Error("Failed to apply delete for %s: %v", event.FullPath, err)
	}
}

// matchesPending 路径是否命中待定重命名对的任意一半
func (r *reconciler) matchesPending(fullPath string) bool {
	if fullPath == "" {
		return false
	}
	return fullPath == r.pendingOldPath || fullPath == r.pendingNewPath
}

// clearPending 清除待定重命名对
func (r *reconciler) clearPending() {
	r.pendingOldName = ""
	r.pendingOldPath = ""
	r.pendingNewName = ""
	r.pendingNewPath = ""
}

// isScratchName 文件名是否以已知的临时后缀结尾
func isScratchName(name string) bool {
	for _, suffix := range model.ScratchSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
