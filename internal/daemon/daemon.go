// daemon/daemon.go - 守护进程
package daemon

import (
	"context"
	"fmt"
	"sync"

	"filetag-indexer/internal/job"
	"filetag-indexer/internal/model"
	"filetag-indexer/internal/repository"
	"filetag-indexer/internal/service"
	"filetag-indexer/pkg/logger"
	"filetag-indexer/pkg/metrics"
)

// watcherRuntime 单个运行中监视器的资源
type watcherRuntime struct {
	watcher  *model.Watcher
	notifier repository.ChangeNotifier
	cancel   context.CancelFunc
}

// Daemon 守护进程，编排每监视器的调和器与后台任务
type Daemon struct {
	watcherRepo  repository.WatcherRepository
	auditRepo    repository.AuditRepository
	index        service.IndexService
	scanJob      *job.ScanJob
	auditCleaner *job.AuditCleanerJob
	metrics      *metrics.Metrics
	logger       logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	runtimes map[int64]*watcherRuntime
}

// NewDaemon 创建守护进程
func NewDaemon(
	watcherRepo repository.WatcherRepository,
	auditRepo repository.AuditRepository,
	index service.IndexService,
	scanJob *job.ScanJob,
	auditCleaner *job.AuditCleanerJob,
	m *metrics.Metrics,
	logger logger.Logger,
) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		watcherRepo:  watcherRepo,
		auditRepo:    auditRepo,
		index:        index,
		scanJob:      scanJob,
		auditCleaner: auditCleaner,
		metrics:      m,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		runtimes:     make(map[int64]*watcherRuntime),
	}
}

// Start 启动全部启用的监视器与后台任务
func (d *Daemon) Start() error {
	d.logger.Info("守护进程已启动")

	watchers, err := d.watcherRepo.ListEnabledWatchers()
	if err != nil {
		return fmt.Errorf("failed to list enabled watchers: %w", err)
	}

	for _, watcher := range watchers {
		if err := d.StartWatcher(watcher); err != nil {
			d.logger.Error("启动监视器失败 %s: %v", watcher.Name, err)
		}
	}

	d.scanJob.Start()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.auditCleaner.Start(d.ctx)
	}()

	return nil
}

// StartWatcher 为单个监视器启动通知源与调和器
func (d *Daemon) StartWatcher(watcher *model.Watcher) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, running := d.runtimes[watcher.ID]; running {
		return nil
	}

	notifier, err := repository.NewChangeNotifier(watcher, d.logger)
	if err != nil {
		return fmt.Errorf("failed to create notifier for %s: %w", watcher.Path, err)
	}

	ctx, cancel := context.WithCancel(d.ctx)
	d.runtimes[watcher.ID] = &watcherRuntime{
		watcher:  watcher,
		notifier: notifier,
		cancel:   cancel,
	}

	reconciler := service.NewReconciler(watcher, d.index, d.metrics, d.logger)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		reconciler.Run(ctx, notifier.Events())
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-notifier.Errors():
				if !ok {
					return
				}
				d.logger.Error("监视器 %s 通知源错误: %v", watcher.Name, err)
			}
		}
	}()

	if err := d.watcherRepo.SetWatcherActive(watcher.ID, true); err != nil {
		d.logger.Warn("设置监视器活动状态失败 %s: %v", watcher.Name, err)
	}
	watcher.Active = true

	d.logAudit(watcher, model.ActionStarted, "watcher started")
	d.logger.Info("监视器已启动: %s (%s)", watcher.Name, watcher.Path)

	return nil
}

// StopWatcher 停止单个监视器
func (d *Daemon) StopWatcher(watcherID int64) error {
	d.mu.Lock()
	runtime, running := d.runtimes[watcherID]
	if running {
		delete(d.runtimes, watcherID)
	}
	d.mu.Unlock()

	if !running {
		return nil
	}

	// 先关通知源，不再接收新事件，在途处理随通道结束自然收尾
	if err := runtime.notifier.Close(); err != nil {
		d.logger.Warn("关闭通知源失败 %s: %v", runtime.watcher.Name, err)
	}
	runtime.cancel()

	if err := d.watcherRepo.SetWatcherActive(watcherID, false); err != nil {
		d.logger.Warn("设置监视器活动状态失败 %s: %v", runtime.watcher.Name, err)
	}
	runtime.watcher.Active = false

	d.logAudit(runtime.watcher, model.ActionStopped, "watcher stopped")
	d.logger.Info("监视器已停止: %s", runtime.watcher.Name)

	return nil
}

// IsWatcherRunning 监视器是否在运行
func (d *Daemon) IsWatcherRunning(watcherID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, running := d.runtimes[watcherID]
	return running
}

// Stop 停止全部监视器与后台任务
func (d *Daemon) Stop() {
	d.logger.Info("守护进程停止中...")

	d.mu.Lock()
	ids := make([]int64, 0, len(d.runtimes))
	for id := range d.runtimes {
		ids = append(ids, id)
	}
	d.mu.Unlock()

	for _, id := range ids {
		if err := d.StopWatcher(id); err != nil {
			d.logger.Warn("停止监视器失败 %d: %v", id, err)
		}
	}

	d.scanJob.Stop()
	d.cancel()
	d.wg.Wait()

	d.logger.Info("守护进程已停止")
}

// logAudit 记录监视器生命周期审计
func (d *Daemon) logAudit(watcher *model.Watcher, action, comment string) {
	entry := &model.AuditLog{
		ActionType: action,
		ObjType:    model.ObjectWatcher,
		ObjID:      watcher.ID,
		ObjName:    watcher.Name,
		NewName:    watcher.Path,
		Comment:    comment,
		WatcherID:  watcher.ID,
	}
	if err := d.auditRepo.AppendEntry(entry); err != nil {
		d.logger.Warn("记录监视器审计失败: %v", err)
	}
}
