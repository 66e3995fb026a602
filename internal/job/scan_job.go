package job

import (
	"context"
	"sync"
	"time"

	"filetag-indexer/internal/repository"
	"filetag-indexer/internal/service"
	"filetag-indexer/internal/utils"
	"filetag-indexer/pkg/logger"
)

// ScanJob 周期性目录重扫任务
// 补回被操作系统合并或丢弃的事件，是索引漂移的恢复手段
type ScanJob struct {
	index       service.IndexService
	watcherRepo repository.WatcherRepository
	logger      logger.Logger
	interval    time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewScanJob 创建目录重扫任务
func NewScanJob(
	index service.IndexService,
	watcherRepo repository.WatcherRepository,
	logger logger.Logger,
	interval time.Duration,
) *ScanJob {
	ctx, cancel := context.WithCancel(context.Background())
	return &ScanJob{
		index:       index,
		watcherRepo: watcherRepo,
		logger:      logger,
		interval:    interval,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start 启动重扫任务
func (j *ScanJob) Start() {
	j.logger.Info("starting rescan job with interval: %v", j.interval)

	// 立即执行一次扫描
	j.scanWatchers()

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-j.ctx.Done():
				return
			case <-ticker.C:
				j.scanWatchers()
			}
		}
	}()
}

// Stop 停止重扫任务
func (j *ScanJob) Stop() {
	j.logger.Info("stopping rescan job...")
	j.cancel()
	j.wg.Wait()
	j.logger.Info("rescan job stopped")
}

// ScanOnce 立即对全部启用的监视器执行一轮扫描
func (j *ScanJob) ScanOnce() {
	j.scanWatchers()
}

// scanWatchers 扫描全部启用的监视器
func (j *ScanJob) scanWatchers() {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("recovered from panic in rescan job: %v", r)
		}
	}()

	select {
	case <-j.ctx.Done():
		return
	default:
	}

	sessionID, _ := utils.GenerateUUID()
	watchers, err := j.watcherRepo.ListEnabledWatchers()
	if err != nil {
		j.logger.Error("rescan %s: failed to list watchers: %v", sessionID, err)
		return
	}
	if len(watchers) == 0 {
		return
	}

	j.logger.Info("rescan %s: scanning %d watchers", sessionID, len(watchers))
	start := time.Now()

	for _, watcher := range watchers {
		select {
		case <-j.ctx.Done():
			return
		default:
		}

		loaded, err := j.index.LoadWatcherFiles(watcher)
		if err != nil {
			j.logger.Error("rescan %s: watcher %s failed: %v", sessionID, watcher.Name, err)
			continue
		}
		if loaded > 0 {
			j.logger.Info("rescan %s: watcher %s recovered %d files", sessionID, watcher.Name, loaded)
		}
	}

	j.logger.Info("rescan %s: completed in %v", sessionID, time.Since(start))
}
