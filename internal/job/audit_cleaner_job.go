// job/audit_cleaner_job.go - Audit log retention cleanup job
package job

import (
	"context"
	"time"

	"filetag-indexer/internal/repository"
	"filetag-indexer/pkg/logger"
)

// AuditCleanerJob 审计日志保留期清理任务
// 保留天数为0时表示永久保留，任务不做任何事
type AuditCleanerJob struct {
	auditRepo     repository.AuditRepository
	logger        logger.Logger
	retentionDays int
}

// NewAuditCleanerJob 创建审计日志清理任务
func NewAuditCleanerJob(auditRepo repository.AuditRepository, logger logger.Logger, retentionDays int) *AuditCleanerJob {
	return &AuditCleanerJob{
		auditRepo:     auditRepo,
		logger:        logger,
		retentionDays: retentionDays,
	}
}

// Start 启动审计日志清理任务
func (j *AuditCleanerJob) Start(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("recovered from panic in audit cleaner job: %v", r)
		}
	}()

	if j.retentionDays <= 0 {
		j.logger.Info("audit retention disabled, cleaner job not running")
		return
	}

	j.logger.Info("audit cleaner job started, retention: %d days", j.retentionDays)

	// 立即执行一次清理
	j.executeCleanup()

	// 每天22:00执行
	for {
		nextRun := j.getNextRunTime()

		j.logger.Info("next audit cleanup scheduled at: %s", nextRun.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			j.logger.Info("audit cleaner job stopped")
			return
		case <-time.After(time.Until(nextRun)):
			j.executeCleanup()
		}
	}
}

// getNextRunTime 计算下一个22:00的运行时间
func (j *AuditCleanerJob) getNextRunTime() time.Time {
	now := time.Now()

	nextRun := time.Date(now.Year(), now.Month(), now.Day(), 22, 0, 0, 0, now.Location())
	if now.After(nextRun) {
		nextRun = nextRun.Add(24 * time.Hour)
	}

	return nextRun
}

// executeCleanup 执行清理操作
func (j *AuditCleanerJob) executeCleanup() {
	cutoff := time.Now().AddDate(0, 0, -j.retentionDays)

	deleted, err := j.auditRepo.DeleteOlderThan(cutoff)
	if err != nil {
		j.logger.Error("failed to delete expired audit entries: %v", err)
		return
	}

	if deleted > 0 {
		j.logger.Info("deleted %d audit entries older than %s", deleted, cutoff.Format(time.RFC3339))
	}
}
