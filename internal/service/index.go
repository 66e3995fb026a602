package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"filetag-indexer/internal/config"
	"filetag-indexer/internal/errs"
	"filetag-indexer/internal/model"
	"filetag-indexer/internal/repository"
	"filetag-indexer/internal/utils"
	"filetag-indexer/pkg/logger"
	"filetag-indexer/pkg/metrics"
)

// IndexService 索引变更服务，将变更意图落为持久化记录与审计日志
// 每次文件变更完成后同步触发自动标签器重估
type IndexService interface {
	// FindWatcherByPath 根据目录路径查找监视器，未找到返回ErrRecordNotFound
	FindWatcherByPath(path string) (*model.Watcher, error)
	// AddFile 为监视器新增文件记录，已存在时为幂等空操作
	AddFile(watcher *model.Watcher, fullPath string) error
	// UpdateFile 更新已索引文件的元数据，未索引时忽略
	UpdateFile(watcher *model.Watcher, fullPath string) error
	// RenameFile 重命名已索引文件；目标已被占用时跳过变更，保持原记录
	RenameFile(watcher *model.Watcher, oldFullPath, newFullPath string) error
	// DeleteFile 删除已索引文件的记录，未索引时忽略
	DeleteFile(watcher *model.Watcher, fullPath string) error
	// InstallWatcher 注册新的监视器，路径重复时返回ErrMutationConflict
	InstallWatcher(watcher *model.Watcher) error
	// UninstallWatcher 注销监视器并级联删除其文件记录，审计日志保留
	UninstallWatcher(id int64) error
	// LoadWatcherFiles 扫描监视器根目录，将缺失的文件载入索引，返回载入数量
	LoadWatcherFiles(watcher *model.Watcher) (int, error)
	// PurgeWatcherFiles 清空监视器的全部文件记录，返回删除数量
	PurgeWatcherFiles(watcherID int64) (int64, error)
	// PurgeWatcherLogs 清空监视器的全部审计日志，返回删除数量
	PurgeWatcherLogs(watcherID int64) (int64, error)
	// SearchFiles 用命名查询的谓词在索引中筛选文件
	SearchFiles(queryID int64) ([]*model.File, error)
}

// indexService 索引变更服务实现
type indexService struct {
	watcherRepo repository.WatcherRepository
	fileRepo    repository.FileRepository
	auditRepo   repository.AuditRepository
	queryRepo   repository.QueryRepository
	filters     FilterService
	tagger      TaggerService
	metrics     *metrics.Metrics
	logger      logger.Logger
}

// NewIndexService 创建索引变更服务
func NewIndexService(
	watcherRepo repository.WatcherRepository,
	fileRepo repository.FileRepository,
	auditRepo repository.AuditRepository,
	queryRepo repository.QueryRepository,
	filters FilterService,
	tagger TaggerService,
	m *metrics.Metrics,
	logger logger.Logger,
) IndexService {
	return &indexService{
		watcherRepo: watcherRepo,
		fileRepo:    fileRepo,
		auditRepo:   auditRepo,
		queryRepo:   queryRepo,
		filters:     filters,
		tagger:      tagger,
		metrics:     m,
		logger:      logger,
	}
}

// FindWatcherByPath 根据目录路径查找监视器
func (s *indexService) FindWatcherByPath(path string) (*model.Watcher, error) {
	return s.watcherRepo.GetWatcherByPath(filepath.Clean(path))
}

// statMetadata 从文件系统采集文件元数据
// 创建时间不可移植获取，以首次观察到的修改时间代替
func statMetadata(fullPath string) (repository.FileMetadata, error) {
	info, err := os.Stat(fullPath)
	if err != nil {
		return repository.FileMetadata{}, fmt.Errorf("failed to stat %s: %w", fullPath, err)
	}
	return repository.FileMetadata{
		Size:    info.Size(),
		Created: info.ModTime(),
		Changed: info.ModTime(),
	}, nil
}

// AddFile 为监视器新增文件记录，已存在时为幂等空操作
func (s *indexService) AddFile(watcher *model.Watcher, fullPath string) error {
	exists, err := s.fileRepo.FileExists(fullPath)
	if err != nil {
		return err
	}
	if exists {
		s.logger.Debug("File already indexed, skipping: %s", fullPath)
		return nil
	}

	meta, err := statMetadata(fullPath)
	if err != nil {
		return err
	}

	dir, name := utils.SplitFullPath(fullPath)
	file := &model.File{
		Path:      dir,
		Name:      name,
		Ext:       utils.FileExt(name),
		Size:      meta.Size,
		Created:   meta.Created,
		Changed:   meta.Changed,
		WatcherID: watcher.ID,
	}
	if err := s.fileRepo.CreateFile(file); err != nil {
		return err
	}
	s.metrics.IntentApplied(model.ActionCreated)

	s.appendAudit(&model.AuditLog{
		ActionType: model.ActionCreated,
		ObjType:    model.ObjectFile,
		ObjID:      file.ID,
		ObjName:    fullPath,
		WatcherID:  watcher.ID,
	})

	return s.reevaluate(file)
}

// UpdateFile 更新已索引文件的元数据，未索引时忽略
func (s *indexService) UpdateFile(watcher *model.Watcher, fullPath string) error {
	exists, err := s.fileRepo.FileExists(fullPath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	meta, err := statMetadata(fullPath)
	if err != nil {
		return err
	}
	if err := s.fileRepo.UpdateFile(fullPath, meta); err != nil {
		return err
	}
	s.metrics.IntentApplied(model.ActionUpdated)

	file, err := s.fileRepo.GetFileByPath(fullPath)
	if err != nil {
		return err
	}

	s.appendAudit(&model.AuditLog{
		ActionType: model.ActionUpdated,
		ObjType:    model.ObjectFile,
		ObjID:      file.ID,
		ObjName:    fullPath,
		WatcherID:  watcher.ID,
	})

	return s.reevaluate(file)
}

// RenameFile 重命名已索引文件，跨目录移动同样保持记录身份不变
// 目标路径已被其他记录占用时跳过变更
func (s *indexService) RenameFile(watcher *model.Watcher, oldFullPath, newFullPath string) error {
	exists, err := s.fileRepo.FileExists(oldFullPath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	meta, err := statMetadata(newFullPath)
	if err != nil {
		return err
	}

	file, err := s.fileRepo.RenameFile(oldFullPath, newFullPath, meta)
	if err != nil {
		if errors.Is(err, errs.ErrMutationConflict) {
			s.logger.Warn("Rename target already indexed, skipping: %s -> %s", oldFullPath, newFullPath)
			return nil
		}
		return err
	}
	s.metrics.IntentApplied(model.ActionRenamed)

	s.appendAudit(&model.AuditLog{
		ActionType: model.ActionRenamed,
		ObjType:    model.ObjectFile,
		ObjID:      file.ID,
		ObjName:    oldFullPath,
		NewName:    newFullPath,
		WatcherID:  watcher.ID,
	})

	return s.reevaluate(file)
}

// DeleteFile 删除已索引文件的记录，未索引时忽略
func (s *indexService) DeleteFile(watcher *model.Watcher, fullPath string) error {
	file, err := s.fileRepo.DeleteFile(fullPath)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	s.metrics.IntentApplied(model.ActionDeleted)

	s.appendAudit(&model.AuditLog{
		ActionType: model.ActionDeleted,
		ObjType:    model.ObjectFile,
		ObjID:      file.ID,
		ObjName:    fullPath,
		WatcherID:  watcher.ID,
	})

	return nil
}

// InstallWatcher 注册新的监视器
func (s *indexService) InstallWatcher(watcher *model.Watcher) error {
	watcher.Path = filepath.Clean(watcher.Path)
	if err := s.watcherRepo.CreateWatcher(watcher); err != nil {
		return err
	}

	s.appendAudit(&model.AuditLog{
		ActionType: model.ActionInstalled,
		ObjType:    model.ObjectWatcher,
		ObjID:      watcher.ID,
		ObjName:    watcher.Name,
		NewName:    watcher.Path,
		WatcherID:  watcher.ID,
	})

	return nil
}

// UninstallWatcher 注销监视器并级联删除其文件记录
func (s *indexService) UninstallWatcher(id int64) error {
	watcher, err := s.watcherRepo.GetWatcherByID(id)
	if err != nil {
		return err
	}

	if err := s.watcherRepo.DeleteWatcher(id); err != nil {
		return err
	}

	s.appendAudit(&model.AuditLog{
		ActionType: model.ActionUninstalled,
		ObjType:    model.ObjectWatcher,
		ObjID:      watcher.ID,
		ObjName:    watcher.Name,
		NewName:    watcher.Path,
		WatcherID:  watcher.ID,
	})

	return nil
}

// LoadWatcherFiles 扫描监视器根目录，将缺失的文件载入索引
func (s *indexService) LoadWatcherFiles(watcher *model.Watcher) (int, error) {
	scanConfig := config.GetClientConfig().Scan
	folderIgnore := ignore.CompileIgnoreLines(scanConfig.FolderIgnorePatterns...)
	root := filepath.Clean(watcher.Path)

	loaded := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.logger.Warn("Skipping unreadable path %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !watcher.IncludeSub {
				return filepath.SkipDir
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr == nil && folderIgnore.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			if utils.IsHiddenName(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if utils.IsHiddenName(d.Name()) || !matchesNameFilter(watcher.Filter, d.Name()) {
			return nil
		}
		if loaded >= scanConfig.MaxFileCount {
			s.logger.Warn("Watcher %s reached max file count %d, stopping scan",
				watcher.Name, scanConfig.MaxFileCount)
			return filepath.SkipDir
		}

		if err := s.AddFile(watcher, path); err != nil {
			s.logger.Error("Failed to index %s during scan: %v", path, err)
			return nil
		}
		loaded++
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	return loaded, nil
}

// PurgeWatcherFiles 清空监视器的全部文件记录
func (s *indexService) PurgeWatcherFiles(watcherID int64) (int64, error) {
	return s.fileRepo.DeleteFilesByWatcher(watcherID)
}

// PurgeWatcherLogs 清空监视器的全部审计日志
func (s *indexService) PurgeWatcherLogs(watcherID int64) (int64, error) {
	return s.auditRepo.DeleteByWatcher(watcherID)
}

// SearchFiles 用命名查询的谓词在索引中筛选文件
func (s *indexService) SearchFiles(queryID int64) ([]*model.File, error) {
	query, err := s.queryRepo.GetQueryByID(queryID)
	if err != nil {
		return nil, err
	}

	predicate, err := s.filters.CompileQuery(query)
	if err != nil {
		return nil, err
	}

	watchers, err := s.watcherRepo.ListWatchers()
	if err != nil {
		return nil, err
	}

	var matched []*model.File
	for _, watcher := range watchers {
		files, err := s.fileRepo.ListFilesByWatcher(watcher.ID)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if err := s.fileRepo.LoadTagsJoin(file); err != nil {
				return nil, err
			}
			if predicate(file) {
				matched = append(matched, file)
			}
		}
	}

	return matched, nil
}

// reevaluate 触发自动标签器重估，受全局开关控制
func (s *indexService) reevaluate(file *model.File) error {
	if !config.GetClientConfig().Tagging.Enabled {
		return nil
	}
	return s.tagger.ReevaluateFile(file)
}

// appendAudit 追加审计日志，失败只告警不影响主流程
func (s *indexService) appendAudit(entry *model.AuditLog) {
	if err := s.auditRepo.AppendEntry(entry); err != nil {
		s.logger.Warn("Failed to append audit entry: %v", err)
	}
}

// matchesNameFilter 判断文件名是否通过监视器的名称过滤
func matchesNameFilter(pattern, name string) bool {
	if pattern == "" || pattern == "*" || pattern == "*.*" {
		return true
	}
	matched, err := filepath.Match(pattern, name)
	if err != nil {
		return strings.Contains(name, strings.Trim(pattern, "*"))
	}
	return matched
}
