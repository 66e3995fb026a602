package service

import (
	"fmt"

	"filetag-indexer/internal/model"
	"filetag-indexer/internal/repository"
	"filetag-indexer/pkg/logger"
	"filetag-indexer/pkg/metrics"
)

// TaggerService 自动标签器求值与应用服务
type TaggerService interface {
	// InScope 判断文件是否落入标签器作用域
	// 绑定按声明顺序左结合求值，首个绑定的谓词值作为初始结果；无绑定恒为假
	InScope(tagger *model.AutoTagger, file *model.File) (bool, error)
	// ApplyTagger 对单个文件应用标签器：在作用域内补齐绑定标签，
	// 离开作用域时仅摘除本标签器绑定的标签；实际变更才写审计日志
	ApplyTagger(tagger *model.AutoTagger, file *model.File) (bool, error)
	// ReevaluateFile 对文件重新应用全部标签器，索引变更后调用
	ReevaluateFile(file *model.File) error
}

// taggerService 标签器服务实现
type taggerService struct {
	filters    FilterService
	fileRepo   repository.FileRepository
	tagRepo    repository.TagRepository
	taggerRepo repository.TaggerRepository
	auditRepo  repository.AuditRepository
	metrics    *metrics.Metrics
	logger     logger.Logger
}

// NewTaggerService 创建标签器服务
func NewTaggerService(
	filters FilterService,
	fileRepo repository.FileRepository,
	tagRepo repository.TagRepository,
	taggerRepo repository.TaggerRepository,
	auditRepo repository.AuditRepository,
	m *metrics.Metrics,
	logger logger.Logger,
) TaggerService {
	return &taggerService{
		filters:    filters,
		fileRepo:   fileRepo,
		tagRepo:    tagRepo,
		taggerRepo: taggerRepo,
		auditRepo:  auditRepo,
		metrics:    m,
		logger:     logger,
	}
}

// InScope 判断文件是否落入标签器作用域
func (s *taggerService) InScope(tagger *model.AutoTagger, file *model.File) (bool, error) {
	if len(tagger.Bindings) == 0 {
		return false, nil
	}

	var result bool
	for i, binding := range tagger.Bindings {
		if binding.Query == nil {
			return false, fmt.Errorf("tagger %q binding %d has no query loaded", tagger.Name, binding.ID)
		}

		predicate, err := s.filters.CompileQuery(binding.Query)
		if err != nil {
			return false, fmt.Errorf("tagger %q: %w", tagger.Name, err)
		}
		matched := predicate(file)

		if i == 0 {
			// 首个绑定直接充当初始结果，其逻辑操作符不参与组合
			result = matched
			continue
		}

		switch binding.Logic {
		case model.LogicOr:
			result = result || matched
		default:
			result = result && matched
		}
	}

	return result, nil
}

// ApplyTagger 对单个文件应用标签器，返回是否发生了标签变更
func (s *taggerService) ApplyTagger(tagger *model.AutoTagger, file *model.File) (bool, error) {
	inScope, err := s.InScope(tagger, file)
	if err != nil {
		return false, err
	}

	changed := false
	for _, tag := range tagger.Tags {
		if inScope {
			attached, err := s.tagRepo.AttachTag(file.ID, tag.ID)
			if err != nil {
				return changed, err
			}
			if attached {
				changed = true
				s.metrics.TagAttached()
				s.logTagChange(model.ActionCreated, tagger, tag, file)
			}
		} else {
			detached, err := s.tagRepo.DetachTag(file.ID, tag.ID)
			if err != nil {
				return changed, err
			}
			if detached {
				changed = true
				s.metrics.TagDetached()
				s.logTagChange(model.ActionDeleted, tagger, tag, file)
			}
		}
	}

	return changed, nil
}

// ReevaluateFile 对文件重新应用全部标签器
// 标签器之间的谓词可能引用TagsJoin，每次标签变更后重新加载
func (s *taggerService) ReevaluateFile(file *model.File) error {
	taggers, err := s.taggerRepo.ListTaggers()
	if err != nil {
		return err
	}
	if len(taggers) == 0 {
		return nil
	}

	if err := s.fileRepo.LoadTagsJoin(file); err != nil {
		return err
	}

	for _, tagger := range taggers {
		before := file.TagsJoin
		if _, err := s.ApplyTagger(tagger, file); err != nil {
			s.logger.Error("Failed to apply tagger %q to file %s: %v", tagger.Name, file.FullPath(), err)
			return err
		}

		if err := s.fileRepo.LoadTagsJoin(file); err != nil {
			return err
		}
		if file.TagsJoin != before {
			s.logger.Debug("Tagger %q changed tags of %s: %q -> %q",
				tagger.Name, file.FullPath(), before, file.TagsJoin)
		}
	}

	return nil
}

// logTagChange 记录实际发生的标签附加或摘除
func (s *taggerService) logTagChange(action string, tagger *model.AutoTagger, tag *model.Tag, file *model.File) {
	entry := &model.AuditLog{
		ActionType: action,
		ObjType:    model.ObjectTag,
		ObjID:      tag.ID,
		ObjName:    tag.Name,
		NewName:    file.FullPath(),
		Comment:    fmt.Sprintf("auto tagger %q", tagger.Name),
		WatcherID:  file.WatcherID,
	}
	if err := s.auditRepo.AppendEntry(entry); err != nil {
		s.logger.Warn("Failed to append tag audit entry: %v", err)
	}
}
