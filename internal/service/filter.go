package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"filetag-indexer/internal/errs"
	"filetag-indexer/internal/model"
	"filetag-indexer/pkg/logger"
)

// FilePredicate 针对单个文件记录的布尔谓词
type FilePredicate func(file *model.File) bool

// FilterService 过滤条件编译与查询求值服务
type FilterService interface {
	// CompileFilter 将单个过滤条件编译为类型化谓词
	CompileFilter(filter *model.Filter) (FilePredicate, error)
	// CompileQuery 将查询编译为其全部过滤条件的AND组合，空查询恒为真
	CompileQuery(query *model.Query) (FilePredicate, error)
}

// filterService 过滤服务实现
type filterService struct {
	logger logger.Logger
}

// NewFilterService 创建过滤服务
func NewFilterService(logger logger.Logger) FilterService {
	return &filterService{
		logger: logger,
	}
}

// fieldKind 可过滤字段的值类别
type fieldKind int

const (
	kindString fieldKind = iota
	kindNumeric
	kindTime
)

// fieldAccessor 文件记录字段的类型化访问器
type fieldAccessor struct {
	kind fieldKind
	str  func(file *model.File) string
	num  func(file *model.File) int64
	time func(file *model.File) (time.Time, bool)
}

// fieldAccessors 可过滤字段表，字段名不区分大小写
var fieldAccessors = map[string]*fieldAccessor{
	"name":     {kind: kindString, str: func(f *model.File) string { return f.Name }},
	"ext":      {kind: kindString, str: func(f *model.File) string { return f.Ext }},
	"path":     {kind: kindString, str: func(f *model.File) string { return f.Path }},
	"fullpath": {kind: kindString, str: func(f *model.File) string { return f.FullPath() }},
	"tagsjoin": {kind: kindString, str: func(f *model.File) string { return f.TagsJoin }},
	"length":   {kind: kindNumeric, num: func(f *model.File) int64 { return f.Size }},
	"size":     {kind: kindNumeric, num: func(f *model.File) int64 { return f.Size }},
	"created":  {kind: kindTime, time: func(f *model.File) (time.Time, bool) { return f.Created, !f.Created.IsZero() }},
	"changed":  {kind: kindTime, time: func(f *model.File) (time.Time, bool) { return f.Changed, !f.Changed.IsZero() }},
	"renamed": {kind: kindTime, time: func(f *model.File) (time.Time, bool) {
		if f.Renamed == nil {
			return time.Time{}, false
		}
		return *f.Renamed, true
	}},
}

// CompileFilter 将单个过滤条件编译为类型化谓词
func (s *filterService) CompileFilter(filter *model.Filter) (FilePredicate, error) {
	accessor, ok := fieldAccessors[strings.ToLower(filter.Field)]
	if !ok {
		return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
			"field does not resolve on a file record")
	}

	switch strings.ToLower(filter.Type) {
	case model.FilterTypeString:
		return s.compileString(filter, accessor)
	case model.FilterTypeNumeric:
		return s.compileNumeric(filter, accessor)
	case model.FilterTypeBoolean:
		return s.compileBoolean(filter, accessor)
	case model.FilterTypeDate, model.FilterTypeDatetime:
		return s.compileDate(filter, accessor)
	case model.FilterTypeList:
		return s.compileList(filter, accessor)
	case model.FilterTypeMonth:
		return s.compileMonth(filter, accessor)
	default:
		return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
			"unrecognized type tag")
	}
}

// CompileQuery 将查询编译为其全部过滤条件的AND组合，空查询恒为真
func (s *filterService) CompileQuery(query *model.Query) (FilePredicate, error) {
	predicates := make([]FilePredicate, 0, len(query.Filters))
	for _, filter := range query.Filters {
		predicate, err := s.CompileFilter(filter)
		if err != nil {
			s.logger.Warn("Failed to compile filter %d of query %q: %v", filter.ID, query.Name, err)
			return nil, fmt.Errorf("query %q: %w", query.Name, err)
		}
		predicates = append(predicates, predicate)
	}

	return func(file *model.File) bool {
		for _, predicate := range predicates {
			if !predicate(file) {
				return false
			}
		}
		return true
	}, nil
}

// compileString 字符串比较，字面量先去除尾部路径分隔符
func (s *filterService) compileString(filter *model.Filter, accessor *fieldAccessor) (FilePredicate, error) {
	if accessor.kind != kindString {
		return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
			"field is not a string field")
	}

	literal := strings.TrimRight(filter.Value, `\/`)
	get := accessor.str

	switch strings.ToLower(filter.Comparison) {
	case model.ComparisonEnds:
		return func(f *model.File) bool { return strings.HasSuffix(get(f), literal) }, nil
	case model.ComparisonStarts:
		return func(f *model.File) bool { return strings.HasPrefix(get(f), literal) }, nil
	case model.ComparisonNotEnds:
		return func(f *model.File) bool { return !strings.HasSuffix(get(f), literal) }, nil
	case model.ComparisonNotStarts:
		return func(f *model.File) bool { return !strings.HasPrefix(get(f), literal) }, nil
	case model.ComparisonEq:
		return func(f *model.File) bool { return get(f) == literal }, nil
	case model.ComparisonNe:
		return func(f *model.File) bool { return get(f) != literal }, nil
	case model.ComparisonNotLike:
		return func(f *model.File) bool { return !strings.Contains(get(f), literal) }, nil
	case model.ComparisonIsNull:
		return func(f *model.File) bool { return strings.TrimSpace(get(f)) == "" }, nil
	case model.ComparisonIsNotNull:
		return func(f *model.File) bool { return strings.TrimSpace(get(f)) != "" }, nil
	default:
		// like 以及未识别的操作符都按子串包含处理
		return func(f *model.File) bool { return strings.Contains(get(f), literal) }, nil
	}
}

// compileNumeric 数值比较，gt/lt为闭区间
func (s *filterService) compileNumeric(filter *model.Filter, accessor *fieldAccessor) (FilePredicate, error) {
	if accessor.kind != kindNumeric {
		return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
			"field is not a numeric field")
	}

	literal, err := strconv.ParseInt(strings.TrimSpace(filter.Value), 10, 64)
	if err != nil {
		return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
			"literal is not a valid integer")
	}
	get := accessor.num

	switch strings.ToLower(filter.Comparison) {
	case model.ComparisonEq:
		return func(f *model.File) bool { return get(f) == literal }, nil
	case model.ComparisonNe:
		return func(f *model.File) bool { return get(f) != literal }, nil
	case model.ComparisonGt:
		return func(f *model.File) bool { return get(f) >= literal }, nil
	case model.ComparisonLt:
		return func(f *model.File) bool { return get(f) <= literal }, nil
	default:
		return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
			"unsupported numeric comparison")
	}
}

// compileBoolean 布尔等值比较，字段取真值后与字面量比较
func (s *filterService) compileBoolean(filter *model.Filter, accessor *fieldAccessor) (FilePredicate, error) {
	literal, err := strconv.ParseBool(strings.TrimSpace(filter.Value))
	if err != nil {
		return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
			"literal is not a valid boolean")
	}

	truth := func(f *model.File) bool {
		switch accessor.kind {
		case kindNumeric:
			return accessor.num(f) != 0
		case kindTime:
			_, ok := accessor.time(f)
			return ok
		default:
			v, parseErr := strconv.ParseBool(strings.TrimSpace(accessor.str(f)))
			return parseErr == nil && v
		}
	}

	return func(f *model.File) bool { return truth(f) == literal }, nil
}

// compileDate 日期比较，字面量为斜杠分隔的 月/日/年
// date类型只比较日期部分，datetime类型比较完整时间戳
func (s *filterService) compileDate(filter *model.Filter, accessor *fieldAccessor) (FilePredicate, error) {
	if accessor.kind != kindTime {
		return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
			"field is not a time field")
	}

	parts := splitNonEmpty(filter.Value, "/")
	if len(parts) != 3 {
		return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
			"date literal must have month/day/year components")
	}

	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
				"date literal component is not a number")
		}
		nums[i] = n
	}
	target := time.Date(nums[2], time.Month(nums[0]), nums[1], 0, 0, 0, 0, time.Local)

	truncate := strings.ToLower(filter.Type) == model.FilterTypeDate
	get := func(f *model.File) (time.Time, bool) {
		v, ok := accessor.time(f)
		if !ok {
			return time.Time{}, false
		}
		if truncate {
			v = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, v.Location())
		}
		return v, true
	}

	var compare func(v time.Time) bool
	switch strings.ToLower(filter.Comparison) {
	case model.ComparisonEq, model.ComparisonOn:
		compare = func(v time.Time) bool { return v.Equal(target) }
	case model.ComparisonNe:
		compare = func(v time.Time) bool { return !v.Equal(target) }
	case model.ComparisonGt, model.ComparisonAfter:
		compare = func(v time.Time) bool { return v.After(target) }
	case model.ComparisonLt, model.ComparisonBefore:
		compare = func(v time.Time) bool { return v.Before(target) }
	default:
		return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
			"unsupported date comparison")
	}

	return func(f *model.File) bool {
		v, ok := get(f)
		return ok && compare(v)
	}, nil
}

// compileList 字面量为逗号分隔的集合，谓词为字段值属于该集合
func (s *filterService) compileList(filter *model.Filter, accessor *fieldAccessor) (FilePredicate, error) {
	if accessor.kind != kindString {
		return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
			"field is not a string field")
	}

	members := make(map[string]struct{})
	for _, member := range splitNonEmpty(filter.Value, ",") {
		members[member] = struct{}{}
	}
	get := accessor.str

	return func(f *model.File) bool {
		_, ok := members[get(f)]
		return ok
	}, nil
}

// compileMonth 字面量为两位月份数字集合，谓词为字段的月份分量属于该集合
func (s *filterService) compileMonth(filter *model.Filter, accessor *fieldAccessor) (FilePredicate, error) {
	if accessor.kind != kindTime {
		return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
			"field is not a time field")
	}

	parts := splitNonEmpty(filter.Value, ",")
	if len(parts) == 0 {
		return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
			"month literal must list at least one month")
	}

	months := make(map[string]struct{})
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > 12 {
			return nil, errs.NewInvalidFilterErr(filter.Field, filter.Type, filter.Comparison, filter.Value,
				"month literal member is not a valid month number")
		}
		months[fmt.Sprintf("%02d", n)] = struct{}{}
	}
	get := accessor.time

	return func(f *model.File) bool {
		v, ok := get(f)
		if !ok {
			return false
		}
		_, member := months[fmt.Sprintf("%02d", int(v.Month()))]
		return member
	}, nil
}

// splitNonEmpty 按分隔符切分并丢弃空片段
func splitNonEmpty(value, sep string) []string {
	var parts []string
	for _, part := range strings.Split(value, sep) {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
