package model

// ActionType 审计日志动作类型常量
const (
	ActionNone        = "none"
	ActionCreated     = "created"
	ActionDeleted     = "deleted"
	ActionUpdated     = "updated"
	ActionRenamed     = "renamed"
	ActionStarted     = "started"
	ActionStopped     = "stopped"
	ActionInstalled   = "installed"
	ActionUninstalled = "uninstalled"
)

// ObjectType 审计日志对象类型常量
const (
	ObjectNone    = "none"
	ObjectFile    = "file"
	ObjectFolder  = "folder"
	ObjectTag     = "tag"
	ObjectWatcher = "watcher"
)

// EventType 文件系统事件类型常量
const (
	EventTypeUnknown = "unknown"
	EventTypeCreated = "created" // 文件创建事件
	EventTypeDeleted = "deleted" // 文件删除事件
	EventTypeChanged = "changed" // 文件写入事件
	EventTypeRenamed = "renamed" // 文件重命名事件
)

// FilterType 过滤条件数据类型常量
const (
	FilterTypeString   = "string"
	FilterTypeNumeric  = "numeric"
	FilterTypeBoolean  = "boolean"
	FilterTypeDate     = "date"
	FilterTypeDatetime = "datetime"
	FilterTypeList     = "list"
	FilterTypeMonth    = "month"
)

// Comparison 过滤条件比较操作符常量
const (
	ComparisonEq        = "eq"
	ComparisonNe        = "ne"
	ComparisonGt        = "gt"
	ComparisonLt        = "lt"
	ComparisonEnds      = "ends"
	ComparisonStarts    = "starts"
	ComparisonNotEnds   = "notends"
	ComparisonNotStarts = "notstarts"
	ComparisonLike      = "like"
	ComparisonNotLike   = "notlike"
	ComparisonIsNull    = "isnull"
	ComparisonIsNotNull = "isnotnull"
	ComparisonBefore    = "before"
	ComparisonAfter     = "after"
	ComparisonOn        = "on"
)

// Logic 自动标签器绑定逻辑操作符常量
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
)

// ScratchSuffixes 编辑器原子保存产生的临时文件后缀
var ScratchSuffixes = []string{"~", ".TMP", ".temp"}
