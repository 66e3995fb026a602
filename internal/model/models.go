package model

import (
	"path/filepath"
	"time"
)

// Watcher 监控目录数据模型
type Watcher struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Path       string    `json:"path" db:"path"`
	Filter     string    `json:"filter" db:"filter"`
	Enabled    bool      `json:"enabled" db:"enabled"`
	IncludeSub bool      `json:"includeSub" db:"include_sub"`
	BufferSize int       `json:"bufferSize" db:"buffer_size"`
	Active     bool      `json:"active" db:"active"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// File 文件索引数据模型
type File struct {
	ID        int64      `json:"id" db:"id"`
	Path      string     `json:"path" db:"path"` // 所在目录的完整路径
	Name      string     `json:"name" db:"name"` // 文件自身名称
	Ext       string     `json:"ext" db:"ext"`
	Size      int64      `json:"size" db:"size"`
	Created   time.Time  `json:"created" db:"created"`
	Changed   time.Time  `json:"changed" db:"changed"`
	Renamed   *time.Time `json:"renamed,omitempty" db:"renamed"`
	WatcherID int64      `json:"watcherId" db:"watcher_id"`
	// TagsJoin 按名称排序、逗号连接的标签串，查询时按需加载
	TagsJoin string `json:"tagsJoin" db:"-"`
}

// FullPath 文件的完整路径，由目录与名称推导
func (f *File) FullPath() string {
	return filepath.Join(f.Path, f.Name)
}

// Tag 标签数据模型
type Tag struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// FileTag 文件与标签的关联
type FileTag struct {
	ID     int64 `json:"id" db:"id"`
	FileID int64 `json:"fileId" db:"file_id"`
	TagID  int64 `json:"tagId" db:"tag_id"`
}

// Filter 单个原子过滤条件，属于唯一一个查询
type Filter struct {
	ID         int64  `json:"id" db:"id"`
	QueryID    int64  `json:"queryId" db:"query_id"`
	Field      string `json:"field" db:"field"`
	Type       string `json:"type" db:"type"`
	Value      string `json:"value" db:"value"`
	Comparison string `json:"comparison" db:"comparison"`
}

// Query 命名查询，谓词为其全部过滤条件的 AND 组合
type Query struct {
	ID      int64     `json:"id" db:"id"`
	Name    string    `json:"name" db:"name"`
	Descr   string    `json:"descr" db:"descr"`
	Filters []*Filter `json:"filters" db:"-"` // 按存储顺序加载
}

// AutoTagger 自动标签器，按绑定顺序组合查询谓词决定是否打标
type AutoTagger struct {
	ID       int64              `json:"id" db:"id"`
	Name     string             `json:"name" db:"name"`
	Descr    string             `json:"descr" db:"descr"`
	Bindings []*AutoTaggerQuery `json:"bindings" db:"-"` // 插入顺序，求值顺序与之一致
	Tags     []*Tag             `json:"tags" db:"-"`
}

// AutoTaggerQuery 自动标签器与查询的绑定，携带逻辑操作符
type AutoTaggerQuery struct {
	ID       int64  `json:"id" db:"id"`
	TaggerID int64  `json:"taggerId" db:"tagger_id"`
	QueryID  int64  `json:"queryId" db:"query_id"`
	Logic    string `json:"logic" db:"logic"`
	Query    *Query `json:"query,omitempty" db:"-"`
}

// AutoTag 标签与自动标签器的绑定
type AutoTag struct {
	ID       int64 `json:"id" db:"id"`
	TaggerID int64 `json:"taggerId" db:"tagger_id"`
	TagID    int64 `json:"tagId" db:"tag_id"`
}

// AuditLog 审计日志条目，只追加不修改
type AuditLog struct {
	ID         int64     `json:"id" db:"id"`
	ActionType string    `json:"actionType" db:"action_type"`
	ObjType    string    `json:"objType" db:"obj_type"`
	ObjID      int64     `json:"objId" db:"obj_id"`
	ObjName    string    `json:"objName" db:"obj_name"`
	NewName    string    `json:"newName,omitempty" db:"new_name"`
	Comment    string    `json:"comment,omitempty" db:"comment"`
	WatcherID  int64     `json:"watcherId" db:"watcher_id"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// FileEvent 来自文件系统通知源的原始事件
type FileEvent struct {
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	FullPath    string    `json:"fullPath"`
	OldName     string    `json:"oldName,omitempty"`
	OldFullPath string    `json:"oldFullPath,omitempty"`
	IsDir       bool      `json:"isDir"`
	OccurredAt  time.Time `json:"occurredAt"`
}
