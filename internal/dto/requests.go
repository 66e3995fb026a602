// internal/dto/requests.go - API请求与响应结构
package dto

// CreateWatcherRequest 注册监视器请求
type CreateWatcherRequest struct {
	Name       string `json:"name" binding:"required"`
	Path       string `json:"path" binding:"required"`
	Filter     string `json:"filter"`
	IncludeSub bool   `json:"includeSub"`
	BufferSize int    `json:"bufferSize"`
	Enabled    *bool  `json:"enabled"`
}

// WatcherResponse 监视器响应，附带文件计数
type WatcherResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Filter     string `json:"filter"`
	Enabled    bool   `json:"enabled"`
	IncludeSub bool   `json:"includeSub"`
	BufferSize int    `json:"bufferSize"`
	Active     bool   `json:"active"`
	FilesCount int    `json:"filesCount"`
}

// CreateTagRequest 创建标签请求
type CreateTagRequest struct {
	Name string `json:"name" binding:"required"`
}

// FileTagRequest 文件标签附加或摘除请求
type FileTagRequest struct {
	FileID int64  `json:"fileId" binding:"required"`
	Tag    string `json:"tag" binding:"required"`
}

// FileTagsRequest 批量为单个文件附加或摘除标签
type FileTagsRequest struct {
	Tags []string `json:"tags" binding:"required"`
}

// TagFilesRequest 批量为多个文件附加或摘除同一标签
type TagFilesRequest struct {
	Tag     string  `json:"tag" binding:"required"`
	FileIDs []int64 `json:"fileIds" binding:"required"`
}

// FilterRequest 单个过滤条件
type FilterRequest struct {
	Field      string `json:"field" binding:"required"`
	Type       string `json:"type" binding:"required"`
	Value      string `json:"value"`
	Comparison string `json:"comparison"`
}

// CreateQueryRequest 创建或更新查询请求
type CreateQueryRequest struct {
	Name    string          `json:"name" binding:"required"`
	Descr   string          `json:"descr"`
	Filters []FilterRequest `json:"filters"`
}

// QueryBindingRequest 标签器的查询绑定
type QueryBindingRequest struct {
	QueryID int64  `json:"queryId" binding:"required"`
	Logic   string `json:"logic"`
}

// CreateTaggerRequest 创建标签器请求
type CreateTaggerRequest struct {
	Name     string                `json:"name" binding:"required"`
	Descr    string                `json:"descr"`
	Queries  []QueryBindingRequest `json:"queries"`
	TagNames []string              `json:"tags"`
}
