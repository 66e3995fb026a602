// internal/server/router.go - 路由配置和服务器初始化
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"filetag-indexer/internal/handler"
	"filetag-indexer/pkg/logger"
)

// Server 服务器接口
type Server interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// NewServer 创建新的HTTP服务器
func NewServer(
	watcherHandler *handler.WatcherHandler,
	fileHandler *handler.FileHandler,
	catalogHandler *handler.CatalogHandler,
	auditHandler *handler.AuditHandler,
	metricsHandler http.Handler,
	logger logger.Logger,
) Server {
	return &server{
		watcherHandler: watcherHandler,
		fileHandler:    fileHandler,
		catalogHandler: catalogHandler,
		auditHandler:   auditHandler,
		metricsHandler: metricsHandler,
		logger:         logger,
	}
}

type server struct {
	engine         *gin.Engine
	watcherHandler *handler.WatcherHandler
	fileHandler    *handler.FileHandler
	catalogHandler *handler.CatalogHandler
	auditHandler   *handler.AuditHandler
	metricsHandler http.Handler
	logger         logger.Logger
	httpServer     *http.Server
}

// Start 启动服务器
func (s *server) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)

	s.engine = gin.New()

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.engine,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	s.logger.Info("starting HTTP server on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown 优雅关闭服务器
func (s *server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		s.logger.Info("shutting down HTTP server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// setupMiddleware 设置中间件
func (s *server) setupMiddleware() {
	s.engine.Use(RecoveryMiddleware(s.logger))
	s.engine.Use(LoggingMiddleware(s.logger))
	s.engine.Use(CORSMiddleware())
	s.engine.Use(SecurityMiddleware())
	s.engine.Use(RateLimitMiddleware(s.logger))

	// 健康检查
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"code":    0,
			"message": "ok",
			"success": true,
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	if s.metricsHandler != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metricsHandler))
	}
}

// setupRoutes 设置路由
func (s *server) setupRoutes() {
	api := s.engine.Group("/filetag-indexer/api/v1")
	{
		api.GET("/watchers", s.watcherHandler.ListWatchers)
		api.POST("/watchers", s.watcherHandler.CreateWatcher)
		api.GET("/watchers/:id", s.watcherHandler.GetWatcher)
		api.DELETE("/watchers/:id", s.watcherHandler.DeleteWatcher)
		api.POST("/watchers/:id/rescan", s.watcherHandler.RescanWatcher)
		api.POST("/watchers/:id/purge-files", s.watcherHandler.PurgeWatcherFiles)
		api.POST("/watchers/:id/purge-logs", s.watcherHandler.PurgeWatcherLogs)

		api.GET("/files", s.fileHandler.ListFiles)
		api.GET("/files/search", s.fileHandler.SearchFiles)
		api.POST("/files/tags", s.fileHandler.AttachTag)
		api.DELETE("/files/tags", s.fileHandler.DetachTag)
		api.POST("/files/:id/tags", s.fileHandler.AddTagsToFile)
		api.DELETE("/files/:id/tags", s.fileHandler.RemoveTagsFromFile)
		api.POST("/tags/attach-files", s.fileHandler.AddTagToFiles)
		api.POST("/tags/detach-files", s.fileHandler.RemoveTagFromFiles)

		api.GET("/tags", s.catalogHandler.ListTags)
		api.POST("/tags", s.catalogHandler.CreateTag)
		api.DELETE("/tags/:id", s.catalogHandler.DeleteTag)

		api.GET("/queries", s.catalogHandler.ListQueries)
		api.POST("/queries", s.catalogHandler.CreateQuery)
		api.PUT("/queries/:id", s.catalogHandler.UpdateQuery)
		api.DELETE("/queries/:id", s.catalogHandler.DeleteQuery)

		api.GET("/taggers", s.catalogHandler.ListTaggers)
		api.POST("/taggers", s.catalogHandler.CreateTagger)
		api.DELETE("/taggers/:id", s.catalogHandler.DeleteTagger)

		api.GET("/logs", s.auditHandler.ListAuditLogs)
	}

	// 404处理
	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "endpoint not found",
		})
	})

	// 405处理
	s.engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"success": false,
			"message": "method not allowed",
		})
	})
}

// GetEngine 获取Gin引擎（用于测试）
func (s *server) GetEngine() *gin.Engine {
	return s.engine
}
