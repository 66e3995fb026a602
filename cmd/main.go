// cmd/main.go - Program entry
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"filetag-indexer/internal/config"
	"filetag-indexer/internal/daemon"
	"filetag-indexer/internal/database"
	"filetag-indexer/internal/handler"
	"filetag-indexer/internal/job"
	"filetag-indexer/internal/model"
	"filetag-indexer/internal/repository"
	"filetag-indexer/internal/server"
	"filetag-indexer/internal/service"
	"filetag-indexer/internal/utils"
	"filetag-indexer/pkg/logger"
	"filetag-indexer/pkg/metrics"
)

var (
	// set by the linker during build
	osName   string
	archName string
	version  string
)

func main() {
	// Parse command line arguments
	appName := flag.String("appname", "filetag-indexer", "app name")
	httpServer := flag.String("http", "localhost:11390", "HTTP server address")
	logLevel := flag.String("loglevel", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	// Initialize directories
	if err := initDir(*appName); err != nil {
		fmt.Printf("failed to initialize directory: %v\n", err)
		return
	}
	// Initialize configuration
	if err := initConfig(*appName); err != nil {
		fmt.Printf("failed to initialize configuration: %v\n", err)
		return
	}
	clientConfig := config.GetClientConfig()

	// Initialize logging system
	appLogger, err := logger.NewLogger(utils.LogsDir, *logLevel, *appName)
	if err != nil {
		fmt.Printf("failed to initialize logging system: %v\n", err)
		return
	}
	appLogger.Info("OS: %s, Arch: %s, App: %s, Version: %s, Starting...", osName, archName, *appName, version)

	// Initialize metrics
	appMetrics, metricsHandler, err := metrics.Setup()
	if err != nil {
		appLogger.Fatal("failed to initialize metrics: %v", err)
		return
	}

	// Initialize database manager
	dbConfig := config.DefaultDatabaseConfig()
	dbManager := database.NewSQLiteManager(dbConfig, appLogger)
	if err := dbManager.Initialize(); err != nil {
		appLogger.Fatal("failed to initialize database manager: %v", err)
		return
	}

	// Initialize repositories
	watcherRepo := repository.NewWatcherRepository(dbManager, appLogger)
	fileRepo := repository.NewFileRepository(dbManager, appLogger)
	tagRepo := repository.NewTagRepository(dbManager, appLogger)
	queryRepo := repository.NewQueryRepository(dbManager, appLogger)
	taggerRepo := repository.NewTaggerRepository(dbManager, queryRepo, appLogger)
	auditRepo := repository.NewAuditRepository(dbManager, appLogger)

	// Initialize service layer
	filterService := service.NewFilterService(appLogger)
	taggerService := service.NewTaggerService(filterService, fileRepo, tagRepo, taggerRepo, auditRepo, appMetrics, appLogger)
	indexService := service.NewIndexService(watcherRepo, fileRepo, auditRepo, queryRepo, filterService, taggerService, appMetrics, appLogger)

	// Seed watchers from configuration on first start
	if err := bootstrapWatchers(indexService, watcherRepo, clientConfig, appLogger); err != nil {
		appLogger.Fatal("failed to bootstrap watchers: %v", err)
		return
	}

	// Initialize job layer
	scanInterval := time.Duration(clientConfig.Scan.RescanIntervalMinutes) * time.Minute
	scanJob := job.NewScanJob(indexService, watcherRepo, appLogger, scanInterval)
	auditCleanerJob := job.NewAuditCleanerJob(auditRepo, appLogger, clientConfig.Audit.RetentionDays)

	// Start daemon process
	daemonProcess := daemon.NewDaemon(watcherRepo, auditRepo, indexService, scanJob, auditCleanerJob, appMetrics, appLogger)
	go func() {
		if err := daemonProcess.Start(); err != nil {
			appLogger.Error("daemon start error: %v", err)
		}
	}()

	// Initialize handler layer
	watcherHandler := handler.NewWatcherHandler(indexService, watcherRepo, fileRepo, daemonProcess, appLogger)
	fileHandler := handler.NewFileHandler(indexService, fileRepo, tagRepo, auditRepo, appLogger)
	catalogHandler := handler.NewCatalogHandler(tagRepo, queryRepo, taggerRepo, filterService, appLogger)
	auditHandler := handler.NewAuditHandler(auditRepo, appLogger)

	// Start HTTP server
	httpServerInstance := server.NewServer(watcherHandler, fileHandler, catalogHandler, auditHandler, metricsHandler, appLogger)
	httpErrChan := make(chan error, 1)
	go func() {
		if err := httpServerInstance.Start(*httpServer); err != nil && err != http.ErrServerClosed {
			httpErrChan <- err
		}
		close(httpErrChan)
	}()

	// 等待一小段时间检查HTTP服务器是否启动成功
	select {
	case err := <-httpErrChan:
		if err != nil {
			appLogger.Error("HTTP server failed to start: %v", err)
			return
		}
	case <-time.After(2 * time.Second):
		// 2秒内没有收到错误，认为服务器启动成功
		appLogger.Info("HTTP server started successfully on %s", *httpServer)
	}

	appLogger.Info("application started successfully")

	// Handle system signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	appLogger.Info("received shutdown signal, shutting down gracefully...")
	daemonProcess.Stop()

	// 优雅关闭HTTP服务器
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServerInstance.Shutdown(ctx); err != nil {
		appLogger.Error("HTTP server shutdown error: %v", err)
	}
	if err := appMetrics.Shutdown(ctx); err != nil {
		appLogger.Error("metrics shutdown error: %v", err)
	}
	if err := dbManager.Close(); err != nil {
		appLogger.Error("database close error: %v", err)
	}

	appLogger.Info("client has been successfully closed")
}

// bootstrapWatchers 当监视器表为空时，从配置文件注册初始监视器
func bootstrapWatchers(index service.IndexService, watcherRepo repository.WatcherRepository, cfg config.ClientConfig, appLogger logger.Logger) error {
	if len(cfg.Watchers) == 0 {
		return nil
	}

	existing, err := watcherRepo.ListWatchers()
	if err != nil {
		return fmt.Errorf("failed to list watchers: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for _, wc := range cfg.Watchers {
		watcher := &model.Watcher{
			Name:       wc.Name,
			Path:       wc.Path,
			Filter:     wc.Filter,
			IncludeSub: wc.IncludeSub,
			BufferSize: wc.BufferSize,
			Enabled:    wc.Enabled,
		}
		if err := index.InstallWatcher(watcher); err != nil {
			return fmt.Errorf("failed to install watcher %s: %w", wc.Name, err)
		}
		if _, err := index.LoadWatcherFiles(watcher); err != nil {
			appLogger.Warn("initial load for watcher %s failed: %v", wc.Name, err)
		}
		appLogger.Info("watcher %s installed from configuration, path: %s", wc.Name, wc.Path)
	}

	return nil
}

// initDir initializes directories
func initDir(appName string) error {
	// Initialize root directory
	rootPath, err := utils.GetRootDir(appName)
	if err != nil {
		return fmt.Errorf("failed to get root directory: %v", err)
	}
	fmt.Printf("root directory: %s\n", rootPath)

	// Initialize log directory
	logPath, err := utils.GetLogDir(rootPath)
	if err != nil {
		return fmt.Errorf("failed to get log directory: %v", err)
	}
	fmt.Printf("log directory: %s\n", logPath)

	// Initialize database directory
	dbPath, err := utils.GetDbDir(rootPath)
	if err != nil {
		return fmt.Errorf("failed to get database directory: %v", err)
	}
	fmt.Printf("database directory: %s\n", dbPath)

	return nil
}

// initConfig initializes configuration
func initConfig(appName string) error {
	// Set app info
	appInfo := config.AppInfo{
		AppName:  appName,
		ArchName: archName,
		OSName:   osName,
		Version:  version,
	}
	config.SetAppInfo(appInfo)

	// Load client configuration, defaults apply when the file is absent
	configFile := filepath.Join(utils.AppRootDir, "config.json")
	if err := config.LoadClientConfig(configFile); err != nil {
		return err
	}

	return nil
}
