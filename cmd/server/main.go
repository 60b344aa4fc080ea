package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"whenthen/internal/config"
	"whenthen/internal/domain"
	"whenthen/internal/downloader"
	"whenthen/internal/engine"
	"whenthen/internal/executor"
	apphttp "whenthen/internal/http"
	"whenthen/internal/repository/sqlite"
	"whenthen/internal/service"
	"whenthen/internal/watcher"
)

type resolverFunc func(ctx context.Context, contentID string) (domain.ContentInfo, error)

func (f resolverFunc) Resolve(ctx context.Context, contentID string) (domain.ContentInfo, error) {
	return f(ctx, contentID)
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}
	if strings.TrimSpace(cfg.Auth.RegisterPassword) == "" {
		logger.Fatalf("auth registration password is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	playletRepo := sqlite.NewPlayletRepository(db)
	taskRepo := sqlite.NewTaskRepository(db)
	userRepo := sqlite.NewUserRepository(db)

	if err := playletRepo.Init(ctx); err != nil {
		logger.Fatalf("init playlet repository: %v", err)
	}
	if err := taskRepo.Init(ctx); err != nil {
		logger.Fatalf("init task repository: %v", err)
	}
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	userService := service.NewUserService(userRepo, cfg.Auth.RegisterPassword)
	store := service.NewAutomationStore(playletRepo, taskRepo)

	registry := engine.NewExecutorRegistry()
	executor.RegisterAll(registry, executor.Config{
		DownloadRoot:  cfg.Download.DataDir,
		ScriptTimeout: time.Duration(cfg.Automation.ScriptTimeout) * time.Second,
		Logger:        logger,
	})

	// The engine resolves content through the manager and the manager reports
	// events back into the engine; the indirection breaks the construction
	// cycle.
	var manager downloader.Manager
	eng := engine.New(engine.Config{
		MaxConcurrentTasks: cfg.Automation.MaxConcurrentTasks,
		Logger:             logger,
	}, store, resolverFunc(func(ctx context.Context, contentID string) (domain.ContentInfo, error) {
		return manager.Resolve(ctx, contentID)
	}), registry)

	manager = downloader.NewManager(downloader.Config{
		DownloadRoot:   cfg.Download.DataDir,
		StatusInterval: time.Duration(cfg.Download.StatusInterval) * time.Second,
		Logger:         logger,
	}, eng, eng.Commands())

	playlets, err := playletRepo.List(ctx)
	if err != nil {
		logger.Fatalf("load playlets: %v", err)
	}
	tasks, err := taskRepo.List(ctx)
	if err != nil {
		logger.Fatalf("load tasks: %v", err)
	}
	eng.Restore(playlets, tasks)

	if err := eng.Start(ctx); err != nil {
		logger.Fatalf("start engine: %v", err)
	}
	if err := manager.Start(ctx); err != nil {
		logger.Fatalf("start content manager: %v", err)
	}

	var folderWatcher *watcher.Watcher
	if len(cfg.Watch.Folders) > 0 {
		folderWatcher, err = watcher.New(watcher.Config{
			Folders:  cfg.Watch.Folders,
			Debounce: time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
			Logger:   logger,
		}, func(ctx context.Context, folder, path string) {
			info, added, err := manager.AddTorrentFile(ctx, path)
			if err != nil {
				logger.Warnf("add watched torrent %s: %v", path, err)
				return
			}
			if !added {
				logger.Debugf("watched torrent %s already tracked, skipping", path)
				return
			}
			eng.HandleWatchFolderDetected(domain.WatchFolderDetected{
				Path:        folder,
				ContentID:   info.ID,
				ContentName: info.Name,
			})
		})
		if err != nil {
			logger.Fatalf("create folder watcher: %v", err)
		}
		if err := folderWatcher.Start(ctx); err != nil {
			logger.Fatalf("start folder watcher: %v", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		eng,
		manager,
		userService,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if folderWatcher != nil {
		folderWatcher.Close()
	}
	manager.Shutdown()
	eng.Close()

	logger.Info("bye")
}
