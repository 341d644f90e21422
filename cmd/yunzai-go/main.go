package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kvcfdd/yunzai-go/internal/config"
	"github.com/kvcfdd/yunzai-go/internal/constants"
	"github.com/kvcfdd/yunzai-go/internal/database"
	"github.com/kvcfdd/yunzai-go/internal/retry"
	"github.com/kvcfdd/yunzai-go/internal/service"
	"github.com/kvcfdd/yunzai-go/internal/tracing"
	"github.com/kvcfdd/yunzai-go/pkg/hakush"
	"github.com/kvcfdd/yunzai-go/pkg/onebot"
	"github.com/kvcfdd/yunzai-go/pkg/onebot/types"
	"github.com/kvcfdd/yunzai-go/pkg/renderer"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("yunzai-go %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting yunzai-go")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled")
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize database with exponential backoff retry
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	bot := onebot.NewClient(types.ClientConfig{
		BaseURL:     cfg.OneBot.APIBaseURL,
		AccessToken: cfg.OneBot.AccessToken,
		Timeout:     time.Duration(cfg.OneBot.TimeoutSec) * time.Second,
		RetryCount:  cfg.OneBot.RetryCount,
	})

	renderClient := renderer.NewClient(renderer.ClientConfig{
		BaseURL:     cfg.Renderer.BaseURL,
		TemplateDir: cfg.Renderer.TemplateDir,
		Timeout:     time.Duration(cfg.Renderer.TimeoutSec) * time.Second,
	}, logger)

	scheduleClient := hakush.NewClient("")

	admins := config.ParseAdmins(cfg)
	adminsFor := func(selfID int64) []int64 { return admins[selfID] }

	requestService := service.NewRequestService(db, bot, adminsFor, logger)
	likeService := service.NewLikeService(bot, false, logger)
	aliasService := service.NewAliasService(
		filepath.Join(cfg.DataDir, "gsuid_core", "data", "WutheringWavesUID", "alias", "char_alias.json"),
		logger)
	presetService := service.NewPresetService(cfg.DataDir, logger)
	towerService := service.NewTowerService(scheduleClient, renderClient, logger)
	wavesService := service.NewWavesService(scheduleClient, renderClient, logger)

	if err := presetService.Setup(ctx); err != nil {
		logger.WithError(err).Warn("Preset data setup failed")
	}
	towerService.Setup(ctx)
	wavesService.Setup(ctx)

	router := service.NewRouter()
	router.RegisterRewriter(presetService.Rewriter())
	router.Register(requestService.Routes()...)
	router.Register(likeService.Routes()...)
	router.Register(aliasService.Routes()...)
	router.Register(presetService.Routes()...)
	router.Register(towerService.Routes()...)
	router.Register(wavesService.Routes()...)

	dispatcher := service.NewDispatcher(db, bot, router, requestService, admins, logger)

	scheduler := service.NewScheduler(db, cfg.CleanupIntervalHours, logger)
	go scheduler.Start(ctx)

	if cfg.OneBot.EventMode == "websocket" {
		stream := onebot.NewEventStream(cfg.OneBot.WSURL, cfg.OneBot.AccessToken, dispatcher.HandleEvent, logger)
		stream.Start(ctx)
		defer stream.Stop()
		logger.WithField("url", cfg.OneBot.WSURL).Info("Event stream started")
	}

	server := NewServer(ctx, cfg, dispatcher, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}
