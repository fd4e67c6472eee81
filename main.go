package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"omnisum/internal/api"
	"omnisum/internal/auth"
	"omnisum/internal/config"
	"omnisum/internal/redis"
	"omnisum/internal/service/document"
	"omnisum/internal/service/engine"
	"omnisum/internal/service/gemini"
	"omnisum/internal/service/runs"
	"omnisum/internal/service/staging"
	"omnisum/internal/service/summary"
	"omnisum/internal/service/transcript"
	"omnisum/internal/storage"
	"omnisum/internal/worker"
)

func main() {
	// a missing .env is fine; real environment variables still apply
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv(config.ConfigPathEnv))
	if err != nil {
		bootLogger, _ := zap.NewProduction()
		bootLogger.Fatal("load config", zap.Error(err))
	}

	logger := newLogger(cfg.BasicConfig.LogLevel)
	defer logger.Sync()

	dbType := cfg.BasicConfig.DatabaseType
	logger.Info("opening database", zap.String("type", dbType))
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	// tables: summary_runs, staged_files
	if err := storage.Migrate(db, dbType); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		logger.Fatal("create redis client", zap.Error(err))
	}
	defer rdb.Close()

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	stager := staging.NewService(db, cfg.BasicConfig.UploadDir,
		time.Duration(cfg.BasicConfig.TempFileTTL)*time.Minute, logger.Named("staging"))
	stager.StartCleaner(appCtx, time.Duration(cfg.BasicConfig.TempCleanInterval)*time.Minute)

	extractor, err := document.New(appCtx, logger.Named("document"))
	if err != nil {
		logger.Fatal("init document extractor", zap.Error(err))
	}

	provider := cfg.Summarizer.Provider
	textEngine := engine.New(engine.Settings{
		Provider: provider,
		Model:    cfg.Summarizer.Model,
		BaseURL:  cfg.Providers[provider].BaseURL,
		APIKey:   cfg.ProviderAPIKey(provider),
	}, logger.Named("engine"))

	generator := gemini.New(gemini.Settings{
		APIKey:     cfg.Gemini.APIKey,
		VideoModel: cfg.Gemini.VideoModel,
		AudioModel: cfg.Gemini.AudioModel,
	}, logger.Named("gemini"))

	fetcher := transcript.NewCachedFetcher(
		transcript.NewYoutubeFetcher(cfg.Youtube.Language, logger.Named("transcript")),
		rdb,
		time.Duration(cfg.Youtube.CacheTTL)*time.Minute,
		logger.Named("transcript"),
	)

	router := summary.NewRouter(summary.Deps{
		Engine:      textEngine,
		Documents:   extractor,
		Transcripts: fetcher,
		Generator:   generator,
		Stager:      stager,
	}, cfg.BasicConfig.EmptyTextPolicy, logger.Named("router"))

	runSvc := runs.NewService(db)
	manager := worker.NewManager(router, runSvc, worker.DispatcherConfig{
		MinWorkers:     cfg.BasicConfig.MinWorkers,
		MaxWorkers:     cfg.BasicConfig.MaxWorkers,
		QueueSize:      cfg.BasicConfig.QueueSize,
		IdleTimeout:    time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
		RequestTimeout: time.Duration(cfg.BasicConfig.RequestTimeout) * time.Second,
	}, logger.Named("worker"))

	handlers := api.NewHandler(manager, runSvc, auth.NewService(cfg.Auth.AccessTokens), api.Options{
		MaxUploadBytes:  cfg.BasicConfig.MaxUploadBytes,
		DefaultPageMode: cfg.Documents.PageMode,
	}, logger.Named("api"))

	engineRouter := gin.Default()
	engineRouter.MaxMultipartMemory = cfg.BasicConfig.MaxUploadBytes
	handlers.RegisterRoutes(engineRouter)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: engineRouter,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	manager.Stop()
	appCancel()
	logger.Info("server exited")
}

func newLogger(level string) *zap.Logger {
	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
	if level != "" {
		if parsed, err := zapcore.ParseLevel(level); err == nil {
			lvl.SetLevel(parsed)
		}
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stdout), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}
