package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/camden-git/captionsys/captioner"
	"github.com/camden-git/captionsys/config"
	"github.com/camden-git/captionsys/database"
	"github.com/camden-git/captionsys/handlers"
	"github.com/camden-git/captionsys/logging"
	"github.com/camden-git/captionsys/media"
	"github.com/camden-git/captionsys/metrics"
	"github.com/camden-git/captionsys/realtime"
	"github.com/camden-git/captionsys/repository"
	"github.com/camden-git/captionsys/services"
	"github.com/camden-git/captionsys/translation"
	"github.com/camden-git/captionsys/workers"
)

func main() {
	envErr := godotenv.Load()

	baseLogger, err := logging.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		baseLogger, _ = logging.New("info")
		baseLogger.Sugar().Warnf("main: %v, falling back to info", err)
	}
	defer baseLogger.Sync()
	zap.ReplaceGlobals(baseLogger)
	log := baseLogger.Sugar()
	if envErr != nil {
		log.Infof("main: no .env file found or error loading: %v", envErr)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	metrics.Register()

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create database directory %s: %v", dir, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath, baseLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	uploadsSubDir := filepath.Base(cfg.UploadsPath)
	thumbnailsSubDir := filepath.Base(cfg.ThumbnailsPath)
	mediaStore, err := media.NewLocalStorage(cfg.MediaStoragePath, map[media.AssetType]string{
		media.AssetTypeUpload:    uploadsSubDir,
		media.AssetTypeThumbnail: thumbnailsSubDir,
	}, log)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}
	mediaProcessor := media.NewProcessor(mediaStore, log)

	captionSettings := captioner.Settings{
		Provider: cfg.CaptionProvider,
		Model:    cfg.CaptionModel,
		APIKey:   cfg.CaptionAPIKey,
		Endpoint: cfg.CaptionEndpoint,
		Timeout:  cfg.CaptionTimeout,
	}
	captionClient := captioner.NewLazy(cfg.CaptionProvider, func() (captioner.Captioner, error) {
		return captioner.New(captionSettings)
	}, log)

	translationSettings := translation.Settings{
		Provider: cfg.TranslationProvider,
		Endpoint: cfg.TranslationEndpoint,
		APIKey:   cfg.TranslationAPIKey,
		Model:    cfg.TranslationModel,
		Timeout:  cfg.TranslationTimeout,
	}
	initialTranslator, err := translation.New(translationSettings)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize translation provider: %v", err)
	}
	translator := translation.NewService(initialTranslator, translation.NewFactory(translationSettings), cfg.TranslationTimeout, log)

	captionRepo := repository.NewCaptionRepository(db)
	thumbnailRepo := repository.NewThumbnailRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(cfg.AllowedOrigins, log)
	go hub.Run(ctx)

	log.Infof("main: initializing thumbnail worker pool (workers: %d, queue size: %d)", cfg.NumThumbnailWorkers, cfg.ThumbnailQueueSize)
	thumbGen := workers.NewThumbnailGenerator(mediaStore, mediaProcessor, thumbnailRepo, hub,
		cfg.ThumbnailMaxSize, cfg.ThumbnailQueueSize, cfg.NumThumbnailWorkers, log)
	defer thumbGen.Stop()

	uploadService := services.NewUploadService(mediaStore, captionRepo, captionClient, translator, thumbGen, hub,
		services.UploadServiceConfig{
			Options: captioner.Options{
				MinLength:         cfg.CaptionMinLength,
				MaxLength:         cfg.CaptionMaxLength,
				NumBeams:          cfg.CaptionNumBeams,
				RepetitionPenalty: cfg.CaptionRepetitionPenalty,
				LengthPenalty:     cfg.CaptionLengthPenalty,
				EarlyStopping:     true,
				TargetWords:       cfg.CaptionTargetWords,
				MaxImageSide:      cfg.CaptionMaxImageSide,
			},
			MaxFiles: cfg.MaxUploadFiles,
			MediaURL: cfg.MediaURL,
		}, log)
	captionService := services.NewCaptionService(captionRepo, thumbnailRepo, cfg.MediaURL, log)

	log.Infof("main: using database %s", cfg.DatabasePath)
	log.Infof("main: storing uploads in %s and thumbnails in %s", cfg.UploadsPath, cfg.ThumbnailsPath)
	log.Infof("main: caption provider %s (model %s), translation provider %s", cfg.CaptionProvider, cfg.CaptionModel, cfg.TranslationProvider)

	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)
	r.Use(metrics.Middleware)

	captionHandler := &handlers.CaptionHandler{
		Uploads:         uploadService,
		Captions:        captionService,
		RecentLimit:     cfg.RecentListLimit,
		MaxUploadSizeMB: cfg.MaxUploadSizeMB,
		Log:             log,
	}

	// the websocket stays open past any request timeout
	r.Get("/ws", hub.ServeWS)

	r.Group(func(r chi.Router) {
		// captioning a full batch runs well past a typical request budget
		r.Use(middleware.Timeout(10 * time.Minute))

		r.Get("/", captionHandler.Index)
		r.Post("/upload", captionHandler.Upload)
		r.Post("/upload/", captionHandler.Upload)
		r.Get("/download", captionHandler.Download)
		r.Get("/download/", captionHandler.Download)

		r.Route("/api/captions", func(r chi.Router) {
			r.Get("/", captionHandler.Search)
			r.Get("/{id}", captionHandler.Get)
		})

		mediaPrefix := strings.TrimSuffix(cfg.MediaURL, "/")
		if strings.HasPrefix(mediaPrefix, "/") && mediaPrefix != "" {
			r.Get(mediaPrefix+"/*", handlers.AssetServer(cfg.MediaStoragePath, "", log))
		}
		r.Get("/"+thumbnailsSubDir+"/*", handlers.AssetServer(cfg.MediaStoragePath, thumbnailsSubDir, log))

		r.Get("/healthz", handlers.Healthz(captionClient.Ready))
		r.Handle("/metrics", promhttp.Handler())
	})

	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		log.Infof("main: server listening on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Infof("main: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("main: graceful shutdown failed: %v", err)
	}
}
