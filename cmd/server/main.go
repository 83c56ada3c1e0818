package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/photoshare/backend/internal/blacklist"
	"github.com/photoshare/backend/internal/config"
	"github.com/photoshare/backend/internal/es"
	"github.com/photoshare/backend/internal/events"
	"github.com/photoshare/backend/internal/handlers"
	"github.com/photoshare/backend/internal/logging"
	authmw "github.com/photoshare/backend/internal/middleware/auth"
	loggingmw "github.com/photoshare/backend/internal/middleware/logging"
	"github.com/photoshare/backend/internal/service/media"
	"github.com/photoshare/backend/internal/token"
	httpserver "github.com/photoshare/backend/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	tokens := blacklist.NewRedisStore(configuration.REDIS_ADDR, configuration.REDIS_PASSWORD)
	codec := &token.Codec{Secret: []byte(configuration.SECRET_KEY)}

	mediaStore, err := media.NewCloudinaryStore(
		configuration.CLOUDINARY_CLOUD_NAME,
		configuration.CLOUDINARY_API_KEY,
		configuration.CLOUDINARY_API_SECRET,
	)
	if err != nil {
		log.Fatalf("cloudinary init error: %v", err)
	}

	var prod *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	var esClient *elasticsearch.Client
	if configuration.ES_URL != "" {
		esClient, err = es.NewClient(configuration)
		if err != nil {
			logger.Warn("elasticsearch unavailable, full-text search disabled", "error", err)
			esClient = nil
		}
	}

	authenticator := &authmw.Authenticator{DB: db, Codec: codec, Tokens: tokens}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		Authenticator:  authenticator,
		AuthHandler:    &handlers.AuthHandler{DB: db, Codec: codec, Tokens: tokens, Producer: prod},
		UserHandler:    &handlers.UserHandler{DB: db},
		AdminHandler:   &handlers.AdminHandler{DB: db},
		PhotoHandler:   &handlers.PhotoHandler{DB: db, Media: mediaStore, ES: esClient, Producer: prod},
		CommentHandler: &handlers.CommentHandler{DB: db},
		RatingHandler:  &handlers.RatingHandler{DB: db},
		SearchHandler:  &handlers.SearchHandler{ES: esClient},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}
	if err := tokens.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}
	if err := prod.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}

	logger.Info("shutdown complete")
}
