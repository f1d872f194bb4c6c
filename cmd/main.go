package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loan-engine/internal/clients"
	"loan-engine/internal/config"
	"loan-engine/internal/document"
	"loan-engine/internal/logger"
	"loan-engine/internal/metrics"
	"loan-engine/internal/registry"
	"loan-engine/internal/repository"
	"loan-engine/internal/service"
	"loan-engine/internal/transport/rest"
	"loan-engine/internal/transport/websocket"
	"loan-engine/pkg/database/postgres"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type documentStorage interface {
	registry.BlobStore
	service.DocumentStorage
}

func main() {
	envErr := godotenv.Load()

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()

	log := logger.New(cfg.LogLevel)
	if envErr != nil {
		log.Info().Msg("no .env file found, using system env or defaults")
	}

	store, db := mustInitStore(ctx, cfg, log)
	if db != nil {
		defer db.Close()
	}

	var regOpts []registry.Option
	regOpts = append(regOpts,
		registry.WithAnnualRate(cfg.Loan.AnnualRate),
		registry.WithMaxDuration(cfg.Loan.MaxDuration),
	)

	var redisClient *clients.RedisClient
	if cfg.Redis.Enabled {
		redisClient = mustInitRedis(cfg.Redis, log)
		defer redisClient.Close()
		regOpts = append(regOpts, registry.WithLocker(redisClient, cfg.Loan.LockTTL))
	}

	storage, localStorage := mustInitStorage(ctx, cfg, log)

	wsHub := websocket.NewHub(log, cfg.CORSOrigins...)
	go wsHub.Run(ctx)
	wsClient := clients.NewWebSocketClient(wsHub)

	reg := registry.New(store, storage, regOpts...)
	generator := document.NewGenerator(cfg.Loan.Lender, cfg.Loan.Currency)
	svc := service.NewLifecycleService(reg, generator, storage, wsClient, log)

	var handlerOpts []rest.HandlerOption
	handlerOpts = append(handlerOpts, rest.WithMaxUpload(cfg.Loan.MaxUploadBytes))
	if db != nil {
		handlerOpts = append(handlerOpts, rest.WithHealthCheck(db.PingContext))
	}
	handler := rest.NewHandler(svc, log, handlerOpts...)
	router := handler.InitRouter()

	// public root router: /files, /ws and /metrics sit next to the API
	root := chi.NewRouter()
	if localStorage != nil {
		root.Get(localStorage.PublicPrefix+"/{file}", rest.FilesHandler(localStorage))
	}
	root.Get("/ws", wsHub.HandleWebSocket)
	root.Handle("/metrics", metrics.Handler())
	root.Mount("/", router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      metrics.InstrumentHandler(rest.WithCORS(cfg.CORSOrigins)(root)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run HTTP server in goroutine so we can listen for shutdown signals
	srvErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	// remove leftovers of interrupted local writes
	if localStorage != nil {
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := localStorage.CleanupTempFiles(30 * time.Minute); err != nil {
						log.Warn().Err(err).Msg("storage cleanup error")
					}
				}
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		// Give server up to 10 seconds to finish ongoing requests
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}

		// stops the websocket hub and the cleanup ticker
		cancel()
		log.Info().Msg("shutdown complete")
	}
}

func mustInitStore(ctx context.Context, cfg config.AppConfig, log zerolog.Logger) (registry.Store, *sql.DB) {
	if cfg.RegistryDriver == "memory" {
		log.Warn().Msg("using in-memory registry, applications are lost on restart")
		return repository.NewApplicationMemoryRepository(), nil
	}

	db, err := postgres.NewPostgresConnection(ctx, postgres.ConnectionInfo{
		Host:         cfg.Postgres.Host,
		Port:         cfg.Postgres.Port,
		Username:     cfg.Postgres.User,
		DBName:       cfg.Postgres.DBName,
		SSLMode:      cfg.Postgres.SSLMode,
		Password:     cfg.Postgres.Password,
		MaxOpenConns: 20,
		MaxIdleConns: 5,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("postgres init error")
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("postgres schema error")
	}
	return repository.NewApplicationRepository(db), db
}

func mustInitRedis(cfg config.RedisConfig, log zerolog.Logger) *clients.RedisClient {
	client, err := clients.NewRedisClient(clients.RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: time.Duration(cfg.DialTimeout) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		Prefix:      cfg.Prefix,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis init error")
	}
	return client
}

// mustInitStorage returns the configured document storage and, for the
// local driver, the client whose files are served under /files.
func mustInitStorage(ctx context.Context, cfg config.AppConfig, log zerolog.Logger) (documentStorage, *clients.StorageClient) {
	if cfg.Storage.Driver == "s3" {
		s3, err := clients.NewS3Client(ctx, clients.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			UseSSL:          cfg.S3.UseSSL,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("s3 init error")
		}
		return s3, nil
	}

	local, err := clients.NewLocalStorage(cfg.Storage.Dir, cfg.Storage.PublicPrefix, cfg.Storage.ExternalURL)
	if err != nil {
		log.Fatal().Err(err).Msg("storage init error")
	}
	return local, local
}
