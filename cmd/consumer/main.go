package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/config"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/consumer"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/layout"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/render"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/repository"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/routes"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/services"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/pkg/logger"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	logr.Info("starting certificate service", slog.String("app", cfg.AppName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var statusStore *repository.StatusStore
	if cfg.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			fatal(logr, "failed to connect database", err)
		}
		if statusStore, err = repository.NewStatusStore(db, cfg.StatusTable); err != nil {
			fatal(logr, "failed to migrate status table", err)
		}
	}
	statusUpdater := services.NewStatusUpdater(statusStore, logr)

	dedup, closeDedup := openDedupStore(ctx, cfg, logr)
	defer closeDedup()

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		fatal(logr, "failed to configure blob store", err)
	}

	var acceptance services.AcceptanceSender
	if cfg.AcceptanceURL != "" {
		acceptance = services.NewAcceptanceClient(cfg.AcceptanceURL, cfg.AcceptanceAPIKey, cfg.HTTPTimeout, logr)
	} else {
		logr.Warn("ACCEPTANCE_URL not set, certificates are only uploaded")
	}

	fonts, err := render.LoadFonts(cfg.Fonts())
	if err != nil {
		fatal(logr, "failed to load fonts", err)
	}
	compositor := render.NewCompositor(layout.New(cfg.Layout()), fonts, logr)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		fatal(logr, "failed to connect rabbitmq", err)
	}
	defer conn.Close()

	pubChannel, err := conn.Channel()
	if err != nil {
		fatal(logr, "failed to open publisher channel", err)
	}
	defer pubChannel.Close()
	publisher, err := services.NewOutcomePublisher(pubChannel, cfg.OutcomeQueue)
	if err != nil {
		fatal(logr, "failed to configure outcome publisher", err)
	}

	metricsCollector := metrics.New()
	coordinator := services.NewDeliveryCoordinator(
		blobs,
		acceptance,
		dedup,
		statusUpdater,
		metricsCollector,
		logr,
		cfg.Retry(),
		cfg.ClaimTTL,
	)
	builder := services.NewCertificateBuilder(
		services.NewAssetClient(cfg.HTTPTimeout),
		compositor,
		coordinator,
		publisher,
		cfg.Retry(),
		metricsCollector,
		logr,
		cfg.WorkerCount,
	)

	base := consumer.NewBaseConsumer(
		conn,
		cfg.CertificateQueue,
		cfg.DeadLetterQueue,
		cfg.PrefetchCount,
		cfg.ConsumerCount,
		logr,
	)
	certificateConsumer := consumer.NewCertificateConsumer(base, builder, pubChannel, logr, cfg.MaxDeliveries)

	var statuses routes.StatusReader
	if statusStore != nil {
		statuses = statusStore
	}
	httpSrv := startHTTPServer(cfg.HTTPPort, metricsCollector, statuses, logr, time.Now())

	if err := certificateConsumer.Start(ctx); err != nil {
		logr.Error("certificate consumer exited", slog.Any("error", err))
	}

	shutdownHTTP(httpSrv, logr)
	logr.Info("certificate service stopped")
}

func openDedupStore(ctx context.Context, cfg *config.Config, logr *slog.Logger) (services.DedupStore, func()) {
	switch {
	case cfg.RedisURL != "":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			opts = &redis.Options{Addr: cfg.RedisURL}
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			fatal(logr, "failed to connect redis", err)
		}
		store := repository.NewRedisDedupStore(rdb, cfg.ClaimTTL)
		return store, func() { _ = store.Close() }
	case cfg.DedupFile != "":
		store, err := repository.NewFileDedupStore(cfg.DedupFile)
		if err != nil {
			fatal(logr, "failed to open dedup file", err)
		}
		return store, func() {}
	default:
		logr.Warn("no REDIS_URL or DEDUP_FILE set, delivered keys are kept in memory only")
		return repository.NewMemoryDedupStore(), func() {}
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config) (services.BlobStore, error) {
	if cfg.S3Bucket == "" {
		store, err := services.NewDirBlobStore(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	client, err := services.NewS3Client(ctx, cfg.AWSRegion, cfg.S3Endpoint)
	if err != nil {
		return nil, err
	}
	return services.NewS3BlobStore(client, cfg.S3Bucket, cfg.S3Prefix), nil
}

func startHTTPServer(port string, metricsCollector *metrics.Metrics, statuses routes.StatusReader, logr *slog.Logger, started time.Time) *http.Server {
	if port == "" {
		port = "8084"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(metricsCollector, statuses, started),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("http server error", slog.Any("error", err))
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server, logr *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("failed to shutdown http server", slog.Any("error", err))
	}
}

func fatal(logr *slog.Logger, msg string, err error) {
	logr.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
