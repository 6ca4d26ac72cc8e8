package main

import (
	"context"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sac-backend-go/internal/config"
	"sac-backend-go/internal/db"
	"sac-backend-go/internal/logging"
	"sac-backend-go/internal/migrations"
	"sac-backend-go/internal/queue"
	"sac-backend-go/internal/services"
	"sac-backend-go/internal/storage"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client

	accounts   *services.Accounts
	media      *services.MediaStore
	processor  *services.UploadProcessor
	uploadHub  *services.Hub
	metricsHub *services.Hub
	recorder   *services.MetricsRecorder
	publisher  *queue.Publisher
	events     *queue.EventBus
	inline     *services.InlineDispatcher

	closers []func()
}

func newApp(ctx context.Context, v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger, flush, err := logging.NewLogger(cfg.LogLevel, cfg.LogDir, cfg.LogRetentionDays)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []func(){flush}}

	a.db, err = db.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.db.Close() })

	a.redis, err = services.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		a.Close()
		return nil, err
	}

	var blobs storage.BlobStore
	if cfg.MinIO.Enabled() {
		store, err := storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		blobs = store
		logger.Info("media blobs stored in minio", zap.String("bucket", cfg.MinIO.Bucket))
	}

	a.uploadHub = services.NewHub(64, logger.Named("uploads"))
	a.metricsHub = services.NewHub(16, logger.Named("metrics"))
	a.media = &services.MediaStore{DB: a.db, Blobs: blobs, Logger: logger, MaxImagePixels: cfg.MaxImagePixels}
	a.processor = &services.UploadProcessor{Media: a.media, Events: a.uploadHub, Logger: logger}
	a.accounts = &services.Accounts{
		DB:            a.db,
		Tokens:        services.NewTokenService(cfg.JWTSecret, cfg.TokenTTL),
		Passwords:     services.Argon2Hasher{},
		Mailer:        a.mailer(),
		VerifyBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	}
	if a.redis != nil {
		a.accounts.Nonces = services.NewRedisNonceStore(a.redis)
		a.closers = append(a.closers, func() { _ = a.redis.Close() })
	}
	a.recorder = &services.MetricsRecorder{
		DB:       a.db,
		Hub:      a.metricsHub,
		DiskPath: cfg.MetricsDiskPath,
		Interval: time.Duration(cfg.MetricsSampleSeconds) * time.Second,
		Logger:   logger,
	}
	if cfg.AMQPURL != "" {
		a.publisher = queue.NewPublisher(cfg.AMQPURL, cfg.UploadQueue, logger)
		a.closers = append(a.closers, func() { _ = a.publisher.Close() })
		// Jobs may finish in a separate worker, so outcomes travel through
		// the broker and every serve process relays them to its sockets.
		a.events = queue.NewEventBus(cfg.AMQPURL, cfg.UploadEvents, logger.Named("events"))
		a.processor.Events = a.events
		a.closers = append(a.closers, func() { _ = a.events.Close() })
	}
	return a, nil
}

func (a *app) mailer() services.Mailer {
	if !a.cfg.SMTP.Enabled() {
		a.logger.Warn("SMTP_HOST not set, verification emails are only logged")
		return services.LogMailer{Logger: a.logger}
	}
	return services.NewSMTPMailer(services.SMTPConfig{
		Host:     a.cfg.SMTP.Host,
		Port:     a.cfg.SMTP.Port,
		Username: a.cfg.SMTP.Username,
		Password: a.cfg.SMTP.Password,
		From:     a.cfg.SMTP.From,
	})
}

func (a *app) migrate(ctx context.Context) error {
	return migrations.Apply(ctx, a.db, os.DirFS("migrations"), a.logger)
}

// dispatcher picks the durable queue when a broker is configured.
func (a *app) dispatcher() services.Dispatcher {
	if a.publisher != nil {
		return a.publisher
	}
	a.inline = services.NewInlineDispatcher(a.processor)
	return a.inline
}

func (a *app) consumer() *queue.Consumer {
	return &queue.Consumer{
		URL:       a.cfg.AMQPURL,
		Queue:     a.cfg.UploadQueue,
		Prefetch:  4,
		Processor: a.processor,
		Logger:    a.logger.Named("consumer"),
	}
}

func (a *app) relay() *queue.EventRelay {
	return &queue.EventRelay{
		URL:      a.cfg.AMQPURL,
		Exchange: a.cfg.UploadEvents,
		Sink:     a.uploadHub,
		Logger:   a.logger.Named("relay"),
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
