package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/FriendsOfREDAXO/mail-tools/internal/archive"
	"github.com/FriendsOfREDAXO/mail-tools/internal/bounce"
	"github.com/FriendsOfREDAXO/mail-tools/internal/config"
	"github.com/FriendsOfREDAXO/mail-tools/internal/domain"
	"github.com/FriendsOfREDAXO/mail-tools/internal/handler"
	"github.com/FriendsOfREDAXO/mail-tools/internal/infra/postgresql"
	"github.com/FriendsOfREDAXO/mail-tools/internal/infra/postgresql/migrations"
	infraredis "github.com/FriendsOfREDAXO/mail-tools/internal/infra/redis"
	"github.com/FriendsOfREDAXO/mail-tools/internal/mailer"
	"github.com/FriendsOfREDAXO/mail-tools/internal/maillog"
	"github.com/FriendsOfREDAXO/mail-tools/internal/observability"
	"github.com/FriendsOfREDAXO/mail-tools/internal/queue"
	"github.com/FriendsOfREDAXO/mail-tools/internal/report"
	"github.com/FriendsOfREDAXO/mail-tools/internal/repository"
	"github.com/FriendsOfREDAXO/mail-tools/internal/service"
	"github.com/FriendsOfREDAXO/mail-tools/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("mail-tools daemon failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer broker.Close()

	keyMutex, err := infraredis.NewKeyMutex(rdb)
	if err != nil {
		return err
	}
	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.SendRatePerSec)
	if err != nil {
		return err
	}

	logSource, err := maillog.NewSource(cfg.MailLogPath, logger)
	if err != nil {
		return err
	}
	locator, err := archive.NewFSLocator(cfg.MailArchiveDir)
	if err != nil {
		return err
	}
	smtpMailer, err := mailer.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	if err != nil {
		return err
	}

	retryLedger := repository.NewGormRetryLedger(db)
	bounceRegistry := repository.NewGormBounceRegistry(db)
	reportedRepo := repository.NewGormReportedFailureRepo(db)

	metrics := observability.NewMetrics()

	retryService, err := service.NewRetryService(
		logSource,
		retryLedger,
		locator,
		smtpMailer,
		keyMutex,
		limiter,
		metrics,
		cfg.ScanLimit,
		logger,
	)
	if err != nil {
		return err
	}

	retryScanner, err := service.NewRetryScanner(
		retryService,
		time.Duration(cfg.RetryScanIntervalMin)*time.Minute,
		logger,
	)
	if err != nil {
		return err
	}

	publisher := queue.NewRabbitMQPublisher(broker)
	consumer := queue.NewRabbitMQConsumer(broker, 1, logger)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterRetryRoutes(app, publisher, logSource, bounceRegistry); err != nil {
		return err
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return retryScanner.Start(groupCtx)
	})

	g.Go(func() error {
		return consumer.Consume(groupCtx, queue.ManualRetryQueue, manualRetryHandler(retryService, logger))
	})

	if cfg.BounceIngestionEnabled() {
		ingestor, err := bounce.NewIngestor(bounce.Config{
			Host:            cfg.IMAPHost,
			Port:            cfg.IMAPPort,
			Username:        cfg.IMAPUsername,
			Password:        cfg.IMAPPassword,
			Folder:          cfg.IMAPFolder,
			RecipientFilter: cfg.BounceFilter,
			DeleteProcessed: cfg.BounceDeleteHandled,
		}, bounceRegistry, logger)
		if err != nil {
			return err
		}
		poller, err := service.NewBouncePoller(
			ingestor,
			time.Duration(cfg.BouncePollIntervalMin)*time.Minute,
			metrics,
			logger,
		)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return poller.Start(groupCtx)
		})
	} else {
		logger.Info("bounce ingestion disabled: no IMAP host configured")
	}

	if cfg.ReportingEnabled() {
		reporter, err := report.NewReporter(report.Config{
			From:       cfg.SMTPFrom,
			Recipients: cfg.ReportRecipientList(),
			AttachEML:  cfg.ReportAttachEML,
			WebhookURL: cfg.ReportWebhookURL,
		}, logSource, reportedRepo, locator, smtpMailer, logger)
		if err != nil {
			return err
		}
		scheduler, err := service.NewReportScheduler(
			reporter,
			time.Duration(cfg.ReportIntervalMin)*time.Minute,
			metrics,
			logger,
		)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return scheduler.Start(groupCtx)
		})
	} else {
		logger.Info("failure reporting disabled: no recipients configured")
	}

	g.Go(func() error {
		logger.Info("mail-tools daemon started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("mail-tools daemon stopped")
	return nil
}

// manualRetryHandler executes an operator-triggered retry. Requests for
// unknown or exhausted fingerprints are final: they are logged and acked,
// never requeued.
func manualRetryHandler(retries *service.RetryService, logger *zap.Logger) queue.MessageHandler {
	return func(ctx context.Context, msg queue.RetryMessage) error {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
		requestLogger := observability.WithContextLogger(logger, ctx).With(
			zap.String("fingerprint", msg.Fingerprint),
		)

		succeeded, err := retries.RetryOne(ctx, msg.Fingerprint)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) {
				requestLogger.Warn("manual retry refused", zap.Error(err))
				return nil
			}
			requestLogger.Error("manual retry failed", zap.Error(err))
			return err
		}

		requestLogger.Info("manual retry executed", zap.Bool("succeeded", succeeded))
		return nil
	}
}
