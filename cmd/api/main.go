package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scholarship-portal/internal/config"
	"github.com/scholarship-portal/internal/infrastructure/changefeed"
	"github.com/scholarship-portal/internal/infrastructure/dynamo"
	jwtinfra "github.com/scholarship-portal/internal/infrastructure/jwt"
	"github.com/scholarship-portal/internal/infrastructure/metrics"
	s3infra "github.com/scholarship-portal/internal/infrastructure/s3"
	"github.com/scholarship-portal/internal/infrastructure/smtp"
	"github.com/scholarship-portal/internal/infrastructure/sns"
	"github.com/scholarship-portal/internal/pkg/logger"
	transporthttp "github.com/scholarship-portal/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zlog, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	feed := changefeed.New(changefeed.WithObserver(reg.ObserveChange))
	defer feed.Close()

	// One DynamoDB client (and its connection pool) shared by every repo.
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("dynamodb client: %w", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables, zlog.Named("bootstrap"))

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("s3 client: %w", err)
	}

	deps := &transporthttp.Deps{
		AccountRepo:      dynamo.NewAccountRepo(dynamoClient, cfg.DynamoTables.Accounts, feed),
		ScholarshipRepo:  dynamo.NewScholarshipRepo(dynamoClient, cfg.DynamoTables.Scholarships, feed),
		NotificationRepo: dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications, feed),
		VerificationRepo: dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.Verifications),
		ObjectStore:      s3infra.NewStore(s3Client, cfg.S3BucketName),
		Feed:             feed,
		Mailer:           smtp.NewMailer(cfg),
		JWTProvider:      jwtProvider,
		Metrics:          reg,
		Logger:           zlog,
	}

	// SNS fan-out is optional.
	if cfg.SNSTopicARN != "" {
		publisher, err := sns.NewTopicPublisher(ctx, cfg)
		if err != nil {
			zlog.Warn("sns fan-out disabled", zap.Error(err))
		} else {
			deps.Fanout = publisher
		}
	}

	svcs := transporthttp.NewServices(cfg, deps)
	go svcs.Reminder.Run(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           transporthttp.NewRouter(cfg, deps, svcs),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server starting", zap.String("port", cfg.AppPort), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down server")
	// Closing the feed first ends every open stream so Shutdown does not wait on them.
	feed.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	zlog.Info("server stopped")
	return nil
}
