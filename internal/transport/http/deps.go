package http

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/scholarship-portal/internal/application/account"
	"github.com/scholarship-portal/internal/application/attachment"
	"github.com/scholarship-portal/internal/application/broadcast"
	"github.com/scholarship-portal/internal/application/notification"
	"github.com/scholarship-portal/internal/application/scholarship"
	"github.com/scholarship-portal/internal/config"
	"github.com/scholarship-portal/internal/domain"
	"github.com/scholarship-portal/internal/infrastructure/changefeed"
	jwtinfra "github.com/scholarship-portal/internal/infrastructure/jwt"
	"github.com/scholarship-portal/internal/infrastructure/metrics"
	"github.com/scholarship-portal/internal/infrastructure/smtp"
)

// AccountRepository is the minimal interface the router requires from an account store.
type AccountRepository interface {
	Create(ctx context.Context, a *domain.Account) error
	Get(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, email string, updates map[string]interface{}) (*domain.Account, error)
}

// ScholarshipRepository is the minimal interface the router requires from a scholarship store.
type ScholarshipRepository interface {
	Put(ctx context.Context, s *domain.Scholarship) error
	Get(ctx context.Context, scholarshipID string) (*domain.Scholarship, error)
	List(ctx context.Context) ([]domain.Scholarship, error)
	LatestByEmail(ctx context.Context, email string) (*domain.Scholarship, error)
	Verify(ctx context.Context, scholarshipID string, v domain.VerifyUpdate) (*domain.Scholarship, error)
	Revoke(ctx context.Context, scholarshipID, revokedBy string, at time.Time) (*domain.Scholarship, error)
}

// NotificationRepository is the minimal interface the router requires from a notification store.
type NotificationRepository interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListForRecipient(ctx context.Context, identity string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, identity string) (*domain.Notification, error)
	MarkReadAndActed(ctx context.Context, notificationID, identity string) (*domain.Notification, error)
	ReferencesWithTitle(ctx context.Context, title string) (map[string]struct{}, error)
}

// VerificationRepository is the minimal interface the router requires from a verification store.
type VerificationRepository interface {
	Put(ctx context.Context, v *domain.Verification) error
	Get(ctx context.Context, email, verType string) (*domain.Verification, error)
	Delete(ctx context.Context, email, verType string) error
}

// ObjectStore is the minimal interface the router requires from an object storage backend.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// NotificationFanout forwards created notifications outside the process.
type NotificationFanout interface {
	PublishNotification(ctx context.Context, n *domain.Notification) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	AccountRepo      AccountRepository
	ScholarshipRepo  ScholarshipRepository
	NotificationRepo NotificationRepository
	VerificationRepo VerificationRepository
	ObjectStore      ObjectStore
	Feed             *changefeed.Feed
	Mailer           smtp.Mailer
	Fanout           NotificationFanout // nil disables SNS fan-out
	JWTProvider      *jwtinfra.Provider
	Metrics          *metrics.Registry
	Logger           *zap.Logger
}

// Services are the application services built from Deps.
type Services struct {
	Notifications notification.Service
	Scholarships  scholarship.Service
	Accounts      account.Service
	Broadcast     broadcast.Service
	Reminder      *scholarship.ExpiryReminder
}

// NewServices wires the application layer. It is separate from NewRouter so the
// background reminder shares the same service instances.
func NewServices(cfg *config.Config, deps *Deps) *Services {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	notifDeps := notification.ServiceDeps{
		Repo:    deps.NotificationRepo,
		Metrics: deps.Metrics,
		Logger:  log.Named("notification"),
	}
	if deps.Fanout != nil {
		notifDeps.Fanout = deps.Fanout
	}
	notifSvc := notification.NewService(notifDeps)

	attachSvc := attachment.NewService(attachment.ServiceDeps{
		Store:   deps.ObjectStore,
		LinkTTL: cfg.AttachmentLinkTTL,
		Logger:  log.Named("attachment"),
	})

	scholarshipSvc := scholarship.NewService(scholarship.ServiceDeps{
		Repo:                       deps.ScholarshipRepo,
		Accounts:                   deps.AccountRepo,
		Notes:                      notifSvc,
		Attachments:                attachSvc,
		Metrics:                    deps.Metrics,
		Logger:                     log.Named("scholarship"),
		SubmissionNoticeRecipients: cfg.Scholarships.SubmissionNoticeRecipients,
	})

	accountSvc := account.NewService(account.ServiceDeps{
		Accounts:           deps.AccountRepo,
		Verifications:      deps.VerificationRepo,
		Signer:             deps.JWTProvider,
		Mailer:             deps.Mailer,
		Logger:             log.Named("account"),
		PublicBaseURL:      cfg.PublicBaseURL,
		LinkTTL:            cfg.SignupLinkTTL,
		ScholarEmailSuffix: cfg.ScholarEmailSuffix,
		StaffEmailSuffix:   cfg.StaffEmailSuffix,
	})

	broadcastSvc := broadcast.NewService(broadcast.ServiceDeps{
		Feed:          deps.Feed,
		Notifications: notifSvc,
		Scholarships:  scholarshipSvc,
		Metrics:       deps.Metrics,
		Logger:        log.Named("broadcast"),
	})

	reminder := scholarship.NewExpiryReminder(scholarship.ReminderDeps{
		Repo:       deps.ScholarshipRepo,
		Notes:      notifSvc,
		Window:     cfg.Scholarships.ExpiryReminderWindow,
		Interval:   cfg.Scholarships.ExpiryReminderInterval,
		Recipients: cfg.Scholarships.ExpiryReminderRecipients,
		Logger:     log.Named("expiry_reminder"),
	})

	return &Services{
		Notifications: notifSvc,
		Scholarships:  scholarshipSvc,
		Accounts:      accountSvc,
		Broadcast:     broadcastSvc,
		Reminder:      reminder,
	}
}
