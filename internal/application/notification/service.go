package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scholarship-portal/internal/domain"
	"github.com/scholarship-portal/internal/pkg/id"
	"github.com/scholarship-portal/internal/pkg/validate"
)

type Service interface {
	Create(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error)
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	// GetForRecipient is Get restricted to notifications addressed to identity.
	GetForRecipient(ctx context.Context, notificationID, identity string) (*domain.Notification, error)
	ListForRecipient(ctx context.Context, identity string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, identity string) (*domain.Notification, error)
	MarkReadAndActed(ctx context.Context, notificationID, identity string) (*domain.Notification, error)
	ReferencesWithTitle(ctx context.Context, title string) (map[string]struct{}, error)
}

type notificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, notificationID string) (*domain.Notification, error)
	ListForRecipient(ctx context.Context, identity string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, identity string) (*domain.Notification, error)
	MarkReadAndActed(ctx context.Context, notificationID, identity string) (*domain.Notification, error)
	ReferencesWithTitle(ctx context.Context, title string) (map[string]struct{}, error)
}

// fanout forwards created notifications to an external topic.
type fanout interface {
	PublishNotification(ctx context.Context, n *domain.Notification) error
}

type metricsRecorder interface {
	NotificationCreated(category string)
}

type service struct {
	repo    notificationStore
	fanout  fanout
	metrics metricsRecorder
	log     *zap.Logger
	now     func() time.Time
}

type ServiceDeps struct {
	Repo    notificationStore
	Fanout  fanout // optional
	Metrics metricsRecorder
	Logger  *zap.Logger
	Now     func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:    deps.Repo,
		fanout:  deps.Fanout,
		metrics: deps.Metrics,
		log:     deps.Logger,
		now:     deps.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Create stores a new notification. Read/acted sets always start empty.
func (s *service) Create(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	audience := domain.AudienceFromRecipients(req.Recipients)
	if audience.IsEmpty() {
		return nil, domain.NewValidationError("recipients", "must name at least one recipient")
	}

	now := s.now().UTC()
	publisher := strings.TrimSpace(req.PublishedBy)
	if publisher == "" {
		publisher = domain.DefaultPublisher
	}
	n := &domain.Notification{
		NotificationID: id.NewAt(now),
		Title:          strings.TrimSpace(req.Title),
		Message:        req.Message,
		Category:       req.Category,
		RequiresAction: req.RequiresAction,
		Deadline:       req.Deadline,
		Audience:       audience,
		DatePosted:     now,
		PublishedBy:    publisher,
		IsReadBy:       []string{},
		IsActedBy:      []string{},
		Reference:      req.Reference,
	}
	if err := s.repo.Put(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	if s.metrics != nil {
		s.metrics.NotificationCreated(string(n.Category))
	}
	s.log.Info("notification created",
		zap.String("notification_id", n.NotificationID),
		zap.String("category", string(n.Category)),
		zap.Strings("recipients", n.Audience.Recipients()),
	)

	if s.fanout != nil {
		if err := s.fanout.PublishNotification(ctx, n); err != nil {
			s.log.Warn("notification fan-out failed", zap.String("notification_id", n.NotificationID), zap.Error(err))
		}
	}
	return n, nil
}

func (s *service) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	return s.repo.Get(ctx, notificationID)
}

func (s *service) GetForRecipient(ctx context.Context, notificationID, identity string) (*domain.Notification, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if !domain.IsRecipient(n, identity) {
		return nil, fmt.Errorf("notification %s is not addressed to caller: %w", notificationID, domain.ErrForbidden)
	}
	return n, nil
}

// ListForRecipient re-reads the store on every call and returns newest first.
func (s *service) ListForRecipient(ctx context.Context, identity string) ([]domain.Notification, error) {
	identity = domain.NormalizeIdentity(identity)
	all, err := s.repo.ListForRecipient(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]domain.Notification, 0, len(all))
	for i := range all {
		if domain.IsRecipient(&all[i], identity) {
			out = append(out, all[i])
		}
	}
	domain.SortNewestFirst(out)
	return out, nil
}

func (s *service) MarkRead(ctx context.Context, notificationID, identity string) (*domain.Notification, error) {
	identity = domain.NormalizeIdentity(identity)
	if _, err := s.GetForRecipient(ctx, notificationID, identity); err != nil {
		return nil, err
	}
	return s.repo.MarkRead(ctx, notificationID, identity)
}

func (s *service) MarkReadAndActed(ctx context.Context, notificationID, identity string) (*domain.Notification, error) {
	identity = domain.NormalizeIdentity(identity)
	if _, err := s.GetForRecipient(ctx, notificationID, identity); err != nil {
		return nil, err
	}
	return s.repo.MarkReadAndActed(ctx, notificationID, identity)
}

func (s *service) ReferencesWithTitle(ctx context.Context, title string) (map[string]struct{}, error) {
	return s.repo.ReferencesWithTitle(ctx, title)
}
