package broadcast

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scholarship-portal/internal/domain"
	"github.com/scholarship-portal/internal/infrastructure/changefeed"
)

const (
	StreamNotifications = "notifications"
	StreamScholarships  = "scholarships"
)

// Sink receives full-list snapshots for one client connection.
type Sink interface {
	Send(ctx context.Context, v any) error
}

type Service interface {
	// StreamNotifications pushes the caller's notification list now and after every
	// change to the notifications collection. It returns nil when ctx is done or the
	// feed closes, and an error when the first snapshot cannot be loaded or a push fails.
	StreamNotifications(ctx context.Context, identity string, sink Sink) error
	// StreamScholarships pushes every application with its derived status. Status is
	// derived at push time, so a contract passing its expiration emits no push on its own.
	StreamScholarships(ctx context.Context, sink Sink) error
}

type subscriber interface {
	Subscribe(c changefeed.Collection) *changefeed.Subscription
}

type notificationLister interface {
	ListForRecipient(ctx context.Context, identity string) ([]domain.Notification, error)
}

type scholarshipLister interface {
	List(ctx context.Context) ([]domain.ScholarshipView, error)
}

type metricsRecorder interface {
	StreamOpened(stream string)
	StreamClosed(stream string)
	Pushed(stream string)
	PushFailed(stream, stage string)
}

type service struct {
	feed          subscriber
	notifications notificationLister
	scholarships  scholarshipLister
	metrics       metricsRecorder
	log           *zap.Logger
}

type ServiceDeps struct {
	Feed          subscriber
	Notifications notificationLister
	Scholarships  scholarshipLister
	Metrics       metricsRecorder
	Logger        *zap.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		feed:          deps.Feed,
		notifications: deps.Notifications,
		scholarships:  deps.Scholarships,
		metrics:       deps.Metrics,
		log:           deps.Logger,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

func (s *service) StreamNotifications(ctx context.Context, identity string, sink Sink) error {
	identity = domain.NormalizeIdentity(identity)
	query := func(ctx context.Context) (any, error) {
		ns, err := s.notifications.ListForRecipient(ctx, identity)
		if ns == nil {
			ns = []domain.Notification{}
		}
		return ns, err
	}
	return s.stream(ctx, changefeed.Notifications, StreamNotifications, query, sink,
		zap.String("identity", identity))
}

func (s *service) StreamScholarships(ctx context.Context, sink Sink) error {
	query := func(ctx context.Context) (any, error) {
		vs, err := s.scholarships.List(ctx)
		if vs == nil {
			vs = []domain.ScholarshipView{}
		}
		return vs, err
	}
	return s.stream(ctx, changefeed.Scholarships, StreamScholarships, query, sink)
}

// stream subscribes before the first query so no write between the snapshot and
// the subscription can be missed.
func (s *service) stream(
	ctx context.Context,
	c changefeed.Collection,
	name string,
	query func(context.Context) (any, error),
	sink Sink,
	fields ...zap.Field,
) error {
	sub := s.feed.Subscribe(c)
	defer sub.Close()

	s.opened(name)
	defer s.closed(name)
	log := s.log.With(append(fields, zap.String("stream", name))...)
	log.Debug("stream opened")
	defer log.Debug("stream closed")

	if err := s.push(ctx, log, name, query, sink, true); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := s.push(ctx, log, name, query, sink, false); err != nil {
				return err
			}
		}
	}
}

// push returns an error when the sink fails or the initial query fails. A failed query
// on a later cycle skips that cycle.
func (s *service) push(ctx context.Context, log *zap.Logger, name string, query func(context.Context) (any, error), sink Sink, initial bool) error {
	v, err := query(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("stream query failed", zap.Error(err), zap.Bool("initial", initial))
		s.failed(name, "query")
		if initial {
			return fmt.Errorf("load snapshot: %w", err)
		}
		return nil
	}
	if err := sink.Send(ctx, v); err != nil {
		s.failed(name, "send")
		return err
	}
	if s.metrics != nil {
		s.metrics.Pushed(name)
	}
	return nil
}

func (s *service) opened(name string) {
	if s.metrics != nil {
		s.metrics.StreamOpened(name)
	}
}

func (s *service) closed(name string) {
	if s.metrics != nil {
		s.metrics.StreamClosed(name)
	}
}

func (s *service) failed(name, stage string) {
	if s.metrics != nil {
		s.metrics.PushFailed(name, stage)
	}
}
