package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarship-portal/internal/domain"
	"github.com/scholarship-portal/internal/infrastructure/changefeed"
)

// memNotifications mimics the notification service's recipient filter and ordering.
type memNotifications struct {
	mu    sync.Mutex
	items []domain.Notification
	err   error
}

func (m *memNotifications) add(feed *changefeed.Feed, n domain.Notification) {
	m.mu.Lock()
	m.items = append(m.items, n)
	m.mu.Unlock()
	feed.Publish(changefeed.Event{Collection: changefeed.Notifications, Op: changefeed.OpInsert, ID: n.NotificationID})
}

func (m *memNotifications) ListForRecipient(_ context.Context, identity string) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Notification
	for _, n := range m.items {
		if domain.IsRecipient(&n, identity) {
			out = append(out, n)
		}
	}
	domain.SortNewestFirst(out)
	return out, nil
}

type memScholarships struct{ views []domain.ScholarshipView }

func (m *memScholarships) List(context.Context) ([]domain.ScholarshipView, error) {
	return m.views, nil
}

// chanSink hands every pushed snapshot to the test.
type chanSink struct {
	ch  chan any
	err error
}

func newSink() *chanSink { return &chanSink{ch: make(chan any, 16)} }

func (s *chanSink) Send(_ context.Context, v any) error {
	if s.err != nil {
		return s.err
	}
	s.ch <- v
	return nil
}

func (s *chanSink) next(t *testing.T) any {
	t.Helper()
	select {
	case v := <-s.ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot pushed")
		return nil
	}
}

func waitSubscribed(t *testing.T, feed *changefeed.Feed, c changefeed.Collection) {
	t.Helper()
	require.Eventually(t, func() bool { return feed.Subscribers(c) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func ids(v any) []string {
	ns := v.([]domain.Notification)
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.NotificationID)
	}
	return out
}

func TestStreamNotifications_EmptyFirstEventThenUpdates(t *testing.T) {
	feed := changefeed.New()
	store := &memNotifications{}
	svc := NewService(ServiceDeps{Feed: feed, Notifications: store})
	sink := newSink()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.StreamNotifications(ctx, "Ana@my.xu.edu.ph", sink) }()

	first := sink.next(t)
	assert.NotNil(t, first)
	assert.Empty(t, first)
	waitSubscribed(t, feed, changefeed.Notifications)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.add(feed, domain.Notification{NotificationID: "N1", Audience: domain.Everyone(), DatePosted: base})
	assert.Equal(t, []string{"N1"}, ids(sink.next(t)))

	store.add(feed, domain.Notification{NotificationID: "N2", Audience: domain.Targeted("ana@my.xu.edu.ph"), DatePosted: base.Add(time.Minute)})
	assert.Equal(t, []string{"N2", "N1"}, ids(sink.next(t)))

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, feed.Subscribers(changefeed.Notifications))
}

func TestStreamNotifications_OtherRecipientsSeeOnlyBroadcast(t *testing.T) {
	feed := changefeed.New()
	store := &memNotifications{}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.items = []domain.Notification{
		{NotificationID: "N1", Audience: domain.Everyone(), DatePosted: base},
		{NotificationID: "N2", Audience: domain.Targeted("ana@my.xu.edu.ph"), DatePosted: base.Add(time.Minute)},
	}
	svc := NewService(ServiceDeps{Feed: feed, Notifications: store})
	sink := newSink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.StreamNotifications(ctx, "bob@my.xu.edu.ph", sink) }()

	assert.Equal(t, []string{"N1"}, ids(sink.next(t)))
}

func TestStream_LaterQueryFailureSkipsCycle(t *testing.T) {
	feed := changefeed.New()
	store := &memNotifications{}
	svc := NewService(ServiceDeps{Feed: feed, Notifications: store})
	sink := newSink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.StreamNotifications(ctx, "ana@my.xu.edu.ph", sink) }()
	sink.next(t)
	waitSubscribed(t, feed, changefeed.Notifications)

	store.mu.Lock()
	store.err = domain.ErrUnavailable
	store.mu.Unlock()
	feed.Publish(changefeed.Event{Collection: changefeed.Notifications})
	select {
	case v := <-sink.ch:
		t.Fatalf("unexpected push %v", v)
	case <-time.After(50 * time.Millisecond):
	}

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()
	store.add(feed, domain.Notification{NotificationID: "N1", Audience: domain.Everyone()})
	assert.Equal(t, []string{"N1"}, ids(sink.next(t)))
}

func TestStream_InitialQueryFailureEndsConnection(t *testing.T) {
	feed := changefeed.New()
	svc := NewService(ServiceDeps{Feed: feed, Notifications: &memNotifications{err: domain.ErrUnavailable}})
	sink := newSink()

	done := make(chan error, 1)
	go func() { done <- svc.StreamNotifications(context.Background(), "ana@my.xu.edu.ph", sink) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, domain.ErrUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("stream stayed open after the first snapshot failed")
	}
	assert.Empty(t, sink.ch)
	assert.Zero(t, feed.Subscribers(changefeed.Notifications))
}

func TestStream_SinkErrorEndsConnection(t *testing.T) {
	feed := changefeed.New()
	svc := NewService(ServiceDeps{Feed: feed, Notifications: &memNotifications{}})
	gone := errors.New("client went away")

	err := svc.StreamNotifications(context.Background(), "ana@my.xu.edu.ph", &chanSink{err: gone})
	assert.ErrorIs(t, err, gone)
	assert.Zero(t, feed.Subscribers(changefeed.Notifications))
}

func TestStream_FeedCloseEndsConnection(t *testing.T) {
	feed := changefeed.New()
	svc := NewService(ServiceDeps{Feed: feed, Scholarships: &memScholarships{}})
	sink := newSink()

	done := make(chan error, 1)
	go func() { done <- svc.StreamScholarships(context.Background(), sink) }()
	assert.Equal(t, []domain.ScholarshipView{}, sink.next(t))
	waitSubscribed(t, feed, changefeed.Scholarships)

	feed.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after feed close")
	}
}

func TestStreamScholarships_PushesOnChange(t *testing.T) {
	feed := changefeed.New()
	repo := &memScholarships{views: []domain.ScholarshipView{{Status: domain.StatusPending}}}
	svc := NewService(ServiceDeps{Feed: feed, Scholarships: repo})
	sink := newSink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.StreamScholarships(ctx, sink) }()
	require.Len(t, sink.next(t), 1)
	waitSubscribed(t, feed, changefeed.Scholarships)

	feed.Publish(changefeed.Event{Collection: changefeed.Notifications})
	feed.Publish(changefeed.Event{Collection: changefeed.Scholarships, Op: changefeed.OpUpdate})
	assert.Len(t, sink.next(t), 1)
	select {
	case v := <-sink.ch:
		t.Fatalf("notification events must not trigger a scholarship push: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStreamScholarships_NoPushWithoutChange(t *testing.T) {
	feed := changefeed.New()
	repo := &memScholarships{views: []domain.ScholarshipView{{Status: domain.StatusVerified}}}
	svc := NewService(ServiceDeps{Feed: feed, Scholarships: repo})
	sink := newSink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = svc.StreamScholarships(ctx, sink) }()
	sink.next(t)
	waitSubscribed(t, feed, changefeed.Scholarships)

	select {
	case v := <-sink.ch:
		t.Fatalf("unexpected push %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}
