package changefeed

import (
	"sync"
	"time"
)

// Collection names a watched table.
type Collection string

const (
	Accounts      Collection = "accounts"
	Scholarships  Collection = "scholarships"
	Notifications Collection = "notifications"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// Event reports one successful write. Subscribers treat it as "something changed"
// and re-read; the id is informational.
type Event struct {
	Collection Collection
	Op         Op
	ID         string
	At         time.Time
}

type Option func(*Feed)

// WithObserver registers fn to be called for every published event, before fan-out.
func WithObserver(fn func(Event)) Option {
	return func(f *Feed) { f.observers = append(f.observers, fn) }
}

// Feed is an in-process change notification source. Repos publish after each
// write; long-lived readers subscribe per collection.
//
// Publish never blocks. Each subscription buffers at most one pending event and
// a newer event replaces an unread one.
type Feed struct {
	mu        sync.Mutex
	subs      map[Collection]map[*Subscription]struct{}
	closed    bool
	observers []func(Event)
}

func New(opts ...Option) *Feed {
	f := &Feed{subs: make(map[Collection]map[*Subscription]struct{})}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Publish fans e out to every subscriber of e.Collection.
func (f *Feed) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	for _, fn := range f.observers {
		fn(e)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for s := range f.subs[e.Collection] {
		select {
		case s.ch <- e:
		default:
			// Only publishers send and they hold mu, so after draining the slot is free.
			select {
			case <-s.ch:
			default:
			}
			s.ch <- e
		}
	}
}

// Subscribe registers interest in c. The caller must Close the subscription.
// Subscribing to a closed feed returns a subscription whose channel is already closed.
func (f *Feed) Subscribe(c Collection) *Subscription {
	s := &Subscription{feed: f, collection: c, ch: make(chan Event, 1)}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(s.ch)
		s.done = true
		return s
	}
	if f.subs[c] == nil {
		f.subs[c] = make(map[*Subscription]struct{})
	}
	f.subs[c][s] = struct{}{}
	return s
}

// Subscribers returns the number of live subscriptions on c.
func (f *Feed) Subscribers(c Collection) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[c])
}

// Close ends every subscription. Further publishes are dropped.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, set := range f.subs {
		for s := range set {
			s.done = true
			close(s.ch)
		}
	}
	f.subs = nil
}

type Subscription struct {
	feed       *Feed
	collection Collection
	ch         chan Event
	done       bool // guarded by feed.mu
}

// Events is closed when the subscription or the feed is closed.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	f := s.feed
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	delete(f.subs[s.collection], s)
	close(s.ch)
}
