package domain

import (
	"cmp"
	"encoding/json"
	"slices"
	"time"
)

type Category string

const (
	CategoryScholarship  Category = "scholarship"
	CategoryAnnouncement Category = "announcement"
	CategoryReminder     Category = "reminder"
)

// EveryoneRecipient is the storage-format sentinel for a broadcast audience.
const EveryoneRecipient = "everyone"

// DefaultPublisher is recorded when a notification is emitted by the system itself.
const DefaultPublisher = "System"

// Audience is who a notification is addressed to: everyone, or an explicit set of identities.
// The zero value is an empty targeted audience.
type Audience struct {
	broadcast bool
	targets   []string
}

// Everyone returns the broadcast audience.
func Everyone() Audience { return Audience{broadcast: true} }

// Targeted returns an audience of the given identities, normalized and de-duplicated
// while keeping first-seen order.
func Targeted(identities ...string) Audience {
	seen := make(map[string]struct{}, len(identities))
	targets := make([]string, 0, len(identities))
	for _, id := range identities {
		id = NormalizeIdentity(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}
	return Audience{targets: targets}
}

// AudienceFromRecipients translates the flat stored list. Any "everyone" entry makes the
// audience a broadcast.
func AudienceFromRecipients(recipients []string) Audience {
	for _, r := range recipients {
		if NormalizeIdentity(r) == EveryoneRecipient {
			return Everyone()
		}
	}
	return Targeted(recipients...)
}

func (a Audience) IsBroadcast() bool { return a.broadcast }

func (a Audience) Targets() []string { return slices.Clone(a.targets) }

func (a Audience) IsEmpty() bool { return !a.broadcast && len(a.targets) == 0 }

// Recipients returns the flat list used by the persistence layer and clients.
func (a Audience) Recipients() []string {
	if a.broadcast {
		return []string{EveryoneRecipient}
	}
	return slices.Clone(a.targets)
}

// Includes reports whether identity is addressed by the audience.
func (a Audience) Includes(identity string) bool {
	if a.broadcast {
		return true
	}
	return slices.Contains(a.targets, NormalizeIdentity(identity))
}

func (a Audience) MarshalJSON() ([]byte, error) {
	r := a.Recipients()
	if r == nil {
		r = []string{}
	}
	return json.Marshal(r)
}

func (a *Audience) UnmarshalJSON(b []byte) error {
	var recipients []string
	if err := json.Unmarshal(b, &recipients); err != nil {
		return err
	}
	*a = AudienceFromRecipients(recipients)
	return nil
}

type Notification struct {
	NotificationID string     `json:"id"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	Category       Category   `json:"category"`
	RequiresAction bool       `json:"requires_action"`
	Deadline       *time.Time `json:"deadline"`
	Audience       Audience   `json:"recipients"`
	DatePosted     time.Time  `json:"date_posted"`
	PublishedBy    string     `json:"published_by"`
	IsReadBy       []string   `json:"is_read_by"`
	IsActedBy      []string   `json:"is_acted_by"`
	// Reference is the id of the scholarship application this notification concerns, if any.
	Reference *string `json:"reference,omitempty"`
}

// IsRecipient reports whether identity is entitled to see n.
func IsRecipient(n *Notification, identity string) bool {
	return n.Audience.Includes(identity)
}

// ReadBy reports whether identity has already viewed n.
func (n *Notification) ReadBy(identity string) bool {
	return slices.Contains(n.IsReadBy, NormalizeIdentity(identity))
}

// ActedBy reports whether identity has completed the action n requires.
func (n *Notification) ActedBy(identity string) bool {
	return slices.Contains(n.IsActedBy, NormalizeIdentity(identity))
}

// SortNewestFirst orders by DatePosted descending. IDs are ULIDs, so equal timestamps
// fall back to id descending, which is creation order reversed.
func SortNewestFirst(ns []Notification) {
	slices.SortStableFunc(ns, func(a, b Notification) int {
		if c := b.DatePosted.Compare(a.DatePosted); c != 0 {
			return c
		}
		return cmp.Compare(b.NotificationID, a.NotificationID)
	})
}

type CreateNotificationRequest struct {
	Title          string     `json:"title" validate:"required,max=200"`
	Message        string     `json:"message" validate:"required"`
	Category       Category   `json:"category" validate:"required,oneof=scholarship announcement reminder"`
	RequiresAction bool       `json:"requires_action"`
	Deadline       *time.Time `json:"deadline"`
	Recipients     []string   `json:"recipients" validate:"required,min=1,dive,required"`
	PublishedBy    string     `json:"published_by"`
	Reference      *string    `json:"reference"`
	// Caller-supplied read/acted sets are accepted on the wire and ignored.
	IsReadBy  []string `json:"is_read_by,omitempty" validate:"-"`
	IsActedBy []string `json:"is_acted_by,omitempty" validate:"-"`
}
