package attachment

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// File is one uploaded document, streamed straight to object storage.
type File struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Link is a time-limited download URL for one stored attachment.
type Link struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service interface {
	// Store uploads files under the scholarship's prefix and returns their keys.
	Store(ctx context.Context, scholarshipID string, files []File) ([]string, error)
	// Discard removes previously stored keys. Failures are logged, not returned.
	Discard(ctx context.Context, keys []string)
	Links(ctx context.Context, keys []string) ([]Link, error)
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	store   objectStore
	linkTTL time.Duration
	log     *zap.Logger
	now     func() time.Time
}

type ServiceDeps struct {
	Store   objectStore
	LinkTTL time.Duration
	Logger  *zap.Logger
}

func NewService(deps ServiceDeps) Service {
	s := &service{store: deps.Store, linkTTL: deps.LinkTTL, log: deps.Logger, now: time.Now}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.linkTTL <= 0 {
		s.linkTTL = 15 * time.Minute
	}
	return s
}

func (s *service) Store(ctx context.Context, scholarshipID string, files []File) ([]string, error) {
	keys := make([]string, 0, len(files))
	for i, f := range files {
		key := fmt.Sprintf("scholarships/%s/%02d-%s", scholarshipID, i+1, sanitize(f.Filename))
		if err := s.store.Upload(ctx, key, f.Body, f.ContentType); err != nil {
			s.Discard(ctx, keys)
			return nil, fmt.Errorf("store attachment %q: %w", f.Filename, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *service) Discard(ctx context.Context, keys []string) {
	for _, k := range keys {
		if err := s.store.Delete(ctx, k); err != nil {
			s.log.Warn("failed to delete orphaned attachment", zap.String("key", k), zap.Error(err))
		}
	}
}

func (s *service) Links(ctx context.Context, keys []string) ([]Link, error) {
	links := make([]Link, 0, len(keys))
	expires := s.now().Add(s.linkTTL).UTC()
	for _, k := range keys {
		url, err := s.store.PresignedURL(ctx, k, s.linkTTL)
		if err != nil {
			return nil, fmt.Errorf("sign attachment link: %w", err)
		}
		links = append(links, Link{Name: displayName(k), URL: url, ExpiresAt: expires})
	}
	return links, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitize keeps the base name and replaces anything outside a conservative charset.
func sanitize(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "._")
	if base == "" {
		return "attachment"
	}
	return base
}

// displayName strips the key prefix and ordinal.
func displayName(key string) string {
	base := path.Base(key)
	if len(base) > 3 && base[2] == '-' {
		return base[3:]
	}
	return base
}
