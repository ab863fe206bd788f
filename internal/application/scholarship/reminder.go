package scholarship

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/scholarship-portal/internal/domain"
)

type scholarshipLister interface {
	List(ctx context.Context) ([]domain.Scholarship, error)
}

// ExpiryReminder periodically issues a one-off "Contract Expiring Soon" notice for
// every active contract that ends within the window.
type ExpiryReminder struct {
	repo       scholarshipLister
	notes      notifier
	window     time.Duration
	interval   time.Duration
	recipients []string
	log        *zap.Logger
	now        func() time.Time
}

type ReminderDeps struct {
	Repo     scholarshipLister
	Notes    notifier
	Window   time.Duration
	Interval time.Duration
	// Recipients are staff copied on every reminder, in addition to the applicant.
	Recipients []string
	Logger     *zap.Logger
	Now        func() time.Time
}

func NewExpiryReminder(deps ReminderDeps) *ExpiryReminder {
	r := &ExpiryReminder{
		repo:       deps.Repo,
		notes:      deps.Notes,
		window:     deps.Window,
		interval:   deps.Interval,
		recipients: deps.Recipients,
		log:        deps.Logger,
		now:        deps.Now,
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.window <= 0 {
		r.window = 30 * 24 * time.Hour
	}
	if r.interval <= 0 {
		r.interval = 6 * time.Hour
	}
	return r
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (r *ExpiryReminder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if n, err := r.RunOnce(ctx); err != nil {
			r.log.Warn("expiry reminder sweep failed", zap.Error(err))
		} else if n > 0 {
			r.log.Info("expiry reminders issued", zap.Int("count", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce issues reminders that have not been sent yet and returns how many it created.
func (r *ExpiryReminder) RunOnce(ctx context.Context) (int, error) {
	all, err := r.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list scholarships: %w", err)
	}
	sent, err := r.notes.ReferencesWithTitle(ctx, TitleExpiringSoon)
	if err != nil {
		return 0, fmt.Errorf("list sent reminders: %w", err)
	}
	now := r.now().UTC()
	horizon := now.Add(r.window)
	issued := 0
	for i := range all {
		sch := &all[i]
		if sch.IsRevoked || sch.ContractExpiration == nil {
			continue
		}
		exp := sch.ContractExpiration.UTC()
		if exp.Before(now) || exp.After(horizon) {
			continue
		}
		if _, ok := sent[sch.ScholarshipID]; ok {
			continue
		}
		if err := r.remind(ctx, sch, now); err != nil {
			return issued, err
		}
		issued++
	}
	return issued, nil
}

func (r *ExpiryReminder) remind(ctx context.Context, sch *domain.Scholarship, now time.Time) error {
	exp := sch.ContractExpiration.UTC()
	days := int(math.Ceil(exp.Sub(now).Hours() / 24))
	typ := "unspecified"
	if sch.ScholarshipType != nil {
		typ = *sch.ScholarshipType
	}
	ref := sch.ScholarshipID
	_, err := r.notes.Create(ctx, domain.CreateNotificationRequest{
		Title: TitleExpiringSoon,
		Message: fmt.Sprintf("%s's %s scholarship contract will expire in %d days (%s).",
			sch.Name, typ, days, exp.Format("January 2, 2006")),
		Category:       domain.CategoryReminder,
		RequiresAction: true,
		Deadline:       &exp,
		Recipients:     append([]string{sch.Email}, r.recipients...),
		Reference:      &ref,
	})
	return err
}
