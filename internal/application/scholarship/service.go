package scholarship

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scholarship-portal/internal/application/attachment"
	"github.com/scholarship-portal/internal/domain"
	"github.com/scholarship-portal/internal/pkg/id"
	"github.com/scholarship-portal/internal/pkg/validate"
)

// Titles and messages of the notices sent to applicants.
const (
	TitleVerified     = "Scholarship Application Verified"
	TitleRevoked      = "Scholarship Application Revoked"
	TitleSubmitted    = "New Scholarship Application"
	TitleExpiringSoon = "Contract Expiring Soon"

	messageVerified = "Your scholarship application has been verified."
	messageRevoked  = "Your scholarship application has been revoked."
)

// SubmitInput is one application submission by a scholar.
type SubmitInput struct {
	Email       string
	Request     domain.SubmitRequest
	Attachments []attachment.File
}

type Service interface {
	Submit(ctx context.Context, in SubmitInput) (*domain.ScholarshipView, error)
	Verify(ctx context.Context, scholarshipID, verifier string, req domain.VerifyRequest) (*domain.ScholarshipView, error)
	Revoke(ctx context.Context, scholarshipID, revoker string) (*domain.ScholarshipView, error)
	Get(ctx context.Context, scholarshipID string) (*domain.ScholarshipView, error)
	// List returns every application, newest first, with derived status.
	List(ctx context.Context) ([]domain.ScholarshipView, error)
	LatestForApplicant(ctx context.Context, email string) (*domain.ScholarshipView, error)
	Statistics(ctx context.Context) (*domain.Statistics, error)
	// AttachmentLinks is open to staff and to the applicant who owns the application.
	AttachmentLinks(ctx context.Context, scholarshipID, callerEmail, callerRole string) ([]attachment.Link, error)
}

type scholarshipStore interface {
	Put(ctx context.Context, s *domain.Scholarship) error
	Get(ctx context.Context, scholarshipID string) (*domain.Scholarship, error)
	List(ctx context.Context) ([]domain.Scholarship, error)
	LatestByEmail(ctx context.Context, email string) (*domain.Scholarship, error)
	Verify(ctx context.Context, scholarshipID string, v domain.VerifyUpdate) (*domain.Scholarship, error)
	Revoke(ctx context.Context, scholarshipID, revokedBy string, at time.Time) (*domain.Scholarship, error)
}

type accountLookup interface {
	Get(ctx context.Context, email string) (*domain.Account, error)
}

// notifier is the part of the notification service the lifecycle engine drives.
type notifier interface {
	Create(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error)
	GetForRecipient(ctx context.Context, notificationID, identity string) (*domain.Notification, error)
	MarkReadAndActed(ctx context.Context, notificationID, identity string) (*domain.Notification, error)
	ReferencesWithTitle(ctx context.Context, title string) (map[string]struct{}, error)
}

type attachmentStore interface {
	Store(ctx context.Context, scholarshipID string, files []attachment.File) ([]string, error)
	Discard(ctx context.Context, keys []string)
	Links(ctx context.Context, keys []string) ([]attachment.Link, error)
}

type metricsRecorder interface {
	ScholarshipTransition(action string)
}

type service struct {
	repo                 scholarshipStore
	accounts             accountLookup
	notes                notifier
	attachments          attachmentStore
	metrics              metricsRecorder
	log                  *zap.Logger
	now                  func() time.Time
	submissionRecipients []string
}

type ServiceDeps struct {
	Repo        scholarshipStore
	Accounts    accountLookup
	Notes       notifier
	Attachments attachmentStore
	Metrics     metricsRecorder
	Logger      *zap.Logger
	Now         func() time.Time
	// SubmissionNoticeRecipients get a notice for every new application. Empty disables it.
	SubmissionNoticeRecipients []string
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:                 deps.Repo,
		accounts:             deps.Accounts,
		notes:                deps.Notes,
		attachments:          deps.Attachments,
		metrics:              deps.Metrics,
		log:                  deps.Logger,
		now:                  deps.Now,
		submissionRecipients: deps.SubmissionNoticeRecipients,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Submit(ctx context.Context, in SubmitInput) (*domain.ScholarshipView, error) {
	email := domain.NormalizeIdentity(in.Email)
	if email == "" {
		return nil, fmt.Errorf("applicant email required: %w", domain.ErrUnauthorized)
	}

	profile := in.Request.Profile
	if s.accounts != nil {
		acct, err := s.accounts.Get(ctx, email)
		switch {
		case err == nil:
			profile = profile.FillBlanks(acct.Profile)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("look up applicant account: %w", err)
		}
	}

	ve := &domain.ValidationError{Fields: map[string]string{}}
	if err := validate.Struct(profile); err != nil {
		var pve *domain.ValidationError
		if !errors.As(err, &pve) {
			return nil, err
		}
		for k, v := range pve.Fields {
			ve.Fields[k] = v
		}
	}
	if len(in.Attachments) == 0 {
		ve.Fields["attachments"] = "at least one file is required"
	}
	ref := trimmedRef(in.Request.Reference)
	if ref != nil {
		if _, err := s.notes.GetForRecipient(ctx, *ref, email); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				ve.Fields["reference"] = "unknown notification"
			case errors.Is(err, domain.ErrForbidden):
				ve.Fields["reference"] = "notification is not addressed to you"
			default:
				return nil, err
			}
		}
	}
	if len(ve.Fields) > 0 {
		return nil, ve
	}

	now := s.now().UTC()
	sch := &domain.Scholarship{
		ScholarshipID: id.NewAt(now),
		Email:         email,
		Profile:       profile,
		Reference:     ref,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	keys, err := s.attachments.Store(ctx, sch.ScholarshipID, in.Attachments)
	if err != nil {
		return nil, err
	}
	sch.AttachmentKeys = keys

	if err := s.repo.Put(ctx, sch); err != nil {
		s.attachments.Discard(ctx, keys)
		return nil, fmt.Errorf("submit application: %w", err)
	}
	s.record("submit")
	s.log.Info("scholarship application submitted",
		zap.String("scholarship_id", sch.ScholarshipID),
		zap.String("email", email),
		zap.Int("attachments", len(keys)),
	)

	if ref != nil {
		if _, err := s.notes.MarkReadAndActed(ctx, *ref, email); err != nil {
			s.log.Warn("could not acknowledge requesting notification",
				zap.String("notification_id", *ref), zap.String("email", email), zap.Error(err))
		}
	}
	if len(s.submissionRecipients) > 0 {
		s.notifySubmission(ctx, sch)
	}

	view := domain.NewScholarshipView(*sch, now)
	return &view, nil
}

func (s *service) notifySubmission(ctx context.Context, sch *domain.Scholarship) {
	ref := sch.ScholarshipID
	_, err := s.notes.Create(ctx, domain.CreateNotificationRequest{
		Title:          TitleSubmitted,
		Message:        fmt.Sprintf("%s (%s) submitted a scholarship application.", sch.Name, sch.Email),
		Category:       domain.CategoryScholarship,
		RequiresAction: true,
		Recipients:     s.submissionRecipients,
		PublishedBy:    sch.Email,
		Reference:      &ref,
	})
	if err != nil {
		s.log.Warn("submission notice failed", zap.String("scholarship_id", ref), zap.Error(err))
	}
}

// Verify records the verification and notifies the applicant. Revoked applications
// cannot be verified. Verifying again overwrites the earlier verification.
func (s *service) Verify(ctx context.Context, scholarshipID, verifier string, req domain.VerifyRequest) (*domain.ScholarshipView, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	update := domain.VerifyUpdate{
		ScholarshipType:    strings.TrimSpace(req.ScholarshipType),
		GPARequirement:     req.GPARequirement,
		Benefactor:         strings.TrimSpace(req.Benefactor),
		AcademicYear:       optional(req.AcademicYear),
		ContractExpiration: req.ContractExpiration.UTC(),
		VerifiedBy:         domain.NormalizeIdentity(verifier),
		VerifiedAt:         now,
	}
	sch, err := s.repo.Verify(ctx, scholarshipID, update)
	if err != nil {
		return nil, err
	}
	s.record("verify")

	if err := s.notifyApplicant(ctx, sch, TitleVerified, messageVerified, update.VerifiedBy); err != nil {
		return nil, fmt.Errorf("scholarship %s verified but applicant notice failed: %w", scholarshipID, err)
	}
	view := domain.NewScholarshipView(*sch, now)
	return &view, nil
}

// Revoke is terminal and idempotent. The applicant is notified on the first revocation only.
func (s *service) Revoke(ctx context.Context, scholarshipID, revoker string) (*domain.ScholarshipView, error) {
	now := s.now().UTC()
	revoker = domain.NormalizeIdentity(revoker)
	prev, err := s.repo.Revoke(ctx, scholarshipID, revoker, now)
	if err != nil {
		return nil, err
	}

	sch := *prev
	if !prev.IsRevoked {
		s.record("revoke")
		sch.IsRevoked = true
		sch.RevokedBy = &revoker
		sch.UpdatedAt = now
		if err := s.notifyApplicant(ctx, &sch, TitleRevoked, messageRevoked, revoker); err != nil {
			return nil, fmt.Errorf("scholarship %s revoked but applicant notice failed: %w", scholarshipID, err)
		}
	}
	view := domain.NewScholarshipView(sch, now)
	return &view, nil
}

func (s *service) notifyApplicant(ctx context.Context, sch *domain.Scholarship, title, message, publisher string) error {
	ref := sch.ScholarshipID
	_, err := s.notes.Create(ctx, domain.CreateNotificationRequest{
		Title:       title,
		Message:     message,
		Category:    domain.CategoryReminder,
		Recipients:  []string{sch.Email},
		PublishedBy: publisher,
		Reference:   &ref,
	})
	return err
}

func (s *service) Get(ctx context.Context, scholarshipID string) (*domain.ScholarshipView, error) {
	sch, err := s.repo.Get(ctx, scholarshipID)
	if err != nil {
		return nil, err
	}
	view := domain.NewScholarshipView(*sch, s.now())
	return &view, nil
}

func (s *service) List(ctx context.Context) ([]domain.ScholarshipView, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scholarships: %w", err)
	}
	now := s.now()
	views := make([]domain.ScholarshipView, 0, len(all))
	for _, sch := range all {
		views = append(views, domain.NewScholarshipView(sch, now))
	}
	sort.SliceStable(views, func(i, j int) bool {
		if !views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].CreatedAt.After(views[j].CreatedAt)
		}
		return views[i].ScholarshipID > views[j].ScholarshipID
	})
	return views, nil
}

func (s *service) LatestForApplicant(ctx context.Context, email string) (*domain.ScholarshipView, error) {
	sch, err := s.repo.LatestByEmail(ctx, domain.NormalizeIdentity(email))
	if err != nil {
		return nil, err
	}
	view := domain.NewScholarshipView(*sch, s.now())
	return &view, nil
}

// Statistics groups unrevoked, typed applications by scholarship type. Applications
// without a type yet count as pending.
func (s *service) Statistics(ctx context.Context) (*domain.Statistics, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scholarships: %w", err)
	}
	now := s.now()
	byType := map[string]*domain.TypeStatistics{}
	stats := &domain.Statistics{Grouped: []domain.TypeStatistics{}}
	for i := range all {
		sch := &all[i]
		if sch.IsRevoked {
			continue
		}
		if sch.ScholarshipType == nil || *sch.ScholarshipType == "" {
			stats.TotalPending++
			continue
		}
		g, ok := byType[*sch.ScholarshipType]
		if !ok {
			g = &domain.TypeStatistics{ScholarshipType: *sch.ScholarshipType}
			byType[*sch.ScholarshipType] = g
		}
		g.Count++
		stats.TotalCount++
		switch domain.ComputeStatus(sch, now) {
		case domain.StatusVerified:
			g.Active++
			stats.TotalActive++
		case domain.StatusExpired:
			g.Expired++
		}
	}
	for _, g := range byType {
		g.Total = g.Active + g.Expired
		if stats.TotalCount > 0 {
			g.Percent = float64(g.Count) / float64(stats.TotalCount) * 100
		}
		stats.Grouped = append(stats.Grouped, *g)
	}
	sort.Slice(stats.Grouped, func(i, j int) bool {
		return stats.Grouped[i].ScholarshipType < stats.Grouped[j].ScholarshipType
	})
	return stats, nil
}

func (s *service) AttachmentLinks(ctx context.Context, scholarshipID, callerEmail, callerRole string) ([]attachment.Link, error) {
	sch, err := s.repo.Get(ctx, scholarshipID)
	if err != nil {
		return nil, err
	}
	if callerRole != domain.RoleCSO && sch.Email != domain.NormalizeIdentity(callerEmail) {
		return nil, fmt.Errorf("scholarship %s belongs to another applicant: %w", scholarshipID, domain.ErrForbidden)
	}
	return s.attachments.Links(ctx, sch.AttachmentKeys)
}

func (s *service) record(action string) {
	if s.metrics != nil {
		s.metrics.ScholarshipTransition(action)
	}
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func trimmedRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	return optional(*ref)
}
