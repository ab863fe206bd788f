package account

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/scholarship-portal/internal/domain"
	"github.com/scholarship-portal/internal/pkg/token"
	"github.com/scholarship-portal/internal/pkg/validate"
)

// LoginResult carries a session token for an existing account, or reports that a
// one-time sign-in link was emailed for a new one.
type LoginResult struct {
	Token    string          `json:"token,omitempty"`
	Account  *domain.Account `json:"account,omitempty"`
	LinkSent bool            `json:"link_sent"`
}

type Service interface {
	Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error)
	// VerifyLink redeems a one-time link, creating the account on first use.
	VerifyLink(ctx context.Context, email, code string) (*LoginResult, error)
	Me(ctx context.Context, email string) (*domain.Account, error)
	UpdateProfile(ctx context.Context, email, role string, req domain.UpdateProfileRequest) (*domain.Account, error)
}

type accountStore interface {
	Create(ctx context.Context, a *domain.Account) error
	Get(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, email string, updates map[string]interface{}) (*domain.Account, error)
}

type verificationStore interface {
	Put(ctx context.Context, v *domain.Verification) error
	Get(ctx context.Context, email, verType string) (*domain.Verification, error)
	Delete(ctx context.Context, email, verType string) error
}

type tokenSigner interface {
	Sign(email, role string) (string, error)
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type service struct {
	accounts      accountStore
	verifications verificationStore
	signer        tokenSigner
	mailer        mailer
	log           *zap.Logger
	now           func() time.Time
	baseURL       string
	linkTTL       time.Duration
	scholarSuffix string
	staffSuffix   string
}

type ServiceDeps struct {
	Accounts      accountStore
	Verifications verificationStore
	Signer        tokenSigner
	Mailer        mailer
	Logger        *zap.Logger
	Now           func() time.Time
	// PublicBaseURL prefixes the emailed sign-in link.
	PublicBaseURL      string
	LinkTTL            time.Duration
	ScholarEmailSuffix string
	StaffEmailSuffix   string
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		accounts:      deps.Accounts,
		verifications: deps.Verifications,
		signer:        deps.Signer,
		mailer:        deps.Mailer,
		log:           deps.Logger,
		now:           deps.Now,
		baseURL:       strings.TrimRight(deps.PublicBaseURL, "/"),
		linkTTL:       deps.LinkTTL,
		scholarSuffix: strings.ToLower(deps.ScholarEmailSuffix),
		staffSuffix:   strings.ToLower(deps.StaffEmailSuffix),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.linkTTL <= 0 {
		s.linkTTL = 15 * time.Minute
	}
	return s
}

// RoleForEmail maps an email to a role by domain. The scholar suffix is the more
// specific one and is checked first.
func RoleForEmail(email, scholarSuffix, staffSuffix string) (string, bool) {
	email = domain.NormalizeIdentity(email)
	switch {
	case scholarSuffix != "" && strings.HasSuffix(email, scholarSuffix):
		return domain.RoleScholar, true
	case staffSuffix != "" && strings.HasSuffix(email, staffSuffix):
		return domain.RoleCSO, true
	default:
		return "", false
	}
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	email := domain.NormalizeIdentity(req.Email)

	acct, err := s.accounts.Get(ctx, email)
	switch {
	case err == nil:
		if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)); err != nil {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return s.session(acct)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	role, ok := RoleForEmail(email, s.scholarSuffix, s.staffSuffix)
	if !ok {
		return nil, fmt.Errorf("email domain not allowed: %w", domain.ErrForbidden)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	code, err := token.NewLinkCode()
	if err != nil {
		return nil, err
	}
	v := &domain.Verification{
		Email:        email,
		Type:         domain.VerificationSignup,
		Code:         code,
		Role:         role,
		PasswordHash: string(hash),
		ExpiresAt:    s.now().Add(s.linkTTL).Unix(),
	}
	if err := s.verifications.Put(ctx, v); err != nil {
		return nil, err
	}

	link := fmt.Sprintf("%s/v1/sessions/verify?email=%s&code=%s", s.baseURL, url.QueryEscape(email), code)
	body := fmt.Sprintf("Open this link to finish signing in to the scholarship portal:\n\n%s\n\nThe link expires in %s.\n",
		link, s.linkTTL)
	if err := s.mailer.SendEmail(ctx, email, "Your sign-in link", body); err != nil {
		return nil, fmt.Errorf("send sign-in link: %w", err)
	}
	s.log.Info("sign-in link sent", zap.String("email", email), zap.String("role", role))
	return &LoginResult{LinkSent: true}, nil
}

func (s *service) VerifyLink(ctx context.Context, email, code string) (*LoginResult, error) {
	email = domain.NormalizeIdentity(email)
	if email == "" || code == "" {
		return nil, fmt.Errorf("email and code are required: %w", domain.ErrBadRequest)
	}
	v, err := s.verifications.Get(ctx, email, domain.VerificationSignup)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid or expired link: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	// DynamoDB TTL deletion lags, so expiry is checked here too.
	if v.ExpiresAt < s.now().Unix() || !token.Equal(v.Code, code) {
		return nil, fmt.Errorf("invalid or expired link: %w", domain.ErrUnauthorized)
	}

	now := s.now().UTC()
	acct := &domain.Account{
		Email:        email,
		Role:         v.Role,
		PasswordHash: v.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		if acct, err = s.accounts.Get(ctx, email); err != nil {
			return nil, err
		}
	} else {
		s.log.Info("account created", zap.String("email", email), zap.String("role", acct.Role))
	}
	if err := s.verifications.Delete(ctx, email, domain.VerificationSignup); err != nil {
		s.log.Warn("could not delete redeemed sign-in link", zap.String("email", email), zap.Error(err))
	}
	return s.session(acct)
}

func (s *service) Me(ctx context.Context, email string) (*domain.Account, error) {
	return s.accounts.Get(ctx, domain.NormalizeIdentity(email))
}

// UpdateProfile changes only the fields present in req. Only scholars own a profile.
func (s *service) UpdateProfile(ctx context.Context, email, role string, req domain.UpdateProfileRequest) (*domain.Account, error) {
	if role != domain.RoleScholar {
		return nil, fmt.Errorf("only scholars have a profile: %w", domain.ErrForbidden)
	}
	updates := map[string]interface{}{}
	set := func(field string, v *string) {
		if v != nil {
			updates[field] = strings.TrimSpace(*v)
		}
	}
	set("name", req.Name)
	set("gender", req.Gender)
	set("college", req.College)
	set("program", req.Program)
	set("university", req.University)
	set("student_id", req.StudentID)
	set("year_level", req.YearLevel)
	if len(updates) == 0 {
		return nil, domain.NewValidationError("profile", "no fields to update")
	}
	return s.accounts.Update(ctx, domain.NormalizeIdentity(email), updates)
}

func (s *service) session(acct *domain.Account) (*LoginResult, error) {
	tok, err := s.signer.Sign(acct.Email, acct.Role)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	return &LoginResult{Token: tok, Account: acct}, nil
}
