package account

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/scholarship-portal/internal/domain"
)

// --- mocks ---

type mockAccountStore struct{ mock.Mock }

func (m *mockAccountStore) Create(ctx context.Context, a *domain.Account) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockAccountStore) Get(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccountStore) Update(ctx context.Context, email string, updates map[string]interface{}) (*domain.Account, error) {
	args := m.Called(ctx, email, updates)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockVerificationStore struct{ mock.Mock }

func (m *mockVerificationStore) Put(ctx context.Context, v *domain.Verification) error {
	return m.Called(ctx, v).Error(0)
}
func (m *mockVerificationStore) Get(ctx context.Context, email, verType string) (*domain.Verification, error) {
	args := m.Called(ctx, email, verType)
	if v, _ := args.Get(0).(*domain.Verification); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockVerificationStore) Delete(ctx context.Context, email, verType string) error {
	return m.Called(ctx, email, verType).Error(0)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) Sign(email, role string) (string, error) {
	args := m.Called(email, role)
	return args.String(0), args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

// --- helpers ---

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	accounts *mockAccountStore
	verifs   *mockVerificationStore
	signer   *mockSigner
	mailer   *mockMailer
	svc      Service
}

func newFixture() *fixture {
	f := &fixture{
		accounts: &mockAccountStore{},
		verifs:   &mockVerificationStore{},
		signer:   &mockSigner{},
		mailer:   &mockMailer{},
	}
	f.svc = NewService(ServiceDeps{
		Accounts:           f.accounts,
		Verifications:      f.verifs,
		Signer:             f.signer,
		Mailer:             f.mailer,
		Now:                func() time.Time { return testNow },
		PublicBaseURL:      "https://portal.example.edu/",
		LinkTTL:            15 * time.Minute,
		ScholarEmailSuffix: "@my.xu.edu.ph",
		StaffEmailSuffix:   "@xu.edu.ph",
	})
	return f
}

func hashOf(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// --- tests ---

func TestRoleForEmail(t *testing.T) {
	cases := []struct {
		email string
		role  string
		ok    bool
	}{
		{"ana@my.xu.edu.ph", domain.RoleScholar, true},
		{"CSO@XU.EDU.PH", domain.RoleCSO, true},
		{"someone@gmail.com", "", false},
	}
	for _, c := range cases {
		role, ok := RoleForEmail(c.email, "@my.xu.edu.ph", "@xu.edu.ph")
		assert.Equal(t, c.role, role, c.email)
		assert.Equal(t, c.ok, ok, c.email)
	}
}

func TestLogin_ExistingAccount(t *testing.T) {
	f := newFixture()
	acct := &domain.Account{Email: "ana@my.xu.edu.ph", Role: domain.RoleScholar, PasswordHash: hashOf(t, "secret")}
	f.accounts.On("Get", mock.Anything, "ana@my.xu.edu.ph").Return(acct, nil)
	f.signer.On("Sign", "ana@my.xu.edu.ph", domain.RoleScholar).Return("jwt-token", nil)

	res, err := f.svc.Login(context.Background(), domain.LoginRequest{Email: "Ana@my.xu.edu.ph", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", res.Token)
	assert.False(t, res.LinkSent)
	f.verifs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture()
	acct := &domain.Account{Email: "ana@my.xu.edu.ph", Role: domain.RoleScholar, PasswordHash: hashOf(t, "secret")}
	f.accounts.On("Get", mock.Anything, "ana@my.xu.edu.ph").Return(acct, nil)

	_, err := f.svc.Login(context.Background(), domain.LoginRequest{Email: "ana@my.xu.edu.ph", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	f.signer.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything)
}

func TestLogin_NewAccountSendsLink(t *testing.T) {
	f := newFixture()
	f.accounts.On("Get", mock.Anything, "cso@xu.edu.ph").Return(nil, domain.ErrNotFound)
	var stored *domain.Verification
	f.verifs.On("Put", mock.Anything, mock.AnythingOfType("*domain.Verification")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.Verification) }).
		Return(nil)
	var body string
	f.mailer.On("SendEmail", mock.Anything, "cso@xu.edu.ph", "Your sign-in link", mock.Anything).
		Run(func(args mock.Arguments) { body = args.String(3) }).
		Return(nil)

	res, err := f.svc.Login(context.Background(), domain.LoginRequest{Email: "cso@xu.edu.ph", Password: "secret"})
	require.NoError(t, err)
	assert.True(t, res.LinkSent)
	assert.Empty(t, res.Token)

	require.NotNil(t, stored)
	assert.Equal(t, domain.RoleCSO, stored.Role)
	assert.Equal(t, domain.VerificationSignup, stored.Type)
	assert.Len(t, stored.Code, 64)
	assert.Equal(t, testNow.Add(15*time.Minute).Unix(), stored.ExpiresAt)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret")))
	assert.True(t, strings.Contains(body,
		"https://portal.example.edu/v1/sessions/verify?email=cso%40xu.edu.ph&code="+stored.Code))
}

func TestLogin_ForeignDomainForbidden(t *testing.T) {
	f := newFixture()
	f.accounts.On("Get", mock.Anything, "bob@gmail.com").Return(nil, domain.ErrNotFound)

	_, err := f.svc.Login(context.Background(), domain.LoginRequest{Email: "bob@gmail.com", Password: "secret"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	f.mailer.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_InvalidPayload(t *testing.T) {
	_, err := newFixture().svc.Login(context.Background(), domain.LoginRequest{Email: "not-an-email"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "email")
	assert.Contains(t, ve.Fields, "password")
}

func TestVerifyLink_CreatesAccount(t *testing.T) {
	f := newFixture()
	v := &domain.Verification{Email: "ana@my.xu.edu.ph", Type: domain.VerificationSignup, Code: "abc", Role: domain.RoleScholar,
		PasswordHash: "hash", ExpiresAt: testNow.Add(time.Minute).Unix()}
	f.verifs.On("Get", mock.Anything, "ana@my.xu.edu.ph", domain.VerificationSignup).Return(v, nil)
	f.accounts.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.Account) bool {
		return a.Email == "ana@my.xu.edu.ph" && a.Role == domain.RoleScholar && a.PasswordHash == "hash"
	})).Return(nil)
	f.verifs.On("Delete", mock.Anything, "ana@my.xu.edu.ph", domain.VerificationSignup).Return(nil)
	f.signer.On("Sign", "ana@my.xu.edu.ph", domain.RoleScholar).Return("jwt-token", nil)

	res, err := f.svc.VerifyLink(context.Background(), "ana@my.xu.edu.ph", "abc")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", res.Token)
	assert.Equal(t, domain.RoleScholar, res.Account.Role)
	f.accounts.AssertExpectations(t)
	f.verifs.AssertExpectations(t)
}

func TestVerifyLink_Rejections(t *testing.T) {
	expired := &domain.Verification{Email: "ana@my.xu.edu.ph", Code: "abc", ExpiresAt: testNow.Add(-time.Second).Unix()}
	fresh := &domain.Verification{Email: "ana@my.xu.edu.ph", Code: "abc", ExpiresAt: testNow.Add(time.Minute).Unix()}

	cases := []struct {
		name string
		ver  *domain.Verification
		err  error
		code string
	}{
		{"missing", nil, domain.ErrNotFound, "abc"},
		{"expired", expired, nil, "abc"},
		{"wrong code", fresh, nil, "xyz"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newFixture()
			f.verifs.On("Get", mock.Anything, "ana@my.xu.edu.ph", domain.VerificationSignup).Return(c.ver, c.err)

			_, err := f.svc.VerifyLink(context.Background(), "ana@my.xu.edu.ph", c.code)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
			f.accounts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestVerifyLink_AlreadyRedeemed(t *testing.T) {
	f := newFixture()
	v := &domain.Verification{Email: "ana@my.xu.edu.ph", Code: "abc", Role: domain.RoleScholar, ExpiresAt: testNow.Add(time.Minute).Unix()}
	existing := &domain.Account{Email: "ana@my.xu.edu.ph", Role: domain.RoleScholar}
	f.verifs.On("Get", mock.Anything, "ana@my.xu.edu.ph", domain.VerificationSignup).Return(v, nil)
	f.accounts.On("Create", mock.Anything, mock.Anything).Return(domain.ErrConflict)
	f.accounts.On("Get", mock.Anything, "ana@my.xu.edu.ph").Return(existing, nil)
	f.verifs.On("Delete", mock.Anything, "ana@my.xu.edu.ph", domain.VerificationSignup).Return(nil)
	f.signer.On("Sign", "ana@my.xu.edu.ph", domain.RoleScholar).Return("jwt-token", nil)

	res, err := f.svc.VerifyLink(context.Background(), "ana@my.xu.edu.ph", "abc")
	require.NoError(t, err)
	assert.Same(t, existing, res.Account)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture()
	name := "  Ana Cruz "
	updated := &domain.Account{Email: "ana@my.xu.edu.ph"}
	f.accounts.On("Update", mock.Anything, "ana@my.xu.edu.ph", map[string]interface{}{"name": "Ana Cruz"}).Return(updated, nil)

	got, err := f.svc.UpdateProfile(context.Background(), "ana@my.xu.edu.ph", domain.RoleScholar, domain.UpdateProfileRequest{Name: &name})
	require.NoError(t, err)
	assert.Same(t, updated, got)
}

func TestUpdateProfile_Rejections(t *testing.T) {
	f := newFixture()
	name := "x"
	_, err := f.svc.UpdateProfile(context.Background(), "cso@xu.edu.ph", domain.RoleCSO, domain.UpdateProfileRequest{Name: &name})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.UpdateProfile(context.Background(), "ana@my.xu.edu.ph", domain.RoleScholar, domain.UpdateProfileRequest{})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	f.accounts.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}
