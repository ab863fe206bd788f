package http

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarship-portal/internal/config"
	"github.com/scholarship-portal/internal/domain"
	jwtinfra "github.com/scholarship-portal/internal/infrastructure/jwt"
	"github.com/scholarship-portal/internal/infrastructure/metrics"
)

func newTestRouter(t *testing.T) (http.Handler, *jwtinfra.Provider) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	p := jwtinfra.NewProviderFromKeys(key, &key.PublicKey, time.Hour)
	cfg := &config.Config{AllowedOrigins: []string{"*"}}
	deps := &Deps{JWTProvider: p, Metrics: metrics.New()}
	return NewRouter(cfg, deps, &Services{}), p
}

func TestRouter_Access(t *testing.T) {
	router, p := newTestRouter(t)
	scholarToken, err := p.Sign("ana@my.xu.edu.ph", domain.RoleScholar)
	require.NoError(t, err)
	staffToken, err := p.Sign("cso@xu.edu.ph", domain.RoleCSO)
	require.NoError(t, err)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"ping is public", http.MethodGet, "/v1/health-check/ping", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", http.StatusOK},
		{"notifications need a token", http.MethodGet, "/v1/notifications", "", http.StatusUnauthorized},
		{"scholar cannot list applications", http.MethodGet, "/v1/scholarships", scholarToken, http.StatusForbidden},
		{"scholar cannot open the staff stream", http.MethodGet, "/v1/scholarships/stream", scholarToken, http.StatusForbidden},
		{"scholar cannot verify", http.MethodPost, "/v1/scholarships/A1/verify", scholarToken, http.StatusForbidden},
		{"scholar cannot post announcements", http.MethodPost, "/v1/notifications", scholarToken, http.StatusForbidden},
		{"staff cannot submit", http.MethodPost, "/v1/scholarships", staffToken, http.StatusForbidden},
		{"staff have no profile to edit", http.MethodPut, "/v1/accounts/me", staffToken, http.StatusForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(c.method, c.path, nil)
			if c.token != "" {
				req.Header.Set("Authorization", "Bearer "+c.token)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, c.want, rr.Code)
		})
	}
}
