package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tribe-otp/internal/application/otp"
	"github.com/tribe-otp/internal/config"
	"github.com/tribe-otp/internal/infrastructure/memory"
	"golang.org/x/crypto/bcrypt"
)

type captureMailer struct{ body string }

func (m *captureMailer) SendEmail(_, _, body string) error {
	m.body = body
	return nil
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.1.1.1:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RequestThenVerify(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailer := &captureMailer{}
	store := otp.NewStore(memory.NewCodeRepo(), otp.Config{HashCost: bcrypt.MinCost, Clock: clock.NewMock()})
	router := NewRouter(ctx, &config.Config{AllowedOrigins: []string{"*"}}, &Deps{
		CodeStore: store,
		Mailer:    mailer,
		CodeTTL:   10 * time.Minute,
	})

	rec := post(t, router, "/v1/verification-codes/request", `{"identity":"a@x.com"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	code := regexp.MustCompile(`[0-9]{6}`).FindString(mailer.body)
	require.NotEmpty(t, code)

	rec = post(t, router, "/v1/verification-codes/verify", `{"identity":"A@x.com","code":"`+code+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = post(t, router, "/v1/verification-codes/verify", `{"identity":"a@x.com","code":"`+code+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_HealthPing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router := NewRouter(ctx, &config.Config{AllowedOrigins: []string{"*"}}, &Deps{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
