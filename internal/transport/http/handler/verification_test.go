package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tribe-otp/internal/domain"
)

// --- mocks ---

type mockVerificationService struct{ mock.Mock }

func (m *mockVerificationService) RequestCode(ctx context.Context, identity string) error {
	return m.Called(ctx, identity).Error(0)
}
func (m *mockVerificationService) VerifyCode(ctx context.Context, identity, code string) (domain.Result, error) {
	args := m.Called(ctx, identity, code)
	return args.Get(0).(domain.Result), args.Error(1)
}

// --- helpers ---

func do(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeVerify(t *testing.T, rec *httptest.ResponseRecorder) VerifyEnvelope {
	t.Helper()
	var env VerifyEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

// --- Request ---

func TestRequest_Accepted(t *testing.T) {
	svc := &mockVerificationService{}
	svc.On("RequestCode", mock.Anything, "a@x.com").Return(nil)

	rec := do(t, NewVerificationHandler(svc).Request, `{"identity":"a@x.com"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotContains(t, rec.Body.String(), "code\":")
}

func TestRequest_MalformedJSON(t *testing.T) {
	rec := do(t, NewVerificationHandler(&mockVerificationService{}).Request, `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequest_MissingIdentity(t *testing.T) {
	rec := do(t, NewVerificationHandler(&mockVerificationService{}).Request, `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRequest_BadIdentity(t *testing.T) {
	svc := &mockVerificationService{}
	svc.On("RequestCode", mock.Anything, "nope").Return(domain.ErrBadRequest)

	rec := do(t, NewVerificationHandler(svc).Request, `{"identity":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequest_StoreUnavailable(t *testing.T) {
	svc := &mockVerificationService{}
	svc.On("RequestCode", mock.Anything, "a@x.com").Return(errors.Join(domain.ErrStoreUnavailable, errors.New("dial tcp: refused")))

	rec := do(t, NewVerificationHandler(svc).Request, `{"identity":"a@x.com"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.NotContains(t, rec.Body.String(), "dial tcp")
}

// --- Verify ---

func TestVerify_Success(t *testing.T) {
	svc := &mockVerificationService{}
	svc.On("VerifyCode", mock.Anything, "a@x.com", "482913").Return(domain.ResultSuccess, nil)

	rec := do(t, NewVerificationHandler(svc).Verify, `{"identity":"a@x.com","code":"482913"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeVerify(t, rec).Verified)
}

func TestVerify_FailuresLookAlike(t *testing.T) {
	var bodies []string
	for _, res := range []domain.Result{domain.ResultInvalidCode, domain.ResultNotFound, domain.ResultExpired} {
		svc := &mockVerificationService{}
		svc.On("VerifyCode", mock.Anything, "a@x.com", "000000").Return(res, nil)

		rec := do(t, NewVerificationHandler(svc).Verify, `{"identity":"a@x.com","code":"000000"}`)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, res.String())
		bodies = append(bodies, rec.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[0], bodies[2])
}

func TestVerify_AttemptsExceeded(t *testing.T) {
	svc := &mockVerificationService{}
	svc.On("VerifyCode", mock.Anything, "a@x.com", "000000").Return(domain.ResultAttemptsExceeded, nil)

	rec := do(t, NewVerificationHandler(svc).Verify, `{"identity":"a@x.com","code":"000000"}`)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, decodeVerify(t, rec).Verified)
}

func TestVerify_MissingCode(t *testing.T) {
	rec := do(t, NewVerificationHandler(&mockVerificationService{}).Verify, `{"identity":"a@x.com"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// --- Health ---

func TestHealth_Actions(t *testing.T) {
	failing := NewHealthHandler(func(context.Context) error { return errors.New("redis down") })
	r := chi.NewRouter()
	r.Get("/health-check/{action}", failing.Ping)

	cases := map[string]int{
		"/health-check/ping":  http.StatusOK,
		"/health-check/ready": http.StatusServiceUnavailable,
		"/health-check/other": http.StatusBadRequest,
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}
