package handler

import (
	"encoding/json"
	"net/http"

	"github.com/tribe-otp/internal/application/verification"
	"github.com/tribe-otp/internal/domain"
	"github.com/tribe-otp/internal/pkg/validate"
)

type requestCodeBody struct {
	Identity string `json:"identity" validate:"required,max=254"`
}

type verifyCodeBody struct {
	Identity string `json:"identity" validate:"required,max=254"`
	Code     string `json:"code" validate:"required,max=64"`
}

// VerificationHandler fronts the one-time code flow.
type VerificationHandler struct {
	svc verification.Service
}

func NewVerificationHandler(svc verification.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

func (h *VerificationHandler) Request(w http.ResponseWriter, r *http.Request) {
	var body requestCodeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.svc.RequestCode(r.Context(), body.Identity); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "verification code sent"})
}

// Verify answers every non-success outcome except lockout with the same 401,
// so callers cannot tell a wrong code from an unknown or expired identity.
func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var body verifyCodeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	res, err := h.svc.VerifyCode(r.Context(), body.Identity, body.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	switch res {
	case domain.ResultSuccess:
		writeJSON(w, http.StatusOK, VerifyEnvelope{Verified: true, Message: "verified"})
	case domain.ResultAttemptsExceeded:
		writeJSON(w, http.StatusTooManyRequests, VerifyEnvelope{Error: "too many attempts, request a new code"})
	default:
		writeJSON(w, http.StatusUnauthorized, VerifyEnvelope{Error: "invalid or expired code"})
	}
}
