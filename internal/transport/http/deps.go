package http

import (
	"context"
	"time"

	"github.com/tribe-otp/internal/application/verification"
	"github.com/tribe-otp/internal/infrastructure/smtp"
	"github.com/tribe-otp/internal/infrastructure/sns"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	CodeStore verification.CodeStore
	Mailer    smtp.Mailer
	SMSSender sns.SMSSender // nil when SNS is not configured
	CodeTTL   time.Duration
	// Ready backs /health-check/ready; nil means always ready.
	Ready func(ctx context.Context) error
}
