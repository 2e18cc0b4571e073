package verification

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/tribe-otp/internal/domain"
	"github.com/tribe-otp/internal/infrastructure/smtp"
	"github.com/tribe-otp/internal/infrastructure/sns"
	"github.com/tribe-otp/internal/pkg/validate"
)

// CodeStore is the one-time code store the flow drives.
type CodeStore interface {
	Issue(ctx context.Context, identity string) (string, error)
	Verify(ctx context.Context, identity, code string) (domain.Result, error)
}

type Service interface {
	// RequestCode issues a fresh code for identity and delivers it by e-mail
	// or SMS depending on the identity's shape.
	RequestCode(ctx context.Context, identity string) error
	VerifyCode(ctx context.Context, identity, code string) (domain.Result, error)
}

type ServiceDeps struct {
	Store     CodeStore
	Mailer    smtp.Mailer
	SMSSender sns.SMSSender // optional
	CodeTTL   time.Duration
}

type service struct {
	store     CodeStore
	mailer    smtp.Mailer
	smsSender sns.SMSSender
	codeTTL   time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		store:     deps.Store,
		mailer:    deps.Mailer,
		smsSender: deps.SMSSender,
		codeTTL:   deps.CodeTTL,
	}
}

func (s *service) RequestCode(ctx context.Context, identity string) error {
	identity = Normalize(identity)
	if !validate.IsIdentity(identity) {
		return fmt.Errorf("identity must be an e-mail address or E.164 phone number: %w", domain.ErrBadRequest)
	}
	if (isEmail(identity) && s.mailer == nil) || (!isEmail(identity) && s.smsSender == nil) {
		return fmt.Errorf("no delivery channel for identity: %w", domain.ErrBadRequest)
	}

	code, err := s.store.Issue(ctx, identity)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("Your Tribe verification code is %s. It expires in %s.", code, minutes(s.codeTTL))
	if isEmail(identity) {
		err = s.mailer.SendEmail(identity, "Your Tribe verification code", msg)
	} else {
		err = s.smsSender.SendSMS(ctx, identity, msg)
	}
	if err != nil {
		slog.Warn("verification code delivery failed", "identity", identity, "err", err)
		return fmt.Errorf("deliver code: %w", err)
	}
	return nil
}

func (s *service) VerifyCode(ctx context.Context, identity, code string) (domain.Result, error) {
	identity = Normalize(identity)
	res, err := s.store.Verify(ctx, identity, strings.TrimSpace(code))
	if err != nil {
		return res, err
	}
	slog.Info("verification attempt", "identity", identity, "result", res.String())
	return res, nil
}

// Normalize trims whitespace, lower-cases e-mail identities and rewrites
// phone numbers to E.164, so every spelling of an identity shares one code.
func Normalize(identity string) string {
	identity = strings.TrimSpace(identity)
	if isEmail(identity) {
		return strings.ToLower(identity)
	}
	if e164, ok := validate.NormalizePhone(identity); ok {
		return e164
	}
	return identity
}

// minutes renders d rounded up to whole minutes, never less than one.
func minutes(d time.Duration) string {
	n := int(math.Ceil(d.Minutes()))
	if n <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", n)
}

func isEmail(identity string) bool {
	return strings.Contains(identity, "@")
}
