package domain

import "time"

// OneTimeCode is the persisted state of a single issued verification code.
// At most one exists per Identity; CodeID distinguishes successive issuances
// so conditional writes never touch a record that has since been replaced.
type OneTimeCode struct {
	Identity   string    `json:"identity"`
	CodeID     string    `json:"code_id"`
	SecretHash string    `json:"-"`
	Attempts   int       `json:"attempts"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the code is no longer usable at now.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Result is the outcome of a verification attempt. Every value other than
// ResultSuccess is an expected outcome, not a fault.
type Result int

const (
	ResultSuccess Result = iota
	ResultInvalidCode
	ResultNotFound
	ResultExpired
	ResultAttemptsExceeded
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultInvalidCode:
		return "invalid_code"
	case ResultNotFound:
		return "not_found"
	case ResultExpired:
		return "expired"
	case ResultAttemptsExceeded:
		return "attempts_exceeded"
	default:
		return "unknown"
	}
}
