package validate

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

// v is the package-level singleton validator.
var v = validator.New()

// IsIdentity reports whether s is a bare e-mail address or a valid phone
// number already in E.164 form.
func IsIdentity(s string) bool {
	if strings.Contains(s, "@") {
		addr, err := mail.ParseAddress(s)
		return err == nil && addr.Address == s
	}
	e164, ok := NormalizePhone(s)
	return ok && e164 == s
}

// NormalizePhone parses an international phone number ("+1 415-555-2671")
// and returns its E.164 form ("+14155552671").
func NormalizePhone(s string) (string, bool) {
	num, err := phonenumbers.Parse(s, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
