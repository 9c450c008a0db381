package payment

import (
	"strings"

	"github.com/fjod/go_pos/internal/domain"
)

// PhoneFormat describes the accepted local mobile numbers, e.g. for Kenya
// country code 254, 9 subscriber digits starting with 7 or 1.
type PhoneFormat struct {
	CountryCode      string
	SubscriberDigits int
	// Prefixes holds the allowed first digits of the subscriber number.
	Prefixes string
}

var DefaultPhoneFormat = PhoneFormat{CountryCode: "254", SubscriberDigits: 9, Prefixes: "17"}

// Normalize accepts "0712345678", "712345678", "254712345678" and
// "+254712345678" style input and returns the number in international form
// without the plus sign.
func (f PhoneFormat) Normalize(raw string) (string, error) {
	n := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	n = strings.TrimPrefix(n, "+")

	switch {
	case len(n) == len(f.CountryCode)+f.SubscriberDigits && strings.HasPrefix(n, f.CountryCode):
		n = n[len(f.CountryCode):]
	case len(n) == f.SubscriberDigits+1 && strings.HasPrefix(n, "0"):
		n = n[1:]
	}

	if len(n) != f.SubscriberDigits || !allDigits(n) {
		return "", domain.ErrInvalidPhone
	}
	if f.Prefixes != "" && !strings.ContainsRune(f.Prefixes, rune(n[0])) {
		return "", domain.ErrInvalidPhone
	}
	return f.CountryCode + n, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
