package tools

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ttacon/libphonenumber"
)

// DigitsOnly strips everything but digits from a phone-ish string.
func DigitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeRecipientPhone normalizes a recipient into the digits-only
// international format the WhatsApp Cloud API expects (E.164 without '+').
// Falls back to the raw digits when libphonenumber cannot validate them;
// the provider has the final word on deliverability.
func NormalizeRecipientPhone(raw string) (string, error) {
	digits := DigitsOnly(raw)
	if digits == "" {
		return "", fmt.Errorf("empty phone")
	}

	if p, err := libphonenumber.Parse("+"+digits, ""); err == nil && libphonenumber.IsValidNumber(p) {
		return strings.TrimPrefix(libphonenumber.Format(p, libphonenumber.E164), "+"), nil
	}

	if len(digits) < 8 {
		return "", fmt.Errorf("invalid phone length: %d", len(digits))
	}
	return digits, nil
}
