// ABOUTME: Input normalization and validation helpers for dialogue steps
// ABOUTME: Phone numbers, positive amounts, list indexes, and operator choices

package dialogue

import (
	"strconv"
	"strings"
)

const (
	// CountryPrefix is the Benin dialing prefix every phone must start with.
	CountryPrefix = "229"
	// MinPhoneDigits is the shortest accepted phone, prefix included.
	MinPhoneDigits = 11
)

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone strips everything but digits and validates prefix and length.
func NormalizePhone(input string) (string, bool) {
	tel := digitsOnly(input)
	if !strings.HasPrefix(tel, CountryPrefix) || len(tel) < MinPhoneDigits {
		return "", false
	}
	return tel, true
}

// ParseAmount strips non-digits and requires a value of at least 1.
func ParseAmount(input string) (int64, bool) {
	n, err := strconv.ParseInt(digitsOnly(input), 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// parseIndex turns a 1-based choice into a 0-based index below n.
func parseIndex(input string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

// paymentSource maps the operator menu choice to the backend source name.
func paymentSource(choice string) (string, bool) {
	switch choice {
	case "1":
		return "MTN", true
	case "2":
		return "Moov", true
	case "3":
		return "Celtiis", true
	}
	return "", false
}

// optional reads an optional field where "0" means none.
func optional(input string) *string {
	v := strings.TrimSpace(input)
	if v == "0" || v == "" {
		return nil
	}
	return &v
}
