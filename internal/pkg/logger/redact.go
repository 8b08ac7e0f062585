package logger

import (
	"regexp"
	"strings"
)

var bearerRegex = regexp.MustCompile(`(?i)bearer\s+\S+`)

// secretKeys are field-name fragments whose values must never be logged
// in the clear.
var secretKeys = []string{"token", "secret", "password", "authorization"}

func redactSecretValue(key, val string) string {
	lower := strings.ToLower(key)
	for _, frag := range secretKeys {
		if strings.Contains(lower, frag) {
			return RedactSecret(val)
		}
	}
	// Redact embedded bearer tokens in generic fields (e.g. error text
	// that echoes request headers).
	return bearerRegex.ReplaceAllString(val, "Bearer ***")
}

// RedactSecret masks a credential value for safe logging, keeping a short
// prefix so distinct credentials remain distinguishable.
// "abcdef123456" → "abcd***"; values of ≤4 chars are fully masked.
func RedactSecret(val string) string {
	if len(val) > 4 {
		return val[:4] + "***"
	}
	return "***"
}
