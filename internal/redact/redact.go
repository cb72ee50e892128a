// Package redact strips credentials and bulky payloads from strings before
// they are logged or returned in error responses. Image service errors tend
// to echo request URLs (with API keys) and results carry whole images as
// base64 data URLs; neither belongs in a log line.
package redact

import (
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
	ImageDataPlaceholder          = "[IMAGE_DATA]"
)

type rule struct {
	pattern *regexp.Regexp
	replace func(match string) string
}

func constant(placeholder string) func(string) string {
	return func(string) string { return placeholder }
}

// Precompiled regex patterns
var (
	// Inline images. The MIME prefix is kept so the log still says what it was.
	dataURLRegex = regexp.MustCompile(`data:([a-z]+/[A-Za-z0-9.+-]+);base64,[A-Za-z0-9+/=]+`)

	// Connection strings with userinfo
	connRegex = regexp.MustCompile(`(?i)(postgres|postgresql|redis|rediss|mysql)://[^@\s]+@`)

	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)

	// Google API keys as they appear in request URLs
	googleKeyRegex = regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`)

	jwtTokenRegex = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)

	apiKeyRegex = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|signing[_-]?key)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// Order matters: data URLs first so base64 payloads never feed the key
	// patterns, JWTs before generic token=value pairs.
	rules = []rule{
		{dataURLRegex, redactDataURL},
		{connRegex, constant(RedactedCredentialPlaceholder)},
		{passwordRegex, constant(RedactedCredentialPlaceholder)},
		{googleKeyRegex, constant(RedactedKeyPlaceholder)},
		{jwtTokenRegex, constant(RedactedJWTPlaceholder)},
		{apiKeyRegex, constant(RedactedKeyPlaceholder)},
		{emailRegex, constant(RedactedEmailPlaceholder)},
	}
)

func redactDataURL(match string) string {
	sub := dataURLRegex.FindStringSubmatch(match)
	return "data:" + sub[1] + ";base64," + ImageDataPlaceholder
}

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllStringFunc(result, r.replace)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
