// Package policy masks user identifiers and credentials before they reach logs.
package policy

import "regexp"

var (
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	queryKeyPattern = regexp.MustCompile(`(?i)([?&](?:key|api_key|token)=)[^&\s"']+`)
	bearerPattern   = regexp.MustCompile(`(?i)(bearer\s+|xi-api-key:\s*)[A-Za-z0-9._\-]+`)
	phonePattern    = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
)

// RedactPII masks email addresses, credentials carried in URLs or headers,
// and phone numbers.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	next = queryKeyPattern.ReplaceAllString(out, "${1}[REDACTED_KEY]")
	changed = changed || next != out
	out = next

	next = bearerPattern.ReplaceAllString(out, "${1}[REDACTED_KEY]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// Redact is RedactPII without the changed flag.
func Redact(input string) string {
	out, _ := RedactPII(input)
	return out
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			if i == 0 {
				return "*" + email[i:]
			}
			return email[:1] + "***" + email[i:]
		}
	}
	return "[REDACTED_EMAIL]"
}
