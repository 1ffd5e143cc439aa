package logger

import "strings"

// RedactEmail masks a recipient or sender mailbox address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactSecret fully masks a credential value (SMTP password, AWS secret
// key, webhook signing secret), keeping only its length-independent shape so
// a log line can still hint that the field was populated.
func RedactSecret(value string) string {
	if value == "" {
		return ""
	}
	return "***"
}
