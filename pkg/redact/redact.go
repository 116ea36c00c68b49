package redact

import "strings"

// Token masks a bearer or refresh token for logging, keeping only the first
// four characters so two log lines can still be correlated.
func Token(tok string) string {
	if tok == "" {
		return "<none>"
	}
	if len(tok) <= 8 {
		return "[REDACTED_TOKEN]"
	}
	return tok[:4] + "…[REDACTED_TOKEN]"
}

// Email keeps the first two characters of the local part.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := parts[0], parts[1]
	if len(local) > 2 {
		local = local[:2] + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

func Password() string { return "[REDACTED_PASSWORD]" }
