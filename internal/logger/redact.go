package logger

import "strings"

// RedactEmail masks the local part of an address for logging, keeping the
// first two characters and the domain.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}
