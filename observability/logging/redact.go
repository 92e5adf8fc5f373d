package logging

import (
	"net/url"
	"strings"
)

// RedactedValue replaces sensitive values in log records.
const RedactedValue = "[REDACTED]"

func maskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskBearer keeps the scheme of an Authorization header and redacts the
// credential.
func MaskBearer(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || strings.TrimSpace(token) == "" {
		return maskValue(header)
	}
	return scheme + " " + RedactedValue
}

// MaskDSN redacts the password and query of a URL-style connection string.
// Anything that does not parse as a URL with a scheme is redacted whole.
func MaskDSN(dsn string) string {
	u, err := url.Parse(strings.TrimSpace(dsn))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return maskValue(dsn)
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), RedactedValue)
	}
	if u.RawQuery != "" {
		u.RawQuery = RedactedValue
	}
	return u.String()
}
