package logging

import "strings"

// IsRateLimit reports whether err looks like a provider quota rejection.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "429")
}

// IsTimeout reports whether err reads like a deadline or client timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out")
}
