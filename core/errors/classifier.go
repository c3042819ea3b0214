package errors

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// FromStatus classifies an HTTP status code returned by an external service.
func FromStatus(code int, message string, underlying error) *TieredError {
	return NewTieredError(tierForStatus(code), message, underlying).WithStatusCode(code)
}

func tierForStatus(code int) ErrorTier {
	switch {
	case code == http.StatusTooManyRequests:
		return TierExternalRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return TierUserFixable
	case code == http.StatusRequestTimeout:
		return TierTransient
	case code >= 500:
		return TierExternalDegrading
	default:
		return TierPermanent
	}
}

// Classify determines the tier for an arbitrary error. Explicit tiers win,
// then context and network errors, then message keywords.
func Classify(err error) ErrorTier {
	if err == nil {
		return TierPermanent
	}

	var te *TieredError
	if errors.As(err, &te) {
		return te.Tier
	}

	if errors.Is(err, context.Canceled) {
		return TierPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TierTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TierTransient
	}

	return classifyByContent(err.Error())
}

var transientKeywords = []string{
	"timeout",
	"temporary",
	"connection reset",
	"connection refused",
	"eof",
	"broken pipe",
}

func classifyByContent(errStr string) ErrorTier {
	lower := strings.ToLower(errStr)
	if strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests") {
		return TierExternalRateLimit
	}
	for _, kw := range transientKeywords {
		if strings.Contains(lower, kw) {
			return TierTransient
		}
	}
	return TierPermanent
}
