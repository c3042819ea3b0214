// Package errors sorts failures of external collaborators (LLM providers,
// web search, conversation storage) into tiers that decide whether a call
// is retried, tripped through a breaker or surfaced to the operator.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

type ErrorTier int

const (
	// TierTransient covers timeouts and dropped connections.
	TierTransient ErrorTier = iota
	// TierPermanent covers bad requests and unparseable model output.
	TierPermanent
	// TierUserFixable covers missing or rejected credentials.
	TierUserFixable
	TierExternalRateLimit
	// TierExternalDegrading covers 5xx responses. Only this tier and rate
	// limits count against a provider's circuit breaker.
	TierExternalDegrading
)

var tierNames = [...]string{
	TierTransient:         "transient",
	TierPermanent:         "permanent",
	TierUserFixable:       "user_fixable",
	TierExternalRateLimit: "external_rate_limit",
	TierExternalDegrading: "external_degrading",
}

func (t ErrorTier) String() string {
	if t >= 0 && int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "unknown"
}

// TieredError carries a tier plus whatever the upstream told us about it.
type TieredError struct {
	Tier       ErrorTier
	Message    string
	Underlying error
	StatusCode int
	RetryAfter time.Duration
}

func (e *TieredError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Tier, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s", e.Tier, e.Message)
}

func (e *TieredError) Unwrap() error {
	return e.Underlying
}

// Is matches any TieredError of the same tier, so errors.Is(err, ErrTimeout)
// holds for every transient failure.
func (e *TieredError) Is(target error) bool {
	var te *TieredError
	if errors.As(target, &te) {
		return e.Tier == te.Tier
	}
	return false
}

func NewTieredError(tier ErrorTier, message string, underlying error) *TieredError {
	return &TieredError{Tier: tier, Message: message, Underlying: underlying}
}

func (e *TieredError) WithStatusCode(code int) *TieredError {
	e.StatusCode = code
	return e
}

func (e *TieredError) WithRetryAfter(d time.Duration) *TieredError {
	e.RetryAfter = d
	return e
}

// ParseRetryAfter reads a Retry-After header given in seconds. HTTP dates
// and malformed values yield zero.
func ParseRetryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// GetTier returns the tier of err, or TierPermanent for untiered errors.
func GetTier(err error) ErrorTier {
	var te *TieredError
	if errors.As(err, &te) {
		return te.Tier
	}
	return TierPermanent
}

var (
	ErrTimeout            = NewTieredError(TierTransient, "operation timed out", nil)
	ErrMalformedOutput    = NewTieredError(TierPermanent, "malformed model output", nil)
	ErrRateLimited        = NewTieredError(TierExternalRateLimit, "rate limited", nil).WithStatusCode(http.StatusTooManyRequests)
	ErrServiceUnavailable = NewTieredError(TierExternalDegrading, "service unavailable", nil).WithStatusCode(http.StatusServiceUnavailable)
)

// WrapWithTier adds context to err. An already tiered error keeps its tier
// and upstream hints; anything else gets tier.
func WrapWithTier(tier ErrorTier, message string, err error) error {
	if err == nil {
		return nil
	}

	var te *TieredError
	if errors.As(err, &te) {
		return &TieredError{
			Tier:       te.Tier,
			Message:    message,
			Underlying: err,
			StatusCode: te.StatusCode,
			RetryAfter: te.RetryAfter,
		}
	}
	return NewTieredError(tier, message, err)
}
