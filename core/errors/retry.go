package errors

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy defines the retry behavior for a specific error tier.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of retry attempts (0 means no retry).
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the starting backoff duration.
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay is the maximum backoff duration.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier is the backoff multiplier (default: 2.0).
	Multiplier float64 `yaml:"multiplier"`

	// UseRetryAfter honours the Retry-After hint of rate limit errors.
	UseRetryAfter bool `yaml:"use_retry_after"`

	// JitterPercent is the jitter percentage (default: 0.1 for 10%).
	JitterPercent float64 `yaml:"jitter_percent"`
}

// DefaultRetryPolicies returns the default retry policies for each error tier.
// Coaching requests are interactive, so attempts stay low; the caller's
// context deadline bounds the total time anyway.
func DefaultRetryPolicies() map[ErrorTier]*RetryPolicy {
	return map[ErrorTier]*RetryPolicy{
		TierTransient: {
			MaxAttempts:   2,
			InitialDelay:  200 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			Multiplier:    2.0,
			JitterPercent: 0.1,
		},
		TierExternalRateLimit: {
			MaxAttempts:   2,
			InitialDelay:  1 * time.Second,
			MaxDelay:      5 * time.Second,
			Multiplier:    2.0,
			UseRetryAfter: true,
			JitterPercent: 0.1,
		},
		TierExternalDegrading: {
			MaxAttempts:   1,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			Multiplier:    2.0,
			JitterPercent: 0.1,
		},
		TierPermanent:   defaultNoRetryPolicy(),
		TierUserFixable: defaultNoRetryPolicy(),
	}
}

func defaultNoRetryPolicy() *RetryPolicy {
	return &RetryPolicy{}
}

// GetRetryPolicy returns the default retry policy for a given error tier.
func GetRetryPolicy(tier ErrorTier) *RetryPolicy {
	if policy, ok := DefaultRetryPolicies()[tier]; ok {
		return policy
	}
	return defaultNoRetryPolicy()
}

// RetryExecutor executes operations with retry logic based on error tiers.
// The tier is derived from each returned error via Classify.
type RetryExecutor struct {
	policies map[ErrorTier]*RetryPolicy
}

// NewRetryExecutor creates a new RetryExecutor with the given policies.
func NewRetryExecutor(policies map[ErrorTier]*RetryPolicy) *RetryExecutor {
	if policies == nil {
		policies = DefaultRetryPolicies()
	}
	return &RetryExecutor{policies: policies}
}

// Execute runs fn until it succeeds, its error tier runs out of attempts, or
// ctx is done. Returns the last error if all attempts fail.
func (e *RetryExecutor) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := make(map[ErrorTier]int)

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		tier := Classify(err)
		policy := e.getPolicy(tier)
		if attempts[tier] >= policy.MaxAttempts {
			return err
		}

		delay := e.computeDelay(err, attempts[tier], policy)
		attempts[tier]++

		if waitErr := waitBeforeRetry(ctx, delay); waitErr != nil {
			return err
		}
	}
}

func (e *RetryExecutor) getPolicy(tier ErrorTier) *RetryPolicy {
	if policy, ok := e.policies[tier]; ok && policy != nil {
		return policy
	}
	return defaultNoRetryPolicy()
}

func (e *RetryExecutor) computeDelay(err error, attempt int, policy *RetryPolicy) time.Duration {
	if policy.UseRetryAfter {
		if retryAfter := extractRetryAfter(err); retryAfter > 0 {
			return capDelay(retryAfter, policy.MaxDelay)
		}
	}

	delay := CalculateDelay(attempt, policy)
	return AddJitter(delay, policy.JitterPercent)
}

func extractRetryAfter(err error) time.Duration {
	var te *TieredError
	if errors.As(err, &te) {
		return te.RetryAfter
	}
	return 0
}

// waitBeforeRetry waits for the specified delay or returns if context is cancelled.
func waitBeforeRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
