package providers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	navierrors "github.com/SankrityaT/Navia-sub000/core/errors"
	"github.com/sony/gobreaker"
)

// BreakerConfig holds configuration for the provider circuit breaker
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold"`
	MinRequests      uint32        `yaml:"min_requests"`
}

// DefaultBreakerConfig returns the default breaker configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Resilient decorates a Provider with tiered retries and a circuit breaker.
// The breaker wraps the whole retry loop, so one logical call is one sample
// and an open breaker fails fast without retrying.
type Resilient struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
	retry   *navierrors.RetryExecutor
	logger  *slog.Logger
}

type ResilientConfig struct {
	Breaker       BreakerConfig
	RetryPolicies map[navierrors.ErrorTier]*navierrors.RetryPolicy
	Logger        *slog.Logger
}

// NewResilient wraps inner with retries and a circuit breaker.
func NewResilient(inner Provider, cfg ResilientConfig) *Resilient {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = DefaultBreakerConfig()
	}

	logger := cfg.Logger.With("provider", inner.Name())
	breakerCfg := cfg.Breaker

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: breakerCfg.MaxRequests,
		Interval:    breakerCfg.Interval,
		Timeout:     breakerCfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerCfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= breakerCfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("provider circuit breaker state changed", "from", from.String(), "to", to.String())
		},
		IsSuccessful: countsAsSuccess,
	})

	return &Resilient{
		inner:   inner,
		breaker: breaker,
		retry:   navierrors.NewRetryExecutor(cfg.RetryPolicies),
		logger:  logger,
	}
}

// countsAsSuccess keeps caller mistakes (bad request, bad credentials) and
// cancellations from tripping the breaker; only upstream trouble counts.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch navierrors.Classify(err) {
	case navierrors.TierPermanent, navierrors.TierUserFixable:
		return true
	default:
		return false
	}
}

func (r *Resilient) Name() string {
	return r.inner.Name()
}

// State reports the breaker state name (closed, half-open, open).
func (r *Resilient) State() string {
	return r.breaker.State().String()
}

func (r *Resilient) Complete(ctx context.Context, req *Request) (*Response, error) {
	result, err := r.breaker.Execute(func() (any, error) {
		var resp *Response
		attempt := 0
		err := r.retry.Execute(ctx, func(ctx context.Context) error {
			attempt++
			var callErr error
			resp, callErr = r.inner.Complete(ctx, req)
			if callErr != nil {
				r.logger.Debug("provider call failed",
					"attempt", attempt,
					"tier", navierrors.Classify(callErr).String(),
					"error", callErr)
			}
			return callErr
		})
		return resp, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, navierrors.WrapWithTier(navierrors.TierExternalDegrading, r.inner.Name()+" unavailable", err)
		}
		return nil, err
	}
	return result.(*Response), nil
}
