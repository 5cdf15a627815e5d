package googleai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/docrag/ai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// guardSettings tunes the circuit breaker shared by one provider's services.
type guardSettings struct {
	maxRequests uint32
	interval    time.Duration
	timeout     time.Duration
	minRequests uint32
	failRatio   float64
}

var defaultGuardSettings = guardSettings{
	maxRequests: 5,
	interval:    10 * time.Second,
	timeout:     60 * time.Second,
	minRequests: 3,
	failRatio:   0.6,
}

// guard applies client-side rate limiting and a circuit breaker to calls
// against the Gemini API. Only retryable failures count against the breaker;
// a bad request says nothing about service health.
type guard struct {
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *slog.Logger
}

func newGuard(name string, requestsPerMinute int, settings guardSettings, logger *slog.Logger) *guard {
	g := &guard{logger: logger}

	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.maxRequests,
		Interval:    settings.interval,
		Timeout:     settings.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= settings.minRequests && failureRatio >= settings.failRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !ai.IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	if requestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}
	return g
}

// do runs fn once the limiter admits it. Errors from fn are classified; an
// open breaker is reported as a KindUnavailable provider error.
func (g *guard) do(ctx context.Context, fn func() error) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, ai.Classify(providerName, fn())
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &ai.ProviderError{Provider: providerName, Kind: ai.KindUnavailable, Err: err}
	}
	return err
}
