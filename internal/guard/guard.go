// Package guard wraps store calls with failure isolation: a per-call
// timeout plus a circuit breaker. When a dependency shows a sustained
// failure pattern the breaker opens and calls fail fast with
// ErrDependencyUnavailable instead of queueing behind a slow backend.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/FACorreiaa/go-auth-sessions/config"
)

// ErrDependencyUnavailable is returned while the breaker is open.
var ErrDependencyUnavailable = errors.New("dependency unavailable")

// Guard wraps calls producing a T behind one circuit breaker instance.
type Guard[T any] struct {
	cb      *gobreaker.CircuitBreaker[T]
	timeout time.Duration
}

// Options tune classification and observation; both fields are optional.
type Options struct {
	// IsSuccessful decides whether an error counts against the failure
	// rate. Domain outcomes (not-found, conflict) should not trip the
	// breaker; only infrastructure failures should.
	IsSuccessful func(err error) bool
	// OnStateChange is invoked on every breaker transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// New builds a Guard named for the dependency it protects. The breaker
// trips when, within one rolling window, at least MinRequests calls were
// made and the failure rate reaches FailureRate. It stays open for
// CoolDown, then admits a single trial call (half-open).
func New[T any](name string, cfg config.BreakerConfig, logger *slog.Logger, opts Options) *Guard[T] {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.RollingWindow,
		Timeout:     cfg.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRate := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRate >= cfg.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if opts.OnStateChange != nil {
				opts.OnStateChange(name, from, to)
			}
		},
	}
	if opts.IsSuccessful != nil {
		st.IsSuccessful = opts.IsSuccessful
	}

	return &Guard[T]{
		cb:      gobreaker.NewCircuitBreaker[T](st),
		timeout: cfg.CallTimeout,
	}
}

// Call runs op through the breaker with the per-call timeout applied.
// Upstream cancellation propagates through ctx; an open breaker
// short-circuits immediately without invoking op.
func (g *Guard[T]) Call(ctx context.Context, op func(ctx context.Context) (T, error)) (T, error) {
	res, err := g.cb.Execute(func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return op(callCtx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, ErrDependencyUnavailable
	}
	return res, err
}

// State reports the breaker's current state.
func (g *Guard[T]) State() gobreaker.State {
	return g.cb.State()
}
