// Package search is the retrieval plane: filtered endpoint search,
// schema expansion with a depth cap, and the category catalog. All
// operations are pure reads against an opened store, honor context
// cancellation, and sit behind per-operation circuit breakers.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/antflydb/specaf/store"
)

// ErrShortCircuit is returned without touching the store while an
// operation's circuit breaker is open. Callers treat it like a
// transient store failure.
var ErrShortCircuit = errors.New("operation short-circuited")

// InvalidArgumentError reports a rejected request input.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// Config tunes the retrieval plane. The zero value is usable.
type Config struct {
	// BreakerThreshold is the consecutive-failure count that opens an
	// operation's breaker. Defaults to 5.
	BreakerThreshold uint32
	// BreakerCooldown is how long an open breaker waits before probing
	// again. Defaults to 30s.
	BreakerCooldown time.Duration
	// DefaultPerPage is the page size when the caller leaves it unset.
	// Defaults to 20.
	DefaultPerPage int
}

func (c Config) withDefaults() Config {
	if c.BreakerThreshold == 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	if c.DefaultPerPage <= 0 {
		c.DefaultPerPage = 20
	}
	return c
}

const (
	opSearchEndpoints = "searchEndpoints"
	opGetSchema       = "getSchema"
	opGetCategories   = "getEndpointCategories"
)

// Service executes retrieval operations against one store.
type Service struct {
	st       *store.Store
	cfg      Config
	log      *zap.Logger
	breakers map[string]*gobreaker.CircuitBreaker
}

// New builds a Service. A nil logger means no logging.
func New(st *store.Store, cfg Config, log *zap.Logger) *Service {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		st:       st,
		cfg:      cfg,
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker, 3),
	}
	for _, op := range []string{opSearchEndpoints, opGetSchema, opGetCategories} {
		op := op
		s.breakers[op] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        op,
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				s.log.Warn("circuit breaker state change",
					zap.String("operation", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}
	return s
}

type outcome struct {
	value any
	err   error
}

// do runs fn behind the operation's breaker. Only infrastructure
// failures count against the breaker; domain errors (not found, bad
// argument) and caller cancellation pass through as successes so a
// burst of bad requests cannot open the circuit.
func (s *Service) do(op string, fn func() (any, error)) (any, error) {
	res, err := s.breakers[op].Execute(func() (any, error) {
		v, err := fn()
		if err != nil && countsAsFailure(err) {
			return nil, err
		}
		return outcome{value: v, err: err}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrShortCircuit, err)
		}
		return nil, err
	}
	out := res.(outcome)
	return out.value, out.err
}

func countsAsFailure(err error) bool {
	var inv *InvalidArgumentError
	if errors.As(err, &inv) {
		return false
	}
	if errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
