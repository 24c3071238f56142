package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abkawan/peachtree-bank/internal/logging"
	"github.com/abkawan/peachtree-bank/internal/metrics"
	"github.com/abkawan/peachtree-bank/internal/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrPublisherUnavailable is returned while the breaker is open
var ErrPublisherUnavailable = errors.New("event publisher unavailable")

// Publisher hands committed transaction events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event *models.TransactionEvent) error
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *models.TransactionEvent) error { return nil }

// BreakerConfig configures the circuit breaker around a publisher.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	PublishTimeout      time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "event-publisher",
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		PublishTimeout:      2 * time.Second,
	}
}

// ResilientPublisher wraps a Publisher with a circuit breaker and a per-publish timeout.
type ResilientPublisher struct {
	next    Publisher
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.Recorder
	logger  *logging.Logger
}

func NewResilientPublisher(next Publisher, config BreakerConfig, recorder metrics.Recorder, logger *logging.Logger) *ResilientPublisher {
	logger = logger.Named("publisher")

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)

			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			}
			recorder.RecordCircuitState(name, state)
		},
	}

	return &ResilientPublisher{
		next:    next,
		cb:      gobreaker.NewCircuitBreaker(settings),
		timeout: config.PublishTimeout,
		metrics: recorder,
		logger:  logger,
	}
}

func (p *ResilientPublisher) Publish(ctx context.Context, event *models.TransactionEvent) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return nil, p.next.Publish(ctx, event)
	})
	p.metrics.RecordEventPublish(err == nil)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrPublisherUnavailable, err)
		}
		return err
	}
	return nil
}

// State reports the breaker state.
func (p *ResilientPublisher) State() gobreaker.State {
	return p.cb.State()
}
