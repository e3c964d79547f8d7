package ai

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerService stops calling a provider after repeated server-side
// failures and reports KindUnavailable until it recovers.
type BreakerService struct {
	next Service
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerService(next Service, logger *zap.Logger) *BreakerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        "ai-" + next.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &BreakerService{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerService) Name() string { return b.next.Name() }

func (b *BreakerService) State() gobreaker.State { return b.cb.State() }

func (b *BreakerService) Classify(ctx context.Context, text string, labels []string) (string, error) {
	return b.execute(func() (string, error) {
		return b.next.Classify(ctx, text, labels)
	})
}

func (b *BreakerService) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return b.execute(func() (string, error) {
		return b.next.Generate(ctx, req)
	})
}

// execute only counts failures that point at the provider itself; rejected
// or malformed replies and caller cancellations pass through without
// tripping the breaker.
func (b *BreakerService) execute(fn func() (string, error)) (string, error) {
	var passthrough error
	out, err := b.cb.Execute(func() (interface{}, error) {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		switch KindOf(err) {
		case KindConnection, KindUnavailable, KindQuota, KindTimeout:
			return nil, err
		default:
			passthrough = err
			return nil, nil
		}
	})
	if err != nil {
		return "", wrapError(b.Name(), err)
	}
	if passthrough != nil {
		return "", passthrough
	}
	return out.(string), nil
}
