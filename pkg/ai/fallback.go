package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// FallbackService routes calls to a primary provider and retries on a
// secondary one when the failure kind says a different provider can help.
type FallbackService struct {
	primary   Service
	secondary Service
	logger    *zap.Logger
}

// NewFallbackService creates a new fallback service. Either provider may be nil.
func NewFallbackService(primary, secondary Service, logger *zap.Logger) *FallbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackService{primary: primary, secondary: secondary, logger: logger}
}

func (f *FallbackService) Name() string {
	switch {
	case f.primary != nil && f.secondary != nil:
		return fmt.Sprintf("%s+%s", f.primary.Name(), f.secondary.Name())
	case f.primary != nil:
		return f.primary.Name()
	case f.secondary != nil:
		return f.secondary.Name()
	}
	return "none"
}

func (f *FallbackService) Classify(ctx context.Context, text string, labels []string) (string, error) {
	return f.route(ctx, "classify", func(s Service) (string, error) {
		return s.Classify(ctx, text, labels)
	})
}

func (f *FallbackService) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f.route(ctx, "generate", func(s Service) (string, error) {
		return s.Generate(ctx, req)
	})
}

func (f *FallbackService) route(ctx context.Context, op string, call func(Service) (string, error)) (string, error) {
	first, second := f.primary, f.secondary
	if first == nil {
		first, second = second, nil
	}
	if first == nil {
		return "", &Error{Kind: KindUnavailable, Provider: f.Name(), Err: ErrNoProvider}
	}

	result, err := call(first)
	if err == nil {
		return result, nil
	}
	if second == nil {
		return "", err
	}

	switch kind := KindOf(err); kind {
	case KindConnection, KindQuota, KindUnavailable, KindRejected:
		f.logger.Warn("provider failed, falling back",
			zap.String("op", op),
			zap.String("from", first.Name()),
			zap.String("to", second.Name()),
			zap.Stringer("kind", kind),
			zap.Error(err),
		)
	case KindTimeout, KindCanceled:
		// The caller's deadline is already spent.
		return "", err
	case KindMalformed, KindUnknown:
		f.logger.Warn("provider returned unusable output, falling back",
			zap.String("op", op),
			zap.String("from", first.Name()),
			zap.Error(err),
		)
	}

	if ctx.Err() != nil {
		return "", err
	}
	return call(second)
}
