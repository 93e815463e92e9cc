package llm

import (
	"context"
	"errors"
	"time"

	"github.com/yungbote/quest-backend/internal/pkg/httpx"
)

type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// WithRetry wraps g so that connectivity and rate-limit failures are retried
// up to p.MaxRetries times. With MaxRetries <= 0 it returns g unchanged.
func WithRetry(g Gateway, p RetryPolicy) Gateway {
	if g == nil || p.MaxRetries <= 0 {
		return g
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	return &retryGateway{next: g, policy: p, sleep: sleepCtx}
}

type retryGateway struct {
	next   Gateway
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

func (r *retryGateway) Ask(ctx context.Context, prompt string) (string, error) {
	return r.do(ctx, func() (string, error) { return r.next.Ask(ctx, prompt) })
}

func (r *retryGateway) SendMessages(ctx context.Context, messages []Message, tools []Tool, choice *ToolChoice) (string, error) {
	return r.do(ctx, func() (string, error) { return r.next.SendMessages(ctx, messages, tools, choice) })
}

func (r *retryGateway) do(ctx context.Context, call func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, httpx.Backoff(attempt-1, r.policy.BaseDelay, r.policy.MaxDelay)); err != nil {
				return "", lastErr
			}
		}
		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err
		var le *Error
		if !errors.As(err, &le) || !le.Retryable() {
			return "", err
		}
	}
	return "", lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
