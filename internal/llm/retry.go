package llm

import (
	"context"
	"errors"
	"time"

	"github.com/openai/openai-go"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsRetryable reports whether a failed completion is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.Internal, codes.Aborted:
			return true
		default:
			return false
		}
	}

	// Network errors (no API response) are generally retryable.
	return true
}

type retryClient struct {
	next      Client
	attempts  int
	backoff   time.Duration
	retryable func(error) bool
}

// WithRetry retries retryable failures up to retries extra times with a
// linearly growing backoff.
func WithRetry(c Client, retries int, backoff time.Duration) Client {
	if retries <= 0 {
		return c
	}
	return &retryClient{next: c, attempts: retries + 1, backoff: backoff, retryable: IsRetryable}
}

func (r *retryClient) Complete(ctx context.Context, req Request) (*Response, error) {
	log := zerolog.Ctx(ctx)

	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			wait := r.backoff * time.Duration(attempt-1)
			log.Warn().Err(lastErr).
				Int("attempt", attempt).
				Dur("backoff", wait).
				Msg("Retrying LLM completion")

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		resp, err := r.next.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !r.retryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (r *retryClient) Model() string {
	return r.next.Model()
}

// Close closes the wrapped client when it holds resources.
func (r *retryClient) Close() error {
	if c, ok := r.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
