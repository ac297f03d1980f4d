package normalizer

import (
	"context"
	"errors"
	"net/http"

	"github.com/nadzzz/readaloud/internal/retry"
	"github.com/nadzzz/readaloud/internal/speech"
)

// WithRetry wraps n so every Normalize call runs under the rate-limit retry
// policy. A rate-limit error that survives every attempt is escalated to a
// remote_service error with status 429; the original stays in its chain.
func WithRetry(n Normalizer, p retry.Policy) Normalizer {
	return &retrying{next: n, policy: p}
}

type retrying struct {
	next   Normalizer
	policy retry.Policy
}

func (r *retrying) Name() string { return r.next.Name() }

func (r *retrying) Keyless() bool { return speech.IsKeyless(r.next) }

func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) Normalize(ctx context.Context, document string, opts Opts) (string, error) {
	text, err := retry.Do(ctx, r.policy, func(ctx context.Context) (string, error) {
		return r.next.Normalize(ctx, document, opts)
	})
	if err == nil {
		return text, nil
	}

	var se *speech.Error
	if errors.As(err, &se) && se.Kind == speech.KindRateLimited {
		return "", &speech.Error{
			Kind:       speech.KindRemoteService,
			Service:    se.Service,
			StatusCode: http.StatusTooManyRequests,
			Message:    "still rate limited after retries",
			Cause:      err,
		}
	}
	return "", err
}
