package helper

import (
	"context"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
)

// Retry runs fn under the configured retry policy. One attempt means no retries.
func Retry[T any](ctx context.Context, cfg config.RetryConfig, op string, fn func() (T, error)) (T, error) {
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 1
	}

	return retry.DoWithData(fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(cfg.Delay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Str("op", op).Uint("attempt", n+1).Msg("Retrying")
		}),
	)
}
