// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Backoff computes bounded exponential delays with jitter.
type Backoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    float64

	// rand returns a value in [0, 1); nil uses math/rand/v2.
	rand func() float64
}

// Delay returns the wait before retry number attempt (1-based).
// The result is BaseDelay·2^(attempt-1) capped at MaxDelay, spread by
// Jitter, raised to hint when the server asked for longer, and capped again.
func (b Backoff) Delay(attempt int, hint time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := b.BaseDelay
	for i := 1; i < attempt && delay < b.MaxDelay; i++ {
		delay *= 2
	}
	if delay > b.MaxDelay {
		delay = b.MaxDelay
	}

	if b.Jitter > 0 && delay > 0 {
		r := rand.Float64
		if b.rand != nil {
			r = b.rand
		}
		factor := 1 - b.Jitter + 2*b.Jitter*r()
		delay = time.Duration(float64(delay) * factor)
	}

	if hint > delay {
		delay = hint
	}
	if delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	return delay
}

// RetryPolicy controls RetryWithBackoff.
type RetryPolicy struct {
	// MaxAttempts bounds the number of calls, including the first.
	MaxAttempts int

	Backoff Backoff

	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool

	// RetryHint extracts a server supplied delay from an error. Optional.
	RetryHint func(error) time.Duration

	// OnRetry is called before each wait. Optional.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// RetryWithBackoff retries operation while it fails with retryable errors.
// A non-retryable error is returned as is. When every attempt fails the
// returned error wraps both ErrRetriesExhausted and the last failure.
func RetryWithBackoff(ctx context.Context, operation func() error, policy RetryPolicy) error {
	if policy.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		if policy.Retryable != nil && !policy.Retryable(lastErr) {
			return lastErr
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", policy.MaxAttempts, "error", lastErr)

		// Don't sleep after the last attempt
		if attempt == policy.MaxAttempts {
			break
		}

		var hint time.Duration
		if policy.RetryHint != nil {
			hint = policy.RetryHint(lastErr)
		}
		delay := policy.Backoff.Delay(attempt, hint)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, policy.MaxAttempts, lastErr)
}
