package ingest

import "time"

// Config holds configuration for an ingestion run.
type Config struct {
	// BatchSize is the number of chunks embedded and stored per request.
	BatchSize int

	// MaxAttempts bounds the tries per batch, including the first.
	MaxAttempts int

	// RetryBaseDelay is the delay before the first retry; it doubles on each retry.
	RetryBaseDelay time.Duration

	// RetryMaxDelay caps a single wait between attempts.
	RetryMaxDelay time.Duration

	// Jitter spreads each delay uniformly within ±Jitter of its value.
	Jitter float64

	// SkipUnchanged skips ingestion when the stored manifest matches the document.
	SkipUnchanged bool

	// Prune removes chunks left over from a previous, longer document.
	Prune bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      20,
		MaxAttempts:    8,
		RetryBaseDelay: 2 * time.Second,
		RetryMaxDelay:  60 * time.Second,
		Jitter:         0.2,
		Prune:          true,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return ErrInvalidBatchSize
	}
	if c.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.RetryBaseDelay < 0 || c.RetryMaxDelay < 0 || c.RetryBaseDelay > c.RetryMaxDelay {
		return ErrInvalidDelay
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		return ErrInvalidJitter
	}
	return nil
}

func (c *Config) backoff() Backoff {
	return Backoff{
		BaseDelay: c.RetryBaseDelay,
		MaxDelay:  c.RetryMaxDelay,
		Jitter:    c.Jitter,
	}
}
