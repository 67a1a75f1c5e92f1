package resilience

import "time"

// FromConfig builds a RetryConfig from flat configuration values, keeping
// the production defaults for anything unset.
func FromConfig(maxAttempts, initialBackoffMS, maxBackoffMS int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMS > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMS) * time.Millisecond
	}
	if maxBackoffMS > 0 {
		cfg.MaxBackoff = time.Duration(maxBackoffMS) * time.Millisecond
	}
	return cfg
}
