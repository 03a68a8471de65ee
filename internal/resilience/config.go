package resilience

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/geo-enrich/internal/config"
)

// RetryFromConfig builds the per-row lookup retry policy from the retry
// section. Unset values keep DefaultRetryConfig, so a missing section still
// means one billed attempt per row. Jitter is clamped to [0, 1].
func RetryFromConfig(c config.RetryConfig) RetryConfig {
	cfg := DefaultRetryConfig()
	if c.MaxAttempts > 0 {
		cfg.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	if c.MaxBackoffMs > 0 {
		cfg.MaxBackoff = time.Duration(c.MaxBackoffMs) * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if c.Multiplier >= 1 {
		cfg.Multiplier = c.Multiplier
	}
	if c.JitterFraction >= 0 {
		cfg.JitterFraction = min(c.JitterFraction, 1)
	}
	return cfg
}

// WindowFromConfig builds the request window limiter from the rate_window
// section: max_requests lookups, then a pause of cooldown_secs.
// A max_requests of zero turns pausing off.
func WindowFromConfig(c config.RateWindowConfig, log *zap.Logger) *WindowLimiter {
	if log == nil {
		log = zap.L()
	}
	return NewWindowLimiter(c.MaxRequests, c.Cooldown(), WithWindowLogger(log))
}
