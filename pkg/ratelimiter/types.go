package ratelimiter

import "time"

// Result is the outcome of one rate limit check.
type Result struct {
	Limit     int       // Bucket capacity
	Remaining int       // Tokens left; negative when the request was denied
	ResetAt   time.Time // Next refill
}

func (r Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long a denied caller should wait, measured from now.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed() || !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}

// Config describes a token bucket.
type Config struct {
	// Capacity is the burst size.
	Capacity int `env:"SWITCH_RATE_BURST" envDefault:"10"`
	// RefillRate tokens are added every RefillInterval.
	RefillRate     int           `env:"SWITCH_RATE_REFILL" envDefault:"1"`
	RefillInterval time.Duration `env:"SWITCH_RATE_INTERVAL" envDefault:"30s"`
}

// Enabled reports whether the configuration describes a usable bucket.
// A zero capacity turns rate limiting off.
func (c Config) Enabled() bool {
	return c.Capacity > 0
}
