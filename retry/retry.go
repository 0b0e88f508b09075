// Package retry provides backoff policies for reconnection scheduling and
// bounded delivery retries.
package retry

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy defines an exponential backoff schedule with optional jitter.
//
// The delay for attempt n follows:
//
//	delay = min(InitialDelay * Factor^n * jitterFactor, MaxDelay)
//
// where jitterFactor is drawn from [0.5, 1.5) when Jitter is enabled and 1
// otherwise. Jitter spreads simultaneous reconnection attempts from many
// processes across time.
type Policy struct {
	InitialDelay time.Duration // Delay before the first attempt
	MaxDelay     time.Duration // Upper bound on any computed delay
	Factor       float64       // Backoff multiplier (e.g., 2.0 for doubling)
	Jitter       bool          // Randomize each delay within [0.5x, 1.5x)
}

// DefaultPolicy returns the reconnection backoff defaults:
// 1s initial delay doubling up to 30s, with jitter.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Factor:       2.0,
		Jitter:       true,
	}
}

// Delay computes the backoff delay for the given zero-based attempt number.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(p.InitialDelay) * math.Pow(p.Factor, float64(attempt))
	if p.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}

	return time.Duration(delay)
}

// Schedule returns a human-readable description of the backoff schedule for
// the given number of attempts. Useful for logs and operator documentation.
//
// Example output: "1s → 2s → 4s → 8s → 16s → 30s".
func (p Policy) Schedule(attempts int) string {
	flat := p
	flat.Jitter = false

	out := ""
	for i := 0; i < attempts; i++ {
		if i > 0 {
			out += " → "
		}
		out += flat.Delay(i).String()
	}
	return out
}

// DeliveryPolicy bounds the transport-level retries of a single delivery
// attempt: a fixed number of tries separated by a fixed delay. Escalation
// beyond these retries is handled by the processing layer (re-enqueue or
// dead-letter), not here.
type DeliveryPolicy struct {
	MaxAttempts int           // Transport attempts per delivery call
	Delay       time.Duration // Fixed delay between attempts
}

// DefaultDeliveryPolicy returns the delivery retry defaults: 3 attempts, 1s apart.
func DefaultDeliveryPolicy() DeliveryPolicy {
	return DeliveryPolicy{
		MaxAttempts: 3,
		Delay:       time.Second,
	}
}

// Validate reports configuration errors in the policy.
func (p DeliveryPolicy) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be > 0, got %d", p.MaxAttempts)
	}
	if p.Delay < 0 {
		return fmt.Errorf("delay must be >= 0, got %v", p.Delay)
	}
	return nil
}
