package ai

import (
	"context"
	"log/slog"
	"time"
)

// Class buckets a provider error for retry purposes.
type Class int

const (
	// ClassOther is non-retryable; the error propagates immediately.
	ClassOther Class = iota
	ClassRateLimited
	ClassServiceUnavailable
	ClassTimeout
	ClassNetwork
)

func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassServiceUnavailable:
		return "service_unavailable"
	case ClassTimeout:
		return "timeout"
	case ClassNetwork:
		return "network_error"
	default:
		return "other"
	}
}

// Classifier maps provider-specific errors onto retry classes. Status codes
// and message substrings are provider heuristics; keeping them behind this
// interface keeps the retry loop provider-agnostic.
type Classifier interface {
	Classify(err error) Class
	// RetryAfter returns the provider-suggested backoff, or 0 if none.
	RetryAfter(err error) time.Duration
}

// Decision is the outcome of classifying one failed attempt.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// maxRetries bounds attempts at 0..maxRetries per call.
const maxRetries = 3

// Backoff bases per class. Service overload backs off longest, network
// blips shortest.
const (
	rateLimitFlatDelay     = 60 * time.Second
	serviceUnavailableBase = 45 * time.Second
	timeoutBase            = 30 * time.Second
	networkBase            = 10 * time.Second
)

// Decide computes whether and how long to wait before the next attempt.
// suggested is the provider-supplied backoff (0 when absent), honored only
// for the rate-limited class.
func Decide(class Class, attempt int, suggested time.Duration) Decision {
	switch class {
	case ClassRateLimited:
		delay := rateLimitFlatDelay
		if suggested > 0 {
			delay = suggested
		}
		return Decision{Retry: true, Delay: delay}
	case ClassServiceUnavailable:
		return Decision{Retry: true, Delay: serviceUnavailableBase << attempt}
	case ClassTimeout:
		return Decision{Retry: true, Delay: timeoutBase << attempt}
	case ClassNetwork:
		return Decision{Retry: true, Delay: networkBase << attempt}
	default:
		return Decision{}
	}
}

// Do runs fn with the retry policy: up to maxRetries retries for retryable
// classes, sleeping the decided delay between attempts. The final attempt
// never sleeps; its error propagates. Sleeps abort on context cancellation.
func Do(ctx context.Context, logger *slog.Logger, c Classifier, op string, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		class := c.Classify(err)
		decision := Decide(class, attempt, c.RetryAfter(err))
		if !decision.Retry {
			return err
		}

		logger.Warn("Retrying external call",
			"op", op,
			"attempt", attempt,
			"class", class.String(),
			"delay", decision.Delay.String(),
			"error", err.Error(),
		)

		select {
		case <-time.After(decision.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
