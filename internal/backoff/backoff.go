// Package backoff computes failure delays for unreachable sources.
package backoff

import (
	"fmt"
	"time"
)

// Policy constants. Delay doubles per consecutive failure from BaseDelay up
// to MaxDelay; at PauseThreshold failures automatic retries stop entirely.
const (
	BaseDelay      = 5 * time.Minute
	MaxDelay       = 24 * time.Hour
	PauseThreshold = 10
)

// Decision is the tagged outcome of a backoff computation: either a
// Retrying schedule or a Paused notice, never both.
type Decision interface {
	isDecision()
}

// Retrying schedules the next automatic attempt.
type Retrying struct {
	SourceID    string
	Failures    int
	Delay       time.Duration
	NextRetryAt time.Time
}

func (Retrying) isDecision() {}

// Paused halts automatic retries until a human resets the source.
type Paused struct {
	SourceID string
	Failures int
	Reason   string
}

func (Paused) isDecision() {}

// Compute is a pure function of (failureCount, now). It never reads a
// clock; callers inject the current time so tests stay deterministic.
func Compute(sourceID string, failureCount int, now time.Time) Decision {
	if failureCount >= PauseThreshold {
		return Paused{
			SourceID: sourceID,
			Failures: failureCount,
			Reason: fmt.Sprintf(
				"%d consecutive failures; automatic retries halted, manual investigation required",
				failureCount,
			),
		}
	}
	delay := Delay(failureCount)
	return Retrying{
		SourceID:    sourceID,
		Failures:    failureCount,
		Delay:       delay,
		NextRetryAt: now.Add(delay),
	}
}

// Delay returns min(BaseDelay * 2^(n-1), MaxDelay) for n failures.
// Zero failures means the source is healthy and due immediately.
func Delay(failureCount int) time.Duration {
	if failureCount <= 0 {
		return 0
	}
	shift := failureCount - 1
	// 2^9 * 5m already exceeds 24h, so clamp the shift before multiplying.
	if shift > 9 {
		shift = 9
	}
	delay := BaseDelay << shift
	if delay > MaxDelay {
		delay = MaxDelay
	}
	return delay
}
