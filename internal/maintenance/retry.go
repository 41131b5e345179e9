package maintenance

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// transientPatterns classify an error message as retryable. Case-insensitive
// substring match; anything else fails fast.
var transientPatterns = []string{"timeout", "connection", "deadlock", "throttl", "busy", "reset"}

func isTransientError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, pat := range transientPatterns {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	return false
}

// OpOutcome is the terminal shape of one retried operation.
type OpOutcome int

const (
	OpSuccess OpOutcome = iota
	OpFailure
	OpInterrupted
)

// OpResult is the result of executeWithRetry.
type OpResult struct {
	Outcome      OpOutcome
	Attempts     uint32
	DurationSecs float64
	Error        string
	Interrupt    ControlState // set when Outcome == OpInterrupted
}

// executeWithRetry runs sql on the session under a per-attempt request
// timeout, retrying transient failures with capped exponential backoff
// while remaining interruptible through the control bus.
func executeWithRetry(ctx context.Context, session Session, sql string, opts MaintenanceOptions, bus *ControlBus) OpResult {
	start := time.Now()
	var lastErr string
	var attempt uint32

	for a := uint32(1); a <= opts.RetryMaxAttempts; a++ {
		attempt = a

		execCtx := ctx
		var cancel context.CancelFunc
		if opts.RequestTimeoutMs > 0 {
			execCtx, cancel = context.WithTimeout(ctx, time.Duration(opts.RequestTimeoutMs)*time.Millisecond)
		}

		_, err := session.ExecContext(execCtx, sql)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return OpResult{Outcome: OpSuccess, Attempts: attempt, DurationSecs: time.Since(start).Seconds()}
		}

		timedOut := opts.RequestTimeoutMs > 0 && execCtx.Err() == context.DeadlineExceeded
		if timedOut {
			lastErr = fmt.Sprintf("SQL request timed out after %dms", opts.RequestTimeoutMs)
		} else {
			lastErr = err.Error()
		}

		if a == opts.RetryMaxAttempts || !(timedOut || isTransientError(lastErr)) {
			break
		}

		delayMs := uint64(math.Min(
			float64(opts.RetryBaseDelayMs)*math.Pow(2, float64(a-1)),
			float64(opts.RetryMaxDelayMs),
		))

		if ctrl, interrupted := bus.Wait(delayMs); interrupted {
			return OpResult{Outcome: OpInterrupted, Attempts: attempt, DurationSecs: time.Since(start).Seconds(), Interrupt: ctrl}
		}
	}

	return OpResult{Outcome: OpFailure, Attempts: attempt, DurationSecs: time.Since(start).Seconds(), Error: lastErr}
}
