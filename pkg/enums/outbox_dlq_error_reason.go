package enums

// OutboxDLQErrorReason explains why the publisher parked an event.
type OutboxDLQErrorReason string

const (
	// OutboxDLQReasonMaxAttempts means retries were exhausted.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// OutboxDLQReasonNonRetryable means the event can never publish as-is,
	// e.g. an unroutable event type or a rejected payload.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}
