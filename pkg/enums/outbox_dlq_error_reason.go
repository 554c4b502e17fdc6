package enums

type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts    OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable   OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonUnknownEvent   OutboxDLQErrorReason = "unknown_event"
	OutboxDLQReasonInvalidPayload OutboxDLQErrorReason = "invalid_payload"
	OutboxDLQReasonUnroutable     OutboxDLQErrorReason = "unroutable"
)

var validOutboxDLQErrorReasons = []OutboxDLQErrorReason{
	OutboxDLQReasonMaxAttempts,
	OutboxDLQReasonNonRetryable,
	OutboxDLQReasonUnknownEvent,
	OutboxDLQReasonInvalidPayload,
	OutboxDLQReasonUnroutable,
}

func (r OutboxDLQErrorReason) IsValid() bool {
	for _, candidate := range validOutboxDLQErrorReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
