package domain

// Outcome status constants
const (
	OutcomeSucceeded = "SUCCEEDED"
	OutcomeFailed    = "FAILED"
)

// Failure reason kinds
const (
	KindTransientIO    = "transient_io"
	KindPermanentIO    = "permanent_io"
	KindStrategy       = "strategy"
	KindRetryExhausted = "retry_exhausted"
	KindCanceled       = "canceled"
	KindInternal       = "internal"
)
