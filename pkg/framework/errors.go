package framework

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidTag indicates the subsystem tag is out of range or reserved.
	ErrInvalidTag = errors.New("invalid subsystem tag")
	// ErrQueueFull indicates the message queue is at capacity.
	ErrQueueFull = errors.New("message queue full")
	// ErrPayloadTooLarge indicates the payload exceeds MaxPayloadLen.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrDuplicateTimer indicates a delayed message of the same (tag, id) is pending.
	ErrDuplicateTimer = errors.New("delayed message already pending")
	// ErrNoTimerSlot indicates all timer slots are in use.
	ErrNoTimerSlot = errors.New("no free timer slot")
)

// AggregatedError aggregates multiple errors.
type AggregatedError struct {
	Errors []error
}

// Error implements error
func (e *AggregatedError) Error() string {
	if len(e.Errors) == 0 {
		return ""
	}
	msg := make([]string, len(e.Errors)+1)
	msg[0] = "Multiple errors:"
	for n, err := range e.Errors {
		msg[n+1] = err.Error()
	}
	return strings.Join(msg, "\n")
}

// Add adds errors to be aggregated. nil will be skipped.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// Aggregate returns aggregated error if any error happened.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}
