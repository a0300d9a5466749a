package entity

import "fmt"

// DecodeError means the transcoder could not process the input (corrupt
// file, unsupported codec). It is not transient: jobs failing with a
// DecodeError get at most one retry before dead-lettering.
type DecodeError struct {
	Input string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Input, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ExternalAPIError means an inference/transcription call failed or returned
// a malformed payload. The result is treated as absent; the job is not
// retried at the batch level.
type ExternalAPIError struct {
	Capability string
	Err        error
}

func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s call: %v", e.Capability, e.Err)
}

func (e *ExternalAPIError) Unwrap() error { return e.Err }

// EnqueueError means a downstream job could not be added. It must fail the
// current job so the derived work is not silently lost.
type EnqueueError struct {
	Queue string
	Err   error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("enqueue to %s: %v", e.Queue, e.Err)
}

func (e *EnqueueError) Unwrap() error { return e.Err }
