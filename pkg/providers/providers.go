package providers

import (
	"context"
	"fmt"
)

// Invoker submits a single-turn completion request and returns the first text
// segment of the response. No retries; a failed call is fatal for the message
// that triggered it.
type Invoker interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// InferenceError wraps a transport, API, or model failure during the call.
type InferenceError struct {
	Provider string
	Err      error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s inference failed: %v", e.Provider, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// MalformedResponseError marks a well-formed transport response missing the
// expected text field.
type MalformedResponseError struct {
	Provider string
	Detail   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s returned a response without completion text: %s", e.Provider, e.Detail)
}
