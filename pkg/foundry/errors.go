package foundry

import "errors"

var (
	// ErrResolution means the agent identity could not be determined. It is
	// fatal at startup.
	ErrResolution = errors.New("agent resolution failed")

	// ErrInvalidInput means the prompt was empty. No remote call was made.
	ErrInvalidInput = errors.New("invalid input: prompt text is empty")

	// ErrNotReady means an invocation was attempted before Start or after Close.
	// No remote call was made.
	ErrNotReady = errors.New("agent adapter is not ready")

	// ErrInvocation wraps any failure of the remote completion service.
	ErrInvocation = errors.New("agent invocation failed")

	// ErrUnsupportedOperation is returned for operations the bridge never
	// performs, such as cancelling a running task.
	ErrUnsupportedOperation = errors.New("operation not supported")
)
