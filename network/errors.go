package network

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed indicates the client could not reach the server or the
	// connection broke mid-request.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrInvalidResponse indicates the server returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("network: invalid response")

	// ErrServer indicates the server answered with a JSON-RPC error object.
	ErrServer = errors.New("network: server error")

	// ErrCircuitOpen indicates requests are being shed after repeated failures.
	ErrCircuitOpen = errors.New("network: circuit open")

	// ErrBroadcastRejected indicates the server refused a transaction.
	ErrBroadcastRejected = errors.New("network: broadcast rejected")

	// ErrNotConfigured indicates a required endpoint was not configured.
	ErrNotConfigured = errors.New("network: endpoint not configured")
)

// IsRecoverable reports whether err is a transport-level failure that should
// be retried on the next poll cycle rather than treated as fatal.
func IsRecoverable(err error) bool {
	if errors.Is(err, ErrBroadcastRejected) {
		return false
	}
	return errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrInvalidResponse) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrServer) ||
		errors.Is(err, context.DeadlineExceeded)
}

// wrapRejected re-tags a server error object returned for a broadcast.
func wrapRejected(err error) error {
	if errors.Is(err, ErrServer) {
		return fmt.Errorf("%w: %w", ErrBroadcastRejected, err)
	}
	return err
}
