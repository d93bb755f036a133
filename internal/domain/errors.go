package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialNotFound is returned when no athlete is on file.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrTokenRefreshFailed indicates the provider rejected a refresh grant.
	ErrTokenRefreshFailed = errors.New("token refresh failed")
	// ErrProviderRequestFailed covers transport failures and non-2xx provider responses.
	ErrProviderRequestFailed = errors.New("provider request failed")
	// ErrInvalidVerification is returned when a webhook subscription handshake does not match.
	ErrInvalidVerification = errors.New("invalid webhook verification")
	// ErrUnknownOwner marks a webhook for an athlete that is not registered.
	ErrUnknownOwner = errors.New("webhook owner not registered")
	// ErrActivityNotFound is returned when an activity row does not exist.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrUnsupportedObject marks a webhook whose object type is not handled.
	ErrUnsupportedObject = errors.New("unsupported webhook object")
	// ErrInvalidScope is returned when the athlete did not grant the required scope.
	ErrInvalidScope = errors.New("invalid authorization scope")
	// ErrInvalidState is returned when an OAuth callback carries an unknown state.
	ErrInvalidState = errors.New("invalid oauth state")
	// ErrSuperseded is returned by UpsertActivity when the stored row was synced later
	// than the incoming one and was left as is.
	ErrSuperseded = errors.New("activity superseded by a newer write")
)

// ProviderError describes a failed provider call.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provider %s failed: %s", e.Op, e.Body)
	}
	return fmt.Sprintf("provider %s returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap lets callers match ErrProviderRequestFailed.
func (e *ProviderError) Unwrap() error { return ErrProviderRequestFailed }
