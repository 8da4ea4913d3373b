package interfaces

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is the only authorization failure ever shown to callers.
var ErrUnauthorized = errors.New("unauthorized")

// Authorization failure kinds. They are logged, never returned over the wire.
var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrUnknownSigner      = errors.New("unknown signer")
	ErrForbidden          = errors.New("signer not authorized for table")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrReplay             = errors.New("stale or replayed request")
)

// Merge failure kinds.
var (
	ErrMalformedRecord     = errors.New("malformed record")
	ErrDuplicateKeyInBatch = errors.New("duplicate key in batch")
	ErrSchemaViolation     = errors.New("schema violation")

	// ErrStoreUnavailable is returned when the metadata store cannot be reached
	// or fails mid-transaction. Retryable.
	ErrStoreUnavailable = errors.New("metadata store unavailable")

	// ErrStoreConflict is returned when the store aborts a transaction because
	// of concurrent access (serialization failure, deadlock). Retryable.
	ErrStoreConflict = errors.New("metadata store conflict")
)

var (
	// ErrInvalidRange is returned by the query path for negative offset or limit.
	ErrInvalidRange = errors.New("invalid range")

	// ErrConfig is returned when a signer configuration cannot be loaded.
	ErrConfig = errors.New("invalid signer configuration")
)

// AuthError carries the specific reason a request failed authorization.
// errors.Is matches both its Kind and ErrUnauthorized.
type AuthError struct {
	Kind     error
	SignerID string
	Reason   string
}

func NewAuthError(kind error, signerID, reason string) *AuthError {
	return &AuthError{Kind: kind, SignerID: signerID, Reason: reason}
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: signer %q", e.Kind, e.SignerID)
	}
	return fmt.Sprintf("%s: signer %q: %s", e.Kind, e.SignerID, e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Kind
}

func (e *AuthError) Is(target error) bool {
	return target == ErrUnauthorized
}

// MergeError names the record and field that made a batch fail.
type MergeError struct {
	Kind  error
	Key   string
	Field string
	Err   error
}

func (e *MergeError) Error() string {
	msg := e.Kind.Error()
	if e.Key != "" {
		msg += fmt.Sprintf(": key %q", e.Key)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MergeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether the failure came from the store rather than the
// submitted batch.
func (e *MergeError) Retryable() bool {
	return errors.Is(e.Kind, ErrStoreUnavailable) || errors.Is(e.Kind, ErrStoreConflict)
}

// ConfigError describes a rejected signer configuration.
type ConfigError struct {
	SignerID string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.SignerID == "" {
		return fmt.Sprintf("%s: %v", ErrConfig, e.Err)
	}
	return fmt.Sprintf("%s: signer %q: %v", ErrConfig, e.SignerID, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrConfig, e.Err}
}
