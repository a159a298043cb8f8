package store

import "errors"

// Error taxonomy shared by the session store and message relay. Handlers map
// these onto HTTP statuses; nothing beyond the sentinel text ever reaches a
// client.
var (
	// ErrNotFound covers both "does not exist" and "exists but is not
	// visible to the caller", so a response never confirms that a session
	// id is live.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the authenticated caller is not the expected
	// party for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState means the operation is not valid for the session's
	// current status, e.g. relaying a message before activation.
	ErrInvalidState = errors.New("invalid session state")

	// ErrGone means the session has passed its expiry.
	ErrGone = errors.New("session expired")

	// ErrValidation means malformed input: missing or unparsable fields.
	ErrValidation = errors.New("validation failed")
)
