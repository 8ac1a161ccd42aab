package utils

import (
	"errors"
	"fmt"
)

// Setup-phase failures abort the whole operation and surface to the
// caller; the campaign is left in its prior state so a retry is safe.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("operation not allowed in current status")
	ErrNoRecipients    = errors.New("campaign has no recipients")
	ErrMissingTemplate = errors.New("campaign template not found")
	ErrConfig          = errors.New("no usable mail configuration")
)

// DispatchError is a transport-level send failure. Per-recipient dispatch
// failures are recorded on the row and never abort the batch.
type DispatchError struct {
	Recipient string
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %s failed: %v", e.Recipient, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
