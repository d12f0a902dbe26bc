package domain

import (
	"errors"
	"fmt"
)

var (
	ErrClientNotFound       = errors.New("client not found")
	ErrLedgerNotFound       = errors.New("ledger not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrLedgerConflict means a concurrent batch moved the ledger between
	// this batch's read and its commit. Nothing was written; the caller
	// decides whether to re-read and resubmit.
	ErrLedgerConflict = errors.New("ledger modified concurrently")

	ErrEmptyBatch          = errors.New("entry batch is empty")
	ErrInvalidEntry        = errors.New("invalid ledger entry")
	ErrInvalidNotification = errors.New("invalid notification")
)

// VerificationRequiredError rejects a batch that the verification policy
// blocked. Reason is the human-readable explanation and must be surfaced to
// the end user; the batch cannot be resubmitted until a verification occurs.
type VerificationRequiredError struct {
	Reason string
}

func (e *VerificationRequiredError) Error() string {
	return fmt.Sprintf("verification required: %s", e.Reason)
}
