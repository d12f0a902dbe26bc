// Package store provides durable state for clients, ledgers, entries,
// verifications and notifications. Two implementations exist: Postgres for
// production and an in-memory store used by tests.
package store

import (
	"context"
	"time"

	"github.com/nadirhuss/ledgercore/internal/domain"
)

// Store is the persistence contract the services depend on.
//
// CommitBatch and CommitVerification are transactional: either every write
// inside them lands or none does. CommitBatch additionally serializes
// concurrent writers of the same ledger row — the ledger passed in carries
// the version the caller read, and a mismatch at commit time fails the whole
// batch with domain.ErrLedgerConflict.
type Store interface {
	CreateClient(ctx context.Context, c *domain.Client) error
	GetClient(ctx context.Context, id string) (*domain.Client, error)

	GetLedgerByClient(ctx context.Context, clientID string) (*domain.Ledger, error)
	CreateLedger(ctx context.Context, l *domain.Ledger) error

	// CommitBatch persists the entries and the updated ledger totals as one
	// transaction. On success the ledger's version is advanced in place.
	CommitBatch(ctx context.Context, ledger *domain.Ledger, entries []*domain.LedgerEntry) error

	// FlagForVerification sets the client's verification flag and, when a
	// ledger exists, moves its status to needs_verification.
	FlagForVerification(ctx context.Context, clientID string, at time.Time) error

	// CommitVerification records a verification event: inserts the record,
	// clears the client flag, stamps verification dates on client and
	// ledger, marks the ledger verified and marks the client's unread
	// verification_needed notifications as read. Returns the updated client
	// and ledger.
	CommitVerification(ctx context.Context, v *domain.LedgerVerification, clientID string, at time.Time) (*domain.Client, *domain.Ledger, error)

	// ListEntries returns a ledger's entries newest first, optionally
	// bounded by creation time.
	ListEntries(ctx context.Context, ledgerID string, from, to *time.Time) ([]*domain.LedgerEntry, error)

	CreateNotification(ctx context.Context, n *domain.Notification) error

	// DismissNotification moves a notification to dismissed and stamps
	// read_at once. Dismissing an already-dismissed notification is a no-op
	// that returns the current state.
	DismissNotification(ctx context.Context, id string, at time.Time) (*domain.Notification, error)

	// ListNotifications returns non-dismissed notifications newest first,
	// filtered to one client when clientID is non-empty.
	ListNotifications(ctx context.Context, clientID string) ([]*domain.Notification, error)
}
