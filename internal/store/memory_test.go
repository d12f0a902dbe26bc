package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadirhuss/ledgercore/internal/domain"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newLedger(clientID string) *domain.Ledger {
	return &domain.Ledger{
		ID:                 "l-" + clientID,
		ClientID:           clientID,
		TotalCredit:        decimal.Zero,
		TotalPayee:         decimal.Zero,
		Balance:            decimal.Zero,
		VerificationStatus: domain.VerificationNone,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestMemoryCommitBatchVersionConflict(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.CreateLedger(ctx, newLedger("c1")))

	// Two callers read the same ledger state.
	a, err := st.GetLedgerByClient(ctx, "c1")
	require.NoError(t, err)
	b, err := st.GetLedgerByClient(ctx, "c1")
	require.NoError(t, err)

	a.TotalCredit = decimal.NewFromInt(100)
	a.Balance = decimal.NewFromInt(100)
	require.NoError(t, st.CommitBatch(ctx, a, []*domain.LedgerEntry{{
		ID: "e1", LedgerID: a.ID, Type: domain.EntryCredit,
		Amount: decimal.NewFromInt(100), NewBalance: decimal.NewFromInt(100), CreatedAt: now,
	}}))
	assert.Equal(t, int64(2), a.Version)

	// The second caller's commit is stale and must fail without writing.
	b.TotalCredit = decimal.NewFromInt(50)
	b.Balance = decimal.NewFromInt(50)
	err = st.CommitBatch(ctx, b, []*domain.LedgerEntry{{
		ID: "e2", LedgerID: b.ID, Type: domain.EntryCredit,
		Amount: decimal.NewFromInt(50), NewBalance: decimal.NewFromInt(50), CreatedAt: now,
	}})
	assert.ErrorIs(t, err, domain.ErrLedgerConflict)

	stored, err := st.GetLedgerByClient(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(decimal.NewFromInt(100)))
	entries, err := st.ListEntries(ctx, stored.ID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMemoryCommitBatchUnknownLedger(t *testing.T) {
	st := NewMemoryStore()
	err := st.CommitBatch(context.Background(), newLedger("ghost"), nil)
	assert.ErrorIs(t, err, domain.ErrLedgerNotFound)
}

func TestMemoryListEntriesOrderAndRange(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	ledger := newLedger("c1")
	require.NoError(t, st.CreateLedger(ctx, ledger))

	mk := func(id string, at time.Time) *domain.LedgerEntry {
		return &domain.LedgerEntry{
			ID: id, LedgerID: ledger.ID, Type: domain.EntryCredit,
			Amount: decimal.NewFromInt(1), CreatedAt: at,
		}
	}
	require.NoError(t, st.CommitBatch(ctx, ledger, []*domain.LedgerEntry{
		mk("e1", now),
		mk("e2", now), // same timestamp, later insertion
		mk("e3", now.Add(time.Hour)),
	}))

	entries, err := st.ListEntries(ctx, ledger.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "e3", entries[0].ID)
	assert.Equal(t, "e2", entries[1].ID)
	assert.Equal(t, "e1", entries[2].ID)

	from := now.Add(30 * time.Minute)
	entries, err = st.ListEntries(ctx, ledger.ID, &from, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e3", entries[0].ID)
}

func TestMemoryFlagForVerification(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.CreateClient(ctx, &domain.Client{ID: "c1", Status: domain.ClientActive}))
	require.NoError(t, st.CreateLedger(ctx, newLedger("c1")))

	require.NoError(t, st.FlagForVerification(ctx, "c1", now))

	client, err := st.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, client.VerificationRequired)

	ledger, err := st.GetLedgerByClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationNeeded, ledger.VerificationStatus)

	assert.ErrorIs(t, st.FlagForVerification(ctx, "ghost", now), domain.ErrClientNotFound)
}

func TestMemoryReturnsCopies(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.CreateClient(ctx, &domain.Client{ID: "c1", Name: "before", Status: domain.ClientActive}))

	c, err := st.GetClient(ctx, "c1")
	require.NoError(t, err)
	c.Name = "after"

	again, err := st.GetClient(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "before", again.Name)
}
