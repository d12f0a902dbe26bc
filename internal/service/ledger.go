// Package service contains the business flows over the store: posting entry
// batches, reading ledgers, recording verifications and dispatching
// notifications.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nadirhuss/ledgercore/internal/domain"
	"github.com/nadirhuss/ledgercore/internal/policy"
	"github.com/nadirhuss/ledgercore/internal/store"
)

// LedgerService is the transaction processor and verification recorder.
type LedgerService struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewLedgerService(st store.Store, log *slog.Logger) *LedgerService {
	return &LedgerService{store: st, log: log, now: time.Now}
}

// PostEntries applies one batch of movements to a client's ledger.
//
// The batch is all-or-nothing: the verification gate runs first and a blocked
// batch leaves the ledger untouched (only the verification_needed
// notification is persisted). Accepted batches are applied strictly in order,
// each entry's PreviousBalance continuing from the previous entry's
// NewBalance, and committed in a single transaction. After commit the
// accumulated-state check may flag the client for a future verification, and
// a positive closing balance raises a balance alert.
func (s *LedgerService) PostEntries(ctx context.Context, clientID string, sessionID *string, newEntries []domain.NewEntry) (*domain.LedgerResult, error) {
	if len(newEntries) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	for i, e := range newEntries {
		if !e.Type.Valid() {
			return nil, fmt.Errorf("%w: entry %d has unknown type %q", domain.ErrInvalidEntry, i, e.Type)
		}
		if !e.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: entry %d amount must be positive", domain.ErrInvalidEntry, i)
		}
	}

	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ledger, err := s.getOrCreateLedger(ctx, clientID, now)
	if err != nil {
		return nil, err
	}

	pending := make([]policy.Pending, len(newEntries))
	for i, e := range newEntries {
		pending[i] = policy.Pending{Type: e.Type, Amount: e.Amount}
	}

	if d := policy.Evaluate(client, ledger, pending, now); d.RequiresVerification {
		// The rejection itself is worth an operator alert, so this outlives
		// the rejected batch.
		if err := s.notify(ctx, clientID, domain.NotificationVerificationNeeded,
			"Verification required: "+d.Reason, now); err != nil {
			return nil, err
		}
		s.log.InfoContext(ctx, "entry batch blocked by verification policy",
			"client_id", clientID, "reason", d.Reason)
		return nil, &domain.VerificationRequiredError{Reason: d.Reason}
	}

	entries := make([]*domain.LedgerEntry, 0, len(newEntries))
	for _, e := range newEntries {
		previous := ledger.Balance
		var next decimal.Decimal
		if e.Type == domain.EntryCredit {
			next = previous.Add(e.Amount)
			ledger.TotalCredit = ledger.TotalCredit.Add(e.Amount)
		} else {
			next = previous.Sub(e.Amount)
			ledger.TotalPayee = ledger.TotalPayee.Add(e.Amount)
		}
		ledger.Balance = next

		entries = append(entries, &domain.LedgerEntry{
			ID:              uuid.NewString(),
			LedgerID:        ledger.ID,
			SessionID:       sessionID,
			Type:            e.Type,
			Amount:          e.Amount,
			PreviousBalance: previous,
			NewBalance:      next,
			Notes:           e.Notes,
			CreatedAt:       now,
		})
	}

	ledger.UpdatedAt = now
	if err := s.store.CommitBatch(ctx, ledger, entries); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "entry batch committed",
		"client_id", clientID, "entries", len(entries), "balance", ledger.Balance.String())

	if policy.CheckAccumulated(client, ledger, now) {
		if err := s.store.FlagForVerification(ctx, clientID, now); err != nil {
			return nil, err
		}
		if err := s.notify(ctx, clientID, domain.NotificationVerificationNeeded,
			"Verification required due to large transaction or time since last verification", now); err != nil {
			return nil, err
		}
		client.VerificationRequired = true
		ledger.VerificationStatus = domain.VerificationNeeded
		s.log.InfoContext(ctx, "client flagged for verification", "client_id", clientID)
	}

	if ledger.Balance.IsPositive() {
		msg := fmt.Sprintf("Client has a positive balance of %s", ledger.Balance.StringFixed(2))
		if err := s.notify(ctx, clientID, domain.NotificationBalanceAlert, msg, now); err != nil {
			return nil, err
		}
	}

	return &domain.LedgerResult{Ledger: ledger, Entries: entries}, nil
}

// GetLedger is the read path: ledger, client, entries in the optional range
// (newest first) and the client's active notifications. No mutation.
func (s *LedgerService) GetLedger(ctx context.Context, clientID string, from, to *time.Time) (*domain.LedgerView, error) {
	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	ledger, err := s.store.GetLedgerByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, ledger.ID, from, to)
	if err != nil {
		return nil, err
	}
	notifications, err := s.store.ListNotifications(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return &domain.LedgerView{
		Ledger:        ledger,
		Client:        client,
		Entries:       entries,
		Notifications: notifications,
	}, nil
}

// Summaries builds the multi-client report rows. Clients without a ledger are
// skipped rather than failing the whole report.
func (s *LedgerService) Summaries(ctx context.Context, clientIDs []string, from, to *time.Time) ([]*domain.LedgerSummary, error) {
	summaries := make([]*domain.LedgerSummary, 0, len(clientIDs))
	for _, clientID := range clientIDs {
		client, err := s.store.GetClient(ctx, clientID)
		if err != nil {
			return nil, err
		}
		ledger, err := s.store.GetLedgerByClient(ctx, clientID)
		if errors.Is(err, domain.ErrLedgerNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries, err := s.store.ListEntries(ctx, ledger.ID, from, to)
		if err != nil {
			return nil, err
		}

		summary := &domain.LedgerSummary{
			ClientID:              client.ID,
			ClientName:            client.Name,
			ClientStatus:          client.Status,
			TotalCredit:           ledger.TotalCredit,
			TotalPayee:            ledger.TotalPayee,
			CurrentBalance:        ledger.Balance,
			PeriodCredit:          decimal.Zero,
			PeriodPayee:           decimal.Zero,
			VerificationRequired:  client.VerificationRequired,
			VerificationFrequency: client.VerificationFrequency,
			LastVerificationDate:  client.LastVerificationDate,
		}
		for _, e := range entries {
			if e.Type == domain.EntryCredit {
				summary.PeriodCredit = summary.PeriodCredit.Add(e.Amount)
			} else {
				summary.PeriodPayee = summary.PeriodPayee.Add(e.Amount)
			}
		}
		if len(entries) > 0 {
			t := entries[0].CreatedAt
			summary.LastTransaction = &t
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *LedgerService) getOrCreateLedger(ctx context.Context, clientID string, now time.Time) (*domain.Ledger, error) {
	ledger, err := s.store.GetLedgerByClient(ctx, clientID)
	if err == nil {
		return ledger, nil
	}
	if !errors.Is(err, domain.ErrLedgerNotFound) {
		return nil, err
	}

	ledger = &domain.Ledger{
		ID:                 uuid.NewString(),
		ClientID:           clientID,
		TotalCredit:        decimal.Zero,
		TotalPayee:         decimal.Zero,
		Balance:            decimal.Zero,
		VerificationStatus: domain.VerificationNone,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.CreateLedger(ctx, ledger); err != nil {
		return nil, err
	}
	return ledger, nil
}

func (s *LedgerService) notify(ctx context.Context, clientID string, typ domain.NotificationType, message string, now time.Time) error {
	return s.store.CreateNotification(ctx, &domain.Notification{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Type:      typ,
		Message:   message,
		Status:    domain.NotificationUnread,
		CreatedAt: now,
	})
}
