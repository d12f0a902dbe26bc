package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/nadirhuss/ledgercore/internal/domain"
)

// Verify records a human attestation of the client's current balance.
//
// The verification snapshots the balance as-is (it does not correct
// mismatches), clears the client's pending-verification flag, stamps the
// verification date on client and ledger, marks the ledger verified and
// marks the client's unread verification_needed notifications as read — all
// atomically.
func (s *LedgerService) Verify(ctx context.Context, clientID, verifiedBy string, notes *string) (*domain.VerificationResult, error) {
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	ledger, err := s.store.GetLedgerByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	verification := &domain.LedgerVerification{
		ID:              uuid.NewString(),
		LedgerID:        ledger.ID,
		VerifiedBy:      verifiedBy,
		PreviousBalance: ledger.Balance,
		VerifiedBalance: ledger.Balance,
		Status:          string(domain.Verified),
		Notes:           notes,
		VerifiedAt:      now,
	}

	client, updatedLedger, err := s.store.CommitVerification(ctx, verification, clientID, now)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "client balance verified",
		"client_id", clientID, "verified_by", verifiedBy, "balance", updatedLedger.Balance.String())

	return &domain.VerificationResult{
		Verification: verification,
		Client:       client,
		Ledger:       updatedLedger,
	}, nil
}
