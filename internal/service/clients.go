package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nadirhuss/ledgercore/internal/domain"
	"github.com/nadirhuss/ledgercore/internal/store"
)

// ClientService covers the minimal client records the ledger flows operate
// on. Ownership and role checks belong to the calling layer.
type ClientService struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewClientService(st store.Store, log *slog.Logger) *ClientService {
	return &ClientService{store: st, log: log, now: time.Now}
}

func (s *ClientService) Create(ctx context.Context, name, ownerID string, isVIP bool, verificationFrequency *int) (*domain.Client, error) {
	c := &domain.Client{
		ID:                    uuid.NewString(),
		Name:                  name,
		OwnerID:               ownerID,
		IsVIP:                 isVIP,
		Status:                domain.ClientActive,
		VerificationFrequency: verificationFrequency,
		CreatedAt:             s.now(),
	}
	if err := s.store.CreateClient(ctx, c); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "client created", "client_id", c.ID, "vip", isVIP)
	return c, nil
}

func (s *ClientService) Get(ctx context.Context, id string) (*domain.Client, error) {
	return s.store.GetClient(ctx, id)
}
