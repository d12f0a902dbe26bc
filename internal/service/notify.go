package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nadirhuss/ledgercore/internal/domain"
	"github.com/nadirhuss/ledgercore/internal/store"
)

// NotificationService manages operator alerts outside the transaction flows.
type NotificationService struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewNotificationService(st store.Store, log *slog.Logger) *NotificationService {
	return &NotificationService{store: st, log: log, now: time.Now}
}

// Create records a new unread notification for the client.
func (s *NotificationService) Create(ctx context.Context, clientID string, typ domain.NotificationType, message string) (*domain.Notification, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidNotification, typ)
	}
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return nil, err
	}

	n := &domain.Notification{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Type:      typ,
		Message:   message,
		Status:    domain.NotificationUnread,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Dismiss moves a notification to dismissed, stamping read_at on the first
// call. Repeat calls return the same final state without error.
func (s *NotificationService) Dismiss(ctx context.Context, id string) (*domain.Notification, error) {
	return s.store.DismissNotification(ctx, id, s.now())
}

// List returns non-dismissed notifications, newest first, optionally
// filtered to one client.
func (s *NotificationService) List(ctx context.Context, clientID string) ([]*domain.Notification, error) {
	return s.store.ListNotifications(ctx, clientID)
}
