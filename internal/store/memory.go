package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nadirhuss/ledgercore/internal/domain"
)

// MemoryStore is an in-process Store used by tests and local runs. A single
// mutex serializes all mutations, which trivially satisfies the
// one-writer-per-ledger requirement; the version check is still enforced so
// stale callers fail the same way they would against Postgres.
type MemoryStore struct {
	mu            sync.Mutex
	clients       map[string]*domain.Client
	ledgers       map[string]*domain.Ledger // keyed by ledger ID
	entries       map[string][]*domain.LedgerEntry
	verifications []*domain.LedgerVerification
	notifications []*domain.Notification
	seq           map[string]int // insertion order for stable newest-first sorts
	nextSeq       int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[string]*domain.Client),
		ledgers: make(map[string]*domain.Ledger),
		entries: make(map[string][]*domain.LedgerEntry),
		seq:     make(map[string]int),
	}
}

func cloneClient(c *domain.Client) *domain.Client {
	out := *c
	if c.VerificationFrequency != nil {
		f := *c.VerificationFrequency
		out.VerificationFrequency = &f
	}
	if c.LastVerificationDate != nil {
		t := *c.LastVerificationDate
		out.LastVerificationDate = &t
	}
	return &out
}

func cloneLedger(l *domain.Ledger) *domain.Ledger {
	out := *l
	if l.LastVerificationDate != nil {
		t := *l.LastVerificationDate
		out.LastVerificationDate = &t
	}
	return &out
}

func cloneEntry(e *domain.LedgerEntry) *domain.LedgerEntry {
	out := *e
	if e.SessionID != nil {
		s := *e.SessionID
		out.SessionID = &s
	}
	if e.Notes != nil {
		s := *e.Notes
		out.Notes = &s
	}
	return &out
}

func cloneNotification(n *domain.Notification) *domain.Notification {
	out := *n
	if n.ReadAt != nil {
		t := *n.ReadAt
		out.ReadAt = &t
	}
	return &out
}

func (s *MemoryStore) CreateClient(_ context.Context, c *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = cloneClient(c)
	return nil
}

func (s *MemoryStore) GetClient(_ context.Context, id string) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, domain.ErrClientNotFound
	}
	return cloneClient(c), nil
}

func (s *MemoryStore) GetLedgerByClient(_ context.Context, clientID string) (*domain.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.ledgerByClientLocked(clientID)
	if l == nil {
		return nil, domain.ErrLedgerNotFound
	}
	return cloneLedger(l), nil
}

func (s *MemoryStore) ledgerByClientLocked(clientID string) *domain.Ledger {
	for _, l := range s.ledgers {
		if l.ClientID == clientID {
			return l
		}
	}
	return nil
}

func (s *MemoryStore) CreateLedger(_ context.Context, l *domain.Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledgers[l.ID] = cloneLedger(l)
	return nil
}

func (s *MemoryStore) CommitBatch(_ context.Context, ledger *domain.Ledger, entries []*domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.ledgers[ledger.ID]
	if !ok {
		return domain.ErrLedgerNotFound
	}
	if stored.Version != ledger.Version {
		return domain.ErrLedgerConflict
	}

	for _, e := range entries {
		ec := cloneEntry(e)
		s.entries[ledger.ID] = append(s.entries[ledger.ID], ec)
		s.seq[ec.ID] = s.nextSeq
		s.nextSeq++
	}

	updated := cloneLedger(ledger)
	updated.Version++
	s.ledgers[ledger.ID] = updated
	ledger.Version++
	return nil
}

func (s *MemoryStore) FlagForVerification(_ context.Context, clientID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok {
		return domain.ErrClientNotFound
	}
	c.VerificationRequired = true

	if l := s.ledgerByClientLocked(clientID); l != nil {
		l.VerificationStatus = domain.VerificationNeeded
		l.UpdatedAt = at
	}
	return nil
}

func (s *MemoryStore) CommitVerification(_ context.Context, v *domain.LedgerVerification, clientID string, at time.Time) (*domain.Client, *domain.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok {
		return nil, nil, domain.ErrClientNotFound
	}
	l, ok := s.ledgers[v.LedgerID]
	if !ok {
		return nil, nil, domain.ErrLedgerNotFound
	}

	s.verifications = append(s.verifications, v)

	c.VerificationRequired = false
	t := at
	c.LastVerificationDate = &t

	t2 := at
	l.LastVerificationDate = &t2
	l.VerificationStatus = domain.Verified
	l.UpdatedAt = at

	for _, n := range s.notifications {
		if n.ClientID == clientID && n.Type == domain.NotificationVerificationNeeded && n.Status == domain.NotificationUnread {
			n.Status = domain.NotificationRead
			readAt := at
			n.ReadAt = &readAt
		}
	}

	return cloneClient(c), cloneLedger(l), nil
}

func (s *MemoryStore) ListEntries(_ context.Context, ledgerID string, from, to *time.Time) ([]*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.LedgerEntry
	for _, e := range s.entries[ledgerID] {
		if from != nil && e.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && e.CreatedAt.After(*to) {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := cloneNotification(n)
	s.notifications = append(s.notifications, stored)
	s.seq[stored.ID] = s.nextSeq
	s.nextSeq++
	return nil
}

func (s *MemoryStore) DismissNotification(_ context.Context, id string, at time.Time) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications {
		if n.ID != id {
			continue
		}
		n.Status = domain.NotificationDismissed
		if n.ReadAt == nil {
			readAt := at
			n.ReadAt = &readAt
		}
		return cloneNotification(n), nil
	}
	return nil, domain.ErrNotificationNotFound
}

func (s *MemoryStore) ListNotifications(_ context.Context, clientID string) ([]*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Notification
	for _, n := range s.notifications {
		if n.Status == domain.NotificationDismissed {
			continue
		}
		if clientID != "" && n.ClientID != clientID {
			continue
		}
		out = append(out, cloneNotification(n))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}
