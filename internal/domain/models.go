package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType distinguishes the two directions a ledger can move.
type EntryType string

const (
	EntryCredit EntryType = "credit"
	EntryPayee  EntryType = "payee"
)

// Valid reports whether t is one of the known entry types.
func (t EntryType) Valid() bool {
	return t == EntryCredit || t == EntryPayee
}

// VerificationStatus is the ledger-level verification state.
type VerificationStatus string

const (
	VerificationNone   VerificationStatus = "none"
	VerificationNeeded VerificationStatus = "needs_verification"
	Verified           VerificationStatus = "verified"
)

// NotificationType classifies operator-facing alerts.
type NotificationType string

const (
	NotificationBalanceAlert       NotificationType = "balance_alert"
	NotificationVerificationNeeded NotificationType = "verification_needed"
	NotificationWithdrawalLarge    NotificationType = "withdrawal_large"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationBalanceAlert, NotificationVerificationNeeded, NotificationWithdrawalLarge:
		return true
	}
	return false
}

// NotificationStatus moves one way: unread -> read -> dismissed.
type NotificationStatus string

const (
	NotificationUnread    NotificationStatus = "unread"
	NotificationRead      NotificationStatus = "read"
	NotificationDismissed NotificationStatus = "dismissed"
)

// ClientStatus marks whether a client is operationally active.
type ClientStatus string

const (
	ClientActive   ClientStatus = "active"
	ClientInactive ClientStatus = "inactive"
)

// Client is a tracked account holder. VIP clients are subject to the
// verification policy; non-VIP clients never are.
type Client struct {
	ID                    string       `json:"id"`
	Name                  string       `json:"name"`
	OwnerID               string       `json:"owner_id"`
	IsVIP                 bool         `json:"is_vip"`
	Status                ClientStatus `json:"status"`
	VerificationRequired  bool         `json:"verification_required"`
	VerificationFrequency *int         `json:"verification_frequency,omitempty"` // days between required verifications
	LastVerificationDate  *time.Time   `json:"last_verification_date,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
}

// Ledger is the per-client running account. Balance is always
// TotalCredit - TotalPayee; entries are the only thing that moves it.
// Version guards concurrent read-modify-write of the same row.
type Ledger struct {
	ID                   string             `json:"id"`
	ClientID             string             `json:"client_id"`
	TotalCredit          decimal.Decimal    `json:"total_credit"`
	TotalPayee           decimal.Decimal    `json:"total_payee"`
	Balance              decimal.Decimal    `json:"balance"`
	VerificationStatus   VerificationStatus `json:"verification_status"`
	LastVerificationDate *time.Time         `json:"last_verification_date,omitempty"`
	Version              int64              `json:"-"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// LedgerEntry is one immutable movement. PreviousBalance/NewBalance snapshot
// the ledger around this entry so the append-only log is self-auditing.
type LedgerEntry struct {
	ID              string          `json:"id"`
	LedgerID        string          `json:"ledger_id"`
	SessionID       *string         `json:"session_id,omitempty"`
	Type            EntryType       `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	Notes           *string         `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LedgerVerification records one human attestation of a ledger balance.
// VerifiedBalance always snapshots the balance at verification time.
type LedgerVerification struct {
	ID              string          `json:"id"`
	LedgerID        string          `json:"ledger_id"`
	VerifiedBy      string          `json:"verified_by"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	VerifiedBalance decimal.Decimal `json:"verified_balance"`
	Status          string          `json:"status"`
	Notes           *string         `json:"notes,omitempty"`
	VerifiedAt      time.Time       `json:"verified_at"`
}

// Notification is a stateful operator alert tied to a client.
type Notification struct {
	ID        string             `json:"id"`
	ClientID  string             `json:"client_id"`
	Type      NotificationType   `json:"type"`
	Message   string             `json:"message"`
	Status    NotificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	ReadAt    *time.Time         `json:"read_at,omitempty"`
}

// NewEntry is the caller-supplied shape of one pending movement.
type NewEntry struct {
	Type   EntryType       `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Notes  *string         `json:"notes,omitempty"`
}

// LedgerResult is what a committed batch returns: the post-batch ledger and
// the entries created, in application order.
type LedgerResult struct {
	Ledger  *Ledger        `json:"ledger"`
	Entries []*LedgerEntry `json:"entries"`
}

// LedgerView is the read-path aggregate: ledger, its client, entries in the
// requested range (newest first) and non-dismissed notifications.
type LedgerView struct {
	Ledger        *Ledger         `json:"ledger"`
	Client        *Client         `json:"client"`
	Entries       []*LedgerEntry  `json:"entries"`
	Notifications []*Notification `json:"notifications"`
}

// VerificationResult bundles the state after a verification event.
type VerificationResult struct {
	Verification *LedgerVerification `json:"verification"`
	Client       *Client             `json:"client"`
	Ledger       *Ledger             `json:"ledger"`
}

// LedgerSummary is the per-client row of the multi-client report.
type LedgerSummary struct {
	ClientID              string          `json:"client_id"`
	ClientName            string          `json:"client_name"`
	ClientStatus          ClientStatus    `json:"client_status"`
	TotalCredit           decimal.Decimal `json:"total_credit"`
	TotalPayee            decimal.Decimal `json:"total_payee"`
	CurrentBalance        decimal.Decimal `json:"current_balance"`
	PeriodCredit          decimal.Decimal `json:"period_credit"`
	PeriodPayee           decimal.Decimal `json:"period_payee"`
	LastTransaction       *time.Time      `json:"last_transaction,omitempty"`
	VerificationRequired  bool            `json:"verification_required"`
	VerificationFrequency *int            `json:"verification_frequency,omitempty"`
	LastVerificationDate  *time.Time      `json:"last_verification_date,omitempty"`
}
