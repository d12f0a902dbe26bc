package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/nadirhuss/ledgercore/internal/domain"
	"github.com/nadirhuss/ledgercore/internal/store/migrations"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	db  *pgxpool.Pool
	dsn string
}

func NewPostgresStore(connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{db: pool, dsn: connString}, nil
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// RunMigrations applies the embedded goose migrations. Goose wants a
// database/sql handle, so a short-lived one is opened over the same DSN.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return fmt.Errorf("db open error: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateClient(ctx context.Context, c *domain.Client) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO clients (id, name, owner_id, is_vip, status, verification_required, verification_frequency, last_verification_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Name, c.OwnerID, c.IsVIP, string(c.Status), c.VerificationRequired,
		c.VerificationFrequency, c.LastVerificationDate, c.CreatedAt)
	return err
}

const clientColumns = `id, name, owner_id, is_vip, status, verification_required, verification_frequency, last_verification_date, created_at`

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	var status string
	err := row.Scan(&c.ID, &c.Name, &c.OwnerID, &c.IsVIP, &status,
		&c.VerificationRequired, &c.VerificationFrequency, &c.LastVerificationDate, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = domain.ClientStatus(status)
	return &c, nil
}

func (s *PostgresStore) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	row := s.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrClientNotFound
	}
	return c, err
}

const ledgerColumns = `id, client_id, total_credit::text, total_payee::text, balance::text, verification_status, last_verification_date, version, created_at, updated_at`

func scanLedger(row pgx.Row) (*domain.Ledger, error) {
	var l domain.Ledger
	var status, credit, payee, balance string
	err := row.Scan(&l.ID, &l.ClientID, &credit, &payee, &balance, &status,
		&l.LastVerificationDate, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.VerificationStatus = domain.VerificationStatus(status)
	if l.TotalCredit, err = decimal.NewFromString(credit); err != nil {
		return nil, fmt.Errorf("bad total_credit %q: %w", credit, err)
	}
	if l.TotalPayee, err = decimal.NewFromString(payee); err != nil {
		return nil, fmt.Errorf("bad total_payee %q: %w", payee, err)
	}
	if l.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("bad balance %q: %w", balance, err)
	}
	return &l, nil
}

func (s *PostgresStore) GetLedgerByClient(ctx context.Context, clientID string) (*domain.Ledger, error) {
	row := s.db.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM client_ledgers WHERE client_id = $1`, clientID)
	l, err := scanLedger(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLedgerNotFound
	}
	return l, err
}

func (s *PostgresStore) CreateLedger(ctx context.Context, l *domain.Ledger) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO client_ledgers (id, client_id, total_credit, total_payee, balance, verification_status, last_verification_date, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.ClientID, l.TotalCredit.String(), l.TotalPayee.String(), l.Balance.String(),
		string(l.VerificationStatus), l.LastVerificationDate, l.Version, l.CreatedAt, l.UpdatedAt)
	return err
}

// CommitBatch locks the ledger row, checks the version the caller computed
// from, appends the entries and writes the new totals. Any concurrent commit
// in between fails this one wholesale.
func (s *PostgresStore) CommitBatch(ctx context.Context, ledger *domain.Ledger, entries []*domain.LedgerEntry) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var version int64
	err = tx.QueryRow(ctx, `SELECT version FROM client_ledgers WHERE id = $1 FOR UPDATE`, ledger.ID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrLedgerNotFound
	}
	if err != nil {
		return fmt.Errorf("ledger lock failed: %w", err)
	}
	if version != ledger.Version {
		return domain.ErrLedgerConflict
	}

	for _, e := range entries {
		_, err = tx.Exec(ctx,
			`INSERT INTO client_ledger_entries (id, ledger_id, session_id, type, amount, previous_balance, new_balance, notes, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, e.LedgerID, e.SessionID, string(e.Type), e.Amount.String(),
			e.PreviousBalance.String(), e.NewBalance.String(), e.Notes, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("entry insert failed: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE client_ledgers
		 SET total_credit = $1, total_payee = $2, balance = $3, version = version + 1, updated_at = $4
		 WHERE id = $5`,
		ledger.TotalCredit.String(), ledger.TotalPayee.String(), ledger.Balance.String(),
		ledger.UpdatedAt, ledger.ID)
	if err != nil {
		return fmt.Errorf("ledger update failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}

	ledger.Version++
	return nil
}

func (s *PostgresStore) FlagForVerification(ctx context.Context, clientID string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE clients SET verification_required = TRUE WHERE id = $1`, clientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClientNotFound
	}

	_, err = tx.Exec(ctx,
		`UPDATE client_ledgers SET verification_status = $1, updated_at = $2 WHERE client_id = $3`,
		string(domain.VerificationNeeded), at, clientID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) CommitVerification(ctx context.Context, v *domain.LedgerVerification, clientID string, at time.Time) (*domain.Client, *domain.Ledger, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO client_ledger_verifications (id, ledger_id, verified_by, previous_balance, verified_balance, status, notes, verified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		v.ID, v.LedgerID, v.VerifiedBy, v.PreviousBalance.String(), v.VerifiedBalance.String(),
		v.Status, v.Notes, v.VerifiedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("verification insert failed: %w", err)
	}

	row := tx.QueryRow(ctx,
		`UPDATE clients SET verification_required = FALSE, last_verification_date = $1
		 WHERE id = $2 RETURNING `+clientColumns, at, clientID)
	client, err := scanClient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrClientNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("client update failed: %w", err)
	}

	row = tx.QueryRow(ctx,
		`UPDATE client_ledgers SET verification_status = $1, last_verification_date = $2, updated_at = $2
		 WHERE id = $3 RETURNING `+ledgerColumns, string(domain.Verified), at, v.LedgerID)
	ledger, err := scanLedger(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, domain.ErrLedgerNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("ledger update failed: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE client_notifications SET status = $1, read_at = $2
		 WHERE client_id = $3 AND type = $4 AND status = $5`,
		string(domain.NotificationRead), at, clientID,
		string(domain.NotificationVerificationNeeded), string(domain.NotificationUnread))
	if err != nil {
		return nil, nil, fmt.Errorf("notification update failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return client, ledger, nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, ledgerID string, from, to *time.Time) ([]*domain.LedgerEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, ledger_id, session_id, type, amount::text, previous_balance::text, new_balance::text, notes, created_at
		 FROM client_ledger_entries
		 WHERE ledger_id = $1
		   AND ($2::timestamptz IS NULL OR created_at >= $2)
		   AND ($3::timestamptz IS NULL OR created_at <= $3)
		 ORDER BY created_at DESC, id DESC`,
		ledgerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var typ, amount, prev, next string
		if err := rows.Scan(&e.ID, &e.LedgerID, &e.SessionID, &typ, &amount, &prev, &next, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = domain.EntryType(typ)
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if e.PreviousBalance, err = decimal.NewFromString(prev); err != nil {
			return nil, err
		}
		if e.NewBalance, err = decimal.NewFromString(next); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO client_notifications (id, client_id, type, message, status, created_at, read_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.ClientID, string(n.Type), n.Message, string(n.Status), n.CreatedAt, n.ReadAt)
	return err
}

const notificationColumns = `id, client_id, type, message, status, created_at, read_at`

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	var typ, status string
	err := row.Scan(&n.ID, &n.ClientID, &typ, &n.Message, &status, &n.CreatedAt, &n.ReadAt)
	if err != nil {
		return nil, err
	}
	n.Type = domain.NotificationType(typ)
	n.Status = domain.NotificationStatus(status)
	return &n, nil
}

func (s *PostgresStore) DismissNotification(ctx context.Context, id string, at time.Time) (*domain.Notification, error) {
	// COALESCE keeps the original read_at on repeat dismissals.
	row := s.db.QueryRow(ctx,
		`UPDATE client_notifications SET status = $1, read_at = COALESCE(read_at, $2)
		 WHERE id = $3 RETURNING `+notificationColumns,
		string(domain.NotificationDismissed), at, id)
	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotificationNotFound
	}
	return n, err
}

func (s *PostgresStore) ListNotifications(ctx context.Context, clientID string) ([]*domain.Notification, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+notificationColumns+`
		 FROM client_notifications
		 WHERE status <> $1 AND ($2 = '' OR client_id = $2)
		 ORDER BY created_at DESC, id DESC`,
		string(domain.NotificationDismissed), clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
