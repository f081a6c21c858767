package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/opperpay/backend/internal/domain"
	"github.com/opperpay/backend/internal/middleware"
	"github.com/opperpay/backend/internal/models"
)

// LedgerService is the append-only record of fund movements. Every
// append goes through AppendTx, which bumps the transaction counters
// in the same database transaction.
type LedgerService struct {
	db    *sql.DB
	stats *StatsService
}

func NewLedgerService(db *sql.DB, stats *StatsService) *LedgerService {
	return &LedgerService{db: db, stats: stats}
}

const ledgerColumns = `id, transaction_code, transaction_type, amount, sender_id, receiver_id, status, fee, note, created_at, completed_at`

func scanLedgerEntry(row interface{ Scan(dest ...any) error }) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	var senderID sql.NullInt64
	var completedAt sql.NullTime
	err := row.Scan(&e.ID, &e.TransactionCode, &e.Type, &e.Amount, &senderID,
		&e.ReceiverID, &e.Status, &e.Fee, &e.Note, &e.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if senderID.Valid {
		id := int(senderID.Int64)
		e.SenderID = &id
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	return &e, nil
}

// AppendTx inserts the entry inside the caller's transaction. The
// completion timestamp is set only when the entry arrives already
// completed. Fills ID, CreatedAt and CompletedAt on the entry.
func (s *LedgerService) AppendTx(tx *sql.Tx, entry *models.LedgerEntry) error {
	var senderID sql.NullInt64
	if entry.SenderID != nil {
		senderID = sql.NullInt64{Int64: int64(*entry.SenderID), Valid: true}
	}

	var completedAt sql.NullTime
	err := tx.QueryRow(`
		INSERT INTO transactions (transaction_code, transaction_type, amount, sender_id, receiver_id, status, fee, note, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CASE WHEN $6 = 'completed' THEN NOW() ELSE NULL END)
		RETURNING id, created_at, completed_at`,
		entry.TransactionCode, entry.Type, entry.Amount, senderID, entry.ReceiverID,
		entry.Status, entry.Fee, entry.Note).Scan(&entry.ID, &entry.CreatedAt, &completedAt)
	if err != nil {
		return err
	}
	if completedAt.Valid {
		entry.CompletedAt = &completedAt.Time
	}

	return s.stats.ApplyTransaction(tx, entry.Amount)
}

// Append inserts an entry in its own transaction.
func (s *LedgerService) Append(ctx context.Context, entry *models.LedgerEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.AppendTx(tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID returns the entry or sql.ErrNoRows.
func (s *LedgerService) GetByID(ctx context.Context, id int) (*models.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ledgerColumns+` FROM transactions WHERE id = $1`, id)
	return scanLedgerEntry(row)
}

// GetByCode looks an entry up by its OPP reference.
func (s *LedgerService) GetByCode(ctx context.Context, code string) (*models.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ledgerColumns+` FROM transactions WHERE transaction_code = $1`, code)
	return scanLedgerEntry(row)
}

// ListForAccount returns entries where the account is sender or
// receiver, newest first.
func (s *LedgerService) ListForAccount(ctx context.Context, userID int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ledgerColumns+` FROM transactions
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectLedgerEntries(rows)
}

// ListRecent returns the newest entries across all accounts.
func (s *LedgerService) ListRecent(ctx context.Context, limit int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ledgerColumns+` FROM transactions
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectLedgerEntries(rows)
}

func collectLedgerEntries(rows *sql.Rows) ([]models.LedgerEntry, error) {
	defer rows.Close()
	entries := []models.LedgerEntry{}
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// ListTransactions serves GET /api/transactions for the authenticated
// subject.
func (s *LedgerService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendDomainError(w, domain.ErrUnauthenticated)
		return
	}

	entries, err := s.ListForAccount(r.Context(), userID)
	if err != nil {
		log.Printf("[LEDGER] Transaction listing failed for user %d: %v", userID, err)
		SendDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// GetTransaction serves lookups by OPP reference.
func (s *LedgerService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		SendErrorResponse(w, domain.ErrMissingFields.Message, domain.KindValidation, http.StatusBadRequest, nil)
		return
	}

	entry, err := s.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			SendDomainError(w, domain.ErrTransactionNotFound)
			return
		}
		SendDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// RecentActivities serves GET /api/admin/activities.
func (s *LedgerService) RecentActivities(w http.ResponseWriter, r *http.Request) {
	entries, err := s.ListRecent(r.Context(), 5)
	if err != nil {
		log.Printf("[LEDGER] Recent activities failed: %v", err)
		SendDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
