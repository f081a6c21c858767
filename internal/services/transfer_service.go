package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/opperpay/backend/internal/domain"
	"github.com/opperpay/backend/internal/middleware"
	"github.com/opperpay/backend/internal/models"
)

// TransferService owns the one multi-step mutation in the system. The
// whole operation - PIN check, balance check, ledger append, debit,
// credit, stats bump - runs inside a single database transaction with
// both account rows locked, so a failure at any step leaves nothing
// behind.
type TransferService struct {
	db        *sql.DB
	ledger    *LedgerService
	audit     *AuditLogger
	validator *ValidationHelper
}

// TransferRequest is the POST /api/transfers payload.
type TransferRequest struct {
	ReceiverPhone string `json:"receiverPhone" validate:"required" example:"09123456789"`
	Amount        int64  `json:"amount" validate:"required,gt=0" example:"50000"`
	Note          string `json:"note" validate:"max=200"`
	SecurityPin   string `json:"securityPin" validate:"required,len=4,numeric" example:"1234"`
}

// TransferResult is the ledger entry enriched with the receiver's
// display name and phone for the confirmation screen.
type TransferResult struct {
	models.LedgerEntry
	ReceiverName  string `json:"receiverName"`
	ReceiverPhone string `json:"receiverPhone"`
}

func NewTransferService(db *sql.DB, ledger *LedgerService) *TransferService {
	return &TransferService{
		db:        db,
		ledger:    ledger,
		audit:     NewAuditLogger(),
		validator: NewValidationHelper(),
	}
}

// Transfer serves POST /api/transfers.
func (s *TransferService) Transfer(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendDomainError(w, domain.ErrUnauthenticated)
		return
	}

	var req TransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		SendErrorResponse(w, domain.ErrMissingFields.Message, domain.KindValidation, http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, domain.ErrMissingFields.Message, domain.KindValidation, http.StatusBadRequest, err)
		return
	}

	result, err := s.Execute(r.Context(), senderID, req)
	if err != nil {
		log.Printf("[TRANSFER] Transfer failed for user %d: %v", senderID, err)
		s.audit.LogError("", senderID, err)
		SendDomainError(w, err)
		return
	}

	s.audit.LogTransfer(result.TransactionCode, senderID, result.ReceiverID, result.Amount, result.Status)
	respondJSON(w, http.StatusOK, result)
}

// Execute performs the transfer. Step order follows the product
// contract: sender, PIN, receiver, self-transfer guard, balance. The
// balance reads take FOR UPDATE locks in ascending id order so two
// concurrent transfers over the same pair cannot deadlock or read
// stale balances.
func (s *TransferService) Execute(ctx context.Context, senderID int, req TransferRequest) (*TransferResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var storedPin string
	err = tx.QueryRowContext(ctx, `SELECT security_pin FROM users WHERE id = $1`, senderID).Scan(&storedPin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}

	if !verifySecret(req.SecurityPin, storedPin) {
		return nil, domain.ErrInvalidPin
	}

	var receiverID int
	var receiverName, receiverPhone string
	err = tx.QueryRowContext(ctx, `SELECT id, full_name, username FROM users WHERE username = $1`,
		req.ReceiverPhone).Scan(&receiverID, &receiverName, &receiverPhone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReceiverNotFound
		}
		return nil, err
	}

	if receiverID == senderID {
		return nil, domain.ErrSelfTransfer
	}

	// Lock both rows in ascending id order.
	firstID, secondID := senderID, receiverID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}

	firstBalance, err := lockBalance(ctx, tx, firstID)
	if err != nil {
		return nil, err
	}
	secondBalance, err := lockBalance(ctx, tx, secondID)
	if err != nil {
		return nil, err
	}

	senderBalance := firstBalance
	if firstID != senderID {
		senderBalance = secondBalance
	}

	if senderBalance < req.Amount {
		return nil, domain.ErrInsufficientBalance
	}

	entry := &models.LedgerEntry{
		TransactionCode: newTransactionCode(),
		Type:            models.TxTypeTransfer,
		Amount:          req.Amount,
		SenderID:        &senderID,
		ReceiverID:      receiverID,
		Status:          models.TxStatusCompleted,
		Fee:             0,
		Note:            req.Note,
	}
	if err := s.ledger.AppendTx(tx, entry); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance - $1 WHERE id = $2`,
		req.Amount, senderID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance + $1 WHERE id = $2`,
		req.Amount, receiverID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &TransferResult{
		LedgerEntry:   *entry,
		ReceiverName:  receiverName,
		ReceiverPhone: receiverPhone,
	}, nil
}

func lockBalance(ctx context.Context, tx *sql.Tx, accountID int) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`,
		accountID).Scan(&balance)
	return balance, err
}

// newTransactionCode builds the human-readable OPP reference: the low
// six digits of the millisecond clock plus two random digits.
func newTransactionCode() string {
	return fmt.Sprintf("OPP%06d%02d", time.Now().UnixMilli()%1_000_000, rand.Intn(100))
}

// RecentRecipients serves GET /api/transfers/recent-recipients: up to
// five distinct receivers, most recent transfer first.
func (s *TransferService) RecentRecipients(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendDomainError(w, domain.ErrUnauthenticated)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT u.id, u.full_name, u.username
		FROM (
			SELECT receiver_id, MAX(created_at) AS last_sent
			FROM transactions
			WHERE sender_id = $1 AND transaction_type = 'transfer'
			GROUP BY receiver_id
		) t
		JOIN users u ON u.id = t.receiver_id
		ORDER BY t.last_sent DESC
		LIMIT 5`, userID)
	if err != nil {
		log.Printf("[TRANSFER] Recent recipients failed for user %d: %v", userID, err)
		SendDomainError(w, err)
		return
	}
	defer rows.Close()

	recipients := []models.Recipient{}
	for rows.Next() {
		var rec models.Recipient
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Phone); err != nil {
			SendDomainError(w, err)
			return
		}
		recipients = append(recipients, rec)
	}
	if err := rows.Err(); err != nil {
		SendDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, recipients)
}
