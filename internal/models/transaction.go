package models

import "time"

const (
	TxTypeTransfer   = "transfer"
	TxTypeDeposit    = "deposit"
	TxTypeWithdrawal = "withdrawal"
)

const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// LedgerEntry is one recorded movement of funds. SenderID is nil for
// deposits. TransactionCode is the human-readable OPP reference shown
// to users.
type LedgerEntry struct {
	ID              int        `json:"id" db:"id"`
	TransactionCode string     `json:"transactionId" db:"transaction_code"`
	Type            string     `json:"transactionType" db:"transaction_type"`
	Amount          int64      `json:"amount" db:"amount"`
	SenderID        *int       `json:"senderId" db:"sender_id"`
	ReceiverID      int        `json:"receiverId" db:"receiver_id"`
	Status          string     `json:"status" db:"status"`
	Fee             int64      `json:"fee" db:"fee"`
	Note            string     `json:"notes,omitempty" db:"note"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	CompletedAt     *time.Time `json:"completedAt,omitempty" db:"completed_at"`
}
