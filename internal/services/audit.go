package services

import (
	"encoding/json"
	"log"
	"time"
)

// AuditEvent is one structured record on the transfer audit trail.
type AuditEvent struct {
	Timestamp       time.Time `json:"timestamp"`
	EventType       string    `json:"event_type"`
	TransactionCode string    `json:"transaction_code"`
	SenderID        int       `json:"sender_id,omitempty"`
	ReceiverID      int       `json:"receiver_id,omitempty"`
	Amount          int64     `json:"amount,omitempty"`
	Status          string    `json:"status"`
	Details         any       `json:"details,omitempty"`
}

type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogTransfer(code string, senderID, receiverID int, amount int64, status string) {
	a.log(AuditEvent{
		Timestamp:       time.Now(),
		EventType:       "TRANSFER",
		TransactionCode: code,
		SenderID:        senderID,
		ReceiverID:      receiverID,
		Amount:          amount,
		Status:          status,
	})
}

func (a *AuditLogger) LogError(code string, userID int, err error) {
	a.log(AuditEvent{
		Timestamp:       time.Now(),
		EventType:       "ERROR",
		TransactionCode: code,
		SenderID:        userID,
		Status:          "FAILED",
		Details:         map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
