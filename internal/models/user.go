package models

import "time"

// Account statuses. New registrations start as pending until an
// administrator approves them.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account is a wallet holder. The username is the phone number and is
// globally unique. Password and security PIN are argon2id hashes and
// never serialize.
type Account struct {
	ID          int        `json:"id" example:"1"`
	FullName    string     `json:"fullName" example:"Aung Aung"`
	Username    string     `json:"username" example:"09123456789"` // phone number
	Password    string     `json:"-"`
	SecurityPin string     `json:"-"`
	NRCNumber   string     `json:"nrcNumber" example:"12/ABCDE(N)123456"`
	Balance     int64      `json:"balance" example:"1200000"` // whole kyat
	Status      string     `json:"status" example:"active"`
	Role        string     `json:"role" example:"user"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
}

// Recipient is the trimmed account view returned by the
// recent-recipients and QR-resolve endpoints.
type Recipient struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}
