package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/lib/pq"
	"github.com/opperpay/backend/internal/domain"
	"github.com/opperpay/backend/internal/models"
)

// AccountService is the account store: lookups, creation and the
// admin listings. Balance mutations happen only inside the transfer
// transaction and live in TransferService.
type AccountService struct {
	db    *sql.DB
	stats *StatsService
}

func NewAccountService(db *sql.DB, stats *StatsService) *AccountService {
	return &AccountService{db: db, stats: stats}
}

// CreateAccountParams carries the fields needed to open an account.
// Password and SecurityPin must already be hashed.
type CreateAccountParams struct {
	FullName    string
	Username    string
	Password    string
	SecurityPin string
	NRCNumber   string
	Status      string
}

const accountColumns = `id, full_name, username, password, security_pin, nrc_number, balance, status, role, created_at, last_login`

func scanAccount(row interface{ Scan(dest ...any) error }) (*models.Account, error) {
	var a models.Account
	var lastLogin sql.NullTime
	err := row.Scan(&a.ID, &a.FullName, &a.Username, &a.Password, &a.SecurityPin,
		&a.NRCNumber, &a.Balance, &a.Status, &a.Role, &a.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		a.LastLogin = &lastLogin.Time
	}
	return &a, nil
}

// GetByID returns the account or sql.ErrNoRows.
func (s *AccountService) GetByID(ctx context.Context, id int) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByUsername returns the account for a phone number or sql.ErrNoRows.
func (s *AccountService) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM users WHERE username = $1`, username)
	return scanAccount(row)
}

// Create opens an account and bumps the user counters in the same
// transaction. A taken username surfaces as ErrDuplicateUsername.
func (s *AccountService) Create(ctx context.Context, params CreateAccountParams) (*models.Account, error) {
	if params.Status == "" {
		params.Status = models.StatusPending
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	account := &models.Account{
		FullName:    params.FullName,
		Username:    params.Username,
		Password:    params.Password,
		SecurityPin: params.SecurityPin,
		NRCNumber:   params.NRCNumber,
		Balance:     0,
		Status:      params.Status,
		Role:        models.RoleUser,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (full_name, username, password, security_pin, nrc_number, status, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		params.FullName, params.Username, params.Password, params.SecurityPin,
		params.NRCNumber, params.Status, models.RoleUser).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, domain.ErrDuplicateUsername
		}
		return nil, err
	}

	if err := s.stats.ApplyUserCreated(tx, params.Status); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return account, nil
}

// UpdateLastLogin stamps the login time.
func (s *AccountService) UpdateLastLogin(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	return err
}

// ListAll returns every account.
func (s *AccountService) ListAll(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

// ListNewest returns the most recently created accounts, newest first.
func (s *AccountService) ListNewest(ctx context.Context, limit int) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM users ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func collectAccounts(rows *sql.Rows) ([]models.Account, error) {
	defer rows.Close()
	accounts := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// SearchUser serves GET /api/users/search?phone=
func (s *AccountService) SearchUser(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		SendErrorResponse(w, "ဖုန်းနံပါတ် လိုအပ်ပါသည်", domain.KindValidation, http.StatusBadRequest, nil)
		return
	}

	account, err := s.GetByUsername(r.Context(), phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			SendDomainError(w, domain.ErrUserNotFound)
			return
		}
		log.Printf("[USERS] Search failed for %s: %v", phone, err)
		SendDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, account)
}

// ListUsers serves GET /api/admin/users.
func (s *AccountService) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.ListAll(r.Context())
	if err != nil {
		log.Printf("[USERS] Listing failed: %v", err)
		SendDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// GetNewUsers serves GET /api/admin/new-users.
func (s *AccountService) GetNewUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.ListNewest(r.Context(), 5)
	if err != nil {
		log.Printf("[USERS] New-users listing failed: %v", err)
		SendDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}
