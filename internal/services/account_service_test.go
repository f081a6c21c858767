package services

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/opperpay/backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

func newAccountService(t *testing.T) (*AccountService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	return NewAccountService(db, NewStatsService(db)), mock, func() { db.Close() }
}

func TestAccountService_Create(t *testing.T) {
	service, mock, closeDB := newAccountService(t)
	defer closeDB()

	params := CreateAccountParams{
		FullName:    "Aung Aung",
		Username:    "09777000111",
		Password:    "hashed-password",
		SecurityPin: "hashed-pin",
		NRCNumber:   "12/ABCDE(N)123456",
	}

	t.Run("creates pending account and bumps user counters", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("Aung Aung", "09777000111", "hashed-password", "hashed-pin",
				"12/ABCDE(N)123456", "pending", "user").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, time.Now()))
		mock.ExpectExec(`UPDATE system_stats`).
			WithArgs("pending").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		account, err := service.Create(context.Background(), params)
		assert.NoError(t, err)
		assert.Equal(t, 3, account.ID)
		assert.Equal(t, "pending", account.Status)
		assert.Equal(t, "user", account.Role)
		assert.Equal(t, int64(0), account.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate username", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("Aung Aung", "09777000111", "hashed-password", "hashed-pin",
				"12/ABCDE(N)123456", "pending", "user").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		_, err := service.Create(context.Background(), params)
		assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountService_Lookups(t *testing.T) {
	service, mock, closeDB := newAccountService(t)
	defer closeDB()

	cols := []string{"id", "full_name", "username", "password", "security_pin",
		"nrc_number", "balance", "status", "role", "created_at", "last_login"}

	t.Run("by id", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(1, "Admin", "09111222333", "x", "y", "", 5000000, "active", "admin", time.Now(), nil))

		account, err := service.GetByID(context.Background(), 1)
		assert.NoError(t, err)
		assert.Equal(t, "admin", account.Role)
		assert.Equal(t, int64(5000000), account.Balance)
		assert.Nil(t, account.LastLogin)
	})

	t.Run("by username miss", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
			WithArgs("09000000000").
			WillReturnError(sql.ErrNoRows)

		_, err := service.GetByUsername(context.Background(), "09000000000")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestAccountService_SearchUser(t *testing.T) {
	service, mock, closeDB := newAccountService(t)
	defer closeDB()

	cols := []string{"id", "full_name", "username", "password", "security_pin",
		"nrc_number", "balance", "status", "role", "created_at", "last_login"}

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
			WithArgs("09123456789").
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(2, "Min Thar", "09123456789", "secret-hash", "pin-hash", "", 1200000, "active", "user", time.Now(), nil))

		r := httptest.NewRequest("GET", "/api/users/search?phone=09123456789", nil)
		w := httptest.NewRecorder()

		service.SearchUser(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Min Thar")
		// The hashes never serialize.
		assert.NotContains(t, w.Body.String(), "secret-hash")
		assert.NotContains(t, w.Body.String(), "pin-hash")
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
			WithArgs("09000000000").
			WillReturnError(sql.ErrNoRows)

		r := httptest.NewRequest("GET", "/api/users/search?phone=09000000000", nil)
		w := httptest.NewRecorder()

		service.SearchUser(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "not_found")
	})

	t.Run("missing phone", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/users/search", nil)
		w := httptest.NewRecorder()

		service.SearchUser(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAccountService_ListUsers(t *testing.T) {
	service, mock, closeDB := newAccountService(t)
	defer closeDB()

	cols := []string{"id", "full_name", "username", "password", "security_pin",
		"nrc_number", "balance", "status", "role", "created_at", "last_login"}

	mock.ExpectQuery(`SELECT (.+) FROM users ORDER BY id`).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "Admin", "09111222333", "x", "y", "", 5000000, "active", "admin", time.Now(), nil).
			AddRow(2, "Min Thar", "09123456789", "x", "y", "", 1200000, "active", "user", time.Now(), nil))

	r := httptest.NewRequest("GET", "/api/admin/users", nil)
	w := httptest.NewRecorder()

	service.ListUsers(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Min Thar")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_GetNewUsers(t *testing.T) {
	service, mock, closeDB := newAccountService(t)
	defer closeDB()

	cols := []string{"id", "full_name", "username", "password", "security_pin",
		"nrc_number", "balance", "status", "role", "created_at", "last_login"}

	mock.ExpectQuery(`SELECT (.+) FROM users ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(4, "Newest", "09444", "x", "y", "", 0, "pending", "user", time.Now(), nil).
			AddRow(3, "Older", "09333", "x", "y", "", 0, "active", "user", time.Now().Add(-time.Hour), nil))

	r := httptest.NewRequest("GET", "/api/admin/new-users", nil)
	w := httptest.NewRecorder()

	service.GetNewUsers(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Newest")
	assert.NoError(t, mock.ExpectationsWereMet())
}
