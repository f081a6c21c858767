package services

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/opperpay/backend/internal/middleware"
	"github.com/stretchr/testify/assert"
)

func newAuthService(t *testing.T) (*AuthService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	redisClient, _ := redismock.NewClientMock()
	accounts := NewAccountService(db, NewStatsService(db))
	return NewAuthService(db, redisClient, accounts), mock, func() { db.Close() }
}

var accountCols = []string{"id", "full_name", "username", "password", "security_pin",
	"nrc_number", "balance", "status", "role", "created_at", "last_login"}

func TestAuthService_Register(t *testing.T) {
	service, mock, closeDB := newAuthService(t)
	defer closeDB()

	t.Run("successful registration", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("Aung Aung", "09777000111", sqlmock.AnyArg(), sqlmock.AnyArg(),
				"7/PAKHANA(N)998877", "pending", "user").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, time.Now()))
		mock.ExpectExec(`UPDATE system_stats`).
			WithArgs("pending").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		body := `{"fullName":"Aung Aung","phone":"09777000111","nrcNumber":"7/PAKHANA(N)998877","password":"secret123","securityPin":"1234"}`
		r := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "Aung Aung")
		assert.Contains(t, w.Body.String(), `"status":"pending"`)
		// Credentials never appear in the response.
		assert.NotContains(t, w.Body.String(), "secret123")
		assert.NotContains(t, w.Body.String(), "1234")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate phone does not grow the store", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(sqlmockUniqueViolation())
		mock.ExpectRollback()

		body := `{"fullName":"Aung Aung","phone":"09777000111","nrcNumber":"12/ABCDE(N)123456","password":"secret123","securityPin":"1234"}`
		r := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "duplicate_username")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pin must be four digits", func(t *testing.T) {
		body := `{"fullName":"Aung Aung","phone":"09777000111","nrcNumber":"12/ABCDE(N)123456","password":"secret123","securityPin":"12345"}`
		r := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "validation_error")
	})

	t.Run("invalid body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader("not json"))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	service, mock, closeDB := newAuthService(t)
	defer closeDB()

	password := mustHash(t, "secret123")

	t.Run("successful login", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
			WithArgs("09123456789").
			WillReturnRows(sqlmock.NewRows(accountCols).
				AddRow(2, "Min Thar", "09123456789", password, "pin", "", 1200000, "active", "user", time.Now(), nil))
		mock.ExpectExec(`UPDATE users SET last_login = NOW\(\)`).
			WithArgs(2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		body := `{"phone":"09123456789","password":"secret123"}`
		r := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"token"`)
		assert.Contains(t, w.Body.String(), "Min Thar")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
			WithArgs("09123456789").
			WillReturnRows(sqlmock.NewRows(accountCols).
				AddRow(2, "Min Thar", "09123456789", password, "pin", "", 1200000, "active", "user", time.Now(), nil))

		body := `{"phone":"09123456789","password":"wrong-pass"}`
		r := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "unauthenticated")
	})

	t.Run("pending account rejected", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
			WithArgs("09123456789").
			WillReturnRows(sqlmock.NewRows(accountCols).
				AddRow(2, "Min Thar", "09123456789", password, "pin", "", 0, "pending", "user", time.Now(), nil))

		body := `{"phone":"09123456789","password":"secret123"}`
		r := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown phone", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
			WithArgs("09000000000").
			WillReturnError(sql.ErrNoRows)

		body := `{"phone":"09000000000","password":"secret123"}`
		r := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthService_Me(t *testing.T) {
	service, mock, closeDB := newAuthService(t)
	defer closeDB()

	t.Run("returns the subject's safe record", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows(accountCols).
				AddRow(2, "Min Thar", "09123456789", "hash", "pin", "", 1200000, "active", "user", time.Now(), nil))

		r := httptest.NewRequest("GET", "/api/auth/me", nil)
		r = r.WithContext(middleware.ContextWithUser(r.Context(), 2, "user"))
		w := httptest.NewRecorder()

		service.Me(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Min Thar")
	})

	t.Run("no subject", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/auth/me", nil)
		w := httptest.NewRecorder()

		service.Me(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestVerifySecret(t *testing.T) {
	hash := mustHash(t, "4321")

	assert.True(t, verifySecret("4321", hash))
	assert.False(t, verifySecret("1234", hash))
	assert.False(t, verifySecret("4321", "malformed"))

	// Two hashes of the same secret differ (random salt) but both verify.
	other := mustHash(t, "4321")
	assert.NotEqual(t, hash, other)
	assert.True(t, verifySecret("4321", other))
}
