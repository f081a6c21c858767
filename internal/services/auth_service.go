package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/opperpay/backend/internal/domain"
	"github.com/opperpay/backend/internal/middleware"
	"github.com/opperpay/backend/internal/models"
	"github.com/spf13/viper"
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	accounts  *AccountService
	validator *ValidationHelper
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	FullName    string `json:"fullName" validate:"required,min=2" example:"Aung Aung"`
	Phone       string `json:"phone" validate:"required,min=7" example:"09123456789"`
	NRCNumber   string `json:"nrcNumber" validate:"required" example:"12/ABCDE(N)123456"`
	Password    string `json:"password" validate:"required,min=6" example:"password123"`
	SecurityPin string `json:"securityPin" validate:"required,len=4,numeric" example:"1234"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Phone    string `json:"phone" validate:"required" example:"09123456789"`
	Password string `json:"password" validate:"required,min=6" example:"password123"`
}

// AuthResponse carries the issued token and the safe user record.
type AuthResponse struct {
	Token string          `json:"token"`
	User  *models.Account `json:"user"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, accounts *AccountService) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		accounts:  accounts,
		validator: NewValidationHelper(),
	}
}

// decodeJSON enforces the request-body discipline shared by every
// mutating endpoint: size cap, unknown fields rejected, single object.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must only contain a single JSON object")
	}
	return nil
}

// Register handles POST /api/auth/register. New accounts start as
// pending until approved.
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		log.Printf("[AUTH] Registration failed - invalid request: %v", err)
		SendErrorResponse(w, domain.ErrMissingFields.Message, domain.KindValidation, http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[AUTH] Registration validation failed: %v", err)
		SendErrorResponse(w, domain.ErrMissingFields.Message, domain.KindValidation, http.StatusBadRequest, err)
		return
	}

	log.Printf("[AUTH] Registration request for phone: %s", req.Phone)

	hashedPassword, err := hashSecret(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Phone, err)
		SendDomainError(w, err)
		return
	}
	hashedPin, err := hashSecret(req.SecurityPin)
	if err != nil {
		log.Printf("[AUTH] PIN hashing failed for %s: %v", req.Phone, err)
		SendDomainError(w, err)
		return
	}

	account, err := s.accounts.Create(r.Context(), CreateAccountParams{
		FullName:    req.FullName,
		Username:    req.Phone,
		Password:    hashedPassword,
		SecurityPin: hashedPin,
		NRCNumber:   req.NRCNumber,
		Status:      models.StatusPending,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			log.Printf("[AUTH] Duplicate phone on registration: %s", req.Phone)
			SendDomainError(w, domain.ErrDuplicateUsername)
			return
		}
		log.Printf("[AUTH] Account creation failed for %s: %v", req.Phone, err)
		SendDomainError(w, err)
		return
	}

	log.Printf("[AUTH] User created successfully - ID: %d, Phone: %s", account.ID, req.Phone)
	respondJSON(w, http.StatusCreated, account)
}

// Login handles POST /api/auth/login.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		log.Printf("[AUTH] Login failed - invalid request: %v", err)
		SendErrorResponse(w, domain.ErrMissingFields.Message, domain.KindValidation, http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[AUTH] Login validation failed: %v", err)
		SendErrorResponse(w, domain.ErrMissingFields.Message, domain.KindValidation, http.StatusBadRequest, err)
		return
	}

	account, err := s.accounts.GetByUsername(r.Context(), req.Phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[AUTH] User not found for phone: %s", req.Phone)
			SendDomainError(w, domain.ErrAccountNotFound)
			return
		}
		SendDomainError(w, err)
		return
	}

	if !verifySecret(req.Password, account.Password) {
		log.Printf("[AUTH] Invalid password for user: %s", req.Phone)
		SendDomainError(w, domain.ErrInvalidCredentials)
		return
	}

	if account.Status != models.StatusActive {
		log.Printf("[AUTH] Inactive account login rejected: %s (status %s)", req.Phone, account.Status)
		SendErrorResponse(w, domain.ErrAccountNotActive.Message, domain.ErrAccountNotActive.Kind, http.StatusForbidden, nil)
		return
	}

	if err := s.accounts.UpdateLastLogin(r.Context(), account.ID); err != nil {
		log.Printf("[AUTH] Failed to stamp last login for user %d: %v", account.ID, err)
	}

	token, err := generateJWT(account.ID, account.Role)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %d: %v", account.ID, err)
		SendDomainError(w, err)
		return
	}

	log.Printf("[AUTH] Login successful for user %d", account.ID)
	respondJSON(w, http.StatusOK, AuthResponse{Token: token, User: account})
}

// Logout handles POST /api/auth/logout and blacklists the token until
// it would have expired anyway.
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:] // Remove "Bearer " prefix

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("blacklist:%s", token)
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "အောင်မြင်စွာ ထွက်ခွာပြီးပါပြီ"})
}

// Me handles GET /api/auth/me for the authenticated subject.
func (s *AuthService) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendDomainError(w, domain.ErrUnauthenticated)
		return
	}

	account, err := s.accounts.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			SendDomainError(w, domain.ErrUnauthenticated)
			return
		}
		log.Printf("[AUTH] Failed to fetch account for user %d: %v", userID, err)
		SendDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, account)
}

func generateJWT(userID int, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}
