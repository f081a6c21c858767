package services

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/opperpay/backend/internal/domain"
	"github.com/opperpay/backend/internal/middleware"
	"github.com/opperpay/backend/internal/models"
	"github.com/skip2/go-qrcode"
)

const qrTokenTTL = 5 * time.Minute

// QRService issues short-lived receive-money codes. The token lives in
// redis; the QR image encodes only the token, never account data.
type QRService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewQRService(db *sql.DB, redisClient *redis.Client) *QRService {
	return &QRService{db: db, redis: redisClient}
}

type qrPayload struct {
	UserID    int   `json:"userId"`
	Timestamp int64 `json:"timestamp"`
}

// GenerateReceiveQR serves GET /api/qr/receive for the authenticated
// subject.
func (s *QRService) GenerateReceiveQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendDomainError(w, domain.ErrUnauthenticated)
		return
	}

	if s.redis == nil {
		SendDomainError(w, domain.ErrInternal)
		return
	}

	token := uuid.NewString()
	payload, err := json.Marshal(qrPayload{UserID: userID, Timestamp: time.Now().Unix()})
	if err != nil {
		SendDomainError(w, err)
		return
	}

	key := fmt.Sprintf("qr:receive:%s", token)
	if err := s.redis.Set(r.Context(), key, payload, qrTokenTTL).Err(); err != nil {
		log.Printf("[QR] Failed to store receive token for user %d: %v", userID, err)
		SendDomainError(w, err)
		return
	}

	png, err := qrcode.Encode("opperpay://receive/"+token, qrcode.Medium, 256)
	if err != nil {
		log.Printf("[QR] Encoding failed for user %d: %v", userID, err)
		SendDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"code":      token,
		"qrImage":   base64.StdEncoding.EncodeToString(png),
		"expiresIn": int(qrTokenTTL.Seconds()),
	})
}

// ResolveQR serves POST /api/qr/resolve: exchanges a scanned token for
// the recipient's safe record. Tokens are single-use.
func (s *QRService) ResolveQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Code == "" {
		SendErrorResponse(w, domain.ErrMissingFields.Message, domain.KindValidation, http.StatusBadRequest, nil)
		return
	}

	if s.redis == nil {
		SendDomainError(w, domain.ErrInternal)
		return
	}

	key := fmt.Sprintf("qr:receive:%s", req.Code)
	data, err := s.redis.Get(r.Context(), key).Bytes()
	if err == redis.Nil {
		SendDomainError(w, domain.ErrQRInvalid)
		return
	}
	if err != nil {
		SendDomainError(w, err)
		return
	}

	var payload qrPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		SendDomainError(w, err)
		return
	}

	var rec models.Recipient
	err = s.db.QueryRowContext(r.Context(), `SELECT id, full_name, username FROM users WHERE id = $1`,
		payload.UserID).Scan(&rec.ID, &rec.Name, &rec.Phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			SendDomainError(w, domain.ErrUserNotFound)
			return
		}
		SendDomainError(w, err)
		return
	}

	s.redis.Del(r.Context(), key)

	respondJSON(w, http.StatusOK, rec)
}
