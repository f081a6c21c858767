package services

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/opperpay/backend/internal/models"
)

// StatsService maintains the system_stats singleton row. ApplyUserCreated
// and ApplyTransaction are the only two mutation entry points; both run
// inside the caller's transaction so the projection can never drift from
// the write that caused it.
type StatsService struct {
	db *sql.DB
}

func NewStatsService(db *sql.DB) *StatsService {
	return &StatsService{db: db}
}

// ApplyUserCreated bumps the user counters for a newly created account.
func (s *StatsService) ApplyUserCreated(tx *sql.Tx, status string) error {
	_, err := tx.Exec(`
		UPDATE system_stats
		SET total_users = total_users + 1,
		    active_users = active_users + CASE WHEN $1 = 'active' THEN 1 ELSE 0 END,
		    pending_users = pending_users + CASE WHEN $1 = 'pending' THEN 1 ELSE 0 END,
		    updated_at = NOW()
		WHERE id = 1`, status)
	return err
}

// ApplyTransaction bumps the transaction counters and volumes for one
// appended ledger entry.
func (s *StatsService) ApplyTransaction(tx *sql.Tx, amount int64) error {
	_, err := tx.Exec(`
		UPDATE system_stats
		SET daily_transactions = daily_transactions + 1,
		    monthly_transactions = monthly_transactions + 1,
		    daily_volume = daily_volume + $1,
		    monthly_volume = monthly_volume + $1,
		    updated_at = NOW()
		WHERE id = 1`, amount)
	return err
}

// Snapshot reads the current aggregate row.
func (s *StatsService) Snapshot(ctx context.Context) (*models.SystemStat, error) {
	var st models.SystemStat
	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_users, active_users, pending_users,
		       daily_transactions, monthly_transactions, daily_volume, monthly_volume,
		       system_load, success_rate, storage_usage, updated_at
		FROM system_stats WHERE id = 1`).Scan(
		&st.ID, &st.TotalUsers, &st.ActiveUsers, &st.PendingUsers,
		&st.DailyTransactions, &st.MonthlyTransactions, &st.DailyVolume, &st.MonthlyVolume,
		&st.SystemLoad, &st.SuccessRate, &st.StorageUsage, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetSystemStats serves GET /api/admin/stats and /api/admin/system-stats.
func (s *StatsService) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Snapshot(r.Context())
	if err != nil {
		log.Printf("[STATS] Failed to read system stats: %v", err)
		SendDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetServiceStatus serves GET /api/admin/service-status.
func (s *StatsService) GetServiceStatus(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, service_name, status, updated_at
		FROM service_status ORDER BY id`)
	if err != nil {
		log.Printf("[STATS] Failed to read service status: %v", err)
		SendDomainError(w, err)
		return
	}
	defer rows.Close()

	services := []models.ServiceStat{}
	for rows.Next() {
		var svc models.ServiceStat
		if err := rows.Scan(&svc.ID, &svc.ServiceName, &svc.Status, &svc.UpdatedAt); err != nil {
			SendDomainError(w, err)
			return
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		SendDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, services)
}
