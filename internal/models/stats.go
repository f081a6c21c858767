package models

import "time"

// SystemStat is the singleton aggregate row maintained additively by
// the stats service. It is created by migration and only ever updated
// inside the same database transaction as the write that changes it.
type SystemStat struct {
	ID                  int       `json:"id" db:"id"`
	TotalUsers          int       `json:"totalUsers" db:"total_users"`
	ActiveUsers         int       `json:"activeUsers" db:"active_users"`
	PendingUsers        int       `json:"pendingUsers" db:"pending_users"`
	DailyTransactions   int       `json:"dailyTransactions" db:"daily_transactions"`
	MonthlyTransactions int       `json:"monthlyTransactions" db:"monthly_transactions"`
	DailyVolume         int64     `json:"dailyVolume" db:"daily_volume"`
	MonthlyVolume       int64     `json:"monthlyVolume" db:"monthly_volume"`
	SystemLoad          int       `json:"systemLoad" db:"system_load"`
	SuccessRate         int       `json:"successRate" db:"success_rate"`
	StorageUsage        int       `json:"storageUsage" db:"storage_usage"`
	UpdatedAt           time.Time `json:"updatedAt" db:"updated_at"`
}

// ServiceStat reports the availability of one platform service on the
// admin dashboard.
type ServiceStat struct {
	ID          int       `json:"id" db:"id"`
	ServiceName string    `json:"serviceName" db:"service_name"`
	Status      string    `json:"status" db:"status"` // available|maintenance|down
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}
