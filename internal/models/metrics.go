package models

import "time"

// SystemMetrics is a lightweight snapshot of process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	NotificationsSent        uint64    `json:"notificationsSent"`
	NotificationsSuppressed  uint64    `json:"notificationsSuppressed"`
	NotificationsFailed      uint64    `json:"notificationsFailed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
