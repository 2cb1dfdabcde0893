// Package models defines domain models for ReportWatch.
package models

import "time"

// AlertHistory records one execution attempt of an alert.
type AlertHistory struct {
	ID        string        `json:"id"`
	AlertID   string        `json:"alert_id"`
	AlertName string        `json:"alert_name"`
	Status    AlertStatus   `json:"status"`
	Triggered bool          `json:"triggered"`
	Value     float64       `json:"value"`
	Message   string        `json:"message"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Cost      float64       `json:"cost"`
	StartedAt time.Time     `json:"started_at"`
	CreatedAt time.Time     `json:"created_at"`
}

// HistoryFilter narrows a history listing.
type HistoryFilter struct {
	AlertID string
	Status  AlertStatus
	Since   time.Time
}
