package models

import (
	"time"
)

// AlertStatus is the outcome of an alert's most recent evaluation.
type AlertStatus string

const (
	AlertStatusSuccess  AlertStatus = "success"
	AlertStatusFailed   AlertStatus = "failed"
	AlertStatusWarning  AlertStatus = "warning"
	AlertStatusPending  AlertStatus = "pending"
	AlertStatusInactive AlertStatus = "inactive"
)

// AlertStatuses lists every status in display order.
var AlertStatuses = []AlertStatus{
	AlertStatusSuccess,
	AlertStatusWarning,
	AlertStatusFailed,
	AlertStatusPending,
	AlertStatusInactive,
}

// ParseAlertStatus converts a string to AlertStatus.
func ParseAlertStatus(s string) (AlertStatus, bool) {
	for _, st := range AlertStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Channel is a notification channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTeams    Channel = "teams"
	ChannelTelegram Channel = "telegram"
)

// Channels lists every supported channel.
var Channels = []Channel{ChannelEmail, ChannelWhatsApp, ChannelTeams, ChannelTelegram}

// Recipients holds notification targets keyed by channel.
type Recipients struct {
	Email    []string `json:"email"`
	WhatsApp []string `json:"whatsapp"`
	Teams    []string `json:"teams"`
	Telegram []string `json:"telegram,omitempty"`
}

// For returns the recipients of one channel.
func (r Recipients) For(ch Channel) []string {
	switch ch {
	case ChannelEmail:
		return r.Email
	case ChannelWhatsApp:
		return r.WhatsApp
	case ChannelTeams:
		return r.Teams
	case ChannelTelegram:
		return r.Telegram
	default:
		return nil
	}
}

// Set replaces the recipients of one channel.
func (r *Recipients) Set(ch Channel, to []string) {
	switch ch {
	case ChannelEmail:
		r.Email = to
	case ChannelWhatsApp:
		r.WhatsApp = to
	case ChannelTeams:
		r.Teams = to
	case ChannelTelegram:
		r.Telegram = to
	}
}

// Count returns the number of recipients over all channels.
func (r Recipients) Count() int {
	return len(r.Email) + len(r.WhatsApp) + len(r.Teams) + len(r.Telegram)
}

// DatasetSelection is one dataset with the KPI and dimensions an alert watches.
type DatasetSelection struct {
	DatasetID  string   `json:"dataset_id"`
	KPI        string   `json:"kpi"`
	Dimensions []string `json:"dimensions"`
}

// Complete reports whether the selection has a KPI and at least one dimension.
func (d DatasetSelection) Complete() bool {
	return d.KPI != "" && len(d.Dimensions) > 0
}

// DefaultFrequency is used when an alert does not specify one.
const DefaultFrequency = time.Hour

// Alert is a rule that watches KPIs of a Power BI report and notifies recipients.
type Alert struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	ReportID     string             `json:"report_id"`
	ReportName   string             `json:"report_name,omitempty"`
	WorkspaceID  string             `json:"workspace_id,omitempty"`
	Datasets     []DatasetSelection `json:"datasets"`
	Condition    string             `json:"condition,omitempty"`
	Frequency    time.Duration      `json:"frequency"`
	Active       bool               `json:"active"`
	Status       AlertStatus        `json:"status"`
	TriggerCount int                `json:"trigger_count"`
	FailureCount int                `json:"failure_count"`
	RunCount     int                `json:"run_count"`
	Cost         float64            `json:"cost"`
	SuccessRate  float64            `json:"success_rate"`
	Recipients   Recipients         `json:"recipients"`
	CreatedBy    string             `json:"created_by,omitempty"`
	LastRunAt    time.Time          `json:"last_run_at"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// NewAlert creates an Alert with initialized timestamps and status.
func NewAlert(name, reportID string, active bool) *Alert {
	now := time.Now()
	a := &Alert{
		Name:       name,
		ReportID:   reportID,
		Active:     active,
		Frequency:  DefaultFrequency,
		Datasets:   []DatasetSelection{},
		Recipients: Recipients{Email: []string{}, WhatsApp: []string{}, Teams: []string{}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	a.SetActive(active)
	return a
}

// SetActive flips the active flag and moves the status accordingly.
func (a *Alert) SetActive(active bool) {
	a.Active = active
	if !active {
		a.Status = AlertStatusInactive
		return
	}
	if a.Status == "" || a.Status == AlertStatusInactive {
		a.Status = AlertStatusPending
	}
}

// Due reports whether the alert should run at now.
func (a *Alert) Due(now time.Time) bool {
	if !a.Active {
		return false
	}
	if a.LastRunAt.IsZero() {
		return true
	}
	freq := a.Frequency
	if freq <= 0 {
		freq = DefaultFrequency
	}
	return !now.Before(a.LastRunAt.Add(freq))
}

// RecordRun folds the outcome of one execution into the counters.
func (a *Alert) RecordRun(status AlertStatus, cost float64, at time.Time) {
	a.RunCount++
	switch status {
	case AlertStatusFailed:
		a.FailureCount++
	case AlertStatusWarning:
		a.TriggerCount++
	}
	a.Cost += cost
	a.SuccessRate = float64(a.RunCount-a.FailureCount) / float64(a.RunCount) * 100
	a.Status = status
	a.LastRunAt = at
	a.UpdatedAt = at
}
