package models

import (
	"testing"
	"time"
)

func TestNewAlert_Status(t *testing.T) {
	if a := NewAlert("a", "r1", true); a.Status != AlertStatusPending {
		t.Errorf("active alert status = %s, want pending", a.Status)
	}
	if a := NewAlert("a", "r1", false); a.Status != AlertStatusInactive {
		t.Errorf("inactive alert status = %s, want inactive", a.Status)
	}
}

func TestAlert_SetActive(t *testing.T) {
	a := NewAlert("a", "r1", true)
	a.Status = AlertStatusWarning

	a.SetActive(false)
	if a.Active || a.Status != AlertStatusInactive {
		t.Fatalf("after deactivate: active=%v status=%s", a.Active, a.Status)
	}

	a.SetActive(true)
	if !a.Active || a.Status != AlertStatusPending {
		t.Fatalf("after activate: active=%v status=%s", a.Active, a.Status)
	}
}

func TestAlert_Due(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewAlert("a", "r1", true)
	a.Frequency = time.Hour

	if !a.Due(now) {
		t.Error("never-run alert should be due")
	}

	a.LastRunAt = now.Add(-30 * time.Minute)
	if a.Due(now) {
		t.Error("alert run 30m ago with 1h frequency should not be due")
	}

	a.LastRunAt = now.Add(-time.Hour)
	if !a.Due(now) {
		t.Error("alert run exactly one frequency ago should be due")
	}

	a.SetActive(false)
	if a.Due(now) {
		t.Error("inactive alert should never be due")
	}
}

func TestAlert_RecordRun(t *testing.T) {
	now := time.Now()
	a := NewAlert("a", "r1", true)

	a.RecordRun(AlertStatusSuccess, 0.5, now)
	a.RecordRun(AlertStatusWarning, 0.5, now)
	a.RecordRun(AlertStatusFailed, 0.5, now)
	a.RecordRun(AlertStatusSuccess, 0.5, now)

	if a.RunCount != 4 {
		t.Errorf("RunCount = %d, want 4", a.RunCount)
	}
	if a.TriggerCount != 1 {
		t.Errorf("TriggerCount = %d, want 1", a.TriggerCount)
	}
	if a.FailureCount != 1 {
		t.Errorf("FailureCount = %d, want 1", a.FailureCount)
	}
	if a.SuccessRate != 75 {
		t.Errorf("SuccessRate = %v, want 75", a.SuccessRate)
	}
	if a.Cost != 2 {
		t.Errorf("Cost = %v, want 2", a.Cost)
	}
	if a.Status != AlertStatusSuccess {
		t.Errorf("Status = %s, want success", a.Status)
	}
}

func TestRecipients_ForSet(t *testing.T) {
	var r Recipients
	r.Set(ChannelWhatsApp, []string{"+15550001111"})
	r.Set(ChannelEmail, []string{"a@example.com", "b@example.com"})

	if got := r.For(ChannelWhatsApp); len(got) != 1 {
		t.Errorf("whatsapp recipients = %v", got)
	}
	if r.Count() != 3 {
		t.Errorf("Count = %d, want 3", r.Count())
	}
	if r.For(Channel("pager")) != nil {
		t.Error("unknown channel should have no recipients")
	}
}
