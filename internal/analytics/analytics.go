// Package analytics computes the alert summary shown on the analytics page
// and returned by the analytics API.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/storage"
)

// Days is the length of the daily run series.
const Days = 14

// AlertLister lists every alert.
type AlertLister interface {
	List(ctx context.Context) ([]*models.Alert, error)
}

// StatsSource aggregates runs per UTC day.
type StatsSource interface {
	DailyStats(ctx context.Context, since time.Time) ([]storage.DailyStat, error)
}

// Summary is the aggregate view over all alerts.
type Summary struct {
	TotalAlerts  int                        `json:"total_alerts"`
	ActiveAlerts int                        `json:"active_alerts"`
	Runs         int                        `json:"runs"`
	Failures     int                        `json:"failures"`
	Triggers     int                        `json:"triggers"`
	TotalCost    float64                    `json:"total_cost"`
	SuccessRate  float64                    `json:"success_rate"`
	ByStatus     map[models.AlertStatus]int `json:"by_status"`
	Daily        []storage.DailyStat        `json:"daily"`
	Source       string                     `json:"source"`
	GeneratedAt  time.Time                  `json:"generated_at"`
}

// Source names a StatsSource for the summary.
type Source struct {
	Name  string
	Stats StatsSource
}

// Service builds summaries. The daily series comes from the primary source
// and falls back to the secondary one when the primary fails.
type Service struct {
	alerts   AlertLister
	primary  Source
	fallback *Source
}

// NewService creates a summary service.
func NewService(alerts AlertLister, primary Source) *Service {
	return &Service{alerts: alerts, primary: primary}
}

// WithFallback sets the source used when the primary one errors.
func (s *Service) WithFallback(fallback Source) *Service {
	s.fallback = &fallback
	return s
}

// Summary loads alerts and daily stats concurrently and folds them together.
func (s *Service) Summary(ctx context.Context, now time.Time) (*Summary, error) {
	since := dayStart(now).AddDate(0, 0, -(Days - 1))

	var alerts []*models.Alert
	var daily []storage.DailyStat
	source := s.primary.Name

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		alerts, err = s.alerts.List(gctx)
		if err != nil {
			return fmt.Errorf("list alerts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		daily, err = s.primary.Stats.DailyStats(gctx, since)
		if err == nil {
			return nil
		}
		if s.fallback == nil {
			return fmt.Errorf("daily stats from %s: %w", s.primary.Name, err)
		}
		log.Printf("analytics %s error, using %s: %v", s.primary.Name, s.fallback.Name, err)
		source = s.fallback.Name
		daily, err = s.fallback.Stats.DailyStats(gctx, since)
		if err != nil {
			return fmt.Errorf("daily stats from %s: %w", s.fallback.Name, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sum := Build(alerts, daily, since)
	sum.Source = source
	sum.GeneratedAt = now.UTC()
	return sum, nil
}

// Build folds alert counters into a summary and pads the daily series to
// Days entries starting at since.
func Build(alerts []*models.Alert, daily []storage.DailyStat, since time.Time) *Summary {
	sum := &Summary{
		ByStatus: make(map[models.AlertStatus]int, len(models.AlertStatuses)),
	}
	for _, st := range models.AlertStatuses {
		sum.ByStatus[st] = 0
	}
	for _, a := range alerts {
		sum.TotalAlerts++
		if a.Active {
			sum.ActiveAlerts++
		}
		sum.Runs += a.RunCount
		sum.Failures += a.FailureCount
		sum.Triggers += a.TriggerCount
		sum.TotalCost += a.Cost
		if a.Status != "" {
			sum.ByStatus[a.Status]++
		}
	}
	if sum.Runs > 0 {
		sum.SuccessRate = float64(sum.Runs-sum.Failures) / float64(sum.Runs) * 100
	}
	sum.Daily = padDays(daily, dayStart(since))
	return sum
}

func padDays(stats []storage.DailyStat, start time.Time) []storage.DailyStat {
	byDay := make(map[string]storage.DailyStat, len(stats))
	for _, st := range stats {
		byDay[dayStart(st.Day).Format(time.DateOnly)] = st
	}
	out := make([]storage.DailyStat, Days)
	for i := range out {
		day := start.AddDate(0, 0, i)
		st, ok := byDay[day.Format(time.DateOnly)]
		if !ok {
			st = storage.DailyStat{}
		}
		st.Day = day
		out[i] = st
	}
	return out
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
