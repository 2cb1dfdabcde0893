package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

type sqliteAlertHistoryRepo struct {
	db *sql.DB
}

const historyColumns = `id, alert_id, alert_name, status, triggered, value, message,
	error, duration_ns, cost, started_at, created_at`

func (r *sqliteAlertHistoryRepo) Create(ctx context.Context, h *models.AlertHistory) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO alert_history (` + historyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		h.ID, h.AlertID, h.AlertName, h.Status, boolToInt(h.Triggered), h.Value, h.Message,
		h.Error, h.Duration.Nanoseconds(), h.Cost, h.StartedAt.UTC(), h.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("create alert history: %w", err)
	}
	return nil
}

// List returns history rows matching filter, newest first, plus the total
// number of matching rows.
func (r *sqliteAlertHistoryRepo) List(ctx context.Context, filter models.HistoryFilter, limit, offset int) ([]*models.AlertHistory, int64, error) {
	where, args := historyWhere(filter)

	var total int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_history"+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count alert history: %w", err)
	}

	query := `SELECT ` + historyColumns + ` FROM alert_history` + where +
		` ORDER BY started_at DESC, created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query alert history: %w", err)
	}
	defer rows.Close()

	histories, err := scanHistories(rows)
	if err != nil {
		return nil, 0, err
	}
	return histories, total, rows.Err()
}

// DailyStats buckets runs started at or after since by UTC day. Days without
// runs are omitted.
func (r *sqliteAlertHistoryRepo) DailyStats(ctx context.Context, since time.Time) ([]DailyStat, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT status, triggered, cost, started_at FROM alert_history WHERE started_at >= ? ORDER BY started_at",
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var status models.AlertStatus
		var triggered int
		var cost float64
		var startedAt time.Time
		if err := rows.Scan(&status, &triggered, &cost, &startedAt); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		startedAt = startedAt.UTC()
		day := time.Date(startedAt.Year(), startedAt.Month(), startedAt.Day(), 0, 0, 0, 0, time.UTC)
		if len(stats) == 0 || !stats[len(stats)-1].Day.Equal(day) {
			stats = append(stats, DailyStat{Day: day})
		}
		s := &stats[len(stats)-1]
		s.Runs++
		s.Cost += cost
		if status == models.AlertStatusFailed {
			s.Failures++
		}
		if triggered != 0 {
			s.Triggers++
		}
	}
	return stats, rows.Err()
}

func (r *sqliteAlertHistoryRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alert_history WHERE started_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete alert history: %w", err)
	}
	return result.RowsAffected()
}

func historyWhere(filter models.HistoryFilter) (string, []any) {
	var conditions []string
	var args []any
	if filter.AlertID != "" {
		conditions = append(conditions, "alert_id = ?")
		args = append(args, filter.AlertID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanHistories(rows *sql.Rows) ([]*models.AlertHistory, error) {
	var histories []*models.AlertHistory
	for rows.Next() {
		h := &models.AlertHistory{}
		var triggered int
		var durationNs int64
		err := rows.Scan(&h.ID, &h.AlertID, &h.AlertName, &h.Status, &triggered, &h.Value, &h.Message,
			&h.Error, &durationNs, &h.Cost, &h.StartedAt, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan alert history: %w", err)
		}
		h.Triggered = triggered != 0
		h.Duration = time.Duration(durationNs)
		histories = append(histories, h)
	}
	return histories, nil
}
