package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

type sqliteAlertRepo struct {
	db *sql.DB
}

const alertColumns = `id, name, description, report_id, report_name, workspace_id,
	datasets_json, condition_expr, frequency_ns, active, status,
	trigger_count, failure_count, run_count, cost, success_rate,
	recipients_json, created_by, last_run_at, created_at, updated_at`

func (r *sqliteAlertRepo) Create(ctx context.Context, alert *models.Alert) error {
	datasets, recipients, err := marshalAlertDocs(alert)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		alert.ID, alert.Name, alert.Description, alert.ReportID, alert.ReportName, alert.WorkspaceID,
		datasets, alert.Condition, alert.Frequency.Nanoseconds(), boolToInt(alert.Active), alert.Status,
		alert.TriggerCount, alert.FailureCount, alert.RunCount, alert.Cost, alert.SuccessRate,
		recipients, alert.CreatedBy, nullTime(alert.LastRunAt), alert.CreatedAt.UTC(), alert.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *sqliteAlertRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`
	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

// Update writes the editable fields of alert. Run counters are left untouched.
func (r *sqliteAlertRepo) Update(ctx context.Context, alert *models.Alert) error {
	datasets, recipients, err := marshalAlertDocs(alert)
	if err != nil {
		return err
	}

	query := `
		UPDATE alerts SET name = ?, description = ?, report_id = ?, report_name = ?,
			workspace_id = ?, datasets_json = ?, condition_expr = ?, frequency_ns = ?,
			active = ?, status = ?, recipients_json = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		alert.Name, alert.Description, alert.ReportID, alert.ReportName,
		alert.WorkspaceID, datasets, alert.Condition, alert.Frequency.Nanoseconds(),
		boolToInt(alert.Active), alert.Status, recipients, alert.UpdatedAt.UTC(),
		alert.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", alert.ID)
	}
	return nil
}

func (r *sqliteAlertRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}
	return nil
}

func (r *sqliteAlertRepo) List(ctx context.Context) ([]*models.Alert, error) {
	return r.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY created_at DESC`)
}

func (r *sqliteAlertRepo) ListActive(ctx context.Context) ([]*models.Alert, error) {
	return r.queryAlerts(ctx, `SELECT `+alertColumns+` FROM alerts WHERE active = 1 ORDER BY created_at`)
}

// SetActive flips the active flag and moves the status the same way
// models.Alert.SetActive does.
func (r *sqliteAlertRepo) SetActive(ctx context.Context, id string, active bool) error {
	query := `
		UPDATE alerts SET active = ?,
			status = CASE
				WHEN ? = 0 THEN 'inactive'
				WHEN status IN ('', 'inactive') THEN 'pending'
				ELSE status
			END,
			updated_at = ?
		WHERE id = ?
	`
	a := boolToInt(active)
	result, err := r.db.ExecContext(ctx, query, a, a, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set alert active: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}
	return nil
}

// RecordRun keeps an alert paused during the run inactive.
func (r *sqliteAlertRepo) RecordRun(ctx context.Context, alert *models.Alert) error {
	query := `
		UPDATE alerts SET status = CASE WHEN active = 0 THEN 'inactive' ELSE ? END, trigger_count = ?, failure_count = ?, run_count = ?,
			cost = ?, success_rate = ?, last_run_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		alert.Status, alert.TriggerCount, alert.FailureCount, alert.RunCount,
		alert.Cost, alert.SuccessRate, nullTime(alert.LastRunAt), alert.UpdatedAt.UTC(),
		alert.ID,
	)
	if err != nil {
		return fmt.Errorf("record alert run: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", alert.ID)
	}
	return nil
}

func (r *sqliteAlertRepo) queryAlerts(ctx context.Context, query string, args ...any) ([]*models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	alert := &models.Alert{}
	var datasets, recipients string
	var frequencyNs int64
	var active int
	var lastRun sql.NullTime

	err := row.Scan(
		&alert.ID, &alert.Name, &alert.Description, &alert.ReportID, &alert.ReportName, &alert.WorkspaceID,
		&datasets, &alert.Condition, &frequencyNs, &active, &alert.Status,
		&alert.TriggerCount, &alert.FailureCount, &alert.RunCount, &alert.Cost, &alert.SuccessRate,
		&recipients, &alert.CreatedBy, &lastRun, &alert.CreatedAt, &alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Frequency = time.Duration(frequencyNs)
	alert.Active = active != 0
	alert.LastRunAt = timeOrZero(lastRun)

	if err := json.Unmarshal([]byte(datasets), &alert.Datasets); err != nil {
		return nil, fmt.Errorf("unmarshal datasets: %w", err)
	}
	if err := json.Unmarshal([]byte(recipients), &alert.Recipients); err != nil {
		return nil, fmt.Errorf("unmarshal recipients: %w", err)
	}
	if alert.Datasets == nil {
		alert.Datasets = []models.DatasetSelection{}
	}
	return alert, nil
}

func marshalAlertDocs(alert *models.Alert) (string, string, error) {
	sel := alert.Datasets
	if sel == nil {
		sel = []models.DatasetSelection{}
	}
	datasets, err := json.Marshal(sel)
	if err != nil {
		return "", "", fmt.Errorf("marshal datasets: %w", err)
	}
	recipients, err := json.Marshal(alert.Recipients)
	if err != nil {
		return "", "", fmt.Errorf("marshal recipients: %w", err)
	}
	return string(datasets), string(recipients), nil
}
