package alerting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/reportwatch/internal/events"
	"github.com/good-yellow-bee/reportwatch/internal/metrics"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/notifier"
	"github.com/good-yellow-bee/reportwatch/internal/powerbi"
)

var (
	// ErrAlertNotFound is returned by RunAlert for an unknown id.
	ErrAlertNotFound = errors.New("alert not found")
	// ErrAlertInactive is returned by RunAlert for a paused alert.
	ErrAlertInactive = errors.New("alert is inactive")
)

// AlertStore is the alert persistence the runner needs.
type AlertStore interface {
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	ListActive(ctx context.Context) ([]*models.Alert, error)
	RecordRun(ctx context.Context, alert *models.Alert) error
}

// HistoryStore records executions.
type HistoryStore interface {
	Create(ctx context.Context, history *models.AlertHistory) error
}

// Dispatcher delivers notifications for triggered alerts.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *notifier.Message, recipients models.Recipients) error
}

// SettingsSource supplies the admin settings. A numeric costPerQuery there
// overrides RunnerConfig.CostPerQuery.
type SettingsSource interface {
	Settings(ctx context.Context) (models.Settings, error)
}

// RunSink receives finished runs for analytics.
type RunSink interface {
	InsertRuns(ctx context.Context, runs []*models.AlertHistory) error
}

// RunnerConfig configures the runner.
type RunnerConfig struct {
	// Interval between due-alert scans.
	Interval time.Duration
	// Timeout bounds a single alert execution.
	Timeout time.Duration
	// CostPerQuery is charged once per dataset selection per run.
	CostPerQuery float64
	// BaseURL is used to link notifications back to the dashboard.
	BaseURL string
}

// DefaultRunnerConfig returns the default runner configuration.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		CostPerQuery: 0.01,
	}
}

// RunnerDeps are the collaborators of a Runner. Notifier, Events, Sink and
// Settings are optional.
type RunnerDeps struct {
	Alerts   AlertStore
	History  HistoryStore
	Client   powerbi.Client
	Catalog  Catalog
	Notifier Dispatcher
	Events   events.Publisher
	Sink     RunSink
	Settings SettingsSource
}

// RunnerStats counts executions since start.
type RunnerStats struct {
	Runs         atomic.Int64
	Triggers     atomic.Int64
	Failures     atomic.Int64
	NotifyErrors atomic.Int64
}

// Runner executes due alerts on a ticker. Executions are serialized so a
// manual run never interleaves with a scheduled one.
type Runner struct {
	deps RunnerDeps
	cfg  RunnerConfig
	now  func() time.Time

	mu    sync.Mutex
	stats RunnerStats
}

// NewRunner creates a runner. Zero config fields take their defaults.
func NewRunner(deps RunnerDeps, cfg RunnerConfig) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CostPerQuery < 0 {
		cfg.CostPerQuery = 0
	}
	if deps.Events == nil {
		deps.Events = events.Noop{}
	}
	return &Runner{deps: deps, cfg: cfg, now: time.Now}
}

// Stats returns the runner counters.
func (r *Runner) Stats() *RunnerStats {
	return &r.stats
}

// Run scans for due alerts every interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	log.Printf("alert runner started (interval %s)", r.cfg.Interval)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Tick(ctx, r.now()); err != nil && ctx.Err() == nil {
			log.Printf("alert runner tick error: %v", err)
		}
		select {
		case <-ctx.Done():
			log.Printf("alert runner stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick executes every active alert due at now and returns how many ran.
func (r *Runner) Tick(ctx context.Context, now time.Time) (int, error) {
	active, err := r.deps.Alerts.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active alerts: %w", err)
	}

	var due []string
	for _, a := range active {
		if a.Due(now) {
			due = append(due, a.ID)
		}
	}
	metrics.AlertsDue.Set(float64(len(due)))

	ran := 0
	for _, id := range due {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		h, err := r.runByID(ctx, id, func(a *models.Alert) bool { return a.Active && a.Due(now) })
		if err != nil {
			log.Printf("run alert %s error: %v", id, err)
			continue
		}
		if h != nil {
			ran++
		}
	}
	return ran, nil
}

// RunAlert executes one alert immediately regardless of its schedule.
func (r *Runner) RunAlert(ctx context.Context, id string) (*models.AlertHistory, error) {
	var inactive bool
	h, err := r.runByID(ctx, id, func(a *models.Alert) bool {
		inactive = !a.Active
		return a.Active
	})
	if err != nil {
		return nil, err
	}
	if h == nil {
		if inactive {
			return nil, ErrAlertInactive
		}
		return nil, ErrAlertNotFound
	}
	return h, nil
}

// runByID re-reads the alert under the run lock and executes it when
// eligible accepts it. A nil history with a nil error means it was skipped.
func (r *Runner) runByID(ctx context.Context, id string, eligible func(*models.Alert) bool) (*models.AlertHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.deps.Alerts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	if a == nil || !eligible(a) {
		return nil, nil
	}
	return r.execute(ctx, a)
}

func (r *Runner) execute(ctx context.Context, a *models.Alert) (*models.AlertHistory, error) {
	started := r.now()

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	obs, triggered, evalErr := r.evaluate(runCtx, a)
	cancel()

	duration := r.now().Sub(started)
	status := models.AlertStatusSuccess
	switch {
	case evalErr != nil:
		status = models.AlertStatusFailed
	case triggered:
		status = models.AlertStatusWarning
	}
	cost := r.costPerQuery(ctx) * float64(len(a.Datasets))
	primary := obs.Primary()

	h := &models.AlertHistory{
		ID:        uuid.New().String(),
		AlertID:   a.ID,
		AlertName: a.Name,
		Status:    status,
		Triggered: triggered,
		Value:     primary.Value,
		Message:   runMessage(a, primary, triggered, evalErr),
		Duration:  duration,
		Cost:      cost,
		StartedAt: started,
		CreatedAt: r.now(),
	}
	if evalErr != nil {
		h.Error = evalErr.Error()
	}

	a.RecordRun(status, cost, started)
	if err := r.deps.Alerts.RecordRun(ctx, a); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	if err := r.deps.History.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("create history: %w", err)
	}

	r.stats.Runs.Add(1)
	metrics.AlertRunsTotal.WithLabelValues(string(status)).Inc()
	metrics.AlertRunDuration.Observe(duration.Seconds())
	metrics.AlertRunCost.Add(cost)
	switch status {
	case models.AlertStatusFailed:
		r.stats.Failures.Add(1)
	case models.AlertStatusWarning:
		r.stats.Triggers.Add(1)
		r.notify(ctx, a, primary, h)
	}

	if err := r.deps.Events.Publish(ctx, events.SubjectAlertRun, h); err != nil {
		log.Printf("publish run event error: %v", err)
	}
	if r.deps.Sink != nil {
		if err := r.deps.Sink.InsertRuns(ctx, []*models.AlertHistory{h}); err != nil {
			metrics.SinkErrors.Inc()
			log.Printf("analytics sink error: %v", err)
		}
	}
	return h, nil
}

// evaluate resolves every dataset selection and applies the condition.
// An empty condition never triggers.
func (r *Runner) evaluate(ctx context.Context, a *models.Alert) (Observation, bool, error) {
	var obs Observation
	if len(a.Datasets) == 0 {
		return obs, false, fmt.Errorf("alert has no dataset selections")
	}
	if r.deps.Catalog != nil {
		if _, ok := r.deps.Catalog.GetReport(a.ReportID); !ok {
			return obs, false, fmt.Errorf("report %s not found", a.ReportID)
		}
	}

	for _, sel := range a.Datasets {
		v, err := r.deps.Client.QueryKPI(ctx, sel.DatasetID, sel.KPI, sel.Dimensions)
		if err != nil {
			return obs, false, fmt.Errorf("query %s/%s: %w", sel.DatasetID, sel.KPI, err)
		}
		obs.Values = append(obs.Values, KPIValue{
			DatasetID:  sel.DatasetID,
			KPI:        sel.KPI,
			Dimensions: sel.Dimensions,
			Value:      v,
		})
	}

	if a.Condition == "" {
		return obs, false, nil
	}
	cond, err := CompileCondition(a.Condition)
	if err != nil {
		return obs, false, err
	}
	triggered, err := cond.Evaluate(obs)
	if err != nil {
		return obs, false, err
	}
	return obs, triggered, nil
}

func (r *Runner) notify(ctx context.Context, a *models.Alert, primary KPIValue, h *models.AlertHistory) {
	if r.deps.Notifier == nil || a.Recipients.Count() == 0 {
		return
	}
	msg := &notifier.Message{
		AlertID:     a.ID,
		AlertName:   a.Name,
		Description: a.Description,
		ReportName:  a.ReportName,
		Status:      h.Status,
		Condition:   a.Condition,
		KPI:         primary.KPI,
		Value:       primary.Value,
		Text:        h.Message,
		Timestamp:   h.StartedAt,
	}
	if r.cfg.BaseURL != "" {
		msg.URL = r.cfg.BaseURL + "/alerts/" + a.ID
	}
	if err := r.deps.Notifier.Dispatch(ctx, msg, a.Recipients); err != nil {
		r.stats.NotifyErrors.Add(1)
		log.Printf("notify alert %s error: %v", a.ID, err)
	}
}

func runMessage(a *models.Alert, primary KPIValue, triggered bool, err error) string {
	switch {
	case err != nil:
		return fmt.Sprintf("%s failed: %v", a.Name, err)
	case triggered:
		return fmt.Sprintf("%s triggered: %s = %s matches %q", a.Name, primary.KPI, strconv.FormatFloat(primary.Value, 'f', -1, 64), a.Condition)
	case a.Condition == "":
		return fmt.Sprintf("%s checked: %s = %s (no condition)", a.Name, primary.KPI, strconv.FormatFloat(primary.Value, 'f', -1, 64))
	default:
		return fmt.Sprintf("%s checked: %s = %s", a.Name, primary.KPI, strconv.FormatFloat(primary.Value, 'f', -1, 64))
	}
}

func (r *Runner) costPerQuery(ctx context.Context) float64 {
	if r.deps.Settings == nil {
		return r.cfg.CostPerQuery
	}
	settings, err := r.deps.Settings.Settings(ctx)
	if err != nil {
		log.Printf("load settings error: %v", err)
		return r.cfg.CostPerQuery
	}
	if v, ok := settings["costPerQuery"].(float64); ok && v >= 0 {
		return v
	}
	return r.cfg.CostPerQuery
}
