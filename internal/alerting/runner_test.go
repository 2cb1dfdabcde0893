package alerting

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/notifier"
	"github.com/good-yellow-bee/reportwatch/internal/powerbi"
	"github.com/good-yellow-bee/reportwatch/internal/storage"
)

type recordingDispatcher struct {
	mu         sync.Mutex
	messages   []*notifier.Message
	recipients []models.Recipients
	err        error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg *notifier.Message, to models.Recipients) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	d.recipients = append(d.recipients, to)
	return d.err
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) Close() {}

type recordingSink struct {
	runs []*models.AlertHistory
}

func (s *recordingSink) InsertRuns(_ context.Context, runs []*models.AlertHistory) error {
	s.runs = append(s.runs, runs...)
	return nil
}

type runnerFixture struct {
	store      *storage.SQLiteStorage
	client     *powerbi.MockClient
	dispatcher *recordingDispatcher
	publisher  *recordingPublisher
	sink       *recordingSink
	runner     *Runner
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "runner.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	catalog, err := powerbi.NewCatalog()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	f := &runnerFixture{
		store:      store,
		client:     powerbi.NewMockClient(catalog),
		dispatcher: &recordingDispatcher{},
		publisher:  &recordingPublisher{},
		sink:       &recordingSink{},
	}
	f.runner = NewRunner(RunnerDeps{
		Alerts:   store.Alerts(),
		History:  store.AlertHistory(),
		Client:   f.client,
		Catalog:  catalog,
		Notifier: f.dispatcher,
		Events:   f.publisher,
		Sink:     f.sink,
	}, RunnerConfig{CostPerQuery: 0.25, BaseURL: "http://reportwatch.local"})
	return f
}

func (f *runnerFixture) createAlert(t *testing.T, condition string, mutate ...func(*models.Alert)) *models.Alert {
	t.Helper()
	a := models.NewAlert("Revenue watch", "rpt-sales-overview", true)
	a.ID = uuid.New().String()
	a.ReportName = "Sales Overview"
	a.Datasets = []models.DatasetSelection{
		{DatasetID: "ds-sales", KPI: "Revenue", Dimensions: []string{"Region"}},
	}
	a.Condition = condition
	a.Recipients.Email = []string{"ops@example.com"}
	a.Recipients.Telegram = []string{"12345"}
	for _, m := range mutate {
		m(a)
	}
	if err := f.store.Alerts().Create(context.Background(), a); err != nil {
		t.Fatalf("create alert: %v", err)
	}
	return a
}

func (f *runnerFixture) reload(t *testing.T, id string) *models.Alert {
	t.Helper()
	a, err := f.store.Alerts().GetByID(context.Background(), id)
	if err != nil || a == nil {
		t.Fatalf("reload alert %s: %v", id, err)
	}
	return a
}

func TestRunner_TriggeredConditionWarnsAndNotifies(t *testing.T) {
	f := newRunnerFixture(t)
	f.client.SetValue("ds-sales", "Revenue", 500)
	a := f.createAlert(t, "value > 100")

	h, err := f.runner.RunAlert(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("RunAlert failed: %v", err)
	}
	if h.Status != models.AlertStatusWarning || !h.Triggered {
		t.Errorf("history status=%s triggered=%v, want warning/true", h.Status, h.Triggered)
	}
	if h.Value != 500 {
		t.Errorf("value = %v, want 500", h.Value)
	}
	if h.Cost != 0.25 {
		t.Errorf("cost = %v, want 0.25", h.Cost)
	}

	got := f.reload(t, a.ID)
	if got.TriggerCount != 1 || got.RunCount != 1 || got.FailureCount != 0 {
		t.Errorf("counters run=%d trigger=%d failure=%d", got.RunCount, got.TriggerCount, got.FailureCount)
	}
	if got.Status != models.AlertStatusWarning {
		t.Errorf("alert status = %s, want warning", got.Status)
	}
	if got.SuccessRate != 100 {
		t.Errorf("success rate = %v, want 100", got.SuccessRate)
	}
	if got.LastRunAt.IsZero() {
		t.Error("last run should be set")
	}

	if len(f.dispatcher.messages) != 1 {
		t.Fatalf("dispatches = %d, want 1", len(f.dispatcher.messages))
	}
	msg := f.dispatcher.messages[0]
	if msg.AlertID != a.ID || msg.KPI != "Revenue" || msg.Value != 500 {
		t.Errorf("message = %+v", msg)
	}
	if msg.URL != "http://reportwatch.local/alerts/"+a.ID {
		t.Errorf("url = %q", msg.URL)
	}
	to := f.dispatcher.recipients[0]
	if len(to.Email) != 1 || len(to.Telegram) != 1 {
		t.Errorf("recipients = %+v, want every channel with addresses", to)
	}

	rows, total, err := f.store.AlertHistory().List(context.Background(), models.HistoryFilter{AlertID: a.ID}, 10, 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if total != 1 || rows[0].Status != models.AlertStatusWarning {
		t.Errorf("history rows = %d, first status %v", total, rows)
	}

	if len(f.publisher.subjects) != 1 || f.publisher.subjects[0] != "alerts.run" {
		t.Errorf("events = %v, want [alerts.run]", f.publisher.subjects)
	}
	if len(f.sink.runs) != 1 || f.sink.runs[0].ID != h.ID {
		t.Errorf("sink runs = %d, want the run", len(f.sink.runs))
	}
}

func TestRunner_NotTriggered(t *testing.T) {
	f := newRunnerFixture(t)
	f.client.SetValue("ds-sales", "Revenue", 50)
	a := f.createAlert(t, "value > 100")

	h, err := f.runner.RunAlert(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("RunAlert failed: %v", err)
	}
	if h.Status != models.AlertStatusSuccess || h.Triggered {
		t.Errorf("status=%s triggered=%v, want success/false", h.Status, h.Triggered)
	}
	if len(f.dispatcher.messages) != 0 {
		t.Error("no notification expected")
	}
}

func TestRunner_EmptyConditionNeverTriggers(t *testing.T) {
	f := newRunnerFixture(t)
	f.client.SetValue("ds-sales", "Revenue", 1e9)
	a := f.createAlert(t, "")

	h, err := f.runner.RunAlert(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("RunAlert failed: %v", err)
	}
	if h.Status != models.AlertStatusSuccess || h.Triggered {
		t.Errorf("status=%s triggered=%v, want success/false", h.Status, h.Triggered)
	}
}

func TestRunner_QueryErrorFails(t *testing.T) {
	f := newRunnerFixture(t)
	a := f.createAlert(t, "value > 100")

	f.client.SetValue("ds-sales", "Revenue", 10)
	if _, err := f.runner.RunAlert(context.Background(), a.ID); err != nil {
		t.Fatalf("first run: %v", err)
	}

	f.client.SetError("ds-sales", "Revenue", errors.New("gateway timeout"))
	h, err := f.runner.RunAlert(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("RunAlert should record failures, got %v", err)
	}
	if h.Status != models.AlertStatusFailed || h.Error == "" {
		t.Errorf("status=%s error=%q, want failed with error", h.Status, h.Error)
	}

	got := f.reload(t, a.ID)
	if got.FailureCount != 1 || got.RunCount != 2 {
		t.Errorf("failure=%d runs=%d, want 1/2", got.FailureCount, got.RunCount)
	}
	if got.SuccessRate != 50 {
		t.Errorf("success rate = %v, want 50", got.SuccessRate)
	}
	if got.Status != models.AlertStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if len(f.dispatcher.messages) != 0 {
		t.Error("failed runs must not notify")
	}
}

func TestRunner_FailureModes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Alert)
	}{
		{"unknown report", func(a *models.Alert) { a.ReportID = "rpt-missing" }},
		{"no datasets", func(a *models.Alert) { a.Datasets = nil }},
		{"unknown kpi", func(a *models.Alert) { a.Datasets[0].KPI = "Nope" }},
		{"bad condition", func(a *models.Alert) { a.Condition = "value +" }},
		{"non-bool condition", func(a *models.Alert) { a.Condition = "value * 2" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRunnerFixture(t)
			a := f.createAlert(t, "value > 1", tt.mutate)

			h, err := f.runner.RunAlert(context.Background(), a.ID)
			if err != nil {
				t.Fatalf("RunAlert failed: %v", err)
			}
			if h.Status != models.AlertStatusFailed {
				t.Errorf("status = %s, want failed", h.Status)
			}
			if got := f.reload(t, a.ID); got.FailureCount != 1 {
				t.Errorf("failure count = %d, want 1", got.FailureCount)
			}
		})
	}
}

func TestRunner_CostPerSelection(t *testing.T) {
	f := newRunnerFixture(t)
	a := f.createAlert(t, `values["Revenue"] > 0 && values["Sessions"] > 0`, func(a *models.Alert) {
		a.Datasets = append(a.Datasets, models.DatasetSelection{
			DatasetID: "ds-web", KPI: "Sessions", Dimensions: []string{"Device"},
		})
	})
	f.client.SetValue("ds-sales", "Revenue", 1)
	f.client.SetValue("ds-web", "Sessions", 2)

	h, err := f.runner.RunAlert(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("RunAlert failed: %v", err)
	}
	if h.Cost != 0.5 {
		t.Errorf("cost = %v, want 0.5", h.Cost)
	}
	if !h.Triggered {
		t.Error("condition over both selections should trigger")
	}
	if got := f.reload(t, a.ID); got.Cost != 0.5 {
		t.Errorf("alert cost = %v, want 0.5", got.Cost)
	}
}

func TestRunner_RunAlertErrors(t *testing.T) {
	f := newRunnerFixture(t)

	if _, err := f.runner.RunAlert(context.Background(), "missing"); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("err = %v, want ErrAlertNotFound", err)
	}

	paused := f.createAlert(t, "value > 1", func(a *models.Alert) { a.SetActive(false) })
	if _, err := f.runner.RunAlert(context.Background(), paused.ID); !errors.Is(err, ErrAlertInactive) {
		t.Errorf("err = %v, want ErrAlertInactive", err)
	}
	if got := f.reload(t, paused.ID); got.RunCount != 0 || got.Status != models.AlertStatusInactive {
		t.Errorf("paused alert changed: runs=%d status=%s", got.RunCount, got.Status)
	}
}

func TestRunner_TickRunsOnlyDueAlerts(t *testing.T) {
	f := newRunnerFixture(t)
	now := time.Now()

	neverRun := f.createAlert(t, "value > 1")
	recent := f.createAlert(t, "value > 1", func(a *models.Alert) {
		a.Frequency = time.Hour
	})
	overdue := f.createAlert(t, "value > 1", func(a *models.Alert) {
		a.Frequency = 5 * time.Minute
	})
	paused := f.createAlert(t, "value > 1", func(a *models.Alert) { a.SetActive(false) })

	// Give recent and overdue a last run time.
	for id, at := range map[string]time.Time{
		recent.ID:  now.Add(-10 * time.Minute),
		overdue.ID: now.Add(-10 * time.Minute),
	} {
		a := f.reload(t, id)
		a.RecordRun(models.AlertStatusSuccess, 0, at)
		if err := f.store.Alerts().RecordRun(context.Background(), a); err != nil {
			t.Fatalf("seed run: %v", err)
		}
	}

	ran, err := f.runner.Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if ran != 2 {
		t.Errorf("ran = %d, want 2", ran)
	}

	if got := f.reload(t, neverRun.ID); got.RunCount != 1 {
		t.Errorf("never-run alert runs = %d, want 1", got.RunCount)
	}
	if got := f.reload(t, overdue.ID); got.RunCount != 2 {
		t.Errorf("overdue alert runs = %d, want 2", got.RunCount)
	}
	if got := f.reload(t, recent.ID); got.RunCount != 1 {
		t.Errorf("recent alert runs = %d, want 1 (seeded only)", got.RunCount)
	}
	if got := f.reload(t, paused.ID); got.RunCount != 0 {
		t.Errorf("paused alert runs = %d, want 0", got.RunCount)
	}
	if n := f.runner.Stats().Runs.Load(); n != 2 {
		t.Errorf("stats runs = %d, want 2", n)
	}
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	f := newRunnerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.runner.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

type stubSettings struct {
	settings models.Settings
	err      error
}

func (s stubSettings) Settings(context.Context) (models.Settings, error) {
	return s.settings, s.err
}

func TestRunner_CostFromSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings stubSettings
		want     float64
	}{
		{"override", stubSettings{settings: models.Settings{"costPerQuery": 2.0}}, 2.0},
		{"unset", stubSettings{settings: models.Settings{}}, 0.25},
		{"wrong type", stubSettings{settings: models.Settings{"costPerQuery": "lots"}}, 0.25},
		{"error", stubSettings{err: errors.New("kv unavailable")}, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRunnerFixture(t)
			f.runner.deps.Settings = tt.settings
			a := f.createAlert(t, "")

			h, err := f.runner.RunAlert(context.Background(), a.ID)
			if err != nil {
				t.Fatalf("RunAlert: %v", err)
			}
			if h.Cost != tt.want {
				t.Errorf("cost = %v, want %v", h.Cost, tt.want)
			}
		})
	}
}

type pausingClient struct {
	powerbi.Client
	pause func()
}

func (c *pausingClient) QueryKPI(ctx context.Context, datasetID, kpi string, dimensions []string) (float64, error) {
	c.pause()
	return c.Client.QueryKPI(ctx, datasetID, kpi, dimensions)
}

func TestRunner_PausedDuringRunStaysInactive(t *testing.T) {
	f := newRunnerFixture(t)
	a := f.createAlert(t, "")
	f.runner.deps.Client = &pausingClient{
		Client: f.client,
		pause: func() {
			if err := f.store.Alerts().SetActive(context.Background(), a.ID, false); err != nil {
				t.Errorf("pause alert: %v", err)
			}
		},
	}

	h, err := f.runner.RunAlert(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("RunAlert: %v", err)
	}
	if h.Status != models.AlertStatusSuccess {
		t.Errorf("history status = %s, want success", h.Status)
	}

	got := f.reload(t, a.ID)
	if got.Active || got.Status != models.AlertStatusInactive {
		t.Errorf("after run: active=%v status=%s, want inactive", got.Active, got.Status)
	}
	if got.RunCount != 1 {
		t.Errorf("run count = %d, want 1", got.RunCount)
	}
}
