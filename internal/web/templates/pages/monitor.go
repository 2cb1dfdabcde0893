package pages

import (
	"net/url"
	"time"

	"github.com/a-h/templ"

	"github.com/good-yellow-bee/reportwatch/internal/analytics"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/components"
)

// MonitorView is the state of the live monitor page.
type MonitorView struct {
	Alerts []*models.Alert
	Recent []*models.AlertHistory
	Now    time.Time
}

func nextRun(a *models.Alert, now time.Time) string {
	if !a.Active {
		return "paused"
	}
	if a.LastRunAt.IsZero() {
		return "due"
	}
	next := a.LastRunAt.Add(a.Frequency)
	if !next.After(now) {
		return "due"
	}
	return "in " + next.Sub(now).Round(time.Second).String()
}

// Monitor renders the state of every active alert and the latest runs.
func Monitor(b components.Base, v MonitorView) templ.Component {
	b.Title = "Monitor"
	b.Nav = "monitor"
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<h1>Monitor</h1><div class="stats">`)
		counts := make(map[models.AlertStatus]int)
		for _, a := range v.Alerts {
			counts[a.Status]++
		}
		for _, st := range models.AlertStatuses {
			h.Raw(`<div class="card">`)
			h.Render(components.StatusBadge(st))
			h.Raw(`<h2>`)
			h.Text(components.FormatInt(counts[st]))
			h.Raw(`</h2></div>`)
		}
		h.Raw(`</div>`)

		if len(v.Alerts) == 0 {
			h.Raw(`<p>No alerts yet. <a href="/alerts/new">Create one</a>.</p>`)
		} else {
			h.Raw(`<table><thead><tr><th>Alert</th><th>Status</th><th>Last run</th><th>Next run</th><th>Triggers</th><th>Success rate</th></tr></thead><tbody>`)
			for _, a := range v.Alerts {
				h.Raw(`<tr><td>`)
				h.Link("/alerts/"+a.ID, a.Name)
				h.Raw(`</td><td>`)
				h.Render(components.StatusBadge(a.Status))
				h.Raw(`</td><td>`)
				h.Text(components.FormatTime(a.LastRunAt))
				h.Raw(`</td><td>`)
				h.Text(nextRun(a, v.Now))
				h.Raw(`</td><td>`)
				h.Text(components.FormatInt(a.TriggerCount))
				h.Raw(`</td><td>`)
				h.Text(components.FormatPercent(a.SuccessRate))
				h.Raw(`</td></tr>`)
			}
			h.Raw(`</tbody></table>`)
		}

		h.Raw(`<h2>Latest runs</h2>`)
		h.Render(components.HistoryTable(v.Recent, true))
	}))
}

// HistoryView is the state of the execution history page.
type HistoryView struct {
	Rows       []*models.AlertHistory
	Alerts     []*models.Alert
	AlertID    string
	Status     string
	Page       int
	TotalPages int
	Total      int64
}

var historyStatuses = []models.AlertStatus{models.AlertStatusSuccess, models.AlertStatusWarning, models.AlertStatusFailed}

// History renders the paginated execution history.
func History(b components.Base, v HistoryView) templ.Component {
	b.Title = "History"
	b.Nav = "history"
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<h1>History</h1><form method="get" action="/history" class="card">`)
		h.Raw(`<label>Alert <select name="alert_id"><option value="">All alerts</option>`)
		for _, a := range v.Alerts {
			h.Option(a.ID, a.Name, a.ID == v.AlertID)
		}
		h.Raw(`</select></label> <label>Status <select name="status"><option value="">Any</option>`)
		for _, st := range historyStatuses {
			h.Option(string(st), string(st), string(st) == v.Status)
		}
		h.Raw(`</select></label> <button type="submit">Filter</button></form>`)

		h.Textf("%d runs", v.Total)
		h.Render(components.HistoryTable(v.Rows, true))

		q := url.Values{}
		if v.AlertID != "" {
			q.Set("alert_id", v.AlertID)
		}
		if v.Status != "" {
			q.Set("status", v.Status)
		}
		h.Pager("/history", q, v.Page, v.TotalPages)
	}))
}

// AnalyticsView is the state of the analytics page.
type AnalyticsView struct {
	Summary *analytics.Summary
}

// Analytics renders the summary counters and embeds the charts.
func Analytics(b components.Base, v AnalyticsView) templ.Component {
	b.Title = "Analytics"
	b.Nav = "analytics"
	s := v.Summary
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<h1>Analytics</h1><div class="stats">`)
		stat := func(label, value string) {
			h.Raw(`<div class="card"><small>`)
			h.Text(label)
			h.Raw(`</small><h2>`)
			h.Text(value)
			h.Raw(`</h2></div>`)
		}
		stat("Alerts", components.FormatInt(s.TotalAlerts))
		stat("Active", components.FormatInt(s.ActiveAlerts))
		stat("Runs", components.FormatInt(s.Runs))
		stat("Triggers", components.FormatInt(s.Triggers))
		stat("Failures", components.FormatInt(s.Failures))
		stat("Success rate", components.FormatPercent(s.SuccessRate))
		stat("Total cost", components.FormatCost(s.TotalCost))
		h.Raw(`</div>`)

		h.Raw(`<div class="card"><iframe src="/analytics/charts/runs" title="Runs per day" style="width:100%;height:380px;border:0"></iframe></div>`)
		h.Raw(`<div class="card"><iframe src="/analytics/charts/status" title="Alerts by status" style="width:100%;height:380px;border:0"></iframe></div>`)
		h.Raw(`<p><small>Source: `)
		h.Text(s.Source)
		h.Raw(`, generated `)
		h.Text(components.FormatTime(s.GeneratedAt))
		h.Raw(`</small></p>`)
	}))
}
