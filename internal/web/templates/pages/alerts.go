package pages

import (
	"slices"
	"strings"

	"github.com/a-h/templ"

	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/components"
)

// AlertListView is the state of the alerts page.
type AlertListView struct {
	Alerts    []*models.Alert
	Search    string
	Statuses  []models.AlertStatus
	Active    string
	Sort      string
	Dir       string
	CanManage bool
}

var sortOptions = [][2]string{
	{"name", "Name"},
	{"cost", "Cost"},
	{"triggerCount", "Triggers"},
	{"failureCount", "Failures"},
	{"successRate", "Success rate"},
	{"createdAt", "Created"},
	{"lastRunAt", "Last run"},
}

// AlertList renders the filterable alert table.
func AlertList(b components.Base, v AlertListView) templ.Component {
	b.Title = "Alerts"
	b.Nav = "alerts"
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<h1>Alerts</h1>`)
		if v.CanManage {
			h.Raw(`<p><a href="/alerts/new">New alert</a></p>`)
		}

		h.Raw(`<form method="get" action="/alerts" class="card">`)
		h.Input("Search", "search", "q", v.Search, "")
		h.Raw(`<fieldset><legend>Status</legend>`)
		for _, st := range models.AlertStatuses {
			h.Raw(`<label>`)
			h.Checkbox("status", string(st), slices.Contains(v.Statuses, st))
			h.Text(" " + string(st))
			h.Raw(`</label> `)
		}
		h.Raw(`</fieldset><label>Active <select name="active">`)
		h.Option("", "All", v.Active == "")
		h.Option("true", "Active only", v.Active == "true")
		h.Option("false", "Inactive only", v.Active == "false")
		h.Raw(`</select></label> <label>Sort by <select name="sort">`)
		for _, o := range sortOptions {
			h.Option(o[0], o[1], v.Sort == o[0])
		}
		h.Raw(`</select></label> <select name="dir">`)
		h.Option("asc", "Ascending", v.Dir != "desc")
		h.Option("desc", "Descending", v.Dir == "desc")
		h.Raw(`</select> <button type="submit">Apply</button></form>`)

		if len(v.Alerts) == 0 {
			h.Raw(`<p>No alerts match.</p>`)
			return
		}
		h.Raw(`<table><thead><tr><th>Name</th><th>Report</th><th>Status</th><th>Triggers</th><th>Failures</th><th>Success</th><th>Cost</th><th>Last run</th>`)
		if v.CanManage {
			h.Raw(`<th></th>`)
		}
		h.Raw(`</tr></thead><tbody>`)
		for _, a := range v.Alerts {
			h.Raw(`<tr><td>`)
			h.Link("/alerts/"+a.ID, a.Name)
			h.Raw(`</td><td>`)
			h.Text(a.ReportName)
			h.Raw(`</td><td>`)
			h.Render(components.StatusBadge(a.Status))
			h.Raw(`</td><td>`)
			h.Textf("%d", a.TriggerCount)
			h.Raw(`</td><td>`)
			h.Textf("%d", a.FailureCount)
			h.Raw(`</td><td>`)
			h.Text(components.FormatPercent(a.SuccessRate))
			h.Raw(`</td><td>`)
			h.Text(components.FormatCost(a.Cost))
			h.Raw(`</td><td>`)
			h.Text(components.FormatTime(a.LastRunAt))
			h.Raw(`</td>`)
			if v.CanManage {
				h.Raw(`<td>`)
				label := "Pause"
				if !a.Active {
					label = "Resume"
				}
				h.PostButton("/alerts/"+a.ID+"/toggle", label, b.CSRFToken, "")
				h.Raw(` `)
				h.Link("/alerts/"+a.ID+"/edit", "Edit")
				h.Raw(`</td>`)
			}
			h.Raw(`</tr>`)
		}
		h.Raw(`</tbody></table>`)
	}))
}

// AlertDetailView is the state of one alert's page.
type AlertDetailView struct {
	Alert     *models.Alert
	History   []*models.AlertHistory
	CanManage bool
}

// AlertDetail renders an alert with its recent executions.
func AlertDetail(b components.Base, v AlertDetailView) templ.Component {
	a := v.Alert
	b.Title = a.Name
	b.Nav = "alerts"
	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<h1>`)
		h.Text(a.Name)
		h.Raw(` `)
		h.Render(components.StatusBadge(a.Status))
		h.Raw(`</h1>`)
		if a.Description != "" {
			h.Raw(`<p>`)
			h.Text(a.Description)
			h.Raw(`</p>`)
		}

		h.Raw(`<div class="card"><table><tbody>`)
		row := func(label, value string) {
			h.Raw(`<tr><th>`)
			h.Text(label)
			h.Raw(`</th><td>`)
			h.Text(value)
			h.Raw(`</td></tr>`)
		}
		row("Report", a.ReportName+" ("+a.ReportID+")")
		for _, sel := range a.Datasets {
			row("Dataset "+sel.DatasetID, sel.KPI+" by "+strings.Join(sel.Dimensions, ", "))
		}
		cond := a.Condition
		if cond == "" {
			cond = "none (never triggers)"
		}
		row("Condition", cond)
		row("Frequency", a.Frequency.String())
		for _, ch := range models.Channels {
			if to := a.Recipients.For(ch); len(to) > 0 {
				row("Notify via "+string(ch), strings.Join(to, ", "))
			}
		}
		row("Runs", components.FormatInt(a.RunCount))
		row("Triggers", components.FormatInt(a.TriggerCount))
		row("Failures", components.FormatInt(a.FailureCount))
		row("Success rate", components.FormatPercent(a.SuccessRate))
		row("Cost", components.FormatCost(a.Cost))
		row("Last run", components.FormatTime(a.LastRunAt))
		row("Created by", a.CreatedBy)
		h.Raw(`</tbody></table></div>`)

		if v.CanManage {
			h.Raw(`<p>`)
			h.Link("/alerts/"+a.ID+"/edit", "Edit")
			h.Raw(` `)
			if a.Active {
				h.PostButton("/alerts/"+a.ID+"/run", "Run now", b.CSRFToken, "")
				h.Raw(` `)
			}
			label := "Pause"
			if !a.Active {
				label = "Resume"
			}
			h.PostButton("/alerts/"+a.ID+"/toggle", label, b.CSRFToken, "")
			h.Raw(` `)
			h.PostButton("/alerts/"+a.ID+"/delete", "Delete", b.CSRFToken, "danger")
			h.Raw(`</p>`)
		}

		h.Raw(`<h2>Recent runs</h2>`)
		h.Render(components.HistoryTable(v.History, false))
	}))
}
