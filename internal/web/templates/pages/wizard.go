package pages

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/good-yellow-bee/reportwatch/internal/alerting"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/components"
)

// Wizard navigation actions.
const (
	ActionNext   = "next"
	ActionBack   = "back"
	ActionSubmit = "submit"
)

// WizardView is the state of the create/edit alert wizard.
type WizardView struct {
	Form   *alerting.AlertForm
	Step   alerting.Step
	Errors alerting.FieldErrors
	// Action is the URL the wizard posts to.
	Action  string
	Editing bool
	Reports []models.Report
	// Datasets are the datasets of the selected report.
	Datasets []models.Dataset
}

var stepLabels = map[alerting.Step]string{
	alerting.StepDetails:       "Details",
	alerting.StepDatasets:      "Datasets",
	alerting.StepConditions:    "Conditions",
	alerting.StepNotifications: "Notifications",
	alerting.StepReview:        "Review",
}

// DecodeAlertForm reads the wizard fields posted by AlertWizard.
func DecodeAlertForm(v url.Values) *alerting.AlertForm {
	f := &alerting.AlertForm{
		Name:          v.Get("name"),
		Description:   v.Get("description"),
		ReportID:      v.Get("reportId"),
		Condition:     v.Get("condition"),
		Frequency:     v.Get("frequency"),
		Notifications: make(map[models.Channel]alerting.ChannelInput, len(models.Channels)),
	}

	if v.Has("active") {
		active, _ := strconv.ParseBool(v.Get("active"))
		f.Active = &active
	} else if v.Get("step") == string(alerting.StepConditions) {
		inactive := false
		f.Active = &inactive
	}

	for _, i := range datasetRows(v) {
		prefix := "ds." + strconv.Itoa(i) + "."
		sel := models.DatasetSelection{
			DatasetID:  v.Get(prefix + "id"),
			KPI:        v.Get(prefix + "kpi"),
			Dimensions: v[prefix+"dims"],
		}
		if sel.DatasetID == "" || (sel.KPI == "" && len(sel.Dimensions) == 0) {
			continue
		}
		f.Datasets = append(f.Datasets, sel)
	}

	for _, ch := range models.Channels {
		f.Notifications[ch] = alerting.ChannelInput{
			Enabled:    v.Get("notify."+string(ch)) == "on",
			Recipients: splitRecipients(v.Get("recipients." + string(ch))),
		}
	}
	return f
}

// maxDatasetRows bounds the dataset rows read from one post.
const maxDatasetRows = 50

// datasetRows returns the posted ds.N.id row indices in order.
func datasetRows(v url.Values) []int {
	var rows []int
	for key := range v {
		n, ok := strings.CutPrefix(key, "ds.")
		if !ok {
			continue
		}
		n, ok = strings.CutSuffix(n, ".id")
		if !ok {
			continue
		}
		i, err := strconv.Atoi(n)
		if err != nil || i < 0 {
			continue
		}
		rows = append(rows, i)
	}
	slices.Sort(rows)
	if len(rows) > maxDatasetRows {
		rows = rows[:maxDatasetRows]
	}
	return rows
}

func splitRecipients(s string) []string {
	var out []string
	for _, r := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == ';'
	}) {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func hiddenDatasets(h *components.HTML, sels []models.DatasetSelection) {
	for i, sel := range sels {
		prefix := "ds." + strconv.Itoa(i) + "."
		h.Hidden(prefix+"id", sel.DatasetID)
		h.Hidden(prefix+"kpi", sel.KPI)
		for _, d := range sel.Dimensions {
			h.Hidden(prefix+"dims", d)
		}
	}
}

// hiddenFields carries the fields of every step except current.
func hiddenFields(h *components.HTML, f *alerting.AlertForm, current alerting.Step) {
	if current != alerting.StepDetails {
		h.Hidden("name", f.Name)
		h.Hidden("description", f.Description)
		h.Hidden("reportId", f.ReportID)
	}
	if current != alerting.StepDatasets {
		hiddenDatasets(h, f.Datasets)
	}
	if current != alerting.StepConditions {
		h.Hidden("condition", f.Condition)
		h.Hidden("frequency", f.Frequency)
		if f.Active != nil {
			h.Hidden("active", strconv.FormatBool(*f.Active))
		}
	}
	if current != alerting.StepNotifications {
		for _, ch := range models.Channels {
			in := f.Notifications[ch]
			if in.Enabled {
				h.Hidden("notify."+string(ch), "on")
			}
			h.Hidden("recipients."+string(ch), strings.Join(in.Recipients, "\n"))
		}
	}
}

// AlertWizard renders one step of the alert wizard.
func AlertWizard(b components.Base, v WizardView) templ.Component {
	b.Title = "New alert"
	if v.Editing {
		b.Title = "Edit alert"
	}
	b.Nav = "alerts"
	f := v.Form
	errs := v.Errors
	if errs == nil {
		errs = alerting.FieldErrors{}
	}

	return components.Layout(b, components.New(func(h *components.HTML) {
		h.Raw(`<h1>`)
		h.Text(b.Title)
		h.Raw(`</h1><p class="steps">`)
		for i, st := range alerting.Steps {
			h.Raw(`<span`)
			if st == v.Step {
				h.Raw(` class="current"`)
			}
			h.Raw(">")
			h.Textf("%d. %s", i+1, stepLabels[st])
			h.Raw(`</span>`)
		}
		h.Raw(`</p><form method="post" class="card"`)
		h.Attr("action", v.Action)
		h.Raw(">")
		h.CSRF(b.CSRFToken)
		h.Hidden("step", string(v.Step))
		hiddenFields(h, f, v.Step)

		switch v.Step {
		case alerting.StepDetails:
			h.Input("Name", "text", "name", f.Name, errs["name"])
			h.Raw(`<label class="field">Description<textarea name="description" rows="3">`)
			h.Text(f.Description)
			h.Raw(`</textarea></label><label class="field">Report<select name="reportId"><option value="">Choose a report</option>`)
			for _, r := range v.Reports {
				h.Option(r.ID, r.Name, r.ID == f.ReportID)
			}
			h.Raw(`</select>`)
			h.FieldError(errs["reportId"])
			h.Raw(`</label>`)

		case alerting.StepDatasets:
			wizardDatasets(h, f, v.Datasets, errs)

		case alerting.StepConditions:
			h.Raw(`<label class="field">Condition<input type="text" name="condition" placeholder="value &lt; 1000"`)
			h.Attr("value", f.Condition)
			h.Raw(`>`)
			h.FieldError(errs["condition"])
			h.Raw(`<small>Variables: value, values["KPI"], kpi, dataset, dimensions. Leave empty to record values without triggering.</small></label>`)
			h.Input("Check every (e.g. 15m, 1h)", "text", "frequency", f.Frequency, errs["frequency"])
			h.Raw(`<label>`)
			h.Checkbox("active", "true", f.Active == nil || *f.Active)
			h.Raw(` Active</label>`)

		case alerting.StepNotifications:
			h.FieldError(errs["notifications"])
			for _, ch := range models.Channels {
				in := f.Notifications[ch]
				h.Raw(`<fieldset><legend><label>`)
				h.Checkbox("notify."+string(ch), "on", in.Enabled)
				h.Text(" " + channelLabel(ch))
				h.Raw(`</label></legend><textarea rows="2" cols="50"`)
				h.Attr("name", "recipients."+string(ch))
				h.Attr("placeholder", channelHint(ch))
				h.Raw(">")
				h.Text(strings.Join(in.Recipients, "\n"))
				h.Raw(`</textarea>`)
				h.FieldError(errs["notifications."+string(ch)])
				h.Raw(`</fieldset>`)
			}

		case alerting.StepReview:
			wizardReview(h, f, v.Reports, errs)
		}

		h.Raw(`<p>`)
		if v.Step != alerting.StepDetails {
			h.Raw(`<button type="submit" name="action" value="back">Back</button> `)
		}
		if v.Step == alerting.StepReview {
			label := "Create alert"
			if v.Editing {
				label = "Save alert"
			}
			h.Raw(`<button type="submit" name="action" value="submit">`)
			h.Text(label)
			h.Raw(`</button>`)
		} else {
			h.Raw(`<button type="submit" name="action" value="next">Next</button>`)
		}
		h.Raw(`</p></form>`)
	}))
}

func wizardDatasets(h *components.HTML, f *alerting.AlertForm, datasets []models.Dataset, errs alerting.FieldErrors) {
	h.FieldError(errs["datasets"])
	if len(datasets) == 0 {
		h.Raw(`<p>The selected report has no datasets. Go back and choose another report.</p>`)
		return
	}

	current := make(map[string]models.DatasetSelection, len(f.Datasets))
	rowErrors := make(map[string][]string)
	for i, sel := range f.Datasets {
		current[sel.DatasetID] = sel
		for _, field := range []string{"datasetId", "kpi", "dimensions"} {
			if msg := errs[fmt.Sprintf("datasets[%d].%s", i, field)]; msg != "" {
				rowErrors[sel.DatasetID] = append(rowErrors[sel.DatasetID], msg)
			}
		}
	}

	for i, ds := range datasets {
		prefix := "ds." + strconv.Itoa(i) + "."
		sel := current[ds.ID]
		h.Raw(`<fieldset><legend>`)
		h.Text(ds.Name)
		h.Raw(`</legend>`)
		h.Hidden(prefix+"id", ds.ID)
		h.Raw(`<label>KPI <select`)
		h.Attr("name", prefix+"kpi")
		h.Raw(`><option value="">Not watched</option>`)
		for _, kpi := range ds.KPIs {
			h.Option(kpi, kpi, kpi == sel.KPI)
		}
		h.Raw(`</select></label><div>Dimensions: `)
		for _, dim := range ds.Dimensions {
			h.Raw(`<label>`)
			h.Checkbox(prefix+"dims", dim, slices.Contains(sel.Dimensions, dim))
			h.Text(" " + dim)
			h.Raw(`</label> `)
		}
		h.Raw(`</div>`)
		for _, msg := range rowErrors[ds.ID] {
			h.FieldError(msg)
		}
		h.Raw(`</fieldset>`)
	}
}

func wizardReview(h *components.HTML, f *alerting.AlertForm, reports []models.Report, errs alerting.FieldErrors) {
	if len(errs) > 0 {
		h.Raw(`<div class="toast toast-error"><p>Please fix the following:</p><ul>`)
		for _, field := range slices.Sorted(maps.Keys(errs)) {
			h.Raw(`<li>`)
			h.Text(field + ": " + errs[field])
			h.Raw(`</li>`)
		}
		h.Raw(`</ul></div>`)
	}
	report := f.ReportID
	for _, r := range reports {
		if r.ID == f.ReportID {
			report = r.Name
		}
	}
	h.Raw(`<table><tbody><tr><th>Name</th><td>`)
	h.Text(f.Name)
	h.Raw(`</td></tr><tr><th>Report</th><td>`)
	h.Text(report)
	h.Raw(`</td></tr>`)
	for _, sel := range f.Datasets {
		h.Raw(`<tr><th>`)
		h.Text(sel.DatasetID)
		h.Raw(`</th><td>`)
		h.Text(sel.KPI + " by " + strings.Join(sel.Dimensions, ", "))
		h.Raw(`</td></tr>`)
	}
	h.Raw(`<tr><th>Condition</th><td>`)
	h.Text(f.Condition)
	h.Raw(`</td></tr><tr><th>Frequency</th><td>`)
	h.Text(f.Frequency)
	h.Raw(`</td></tr>`)
	for _, ch := range models.Channels {
		if in := f.Notifications[ch]; in.Enabled {
			h.Raw(`<tr><th>`)
			h.Text(channelLabel(ch))
			h.Raw(`</th><td>`)
			h.Text(strings.Join(in.Recipients, ", "))
			h.Raw(`</td></tr>`)
		}
	}
	h.Raw(`</tbody></table>`)
}

func channelLabel(ch models.Channel) string {
	switch ch {
	case models.ChannelEmail:
		return "Email"
	case models.ChannelWhatsApp:
		return "WhatsApp"
	case models.ChannelTeams:
		return "Microsoft Teams"
	case models.ChannelTelegram:
		return "Telegram"
	}
	return string(ch)
}

func channelHint(ch models.Channel) string {
	switch ch {
	case models.ChannelWhatsApp:
		return "+14155550100, one per line"
	case models.ChannelTelegram:
		return "chat id, one per line"
	}
	return "name@example.com, one per line"
}
