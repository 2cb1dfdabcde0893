package alerting

import (
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/good-yellow-bee/reportwatch/internal/models"
)

// Step is one page of the create-alert wizard.
type Step string

const (
	StepDetails       Step = "details"
	StepDatasets      Step = "datasets"
	StepConditions    Step = "conditions"
	StepNotifications Step = "notifications"
	StepReview        Step = "review"
)

// Steps lists the wizard steps in order.
var Steps = []Step{StepDetails, StepDatasets, StepConditions, StepNotifications, StepReview}

// ParseStep converts a string to a Step.
func ParseStep(s string) (Step, bool) {
	for _, st := range Steps {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Next returns the step after s. Review is the last step.
func (s Step) Next() Step {
	for i, st := range Steps {
		if st == s && i+1 < len(Steps) {
			return Steps[i+1]
		}
	}
	return StepReview
}

// Prev returns the step before s. Details is the first step.
func (s Step) Prev() Step {
	for i, st := range Steps {
		if st == s && i > 0 {
			return Steps[i-1]
		}
	}
	return StepDetails
}

const (
	maxNameLength = 100
	minFrequency  = time.Minute
)

var (
	e164Pattern     = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	telegramPattern = regexp.MustCompile(`^-?[0-9]+$`)
)

// Catalog resolves the Power BI objects a form refers to.
type Catalog interface {
	GetReport(id string) (*models.Report, bool)
	GetDataset(id string) (*models.Dataset, bool)
}

// FieldErrors maps a field path to its validation message.
type FieldErrors map[string]string

// Add records msg for field unless the field already has a message.
func (fe FieldErrors) Add(field, msg string) {
	if _, exists := fe[field]; !exists {
		fe[field] = msg
	}
}

// Error implements error with the messages in field order.
func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+fe[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Err returns nil when there are no errors.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// ChannelInput is the wizard state of one notification channel.
type ChannelInput struct {
	Enabled    bool     `json:"enabled"`
	Recipients []string `json:"recipients"`
}

// AlertForm is the state of the create/edit alert wizard.
type AlertForm struct {
	Name          string                           `json:"name"`
	Description   string                           `json:"description"`
	ReportID      string                           `json:"reportId"`
	Datasets      []models.DatasetSelection        `json:"datasets"`
	Condition     string                           `json:"condition"`
	Frequency     string                           `json:"frequency"`
	Active        *bool                            `json:"active,omitempty"`
	Notifications map[models.Channel]ChannelInput `json:"notifications"`
}

// Validate checks every field of the form.
func (f *AlertForm) Validate(catalog Catalog) FieldErrors {
	return f.ValidateStep(StepReview, catalog)
}

// ValidateStep checks only the fields that belong to step. Review checks all.
func (f *AlertForm) ValidateStep(step Step, catalog Catalog) FieldErrors {
	errs := FieldErrors{}
	switch step {
	case StepDetails:
		f.validateDetails(errs, catalog)
	case StepDatasets:
		f.validateDatasets(errs, catalog)
	case StepConditions:
		f.validateConditions(errs)
	case StepNotifications:
		f.validateNotifications(errs)
	default:
		f.validateDetails(errs, catalog)
		f.validateDatasets(errs, catalog)
		f.validateConditions(errs)
		f.validateNotifications(errs)
	}
	return errs
}

func (f *AlertForm) validateDetails(errs FieldErrors, catalog Catalog) {
	name := strings.TrimSpace(f.Name)
	switch {
	case name == "":
		errs.Add("name", "name is required")
	case utf8.RuneCountInString(name) > maxNameLength:
		errs.Add("name", fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}

	reportID := strings.TrimSpace(f.ReportID)
	if reportID == "" {
		errs.Add("reportId", "report is required")
		return
	}
	if catalog != nil {
		if _, ok := catalog.GetReport(reportID); !ok {
			errs.Add("reportId", "report not found")
		}
	}
}

func (f *AlertForm) validateDatasets(errs FieldErrors, catalog Catalog) {
	complete := 0
	for _, sel := range f.Datasets {
		if sel.Complete() {
			complete++
		}
	}
	if complete == 0 {
		errs.Add("datasets", "select at least one dataset with a KPI and a dimension")
	}
	if catalog == nil {
		return
	}

	var report *models.Report
	if f.ReportID != "" {
		report, _ = catalog.GetReport(strings.TrimSpace(f.ReportID))
	}

	for i, sel := range f.Datasets {
		prefix := fmt.Sprintf("datasets[%d]", i)
		if sel.DatasetID == "" {
			if sel.KPI != "" || len(sel.Dimensions) > 0 {
				errs.Add(prefix+".datasetId", "dataset is required")
			}
			continue
		}
		ds, ok := catalog.GetDataset(sel.DatasetID)
		if !ok {
			errs.Add(prefix+".datasetId", "dataset not found")
			continue
		}
		if report != nil && !slices.Contains(report.DatasetIDs, ds.ID) {
			errs.Add(prefix+".datasetId", "dataset does not belong to the selected report")
		}
		if sel.KPI != "" && !slices.Contains(ds.KPIs, sel.KPI) {
			errs.Add(prefix+".kpi", fmt.Sprintf("unknown KPI %q for dataset %s", sel.KPI, ds.Name))
		}
		for _, dim := range sel.Dimensions {
			if !slices.Contains(ds.Dimensions, dim) {
				errs.Add(prefix+".dimensions", fmt.Sprintf("unknown dimension %q for dataset %s", dim, ds.Name))
				break
			}
		}
	}
}

func (f *AlertForm) validateConditions(errs FieldErrors) {
	if strings.TrimSpace(f.Condition) != "" {
		if _, err := CompileCondition(f.Condition); err != nil {
			errs.Add("condition", err.Error())
		}
	}
	if _, err := f.frequency(); err != nil {
		errs.Add("frequency", err.Error())
	}
}

func (f *AlertForm) validateNotifications(errs FieldErrors) {
	enabled := 0
	for _, ch := range models.Channels {
		in, ok := f.Notifications[ch]
		if !ok || !in.Enabled {
			continue
		}
		enabled++
		field := "notifications." + string(ch)
		recipients := cleanRecipients(in.Recipients)
		if len(recipients) == 0 {
			errs.Add(field, "at least one recipient is required")
			continue
		}
		for _, r := range recipients {
			if err := validateRecipient(ch, r); err != nil {
				errs.Add(field, err.Error())
				break
			}
		}
	}
	for ch, in := range f.Notifications {
		if in.Enabled && !slices.Contains(models.Channels, ch) {
			errs.Add("notifications."+string(ch), "unsupported channel")
		}
	}
	if enabled == 0 {
		errs.Add("notifications", "enable at least one notification channel")
	}
}

func validateRecipient(ch models.Channel, r string) error {
	switch ch {
	case models.ChannelEmail, models.ChannelTeams:
		addr, err := mail.ParseAddress(r)
		if err != nil || addr.Address != r {
			return fmt.Errorf("invalid email address %q", r)
		}
	case models.ChannelWhatsApp:
		if !e164Pattern.MatchString(r) {
			return fmt.Errorf("invalid phone number %q, use E.164 format like +14155550100", r)
		}
	case models.ChannelTelegram:
		if !telegramPattern.MatchString(r) {
			return fmt.Errorf("invalid telegram chat id %q", r)
		}
	}
	return nil
}

func (f *AlertForm) frequency() (time.Duration, error) {
	s := strings.TrimSpace(f.Frequency)
	if s == "" {
		return models.DefaultFrequency, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}
	if d < minFrequency {
		return 0, fmt.Errorf("frequency must be at least %s", minFrequency)
	}
	return d, nil
}

// ToAlert builds a new alert from a valid form.
func (f *AlertForm) ToAlert(catalog Catalog, createdBy string) *models.Alert {
	active := f.Active == nil || *f.Active
	a := models.NewAlert("", "", active)
	a.CreatedBy = createdBy
	f.ApplyTo(a, catalog)
	return a
}

// ApplyTo copies the form onto an existing alert. Counters and history are kept.
func (f *AlertForm) ApplyTo(a *models.Alert, catalog Catalog) {
	a.Name = strings.TrimSpace(f.Name)
	a.Description = strings.TrimSpace(f.Description)
	a.ReportID = strings.TrimSpace(f.ReportID)
	a.ReportName = ""
	a.WorkspaceID = ""
	if catalog != nil {
		if r, ok := catalog.GetReport(a.ReportID); ok {
			a.ReportName = r.Name
			a.WorkspaceID = r.WorkspaceID
		}
	}

	a.Datasets = make([]models.DatasetSelection, 0, len(f.Datasets))
	for _, sel := range f.Datasets {
		if sel.DatasetID == "" || !sel.Complete() {
			continue
		}
		dims := make([]string, len(sel.Dimensions))
		copy(dims, sel.Dimensions)
		a.Datasets = append(a.Datasets, models.DatasetSelection{
			DatasetID:  sel.DatasetID,
			KPI:        sel.KPI,
			Dimensions: dims,
		})
	}

	a.Condition = strings.TrimSpace(f.Condition)
	if d, err := f.frequency(); err == nil {
		a.Frequency = d
	}

	var recipients models.Recipients
	for _, ch := range models.Channels {
		to := []string{}
		if in, ok := f.Notifications[ch]; ok && in.Enabled {
			to = cleanRecipients(in.Recipients)
		}
		recipients.Set(ch, to)
	}
	a.Recipients = recipients

	if f.Active != nil {
		a.SetActive(*f.Active)
	}
	a.UpdatedAt = time.Now()
}

// FormFromAlert pre-fills the wizard for editing a.
func FormFromAlert(a *models.Alert) *AlertForm {
	active := a.Active
	f := &AlertForm{
		Name:          a.Name,
		Description:   a.Description,
		ReportID:      a.ReportID,
		Condition:     a.Condition,
		Active:        &active,
		Notifications: make(map[models.Channel]ChannelInput, len(models.Channels)),
	}
	if a.Frequency > 0 {
		f.Frequency = a.Frequency.String()
	}
	for _, sel := range a.Datasets {
		dims := make([]string, len(sel.Dimensions))
		copy(dims, sel.Dimensions)
		f.Datasets = append(f.Datasets, models.DatasetSelection{DatasetID: sel.DatasetID, KPI: sel.KPI, Dimensions: dims})
	}
	for _, ch := range models.Channels {
		to := a.Recipients.For(ch)
		f.Notifications[ch] = ChannelInput{
			Enabled:    len(to) > 0,
			Recipients: append([]string(nil), to...),
		}
	}
	return f
}

func cleanRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
