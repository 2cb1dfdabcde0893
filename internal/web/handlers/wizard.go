package handlers

import (
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/reportwatch/internal/alerting"
	"github.com/good-yellow-bee/reportwatch/internal/events"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/pages"
)

// NewAlert renders the first wizard step.
func (h *Handler) NewAlert(w http.ResponseWriter, r *http.Request) {
	form := &alerting.AlertForm{Notifications: map[models.Channel]alerting.ChannelInput{}}
	if settings, err := h.prefs.Settings(r.Context()); err == nil {
		if freq, ok := settings["defaultFrequency"].(string); ok {
			form.Frequency = freq
		}
	}
	h.renderWizard(w, r, http.StatusOK, h.wizardView(form, alerting.StepDetails, nil, "/alerts/new", false))
}

// EditAlert renders the wizard pre-filled from an alert.
func (h *Handler) EditAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}
	view := h.wizardView(alerting.FormFromAlert(alert), alerting.StepDetails, nil, "/alerts/"+alert.ID+"/edit", true)
	h.renderWizard(w, r, http.StatusOK, view)
}

// SubmitNewAlert advances the create wizard and stores the alert on submit.
func (h *Handler) SubmitNewAlert(w http.ResponseWriter, r *http.Request) {
	form, done := h.advanceWizard(w, r, "/alerts/new", false)
	if !done {
		return
	}

	user := currentUser(r)
	alert := form.ToAlert(h.catalog, user.Username)
	alert.ID = uuid.New().String()
	if err := h.alerts.Create(r.Context(), alert); err != nil {
		h.serverError(w, "create alert", err)
		return
	}
	log.Printf("alert created: %s (%s) by %s", alert.Name, alert.ID, alert.CreatedBy)
	h.publish(r.Context(), events.SubjectAlertCreated, alert)
	h.redirect(w, r, "/alerts/"+alert.ID, session.FlashSuccess, "Alert "+alert.Name+" created")
}

// SubmitEditAlert advances the edit wizard and saves the alert on submit.
func (h *Handler) SubmitEditAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}
	form, done := h.advanceWizard(w, r, "/alerts/"+alert.ID+"/edit", true)
	if !done {
		return
	}

	form.ApplyTo(alert, h.catalog)
	if err := h.alerts.Update(r.Context(), alert); err != nil {
		h.serverError(w, "update alert", err)
		return
	}
	h.publish(r.Context(), events.SubjectAlertUpdated, alert)
	h.redirect(w, r, "/alerts/"+alert.ID, session.FlashSuccess, "Alert "+alert.Name+" saved")
}

// advanceWizard applies the posted navigation action. It renders the next
// page itself and returns done only for a submission that passed validation.
func (h *Handler) advanceWizard(w http.ResponseWriter, r *http.Request, action string, editing bool) (*alerting.AlertForm, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return nil, false
	}
	form := pages.DecodeAlertForm(r.PostForm)
	step, ok := alerting.ParseStep(r.PostFormValue("step"))
	if !ok {
		step = alerting.StepDetails
	}

	switch r.PostFormValue("action") {
	case pages.ActionBack:
		h.renderWizard(w, r, http.StatusOK, h.wizardView(form, step.Prev(), nil, action, editing))
		return nil, false

	case pages.ActionSubmit:
		if errs := form.Validate(h.catalog); len(errs) > 0 {
			h.renderWizard(w, r, http.StatusBadRequest, h.wizardView(form, alerting.StepReview, errs, action, editing))
			return nil, false
		}
		return form, true

	default:
		if errs := form.ValidateStep(step, h.catalog); len(errs) > 0 {
			h.renderWizard(w, r, http.StatusBadRequest, h.wizardView(form, step, errs, action, editing))
			return nil, false
		}
		h.renderWizard(w, r, http.StatusOK, h.wizardView(form, step.Next(), nil, action, editing))
		return nil, false
	}
}

func (h *Handler) wizardView(form *alerting.AlertForm, step alerting.Step, errs alerting.FieldErrors, action string, editing bool) pages.WizardView {
	view := pages.WizardView{
		Form:    form,
		Step:    step,
		Errors:  errs,
		Action:  action,
		Editing: editing,
		Reports: h.catalog.ListReports("", ""),
	}
	if form.ReportID != "" {
		view.Datasets, _ = h.catalog.ReportDatasets(form.ReportID)
	}
	return view
}

func (h *Handler) renderWizard(w http.ResponseWriter, r *http.Request, status int, view pages.WizardView) {
	h.render(w, r, status, pages.AlertWizard(h.base(r), view))
}
