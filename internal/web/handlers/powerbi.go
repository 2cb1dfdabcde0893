package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/powerbi"
	"github.com/good-yellow-bee/reportwatch/internal/preferences"
	"github.com/good-yellow-bee/reportwatch/internal/web/session"
	"github.com/good-yellow-bee/reportwatch/internal/web/templates/pages"
)

func (h *Handler) ShowReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view := pages.ReportsView{
		WorkspaceID: q.Get("workspace_id"),
		Search:      q.Get("q"),
		Workspaces:  h.catalog.ListWorkspaces(),
		CanMove:     can(r, models.PermissionMoveReports),
	}
	view.Reports = h.catalog.ListReports(view.WorkspaceID, view.Search)
	h.render(w, r, http.StatusOK, pages.Reports(h.base(r), view))
}

func (h *Handler) MoveReport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	report, err := h.catalog.MoveReport(chi.URLParam(r, "id"), r.PostFormValue("workspace_id"))
	switch {
	case errors.Is(err, powerbi.ErrNotFound), errors.Is(err, powerbi.ErrInvalidMove):
		h.redirect(w, r, "/reports", session.FlashError, err.Error())
	case err != nil:
		h.serverError(w, "move report", err)
	default:
		ws := report.WorkspaceID
		if target, ok := h.catalog.GetWorkspace(ws); ok {
			ws = target.Name
		}
		h.redirect(w, r, "/reports", session.FlashSuccess, report.Name+" moved to "+ws)
	}
}

func (h *Handler) ShowWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces := h.catalog.ListWorkspaces()
	out := make([]pages.WorkspaceSummary, len(workspaces))
	for i, ws := range workspaces {
		out[i] = pages.WorkspaceSummary{
			Workspace: ws,
			Reports:   len(h.catalog.ListReports(ws.ID, "")),
		}
	}
	h.render(w, r, http.StatusOK, pages.Workspaces(h.base(r), out))
}

// ShowCatalog renders data sources, datasets and table definitions.
func (h *Handler) ShowCatalog(w http.ResponseWriter, r *http.Request) {
	h.renderCatalog(w, r, http.StatusOK, pages.TableForm{}, "")
}

func (h *Handler) renderCatalog(w http.ResponseWriter, r *http.Request, status int, form pages.TableForm, errMsg string) {
	tables, err := h.prefs.Tables(r.Context())
	if err != nil {
		h.serverError(w, "list catalog tables", err)
		return
	}
	h.render(w, r, status, pages.Catalog(h.base(r), pages.CatalogView{
		DataSources: h.catalog.ListDataSources(),
		Datasets:    h.catalog.ListDatasets(),
		Tables:      tables,
		Form:        form,
		Error:       errMsg,
		CanManage:   can(r, models.PermissionManageCatalog),
	}))
}

// ParseColumns reads one column per line as "name type description".
// Blank lines are skipped.
func ParseColumns(text string) []models.CatalogColumn {
	var cols []models.CatalogColumn
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		col := models.CatalogColumn{Name: fields[0]}
		if len(fields) > 1 {
			col.Type = fields[1]
		}
		if len(fields) > 2 {
			col.Description = strings.Join(fields[2:], " ")
		}
		cols = append(cols, col)
	}
	return cols
}

func (h *Handler) PutTable(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	form := pages.TableForm{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Owner:       strings.TrimSpace(r.PostFormValue("owner")),
		Columns:     r.PostFormValue("columns"),
	}
	table, err := h.prefs.PutTable(r.Context(), form.Name, models.CatalogTable{
		Description: form.Description,
		Owner:       form.Owner,
		Columns:     ParseColumns(form.Columns),
	})
	if err != nil {
		var verr *preferences.ValidationError
		if errors.As(err, &verr) {
			h.renderCatalog(w, r, http.StatusBadRequest, form, verr.Error())
			return
		}
		h.serverError(w, "put catalog table", err)
		return
	}
	h.redirect(w, r, "/catalog", session.FlashSuccess, "Table "+table.Name+" saved")
}

func (h *Handler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.prefs.DeleteTable(r.Context(), name)
	switch {
	case errors.Is(err, preferences.ErrNotFound):
		h.NotFound(w, r)
	case err != nil:
		h.serverError(w, "delete catalog table", err)
	default:
		h.redirect(w, r, "/catalog", session.FlashSuccess, "Table "+name+" deleted")
	}
}

func (h *Handler) MigrateDataSource(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	ds, err := h.catalog.MigrateDataSource(chi.URLParam(r, "id"), powerbi.Migration{
		Type: r.PostFormValue("type"),
		Host: r.PostFormValue("host"),
	})
	switch {
	case errors.Is(err, powerbi.ErrNotFound), errors.Is(err, powerbi.ErrInvalidMigration):
		h.redirect(w, r, "/catalog", session.FlashError, err.Error())
	case err != nil:
		h.serverError(w, "migrate data source", err)
	default:
		h.redirect(w, r, "/catalog", session.FlashSuccess, ds.Name+" migrated to "+ds.Type+" on "+ds.Host)
	}
}

// ShowAdmin renders the admin console client list.
func (h *Handler) ShowAdmin(w http.ResponseWriter, r *http.Request) {
	h.renderAdmin(w, r, http.StatusOK, pages.ClientForm{Plan: "free"}, "")
}

func (h *Handler) renderAdmin(w http.ResponseWriter, r *http.Request, status int, form pages.ClientForm, errMsg string) {
	clients, err := h.prefs.Clients(r.Context())
	if err != nil {
		h.serverError(w, "list clients", err)
		return
	}
	h.render(w, r, status, pages.Admin(h.base(r), pages.AdminView{
		Clients: clients,
		Form:    form,
		Error:   errMsg,
	}))
}

func (h *Handler) AddClient(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	form := pages.ClientForm{
		Name:  r.PostFormValue("name"),
		Email: r.PostFormValue("email"),
		Plan:  r.PostFormValue("plan"),
	}
	client, err := h.prefs.AddClient(r.Context(), models.AdminClient{
		Name:   form.Name,
		Email:  form.Email,
		Plan:   form.Plan,
		Active: r.PostFormValue("active") == "true",
	})
	var verr *preferences.ValidationError
	switch {
	case errors.As(err, &verr):
		h.renderAdmin(w, r, http.StatusBadRequest, form, verr.Error())
	case errors.Is(err, preferences.ErrConflict):
		h.renderAdmin(w, r, http.StatusConflict, form, "a client with this email already exists")
	case err != nil:
		h.serverError(w, "add client", err)
	default:
		h.redirect(w, r, "/admin", session.FlashSuccess, "Client "+client.Name+" added")
	}
}

func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	err := h.prefs.DeleteClient(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, preferences.ErrNotFound):
		h.NotFound(w, r)
	case err != nil:
		h.serverError(w, "delete client", err)
	default:
		h.redirect(w, r, "/admin", session.FlashSuccess, "Client removed")
	}
}
