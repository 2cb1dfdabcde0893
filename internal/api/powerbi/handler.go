// Package powerbi serves the Power BI catalog endpoints.
package powerbi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/reportwatch/internal/api/respond"
	"github.com/good-yellow-bee/reportwatch/internal/datasource"
	"github.com/good-yellow-bee/reportwatch/internal/models"
	"github.com/good-yellow-bee/reportwatch/internal/powerbi"
)

// ConnectionTester pings a data source.
type ConnectionTester interface {
	Test(ctx context.Context, ds models.DataSource, creds datasource.Credentials) (*datasource.Result, error)
}

// Handler handles catalog endpoints.
type Handler struct {
	catalog *powerbi.Catalog
	tester  ConnectionTester
}

// NewHandler creates a catalog handler.
func NewHandler(catalog *powerbi.Catalog, tester ConnectionTester) *Handler {
	return &Handler{catalog: catalog, tester: tester}
}

// MoveRequest is the body of a report move.
type MoveRequest struct {
	WorkspaceID string `json:"workspace_id"`
}

// ReportDetail is a report with its datasets.
type ReportDetail struct {
	models.Report
	Datasets []models.Dataset `json:"datasets"`
}

// ListWorkspaces returns all workspaces.
func (h *Handler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	respond.OK(w, h.catalog.ListWorkspaces())
}

// GetWorkspace returns one workspace.
func (h *Handler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.catalog.GetWorkspace(chi.URLParam(r, "id"))
	if !ok {
		respond.Fail(w, respond.NotFound("workspace not found"))
		return
	}
	respond.OK(w, ws)
}

// ListReports returns reports, optionally filtered by workspace_id and q.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	respond.OK(w, h.catalog.ListReports(q.Get("workspace_id"), q.Get("q")))
}

// GetReport returns a report with its datasets.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, ok := h.catalog.GetReport(id)
	if !ok {
		respond.Fail(w, respond.NotFound("report not found"))
		return
	}
	datasets, err := h.catalog.ReportDatasets(id)
	if err != nil {
		respond.Internal(w, "report datasets", err)
		return
	}
	respond.OK(w, ReportDetail{Report: *report, Datasets: datasets})
}

// MoveReport moves a report to another workspace.
func (h *Handler) MoveReport(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	if req.WorkspaceID == "" {
		respond.Fail(w, respond.Validation("validation failed", map[string]string{"workspace_id": "target workspace is required"}))
		return
	}
	report, err := h.catalog.MoveReport(chi.URLParam(r, "id"), req.WorkspaceID)
	if err != nil {
		fail(w, "move report", err)
		return
	}
	respond.OK(w, report)
}

// GetDataset returns a dataset.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.catalog.GetDataset(chi.URLParam(r, "id"))
	if !ok {
		respond.Fail(w, respond.NotFound("dataset not found"))
		return
	}
	respond.OK(w, ds)
}

// ListDataSources returns all data sources.
func (h *Handler) ListDataSources(w http.ResponseWriter, r *http.Request) {
	respond.OK(w, h.catalog.ListDataSources())
}

// TestDataSource pings a data source with the supplied credentials. A failed
// ping is still a 200 with ok=false.
func (h *Handler) TestDataSource(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.catalog.GetDataSource(chi.URLParam(r, "id"))
	if !ok {
		respond.Fail(w, respond.NotFound("data source not found"))
		return
	}
	var creds datasource.Credentials
	if err := respond.Decode(w, r, &creds); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	res, err := h.tester.Test(r.Context(), *ds, creds)
	if err != nil {
		respond.Fail(w, respond.BadRequest(err.Error()))
		return
	}
	respond.OK(w, res)
}

// MigrateDataSource repoints a data source.
func (h *Handler) MigrateDataSource(w http.ResponseWriter, r *http.Request) {
	var m powerbi.Migration
	if err := respond.Decode(w, r, &m); err != nil {
		respond.Fail(w, respond.ErrInvalidBody)
		return
	}
	ds, err := h.catalog.MigrateDataSource(chi.URLParam(r, "id"), m)
	if err != nil {
		fail(w, "migrate data source", err)
		return
	}
	respond.OK(w, ds)
}

func fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, powerbi.ErrNotFound):
		respond.Fail(w, respond.NotFound(err.Error()))
	case errors.Is(err, powerbi.ErrInvalidMove), errors.Is(err, powerbi.ErrInvalidMigration):
		respond.Fail(w, respond.BadRequest(err.Error()))
	default:
		respond.Internal(w, op, err)
	}
}
