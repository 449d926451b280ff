package ui

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"qcgallery/app"
	"qcgallery/domain/inspection"

	"github.com/google/uuid"
)

type paginationResponse struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

type inspectionsResponse struct {
	Inspections []inspection.Inspection `json:"inspections"`
	Pagination  paginationResponse      `json:"pagination"`
	Stats       inspection.Stats        `json:"stats"`
	Summary     app.PageSummary         `json:"summary"`
	FilterKey   string                  `json:"filter_key"`
}

type filterOptionsResponse struct {
	app.FilterOptions
	Errors []string `json:"errors,omitempty"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleFactories(w http.ResponseWriter, r *http.Request) {
	factories, err := a.catalog.ListFactories(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"factories": factories})
}

// handleFilterOptions always answers 200; unavailable sources leave their
// lists empty and are reported in errors.
func (a *App) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := a.catalog.FilterOptions(r.Context())
	resp := filterOptionsResponse{FilterOptions: opts}
	if err != nil {
		a.logger.Warn("filter options degraded: %v", err)
		resp.Errors = []string{err.Error()}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleInspections(w http.ResponseWriter, r *http.Request) {
	res, err := a.runQuery(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inspectionsResponse{
		Inspections: res.Page.Items,
		Pagination: paginationResponse{
			Page:       res.Page.Page,
			PerPage:    res.Page.PageSize,
			TotalCount: res.Page.TotalMatching,
			TotalPages: res.Page.TotalPages,
		},
		Stats:     res.Stats,
		Summary:   res.Summary,
		FilterKey: res.Page.FilterKey,
	})
}

// runQuery parses the request filters and applies the page reset rule
// against the filter_key the client last saw.
func (a *App) runQuery(r *http.Request) (*app.QueryResult, error) {
	spec, err := a.requestSpec(r)
	if err != nil {
		return nil, err
	}
	return a.query.QueryPage(r.Context(), spec)
}

func (a *App) requestSpec(r *http.Request) (inspection.FilterSpec, error) {
	q := r.URL.Query()
	params, err := parseFilterParams(q, a.config.DefaultPageSize)
	if err != nil {
		return inspection.FilterSpec{}, err
	}
	spec, err := params.Spec()
	if err != nil {
		return inspection.FilterSpec{}, err
	}
	return a.query.NavigateByKey(q.Get("filter_key"), spec), nil
}

func (a *App) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	res, err := a.runQuery(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := a.exporter.WriteXLSX(&buf, res.Page, res.Stats, activeFilters(r.URL.Query())); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.sendAttachment(w, buf.Bytes(), "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

func (a *App) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	spec, err := a.requestSpec(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	page, err := a.query.Rows(r.Context(), spec)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := a.exporter.WriteCSV(&buf, page); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.sendAttachment(w, buf.Bytes(), "csv", "text/csv")
}

func (a *App) sendAttachment(w http.ResponseWriter, data []byte, ext, contentType string) {
	name := fmt.Sprintf("inspections-%s.%s", uuid.NewString()[:8], ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *App) handleImage(w http.ResponseWriter, r *http.Request) {
	img, err := a.images.Fetch(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
