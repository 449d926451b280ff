package ui

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"qcgallery/domain/inspection"
	"qcgallery/internal/errors"
)

// filterParamNames maps query string keys to FilterParams fields
var filterParamNames = []string{"region", "factory", "camera", "prediction", "defect_type", "search", "date_from", "date_to"}

// parseFilterParams reads the filter, page and per_page query parameters.
// Non-numeric page values are validation errors.
func parseFilterParams(q url.Values, defaultPageSize int) (inspection.FilterParams, error) {
	p := inspection.FilterParams{
		Region:     q.Get("region"),
		FactoryID:  q.Get("factory"),
		CameraID:   q.Get("camera"),
		Prediction: q.Get("prediction"),
		DefectType: q.Get("defect_type"),
		SearchText: q.Get("search"),
		DateFrom:   q.Get("date_from"),
		DateTo:     q.Get("date_to"),
		PageSize:   defaultPageSize,
	}
	var err error
	if p.Page, err = intParam(q, "page", 1); err != nil {
		return p, err
	}
	if p.PageSize, err = intParam(q, "per_page", p.PageSize); err != nil {
		return p, err
	}
	return p, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.ValidationError(name + " must be an integer")
	}
	return v, nil
}

// activeFilters echoes the filters that were set, for export metadata
func activeFilters(q url.Values) map[string]string {
	out := map[string]string{}
	for _, name := range filterParamNames {
		if v := q.Get(name); v != "" && v != "All" {
			out[name] = v
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		a.logger.Debug("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorResponse{Error: errors.GetCode(err), Message: err.Error()})
}
