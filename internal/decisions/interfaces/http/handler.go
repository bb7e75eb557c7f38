package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	decisions "oran-rapps/internal/decisions/domain"
)

const timeLayout = time.RFC3339

// Handler serves the decision history.
type Handler struct {
	store       decisions.Lister
	defaultRApp string
	now         func() time.Time
}

// NewHandler constructs a Handler. defaultRApp is used when the request
// carries no rapp parameter.
func NewHandler(store decisions.Lister, defaultRApp string) (*Handler, error) {
	if store == nil {
		return nil, errors.New("decisions handler: nil store")
	}
	return &Handler{store: store, defaultRApp: defaultRApp, now: time.Now}, nil
}

// List serves GET /api/v1/decisions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	rapp, from, to, err := h.parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.store.List(r.Context(), rapp, from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []decisions.Record{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

// ExportXLSX serves GET /api/v1/decisions/export.xlsx.
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", BuildDecisionsXLSX)
}

// ExportPDF serves GET /api/v1/decisions/export.pdf.
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "pdf", "application/pdf", BuildDecisionsPDF)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, build func(Report) ([]byte, error)) {
	rapp, from, to, err := h.parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list, err := h.store.List(r.Context(), rapp, from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	payload, err := build(Report{RApp: rapp, From: from, To: to, Records: list})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	filename := fmt.Sprintf("decisions-%s-%s.%s", rapp, from.Format("20060102T1504"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(payload)
}

// parseQuery reads rapp, from and to. Missing bounds default to the last
// 24 hours.
func (h *Handler) parseQuery(r *http.Request) (string, time.Time, time.Time, error) {
	rapp := r.URL.Query().Get("rapp")
	if rapp == "" {
		rapp = h.defaultRApp
	}
	if rapp == "" {
		return "", time.Time{}, time.Time{}, errors.New("rapp is required")
	}
	to := h.now().UTC()
	from := to.Add(-24 * time.Hour)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(timeLayout, v)
		if err != nil {
			return "", time.Time{}, time.Time{}, errors.New("from must be RFC3339")
		}
		from = parsed.UTC()
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(timeLayout, v)
		if err != nil {
			return "", time.Time{}, time.Time{}, errors.New("to must be RFC3339")
		}
		to = parsed.UTC()
	}
	if !to.After(from) {
		return "", time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return rapp, from, to, nil
}
