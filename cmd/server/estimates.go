package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wanjohi/buildcalc/internal/estimate"
	"github.com/wanjohi/buildcalc/internal/export"
	"github.com/wanjohi/buildcalc/internal/materials"
)

type estimateListItem struct {
	ID        int64
	CreatedAt string
	Kind      string
	Title     string
	Total     float64
}

type estimateDetail struct {
	ID        int64
	Reference string
	Identity  string
	Kind      string
	Title     string
	CreatedAt string
	Inputs    []estimate.Input
	Lines     []materials.Line
	Total     float64
}

func (s *server) handleEstimatesList(w http.ResponseWriter, r *http.Request) {
	identity := s.auth.identity(r)
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	items, err := s.listEstimates(identity, query)
	if err != nil {
		s.log.Error("estimates list failed", "identity", identity, "err", err)
		http.Error(w, "failed to load estimates", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "estimates.html", estimatesViewData{
		baseViewData: queryMessages(r),
		Query:        query,
		Estimates:    items,
	})
}

func (s *server) handleEstimateDetail(w http.ResponseWriter, r *http.Request) {
	detail, ok := s.estimateFromRequest(w, r)
	if !ok {
		return
	}

	st, err := s.getSettings()
	if err != nil {
		s.log.Error("settings load failed", "err", err)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "estimate_detail.html", estimateViewData{
		baseViewData: queryMessages(r),
		Estimate:     detail,
		Currency:     st.Currency,
	})
}

func (s *server) handleEstimateXLSX(w http.ResponseWriter, r *http.Request) {
	detail, ok := s.estimateFromRequest(w, r)
	if !ok {
		return
	}

	doc, err := s.exportDocument(detail)
	if err != nil {
		s.log.Error("estimate export failed", "id", detail.ID, "err", err)
		http.Error(w, "failed to export estimate", http.StatusInternalServerError)
		return
	}

	data, err := doc.XLSX()
	if err != nil {
		s.log.Error("xlsx render failed", "id", detail.ID, "err", err)
		http.Error(w, "failed to render spreadsheet", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.FileName("xlsx")+`"`)
	_, _ = w.Write(data)
}

func (s *server) handleEstimatePDF(w http.ResponseWriter, r *http.Request) {
	detail, ok := s.estimateFromRequest(w, r)
	if !ok {
		return
	}

	doc, err := s.exportDocument(detail)
	if err != nil {
		s.log.Error("estimate export failed", "id", detail.ID, "err", err)
		http.Error(w, "failed to export estimate", http.StatusInternalServerError)
		return
	}

	data, err := doc.PDF()
	if err != nil {
		s.log.Error("pdf render failed", "id", detail.ID, "err", err)
		http.Error(w, "failed to render pdf", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.FileName("pdf")+`"`)
	_, _ = w.Write(data)
}

// estimateFromRequest resolves {id} for the current identity. It writes the
// response itself when the estimate cannot be served.
func (s *server) estimateFromRequest(w http.ResponseWriter, r *http.Request) (estimateDetail, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid estimate id", http.StatusBadRequest)
		return estimateDetail{}, false
	}

	detail, err := s.getEstimate(s.auth.identity(r), id)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return estimateDetail{}, false
	}
	if err != nil {
		s.log.Error("estimate load failed", "id", id, "err", err)
		http.Error(w, "failed to load estimate", http.StatusInternalServerError)
		return estimateDetail{}, false
	}
	return detail, true
}

func (s *server) insertEstimate(identity string, est estimate.Estimate) (int64, error) {
	inputsJSON, err := json.Marshal(est.Inputs)
	if err != nil {
		return 0, fmt.Errorf("encode estimate inputs: %w", err)
	}
	linesJSON, err := json.Marshal(est.Lines)
	if err != nil {
		return 0, fmt.Errorf("encode estimate lines: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO estimates (reference, identity, kind, title, inputs_json, lines_json, total)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), identity, est.Kind, est.Title, string(inputsJSON), string(linesJSON), est.Total)
	if err != nil {
		return 0, fmt.Errorf("insert estimate: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read estimate id: %w", err)
	}
	return id, nil
}

func (s *server) listEstimates(identity, query string) ([]estimateListItem, error) {
	search := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT id, created_at, kind, title, total
		FROM estimates
		WHERE identity = ?
		  AND (? = '' OR title LIKE ? OR kind LIKE ?)
		ORDER BY datetime(created_at) DESC, id DESC
	`, identity, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query estimates: %w", err)
	}
	defer rows.Close()

	items := make([]estimateListItem, 0)
	for rows.Next() {
		var item estimateListItem
		if err := rows.Scan(&item.ID, &item.CreatedAt, &item.Kind, &item.Title, &item.Total); err != nil {
			return nil, fmt.Errorf("scan estimate: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate estimates: %w", err)
	}

	return items, nil
}

// getEstimate reads one saved estimate scoped to its owner. The stored lines
// are a snapshot: later rate edits never change a saved estimate.
func (s *server) getEstimate(identity string, id int64) (estimateDetail, error) {
	var d estimateDetail
	var inputsJSON, linesJSON string
	err := s.db.QueryRow(`
		SELECT id, reference, identity, kind, title, created_at, inputs_json, lines_json, total
		FROM estimates
		WHERE id = ? AND identity = ?
	`, id, identity).Scan(&d.ID, &d.Reference, &d.Identity, &d.Kind, &d.Title, &d.CreatedAt, &inputsJSON, &linesJSON, &d.Total)
	if err != nil {
		return estimateDetail{}, fmt.Errorf("query estimate %d: %w", id, err)
	}

	if err := json.Unmarshal([]byte(inputsJSON), &d.Inputs); err != nil {
		return estimateDetail{}, fmt.Errorf("decode estimate inputs: %w", err)
	}
	if err := json.Unmarshal([]byte(linesJSON), &d.Lines); err != nil {
		return estimateDetail{}, fmt.Errorf("decode estimate lines: %w", err)
	}
	return d, nil
}

func (s *server) exportDocument(d estimateDetail) (export.Document, error) {
	st, err := s.getSettings()
	if err != nil {
		return export.Document{}, err
	}

	createdAt, err := time.Parse(timeLayout, d.CreatedAt)
	if err != nil {
		return export.Document{}, fmt.Errorf("parse estimate timestamp %q: %w", d.CreatedAt, err)
	}

	return export.Document{
		Reference: d.Reference,
		Title:     d.Title,
		CreatedAt: createdAt,
		Currency:  st.Currency,
		Inputs:    d.Inputs,
		Lines:     d.Lines,
		Total:     d.Total,
		ShareURL:  s.baseURL + "/estimates/" + strconv.FormatInt(d.ID, 10),
	}, nil
}
