package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func seedEstimate(t *testing.T, db *sql.DB, createdAt, identity, kind, title string, total float64) int64 {
	t.Helper()

	res, err := db.Exec(`
		INSERT INTO estimates (reference, identity, kind, title, inputs_json, lines_json, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), identity, kind, title,
		`[{"Label":"Length (m)","Value":"3"}]`,
		`[{"Name":"Cement","Quantity":10,"Unit":"bags","Price":950}]`,
		total, createdAt)
	if err != nil {
		t.Fatalf("seed estimate: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("read seeded estimate id: %v", err)
	}
	return id
}

func TestListEstimatesOrdersByDateDescAndScopesToIdentity(t *testing.T) {
	srv := newTestServer(t)

	seedEstimate(t, srv.db, "2025-03-01 10:00:00", "jane@example.com", "concrete", "Slab", 100)
	seedEstimate(t, srv.db, "2025-03-03 10:00:00", "jane@example.com", "walling", "Boundary wall", 300)
	seedEstimate(t, srv.db, "2025-03-02 10:00:00", "jane@example.com", "plaster", "Bedroom", 200)
	seedEstimate(t, srv.db, "2025-03-04 10:00:00", "someone@else.com", "concrete", "Not hers", 999)

	items, err := srv.listEstimates("jane@example.com", "")
	if err != nil {
		t.Fatalf("listEstimates returned error: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 estimates, got %d", len(items))
	}
	if items[0].Title != "Boundary wall" || items[1].Title != "Bedroom" || items[2].Title != "Slab" {
		t.Fatalf("estimates are not sorted desc by created_at: %+v", items)
	}
	if items[0].Total != 300 {
		t.Fatalf("unexpected total: %+v", items[0])
	}
}

func TestListEstimatesFiltersByTitleAndKind(t *testing.T) {
	srv := newTestServer(t)

	seedEstimate(t, srv.db, "2025-03-01 10:00:00", "jane@example.com", "concrete", "Slab", 100)
	seedEstimate(t, srv.db, "2025-03-02 10:00:00", "jane@example.com", "walling", "Boundary wall", 300)
	seedEstimate(t, srv.db, "2025-03-03 10:00:00", "jane@example.com", "plaster", "Wall finish", 200)

	byTitle, err := srv.listEstimates("jane@example.com", "Slab")
	if err != nil {
		t.Fatalf("listEstimates title filter returned error: %v", err)
	}
	if len(byTitle) != 1 || byTitle[0].Kind != "concrete" {
		t.Fatalf("expected 1 estimate filtered by title, got %+v", byTitle)
	}

	// "wall" matches the walling kind and the "Wall finish" title.
	byKind, err := srv.listEstimates("jane@example.com", "wall")
	if err != nil {
		t.Fatalf("listEstimates kind filter returned error: %v", err)
	}
	if len(byKind) != 2 {
		t.Fatalf("expected 2 estimates filtered by kind/title, got %+v", byKind)
	}
}

func TestGetEstimateReadsSnapshotWithoutRecalculation(t *testing.T) {
	srv := newTestServer(t)

	id := seedEstimate(t, srv.db, "2025-03-01 10:00:00", "jane@example.com", "concrete", "Slab", 9500)

	// Rates change after the estimate was saved; the snapshot must not move.
	if _, err := srv.db.Exec(`UPDATE material_rates SET price = 9999 WHERE kind = 'cement'`); err != nil {
		t.Fatalf("update cement rate: %v", err)
	}

	detail, err := srv.getEstimate("jane@example.com", id)
	if err != nil {
		t.Fatalf("getEstimate returned error: %v", err)
	}
	if len(detail.Lines) != 1 || detail.Lines[0].Price != 950 {
		t.Fatalf("expected the snapshot price 950, got %+v", detail.Lines)
	}
	if detail.Total != 9500 {
		t.Fatalf("expected snapshot total 9500, got %v", detail.Total)
	}
	if len(detail.Inputs) != 1 || detail.Inputs[0].Label != "Length (m)" {
		t.Fatalf("unexpected inputs: %+v", detail.Inputs)
	}
}

func TestGetEstimateHidesOtherIdentities(t *testing.T) {
	srv := newTestServer(t)

	id := seedEstimate(t, srv.db, "2025-03-01 10:00:00", "jane@example.com", "concrete", "Slab", 100)

	_, err := srv.getEstimate("intruder@example.com", id)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows for a foreign identity, got %v", err)
	}
}

func estimateRequest(t *testing.T, srv *server, id string, identity string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/estimates/"+id, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	if identity != "" {
		identifyRequest(t, srv, req, identity)
	}
	return req
}

func TestHandleEstimateDetailUnknownIDReturns404(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.handleEstimateDetail(rr, estimateRequest(t, srv, "999", ""))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleEstimateDetailRejectsBadID(t *testing.T) {
	srv := newTestServer(t)

	rr := httptest.NewRecorder()
	srv.handleEstimateDetail(rr, estimateRequest(t, srv, "not-a-number", ""))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleEstimatePDFReturnsAttachment(t *testing.T) {
	srv := newTestServer(t)

	id := seedEstimate(t, srv.db, "2025-03-01 10:00:00", "jane@example.com", "concrete", "Slab", 9500)

	rr := httptest.NewRecorder()
	srv.handleEstimatePDF(rr, estimateRequest(t, srv, "1", "jane@example.com"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for estimate %d, got %d", id, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("expected attachment disposition, got %q", cd)
	}
	if !strings.HasPrefix(rr.Body.String(), "%PDF-") {
		t.Fatalf("body does not look like a PDF")
	}
}

func TestHandleEstimateXLSXReturnsWorkbook(t *testing.T) {
	srv := newTestServer(t)

	seedEstimate(t, srv.db, "2025-03-01 10:00:00", "jane@example.com", "concrete", "Slab", 9500)

	rr := httptest.NewRecorder()
	srv.handleEstimateXLSX(rr, estimateRequest(t, srv, "1", "jane@example.com"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("expected a spreadsheet content type, got %q", ct)
	}
	// XLSX files are zip archives.
	if !strings.HasPrefix(rr.Body.String(), "PK") {
		t.Fatalf("body does not look like an XLSX archive")
	}
}
