package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func adminRequest(t *testing.T, srv *server, req *http.Request) {
	t.Helper()

	rr := httptest.NewRecorder()
	srv.auth.setAdminCookie(rr, testAdminEmail)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
}

func TestAdminOnlyRedirectsAnonymous(t *testing.T) {
	srv := newTestServer(t)

	reached := false
	probe := srv.adminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	rr := httptest.NewRecorder()
	probe.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/rates", nil))

	if reached {
		t.Fatalf("anonymous request must not reach the handler")
	}
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/admin/login" {
		t.Fatalf("expected redirect to /admin/login, got %q", loc)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/rates", nil)
	adminRequest(t, srv, req)
	probe.ServeHTTP(httptest.NewRecorder(), req)
	if !reached {
		t.Fatalf("an admin session must reach the handler")
	}
}

func TestAdminLoginSubmitSetsSession(t *testing.T) {
	srv := newTestServer(t)

	form := url.Values{}
	form.Set("email", testAdminEmail)
	form.Set("password", testAdminPassword)
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := httptest.NewRecorder()
	srv.handleAdminLoginSubmit(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/admin/rates" {
		t.Fatalf("expected redirect to /admin/rates, got %q", loc)
	}

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == adminCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("admin cookie was not set")
	}
	if _, ok := srv.auth.verifySessionValue(cookie.Value); !ok {
		t.Fatalf("admin cookie does not verify")
	}
}

func TestAdminLoginSubmitRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)

	form := url.Values{}
	form.Set("email", testAdminEmail)
	form.Set("password", "wrong")
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := httptest.NewRecorder()
	srv.handleAdminLoginSubmit(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == adminCookieName {
			t.Fatalf("no admin cookie may be set for bad credentials")
		}
	}
}

func TestAdminRateSubmitUpdatesRow(t *testing.T) {
	srv := newTestServer(t)

	var id int64
	if err := srv.db.QueryRow(`SELECT id FROM material_rates WHERE kind = 'cement'`).Scan(&id); err != nil {
		t.Fatalf("find cement rate: %v", err)
	}
	idParam := strconv.FormatInt(id, 10)

	form := url.Values{}
	form.Set("name", "Bamburi Cement")
	form.Set("unit", "bags")
	form.Set("price", "1020")
	form.Set("factor", "28.96")
	form.Set("active", "1")

	req := httptest.NewRequest(http.MethodPost, "/admin/rates/"+idParam, nil)
	req.Form = form
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", idParam)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rr := httptest.NewRecorder()
	srv.handleAdminRateSubmit(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", rr.Code)
	}

	var name string
	var price float64
	if err := srv.db.QueryRow(`SELECT name, price FROM material_rates WHERE id = ?`, id).Scan(&name, &price); err != nil {
		t.Fatalf("query updated rate: %v", err)
	}
	if name != "Bamburi Cement" || price != 1020 {
		t.Fatalf("rate was not updated: name=%q price=%v", name, price)
	}
}

func TestAdminRateSubmitUnknownIDReturns404(t *testing.T) {
	srv := newTestServer(t)

	form := url.Values{}
	form.Set("name", "Ghost")
	form.Set("unit", "pcs")
	form.Set("price", "1")
	form.Set("factor", "0")

	req := httptest.NewRequest(http.MethodPost, "/admin/rates/999", nil)
	req.Form = form
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "999")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rr := httptest.NewRecorder()
	srv.handleAdminRateSubmit(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAdminSettingsRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	form := url.Values{}
	form.Set("concrete_dry_factor", "1.57")
	form.Set("plaster_dry_factor", "1.30")
	form.Set("free_limit", "5")
	form.Set("plan_price", "650")
	form.Set("currency", "ugx")

	req := httptest.NewRequest(http.MethodPost, "/admin/rates", nil)
	req.Form = form

	rr := httptest.NewRecorder()
	srv.handleAdminSettingsSubmit(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", rr.Code)
	}

	st, err := srv.getSettings()
	if err != nil {
		t.Fatalf("getSettings returned error: %v", err)
	}
	if st.ConcreteDryFactor != 1.57 || st.FreeLimit != 5 {
		t.Fatalf("settings were not updated: %+v", st)
	}
	if st.PlanPrice != "650.00" {
		t.Fatalf("expected normalized plan price 650.00, got %q", st.PlanPrice)
	}
	if st.Currency != "UGX" {
		t.Fatalf("expected uppercased currency, got %q", st.Currency)
	}
}

func TestParseSettingsForm_RejectsBadValues(t *testing.T) {
	base := func() url.Values {
		form := url.Values{}
		form.Set("concrete_dry_factor", "1.54")
		form.Set("plaster_dry_factor", "1.33")
		form.Set("free_limit", "3")
		form.Set("plan_price", "499.00")
		form.Set("currency", "KES")
		return form
	}

	cases := map[string]func(url.Values){
		"negative free limit":  func(f url.Values) { f.Set("free_limit", "-1") },
		"zero plan price":      func(f url.Values) { f.Set("plan_price", "0") },
		"malformed plan price": func(f url.Values) { f.Set("plan_price", "4,99") },
		"long currency":        func(f url.Values) { f.Set("currency", "SHILLING") },
		"nan dry factor":       func(f url.Values) { f.Set("concrete_dry_factor", "NaN") },
	}
	for name, mutate := range cases {
		form := base()
		mutate(form)

		req := httptest.NewRequest(http.MethodPost, "/admin/rates", nil)
		req.Form = form

		if _, err := parseSettingsForm(req); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestParseRateForm_RequiresNameAndUnit(t *testing.T) {
	form := url.Values{}
	form.Set("name", "")
	form.Set("unit", "bags")
	form.Set("price", "950")
	form.Set("factor", "28.96")

	req := httptest.NewRequest(http.MethodPost, "/admin/rates/1", nil)
	req.Form = form

	if _, err := parseRateForm(req); err == nil {
		t.Fatalf("expected validation error for a missing name")
	}

	form.Set("name", "Cement")
	form.Set("unit", " ")
	if _, err := parseRateForm(req); err == nil {
		t.Fatalf("expected validation error for a blank unit")
	}
}

func TestListRatesReadsSeededCatalog(t *testing.T) {
	srv := newTestServer(t)

	rates, err := srv.listRates()
	if err != nil {
		t.Fatalf("listRates returned error: %v", err)
	}
	if len(rates) != 4 {
		t.Fatalf("expected 4 seeded rates, got %d", len(rates))
	}
	if rates[0].Kind != "cement" || !rates[0].Active {
		t.Fatalf("unexpected first rate: %+v", rates[0])
	}
}
