package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// materialRate is one editable row of the rate card.
type materialRate struct {
	ID     int64
	Kind   string
	Name   string
	Unit   string
	Price  float64
	Factor float64
	Active bool
}

// settings is the singleton row of tunables the admin screen edits.
type settings struct {
	ConcreteDryFactor float64
	PlasterDryFactor  float64
	FreeLimit         int
	PlanPrice         string
	Currency          string
}

// adminOnly redirects unauthenticated requests to the admin login page.
func (s *server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.isAdmin(r) {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleAdminLoginForm(w http.ResponseWriter, r *http.Request) {
	if s.auth.isAdmin(r) {
		http.Redirect(w, r, "/admin/rates", http.StatusSeeOther)
		return
	}
	s.renderTemplate(w, "admin_login.html", adminLoginViewData{baseViewData: queryMessages(r)})
}

func (s *server) handleAdminLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	password := r.FormValue("password")

	valid, err := s.auth.validateAdminCredentials(email, password)
	if err != nil {
		s.log.Error("admin credential check failed", "err", err)
		http.Error(w, "authentication error", http.StatusInternalServerError)
		return
	}
	if !valid {
		w.WriteHeader(http.StatusUnauthorized)
		s.renderTemplate(w, "admin_login.html", adminLoginViewData{
			baseViewData: baseViewData{ErrorMessage: "Invalid email or password."},
		})
		return
	}

	s.auth.setAdminCookie(w, email)
	http.Redirect(w, r, "/admin/rates", http.StatusSeeOther)
}

func (s *server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearAdminCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handleAdminRatesForm(w http.ResponseWriter, r *http.Request) {
	rates, err := s.listRates()
	if err != nil {
		s.log.Error("rates load failed", "err", err)
		http.Error(w, "failed to load rates", http.StatusInternalServerError)
		return
	}
	st, err := s.getSettings()
	if err != nil {
		s.log.Error("settings load failed", "err", err)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "admin_rates.html", adminRatesViewData{
		baseViewData: queryMessages(r),
		Rates:        rates,
		Settings:     st,
	})
}

func (s *server) handleAdminSettingsSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	st, err := parseSettingsForm(r)
	if err != nil {
		redirectWithError(w, r, "/admin/rates", err)
		return
	}

	if err := s.updateSettings(st); err != nil {
		s.log.Error("settings update failed", "err", err)
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/rates?success=Settings+saved", http.StatusSeeOther)
}

func (s *server) handleAdminRateSubmit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid rate id", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	rate, err := parseRateForm(r)
	if err != nil {
		redirectWithError(w, r, "/admin/rates", err)
		return
	}

	res, err := s.db.Exec(`
		UPDATE material_rates
		SET name = ?, unit = ?, price = ?, factor = ?, active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, rate.Name, rate.Unit, rate.Price, rate.Factor, rate.Active, id)
	if err != nil {
		s.log.Error("rate update failed", "id", id, "err", err)
		http.Error(w, "failed to save rate", http.StatusInternalServerError)
		return
	}
	affected, err := res.RowsAffected()
	if err != nil {
		s.log.Error("rate update failed", "id", id, "err", err)
		http.Error(w, "failed to save rate", http.StatusInternalServerError)
		return
	}
	if affected == 0 {
		http.NotFound(w, r)
		return
	}

	http.Redirect(w, r, "/admin/rates?success=Rate+updated", http.StatusSeeOther)
}

// parseRateForm validates the editable fields of a rate row. Kind is fixed at
// seed time so the calculators always find the rows they expect.
func parseRateForm(r *http.Request) (materialRate, error) {
	var rate materialRate

	rate.Name = strings.TrimSpace(r.FormValue("name"))
	if rate.Name == "" {
		return materialRate{}, fmt.Errorf("name is required")
	}
	rate.Unit = strings.TrimSpace(r.FormValue("unit"))
	if rate.Unit == "" {
		return materialRate{}, fmt.Errorf("unit is required")
	}

	price, err := parsePositiveFloat(r.FormValue("price"), "price")
	if err != nil {
		return materialRate{}, err
	}
	rate.Price = price

	factor, err := parseNonNegativeFloat(r.FormValue("factor"), "factor")
	if err != nil {
		return materialRate{}, err
	}
	rate.Factor = factor

	rate.Active = r.FormValue("active") == "1"
	return rate, nil
}

func parseSettingsForm(r *http.Request) (settings, error) {
	var st settings

	concrete, err := parsePositiveFloat(r.FormValue("concrete_dry_factor"), "concrete_dry_factor")
	if err != nil {
		return settings{}, err
	}
	st.ConcreteDryFactor = concrete

	plaster, err := parsePositiveFloat(r.FormValue("plaster_dry_factor"), "plaster_dry_factor")
	if err != nil {
		return settings{}, err
	}
	st.PlasterDryFactor = plaster

	limit, err := parseNonNegativeInt(r.FormValue("free_limit"), "free_limit")
	if err != nil {
		return settings{}, err
	}
	st.FreeLimit = limit

	price, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("plan_price")))
	if err != nil || !price.IsPositive() {
		return settings{}, fmt.Errorf("plan_price must be a positive amount")
	}
	st.PlanPrice = price.StringFixed(2)

	currency := strings.ToUpper(strings.TrimSpace(r.FormValue("currency")))
	if len(currency) != 3 {
		return settings{}, fmt.Errorf("currency must be a 3-letter code")
	}
	st.Currency = currency

	return st, nil
}

func (s *server) getSettings() (settings, error) {
	var st settings
	err := s.db.QueryRow(`
		SELECT concrete_dry_factor, plaster_dry_factor, free_limit, plan_price, currency
		FROM settings WHERE id = 1
	`).Scan(&st.ConcreteDryFactor, &st.PlasterDryFactor, &st.FreeLimit, &st.PlanPrice, &st.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return settings{}, fmt.Errorf("settings singleton not found; run the seed")
	}
	if err != nil {
		return settings{}, fmt.Errorf("query settings: %w", err)
	}
	return st, nil
}

func (s *server) updateSettings(st settings) error {
	if _, err := s.db.Exec(`
		UPDATE settings
		SET concrete_dry_factor = ?, plaster_dry_factor = ?, free_limit = ?, plan_price = ?, currency = ?
		WHERE id = 1
	`, st.ConcreteDryFactor, st.PlasterDryFactor, st.FreeLimit, st.PlanPrice, st.Currency); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

func (s *server) listRates() ([]materialRate, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, name, unit, price, factor, active
		FROM material_rates ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query rates: %w", err)
	}
	defer rows.Close()

	var rates []materialRate
	for rows.Next() {
		var rate materialRate
		if err := rows.Scan(&rate.ID, &rate.Kind, &rate.Name, &rate.Unit, &rate.Price, &rate.Factor, &rate.Active); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rates: %w", err)
	}
	return rates, nil
}
