package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/wanjohi/buildcalc/internal/estimate"
	"github.com/wanjohi/buildcalc/internal/materials"
)

// loadCatalog reads the active material rates into a fresh catalog for one
// request. Computations never share the map, so an admin edit mid-flight
// cannot bleed into a running calculation.
func (s *server) loadCatalog() (materials.Catalog, error) {
	rows, err := s.db.Query(`
		SELECT kind, name, unit, price, factor
		FROM material_rates
		WHERE active = 1
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query material rates: %w", err)
	}
	defer rows.Close()

	entries := make([]materials.CatalogEntry, 0, len(materials.Kinds))
	for rows.Next() {
		var e materials.CatalogEntry
		var kind string
		if err := rows.Scan(&kind, &e.Name, &e.Unit, &e.Price, &e.Factor); err != nil {
			return nil, fmt.Errorf("scan material rate: %w", err)
		}
		e.Kind = materials.Kind(kind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate material rates: %w", err)
	}

	return materials.NewCatalog(entries...), nil
}

func (s *server) renderCalcForm(w http.ResponseWriter, r *http.Request, page string) {
	st, err := s.getSettings()
	if err != nil {
		s.log.Error("settings load failed", "err", err)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	s.renderTemplate(w, page, calcViewData{baseViewData: queryMessages(r), Settings: st})
}

func (s *server) handleExcavationForm(w http.ResponseWriter, r *http.Request) {
	s.renderCalcForm(w, r, "calc_excavation.html")
}

func (s *server) handleExcavationSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	job, err := parseExcavationForm(r)
	if err != nil {
		redirectWithError(w, r, "/calc/excavation", err)
		return
	}

	s.finishEstimate(w, r, "/calc/excavation", func(materials.Catalog) (estimate.Estimate, error) {
		return job.Estimate()
	})
}

func (s *server) handleWallingForm(w http.ResponseWriter, r *http.Request) {
	s.renderCalcForm(w, r, "calc_walling.html")
}

func (s *server) handleWallingSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	job, err := parseWallingForm(r)
	if err != nil {
		redirectWithError(w, r, "/calc/walling", err)
		return
	}

	s.finishEstimate(w, r, "/calc/walling", func(cat materials.Catalog) (estimate.Estimate, error) {
		return job.Estimate(cat)
	})
}

func (s *server) handleConcreteForm(w http.ResponseWriter, r *http.Request) {
	s.renderCalcForm(w, r, "calc_concrete.html")
}

func (s *server) handleConcreteSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	st, err := s.getSettings()
	if err != nil {
		s.log.Error("settings load failed", "err", err)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	job, err := parseConcreteForm(r, st)
	if err != nil {
		redirectWithError(w, r, "/calc/concrete", err)
		return
	}

	s.finishEstimate(w, r, "/calc/concrete", func(cat materials.Catalog) (estimate.Estimate, error) {
		return job.Estimate(cat)
	})
}

func (s *server) handlePlasterForm(w http.ResponseWriter, r *http.Request) {
	s.renderCalcForm(w, r, "calc_plaster.html")
}

func (s *server) handlePlasterSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	st, err := s.getSettings()
	if err != nil {
		s.log.Error("settings load failed", "err", err)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	job, err := parsePlasterForm(r, st)
	if err != nil {
		redirectWithError(w, r, "/calc/plaster", err)
		return
	}

	s.finishEstimate(w, r, "/calc/plaster", func(cat materials.Catalog) (estimate.Estimate, error) {
		return job.Estimate(cat)
	})
}

func parseExcavationForm(r *http.Request) (estimate.Excavation, error) {
	var job estimate.Excavation
	var err error
	if job.Length, err = parsePositiveFloat(r.FormValue("length"), "length"); err != nil {
		return job, err
	}
	if job.Width, err = parsePositiveFloat(r.FormValue("width"), "width"); err != nil {
		return job, err
	}
	if job.Depth, err = parsePositiveFloat(r.FormValue("depth"), "depth"); err != nil {
		return job, err
	}
	if job.Rate, err = parseNonNegativeFloat(r.FormValue("rate"), "rate"); err != nil {
		return job, err
	}
	return job, nil
}

func parseWallingForm(r *http.Request) (estimate.Walling, error) {
	var job estimate.Walling
	var err error
	if job.Length, err = parsePositiveFloat(r.FormValue("length"), "length"); err != nil {
		return job, err
	}
	if job.Height, err = parsePositiveFloat(r.FormValue("height"), "height"); err != nil {
		return job, err
	}

	// Reject a malformed size before the free calculation is consumed.
	job.Size = strings.TrimSpace(r.FormValue("size"))
	if _, err := materials.ParseBlockSize(job.Size); err != nil {
		return job, err
	}
	return job, nil
}

func parseConcreteForm(r *http.Request, st settings) (estimate.Concrete, error) {
	var job estimate.Concrete
	var err error
	if job.Length, err = parsePositiveFloat(r.FormValue("length"), "length"); err != nil {
		return job, err
	}
	if job.Width, err = parsePositiveFloat(r.FormValue("width"), "width"); err != nil {
		return job, err
	}
	if job.Depth, err = parsePositiveFloat(r.FormValue("depth"), "depth"); err != nil {
		return job, err
	}

	// Reject a malformed ratio before the free calculation is consumed.
	job.Ratio = strings.TrimSpace(r.FormValue("ratio"))
	parts, err := estimate.ParseRatio(job.Ratio)
	if err != nil {
		return job, err
	}
	if len(parts) != 3 {
		return job, materials.NewValidationError("ratio", "concrete needs cement:sand:ballast, got %q", job.Ratio)
	}

	job.DryFactor = st.ConcreteDryFactor
	if raw := strings.TrimSpace(r.FormValue("dry_factor")); raw != "" {
		if job.DryFactor, err = parsePositiveFloat(raw, "dry_factor"); err != nil {
			return job, err
		}
	}
	return job, nil
}

func parsePlasterForm(r *http.Request, st settings) (estimate.Plaster, error) {
	var job estimate.Plaster
	var err error
	if job.Area, err = parsePositiveFloat(r.FormValue("area"), "area"); err != nil {
		return job, err
	}
	if job.Thickness, err = parsePositiveFloat(r.FormValue("thickness"), "thickness"); err != nil {
		return job, err
	}

	job.Ratio = strings.TrimSpace(r.FormValue("ratio"))
	parts, err := estimate.ParseRatio(job.Ratio)
	if err != nil {
		return job, err
	}
	if len(parts) != 2 {
		return job, materials.NewValidationError("ratio", "plaster needs cement:sand, got %q", job.Ratio)
	}

	job.DryFactor = st.PlasterDryFactor
	if raw := strings.TrimSpace(r.FormValue("dry_factor")); raw != "" {
		if job.DryFactor, err = parsePositiveFloat(raw, "dry_factor"); err != nil {
			return job, err
		}
	}
	return job, nil
}
