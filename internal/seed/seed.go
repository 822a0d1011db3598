package seed

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/wanjohi/buildcalc/internal/materials"
)

// Fresh-install defaults: Nairobi retail rates in KES.
const (
	defaultConcreteDryFactor = 1.54
	defaultPlasterDryFactor  = 1.33
	defaultFreeLimit         = 3
	defaultPlanPrice         = "499.00"
	defaultCurrency          = "KES"
)

// DefaultRates is the built-in material catalog used to seed a fresh
// database. The CLI also falls back to it in offline mode, so estimates work
// without a database at hand.
func DefaultRates() []materials.CatalogEntry {
	return []materials.CatalogEntry{
		{Kind: materials.KindCement, Name: "Cement", Unit: "bags", Price: 950, Factor: 28.96},
		{Kind: materials.KindSand, Name: "Sand", Unit: "tons", Price: 2600, Factor: 1.8},
		{Kind: materials.KindBallast, Name: "Ballast", Unit: "tons", Price: 2900, Factor: 2.2},
		{Kind: materials.KindBlock, Name: "Masonry blocks", Unit: "pcs", Price: 85},
	}
}

// Settings is the singleton calculator configuration seeded on first run.
type Settings struct {
	ConcreteDryFactor float64
	PlasterDryFactor  float64
	FreeLimit         int
	PlanPrice         string
	Currency          string
}

// DefaultSettings returns the fresh-install settings row.
func DefaultSettings() Settings {
	return Settings{
		ConcreteDryFactor: defaultConcreteDryFactor,
		PlasterDryFactor:  defaultPlasterDryFactor,
		FreeLimit:         defaultFreeLimit,
		PlanPrice:         defaultPlanPrice,
		Currency:          defaultCurrency,
	}
}

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureRates(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureSettings(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureGuest(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM admins WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`INSERT INTO admins (email, password_hash) VALUES (?, ?)`, email, hashPassword(password)); err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	stats.Inserts++
	return nil
}

// hashPassword must produce the same digest the admin login check computes.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func ensureRates(tx *sql.Tx, stats *Stats) error {
	for _, entry := range DefaultRates() {
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM material_rates WHERE kind = ? LIMIT 1)`, string(entry.Kind)).Scan(&exists); err != nil {
			return fmt.Errorf("check rate %s existence: %w", entry.Kind, err)
		}
		if exists {
			continue
		}

		if _, err := tx.Exec(`
			INSERT INTO material_rates (kind, name, unit, price, factor, active)
			VALUES (?, ?, ?, ?, ?, 1)
		`, string(entry.Kind), entry.Name, entry.Unit, entry.Price, entry.Factor); err != nil {
			return fmt.Errorf("insert rate %s: %w", entry.Kind, err)
		}
		stats.Inserts++
	}
	return nil
}

// ensureGuest creates the shared users row that meters visitors who have not
// identified themselves with an email.
func ensureGuest(tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE identity = 'guest' LIMIT 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check guest existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`INSERT INTO users (identity) VALUES ('guest')`); err != nil {
		return fmt.Errorf("insert guest user: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureSettings(tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM settings WHERE id = 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check settings existence: %w", err)
	}
	if exists {
		return nil
	}

	s := DefaultSettings()
	if _, err := tx.Exec(`
		INSERT INTO settings (id, concrete_dry_factor, plaster_dry_factor, free_limit, plan_price, currency)
		VALUES (1, ?, ?, ?, ?, ?)
	`, s.ConcreteDryFactor, s.PlasterDryFactor, s.FreeLimit, s.PlanPrice, s.Currency); err != nil {
		return fmt.Errorf("insert settings singleton: %w", err)
	}
	stats.Inserts++
	return nil
}
