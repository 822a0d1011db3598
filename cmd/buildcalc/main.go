// buildcalc is the operator CLI: run the material estimators from a shell,
// and manage the database the web app serves from.
//
// Usage:
//
//	buildcalc estimate concrete --length 4 --width 3 --depth 0.15 --ratio 1:2:4
//	buildcalc estimate walling --length 6 --height 3 --size 360x180x180
//	buildcalc migrate
//	buildcalc seed
package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/wanjohi/buildcalc/internal/db"
	"github.com/wanjohi/buildcalc/internal/estimate"
	"github.com/wanjohi/buildcalc/internal/materials"
	"github.com/wanjohi/buildcalc/internal/migrations"
	"github.com/wanjohi/buildcalc/internal/seed"
)

func main() {
	app := &cli.App{
		Name:  "buildcalc",
		Usage: "construction material estimates and database maintenance",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   "./buildcalc.db",
				Usage:   "Path to the SQLite database",
				EnvVars: []string{"DB_PATH"},
			},
		},
		Commands: []*cli.Command{
			estimateCommand(),
			migrateCommand(),
			seedCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func estimateCommand() *cli.Command {
	offline := &cli.BoolFlag{
		Name:  "offline",
		Usage: "Use the built-in default rates instead of the database",
	}

	return &cli.Command{
		Name:  "estimate",
		Usage: "Run one of the calculators and print the material lines",
		Subcommands: []*cli.Command{
			{
				Name:  "excavation",
				Usage: "Volume and labour cost for a dig",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "length", Usage: "Length in m", Required: true},
					&cli.Float64Flag{Name: "width", Usage: "Width in m", Required: true},
					&cli.Float64Flag{Name: "depth", Usage: "Depth in m", Required: true},
					&cli.Float64Flag{Name: "rate", Usage: "Labour rate per m³"},
				},
				Action: func(c *cli.Context) error {
					est, err := estimate.Excavation{
						Length: c.Float64("length"),
						Width:  c.Float64("width"),
						Depth:  c.Float64("depth"),
						Rate:   c.Float64("rate"),
					}.Estimate()
					if err != nil {
						return err
					}
					printEstimate(est)
					return nil
				},
			},
			{
				Name:  "walling",
				Usage: "Blocks for a wall face, priced from the catalog",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "length", Usage: "Wall length in m", Required: true},
					&cli.Float64Flag{Name: "height", Usage: "Wall height in m", Required: true},
					&cli.StringFlag{Name: "size", Value: "360x180x180", Usage: "Block size LxTxH in mm"},
					offline,
				},
				Action: func(c *cli.Context) error {
					cat, _, err := openCatalog(c)
					if err != nil {
						return err
					}
					est, err := estimate.Walling{
						Length: c.Float64("length"),
						Height: c.Float64("height"),
						Size:   c.String("size"),
					}.Estimate(cat)
					if err != nil {
						return err
					}
					printEstimate(est)
					return nil
				},
			},
			{
				Name:  "concrete",
				Usage: "Cement, sand and ballast for a cast volume",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "length", Usage: "Length in m", Required: true},
					&cli.Float64Flag{Name: "width", Usage: "Width in m", Required: true},
					&cli.Float64Flag{Name: "depth", Usage: "Depth in m", Required: true},
					&cli.StringFlag{Name: "ratio", Value: "1:2:4", Usage: "Mix ratio cement:sand:ballast"},
					&cli.Float64Flag{Name: "dry-factor", Usage: "Wet-to-dry factor (defaults to the configured value)"},
					offline,
				},
				Action: func(c *cli.Context) error {
					cat, st, err := openCatalog(c)
					if err != nil {
						return err
					}
					factor := st.ConcreteDryFactor
					if c.IsSet("dry-factor") {
						factor = c.Float64("dry-factor")
					}
					est, err := estimate.Concrete{
						Length:    c.Float64("length"),
						Width:     c.Float64("width"),
						Depth:     c.Float64("depth"),
						Ratio:     c.String("ratio"),
						DryFactor: factor,
					}.Estimate(cat)
					if err != nil {
						return err
					}
					printEstimate(est)
					return nil
				},
			},
			{
				Name:  "plaster",
				Usage: "Cement and sand for a plastered area",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "area", Usage: "Wall area in m²", Required: true},
					&cli.Float64Flag{Name: "thickness", Value: 0.012, Usage: "Coat thickness in m"},
					&cli.StringFlag{Name: "ratio", Value: "1:4", Usage: "Mix ratio cement:sand"},
					&cli.Float64Flag{Name: "dry-factor", Usage: "Wet-to-dry factor (defaults to the configured value)"},
					offline,
				},
				Action: func(c *cli.Context) error {
					cat, st, err := openCatalog(c)
					if err != nil {
						return err
					}
					factor := st.PlasterDryFactor
					if c.IsSet("dry-factor") {
						factor = c.Float64("dry-factor")
					}
					est, err := estimate.Plaster{
						Area:      c.Float64("area"),
						Thickness: c.Float64("thickness"),
						Ratio:     c.String("ratio"),
						DryFactor: factor,
					}.Estimate(cat)
					if err != nil {
						return err
					}
					printEstimate(est)
					return nil
				},
			},
			{
				Name:  "blocks",
				Usage: "Price a run of blocks and report coverage figures",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "count", Usage: "Number of blocks", Required: true},
					&cli.Float64Flag{Name: "price", Usage: "Price per block", Required: true},
					&cli.StringFlag{Name: "size", Value: "360x180x180", Usage: "Block size LxTxH in mm"},
				},
				Action: func(c *cli.Context) error {
					job := estimate.BlockWork{
						Count: c.Float64("count"),
						Price: c.Float64("price"),
						Size:  c.String("size"),
					}
					res, err := job.Result()
					if err != nil {
						return err
					}
					est, err := job.Estimate()
					if err != nil {
						return err
					}
					printEstimate(est)
					fmt.Printf("Solid volume: %s m³\n", materials.FormatAmount(res.VolumePerRun))
					fmt.Printf("Coverage: %s blocks per m²\n", materials.FormatAmount(res.PerSquareMetre))
					return nil
				},
			},
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Action: func(c *cli.Context) error {
			database, err := db.Open(c.String("db"))
			if err != nil {
				return err
			}
			defer database.Close()

			if err := migrations.Up(database); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Insert the default rates, settings, and admin account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "admin-email",
				Usage:   "Admin account email",
				EnvVars: []string{"ADMIN_EMAIL"},
			},
			&cli.StringFlag{
				Name:    "admin-password",
				Usage:   "Admin account password",
				EnvVars: []string{"ADMIN_PASSWORD"},
			},
		},
		Action: func(c *cli.Context) error {
			database, err := db.Open(c.String("db"))
			if err != nil {
				return err
			}
			defer database.Close()

			stats, err := seed.Run(database, seed.Config{
				AdminEmail:    c.String("admin-email"),
				AdminPassword: c.String("admin-password"),
			})
			if err != nil {
				return err
			}
			fmt.Printf("seed complete, %d rows inserted\n", stats.Inserts)
			return nil
		},
	}
}

// openCatalog loads the material catalog and settings, from the database or
// from the built-in defaults with --offline.
func openCatalog(c *cli.Context) (materials.Catalog, seed.Settings, error) {
	if c.Bool("offline") {
		return materials.NewCatalog(seed.DefaultRates()...), seed.DefaultSettings(), nil
	}

	database, err := db.Open(c.String("db"))
	if err != nil {
		return nil, seed.Settings{}, err
	}
	defer database.Close()

	cat, err := readCatalog(database)
	if err != nil {
		return nil, seed.Settings{}, err
	}
	st, err := readSettings(database)
	if err != nil {
		return nil, seed.Settings{}, err
	}
	return cat, st, nil
}

func readCatalog(database *sql.DB) (materials.Catalog, error) {
	rows, err := database.Query(`
		SELECT kind, name, unit, price, factor
		FROM material_rates
		WHERE active = 1
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query material rates: %w", err)
	}
	defer rows.Close()

	var entries []materials.CatalogEntry
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

func readSettings(database *sql.DB) (seed.Settings, error) {
	var st seed.Settings
	err := database.QueryRow(`
		SELECT concrete_dry_factor, plaster_dry_factor, free_limit, plan_price, currency
		FROM settings WHERE id = 1
	`).Scan(&st.ConcreteDryFactor, &st.PlasterDryFactor, &st.FreeLimit, &st.PlanPrice, &st.Currency)
	if err != nil {
		return seed.Settings{}, fmt.Errorf("query settings (run `buildcalc seed` first): %w", err)
	}
	return st, nil
}

func printEstimate(est estimate.Estimate) {
	fmt.Println(est.Title)
	for _, in := range est.Inputs {
		fmt.Printf("  %s: %s\n", in.Label, in.Value)
	}
	fmt.Println()
	for _, line := range est.Descriptions() {
		fmt.Println(line)
	}
	fmt.Printf("Total: %s\n", materials.FormatAmount(est.Total))
}
