package config

import (
	"log"
	"os"

	"github.com/subosito/gotenv"
)

const (
	defaultEnv         = "dev"
	defaultDBPath      = "./buildcalc.db"
	defaultPort        = "8080"
	defaultBaseURL     = "http://localhost:8080"
	defaultPaystackAPI = "https://api.paystack.co"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env               string
	AdminEmail        string
	AdminPassword     string
	SessionSecret     string
	DBPath            string
	Port              string
	BaseURL           string
	PaystackSecretKey string
	PaystackBaseURL   string
	MetricsEnabled    bool
}

// IsDev reports whether the app runs in development mode. Development mode
// applies migrations and seeds on boot.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	_ = gotenv.Load()

	cfg := Config{
		Env:               os.Getenv("APP_ENV"),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		DBPath:            os.Getenv("DB_PATH"),
		Port:              os.Getenv("PORT"),
		BaseURL:           os.Getenv("BASE_URL"),
		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:   os.Getenv("PAYSTACK_BASE_URL"),
		MetricsEnabled:    os.Getenv("DISABLE_METRICS") == "",
	}

	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PaystackBaseURL == "" {
		cfg.PaystackBaseURL = defaultPaystackAPI
	}

	if cfg.AdminEmail == "" {
		log.Print("warning: ADMIN_EMAIL is not set")
	}
	if cfg.AdminPassword == "" {
		log.Print("warning: ADMIN_PASSWORD is not set")
	}
	if cfg.SessionSecret == "" {
		log.Print("warning: SESSION_SECRET is not set")
	}
	if cfg.PaystackSecretKey == "" {
		log.Print("warning: PAYSTACK_SECRET_KEY is not set; upgrades cannot be purchased")
	}

	return cfg
}
