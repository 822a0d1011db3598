package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "ADMIN_EMAIL", "ADMIN_PASSWORD", "SESSION_SECRET",
		"DB_PATH", "PORT", "BASE_URL", "PAYSTACK_SECRET_KEY",
		"PAYSTACK_BASE_URL", "DISABLE_METRICS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Env != "dev" {
		t.Fatalf("Env=%q, want %q", cfg.Env, "dev")
	}
	if cfg.DBPath != "./buildcalc.db" {
		t.Fatalf("DBPath=%q, want %q", cfg.DBPath, "./buildcalc.db")
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port=%q, want %q", cfg.Port, "8080")
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Fatalf("BaseURL=%q, want %q", cfg.BaseURL, "http://localhost:8080")
	}
	if cfg.PaystackBaseURL != "https://api.paystack.co" {
		t.Fatalf("PaystackBaseURL=%q, want %q", cfg.PaystackBaseURL, "https://api.paystack.co")
	}
	if !cfg.MetricsEnabled {
		t.Fatalf("MetricsEnabled=false, want true by default")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("DB_PATH", "/var/lib/buildcalc/app.db")
	t.Setenv("PORT", "9090")
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_live_x")
	t.Setenv("DISABLE_METRICS", "1")

	cfg := Load()

	if cfg.Env != "prod" {
		t.Fatalf("Env=%q, want %q", cfg.Env, "prod")
	}
	if cfg.DBPath != "/var/lib/buildcalc/app.db" {
		t.Fatalf("DBPath=%q", cfg.DBPath)
	}
	if cfg.Port != "9090" {
		t.Fatalf("Port=%q", cfg.Port)
	}
	if cfg.PaystackSecretKey != "sk_live_x" {
		t.Fatalf("PaystackSecretKey=%q", cfg.PaystackSecretKey)
	}
	if cfg.MetricsEnabled {
		t.Fatalf("MetricsEnabled=true with DISABLE_METRICS set")
	}
	if cfg.IsDev() {
		t.Fatalf("IsDev()=true for prod env")
	}
}
