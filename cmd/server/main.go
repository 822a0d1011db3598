package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wanjohi/buildcalc/internal/config"
	"github.com/wanjohi/buildcalc/internal/db"
	"github.com/wanjohi/buildcalc/internal/estimate"
	"github.com/wanjohi/buildcalc/internal/logger"
	"github.com/wanjohi/buildcalc/internal/materials"
	"github.com/wanjohi/buildcalc/internal/metrics"
	"github.com/wanjohi/buildcalc/internal/migrations"
	"github.com/wanjohi/buildcalc/internal/paystack"
	"github.com/wanjohi/buildcalc/internal/quota"
	"github.com/wanjohi/buildcalc/internal/seed"
)

// timeLayout matches the DATETIME strings sqlite writes with
// CURRENT_TIMESTAMP.
const timeLayout = "2006-01-02 15:04:05"

// mxResolver is the slice of net.Resolver the identify flow needs.
type mxResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

type server struct {
	db       *sql.DB
	auth     *authService
	limiter  *quota.Store
	payments *paystack.Client
	resolver mxResolver
	log      *slog.Logger
	baseURL  string
}

type baseViewData struct {
	ErrorMessage   string
	SuccessMessage string
}

type homeViewData struct {
	baseViewData
	Identity  string
	Status    quota.Status
	PlanPrice string
	Currency  string
}

type identifyViewData struct {
	baseViewData
	Email string
}

type calcViewData struct {
	baseViewData
	Settings settings
}

type estimatesViewData struct {
	baseViewData
	Query     string
	Estimates []estimateListItem
}

type estimateViewData struct {
	baseViewData
	Estimate estimateDetail
	Currency string
}

type upgradeViewData struct {
	baseViewData
	Identity  string
	Status    quota.Status
	PlanPrice string
	Currency  string
}

type paymentResultViewData struct {
	baseViewData
	Reference string
	Succeeded bool
}

type adminLoginViewData struct {
	baseViewData
}

type adminRatesViewData struct {
	baseViewData
	Rates    []materialRate
	Settings settings
}

func main() {
	cfg := config.Load()
	logg := logger.New(cfg.Env)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logg.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database); err != nil {
			logg.Error("failed to run database migrations", "err", err)
			os.Exit(1)
		}
	}

	stats, err := seed.Run(database, seed.Config{AdminEmail: cfg.AdminEmail, AdminPassword: cfg.AdminPassword})
	if err != nil {
		logg.Error("failed to seed database", "err", err)
		os.Exit(1)
	}
	if stats.Inserts > 0 {
		logg.Info("seeded database", "inserts", stats.Inserts)
	}

	srv := &server{
		db:       database,
		auth:     newAuthService(database, cfg.SessionSecret),
		limiter:  quota.NewStore(database),
		payments: paystack.New(cfg.PaystackBaseURL, cfg.PaystackSecretKey),
		resolver: &net.Resolver{},
		log:      logg,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
	}

	r := chi.NewRouter()
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	r.Get("/", srv.handleHome)
	r.Get("/identify", srv.handleIdentifyForm)
	r.Post("/identify", srv.handleIdentifySubmit)
	r.Post("/logout", srv.handleLogout)

	r.Get("/calc/excavation", srv.handleExcavationForm)
	r.Post("/calc/excavation", srv.handleExcavationSubmit)
	r.Get("/calc/walling", srv.handleWallingForm)
	r.Post("/calc/walling", srv.handleWallingSubmit)
	r.Get("/calc/concrete", srv.handleConcreteForm)
	r.Post("/calc/concrete", srv.handleConcreteSubmit)
	r.Get("/calc/plaster", srv.handlePlasterForm)
	r.Post("/calc/plaster", srv.handlePlasterSubmit)

	r.Get("/estimates", srv.handleEstimatesList)
	r.Get("/estimates/{id}", srv.handleEstimateDetail)
	r.Get("/estimates/{id}/xlsx", srv.handleEstimateXLSX)
	r.Get("/estimates/{id}/pdf", srv.handleEstimatePDF)

	r.Get("/upgrade", srv.handleUpgradeForm)
	r.Post("/upgrade", srv.handleUpgradeSubmit)
	r.Get("/payments/callback", srv.handlePaymentCallback)
	r.Post("/payments/webhook", srv.handlePaymentWebhook)

	r.Get("/admin/login", srv.handleAdminLoginForm)
	r.Post("/admin/login", srv.handleAdminLoginSubmit)
	r.Group(func(r chi.Router) {
		r.Use(srv.adminOnly)
		r.Post("/admin/logout", srv.handleAdminLogout)
		r.Get("/admin/rates", srv.handleAdminRatesForm)
		r.Post("/admin/rates", srv.handleAdminSettingsSubmit)
		r.Post("/admin/rates/{id}", srv.handleAdminRateSubmit)
	})

	r.Get("/healthz", srv.handleHealthz)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	httpServer := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logg.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logg.Info("shutdown complete")
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	identity := s.auth.identity(r)

	st, err := s.getSettings()
	if err != nil {
		s.log.Error("settings load failed", "err", err)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	status, err := s.limiter.Status(identity)
	if err != nil {
		s.log.Error("quota status failed", "identity", identity, "err", err)
		http.Error(w, "failed to load usage", http.StatusInternalServerError)
		return
	}

	s.renderTemplate(w, "home.html", homeViewData{
		baseViewData: queryMessages(r),
		Identity:     displayIdentity(identity),
		Status:       status,
		PlanPrice:    st.PlanPrice,
		Currency:     st.Currency,
	})
}

func (s *server) handleIdentifyForm(w http.ResponseWriter, r *http.Request) {
	data := identifyViewData{baseViewData: queryMessages(r)}
	data.Email = displayIdentity(s.auth.identity(r))
	s.renderTemplate(w, "identify.html", data)
}

func (s *server) handleIdentifySubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	email, err := normalizeEmail(r.FormValue("email"))
	if err != nil {
		redirectWithError(w, r, "/identify", err)
		return
	}
	if !s.domainAcceptsMail(r.Context(), email) {
		redirectWithError(w, r, "/identify", fmt.Errorf("the domain of %s does not accept mail", email))
		return
	}

	s.auth.setIdentityCookie(w, email)
	http.Redirect(w, r, "/?success="+url.QueryEscape("You are now identified as "+email), http.StatusSeeOther)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearIdentityCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// domainAcceptsMail is a best-effort MX lookup. Only a definitive
// no-such-domain answer rejects; DNS trouble must not lock visitors out.
func (s *server) domainAcceptsMail(ctx context.Context, email string) bool {
	domain := email[strings.LastIndex(email, "@")+1:]

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	records, err := s.resolver.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return false
		}
		return true
	}
	return len(records) > 0
}

// displayIdentity blanks the guest identity so templates can tell an
// identified visitor from an anonymous one.
func displayIdentity(identity string) string {
	if identity == guestIdentity {
		return ""
	}
	return identity
}

func queryMessages(r *http.Request) baseViewData {
	return baseViewData{
		ErrorMessage:   r.URL.Query().Get("error"),
		SuccessMessage: r.URL.Query().Get("success"),
	}
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path string, err error) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
}

func (s *server) renderTemplate(w http.ResponseWriter, page string, data any) {
	templates, err := template.ParseFiles(
		"web/templates/layout.html",
		"web/templates/"+page,
	)
	if err != nil {
		http.Error(w, "failed to parse template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "layout.html", data); err != nil {
		http.Error(w, "failed to render template", http.StatusInternalServerError)
		return
	}
}

func parsePositiveFloat(raw, field string) (float64, error) {
	value, err := strconv.ParseFloat(raw, 64)
	// ParseFloat accepts "NaN" and "Inf"; neither is a usable input.
	if err != nil || !finiteInput(value) {
		return 0, fmt.Errorf("%s must be a number", field)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", field)
	}
	return value, nil
}

func parseNonNegativeFloat(raw, field string) (float64, error) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || !finiteInput(value) {
		return 0, fmt.Errorf("%s must be a number", field)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must be 0 or more", field)
	}
	return value, nil
}

func parseNonNegativeInt(raw, field string) (int, error) {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a whole number", field)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s must be 0 or more", field)
	}
	return value, nil
}

func finiteInput(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finishEstimate meters the identity, computes against a freshly loaded
// catalog, saves the result, and redirects to its detail page. Validation
// failures go back to formPath with the message; quota exhaustion goes to
// the upgrade page.
func (s *server) finishEstimate(w http.ResponseWriter, r *http.Request, formPath string, compute func(materials.Catalog) (estimate.Estimate, error)) {
	identity := s.auth.identity(r)

	if err := s.limiter.CheckAndConsume(identity); err != nil {
		var qErr *quota.QuotaExceededError
		if errors.As(err, &qErr) {
			metrics.QuotaRejections.Inc()
			redirectWithError(w, r, qErr.UpgradePath, qErr)
			return
		}
		s.log.Error("quota check failed", "identity", identity, "err", err)
		http.Error(w, "failed to check usage", http.StatusInternalServerError)
		return
	}

	cat, err := s.loadCatalog()
	if err != nil {
		s.log.Error("catalog load failed", "err", err)
		http.Error(w, "failed to load material rates", http.StatusInternalServerError)
		return
	}

	est, err := compute(cat)
	if err != nil {
		var vErr *materials.ValidationError
		if errors.As(err, &vErr) {
			redirectWithError(w, r, formPath, err)
			return
		}
		s.log.Error("estimate failed", "path", formPath, "err", err)
		http.Error(w, "failed to compute estimate", http.StatusInternalServerError)
		return
	}

	id, err := s.insertEstimate(identity, est)
	if err != nil {
		s.log.Error("estimate save failed", "err", err)
		http.Error(w, "failed to save estimate", http.StatusInternalServerError)
		return
	}
	metrics.EstimatesComputed.WithLabelValues(est.Kind).Inc()

	http.Redirect(w, r, "/estimates/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}
