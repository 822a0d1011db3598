package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wanjohi/buildcalc/internal/metrics"
	"github.com/wanjohi/buildcalc/internal/paystack"
)

// subscriptionPeriod is how long one successful payment keeps the
// subscription active.
const subscriptionPeriod = 30 * 24 * time.Hour

var errUnknownPayment = errors.New("unknown payment reference")

func (s *server) handleUpgradeForm(w http.ResponseWriter, r *http.Request) {
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

	s.renderTemplate(w, "upgrade.html", upgradeViewData{
		baseViewData: queryMessages(r),
		Identity:     displayIdentity(identity),
		Status:       status,
		PlanPrice:    st.PlanPrice,
		Currency:     st.Currency,
	})
}

func (s *server) handleUpgradeSubmit(w http.ResponseWriter, r *http.Request) {
	identity := s.auth.identity(r)
	if identity == guestIdentity {
		redirectWithError(w, r, "/identify", fmt.Errorf("enter your email first so the subscription has an account to attach to"))
		return
	}

	st, err := s.getSettings()
	if err != nil {
		s.log.Error("settings load failed", "err", err)
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	price, err := decimal.NewFromString(st.PlanPrice)
	if err != nil || !price.IsPositive() {
		s.log.Error("plan price unusable", "plan_price", st.PlanPrice, "err", err)
		http.Error(w, "plan price is misconfigured", http.StatusInternalServerError)
		return
	}

	reference := paystack.NewReference()
	subunits := price.Mul(decimal.NewFromInt(100)).IntPart()
	if _, err := s.db.Exec(`
		INSERT INTO payments (reference, identity, amount_subunits, currency, status)
		VALUES (?, ?, ?, ?, 'pending')
	`, reference, identity, subunits, st.Currency); err != nil {
		s.log.Error("payment record failed", "reference", reference, "err", err)
		http.Error(w, "failed to start payment", http.StatusInternalServerError)
		return
	}

	checkout, err := s.payments.Initialize(r.Context(), identity, price, st.Currency, reference, s.baseURL+"/payments/callback")
	if err != nil {
		s.log.Error("paystack initialize failed", "reference", reference, "err", err)
		redirectWithError(w, r, "/upgrade", fmt.Errorf("could not reach the payment provider, try again shortly"))
		return
	}

	http.Redirect(w, r, checkout.AuthorizationURL, http.StatusSeeOther)
}

func (s *server) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(r.URL.Query().Get("reference"))
	if reference == "" {
		http.Error(w, "missing payment reference", http.StatusBadRequest)
		return
	}

	charge, err := s.payments.Verify(r.Context(), reference)
	if err != nil {
		s.log.Error("paystack verify failed", "reference", reference, "err", err)
		s.renderTemplate(w, "payment_result.html", paymentResultViewData{
			baseViewData: baseViewData{ErrorMessage: "We could not verify the payment. If you were charged, the confirmation will be picked up shortly."},
			Reference:    reference,
		})
		return
	}

	if !charge.Succeeded() {
		s.renderTemplate(w, "payment_result.html", paymentResultViewData{
			baseViewData: baseViewData{ErrorMessage: "The payment was not completed (status " + charge.Status + ")."},
			Reference:    reference,
		})
		return
	}

	if err := s.completePayment(reference); err != nil {
		s.log.Error("payment completion failed", "reference", reference, "err", err)
		s.renderTemplate(w, "payment_result.html", paymentResultViewData{
			baseViewData: baseViewData{ErrorMessage: "We verified the charge but could not match it to a payment on record."},
			Reference:    reference,
		})
		return
	}

	s.renderTemplate(w, "payment_result.html", paymentResultViewData{
		baseViewData: baseViewData{SuccessMessage: "Payment received. Your subscription is active for the next 30 days."},
		Reference:    reference,
		Succeeded:    true,
	})
}

func (s *server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !s.payments.ValidateSignature(body, r.Header.Get("X-Paystack-Signature")) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	ev, err := paystack.ParseEvent(body)
	if err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if ev.Event != paystack.EventChargeSuccess {
		w.WriteHeader(http.StatusOK)
		return
	}

	charge := ev.Charge()
	if err := s.completePayment(charge.Reference); err != nil {
		if errors.Is(err, errUnknownPayment) {
			// Not a payment we initiated; acknowledge so the gateway stops
			// retrying.
			s.log.Warn("webhook for unknown payment", "reference", charge.Reference)
			w.WriteHeader(http.StatusOK)
			return
		}
		s.log.Error("webhook completion failed", "reference", charge.Reference, "err", err)
		http.Error(w, "failed to record payment", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// completePayment marks the payment paid and opens the subscription window.
// The callback and the webhook both land here; the conditional UPDATE lets
// only one of them activate and count the payment.
func (s *server) completePayment(reference string) error {
	var identity string
	err := s.db.QueryRow(`SELECT identity FROM payments WHERE reference = ?`, reference).Scan(&identity)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", errUnknownPayment, reference)
	}
	if err != nil {
		return fmt.Errorf("query payment %s: %w", reference, err)
	}

	res, err := s.db.Exec(`
		UPDATE payments
		SET status = 'paid', updated_at = CURRENT_TIMESTAMP
		WHERE reference = ? AND status != 'paid'
	`, reference)
	if err != nil {
		return fmt.Errorf("mark payment %s paid: %w", reference, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark payment %s paid: %w", reference, err)
	}
	if affected == 0 {
		// The other notification path got here first.
		return nil
	}

	if err := s.limiter.Activate(identity, time.Now().Add(subscriptionPeriod)); err != nil {
		return err
	}
	metrics.PaymentsVerified.Inc()
	s.log.Info("subscription activated", "identity", identity, "reference", reference)
	return nil
}
