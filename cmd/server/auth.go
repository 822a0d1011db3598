package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
)

const (
	// identityCookieName carries the visitor's self-asserted email. The value
	// is signed so the quota identity cannot be tampered with mid-session.
	identityCookieName = "buildcalc_identity"
	// adminCookieName carries a password-backed admin session.
	adminCookieName = "buildcalc_admin"

	// guestIdentity meters visitors who have not identified themselves. They
	// all share one allowance per deployment.
	guestIdentity = "guest"
)

type authService struct {
	db            *sql.DB
	sessionSecret []byte
}

func newAuthService(db *sql.DB, sessionSecret string) *authService {
	return &authService{db: db, sessionSecret: []byte(sessionSecret)}
}

func (a *authService) validateAdminCredentials(email, password string) (bool, error) {
	var passwordHash string
	err := a.db.QueryRow(`SELECT password_hash FROM admins WHERE email = ?`, email).Scan(&passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query admin credentials: %w", err)
	}

	providedHash := hashPassword(password)
	return subtle.ConstantTimeCompare([]byte(passwordHash), []byte(providedHash)) == 1, nil
}

// hashPassword must produce the same digest the seeder stores.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func (a *authService) createSessionValue(subject string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(subject))
	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return payload + "." + signature
}

func (a *authService) verifySessionValue(value string) (string, bool) {
	parts := strings.Split(value, ".")
	if len(parts) != 2 {
		return "", false
	}

	payload := parts[0]
	signature := parts[1]

	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(provided, expected) {
		return "", false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", false
	}
	if len(decoded) == 0 {
		return "", false
	}

	return string(decoded), true
}

func (a *authService) setIdentityCookie(w http.ResponseWriter, email string) {
	a.setSignedCookie(w, identityCookieName, email)
}

func (a *authService) clearIdentityCookie(w http.ResponseWriter) {
	clearCookie(w, identityCookieName)
}

func (a *authService) setAdminCookie(w http.ResponseWriter, email string) {
	a.setSignedCookie(w, adminCookieName, email)
}

func (a *authService) clearAdminCookie(w http.ResponseWriter) {
	clearCookie(w, adminCookieName)
}

func (a *authService) setSignedCookie(w http.ResponseWriter, name, subject string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    a.createSessionValue(subject),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// identity returns the visitor's verified email, or guestIdentity when the
// request carries no valid identity cookie.
func (a *authService) identity(r *http.Request) string {
	cookie, err := r.Cookie(identityCookieName)
	if err != nil {
		return guestIdentity
	}
	email, ok := a.verifySessionValue(cookie.Value)
	if !ok {
		return guestIdentity
	}
	return email
}

// isAdmin reports whether the request carries a valid admin session.
func (a *authService) isAdmin(r *http.Request) bool {
	cookie, err := r.Cookie(adminCookieName)
	if err != nil {
		return false
	}
	_, ok := a.verifySessionValue(cookie.Value)
	return ok
}

// normalizeEmail lowercases and validates a submitted email address. Bare
// addresses only; display names and dotless domains are rejected.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("enter a valid email address")
	}
	domain := email[strings.LastIndex(email, "@")+1:]
	if !strings.Contains(domain, ".") {
		return "", fmt.Errorf("enter a valid email address")
	}
	return email, nil
}
