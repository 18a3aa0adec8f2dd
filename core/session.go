package core

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionCookieName is the cookie carrying the signed admin credential.
	SessionCookieName = "session"
	// sessionTTL is the lifetime of an issued credential.
	sessionTTL = 7 * 24 * time.Hour
)

// SessionClaims is the decoded admin credential. Subject holds the user id.
type SessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into the numeric user id, 0 if malformed.
func (c *SessionClaims) UserID() int64 {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// SessionGuard verifies signed session credentials against a process-wide
// secret. Stateless after construction; safe for concurrent use.
type SessionGuard struct {
	secret       []byte
	cookieSecure bool
}

// NewSessionGuard builds the guard from config. A missing secret falls back
// to the insecure development default; Config.Validate has already refused
// that combination in production.
func NewSessionGuard(cfg Config) *SessionGuard {
	secret := cfg.SessionSecret
	if secret == "" {
		secret = insecureDevSecret
		log.Printf("WARNING: SESSION_SECRET not set, using insecure development default")
	}
	return &SessionGuard{secret: []byte(secret), cookieSecure: cfg.CookieSecure}
}

// Issue signs a credential for the given admin identity, valid for 7 days.
func (g *SessionGuard) Issue(userID int64, email, role string, now time.Time) (string, error) {
	claims := SessionClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// Verify checks a bearer token and returns the decoded credential, or nil.
// Missing, malformed, mis-signed, and expired tokens all collapse to nil so
// the caller cannot distinguish why verification failed. An empty token
// short-circuits before any cryptographic work.
func (g *SessionGuard) Verify(token string) *SessionClaims {
	if token == "" {
		return nil
	}
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return nil
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// SetSessionCookie attaches the credential as an HTTP-only cookie.
func (g *SessionGuard) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, g.sessionCookie(token, int(sessionTTL.Seconds())))
}

// ClearSessionCookie deletes the credential cookie. The attribute flags must
// match the ones used at issue time or browsers keep the stale cookie.
func (g *SessionGuard) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, g.sessionCookie("", -1))
}

func (g *SessionGuard) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   g.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
