package core

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Route classes for the per-request authorization gate. Each request is
// evaluated independently; there is no cross-request state beyond the
// credential itself.
type routeClass int

const (
	routePublic routeClass = iota
	routeAdminLogin
	routeAdminProtected
)

const (
	adminLoginPath = "/api/v1/admin/login"
	adminHomePath  = "/api/v1/admin/session"
	adminPrefix    = "/api/v1/admin"
)

func classifyRoute(path string) routeClass {
	switch {
	case path == adminLoginPath:
		return routeAdminLogin
	case strings.HasPrefix(path, adminPrefix):
		return routeAdminProtected
	default:
		return routePublic
	}
}

// AdminGuard applies the route-protection policy: admin-protected paths
// without a valid credential redirect to the login surface, and the login
// path with a valid credential redirects away (already authenticated).
// On success the decoded claims are exposed to handlers via the context.
func AdminGuard(guard *SessionGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := sessionFromRequest(guard, c)

		switch classifyRoute(c.Request.URL.Path) {
		case routeAdminLogin:
			if claims != nil {
				c.Redirect(http.StatusFound, adminHomePath)
				c.Abort()
				return
			}
		case routeAdminProtected:
			if claims == nil {
				c.Redirect(http.StatusFound, adminLoginPath)
				c.Abort()
				return
			}
			if claims.Role != "admin" {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "admin privileges required")
				c.Abort()
				return
			}
			c.Set(ctxSessionKey, claims)
		}
		c.Next()
	}
}

const ctxSessionKey = "session_claims"

// sessionFromRequest extracts and verifies the session cookie. A missing
// cookie is a rejection, never an error.
func sessionFromRequest(guard *SessionGuard, c *gin.Context) *SessionClaims {
	cookie, err := c.Request.Cookie(SessionCookieName)
	if err != nil {
		return nil
	}
	return guard.Verify(cookie.Value)
}

// currentSession returns the claims stored by AdminGuard, nil outside the
// guarded group.
func currentSession(c *gin.Context) *SessionClaims {
	v, ok := c.Get(ctxSessionKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*SessionClaims)
	return claims
}
