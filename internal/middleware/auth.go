package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kerm1977/plantilla1/internal/apierror"
	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/policy"
	"github.com/kerm1977/plantilla1/internal/session"
)

// Sessions loads the typed session for every request and writes back flash,
// theme and language changes once the handler is done. observe, when set, is
// given the chance to resolve the first-registration flag before routing.
func Sessions(m *session.Manager, observe func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if observe != nil {
			if err := observe(c.Request.Context()); err != nil {
				log.Warn().Err(err).Msg("bootstrap: could not count users")
			}
		}
		m.Load(c)
		c.Next()
		m.Flush(c)
	}
}

// Subject returns the caller of the current request as seen by the policy.
func Subject(c *gin.Context) policy.Subject {
	return session.Current(c).Subject()
}

// RequireLogin admits any signed-in member.
func RequireLogin(m *session.Manager) gin.HandlerFunc {
	return guard(m, policy.AnyRole())
}

// RequireRole admits signed-in members holding one of roles.
func RequireRole(m *session.Manager, roles ...model.Role) gin.HandlerFunc {
	return guard(m, policy.Roles(roles...))
}

func guard(m *session.Manager, required policy.RoleSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := policy.Authorize(Subject(c), required)
		if d.Allowed {
			c.Next()
			return
		}
		if WantsHTML(c) {
			m.AddFlash(c, session.FlashWarning, d.Message)
			c.Redirect(http.StatusFound, d.Redirect)
			c.Abort()
			return
		}
		status := http.StatusForbidden
		if d.Reason == policy.Unauthenticated {
			status = http.StatusUnauthorized
		}
		c.AbortWithStatusJSON(status, apierror.NewDenied(d.Message, d.Redirect))
	}
}

// RedirectIfLoggedIn keeps signed-in members away from the login and
// registration forms.
func RedirectIfLoggedIn() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s := session.Current(c); s != nil && s.LoggedIn {
			if WantsHTML(c) {
				c.Redirect(http.StatusFound, policy.HomePath)
			} else {
				c.AbortWithStatusJSON(http.StatusConflict, apierror.NewDenied("Ya has iniciado sesión.", policy.HomePath))
			}
			c.Abort()
			return
		}
		c.Next()
	}
}

// Locale exposes the session language through Content-Language.
func Locale() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := session.DefaultLang
		if s := session.Current(c); s != nil && s.Lang != "" {
			lang = s.Lang
		}
		c.Header("Content-Language", lang)
		c.Next()
	}
}

// WantsHTML reports whether the client is a browser navigating pages rather
// than a script expecting JSON.
func WantsHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
