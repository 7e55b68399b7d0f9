package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/kerm1977/plantilla1/internal/apierror"
	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/middleware"
	"github.com/kerm1977/plantilla1/internal/service"
	"github.com/kerm1977/plantilla1/internal/session"
)

// PreferencesHandler switches theme and language and hands out pending
// flash messages.
type PreferencesHandler struct {
	responder
	users service.UserService
}

func NewPreferencesHandler(users service.UserService, sessions *session.Manager) *PreferencesHandler {
	return &PreferencesHandler{responder: responder{sessions: sessions}, users: users}
}

// ChangeTheme stores the theme in the session and, for signed-in members,
// on their account so it follows them to the next login.
func (h *PreferencesHandler) ChangeTheme(c *gin.Context) {
	theme := c.Param("theme")
	if err := h.sessions.SetTheme(c, theme); err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
		return
	}
	if actor := middleware.Subject(c); actor.Authenticated {
		if err := h.users.UpdateTheme(c.Request.Context(), actor.UserID, theme); err != nil {
			h.fail(c, err)
			return
		}
	}
	h.back(c, gin.H{"theme": theme})
}

func (h *PreferencesHandler) ChangeLanguage(c *gin.Context) {
	if err := h.sessions.SetLang(c, c.Param("lang")); err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
		return
	}
	h.back(c, gin.H{"lang": session.Current(c).Lang})
}

// Flashes returns and clears the pending messages.
func (h *PreferencesHandler) Flashes(c *gin.Context) {
	flashes := h.sessions.PopFlashes(c)
	resp := make([]dto.FlashResponse, 0, len(flashes))
	for _, f := range flashes {
		resp = append(resp, dto.FlashResponse{Category: f.Category, Message: f.Message})
	}
	c.JSON(http.StatusOK, resp)
}

// back sends browsers to the page they came from; scripts get body.
func (h *PreferencesHandler) back(c *gin.Context, body gin.H) {
	if middleware.WantsHTML(c) {
		c.Redirect(http.StatusFound, sameSiteReferer(c))
		return
	}
	c.JSON(http.StatusOK, body)
}

// sameSiteReferer returns the path of the Referer when it points at this
// host, or "/".
func sameSiteReferer(c *gin.Context) string {
	ref, err := url.Parse(c.GetHeader("Referer"))
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != c.Request.Host) {
		return "/"
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}
