package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kerm1977/plantilla1/internal/model"
)

// ContextKey is where the Sessions middleware stores the *Session in gin.Context.
const ContextKey = "session"

// Themes accepted by SetTheme.
var Themes = map[string]bool{"light": true, "dark": true, "sepia": true}

var ErrInvalidTheme = errors.New("tema no válido")
var ErrInvalidLang = errors.New("idioma no soportado")

type Options struct {
	CookieName string
	Lifetime   time.Duration // default server-side lifetime
	Remember   time.Duration // lifetime when "remember me" was ticked
	Secure     bool
}

// Manager binds sessions to requests through a cookie.
type Manager struct {
	store Store
	opts  Options
}

func NewManager(store Store, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "session"
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = 24 * time.Hour
	}
	if opts.Remember <= 0 {
		opts.Remember = 30 * 24 * time.Hour
	}
	return &Manager{store: store, opts: opts}
}

// Load returns the session referenced by the request cookie, or a fresh
// anonymous one. Fresh sessions are not persisted until something is written.
func (m *Manager) Load(c *gin.Context) *Session {
	if s, ok := c.Get(ContextKey); ok {
		return s.(*Session)
	}
	var s *Session
	if id, err := c.Cookie(m.opts.CookieName); err == nil && id != "" {
		stored, err := m.store.Get(c.Request.Context(), id)
		switch {
		case err == nil:
			s = stored
		case !errors.Is(err, ErrNotFound):
			log.Error().Err(err).Msg("session: load failed")
		}
	}
	if s == nil {
		s = newSession(NegotiateLang(c.GetHeader("Accept-Language")))
		// the cookie has to go out before the handler writes the response
		m.writeCookie(c, s)
	}
	c.Set(ContextKey, s)
	return s
}

// Current returns the session loaded for this request (nil when the Sessions
// middleware did not run).
func Current(c *gin.Context) *Session {
	if s, ok := c.Get(ContextKey); ok {
		return s.(*Session)
	}
	return nil
}

// Establish logs user in. The session id is rotated so a pre-login id cannot
// be reused. Theme and language survive the rotation.
func (m *Manager) Establish(c *gin.Context, u *model.User, remember bool) error {
	old := m.Load(c)
	if err := m.store.Delete(c.Request.Context(), old.ID); err != nil {
		return err
	}
	theme := u.Theme
	if !Themes[theme] {
		theme = DefaultTheme
	}
	s := &Session{
		ID:       uuid.NewString(),
		LoggedIn: true,
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		Theme:    theme,
		Lang:     old.Lang,
		Remember: remember,
		Flashes:  old.Flashes,
	}
	c.Set(ContextKey, s)
	return m.Save(c, s)
}

// Destroy removes the stored session and starts an anonymous one that keeps
// the language preference.
func (m *Manager) Destroy(c *gin.Context) error {
	old := m.Load(c)
	if err := m.store.Delete(c.Request.Context(), old.ID); err != nil {
		return err
	}
	s := newSession(old.Lang)
	s.Theme = old.Theme
	c.Set(ContextKey, s)
	m.writeCookie(c, s)
	return nil
}

// Save writes the session and refreshes the cookie. It must run before the
// response is written.
func (m *Manager) Save(c *gin.Context, s *Session) error {
	if err := m.persist(c, s); err != nil {
		return err
	}
	m.writeCookie(c, s)
	return nil
}

// Flush persists changes made through AddFlash, PopFlashes, SetTheme or SetLang.
// The Sessions middleware calls it after the handler ran, when the cookie is
// already on the wire.
func (m *Manager) Flush(c *gin.Context) {
	s := Current(c)
	if s == nil || !s.dirty {
		return
	}
	if err := m.persist(c, s); err != nil {
		log.Error().Err(err).Msg("session: save failed")
	}
}

func (m *Manager) ttl(s *Session) time.Duration {
	if s.Remember {
		return m.opts.Remember
	}
	return m.opts.Lifetime
}

func (m *Manager) persist(c *gin.Context, s *Session) error {
	ttl := m.ttl(s)
	s.ExpiresAt = time.Now().UTC().Add(ttl)
	if err := m.store.Save(c.Request.Context(), s, ttl); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (m *Manager) writeCookie(c *gin.Context, s *Session) {
	maxAge := 0 // browser-session cookie
	if s.Remember {
		maxAge = int(m.ttl(s).Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.opts.CookieName, s.ID, maxAge, "/", "", m.opts.Secure, true)
}

func (m *Manager) AddFlash(c *gin.Context, category, message string) {
	s := m.Load(c)
	s.Flashes = append(s.Flashes, Flash{Category: category, Message: message})
	s.dirty = true
}

// PopFlashes returns and clears the pending flash messages.
func (m *Manager) PopFlashes(c *gin.Context) []Flash {
	s := m.Load(c)
	flashes := s.Flashes
	if len(flashes) > 0 {
		s.Flashes = nil
		s.dirty = true
	}
	return flashes
}

func (m *Manager) SetTheme(c *gin.Context, theme string) error {
	if !Themes[theme] {
		return ErrInvalidTheme
	}
	s := m.Load(c)
	s.Theme = theme
	s.dirty = true
	return nil
}

func (m *Manager) SetLang(c *gin.Context, raw string) error {
	lang, ok := NormalizeLang(raw)
	if !ok {
		return ErrInvalidLang
	}
	s := m.Load(c)
	s.Lang = lang
	s.dirty = true
	return nil
}

// UpdateRole refreshes the cached role after the signed-in user's role changed.
func (m *Manager) UpdateRole(c *gin.Context, role model.Role) {
	s := m.Load(c)
	if s.LoggedIn && s.Role != role {
		s.Role = role
		s.dirty = true
	}
}
