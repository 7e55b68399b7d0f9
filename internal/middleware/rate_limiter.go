package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/kerm1977/plantilla1/internal/apierror"
)

const (
	msgTooManyLogins   = "Demasiados intentos de inicio de sesión. Intenta de nuevo en un minuto."
	msgTooManyRequests = "Demasiadas solicitudes. Intenta nuevamente en un momento."
)

// ── Fixed-window limiter ─────────────────────────────────────────────────────

type windowEntry struct {
	count     int
	windowEnd time.Time
}

// windowLimiter counts requests per key (client IP) in fixed windows.
type windowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*windowEntry
}

func newWindowLimiter(limit int, window time.Duration) *windowLimiter {
	l := &windowLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*windowEntry),
	}
	register(l)
	return l
}

// allow records one hit for key. When the limit is exceeded it returns false
// and the time the window reopens.
func (l *windowLimiter) allow(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.windowEnd) {
		e = &windowEntry{windowEnd: now.Add(l.window)}
		l.entries[key] = e
	}
	e.count++
	return e.count <= l.limit, e.windowEnd
}

// purge drops expired windows and returns how many were removed.
func (l *windowLimiter) purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for key, e := range l.entries {
		if now.After(e.windowEnd) {
			delete(l.entries, key)
			n++
		}
	}
	return n
}

func (l *windowLimiter) handler(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, reopens := l.allow(c.ClientIP())
		if !ok {
			wait := int(time.Until(reopens).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(msg))
			return
		}
		c.Next()
	}
}

// LoginRateLimiter limits login and password-reset attempts to 20 per minute per IP.
func LoginRateLimiter() gin.HandlerFunc {
	return newWindowLimiter(20, time.Minute).handler(msgTooManyLogins)
}

// RateLimiter returns a general-purpose limiter of limit requests per window per IP.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	return newWindowLimiter(limit, window).handler(msgTooManyRequests)
}

// ── Purge goroutine ──────────────────────────────────────────────────────────
// Removes expired entries so IPs that never return do not accumulate.

const purgeInterval = 5 * time.Minute

var (
	limitersMu sync.Mutex
	limiters   []*windowLimiter
	purgeOnce  sync.Once
)

func register(l *windowLimiter) {
	limitersMu.Lock()
	limiters = append(limiters, l)
	limitersMu.Unlock()
	purgeOnce.Do(func() { go purgeExpiredEntries() })
}

func purgeExpiredEntries() {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for range ticker.C {
		limitersMu.Lock()
		current := append([]*windowLimiter(nil), limiters...)
		limitersMu.Unlock()

		purged := 0
		for _, l := range current {
			purged += l.purge()
		}
		if purged > 0 {
			log.Debug().Int("entries_purged", purged).Msg("rate limiter maps purged")
		}
	}
}
