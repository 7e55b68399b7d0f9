package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/policy"
)

func init() { gin.SetMode(gin.TestMode) }

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb), mr
}

func testContext(cookie *http.Cookie) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	c.Request = req
	return c, w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestRedisStore_RoundTripAndTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	s := &Session{ID: "abc", LoggedIn: true, UserID: uuid.New(), Username: "ana",
		Role: model.RoleSuperuser, Theme: "dark", Lang: "es",
		Flashes: []Flash{{Category: FlashInfo, Message: "hola"}}}

	require.NoError(t, store.Save(ctx, s, time.Hour))
	assert.True(t, mr.Exists("session:abc"))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, s.UserID, got.UserID)
	assert.Equal(t, model.RoleSuperuser, got.Role)
	assert.Equal(t, "abc", got.ID)
	assert.Len(t, got.Flashes, 1)

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	require.NoError(t, store.Save(context.Background(), &Session{ID: "x"}, time.Minute))

	_, err := store.Get(context.Background(), "x")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_LoadFreshSessionNegotiatesLanguage(t *testing.T) {
	m := NewManager(NewMemoryStore(), Options{CookieName: "tribu"})
	c, w := testContext(nil)

	s := m.Load(c)
	assert.False(t, s.LoggedIn)
	assert.Equal(t, "en", s.Lang)
	assert.Equal(t, DefaultTheme, s.Theme)
	assert.Equal(t, s.ID, sessionCookie(t, w, "tribu").Value)
	assert.Equal(t, policy.Anonymous, s.Subject())
}

func TestManager_EstablishRotatesIDAndRemember(t *testing.T) {
	store, _ := newRedisStore(t)
	m := NewManager(store, Options{CookieName: "tribu", Lifetime: time.Hour, Remember: 30 * 24 * time.Hour})
	u := &model.User{ID: uuid.New(), Username: "ana", Role: model.RoleAdministrador, Theme: "sepia"}

	c, w := testContext(nil)
	anon := m.Load(c)
	require.NoError(t, m.Establish(c, u, true))

	s := Current(c)
	assert.NotEqual(t, anon.ID, s.ID)
	assert.True(t, s.LoggedIn)
	assert.Equal(t, "sepia", s.Theme)
	assert.True(t, s.Remember)

	var ck *http.Cookie
	for _, x := range w.Result().Cookies() {
		if x.Name == "tribu" && x.Value == s.ID {
			ck = x
		}
	}
	require.NotNil(t, ck)
	assert.Equal(t, 30*24*3600, ck.MaxAge)

	// next request resolves the stored session from the cookie
	c2, _ := testContext(&http.Cookie{Name: "tribu", Value: s.ID})
	s2 := m.Load(c2)
	assert.True(t, s2.LoggedIn)
	assert.Equal(t, u.ID, s2.UserID)
	assert.Equal(t, model.RoleAdministrador, s2.Subject().Role)
}

func TestManager_FlashesSurviveRedirect(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, Options{CookieName: "tribu"})

	c, w := testContext(nil)
	m.AddFlash(c, FlashDanger, "No tienes permiso para acceder a esta página.")
	m.Flush(c)
	id := sessionCookie(t, w, "tribu").Value

	c2, _ := testContext(&http.Cookie{Name: "tribu", Value: id})
	flashes := m.PopFlashes(c2)
	require.Len(t, flashes, 1)
	assert.Equal(t, FlashDanger, flashes[0].Category)
	m.Flush(c2)

	c3, _ := testContext(&http.Cookie{Name: "tribu", Value: id})
	assert.Empty(t, m.PopFlashes(c3))
}

func TestManager_DestroyKeepsLanguage(t *testing.T) {
	m := NewManager(NewMemoryStore(), Options{})
	c, _ := testContext(nil)
	require.NoError(t, m.Establish(c, &model.User{ID: uuid.New(), Role: model.RoleRegular}, false))
	loggedID := Current(c).ID

	require.NoError(t, m.Destroy(c))
	s := Current(c)
	assert.False(t, s.LoggedIn)
	assert.NotEqual(t, loggedID, s.ID)
	assert.Equal(t, "en", s.Lang)
}

func TestManager_ThemeAndLang(t *testing.T) {
	m := NewManager(NewMemoryStore(), Options{})
	c, _ := testContext(nil)
	assert.NoError(t, m.SetTheme(c, "dark"))
	assert.ErrorIs(t, m.SetTheme(c, "neon"), ErrInvalidTheme)
	assert.NoError(t, m.SetLang(c, "es"))
	assert.ErrorIs(t, m.SetLang(c, "fr"), ErrInvalidLang)

	s := Current(c)
	assert.Equal(t, "dark", s.Theme)
	assert.Equal(t, "es", s.Lang)
}

func TestNegotiateLang(t *testing.T) {
	assert.Equal(t, "es", NegotiateLang(""))
	assert.Equal(t, "es", NegotiateLang("es-CR,es;q=0.9"))
	assert.Equal(t, "en", NegotiateLang("en-GB"))
	assert.Equal(t, "es", NegotiateLang("de-DE"))
}
