package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/kerm1977/plantilla1/internal/dto"
	"github.com/kerm1977/plantilla1/internal/model"
	"github.com/kerm1977/plantilla1/internal/service"
	"github.com/kerm1977/plantilla1/internal/session"
	"github.com/kerm1977/plantilla1/internal/upload"
)

// ── Auth ─────────────────────────────────────────────────────────────────────

func TestLogin_EstablishesSessionAndWelcomes(t *testing.T) {
	r, m := newEngine(t)
	ana := &model.User{ID: uuid.New(), Username: "ana", Role: model.RoleRegular, Theme: "dark"}
	h := NewAuthHandler(&stubAuth{login: func(req dto.LoginRequest) (*model.User, error) {
		assert.Equal(t, "ana@club.org", req.Username)
		return ana, nil
	}}, m)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.GET("/me", func(c *gin.Context) { c.JSON(http.StatusOK, session.Current(c).Subject()) })

	w := serve(r, http.MethodPost, "/login", jsonBody(t, dto.LoginRequest{Username: "ana@club.org", Password: "secreto", Remember: true}))
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ana", resp.User.Username)
	assert.True(t, resp.Remember)

	ck := sessionCookie(t, w)
	assert.Positive(t, ck.MaxAge, "remember me keeps the cookie across browser restarts")

	me := serve(r, http.MethodGet, "/me", nil, ck)
	assert.Contains(t, me.Body.String(), ana.ID.String())

	got := flashes(t, r, ck)
	require.Len(t, got, 1)
	assert.Equal(t, "¡Bienvenido, ana!", got[0].Message)

	out := serve(r, http.MethodPost, "/logout", nil, ck)
	require.Equal(t, http.StatusOK, out.Code)
	assert.NotEqual(t, ck.Value, sessionCookie(t, out).Value)
	// the old id is gone from the store
	me = serve(r, http.MethodGet, "/me", nil, ck)
	assert.NotContains(t, me.Body.String(), ana.ID.String())
}

func TestLogin_BadCredentials(t *testing.T) {
	r, m := newEngine(t)
	h := NewAuthHandler(&stubAuth{login: func(dto.LoginRequest) (*model.User, error) {
		return nil, &service.Error{Kind: service.KindAuth, Message: "Usuario o contraseña incorrectos."}
	}}, m)
	r.POST("/login", h.Login)

	w := serve(r, http.MethodPost, "/login", jsonBody(t, dto.LoginRequest{Username: "ana", Password: "mal"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Usuario o contraseña incorrectos.")

	got := flashes(t, r, sessionCookie(t, w))
	require.Len(t, got, 1)
	assert.Equal(t, session.FlashDanger, got[0].Category)
}

// ── Files ────────────────────────────────────────────────────────────────────

func TestFilesDownload(t *testing.T) {
	r, m := newEngine(t)
	id := uuid.New()
	h := NewFilesHandler(&stubFiles{open: func(got uuid.UUID) (*service.OpenedFile, error) {
		switch got {
		case id:
			return &service.OpenedFile{
				Name:        "ruta cerro.gpx",
				ContentType: "application/gpx+xml",
				Size:        5,
				Body:        io.NopCloser(strings.NewReader("<gpx>")),
			}, nil
		default:
			return nil, &service.Error{Kind: service.KindFilesystem, Message: "Archivo no encontrado.", Err: upload.ErrBlobNotFound}
		}
	}}, m)
	r.GET("/download_file/:id", h.Download)

	w := serve(r, http.MethodGet, "/download_file/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="ruta cerro.gpx"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/gpx+xml", w.Header().Get("Content-Type"))
	assert.Equal(t, "<gpx>", w.Body.String())

	w = serve(r, http.MethodGet, "/download_file/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFilesDelete_MissingBytesWarns(t *testing.T) {
	r, m := newEngine(t)
	h := NewFilesHandler(&stubFiles{delete: func(id uuid.UUID) (*dto.FileResponse, bool, error) {
		return &dto.FileResponse{ID: id, OriginalFilename: "mapa.pdf"}, true, nil
	}}, m)
	r.DELETE("/delete_file/:id", h.Delete)

	w := serve(r, http.MethodDelete, "/delete_file/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Missing bool `json:"missing"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Missing)

	got := flashes(t, r, sessionCookie(t, w))
	require.Len(t, got, 1)
	assert.Equal(t, session.FlashWarning, got[0].Category)
	assert.Contains(t, got[0].Message, "mapa.pdf")
}

// ── OAuth ────────────────────────────────────────────────────────────────────

// fakeGithub serves the token endpoint and the two profile calls.
func fakeGithub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		assert.NotEmpty(t, r.Form.Get("code_verifier"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"bearer"}`)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"id":7,"login":"anamora","name":"Ana Mora","email":""}`)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"email":"old@club.org","primary":false,"verified":true},{"email":"ana@club.org","primary":true,"verified":true}]`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOAuth_SignsInThroughProvider(t *testing.T) {
	gh := fakeGithub(t)
	r, m := newEngine(t)

	var profile service.ProviderProfile
	auth := &stubAuth{provider: func(name string, p service.ProviderProfile) (*model.User, error) {
		assert.Equal(t, "github", name)
		profile = p
		return &model.User{ID: uuid.New(), Username: p.Username, Role: model.RoleRegular}, nil
	}}
	providers := map[string]*Provider{"github": {
		Name: "Github",
		OAuth: &oauth2.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			Endpoint:     oauth2.Endpoint{AuthURL: gh.URL + "/authorize", TokenURL: gh.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
			RedirectURL:  "http://localhost/oauth/authorize/github",
		},
		Profile: githubProfile(gh.URL),
	}}
	h := NewOAuthHandler(auth, providers, m, false)
	r.GET("/oauth/login/:provider", h.Login)
	r.GET("/oauth/authorize/:provider", h.Authorize)

	w := serve(r, http.MethodGet, "/oauth/login/github", nil)
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "S256", loc.Query().Get("code_challenge_method"))
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	var stateCookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == oauthCookie {
			stateCookie = ck
		}
	}
	require.NotNil(t, stateCookie)
	sess := sessionCookie(t, w)

	w = serve(r, http.MethodGet, "/oauth/authorize/github?code=the-code&state="+state, nil, stateCookie, sess)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, "ana@club.org", profile.Email)
	assert.Equal(t, "7", profile.ID)
	assert.Equal(t, "Ana", profile.Name)
	assert.Equal(t, "Mora", profile.Surname)

	got := flashes(t, r, sessionCookie(t, w))
	require.Len(t, got, 1)
	assert.Equal(t, msgOAuthSignedIn, got[0].Message)
}

func TestOAuth_StateMismatchRejected(t *testing.T) {
	r, m := newEngine(t)
	providers := map[string]*Provider{"github": {Name: "Github", OAuth: &oauth2.Config{}}}
	h := NewOAuthHandler(&stubAuth{}, providers, m, false)
	r.GET("/oauth/authorize/:provider", h.Authorize)

	ck := &http.Cookie{Name: oauthCookie, Value: "expected.verifier"}
	w := serve(r, http.MethodGet, "/oauth/authorize/github?code=x&state=forged", nil, ck)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = serve(r, http.MethodGet, "/oauth/authorize/gitlab?code=x&state=expected", nil, ck)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

// ── Preferences ──────────────────────────────────────────────────────────────

func TestChangeTheme(t *testing.T) {
	r, m := newEngine(t)
	users := &stubUsers{}
	h := NewPreferencesHandler(users, m)
	r.GET("/change_theme/:theme", h.ChangeTheme)

	w := serve(r, http.MethodGet, "/change_theme/dark", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"theme":"dark"}`, w.Body.String())
	assert.Empty(t, users.themes, "anonymous visitors only change the session")

	ck := signIn(t, r, model.RoleRegular)
	w = serve(r, http.MethodGet, "/change_theme/sepia", nil, ck)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, users.themes, 1)
	for _, theme := range users.themes {
		assert.Equal(t, "sepia", theme)
	}

	w = serve(r, http.MethodGet, "/change_theme/neon", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestChangeLanguage_RedirectsBrowsersBack(t *testing.T) {
	r, m := newEngine(t)
	r.GET("/change_language/:lang", NewPreferencesHandler(&stubUsers{}, m).ChangeLanguage)

	req := httptest.NewRequest(http.MethodGet, "/change_language/en", nil)
	req.Host = "club.example"
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Referer", "http://club.example/contactos/ver_contactos?search=ana")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/contactos/ver_contactos?search=ana", w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/change_language/en", nil)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Referer", "https://evil.example/phish")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = serve(r, http.MethodGet, "/change_language/kl", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
