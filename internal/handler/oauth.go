package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/kerm1977/plantilla1/internal/config"
	"github.com/kerm1977/plantilla1/internal/service"
	"github.com/kerm1977/plantilla1/internal/session"
)

const (
	msgOAuthFailed   = "Error al autorizar con %s."
	msgOAuthNoEmail  = "No se pudo obtener el email de %s. Por favor, asegúrate de que tu cuenta tiene un email público o intenta con otro método."
	msgOAuthSignedIn = "¡Has iniciado sesión correctamente!"
	msgOAuthUnknown  = "Proveedor de inicio de sesión no disponible."

	oauthCookie   = "oauth_state"
	oauthStateTTL = 10 * time.Minute
)

// Provider is an external identity provider: the OAuth2 client plus the call
// that turns an access token into a profile.
type Provider struct {
	Name    string
	OAuth   *oauth2.Config
	Profile func(ctx context.Context, client *http.Client) (service.ProviderProfile, error)
}

// Providers builds the enabled providers from configuration. A provider
// without a client id is left out.
func Providers(cfg *config.Config) map[string]*Provider {
	callback := func(name string) string {
		return strings.TrimRight(cfg.PublicBaseURL, "/") + "/oauth/authorize/" + name
	}
	out := make(map[string]*Provider)
	if cfg.OAuthGithubClientID != "" {
		out["github"] = &Provider{
			Name: "Github",
			OAuth: &oauth2.Config{
				ClientID:     cfg.OAuthGithubClientID,
				ClientSecret: cfg.OAuthGithubClientSecret,
				Endpoint:     endpoints.GitHub,
				RedirectURL:  callback("github"),
				Scopes:       []string{"user:email"},
			},
			Profile: githubProfile("https://api.github.com"),
		}
	}
	if cfg.OAuthGoogleClientID != "" {
		out["google"] = &Provider{
			Name: "Google",
			OAuth: &oauth2.Config{
				ClientID:     cfg.OAuthGoogleClientID,
				ClientSecret: cfg.OAuthGoogleClientSecret,
				Endpoint:     endpoints.Google,
				RedirectURL:  callback("google"),
				Scopes:       []string{"openid", "email", "profile"},
			},
			Profile: googleProfile("https://openidconnect.googleapis.com/v1/userinfo"),
		}
	}
	return out
}

type OAuthHandler struct {
	responder
	auth      service.AuthService
	providers map[string]*Provider
	secure    bool
}

func NewOAuthHandler(auth service.AuthService, providers map[string]*Provider, sessions *session.Manager, secureCookies bool) *OAuthHandler {
	return &OAuthHandler{responder: responder{sessions: sessions}, auth: auth, providers: providers, secure: secureCookies}
}

// Login sends the browser to the provider's consent page. State and the PKCE
// verifier ride in a short-lived cookie.
func (h *OAuthHandler) Login(c *gin.Context) {
	p, ok := h.providers[c.Param("provider")]
	if !ok {
		h.reject(c, msgOAuthUnknown)
		return
	}
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthCookie, state+"."+verifier, int(oauthStateTTL.Seconds()), "/oauth", "", h.secure, true)
	c.Redirect(http.StatusFound, p.OAuth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)))
}

// Authorize is the provider callback: exchange the code, fetch the profile and
// sign the member in, creating or linking the account as needed.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	p, ok := h.providers[c.Param("provider")]
	if !ok {
		h.reject(c, msgOAuthUnknown)
		return
	}
	raw, _ := c.Cookie(oauthCookie)
	c.SetCookie(oauthCookie, "", -1, "/oauth", "", h.secure, true)
	state, verifier, found := strings.Cut(raw, ".")
	if !found || state == "" || state != c.Query("state") || c.Query("code") == "" {
		h.reject(c, fmt.Sprintf(msgOAuthFailed, p.Name))
		return
	}

	ctx := c.Request.Context()
	token, err := p.OAuth.Exchange(ctx, c.Query("code"), oauth2.VerifierOption(verifier))
	if err != nil {
		log.Warn().Err(err).Str("provider", c.Param("provider")).Msg("oauth: code exchange failed")
		h.reject(c, fmt.Sprintf(msgOAuthFailed, p.Name))
		return
	}
	profile, err := p.Profile(ctx, p.OAuth.Client(ctx, token))
	if err != nil {
		log.Warn().Err(err).Str("provider", c.Param("provider")).Msg("oauth: profile fetch failed")
		h.reject(c, fmt.Sprintf(msgOAuthFailed, p.Name))
		return
	}
	if profile.Email == "" {
		h.reject(c, fmt.Sprintf(msgOAuthNoEmail, p.Name))
		return
	}

	user, err := h.auth.SignInWithProvider(ctx, c.Param("provider"), profile)
	if err != nil {
		var se *service.Error
		msg := msgInternal
		if errors.As(err, &se) {
			msg = se.Message
		}
		h.reject(c, msg)
		return
	}
	if err := h.sessions.Establish(c, user, false); err != nil {
		_ = c.Error(err)
		h.reject(c, msgInternal)
		return
	}
	h.flash(c, session.FlashSuccess, msgOAuthSignedIn)
	c.Redirect(http.StatusFound, "/")
}

func (h *OAuthHandler) reject(c *gin.Context, msg string) {
	h.flash(c, session.FlashDanger, msg)
	c.Redirect(http.StatusFound, "/login")
}

// ── Profile fetchers ─────────────────────────────────────────────────────────

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func githubProfile(apiBase string) func(context.Context, *http.Client) (service.ProviderProfile, error) {
	return func(ctx context.Context, client *http.Client) (service.ProviderProfile, error) {
		var u struct {
			ID    int64  `json:"id"`
			Login string `json:"login"`
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		if err := getJSON(ctx, client, apiBase+"/user", &u); err != nil {
			return service.ProviderProfile{}, err
		}
		email := u.Email
		if email == "" {
			// private address: ask for the verified primary one
			var emails []struct {
				Email    string `json:"email"`
				Primary  bool   `json:"primary"`
				Verified bool   `json:"verified"`
			}
			if err := getJSON(ctx, client, apiBase+"/user/emails", &emails); err == nil {
				for _, e := range emails {
					if e.Primary && e.Verified {
						email = e.Email
						break
					}
				}
			}
		}
		name, surname, _ := strings.Cut(strings.TrimSpace(u.Name), " ")
		return service.ProviderProfile{
			ID:       strconv.FormatInt(u.ID, 10),
			Email:    email,
			Username: u.Login,
			Name:     name,
			Surname:  surname,
		}, nil
	}
}

func googleProfile(userInfoURL string) func(context.Context, *http.Client) (service.ProviderProfile, error) {
	return func(ctx context.Context, client *http.Client) (service.ProviderProfile, error) {
		var u struct {
			Sub           string `json:"sub"`
			Email         string `json:"email"`
			EmailVerified bool   `json:"email_verified"`
			GivenName     string `json:"given_name"`
			FamilyName    string `json:"family_name"`
		}
		if err := getJSON(ctx, client, userInfoURL, &u); err != nil {
			return service.ProviderProfile{}, err
		}
		email := u.Email
		if !u.EmailVerified {
			email = ""
		}
		username, _, _ := strings.Cut(u.Email, "@")
		return service.ProviderProfile{
			ID:       u.Sub,
			Email:    email,
			Username: username,
			Name:     u.GivenName,
			Surname:  u.FamilyName,
		}, nil
	}
}
