// Package login serves the server-side Facebook Login redirect flow.
//
//   - GET /login stores a CSRF state in the caller's session and redirects to
//     the login dialog.
//   - GET /oauth/callback checks the state, exchanges the code for a user
//     token, upgrades it to a long-lived token, and hands it to a TokenSink.
package login

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/social-graph-bridge/internal/facebook"
	"github.com/fpang/social-graph-bridge/internal/graph"
)

// ServiceFactory builds the facade for one request. The service must carry
// a persistent data handler bound to the caller's session.
type ServiceFactory func(r *http.Request) (*facebook.Service, error)

// TokenSink receives the long-lived user token at the end of a login.
type TokenSink interface {
	StoreToken(ctx context.Context, userID string, token graph.AccessToken) error
}

// Handler serves the login and callback endpoints.
type Handler struct {
	newService  ServiceFactory
	redirectURI string
	scopes      []string
	sink        TokenSink
}

// NewHandler creates a login handler. redirectURI must point at Callback.
func NewHandler(newService ServiceFactory, redirectURI string, scopes []string, sink TokenSink) *Handler {
	return &Handler{
		newService:  newService,
		redirectURI: redirectURI,
		scopes:      scopes,
		sink:        sink,
	}
}

// Login redirects to the login dialog.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	svc, helper, ok := h.helper(w, r)
	if !ok {
		return
	}
	defer svc.ReportProfiles("login", nil)

	target, err := helper.LoginURL(r.Context(), h.redirectURI, h.scopes)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build login URL")
		respondHTML(w, http.StatusInternalServerError, "Error", "Could not start the login.")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Callback completes the login.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	svc, helper, ok := h.helper(w, r)
	if !ok {
		return
	}
	defer svc.ReportProfiles("oauth-callback", nil)
	ctx := r.Context()

	short, err := helper.AccessToken(ctx, h.redirectURI, r.URL.Query())
	switch {
	case errors.Is(err, graph.ErrLoginDenied):
		respondHTML(w, http.StatusOK, "Authorization Denied", "Facebook authorization was denied.")
		return
	case errors.Is(err, graph.ErrStateMismatch), errors.Is(err, graph.ErrMissingCode):
		log.Warn().Err(err).Msg("Rejected OAuth callback")
		respondHTML(w, http.StatusBadRequest, "Error", "The login request could not be verified.")
		return
	case err != nil:
		log.Error().Err(err).Msg("Failed to exchange authorization code")
		respondHTML(w, http.StatusBadGateway, "Token Exchange Failed",
			"Failed to exchange the authorization code for an access token. Please try again.")
		return
	}

	long, err := svc.Client().OAuth2().LongLivedAccessToken(ctx, short)
	if err != nil {
		log.Error().Err(err).Msg("Failed to exchange for long-lived token")
		respondHTML(w, http.StatusBadGateway, "Token Exchange Failed",
			"Failed to exchange for a long-lived token. Please try again.")
		return
	}

	user, err := svc.UserData(ctx, long.Value, "id,name")
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch the logged-in user")
		respondHTML(w, http.StatusBadGateway, "Login Failed", "The new token could not be verified.")
		return
	}

	if err := h.sink.StoreToken(ctx, user.ID(), long); err != nil {
		log.Error().Err(err).Str("userId", user.ID()).Msg("Failed to store access token")
		respondHTML(w, http.StatusInternalServerError, "Storage Failed",
			"Token was obtained but could not be stored. Please check the logs.")
		return
	}

	msg := fmt.Sprintf("Connected as %s (user ID: %s).", html.EscapeString(user.String("name")), html.EscapeString(user.ID()))
	if !long.ExpiresAt.IsZero() {
		msg += fmt.Sprintf("<br><br>Long-lived token expires on %s.", long.ExpiresAt.UTC().Format("2006-01-02"))
	}
	respondHTML(w, http.StatusOK, "Facebook Connected", msg+"<br><br>You can close this window.")
}

func (h *Handler) helper(w http.ResponseWriter, r *http.Request) (*facebook.Service, *graph.RedirectLoginHelper, bool) {
	if r.Method != http.MethodGet {
		respondHTML(w, http.StatusMethodNotAllowed, "Error", "Method not allowed.")
		return nil, nil, false
	}
	svc, err := h.newService(r)
	if err == nil {
		var helper *graph.RedirectLoginHelper
		helper, err = svc.LoginHelper()
		if err == nil {
			return svc, helper, true
		}
	}
	log.Error().Err(err).Msg("Login flow unavailable")
	respondHTML(w, http.StatusInternalServerError, "Error", "Login is not available.")
	return nil, nil, false
}

// respondHTML writes a minimal HTML page. message may contain markup and
// must already be escaped.
func respondHTML(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>%s</title>
  <style>
    body { font-family: system-ui, -apple-system, sans-serif; max-width: 600px; margin: 80px auto; padding: 0 20px; text-align: center; color: #1a1a1a; }
    h1 { font-size: 1.5rem; margin-bottom: 1rem; }
    p { font-size: 1rem; line-height: 1.6; color: #444; }
  </style>
</head>
<body>
  <h1>%s</h1>
  <p>%s</p>
</body>
</html>`, title, title, message)
}
