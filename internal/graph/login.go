package graph

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// stateKey is the persistent-data key holding the CSRF state between the
// login redirect and the callback.
const stateKey = "state"

var (
	// ErrLoginDenied is returned when the user declined the login dialog.
	ErrLoginDenied = errors.New("graph: login was denied by the user")

	// ErrStateMismatch is returned when the callback state does not match
	// the one stored when the login URL was built.
	ErrStateMismatch = errors.New("graph: cross-site request forgery validation failed")

	// ErrMissingCode is returned when the callback carries neither a code
	// nor an error.
	ErrMissingCode = errors.New("graph: authorization code is missing")
)

// PersistentData is the key/value storage the login helper keeps its state in.
// Get returns a nil value when the key is absent.
type PersistentData interface {
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, value any) error
}

// RedirectLoginHelper drives the server-side Facebook Login redirect flow.
type RedirectLoginHelper struct {
	oauth    *OAuth2Client
	data     PersistentData
	newState func() string
}

// NewRedirectLoginHelper binds a helper to an OAuth client and a store.
func NewRedirectLoginHelper(oauth *OAuth2Client, data PersistentData) *RedirectLoginHelper {
	return &RedirectLoginHelper{
		oauth:    oauth,
		data:     data,
		newState: uuid.NewString,
	}
}

// LoginURL stores a fresh CSRF state and returns the dialog URL.
func (h *RedirectLoginHelper) LoginURL(ctx context.Context, redirectURI string, scopes []string) (string, error) {
	state := h.newState()
	if err := h.data.Set(ctx, stateKey, state); err != nil {
		return "", fmt.Errorf("store login state: %w", err)
	}
	return h.oauth.AuthorizationURL(redirectURI, state, scopes), nil
}

// AccessToken validates the callback query against the stored state and
// exchanges its code for a user access token. A matched state is cleared, so
// each login URL can be redeemed once.
func (h *RedirectLoginHelper) AccessToken(ctx context.Context, redirectURI string, query url.Values) (AccessToken, error) {
	if errParam := query.Get("error"); errParam != "" {
		log.Warn().
			Str("error", errParam).
			Str("reason", query.Get("error_reason")).
			Msg("Login dialog returned an error")
		return AccessToken{}, fmt.Errorf("%w: %s", ErrLoginDenied, query.Get("error_reason"))
	}

	code := query.Get("code")
	if code == "" {
		return AccessToken{}, ErrMissingCode
	}

	stored, err := h.data.Get(ctx, stateKey)
	if err != nil {
		return AccessToken{}, fmt.Errorf("load login state: %w", err)
	}
	expected, _ := stored.(string)
	got := query.Get("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return AccessToken{}, ErrStateMismatch
	}
	if err := h.data.Set(ctx, stateKey, ""); err != nil {
		return AccessToken{}, fmt.Errorf("clear login state: %w", err)
	}

	return h.oauth.AccessTokenFromCode(ctx, code, redirectURI)
}
