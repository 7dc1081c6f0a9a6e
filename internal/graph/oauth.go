// OAuth 2.0 helpers for Facebook Login.
//
// Facebook uses a two-step token flow for server-side apps:
//  1. Authorization code → short-lived user token (about 1 hour)
//  2. Short-lived token → long-lived token (about 60 days) via fb_exchange_token
//
// Token introspection goes through /debug_token with the app access token.
// See: https://developers.facebook.com/docs/facebook-login/guides/access-tokens/get-long-lived

package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const dialogBaseURL = "https://www.facebook.com"

// AccessToken is an OAuth access token with an optional expiry.
// A zero ExpiresAt means the token does not expire (or the expiry is unknown).
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// NewAccessToken wraps a raw token string.
func NewAccessToken(value string) AccessToken {
	return AccessToken{Value: value}
}

// AppAccessToken returns the "{app-id}|{app-secret}" app token.
func AppAccessToken(appID, appSecret string) AccessToken {
	return AccessToken{Value: appID + "|" + appSecret}
}

func (t AccessToken) String() string { return t.Value }

// IsAppToken reports whether the token is an app access token.
func (t AccessToken) IsAppToken() bool {
	return strings.Contains(t.Value, "|")
}

// IsExpired reports whether the token has a known expiry before now.
func (t AccessToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(now)
}

// TokenMetadata is the "data" object returned by /debug_token.
type TokenMetadata struct {
	AppID       string   `json:"app_id"`
	Type        string   `json:"type"`
	Application string   `json:"application"`
	ExpiresAt   int64    `json:"expires_at"`
	IsValid     bool     `json:"is_valid"`
	IssuedAt    int64    `json:"issued_at"`
	Scopes      []string `json:"scopes"`
	UserID      string   `json:"user_id"`
}

// ExpiresAtTime returns the expiry as a time, zero if the token never expires.
func (m *TokenMetadata) ExpiresAtTime() time.Time {
	if m.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(m.ExpiresAt, 0)
}

// ValidateExpiration returns an error wrapping ErrTokenExpired if the token
// expired before now.
func (m *TokenMetadata) ValidateExpiration(now time.Time) error {
	exp := m.ExpiresAtTime()
	if !exp.IsZero() && exp.Before(now) {
		return fmt.Errorf("%w (expired at %s)", ErrTokenExpired, exp.UTC().Format(time.RFC3339))
	}
	return nil
}

// OAuth2Client performs token exchange and introspection calls.
type OAuth2Client struct {
	client *Client
}

// tokenResponse is the JSON response from /oauth/access_token.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (o *OAuth2Client) appToken() AccessToken {
	return AppAccessToken(o.client.appID, o.client.appSecret)
}

// requestAccessToken calls /oauth/access_token with params and the app token.
func (o *OAuth2Client) requestAccessToken(ctx context.Context, params url.Values) (AccessToken, error) {
	params.Set("client_id", o.client.appID)
	params.Set("client_secret", o.client.appSecret)

	resp, err := o.client.Send(ctx, http.MethodGet, "/oauth/access_token", params, o.appToken().Value)
	if err != nil {
		return AccessToken{}, err
	}

	var result tokenResponse
	if err := resp.DecodeBody(&result); err != nil {
		return AccessToken{}, err
	}
	if result.AccessToken == "" {
		return AccessToken{}, &SDKError{
			Op:   "access token exchange",
			Code: resp.StatusCode,
			Err:  fmt.Errorf("no access token in response: %s", Truncate(string(resp.Body), 300)),
		}
	}

	token := AccessToken{Value: result.AccessToken}
	if result.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	}
	return token, nil
}

// LongLivedAccessToken exchanges a short-lived user token for a long-lived one.
func (o *OAuth2Client) LongLivedAccessToken(ctx context.Context, token AccessToken) (AccessToken, error) {
	log.Debug().Msg("Exchanging short-lived token for long-lived token")
	params := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"fb_exchange_token": {token.Value},
	}
	long, err := o.requestAccessToken(ctx, params)
	if err != nil {
		return AccessToken{}, fmt.Errorf("long-lived token exchange: %w", err)
	}
	if !long.ExpiresAt.IsZero() {
		log.Info().Time("expiresAt", long.ExpiresAt).Msg("Long-lived token obtained")
	}
	return long, nil
}

// AccessTokenFromCode exchanges an authorization code for a user token.
// redirectURI must match the one used to build the login URL.
func (o *OAuth2Client) AccessTokenFromCode(ctx context.Context, code, redirectURI string) (AccessToken, error) {
	log.Debug().Str("redirectUri", redirectURI).Msg("Exchanging authorization code for access token")
	params := url.Values{
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	token, err := o.requestAccessToken(ctx, params)
	if err != nil {
		return AccessToken{}, fmt.Errorf("authorization code exchange: %w", err)
	}
	return token, nil
}

// DebugToken fetches metadata for token from /debug_token.
func (o *OAuth2Client) DebugToken(ctx context.Context, token AccessToken) (*TokenMetadata, error) {
	params := url.Values{"input_token": {token.Value}}
	resp, err := o.client.Send(ctx, http.MethodGet, "/debug_token", params, o.appToken().Value)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data *TokenMetadata `json:"data"`
	}
	if err := resp.DecodeBody(&envelope); err != nil {
		return nil, err
	}
	if envelope.Data == nil {
		return nil, &SDKError{Op: "debug token", Code: resp.StatusCode, Err: fmt.Errorf("response has no data object")}
	}
	return envelope.Data, nil
}

// AuthorizationURL builds the Facebook Login dialog URL.
func (o *OAuth2Client) AuthorizationURL(redirectURI, state string, scopes []string) string {
	params := url.Values{
		"client_id":     {o.client.appID},
		"state":         {state},
		"response_type": {"code"},
		"redirect_uri":  {redirectURI},
	}
	if len(scopes) > 0 {
		params.Set("scope", strings.Join(scopes, ","))
	}
	return fmt.Sprintf("%s/%s/dialog/oauth?%s", dialogBaseURL, o.client.graphVersion, params.Encode())
}
