package graph

import (
	"context"
	"net/http"
	"net/url"
)

// Config holds what the client needs from the application configuration.
// It never carries the webhook verify token.
type Config struct {
	AppID               string
	AppSecret           string
	DefaultAccessToken  string
	DefaultGraphVersion string
	EnableBetaMode      bool
}

// Client issues Graph API calls through a Transport.
type Client struct {
	transport    Transport
	appID        string
	appSecret    string
	defaultToken string
	graphVersion string
}

// NewClient creates a client. A nil transport selects NewHTTPTransport with
// the configured beta mode and app secret, behind RequireToken.
func NewClient(cfg Config, transport Transport) *Client {
	if transport == nil {
		transport = RequireToken(NewHTTPTransport(cfg.EnableBetaMode, cfg.AppSecret))
	}
	version := cfg.DefaultGraphVersion
	if version == "" {
		version = DefaultGraphVersion
	}
	return &Client{
		transport:    transport,
		appID:        cfg.AppID,
		appSecret:    cfg.AppSecret,
		defaultToken: cfg.DefaultAccessToken,
		graphVersion: version,
	}
}

// Transport returns the transport requests are sent through.
func (c *Client) Transport() Transport {
	return c.transport
}

// GraphVersion returns the version requests are issued against.
func (c *Client) GraphVersion() string {
	return c.graphVersion
}

// Send issues a request. An empty accessToken falls back to the configured
// default. A request left without a token still goes to the transport, which
// rejects it (see RequireToken).
func (c *Client) Send(ctx context.Context, method, endpoint string, params url.Values, accessToken string) (*Response, error) {
	if accessToken == "" {
		accessToken = c.defaultToken
	}
	req := NewRequest(method, endpoint, params, accessToken, c.graphVersion)
	return c.transport.SendRequest(ctx, req)
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, endpoint, accessToken string) (*Response, error) {
	return c.Send(ctx, http.MethodGet, endpoint, nil, accessToken)
}

// Post issues a POST request with form params.
func (c *Client) Post(ctx context.Context, endpoint string, params url.Values, accessToken string) (*Response, error) {
	return c.Send(ctx, http.MethodPost, endpoint, params, accessToken)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, params url.Values, accessToken string) (*Response, error) {
	return c.Send(ctx, http.MethodDelete, endpoint, params, accessToken)
}

// OAuth2 returns the OAuth 2.0 helper bound to this client.
func (c *Client) OAuth2() *OAuth2Client {
	return &OAuth2Client{client: c}
}
