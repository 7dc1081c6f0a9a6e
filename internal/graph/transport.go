package graph

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// defaultTimeout is the HTTP client timeout for API calls.
const defaultTimeout = 60 * time.Second

// Transport sends a Graph request.
//
// A successful call returns the response and a nil error. A platform error
// payload is returned as *ResponseError; anything structural as *SDKError.
type Transport interface {
	SendRequest(ctx context.Context, req *Request) (*Response, error)
}

// tokenCheck rejects requests without an access token.
type tokenCheck struct {
	next Transport
}

// RequireToken wraps next so that a request without an access token fails
// with an *SDKError wrapping ErrNoAccessToken instead of being sent.
func RequireToken(next Transport) Transport {
	if _, ok := next.(tokenCheck); ok {
		return next
	}
	return tokenCheck{next: next}
}

func (t tokenCheck) SendRequest(ctx context.Context, req *Request) (*Response, error) {
	if req.AccessToken == "" {
		return nil, &SDKError{Op: "build request", Err: ErrNoAccessToken}
	}
	return t.next.SendRequest(ctx, req)
}

// HTTPTransport is the net/http backed Transport.
type HTTPTransport struct {
	httpClient *http.Client
	baseURL    string
	appSecret  string
}

// Compile-time interface check.
var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport for the production Graph API, or the
// beta tier when enableBeta is set. When appSecret is non-empty every call
// carries an appsecret_proof for its access token.
func NewHTTPTransport(enableBeta bool, appSecret string) *HTTPTransport {
	base := baseURL
	if enableBeta {
		base = betaBaseURL
	}
	return &HTTPTransport{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    base,
		appSecret:  appSecret,
	}
}

// WithBaseURL points the transport at another host (tests, proxies).
func (t *HTTPTransport) WithBaseURL(base string) *HTTPTransport {
	t.baseURL = strings.TrimRight(base, "/")
	return t
}

// WithHTTPClient swaps the underlying HTTP client.
func (t *HTTPTransport) WithHTTPClient(c *http.Client) *HTTPTransport {
	t.httpClient = c
	return t
}

// SendRequest implements Transport.
func (t *HTTPTransport) SendRequest(ctx context.Context, req *Request) (*Response, error) {
	if req.AccessToken == "" {
		return nil, &SDKError{Op: "build request", Err: ErrNoAccessToken}
	}
	extra := url.Values{"access_token": {req.AccessToken}}
	if t.appSecret != "" {
		extra.Set("appsecret_proof", appSecretProof(req.AccessToken, t.appSecret))
	}

	target, body, err := req.encode(t.baseURL, extra)
	if err != nil {
		return nil, &SDKError{Op: "build request", Err: err}
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return nil, &SDKError{Op: "build request", Err: err}
	}
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	log.Debug().Str("method", req.Method).Str("path", req.path()).Msg("Graph API request")

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, &SDKError{Op: "send request", Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &SDKError{Op: "read response", Code: httpResp.StatusCode, Err: err}
	}

	resp := &Response{
		Request:    req,
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}
	log.Debug().Int("statusCode", resp.StatusCode).Int("bodySize", len(data)).Msg("Graph API response")

	if rerr := responseError(resp); rerr != nil {
		return nil, rerr
	}
	return resp, nil
}

// responseError extracts a platform error from resp, if it carries one.
func responseError(resp *Response) *ResponseError {
	var env apiErrorEnvelope
	if json.Unmarshal(resp.Body, &env) == nil && env.Error != nil {
		return &ResponseError{
			Response:  resp,
			Message:   env.Error.Message,
			Type:      env.Error.Type,
			Code:      env.Error.Code,
			Subcode:   env.Error.Subcode,
			FBTraceID: env.Error.FBTraceID,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &ResponseError{
			Response: resp,
			Message:  fmt.Sprintf("unexpected response: %s", Truncate(string(resp.Body), 200)),
			Type:     "UnknownError",
			Code:     resp.StatusCode,
		}
	}
	return nil
}

// appSecretProof is hex(HMAC-SHA256(accessToken, appSecret)).
func appSecretProof(accessToken, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write([]byte(accessToken))
	return hex.EncodeToString(mac.Sum(nil))
}
