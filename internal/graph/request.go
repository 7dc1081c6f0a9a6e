// Package graph provides a thin client for the Facebook Graph API.
//
// The client is deliberately small: it knows how to build versioned Graph
// requests, attach access tokens and appsecret_proof, and decode the
// platform's JSON envelopes (nodes, edges, error payloads). Everything that
// sends a request goes through the Transport interface so callers can wrap
// it (see internal/profiler).
//
// Reference: https://developers.facebook.com/docs/graph-api
package graph

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultGraphVersion is used when the configuration does not pin one.
	DefaultGraphVersion = "v22.0"

	baseURL     = "https://graph.facebook.com"
	betaBaseURL = "https://graph.beta.facebook.com"
)

// Request describes a single Graph API call.
//
// Endpoint is relative to the versioned base URL and may carry its own query
// string (e.g. "/me?fields=name"). Params are merged into the query for GET
// requests and sent as a form body otherwise.
type Request struct {
	Method       string
	Endpoint     string
	Params       url.Values
	AccessToken  string
	GraphVersion string
}

// NewRequest builds a request with a copy of params.
func NewRequest(method, endpoint string, params url.Values, accessToken, graphVersion string) *Request {
	cp := url.Values{}
	for k, v := range params {
		cp[k] = append([]string(nil), v...)
	}
	return &Request{
		Method:       strings.ToUpper(method),
		Endpoint:     endpoint,
		Params:       cp,
		AccessToken:  accessToken,
		GraphVersion: graphVersion,
	}
}

// String renders the request as "METHOD /version/endpoint" without any
// credentials, for logs and profiler output.
func (r *Request) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.path())
}

func (r *Request) path() string {
	version := r.GraphVersion
	if version == "" {
		version = DefaultGraphVersion
	}
	endpoint := r.Endpoint
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return "/" + version + endpoint
}

// encode returns the full URL and, for non-GET requests, the form body.
// extra carries transport-level params (access_token, appsecret_proof).
func (r *Request) encode(base string, extra url.Values) (string, string, error) {
	u, err := url.Parse(base + r.path())
	if err != nil {
		return "", "", fmt.Errorf("parse endpoint %q: %w", r.Endpoint, err)
	}

	params := u.Query()
	for k, v := range r.Params {
		params[k] = v
	}
	for k, v := range extra {
		params[k] = v
	}

	if r.Method == http.MethodGet {
		u.RawQuery = params.Encode()
		return u.String(), "", nil
	}

	// Anything already in the endpoint query moves to the body with the rest.
	u.RawQuery = ""
	return u.String(), params.Encode(), nil
}
