package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAccessToken is returned when neither the call nor the client
	// configuration supplies an access token.
	ErrNoAccessToken = errors.New("graph: an access token is required")

	// ErrTokenExpired is returned by TokenMetadata.ValidateExpiration.
	ErrTokenExpired = errors.New("graph: access token has expired")
)

// ResponseError is a platform error payload. It always carries the response
// it was decoded from.
type ResponseError struct {
	Response  *Response
	Message   string
	Type      string
	Code      int
	Subcode   int
	FBTraceID string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("graph API error: %s (type: %s, code: %d, status: %d)",
		e.Message, e.Type, e.Code, e.StatusCode())
}

// StatusCode returns the HTTP status of the carried response.
func (e *ResponseError) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// SDKError is a structural failure: the request could not be built or sent,
// or the response could not be read or decoded. Code is zero when the
// failure carries no status.
type SDKError struct {
	Op   string
	Code int
	Err  error
}

func (e *SDKError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("graph: %s (code %d): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("graph: %s: %v", e.Op, e.Err)
}

func (e *SDKError) Unwrap() error { return e.Err }

// apiErrorEnvelope is the {"error": {...}} shape the Graph API returns.
type apiErrorEnvelope struct {
	Error *struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		Subcode   int    `json:"error_subcode"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}
