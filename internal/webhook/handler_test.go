package webhook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fpang/social-graph-bridge/internal/event"
)

const (
	testVerifyToken = "my_test_verify_token"
	testAppSecret   = "my_test_app_secret"
)

// recordingDispatcher captures every dispatched update.
type recordingDispatcher struct {
	names  []string
	events []*event.UpdateReceived
	err    error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, name string, ev *event.UpdateReceived) error {
	d.names = append(d.names, name)
	d.events = append(d.events, ev)
	return d.err
}

func newTestHandler() (*Handler, *recordingDispatcher) {
	d := &recordingDispatcher{}
	return NewHandler(testVerifyToken, testAppSecret, d), d
}

// --- Verification (GET) Tests ---

func TestVerification_ValidToken(t *testing.T) {
	h, d := newTestHandler()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub_mode=subscribe&hub_verify_token="+testVerifyToken+"&hub_challenge=1158201444",
		nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if body := rr.Body.String(); body != "1158201444" {
		t.Errorf("expected challenge '1158201444', got '%s'", body)
	}
	if len(d.events) != 0 {
		t.Errorf("handshake must not dispatch")
	}
}

func TestVerification_DottedParams(t *testing.T) {
	h, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token="+testVerifyToken+"&hub.challenge=abc",
		nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "abc" {
		t.Errorf("expected 200 abc, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestVerification_EmptyChallengeCountsAsPresent(t *testing.T) {
	h, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub_mode=subscribe&hub_verify_token="+testVerifyToken+"&hub_challenge=",
		nil)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Errorf("expected 200 with empty body, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestVerification_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"invalid token", "hub_mode=subscribe&hub_verify_token=wrong&hub_challenge=1"},
		{"missing mode", "hub_verify_token=" + testVerifyToken + "&hub_challenge=1"},
		{"wrong mode", "hub_mode=unsubscribe&hub_verify_token=" + testVerifyToken + "&hub_challenge=1"},
		{"missing challenge", "hub_mode=subscribe&hub_verify_token=" + testVerifyToken},
		{"missing token", "hub_mode=subscribe&hub_challenge=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, d := newTestHandler()
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil))

			if rr.Code != http.StatusNotFound {
				t.Errorf("expected status 404, got %d", rr.Code)
			}
			if strings.Contains(rr.Body.String(), "token") {
				t.Errorf("response leaks the failing check: %q", rr.Body.String())
			}
			if len(d.events) != 0 {
				t.Errorf("rejected handshake must not dispatch")
			}
		})
	}
}

func TestVerification_UnsetTokenNeverMatches(t *testing.T) {
	h := NewHandler("", testAppSecret, &recordingDispatcher{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet,
		"/webhook?hub_mode=subscribe&hub_verify_token=&hub_challenge=1", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

// --- Update Notification (POST) Tests ---

func TestSign(t *testing.T) {
	// HMAC-SHA1("", "") is a fixed vector.
	if got := Sign(nil, ""); got != "sha1=fbdb1d1b18aa6c08324b7d64b71fb76370690e1d" {
		t.Errorf("unexpected signature: %s", got)
	}
}

func TestUpdate_ValidSignature(t *testing.T) {
	h, d := newTestHandler()
	payload := `{"object":"page","entry":[{"id":"123","time":1520383571,"changes":[{"field":"feed","value":{"item":"comment"}}]}]}`

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set(SignatureHeader, Sign([]byte(payload), testAppSecret))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rr.Body.String())
	}
	if len(d.events) != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", len(d.events))
	}
	if d.names[0] != event.UpdateReceivedName {
		t.Errorf("unexpected event name %q", d.names[0])
	}
	if d.events[0].Content() != payload {
		t.Errorf("dispatched body differs from request body")
	}
}

func TestUpdate_NonJSONBodyIsDispatchedVerbatim(t *testing.T) {
	h, d := newTestHandler()
	payload := "not json at all"

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set(SignatureHeader, Sign([]byte(payload), testAppSecret))
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || len(d.events) != 1 || d.events[0].Content() != payload {
		t.Errorf("expected verbatim dispatch, got %d with %d events", rr.Code, len(d.events))
	}
}

func TestUpdate_Rejections(t *testing.T) {
	payload := `{"object":"page","entry":[]}`
	tests := []struct {
		name      string
		signature string
	}{
		{"wrong secret", Sign([]byte(payload), "wrong_secret")},
		{"missing signature", ""},
		{"sha256 prefix", "sha256=" + strings.TrimPrefix(Sign([]byte(payload), testAppSecret), "sha1=")},
		{"uppercase hex", strings.ToUpper(Sign([]byte(payload), testAppSecret))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, d := newTestHandler()
			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
			if tt.signature != "" {
				req.Header.Set(SignatureHeader, tt.signature)
			}
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			if rr.Code != http.StatusNotFound {
				t.Errorf("expected status 404, got %d", rr.Code)
			}
			if len(d.events) != 0 {
				t.Errorf("rejected update must not dispatch")
			}
		})
	}
}

func TestUpdate_BodySizeLimit(t *testing.T) {
	var logs bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&logs)
	defer func() { log.Logger = prev }()

	h, d := newTestHandler()
	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		req.Header.Set(SignatureHeader, Sign([]byte(body), testAppSecret))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := post(strings.Repeat("a", maxBodySize)); code != http.StatusOK {
		t.Fatalf("body at the limit: expected 200, got %d", code)
	}

	logs.Reset()
	if code := post(strings.Repeat("a", maxBodySize+1)); code != http.StatusNotFound {
		t.Errorf("oversized body: expected 404, got %d", code)
	}
	if len(d.events) != 1 {
		t.Errorf("oversized body must not dispatch, got %d dispatches", len(d.events))
	}
	if !strings.Contains(logs.String(), "body too large") {
		t.Errorf("expected a body-too-large log line, got %s", logs.String())
	}
	if strings.Contains(logs.String(), "signature mismatch") {
		t.Errorf("oversized body should not be reported as a signature mismatch")
	}
}

func TestUpdate_DispatchErrorIsSurfaced(t *testing.T) {
	d := &recordingDispatcher{err: errors.New("listener failed")}
	h := NewHandler(testVerifyToken, testAppSecret, d)
	payload := `{"object":"page"}`

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	req.Header.Set(SignatureHeader, Sign([]byte(payload), testAppSecret))
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rr.Code)
	}
	if len(d.events) != 1 {
		t.Errorf("expected one dispatch attempt, got %d", len(d.events))
	}
}

// --- Method Tests ---

func TestUnsupportedMethod(t *testing.T) {
	h, d := newTestHandler()
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/webhook", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
	if len(d.events) != 0 {
		t.Errorf("unsupported method must not dispatch")
	}
}
