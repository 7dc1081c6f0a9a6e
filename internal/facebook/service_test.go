package facebook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/fpang/social-graph-bridge/internal/graph"
	"github.com/fpang/social-graph-bridge/internal/profiler"
	"github.com/fpang/social-graph-bridge/internal/session"
)

// fakeTransport answers requests from a route table keyed by
// "METHOD endpoint" and records every request it sees.
type fakeTransport struct {
	routes   map[string]string
	errs     map[string]error
	requests []*graph.Request
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{routes: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeTransport) SendRequest(_ context.Context, req *graph.Request) (*graph.Response, error) {
	f.requests = append(f.requests, req)
	key := req.Method + " " + req.Endpoint
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	body, ok := f.routes[key]
	if !ok {
		return nil, &graph.SDKError{Op: "send request", Code: http.StatusNotFound, Err: errors.New("no route for " + key)}
	}
	return &graph.Response{Request: req, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func (f *fakeTransport) last() *graph.Request {
	return f.requests[len(f.requests)-1]
}

var testNow = time.Unix(1700000000, 0)

const validToken = `{"data":{"app_id":"app","is_valid":true,"expires_at":0,"user_id":"42"}}`

var testConfig = graph.Config{
	AppID:              "app",
	AppSecret:          "secret",
	DefaultAccessToken: "default-token",
}

func newTestService(ft *fakeTransport, opts ...Option) *Service {
	opts = append([]Option{WithTransport(ft), WithClock(func() time.Time { return testNow })}, opts...)
	return New(testConfig, opts...)
}

func withPages(ft *fakeTransport) {
	ft.routes["GET /debug_token"] = validToken
	ft.routes["GET /oauth/access_token"] = `{"access_token":"long-lived","token_type":"bearer","expires_in":5184000}`
	ft.routes["GET /me/accounts"] = `{"data":[{"id":"1","access_token":"t1"},{"id":"2","access_token":"t2"}]}`
}

func TestLongLivedPageAccessToken_Found(t *testing.T) {
	ft := newFakeTransport()
	withPages(ft)
	s := newTestService(ft)

	got, err := s.LongLivedPageAccessToken(context.Background(), "2", "short-lived")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "t2" {
		t.Errorf("expected t2, got %q", got)
	}
	if ft.last().Endpoint != "/me/accounts" || ft.last().AccessToken != "long-lived" {
		t.Errorf("accounts must be listed with the long-lived token, got %s with %q", ft.last(), ft.last().AccessToken)
	}
}

func TestLongLivedPageAccessToken_NoAccess(t *testing.T) {
	ft := newFakeTransport()
	withPages(ft)
	s := newTestService(ft)

	_, err := s.LongLivedPageAccessToken(context.Background(), "3", "short-lived")
	if !errors.Is(err, ErrPageAccessDenied) {
		t.Fatalf("expected ErrPageAccessDenied, got %v", err)
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Errorf("expected a *ServiceError, got %T", err)
	}
}

func TestValidateAccessToken_Invalid(t *testing.T) {
	ft := newFakeTransport()
	ft.routes["GET /debug_token"] = `{"data":{"is_valid":false}}`
	s := newTestService(ft)

	_, err := s.ValidateAccessToken(context.Background(), "bad")
	if !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	ft := newFakeTransport()
	ft.routes["GET /debug_token"] = `{"data":{"is_valid":true,"expires_at":1600000000}}`
	s := newTestService(ft)

	_, err := s.ValidateAccessToken(context.Background(), "old")
	if !errors.Is(err, graph.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateAccessToken_ReturnsWrappedToken(t *testing.T) {
	ft := newFakeTransport()
	ft.routes["GET /debug_token"] = `{"data":{"is_valid":true,"expires_at":1800000000}}`
	s := newTestService(ft)

	token, err := s.ValidateAccessToken(context.Background(), "user-token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.Value != "user-token" || !token.ExpiresAt.Equal(time.Unix(1800000000, 0)) {
		t.Errorf("unexpected token: %+v", token)
	}
	if got := ft.last().Params.Get("input_token"); got != "user-token" {
		t.Errorf("expected input_token=user-token, got %q", got)
	}
	if got := ft.last().AccessToken; got != "app|secret" {
		t.Errorf("expected the app token, got %q", got)
	}
}

func TestUserData_DefaultFieldsAndValidation(t *testing.T) {
	ft := newFakeTransport()
	ft.routes["GET /debug_token"] = validToken
	ft.routes["GET /me"] = `{"id":"42","name":"Ada"}`
	s := newTestService(ft)

	node, err := s.UserData(context.Background(), "user-token", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.String("name") != "Ada" {
		t.Errorf("unexpected node: %v", node)
	}
	if len(ft.requests) != 2 || ft.requests[0].Endpoint != "/debug_token" {
		t.Errorf("expected token validation before the node fetch, got %d requests", len(ft.requests))
	}
	if got := ft.last().Params.Get("fields"); got != DefaultUserFields {
		t.Errorf("expected fields=%s, got %q", DefaultUserFields, got)
	}
}

func TestUserData_InvalidTokenStopsEarly(t *testing.T) {
	ft := newFakeTransport()
	ft.routes["GET /debug_token"] = `{"data":{"is_valid":false}}`
	s := newTestService(ft)

	if _, err := s.UserData(context.Background(), "bad", "name"); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
	if len(ft.requests) != 1 {
		t.Errorf("expected no node fetch after an invalid token, got %d requests", len(ft.requests))
	}
}

func TestPageData_DefaultsToDefaultToken(t *testing.T) {
	ft := newFakeTransport()
	ft.routes["GET /123"] = `{"id":"123","name":"Cafe","category":"Restaurant"}`
	s := newTestService(ft)

	node, err := s.PageData(context.Background(), "123", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if node.ID() != "123" {
		t.Errorf("unexpected node: %v", node)
	}
	req := ft.last()
	if req.AccessToken != "default-token" {
		t.Errorf("expected default token fallback, got %q", req.AccessToken)
	}
	if req.Params.Get("fields") != DefaultPageFields {
		t.Errorf("expected default page fields, got %q", req.Params.Get("fields"))
	}
}

func TestModeration(t *testing.T) {
	tests := []struct {
		name   string
		call   func(s *Service, ctx context.Context) (*graph.Response, error)
		method string
		param  string
		value  string
		token  string
	}{
		{"hide comment", func(s *Service, ctx context.Context) (*graph.Response, error) {
			return s.HideComment(ctx, "c1", "")
		}, http.MethodPost, "is_hidden", "true", "default-token"},
		{"show comment", func(s *Service, ctx context.Context) (*graph.Response, error) {
			return s.ShowComment(ctx, "c1", "page-token")
		}, http.MethodPost, "is_hidden", "false", "page-token"},
		{"update comment", func(s *Service, ctx context.Context) (*graph.Response, error) {
			return s.UpdateComment(ctx, "c1", "edited", "")
		}, http.MethodPost, "message", "edited", "default-token"},
		{"delete comment", func(s *Service, ctx context.Context) (*graph.Response, error) {
			return s.DeleteComment(ctx, "c1", "page-token")
		}, http.MethodDelete, "", "", "page-token"},
		{"hide post", func(s *Service, ctx context.Context) (*graph.Response, error) {
			return s.HidePost(ctx, "c1", "")
		}, http.MethodPost, "is_hidden", "true", "default-token"},
		{"show post", func(s *Service, ctx context.Context) (*graph.Response, error) {
			return s.ShowPost(ctx, "c1", "")
		}, http.MethodPost, "is_hidden", "false", "default-token"},
		{"update post", func(s *Service, ctx context.Context) (*graph.Response, error) {
			return s.UpdatePost(ctx, "c1", "new text", "page-token")
		}, http.MethodPost, "message", "new text", "page-token"},
		{"delete post", func(s *Service, ctx context.Context) (*graph.Response, error) {
			return s.DeletePost(ctx, "c1", "")
		}, http.MethodDelete, "", "", "default-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTransport()
			ft.routes["POST /c1"] = `{"success":true}`
			ft.routes["DELETE /c1"] = `{"success":true}`
			s := newTestService(ft)

			resp, err := tt.call(s, context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(resp.Body) != `{"success":true}` {
				t.Errorf("unexpected body: %s", resp.Body)
			}

			req := ft.last()
			if req.Method != tt.method || req.Endpoint != "/c1" {
				t.Errorf("expected %s /c1, got %s", tt.method, req)
			}
			if tt.param != "" && req.Params.Get(tt.param) != tt.value {
				t.Errorf("expected %s=%s, got %q", tt.param, tt.value, req.Params.Get(tt.param))
			}
			if req.AccessToken != tt.token {
				t.Errorf("expected token %q, got %q", tt.token, req.AccessToken)
			}
		})
	}
}

func TestModeration_PlatformErrorUnchanged(t *testing.T) {
	ft := newFakeTransport()
	platformErr := &graph.ResponseError{
		Response: &graph.Response{StatusCode: http.StatusBadRequest, Body: []byte(`{"error":{}}`)},
		Message:  "Unsupported post request",
		Code:     100,
	}
	ft.errs["POST /c1"] = platformErr
	s := newTestService(ft, WithStopwatch(profiler.NewStopwatch()))

	_, err := s.HideComment(context.Background(), "c1", "")
	if err != platformErr {
		t.Fatalf("expected the platform error unchanged, got %v", err)
	}

	profiles := s.Profiles()
	if len(profiles) != 1 || profiles[0].Outcome != profiler.OutcomeResponseError {
		t.Fatalf("expected one response_error profile, got %+v", profiles)
	}
	if *profiles[0].Code != http.StatusBadRequest {
		t.Errorf("expected code 400, got %d", *profiles[0].Code)
	}
}

func TestProfiles(t *testing.T) {
	ft := newFakeTransport()
	withPages(ft)

	s := newTestService(ft, WithStopwatch(profiler.NewStopwatch()))
	if _, err := s.LongLivedPageAccessToken(context.Background(), "1", "short-lived"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	profiles := s.Profiles()
	if len(profiles) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(profiles))
	}
	for i, p := range profiles {
		if p.ID != i+1 || !p.Completed() {
			t.Errorf("profile %d: unexpected %+v", i, p)
		}
	}
	if sum := s.ProfileSummary(); sum.Calls != 3 {
		t.Errorf("expected 3 calls in summary, got %d", sum.Calls)
	}

	ft.routes["GET /1"] = `{"id":"1"}`
	unprofiled := newTestService(ft)
	if _, err := unprofiled.PageData(context.Background(), "1", "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(unprofiled.Profiles()) != 0 {
		t.Errorf("expected no profiles without a stopwatch")
	}
}

func TestProfiles_MissingTokenIsRecorded(t *testing.T) {
	ft := newFakeTransport()
	s := New(graph.Config{AppID: "app", AppSecret: "secret"},
		WithTransport(ft), WithStopwatch(profiler.NewStopwatch()))

	_, err := s.HideComment(context.Background(), "1", "")
	if !errors.Is(err, graph.ErrNoAccessToken) {
		t.Fatalf("expected ErrNoAccessToken, got %v", err)
	}
	if len(ft.requests) != 0 {
		t.Errorf("expected nothing sent, got %d requests", len(ft.requests))
	}

	profiles := s.Profiles()
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
	p := profiles[0]
	if !p.Completed() || p.Outcome != profiler.OutcomeFailure || p.Code != nil || p.Response != nil {
		t.Errorf("expected a completed failure without code, got %+v", p)
	}
	if p.Request == nil || p.Request.Endpoint != "/1" {
		t.Errorf("expected the request to be recorded, got %+v", p.Request)
	}
}

func TestLoginHelper(t *testing.T) {
	ft := newFakeTransport()
	if _, err := newTestService(ft).LoginHelper(); err == nil {
		t.Error("expected an error without a persistent data handler")
	}

	mem := session.NewMemory()
	s := newTestService(ft, WithPersistentData(session.NewPersistentData(mem)))
	helper, err := s.LoginHelper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loginURL, err := helper.LoginURL(context.Background(), "https://example.com/cb", []string{"pages_show_list"})
	if err != nil {
		t.Fatalf("login url: %v", err)
	}
	if !strings.Contains(loginURL, "client_id=app") {
		t.Errorf("unexpected login url: %s", loginURL)
	}
	if state, _ := mem.Get(context.Background(), "FBRLH_state"); state == nil {
		t.Error("expected the CSRF state under FBRLH_state")
	}
}

func TestMaskToken(t *testing.T) {
	if got := maskToken("EAABsbCS1iHgBAKZ"); got != "EAABsb***" {
		t.Errorf("unexpected mask: %s", got)
	}
	if got := maskToken("short"); got != "***" {
		t.Errorf("unexpected mask: %s", got)
	}
}

func TestReportProfiles(t *testing.T) {
	ft := newFakeTransport()
	ft.routes["GET /1"] = `{"id":"1"}`

	var buf bytes.Buffer
	unprofiled := newTestService(ft)
	unprofiled.PageData(context.Background(), "1", "", "")
	unprofiled.ReportProfiles("page", &buf)
	if buf.Len() != 0 {
		t.Errorf("expected no metrics without profiles, got %s", buf.String())
	}

	s := newTestService(ft, WithStopwatch(profiler.NewStopwatch()))
	if _, err := s.PageData(context.Background(), "1", "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.ReportProfiles("page", &buf)
	if !strings.Contains(buf.String(), `"GraphCalls":1`) {
		t.Errorf("expected a GraphCalls metric, got %s", buf.String())
	}
}
