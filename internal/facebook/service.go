// Package facebook is the application-facing facade over the Graph client.
//
// Each operation is a thin translation onto a Graph verb call with an info
// log line on entry and a debug log line carrying the raw response on exit.
// Calls go through a profiler.Transport, so a Service built with a
// Stopwatch records one profile per outbound call.
//
// A Service owns its profiler state. Build one per inbound request when
// profiles are reported per request.
package facebook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fpang/social-graph-bridge/internal/graph"
	"github.com/fpang/social-graph-bridge/internal/profiler"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultUserFields is the field list UserData requests when none is given.
	DefaultUserFields = "name"

	// DefaultPageFields is the field list PageData requests when none is given.
	DefaultPageFields = "name,link,about,category"
)

// Service is the Graph API facade.
type Service struct {
	client   *graph.Client
	profiler *profiler.Transport

	stopwatch profiler.Stopwatch
	transport graph.Transport
	data      graph.PersistentData
	now       func() time.Time
}

// New builds a Service from the client configuration. The webhook verify
// token is not part of graph.Config and never reaches the client.
func New(cfg graph.Config, opts ...Option) *Service {
	s := &Service{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	base := s.transport
	if base == nil {
		base = graph.NewHTTPTransport(cfg.EnableBetaMode, cfg.AppSecret)
	}
	// The token check sits under the profiler so tokenless calls are recorded.
	s.profiler = profiler.New(graph.RequireToken(base), s.stopwatch)
	s.client = graph.NewClient(cfg, s.profiler)
	return s
}

// Client returns the underlying Graph client.
func (s *Service) Client() *graph.Client {
	return s.client
}

// Profiles returns the recorded calls ordered by id. It is empty when the
// service was built without a stopwatch.
func (s *Service) Profiles() []profiler.Profile {
	return s.profiler.Profiles()
}

// ProfileSummary returns the call count and total call time.
func (s *Service) ProfileSummary() profiler.Summary {
	return s.profiler.Summary()
}

// LoginHelper returns a redirect login helper storing its state in the
// service's persistent data handler.
func (s *Service) LoginHelper() (*graph.RedirectLoginHelper, error) {
	if s.data == nil {
		return nil, fmt.Errorf("login helper: no persistent data handler configured")
	}
	return graph.NewRedirectLoginHelper(s.client.OAuth2(), s.data), nil
}

// LongLivedPageAccessToken validates userToken, exchanges it for a
// long-lived token, and returns the access token of the user's page with
// id pageID. ErrPageAccessDenied is returned when the user does not manage
// that page.
func (s *Service) LongLivedPageAccessToken(ctx context.Context, pageID, userToken string) (string, error) {
	log.Info().Str("pageId", pageID).Msg("Getting long-lived page access token")

	token, err := s.ValidateAccessToken(ctx, userToken)
	if err != nil {
		return "", err
	}

	longLived, err := s.client.OAuth2().LongLivedAccessToken(ctx, token)
	if err != nil {
		return "", err
	}

	// https://developers.facebook.com/docs/graph-api/reference/user/accounts/
	resp, err := s.client.Get(ctx, "/me/accounts", longLived.Value)
	if err != nil {
		return "", err
	}
	pages, err := resp.GraphEdge()
	if err != nil {
		return "", err
	}
	log.Debug().Int("pages", len(pages)).Msg("Managed pages fetched")

	for _, page := range pages {
		if page.ID() == pageID {
			return page.String("access_token"), nil
		}
	}
	return "", ErrPageAccessDenied
}

// UserData validates token and fetches the current user's node. An empty
// fields selects DefaultUserFields.
func (s *Service) UserData(ctx context.Context, token, fields string) (graph.Node, error) {
	log.Info().Msg("Fetching user data")
	if fields == "" {
		fields = DefaultUserFields
	}

	accessToken, err := s.ValidateAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.fetchNode(ctx, "/me", fields, accessToken.Value)
}

// PageData fetches a page node. An empty token uses the default access
// token; an empty fields selects DefaultPageFields.
func (s *Service) PageData(ctx context.Context, pageID, token, fields string) (graph.Node, error) {
	log.Info().Str("pageId", pageID).Msg("Fetching page data")
	if fields == "" {
		fields = DefaultPageFields
	}
	return s.fetchNode(ctx, "/"+pageID, fields, token)
}

func (s *Service) fetchNode(ctx context.Context, endpoint, fields, token string) (graph.Node, error) {
	resp, err := s.client.Send(ctx, http.MethodGet, endpoint, url.Values{"fields": {fields}}, token)
	if err != nil {
		return nil, err
	}
	node, err := resp.GraphNode()
	if err != nil {
		return nil, err
	}
	log.Debug().Str("response", node.JSON()).Msg("Response data")
	return node, nil
}

// HideComment hides a comment.
func (s *Service) HideComment(ctx context.Context, commentID, token string) (*graph.Response, error) {
	log.Info().Str("commentId", commentID).Msg("Hiding comment")
	return s.setHidden(ctx, commentID, true, token)
}

// ShowComment unhides a comment.
func (s *Service) ShowComment(ctx context.Context, commentID, token string) (*graph.Response, error) {
	log.Info().Str("commentId", commentID).Msg("Showing comment")
	return s.setHidden(ctx, commentID, false, token)
}

// UpdateComment replaces a comment's message.
func (s *Service) UpdateComment(ctx context.Context, commentID, message, token string) (*graph.Response, error) {
	log.Info().Str("commentId", commentID).Msg("Updating comment")
	return s.post(ctx, commentID, url.Values{"message": {message}}, token)
}

// DeleteComment deletes a comment.
func (s *Service) DeleteComment(ctx context.Context, commentID, token string) (*graph.Response, error) {
	log.Info().Str("commentId", commentID).Msg("Deleting comment")
	return s.delete(ctx, commentID, token)
}

// HidePost hides a post.
func (s *Service) HidePost(ctx context.Context, postID, token string) (*graph.Response, error) {
	log.Info().Str("postId", postID).Msg("Hiding post")
	return s.setHidden(ctx, postID, true, token)
}

// ShowPost unhides a post.
func (s *Service) ShowPost(ctx context.Context, postID, token string) (*graph.Response, error) {
	log.Info().Str("postId", postID).Msg("Showing post")
	return s.setHidden(ctx, postID, false, token)
}

// UpdatePost replaces a post's message.
func (s *Service) UpdatePost(ctx context.Context, postID, message, token string) (*graph.Response, error) {
	log.Info().Str("postId", postID).Msg("Updating post")
	return s.post(ctx, postID, url.Values{"message": {message}}, token)
}

// DeletePost deletes a post.
func (s *Service) DeletePost(ctx context.Context, postID, token string) (*graph.Response, error) {
	log.Info().Str("postId", postID).Msg("Deleting post")
	return s.delete(ctx, postID, token)
}

func (s *Service) setHidden(ctx context.Context, id string, hidden bool, token string) (*graph.Response, error) {
	return s.post(ctx, id, url.Values{"is_hidden": {strconv.FormatBool(hidden)}}, token)
}

func (s *Service) post(ctx context.Context, id string, params url.Values, token string) (*graph.Response, error) {
	resp, err := s.client.Post(ctx, "/"+id, params, token)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("response", string(resp.Body)).Msg("Response data")
	return resp, nil
}

func (s *Service) delete(ctx context.Context, id, token string) (*graph.Response, error) {
	resp, err := s.client.Delete(ctx, "/"+id, nil, token)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("response", string(resp.Body)).Msg("Response data")
	return resp, nil
}

// ValidateAccessToken asks /debug_token about token. It returns an error
// wrapping graph.ErrTokenExpired when the token has expired and
// ErrInvalidAccessToken when the platform reports it invalid.
func (s *Service) ValidateAccessToken(ctx context.Context, token string) (graph.AccessToken, error) {
	log.Info().Str("token", maskToken(token)).Msg("Validating access token")
	accessToken := graph.NewAccessToken(token)

	meta, err := s.client.OAuth2().DebugToken(ctx, accessToken)
	if err != nil {
		return graph.AccessToken{}, err
	}
	log.Debug().
		Str("appId", meta.AppID).
		Str("userId", meta.UserID).
		Bool("isValid", meta.IsValid).
		Int64("expiresAt", meta.ExpiresAt).
		Msg("Token metadata")

	if err := meta.ValidateExpiration(s.now()); err != nil {
		return graph.AccessToken{}, err
	}
	if !meta.IsValid {
		return graph.AccessToken{}, ErrInvalidAccessToken
	}

	accessToken.ExpiresAt = meta.ExpiresAtTime()
	return accessToken, nil
}

// maskToken keeps enough of a token to correlate log lines.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:6] + "***"
}
