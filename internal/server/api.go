package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fpang/social-graph-bridge/internal/facebook"
	"github.com/fpang/social-graph-bridge/internal/graph"
)

type tokenKey struct{}

// requireBearer rejects API calls without an Authorization bearer token and
// puts the token into the request context.
func requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			httpError(w, http.StatusUnauthorized, "bearer token required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenKey{}, strings.TrimSpace(token))))
	})
}

func bearer(r *http.Request) string {
	token, _ := r.Context().Value(tokenKey{}).(string)
	return token
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	svc, _ := s.newService(r)
	node, err := svc.PageData(r.Context(), chi.URLParam(r, "id"), bearer(r), r.URL.Query().Get("fields"))
	if err != nil {
		respondGraphError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, node)
}

func (s *Server) handlePageToken(w http.ResponseWriter, r *http.Request) {
	svc, _ := s.newService(r)
	token, err := svc.LongLivedPageAccessToken(r.Context(), chi.URLParam(r, "id"), bearer(r))
	if err != nil {
		respondGraphError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"accessToken": token})
}

func (s *Server) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	svc, _ := s.newService(r)
	token, err := svc.ValidateAccessToken(r.Context(), bearer(r))
	if err != nil {
		respondGraphError(w, err)
		return
	}
	resp := map[string]any{"valid": true}
	if !token.ExpiresAt.IsZero() {
		resp["expiresAt"] = token.ExpiresAt.UTC()
	}
	respondJSON(w, http.StatusOK, resp)
}

type moderateRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleModerate(w http.ResponseWriter, r *http.Request) {
	kind, id, action := chi.URLParam(r, "kind"), chi.URLParam(r, "id"), chi.URLParam(r, "action")

	var message string
	if action == "update" {
		var req moderateRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil || req.Message == "" {
			httpError(w, http.StatusBadRequest, "a JSON body with a non-empty message is required")
			return
		}
		message = req.Message
	}

	svc, _ := s.newService(r)
	ctx, token := r.Context(), bearer(r)

	var (
		resp *graph.Response
		err  error
	)
	switch kind + "/" + action {
	case "comments/hide":
		resp, err = svc.HideComment(ctx, id, token)
	case "comments/show":
		resp, err = svc.ShowComment(ctx, id, token)
	case "comments/update":
		resp, err = svc.UpdateComment(ctx, id, message, token)
	case "posts/hide":
		resp, err = svc.HidePost(ctx, id, token)
	case "posts/show":
		resp, err = svc.ShowPost(ctx, id, token)
	case "posts/update":
		resp, err = svc.UpdatePost(ctx, id, message, token)
	default:
		httpError(w, http.StatusNotFound, "unknown action")
		return
	}
	if err != nil {
		respondGraphError(w, err)
		return
	}
	respondRaw(w, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	svc, _ := s.newService(r)

	var (
		resp *graph.Response
		err  error
	)
	switch chi.URLParam(r, "kind") {
	case "comments":
		resp, err = svc.DeleteComment(r.Context(), id, bearer(r))
	case "posts":
		resp, err = svc.DeletePost(r.Context(), id, bearer(r))
	default:
		httpError(w, http.StatusNotFound, "unknown kind")
		return
	}
	if err != nil {
		respondGraphError(w, err)
		return
	}
	respondRaw(w, resp)
}

// respondGraphError maps facade errors onto HTTP statuses. Domain errors
// keep their message; platform errors keep the platform's.
func respondGraphError(w http.ResponseWriter, err error) {
	var (
		svcErr  *facebook.ServiceError
		respErr *graph.ResponseError
	)
	switch {
	case errors.As(err, &svcErr):
		status := http.StatusForbidden
		if errors.Is(err, facebook.ErrInvalidAccessToken) {
			status = http.StatusUnauthorized
		}
		httpError(w, status, svcErr.Message)
	case errors.Is(err, graph.ErrTokenExpired):
		httpError(w, http.StatusUnauthorized, "access token has expired")
	case errors.As(err, &respErr):
		httpError(w, http.StatusBadGateway, respErr.Message)
	default:
		log.Error().Err(err).Msg("Graph call failed")
		httpError(w, http.StatusBadGateway, "graph call failed")
	}
}

func respondRaw(w http.ResponseWriter, resp *graph.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Body)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func httpError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
