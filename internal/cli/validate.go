package cli

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/fpang/social-graph-bridge/internal/facebook"
	"github.com/fpang/social-graph-bridge/internal/graph"
)

// Describe returns a user-facing message for a facade error.
func Describe(err error) string {
	var (
		svcErr  *facebook.ServiceError
		respErr *graph.ResponseError
		sdkErr  *graph.SDKError
	)
	switch {
	case errors.As(err, &svcErr):
		return svcErr.Message
	case errors.Is(err, graph.ErrTokenExpired):
		return "The access token has expired. Log in again to get a new one"
	case errors.Is(err, graph.ErrNoAccessToken):
		return "No access token. Pass --token, set " + TokenEnvVar + " or configure a default access token"
	case errors.As(err, &respErr):
		return "Graph API error: " + respErr.Message
	case errors.As(err, &sdkErr):
		return "Graph request failed: " + sdkErr.Error()
	default:
		return "Unexpected error: " + err.Error()
	}
}

// HandleGraphError logs err with a user-facing message and exits.
func HandleGraphError(err error) {
	log.Error().Err(err).Msg(Describe(err))
	os.Exit(1)
}
