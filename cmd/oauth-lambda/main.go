// Package main provides a Lambda entry point for the Facebook Login flow.
//
// This is a lightweight Lambda (128 MB, 10s timeout) that handles:
//   - GET /login: store a CSRF state in the caller's session, redirect to
//     the login dialog
//   - GET /oauth/callback: exchange the code, upgrade to a long-lived token,
//     and store it in SSM
//
// Sessions live in the DynamoDB table named by SESSION_TABLE_NAME. The
// stored token becomes the default access token of every Lambda on its next
// cold start.
package main

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/social-graph-bridge/internal/config"
	"github.com/fpang/social-graph-bridge/internal/facebook"
	"github.com/fpang/social-graph-bridge/internal/lambdaboot"
	"github.com/fpang/social-graph-bridge/internal/logging"
	"github.com/fpang/social-graph-bridge/internal/login"
	"github.com/fpang/social-graph-bridge/internal/profiler"
	"github.com/fpang/social-graph-bridge/internal/session"
)

// commitHash is set at build time via -ldflags.
var commitHash = "dev"

var handler http.Handler

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	cfg := lambdaboot.LoadConfig(aws.SSM)
	sessions := lambdaboot.InitSessions(aws.Config)

	redirectURI := os.Getenv("OAUTH_REDIRECT_URI")
	if redirectURI == "" {
		log.Fatal().Msg("OAUTH_REDIRECT_URI is required")
	}
	scopes := strings.Split(logging.EnvOrDefault("OAUTH_SCOPES", "pages_show_list,pages_read_engagement,pages_manage_engagement"), ",")
	tokenParam := config.SSMParamPath(config.OptDefaultAccessToken)
	userIDParam := os.Getenv("SSM_USER_ID_PARAM")

	profiling := os.Getenv("GRAPH_PROFILING") == "true"
	newService := func(r *http.Request) (*facebook.Service, error) {
		opts := []facebook.Option{}
		if s, ok := session.FromContext(r.Context()); ok {
			opts = append(opts, facebook.WithPersistentData(session.NewPersistentData(s)))
		}
		if profiling {
			opts = append(opts, facebook.WithStopwatch(profiler.NewStopwatch()))
		}
		return facebook.New(cfg.Client(), opts...), nil
	}

	h := login.NewHandler(newService, redirectURI, scopes, login.NewSSMSink(aws.SSM, tokenParam, userIDParam))
	mux := http.NewServeMux()
	mux.HandleFunc("/login", h.Login)
	mux.HandleFunc("/oauth/callback", h.Callback)
	handler = session.Middleware(sessions, mux)

	sl := lambdaboot.StartupLog("oauth-lambda", initStart).
		CommitHash(commitHash).
		DynamoTable("sessions", os.Getenv(lambdaboot.EnvSessionTableName)).
		SSMParam("tokenOut", tokenParam).
		Config("redirectUri", redirectURI).
		Feature("profiling", profiling)
	lambdaboot.RegisterConfig(sl, cfg).Log()
}

func main() {
	adapter := httpadapter.NewV2(handler)
	lambda.Start(adapter.ProxyWithContext)
}
