// Package main provides a Lambda entry point for the Graph webhook handler.
//
// This is a lightweight Lambda (128 MB, 10s timeout) that handles:
//   - GET /webhook: subscription verification handshake
//   - POST /webhook: update notifications signed with X-Hub-Signature
//
// The app secret and verify token come from GRAPH_* environment variables
// or, when unset, from SSM Parameter Store at cold start.
//
// Verified updates are published to EventBridge when EVENT_BUS_NAME is set;
// otherwise they are only logged.
package main

import (
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/social-graph-bridge/internal/event"
	"github.com/fpang/social-graph-bridge/internal/lambdaboot"
	"github.com/fpang/social-graph-bridge/internal/logging"
	"github.com/fpang/social-graph-bridge/internal/webhook"
)

// commitHash is set at build time via -ldflags.
var commitHash = "dev"

var webhookHandler *webhook.Handler

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	cfg := lambdaboot.LoadConfig(aws.SSM)

	var dispatcher event.Dispatcher
	sl := lambdaboot.StartupLog("webhook-lambda", initStart).CommitHash(commitHash)
	if bus := lambdaboot.InitEventBridge(aws.Config); bus != nil {
		dispatcher = bus
		sl.EventBus("updates", logging.EnvOrDefault(lambdaboot.EnvEventBusName, ""))
	} else {
		local := event.NewLocal()
		local.Register(event.UpdateReceivedName, event.LogListener)
		dispatcher = local
	}

	if cfg.WebhookVerifyToken == "" {
		log.Warn().Msg("Webhook verify token is empty, subscription handshakes will be rejected")
	}
	webhookHandler = webhook.NewHandler(cfg.WebhookVerifyToken, cfg.AppSecret, dispatcher)

	lambdaboot.RegisterConfig(sl, cfg).Log()
}

func main() {
	mux := http.NewServeMux()
	mux.Handle("/webhook", webhookHandler)

	adapter := httpadapter.NewV2(mux)
	lambda.Start(adapter.ProxyWithContext)
}
