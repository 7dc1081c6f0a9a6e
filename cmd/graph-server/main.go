// Package main runs the Graph bridge as a single local HTTP server.
//
// It serves the webhook endpoint, the login flow, and the moderation API
// from one process, with sessions kept in memory. Configuration comes from
// GRAPH_* environment variables (a .env file is loaded when present) and,
// with --ssm, from SSM Parameter Store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/fpang/social-graph-bridge/internal/config"
	"github.com/fpang/social-graph-bridge/internal/event"
	"github.com/fpang/social-graph-bridge/internal/lambdaboot"
	"github.com/fpang/social-graph-bridge/internal/logging"
	"github.com/fpang/social-graph-bridge/internal/profiler"
	"github.com/fpang/social-graph-bridge/internal/server"
	"github.com/fpang/social-graph-bridge/internal/telemetry"
)

// CLI flags
var (
	portFlag        int
	profileFlag     bool
	traceFlag       bool
	ssmFlag         bool
	redirectURIFlag string
	scopesFlag      string
	logLevelFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "graph-server",
	Short: "Local server for Graph webhooks, login and moderation",
	Long: `Graph Server serves the webhook endpoint, the Facebook Login flow and a
small moderation API from one process.

Examples:
  graph-server
  graph-server --port 9090 --profile
  graph-server --ssm --trace`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().BoolVar(&profileFlag, "profile", false, "Profile Graph calls and serve them at /debug/graph-profiles")
	rootCmd.Flags().BoolVar(&traceFlag, "trace", false, "Export OpenTelemetry spans to stderr")
	rootCmd.Flags().BoolVar(&ssmFlag, "ssm", false, "Fill unset secrets from SSM Parameter Store")
	rootCmd.Flags().StringVar(&redirectURIFlag, "redirect-uri", "", "OAuth redirect URI (default http://localhost:<port>/oauth/callback)")
	rootCmd.Flags().StringVar(&scopesFlag, "scopes", "pages_show_list,pages_read_engagement,pages_manage_engagement", "Comma-separated login scopes")
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "Log level (overrides "+logging.LevelEnvVar+")")
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()
	if logLevelFlag != "" {
		logging.SetLevel(logLevelFlag)
	}

	var dispatcher event.Dispatcher
	sl := lambdaboot.StartupLog("graph-server", initStart)

	var cfg config.Config
	if ssmFlag {
		aws := lambdaboot.InitAWS()
		cfg = lambdaboot.LoadConfig(aws.SSM)
		if bus := lambdaboot.InitEventBridge(aws.Config); bus != nil {
			dispatcher = bus
			sl.EventBus("updates", os.Getenv(lambdaboot.EnvEventBusName))
		}
	} else {
		cfg = lambdaboot.LoadConfig(nil)
	}
	if dispatcher == nil {
		local := event.NewLocal()
		local.Register(event.UpdateReceivedName, event.LogListener)
		dispatcher = local
	}

	var stopwatch func() profiler.Stopwatch
	if traceFlag {
		shutdown, err := telemetry.InitTracer("graph-server", os.Stderr, false)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracing")
		}
		defer shutdown(context.Background())
		sw := telemetry.NewStopwatch(otel.Tracer("graph-server"))
		stopwatch = func() profiler.Stopwatch { return sw }
	} else if profileFlag {
		stopwatch = func() profiler.Stopwatch { return profiler.NewStopwatch() }
	}

	redirectURI := redirectURIFlag
	if redirectURI == "" {
		redirectURI = fmt.Sprintf("http://localhost:%d/oauth/callback", portFlag)
	}

	handler := server.New(server.Options{
		Config:      cfg,
		Dispatcher:  dispatcher,
		RedirectURI: redirectURI,
		Scopes:      strings.Split(scopesFlag, ","),
		Stopwatch:   stopwatch,
		Tracing:     traceFlag,
	})

	lambdaboot.RegisterConfig(sl, cfg).
		Config("redirectUri", redirectURI).
		Feature("profiling", stopwatch != nil).
		Feature("tracing", traceFlag).
		Log()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", portFlag),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Info().Int("port", portFlag).Msg("Starting graph server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
