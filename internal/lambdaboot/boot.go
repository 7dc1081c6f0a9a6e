// Package lambdaboot provides shared cold-start bootstrap logic.
//
// Every entry point needs some subset of: AWS config, SSM-backed
// configuration, a DynamoDB session table, an EventBridge bus, and startup
// logging. Each init() is a short composition of these helpers.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/social-graph-bridge/internal/config"
	"github.com/fpang/social-graph-bridge/internal/event"
	"github.com/fpang/social-graph-bridge/internal/logging"
	"github.com/fpang/social-graph-bridge/internal/session"
)

// Environment variables read by the helpers below.
const (
	EnvEventBusName     = "EVENT_BUS_NAME"
	EnvSessionTableName = "SESSION_TABLE_NAME"
)

// AWSClients holds the core AWS SDK clients used across entry points.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it with an SSM client.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// LoadConfig resolves the application configuration from the environment
// and SSM. Fatals on error or when the app credentials are missing.
func LoadConfig(ssmClient *ssm.Client) config.Config {
	start := time.Now()
	var getter config.ParameterGetter
	if ssmClient != nil {
		getter = ssmClient
	}
	cfg, err := config.Load(context.Background(), getter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Debug().Dur("elapsed", time.Since(start)).Msg("Configuration loaded")
	return cfg
}

// InitEventBridge returns an EventBridge dispatcher for the bus named by
// EVENT_BUS_NAME, or nil (with a warning) if it is not set.
func InitEventBridge(cfg aws.Config) *event.EventBridge {
	bus := os.Getenv(EnvEventBusName)
	if bus == "" {
		log.Warn().Str("envVar", EnvEventBusName).Msg("Event bus not set, updates stay in process")
		return nil
	}
	return event.NewEventBridge(eventbridge.NewFromConfig(cfg), bus)
}

// InitSessions returns a session factory backed by the DynamoDB table named
// by SESSION_TABLE_NAME. Fatals if the variable is empty.
func InitSessions(cfg aws.Config) session.Factory {
	tableName := os.Getenv(EnvSessionTableName)
	if tableName == "" {
		log.Fatal().Str("envVar", EnvSessionTableName).Msg("DynamoDB session table environment variable is required")
	}
	client := dynamodb.NewFromConfig(cfg)
	return func(id string) session.Session {
		return session.NewDynamoSession(client, tableName, id)
	}
}

// StartupLog returns a startup logger timing init from initStart.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name, initStart)
}

// RegisterConfig adds the non-secret parts of cfg and the SSM paths secrets
// come from to a startup logger.
func RegisterConfig(sl *logging.StartupLogger, cfg config.Config) *logging.StartupLogger {
	for _, opt := range []string{config.OptAppSecret, config.OptWebhookVerifyToken, config.OptDefaultAccessToken} {
		if os.Getenv(config.EnvVar(opt)) == "" {
			sl.SSMParam(opt, config.SSMParamPath(opt))
		}
	}
	return sl.
		Config("appId", cfg.AppID).
		Config("graphVersion", logging.EnvOrDefault(config.EnvVar(config.OptDefaultGraphVersion), "default")).
		Feature("betaMode", cfg.EnableBetaMode).
		Feature("defaultAccessToken", cfg.DefaultAccessToken != "")
}
