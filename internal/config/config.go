// Package config resolves the application configuration.
//
// Values come from environment variables first. Secrets that are not set in
// the environment are read from SSM Parameter Store, so a Lambda only needs
// the parameter paths in its environment and never the secrets themselves.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/social-graph-bridge/internal/graph"
)

// Option names accepted by Parse.
const (
	OptAppID               = "app_id"
	OptAppSecret           = "app_secret"
	OptWebhookVerifyToken  = "webhook_verify_token"
	OptEnableBetaMode      = "enable_beta_mode"
	OptDefaultGraphVersion = "default_graph_version"
	OptDefaultAccessToken  = "default_access_token"
)

// DefaultSSMPrefix is the parameter path prefix used when no per-option
// path override is set.
const DefaultSSMPrefix = "/social-graph-bridge/prod/"

// Config is the resolved application configuration.
type Config struct {
	AppID               string
	AppSecret           string
	WebhookVerifyToken  string
	EnableBetaMode      bool
	DefaultGraphVersion string
	DefaultAccessToken  string
}

// Client returns the subset handed to the Graph client. The webhook verify
// token is left out.
func (c Config) Client() graph.Config {
	return graph.Config{
		AppID:               c.AppID,
		AppSecret:           c.AppSecret,
		DefaultAccessToken:  c.DefaultAccessToken,
		DefaultGraphVersion: c.DefaultGraphVersion,
		EnableBetaMode:      c.EnableBetaMode,
	}
}

// Parse builds a Config from option names to values. Unknown options are
// rejected.
func Parse(opts map[string]string) (Config, error) {
	var c Config
	for k, v := range opts {
		if err := c.set(k, v); err != nil {
			return Config{}, err
		}
	}
	return c, nil
}

func (c *Config) set(name, value string) error {
	switch name {
	case OptAppID:
		c.AppID = value
	case OptAppSecret:
		c.AppSecret = value
	case OptWebhookVerifyToken:
		c.WebhookVerifyToken = value
	case OptEnableBetaMode:
		if value == "" {
			c.EnableBetaMode = false
			return nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("option %s: %w", name, err)
		}
		c.EnableBetaMode = b
	case OptDefaultGraphVersion:
		c.DefaultGraphVersion = value
	case OptDefaultAccessToken:
		c.DefaultAccessToken = value
	default:
		return fmt.Errorf("unknown option %q", name)
	}
	return nil
}

func (c *Config) get(name string) string {
	switch name {
	case OptAppID:
		return c.AppID
	case OptAppSecret:
		return c.AppSecret
	case OptWebhookVerifyToken:
		return c.WebhookVerifyToken
	case OptDefaultAccessToken:
		return c.DefaultAccessToken
	}
	return ""
}

// EnvVar returns the environment variable an option is read from,
// e.g. GRAPH_APP_SECRET for app_secret.
func EnvVar(option string) string {
	return "GRAPH_" + strings.ToUpper(option)
}

// SSMParamEnvVar returns the environment variable that overrides an
// option's SSM parameter path, e.g. SSM_APP_SECRET_PARAM.
func SSMParamEnvVar(option string) string {
	return "SSM_" + strings.ToUpper(option) + "_PARAM"
}

// SSMParamPath returns the SSM parameter path for an option.
func SSMParamPath(option string) string {
	if v := os.Getenv(SSMParamEnvVar(option)); v != "" {
		return v
	}
	return DefaultSSMPrefix + strings.ReplaceAll(option, "_", "-")
}

// FromEnv reads every option from its GRAPH_* environment variable.
func FromEnv() (Config, error) {
	opts := make(map[string]string)
	for _, name := range []string{
		OptAppID, OptAppSecret, OptWebhookVerifyToken,
		OptEnableBetaMode, OptDefaultGraphVersion, OptDefaultAccessToken,
	} {
		if v, ok := os.LookupEnv(EnvVar(name)); ok {
			opts[name] = v
		}
	}
	return Parse(opts)
}

// ParameterGetter is the subset of the SSM client Load needs.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// secretOptions are resolved from SSM when the environment leaves them
// empty. A missing parameter is not an error; the option stays empty.
var secretOptions = []string{OptAppID, OptAppSecret, OptWebhookVerifyToken, OptDefaultAccessToken}

// Load reads the environment and fills empty secrets from SSM. A nil
// client skips SSM entirely.
func Load(ctx context.Context, client ParameterGetter) (Config, error) {
	c, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	if client == nil {
		return c, nil
	}

	for _, name := range secretOptions {
		if c.get(name) != "" {
			continue
		}
		path := SSMParamPath(name)
		start := time.Now()
		result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(path),
			WithDecryption: aws.Bool(name != OptAppID),
		})
		if err != nil {
			var notFound *ssmtypes.ParameterNotFound
			if errors.As(err, &notFound) {
				log.Warn().Str("param", path).Str("option", name).Msg("SSM parameter not found, option left empty")
				continue
			}
			return Config{}, fmt.Errorf("read %s from SSM: %w", path, err)
		}
		if err := c.set(name, aws.ToString(result.Parameter.Value)); err != nil {
			return Config{}, err
		}
		log.Debug().Str("param", path).Dur("elapsed", time.Since(start)).Msg("Option loaded from SSM")
	}
	return c, nil
}

// Validate reports options a Graph client cannot work without.
func (c Config) Validate() error {
	var missing []string
	if c.AppID == "" {
		missing = append(missing, OptAppID)
	}
	if c.AppSecret == "" {
		missing = append(missing, OptAppSecret)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required options: %v", missing)
	}
	return nil
}
