package login

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/social-graph-bridge/internal/graph"
)

// PutParameterAPI is the subset of the SSM client SSMSink needs.
type PutParameterAPI interface {
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// SSMSink stores the token as a SecureString parameter, making it the
// default access token on the next cold start.
type SSMSink struct {
	client      PutParameterAPI
	tokenParam  string
	userIDParam string
}

// NewSSMSink creates a sink writing to tokenParam and, if non-empty,
// userIDParam.
func NewSSMSink(client PutParameterAPI, tokenParam, userIDParam string) *SSMSink {
	return &SSMSink{client: client, tokenParam: tokenParam, userIDParam: userIDParam}
}

// StoreToken implements TokenSink.
func (s *SSMSink) StoreToken(ctx context.Context, userID string, token graph.AccessToken) error {
	_, err := s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.tokenParam),
		Value:     aws.String(token.Value),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("store token in %s: %w", s.tokenParam, err)
	}
	log.Info().Str("param", s.tokenParam).Msg("Long-lived access token stored in SSM")

	if s.userIDParam == "" {
		return nil
	}
	_, err = s.client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(s.userIDParam),
		Value:     aws.String(userID),
		Type:      ssmtypes.ParameterTypeString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("store user id in %s: %w", s.userIDParam, err)
	}
	log.Info().Str("param", s.userIDParam).Str("userId", userID).Msg("User ID stored in SSM")
	return nil
}

// LogSink only logs that a token was obtained. It suits local runs where
// the token is read from the session instead.
type LogSink struct{}

// StoreToken implements TokenSink.
func (LogSink) StoreToken(_ context.Context, userID string, token graph.AccessToken) error {
	evt := log.Info().Str("userId", userID)
	if !token.ExpiresAt.IsZero() {
		evt = evt.Time("expiresAt", token.ExpiresAt)
	}
	evt.Msg("Long-lived access token obtained")
	return nil
}
