package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key layout for the single-table design: every entry of a session
// shares the partition key, one item per session key.
const (
	pkPrefix = "SESSION#"
	skPrefix = "DATA#"

	// DefaultTTL is how long an entry survives without being rewritten.
	DefaultTTL = 24 * time.Hour
)

// DynamoAPI is the subset of the DynamoDB client the session needs.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoSession is a Session stored in DynamoDB. Expired items are removed
// by the table's TTL on the expiresAt attribute.
type DynamoSession struct {
	client    DynamoAPI
	tableName string
	sessionID string
	ttl       time.Duration
	now       func() time.Time
}

// Compile-time interface check.
var _ Session = (*DynamoSession)(nil)

// NewDynamoSession binds a session id to a table.
func NewDynamoSession(client DynamoAPI, tableName, sessionID string) *DynamoSession {
	return &DynamoSession{
		client:    client,
		tableName: tableName,
		sessionID: sessionID,
		ttl:       DefaultTTL,
		now:       time.Now,
	}
}

func (s *DynamoSession) key(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pkPrefix + s.sessionID},
		"SK": &types.AttributeValueMemberS{Value: skPrefix + key},
	}
}

// Get implements Session.
func (s *DynamoSession) Get(ctx context.Context, key string) (any, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		Key:            s.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem session=%s key=%s: %w", s.sessionID, key, err)
	}
	if result.Item == nil {
		return nil, nil
	}
	av, ok := result.Item["value"]
	if !ok {
		return nil, nil
	}

	var value any
	if err := attributevalue.Unmarshal(av, &value); err != nil {
		return nil, fmt.Errorf("unmarshal session=%s key=%s: %w", s.sessionID, key, err)
	}
	return value, nil
}

// Set implements Session.
func (s *DynamoSession) Set(ctx context.Context, key string, value any) error {
	av, err := attributevalue.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal session=%s key=%s: %w", s.sessionID, key, err)
	}

	item := s.key(key)
	item["value"] = av
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Add(s.ttl).Unix(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem session=%s key=%s: %w", s.sessionID, key, err)
	}
	log.Debug().Str("sessionId", s.sessionID).Str("key", key).Msg("Session value stored")
	return nil
}
