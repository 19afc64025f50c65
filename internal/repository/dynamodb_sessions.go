package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"appointment-bot/internal/domain"
)

const skState = "STATE#"

// SessionTable keeps one in-flight conversation scratch record per key.
type SessionTable struct {
	api       dynamodbAPI
	tableName string
}

func NewSessionTable(api dynamodbAPI, tableName string) (*SessionTable, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &SessionTable{api: api, tableName: tableName}, nil
}

// sessionPK returns the DynamoDB partition key for a conversation.
func sessionPK(key string) string {
	return "SESSION#" + key
}

func (t *SessionTable) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(key)},
		"SK": &types.AttributeValueMemberS{Value: skState},
	}
}

func (t *SessionTable) Get(ctx context.Context, key string) (domain.Conversation, bool, error) {
	out, err := t.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(t.tableName),
		Key:            t.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Conversation{}, false, fmt.Errorf("repository: Get session: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Conversation{}, false, nil
	}
	conv, err := itemToConversation(out.Item)
	if err != nil {
		return domain.Conversation{}, false, fmt.Errorf("repository: Get session: %w", err)
	}
	return conv, true, nil
}

// Take deletes the scratch record and returns it. Only one of several
// concurrent callers observes ok=true for the same record.
func (t *SessionTable) Take(ctx context.Context, key string) (domain.Conversation, bool, error) {
	out, err := t.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(t.tableName),
		Key:                 t.itemKey(key),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ReturnValues:        types.ReturnValueAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, fmt.Errorf("repository: Take session: %w", err)
	}
	if out == nil || len(out.Attributes) == 0 {
		return domain.Conversation{}, false, nil
	}
	conv, err := itemToConversation(out.Attributes)
	if err != nil {
		return domain.Conversation{}, false, fmt.Errorf("repository: Take session: %w", err)
	}
	return conv, true, nil
}

func itemToConversation(item map[string]types.AttributeValue) (domain.Conversation, error) {
	raw, err := strAttr(item, "conversation")
	if err != nil {
		return domain.Conversation{}, err
	}
	var conv domain.Conversation
	if err := json.Unmarshal([]byte(raw), &conv); err != nil {
		return domain.Conversation{}, fmt.Errorf("decode: %w", err)
	}
	return conv, nil
}

// Put writes or replaces the scratch record.
func (t *SessionTable) Put(ctx context.Context, conv domain.Conversation) error {
	if conv.Key == "" {
		return errors.New("repository: Put session: key is required")
	}
	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("repository: Put session encode: %w", err)
	}
	item := t.itemKey(conv.Key)
	item["conversation"] = &types.AttributeValueMemberS{Value: string(raw)}
	item["state"] = &types.AttributeValueMemberS{Value: string(conv.State)}
	item["lastActivity"] = &types.AttributeValueMemberS{Value: time.Unix(conv.LastActivityEpoch, 0).UTC().Format(time.RFC3339)}

	if _, err := t.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("repository: Put session: %w", err)
	}
	return nil
}

// Delete removes the scratch record; deleting a missing record is not an error.
func (t *SessionTable) Delete(ctx context.Context, key string) error {
	if _, err := t.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.tableName),
		Key:       t.itemKey(key),
	}); err != nil {
		return fmt.Errorf("repository: Delete session: %w", err)
	}
	return nil
}
