package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"appointment-bot/internal/domain"
)

func mustNewSessionTable(t *testing.T, db *fakeDynamo) *SessionTable {
	t.Helper()
	tbl, err := NewSessionTable(db, "sessions")
	require.NoError(t, err)
	return tbl
}

func testConversation() domain.Conversation {
	return domain.Conversation{
		Key:          "chat-1:42",
		ChatID:       "chat-1",
		UserID:       "42",
		State:        domain.StateSelectTeam,
		ClientName:   "Acme Co",
		SelectedTeam: []string{"John Doe"},
	}
}

func TestNewSessionTable_Validates(t *testing.T) {
	_, err := NewSessionTable(nil, "t")
	require.Error(t, err)
	_, err = NewSessionTable(&fakeDynamo{}, "")
	require.Error(t, err)
}

func TestSessionTable_PutThenGet(t *testing.T) {
	db := &fakeDynamo{}
	tbl := mustNewSessionTable(t, db)
	require.NoError(t, tbl.Put(context.Background(), testConversation()))

	item := db.lastPutInput.Item
	require.Equal(t, &types.AttributeValueMemberS{Value: "SESSION#chat-1:42"}, item["PK"])
	require.Equal(t, &types.AttributeValueMemberS{Value: skState}, item["SK"])
	require.Equal(t, &types.AttributeValueMemberS{Value: "SELECT_TEAM"}, item["state"])

	db.getOuts = []*dynamodb.GetItemOutput{{Item: item}}
	conv, ok, err := tbl.Get(context.Background(), "chat-1:42")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, testConversation(), conv)
}

func TestSessionTable_GetMissing(t *testing.T) {
	_, ok, err := mustNewSessionTable(t, &fakeDynamo{}).Get(context.Background(), "chat-1:42")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionTable_GetErrors(t *testing.T) {
	_, _, err := mustNewSessionTable(t, &fakeDynamo{getErr: errors.New("boom")}).Get(context.Background(), "k")
	require.ErrorContains(t, err, "Get session")

	db := &fakeDynamo{getOuts: []*dynamodb.GetItemOutput{{Item: map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: "SESSION#k"},
		"conversation": &types.AttributeValueMemberS{Value: "{not json"},
	}}}}
	_, _, err = mustNewSessionTable(t, db).Get(context.Background(), "k")
	require.ErrorContains(t, err, "decode")
}

func TestSessionTable_PutErrors(t *testing.T) {
	tbl := mustNewSessionTable(t, &fakeDynamo{putErr: errors.New("boom")})
	require.ErrorContains(t, tbl.Put(context.Background(), testConversation()), "boom")
	require.ErrorContains(t, tbl.Put(context.Background(), domain.Conversation{}), "key is required")
}

func TestSessionTable_Delete(t *testing.T) {
	db := &fakeDynamo{}
	require.NoError(t, mustNewSessionTable(t, db).Delete(context.Background(), "chat-1:42"))
	require.Equal(t, &types.AttributeValueMemberS{Value: "SESSION#chat-1:42"}, db.lastDelInput.Key["PK"])

	db.deleteErr = errors.New("boom")
	require.ErrorContains(t, mustNewSessionTable(t, db).Delete(context.Background(), "k"), "Delete session")
}

func TestSessionTable_StoresJSONScratch(t *testing.T) {
	db := &fakeDynamo{}
	require.NoError(t, mustNewSessionTable(t, db).Put(context.Background(), testConversation()))
	raw := db.lastPutInput.Item["conversation"].(*types.AttributeValueMemberS).Value
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	require.Equal(t, "Acme Co", decoded["clientName"])
}

func TestSessionTable_TakeClaimsOnce(t *testing.T) {
	db := &fakeDynamo{}
	tbl := mustNewSessionTable(t, db)
	require.NoError(t, tbl.Put(context.Background(), testConversation()))
	db.delOut = &dynamodb.DeleteItemOutput{Attributes: db.lastPutInput.Item}

	conv, ok, err := tbl.Take(context.Background(), "chat-1:42")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, testConversation(), conv)

	in := db.lastDelInput
	require.Equal(t, "attribute_exists(PK)", *in.ConditionExpression)
	require.Equal(t, types.ReturnValueAllOld, in.ReturnValues)
	require.Equal(t, &types.AttributeValueMemberS{Value: "SESSION#chat-1:42"}, in.Key["PK"])

	db.delOut = nil
	db.deleteErr = &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	_, ok, err = tbl.Take(context.Background(), "chat-1:42")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionTable_TakeErrors(t *testing.T) {
	db := &fakeDynamo{deleteErr: errors.New("throttled")}
	_, _, err := mustNewSessionTable(t, db).Take(context.Background(), "k")
	require.ErrorContains(t, err, "Take session")

	db = &fakeDynamo{delOut: &dynamodb.DeleteItemOutput{Attributes: map[string]types.AttributeValue{
		"conversation": &types.AttributeValueMemberS{Value: "{not json"},
	}}}
	_, _, err = mustNewSessionTable(t, db).Take(context.Background(), "k")
	require.ErrorContains(t, err, "decode")
}
