package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"relay-pipeline/internal/domain"
)

type fakeDynamo struct {
	getOut          *dynamodb.GetItemOutput
	getErr          error
	putErr          error
	updateErr       error
	deleteErr       error
	lastGetInput    *dynamodb.GetItemInput
	lastPutInput    *dynamodb.PutItemInput
	lastUpdateInput *dynamodb.UpdateItemInput
	lastDeleteInput *dynamodb.DeleteItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdateInput = in
	return &dynamodb.UpdateItemOutput{}, f.updateErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDeleteInput = in
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func conditionFailed() error {
	return fmt.Errorf("operation error DynamoDB: %w", &types.ConditionalCheckFailedException{})
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }
	return c
}

var testRef = domain.StoredFileRef{Bucket: "bk-test", Key: "your_folder_in_bucket/a.csv"}

func TestClaim_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	claimed, arn, err := c.Claim(context.Background(), "dedup-1", testRef)
	require.NoError(t, err)
	require.True(t, claimed)
	require.Empty(t, arn)
	require.Equal(t, "attribute_not_exists(PK)", *db.lastPutInput.ConditionExpression)
	require.Equal(t, "DISPATCH#dedup-1", db.lastPutInput.Item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "pending", db.lastPutInput.Item["status"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "your_folder_in_bucket/a.csv", db.lastPutInput.Item["key"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "2026-10-15T09:00:00Z", db.lastPutInput.Item["createdAt"].(*types.AttributeValueMemberS).Value)
}

func TestClaim_AlreadyLaunched(t *testing.T) {
	db := &fakeDynamo{
		putErr: conditionFailed(),
		getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
			"PK":      &types.AttributeValueMemberS{Value: "DISPATCH#dedup-1"},
			"status":  &types.AttributeValueMemberS{Value: "launched"},
			"taskArn": &types.AttributeValueMemberS{Value: "arn:task/1"},
		}},
	}
	c := mustNewClient(t, db)

	claimed, arn, err := c.Claim(context.Background(), "dedup-1", testRef)
	require.NoError(t, err)
	require.False(t, claimed)
	require.Equal(t, "arn:task/1", arn)
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestClaim_AlreadyPending(t *testing.T) {
	db := &fakeDynamo{
		putErr: conditionFailed(),
		getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
			"PK":     &types.AttributeValueMemberS{Value: "DISPATCH#dedup-1"},
			"status": &types.AttributeValueMemberS{Value: "pending"},
		}},
	}
	c := mustNewClient(t, db)

	claimed, arn, err := c.Claim(context.Background(), "dedup-1", testRef)
	require.NoError(t, err)
	require.False(t, claimed)
	require.Empty(t, arn)
}

func TestClaim_PutError(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{putErr: errors.New("ProvisionedThroughputExceededException")})
	_, _, err := c.Claim(context.Background(), "dedup-1", testRef)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Claim")
}

func TestClaim_ReadExistingError(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{putErr: conditionFailed(), getErr: errors.New("boom")})
	_, _, err := c.Claim(context.Background(), "dedup-1", testRef)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read existing")
}

func TestClaim_EmptyDedupID(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	_, _, err := c.Claim(context.Background(), " ", testRef)
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
	require.Nil(t, db.lastPutInput)
}

func TestRecord_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	require.NoError(t, c.Record(context.Background(), "dedup-1", "arn:task/1"))
	require.Equal(t, "DISPATCH#dedup-1", db.lastUpdateInput.Key["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "launched", db.lastUpdateInput.ExpressionAttributeValues[":status"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "arn:task/1", db.lastUpdateInput.ExpressionAttributeValues[":arn"].(*types.AttributeValueMemberS).Value)
}

func TestRecord_DynamoError(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{updateErr: errors.New("internal server error")})
	err := c.Record(context.Background(), "dedup-1", "arn")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Record")
}

func TestRelease_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	require.NoError(t, c.Release(context.Background(), "dedup-1"))
	require.Equal(t, "#status = :pending", *db.lastDeleteInput.ConditionExpression)
}

func TestRelease_AlreadyLaunchedIsNoop(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{deleteErr: conditionFailed()})
	require.NoError(t, c.Release(context.Background(), "dedup-1"))
}

func TestRelease_DynamoError(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{deleteErr: errors.New("boom")})
	err := c.Release(context.Background(), "dedup-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Release")
}

func TestDispatchPK(t *testing.T) {
	require.Equal(t, "DISPATCH#abc", dispatchPK("abc"))
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "test-table")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_EmptyTableName(t *testing.T) {
	_, err := New(&fakeDynamo{}, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}
