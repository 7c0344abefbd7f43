package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"relay-pipeline/internal/domain"
)

const (
	pkPrefixDispatch = "DISPATCH#"
	statusPending    = "pending"
	statusLaunched   = "launched"
	ttlDuration      = 14 * 24 * time.Hour // outlives any queue retention period
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Client is a launch ledger backed by a DynamoDB table keyed on PK.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// dispatchPK returns the partition key for a dispatch message.
func dispatchPK(dedupID string) string {
	return pkPrefixDispatch + dedupID
}

// Claim reserves dedupID with a conditional put. If another delivery already
// holds the claim it returns false and the task ARN recorded so far.
func (c *Client) Claim(ctx context.Context, dedupID string, ref domain.StoredFileRef) (bool, string, error) {
	if strings.TrimSpace(dedupID) == "" {
		return false, "", errors.New("repository: Claim: dedup id is required")
	}
	now := c.now().UTC()

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: dispatchPK(dedupID)},
			"dedupId":   &types.AttributeValueMemberS{Value: dedupID},
			"bucket":    &types.AttributeValueMemberS{Value: ref.Bucket},
			"key":       &types.AttributeValueMemberS{Value: ref.Key},
			"status":    &types.AttributeValueMemberS{Value: statusPending},
			"createdAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(ttlDuration).Unix())},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err == nil {
		return true, "", nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return false, "", fmt.Errorf("repository: Claim: %w", err)
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: dispatchPK(dedupID)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, "", fmt.Errorf("repository: Claim read existing: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return false, "", nil
	}
	arn, _ := strAttr(out.Item, "taskArn") // absent while pending
	return false, arn, nil
}

// Record marks the claim as launched with the task's ARN.
func (c *Client) Record(ctx context.Context, dedupID, taskARN string) error {
	_, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: dispatchPK(dedupID)},
		},
		UpdateExpression: aws.String("SET #status = :status, taskArn = :arn, launchedAt = :at"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: statusLaunched},
			":arn":    &types.AttributeValueMemberS{Value: taskARN},
			":at":     &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: Record: %w", err)
	}
	return nil
}

// Release drops a pending claim so a redelivery can launch again. A claim
// that has already been recorded as launched is left untouched.
func (c *Client) Release(ctx context.Context, dedupID string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: dispatchPK(dedupID)},
		},
		ConditionExpression: aws.String("#status = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: statusPending},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return fmt.Errorf("repository: Release: %w", err)
	}
	return nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
