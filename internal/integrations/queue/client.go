package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"relay-pipeline/internal/domain"
)

// sqsAPI is the minimal SQS interface required by Client.
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Client publishes dispatch messages to a FIFO queue.
type Client struct {
	api      sqsAPI
	queueURL string
}

func New(api sqsAPI, queueURL string) (*Client, error) {
	if api == nil {
		return nil, errors.New("queue: api must not be nil")
	}
	if strings.TrimSpace(queueURL) == "" {
		return nil, errors.New("queue: queue URL must not be empty")
	}
	return &Client{api: api, queueURL: queueURL}, nil
}

// Publish sends msg and waits for the queue to acknowledge it. The group and
// deduplication ids are sent both as FIFO attributes and inside the body.
func (c *Client) Publish(ctx context.Context, msg domain.DispatchMessage) (string, error) {
	if msg.GroupID == "" || msg.DeduplicationID == "" {
		return "", errors.New("queue: group id and deduplication id are required")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("queue: marshal message: %w", err)
	}

	out, err := c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:               aws.String(c.queueURL),
		MessageBody:            aws.String(string(body)),
		MessageGroupId:         aws.String(msg.GroupID),
		MessageDeduplicationId: aws.String(msg.DeduplicationID),
	})
	if err != nil {
		return "", fmt.Errorf("queue: send message: %w", err)
	}
	if out == nil {
		return "", nil
	}
	return aws.ToString(out.MessageId), nil
}
