package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the minimal S3 interface required by Client.
// *s3.Client from aws-sdk-go-v2 satisfies this interface.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client reads and writes whole objects.
type Client struct {
	api s3API
}

func New(api s3API) (*Client, error) {
	if api == nil {
		return nil, errors.New("objectstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

// PutObject writes body to bucket/key, replacing any existing object.
func (c *Client) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	if err := validateLocation(bucket, key); err != nil {
		return err
	}
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("objectstore: put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Open returns the object's body. The caller must close it.
func (c *Client) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := validateLocation(bucket, key); err != nil {
		return nil, err
	}
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: get %s/%s: %w", bucket, key, err)
	}
	if out == nil || out.Body == nil {
		return nil, fmt.Errorf("objectstore: get %s/%s: empty body", bucket, key)
	}
	return out.Body, nil
}

// ReadAll downloads the whole object and closes the connection before
// returning, so callers never hold a response body open.
func (c *Client) ReadAll(ctx context.Context, bucket, key string) ([]byte, error) {
	body, err := c.Open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

func validateLocation(bucket, key string) error {
	if strings.TrimSpace(bucket) == "" {
		return errors.New("objectstore: bucket is required")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("objectstore: key is required")
	}
	return nil
}
