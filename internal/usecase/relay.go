package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"

	"relay-pipeline/internal/domain"
)

// ObjectWriter persists raw bytes under bucket/key.
type ObjectWriter interface {
	PutObject(ctx context.Context, bucket, key string, body []byte) error
}

// MessagePublisher sends a dispatch message and returns the queue's message id
// once the queue has acknowledged it.
type MessagePublisher interface {
	Publish(ctx context.Context, msg domain.DispatchMessage) (string, error)
}

type RelayService struct {
	store             ObjectWriter
	queue             MessagePublisher
	destinationPrefix string
	groupID           string
}

// RelayInput carries the raw request fields. FileBase64 is a pointer so an
// absent field can be told apart from an empty file.
type RelayInput struct {
	BucketName string
	FileName   string
	FileBase64 *string
}

type RelayOutput struct {
	// Ref is set as soon as the object is stored, including when the
	// subsequent publish fails.
	Ref       domain.StoredFileRef
	Message   domain.DispatchMessage
	MessageID string
}

func NewRelayService(store ObjectWriter, queue MessagePublisher, destinationPrefix, groupID string) (*RelayService, error) {
	if store == nil {
		return nil, errors.New("usecase: object writer must not be nil")
	}
	if queue == nil {
		return nil, errors.New("usecase: message publisher must not be nil")
	}
	destinationPrefix = strings.TrimRight(strings.TrimSpace(destinationPrefix), "/")
	if destinationPrefix == "" {
		return nil, errors.New("usecase: destination prefix must not be empty")
	}
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, errors.New("usecase: message group id must not be empty")
	}
	return &RelayService{
		store:             store,
		queue:             queue,
		destinationPrefix: destinationPrefix,
		groupID:           groupID,
	}, nil
}

// Relay stores the decoded file and publishes one dispatch message for it.
// A publish failure after a successful write is not compensated; the stored
// object is reported through RelayOutput.Ref.
func (s *RelayService) Relay(ctx context.Context, in RelayInput) (RelayOutput, error) {
	req, err := decodeIngestRequest(in)
	if err != nil {
		return RelayOutput{}, err
	}

	ref := domain.StoredFileRef{
		Bucket: req.Bucket,
		Key:    s.ObjectKey(req.FileName),
	}
	if err := s.store.PutObject(ctx, ref.Bucket, ref.Key, req.Content); err != nil {
		return RelayOutput{}, newError(ErrorStorage, "s3_put_error", err)
	}

	msg := domain.DispatchMessage{
		GroupID:         s.groupID,
		DeduplicationID: newUUID(),
		StoredFileRef:   ref,
	}
	messageID, err := s.queue.Publish(ctx, msg)
	if err != nil {
		return RelayOutput{Ref: ref, Message: msg}, newError(ErrorQueue, "sqs_send_error", err)
	}

	return RelayOutput{
		Ref:       ref,
		Message:   msg,
		MessageID: messageID,
	}, nil
}

// ObjectKey joins the destination prefix and the caller-supplied file name.
// The name is not sanitized.
func (s *RelayService) ObjectKey(fileName string) string {
	return s.destinationPrefix + "/" + fileName
}

func decodeIngestRequest(in RelayInput) (domain.IngestRequest, error) {
	if strings.TrimSpace(in.BucketName) == "" {
		return domain.IngestRequest{}, newError(ErrorMalformedRequest, "missing_bucket_name", nil)
	}
	if strings.TrimSpace(in.FileName) == "" {
		return domain.IngestRequest{}, newError(ErrorMalformedRequest, "missing_file_name", nil)
	}
	if in.FileBase64 == nil {
		return domain.IngestRequest{}, newError(ErrorMalformedRequest, "missing_file_base64", nil)
	}

	// Wrapped (MIME style) payloads carry line breaks.
	encoded := strings.Join(strings.Fields(*in.FileBase64), "")
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.IngestRequest{}, newError(ErrorDecode, "invalid_base64", err)
	}

	return domain.IngestRequest{
		Bucket:   in.BucketName,
		FileName: in.FileName,
		Content:  content,
	}, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
