package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"

	"relay-pipeline/internal/usecase"
)

const payloadField = "file_base64"

type Relayer interface {
	Relay(ctx context.Context, in usecase.RelayInput) (usecase.RelayOutput, error)
}

type IngestHandler struct {
	relay Relayer
}

type ingestResponse struct {
	Message string `json:"message"`
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
}

type ingestErrorResponse struct {
	errorResponse
	// Event echoes the request body without the payload; null when the body
	// could not be parsed.
	Event map[string]any `json:"event"`
}

func NewIngestHandler(relay Relayer) (*IngestHandler, error) {
	if relay == nil {
		return nil, errors.New("handler: relayer must not be nil")
	}
	return &IngestHandler{relay: relay}, nil
}

func (h *IngestHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	fields, err := parseBody(req)
	if err != nil {
		return h.fail(nil, err), nil
	}

	in, err := relayInput(fields)
	if err != nil {
		return h.fail(fields, err), nil
	}
	log.Info().
		Str("bucket", in.BucketName).
		Str("fileName", in.FileName).
		Str("requestId", req.RequestContext.RequestID).
		Msg("Received upload request")

	out, err := h.relay.Relay(ctx, in)
	if err != nil {
		if usecase.CodeOf(err) == usecase.ErrorQueue {
			log.Warn().
				Str("bucket", out.Ref.Bucket).
				Str("key", out.Ref.Key).
				Msg("Object stored but dispatch message was not published")
		}
		return h.fail(fields, err), nil
	}

	log.Info().
		Str("bucket", out.Ref.Bucket).
		Str("key", out.Ref.Key).
		Str("messageId", out.MessageID).
		Str("deduplicationId", out.Message.DeduplicationID).
		Msg("File stored and dispatch message sent")

	return jsonResponse(http.StatusOK, ingestResponse{
		Message: "File uploaded successfully",
		Bucket:  out.Ref.Bucket,
		Key:     out.Ref.Key,
	}).proxy(), nil
}

func (h *IngestHandler) fail(fields map[string]any, err error) events.APIGatewayProxyResponse {
	withErrorFields(log.Error(), err).Msg("Upload failed")

	var echo map[string]any
	if fields != nil {
		echo = make(map[string]any, len(fields))
		for k, v := range fields {
			if k != payloadField {
				echo[k] = v
			}
		}
	}
	return jsonResponse(http.StatusInternalServerError, ingestErrorResponse{
		errorResponse: newErrorResponse(err),
		Event:         echo,
	}).proxy()
}

func parseBody(req events.APIGatewayProxyRequest) (map[string]any, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, &usecase.Error{Code: usecase.ErrorMalformedRequest, Reason: "invalid_body_encoding", Err: err}
		}
		body = raw
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, &usecase.Error{Code: usecase.ErrorMalformedRequest, Reason: "invalid_json", Err: err}
	}
	if fields == nil {
		return nil, &usecase.Error{Code: usecase.ErrorMalformedRequest, Reason: "invalid_json", Err: errors.New("body is null")}
	}
	return fields, nil
}

func relayInput(fields map[string]any) (usecase.RelayInput, error) {
	bucket, _, err := stringField(fields, "bucket_name")
	if err != nil {
		return usecase.RelayInput{}, err
	}
	fileName, _, err := stringField(fields, "file_name")
	if err != nil {
		return usecase.RelayInput{}, err
	}
	payload, ok, err := stringField(fields, payloadField)
	if err != nil {
		return usecase.RelayInput{}, err
	}

	in := usecase.RelayInput{BucketName: bucket, FileName: fileName}
	if ok {
		in.FileBase64 = &payload
	}
	return in, nil
}

// stringField reads key from fields. A present non-string value is malformed;
// a missing one is left for the relay to reject.
func stringField(fields map[string]any, key string) (string, bool, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, isString := v.(string)
	if !isString {
		return "", false, &usecase.Error{
			Code:   usecase.ErrorMalformedRequest,
			Reason: "invalid_" + key,
			Err:    fmt.Errorf("%s must be a string, got %T", key, v),
		}
	}
	return s, true, nil
}
