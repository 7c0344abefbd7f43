package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"

	"relay-pipeline/internal/usecase"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, in usecase.DispatchInput) (usecase.DispatchOutput, error)
}

type DispatchHandler struct {
	dispatcher Dispatcher
}

type dispatchResponse struct {
	Message string  `json:"message"`
	TaskARN *string `json:"task_arn"`
}

func NewDispatchHandler(dispatcher Dispatcher) (*DispatchHandler, error) {
	if dispatcher == nil {
		return nil, errors.New("handler: dispatcher must not be nil")
	}
	return &DispatchHandler{dispatcher: dispatcher}, nil
}

// Handle launches one task for the first record of the batch. The queue
// trigger is expected to use a batch size of one.
func (h *DispatchHandler) Handle(ctx context.Context, ev events.SQSEvent) (Response, error) {
	if len(ev.Records) == 0 {
		return h.fail(&usecase.Error{Code: usecase.ErrorMalformedMessage, Reason: "empty_batch"}), nil
	}
	rec := ev.Records[0]
	log.Info().
		Str("messageId", rec.MessageId).
		Str("eventSource", rec.EventSource).
		Int("records", len(ev.Records)).
		Msg("Received dispatch message")
	if len(ev.Records) > 1 {
		log.Warn().Int("ignored", len(ev.Records)-1).Msg("Only the first record of the batch is dispatched")
	}

	out, err := h.dispatcher.Dispatch(ctx, usecase.DispatchInput{Body: rec.Body, MessageID: rec.MessageId})
	if err != nil {
		return h.fail(err), nil
	}

	var arn *string
	if out.Task.TaskARN != "" {
		arn = &out.Task.TaskARN
	}
	if out.Duplicate && arn == nil {
		log.Warn().Str("messageId", rec.MessageId).Msg("Launch for message is still pending, skipping")
		return jsonResponse(http.StatusOK, dispatchResponse{
			Message: "ECS task launch already pending for this message",
		}), nil
	}
	if out.Duplicate {
		log.Info().Str("messageId", rec.MessageId).Str("taskArn", out.Task.TaskARN).Msg("Task already launched for message, skipping")
		return jsonResponse(http.StatusOK, dispatchResponse{
			Message: "ECS task already started for this message",
			TaskARN: arn,
		}), nil
	}

	log.Info().
		Str("cluster", out.Task.Cluster).
		Strs("command", out.Task.Command).
		Str("taskArn", out.Task.TaskARN).
		Msg("ECS task launched")
	return jsonResponse(http.StatusOK, dispatchResponse{
		Message: "ECS task started successfully",
		TaskARN: arn,
	}), nil
}

func (h *DispatchHandler) fail(err error) Response {
	withErrorFields(log.Error(), err).Msg("Error launching ECS task")
	return jsonResponse(http.StatusInternalServerError, newErrorResponse(err))
}
