package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"relay-pipeline/internal/usecase"
)

// Response is the plain status/headers/body envelope both Lambdas return.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

func (r Response) proxy() events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: r.StatusCode,
		Headers:    r.Headers,
		Body:       r.Body,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func jsonResponse(status int, v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response","code":"INTERNAL_ERROR"}`)
	}
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       string(body),
	}
}

func newErrorResponse(err error) errorResponse {
	return errorResponse{Error: err.Error(), Code: string(usecase.CodeOf(err))}
}

// withErrorFields adds the error code and, for AWS failures, the service's
// error code to a log event.
func withErrorFields(e *zerolog.Event, err error) *zerolog.Event {
	e = e.Err(err).Str("code", string(usecase.CodeOf(err)))
	var ue *usecase.Error
	if errors.As(err, &ue) {
		e = e.Str("reason", ue.Reason)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		e = e.Str("awsErrorCode", apiErr.ErrorCode())
	}
	return e
}
