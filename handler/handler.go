package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"prompt-agent/internal/domain"
	"prompt-agent/internal/usecase"
)

const (
	correlationHeader     = "X-Correlation-Id"
	defaultMaxUploadBytes = 10 << 20

	// MultipartOverhead is the body allowance on top of the file cap for the
	// form boundaries, part headers and the prompt and email fields.
	MultipartOverhead = 64 << 10

	pathSendPrompt        = "/api/send-prompt"
	pathSendPromptWithCSV = "/api/send-prompt-with-csv"
	pathHealth            = "/api/health"
)

// Error codes produced by the handler itself, next to usecase.ErrorCode values.
const (
	codeNotFound         = "NOT_FOUND"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
)

type promptUseCase interface {
	SendPrompt(ctx context.Context, req domain.PromptRequest) (domain.PromptResponse, error)
	SendPromptWithCSV(ctx context.Context, req domain.PromptRequest, csvData []byte) (domain.PromptResponse, error)
}

type Handler struct {
	uc             promptUseCase
	maxUploadBytes int64
}

type Option func(*Handler)

// WithMaxUploadBytes caps the uploaded CSV file and the JSON request body.
// Multipart bodies may exceed it by MultipartOverhead.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

type sendPromptRequest struct {
	Content string  `json:"content"`
	Email   *string `json:"email"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// requestError is a client-side failure detected before the usecase runs.
type requestError struct {
	status  int
	code    string
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) *requestError {
	return &requestError{status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput), message: fmt.Sprintf(format, args...)}
}

func tooLarge(limit int64) *requestError {
	return &requestError{status: http.StatusRequestEntityTooLarge, code: codePayloadTooLarge, message: fmt.Sprintf("payload exceeds %d bytes", limit)}
}

func NewHandler(uc promptUseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: usecase must not be nil")
	}
	h := &Handler{uc: uc, maxUploadBytes: defaultMaxUploadBytes}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle routes an API Gateway proxy request. Failures are always rendered as
// JSON responses; the returned error is reserved for the Lambda runtime.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := slog.With("correlation_id", correlationID, "method", req.HTTPMethod, "path", req.Path)

	path := strings.TrimRight(req.Path, "/")
	var allowed string
	switch path {
	case pathSendPrompt, pathSendPromptWithCSV:
		allowed = http.MethodPost
	case pathHealth:
		allowed = http.MethodGet
	default:
		return errorJSON(http.StatusNotFound, codeNotFound, "route not found", correlationID), nil
	}
	if !strings.EqualFold(req.HTTPMethod, allowed) {
		resp := errorJSON(http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed", correlationID)
		resp.Headers["Allow"] = allowed
		return resp, nil
	}

	if path == pathHealth {
		return jsonResponse(http.StatusOK, healthResponse{Status: "ok"}, correlationID), nil
	}

	bodyLimit := h.maxUploadBytes
	if path == pathSendPromptWithCSV {
		bodyLimit += MultipartOverhead
	}
	body, err := decodeBody(req, bodyLimit)
	if err != nil {
		return h.failure(ctx, logger, err, correlationID), nil
	}

	var out domain.PromptResponse
	if path == pathSendPrompt {
		out, err = h.sendPrompt(ctx, body)
	} else {
		out, err = h.sendPromptWithCSV(ctx, req.Headers, body)
	}
	if err != nil {
		return h.failure(ctx, logger, err, correlationID), nil
	}

	logger.InfoContext(ctx, "prompt answered", "response_id", out.ID, "model_id", out.ModelID)
	return jsonResponse(http.StatusOK, out, correlationID), nil
}

func (h *Handler) sendPrompt(ctx context.Context, body []byte) (domain.PromptResponse, error) {
	var in sendPromptRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return domain.PromptResponse{}, badRequest("invalid JSON body: %v", err)
	}
	return h.uc.SendPrompt(ctx, domain.PromptRequest{Content: in.Content, Email: deref(in.Email)})
}

func (h *Handler) sendPromptWithCSV(ctx context.Context, headers map[string]string, body []byte) (domain.PromptResponse, error) {
	form, err := parseUpload(headerValue(headers, "Content-Type"), body, h.maxUploadBytes)
	if err != nil {
		return domain.PromptResponse{}, err
	}
	req := domain.PromptRequest{Content: form.prompt, Email: form.email}
	return h.uc.SendPromptWithCSV(ctx, req, form.csvFile)
}

func decodeBody(req events.APIGatewayProxyRequest, limit int64) ([]byte, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, badRequest("invalid base64 body")
		}
		body = decoded
	}
	if int64(len(body)) > limit {
		return nil, tooLarge(limit)
	}
	return body, nil
}

func (h *Handler) failure(ctx context.Context, logger *slog.Logger, err error, correlationID string) events.APIGatewayProxyResponse {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		logger.WarnContext(ctx, "request rejected", "status", reqErr.status, "err", reqErr.message)
		return errorJSON(reqErr.status, reqErr.code, reqErr.message, correlationID)
	}

	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		status := statusForCode(ucErr.Code)
		logger.ErrorContext(ctx, "prompt failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
		return errorJSON(status, string(ucErr.Code), ucErr.Reason, correlationID)
	}

	logger.ErrorContext(ctx, "unexpected error", "err", err)
	return errorJSON(http.StatusInternalServerError, string(usecase.ErrorInternal), "internal error", correlationID)
}

func statusForCode(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorCredential, usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func jsonResponse(status int, v any, correlationID string) events.APIGatewayProxyResponse {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(b),
	}
}

func errorJSON(status int, code, message, correlationID string) events.APIGatewayProxyResponse {
	return jsonResponse(status, errorResponse{Error: code, Message: message}, correlationID)
}

// headerValue looks a header up case-insensitively; API Gateway preserves
// whatever casing the client sent.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
