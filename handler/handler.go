package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"appointment-bot/internal/domain"
	"appointment-bot/internal/usecase"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerSecretToken   = "X-Telegram-Bot-Api-Secret-Token"
)

// EventHandler applies one inbound event to a conversation.
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// CallbackAnswerer acknowledges a pressed inline button.
type CallbackAnswerer interface {
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error
}

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var newUUID = func() string { return uuid.NewString() }

// Handler serves the Telegram webhook behind API Gateway.
type Handler struct {
	events    EventHandler
	callbacks CallbackAnswerer
	secret    string
	logger    *slog.Logger
}

func NewHandler(ev EventHandler, callbacks CallbackAnswerer, secret string, logger *slog.Logger) (*Handler, error) {
	if ev == nil {
		return nil, errors.New("handler: event handler must not be nil")
	}
	if callbacks == nil {
		return nil, errors.New("handler: callback answerer must not be nil")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("handler: webhook secret must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{events: ev, callbacks: callbacks, secret: secret, logger: logger}, nil
}

// Handle answers 200 for every authenticated, well-formed update, including
// ones the bot ignores or fails on, so Telegram does not redeliver them.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = newUUID()
	}
	logger := h.logger.With("correlation_id", correlationID)

	if !h.authorized(headerValue(req.Headers, headerSecretToken)) {
		logger.Warn("webhook secret mismatch")
		return jsonResponse(http.StatusUnauthorized, correlationID, errorResponse{Error: "unauthorized"}), nil
	}

	var u update
	if err := json.Unmarshal([]byte(req.Body), &u); err != nil {
		logger.Warn("malformed update", "err", err)
		return jsonResponse(http.StatusBadRequest, correlationID, errorResponse{Error: "invalid_update"}), nil
	}
	logger = logger.With("update_id", u.UpdateID)

	if u.CallbackQuery != nil {
		if err := h.callbacks.AnswerCallbackQuery(ctx, u.CallbackQuery.ID); err != nil {
			logger.Warn("callback acknowledgement failed", "err", err)
		}
	}

	ev, ok := u.toEvent()
	if !ok {
		logger.Debug("update ignored")
		return jsonResponse(http.StatusOK, correlationID, okResponse{OK: true}), nil
	}

	logger = logger.With("event", string(ev.Kind), "chat_id", ev.ChatID, "user_id", ev.UserID)
	if err := h.events.Handle(ctx, ev); err != nil {
		logEventError(logger, err)
	} else {
		logger.Debug("event handled")
	}
	return jsonResponse(http.StatusOK, correlationID, okResponse{OK: true}), nil
}

func (h *Handler) authorized(got string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

func logEventError(logger *slog.Logger, err error) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		logger.Error("event failed", "code", string(usecase.ErrorInternal), "err", err)
		return
	}
	attrs := []any{"code", string(ucErr.Code), "reason", ucErr.Reason}
	if ucErr.Err != nil {
		attrs = append(attrs, "err", ucErr.Err)
	}
	switch ucErr.Code {
	case usecase.ErrorUnauthorized, usecase.ErrorInvalidEvent:
		logger.Warn("event rejected", attrs...)
	default:
		logger.Error("event failed", attrs...)
	}
}

// headerValue looks a header up case-insensitively.
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

func jsonResponse(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			headerCorrelationID: correlationID,
		},
		Body: string(raw),
	}
}
