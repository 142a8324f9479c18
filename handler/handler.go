// Package handler adapts the skill webhook onto API Gateway events and plain
// HTTP.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"jarvis-webhook/internal/domain"
	"jarvis-webhook/internal/reply"
	"jarvis-webhook/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 1 << 20
)

// Replier answers one utterance.
type Replier interface {
	Reply(ctx context.Context, u domain.Utterance) usecase.Outcome
}

// skillRequest is the part of the skill payload the webhook reads.
type skillRequest struct {
	UserRequest struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Utterance string `json:"utterance"`
	} `json:"userRequest"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	svc    Replier
	now    func() time.Time
	logger *zap.Logger
}

func NewHandler(svc Replier, logger *zap.Logger) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: replier must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, now: time.Now, logger: logger}, nil
}

// Handle serves the API Gateway proxy integration.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return h.respond(http.StatusBadRequest, errorResponse{Error: "INVALID_INPUT"}, corrID), nil
		}
		body = decoded
	}
	status, payload := h.process(ctx, body, corrID)
	return h.respond(status, payload, corrID), nil
}

// ServeHTTP serves the same webhook for the standalone server.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	corrID := strings.TrimSpace(r.Header.Get(correlationHeader))
	if corrID == "" {
		corrID = uuid.NewString()
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	status, payload := http.StatusBadRequest, any(errorResponse{Error: "INVALID_INPUT"})
	if err == nil {
		status, payload = h.process(r.Context(), raw, corrID)
	}

	buf, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(correlationHeader, corrID)
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func (h *Handler) process(ctx context.Context, raw []byte, corrID string) (int, any) {
	logger := h.logger.With(zap.String("correlation_id", corrID))

	var req skillRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		logger.Info("rejected request", zap.Error(err))
		return http.StatusBadRequest, errorResponse{Error: "INVALID_INPUT"}
	}

	u := domain.Utterance{
		UserID:     strings.TrimSpace(req.UserRequest.User.ID),
		Text:       strings.TrimSpace(req.UserRequest.Utterance),
		ReceivedAt: h.now(),
	}
	if u.UserID == "" || u.Text == "" {
		logger.Info("request without user or utterance")
		return http.StatusOK, reply.Text(usecase.ApologyText)
	}

	out := h.svc.Reply(ctx, u)
	logger.Info("webhook handled",
		zap.String("user_id", u.UserID),
		zap.String("intent", string(out.Intent)),
		zap.String("state", string(out.State)),
		zap.Duration("elapsed", h.now().Sub(u.ReceivedAt)),
	)
	return http.StatusOK, out.Envelope
}

func (h *Handler) respond(status int, payload any, corrID string) events.APIGatewayProxyResponse {
	buf, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encode response", zap.Error(err))
		status, buf = http.StatusInternalServerError, []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(buf),
	}
}

// correlationID reads the header case-insensitively or mints a new id.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}
