package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/vendor-desk/internal/chat"
	"github.com/spec-kit/vendor-desk/internal/service"
	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

// WebhookTokenHeader carries the shared secret configured on the chat webhook.
const WebhookTokenHeader = "X-Webhook-Token"

// WebhookHandler ingests chat service webhook deliveries.
type WebhookHandler struct {
	conversations *service.ConversationService
	token         string
	logger        *zap.Logger
}

// NewWebhookHandler constructs handler. With an empty token every delivery
// is rejected.
func NewWebhookHandler(conversations *service.ConversationService, token string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{conversations: conversations, token: token, logger: logger}
}

// Receive handles POST /api/webhooks/chat.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	got := c.Get(WebhookTokenHeader)
	if h.token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
		return apperrors.NewUnauthorized("invalid webhook token")
	}

	msg, ok, err := chat.DecodeWebhook(c.Body())
	if err != nil {
		return apperrors.NewValidationError("invalid webhook payload", map[string]any{"reason": err.Error()})
	}
	if !ok {
		return c.Status(http.StatusAccepted).JSON(fiber.Map{})
	}

	if err := h.conversations.Receive(c.UserContext(), *msg); err != nil {
		return err
	}
	h.logger.Debug("inbound chat message",
		zap.String("message_id", msg.ID),
		zap.String("sender", msg.SenderUID),
		zap.String("receiver", msg.ReceiverUID))
	return c.Status(http.StatusAccepted).JSON(fiber.Map{})
}
