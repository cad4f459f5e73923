package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/vendor-desk/internal/api/dto"
	"github.com/spec-kit/vendor-desk/internal/auth"
	"github.com/spec-kit/vendor-desk/internal/chat"
	"github.com/spec-kit/vendor-desk/internal/domain"
	"github.com/spec-kit/vendor-desk/internal/service"
	apperrors "github.com/spec-kit/vendor-desk/pkg/util/errorutil"
)

const defaultStreamHeartbeat = 15 * time.Second

// ConversationsHandler exposes a vendor's conversations with their customers.
type ConversationsHandler struct {
	conversations *service.ConversationService
	logger        *zap.Logger
	// streams ends every open event stream when cancelled (server shutdown)
	streams   context.Context
	heartbeat time.Duration
}

// NewConversationsHandler constructs handler. Open event streams close when
// streams is cancelled.
func NewConversationsHandler(streams context.Context, conversations *service.ConversationService, logger *zap.Logger) *ConversationsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationsHandler{
		conversations: conversations,
		logger:        logger,
		streams:       streams,
		heartbeat:     defaultStreamHeartbeat,
	}
}

// History handles GET /api/vendor/conversations/:customerUid/messages.
func (h *ConversationsHandler) History(c *fiber.Ctx) error {
	vendor, err := currentVendor(c)
	if err != nil {
		return err
	}
	var q dto.HistoryQuery
	if err := parseQuery(c, &q); err != nil {
		return err
	}
	query := chat.MessageQuery{Limit: q.Limit}
	if q.Before > 0 {
		query.Before = time.Unix(q.Before, 0)
	}

	messages, err := h.conversations.History(c.UserContext(), vendor, c.Params("customerUid"), query)
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return c.JSON(dto.MessageListResponse{Messages: messages})
}

// Send handles POST /api/vendor/conversations/:customerUid/messages.
func (h *ConversationsHandler) Send(c *fiber.Ctx) error {
	vendor, err := currentVendor(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	msg, err := h.conversations.Send(c.UserContext(), vendor, c.Params("customerUid"), req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.MessageResponse{Message: *msg})
}

// Events handles GET /api/vendor/conversations/:customerUid/events as a
// Server-Sent Events stream of inbound messages.
func (h *ConversationsHandler) Events(c *fiber.Ctx) error {
	vendor, err := currentVendor(c)
	if err != nil {
		return err
	}
	customerUID := c.Params("customerUid")

	// the request context ends when the handler returns, before the body is streamed
	sub, err := h.conversations.Subscribe(h.streams, vendor, customerUID)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	logger := h.logger.With(zap.String("vendor_uid", vendor.UID), zap.String("customer_uid", customerUID))
	heartbeat := h.heartbeat

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			if err := sub.Close(); err != nil {
				logger.Warn("close conversation subscription", zap.Error(err))
			}
		}()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					logger.Error("encode message event", zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "event: message\nid: %s\ndata: %s\n\n", ev.Message.ID, data)
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				logger.Debug("event stream closed by client")
				return
			}
		}
	}))
	return nil
}

func currentVendor(c *fiber.Ctx) (*domain.Vendor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Vendor == nil {
		return nil, apperrors.NewForbidden("vendor required")
	}
	return principal.Vendor, nil
}
