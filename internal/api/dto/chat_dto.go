package dto

import "github.com/spec-kit/vendor-desk/internal/chat"

// SendMessageRequest payload for a vendor message.
type SendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// HistoryQuery pages through a conversation.
type HistoryQuery struct {
	Limit  int   `query:"limit" validate:"omitempty,min=1,max=100"`
	Before int64 `query:"before" validate:"omitempty,min=0"`
}

// MessageResponse wraps one message.
type MessageResponse struct {
	Message chat.Message `json:"message"`
}

// MessageListResponse wraps a history page, most recent first.
type MessageListResponse struct {
	Messages []chat.Message `json:"messages"`
}
