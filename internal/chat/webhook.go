package chat

import (
	"encoding/json"
	"fmt"
)

const triggerAfterMessage = "after_message"

type webhookPayload struct {
	Trigger string `json:"trigger"`
	Data    struct {
		Message *cometMessage `json:"message"`
	} `json:"data"`
}

// DecodeWebhook extracts the message from a CometChat webhook delivery. It
// reports false for triggers and message kinds the dashboard does not show:
// anything other than a one-to-one text message sent after delivery.
func DecodeWebhook(body []byte) (*Message, bool, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, fmt.Errorf("decode webhook: %w", err)
	}
	if payload.Trigger != triggerAfterMessage || payload.Data.Message == nil {
		return nil, false, nil
	}
	m := payload.Data.Message
	if m.Type != "text" || (m.ReceiverType != "" && m.ReceiverType != "user") {
		return nil, false, nil
	}
	if m.Sender == "" || m.Receiver == "" {
		return nil, false, fmt.Errorf("decode webhook: message without sender or receiver")
	}
	msg := m.toMessage()
	return &msg, true, nil
}
