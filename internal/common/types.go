package common

import (
	"gochat/internal/chat/models"
)

type EventType string

const (
	EventConnected EventType = "connected"
	EventInsert    EventType = "INSERT"
)

// MessageEvent is what the realtime fan-out carries for every stored message
type MessageEvent struct {
	Type           EventType       `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Message        *models.Message `json:"message,omitempty"`
}

func NewInsertEvent(msg *models.Message) MessageEvent {
	return MessageEvent{
		Type:           EventInsert,
		ConversationID: msg.ConversationID,
		Message:        msg,
	}
}
