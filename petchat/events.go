package petchat

import (
	"encoding/json"
	"time"
)

// Transport lifecycle events.
const (
	EventConnect      = "connect"
	EventConnectError = "connect_error"
	EventDisconnect   = "disconnect"
)

// Server-pushed application events.
const (
	eventNewMessage        = "new_message"
	eventUserTyping        = "user_typing"
	eventUserStoppedTyping = "user_stopped_typing"
	eventReactionAdded     = "reaction_added"
	eventReactionRemoved   = "reaction_removed"
	eventMessagesRead      = "messages_read"
	eventError             = "error"
)

// Client-emitted events.
const (
	eventTypingStart             = "typing_start"
	eventTypingStop              = "typing_stop"
	eventMessageSentNotification = "message_sent_notification"
	eventMarkAsRead              = "mark_as_read"
	eventAddReaction             = "add_reaction"
	eventRemoveReaction          = "remove_reaction"
	eventEditMessage             = "edit_message"
	eventDeleteMessage           = "delete_message"
)

// reasonClientDisconnect is the disconnect reason reported when the client closed the transport itself.
const reasonClientDisconnect = "io client disconnect"

// TypingIndicator is emitted when a participant starts or stops typing.
type TypingIndicator struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	UserName       string    `json:"userName,omitempty"`
	StartedAt      time.Time `json:"startedAt,omitzero"`
	IsTyping       bool      `json:"isTyping"`
}

// ReactionAction tells whether a reaction was added or removed.
type ReactionAction string

const (
	ReactionAdded   ReactionAction = "added"
	ReactionRemoved ReactionAction = "removed"
)

// ReactionUpdate is emitted when a reaction changes on a message.
type ReactionUpdate struct {
	ConversationID string         `json:"conversationId"`
	MessageID      string         `json:"messageId"`
	UserID         string         `json:"userId"`
	Emoji          string         `json:"emoji"`
	Action         ReactionAction `json:"action"`
}

// ReadStatusUpdate is emitted when a participant reads messages.
type ReadStatusUpdate struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	MessageIDs     []string  `json:"messageIds,omitempty"`
	ReadAt         time.Time `json:"readAt,omitzero"`
}

// errorPayload is the body of connect_error and error events.
type errorPayload struct {
	Message string `json:"message"`
}

// conversationPayload is the body of typing_start and typing_stop.
type conversationPayload struct {
	ConversationID string `json:"conversationId"`
}

// eventConversation returns the conversation a pushed event belongs to.
// Messages may carry chat_id instead of conversationId.
func eventConversation(data json.RawMessage) string {
	var p struct {
		ConversationID string `json:"conversationId"`
		ChatID         string `json:"chat_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}
	if p.ConversationID != "" {
		return p.ConversationID
	}
	return p.ChatID
}

// decodeErrorPayload extracts a message from an error event, accepting a bare string too.
func decodeErrorPayload(data json.RawMessage) string {
	var p errorPayload
	if err := json.Unmarshal(data, &p); err == nil && p.Message != "" {
		return p.Message
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil && s != "" {
		return s
	}
	return "unknown socket error"
}
