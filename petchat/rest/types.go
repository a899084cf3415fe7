package rest

import (
	"encoding/json"
	"io"
	"strings"
	"time"
)

// MessageType is the kind of content a message carries.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// ParseContentFormat maps the backend's content_format onto a MessageType.
func ParseContentFormat(format string) MessageType {
	switch format {
	case "plain", "text":
		return MessageTypeText
	case "image":
		return MessageTypeImage
	case "file":
		return MessageTypeFile
	default:
		return MessageTypeText
	}
}

// TypeForAttachments picks the type of a message carrying atts: text with
// none, image when every attachment is an image, file otherwise.
func TypeForAttachments(atts []Attachment) MessageType {
	if len(atts) == 0 {
		return MessageTypeText
	}
	for _, a := range atts {
		if !strings.HasPrefix(strings.ToLower(a.ContentType), "image/") {
			return MessageTypeFile
		}
	}
	return MessageTypeImage
}

// MessageStatus is the delivery state of a message as seen by the client.
type MessageStatus string

const (
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// AttachmentInfo describes a file attached to a stored message.
type AttachmentInfo struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Reaction is a single emoji reaction on a message.
type Reaction struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

// ReadReceipt records when a user read a message.
type ReadReceipt struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// Message is a chat message.
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversationId"`
	SenderID       string           `json:"senderId"`
	SenderName     string           `json:"senderName,omitempty"`
	SenderType     string           `json:"senderType,omitempty"`
	Content        string           `json:"content"`
	Type           MessageType      `json:"messageType"`
	Status         MessageStatus    `json:"status,omitempty"`
	Attachments    []AttachmentInfo `json:"attachments,omitempty"`
	Reactions      []Reaction       `json:"reactions,omitempty"`
	ReadBy         []ReadReceipt    `json:"readBy,omitempty"`
	EditedAt       *time.Time       `json:"editedAt,omitempty"`
	DeletedAt      *time.Time       `json:"deletedAt,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// wireMessage accepts both the backend's snake_case and the camelCase layout.
type wireMessage struct {
	ID             string           `json:"id"`
	MessageID      string           `json:"message_id"`
	ConversationID string           `json:"conversationId"`
	ChatID         string           `json:"chat_id"`
	SenderID       string           `json:"senderId"`
	SenderIDSnake  string           `json:"sender_id"`
	SenderName     string           `json:"senderName"`
	SenderNameSn   string           `json:"sender_name"`
	SenderType     string           `json:"senderType"`
	SenderTypeSn   string           `json:"sender_type"`
	Content        string           `json:"content"`
	MessageType    string           `json:"messageType"`
	Type           string           `json:"type"`
	ContentFormat  string           `json:"content_format"`
	Status         MessageStatus    `json:"status"`
	Attachments    []AttachmentInfo `json:"attachments"`
	Reactions      []wireReaction   `json:"reactions"`
	ReadBy         []wireReceipt    `json:"readBy"`
	ReadStatus     []wireReceipt    `json:"read_status"`
	EditedAt       *time.Time       `json:"editedAt"`
	EditedAtSn     *time.Time       `json:"edited_at"`
	DeletedAt      *time.Time       `json:"deletedAt"`
	DeletedAtSn    *time.Time       `json:"deleted_at"`
	CreatedAt      *time.Time       `json:"createdAt"`
	CreatedAtSn    *time.Time       `json:"created_at"`
	Timestamp      *time.Time       `json:"timestamp"`
	UpdatedAt      *time.Time       `json:"updatedAt"`
	UpdatedAtSn    *time.Time       `json:"updated_at"`
}

type wireReaction struct {
	UserID      string `json:"userId"`
	UserIDSnake string `json:"user_id"`
	Emoji       string `json:"emoji"`
}

type wireReceipt struct {
	UserID      string     `json:"userId"`
	UserIDSnake string     `json:"user_id"`
	ReadAt      *time.Time `json:"readAt"`
	ReadAtSnake *time.Time `json:"read_at"`
}

// UnmarshalJSON decodes either wire layout into m.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	now := time.Now().UTC()

	*m = Message{
		ID:             firstNonEmpty(w.MessageID, w.ID),
		ConversationID: firstNonEmpty(w.ChatID, w.ConversationID),
		SenderID:       firstNonEmpty(w.SenderIDSnake, w.SenderID),
		SenderName:     firstNonEmpty(w.SenderNameSn, w.SenderName),
		SenderType:     firstNonEmpty(w.SenderTypeSn, w.SenderType, "user"),
		Content:        w.Content,
		Type:           ParseContentFormat(firstNonEmpty(w.ContentFormat, w.MessageType, w.Type)),
		Status:         w.Status,
		Attachments:    w.Attachments,
		EditedAt:       firstTime(w.EditedAtSn, w.EditedAt),
		DeletedAt:      firstTime(w.DeletedAtSn, w.DeletedAt),
		CreatedAt:      timeOr(now, w.CreatedAtSn, w.CreatedAt, w.Timestamp),
		UpdatedAt:      timeOr(now, w.UpdatedAtSn, w.UpdatedAt),
	}
	for _, r := range w.Reactions {
		m.Reactions = append(m.Reactions, Reaction{UserID: firstNonEmpty(r.UserIDSnake, r.UserID), Emoji: r.Emoji})
	}
	receipts := w.ReadStatus
	if len(receipts) == 0 {
		receipts = w.ReadBy
	}
	for _, r := range receipts {
		m.ReadBy = append(m.ReadBy, ReadReceipt{
			UserID: firstNonEmpty(r.UserIDSnake, r.UserID),
			ReadAt: timeOr(now, r.ReadAtSnake, r.ReadAt),
		})
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstTime(vals ...*time.Time) *time.Time {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func timeOr(def time.Time, vals ...*time.Time) time.Time {
	if t := firstTime(vals...); t != nil {
		return *t
	}
	return def
}

// ConversationType classifies a conversation.
type ConversationType string

const (
	ConversationTypeApplication ConversationType = "application"
	ConversationTypeGeneral     ConversationType = "general"
	ConversationTypeSupport     ConversationType = "support"
)

// Participant is a member of a conversation.
type Participant struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	Avatar     string     `json:"avatar,omitempty"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// Conversation is a chat thread between an adopter and a rescue.
type Conversation struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId,omitempty"`
	RescueID      string           `json:"rescueId,omitempty"`
	PetID         string           `json:"petId,omitempty"`
	ApplicationID string           `json:"applicationId,omitempty"`
	Type          ConversationType `json:"type,omitempty"`
	Status        string           `json:"status,omitempty"`
	Participants  []Participant    `json:"participants,omitempty"`
	LastMessage   *Message         `json:"lastMessage,omitempty"`
	UnreadCount   int              `json:"unreadCount"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// CreateConversationRequest is the request body for opening a conversation.
type CreateConversationRequest struct {
	RescueID       string           `json:"rescueId"`
	PetID          string           `json:"petId,omitempty"`
	ApplicationID  string           `json:"applicationId,omitempty"`
	Type           ConversationType `json:"type,omitempty"`
	InitialMessage string           `json:"initialMessage,omitempty"`
}

// Pagination describes a page of results.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// MessagesPage contains a page of messages with pagination info.
type MessagesPage struct {
	Messages   []Message  `json:"messages"`
	Pagination Pagination `json:"pagination"`
}

// SearchResult is the response of a message search.
type SearchResult struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
}

// Attachment is a file to upload alongside a message.
type Attachment struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// envelope is the backend's {data: ...} response wrapper.
type envelope[T any] struct {
	Data    T      `json:"data"`
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
