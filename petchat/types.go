package petchat

import (
	"time"

	"github.com/vovakirdan/petchat-sdk-go/petchat/rest"
)

type (
	Message                   = rest.Message
	MessageType               = rest.MessageType
	MessageStatus             = rest.MessageStatus
	Conversation              = rest.Conversation
	CreateConversationRequest = rest.CreateConversationRequest
	MessagesPage              = rest.MessagesPage
	Pagination                = rest.Pagination
	SearchResult              = rest.SearchResult
	Attachment                = rest.Attachment
	AttachmentInfo            = rest.AttachmentInfo
)

// QueuedMessage is an outbound message buffered while the connection is down.
type QueuedMessage struct {
	ConversationID string
	Content        string
	Attachments    []Attachment
	Timestamp      time.Time
	RetryCount     int
}
