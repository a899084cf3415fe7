package petchat

import (
	"context"
)

// GetConversations returns the user's conversations, served from cache when fresh.
func (c *Client) GetConversations(ctx context.Context) ([]Conversation, error) {
	api, userID := c.restClient()
	convs, err := c.cache.conversationList(userID, func() ([]Conversation, error) {
		return api.ListConversations(ctx)
	})
	if err != nil {
		return nil, wrapAPIError("get conversations", err)
	}
	return convs, nil
}

// GetConversation returns one conversation.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	api, _ := c.restClient()
	conv, err := api.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, wrapAPIError("get conversation", err)
	}
	return conv, nil
}

// CreateConversation opens a conversation with a rescue.
func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (*Conversation, error) {
	if req.RescueID == "" {
		return nil, NewError(ErrorInvalidArgument, "rescue id is required")
	}
	api, userID := c.restClient()
	conv, err := api.CreateConversation(ctx, req)
	if err != nil {
		return nil, wrapAPIError("create conversation", err)
	}
	c.cache.invalidateUser(userID)
	return conv, nil
}

// ArchiveConversation archives a conversation.
func (c *Client) ArchiveConversation(ctx context.Context, conversationID string) error {
	api, userID := c.restClient()
	if err := api.ArchiveConversation(ctx, conversationID); err != nil {
		return wrapAPIError("archive conversation", err)
	}
	c.cache.invalidateUser(userID)
	return nil
}

// GetMessages returns one page of history. Non-positive page and limit mean 1 and 50.
func (c *Client) GetMessages(ctx context.Context, conversationID string, page, limit int) (*MessagesPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	api, _ := c.restClient()
	p, err := c.cache.messagePage(conversationID, page, limit, func() (*MessagesPage, error) {
		return api.GetMessages(ctx, conversationID, page, limit)
	})
	if err != nil {
		return nil, wrapAPIError("get messages", err)
	}
	return p, nil
}

// EditMessage replaces a message's content and notifies the room.
func (c *Client) EditMessage(ctx context.Context, messageID, content string) (*Message, error) {
	api, _ := c.restClient()
	msg, err := api.EditMessage(ctx, messageID, content)
	if err != nil {
		return nil, wrapAPIError("edit message", err)
	}
	c.cache.invalidateConversation(msg.ConversationID)
	_ = c.emit(eventEditMessage, map[string]string{"messageId": messageID, "content": content})
	return msg, nil
}

// DeleteMessage deletes a message. The room is notified even if the REST call fails.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	api, _ := c.restClient()
	err := api.DeleteMessage(ctx, messageID)
	_ = c.emit(eventDeleteMessage, map[string]string{"messageId": messageID})
	if err != nil {
		return wrapAPIError("delete message", err)
	}
	return nil
}

// MarkAsRead marks a conversation read, optionally up to messageID.
// The room is notified even if the REST call fails.
func (c *Client) MarkAsRead(ctx context.Context, conversationID, messageID string) error {
	api, userID := c.restClient()
	err := api.MarkAsRead(ctx, conversationID, messageID)
	_ = c.emit(eventMarkAsRead, map[string]string{"conversationId": conversationID, "messageId": messageID})
	if err != nil {
		return wrapAPIError("mark as read", err)
	}
	c.cache.invalidateUser(userID)
	return nil
}

// AddReaction adds an emoji reaction to a message.
func (c *Client) AddReaction(ctx context.Context, conversationID, messageID, emoji string) error {
	api, _ := c.restClient()
	err := api.AddReaction(ctx, conversationID, messageID, emoji)
	_ = c.emit(eventAddReaction, map[string]string{"conversationId": conversationID, "messageId": messageID, "emoji": emoji})
	if err != nil {
		return wrapAPIError("add reaction", err)
	}
	return nil
}

// RemoveReaction removes an emoji reaction from a message.
func (c *Client) RemoveReaction(ctx context.Context, conversationID, messageID, emoji string) error {
	api, _ := c.restClient()
	err := api.RemoveReaction(ctx, conversationID, messageID, emoji)
	_ = c.emit(eventRemoveReaction, map[string]string{"conversationId": conversationID, "messageId": messageID, "emoji": emoji})
	if err != nil {
		return wrapAPIError("remove reaction", err)
	}
	return nil
}

// UploadAttachment uploads a file into a conversation.
func (c *Client) UploadAttachment(ctx context.Context, conversationID string, file Attachment) (*AttachmentInfo, error) {
	api, _ := c.restClient()
	info, err := api.UploadAttachment(ctx, conversationID, file)
	if err != nil {
		return nil, wrapAPIError("upload attachment", err)
	}
	return info, nil
}

// SearchMessages searches message content, optionally within one conversation.
func (c *Client) SearchMessages(ctx context.Context, query, conversationID string) (*SearchResult, error) {
	api, _ := c.restClient()
	res, err := api.SearchMessages(ctx, query, conversationID)
	if err != nil {
		return nil, wrapAPIError("search messages", err)
	}
	return res, nil
}

// ClearCache drops every cached conversation list and message page.
func (c *Client) ClearCache() {
	c.cache.purge()
	c.debug("cache cleared", nil)
}

// StartTyping tells the room the user is typing. Calls inside the
// configured rate limit are dropped.
func (c *Client) StartTyping(conversationID string) error {
	c.mu.Lock()
	lim := c.typing
	c.mu.Unlock()
	if lim != nil && !lim.Allow() {
		c.debug("typing event rate limited", map[string]any{"conversation_id": conversationID})
		return nil
	}
	return c.emit(eventTypingStart, conversationPayload{ConversationID: conversationID})
}

// StopTyping tells the room the user stopped typing.
func (c *Client) StopTyping(conversationID string) error {
	return c.emit(eventTypingStop, conversationPayload{ConversationID: conversationID})
}
