package petchat

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// chatCache keeps recently fetched conversation lists and message pages.
// A nil *chatCache is a disabled cache.
type chatCache struct {
	conversations *expirable.LRU[string, []Conversation]
	messages      *expirable.LRU[string, *MessagesPage]
	group         singleflight.Group
}

func newChatCache(size int, ttl time.Duration) *chatCache {
	if ttl < 0 {
		return nil
	}
	if size <= 0 {
		size = 256
	}
	return &chatCache{
		conversations: expirable.NewLRU[string, []Conversation](size, nil, ttl),
		messages:      expirable.NewLRU[string, *MessagesPage](size, nil, ttl),
	}
}

func pageKey(conversationID string, page, limit int) string {
	return conversationID + ":" + strconv.Itoa(page) + ":" + strconv.Itoa(limit)
}

func (c *chatCache) conversationList(userID string, fetch func() ([]Conversation, error)) ([]Conversation, error) {
	if c == nil || userID == "" {
		return fetch()
	}
	if v, ok := c.conversations.Get(userID); ok {
		return cloneConversations(v), nil
	}
	v, err, _ := c.group.Do("conversations:"+userID, func() (any, error) {
		convs, err := fetch()
		if err != nil {
			return nil, err
		}
		if len(convs) > 0 {
			c.conversations.Add(userID, cloneConversations(convs))
		}
		return convs, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers sharing one singleflight result get their own slices too.
	return cloneConversations(v.([]Conversation)), nil
}

func (c *chatCache) messagePage(conversationID string, page, limit int, fetch func() (*MessagesPage, error)) (*MessagesPage, error) {
	if c == nil {
		return fetch()
	}
	key := pageKey(conversationID, page, limit)
	if v, ok := c.messages.Get(key); ok {
		return copyPage(v), nil
	}
	v, err, _ := c.group.Do("messages:"+key, func() (any, error) {
		p, err := fetch()
		if err != nil {
			return nil, err
		}
		if len(p.Messages) > 0 {
			c.messages.Add(key, copyPage(p))
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return copyPage(v.(*MessagesPage)), nil
}

// copyPage detaches a page from the cached one so caller edits never reach the cache.
func copyPage(p *MessagesPage) *MessagesPage {
	if p == nil {
		return nil
	}
	out := *p
	out.Messages = cloneMessages(p.Messages)
	return &out
}

func cloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = cloneMessage(m)
	}
	return out
}

func cloneMessage(m Message) Message {
	m.Attachments = slices.Clone(m.Attachments)
	m.Reactions = slices.Clone(m.Reactions)
	m.ReadBy = slices.Clone(m.ReadBy)
	return m
}

func cloneConversations(convs []Conversation) []Conversation {
	if convs == nil {
		return nil
	}
	out := make([]Conversation, len(convs))
	for i, cv := range convs {
		cv.Participants = slices.Clone(cv.Participants)
		if cv.LastMessage != nil {
			last := cloneMessage(*cv.LastMessage)
			cv.LastMessage = &last
		}
		out[i] = cv
	}
	return out
}

// invalidateConversation drops every cached page of conversationID.
func (c *chatCache) invalidateConversation(conversationID string) {
	if c == nil {
		return
	}
	prefix := conversationID + ":"
	for _, k := range c.messages.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.messages.Remove(k)
		}
	}
}

func (c *chatCache) invalidateUser(userID string) {
	if c == nil || userID == "" {
		return
	}
	c.conversations.Remove(userID)
}

func (c *chatCache) purge() {
	if c == nil {
		return
	}
	c.conversations.Purge()
	c.messages.Purge()
}
