package petchat

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/petchat-sdk-go/petchat/rest"
)

func TestDisabledCacheAlwaysFetches(t *testing.T) {
	c := newChatCache(10, -1)
	require.Nil(t, c)

	calls := 0
	for range 2 {
		_, err := c.conversationList("u1", func() ([]Conversation, error) {
			calls++
			return []Conversation{{ID: "c1"}}, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)

	c.invalidateConversation("c1")
	c.invalidateUser("u1")
	c.purge()
}

func TestCacheInvalidateConversation(t *testing.T) {
	c := newChatCache(10, time.Minute)
	page := func(id string) func() (*MessagesPage, error) {
		return func() (*MessagesPage, error) {
			return &MessagesPage{Messages: []Message{{ID: id}}}, nil
		}
	}

	_, err := c.messagePage("c1", 1, 50, page("a"))
	require.NoError(t, err)
	_, err = c.messagePage("c10", 1, 50, page("b"))
	require.NoError(t, err)

	c.invalidateConversation("c1")

	got, err := c.messagePage("c1", 1, 50, page("fresh"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Messages[0].ID)
	got, err = c.messagePage("c10", 1, 50, page("unused"))
	require.NoError(t, err)
	assert.Equal(t, "b", got.Messages[0].ID)
}

func TestCacheSkipsEmptyAndErrors(t *testing.T) {
	c := newChatCache(10, time.Minute)
	calls := 0

	_, err := c.conversationList("u1", func() ([]Conversation, error) {
		calls++
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	for range 2 {
		convs, err := c.conversationList("u1", func() ([]Conversation, error) {
			calls++
			return []Conversation{}, nil
		})
		require.NoError(t, err)
		assert.Empty(t, convs)
	}
	assert.Equal(t, 3, calls)
}

func TestCacheReturnsDetachedCopies(t *testing.T) {
	c := newChatCache(10, time.Minute)
	fetchPage := func() (*MessagesPage, error) {
		return &MessagesPage{Messages: []Message{{ID: "m1", Content: "hello", Reactions: []rest.Reaction{{Emoji: "👍"}}}}}, nil
	}
	fetchConvs := func() ([]Conversation, error) {
		return []Conversation{{ID: "c1", UnreadCount: 2, LastMessage: &Message{ID: "m1", Content: "hello"}}}, nil
	}

	first, err := c.messagePage("c1", 1, 50, fetchPage)
	require.NoError(t, err)
	first.Messages[0].Content = "edited"
	first.Messages[0].Reactions[0].Emoji = "🔥"
	first.Messages = append(first.Messages, Message{ID: "extra"})

	again, err := c.messagePage("c1", 1, 50, fetchPage)
	require.NoError(t, err)
	require.Len(t, again.Messages, 1)
	assert.Equal(t, "hello", again.Messages[0].Content)
	assert.Equal(t, "👍", again.Messages[0].Reactions[0].Emoji)

	convs, err := c.conversationList("u1", fetchConvs)
	require.NoError(t, err)
	convs[0].UnreadCount = 0
	convs[0].LastMessage.Content = "edited"

	convs, err = c.conversationList("u1", fetchConvs)
	require.NoError(t, err)
	assert.Equal(t, 2, convs[0].UnreadCount)
	assert.Equal(t, "hello", convs[0].LastMessage.Content)
}
