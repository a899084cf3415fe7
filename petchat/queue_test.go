package petchat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageQueue(t *testing.T) {
	var q messageQueue
	a := &QueuedMessage{ConversationID: "c1", Content: "a"}
	b := &QueuedMessage{ConversationID: "c1", Content: "b"}
	c := &QueuedMessage{ConversationID: "c1", Content: "c"}

	assert.True(t, q.push(a, 2))
	assert.True(t, q.push(b, 2))
	assert.False(t, q.push(c, 2))
	assert.Equal(t, 2, q.len())

	pending := q.pending()
	assert.Equal(t, []*QueuedMessage{a, b}, pending)

	assert.True(t, q.take(a))
	assert.False(t, q.take(a))
	assert.False(t, q.take(c))

	list := q.list()
	list[0].Content = "mutated"
	assert.Equal(t, "b", q.list()[0].Content)

	q.clear()
	assert.Zero(t, q.len())
	assert.False(t, q.take(b))
}

func TestMessageQueueZeroLimit(t *testing.T) {
	var q messageQueue
	assert.False(t, q.push(&QueuedMessage{Content: "x"}, 0))
	assert.Empty(t, q.list())
}
