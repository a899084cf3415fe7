package petchat

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	l.Debug("hidden", nil)
	l.Warn("message queue full", map[string]any{"queue_size": 3})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "message queue full", entry["message"])
	assert.EqualValues(t, 3, entry["queue_size"])
}

func TestDebugLogsOnlyWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	zl := zerolog.New(&buf)

	quiet := NewClient(DefaultConfig(), WithLogger(NewZerologLogger(zl)), WithDialer((&fakeDialer{}).dial))
	assert.Empty(t, buf.String())
	_ = quiet.Close()

	cfg := DefaultConfig()
	cfg.Debug = true
	loud := NewClient(cfg, WithLogger(NewZerologLogger(zl)), WithDialer((&fakeDialer{}).dial))
	assert.Contains(t, buf.String(), "chat client initialized")
	_ = loud.Close()
}

// lockedBuffer is a bytes.Buffer safe for concurrent zerolog writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSetLoggerWhileConnected(t *testing.T) {
	var first, second lockedBuffer
	h := newHarness(t, "", nil)
	h.client.SetLogger(NewZerologLogger(zerolog.New(&first)))
	tr := h.connected(t)
	assert.Contains(t, first.String(), "connected to chat server")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 50 {
			h.client.SetLogger(NewZerologLogger(zerolog.New(&second)))
			h.client.SetLogger(nil)
		}
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			tr.trigger(EventDisconnect, "transport close")
			tr.trigger(EventConnect, nil)
		}
	}()
	wg.Wait()

	tr.trigger(EventDisconnect, "transport close")
	assert.Contains(t, second.String(), "disconnected from chat server")
}
