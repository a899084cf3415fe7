package petchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/petchat-sdk-go/petchat/rest"
)

// applicationEvents are the server-pushed events bound on every transport.
var applicationEvents = []string{
	eventNewMessage,
	eventUserTyping,
	eventUserStoppedTyping,
	eventReactionAdded,
	eventReactionRemoved,
	eventMessagesRead,
}

// Client manages one real-time chat session and the REST calls around it.
type Client struct {
	logger     atomic.Pointer[loggerBox]
	dialer     Dialer
	httpClient *http.Client
	dispatcher Dispatcher
	queue      messageQueue
	cache      *chatCache
	afterFunc  func(time.Duration, func()) timer

	mu        sync.Mutex
	cfg       Config
	api       *rest.Client
	typing    *rate.Limiter
	status    ConnectionStatus
	transport Transport
	userID    string
	token     string
	attempts  int

	reconnectTimer timer
	reconnectGen   uint64

	drains sync.WaitGroup
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		c.SetLogger(l)
	}
}

// WithDialer replaces the default websocket transport.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithHTTPClient sets the HTTP client used for REST calls and the websocket handshake.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient constructs a client with provided config.
// Use DefaultConfig() as a starting point and modify as needed.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.resolved()
	c := &Client{
		cfg:       cfg,
		status:    StatusDisconnected,
		afterFunc: realAfterFunc,
	}
	c.logger.Store(&loggerBox{noopLogger{}})
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = NewWebSocketDialer(WebSocketOptions{
			Path:             cfg.SocketPath,
			HandshakeTimeout: cfg.HandshakeTimeout,
			WriteTimeout:     cfg.HandshakeTimeout,
			HTTPClient:       c.httpClient,
		})
	}
	c.dispatcher.onPanic = func(event string, v any) {
		c.log().Error("listener panicked", map[string]any{"event": event, "panic": fmt.Sprint(v)})
	}
	c.api = c.newREST(cfg)
	c.typing = newTypingLimiter(cfg.TypingRateLimit)
	c.cache = newChatCache(cfg.CacheSize, cfg.CacheTTL)

	c.debug("chat client initialized", map[string]any{
		"api_url":    cfg.APIURL,
		"socket_url": cfg.SocketURL,
	})
	return c
}

// loggerBox lets an interface value live behind an atomic.Pointer.
type loggerBox struct{ Logger }

// SetLogger overrides logger (optional). It is safe to call at any time;
// a nil logger is ignored.
func (c *Client) SetLogger(l Logger) {
	if l == nil {
		return
	}
	c.logger.Store(&loggerBox{l})
}

func (c *Client) log() Logger {
	return c.logger.Load().Logger
}

func (c *Client) newREST(cfg Config) *rest.Client {
	api := rest.NewClient(cfg.APIURL)
	hc := c.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	api.SetHTTPClient(hc)
	api.SetHeaderProvider(c.headers)
	return api
}

func newTypingLimiter(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

// headers resolves the configured header sources for one request.
func (c *Client) headers() http.Header {
	c.mu.Lock()
	values := c.cfg.Headers
	c.mu.Unlock()
	return resolveHeaders(values, func(key string, err error) {
		c.debug("failed to resolve header", map[string]any{"header": key, "error": err.Error()})
	})
}

func (c *Client) debug(msg string, fields map[string]any) {
	c.mu.Lock()
	on := c.cfg.Debug
	c.mu.Unlock()
	if on {
		c.log().Debug(msg, fields)
	}
}

// Connect stores the credentials and starts a connection attempt.
// It does not wait for the handshake; watch OnConnectionStatusChange for the outcome.
func (c *Client) Connect(userID, token string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if token == "" {
		return ErrMissingToken
	}

	c.mu.Lock()
	c.userID = userID
	c.token = token
	c.mu.Unlock()

	c.connect()
	return nil
}

// connect replaces any existing transport with a fresh one using the stored credentials.
func (c *Client) connect() {
	c.mu.Lock()
	userID, token := c.userID, c.token
	if userID == "" || token == "" {
		c.mu.Unlock()
		return
	}
	old := c.transport
	c.transport = nil
	c.status = StatusConnecting
	socketURL := c.cfg.SocketURL
	c.mu.Unlock()

	c.teardown(old)
	c.dispatcher.emitStatus(StatusConnecting)
	c.debug("connecting", map[string]any{"url": socketURL, "user_id": userID})

	t, err := c.dialer(socketURL, TransportOptions{
		Token:       token,
		UserID:      userID,
		AutoConnect: false,
		Transports:  []string{"websocket", "polling"},
	})
	if err != nil {
		c.handleError(nil, WrapError(ErrorConnection, "failed to create transport", err))
		return
	}

	c.mu.Lock()
	if c.userID != userID || c.token != token || c.transport != nil {
		// Disconnect or a newer Connect won while the transport was created.
		c.mu.Unlock()
		c.teardown(t)
		return
	}
	c.transport = t
	c.mu.Unlock()

	c.bind(t)
	t.Connect()
}

// bind registers every handler on t before its handshake starts.
func (c *Client) bind(t Transport) {
	t.On(EventConnect, func(json.RawMessage) {
		c.handleConnect(t)
	})
	t.On(EventConnectError, func(data json.RawMessage) {
		c.handleError(t, NewError(ErrorConnection, decodeErrorPayload(data)))
	})
	t.On(EventDisconnect, func(data json.RawMessage) {
		var reason string
		_ = json.Unmarshal(data, &reason)
		c.handleDisconnect(t, reason)
	})
	t.On(eventError, func(data json.RawMessage) {
		c.handleError(t, NewError(ErrorServer, decodeErrorPayload(data)))
	})
	for _, ev := range applicationEvents {
		event := ev
		t.On(event, func(data json.RawMessage) {
			if c.isCurrent(t) {
				c.invalidateFor(event, data)
				c.dispatcher.Dispatch(event, data)
			}
		})
	}
}

// invalidateFor drops cached data that a pushed event makes stale. It runs
// before listeners so a listener that refetches sees the server state.
func (c *Client) invalidateFor(event string, data json.RawMessage) {
	switch event {
	case eventNewMessage, eventMessagesRead, eventReactionAdded, eventReactionRemoved:
	default:
		return
	}
	if id := eventConversation(data); id != "" {
		c.cache.invalidateConversation(id)
	}
	if event == eventNewMessage || event == eventMessagesRead {
		// Last message and unread counts live in the conversation list.
		_, userID := c.restClient()
		c.cache.invalidateUser(userID)
	}
}

func (c *Client) teardown(t Transport) {
	if t == nil {
		return
	}
	for _, ev := range append([]string{EventConnect, EventConnectError, EventDisconnect, eventError}, applicationEvents...) {
		t.Off(ev)
	}
	if err := t.Disconnect(); err != nil {
		c.debug("transport close failed", map[string]any{"error": err.Error()})
	}
}

func (c *Client) isCurrent(t Transport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport == t
}

// canReconnectLocked reports whether a failure may schedule a reconnection.
func (c *Client) canReconnectLocked() bool {
	return c.cfg.Reconnection.Enabled && c.userID != "" && c.token != ""
}

func (c *Client) handleConnect(t Transport) {
	c.mu.Lock()
	if c.transport != t {
		c.mu.Unlock()
		return
	}
	c.status = StatusConnected
	c.attempts = 0
	c.mu.Unlock()

	c.log().Info("connected to chat server", map[string]any{"status": StatusConnected.String()})
	c.dispatcher.emitStatus(StatusConnected)

	if pending := c.queue.pending(); len(pending) > 0 {
		c.debug("flushing message queue", map[string]any{"queue_size": len(pending)})
		c.drains.Add(1)
		go func() {
			defer c.drains.Done()
			c.drain(pending)
		}()
	}
}

func (c *Client) handleDisconnect(t Transport, reason string) {
	c.mu.Lock()
	if c.transport != t {
		c.mu.Unlock()
		return
	}
	c.status = StatusDisconnected
	reconnect := c.canReconnectLocked() && reason != reasonClientDisconnect
	c.mu.Unlock()

	c.log().Info("disconnected from chat server", map[string]any{"reason": reason})
	c.dispatcher.emitStatus(StatusDisconnected)
	if reconnect {
		c.scheduleReconnect()
	}
}

// handleError covers dial failures (t == nil), connect_error and server error events.
func (c *Client) handleError(t Transport, err error) {
	c.mu.Lock()
	if t != nil && c.transport != t {
		c.mu.Unlock()
		return
	}
	c.status = StatusError
	reconnect := c.canReconnectLocked()
	c.mu.Unlock()

	c.log().Warn("chat connection error", map[string]any{"error": err.Error()})
	c.dispatcher.emitStatus(StatusError)
	c.dispatcher.emitError(err)
	if reconnect {
		c.scheduleReconnect()
	}
}

// Disconnect cancels any pending reconnection, closes the transport and
// forgets the credentials. It is safe to call repeatedly.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.stopReconnectLocked()
	t := c.transport
	c.transport = nil
	c.userID = ""
	c.token = ""
	c.attempts = 0
	changed := c.status != StatusDisconnected
	c.status = StatusDisconnected
	c.mu.Unlock()

	c.teardown(t)
	if changed {
		c.dispatcher.emitStatus(StatusDisconnected)
	}
}

// Close disconnects and waits for in-flight queue drains.
func (c *Client) Close() error {
	c.Disconnect()
	c.drains.Wait()
	return nil
}

// SendMessage sends a message over REST. While not connected, and with
// queuing enabled, the message is queued instead and a placeholder with
// status "sending" is returned.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string, attachments ...Attachment) (*Message, error) {
	c.mu.Lock()
	status := c.status
	queueing := c.cfg.EnableMessageQueue
	limit := c.cfg.MaxQueueSize
	userID := c.userID
	c.mu.Unlock()

	if status != StatusConnected && queueing {
		return c.enqueue(conversationID, content, attachments, limit, userID)
	}
	return c.deliver(ctx, conversationID, content, attachments)
}

func (c *Client) enqueue(conversationID, content string, attachments []Attachment, limit int, userID string) (*Message, error) {
	now := time.Now().UTC()
	qm := &QueuedMessage{
		ConversationID: conversationID,
		Content:        content,
		Timestamp:      now,
	}
	for _, a := range attachments {
		buffered, err := bufferAttachment(a)
		if err != nil {
			return nil, WrapError(ErrorInvalidArgument, "read attachment "+a.Filename, err)
		}
		qm.Attachments = append(qm.Attachments, buffered)
	}

	if c.queue.push(qm, limit) {
		c.debug("message queued", map[string]any{"conversation_id": conversationID, "queue_size": c.queue.len()})
	} else {
		c.log().Warn("message queue full, dropping message", map[string]any{
			"conversation_id": conversationID,
			"queue_size":      limit,
		})
	}

	return &Message{
		ID:             "temp_" + uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        content,
		Type:           rest.TypeForAttachments(attachments),
		Status:         rest.MessageStatusSending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// bufferAttachment reads the body into memory so retries can resend it.
func bufferAttachment(a Attachment) (Attachment, error) {
	if a.Body == nil {
		return a, nil
	}
	if _, ok := a.Body.(*bytes.Reader); ok {
		return a, nil
	}
	data, err := io.ReadAll(a.Body)
	if err != nil {
		return Attachment{}, err
	}
	a.Body = bytes.NewReader(data)
	return a, nil
}

// rewind returns attachments whose buffered bodies start from the beginning.
func rewind(attachments []Attachment) []Attachment {
	out := make([]Attachment, len(attachments))
	for i, a := range attachments {
		if r, ok := a.Body.(*bytes.Reader); ok {
			_, _ = r.Seek(0, io.SeekStart)
		}
		out[i] = a
	}
	return out
}

func (c *Client) deliver(ctx context.Context, conversationID, content string, attachments []Attachment) (*Message, error) {
	api, userID := c.restClient()
	msg, err := api.SendMessage(ctx, conversationID, content, attachments)
	if err != nil {
		c.debug("send message failed", map[string]any{"conversation_id": conversationID, "error": err.Error()})
		return nil, wrapAPIError("send message", err)
	}
	if msg.Status == "" {
		msg.Status = rest.MessageStatusSent
	}

	c.cache.invalidateConversation(conversationID)
	c.cache.invalidateUser(userID)
	_ = c.emit(eventMessageSentNotification, map[string]string{
		"messageId":      msg.ID,
		"conversationId": conversationID,
	})
	return msg, nil
}

// drain sends the queued messages captured when the connection came up.
// Failed messages go back to the tail until they exceed maxMessageRetries.
func (c *Client) drain(pending []*QueuedMessage) {
	ctx := context.Background()
	for _, qm := range pending {
		if !c.queue.take(qm) {
			continue
		}
		_, err := c.deliver(ctx, qm.ConversationID, qm.Content, rewind(qm.Attachments))
		if err == nil {
			continue
		}

		fields := map[string]any{
			"conversation_id": qm.ConversationID,
			"retry":           qm.RetryCount,
			"error":           err.Error(),
		}
		if qm.RetryCount >= maxMessageRetries {
			c.log().Warn("dropping queued message after max retries", fields)
			continue
		}
		retry := *qm
		retry.RetryCount++
		c.mu.Lock()
		limit := c.cfg.MaxQueueSize
		c.mu.Unlock()
		if !c.queue.push(&retry, limit) {
			c.log().Warn("message queue full, dropping retried message", fields)
		}
	}
}

func (c *Client) restClient() (*rest.Client, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.api, c.userID
}

// emit sends an event on the current transport, if any.
func (c *Client) emit(event string, payload any) error {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return NewError(ErrorNotConnected, "no active transport")
	}
	return t.Emit(event, payload)
}

// wrapAPIError classifies REST failures.
func wrapAPIError(op string, err error) error {
	var apiErr *rest.APIError
	switch {
	case errors.As(err, &apiErr):
		code := ErrorHTTP
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			code = ErrorRateLimited
		case apiErr.StatusCode >= 500:
			code = ErrorServer
		}
		return WrapError(code, op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return WrapError(ErrorTimeout, op, err)
	default:
		return WrapError(ErrorConnection, op, err)
	}
}

// Listener registration

// OnConnectionStatusChange registers a status listener.
func (c *Client) OnConnectionStatusChange(fn func(ConnectionStatus)) ListenerID {
	return c.dispatcher.OnStatus(fn)
}

// OffConnectionStatusChange removes one status listener.
func (c *Client) OffConnectionStatusChange(id ListenerID) {
	c.dispatcher.status.remove(id)
}

// OnConnectionError registers a listener for transport and server errors.
func (c *Client) OnConnectionError(fn func(error)) ListenerID { return c.dispatcher.OnError(fn) }

// OnMessage registers a listener for incoming messages.
func (c *Client) OnMessage(fn func(Message)) ListenerID { return c.dispatcher.OnMessage(fn) }

// OnTyping registers a listener for typing indicators.
func (c *Client) OnTyping(fn func(TypingIndicator)) ListenerID { return c.dispatcher.OnTyping(fn) }

// OnReactionUpdate registers a listener for reaction changes.
func (c *Client) OnReactionUpdate(fn func(ReactionUpdate)) ListenerID {
	return c.dispatcher.OnReaction(fn)
}

// OnReadStatusUpdate registers a listener for read receipts.
func (c *Client) OnReadStatusUpdate(fn func(ReadStatusUpdate)) ListenerID {
	return c.dispatcher.OnReadStatus(fn)
}

// RemoveListener removes a listener of any kind.
func (c *Client) RemoveListener(id ListenerID) bool {
	return c.dispatcher.Remove(id)
}

// Off removes every listener registered for event.
func (c *Client) Off(event ListenerEvent) {
	c.dispatcher.Clear(event)
}

// Observers

// ConnectionStatus returns the current connection status.
func (c *Client) ConnectionStatus() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// ReconnectionAttempts returns the attempts made since the last successful connect.
func (c *Client) ReconnectionAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// QueuedMessages returns a copy of the outbound queue in order.
func (c *Client) QueuedMessages() []QueuedMessage {
	return c.queue.list()
}

// ClearMessageQueue drops every queued message.
func (c *Client) ClearMessageQueue() {
	c.queue.clear()
}

// Config returns a copy of the current configuration.
func (c *Client) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.resolved()
}

// UpdateConfig applies fn to a copy of the configuration and installs it.
// fn runs without the client lock held, so it may call other Client methods.
// Reconnection settings take effect on the next scheduled attempt.
func (c *Client) UpdateConfig(fn func(*Config)) {
	base := c.Config()
	next := base
	fn(&next)
	if next.SocketURL == base.SocketURL && base.SocketURL == base.APIURL {
		// SocketURL was derived from APIURL; keep following it.
		next.SocketURL = ""
		if next.APIURL == base.APIURL {
			next.SocketURL = base.SocketURL
		}
	}
	next = next.resolved()

	c.mu.Lock()
	prev := c.cfg
	c.cfg = next
	if next.APIURL != prev.APIURL || next.HTTPTimeout != prev.HTTPTimeout {
		c.api = c.newREST(next)
	}
	if next.TypingRateLimit != prev.TypingRateLimit {
		c.typing = newTypingLimiter(next.TypingRateLimit)
	}
	c.mu.Unlock()

	c.debug("config updated", map[string]any{"api_url": next.APIURL, "socket_url": next.SocketURL})
}
