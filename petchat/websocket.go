package petchat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/petchat-sdk-go/petchat/internal"
)

// eventAuth is the first frame a websocket transport writes after dialing.
const eventAuth = "auth"

// WebSocketOptions configures the websocket transport.
type WebSocketOptions struct {
	Path             string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	HTTPClient       *http.Client
}

// NewWebSocketDialer returns a Dialer producing JSON-envelope websocket transports.
func NewWebSocketDialer(opts WebSocketOptions) Dialer {
	return func(rawURL string, topts TransportOptions) (Transport, error) {
		endpoint, err := socketEndpoint(rawURL, opts.Path)
		if err != nil {
			return nil, WrapError(ErrorInvalidConfig, "invalid socket url", err)
		}
		t := &wsTransport{
			url:      endpoint,
			opts:     opts,
			topts:    topts,
			handlers: make(map[string][]EventHandler),
		}
		if topts.AutoConnect {
			t.Connect()
		}
		return t, nil
	}
}

// socketEndpoint maps http(s) origins onto ws(s) and appends path when the URL has none.
func socketEndpoint(raw, path string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("unsupported scheme " + u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	if (u.Path == "" || u.Path == "/") && path != "" {
		u.Path = "/" + strings.TrimLeft(path, "/")
	}
	return u.String(), nil
}

type wsTransport struct {
	url   string
	opts  WebSocketOptions
	topts TransportOptions

	mu       sync.Mutex
	handlers map[string][]EventHandler
	conn     *internal.Conn
	cancel   context.CancelFunc
	started  bool
	closed   bool
	lost     error // read failure that ended an established connection
}

func (t *wsTransport) On(event string, handler EventHandler) {
	if handler == nil {
		return
	}
	t.mu.Lock()
	t.handlers[event] = append(t.handlers[event], handler)
	t.mu.Unlock()
}

func (t *wsTransport) Off(event string) {
	t.mu.Lock()
	delete(t.handlers, event)
	t.mu.Unlock()
}

func (t *wsTransport) Emit(event string, payload any) error {
	t.mu.Lock()
	conn, lost := t.conn, t.lost
	t.mu.Unlock()
	if conn == nil && lost != nil {
		return WrapError(ErrorDisconnected, "socket connection lost", lost)
	}
	if conn == nil {
		return NewError(ErrorNotConnected, "socket not connected")
	}
	if err := conn.WriteFrame(context.Background(), event, payload); err != nil {
		return WrapError(ErrorConnection, "emit "+event, err)
	}
	return nil
}

func (t *wsTransport) Connect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.closed {
		return
	}
	t.started = true
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.run(ctx)
}

func (t *wsTransport) Disconnect() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	return nil
}

func (t *wsTransport) run(ctx context.Context) {
	conn, err := t.handshake(ctx)
	if err != nil {
		if ctx.Err() == nil {
			t.fire(EventConnectError, errorPayload{Message: err.Error()})
		}
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
		return
	}
	t.conn = conn
	t.mu.Unlock()

	t.fire(EventConnect, nil)

	for {
		f, err := conn.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.mu.Lock()
			t.conn = nil
			t.lost = err
			t.mu.Unlock()
			t.fire(EventDisconnect, disconnectReason(err))
			return
		}
		t.dispatch(f.Event, f.Data)
	}
}

func (t *wsTransport) handshake(ctx context.Context) (*internal.Conn, error) {
	dialCtx := ctx
	if t.opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, t.opts.HandshakeTimeout)
		defer cancel()
	}

	header := http.Header{}
	if t.topts.Token != "" {
		header.Set("Authorization", "Bearer "+t.topts.Token)
	}
	ws, _, err := websocket.Dial(dialCtx, t.url, &websocket.DialOptions{
		HTTPClient: t.opts.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, err
	}

	conn := internal.NewConn(ws, t.opts.WriteTimeout)
	auth := map[string]string{"token": t.topts.Token}
	if t.topts.UserID != "" {
		auth["userId"] = t.topts.UserID
	}
	if err := conn.WriteFrame(dialCtx, eventAuth, auth); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "handshake error")
		return nil, err
	}
	return conn, nil
}

func (t *wsTransport) fire(event string, payload any) {
	var data json.RawMessage
	if payload != nil {
		data, _ = json.Marshal(payload)
	}
	t.dispatch(event, data)
}

func (t *wsTransport) dispatch(event string, data json.RawMessage) {
	t.mu.Lock()
	handlers := append([]EventHandler(nil), t.handlers[event]...)
	t.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
}

func disconnectReason(err error) string {
	if errors.Is(err, io.EOF) {
		return "transport close"
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return "io server disconnect"
	case -1:
		return "transport error"
	default:
		return "transport close"
	}
}
