package petchat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type emission struct {
	event   string
	payload any
}

// fakeTransport records calls and lets tests raise events by hand.
type fakeTransport struct {
	url  string
	opts TransportOptions

	mu                sync.Mutex
	handlers          map[string][]EventHandler
	emits             []emission
	handlersAtConnect int
	connects          int
	disconnects       int
}

func (f *fakeTransport) On(event string, h EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], h)
}

func (f *fakeTransport) Off(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, event)
}

func (f *fakeTransport) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, emission{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) Connect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.handlersAtConnect = len(f.handlers)
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

// trigger raises event with payload marshaled to JSON.
func (f *fakeTransport) trigger(event string, payload any) {
	var data json.RawMessage
	if payload != nil {
		data, _ = json.Marshal(payload)
	}
	f.mu.Lock()
	hs := append([]EventHandler(nil), f.handlers[event]...)
	f.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
}

// raw raises event with data passed through untouched.
func (f *fakeTransport) raw(event string, data string) {
	f.mu.Lock()
	hs := append([]EventHandler(nil), f.handlers[event]...)
	f.mu.Unlock()
	for _, h := range hs {
		h(json.RawMessage(data))
	}
}

// handler returns the first handler bound for event.
func (f *fakeTransport) handler(event string) EventHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.handlers[event]) == 0 {
		return nil
	}
	return f.handlers[event][0]
}

func (f *fakeTransport) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

func (f *fakeTransport) emitted() []emission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emission(nil), f.emits...)
}

// fakeDialer hands out fakeTransports and remembers them.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	fail       error
}

func (d *fakeDialer) dial(url string, opts TransportOptions) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	t := &fakeTransport{url: url, opts: opts, handlers: make(map[string][]EventHandler)}
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

func (d *fakeDialer) last() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

// fakeTimers replaces time.AfterFunc; timers only fire when a test says so.
type fakeTimers struct {
	mu     sync.Mutex
	delays []time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (ft *fakeTimers) afterFunc(d time.Duration, f func()) timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{f: f}
	ft.delays = append(ft.delays, d)
	ft.timers = append(ft.timers, t)
	return t
}

// fireLast runs the most recently armed timer if it was not stopped.
func (ft *fakeTimers) fireLast() bool {
	ft.mu.Lock()
	if len(ft.timers) == 0 {
		ft.mu.Unlock()
		return false
	}
	t := ft.timers[len(ft.timers)-1]
	ft.mu.Unlock()

	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped {
		return false
	}
	t.f()
	return true
}

func (ft *fakeTimers) timer(i int) *fakeTimer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.timers[i]
}

func (t *fakeTimer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (ft *fakeTimers) armed() []time.Duration {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return append([]time.Duration(nil), ft.delays...)
}

// statusRecorder collects status transitions.
type statusRecorder struct {
	mu   sync.Mutex
	seen []ConnectionStatus
}

func (r *statusRecorder) record(s ConnectionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, s)
}

func (r *statusRecorder) all() []ConnectionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConnectionStatus(nil), r.seen...)
}

func (r *statusRecorder) count(s ConnectionStatus) int {
	n := 0
	for _, v := range r.all() {
		if v == s {
			n++
		}
	}
	return n
}

type harness struct {
	client *Client
	dialer *fakeDialer
	timers *fakeTimers
}

// newHarness builds a client wired to fakes. mutate may adjust the config.
func newHarness(t *testing.T, apiURL string, mutate func(*Config)) *harness {
	t.Helper()
	cfg := DefaultConfig()
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	cfg.TypingRateLimit = 0
	if mutate != nil {
		mutate(&cfg)
	}
	d := &fakeDialer{}
	c := NewClient(cfg, WithDialer(d.dial))
	ft := &fakeTimers{}
	c.afterFunc = ft.afterFunc
	t.Cleanup(func() { _ = c.Close() })
	return &harness{client: c, dialer: d, timers: ft}
}

// connected connects and completes the handshake on the created transport.
func (h *harness) connected(t *testing.T) *fakeTransport {
	t.Helper()
	if err := h.client.Connect("user-123", "token"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	tr := h.dialer.last()
	tr.trigger(EventConnect, nil)
	return tr
}

// messageServer is a REST backend that accepts posted messages.
type messageServer struct {
	mu       sync.Mutex
	contents []string
	fail     int // number of upcoming requests to fail with 500
	always   bool
}

func (s *messageServer) handler(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseMultipartForm(1 << 20)
	content := r.FormValue("content")

	s.mu.Lock()
	failing := s.always || s.fail > 0
	if s.fail > 0 {
		s.fail--
	}
	if !failing {
		s.contents = append(s.contents, content)
	}
	n := len(s.contents)
	s.mu.Unlock()

	if failing {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"database unavailable"}`)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
		"id":             fmt.Sprintf("msg-%d", n),
		"conversationId": "conv-123",
		"content":        content,
		"createdAt":      time.Now().UTC(),
	}})
}

func (s *messageServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.contents...)
}

func newMessageServer(t *testing.T) (*messageServer, string) {
	t.Helper()
	ms := &messageServer{}
	srv := httptest.NewServer(http.HandlerFunc(ms.handler))
	t.Cleanup(srv.Close)
	return ms, srv.URL
}

var errDialRefused = errors.New("dial refused")
