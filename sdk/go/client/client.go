// Package client is a Go client for the robosim bridge.
//
// Request/response operations use HTTP. Connect opens the websocket event
// stream; once connected, events are delivered to handlers registered with
// OnEvent and Do sends requests over the socket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/internal/core/physics"
	"github.com/zeusync/robosim/internal/core/sensor"
	"github.com/zeusync/robosim/internal/core/session"
	"github.com/zeusync/robosim/pkg/bridge"
)

// AllEvents registers a handler for every message type.
const AllEvents = "*"

// EventHandler receives websocket messages that are not replies.
type EventHandler func(msg bridge.Message)

// Client represents a bridge client
type Client struct {
	// Connection management
	base   *url.URL
	http   *http.Client
	conn   *websocket.Conn
	connMu sync.Mutex
	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex

	// Client state
	id        string
	pending   map[string]chan bridge.Message
	pendingMu sync.Mutex

	// Event handlers
	handlers     map[string][]EventHandler
	handlerMutex sync.RWMutex

	// Lifecycle
	connected atomic.Bool
	closed    atomic.Bool
	done      chan struct{}

	// Configuration and logging
	config Config
	logger log.Log

	// Background workers
	workerGroup sync.WaitGroup
}

// Config holds configuration for the client
type Config struct {
	// ServerURL is the bridge base URL, e.g. http://localhost:8080.
	ServerURL string
	Token     string

	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		ServerURL:      "http://localhost:8080",
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// New creates a client. It does not contact the server.
func New(config Config, logger log.Log) (*Client, error) {
	base, err := url.Parse(config.ServerURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("%w: server url %q", ErrInvalidConfig, config.ServerURL)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	id := uuid.NewString()
	return &Client{
		base:     base,
		http:     &http.Client{Timeout: config.RequestTimeout},
		id:       id,
		pending:  make(map[string]chan bridge.Message),
		handlers: make(map[string][]EventHandler),
		done:     make(chan struct{}),
		config:   config,
		logger:   logger.With(log.String("client_id", id)),
	}, nil
}

// ID returns the client id used to correlate websocket requests.
func (c *Client) ID() string { return c.id }

// APIError is a non-2xx reply from the bridge.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

// Health returns the server health document.
func (c *Client) Health(ctx context.Context) (bridge.Health, error) {
	var h bridge.Health
	return h, c.doJSON(ctx, http.MethodGet, "/healthz", nil, &h)
}

// Snapshot returns the current session state.
func (c *Client) Snapshot(ctx context.Context) (session.Snapshot, error) {
	var snap session.Snapshot
	return snap, c.doJSON(ctx, http.MethodGet, "/pose", nil, &snap)
}

// Sense returns the reading at the current pose.
func (c *Client) Sense(ctx context.Context) (bridge.SenseResponse, error) {
	var r bridge.SenseResponse
	return r, c.doJSON(ctx, http.MethodGet, "/sensors", nil, &r)
}

// Step applies one command and returns the resulting state.
func (c *Client) Step(ctx context.Context, cmd motion.Command) (session.Snapshot, error) {
	var snap session.Snapshot
	return snap, c.doJSON(ctx, http.MethodPost, "/step", cmd, &snap)
}

// Replay reapplies the recorded commands from the recorded start pose.
func (c *Client) Replay(ctx context.Context) (session.Snapshot, error) {
	var snap session.Snapshot
	return snap, c.doJSON(ctx, http.MethodPost, "/replay", nil, &snap)
}

func (c *Client) StartRun(ctx context.Context, req bridge.RunRequest) (bridge.RunResponse, error) {
	var resp bridge.RunResponse
	return resp, c.doJSON(ctx, http.MethodPost, "/run/start", req, &resp)
}

func (c *Client) StopRun(ctx context.Context) (session.Snapshot, error) {
	var snap session.Snapshot
	return snap, c.doJSON(ctx, http.MethodPost, "/run/stop", nil, &snap)
}

// LoadMap uploads a .wrl world document.
func (c *Client) LoadMap(ctx context.Context, wrl io.Reader) (bridge.MapResponse, error) {
	var m bridge.MapResponse
	return m, c.do(ctx, http.MethodPut, "/map", "text/plain", wrl, &m)
}

// LoadObjects uploads an objects document ("name x y" per line).
func (c *Client) LoadObjects(ctx context.Context, objects io.Reader) error {
	return c.do(ctx, http.MethodPut, "/objects", "text/plain", objects, nil)
}

func (c *Client) SetSensor(ctx context.Context, cfg sensor.Config) (sensor.Config, error) {
	var out sensor.Config
	return out, c.doJSON(ctx, http.MethodPut, "/sensor", cfg, &out)
}

func (c *Client) Grasp(ctx context.Context, name string) (session.Snapshot, error) {
	var snap session.Snapshot
	return snap, c.doJSON(ctx, http.MethodPost, "/objects/"+url.PathEscape(name)+"/grasp", nil, &snap)
}

func (c *Client) Release(ctx context.Context) (bridge.ReleaseResponse, error) {
	var resp bridge.ReleaseResponse
	return resp, c.doJSON(ctx, http.MethodPost, "/objects/release", nil, &resp)
}

// UpdateExternal reports the pose and reading of an external robot.
func (c *Client) UpdateExternal(ctx context.Context, pose physics.Pose, reading sensor.Reading) error {
	return c.doJSON(ctx, http.MethodPost, "/external/update", bridge.ExternalUpdate{Pose: pose, Reading: reading}, nil)
}

// Calibrate maps the external robot's current pose onto anchor.
func (c *Client) Calibrate(ctx context.Context, anchor physics.Pose) (physics.Pose, error) {
	var p physics.Pose
	return p, c.doJSON(ctx, http.MethodPost, "/external/calibrate", bridge.CalibrateRequest{Anchor: anchor}, &p)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	return c.do(ctx, method, path, "application/json", body, out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e bridge.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// OnEvent registers handler for messages of type typ, or for all of them
// with AllEvents. Handlers run on the read goroutine.
func (c *Client) OnEvent(typ string, handler EventHandler) {
	c.handlerMutex.Lock()
	c.handlers[typ] = append(c.handlers[typ], handler)
	c.handlerMutex.Unlock()
}

// Connect opens the websocket stream.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.connected.Load() {
		return ErrAlreadyConnected
	}

	u := *c.base.JoinPath("/ws")
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	header := http.Header{}
	if c.config.Token != "" {
		header.Set("Authorization", "Bearer "+c.config.Token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: c.config.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("connect %s: %w", u.String(), err)
	}

	c.conn = conn
	c.connected.Store(true)
	c.workerGroup.Add(1)
	go c.readLoop(conn)
	c.logger.Info("Connected", log.String("url", u.String()))
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.workerGroup.Done()
	defer c.connected.Store(false)
	defer c.failPending()

	for {
		var msg bridge.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !c.closed.Load() {
				c.logger.Warn("Connection lost", log.Error(err))
			}
			return
		}
		if c.resolve(msg) {
			continue
		}
		c.dispatch(msg)
	}
}

// resolve hands a reply to the waiting request.
func (c *Client) resolve(msg bridge.Message) bool {
	if msg.ID == "" {
		return false
	}
	c.pendingMu.Lock()
	ch, ok := c.pending[msg.ID]
	delete(c.pending, msg.ID)
	c.pendingMu.Unlock()
	if ok {
		ch <- msg
	}
	return ok
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

func (c *Client) dispatch(msg bridge.Message) {
	c.handlerMutex.RLock()
	handlers := append(append([]EventHandler(nil), c.handlers[msg.Type]...), c.handlers[AllEvents]...)
	c.handlerMutex.RUnlock()
	for _, h := range handlers {
		h(msg)
	}
}

// Do sends a request over the websocket and waits for its reply. An error
// reply is returned as an error.
func (c *Client) Do(ctx context.Context, typ string, data any) (bridge.Message, error) {
	if !c.connected.Load() {
		return bridge.Message{}, ErrNotConnected
	}
	msg, err := bridge.NewMessage(typ, uuid.NewString(), data)
	if err != nil {
		return bridge.Message{}, err
	}

	reply := make(chan bridge.Message, 1)
	c.pendingMu.Lock()
	c.pending[msg.ID] = reply
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msg.ID)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	err = c.conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		return bridge.Message{}, err
	}

	select {
	case r, ok := <-reply:
		if !ok {
			return bridge.Message{}, ErrNotConnected
		}
		if r.Type == bridge.TypeError {
			return r, errors.New(r.Error)
		}
		return r, nil
	case <-ctx.Done():
		return bridge.Message{}, ctx.Err()
	case <-c.done:
		return bridge.Message{}, ErrClientClosed
	}
}

// StepStream applies cmd over the websocket. Events produced by the step
// reach the handlers before the reply.
func (c *Client) StepStream(ctx context.Context, cmd motion.Command) (session.Snapshot, error) {
	var snap session.Snapshot
	reply, err := c.Do(ctx, bridge.TypeStep, cmd)
	if err != nil {
		return snap, err
	}
	return snap, reply.Decode(&snap)
}

// Close closes the websocket, if any, and waits for the read goroutine.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}
	close(c.done)

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = conn.Close()
	}
	c.workerGroup.Wait()
	c.logger.Debug("Client closed")
	return err
}
