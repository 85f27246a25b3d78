package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/robosim/internal/core/events/bus"
	"github.com/zeusync/robosim/internal/core/motion"
	"github.com/zeusync/robosim/internal/core/observability/log"
	"github.com/zeusync/robosim/pkg/bridge"
)

const writeWait = 5 * time.Second

// ErrNoClients is returned when a command is sent with nobody connected.
var ErrNoClients = errors.New("no websocket clients connected")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan bridge.Message
	done chan struct{}
	once sync.Once
}

// enqueue never blocks; a full buffer drops the message.
func (c *client) enqueue(msg bridge.Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.conn.Close()
	})
}

// Hub fans session events out to websocket clients. It also serves as the
// command sink of an external robot listening on the same socket.
type Hub struct {
	bus bus.EventBus
	sub bus.Subscription

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool

	buffer  int
	dropped atomic.Uint64
	logger  log.Log
}

// NewHub subscribes to every event on b. b may be nil.
func NewHub(b bus.EventBus, buffer int, logger log.Log) (*Hub, error) {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = log.NewNop()
	}
	h := &Hub{
		bus:     b,
		clients: make(map[string]*client),
		buffer:  buffer,
		logger:  logger.With(log.String("component", "hub")),
	}
	if b != nil {
		sub, err := b.Subscribe(bus.Wildcard, h.onEvent)
		if err != nil {
			return nil, err
		}
		h.sub = sub
	}
	return h, nil
}

func (h *Hub) onEvent(e bus.Event) error {
	msg, err := bridge.EventMessage(e)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// Broadcast queues msg for every client and returns how many accepted it.
func (h *Hub) Broadcast(msg bridge.Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		if c.enqueue(msg) {
			n++
			continue
		}
		h.dropped.Add(1)
		h.logger.Debug("Message dropped", log.String("client", c.id), log.String("type", msg.Type))
	}
	return n
}

// Send implements session.CommandSink by broadcasting a command message.
func (h *Hub) Send(_ context.Context, cmd motion.Command) error {
	msg, err := bridge.NewMessage(bridge.TypeCommand, uuid.NewString(), cmd)
	if err != nil {
		return err
	}
	if h.Broadcast(msg) == 0 {
		return ErrNoClients
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were dropped for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// attach upgrades the request and starts the client's writer.
func (h *Hub) attach(w http.ResponseWriter, r *http.Request) (*client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan bridge.Message, h.buffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		return nil, ErrServerClosed
	}
	h.clients[c.id] = c
	h.mu.Unlock()

	h.logger.Info("Client connected", log.String("client", c.id), log.String("remote", conn.RemoteAddr().String()))
	go h.writeLoop(c)
	return c, nil
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	c.close()
	if ok {
		h.logger.Info("Client disconnected", log.String("client", c.id))
	}
}

func (h *Hub) writeLoop(c *client) {
	defer h.detach(c)
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				h.logger.Debug("Write failed", log.String("client", c.id), log.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close unsubscribes from the bus and disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for id, c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	if h.bus != nil {
		return h.bus.Unsubscribe(h.sub)
	}
	return nil
}

// handleWebSocket streams session events to the client and serves step and
// sense requests sent over the same socket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	c, err := s.hub.attach(w, r)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}
	defer s.hub.detach(c)

	logger := s.logger.With(log.String("client", c.id))
	for {
		var msg bridge.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Read failed", log.Error(err))
			}
			return
		}
		reply := s.handleMessage(r.Context(), msg)
		if !c.enqueue(reply) {
			logger.Debug("Reply dropped", log.String("type", reply.Type))
		}
	}
}

func (s *Server) handleMessage(parent context.Context, msg bridge.Message) bridge.Message {
	ctx, cancel := s.opContext(parent)
	defer cancel()

	var (
		typ  string
		data any
		err  error
	)
	switch msg.Type {
	case bridge.TypePing:
		typ = bridge.TypePong
	case bridge.TypeStep:
		var cmd motion.Command
		if err = msg.Decode(&cmd); err != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidMessage, err)
			break
		}
		typ = bridge.TypeStepResult
		data, err = call(ctx, s.worker, step(cmd))
	case bridge.TypeSense:
		typ = bridge.TypeSenseResult
		data, err = call(ctx, s.worker, sense)
	default:
		err = fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, msg.Type)
	}
	if err != nil {
		return bridge.ErrorMessage(msg.ID, err)
	}
	reply, err := bridge.NewMessage(typ, msg.ID, data)
	if err != nil {
		return bridge.ErrorMessage(msg.ID, err)
	}
	return reply
}
