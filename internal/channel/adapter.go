package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"goride/internal/config"
	"goride/pkg/logger"
	"goride/pkg/metrics"
)

// HandlerFunc receives the raw payload of one inbound event.
type HandlerFunc func(data json.RawMessage)

type Credentials struct {
	UserID string
	Role   string
}

// TokenSource supplies the bearer token for the handshake and persists
// server-pushed token rotations.
type TokenSource interface {
	Tokens() (access, refresh string)
	SetTokens(access, refresh string) error
}

type subscription struct {
	id int
	fn HandlerFunc
}

// Adapter maintains one persistent websocket connection per session and
// exposes typed subscribe/emit operations over it. Reconnection is
// automatic and bounded; when the budget runs out a terminal
// connection-lost event is delivered instead of retrying forever.
type Adapter struct {
	cfg    *config.ChannelConfig
	log    *logger.Logger
	tokens TokenSource
	dialer *websocket.Dialer

	send chan []byte

	mu        sync.Mutex
	conn      *websocket.Conn
	stopWrite chan struct{}
	stopOnce  *sync.Once
	handlers  map[string][]subscription
	nextSubID int
	creds     Credentials
	connected bool
	closing   bool
	wg        sync.WaitGroup
}

func NewAdapter(cfg *config.ChannelConfig, tokens TokenSource, log *logger.Logger) *Adapter {
	return &Adapter{
		cfg:    cfg,
		log:    log.WithComponent("channel"),
		tokens: tokens,
		dialer: &websocket.Dialer{
			HandshakeTimeout:  cfg.HandshakeTimeout,
			ReadBufferSize:    cfg.ReadBufferSize,
			WriteBufferSize:   cfg.WriteBufferSize,
			EnableCompression: cfg.EnableCompression,
		},
		send:     make(chan []byte, 256),
		handlers: make(map[string][]subscription),
	}
}

// Connect opens the connection and starts the read/write pumps.
func (a *Adapter) Connect(ctx context.Context, creds Credentials) error {
	a.mu.Lock()
	if a.connected {
		a.mu.Unlock()
		return nil
	}
	a.creds = creds
	a.closing = false
	a.mu.Unlock()

	err := a.dial(ctx)
	metrics.RecordConnect(err)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannelDisconnected, err)
	}
	return nil
}

func (a *Adapter) dial(ctx context.Context) error {
	access, _ := a.tokens.Tokens()

	header := http.Header{}
	if access != "" {
		header.Set("Authorization", "Bearer "+access)
	}

	a.mu.Lock()
	creds := a.creds
	a.mu.Unlock()
	if creds.UserID != "" {
		header.Set("X-User-Id", creds.UserID)
	}
	if creds.Role != "" {
		header.Set("X-User-Role", creds.Role)
	}

	conn, _, err := a.dialer.DialContext(ctx, a.cfg.URL, header)
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	once := &sync.Once{}

	a.mu.Lock()
	if a.closing {
		// Disconnect won the race while the dial was in flight; do not
		// install the connection after teardown.
		a.mu.Unlock()
		conn.Close()
		return ErrChannelDisconnected
	}
	a.conn = conn
	a.stopWrite = stop
	a.stopOnce = once
	a.connected = true
	a.mu.Unlock()
	metrics.ChannelConnected.Set(1)

	a.wg.Add(2)
	go a.readPump(conn, stop, once)
	go a.writePump(conn, stop)

	a.log.Info("Channel connected")
	return nil
}

// On registers a handler for an event and returns its unsubscribe
// function. Handlers run on the read pump goroutine in transport
// delivery order.
func (a *Adapter) On(event string, fn HandlerFunc) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextSubID++
	id := a.nextSubID
	a.handlers[event] = append(a.handlers[event], subscription{id: id, fn: fn})

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		subs := a.handlers[event]
		for i, sub := range subs {
			if sub.id == id {
				a.handlers[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Emit queues one outbound message. Returns ErrChannelDisconnected when
// the connection is down, or an error when the send buffer is full.
func (a *Adapter) Emit(event string, payload interface{}) error {
	a.mu.Lock()
	connected := a.connected
	a.mu.Unlock()
	if !connected {
		return ErrChannelDisconnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", event, err)
	}

	frame, err := json.Marshal(Envelope{
		Event:     event,
		Timestamp: time.Now().Unix(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s envelope: %w", event, err)
	}

	select {
	case a.send <- frame:
		return nil
	default:
		return fmt.Errorf("channel send buffer full, dropping %s", event)
	}
}

// Disconnect closes the connection and releases all handlers. Idempotent.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	if a.closing && a.conn == nil {
		a.mu.Unlock()
		return
	}
	a.closing = true
	conn := a.conn
	stop := a.stopWrite
	once := a.stopOnce
	a.conn = nil
	a.stopWrite = nil
	a.stopOnce = nil
	a.connected = false
	a.mu.Unlock()
	metrics.ChannelConnected.Set(0)

	if stop != nil && once != nil {
		once.Do(func() { close(stop) })
	}
	if conn != nil {
		conn.Close()
	}
	a.wg.Wait()

	a.mu.Lock()
	a.handlers = make(map[string][]subscription)
	a.mu.Unlock()

	a.log.Info("Channel disconnected")
}

func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *Adapter) readPump(conn *websocket.Conn, stop chan struct{}, once *sync.Once) {
	defer a.wg.Done()

	conn.SetReadLimit(a.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(a.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(a.cfg.PongTimeout))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.log.WithError(err).Warn("Channel read failed")
			}
			break
		}
		a.handleFrame(message)
	}

	conn.Close()

	a.mu.Lock()
	current := a.conn == conn
	closing := a.closing
	if current {
		a.connected = false
		a.conn = nil
		a.stopWrite = nil
		a.stopOnce = nil
	}
	a.mu.Unlock()

	if current {
		metrics.ChannelConnected.Set(0)
		once.Do(func() { close(stop) })
		if !closing {
			go a.reconnect()
		}
	}
}

func (a *Adapter) writePump(conn *websocket.Conn, stop chan struct{}) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(a.cfg.WriteTimeout))
			return

		case message := <-a.send:
			conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reconnect retries the dial a bounded number of times, then gives up
// and surfaces connection-lost to subscribers.
func (a *Adapter) reconnect() {
	for attempt := 1; attempt <= a.cfg.ReconnectAttempts; attempt++ {
		time.Sleep(a.cfg.ReconnectDelay)

		a.mu.Lock()
		if a.closing {
			a.mu.Unlock()
			return
		}
		a.mu.Unlock()

		metrics.ChannelReconnectsTotal.Inc()
		err := a.dial(context.Background())
		metrics.RecordConnect(err)
		if err != nil {
			a.log.WithError(err).WithField("attempt", attempt).Warn("Reconnect attempt failed")
			continue
		}

		a.log.WithField("attempt", attempt).Info("Channel reconnected")
		return
	}

	a.log.Error("Channel reconnect attempts exhausted")
	a.dispatch(EventConnectionLost, nil)
}

// handleFrame decodes one inbound frame. Malformed frames are dropped
// here so undefined fields never propagate into the reducer.
func (a *Adapter) handleFrame(message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		metrics.ChannelInvalidEventsTotal.Inc()
		a.log.WithError(err).Warn("Dropping unparseable channel frame")
		return
	}

	if env.Event == "" {
		metrics.ChannelInvalidEventsTotal.Inc()
		a.log.Warn("Dropping channel frame without event name")
		return
	}

	// Token rotations are persisted before anything else so the next
	// reconnect already uses them.
	if env.Event == EventTokensUpdated {
		tokens, err := DecodeTokensUpdated(env.Data)
		if err != nil {
			metrics.ChannelInvalidEventsTotal.Inc()
			a.log.WithError(err).Warn("Dropping malformed token rotation")
			return
		}
		if err := a.tokens.SetTokens(tokens.Token, tokens.RefreshToken); err != nil {
			a.log.WithError(err).Error("Failed to persist rotated tokens")
		}
	}

	metrics.ChannelEventsTotal.WithLabelValues(env.Event).Inc()
	a.dispatch(env.Event, env.Data)
}

func (a *Adapter) dispatch(event string, data json.RawMessage) {
	a.mu.Lock()
	subs := make([]subscription, len(a.handlers[event]))
	copy(subs, a.handlers[event])
	a.mu.Unlock()

	for _, sub := range subs {
		sub.fn(data)
	}
}
