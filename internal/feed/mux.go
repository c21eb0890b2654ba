package feed

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solana-pump-swarm/internal/domain"
	"solana-pump-swarm/internal/observability"
)

// Config configures multiplexer behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// StaleTimeout is how long without any upstream message before
	// Healthy reports false.
	StaleTimeout time.Duration
	// QueueSize is the per-subscriber queue capacity.
	QueueSize int
}

// DefaultConfig returns default multiplexer configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		StaleTimeout:      90 * time.Second,
		QueueSize:         1024,
	}
}

// subscribeRequest is the upstream subscription wire format.
type subscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

const (
	methodSubscribeNewToken     = "subscribeNewToken"
	methodSubscribeTokenTrade   = "subscribeTokenTrade"
	methodUnsubscribeTokenTrade = "unsubscribeTokenTrade"
)

// Multiplexer owns the single upstream websocket connection and fans
// decoded events out to subscriber queues. Subscriptions survive
// reconnects; the upstream methods are replayed after each reconnect.
type Multiplexer struct {
	endpoint string
	config   Config

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	subs   map[*Subscription]struct{}
	subsMu sync.RWMutex

	// watched maps mint to subscriber refcount for trade subscriptions.
	watched   map[string]int
	watchedMu sync.Mutex

	lastMsgMs atomic.Int64
	malformed atomic.Uint64

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool

	logger  *log.Logger
	metrics *observability.Metrics
}

// Option configures optional multiplexer collaborators.
type Option func(*Multiplexer)

// WithLogger sets the multiplexer logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Multiplexer) { m.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mx *observability.Metrics) Option {
	return func(m *Multiplexer) { m.metrics = mx }
}

// NewMultiplexer connects to the upstream feed and subscribes to new
// token creations.
func NewMultiplexer(ctx context.Context, endpoint string, config *Config, opts ...Option) (*Multiplexer, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}

	m := &Multiplexer{
		endpoint: endpoint,
		config:   cfg,
		subs:     make(map[*Subscription]struct{}),
		watched:  make(map[string]int),
		done:     make(chan struct{}),
		logger:   log.New(os.Stdout, "[feed] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.connect(ctx); err != nil {
		return nil, err
	}

	if err := m.writeJSON(subscribeRequest{Method: methodSubscribeNewToken}); err != nil {
		m.conn.Close()
		return nil, fmt.Errorf("subscribe new tokens: %w", err)
	}

	m.lastMsgMs.Store(time.Now().UnixMilli())

	m.wg.Add(1)
	go m.readLoop()

	m.wg.Add(1)
	go m.pingLoop()

	return m, nil
}

// connect establishes the websocket connection.
func (m *Multiplexer) connect(ctx context.Context) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, m.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	m.conn = conn
	return nil
}

// writeJSON sends a message on the upstream connection.
func (m *Multiplexer) writeJSON(v interface{}) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.conn == nil {
		return fmt.Errorf("not connected")
	}

	m.conn.SetWriteDeadline(time.Now().Add(m.config.WriteTimeout))
	return m.conn.WriteJSON(v)
}

// Subscribe attaches a named bounded queue to the broadcast stream.
func (m *Multiplexer) Subscribe(name string) *Subscription {
	s := &Subscription{
		name: name,
		ch:   make(chan domain.FeedEvent, m.config.QueueSize),
		mux:  m,
	}

	m.subsMu.Lock()
	m.subs[s] = struct{}{}
	n := len(m.subs)
	m.subsMu.Unlock()

	if m.metrics != nil {
		m.metrics.FeedSubscribers.Set(float64(n))
	}
	return s
}

// unsubscribe detaches a subscription and closes its channel.
func (m *Multiplexer) unsubscribe(s *Subscription) {
	m.subsMu.Lock()
	_, ok := m.subs[s]
	if ok {
		delete(m.subs, s)
	}
	n := len(m.subs)
	m.subsMu.Unlock()

	if ok {
		close(s.ch)
		if m.metrics != nil {
			m.metrics.FeedSubscribers.Set(float64(n))
		}
	}
}

// WatchTrades subscribes upstream to trade events for a mint. Calls are
// refcounted across bot instances; only the first watcher sends the
// upstream subscription.
func (m *Multiplexer) WatchTrades(mint string) error {
	m.watchedMu.Lock()
	m.watched[mint]++
	first := m.watched[mint] == 1
	n := len(m.watched)
	m.watchedMu.Unlock()

	if m.metrics != nil {
		m.metrics.FeedWatchedMints.Set(float64(n))
	}

	if !first {
		return nil
	}
	return m.writeJSON(subscribeRequest{Method: methodSubscribeTokenTrade, Keys: []string{mint}})
}

// UnwatchTrades drops one reference to a mint's trade subscription and
// unsubscribes upstream when the last watcher leaves.
func (m *Multiplexer) UnwatchTrades(mint string) error {
	m.watchedMu.Lock()
	if m.watched[mint] == 0 {
		m.watchedMu.Unlock()
		return nil
	}
	m.watched[mint]--
	last := m.watched[mint] == 0
	if last {
		delete(m.watched, mint)
	}
	n := len(m.watched)
	m.watchedMu.Unlock()

	if m.metrics != nil {
		m.metrics.FeedWatchedMints.Set(float64(n))
	}

	if !last {
		return nil
	}
	return m.writeJSON(subscribeRequest{Method: methodUnsubscribeTokenTrade, Keys: []string{mint}})
}

// Healthy reports whether the upstream connection has delivered a
// message within the stale timeout.
func (m *Multiplexer) Healthy() bool {
	if m.closed.Load() {
		return false
	}
	last := m.lastMsgMs.Load()
	if last == 0 {
		return false
	}
	return time.Since(time.UnixMilli(last)) < m.config.StaleTimeout
}

// MalformedCount returns the number of undecodable payloads skipped.
func (m *Multiplexer) MalformedCount() uint64 {
	return m.malformed.Load()
}

// Close shuts the multiplexer down and closes all subscriber channels.
func (m *Multiplexer) Close() error {
	if m.closed.Swap(true) {
		return nil // Already closed
	}

	close(m.done)

	m.connMu.Lock()
	if m.conn != nil {
		m.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.conn.Close()
	}
	m.connMu.Unlock()

	m.wg.Wait()

	m.subsMu.Lock()
	for s := range m.subs {
		close(s.ch)
		delete(m.subs, s)
	}
	m.subsMu.Unlock()

	return nil
}

// readLoop reads messages from the websocket and fans decoded events out.
func (m *Multiplexer) readLoop() {
	defer m.wg.Done()

	reconnectDelay := m.config.ReconnectDelay

	for !m.closed.Load() {
		m.connMu.Lock()
		conn := m.conn
		m.connMu.Unlock()

		if conn == nil {
			select {
			case <-m.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(m.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if m.closed.Load() {
				return
			}

			// Connection error - attempt reconnect with exponential backoff
			if !m.reconnecting.Swap(true) {
				go m.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > m.config.MaxReconnectDelay {
				reconnectDelay = m.config.MaxReconnectDelay
			}

			select {
			case <-m.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = m.config.ReconnectDelay

		m.lastMsgMs.Store(time.Now().UnixMilli())
		m.handleMessage(message)
	}
}

// handleMessage decodes one payload and publishes it to subscribers.
func (m *Multiplexer) handleMessage(message []byte) {
	ev, err := DecodeEvent(message)
	if err != nil {
		m.malformed.Add(1)
		if m.metrics != nil {
			m.metrics.FeedEventsMalformed.Inc()
		}
		m.logger.Printf("skipping malformed event: %v", err)
		return
	}
	if ev == nil {
		return // acknowledgement frame
	}

	if m.metrics != nil {
		m.metrics.FeedEventsReceived.WithLabelValues(string(ev.Type)).Inc()
	}

	m.publish(*ev)
}

// publish delivers an event to every subscriber queue.
func (m *Multiplexer) publish(ev domain.FeedEvent) {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()

	for s := range m.subs {
		before := s.drops.Load()
		s.deliver(ev)
		if m.metrics != nil {
			if d := s.drops.Load() - before; d > 0 {
				m.metrics.FeedEventsDropped.WithLabelValues(s.name).Add(float64(d))
			}
		}
	}
}

// reconnect attempts to reconnect and replay upstream subscriptions.
func (m *Multiplexer) reconnect(delay time.Duration) {
	defer m.reconnecting.Store(false)

	if m.closed.Load() {
		return
	}

	// Wait before reconnecting
	select {
	case <-m.done:
		return
	case <-time.After(delay):
	}

	// Close existing connection
	m.connMu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := m.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}

	if m.metrics != nil {
		m.metrics.FeedReconnects.Inc()
	}
	m.logger.Printf("reconnected to %s", m.endpoint)

	m.resubscribeAll()
}

// resubscribeAll replays the new-token subscription and all watched
// trade keys after a reconnect.
func (m *Multiplexer) resubscribeAll() {
	if err := m.writeJSON(subscribeRequest{Method: methodSubscribeNewToken}); err != nil {
		m.logger.Printf("resubscribe new tokens failed: %v", err)
		return
	}

	m.watchedMu.Lock()
	keys := make([]string, 0, len(m.watched))
	for mint := range m.watched {
		keys = append(keys, mint)
	}
	m.watchedMu.Unlock()

	if len(keys) == 0 {
		return
	}
	if err := m.writeJSON(subscribeRequest{Method: methodSubscribeTokenTrade, Keys: keys}); err != nil {
		m.logger.Printf("resubscribe token trades failed: %v", err)
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (m *Multiplexer) pingLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.connMu.Lock()
			if m.conn != nil {
				m.conn.SetWriteDeadline(time.Now().Add(m.config.WriteTimeout))
				if err := m.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			m.connMu.Unlock()
		}
	}
}
