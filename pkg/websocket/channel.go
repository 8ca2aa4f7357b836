package websocket

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/execution-harness/pkg/types"
	"go.uber.org/zap"
)

// ChannelState is the lifecycle state of an OrderChannel.
type ChannelState int32

// Channel states. Transitions only move forward: connecting -> registered -> terminal,
// and any state -> closed.
const (
	StateConnecting ChannelState = iota
	StateRegistered
	StateTerminal
	StateClosed
)

func (s ChannelState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRegistered:
		return "registered"
	case StateTerminal:
		return "terminal"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const previewLimit = 100

// OrderChannel is the push channel registered for a single order id.
// Events are delivered in arrival order on Events(), which is closed when the stream ends.
type OrderChannel struct {
	orderID      string
	conn         *websocket.Conn
	logger       *zap.Logger
	writeTimeout time.Duration
	events       chan types.StatusEvent
	state        atomic.Int32
	openedAt     time.Time

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
	done      chan struct{}
	readDone  chan struct{}
}

func newOrderChannel(orderID string, conn *websocket.Conn, cfg Config) *OrderChannel {
	return &OrderChannel{
		orderID:      orderID,
		conn:         conn,
		logger:       cfg.Logger,
		writeTimeout: cfg.WriteTimeout,
		events:       make(chan types.StatusEvent, cfg.EventBufferSize),
		openedAt:     time.Now(),
		done:         make(chan struct{}),
		readDone:     make(chan struct{}),
	}
}

// OrderID returns the id this channel is registered for.
func (c *OrderChannel) OrderID() string {
	return c.orderID
}

// State returns the current channel state.
func (c *OrderChannel) State() ChannelState {
	return ChannelState(c.state.Load())
}

// Events returns the stream of decoded status events.
func (c *OrderChannel) Events() <-chan types.StatusEvent {
	return c.events
}

// Err returns the connection failure that ended the stream. It stays nil while the
// stream is live, after a terminal event and when the caller closed the channel.
func (c *OrderChannel) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	return c.err
}

// register sends the bare order id as the single registration frame.
func (c *OrderChannel) register() error {
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}

	err := c.conn.WriteMessage(websocket.TextMessage, []byte(c.orderID))
	if err != nil {
		return &types.ChannelError{OrderID: c.orderID, Op: "register", Err: err}
	}

	_ = c.conn.SetWriteDeadline(time.Time{})
	c.state.CompareAndSwap(int32(StateConnecting), int32(StateRegistered))

	return nil
}

// start launches the read loop.
func (c *OrderChannel) start() {
	ActiveChannels.Inc()
	go c.readLoop()
}

func (c *OrderChannel) readLoop() {
	defer close(c.readDone)
	defer close(c.events)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if c.State() == StateClosed {
				return
			}

			c.fail(err)
			return
		}

		var event types.StatusEvent
		err = json.Unmarshal(message, &event)
		if err != nil {
			c.logger.Warn("malformed-frame",
				zap.String("order-id", c.orderID),
				zap.Int("bytes", len(message)),
				zap.String("preview", preview(message)),
				zap.Error(err))
			FramesDroppedTotal.WithLabelValues("malformed").Inc()
			continue
		}

		if event.Status == "" {
			c.logger.Debug("frame-without-status",
				zap.String("order-id", c.orderID),
				zap.String("preview", preview(message)))
			FramesDroppedTotal.WithLabelValues("missing_status").Inc()
			continue
		}

		event.ReceivedAt = time.Now()
		EventsReceivedTotal.WithLabelValues(statusLabel(event.Status)).Inc()

		select {
		case c.events <- event:
		case <-c.done:
			return
		}

		if event.OrderID == c.orderID && event.Status.IsTerminal() {
			c.state.CompareAndSwap(int32(StateRegistered), int32(StateTerminal))
			c.logger.Debug("channel-terminal",
				zap.String("order-id", c.orderID),
				zap.String("status", string(event.Status)))
			return
		}
	}
}

func (c *OrderChannel) fail(err error) {
	chErr := &types.ChannelError{OrderID: c.orderID, Op: "read", Err: err}

	c.errMu.Lock()
	c.err = chErr
	c.errMu.Unlock()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("channel-closed-by-server", zap.String("order-id", c.orderID))
		return
	}

	c.logger.Warn("channel-read-error", zap.String("order-id", c.orderID), zap.Error(err))
}

// Close releases the connection. It is safe to call more than once and from any
// goroutine; a receive pending on Events() is unblocked.
func (c *OrderChannel) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)

		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))

		err := c.conn.Close()
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			closeErr = &types.ChannelError{OrderID: c.orderID, Op: "close", Err: err}
		}

		<-c.readDone

		ActiveChannels.Dec()
		ChannelDuration.Observe(time.Since(c.openedAt).Seconds())

		c.logger.Debug("channel-closed", zap.String("order-id", c.orderID))
	})

	return closeErr
}

func statusLabel(s types.Status) string {
	if !s.Valid() {
		return "unknown"
	}
	return string(s)
}

func preview(message []byte) string {
	if len(message) > previewLimit {
		return string(message[:previewLimit])
	}
	return string(message)
}
