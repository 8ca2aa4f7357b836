package websocket

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mselser95/execution-harness/pkg/types"
	"go.uber.org/zap"
)

// Config holds WebSocket dialer configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	WriteTimeout          time.Duration
	EventBufferSize       int
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	ReconnectMaxAttempts  int
	Logger                *zap.Logger
}

// Dialer opens push channels against the execution service.
// Every order gets its own connection.
type Dialer struct {
	config Config
	logger *zap.Logger
	dialer *websocket.Dialer
}

// NewDialer creates a new Dialer.
func NewDialer(cfg Config) *Dialer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Dialer{
		config: cfg,
		logger: cfg.Logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
		},
	}
}

// Open dials a connection, registers orderID on it and starts streaming events.
// The caller owns the returned channel and must Close it.
func (d *Dialer) Open(ctx context.Context, orderID string) (*OrderChannel, error) {
	conn, err := d.dial(ctx)
	if err != nil {
		ChannelOpensTotal.WithLabelValues("dial_error").Inc()
		return nil, &types.ChannelError{OrderID: orderID, Op: "dial", Err: err}
	}

	ch := newOrderChannel(orderID, conn, d.config)

	err = ch.register()
	if err != nil {
		conn.Close()
		ChannelOpensTotal.WithLabelValues("register_error").Inc()
		return nil, err
	}

	ch.start()
	ChannelOpensTotal.WithLabelValues("success").Inc()

	d.logger.Debug("channel-registered", zap.String("order-id", orderID))

	return ch, nil
}

// Probe opens a bare connection, holds it for hold and closes it cleanly.
func (d *Dialer) Probe(ctx context.Context, hold time.Duration) error {
	conn, err := d.dial(ctx)
	if err != nil {
		ProbesTotal.WithLabelValues("dial_error").Inc()
		return &types.ChannelError{Op: "dial", Err: err}
	}

	err = holdAndClose(ctx, conn, hold)
	if err != nil {
		ProbesTotal.WithLabelValues("close_error").Inc()
		return err
	}

	ProbesTotal.WithLabelValues("success").Inc()
	return nil
}

// Reconnect opens and closes one connection, then establishes a fresh one through
// the reconnect manager, holds it for hold and closes it.
func (d *Dialer) Reconnect(ctx context.Context, hold time.Duration) error {
	conn, err := d.dial(ctx)
	if err != nil {
		return &types.ChannelError{Op: "dial", Err: err}
	}

	err = holdAndClose(ctx, conn, 0)
	if err != nil {
		return err
	}

	d.logger.Debug("initial-connection-closed")

	rm := NewReconnectManager(ReconnectConfig{
		InitialDelay:      d.config.ReconnectInitialDelay,
		MaxDelay:          d.config.ReconnectMaxDelay,
		BackoffMultiplier: d.config.ReconnectBackoffMult,
		JitterPercent:     0.2,
		MaxAttempts:       d.config.ReconnectMaxAttempts,
	}, d.logger)

	err = rm.Reconnect(ctx, func(ctx context.Context) error {
		conn, err := d.dial(ctx)
		if err != nil {
			return err
		}
		return holdAndClose(ctx, conn, hold)
	})
	if err != nil {
		return &types.ChannelError{Op: "reconnect", Err: err}
	}

	return nil
}

func (d *Dialer) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.config.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.config.URL, err)
	}

	return conn, nil
}

func holdAndClose(ctx context.Context, conn *websocket.Conn, hold time.Duration) error {
	if hold > 0 {
		timer := time.NewTimer(hold)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))

	err := conn.Close()
	if err != nil {
		return &types.ChannelError{Op: "close", Err: err}
	}

	return nil
}
