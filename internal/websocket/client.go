package websocket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is one subscriber to reminder events. Subscribers only listen;
// anything they send closes the connection.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	remote string
	logger *slog.Logger
}

// NewClient creates a Client tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn, remote string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		remote: remote,
		logger: logger,
	}
}

// Run registers the client and forwards hub events until the peer goes
// away or ctx ends.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// CloseRead discards incoming frames and cancels ctx when the peer
	// closes or sends a data message.
	ctx = c.conn.CloseRead(ctx)

	c.logger.Debug("subscriber connected", "remote", c.remote, "subscribers", c.hub.ClientCount())
	err := c.forward(ctx)
	c.logger.Debug("subscriber disconnected", "remote", c.remote, "reason", closeReason(err))
}

func (c *Client) forward(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.Close(ws.StatusGoingAway, "unsubscribed")
				return nil
			}
			if err := c.write(ctx, msg); err != nil {
				return err
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, msg)
}

func closeReason(err error) string {
	switch {
	case err == nil:
		return "closed"
	case errors.Is(err, context.Canceled):
		return "peer closed"
	case errors.Is(err, context.DeadlineExceeded):
		return "write timeout"
	default:
		if s := ws.CloseStatus(err); s != -1 {
			return s.String()
		}
		return err.Error()
	}
}
