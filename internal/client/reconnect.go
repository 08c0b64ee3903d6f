package client

import (
	"context"
	"time"

	"github.com/olaf-mesh/neighbourhood/internal/logger"
)

// Run keeps the client connected to its home server for the lifetime of
// ctx, reconnecting with backoff whenever the connection drops. It is
// the client-side analogue of the server's dial-and-announce startup
// behaviour (spec.md §4.2), generalised into a persistent loop since a
// client's home connection is expected to last the session.
func (c *Client) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	if err := c.Connect(ctx); err != nil {
		c.log.Warn("initial connect failed, will retry", logger.Error(err))
	} else {
		backoff = time.Second
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if c.Connected() {
				continue
			}
			c.log.Info("reconnecting to home server", logger.String("home_addr", c.homeAddr))
			if err := c.Connect(ctx); err != nil {
				c.log.Warn("reconnect failed", logger.Error(err), logger.Duration("backoff", backoff))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}
				if backoff < maxBackoff {
					backoff *= 2
				}
				continue
			}
			backoff = time.Second
		}
	}
}

// Connected reports whether the home server connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close tears down the home server connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.connected = false
	return err
}
