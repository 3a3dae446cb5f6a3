package wsclient

import (
	"time"

	"github.com/sphinx-core/wsauth/internal/wslog"
	"github.com/sphinx-core/wsauth/internal/wsproto"
)

// scheduleReconnect waits out the linear backoff delay for the next
// attempt and retries, stopping once MaxReconnectAttempts is reached
// or Disconnect has been called in the meantime. Each failed attempt
// re-schedules itself; this function therefore returns as soon as one
// attempt has either succeeded or been handed off to the next wait.
func (c *Client) scheduleReconnect() {
	if !c.shouldReconnect.Load() {
		return
	}

	attempt := int(c.reconnectAttempts.Add(1))
	if attempt > c.cfg.MaxReconnectAttempts {
		c.fireError(wsproto.ErrReconnectExhausted)
		c.shouldReconnect.Store(false)
		return
	}

	delay := c.cfg.ReconnectDelay * time.Duration(attempt)
	c.fireReconnecting(attempt, delay)
	c.metrics.ReconnectAttempts.Inc()

	time.Sleep(delay)

	if !c.shouldReconnect.Load() {
		return
	}

	if err := c.connectOnce(); err != nil {
		wslog.Warnf("wsclient: reconnect attempt %d failed: %v", attempt, err)
		c.fireError(err)
		go c.scheduleReconnect()
	}
}
