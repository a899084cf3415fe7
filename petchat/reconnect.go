package petchat

import "time"

// timer is the part of *time.Timer the reconnection scheduler needs.
type timer interface {
	Stop() bool
}

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// scheduleReconnect arms the backoff timer for the next attempt. Once the
// attempt budget is spent it returns without arming anything and the status
// stays where the last failure left it.
//
// An error and a disconnect for the same failure each schedule an attempt;
// the later call replaces the armed timer, so only one is ever outstanding.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	rc := c.cfg.Reconnection.withDefaults()
	if c.attempts >= rc.MaxAttempts {
		attempts := c.attempts
		c.mu.Unlock()
		c.log().Warn("reconnection attempts exhausted", map[string]any{
			"attempt":      attempts,
			"max_attempts": rc.MaxAttempts,
		})
		return
	}
	c.attempts++
	attempt := c.attempts
	delay := rc.Delay(attempt)
	c.status = StatusReconnecting

	c.stopReconnectLocked()
	gen := c.reconnectGen
	c.reconnectTimer = c.afterFunc(delay, func() { c.fireReconnect(gen) })
	c.mu.Unlock()

	c.log().Info("scheduling reconnection", map[string]any{
		"attempt": attempt,
		"delay":   delay.String(),
	})
	c.dispatcher.emitStatus(StatusReconnecting)
}

// stopReconnectLocked cancels the armed timer and invalidates callbacks already in flight.
func (c *Client) stopReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.reconnectGen++
}

func (c *Client) fireReconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.reconnectGen {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	skip := c.userID == "" || c.token == "" || c.status == StatusConnected
	c.mu.Unlock()
	if skip {
		return
	}
	c.connect()
}
