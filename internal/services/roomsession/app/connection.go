package app

// ConnectionState tracks whether the shared transport is usable.
//
// It never retries; redialing belongs to the transport. OnConnect and
// OnDisconnect report whether the call was an actual transition so callers
// can react exactly once.
type ConnectionState struct {
	connected bool
}

// OnConnect marks the transport usable and reports whether it was down.
func (c *ConnectionState) OnConnect() bool {
	if c.connected {
		return false
	}
	c.connected = true
	return true
}

// OnDisconnect marks the transport unusable and reports whether it was up.
func (c *ConnectionState) OnDisconnect() bool {
	if !c.connected {
		return false
	}
	c.connected = false
	return true
}

// IsConnected reports whether sends and joins can be emitted now.
func (c *ConnectionState) IsConnected() bool {
	return c.connected
}
