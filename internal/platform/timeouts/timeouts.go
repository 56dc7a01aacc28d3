// Package timeouts defines shared timeout constants used across roomsync.
package timeouts

import "time"

// WSDial caps the wait time when opening the realtime socket.
const WSDial = 5 * time.Second

// WSWrite caps a single frame write on the realtime socket.
const WSWrite = 5 * time.Second

// HTTPRequest caps a single REST call against the chat backend.
const HTTPRequest = 10 * time.Second

// ReconnectInitial is the first delay before redialing a dropped socket.
const ReconnectInitial = 500 * time.Millisecond

// ReconnectMax bounds the delay between redial attempts.
const ReconnectMax = 30 * time.Second

// Shutdown limits how long exit paths wait for flushes and goroutines.
const Shutdown = 5 * time.Second
