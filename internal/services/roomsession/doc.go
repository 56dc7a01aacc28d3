// Package roomsession implements the client side of one user's membership in
// one realtime chat room.
//
// The session joins and leaves rooms over a shared socket transport, keeps an
// ordered timeline that merges optimistic sends with server-confirmed
// messages, and tracks the room roster and presence. REST history and room
// detail are fetched on every successful join and treated as authoritative.
package roomsession
