// Package ws implements the server side of the WebSocket protocol (RFC 6455)
// directly on hijacked TCP connections: the opening handshake, single-frame
// text/close/ping/pong encoding and decoding, a per-connection state machine,
// and a process-wide registry with path-scoped broadcast.
//
// # Handshake
//
// Upgrader.Accept performs the opening handshake on an already-hijacked
// connection. The accept key is derived per RFC 6455 §4.2.2: the client's
// Sec-WebSocket-Key concatenated with the protocol GUID, hashed with SHA-1
// and base64-encoded. Requests without a key, or with a disallowed origin,
// are rejected with a raw HTTP status line and the socket is closed.
//
// # Frames
//
// Only single, unfragmented frames are produced and consumed. Outbound
// server frames are never masked; inbound client frames are unmasked with
// the 4-byte XOR key from the header. Payload lengths use the 7-bit short
// form, the 16-bit extended form (marker 126), or the 64-bit extended form
// (marker 127). Malformed or oversized inbound frames are consumed from the
// stream and dropped without tearing down the connection.
//
// # Lifecycle
//
// A connection moves through three states:
//
//	Open ──▶ Closing ──▶ Closed
//
// Either side may initiate the close. On a peer-initiated close the close
// frame is echoed back; on a server-initiated close the connection waits a
// grace period for the peer's echo before the socket is torn down. Close
// callbacks run exactly once, after the connection has been removed from
// the registry, and are isolated with recover so a misbehaving callback
// cannot prevent cleanup.
//
// # Broadcast
//
//	n := reg.Broadcast("/chat", `{"type":"notice"}`, offender.ID())
//
// Broadcast delivers a text message to every open connection whose upgrade
// path equals the given path ("*" addresses all connections), skipping the
// listed connection ids, and reports how many sends succeeded. Individual
// send failures are logged and do not abort the sweep.
package ws
