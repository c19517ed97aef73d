// Package session owns the client side of a JSON-RPC 2.0 session over a
// frame transport.
//
// Ownership boundary:
// - connection state machine and reconnect backoff
// - request/batch/notification sends and correlation of replies
// - the bounded message log and its buffer policy
// - the fast-ping loop
//
// Transports and time are injected (TransportFactory, Clock) so the whole
// machine can be driven deterministically.
package session
