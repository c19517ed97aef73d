// Package wsconn is the gorilla/websocket implementation of
// session.Transport. Dials run in the background and report through the
// session handlers. ws:// and wss:// are supported, with optional mutual TLS
// in the same shape as the rest of the tooling's transport security policy.
package wsconn
