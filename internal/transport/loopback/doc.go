// Package loopback provides an offline session.Transport that behaves like a
// remote JSON-RPC peer: delayed open, randomized replies, occasional internal
// errors and a notification stream. StartTraffic drives a session with
// synthetic requests so the rest of the tooling can run without a server.
package loopback
