// Package rpcserver is a minimal JSON-RPC 2.0 websocket server. It answers
// ping and echo, reports unknown methods and malformed frames with the
// standard error codes, and pushes a periodic stream.heartbeat
// notification. The rpcscope serve command and the transport tests run it.
package rpcserver
