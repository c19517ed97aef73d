// Package jsonrpc owns the JSON-RPC 2.0 value model and wire shapes.
//
// Ownership boundary:
// - decoding frames into the closed JSON value set (Decode, KindOf)
// - id/field accessors shared by correlation and filtering
// - outgoing request and batch encoding
// - structural validation of requests, responses and batches
package jsonrpc
