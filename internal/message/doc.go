// Package message defines the log entry model shared by the session engine,
// the buffer trimmer and the CLI.
//
// Ownership boundary:
// - entry shape, kinds and method labels
// - JSON export/import of a log
// - read-only views: linked-entry lookup, quick filter, expression filter
//
// Appending, correlating and trimming entries live in session, correlate and
// buffer respectively.
package message
