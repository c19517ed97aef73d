// Package buffer bounds the message log.
//
// Trimming is two-pass: the oldest non-preferred entries go first, then, if
// the excess is made only of preferred entries, the front of the log is
// dropped in fixed chunks until the limit holds.
package buffer
