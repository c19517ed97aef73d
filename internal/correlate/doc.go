// Package correlate pairs incoming JSON-RPC frames with the requests and
// batches a session has in flight.
//
// Ownership boundary:
// - pending request/batch bookkeeping
// - batch match modes
// - classification of received frames into log entries
//
// The package holds no clock and no log; callers pass the current time and
// apply the returned Resolution to their own log.
package correlate
