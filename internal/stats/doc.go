// Package stats derives read-only summaries from a message log. Nothing here
// is stored; every figure is recomputed from the entries passed in.
package stats
