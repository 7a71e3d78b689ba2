// Package stats keeps aggregated approval outcome counters that are updated
// with signed deltas and read back as consistent snapshots.
package stats
