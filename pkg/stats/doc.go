// Package stats implements the Stats Aggregator: appends one record per
// completed packing-list slot to a single shared JSON document, preserving
// per-list granularity even when several slots complete inside the same
// session — a single aggregate record with combined totals would discard
// exactly the per-list breakdown readers ask this package for.
//
// Like the Lock Manager, every read-modify-write against the stats file is
// wrapped in the sentinel-lock critical section from pkg/fsutil so
// concurrent hosts appending records from different completed slots never
// race each other's append.
package stats
