// Package snapshot holds the published, read-only view of the synchronized data.
//
// A Snapshot is built completely by a sync and then swapped in with a single atomic
// pointer store. Readers that obtained a snapshot keep a consistent view even while
// the next one is published.
package snapshot
