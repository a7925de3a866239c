// Package lockmgr implements the file-backed mutual-exclusion protocol
// that coordinates packing-list slots across hosts with no central
// coordinator. A lock is a single `.session.lock` artifact inside the
// slot's work directory; its presence means some host believes it owns
// the directory.
//
// Every operation that reads-then-writes the artifact takes a short-lived
// OS advisory lock on a sentinel file in the same directory first
// (pkg/fsutil.LockDir), holds it across the read, the decision, and the
// atomic-publish rename, and releases it before returning — this is what
// guarantees at most one Ok outcome observable by any peer for a given
// acquire race, without a central coordinator: the OS flock linearizes
// concurrent acquirers on the same host's view of the shared filesystem,
// and the acquire/read/write sequence inside that critical section never
// straddles a second network round trip.
package lockmgr
