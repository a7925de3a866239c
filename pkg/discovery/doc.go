// Package discovery implements Session Discovery: a read-only filesystem
// scanner that classifies every candidate slot on the share from raw
// evidence alone — no package here ever writes to the shared filesystem.
//
// The scan walks sessions_root/CLIENT_X/*/ the way
// other_examples/f75d82e7_grovetools-core__pkg-sessions-discovery.go.go
// walks its hooks/sessions directory: read directory entries, classify
// each by the files present, emit one flat record per unit — never
// collapsing multiple slots inside one session directory down to a single
// record.
//
// Cache is a host-local BoltDB-backed scan cache: it exists purely to
// avoid re-walking a large share on every poll and must never be treated
// as a second source of truth. It is keyed by client id, session id and
// list name, and an entry counts as expired once it is older than the
// cache's TTL; nothing inspects file modification times.
package discovery
