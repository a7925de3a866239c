// Package session implements the Session Manager: the component that
// binds one operator on one host to one packing-list slot. It is the sole
// owner of the work-directory contract (every slot path is resolved
// through profile.Paths, never built ad hoc by a caller) and the only
// place that schedules heartbeats against a held lock.
//
// A Manager is constructed once per host process, assembled at startup
// from its collaborators — *profile.Service, *lockmgr.Manager,
// *events.Broker, and *stats.Aggregator — with no central coordinator
// standing between hosts.
package session
