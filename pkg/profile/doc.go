// Package profile is the Profile & Path Service: a pure resolver over the
// shared filesystem root, plus a short-TTL cache for the small per-client
// profile blob (display name, required-column mapping, SKU alias table).
// Cache entries expire after a TTL measured by an injectable Clock, so
// tests never sleep for real; InvalidateClientProfile (also called by
// SaveClientProfile) drops an entry before its TTL runs out.
package profile
