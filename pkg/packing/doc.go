// Package packing implements the Packing State Engine: the only component
// that mutates a slot's PackingState. One Engine serves one slot, one
// operator, one host at a time — it performs no locking of its own, since
// the Session Manager already holds the slot's lock for the whole lifetime
// of an Engine.
//
// The constructor contract matters more than it looks: NewEngine must
// initialize every in-memory field to an empty default before it attempts
// to load a persisted state file, never after. Reversing that order has
// historically destroyed multi-day completed_orders_metadata when a later
// zero-value assignment clobbered the just-loaded data. NewEngine therefore
// reads the state file over the defaults as its last overwriting step; the
// only code after it gives an empty collection to any field the file stores
// as null.
package packing
