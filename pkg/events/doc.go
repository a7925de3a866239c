/*
Package events provides an in-memory, non-blocking event broker used to
carry session/packing notifications from the core to the UI layer without
a process-wide singleton.

# Architecture

	Publisher (Session Manager) → eventCh (buffer 100) → broadcast loop → per-subscriber channel (buffer 50)

A Broker is a constructor argument, not a package-level variable: the
Session Manager owns one Broker per process and the UI layer calls
Subscribe to drain it, rather than reaching for an ambient observer bus.

# Event catalog

	session_started(session_id)
	session_ended(session_id)
	heartbeat_failed()
	item_packed(order_number, sku, packed, required)
	order_completed(order_number)
	error_occurred(kind, message)

A slow or absent subscriber never blocks publication: broadcast drops the
event for that subscriber only, under a select with a default case.
*/
package events
