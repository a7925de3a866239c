// Package log provides structured logging for the packhouse coordinator
// using zerolog. A package-level Logger is configured once via Init and
// every component derives a child logger tagged with its own context
// (WithComponent, WithHost, WithSlot, WithWorker) rather than passing a
// logger instance through every constructor.
package log
