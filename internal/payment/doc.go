// Package payment models the lifecycle of one paywall session as a strict
// finite-state machine. The machine holds no I/O of its own: an
// orchestrating caller drives transitions, and registered observers are
// notified synchronously after each one.
package payment
