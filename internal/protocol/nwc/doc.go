// Package nwc implements the wallet connect request/response protocol on top
// of the relay transport.
//
// Each request is encrypted under the conversation key, signed, and
// correlated against relay-delivered responses by the request's event
// identity. The client subscribes for the response first, waits for the
// relay's end-of-stored-events acknowledgment, and only then publishes the
// request: a fast wallet could otherwise answer before the relay has the
// filter installed, and the response would be dropped silently. That
// ordering is a correctness requirement, not an optimization.
//
// Multiple requests may be outstanding concurrently on the one connection;
// each is tracked by its own identity-derived subscription id, so responses
// cannot be cross-matched even when they arrive out of send order.
package nwc
