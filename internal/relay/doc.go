// Package relay owns the single multiplexed websocket connection to a relay
// server.
//
// The transport speaks the minimal wire subset bitcaptcha needs: it can
// publish a signed event, open and close subscriptions, and deliver parsed
// inbound frames (EVENT, EOSE, OK, NOTICE) to one registered handler. It
// never interprets filters or event content; all decoding and correlation is
// the caller's responsibility.
//
// Connect is reentrant: a call while a dial is outstanding joins the
// in-flight attempt instead of opening a duplicate connection. On teardown
// every component layered above must treat its outstanding subscriptions and
// requests as invalid; the transport signals this through OnDisconnect.
package relay
