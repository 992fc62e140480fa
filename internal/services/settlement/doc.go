// Package settlement decides whether a payment hash has settled, under
// unreliable and partial information from the wallet service.
//
// The reconciler polls on a strictly sequential schedule: each iteration
// fully resolves before the next is scheduled, so overlapping subscriptions
// never stack up against the relay. Every iteration tries a lookup by
// payment hash first, then falls back to scanning the recent transaction
// list; a wallet that fails the listing once has the capability marked
// unsupported for the rest of the session.
//
// Detection distinguishes two confidence levels. A proved settlement carries
// a preimage that hashes to the payment hash. A trusted settlement only has
// the wallet's assertion (a settlement timestamp or a settled status) and
// yields a token with an empty proof field, through a visibly separate
// constructor, so downstream consumers can tell the two apart.
package settlement
