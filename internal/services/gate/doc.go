// Package gate orchestrates a single pay-to-proceed session: it asks the
// wallet for an invoice, hands it to the caller's UI, watches for
// settlement, and drives the payment state machine through the lifecycle.
// The UI layer talks to it only through Start, Retry, ConfirmPaid,
// SubmitProof and the state machine's observer feed.
package gate
