package domain

// ReceiptStore persists verification tokens keyed by payment hash so a
// settled payment survives restarts.
type ReceiptStore interface {
	SaveReceipt(tok VerificationToken) error
	LoadReceipt(paymentHash string) (VerificationToken, bool, error)
	ListReceipts() ([]VerificationToken, error)
}

// CredentialStore persists the wallet connection string encrypted at rest.
type CredentialStore interface {
	SaveConnection(passphrase, uri string) error
	LoadConnection(passphrase string) (string, error)
}
