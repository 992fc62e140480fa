// Package store provides file-based persistence for payment receipts and
// wallet connection credentials.
//
// Receipts are serialised as JSON on disk; the connection string, which
// embeds a secret key, is sealed under a passphrase-derived key before it
// touches disk. All stores are concurrency-safe via internal locking and
// typically live under the user's configured home directory.
package store
