package nwc

import (
	"net/url"
	"strings"

	"github.com/deekay/bitcaptcha/internal/crypto"
	"github.com/deekay/bitcaptcha/internal/domain"
)

// Scheme is the canonical connection string scheme.
const Scheme = "nostr+walletconnect://"

// legacyScheme is accepted for compatibility with older wallet exports.
const legacyScheme = "nostrwalletconnect://"

// ConnectionParams is the parsed form of a wallet connection string.
// Immutable for the life of one client instance.
type ConnectionParams struct {
	// WalletPubKey identifies the remote wallet service.
	WalletPubKey domain.PublicKey
	// RelayURL is the websocket address both sides meet on.
	RelayURL string
	// Secret is our side's key for the conversation.
	Secret domain.SecretKey
}

// ParseConnectionString parses
//
//	nostr+walletconnect://<64-hex pubkey>?relay=<ws url>&secret=<64-hex>
//
// Hex fields are case-insensitive and normalized to lowercase. Each missing
// component produces its own distinct error.
func ParseConnectionString(s string) (ConnectionParams, error) {
	var p ConnectionParams

	rest := ""
	switch {
	case strings.HasPrefix(s, Scheme):
		rest = strings.TrimPrefix(s, Scheme)
	case strings.HasPrefix(s, legacyScheme):
		rest = strings.TrimPrefix(s, legacyScheme)
	default:
		return p, domain.E(domain.ErrConnectionString, "missing nostr+walletconnect:// scheme")
	}

	rawKey, rawQuery, _ := strings.Cut(rest, "?")
	if rawKey == "" {
		return p, domain.E(domain.ErrConnectionString, "missing wallet pubkey")
	}
	pub, err := crypto.ParsePublicKey(rawKey)
	if err != nil {
		return p, domain.Wrap(domain.ErrConnectionString, "wallet pubkey must be 64 hex chars", err)
	}
	p.WalletPubKey = pub

	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return p, domain.Wrap(domain.ErrConnectionString, "malformed query", err)
	}

	relayURL := q.Get("relay")
	if relayURL == "" {
		return p, domain.E(domain.ErrConnectionString, "missing relay parameter")
	}
	u, err := url.Parse(relayURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return p, domain.E(domain.ErrConnectionString, "relay must be a ws:// or wss:// URL")
	}
	p.RelayURL = relayURL

	secret := q.Get("secret")
	if secret == "" {
		return p, domain.E(domain.ErrConnectionString, "missing secret parameter")
	}
	sec, err := crypto.ParseSecretKey(secret)
	if err != nil {
		return p, domain.Wrap(domain.ErrConnectionString, "secret must be 64 hex chars", err)
	}
	p.Secret = sec

	return p, nil
}
