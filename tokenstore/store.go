// Package tokenstore owns the persisted access/refresh token pair. The pair is
// the only cross-component shared mutable state in the client: every consumer
// re-reads it through a Store immediately before use and never caches it beyond
// a single operation, so rotation by a concurrent caller (or another process
// sharing the same credential file) is always observed.
package tokenstore

// TokenPair holds the two opaque credential strings issued by the auth
// endpoints. Both halves are always written and cleared together; a partially
// present pair is treated as no pair at all.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Valid reports whether both halves are present.
func (p TokenPair) Valid() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// Change is delivered on Store.Changes when the persisted pair is mutated by
// someone other than this process. Pair is nil when the pair was cleared.
type Change struct {
	Pair *TokenPair
}

// Store is the single owner of the persisted token pair.
type Store interface {
	// Tokens returns the current pair, or nil when no complete pair is
	// persisted. A partial write reads as absent.
	Tokens() (*TokenPair, error)
	// Save persists both halves, overwriting any prior pair. The write is
	// all-or-nothing: no reader can ever observe one half without the other.
	Save(pair TokenPair) error
	// Clear removes both halves.
	Clear() error
	// Changes is an inbound stream of external mutations. The store's own
	// Save/Clear calls are not echoed back on it.
	Changes() <-chan Change
	// Close releases the store's resources and closes the Changes channel.
	Close() error
}
