package storefake

import (
	"sync"

	"github.com/jrsteele09/go-arena-client/tokenstore"
)

var _ tokenstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory Store for tests. MutateExternally simulates another
// process rewriting the credential file: it replaces the held pair and emits a
// Change, which the store's own Save/Clear never do.
type FakeStore struct {
	mu      sync.Mutex
	pair    *tokenstore.TokenPair
	changes chan tokenstore.Change
	closed  bool

	SaveErr  error // returned by Save when set
	ClearErr error // returned by Clear when set
}

func NewFakeStore() *FakeStore {
	return &FakeStore{changes: make(chan tokenstore.Change, 8)}
}

func (f *FakeStore) Tokens() (*tokenstore.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pair == nil || !f.pair.Valid() {
		return nil, nil
	}
	p := *f.pair
	return &p, nil
}

func (f *FakeStore) Save(pair tokenstore.TokenPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveErr != nil {
		return f.SaveErr
	}
	p := pair
	f.pair = &p
	return nil
}

func (f *FakeStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ClearErr != nil {
		return f.ClearErr
	}
	f.pair = nil
	return nil
}

func (f *FakeStore) Changes() <-chan tokenstore.Change { return f.changes }

func (f *FakeStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.changes)
	}
	return nil
}

// MutateExternally overwrites the stored pair as another process would and
// delivers the corresponding Change event. Pass nil to simulate a clear.
func (f *FakeStore) MutateExternally(pair *tokenstore.TokenPair) {
	f.mu.Lock()
	if pair == nil {
		f.pair = nil
	} else {
		p := *pair
		f.pair = &p
	}
	f.mu.Unlock()
	f.changes <- tokenstore.Change{Pair: pair}
}

// SetPair seeds the store without emitting a Change.
func (f *FakeStore) SetPair(pair *tokenstore.TokenPair) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pair == nil {
		f.pair = nil
		return
	}
	p := *pair
	f.pair = &p
}
