package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

var _ Store = (*FileStore)(nil)

// FileStore persists the token pair as a JSON file in the user's data folder.
// Writes go through a temp file and rename so a concurrent reader never sees a
// torn pair. An fsnotify watcher on the parent directory turns writes and
// removals by other processes into Change events, which is how several client
// processes sharing one credential file keep their sessions in step.
type FileStore struct {
	path      string
	log       zerolog.Logger
	watcher   *fsnotify.Watcher
	changes   chan Change
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	lastSelf *TokenPair // last state this process wrote, used to drop self-echoes
}

// NewFileStore creates the parent directory if needed and starts the watcher.
func NewFileStore(path string, log zerolog.Logger) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("tokenstore: create dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("tokenstore: watcher: %w", err)
	}
	// Watch the directory, not the file: rename-based writes replace the inode
	// and a watch on the file itself would be lost after the first Save.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("tokenstore: watch %s: %w", dir, err)
	}

	fs := &FileStore{
		path:    path,
		log:     log,
		watcher: watcher,
		changes: make(chan Change, 8),
		done:    make(chan struct{}),
	}
	fs.mu.Lock()
	fs.lastSelf, _ = fs.read()
	fs.mu.Unlock()

	go fs.watch()
	return fs, nil
}

func (fs *FileStore) Tokens() (*TokenPair, error) {
	return fs.read()
}

func (fs *FileStore) Save(pair TokenPair) error {
	if !pair.Valid() {
		return errors.New("tokenstore: refusing to save a partial pair")
	}

	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("tokenstore: marshal: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("tokenstore: write: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("tokenstore: rename: %w", err)
	}
	p := pair
	fs.lastSelf = &p
	return nil
}

func (fs *FileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("tokenstore: remove: %w", err)
	}
	fs.lastSelf = nil
	return nil
}

func (fs *FileStore) Changes() <-chan Change { return fs.changes }

// Close stops the watcher. Safe to call more than once.
func (fs *FileStore) Close() error {
	var err error
	fs.closeOnce.Do(func() {
		close(fs.done)
		err = fs.watcher.Close()
	})
	return err
}

func (fs *FileStore) read() (*TokenPair, error) {
	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore: read: %w", err)
	}

	var pair TokenPair
	if err := json.Unmarshal(data, &pair); err != nil {
		// A corrupt file is indistinguishable from a half-finished write by a
		// crashed process: treat it as no session.
		return nil, nil
	}
	if !pair.Valid() {
		return nil, nil
	}
	return &pair, nil
}

func (fs *FileStore) watch() {
	defer close(fs.changes)
	for {
		select {
		case <-fs.done:
			return

		case event, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(fs.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if change, external := fs.classify(); external {
				select {
				case fs.changes <- change:
				case <-fs.done:
					return
				}
			}

		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			fs.log.Warn().Err(err).Msg("token file watcher error")
		}
	}
}

// classify re-reads the file and decides whether the event reflects an
// external mutation. Events caused by this process's own Save/Clear re-read to
// the same state recorded in lastSelf and are dropped.
func (fs *FileStore) classify() (Change, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	current, err := fs.read()
	if err != nil {
		fs.log.Warn().Err(err).Msg("token file unreadable after change event")
		return Change{}, false
	}
	if pairsEqual(current, fs.lastSelf) {
		return Change{}, false
	}
	fs.lastSelf = current
	return Change{Pair: current}, true
}

func pairsEqual(a, b *TokenPair) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
