package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/oauth2"

	"github.com/quizdesk/quizctl/internal/tokenfile"
)

// FileStore is a MemoryStore that writes through to a session file. The
// file is rewritten atomically on every change and removed on logout.
type FileStore struct {
	*MemoryStore

	path   string
	logger *slog.Logger

	// mu serializes file writes and reloads. written identifies the file
	// contents this process last wrote or loaded ("" when absent), so the
	// watcher can tell its own writes from another process's.
	mu      sync.Mutex
	written string
}

// OpenFileStore loads the session file at path, if any, and returns a store
// persisting to it. A missing file yields an anonymous session.
func OpenFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fs := &FileStore{
		MemoryStore: NewMemoryStore(),
		path:        path,
		logger:      logger,
	}

	if err := fs.reload(); err != nil {
		return nil, err
	}

	fs.onChange = fs.persist

	return fs, nil
}

// Path returns the session file path.
func (f *FileStore) Path() string {
	return f.path
}

// reload replaces the in-memory session with the file contents. Contents
// this process wrote itself are skipped: the in-memory session is already
// at least as new.
func (f *FileStore) reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tf, err := tokenfile.Load(f.path)
	if err != nil {
		return fmt.Errorf("session: loading %s: %w", f.path, err)
	}

	if tf == nil {
		if f.written == "" {
			return nil
		}

		f.written = ""

		prev := f.State()
		if prev == StateAuthenticated || prev == StateExpired {
			f.restore(Snapshot{State: StateLoggedOut})
		}

		return nil
	}

	tokens := TokenPair{
		AccessToken:  tf.Token.AccessToken,
		RefreshToken: tf.Token.RefreshToken,
	}

	key := writtenKey(tokens)
	if key == f.written {
		return nil
	}

	f.written = key
	f.restore(Snapshot{
		State:    StateAuthenticated,
		Identity: identityFromMap(tf.Identity),
		Tokens:   tokens,
	})

	return nil
}

func writtenKey(t TokenPair) string {
	return t.AccessToken + "\x00" + t.RefreshToken
}

// persist writes the current session to disk. Concurrent changes may invoke
// it out of order, so it always writes the latest snapshot rather than the
// one it was called with. Store methods cannot return errors, so failures
// are logged and the in-memory session stays authoritative.
func (f *FileStore) persist(Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.Snapshot()

	if s.State == StateLoggedOut || s.State == StateAnonymous {
		if err := tokenfile.Remove(f.path); err != nil {
			f.logger.Warn("failed to remove session file",
				slog.String("path", f.path),
				slog.String("error", err.Error()),
			)

			return
		}

		f.written = ""

		return
	}

	tok := &oauth2.Token{
		AccessToken:  s.Tokens.AccessToken,
		RefreshToken: s.Tokens.RefreshToken,
		TokenType:    "Bearer",
	}

	if exp, ok := TokenExpiry(s.Tokens.AccessToken); ok {
		tok.Expiry = exp
	}

	if err := tokenfile.Save(f.path, tok, identityToMap(s.Identity)); err != nil {
		f.logger.Warn("failed to persist session",
			slog.String("path", f.path),
			slog.String("error", err.Error()),
		)

		return
	}

	f.written = writtenKey(s.Tokens)

	f.logger.Debug("persisted session", slog.String("path", f.path), slog.String("state", s.State.String()))
}

// Watch reloads the session whenever another process rewrites or removes the
// session file, for example a concurrent `logout`. It blocks until ctx is
// canceled. The parent directory is watched because atomic saves replace the
// file by rename.
func (f *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("session: creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, tokenfile.DirPerms); err != nil {
		return fmt.Errorf("session: creating directory %s: %w", dir, err)
	}

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("session: watching %s: %w", dir, err)
	}

	name := filepath.Base(f.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Base(ev.Name) != name {
				continue
			}

			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}

			if err := f.reload(); err != nil {
				f.logger.Warn("session reload failed", slog.String("error", err.Error()))
				continue
			}

			f.logger.Debug("session reloaded after external change",
				slog.String("op", ev.Op.String()),
				slog.String("state", f.State().String()),
			)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			f.logger.Warn("session watcher error", slog.String("error", werr.Error()))
		}
	}
}
