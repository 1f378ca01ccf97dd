package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/bassista/go_dbproxy/internal/logger"
	"github.com/bassista/go_dbproxy/internal/proxy"
)

// CacheStore defines the interface for cache operations needed by the watcher callback.
type CacheStore interface {
	GetLastUpdate() int64
	IsDirty() bool
	Snapshot() (DataDocument, error)
	Replace(doc DataDocument) error
}

// JSONRepository stores the document as a single JSON file. When the proxy
// has an encryption key the file holds the hex ciphertext instead of JSON.
type JSONRepository struct {
	path      string
	dir       string
	base      string
	proxy     *proxy.DatabaseProxy
	validator *validator.Validate
	logger    *logrus.Entry
	mu        sync.Mutex
	lastSaved int64 // metadata.lastUpdate of the last document this repository wrote
}

// NewJSONRepository creates a repository for the given JSON file path.
// It returns the repository interface to avoid leaking implementation details.
func NewJSONRepository(path string, p *proxy.DatabaseProxy) (Repository, error) {
	if path == "" {
		return nil, errors.New("data file path is required")
	}
	if p == nil {
		return nil, errors.New("proxy is required")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if dir == "" || dir == "." {
		dir = "."
	}

	return &JSONRepository{
		path:      path,
		dir:       dir,
		base:      base,
		proxy:     p,
		validator: validator.New(),
		logger:    logger.WithComponent("json-repo"),
	}, nil
}

// Proxy returns the proxy this repository delegates to.
func (r *JSONRepository) Proxy() *proxy.DatabaseProxy {
	return r.proxy
}

// Load reads, decrypts, parses and validates the file, then fires the
// proxy's fetch notification with the loaded document.
func (r *JSONRepository) Load(ctx context.Context) (*DataDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	doc, err := r.loadUnlocked()
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.proxy.NotifyAfterFetch(doc, nil)
	return doc, nil
}

// loadUnlocked reads the JSON file without acquiring the lock (caller must hold it).
func (r *JSONRepository) loadUnlocked() (*DataDocument, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}

	payload, err := r.decode(raw)
	if err != nil {
		return nil, err
	}

	var doc DataDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode data file: %w", err)
	}

	doc.ApplyDefaults()

	if r.validator != nil {
		if err := r.validator.Struct(&doc); err != nil {
			return nil, fmt.Errorf("validate data file: %w", err)
		}
	}

	return &doc, nil
}

// decode turns file contents into JSON bytes. A plaintext file found while
// a key is configured is accepted so existing data can be migrated; it is
// encrypted on the next save.
func (r *JSONRepository) decode(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if !r.proxy.Encrypted() {
		return trimmed, nil
	}
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		r.logger.Warn("data file is not encrypted; it will be encrypted on next save")
		return trimmed, nil
	}

	plain, err := r.proxy.Decrypt(string(trimmed))
	if err != nil {
		return nil, fmt.Errorf("decrypt data file: %w", err)
	}
	return []byte(plain), nil
}

// Save validates and writes the document atomically to disk, then fires the
// proxy's save notification.
func (r *JSONRepository) Save(ctx context.Context, doc *DataDocument) error {
	if doc == nil {
		return errors.New("document is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.validator != nil {
		if err := r.validator.Struct(doc); err != nil {
			return fmt.Errorf("validate before save: %w", err)
		}
	}

	r.mu.Lock()
	err := r.saveUnlocked(doc)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.proxy.NotifyAfterSave(nil)
	return nil
}

// saveUnlocked writes the document without acquiring the lock (caller must hold it).
func (r *JSONRepository) saveUnlocked(doc *DataDocument) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if r.proxy.Encrypted() {
		sealed, err := r.proxy.Encrypt(string(payload))
		if err != nil {
			return fmt.Errorf("encrypt data: %w", err)
		}
		payload = []byte(sealed)
	}

	tmpFile, err := os.CreateTemp(r.dir, r.base+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	if _, err := tmpFile.Write(payload); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpFile.Name(), r.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}

	r.lastSaved = doc.Metadata.LastUpdate
	return nil
}

// StartWatcher listens for changes to the data file and reloads the cache after debounce.
// It watches the parent directory (not the file) so atomic replace sequences (temp+rename)
// are still observed on Linux and Windows. Events are filtered by basename and
// debounced to avoid double reloads on write+chmod/rename cycles. The caller owns the
// provided context: cancel it to stop the goroutine and close the watcher cleanly.
func (r *JSONRepository) StartWatcher(ctx context.Context, cacheStore CacheStore) error {
	if cacheStore == nil {
		return errors.New("cache store is required")
	}
	onChange := r.MakeWatcherCallback(cacheStore)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir: %w", err)
	}

	go func() {
		defer watcher.Close()

		// debounce coalesces bursty fsnotify events (write+chmod/rename) into a single reload.
		var debounce *time.Timer
		schedule := func() {
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, onChange)
		}

		for {
			select {
			case <-ctx.Done():
				if debounce != nil {
					debounce.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != r.base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod|fsnotify.Remove|fsnotify.Rename) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Errorf("watcher error: %v", err)
			}
		}
	}()

	return nil
}

// MakeWatcherCallback returns a callback for file watcher that reloads cache from disk if needed.
// Files written by this repository itself are ignored. The fetch notification
// fires only when the cache is actually reloaded.
func (r *JSONRepository) MakeWatcherCallback(cacheStore CacheStore) func() {
	return func() {
		r.mu.Lock()
		diskDoc, loadErr := r.loadUnlocked()
		lastSaved := r.lastSaved
		r.mu.Unlock()
		if loadErr != nil {
			r.logger.Warnf("watch reload failed: %v", loadErr)
			return
		}
		cacheLastUpdate := cacheStore.GetLastUpdate()
		diskLastUpdate := diskDoc.Metadata.LastUpdate

		if lastSaved != 0 && diskLastUpdate == lastSaved {
			r.logger.Tracef("disk version %d was written by this repository; skipping reload", diskLastUpdate)
			return
		}

		if diskLastUpdate < cacheLastUpdate {
			r.logger.Debugf("disk version is not newer than cache: disk=%d cache=%d", diskLastUpdate, cacheLastUpdate)
			return
		}

		if cacheStore.IsDirty() {
			// the cache content will be written to file soon anyway
			r.logger.Warn("disk data is newer but cache is dirty; skipping reload")
			return
		}

		if diskLastUpdate == cacheLastUpdate {
			snapshot, err := cacheStore.Snapshot()
			if err != nil {
				r.logger.Errorf("cache reload error: failed to get snapshot: %v", err)
				return
			}
			if AreDataDocumentsEqual(&snapshot, diskDoc) {
				return
			}
		}

		if err := cacheStore.Replace(*diskDoc); err != nil {
			r.logger.Errorf("cache reload error: %v", err)
			return
		}
		r.logger.Info("cache reloaded from newer disk version")
		r.proxy.NotifyAfterFetch(diskDoc, nil)
	}
}
