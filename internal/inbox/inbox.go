// Package inbox captures files dropped into a watched directory as clipboard
// items. This is how other programs share content with clipsync.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/and161185/clipsync/internal/blobstore"
	"github.com/and161185/clipsync/internal/model"
)

const (
	defaultDebounce = 250 * time.Millisecond
	maxTextLen      = 1 << 20
)

// Capturer records clipboard content.
type Capturer interface {
	Capture(ctx context.Context, content string, typ model.ContentType) (model.ClipboardItem, error)
}

// Inbox turns files into items and removes them once captured.
type Inbox struct {
	dir      string
	store    Capturer
	blobs    *blobstore.Store
	log      *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time // path -> last event
}

// New creates the inbox directory if needed. Without blobs, binary files are
// left in place and logged.
func New(dir string, store Capturer, blobs *blobstore.Store, log *zap.Logger) (*Inbox, error) {
	if dir == "" {
		return nil, errors.New("inbox directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Inbox{
		dir:      dir,
		store:    store,
		blobs:    blobs,
		log:      log,
		debounce: defaultDebounce,
		pending:  make(map[string]time.Time),
	}, nil
}

// Dir is the watched directory.
func (in *Inbox) Dir() string { return in.dir }

// Scan ingests files already present, e.g. dropped while nothing was running.
func (in *Inbox) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || ignored(e.Name()) {
			continue
		}
		if _, err := in.Ingest(ctx, filepath.Join(in.dir, e.Name())); err != nil {
			in.log.Warn("inbox ingest", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

// Ingest captures one file and removes it.
func (in *Inbox) Ingest(ctx context.Context, path string) (model.ClipboardItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.ClipboardItem{}, err
	}
	if len(data) == 0 {
		_ = os.Remove(path)
		return model.ClipboardItem{}, fmt.Errorf("%s: empty file", filepath.Base(path))
	}

	typ, content := Classify(filepath.Base(path), data)
	if typ.IsBinary() {
		if in.blobs == nil {
			return model.ClipboardItem{}, fmt.Errorf("%s: no blob store for %s content", filepath.Base(path), typ)
		}
		if content, err = in.blobs.Put(data); err != nil {
			return model.ClipboardItem{}, fmt.Errorf("store blob: %w", err)
		}
	}

	it, err := in.store.Capture(ctx, content, typ)
	if err != nil {
		return model.ClipboardItem{}, err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		in.log.Warn("inbox remove", zap.String("file", path), zap.Error(err))
	}
	in.log.Info("captured from inbox", zap.String("id", it.ID), zap.String("type", string(it.Type)))
	return it, nil
}

// Run watches the directory until ctx is done. Files are ingested once no
// event has touched them for the debounce interval.
func (in *Inbox) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(in.dir); err != nil {
		return fmt.Errorf("failed to watch inbox %s: %w", in.dir, err)
	}
	if _, err := in.Scan(ctx); err != nil {
		in.log.Warn("inbox scan", zap.Error(err))
	}

	tick := time.NewTicker(in.debounce / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if ignored(filepath.Base(ev.Name)) {
				continue
			}
			in.mu.Lock()
			in.pending[ev.Name] = time.Now()
			in.mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.log.Warn("inbox watcher", zap.Error(err))
		case now := <-tick.C:
			for _, path := range in.settled(now) {
				if st, err := os.Stat(path); err != nil || st.IsDir() {
					continue
				}
				if _, err := in.Ingest(ctx, path); err != nil {
					in.log.Warn("inbox ingest", zap.String("file", path), zap.Error(err))
				}
			}
		}
	}
}

func (in *Inbox) settled(now time.Time) []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	var out []string
	for path, last := range in.pending {
		if now.Sub(last) >= in.debounce {
			out = append(out, path)
			delete(in.pending, path)
		}
	}
	return out
}

// ignored skips hidden and partially written files.
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, ".part")
}

var binaryExt = map[string]model.ContentType{
	".png":  model.TypeImage,
	".jpg":  model.TypeImage,
	".jpeg": model.TypeImage,
	".gif":  model.TypeImage,
	".webp": model.TypeImage,
	".heic": model.TypeImage,
	".pdf":  model.TypePDF,
	".mp3":  model.TypeAudio,
	".m4a":  model.TypeAudio,
	".wav":  model.TypeAudio,
	".ogg":  model.TypeAudio,
}

// Classify picks the content type of a dropped file. Text content is returned
// trimmed; for binary types the content is empty and the caller stores a blob.
func Classify(name string, data []byte) (model.ContentType, string) {
	if t, ok := binaryExt[strings.ToLower(filepath.Ext(name))]; ok {
		return t, ""
	}
	if len(data) > maxTextLen || !utf8.Valid(data) || strings.ContainsRune(string(data), 0) {
		return model.TypeFile, ""
	}
	text := strings.TrimSpace(string(data))
	if isURL(text) {
		return model.TypeURL, text
	}
	return model.TypeText, text
}

func isURL(s string) bool {
	if strings.ContainsAny(s, " \t\n") {
		return false
	}
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
