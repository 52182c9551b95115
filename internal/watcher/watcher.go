// Package watcher imports deck list files dropped into an inbox directory.
//
// Each supported file is run through the import pipeline, saved as a deck
// named after the file, and moved to processed/ or, when nothing could be
// imported, to failed/. File system events trigger a scan immediately; a
// ticker rescans the inbox in case events are missed or unavailable.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/forgemaster-mtg/mtglibrary/internal/mtga/deckimport"
	"github.com/forgemaster-mtg/mtglibrary/internal/storage/models"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"

	// maxFileSize caps how much of a dropped file is read.
	maxFileSize = 1 << 20
)

// Extensions lists the file extensions picked up from the inbox.
var Extensions = []string{".txt", ".dec", ".dek"}

// Importer runs the import pipeline over deck text.
// *deckimport.Importer satisfies it.
type Importer interface {
	ImportText(ctx context.Context, text string) *deckimport.Result
}

// Saver persists import results. *storage.Service satisfies it.
type Saver interface {
	SaveImport(ctx context.Context, name, source, sourceURL string, result *deckimport.Result) (*models.Deck, error)
}

// Config configures the inbox watcher.
type Config struct {
	// InboxDir is the directory watched for new files.
	InboxDir string

	// PollInterval is the interval of the fallback rescan.
	PollInterval time.Duration

	// UseFsnotify enables file system events in addition to polling.
	UseFsnotify bool

	// Settle is how long a file must stay unmodified before it is read, so
	// files still being written are left for a later scan.
	Settle time.Duration
}

// DefaultConfig returns default configuration for inboxDir.
func DefaultConfig(inboxDir string) *Config {
	return &Config{
		InboxDir:     inboxDir,
		PollInterval: 5 * time.Second,
		UseFsnotify:  true,
		Settle:       500 * time.Millisecond,
	}
}

// Outcome describes one processed file.
type Outcome struct {
	File      string // Original path
	MovedTo   string // Path after the move
	DeckID    string // Empty when the import failed
	CardCount int
	Warnings  []string
	Failed    bool
}

// Watcher imports deck files dropped into an inbox directory.
type Watcher struct {
	config   Config
	importer Importer
	store    Saver
	logger   *zap.Logger
	now      func() time.Time

	// OnImport, when set, is called after every processed file.
	OnImport func(Outcome)
}

// New creates a watcher and makes sure the inbox and its subdirectories exist.
func New(config *Config, importer Importer, store Saver, logger *zap.Logger) (*Watcher, error) {
	if config == nil || config.InboxDir == "" {
		return nil, errors.New("inbox directory is required")
	}
	if importer == nil || store == nil {
		return nil, errors.New("importer and store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := *config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig("").PollInterval
	}

	for _, dir := range []string{cfg.InboxDir, filepath.Join(cfg.InboxDir, ProcessedDir), filepath.Join(cfg.InboxDir, FailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create inbox directory: %w", err)
		}
	}

	return &Watcher{
		config:   cfg,
		importer: importer,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Run scans the inbox until ctx is cancelled. It returns nil on
// cancellation.
func (w *Watcher) Run(ctx context.Context) (err error) {
	var events <-chan fsnotify.Event
	var watchErrors <-chan error

	if w.config.UseFsnotify {
		fsw, werr := fsnotify.NewWatcher()
		if werr != nil {
			return fmt.Errorf("failed to create file watcher: %w", werr)
		}
		defer func() {
			if closeErr := fsw.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()

		if werr := fsw.Add(w.config.InboxDir); werr != nil {
			return fmt.Errorf("failed to watch inbox: %w", werr)
		}
		events = fsw.Events
		watchErrors = fsw.Errors
	}

	w.logger.Info("Watching inbox for deck lists",
		zap.String("dir", w.config.InboxDir),
		zap.Bool("fsnotify", w.config.UseFsnotify),
		zap.Duration("poll_interval", w.config.PollInterval))

	w.scan(ctx)

	// Backup polling in case file events are missed.
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Inbox watcher stopped")
			return nil

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				if supported(event.Name) {
					w.scan(ctx)
				}
			}

		case werr, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			w.logger.Warn("File watcher error", zap.Error(werr))

		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *Watcher) scan(ctx context.Context) {
	if _, err := w.ScanOnce(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("Inbox scan failed", zap.Error(err))
	}
}

// ScanOnce imports every settled file currently in the inbox and returns
// the outcomes in directory order.
func (w *Watcher) ScanOnce(ctx context.Context) ([]Outcome, error) {
	entries, err := os.ReadDir(w.config.InboxDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	var outcomes []Outcome
	for _, entry := range entries {
		if ctx.Err() != nil {
			return outcomes, ctx.Err()
		}
		if entry.IsDir() || !supported(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Moved away between ReadDir and Info.
			continue
		}
		if w.now().Sub(info.ModTime()) < w.config.Settle {
			continue
		}

		outcome, err := w.processFile(ctx, filepath.Join(w.config.InboxDir, entry.Name()))
		if err != nil {
			w.logger.Error("Failed to process inbox file", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		outcomes = append(outcomes, *outcome)
		if w.OnImport != nil {
			w.OnImport(*outcome)
		}
	}

	return outcomes, nil
}

// processFile imports one file and moves it out of the inbox. A file whose
// import resolves no card is moved to failed/ and nothing is saved.
func (w *Watcher) processFile(ctx context.Context, path string) (*Outcome, error) {
	text, err := readFile(path)
	if err != nil {
		return nil, err
	}

	result := w.importer.ImportText(ctx, text)
	outcome := &Outcome{
		File:      path,
		CardCount: result.CardCount(),
		Warnings:  result.Errors,
		Failed:    !result.Saveable(),
	}

	logger := w.logger.With(zap.String("file", filepath.Base(path)))

	dest := ProcessedDir
	if outcome.Failed {
		dest = FailedDir
		logger.Warn("Nothing could be imported from file",
			zap.Strings("warnings", result.Errors),
			zap.Int("unresolved", len(result.Unresolved)))
	} else {
		deck, err := w.store.SaveImport(ctx, deckName(path), models.SourceFile, "", result)
		if err != nil {
			// Left in place for the next scan.
			return nil, fmt.Errorf("failed to save deck: %w", err)
		}
		outcome.DeckID = deck.ID
		logger.Info("Imported deck from inbox",
			zap.String("deck_id", deck.ID),
			zap.Int("cards", outcome.CardCount),
			zap.Int("unresolved", len(result.Unresolved)),
			zap.Int("warnings", len(result.Errors)))
	}

	moved, err := w.move(path, dest)
	if err != nil {
		return nil, err
	}
	outcome.MovedTo = moved

	return outcome, nil
}

// move renames path into the named subdirectory, adding a timestamp when a
// file of the same name is already there.
func (w *Watcher) move(path, subdir string) (string, error) {
	base := filepath.Base(path)
	target := filepath.Join(w.config.InboxDir, subdir, base)

	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(base)
		stamp := w.now().UTC().Format("20060102-150405.000")
		target = filepath.Join(w.config.InboxDir, subdir, strings.TrimSuffix(base, ext)+"-"+stamp+ext)
	}

	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("failed to move %s to %s: %w", base, subdir, err)
	}
	return target, nil
}

func readFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxFileSize))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return string(data), nil
}

// deckName derives a deck name from a file name: "mono_red-burn.txt"
// becomes "mono red-burn".
func deckName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	return name
}

func supported(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
