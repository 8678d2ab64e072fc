package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/anishmolla/creator-support-army-bot/agreement"
	"github.com/anishmolla/creator-support-army-bot/internal/fsstore"
)

const (
	fileDocVersion = 1
	fileLockKey    = "archive.deals"
)

type fileDoc struct {
	Version     int      `json:"version"`
	LastCounter int64    `json:"last_counter"`
	Deals       []Record `json:"deals"`
}

func (d *fileDoc) find(runID, key string) int {
	for i := range d.Deals {
		if d.Deals[i].RunID == runID && d.Deals[i].Key == key {
			return i
		}
	}
	return -1
}

// FileArchive stores every record in one JSON document, rewritten atomically
// under a lock file, plus an optional append-only transition log.
type FileArchive struct {
	path     string
	lockPath string
	runID    string
	now      func() time.Time

	mu     sync.Mutex
	events *fsstore.JSONLWriter
}

func OpenFile(opts Options) (*FileArchive, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: archive path is required", fsstore.ErrInvalidPath)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	locksDir := opts.LocksDir
	if locksDir == "" {
		locksDir = filepath.Join(filepath.Dir(opts.Path), ".fslocks")
	}
	lockPath, err := fsstore.BuildLockPath(locksDir, fileLockKey)
	if err != nil {
		return nil, err
	}
	a := &FileArchive{
		path:     filepath.Clean(opts.Path),
		lockPath: lockPath,
		runID:    newRunID(),
		now:      opts.Now,
	}
	if opts.EventsLog {
		eventsPath := opts.EventsPath
		if eventsPath == "" {
			eventsPath = filepath.Join(filepath.Dir(a.path), "events.jsonl")
		}
		w, err := fsstore.NewJSONLWriter(eventsPath, fsstore.JSONLOptions{})
		if err != nil {
			return nil, err
		}
		a.events = w
	}
	return a, nil
}

func (a *FileArchive) RecordAgreement(ctx context.Context, ag agreement.Agreement, kind agreement.EventKind) error {
	if err := validateAgreement(ag); err != nil {
		return err
	}
	now := a.now()
	key := recordKey(ag.ConversationID, ag.ID)

	var saved Record
	err := fsstore.MutateJSON(ctx, a.path, a.lockPath, fsstore.FileOptions{}, func(doc *fileDoc, _ bool) error {
		doc.Version = fileDocVersion
		i := doc.find(a.runID, key)
		if i < 0 {
			doc.LastCounter++
			doc.Deals = append(doc.Deals, newRecord(a.runID, ag, doc.LastCounter, now))
			i = len(doc.Deals) - 1
		}
		doc.Deals[i].apply(ag, kind, now)
		saved = doc.Deals[i]
		return nil
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	return a.appendEvent(saved.event(kind))
}

func (a *FileArchive) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc fileDoc
	if _, err := fsstore.ReadJSON(a.path, &doc); err != nil {
		return nil, err
	}
	sortRecords(doc.Deals)
	return doc.Deals, nil
}

func (a *FileArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.events == nil {
		return nil
	}
	err := a.events.Close()
	a.events = nil
	return err
}

func (a *FileArchive) appendEvent(ev Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.events == nil {
		return nil
	}
	return a.events.AppendJSON(ev)
}
