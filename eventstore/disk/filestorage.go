// Package disk stores events as JSON files, one directory per stream.
package disk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	eventsourcing "github.com/terraskye/eventsourcing-core"
)

var _ eventsourcing.EventStore = (*FileStore)(nil)

// FileStore is an EventStore for local development and tests that must
// survive a restart.
//
// Layout:
//
//	{dir}/streams/{stream id}/{stream position}-{event type}.json
//	{dir}/all/{log position}.json -> symlink to the stream file
//
// Event payloads are decoded with the EventTypeMapper, so every stored type
// must be mapped (or resolved once) before it is read back.
type FileStore struct {
	baseDir string
	types   *eventsourcing.EventTypeMapper

	mu        sync.Mutex
	globalSeq uint64
	closed    bool
}

// NewFileStore opens or creates a store in dir.
func NewFileStore(dir string, types *eventsourcing.EventTypeMapper) (*FileStore, error) {
	for _, sub := range []string{"all", "streams"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", sub, err)
		}
	}

	entries, err := readEventFiles(filepath.Join(dir, "all"))
	if err != nil {
		return nil, fmt.Errorf("read global log: %w", err)
	}

	return &FileStore{
		baseDir:   dir,
		types:     types,
		globalSeq: uint64(len(entries)),
	}, nil
}

// AllDir is the directory holding the global log. New events appear there
// as new files.
func (f *FileStore) AllDir() string {
	return filepath.Join(f.baseDir, "all")
}

func (f *FileStore) streamDir(id string) string {
	return filepath.Join(f.baseDir, "streams", url.PathEscape(id))
}

func (f *FileStore) Save(ctx context.Context, events []eventsourcing.Envelope, revision eventsourcing.StreamState) (eventsourcing.AppendResult, error) {
	if err := ctx.Err(); err != nil {
		return eventsourcing.AppendResult{Successful: false}, err
	}
	if len(events) == 0 {
		return eventsourcing.AppendResult{Successful: true}, nil
	}

	id := events[0].Metadata.StreamID
	for _, env := range events[1:] {
		if env.Metadata.StreamID != id {
			return eventsourcing.AppendResult{Successful: false}, eventsourcing.ErrInvalidEventBatch
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return eventsourcing.AppendResult{Successful: false}, eventsourcing.WrapEventStoreError(errors.New("store is closed"))
	}

	sdir := f.streamDir(id)
	files, err := readEventFiles(sdir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eventsourcing.AppendResult{Successful: false}, eventsourcing.WrapEventStoreError(err)
	}
	currentVersion := uint64(len(files))

	switch rev := revision.(type) {
	case nil, eventsourcing.Any:
		// No concurrency check
	case eventsourcing.NoStream:
		if currentVersion != 0 {
			return eventsourcing.AppendResult{Successful: false}, fmt.Errorf("stream %s: %w", id, eventsourcing.ErrStreamExists)
		}
	case eventsourcing.StreamExists:
		if currentVersion == 0 {
			return eventsourcing.AppendResult{Successful: false}, fmt.Errorf("stream %s: %w", id, eventsourcing.ErrStreamNotFound)
		}
	case eventsourcing.Revision:
		if currentVersion != uint64(rev) {
			return eventsourcing.AppendResult{Successful: false}, &eventsourcing.StreamRevisionConflictError{
				Stream:           id,
				ExpectedRevision: rev,
				ActualRevision:   eventsourcing.Revision(currentVersion),
			}
		}
	default:
		return eventsourcing.AppendResult{Successful: false}, fmt.Errorf("stream %s: %w: %T", id, eventsourcing.ErrInvalidRevision, revision)
	}

	if err := os.MkdirAll(sdir, 0o755); err != nil {
		return eventsourcing.AppendResult{Successful: false}, eventsourcing.WrapEventStoreError(err)
	}

	for i, env := range events {
		eventType := f.types.NameOf(env.Event)
		data, err := json.Marshal(env.Event)
		if err != nil {
			return eventsourcing.AppendResult{Successful: false}, fmt.Errorf("marshal %s: %w", eventType, err)
		}

		stored := storedEvent{
			EventID:        env.Metadata.EventID,
			StreamID:       id,
			EventType:      eventType,
			Data:           data,
			StreamPosition: currentVersion + uint64(i),
			LogPosition:    f.globalSeq,
			OccurredAt:     env.Metadata.OccurredAt,
			Propagation:    env.Metadata.PropagationContext,
		}
		serialized, err := json.Marshal(stored)
		if err != nil {
			return eventsourcing.AppendResult{Successful: false}, fmt.Errorf("marshal %s: %w", eventType, err)
		}

		path := filepath.Join(sdir, fmt.Sprintf("%010d-%s.json", stored.StreamPosition, url.PathEscape(eventType)))
		if err := writeFileAtomic(path, serialized); err != nil {
			return eventsourcing.AppendResult{Successful: false}, eventsourcing.WrapEventStoreError(err)
		}

		all := filepath.Join(f.AllDir(), fmt.Sprintf("%010d.json", stored.LogPosition))
		rel, err := filepath.Rel(f.AllDir(), path)
		if err != nil {
			return eventsourcing.AppendResult{Successful: false}, eventsourcing.WrapEventStoreError(err)
		}
		if err := os.Symlink(rel, all); err != nil {
			return eventsourcing.AppendResult{Successful: false}, eventsourcing.WrapEventStoreError(err)
		}
		f.globalSeq++
	}

	return eventsourcing.AppendResult{
		Successful:          true,
		NextExpectedVersion: currentVersion + uint64(len(events)),
	}, nil
}

func (f *FileStore) LoadStream(ctx context.Context, id string) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	return f.LoadStreamFrom(ctx, id, 0)
}

func (f *FileStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := readEventFiles(f.streamDir(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eventsourcing.ErrStreamNotFound
	}
	if err != nil {
		return nil, eventsourcing.WrapEventStoreError(err)
	}
	if len(files) == 0 {
		return nil, eventsourcing.ErrStreamNotFound
	}
	return f.iterate(f.streamDir(id), files, version)
}

func (f *FileStore) LoadFromAll(ctx context.Context, version uint64) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := readEventFiles(f.AllDir())
	if err != nil {
		return nil, eventsourcing.WrapEventStoreError(err)
	}
	return f.iterate(f.AllDir(), files, version)
}

// iterate reads the files of dir lazily, starting at the file whose numeric
// prefix equals from. ReadDir sorts by name and prefixes are zero padded.
func (f *FileStore) iterate(dir string, files []os.DirEntry, from uint64) (*eventsourcing.Iterator[eventsourcing.Envelope], error) {
	if from > uint64(len(files)) {
		return nil, fmt.Errorf("%w: position %d is beyond %d events", eventsourcing.ErrInvalidRevision, from, len(files))
	}

	idx := 0
	return eventsourcing.NewIteratorFunc(func(ctx context.Context) (eventsourcing.Envelope, error) {
		for idx < len(files) {
			fi := files[idx]
			idx++

			prefix, _, _ := strings.Cut(strings.TrimSuffix(fi.Name(), ".json"), "-")
			pos, err := strconv.ParseUint(prefix, 10, 64)
			if err != nil || pos < from {
				continue
			}

			return f.readEnvelope(filepath.Join(dir, fi.Name()))
		}
		return eventsourcing.Envelope{}, io.EOF
	}), nil
}

func (f *FileStore) readEnvelope(path string) (eventsourcing.Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return eventsourcing.Envelope{}, eventsourcing.WrapEventStoreError(err)
	}

	var stored storedEvent
	if err := json.Unmarshal(data, &stored); err != nil {
		return eventsourcing.Envelope{}, eventsourcing.WrapEventStoreError(fmt.Errorf("cannot unmarshal %s: %w", path, err))
	}

	ev, err := f.types.Decode(stored.EventType, stored.Data)
	if err != nil {
		return eventsourcing.Envelope{}, eventsourcing.WrapEventStoreError(fmt.Errorf("cannot create event %q: %w", stored.EventType, err))
	}

	return eventsourcing.NewEnvelope(ev, eventsourcing.EventMetadata{
		EventID:            stored.EventID,
		StreamID:           stored.StreamID,
		StreamPosition:     stored.StreamPosition,
		LogPosition:        stored.LogPosition,
		OccurredAt:         stored.OccurredAt,
		PropagationContext: stored.Propagation,
	}), nil
}

// Close stops further writes. Files are left on disk.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// readEventFiles lists the committed event files of dir, skipping
// directories and leftovers of interrupted writes.
func readEventFiles(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := entries[:0]
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		files = append(files, e)
	}
	return files, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

type storedEvent struct {
	EventID        string            `json:"event_id"`
	StreamID       string            `json:"stream_id"`
	EventType      string            `json:"event_type"`
	Data           json.RawMessage   `json:"data"`
	StreamPosition uint64            `json:"stream_position"`
	LogPosition    uint64            `json:"log_position"`
	OccurredAt     time.Time         `json:"occurred_at"`
	Propagation    map[string]string `json:"propagation,omitempty"`
}
