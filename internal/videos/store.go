package videos

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"daybook/internal/domain"
	"daybook/internal/kv"
)

// StorageKey is the persistence key holding the downloaded set.
const StorageKey = "downloadedVideos"

type Op string

const (
	OpCatalog    Op = "catalog"
	OpHydrate    Op = "hydrate"
	OpDownloaded Op = "downloaded"
	OpReplace    Op = "replace"
)

// Source supplies the remote video catalog.
type Source interface {
	Videos(ctx context.Context) ([]domain.Video, error)
}

// FetchError reports a failed catalog read. The previous catalog is kept.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch video catalog: %v", e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

type Options struct {
	KV     kv.Store
	Remote Source
	Logger *log.Logger
}

type Snapshot struct {
	Catalog    []domain.Video
	Downloaded []domain.DownloadedVideo
	Loading    bool
	Err        error
	Revision   uint64
}

type Change struct {
	Op       Op
	VideoID  string
	Snapshot Snapshot
}

// Store owns the remote catalog and the locally downloaded subset.
type Store struct {
	kv     kv.Store
	remote Source
	logger *log.Logger

	mu         sync.Mutex
	catalog    []domain.Video
	downloaded []domain.DownloadedVideo
	loading    bool
	err        error
	revision   uint64
	subs       []subscriber
	nextSub    int
}

type subscriber struct {
	id int
	fn func(Change)
}

func New(opts Options) *Store {
	s := &Store{kv: opts.KV, remote: opts.Remote, logger: opts.Logger}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s
}

// FetchCatalog replaces the catalog on success. On failure the error flag is
// set and whatever catalog was already loaded stays available.
func (s *Store) FetchCatalog(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.err = nil
	s.mu.Unlock()

	var (
		items []domain.Video
		err   error
	)
	if s.remote == nil {
		err = errors.New("no remote source configured")
	} else {
		items, err = s.remote.Videos(ctx)
	}

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.logger.Printf("videos: fetch catalog failed: %v", err)
		err = &FetchError{Err: err}
		s.err = err
	} else {
		if items == nil {
			items = []domain.Video{}
		}
		s.catalog = items
	}
	p := s.changeLocked(OpCatalog, "")
	s.mu.Unlock()

	s.notify(p)
	return err
}

// HydrateDownloaded loads the persisted downloaded set; an absent key leaves
// it empty.
func (s *Store) HydrateDownloaded(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	var stored []domain.DownloadedVideo
	if err := s.kv.Load(ctx, StorageKey, &stored); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		s.logger.Printf("videos: load downloaded set failed: %v", err)
		return err
	}
	s.mu.Lock()
	s.downloaded = dedupe(stored)
	p := s.changeLocked(OpHydrate, "")
	s.mu.Unlock()
	s.notify(p)
	return nil
}

// RecordDownloaded adds v unless an entry with the same id exists. It
// reports whether the set changed; only then is it persisted.
func (s *Store) RecordDownloaded(ctx context.Context, v domain.DownloadedVideo) bool {
	s.mu.Lock()
	if s.indexLocked(v.ID) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.downloaded = append(s.downloaded, v)
	s.persistLocked(ctx)
	p := s.changeLocked(OpDownloaded, v.ID)
	s.mu.Unlock()

	s.notify(p)
	return true
}

// SetDownloaded replaces the whole set, keeping the first entry per id.
func (s *Store) SetDownloaded(ctx context.Context, set []domain.DownloadedVideo) {
	s.mu.Lock()
	s.downloaded = dedupe(set)
	s.persistLocked(ctx)
	p := s.changeLocked(OpReplace, "")
	s.mu.Unlock()
	s.notify(p)
}

func (s *Store) Downloaded() []domain.DownloadedVideo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DownloadedVideo(nil), s.downloaded...)
}

func (s *Store) IsDownloaded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

// Find looks up a catalog entry by id.
func (s *Store) Find(id string) (domain.Video, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.catalog {
		if v.ID == id {
			return v, true
		}
	}
	for _, d := range s.downloaded {
		if d.ID == id {
			return d.Video, true
		}
	}
	return domain.Video{}, false
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) indexLocked(id string) int {
	for i, d := range s.downloaded {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Catalog:    append([]domain.Video(nil), s.catalog...),
		Downloaded: append([]domain.DownloadedVideo(nil), s.downloaded...),
		Loading:    s.loading,
		Err:        s.err,
		Revision:   s.revision,
	}
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.kv == nil {
		return
	}
	set := s.downloaded
	if set == nil {
		set = []domain.DownloadedVideo{}
	}
	if err := s.kv.Save(ctx, StorageKey, set); err != nil {
		s.logger.Printf("videos: persist downloaded set failed: %v", err)
	}
}

type pending struct {
	change Change
	fns    []func(Change)
}

func (s *Store) changeLocked(op Op, id string) pending {
	s.revision++
	fns := make([]func(Change), 0, len(s.subs))
	for _, sub := range s.subs {
		fns = append(fns, sub.fn)
	}
	return pending{change: Change{Op: op, VideoID: id, Snapshot: s.snapshotLocked()}, fns: fns}
}

func (s *Store) notify(p pending) {
	for _, fn := range p.fns {
		fn(p.change)
	}
}

func dedupe(in []domain.DownloadedVideo) []domain.DownloadedVideo {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.DownloadedVideo, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v.ID]; ok {
			continue
		}
		seen[v.ID] = struct{}{}
		out = append(out, v)
	}
	return out
}
