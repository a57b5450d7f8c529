package dataset

import (
	"sync/atomic"
	"time"
)

// SourceInfo carries provenance metadata for one published generation: the
// upstream file the views were built from and the dataset date encoded in
// its name.
type SourceInfo struct {
	Filename    string
	DatasetDate time.Time
	RawCSV      []byte
}

// Snapshot is one immutable, fully consistent generation of the dataset:
// a ViewSet plus publication metadata. The zero generation (pre-refresh)
// wraps an empty ViewSet so reads are well-defined before the first
// successful refresh.
type Snapshot struct {
	Views       *ViewSet
	Source      SourceInfo
	Generation  uint64
	PublishedAt time.Time
}

// Lookup returns the record for id in this snapshot, or ErrNotFound.
func (s *Snapshot) Lookup(id int) (*Record, error) {
	return s.Views.ByID(id)
}

// Store holds the currently published Snapshot and hands it to concurrent
// readers without locking. Publish is the single mutation point: it swaps
// one pointer, so readers always observe either the old or the new snapshot
// in full, never a mix. The superseded snapshot stays valid for whichever
// in-flight reads still hold it.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store pre-loaded with an empty generation-zero
// snapshot, so every read operation works before the first refresh.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{Views: emptyViewSet()})
	return s
}

// Current returns the currently published snapshot. It never blocks and
// never observes a snapshot mid-construction.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Publish atomically replaces the current snapshot with one wrapping vs,
// incrementing the generation counter. It returns the new snapshot.
//
// Publish is not safe for concurrent use with itself; the refresh pipeline
// serializes cycles so at most one publisher runs at a time. Concurrent
// readers are always safe.
func (s *Store) Publish(vs *ViewSet, src SourceInfo) *Snapshot {
	next := &Snapshot{
		Views:       vs,
		Source:      src,
		Generation:  s.current.Load().Generation + 1,
		PublishedAt: time.Now(),
	}
	s.current.Store(next)
	return next
}

// Lookup returns the record for id in the current snapshot, or ErrNotFound.
func (s *Store) Lookup(id int) (*Record, error) {
	return s.Current().Lookup(id)
}

// ListCompact returns the current snapshot's compact map view.
func (s *Store) ListCompact() []CompactPoint {
	return s.Current().Views.ListCompact()
}

// ListFull returns the current snapshot's full record view.
func (s *Store) ListFull() []*Record {
	return s.Current().Views.ListFull()
}

// Stats returns the current snapshot's aggregate counts.
func (s *Store) Stats() Stats {
	return s.Current().Views.Stats()
}
