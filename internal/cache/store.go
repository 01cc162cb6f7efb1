// Package cache is an explicit keyed query store: every key maps to its data,
// a staleness flag, the in-flight load and the optimistic write (if any)
// that currently shadows the authoritative value.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoFetcher = errors.New("cache: no fetcher registered")
	ErrMissing   = errors.New("cache: key has no data")
	ErrClosed    = errors.New("cache: store closed")
)

// Fetcher loads the authoritative value of a key. revision is the server
// revision the value reflects, or 0 when the value carries none.
type Fetcher func(ctx context.Context) (data any, revision int64, err error)

// Listener is called after an entry changes. It runs outside the store lock.
type Listener func(key Key, e Entry)

// Entry is a point-in-time copy of a cache slot.
type Entry struct {
	Data any
	// Version increases on every local write to the key.
	Version uint64
	// Revision is the server revision of the last authoritative write.
	Revision  int64
	Stale     bool
	Pending   uint64 // optimistic token; 0 once the value is confirmed
	UpdatedAt time.Time
}

// Confirmed reports whether no optimistic write shadows the value.
func (e Entry) Confirmed() bool {
	return e.Pending == 0
}

type load struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	data   any
	err    error
}

type slot struct {
	entry   Entry
	has     bool
	fetcher Fetcher
	floor   int64 // highest revision confirmed for this key
	gen     uint64
	loading *load
}

type listener struct {
	id uint64
	fn Listener
}

// Store is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	slots     map[Key]*slot
	listeners []listener
	nextID    uint64
	staleTime time.Duration
	closed    bool
	now       func() time.Time
}

// New creates a store whose entries stay fresh for staleTime after an
// authoritative write.
func New(staleTime time.Duration) *Store {
	return &Store{
		slots:     make(map[Key]*slot),
		staleTime: staleTime,
		now:       time.Now,
	}
}

// OnChange registers fn and returns a function that removes it.
func (s *Store) OnChange(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Register binds the fetcher used to (re)load key.
func (s *Store) Register(key Key, fetch Fetcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slot(key).fetcher = fetch
}

// Unregister forgets key entirely, cancelling any load in flight.
func (s *Store) Unregister(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[key]
	if !ok {
		return
	}
	s.abortLocked(sl)
	delete(s.slots, key)
}

// Get returns the current entry for key.
func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[key]
	if !ok || !sl.has {
		return Entry{}, false
	}
	return sl.entry, true
}

// Value returns the data of key as a T.
func Value[T any](s *Store, key Key) (T, bool) {
	var zero T
	e, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := e.Data.(T)
	return v, ok
}

// Fetch returns fresh data for key, loading it when the entry is missing,
// stale or older than the stale time. Concurrent callers share one load.
func (s *Store) Fetch(ctx context.Context, key Key) (any, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	sl := s.slot(key)
	if sl.has && !sl.entry.Stale && s.now().Sub(sl.entry.UpdatedAt) < s.staleTime {
		data := sl.entry.Data
		s.mu.Unlock()
		return data, nil
	}
	ld := sl.loading
	if ld == nil {
		if sl.fetcher == nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("cache.Fetch: %s: %w", key, ErrNoFetcher)
		}
		ld = s.startLocked(key, sl)
	}
	s.mu.Unlock()

	select {
	case <-ld.done:
		return ld.data, ld.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Set writes an authoritative value. It is dropped, and false returned, when
// revision is older than a revision already confirmed for key.
func (s *Store) Set(key Key, data any, revision int64) bool {
	s.mu.Lock()
	sl := s.slot(key)
	if !s.acceptLocked(sl, revision) {
		s.mu.Unlock()
		return false
	}
	s.abortLocked(sl)
	e := s.writeLocked(sl, data, revision)
	fns := s.listenersLocked()
	s.mu.Unlock()

	notify(fns, key, e)
	return true
}

// Invalidate is the single entry point for marking data out of date. Each
// existing key is marked stale; keys with a fetcher are reloaded, superseding
// any load already in flight. Unknown keys are ignored.
func (s *Store) Invalidate(keys ...Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, key := range keys {
		sl, ok := s.slots[key]
		if !ok {
			continue
		}
		s.invalidateLocked(key, sl)
	}
}

// InvalidatePrefix invalidates every key starting with prefix.
func (s *Store) InvalidatePrefix(prefix Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for key, sl := range s.slots {
		if key.HasPrefix(prefix) {
			s.invalidateLocked(key, sl)
		}
	}
}

// Optimistic shadows key with a local guess tagged by token and returns the
// entry it replaced. Loads in flight for the key are cancelled so a response
// that predates the guess cannot land on top of it.
func (s *Store) Optimistic(key Key, data any, token uint64) (Entry, error) {
	return s.OptimisticFunc(key, token, func(any) (any, error) { return data, nil })
}

// OptimisticFunc is Optimistic with the guess derived from the current value
// under the store lock. If fn fails nothing changes and its error is
// returned as is.
func (s *Store) OptimisticFunc(key Key, token uint64, fn func(current any) (any, error)) (Entry, error) {
	s.mu.Lock()
	sl, ok := s.slots[key]
	if !ok || !sl.has {
		s.mu.Unlock()
		return Entry{}, fmt.Errorf("cache.OptimisticFunc: %s: %w", key, ErrMissing)
	}
	data, err := fn(sl.entry.Data)
	if err != nil {
		s.mu.Unlock()
		return Entry{}, err
	}
	prev := sl.entry
	s.abortLocked(sl)
	sl.entry.Data = data
	sl.entry.Pending = token
	sl.entry.Version++
	e := sl.entry
	fns := s.listenersLocked()
	s.mu.Unlock()

	notify(fns, key, e)
	return prev, nil
}

// Rollback restores prev if the optimistic write tagged token is still the
// visible value. It reports false when something newer already replaced it.
func (s *Store) Rollback(key Key, prev Entry, token uint64) bool {
	s.mu.Lock()
	sl, ok := s.slots[key]
	if !ok || !sl.has || sl.entry.Pending != token {
		s.mu.Unlock()
		return false
	}
	version := sl.entry.Version
	sl.entry = prev
	sl.entry.Version = version + 1
	e := sl.entry
	fns := s.listenersLocked()
	s.mu.Unlock()

	notify(fns, key, e)
	return true
}

// Confirm records that the server accepted the write tagged token at
// revision. Later loads older than revision are ignored.
func (s *Store) Confirm(key Key, token uint64, revision int64) {
	s.mu.Lock()
	sl, ok := s.slots[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	sl.floor = max(sl.floor, revision)
	if sl.entry.Pending != token {
		s.mu.Unlock()
		return
	}
	sl.entry.Pending = 0
	e := sl.entry
	fns := s.listenersLocked()
	s.mu.Unlock()

	notify(fns, key, e)
}

// Close cancels every load in flight. Fetch fails afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, sl := range s.slots {
		s.abortLocked(sl)
	}
}

func (s *Store) slot(key Key) *slot {
	sl, ok := s.slots[key]
	if !ok {
		sl = &slot{}
		s.slots[key] = sl
	}
	return sl
}

func (s *Store) invalidateLocked(key Key, sl *slot) {
	sl.entry.Stale = true
	if sl.fetcher != nil {
		s.abortLocked(sl)
		s.startLocked(key, sl)
	}
}

func (s *Store) startLocked(key Key, sl *slot) *load {
	sl.gen++
	ctx, cancel := context.WithCancel(context.Background())
	ld := &load{gen: sl.gen, cancel: cancel, done: make(chan struct{})}
	sl.loading = ld
	go s.run(ctx, key, sl, ld, sl.fetcher)
	return ld
}

// abortLocked supersedes the load in flight. Its waiters get the current
// value instead of the load's result.
func (s *Store) abortLocked(sl *slot) {
	ld := sl.loading
	if ld == nil {
		return
	}
	sl.gen++
	sl.loading = nil
	ld.cancel()
	ld.data = sl.entry.Data
	if !sl.has {
		ld.err = context.Canceled
	}
	close(ld.done)
}

func (s *Store) run(ctx context.Context, key Key, sl *slot, ld *load, fetch Fetcher) {
	data, rev, err := fetch(ctx)
	ld.cancel()

	s.mu.Lock()
	if sl.gen != ld.gen || sl.loading != ld {
		s.mu.Unlock()
		log.Debug().Str("key", string(key)).Msg("cache: dropped superseded load")
		return
	}
	sl.loading = nil

	if err != nil {
		ld.err = err
		ld.data = sl.entry.Data
		s.mu.Unlock()
		close(ld.done)
		log.Warn().Err(err).Str("key", string(key)).Msg("cache: load failed")
		return
	}

	if !s.acceptLocked(sl, rev) {
		ld.data = sl.entry.Data
		s.mu.Unlock()
		close(ld.done)
		log.Debug().Str("key", string(key)).Int64("revision", rev).Int64("floor", sl.floor).Msg("cache: dropped load older than confirmed revision")
		return
	}

	e := s.writeLocked(sl, data, rev)
	ld.data = data
	fns := s.listenersLocked()
	s.mu.Unlock()

	notify(fns, key, e)
	close(ld.done)
}

func (s *Store) acceptLocked(sl *slot, revision int64) bool {
	return revision == 0 || revision >= sl.floor
}

// writeLocked stores an authoritative value. It replaces any optimistic guess.
func (s *Store) writeLocked(sl *slot, data any, revision int64) Entry {
	sl.has = true
	sl.floor = max(sl.floor, revision)
	sl.entry = Entry{
		Data:      data,
		Version:   sl.entry.Version + 1,
		Revision:  revision,
		UpdatedAt: s.now(),
	}
	return sl.entry
}

func (s *Store) listenersLocked() []Listener {
	fns := make([]Listener, len(s.listeners))
	for i, l := range s.listeners {
		fns[i] = l.fn
	}
	return fns
}

func notify(fns []Listener, key Key, e Entry) {
	for _, fn := range fns {
		fn(key, e)
	}
}
