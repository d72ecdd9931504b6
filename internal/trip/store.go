package trip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"backend-busboxd/internal/shared/page"
	"backend-busboxd/internal/storage"

	"github.com/google/uuid"
)

const defaultRetryInterval = 500 * time.Millisecond

type Options struct {
	// Name is the blob holding the CSV snapshot.
	Name     string
	Location *time.Location
	// NoteMaxLen caps notes in runes; zero disables the cap.
	NoteMaxLen    int
	Retries       int
	RetryInterval time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// Store caches every trip of the remote snapshot in memory. Reads are served
// from the cache; mutations update it immediately and hand a copy of the new
// snapshot to the background writer.
type Store struct {
	blobs   storage.Store
	name    string
	loc     *time.Location
	noteMax int
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.RWMutex
	trips []Trip

	// syncErr is set while the cache may not mirror the remote snapshot;
	// mutations are refused so a partial cache never overwrites it.
	syncErr error

	writer *writer
}

func NewStore(blobs storage.Store, opts Options) *Store {
	if opts.Name == "" {
		opts.Name = "trips.csv"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}

	s := &Store{
		blobs:   blobs,
		name:    opts.Name,
		loc:     opts.Location,
		noteMax: opts.NoteMaxLen,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	s.writer = newWriter(func(ctx context.Context, data []byte, message string) error {
		return storage.Save(ctx, blobs, s.name, data, message)
	}, opts.Retries, opts.RetryInterval, opts.Logger)
	return s
}

// Location is the zone used to turn a trip's date and time into an instant.
func (s *Store) Location() *time.Location { return s.loc }

// Synchronize replaces the cache with the remote snapshot. A missing blob is
// an empty store. On a transport failure the cache is emptied; on malformed
// rows it keeps the rows that could be read. Either failure is returned and
// blocks Insert and Delete until a later Synchronize succeeds.
func (s *Store) Synchronize(ctx context.Context) error {
	var trips []Trip
	data, err := s.blobs.Fetch(ctx, s.name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		err = nil
	case err == nil:
		trips, err = Decode(data)
		if err != nil {
			if !errors.Is(err, ErrMalformedRows) {
				trips = nil
			}
			err = fmt.Errorf("decode %s: %w", s.name, err)
		}
	}

	s.sortTrips(trips)
	s.mu.Lock()
	s.trips = trips
	s.syncErr = err
	s.mu.Unlock()
	return err
}

// Insert validates in, stores the new trip and schedules a write-back.
func (s *Store) Insert(in NewTrip) (Trip, error) {
	in.User = strings.TrimSpace(in.User)
	in.Line = strings.TrimSpace(in.Line)
	if in.User == "" {
		return Trip{}, fmt.Errorf("%w: user is required", ErrValidation)
	}
	if in.Line == "" {
		return Trip{}, fmt.Errorf("%w: line is required", ErrValidation)
	}

	now := s.now().In(s.loc)
	t := Trip{
		ID:          uuid.NewString(),
		User:        in.User,
		Line:        in.Line,
		Date:        strings.TrimSpace(in.Date),
		Time:        strings.TrimSpace(in.Time),
		Origin:      strings.TrimSpace(in.Origin),
		Destination: strings.TrimSpace(in.Destination),
		Note:        truncateRunes(strings.TrimSpace(in.Note), s.noteMax),
		CreatedAt:   now.Truncate(time.Second),
	}
	if t.Date == "" {
		t.Date = now.Format(DateLayout)
	}
	if t.Time == "" {
		t.Time = now.Format(TimeLayout)
	}
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return Trip{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	clock, ok := normalizeClock(t.Time)
	if !ok {
		return Trip{}, fmt.Errorf("%w: time must be HH:MM", ErrValidation)
	}
	t.Time = clock

	s.mu.Lock()
	if err := s.unsyncedLocked(); err != nil {
		s.mu.Unlock()
		return Trip{}, err
	}
	s.trips = append(s.trips, t)
	s.sortTrips(s.trips)
	snapshot := append([]Trip(nil), s.trips...)
	s.mu.Unlock()

	s.writer.schedule(snapshot, fmt.Sprintf("Add trip on line %s for %s", t.Line, t.User))
	return t, nil
}

// Delete removes the trip with the given id and schedules a write-back.
func (s *Store) Delete(id string) (Trip, error) {
	s.mu.Lock()
	if err := s.unsyncedLocked(); err != nil {
		s.mu.Unlock()
		return Trip{}, err
	}
	idx := -1
	for i := range s.trips {
		if s.trips[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return Trip{}, ErrNotFound
	}
	removed := s.trips[idx]
	trips := make([]Trip, 0, len(s.trips)-1)
	trips = append(trips, s.trips[:idx]...)
	trips = append(trips, s.trips[idx+1:]...)
	s.sortTrips(trips)
	s.trips = trips
	snapshot := append([]Trip(nil), trips...)
	s.mu.Unlock()

	s.writer.schedule(snapshot, fmt.Sprintf("Delete trip %s of %s", removed.ID, removed.User))
	return removed, nil
}

func (s *Store) Get(id string) (Trip, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.trips {
		if t.ID == id {
			return t, true
		}
	}
	return Trip{}, false
}

// All returns a copy of the cache in store order.
func (s *Store) All() []Trip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Trip(nil), s.trips...)
}

// ForUsers returns the cached trips of the given users in store order.
func (s *Store) ForUsers(users ...string) []Trip {
	want := make(map[string]struct{}, len(users))
	for _, u := range users {
		want[u] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Trip
	for _, t := range s.trips {
		if _, ok := want[t.User]; ok {
			out = append(out, t)
		}
	}
	return out
}

// History returns one page of a user's trips, most recent first, with the
// user's total trip count. Trips with a malformed date are left out.
func (s *Store) History(user string, p page.Params) ([]Trip, int) {
	var dated []Trip
	for _, t := range s.ForUsers(user) {
		if _, ok := t.OccurredAt(s.loc); ok {
			dated = append(dated, t)
		}
	}
	return page.Slice(dated, p), len(dated)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trips)
}

func (s *Store) Status() WritebackStatus {
	st := s.writer.snapshotStatus()
	s.mu.RLock()
	if s.syncErr != nil {
		st.Blocked = true
		st.SyncError = s.syncErr.Error()
	}
	s.mu.RUnlock()
	return st
}

func (s *Store) unsyncedLocked() error {
	if s.syncErr != nil {
		return fmt.Errorf("%w: %v", ErrNotSynchronized, s.syncErr)
	}
	return nil
}

// Flush waits for every write-back scheduled so far.
func (s *Store) Flush(ctx context.Context) error {
	return s.writer.flush(ctx)
}

// Close flushes pending write-backs and stops the writer.
func (s *Store) Close(ctx context.Context) error {
	return s.writer.close(ctx)
}

// sortTrips orders by user ascending, then most recent first. Trips whose
// instant does not parse go last within their user.
func (s *Store) sortTrips(trips []Trip) {
	sort.SliceStable(trips, func(i, j int) bool {
		if trips[i].User != trips[j].User {
			return trips[i].User < trips[j].User
		}
		ai, okI := trips[i].OccurredAt(s.loc)
		aj, okJ := trips[j].OccurredAt(s.loc)
		if okI != okJ {
			return okI
		}
		return ai.After(aj)
	})
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
