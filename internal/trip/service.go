package trip

import (
	"context"
	"fmt"

	"backend-busboxd/internal/shared/page"
)

// LineCatalog is the set of known bus lines. An empty catalog accepts any line.
type LineCatalog interface {
	Len() int
	Has(line string) bool
}

// Notifier is told about mutations so followers can be updated live.
type Notifier interface {
	TripLogged(ctx context.Context, t Trip)
	TripDeleted(ctx context.Context, t Trip)
}

type Service struct {
	store  *Store
	lines  LineCatalog
	notify Notifier
}

func NewService(store *Store, lines LineCatalog, notify Notifier) *Service {
	return &Service{store: store, lines: lines, notify: notify}
}

func (s *Service) Store() *Store { return s.store }

// LogTrip records a trip for user.
func (s *Service) LogTrip(ctx context.Context, user string, in NewTrip) (Trip, error) {
	in.User = user
	if in.Line != "" && s.lines != nil && s.lines.Len() > 0 && !s.lines.Has(in.Line) {
		return Trip{}, fmt.Errorf("%w: unknown line %q", ErrValidation, in.Line)
	}
	t, err := s.store.Insert(in)
	if err != nil {
		return Trip{}, err
	}
	if s.notify != nil {
		s.notify.TripLogged(ctx, t)
	}
	return t, nil
}

// DeleteTrip removes one of user's trips.
func (s *Service) DeleteTrip(ctx context.Context, user, id string) error {
	t, ok := s.store.Get(id)
	if !ok {
		return ErrNotFound
	}
	if t.User != user {
		return ErrForbidden
	}
	removed, err := s.store.Delete(id)
	if err != nil {
		return err
	}
	if s.notify != nil {
		s.notify.TripDeleted(ctx, removed)
	}
	return nil
}

func (s *Service) GetTrip(id string) (Trip, error) {
	t, ok := s.store.Get(id)
	if !ok {
		return Trip{}, ErrNotFound
	}
	return t, nil
}

func (s *Service) History(user string, p page.Params) ([]Trip, int) {
	return s.store.History(user, p)
}

func (s *Service) Synchronize(ctx context.Context) error {
	return s.store.Synchronize(ctx)
}

func (s *Service) Status() WritebackStatus {
	return s.store.Status()
}
