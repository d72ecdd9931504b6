package social

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"backend-busboxd/internal/storage"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrUnknownUser = errors.New("unknown user")
)

// Directory tells whether a username is registered.
type Directory interface {
	Exists(ctx context.Context, user string) (bool, error)
}

type Notifier interface {
	NewFollower(ctx context.Context, follower, followee string)
}

type Service struct {
	blobs  storage.Store
	file   string
	users  Directory
	notify Notifier

	mu sync.Mutex
}

func NewService(blobs storage.Store, file string, users Directory) *Service {
	if file == "" {
		file = "follows.json"
	}
	return &Service{blobs: blobs, file: file, users: users}
}

// SetNotifier installs the receiver of new_follower events.
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = n
}

// Follow adds the edge follower -> followee. Following twice is a no-op.
func (s *Service) Follow(ctx context.Context, follower, followee string) error {
	follower, followee = strings.TrimSpace(follower), strings.TrimSpace(followee)
	if follower == "" || followee == "" {
		return fmt.Errorf("%w: follower and followee required", ErrValidation)
	}
	if follower == followee {
		return fmt.Errorf("%w: cannot follow yourself", ErrValidation)
	}
	if s.users != nil {
		ok, err := s.users.Exists(ctx, followee)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownUser, followee)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(g[follower], followee) {
		return nil
	}
	g[follower] = append(g[follower], followee)
	if err := storage.SaveJSON(ctx, s.blobs, s.file, g, fmt.Sprintf("%s follows %s", follower, followee)); err != nil {
		return err
	}
	if s.notify != nil {
		s.notify.NewFollower(ctx, follower, followee)
	}
	return nil
}

// Unfollow removes the edge follower -> followee if present.
func (s *Service) Unfollow(ctx context.Context, follower, followee string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load(ctx)
	if err != nil {
		return err
	}
	idx := slices.Index(g[follower], followee)
	if idx < 0 {
		return nil
	}
	g[follower] = slices.Delete(g[follower], idx, idx+1)
	if len(g[follower]) == 0 {
		delete(g, follower)
	}
	return storage.SaveJSON(ctx, s.blobs, s.file, g, fmt.Sprintf("%s unfollows %s", follower, followee))
}

// Following lists who user follows, sorted. Self edges are ignored.
func (s *Service) Following(ctx context.Context, user string) ([]string, error) {
	g, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, f := range g[user] {
		if f != user && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Followers lists who follows user, sorted.
func (s *Service) Followers(ctx context.Context, user string) ([]string, error) {
	g, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for follower, followees := range g {
		if follower != user && slices.Contains(followees, user) {
			out = append(out, follower)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *Service) load(ctx context.Context) (graph, error) {
	g := graph{}
	if _, err := storage.LoadJSON(ctx, s.blobs, s.file, &g); err != nil {
		return nil, err
	}
	if g == nil {
		g = graph{}
	}
	return g, nil
}
