package feed

import (
	"context"
	"log/slog"
	"time"

	"backend-busboxd/internal/shared/page"
	"backend-busboxd/internal/trip"
)

type TripSource interface {
	ForUsers(users ...string) []trip.Trip
	Location() *time.Location
}

type FollowSource interface {
	Following(ctx context.Context, user string) ([]string, error)
}

type Page struct {
	Items []Item      `json:"items"`
	Page  page.Params `json:"page"`
	Total int         `json:"total"`
	// Partial is set when the follow list could not be read and only the
	// caller's own trips were used.
	Partial bool `json:"partial,omitempty"`
}

type Service struct {
	trips   TripSource
	follows FollowSource
	window  time.Duration
	logger  *slog.Logger
}

func NewService(trips TripSource, follows FollowSource, window time.Duration, logger *slog.Logger) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{trips: trips, follows: follows, window: window, logger: logger}
}

// Feed builds the activity feed of user and everyone user follows.
func (s *Service) Feed(ctx context.Context, user string, p page.Params) Page {
	users, partial := s.audience(ctx, user)
	items := BuildFeed(s.trips.ForUsers(users...), s.window, s.trips.Location())
	return Page{
		Items:   page.Slice(items, p),
		Page:    p,
		Total:   len(items),
		Partial: partial,
	}
}

func (s *Service) audience(ctx context.Context, user string) ([]string, bool) {
	users := []string{user}
	if s.follows == nil {
		return users, false
	}
	following, err := s.follows.Following(ctx, user)
	if err != nil {
		s.logger.Warn("feed follow list unavailable", "user", user, "error", err)
		return users, true
	}
	for _, f := range following {
		if f != user {
			users = append(users, f)
		}
	}
	return users, false
}
