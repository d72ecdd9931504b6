package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"backend-busboxd/internal/trip"
)

const (
	EventTripLogged  = "trip_logged"
	EventTripDeleted = "trip_deleted"
	EventNewFollower = "new_follower"
)

type Event struct {
	Type     string     `json:"type"`
	User     string     `json:"user"`
	Trip     *trip.Trip `json:"trip,omitempty"`
	Follower string     `json:"follower,omitempty"`
	At       time.Time  `json:"at"`
}

type FollowerSource interface {
	Followers(ctx context.Context, user string) ([]string, error)
}

// FanoutTimeout bounds the follower lookup and publish of one trip_logged
// event.
const FanoutTimeout = 10 * time.Second

// Notifier turns trip and follow mutations into hub events.
type Notifier struct {
	hub       *Hub
	followers FollowerSource
	logger    *slog.Logger
	now       func() time.Time
	timeout   time.Duration
	fanout    sync.WaitGroup
}

func NewNotifier(hub *Hub, followers FollowerSource, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{hub: hub, followers: followers, logger: logger, now: time.Now, timeout: FanoutTimeout}
}

// TripLogged tells the author right away. The followers are looked up and
// told in the background, detached from ctx's cancellation so the request
// that logged the trip does not wait on the follow graph.
func (n *Notifier) TripLogged(ctx context.Context, t trip.Trip) {
	ev := Event{Type: EventTripLogged, User: t.User, Trip: &t}
	n.publish(ctx, ev, t.User)
	if n.followers == nil {
		return
	}

	n.fanout.Add(1)
	go func() {
		defer n.fanout.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()

		followers, err := n.followers.Followers(ctx, t.User)
		if err != nil {
			n.logger.Warn("stream followers unavailable", "user", t.User, "error", err)
			return
		}
		n.publish(ctx, ev, followers...)
	}()
}

// Wait blocks until every background fan-out has finished or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.fanout.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) TripDeleted(ctx context.Context, t trip.Trip) {
	n.publish(ctx, Event{Type: EventTripDeleted, User: t.User, Trip: &t}, t.User)
}

func (n *Notifier) NewFollower(ctx context.Context, follower, followee string) {
	n.publish(ctx, Event{Type: EventNewFollower, User: followee, Follower: follower}, followee)
}

func (n *Notifier) publish(ctx context.Context, ev Event, recipients ...string) {
	ev.At = n.now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("stream encode event failed", "type", ev.Type, "error", err)
		return
	}
	for _, user := range recipients {
		n.hub.Publish(ctx, user, payload)
	}
}
