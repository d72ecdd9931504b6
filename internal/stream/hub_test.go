package stream

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func receive(t *testing.T, client *Client) string {
	t.Helper()
	select {
	case msg := <-client.Send:
		return string(msg)
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
	return ""
}

func expectNothing(t *testing.T, client *Client) {
	t.Helper()
	select {
	case msg := <-client.Send:
		t.Fatalf("unexpected message %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPublish(t *testing.T) {
	hub := NewHub(nil, quietLogger)
	defer hub.Close()
	ana := hub.Register("ana")
	defer hub.Unregister(ana)
	bia := hub.Register("bia")
	defer hub.Unregister(bia)

	hub.Publish(context.Background(), "ana", []byte(`"hello"`))

	if msg := receive(t, ana); msg != `"hello"` {
		t.Fatalf("unexpected message %s", msg)
	}
	expectNothing(t, bia)
	if hub.Connected("ana") != 1 || hub.Connected("caio") != 0 {
		t.Fatalf("unexpected connection counts")
	}
}

func TestHubSlowClientDropsMessages(t *testing.T) {
	hub := NewHub(nil, quietLogger)
	client := hub.Register("ana")
	defer hub.Unregister(client)

	for i := 0; i < cap(client.Send)+10; i++ {
		hub.Publish(context.Background(), "ana", []byte(`{}`))
	}
	if len(client.Send) != cap(client.Send) {
		t.Fatalf("expected a full buffer, got %d", len(client.Send))
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("ana")
	if ch != "busboxd:user:ana:events" {
		t.Fatalf("unexpected channel %s", ch)
	}
	if userFromChannel(ch) != "ana" {
		t.Fatalf("unexpected user")
	}
	if userFromChannel("bad") != "" || userFromChannel("busboxd:user::events") != "" {
		t.Fatalf("expected empty user")
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub(nil, quietLogger)
	client := hub.Register("ana")
	hub.Unregister(client)
	hub.Unregister(client)
	_, ok := <-client.Send
	if ok {
		t.Fatalf("expected channel closed")
	}
}

func TestHubRedisAcrossProcesses(t *testing.T) {
	s := miniredis.RunT(t)
	rdbA := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdbA.Close()
	rdbB := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdbB.Close()

	hubA := NewHub(rdbA, quietLogger)
	defer hubA.Close()
	hubB := NewHub(rdbB, quietLogger)
	defer hubB.Close()

	onA := hubA.Register("ana")
	defer hubA.Unregister(onA)
	onB := hubB.Register("ana")
	defer hubB.Unregister(onB)

	hubA.Publish(context.Background(), "ana", []byte(`{"n":1}`))

	if msg := receive(t, onA); msg != `{"n":1}` {
		t.Fatalf("unexpected local message %s", msg)
	}
	if msg := receive(t, onB); msg != `{"n":1}` {
		t.Fatalf("unexpected remote message %s", msg)
	}
	// the publishing hub ignores its own echo
	expectNothing(t, onA)
}

func TestHubRedisPublishError(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()
	defer client.Close()

	hub := NewHub(client, quietLogger)
	defer hub.Close()
	clientNode := hub.Register("ana")
	defer hub.Unregister(clientNode)

	hub.Publish(context.Background(), "ana", []byte(`"ping"`))
	if msg := receive(t, clientNode); msg != `"ping"` {
		t.Fatalf("local delivery must survive redis failure")
	}
}
