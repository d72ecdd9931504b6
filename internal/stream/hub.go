package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "busboxd:user:"
	channelSuffix  = ":events"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// Hub fans events out to the websocket clients of each user. With Redis
// configured, events also reach clients connected to other processes.
type Hub struct {
	id      string
	redis   *redis.Client
	logger  *slog.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex

	cancel context.CancelFunc
	done   chan struct{}
}

type Client struct {
	User string
	Send chan []byte
}

// envelope wraps payloads on Redis so a hub can skip its own messages.
type envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

func NewHub(redisClient *redis.Client, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		logger:  logger,
		clients: map[string]map[*Client]struct{}{},
		done:    make(chan struct{}),
	}

	if redisClient == nil {
		close(h.done)
		return h
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	pubsub := redisClient.PSubscribe(ctx, channelPattern)
	confirmCtx, confirmCancel := context.WithTimeout(ctx, 2*time.Second)
	if _, err := pubsub.Receive(confirmCtx); err != nil {
		logger.Warn("stream redis subscribe failed", "error", err)
	}
	confirmCancel()
	go h.subscribeRedis(ctx, pubsub)
	return h
}

func (h *Hub) Register(user string) *Client {
	client := &Client{
		User: user,
		Send: make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[user] == nil {
		h.clients[user] = map[*Client]struct{}{}
	}
	h.clients[user][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if userClients, ok := h.clients[client.User]; ok {
		if _, registered := userClients[client]; !registered {
			return
		}
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.clients, client.User)
		}
		close(client.Send)
	}
}

// Publish delivers payload to the local clients of user without blocking;
// clients whose buffer is full miss the message.
func (h *Hub) Publish(ctx context.Context, user string, payload []byte) {
	h.deliver(user, payload)

	if h.redis == nil {
		return
	}
	msg, err := json.Marshal(envelope{Origin: h.id, Payload: payload})
	if err != nil {
		h.logger.Error("stream encode failed", "user", user, "error", err)
		return
	}
	if err := h.redis.Publish(ctx, redisChannel(user), msg).Err(); err != nil {
		h.logger.Warn("stream redis publish failed", "user", user, "error", err)
	}
}

// Connected reports how many local clients user has.
func (h *Hub) Connected(user string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[user])
}

// Close stops the Redis subscription.
func (h *Hub) Close() {
	if h.cancel != nil {
		h.cancel()
	}
	<-h.done
}

func (h *Hub) deliver(user string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[user] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer close(h.done)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			user := userFromChannel(msg.Channel)
			if user == "" {
				continue
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("stream redis message invalid", "channel", msg.Channel, "error", err)
				continue
			}
			if env.Origin == h.id {
				continue
			}
			h.deliver(user, env.Payload)
		}
	}
}

func redisChannel(user string) string {
	return channelPrefix + user + channelSuffix
}

func userFromChannel(ch string) string {
	// busboxd:user:{user}:events
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
