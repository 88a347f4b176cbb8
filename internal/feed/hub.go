// Package feed fans relay events out to websocket monitors. Events travel
// through a Redis channel so every instance's monitors see every relay.
package feed

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	Channel     = "relay-events"
	historySize = 50
)

// ErrStopped is returned by Publish once Run has returned.
var ErrStopped = errors.New("feed hub stopped")

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte  // From Redis -> Clients
	Register   chan *Client // New monitor joins
	Unregister chan *Client // Monitor leaves
	redis      *redis.Client
	log        *zap.Logger
	done       chan struct{} // Closed when Run returns

	// recent is replayed to monitors on connect. Owned by Run.
	recent [][]byte
}

// NewHub returns a hub. With a nil redis client events are broadcast locally.
func NewHub(redisClient *redis.Client, log *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		redis:      redisClient,
		log:        log.With(zap.String("component", "feed")),
	}
}

// Run owns the client set until ctx is cancelled. Call it once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return

		case client := <-h.Register:
			h.clients[client] = true
			for _, msg := range h.recent {
				select {
				case client.Send <- msg:
				default:
				}
			}

		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}

		case message := <-h.broadcast:
			h.remember(message)
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// join hands c to Run. It reports false when the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) remember(message []byte) {
	h.recent = append(h.recent, message)
	if len(h.recent) > historySize {
		h.recent = h.recent[len(h.recent)-historySize:]
	}
}

// Publish sends ev to every instance's monitors.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if h.redis == nil {
		select {
		case h.broadcast <- payload:
			return nil
		case <-h.done:
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return h.redis.Publish(ctx, Channel, payload).Err()
}

// SubscribeToRedis listens for events published by any instance.
func (h *Hub) SubscribeToRedis(ctx context.Context) {
	if h.redis == nil {
		return
	}
	pubsub := h.redis.Subscribe(ctx, Channel)
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
			select {
			case h.broadcast <- []byte(msg.Payload):
			case <-h.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}
