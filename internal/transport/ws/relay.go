package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const relayChannel = "bookline:dm:events"

// Relay mirrors delivery events across instances through Redis pub/sub, so a
// user connected to another process still receives them. Like the in-process
// hub it is best-effort: a Redis hiccup drops the event, never the write.
type Relay struct {
	hub      *Hub
	rdb      *redis.Client
	pubsub   *redis.PubSub
	serverID string
}

type relayedEvent struct {
	FromServerID string          `json:"from_server_id"`
	UserID       uuid.UUID       `json:"user_id"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
}

func NewRelay(redisAddr string, hub *Hub) (*Relay, error) {
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &Relay{
		hub:      hub,
		rdb:      rdb,
		pubsub:   rdb.Subscribe(context.Background(), relayChannel),
		serverID: uuid.NewString(),
	}, nil
}

// Run consumes relayed events until ctx is cancelled. Call in a goroutine.
func (r *Relay) Run(ctx context.Context) {
	ch := r.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var evt relayedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				log.Printf("ws relay: bad payload: %v", err)
				continue
			}
			if evt.FromServerID == r.serverID {
				continue
			}
			r.hub.deliverLocal(evt.UserID, evt.EventType, evt.Payload)

		case <-ctx.Done():
			return
		}
	}
}

// Forward publishes an already-marshalled event for other instances.
func (r *Relay) Forward(userID uuid.UUID, eventType string, data []byte) {
	payload, err := json.Marshal(relayedEvent{
		FromServerID: r.serverID,
		UserID:       userID,
		EventType:    eventType,
		Payload:      data,
	})
	if err != nil {
		return
	}
	if err := r.rdb.Publish(context.Background(), relayChannel, payload).Err(); err != nil {
		log.Printf("ws relay: publish error: %v", err)
	}
}

func (r *Relay) Close() error {
	if err := r.pubsub.Close(); err != nil {
		return err
	}
	return r.rdb.Close()
}
