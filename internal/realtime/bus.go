package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"cuemesh/api/internal/probe"
)

const changeChannel = "cuemesh:changes"

// Bus carries change notifications across API replicas over Redis pub/sub.
// Delivery is at-least-once per connected replica; feeds tolerate duplicates
// because every notification is a full snapshot recompute.
type Bus struct {
	client *redis.Client
	hub    *Hub
	probe  *probe.Ring
}

func NewBus(client *redis.Client, hub *Hub, probeRing *probe.Ring) *Bus {
	return &Bus{client: client, hub: hub, probe: probeRing}
}

// Publish announces a change to all replicas, including this one. The local
// hub only hears it back through the subscription, which keeps single-replica
// and multi-replica deployments on the same code path.
func (b *Bus) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := b.client.Publish(ctx, changeChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish change for show %s: %w", change.ShowID, err)
	}
	return nil
}

// Run consumes the change channel and rebroadcasts into the local hub. It
// reconnects with backoff until ctx is cancelled; while disconnected the hub
// is put into a degraded state so feeds can tell their clients.
func (b *Bus) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := b.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("bus: subscription lost: %v; reconnecting in %s", err, backoff)
			if b.probe != nil {
				b.probe.Record("bus", "", fmt.Sprintf("subscription lost: %v", err))
			}
			b.hub.DegradeAll()

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

func (b *Bus) consume(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, changeChannel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.Channel():
			if !ok {
				return fmt.Errorf("channel closed")
			}
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				log.Printf("bus: dropping malformed change: %v", err)
				continue
			}
			b.hub.Broadcast(change)
		}
	}
}
