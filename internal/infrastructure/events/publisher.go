package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/billforge/invoicing-api/internal/application/billing"
	"github.com/billforge/invoicing-api/internal/domain/entity"
	"github.com/billforge/invoicing-api/pkg/logger"
)

// Channels for draft lifecycle notifications. Dashboards and draft
// tables subscribe to refresh derived views.
const (
	ChannelDraftSaved     = "drafts.saved"
	ChannelDraftDiscarded = "drafts.discarded"
)

var _ billing.EventPublisher = (*RedisPublisher)(nil)

// RedisPublisher publishes draft lifecycle events on Redis pub/sub.
// Publish failures are logged and swallowed: a lost notification must
// never fail the request that produced it.
type RedisPublisher struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisPublisher connects and verifies the Redis server.
func NewRedisPublisher(addr, password string, db int, log *logger.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisPublisher{client: client, log: log}, nil
}

// DraftSaved publishes the updated envelope.
func (p *RedisPublisher) DraftSaved(ctx context.Context, env *entity.DraftEnvelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		p.log.Error().Err(err).Str("draft_id", env.ID).Msg("marshal draft saved event")
		return
	}
	if err := p.client.Publish(ctx, ChannelDraftSaved, payload).Err(); err != nil {
		p.log.Warn().Err(err).Str("draft_id", env.ID).Msg("publish draft saved event")
	}
}

// DraftDiscarded publishes the discarded draft id.
func (p *RedisPublisher) DraftDiscarded(ctx context.Context, draftID string) {
	if err := p.client.Publish(ctx, ChannelDraftDiscarded, draftID).Err(); err != nil {
		p.log.Warn().Err(err).Str("draft_id", draftID).Msg("publish draft discarded event")
	}
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// NoopPublisher is used when Redis is not configured.
type NoopPublisher struct{}

var _ billing.EventPublisher = NoopPublisher{}

func (NoopPublisher) DraftSaved(context.Context, *entity.DraftEnvelope) {}
func (NoopPublisher) DraftDiscarded(context.Context, string)            {}
