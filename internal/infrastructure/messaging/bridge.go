// Package messaging bridges engine instances over Redis Pub/Sub. Each
// instance's cache is process-local, so a write on one instance must
// invalidate the same leaderboard on every peer. The bridge broadcasts
// invalidations and relays live updates so subscribers on any instance
// see changes made on any other.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/golffinder/leaderboard-engine/internal/domain/leaderboard"
	"github.com/golffinder/leaderboard-engine/internal/engine/cache"
	"github.com/golffinder/leaderboard-engine/internal/engine/update"
	"github.com/golffinder/leaderboard-engine/pkg/logger"
)

// DefaultChannel is the Pub/Sub channel shared by all engine instances.
const DefaultChannel = "golffinder:leaderboard:events"

// publishTimeout bounds each outbound Redis publish. Broadcasts are
// best-effort; a peer that misses one serves stale data until its TTL.
const publishTimeout = 2 * time.Second

// ══════════════════════════════════════════════════════════════════════════════
// ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// Kind discriminates bridge messages.
type Kind string

const (
	KindInvalidateBoard  Kind = "invalidate_board"
	KindInvalidateCourse Kind = "invalidate_course"
	KindBoardUpdate      Kind = "board_update"
)

// envelope is the wire form of one bridge message. InstanceID lets a
// subscriber skip its own broadcasts.
type envelope struct {
	InstanceID    string              `json:"instance_id"`
	Kind          Kind                `json:"kind"`
	LeaderboardID string              `json:"leaderboard_id,omitempty"`
	CourseID      string              `json:"course_id,omitempty"`
	Update        *leaderboard.Update `json:"update,omitempty"`
	SentAt        time.Time           `json:"sent_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// BRIDGE
// ══════════════════════════════════════════════════════════════════════════════

// Config wires the bridge.
type Config struct {
	// Client is the shared Redis client. Required.
	Client *redis.Client

	// Channel is the Pub/Sub channel name. Default DefaultChannel.
	Channel string

	// InstanceID identifies this instance for self-filtering.
	// Default: a random uuid.
	InstanceID string

	// Cache receives peer invalidations. Required.
	Cache *cache.Cache

	// Broker receives peer live updates. Optional; without it peer
	// updates only invalidate, they do not fan out to subscribers.
	Broker *update.Broker

	Logger *logger.Logger
}

// Bridge connects the local cache and broker to peer instances.
type Bridge struct {
	client     *redis.Client
	channel    string
	instanceID string
	cache      *cache.Cache
	broker     *update.Broker
	log        *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	pubsub *redis.PubSub
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a bridge and starts its subscription loop.
func New(cfg Config) (*Bridge, error) {
	if cfg.Client == nil {
		return nil, errors.New("messaging: redis client is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("messaging: cache is required")
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		client:     cfg.Client,
		channel:    cfg.Channel,
		instanceID: cfg.InstanceID,
		cache:      cfg.Cache,
		broker:     cfg.Broker,
		log:        cfg.Logger.With(logger.Component("messaging")),
		ctx:        ctx,
		cancel:     cancel,
	}

	b.pubsub = b.client.Subscribe(ctx, b.channel)
	// Force the subscription before returning so no broadcast published
	// after New can be missed.
	if _, err := b.pubsub.Receive(ctx); err != nil {
		cancel()
		_ = b.pubsub.Close()
		return nil, err
	}

	b.wg.Add(1)
	go b.listen()

	b.log.Info("bridge started",
		logger.String("channel", b.channel),
		logger.String("instance_id", b.instanceID))
	return b, nil
}

// InstanceID returns this instance's identifier.
func (b *Bridge) InstanceID() string {
	return b.instanceID
}

// Close stops the subscription loop. Idempotent.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	_ = b.pubsub.Close()
	b.wg.Wait()
}

// ──────────────────────────────────────────────────────────────────────────────
// OUTBOUND
// ──────────────────────────────────────────────────────────────────────────────

// PublishBoardInvalidation broadcasts a cascade invalidation for one
// leaderboard.
func (b *Bridge) PublishBoardInvalidation(ctx context.Context, leaderboardID string) {
	b.publish(ctx, envelope{
		Kind:          KindInvalidateBoard,
		LeaderboardID: leaderboardID,
	})
}

// PublishCourseInvalidation broadcasts an invalidation of one course's
// cached list.
func (b *Bridge) PublishCourseInvalidation(ctx context.Context, courseID string) {
	b.publish(ctx, envelope{
		Kind:     KindInvalidateCourse,
		CourseID: courseID,
	})
}

// PublishUpdate relays a live update to peer instances' subscribers.
func (b *Bridge) PublishUpdate(ctx context.Context, u leaderboard.Update) {
	b.publish(ctx, envelope{
		Kind:          KindBoardUpdate,
		LeaderboardID: u.LeaderboardID,
		Update:        &u,
	})
}

func (b *Bridge) publish(ctx context.Context, env envelope) {
	env.InstanceID = b.instanceID
	env.SentAt = time.Now().UTC()

	data, err := json.Marshal(env)
	if err != nil {
		b.log.Error("envelope marshal failed", logger.Err(err))
		return
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := b.client.Publish(pctx, b.channel, data).Err(); err != nil {
		b.log.Warn("broadcast failed",
			logger.String("kind", string(env.Kind)), logger.Err(err))
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// INBOUND
// ──────────────────────────────────────────────────────────────────────────────

func (b *Bridge) listen() {
	defer b.wg.Done()

	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handle(msg.Payload)
		}
	}
}

func (b *Bridge) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn("malformed bridge message", logger.Err(err))
		return
	}
	if env.InstanceID == b.instanceID {
		return
	}

	switch env.Kind {
	case KindInvalidateBoard:
		b.cache.InvalidateCascade(env.LeaderboardID)
	case KindInvalidateCourse:
		b.cache.InvalidateCourse(env.CourseID)
	case KindBoardUpdate:
		if env.Update != nil {
			b.cache.InvalidateCascade(env.Update.LeaderboardID)
			if b.broker != nil {
				b.broker.Publish(*env.Update)
			}
		}
	default:
		b.log.Warn("unknown bridge message kind", logger.String("kind", string(env.Kind)))
	}
}
