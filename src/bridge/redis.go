package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// notifyTailDepth bounds how many injected events a slow session can
// buffer before further ones are dropped for it.
const notifyTailDepth = 64

// mirrorEnvelope wraps one outbound debugger message with its origin,
// so observers can tell instances and connections apart.
type mirrorEnvelope struct {
	InstanceID string          `json:"instance_id"`
	ConnID     string          `json:"conn_id"`
	Event      json.RawMessage `json:"event"`
}

// RedisBridge mirrors session traffic onto the "<prefix>events" channel
// and relays events published on "<prefix>notify" into live sessions.
// Injected payloads must be JSON objects with a string "event" field;
// anything else is dropped, and any "ticket" field is stripped, since
// injected events reach clients as spontaneous events.
type RedisBridge struct {
	client     *redis.Client
	prefix     string
	instanceID string
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
	tails  map[*NotifyTail]struct{}
}

// NewRedisBridge creates a bridge for the given Redis settings. It does
// not connect; Start does.
func NewRedisBridge(cfg *RedisConfig, logger zerolog.Logger) *RedisBridge {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBridge{
		client:     client,
		prefix:     cfg.Prefix,
		instanceID: uuid.New().String(),
		logger:     logger.With().Str("component", "redis-bridge").Logger(),
		ctx:        ctx,
		cancel:     cancel,
		tails:      make(map[*NotifyTail]struct{}),
	}
}

// InstanceID returns this engine's identity in mirrored envelopes.
func (b *RedisBridge) InstanceID() string {
	return b.instanceID
}

// Start subscribes to the notify channel and begins relaying.
func (b *RedisBridge) Start() error {
	if err := b.client.Ping(b.ctx).Err(); err != nil {
		return err
	}

	channel := b.prefix + "notify"
	sub := b.client.Subscribe(b.ctx, channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(b.ctx); err != nil {
		return err
	}

	b.mu.Lock()
	b.active = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.listen(sub)

	b.logger.Info().
		Str("instance_id", b.instanceID).
		Str("channel", channel).
		Msg("redis bridge started")
	return nil
}

// Publish mirrors one outbound message onto the events channel.
func (b *RedisBridge) Publish(connID string, event []byte) error {
	env := mirrorEnvelope{
		InstanceID: b.instanceID,
		ConnID:     connID,
		Event:      event,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(b.ctx, b.prefix+"events", data).Err()
}

// Stop unsubscribes, waits for the listener, and closes the client.
func (b *RedisBridge) Stop() error {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

// Available reports whether the bridge is connected.
func (b *RedisBridge) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// Attach registers a session's tail for injected events.
func (b *RedisBridge) Attach() *NotifyTail {
	t := &NotifyTail{ch: make(chan []byte, notifyTailDepth)}
	b.mu.Lock()
	b.tails[t] = struct{}{}
	b.mu.Unlock()
	return t
}

// Detach unregisters a tail. Pending events are discarded.
func (b *RedisBridge) Detach(t *NotifyTail) {
	b.mu.Lock()
	delete(b.tails, t)
	b.mu.Unlock()
}

// listen reads injected events from the subscription until Stop.
func (b *RedisBridge) listen(sub *redis.PubSub) {
	defer b.wg.Done()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handleNotify([]byte(msg.Payload))
		case <-b.ctx.Done():
			return
		}
	}
}

// handleNotify validates one injected payload and fans it out to every
// attached tail. Validation happens once here, not per session.
func (b *RedisBridge) handleNotify(data []byte) {
	event, ok := validateNotify(data)
	if !ok {
		b.logger.Debug().Str("payload", string(data)).Msg("dropping malformed injected event")
		return
	}

	clean, err := sjson.DeleteBytes(data, "ticket")
	if err != nil {
		b.logger.Debug().Err(err).Msg("dropping injected event")
		return
	}

	b.logger.Debug().Str("event", event).Msg("relaying injected event")

	b.mu.RLock()
	for t := range b.tails {
		select {
		case t.ch <- clean:
		default:
			t.dropped.Add(1)
		}
	}
	b.mu.RUnlock()
}

// validateNotify checks that an injected payload is a JSON object with
// a string event name, and returns that name.
func validateNotify(data []byte) (string, bool) {
	if !gjson.ValidBytes(data) {
		return "", false
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return "", false
	}
	event := root.Get("event")
	if !event.Exists() || event.Type != gjson.String {
		return "", false
	}
	return event.Str, true
}
