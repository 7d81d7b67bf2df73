// Package broadcast fans cache invalidations out to peer processes over
// NATS so that in-process (memory driver) caches drop the same keys.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/goforj/newscache"
)

// DefaultSubject carries invalidation messages.
const DefaultSubject = "newscache.invalidate"

// Conn captures the subset of *nats.Conn used by the bus.
type Conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type message struct {
	Origin string   `json:"origin"`
	Keys   []string `json:"keys"`
}

// Bus publishes invalidated keys and applies keys published by peers.
type Bus struct {
	conn    Conn
	subject string
	origin  string
	logger  *zap.Logger
	timeout time.Duration

	mu  sync.Mutex
	sub *nats.Subscription
}

// New builds a bus on conn. An empty subject uses DefaultSubject.
func New(conn Conn, subject string, logger *zap.Logger) *Bus {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{conn: conn, subject: subject, origin: uuid.NewString(), logger: logger, timeout: 5 * time.Second}
}

// PublishKeys announces keys that were deleted locally.
func (b *Bus) PublishKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(message{Origin: b.origin, Keys: keys})
	if err != nil {
		return fmt.Errorf("broadcast: encode: %w", err)
	}
	if err := b.conn.Publish(b.subject, body); err != nil {
		return fmt.Errorf("broadcast: publish: %w", err)
	}
	return nil
}

// Listen deletes keys announced by other processes from cache. Messages
// published by this bus are ignored.
func (b *Bus) Listen(cache *newscache.Cache) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub != nil {
		return errors.New("broadcast: already listening")
	}
	sub, err := b.conn.Subscribe(b.subject, func(m *nats.Msg) { b.apply(cache, m.Data) })
	if err != nil {
		return fmt.Errorf("broadcast: subscribe %s: %w", b.subject, err)
	}
	b.sub = sub
	return nil
}

func (b *Bus) apply(cache *newscache.Cache, data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		b.logger.Warn("invalid invalidation message", zap.Error(err))
		return
	}
	if msg.Origin == b.origin || len(msg.Keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	n, err := cache.DeleteMany(ctx, msg.Keys...)
	if err != nil {
		b.logger.Warn("remote invalidation failed", zap.String("origin", msg.Origin), zap.Strings("keys", msg.Keys), zap.Error(err))
		return
	}
	b.logger.Debug("remote invalidation applied", zap.String("origin", msg.Origin), zap.Int64("deleted", n))
}

// Close stops listening.
func (b *Bus) Close() error {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()
	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}
