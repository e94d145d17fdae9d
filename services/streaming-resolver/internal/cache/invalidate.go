package cache

import (
	"context"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// InvalidateSubject carries one cache key per message; "ALL" or an empty
// body purges the whole cache.
const InvalidateSubject = "streaming.resolver.cache.invalidate"

// Subscribe applies invalidation messages to c until the subscription is
// drained.
func Subscribe(nc *nats.Conn, c Cache, log *zap.Logger) (*nats.Subscription, error) {
	return nc.Subscribe(InvalidateSubject, func(m *nats.Msg) {
		Apply(context.Background(), c, string(m.Data), log)
	})
}

// Apply drops key from c, or everything when key is empty or ALL.
func Apply(ctx context.Context, c Cache, key string, log *zap.Logger) {
	key = strings.TrimSpace(key)
	var err error
	if key == "" || strings.EqualFold(key, "ALL") {
		err = c.Purge(ctx)
	} else {
		err = c.Delete(ctx, key)
	}
	if err != nil && log != nil {
		log.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidator broadcasts an invalidation to every resolver replica, falling
// back to the local cache when NATS is not configured.
type Invalidator struct {
	nc    *nats.Conn
	local Cache
	log   *zap.Logger
}

func NewInvalidator(nc *nats.Conn, local Cache, log *zap.Logger) *Invalidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Invalidator{nc: nc, local: local, log: log}
}

func (i *Invalidator) Invalidate(ctx context.Context, key string) error {
	if i.nc == nil {
		Apply(ctx, i.local, key, i.log)
		return nil
	}
	return i.nc.Publish(InvalidateSubject, []byte(key))
}
