// Package mcache provides a Redis-backed invalidation signal for
// components that keep their own in-memory cache but need to notice
// when a sibling process, sharing the same database, has mutated the
// data that cache is built from.
package mcache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/corebooks/erp-core/pkg/mlog"
)

// Notifier publishes and watches invalidation signals on one Redis
// pub/sub channel. A nil Notifier, or one built with a nil client, is a
// valid no-op: Publish and Watch both do nothing, so callers never need
// to branch on whether Redis is configured.
type Notifier struct {
	client  *redis.Client
	channel string
	log     mlog.Logger
}

// NewNotifier builds a Notifier for channel. client may be nil.
func NewNotifier(client *redis.Client, channel string, log mlog.Logger) *Notifier {
	if log == nil {
		log = mlog.Nop{}
	}

	return &Notifier{client: client, channel: channel, log: log}
}

// Publish signals every watcher on the channel that the cache they
// mirror has changed.
func (n *Notifier) Publish(ctx context.Context) error {
	if n == nil || n.client == nil {
		return nil
	}

	return n.client.Publish(ctx, n.channel, "1").Err()
}

// Watch subscribes to the channel and invokes onInvalidate once per
// message received, until ctx is cancelled or the subscription closes.
func (n *Notifier) Watch(ctx context.Context, onInvalidate func()) {
	if n == nil || n.client == nil {
		return
	}

	sub := n.client.Subscribe(ctx, n.channel)
	defer sub.Close()

	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}

			onInvalidate()
		}
	}
}
