package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/looplj/auditflow/internal/log"
)

type redisWatcher[T any] struct {
	client  *redis.Client
	channel string
	buffer  int

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan T

	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// NewRedis publishes JSON payloads on a redis channel. The subscription is
// opened with the first Watch and closed when the last subscriber stops.
func NewRedis[T any](client *redis.Client, opts Options) (Notifier[T], error) {
	if client == nil {
		return nil, errors.New("watcher: redis client is required")
	}

	if opts.Channel == "" {
		return nil, errors.New("watcher: redis channel is required")
	}

	return &redisWatcher[T]{
		client:  client,
		channel: opts.Channel,
		buffer:  max(opts.Buffer, 1),
		subs:    make(map[uint64]chan T),
	}, nil
}

func (w *redisWatcher[T]) Watch() (<-chan T, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++

	ch := make(chan T, w.buffer)
	w.subs[id] = ch

	if len(w.subs) == 1 {
		w.subscribeLocked()
	}

	return ch, func() { w.unsubscribe(id) }
}

func (w *redisWatcher[T]) unsubscribe(id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sub, ok := w.subs[id]
	if !ok {
		return
	}

	delete(w.subs, id)
	close(sub)

	if len(w.subs) == 0 {
		w.closeLocked()
	}
}

func (w *redisWatcher[T]) Notify(ctx context.Context, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return w.client.Publish(ctx, w.channel, payload).Err()
}

func (w *redisWatcher[T]) subscribeLocked() {
	if w.pubsub != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.pubsub = w.client.Subscribe(ctx, w.channel)

	// Wait for the subscription confirmation so a Notify right after Watch is not lost.
	if _, err := w.pubsub.Receive(ctx); err != nil {
		log.Warn(ctx, "watcher subscribe failed", log.String("channel", w.channel), log.Cause(err))
	}

	go w.receive(ctx, w.pubsub)
}

func (w *redisWatcher[T]) receive(ctx context.Context, ps *redis.PubSub) {
	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}

			log.Warn(ctx, "watcher receive failed", log.String("channel", w.channel), log.Cause(err))

			continue
		}

		var v T
		if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
			log.Warn(ctx, "watcher payload dropped",
				log.String("channel", w.channel),
				log.String("payload", msg.Payload),
				log.Cause(err))

			continue
		}

		w.mu.Lock()
		fanOut(w.subs, v)
		w.mu.Unlock()
	}
}

func (w *redisWatcher[T]) closeLocked() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}

	if w.pubsub != nil {
		_ = w.pubsub.Close()
		w.pubsub = nil
	}
}
