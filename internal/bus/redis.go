package bus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis relays events through a pub/sub channel shared by all nodes.
// Redis delivers each publish back to every subscriber, the origin
// node included, so local delivery happens only via the subscription
// and sockets behave the same whether one or many nodes are running.
type Redis struct {
	rdb     *redis.Client
	channel string
	log     *zap.SugaredLogger

	mu       sync.RWMutex
	handlers []func(Event)

	pubsub *redis.PubSub
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Bus = (*Redis)(nil)

func NewRedis(rdb *redis.Client, channel string, log *zap.SugaredLogger) *Redis {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Redis{
		rdb:     rdb,
		channel: channel,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	b.pubsub = rdb.Subscribe(ctx, channel)
	go b.receive()
	return b
}

func (b *Redis) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

func (b *Redis) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, fn)
}

func (b *Redis) receive() {
	defer close(b.done)
	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				b.log.Warn("bus subscription closed")
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warnw("drop malformed bus event", "err", err)
				continue
			}
			b.mu.RLock()
			handlers := b.handlers
			b.mu.RUnlock()
			for _, fn := range handlers {
				fn(ev)
			}
		}
	}
}

func (b *Redis) Close() error {
	b.cancel()
	err := b.pubsub.Close()
	<-b.done
	return err
}
