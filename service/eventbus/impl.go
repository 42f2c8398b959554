// Package eventbus fans settlement events out to subscribers on a worker
// pool. Publishing never blocks a settlement on a slow subscriber and a
// panicking subscriber never takes the process down.
package eventbus

import (
	"sync"
	"time"

	"github.com/viney-shih/goroutines"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/domain/exchange"
)

const scheduleTimeout = 3 * time.Second

type impl struct {
	pool *goroutines.Pool
	subs []exchange.Subscriber
	wg   sync.WaitGroup
}

func New(subscribers ...exchange.Subscriber) exchange.Dispatcher {
	return &impl{
		pool: goroutines.NewPool(32, goroutines.WithTaskQueueLength(1024), goroutines.WithPreAllocWorkers(8)),
		subs: subscribers,
	}
}

func (im *impl) Publish(c ctx.Ctx, event interface{}) {
	for _, sub := range im.subs {
		sub := sub
		im.wg.Add(1)
		err := im.pool.ScheduleWithTimeout(scheduleTimeout, func() {
			defer im.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					c.WithField("err", r).Error("event subscriber panicked")
				}
			}()
			sub.HandleEvent(c, event)
		})
		if err != nil {
			im.wg.Done()
			c.WithField("err", err).Error("failed to schedule event delivery")
		}
	}
}

// Close waits for in-flight deliveries and stops the pool.
func (im *impl) Close() {
	im.wg.Wait()
	im.pool.Release()
}
