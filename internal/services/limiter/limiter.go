package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// pacerCleanupInterval is how often idle pacers are evicted
const pacerCleanupInterval = 5 * time.Minute

// WaitObserver receives how long a call waited for its slot
type WaitObserver interface {
	ObserveLimiterWait(key string, d time.Duration)
}

// keyQueue tracks the holder and FIFO waiters of one key
type keyQueue struct {
	busy    bool
	waiters []chan struct{}
	pacer   *rate.Limiter
}

// Limiter serializes calls that share a key. Calls with the same key run one
// at a time in submission order; calls with different keys run independently.
type Limiter struct {
	mu          sync.Mutex
	queues      map[string]*keyQueue
	pacers      *cache.Cache // nil when pacing is off
	minInterval time.Duration
	observer    WaitObserver
	logger      *logrus.Logger
}

// New creates a new limiter. A positive minInterval spaces out the start of
// consecutive calls under the same key.
func New(minInterval time.Duration, observer WaitObserver, logger *logrus.Logger) *Limiter {
	l := &Limiter{
		queues:      make(map[string]*keyQueue),
		minInterval: minInterval,
		observer:    observer,
		logger:      logger,
	}
	// A pacer left alone for minInterval has a full token again, so it can be
	// dropped and recreated on the next call
	if minInterval > 0 {
		l.pacers = cache.New(minInterval, pacerCleanupInterval)
	}
	return l
}

// Do runs fn once every earlier call queued under key has finished
func (l *Limiter) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	start := time.Now()
	pacer, err := l.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer l.release(key)

	if pacer != nil {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		l.pacers.Set(key, pacer, cache.DefaultExpiration)
	}

	waited := time.Since(start)
	if l.observer != nil {
		l.observer.ObserveLimiterWait(key, waited)
	}
	if waited > time.Second {
		l.logger.WithFields(logrus.Fields{
			"key":    key,
			"waited": waited.Round(time.Millisecond),
		}).Debug("Extractor slot acquired after waiting")
	}

	return fn(ctx)
}

// Run is Do for functions returning a value
func Run[T any](ctx context.Context, l *Limiter, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := l.Do(ctx, key, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

// acquire blocks until the caller owns the slot for key
func (l *Limiter) acquire(ctx context.Context, key string) (*rate.Limiter, error) {
	l.mu.Lock()
	q, ok := l.queues[key]
	if !ok {
		q = &keyQueue{pacer: l.pacerFor(key)}
		l.queues[key] = q
	}
	if !q.busy {
		q.busy = true
		l.mu.Unlock()
		return q.pacer, nil
	}

	ready := make(chan struct{})
	q.waiters = append(q.waiters, ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return q.pacer, nil
	case <-ctx.Done():
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, w := range q.waiters {
			if w == ready {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				return nil, ctx.Err()
			}
		}
		// The slot was handed over while cancelling; pass it on
		l.handOff(key, q)
		return nil, ctx.Err()
	}
}

// release gives the slot to the next waiter or frees the key
func (l *Limiter) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if q, ok := l.queues[key]; ok {
		l.handOff(key, q)
	}
}

// handOff must be called with l.mu held by the current slot owner
func (l *Limiter) handOff(key string, q *keyQueue) {
	if len(q.waiters) > 0 {
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		close(next)
		return
	}
	q.busy = false
	delete(l.queues, key)
}

// pacerFor returns the rate limiter of a key, or nil when pacing is off
func (l *Limiter) pacerFor(key string) *rate.Limiter {
	if l.pacers == nil {
		return nil
	}
	if p, ok := l.pacers.Get(key); ok {
		return p.(*rate.Limiter)
	}
	p := rate.NewLimiter(rate.Every(l.minInterval), 1)
	l.pacers.Set(key, p, cache.DefaultExpiration)
	return p
}

// Pending returns the number of calls holding or waiting for key
func (l *Limiter) Pending(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, ok := l.queues[key]
	if !ok {
		return 0
	}
	n := len(q.waiters)
	if q.busy {
		n++
	}
	return n
}
