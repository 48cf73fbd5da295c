// ratelimit ограничивает частоту запросов к /login/* по ключу (обычно IP клиента).
//
// Две реализации:
//   - Redis (fixed window: INCR + EXPIRE) - общий лимит для нескольких инстансов;
//   - в памяти процесса (token bucket на golang.org/x/time/rate) - когда Redis не сконфигурирован.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter - контракт ограничителя.
type Limiter interface {
	// Allow учитывает запрос по ключу и сообщает, укладывается ли он в лимит.
	Allow(ctx context.Context, key string) (bool, error)
	// Close освобождает ресурсы.
	Close() error
}

// defaultPrefix - префикс ключей в Redis.
const defaultPrefix = "fromboo:rl:"

type redisLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRedis создаёт клиент Redis из URL (например, redis://:pass@host:6379/0) и проверяет соединение.
func NewRedis(ctx context.Context, redisURL string, limit int, window time.Duration) (Limiter, error) {
	const op = "ratelimit.NewRedis"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewRedisWithClient(rdb, limit, window), nil
}

// NewRedisWithClient оборачивает готовый клиент.
func NewRedisWithClient(rdb *redis.Client, limit int, window time.Duration) Limiter {
	return &redisLimiter{
		rdb:    rdb,
		prefix: defaultPrefix,
		limit:  int64(limit),
		window: window,
	}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	const op = "ratelimit.redis.Allow"

	k := l.prefix + key

	// INCR и EXPIRE NX в одной транзакции: окно начинается с первого запроса,
	// а ключ без TTL (например, после сбоя) получает его при следующем обращении.
	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return incr.Val() <= l.limit, nil
}

func (l *redisLimiter) Close() error { return l.rdb.Close() }

// idleTTL - сколько хранится корзина без запросов.
const idleTTL = 5 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

type localLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	every     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

// NewLocal создаёт ограничитель в памяти процесса: limit запросов за window,
// с равномерным восполнением и всплеском до limit.
func NewLocal(limit int, window time.Duration) Limiter {
	return newLocal(limit, window, time.Now)
}

func newLocal(limit int, window time.Duration, now func() time.Time) *localLimiter {
	every := rate.Inf
	if window > 0 && limit > 0 {
		every = rate.Every(window / time.Duration(limit))
	}

	return &localLimiter{
		buckets:   make(map[string]*bucket),
		every:     every,
		burst:     limit,
		now:       now,
		lastSweep: now(),
	}
}

func (l *localLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now

	return b.lim.AllowN(now, 1), nil
}

// sweep удаляет простаивающие корзины не чаще раза в idleTTL.
func (l *localLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleTTL {
		return
	}

	for k, b := range l.buckets {
		if now.Sub(b.seen) > idleTTL {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}

func (l *localLimiter) Close() error { return nil }
