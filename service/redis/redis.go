package redis

import (
	"time"

	"github.com/gomodule/redigo/redis"
	"golang.org/x/xerrors"

	"github.com/modx-xyz/exchange/base/ctx"
)

// Forever means the key never expires.
const Forever = time.Duration(-1)

var (
	ErrNotFound = redis.ErrNil
	ErrNoTTL    = xerrors.New("redis: key has no ttl")
	ErrGapTime  = xerrors.New("redis: no pool available")
)

// Service is the redis surface the exchange uses: plain KV for the layered
// cache and counters for rate bookkeeping.
type Service interface {
	Get(c ctx.Ctx, key string) ([]byte, error)
	Set(c ctx.Ctx, key string, val []byte, expire time.Duration) error
	// SetNX sets the key only when absent, for lightweight locks.
	SetNX(c ctx.Ctx, key string, val []byte, expire time.Duration) error
	Del(c ctx.Ctx, keys ...string) (int, error)
	Exists(c ctx.Ctx, key string) (bool, error)
	// TTL returns ErrNotFound when the key is missing and ErrNoTTL when it
	// has no expire.
	TTL(c ctx.Ctx, key string) (int, error)
	Incr(c ctx.Ctx, key string) (int64, error)
	Incrby(c ctx.Ctx, key string, val int) (int64, error)

	GetConn() (redis.Conn, error)
	Name() string
}
