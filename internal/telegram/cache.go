// Package telegram – client factory and per-credential cache.
package telegram

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

// Factory hands out transport clients cached per credential. Cache keys
// include the process start time and the transport mode, so a restart or a
// mode change can never serve a stale client. Entries expire after a fixed
// TTL; expired entries are swept only when the cache reaches its size cap,
// which keeps the read path free of allocation and scheduling work.
type Factory struct {
	mode    string
	timeout time.Duration
	maxSize int
	bootAt  time.Time
	cache   *gocache.Cache
}

// NewFactory builds a Factory.
//
//   - mode: ModeAuto, ModeSDK, or ModeHTTP
//   - timeout: per-request bound applied by both transports
//   - ttl: cache lifetime of one client
//   - maxSize: cap above which expired entries are swept before insert
func NewFactory(mode string, timeout, ttl time.Duration, maxSize int) *Factory {
	switch mode {
	case ModeAuto, ModeSDK, ModeHTTP:
	default:
		mode = ModeAuto
	}
	if maxSize <= 0 {
		maxSize = 256
	}
	return &Factory{
		mode:    mode,
		timeout: timeout,
		maxSize: maxSize,
		bootAt:  time.Now(),
		// No janitor goroutine: expiry is checked on read, swept on insert.
		cache: gocache.New(ttl, 0),
	}
}

// Client returns the cached transport for the credential, building one on
// first use.
func (f *Factory) Client(token string) Client {
	key := fmt.Sprintf("%d|%s|%s", f.bootAt.UnixNano(), f.mode, token)
	if v, ok := f.cache.Get(key); ok {
		return v.(Client)
	}
	c := f.build(token)
	if f.cache.ItemCount() >= f.maxSize {
		f.cache.DeleteExpired()
	}
	f.cache.Set(key, c, gocache.DefaultExpiration)
	return c
}

// build selects the transport. The SDK path is attempted first unless the
// mode pins raw HTTP; SDK construction failure (bad token, unreachable API,
// missing SDK capability) falls back to the raw client, which implements
// the same contract.
func (f *Factory) build(token string) Client {
	if f.mode != ModeHTTP {
		sdk, err := newSDKClient(token, f.timeout)
		if err == nil {
			return sdk
		}
		if f.mode == ModeSDK {
			log.Warn().Err(err).Msg("telegram: sdk transport pinned but unavailable, using raw http")
		} else {
			log.Debug().Err(err).Msg("telegram: sdk transport unavailable, using raw http")
		}
	}
	return newHTTPClient(token, f.timeout)
}
