package enrichment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// MaxRequestsPerSecond caps calls to the remote source.
const MaxRequestsPerSecond = 1.0

// Source looks up the reputation of an address remotely.
type Source interface {
	Check(ctx context.Context, ip string) (Reputation, error)
}

// Enricher resolves reputations cache first, falling back to a Source.
type Enricher struct {
	cache   *Cache
	source  Source
	limiter *rate.Limiter
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithSource sets the remote source consulted on cache misses.
func WithSource(s Source) Option {
	return func(e *Enricher) {
		e.source = s
	}
}

// WithRate sets the remote call rate. Values above MaxRequestsPerSecond
// are clamped.
func WithRate(perSecond float64) Option {
	return func(e *Enricher) {
		if perSecond <= 0 || perSecond > MaxRequestsPerSecond {
			perSecond = MaxRequestsPerSecond
		}
		e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewEnricher creates an enricher. cache may be nil.
func NewEnricher(cache *Cache, opts ...Option) *Enricher {
	e := &Enricher{
		cache:   cache,
		limiter: rate.NewLimiter(rate.Limit(MaxRequestsPerSecond), 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Lookup returns the reputation of ip. Source failures degrade to Unknown
// and are not cached. Only cache and context errors are returned.
func (e *Enricher) Lookup(ctx context.Context, ip string) (Reputation, error) {
	if e.cache != nil {
		rep, ok, err := e.cache.Get(ctx, ip)
		if err != nil {
			return Reputation{}, err
		}
		if ok {
			log.Debug().Str("ip", ip).Msg("reputation cache hit")
			return rep, nil
		}
		log.Debug().Str("ip", ip).Msg("reputation cache miss")
	}

	if e.source == nil {
		return Unknown(ip), nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return Reputation{}, fmt.Errorf("wait for reputation quota: %w", err)
	}

	rep, err := e.source.Check(ctx, ip)
	if err != nil {
		log.Warn().Err(err).Str("ip", ip).Msg("reputation lookup failed")
		return Unknown(ip), nil
	}
	rep.IP = ip

	if e.cache != nil {
		if err := e.cache.Put(ctx, rep); err != nil {
			return Reputation{}, err
		}
	}
	return rep, nil
}

// LookupAll resolves every address in order, stopping at the first error.
func (e *Enricher) LookupAll(ctx context.Context, ips []string) (map[string]Reputation, error) {
	out := make(map[string]Reputation, len(ips))
	for _, ip := range ips {
		rep, err := e.Lookup(ctx, ip)
		if err != nil {
			return out, err
		}
		out[ip] = rep
	}
	return out, nil
}
