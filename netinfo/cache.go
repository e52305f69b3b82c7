package netinfo

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
)

const DefaultCacheSize = 50000

// CachingResolver wraps a Resolver with per-day LRU caches. Workers hold one
// each, so no locking beyond what the LRU provides is needed.
type CachingResolver struct {
	inner   Resolver
	ipCache *lru.Cache
	asCache *lru.Cache
}

func NewCachingResolver(inner Resolver, size int) *CachingResolver {
	ipCache, err := lru.New(size)
	if err != nil {
		log.Error().Msgf("error creating ip lookup cache: %s", err)
		return &CachingResolver{inner: inner}
	}
	asCache, err := lru.New(size)
	if err != nil {
		log.Error().Msgf("error creating asn lookup cache: %s", err)
		return &CachingResolver{inner: inner}
	}
	return &CachingResolver{inner: inner, ipCache: ipCache, asCache: asCache}
}

func dayKey(ts time.Time, suffix string) string {
	return fmt.Sprintf("%s/%s", ts.Format("2006-01-02"), suffix)
}

func (c *CachingResolver) LookupIP(ts time.Time, ip string) *IPInfo {
	if c.ipCache == nil {
		return c.inner.LookupIP(ts, ip)
	}
	k := dayKey(ts, ip)
	if v, ok := c.ipCache.Get(k); ok {
		info, _ := v.(*IPInfo)
		return info
	}
	info := c.inner.LookupIP(ts, ip)
	c.ipCache.Add(k, info)
	return info
}

func (c *CachingResolver) LookupASN(ts time.Time, asn int) *ASInfo {
	if c.asCache == nil {
		return c.inner.LookupASN(ts, asn)
	}
	k := dayKey(ts, fmt.Sprintf("AS%d", asn))
	if v, ok := c.asCache.Get(k); ok {
		info, _ := v.(*ASInfo)
		return info
	}
	info := c.inner.LookupASN(ts, asn)
	c.asCache.Add(k, info)
	return info
}
