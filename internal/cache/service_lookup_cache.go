package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/transitbase/faretable/internal/catalog/domain"
)

const defaultServiceTTL = 45 * time.Second

// ServiceLookupCache stores hot-path service lookups for price resolution.
// Only positive lookups are cached; a deleted service drops out after the
// TTL at the latest.
type ServiceLookupCache interface {
	GetService(id snowflake.ID) (*catalogdomain.TransitService, bool)
	SetService(svc *catalogdomain.TransitService)
}

type serviceLookupCache struct {
	services Cache[snowflake.ID, *catalogdomain.TransitService]
	ttl      time.Duration
}

// NewServiceLookupCache returns an in-memory cache tuned for the resolver
// read path.
func NewServiceLookupCache() ServiceLookupCache {
	return &serviceLookupCache{
		services: NewTTLCache[snowflake.ID, *catalogdomain.TransitService](),
		ttl:      defaultServiceTTL,
	}
}

func (c *serviceLookupCache) GetService(id snowflake.ID) (*catalogdomain.TransitService, bool) {
	return c.services.Get(id)
}

func (c *serviceLookupCache) SetService(svc *catalogdomain.TransitService) {
	if !svc.Exists() {
		return
	}
	c.services.Set(svc.ID, svc, c.ttl)
}
