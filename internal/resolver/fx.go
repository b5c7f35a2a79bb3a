package resolver

import (
	"github.com/transitbase/faretable/internal/cache"
	"github.com/transitbase/faretable/internal/resolver/service"
	"go.uber.org/fx"
)

var Module = fx.Module("resolver.service",
	fx.Provide(cache.NewServiceLookupCache),
	fx.Provide(service.New),
)
