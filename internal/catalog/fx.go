package catalog

import (
	"github.com/transitbase/faretable/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(service.New),
	fx.Provide(service.NewReader),
)
