package baseprice

import (
	"github.com/transitbase/faretable/internal/baseprice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("baseprice.service",
	fx.Provide(service.New),
	fx.Provide(service.NewReader),
)
