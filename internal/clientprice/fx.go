package clientprice

import (
	"github.com/transitbase/faretable/internal/clientprice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("clientprice.service",
	fx.Provide(service.New),
	fx.Provide(service.NewReader),
)
