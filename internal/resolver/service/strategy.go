package service

import (
	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/transitbase/faretable/internal/catalog/domain"
)

// lookupStrategy is one attempt in the fallback chain. A nil rateID matches
// every rate.
type lookupStrategy struct {
	name   string
	rateID *snowflake.ID
}

const (
	strategyAllRates      = "all_rates"
	strategyRequestedRate = "requested_rate"
	strategyDefaultRate   = "default_rate"
)

// strategiesFor orders the base fare lookups: the requested rate first, then
// the service's default rate, and finally every rate the service prices, so a
// filter on an unpriced rate still surfaces whatever fares exist.
func strategiesFor(svc *catalogdomain.TransitService, requested *snowflake.ID) []lookupStrategy {
	if requested == nil {
		return []lookupStrategy{{name: strategyAllRates}}
	}
	out := []lookupStrategy{{name: strategyRequestedRate, rateID: requested}}
	if svc.DefaultRateID != 0 && svc.DefaultRateID != *requested {
		fallback := svc.DefaultRateID
		out = append(out, lookupStrategy{name: strategyDefaultRate, rateID: &fallback})
	}
	return append(out, lookupStrategy{name: strategyAllRates})
}
