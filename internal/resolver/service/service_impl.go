package service

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	basepricedomain "github.com/transitbase/faretable/internal/baseprice/domain"
	"github.com/transitbase/faretable/internal/cache"
	catalogdomain "github.com/transitbase/faretable/internal/catalog/domain"
	clientpricedomain "github.com/transitbase/faretable/internal/clientprice/domain"
	"github.com/transitbase/faretable/internal/config"
	"github.com/transitbase/faretable/internal/observability/metrics"
	resolverdomain "github.com/transitbase/faretable/internal/resolver/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Catalog   catalogdomain.Reader
	Base      basepricedomain.Reader
	Overrides clientpricedomain.Reader
	Policy    *config.PricingPolicyHolder
	Lookups   cache.ServiceLookupCache `optional:"true"`
	Metrics   *metrics.Metrics         `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	catalog   catalogdomain.Reader
	base      basepricedomain.Reader
	overrides clientpricedomain.Reader
	policy    *config.PricingPolicyHolder
	lookups   cache.ServiceLookupCache
	metrics   *metrics.Metrics
}

func New(p Params) resolverdomain.Service {
	return &Service{
		log:       p.Log.Named("resolver.service"),
		catalog:   p.Catalog,
		base:      p.Base,
		overrides: p.Overrides,
		policy:    p.Policy,
		lookups:   p.Lookups,
		metrics:   p.Metrics,
	}
}

type comboKey struct {
	RateID        snowflake.ID
	VehicleTypeID snowflake.ID
}

// Resolve computes the fare sheet for a query. It never returns a backend
// failure to the caller: lookups that time out or error produce an empty
// result plus a correlateable warn event, so the calling surface can keep
// rendering.
func (s *Service) Resolve(ctx context.Context, q resolverdomain.Query) (*resolverdomain.Result, error) {
	policy := s.policy.Get()
	ctx, cancel := context.WithTimeout(ctx, policy.ResolveTimeout)
	defer cancel()

	empty := &resolverdomain.Result{Prices: []resolverdomain.ResolvedPrice{}, Currency: policy.Currency}

	serviceID, err := parseID(q.ServiceID)
	if err != nil {
		return empty, nil
	}
	var rateFilter, vehicleFilter *snowflake.ID
	if strings.TrimSpace(q.RateID) != "" {
		id, err := parseID(q.RateID)
		if err != nil {
			return empty, nil
		}
		rateFilter = &id
	}
	if strings.TrimSpace(q.VehicleTypeID) != "" {
		id, err := parseID(q.VehicleTypeID)
		if err != nil {
			return empty, nil
		}
		vehicleFilter = &id
	}

	svc, err := s.findService(ctx, serviceID)
	if err != nil {
		return s.degrade(ctx, empty, q, "catalog", err), nil
	}
	if !svc.Exists() {
		return empty, nil
	}

	var (
		base     []basepricedomain.RatePrice
		strategy string
	)
	for _, st := range strategiesFor(svc, rateFilter) {
		base, err = s.base.ActivePrices(ctx, serviceID, st.rateID, vehicleFilter)
		if err != nil {
			return s.degrade(ctx, empty, q, "base_prices", err), nil
		}
		if len(base) > 0 {
			strategy = st.name
			break
		}
	}
	if len(base) == 0 {
		return empty, nil
	}

	clientID := strings.TrimSpace(q.ClientID)
	overridesByCombo := map[comboKey]*clientpricedomain.ClientPrice{}
	if clientID != "" {
		rows, err := s.overrides.ActiveOverrides(ctx, clientID, serviceID)
		if err != nil {
			return s.degrade(ctx, empty, q, "overrides", err), nil
		}
		for i := range rows {
			row := rows[i]
			overridesByCombo[comboKey{row.RateID, row.VehicleTypeID}] = &row
		}
	}

	rateIDs := make([]snowflake.ID, 0, len(base))
	vehicleIDs := make([]snowflake.ID, 0, len(base))
	for _, row := range base {
		rateIDs = append(rateIDs, row.RateID)
		vehicleIDs = append(vehicleIDs, row.VehicleTypeID)
	}
	rates, err := s.catalog.RatesByID(ctx, rateIDs)
	if err != nil {
		return s.degrade(ctx, empty, q, "catalog", err), nil
	}
	vehicles, err := s.catalog.VehicleTypesByID(ctx, vehicleIDs)
	if err != nil {
		return s.degrade(ctx, empty, q, "catalog", err), nil
	}

	prices := make([]resolverdomain.ResolvedPrice, 0, len(base))
	for _, row := range base {
		rate, ok := rates[row.RateID]
		if !ok {
			continue
		}
		vehicle, ok := vehicles[row.VehicleTypeID]
		if !ok {
			continue
		}
		line := resolverdomain.ResolvedPrice{
			Rate:           resolverdomain.RateView{ID: rate.ID, Name: rate.Name, Code: rate.Code},
			VehicleType:    resolverdomain.VehicleTypeView{ID: vehicle.ID, Name: vehicle.Name, Code: vehicle.Code, Capacity: vehicle.Capacity},
			PriceCents:     row.PriceCents,
			BasePriceCents: row.PriceCents,
			Currency:       policy.Currency,
		}
		if ov, ok := overridesByCombo[comboKey{row.RateID, row.VehicleTypeID}]; ok {
			line.PriceCents = ov.PriceCents
			line.IsClientPrice = true
			if ov.BasePriceCents != nil {
				line.BasePriceCents = *ov.BasePriceCents
			}
		}
		prices = append(prices, line)
	}

	sort.Slice(prices, func(i, j int) bool {
		if prices[i].Rate.Name != prices[j].Rate.Name {
			return prices[i].Rate.Name < prices[j].Rate.Name
		}
		return prices[i].VehicleType.Name < prices[j].VehicleType.Name
	})

	if s.metrics != nil {
		s.metrics.RecordResolution(ctx, strategy, clientID != "")
	}
	return &resolverdomain.Result{Prices: prices, Strategy: strategy, Currency: policy.Currency}, nil
}

// OrphanOverrides lists open overrides whose (rate, vehicle type)
// combination no longer has a default fare. They never surface in Resolve;
// this is the diagnostic view for operators cleaning them up.
func (s *Service) OrphanOverrides(ctx context.Context, serviceIDRaw, clientID string) ([]clientpricedomain.ClientPrice, error) {
	serviceID, err := parseID(serviceIDRaw)
	if err != nil {
		return nil, clientpricedomain.ErrInvalidID
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, clientpricedomain.ErrInvalidClient
	}

	rows, err := s.overrides.ActiveOverrides(ctx, clientID, serviceID)
	if err != nil {
		return nil, err
	}
	base, err := s.base.ActivePrices(ctx, serviceID, nil, nil)
	if err != nil {
		return nil, err
	}
	priced := make(map[comboKey]struct{}, len(base))
	for _, row := range base {
		priced[comboKey{row.RateID, row.VehicleTypeID}] = struct{}{}
	}

	orphans := make([]clientpricedomain.ClientPrice, 0)
	for _, row := range rows {
		if _, ok := priced[comboKey{row.RateID, row.VehicleTypeID}]; !ok {
			orphans = append(orphans, row)
		}
	}
	return orphans, nil
}

// degrade logs one warn event with a fresh event id and swallows the cause.
func (s *Service) degrade(ctx context.Context, empty *resolverdomain.Result, q resolverdomain.Query, stage string, cause error) *resolverdomain.Result {
	eventID := ulid.Make().String()
	s.log.Warn("price resolution degraded",
		zap.String("event_id", eventID),
		zap.String("stage", stage),
		zap.String("service_id", q.ServiceID),
		zap.String("client_id", q.ClientID),
		zap.Error(cause),
	)
	if s.metrics != nil {
		s.metrics.RecordResolutionDegraded(ctx, stage)
	}
	return empty
}

// findService consults the lookup cache first; only live rows are cached.
func (s *Service) findService(ctx context.Context, id snowflake.ID) (*catalogdomain.TransitService, error) {
	if s.lookups != nil {
		if svc, ok := s.lookups.GetService(id); ok {
			return svc, nil
		}
	}
	svc, err := s.catalog.FindService(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.lookups != nil && svc.Exists() {
		s.lookups.SetService(svc)
	}
	return svc, nil
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
