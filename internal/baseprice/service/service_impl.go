package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	basepricedomain "github.com/transitbase/faretable/internal/baseprice/domain"
	catalogdomain "github.com/transitbase/faretable/internal/catalog/domain"
	"github.com/transitbase/faretable/internal/clock"
	"github.com/transitbase/faretable/internal/config"
	"github.com/transitbase/faretable/pkg/db/option"
	"github.com/transitbase/faretable/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Catalog catalogdomain.Reader
	Policy  *config.PricingPolicyHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	catalog catalogdomain.Reader
	policy  *config.PricingPolicyHolder

	prices repository.Repository[basepricedomain.RatePrice]
}

func newService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("baseprice.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		catalog: p.Catalog,
		policy:  p.Policy,
		prices:  repository.ProvideStore[basepricedomain.RatePrice](p.DB),
	}
}

func New(p Params) basepricedomain.Service {
	return newService(p)
}

func NewReader(p Params) basepricedomain.Reader {
	return newService(p)
}

// SetRatePrice upserts the default fare for one (service, rate, vehicle type)
// combination. An existing active row for the combination is retired before
// the replacement is inserted, keeping the single-active invariant.
func (s *Service) SetRatePrice(ctx context.Context, req basepricedomain.SetRatePriceRequest) (*basepricedomain.RatePrice, error) {
	if req.PriceCents < 0 {
		return nil, basepricedomain.ErrInvalidPrice
	}

	serviceID, err := parseID(req.ServiceID)
	if err != nil {
		return nil, basepricedomain.ErrInvalidID
	}
	rateID, err := parseID(req.RateID)
	if err != nil {
		return nil, basepricedomain.ErrInvalidID
	}
	vehicleTypeID, err := parseID(req.VehicleTypeID)
	if err != nil {
		return nil, basepricedomain.ErrInvalidID
	}

	svc, err := s.catalog.FindService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Exists() {
		return nil, basepricedomain.ErrUnknownService
	}
	rates, err := s.catalog.RatesByID(ctx, []snowflake.ID{rateID})
	if err != nil {
		return nil, err
	}
	if _, ok := rates[rateID]; !ok {
		return nil, basepricedomain.ErrUnknownRate
	}
	vehicles, err := s.catalog.VehicleTypesByID(ctx, []snowflake.ID{vehicleTypeID})
	if err != nil {
		return nil, err
	}
	if _, ok := vehicles[vehicleTypeID]; !ok {
		return nil, basepricedomain.ErrUnknownVehicleType
	}

	now := s.clock.Now().UTC()
	entity := &basepricedomain.RatePrice{
		ID:            s.genID.Generate(),
		ServiceID:     serviceID,
		RateID:        rateID,
		VehicleTypeID: vehicleTypeID,
		PriceCents:    req.PriceCents,
		Currency:      s.policy.Get().Currency,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.prices.WithTrx(tx)
		if _, err := store.UpdateWhere(ctx, map[string]any{
			"active":     false,
			"deleted_at": now,
			"updated_at": now,
		}, "service_id = ? AND rate_id = ? AND vehicle_type_id = ? AND active AND deleted_at IS NULL",
			serviceID, rateID, vehicleTypeID,
		); err != nil {
			return err
		}
		return store.Create(ctx, entity)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("rate price set",
		zap.String("service_id", serviceID.String()),
		zap.String("rate_id", rateID.String()),
		zap.String("vehicle_type_id", vehicleTypeID.String()),
		zap.Int64("price_cents", req.PriceCents),
	)
	return entity, nil
}

func (s *Service) ListRatePrices(ctx context.Context, req basepricedomain.ListRatePricesRequest) ([]basepricedomain.RatePrice, error) {
	serviceID, err := parseID(req.ServiceID)
	if err != nil {
		return nil, basepricedomain.ErrInvalidID
	}

	opts := []option.QueryOption{
		option.WithWhere("active AND deleted_at IS NULL"),
		option.WithOrder("rate_id, vehicle_type_id"),
	}
	if strings.TrimSpace(req.RateID) != "" {
		rateID, err := parseID(req.RateID)
		if err != nil {
			return nil, basepricedomain.ErrInvalidID
		}
		opts = append(opts, option.WithWhere("rate_id = ?", rateID))
	}
	if strings.TrimSpace(req.VehicleTypeID) != "" {
		vehicleTypeID, err := parseID(req.VehicleTypeID)
		if err != nil {
			return nil, basepricedomain.ErrInvalidID
		}
		opts = append(opts, option.WithWhere("vehicle_type_id = ?", vehicleTypeID))
	}

	items, err := s.prices.Find(ctx, &basepricedomain.RatePrice{ServiceID: serviceID}, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]basepricedomain.RatePrice, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) DeleteRatePrice(ctx context.Context, id string) error {
	entityID, err := parseID(id)
	if err != nil {
		return basepricedomain.ErrInvalidID
	}
	now := s.clock.Now().UTC()
	affected, err := s.prices.UpdateWhere(ctx, map[string]any{
		"active":     false,
		"deleted_at": now,
		"updated_at": now,
	}, "id = ? AND deleted_at IS NULL", entityID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return basepricedomain.ErrNotFound
	}
	return nil
}

// ActivePrices implements the resolver read contract.
func (s *Service) ActivePrices(ctx context.Context, serviceID snowflake.ID, rateID, vehicleTypeID *snowflake.ID) ([]basepricedomain.RatePrice, error) {
	opts := []option.QueryOption{
		option.WithWhere("active AND deleted_at IS NULL"),
	}
	if rateID != nil {
		opts = append(opts, option.WithWhere("rate_id = ?", *rateID))
	}
	if vehicleTypeID != nil {
		opts = append(opts, option.WithWhere("vehicle_type_id = ?", *vehicleTypeID))
	}

	items, err := s.prices.Find(ctx, &basepricedomain.RatePrice{ServiceID: serviceID}, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]basepricedomain.RatePrice, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
