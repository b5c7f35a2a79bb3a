package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	catalogdomain "github.com/transitbase/faretable/internal/catalog/domain"
	"github.com/transitbase/faretable/internal/clock"
	"github.com/transitbase/faretable/pkg/db/option"
	"github.com/transitbase/faretable/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	pois     repository.Repository[catalogdomain.Poi]
	vehicles repository.Repository[catalogdomain.VehicleType]
	rates    repository.Repository[catalogdomain.Rate]
	services repository.Repository[catalogdomain.TransitService]
}

func newService(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,

		pois:     repository.ProvideStore[catalogdomain.Poi](p.DB),
		vehicles: repository.ProvideStore[catalogdomain.VehicleType](p.DB),
		rates:    repository.ProvideStore[catalogdomain.Rate](p.DB),
		services: repository.ProvideStore[catalogdomain.TransitService](p.DB),
	}
}

func New(p Params) catalogdomain.Service {
	return newService(p)
}

// NewReader exposes the same backing stores through the resolver's read
// contract.
func NewReader(p Params) catalogdomain.Reader {
	return newService(p)
}

func (s *Service) CreatePoi(ctx context.Context, req catalogdomain.CreatePoiRequest) (*catalogdomain.Poi, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}

	now := s.clock.Now().UTC()
	entity := &catalogdomain.Poi{
		ID:        s.genID.Generate(),
		Name:      name,
		Code:      codeOrSlug(req.Code, name),
		Zone:      strings.TrimSpace(req.Zone),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.pois.Create(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *Service) ListPois(ctx context.Context) ([]catalogdomain.Poi, error) {
	items, err := s.pois.Find(ctx, &catalogdomain.Poi{},
		option.WithWhere("deleted_at IS NULL"),
		option.WithOrder("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) DeletePoi(ctx context.Context, id string) error {
	return softDelete(ctx, s.pois, id, s.clock.Now().UTC())
}

func (s *Service) CreateVehicleType(ctx context.Context, req catalogdomain.CreateVehicleTypeRequest) (*catalogdomain.VehicleType, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	capacity := req.Capacity
	if capacity == 0 {
		capacity = 4
	}
	if capacity < 0 {
		return nil, catalogdomain.ErrInvalidCapacity
	}

	now := s.clock.Now().UTC()
	entity := &catalogdomain.VehicleType{
		ID:        s.genID.Generate(),
		Name:      name,
		Code:      codeOrSlug(req.Code, name),
		Capacity:  capacity,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.vehicles.Create(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *Service) ListVehicleTypes(ctx context.Context) ([]catalogdomain.VehicleType, error) {
	items, err := s.vehicles.Find(ctx, &catalogdomain.VehicleType{},
		option.WithWhere("deleted_at IS NULL"),
		option.WithOrder("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) DeleteVehicleType(ctx context.Context, id string) error {
	return softDelete(ctx, s.vehicles, id, s.clock.Now().UTC())
}

func (s *Service) CreateRate(ctx context.Context, req catalogdomain.CreateRateRequest) (*catalogdomain.Rate, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}

	now := s.clock.Now().UTC()
	entity := &catalogdomain.Rate{
		ID:        s.genID.Generate(),
		Name:      name,
		Code:      codeOrSlug(req.Code, name),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.rates.Create(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *Service) ListRates(ctx context.Context) ([]catalogdomain.Rate, error) {
	items, err := s.rates.Find(ctx, &catalogdomain.Rate{},
		option.WithWhere("deleted_at IS NULL"),
		option.WithOrder("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) DeleteRate(ctx context.Context, id string) error {
	return softDelete(ctx, s.rates, id, s.clock.Now().UTC())
}

func (s *Service) CreateService(ctx context.Context, req catalogdomain.CreateServiceRequest) (*catalogdomain.TransitService, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}

	destinationID, err := parseID(req.DestinationID)
	if err != nil {
		return nil, catalogdomain.ErrInvalidDestination
	}
	destination, err := s.pois.FindOne(ctx, &catalogdomain.Poi{ID: destinationID},
		option.WithWhere("deleted_at IS NULL"))
	if err != nil {
		return nil, err
	}
	if destination == nil {
		return nil, catalogdomain.ErrInvalidDestination
	}

	var originID *snowflake.ID
	if req.OriginID != nil && strings.TrimSpace(*req.OriginID) != "" {
		parsed, err := parseID(*req.OriginID)
		if err != nil {
			return nil, catalogdomain.ErrInvalidOrigin
		}
		origin, err := s.pois.FindOne(ctx, &catalogdomain.Poi{ID: parsed},
			option.WithWhere("deleted_at IS NULL"))
		if err != nil {
			return nil, err
		}
		if origin == nil {
			return nil, catalogdomain.ErrInvalidOrigin
		}
		originID = &parsed
	}

	rateID, err := parseID(req.DefaultRateID)
	if err != nil {
		return nil, catalogdomain.ErrInvalidRate
	}
	rate, err := s.rates.FindOne(ctx, &catalogdomain.Rate{ID: rateID},
		option.WithWhere("deleted_at IS NULL"))
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, catalogdomain.ErrInvalidRate
	}

	now := s.clock.Now().UTC()
	entity := &catalogdomain.TransitService{
		ID:            s.genID.Generate(),
		Name:          name,
		Code:          codeOrSlug(req.Code, name),
		OriginID:      originID,
		DestinationID: destinationID,
		DefaultRateID: rateID,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Metadata != nil {
		entity.Metadata = datatypes.JSONMap(req.Metadata)
	}
	if err := s.services.Create(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *Service) ListServices(ctx context.Context) ([]catalogdomain.TransitService, error) {
	items, err := s.services.Find(ctx, &catalogdomain.TransitService{},
		option.WithWhere("deleted_at IS NULL"),
		option.WithOrder("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	return deref(items), nil
}

func (s *Service) GetService(ctx context.Context, id string) (*catalogdomain.TransitService, error) {
	serviceID, err := parseID(id)
	if err != nil {
		return nil, catalogdomain.ErrInvalidID
	}
	entity, err := s.FindService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, catalogdomain.ErrNotFound
	}
	return entity, nil
}

func (s *Service) DeleteService(ctx context.Context, id string) error {
	return softDelete(ctx, s.services, id, s.clock.Now().UTC())
}

// FindService implements the resolver read contract; soft-deleted rows
// resolve to nil, not an error.
func (s *Service) FindService(ctx context.Context, id snowflake.ID) (*catalogdomain.TransitService, error) {
	return s.services.FindOne(ctx, &catalogdomain.TransitService{ID: id},
		option.WithWhere("deleted_at IS NULL"))
}

func (s *Service) VehicleTypesByID(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]catalogdomain.VehicleType, error) {
	out := make(map[snowflake.ID]catalogdomain.VehicleType, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	items, err := s.vehicles.Find(ctx, &catalogdomain.VehicleType{},
		option.WithWhere("id IN ?", ids),
		option.WithWhere("deleted_at IS NULL"),
	)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID] = *item
	}
	return out, nil
}

func (s *Service) RatesByID(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]catalogdomain.Rate, error) {
	out := make(map[snowflake.ID]catalogdomain.Rate, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	items, err := s.rates.Find(ctx, &catalogdomain.Rate{},
		option.WithWhere("id IN ?", ids),
		option.WithWhere("deleted_at IS NULL"),
	)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID] = *item
	}
	return out, nil
}

// softDelete flips the soft-delete flags on a live row; deleting an already
// deleted or unknown id reports not_found.
func softDelete[T any](ctx context.Context, repo repository.Repository[T], id string, now time.Time) error {
	entityID, err := parseID(id)
	if err != nil {
		return catalogdomain.ErrInvalidID
	}

	affected, err := repo.UpdateWhere(ctx, map[string]any{
		"active":     false,
		"deleted_at": now,
		"updated_at": now,
	}, "id = ? AND deleted_at IS NULL", entityID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return catalogdomain.ErrNotFound
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}

func codeOrSlug(code, name string) string {
	code = strings.TrimSpace(code)
	if code != "" {
		return strings.ToLower(code)
	}
	return slug.Make(name)
}

func deref[T any](items []*T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out
}
