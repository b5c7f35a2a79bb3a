package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	basepricedomain "github.com/transitbase/faretable/internal/baseprice/domain"
	catalogdomain "github.com/transitbase/faretable/internal/catalog/domain"
	clientpricedomain "github.com/transitbase/faretable/internal/clientprice/domain"
	"github.com/transitbase/faretable/internal/clock"
	"github.com/transitbase/faretable/internal/config"
	"github.com/transitbase/faretable/internal/lock"
	"github.com/transitbase/faretable/internal/observability/metrics"
	"github.com/transitbase/faretable/pkg/db"
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
	Base    basepricedomain.Reader
	Policy  *config.PricingPolicyHolder
	Locker  *lock.Locker     `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	catalog catalogdomain.Reader
	base    basepricedomain.Reader
	policy  *config.PricingPolicyHolder
	locker  *lock.Locker
	metrics *metrics.Metrics

	overrides repository.Repository[clientpricedomain.ClientPrice]
}

func newService(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("clientprice.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		catalog:   p.Catalog,
		base:      p.Base,
		policy:    p.Policy,
		locker:    p.Locker,
		metrics:   p.Metrics,
		overrides: repository.ProvideStore[clientpricedomain.ClientPrice](p.DB),
	}
}

func New(p Params) clientpricedomain.Service {
	return newService(p)
}

func NewReader(p Params) clientpricedomain.Reader {
	return newService(p)
}

type comboKey struct {
	RateID        snowflake.ID
	VehicleTypeID snowflake.ID
}

// Apply replaces the complete override set for one (client, service) pair.
// Every override is validated before the first write; the whole set lands in
// a single transaction or not at all. Re-applying an unchanged set leaves the
// table untouched when skipNoopWrites is in force.
func (s *Service) Apply(ctx context.Context, req clientpricedomain.ApplyRequest) (*clientpricedomain.ApplyResult, error) {
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		return nil, clientpricedomain.ErrInvalidClient
	}
	serviceID, err := parseID(req.ServiceID)
	if err != nil {
		return nil, clientpricedomain.ErrInvalidID
	}

	requested, err := s.validateOverrides(ctx, serviceID, req.Overrides)
	if err != nil {
		return nil, err
	}

	policy := s.policy.Get()
	if s.locker != nil {
		key := fmt.Sprintf("faretable:apply:%s:%s", clientID, serviceID)
		token, ok, err := s.locker.TryLock(ctx, key, policy.WriteLockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.recordConflict(ctx)
			return nil, clientpricedomain.ErrConcurrentUpdate
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn("apply lock release failed", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	basePrices, err := s.baseSnapshot(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	result := &clientpricedomain.ApplyResult{}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.overrides.WithTrx(tx)

		current, err := store.Find(ctx, &clientpricedomain.ClientPrice{
			ClientID: clientID,
			ItemType: clientpricedomain.ItemTypeService,
			ItemID:   serviceID,
		}, option.WithWhere("valid_until IS NULL"))
		if err != nil {
			return err
		}
		open := make(map[comboKey]*clientpricedomain.ClientPrice, len(current))
		for _, row := range current {
			open[comboKey{row.RateID, row.VehicleTypeID}] = row
		}

		for key, price := range requested {
			existing := open[key]
			delete(open, key)

			if existing != nil && existing.PriceCents == price && policy.SkipNoopWrites {
				result.Skipped++
				continue
			}
			if existing != nil {
				if err := s.closeVersion(ctx, store, existing.ID, now, req.Actor); err != nil {
					return err
				}
				result.Closed++
			}

			next := &clientpricedomain.ClientPrice{
				ID:             s.genID.Generate(),
				ClientID:       clientID,
				ItemType:       clientpricedomain.ItemTypeService,
				ItemID:         serviceID,
				RateID:         key.RateID,
				VehicleTypeID:  key.VehicleTypeID,
				PriceCents:     price,
				BasePriceCents: basePrices[key],
				ValidFrom:      now,
				CreatedBy:      req.Actor,
				LastModifiedBy: req.Actor,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := store.Create(ctx, next); err != nil {
				if db.IsDuplicateKeyErr(err) {
					return clientpricedomain.ErrConcurrentUpdate
				}
				return err
			}
			result.Applied++
		}

		// Combinations dropped from the request lose their override.
		for _, leftover := range open {
			if err := s.closeVersion(ctx, store, leftover.ID, now, req.Actor); err != nil {
				return err
			}
			result.Closed++
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, clientpricedomain.ErrConcurrentUpdate) {
			s.recordConflict(ctx)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordOverrideWrite(ctx, result.Applied, result.Closed)
	}
	s.log.Info("client overrides applied",
		zap.String("client_id", clientID),
		zap.String("service_id", serviceID.String()),
		zap.Int("applied", result.Applied),
		zap.Int("closed", result.Closed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// validateOverrides rejects the whole request before any write happens:
// bad ids, negative prices, duplicated combinations and references to
// unknown catalog rows all fail the call as a unit.
func (s *Service) validateOverrides(ctx context.Context, serviceID snowflake.ID, inputs []clientpricedomain.OverrideInput) (map[comboKey]int64, error) {
	svc, err := s.catalog.FindService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Exists() {
		return nil, clientpricedomain.ErrUnknownService
	}

	requested := make(map[comboKey]int64, len(inputs))
	rateIDs := make([]snowflake.ID, 0, len(inputs))
	vehicleIDs := make([]snowflake.ID, 0, len(inputs))
	for _, in := range inputs {
		if in.PriceCents < 0 {
			return nil, clientpricedomain.ErrInvalidPrice
		}
		rateID, err := parseID(in.RateID)
		if err != nil {
			return nil, clientpricedomain.ErrInvalidID
		}
		vehicleTypeID, err := parseID(in.VehicleTypeID)
		if err != nil {
			return nil, clientpricedomain.ErrInvalidID
		}
		key := comboKey{rateID, vehicleTypeID}
		if _, dup := requested[key]; dup {
			return nil, clientpricedomain.ErrDuplicateOverride
		}
		requested[key] = in.PriceCents
		rateIDs = append(rateIDs, rateID)
		vehicleIDs = append(vehicleIDs, vehicleTypeID)
	}

	rates, err := s.catalog.RatesByID(ctx, rateIDs)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.catalog.VehicleTypesByID(ctx, vehicleIDs)
	if err != nil {
		return nil, err
	}
	for key := range requested {
		if _, ok := rates[key.RateID]; !ok {
			return nil, clientpricedomain.ErrUnknownRate
		}
		if _, ok := vehicles[key.VehicleTypeID]; !ok {
			return nil, clientpricedomain.ErrUnknownVehicleType
		}
	}
	return requested, nil
}

func (s *Service) baseSnapshot(ctx context.Context, serviceID snowflake.ID) (map[comboKey]*int64, error) {
	prices, err := s.base.ActivePrices(ctx, serviceID, nil, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[comboKey]*int64, len(prices))
	for _, p := range prices {
		cents := p.PriceCents
		out[comboKey{p.RateID, p.VehicleTypeID}] = &cents
	}
	return out, nil
}

// closeVersion stamps valid_until on an open row. Guarding on
// valid_until IS NULL makes closed rows immutable; losing the guard race
// means another writer rewrote the chain underneath us.
func (s *Service) closeVersion(ctx context.Context, store repository.Repository[clientpricedomain.ClientPrice], id snowflake.ID, now time.Time, actor string) error {
	affected, err := store.UpdateWhere(ctx, map[string]any{
		"valid_until":      now,
		"last_modified_by": actor,
		"updated_at":       now,
	}, "id = ? AND valid_until IS NULL", id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return clientpricedomain.ErrConcurrentUpdate
	}
	return nil
}

func (s *Service) History(ctx context.Context, req clientpricedomain.HistoryRequest) ([]clientpricedomain.ClientPrice, error) {
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		return nil, clientpricedomain.ErrInvalidClient
	}
	serviceID, err := parseID(req.ServiceID)
	if err != nil {
		return nil, clientpricedomain.ErrInvalidID
	}

	opts := []option.QueryOption{option.WithOrder("valid_from DESC, id DESC")}
	if v := strings.TrimSpace(req.RateID); v != "" {
		rateID, err := parseID(v)
		if err != nil {
			return nil, clientpricedomain.ErrInvalidID
		}
		opts = append(opts, option.WithWhere("rate_id = ?", rateID))
	}
	if v := strings.TrimSpace(req.VehicleID); v != "" {
		vehicleID, err := parseID(v)
		if err != nil {
			return nil, clientpricedomain.ErrInvalidID
		}
		opts = append(opts, option.WithWhere("vehicle_type_id = ?", vehicleID))
	}

	items, err := s.overrides.Find(ctx, &clientpricedomain.ClientPrice{
		ClientID: clientID,
		ItemType: clientpricedomain.ItemTypeService,
		ItemID:   serviceID,
	}, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]clientpricedomain.ClientPrice, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

// ActiveOverrides implements the resolver read contract.
func (s *Service) ActiveOverrides(ctx context.Context, clientID string, itemID snowflake.ID) ([]clientpricedomain.ClientPrice, error) {
	items, err := s.overrides.Find(ctx, &clientpricedomain.ClientPrice{
		ClientID: strings.TrimSpace(clientID),
		ItemType: clientpricedomain.ItemTypeService,
		ItemID:   itemID,
	}, option.WithWhere("valid_until IS NULL"))
	if err != nil {
		return nil, err
	}
	out := make([]clientpricedomain.ClientPrice, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *Service) recordConflict(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.RecordOverrideConflict(ctx)
	}
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
