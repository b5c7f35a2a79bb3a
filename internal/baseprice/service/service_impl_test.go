package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	basepricedomain "github.com/transitbase/faretable/internal/baseprice/domain"
	catalogdomain "github.com/transitbase/faretable/internal/catalog/domain"
	catalogservice "github.com/transitbase/faretable/internal/catalog/service"
	"github.com/transitbase/faretable/internal/clock"
	"github.com/transitbase/faretable/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type basePriceEnv struct {
	db     *gorm.DB
	node   *snowflake.Node
	svc    basepricedomain.Service
	reader basepricedomain.Reader

	serviceID snowflake.ID
	rateID    snowflake.ID
	sedanID   snowflake.ID
	vanID     snowflake.ID
}

func newBasePriceEnv(t *testing.T) *basePriceEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&catalogdomain.Poi{},
		&catalogdomain.VehicleType{},
		&catalogdomain.Rate{},
		&catalogdomain.TransitService{},
		&basepricedomain.RatePrice{},
	))
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_rate_prices_active
		ON rate_prices (service_id, rate_id, vehicle_type_id)
		WHERE active AND deleted_at IS NULL`).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	logger := zap.NewNop()
	policy := config.NewStaticPricingPolicyHolder(config.DefaultPricingPolicy())
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))

	catalogParams := catalogservice.Params{DB: db, Log: logger, GenID: node, Clock: fake}
	catalogSvc := catalogservice.New(catalogParams)
	catalogReader := catalogservice.NewReader(catalogParams)

	params := Params{DB: db, Log: logger, GenID: node, Clock: fake, Catalog: catalogReader, Policy: policy}

	ctx := context.Background()
	center, err := catalogSvc.CreatePoi(ctx, catalogdomain.CreatePoiRequest{Name: "City Center"})
	require.NoError(t, err)
	sedan, err := catalogSvc.CreateVehicleType(ctx, catalogdomain.CreateVehicleTypeRequest{Name: "Sedan"})
	require.NoError(t, err)
	van, err := catalogSvc.CreateVehicleType(ctx, catalogdomain.CreateVehicleTypeRequest{Name: "Van", Capacity: 8})
	require.NoError(t, err)
	standard, err := catalogSvc.CreateRate(ctx, catalogdomain.CreateRateRequest{Name: "Standard"})
	require.NoError(t, err)
	svc, err := catalogSvc.CreateService(ctx, catalogdomain.CreateServiceRequest{
		Name:          "Airport to City Center",
		DestinationID: center.ID.String(),
		DefaultRateID: standard.ID.String(),
	})
	require.NoError(t, err)

	return &basePriceEnv{
		db:        db,
		node:      node,
		svc:       New(params),
		reader:    NewReader(params),
		serviceID: svc.ID,
		rateID:    standard.ID,
		sedanID:   sedan.ID,
		vanID:     van.ID,
	}
}

func TestSetRatePriceReplacesActiveRow(t *testing.T) {
	env := newBasePriceEnv(t)
	ctx := context.Background()

	first, err := env.svc.SetRatePrice(ctx, basepricedomain.SetRatePriceRequest{
		ServiceID:     env.serviceID.String(),
		RateID:        env.rateID.String(),
		VehicleTypeID: env.sedanID.String(),
		PriceCents:    1000,
	})
	require.NoError(t, err)

	second, err := env.svc.SetRatePrice(ctx, basepricedomain.SetRatePriceRequest{
		ServiceID:     env.serviceID.String(),
		RateID:        env.rateID.String(),
		VehicleTypeID: env.sedanID.String(),
		PriceCents:    1100,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	active, err := env.reader.ActivePrices(ctx, env.serviceID, nil, nil)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1100), active[0].PriceCents)

	var total int64
	require.NoError(t, env.db.Model(&basepricedomain.RatePrice{}).Count(&total).Error)
	assert.Equal(t, int64(2), total)
}

func TestSetRatePriceValidatesCatalog(t *testing.T) {
	env := newBasePriceEnv(t)
	ctx := context.Background()

	_, err := env.svc.SetRatePrice(ctx, basepricedomain.SetRatePriceRequest{
		ServiceID:     env.serviceID.String(),
		RateID:        env.node.Generate().String(),
		VehicleTypeID: env.sedanID.String(),
		PriceCents:    1000,
	})
	assert.ErrorIs(t, err, basepricedomain.ErrUnknownRate)

	_, err = env.svc.SetRatePrice(ctx, basepricedomain.SetRatePriceRequest{
		ServiceID:     env.node.Generate().String(),
		RateID:        env.rateID.String(),
		VehicleTypeID: env.sedanID.String(),
		PriceCents:    1000,
	})
	assert.ErrorIs(t, err, basepricedomain.ErrUnknownService)

	_, err = env.svc.SetRatePrice(ctx, basepricedomain.SetRatePriceRequest{
		ServiceID:     env.serviceID.String(),
		RateID:        env.rateID.String(),
		VehicleTypeID: env.sedanID.String(),
		PriceCents:    -5,
	})
	assert.ErrorIs(t, err, basepricedomain.ErrInvalidPrice)
}

func TestListRatePricesFilters(t *testing.T) {
	env := newBasePriceEnv(t)
	ctx := context.Background()

	for _, fare := range []struct {
		vehicle snowflake.ID
		cents   int64
	}{
		{env.sedanID, 1000},
		{env.vanID, 1800},
	} {
		_, err := env.svc.SetRatePrice(ctx, basepricedomain.SetRatePriceRequest{
			ServiceID:     env.serviceID.String(),
			RateID:        env.rateID.String(),
			VehicleTypeID: fare.vehicle.String(),
			PriceCents:    fare.cents,
		})
		require.NoError(t, err)
	}

	all, err := env.svc.ListRatePrices(ctx, basepricedomain.ListRatePricesRequest{
		ServiceID: env.serviceID.String(),
	})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	vans, err := env.svc.ListRatePrices(ctx, basepricedomain.ListRatePricesRequest{
		ServiceID:     env.serviceID.String(),
		VehicleTypeID: env.vanID.String(),
	})
	require.NoError(t, err)
	require.Len(t, vans, 1)
	assert.Equal(t, int64(1800), vans[0].PriceCents)
}

func TestDeleteRatePrice(t *testing.T) {
	env := newBasePriceEnv(t)
	ctx := context.Background()

	fare, err := env.svc.SetRatePrice(ctx, basepricedomain.SetRatePriceRequest{
		ServiceID:     env.serviceID.String(),
		RateID:        env.rateID.String(),
		VehicleTypeID: env.sedanID.String(),
		PriceCents:    1000,
	})
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteRatePrice(ctx, fare.ID.String()))
	assert.ErrorIs(t, env.svc.DeleteRatePrice(ctx, fare.ID.String()), basepricedomain.ErrNotFound)

	active, err := env.reader.ActivePrices(ctx, env.serviceID, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, active)
}
