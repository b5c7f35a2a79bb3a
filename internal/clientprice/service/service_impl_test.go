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
	basepriceservice "github.com/transitbase/faretable/internal/baseprice/service"
	catalogdomain "github.com/transitbase/faretable/internal/catalog/domain"
	catalogservice "github.com/transitbase/faretable/internal/catalog/service"
	clientpricedomain "github.com/transitbase/faretable/internal/clientprice/domain"
	"github.com/transitbase/faretable/internal/clock"
	"github.com/transitbase/faretable/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	catalog catalogdomain.Service
	base    basepricedomain.Service
	svc     clientpricedomain.Service
	reader  clientpricedomain.Reader

	serviceID string
	rateID    string
	nightID   string
	sedanID   string
	vanID     string
}

func newTestEnv(t *testing.T) *testEnv {
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
		&clientpricedomain.ClientPrice{},
	))
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_client_prices_open
		ON client_prices (client_id, item_type, item_id, rate_id, vehicle_type_id)
		WHERE valid_until IS NULL`).Error)
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

	baseParams := basepriceservice.Params{DB: db, Log: logger, GenID: node, Clock: fake, Catalog: catalogReader, Policy: policy}
	baseSvc := basepriceservice.New(baseParams)
	baseReader := basepriceservice.NewReader(baseParams)

	params := Params{
		DB:      db,
		Log:     logger,
		GenID:   node,
		Clock:   fake,
		Catalog: catalogReader,
		Base:    baseReader,
		Policy:  policy,
	}

	env := &testEnv{
		db:      db,
		node:    node,
		clock:   fake,
		catalog: catalogSvc,
		base:    baseSvc,
		svc:     New(params),
		reader:  NewReader(params),
	}
	env.seedCatalog(t)
	return env
}

func (e *testEnv) seedCatalog(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	airport, err := e.catalog.CreatePoi(ctx, catalogdomain.CreatePoiRequest{Name: "Airport"})
	require.NoError(t, err)
	center, err := e.catalog.CreatePoi(ctx, catalogdomain.CreatePoiRequest{Name: "City Center"})
	require.NoError(t, err)

	sedan, err := e.catalog.CreateVehicleType(ctx, catalogdomain.CreateVehicleTypeRequest{Name: "Sedan", Capacity: 4})
	require.NoError(t, err)
	van, err := e.catalog.CreateVehicleType(ctx, catalogdomain.CreateVehicleTypeRequest{Name: "Van", Capacity: 8})
	require.NoError(t, err)

	standard, err := e.catalog.CreateRate(ctx, catalogdomain.CreateRateRequest{Name: "Standard"})
	require.NoError(t, err)
	night, err := e.catalog.CreateRate(ctx, catalogdomain.CreateRateRequest{Name: "Night"})
	require.NoError(t, err)

	originID := airport.ID.String()
	svc, err := e.catalog.CreateService(ctx, catalogdomain.CreateServiceRequest{
		Name:          "Airport to City Center",
		OriginID:      &originID,
		DestinationID: center.ID.String(),
		DefaultRateID: standard.ID.String(),
	})
	require.NoError(t, err)

	e.serviceID = svc.ID.String()
	e.rateID = standard.ID.String()
	e.nightID = night.ID.String()
	e.sedanID = sedan.ID.String()
	e.vanID = van.ID.String()

	_, err = e.base.SetRatePrice(ctx, basepricedomain.SetRatePriceRequest{
		ServiceID: e.serviceID, RateID: e.rateID, VehicleTypeID: e.sedanID, PriceCents: 1000,
	})
	require.NoError(t, err)
}

func (e *testEnv) countRows(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&clientpricedomain.ClientPrice{}).Count(&count).Error)
	return count
}

func TestApplyCreatesOverrides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Actor:     "ops@transitbase.io",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 850},
			{RateID: env.rateID, VehicleTypeID: env.vanID, PriceCents: 1400},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, 0, result.Closed)
	assert.Equal(t, 0, result.Skipped)

	serviceID, err := snowflake.ParseString(env.serviceID)
	require.NoError(t, err)
	open, err := env.reader.ActiveOverrides(ctx, "acme", serviceID)
	require.NoError(t, err)
	require.Len(t, open, 2)
	for _, row := range open {
		assert.True(t, row.Current())
		assert.Equal(t, "ops@transitbase.io", row.CreatedBy)
		if row.VehicleTypeID.String() == env.sedanID {
			require.NotNil(t, row.BasePriceCents)
			assert.Equal(t, int64(1000), *row.BasePriceCents)
		} else {
			assert.Nil(t, row.BasePriceCents)
		}
	}
}

func TestApplyReplacesOpenVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 1000},
		},
	})
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	result, err := env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 1200},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, 1, result.Closed)

	history, err := env.svc.History(ctx, clientpricedomain.HistoryRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
	})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1200), history[0].PriceCents)
	assert.Nil(t, history[0].ValidUntil)
	assert.Equal(t, int64(1000), history[1].PriceCents)
	require.NotNil(t, history[1].ValidUntil)
	assert.Equal(t, history[0].ValidFrom, *history[1].ValidUntil)
}

func TestHistoryFiltersByCombination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 900},
			{RateID: env.rateID, VehicleTypeID: env.vanID, PriceCents: 1600},
		},
	})
	require.NoError(t, err)

	history, err := env.svc.History(ctx, clientpricedomain.HistoryRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		VehicleID: env.vanID,
	})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(1600), history[0].PriceCents)

	_, err = env.svc.History(ctx, clientpricedomain.HistoryRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		RateID:    "not-a-number",
	})
	assert.ErrorIs(t, err, clientpricedomain.ErrInvalidID)
}

func TestApplyUnchangedSetWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 850},
			{RateID: env.rateID, VehicleTypeID: env.vanID, PriceCents: 1400},
		},
	}
	_, err := env.svc.Apply(ctx, req)
	require.NoError(t, err)
	before := env.countRows(t)

	env.clock.Advance(time.Minute)
	result, err := env.svc.Apply(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Applied)
	assert.Equal(t, 0, result.Closed)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, before, env.countRows(t))
}

func TestApplyEmptySetClosesEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 850},
		},
	})
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	result, err := env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Applied)
	assert.Equal(t, 1, result.Closed)

	serviceID, err := snowflake.ParseString(env.serviceID)
	require.NoError(t, err)
	open, err := env.reader.ActiveOverrides(ctx, "acme", serviceID)
	require.NoError(t, err)
	assert.Empty(t, open)

	history, err := env.svc.History(ctx, clientpricedomain.HistoryRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
	})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestApplyValidatesBeforeWriting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	unknownRate := env.node.Generate().String()
	_, err := env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 850},
			{RateID: unknownRate, VehicleTypeID: env.sedanID, PriceCents: 900},
		},
	})
	assert.ErrorIs(t, err, clientpricedomain.ErrUnknownRate)
	assert.Equal(t, int64(0), env.countRows(t))
}

func TestApplyRejectsDuplicateCombination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 850},
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 900},
		},
	})
	assert.ErrorIs(t, err, clientpricedomain.ErrDuplicateOverride)
}

func TestApplyRejectsNegativePrice(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Apply(context.Background(), clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: -1},
		},
	})
	assert.ErrorIs(t, err, clientpricedomain.ErrInvalidPrice)
}

func TestApplyUnknownServiceFails(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Apply(context.Background(), clientpricedomain.ApplyRequest{
		ServiceID: env.node.Generate().String(),
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 850},
		},
	})
	assert.ErrorIs(t, err, clientpricedomain.ErrUnknownService)
}

func TestClosedVersionsStayClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 1000},
		},
	})
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	_, err = env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 1200},
		},
	})
	require.NoError(t, err)

	history, err := env.svc.History(ctx, clientpricedomain.HistoryRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
	})
	require.NoError(t, err)
	require.Len(t, history, 2)
	closedAt := *history[1].ValidUntil

	// A later rewrite of the chain must not touch the closed row.
	env.clock.Advance(time.Hour)
	_, err = env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 1300},
		},
	})
	require.NoError(t, err)

	history, err = env.svc.History(ctx, clientpricedomain.HistoryRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
	})
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, int64(1000), history[2].PriceCents)
	assert.Equal(t, closedAt, *history[2].ValidUntil)
}

func TestApplyScopedPerClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 850},
		},
	})
	require.NoError(t, err)

	_, err = env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "globex",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 700},
		},
	})
	require.NoError(t, err)

	serviceID, err := snowflake.ParseString(env.serviceID)
	require.NoError(t, err)
	acme, err := env.reader.ActiveOverrides(ctx, "acme", serviceID)
	require.NoError(t, err)
	require.Len(t, acme, 1)
	assert.Equal(t, int64(850), acme[0].PriceCents)

	globex, err := env.reader.ActiveOverrides(ctx, "globex", serviceID)
	require.NoError(t, err)
	require.Len(t, globex, 1)
	assert.Equal(t, int64(700), globex[0].PriceCents)
}

func TestApplyConflictWhenChainRewrittenUnderneath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 900},
			{RateID: env.rateID, VehicleTypeID: env.vanID, PriceCents: 1500},
		},
	})
	require.NoError(t, err)

	// A competing writer closes the open chain after this transaction has
	// read it but before the guarded close runs.
	raced := false
	require.NoError(t, env.db.Callback().Update().Before("gorm:update").Register("test_rewrite_chain", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "client_prices" {
			return
		}
		raced = true
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"UPDATE client_prices SET valid_until = ? WHERE valid_until IS NULL", env.clock.Now().UTC())
	}))
	defer func() {
		require.NoError(t, env.db.Callback().Update().Remove("test_rewrite_chain"))
	}()

	env.clock.Advance(time.Hour)
	_, err = env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 950},
			{RateID: env.rateID, VehicleTypeID: env.vanID, PriceCents: 1550},
		},
	})
	assert.ErrorIs(t, err, clientpricedomain.ErrConcurrentUpdate)
	assert.True(t, raced)

	// Whole batch rolled back: both chains still open with the old prices.
	serviceID, err := snowflake.ParseString(env.serviceID)
	require.NoError(t, err)
	open, err := env.reader.ActiveOverrides(ctx, "acme", serviceID)
	require.NoError(t, err)
	require.Len(t, open, 2)
	for _, row := range open {
		assert.True(t, row.Current())
		assert.Contains(t, []int64{900, 1500}, row.PriceCents)
	}
	assert.EqualValues(t, 2, env.countRows(t))
}

func TestApplyConflictOnConcurrentInsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	serviceID, err := snowflake.ParseString(env.serviceID)
	require.NoError(t, err)
	rateID, err := snowflake.ParseString(env.rateID)
	require.NoError(t, err)
	sedanID, err := snowflake.ParseString(env.sedanID)
	require.NoError(t, err)

	// A competing writer lands its open row between validation and this
	// transaction's insert; the partial unique index is the backstop.
	injected := false
	require.NoError(t, env.db.Callback().Create().Before("gorm:create").Register("test_competing_insert", func(tx *gorm.DB) {
		if injected || tx.Statement.Table != "client_prices" {
			return
		}
		injected = true
		now := env.clock.Now().UTC()
		tx.Session(&gorm.Session{NewDB: true}).Create(&clientpricedomain.ClientPrice{
			ID:             env.node.Generate(),
			ClientID:       "acme",
			ItemType:       clientpricedomain.ItemTypeService,
			ItemID:         serviceID,
			RateID:         rateID,
			VehicleTypeID:  sedanID,
			PriceCents:     700,
			ValidFrom:      now,
			CreatedBy:      "rival",
			LastModifiedBy: "rival",
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}))
	defer func() {
		require.NoError(t, env.db.Callback().Create().Remove("test_competing_insert"))
	}()

	_, err = env.svc.Apply(ctx, clientpricedomain.ApplyRequest{
		ServiceID: env.serviceID,
		ClientID:  "acme",
		Overrides: []clientpricedomain.OverrideInput{
			{RateID: env.rateID, VehicleTypeID: env.sedanID, PriceCents: 850},
		},
	})
	assert.ErrorIs(t, err, clientpricedomain.ErrConcurrentUpdate)
	assert.True(t, injected)
	assert.EqualValues(t, 0, env.countRows(t))
}
