package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	basepricedomain "github.com/transitbase/faretable/internal/baseprice/domain"
	catalogdomain "github.com/transitbase/faretable/internal/catalog/domain"
	"gorm.io/gorm"
)

const demoServiceCode = "airport-city-center"

// EnsureDemoCatalog seeds a small demo catalog: two POIs, two vehicle
// types, two rates, one service and its default fares. Idempotent; rerunning
// against a seeded database changes nothing.
func EnsureDemoCatalog(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing catalogdomain.TransitService
		err := tx.Where("code = ?", demoServiceCode).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()

		airport := catalogdomain.Poi{ID: node.Generate(), Name: "Airport", Code: "airport", Zone: "north", Active: true, CreatedAt: now, UpdatedAt: now}
		center := catalogdomain.Poi{ID: node.Generate(), Name: "City Center", Code: "city-center", Zone: "center", Active: true, CreatedAt: now, UpdatedAt: now}
		if err := tx.Create(&airport).Error; err != nil {
			return err
		}
		if err := tx.Create(&center).Error; err != nil {
			return err
		}

		sedan := catalogdomain.VehicleType{ID: node.Generate(), Name: "Sedan", Code: "sedan", Capacity: 4, Active: true, CreatedAt: now, UpdatedAt: now}
		van := catalogdomain.VehicleType{ID: node.Generate(), Name: "Van", Code: "van", Capacity: 8, Active: true, CreatedAt: now, UpdatedAt: now}
		if err := tx.Create(&sedan).Error; err != nil {
			return err
		}
		if err := tx.Create(&van).Error; err != nil {
			return err
		}

		standard := catalogdomain.Rate{ID: node.Generate(), Name: "Standard", Code: "standard", Active: true, CreatedAt: now, UpdatedAt: now}
		night := catalogdomain.Rate{ID: node.Generate(), Name: "Night", Code: "night", Active: true, CreatedAt: now, UpdatedAt: now}
		if err := tx.Create(&standard).Error; err != nil {
			return err
		}
		if err := tx.Create(&night).Error; err != nil {
			return err
		}

		svc := catalogdomain.TransitService{
			ID:            node.Generate(),
			Name:          "Airport to City Center",
			Code:          demoServiceCode,
			OriginID:      &airport.ID,
			DestinationID: center.ID,
			DefaultRateID: standard.ID,
			Active:        true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Create(&svc).Error; err != nil {
			return err
		}

		fares := []basepricedomain.RatePrice{
			{ID: node.Generate(), ServiceID: svc.ID, RateID: standard.ID, VehicleTypeID: sedan.ID, PriceCents: 3500, Currency: "EUR", Active: true, CreatedAt: now, UpdatedAt: now},
			{ID: node.Generate(), ServiceID: svc.ID, RateID: standard.ID, VehicleTypeID: van.ID, PriceCents: 5500, Currency: "EUR", Active: true, CreatedAt: now, UpdatedAt: now},
			{ID: node.Generate(), ServiceID: svc.ID, RateID: night.ID, VehicleTypeID: sedan.ID, PriceCents: 4200, Currency: "EUR", Active: true, CreatedAt: now, UpdatedAt: now},
		}
		for i := range fares {
			if err := tx.Create(&fares[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
