package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrUnknownService     = errors.New("unknown_service")
	ErrUnknownRate        = errors.New("unknown_rate")
	ErrUnknownVehicleType = errors.New("unknown_vehicle_type")
	ErrNotFound           = errors.New("rate_price_not_found")
)

type SetRatePriceRequest struct {
	ServiceID     string `json:"-"`
	RateID        string `json:"rate_id"`
	VehicleTypeID string `json:"vehicle_type_id"`
	PriceCents    int64  `json:"price_cents"`
}

type ListRatePricesRequest struct {
	ServiceID     string
	RateID        string
	VehicleTypeID string
}

// Service is the admin surface for maintaining default fares.
type Service interface {
	SetRatePrice(ctx context.Context, req SetRatePriceRequest) (*RatePrice, error)
	ListRatePrices(ctx context.Context, req ListRatePricesRequest) ([]RatePrice, error)
	DeleteRatePrice(ctx context.Context, id string) error
}

// Reader is the lookup contract the price resolver depends on. Filters
// are optional; zero values mean "any".
type Reader interface {
	ActivePrices(ctx context.Context, serviceID snowflake.ID, rateID, vehicleTypeID *snowflake.ID) ([]RatePrice, error)
}
