package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidClient      = errors.New("invalid_client")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrDuplicateOverride  = errors.New("duplicate_override")
	ErrUnknownService     = errors.New("unknown_service")
	ErrUnknownRate        = errors.New("unknown_rate")
	ErrUnknownVehicleType = errors.New("unknown_vehicle_type")
	ErrConcurrentUpdate   = errors.New("concurrent_update")
)

// OverrideInput is one negotiated fare in an apply request.
type OverrideInput struct {
	RateID        string `json:"rate_id"`
	VehicleTypeID string `json:"vehicle_type_id"`
	PriceCents    int64  `json:"price_cents"`
}

// ApplyRequest replaces the full override set a client holds on a service.
// Combinations absent from Overrides lose their negotiated fare.
type ApplyRequest struct {
	ServiceID string          `json:"-"`
	ClientID  string          `json:"-"`
	Actor     string          `json:"-"`
	Overrides []OverrideInput `json:"overrides"`
}

// ApplyResult reports what one apply call changed. A fully idempotent
// re-apply reports zeros across the board.
type ApplyResult struct {
	Applied int `json:"applied"`
	Closed  int `json:"closed"`
	Skipped int `json:"skipped"`
}

type HistoryRequest struct {
	ServiceID string
	ClientID  string
	RateID    string
	VehicleID string
}

type Service interface {
	Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error)
	History(ctx context.Context, req HistoryRequest) ([]ClientPrice, error)
}

// Reader is the lookup contract the price resolver depends on; it returns
// only open versions.
type Reader interface {
	ActiveOverrides(ctx context.Context, clientID string, itemID snowflake.ID) ([]ClientPrice, error)
}
