package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service is the thin catalog admin surface. Entities are created, listed
// and soft-disabled; nothing is ever hard-deleted.
type Service interface {
	CreatePoi(ctx context.Context, req CreatePoiRequest) (*Poi, error)
	ListPois(ctx context.Context) ([]Poi, error)
	DeletePoi(ctx context.Context, id string) error

	CreateVehicleType(ctx context.Context, req CreateVehicleTypeRequest) (*VehicleType, error)
	ListVehicleTypes(ctx context.Context) ([]VehicleType, error)
	DeleteVehicleType(ctx context.Context, id string) error

	CreateRate(ctx context.Context, req CreateRateRequest) (*Rate, error)
	ListRates(ctx context.Context) ([]Rate, error)
	DeleteRate(ctx context.Context, id string) error

	CreateService(ctx context.Context, req CreateServiceRequest) (*TransitService, error)
	ListServices(ctx context.Context) ([]TransitService, error)
	GetService(ctx context.Context, id string) (*TransitService, error)
	DeleteService(ctx context.Context, id string) error
}

// Reader is the read contract the resolution engine consumes. Lookups never
// return soft-deleted rows.
type Reader interface {
	FindService(ctx context.Context, id snowflake.ID) (*TransitService, error)
	VehicleTypesByID(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]VehicleType, error)
	RatesByID(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]Rate, error)
}

type CreatePoiRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
	Zone string `json:"zone"`
}

type CreateVehicleTypeRequest struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Capacity int32  `json:"capacity"`
}

type CreateRateRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type CreateServiceRequest struct {
	Name          string         `json:"name"`
	Code          string         `json:"code"`
	OriginID      *string        `json:"origin_id"`
	DestinationID string         `json:"destination_id"`
	DefaultRateID string         `json:"default_rate_id"`
	Metadata      map[string]any `json:"metadata"`
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidCapacity    = errors.New("invalid_capacity")
	ErrInvalidOrigin      = errors.New("invalid_origin")
	ErrInvalidDestination = errors.New("invalid_destination")
	ErrInvalidRate        = errors.New("invalid_rate")
	ErrNotFound           = errors.New("not_found")
)
