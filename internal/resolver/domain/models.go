package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	clientpricedomain "github.com/transitbase/faretable/internal/clientprice/domain"
)

// Query is one resolution request. ClientID, RateID and VehicleTypeID are
// optional; an empty ClientID resolves default fares only.
type Query struct {
	ServiceID     string
	ClientID      string
	RateID        string
	VehicleTypeID string
}

type RateView struct {
	ID   snowflake.ID `json:"id,string"`
	Name string       `json:"name"`
	Code string       `json:"code"`
}

type VehicleTypeView struct {
	ID       snowflake.ID `json:"id,string"`
	Name     string       `json:"name"`
	Code     string       `json:"code"`
	Capacity int32        `json:"capacity"`
}

// ResolvedPrice is one line of a resolution result: the fare in force for a
// (rate, vehicle type) combination, negotiated when IsClientPrice is set.
type ResolvedPrice struct {
	Rate           RateView        `json:"rate"`
	VehicleType    VehicleTypeView `json:"vehicle_type"`
	PriceCents     int64           `json:"price_cents"`
	BasePriceCents int64           `json:"base_price_cents"`
	Currency       string          `json:"currency"`
	IsClientPrice  bool            `json:"is_client_price"`
}

// Result carries the resolved lines plus the strategy that produced them.
type Result struct {
	Prices   []ResolvedPrice `json:"prices"`
	Strategy string          `json:"strategy,omitempty"`
	Currency string          `json:"currency"`
}

// Service resolves fares. Resolve never surfaces backend failures; a lookup
// that cannot complete yields an empty result and a diagnostic event.
type Service interface {
	Resolve(ctx context.Context, q Query) (*Result, error)
	OrphanOverrides(ctx context.Context, serviceID, clientID string) ([]clientpricedomain.ClientPrice, error)
}
