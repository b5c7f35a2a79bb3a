package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const ItemTypeService = "service"

// ClientPrice is one version of a negotiated fare. Versions are chained by
// validity: the current row has ValidUntil == nil, superseded rows carry the
// instant they were closed and are never updated again. The partial unique
// index on client_prices keeps at most one open row per
// (client, item, rate, vehicle type).
type ClientPrice struct {
	ID            snowflake.ID `json:"id,string" gorm:"primaryKey"`
	ClientID      string       `json:"client_id" gorm:"index"`
	ItemType      string       `json:"item_type"`
	ItemID        snowflake.ID `json:"item_id,string" gorm:"index"`
	RateID        snowflake.ID `json:"rate_id,string"`
	VehicleTypeID snowflake.ID `json:"vehicle_type_id,string"`
	PriceCents    int64        `json:"price_cents"`

	// BasePriceCents snapshots the default fare that was in force when the
	// override was written. Nil when no default existed at write time.
	BasePriceCents *int64 `json:"base_price_cents,omitempty"`

	ValidFrom  time.Time  `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until,omitempty" gorm:"index"`

	CreatedBy      string    `json:"created_by"`
	LastModifiedBy string    `json:"last_modified_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (ClientPrice) TableName() string { return "client_prices" }

// Current reports whether this row is the open version of its chain.
func (p *ClientPrice) Current() bool { return p != nil && p.ValidUntil == nil }
