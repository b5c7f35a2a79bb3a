package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RatePrice is the default fare for a (service, rate, vehicle type)
// combination. At most one active row may exist per combination; the
// partial unique index on rate_prices enforces that in the database.
type RatePrice struct {
	ID            snowflake.ID `json:"id,string" gorm:"primaryKey"`
	ServiceID     snowflake.ID `json:"service_id,string" gorm:"index"`
	RateID        snowflake.ID `json:"rate_id,string"`
	VehicleTypeID snowflake.ID `json:"vehicle_type_id,string"`
	PriceCents    int64        `json:"price_cents"`
	Currency      string       `json:"currency"`
	Active        bool         `json:"active"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	DeletedAt     *time.Time   `json:"deleted_at,omitempty" gorm:"index"`
}

func (RatePrice) TableName() string { return "rate_prices" }
