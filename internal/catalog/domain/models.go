package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Poi is a point of interest: airport, hotel, terminal, landmark.
type Poi struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Code      string       `json:"code" gorm:"type:text;not null;index"`
	Zone      string       `json:"zone,omitempty" gorm:"type:text"`
	Active    bool         `json:"active" gorm:"not null;default:true"`
	DeletedAt *time.Time   `json:"deleted_at,omitempty" gorm:""`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Poi) TableName() string { return "pois" }

type VehicleType struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Code      string       `json:"code" gorm:"type:text;not null;index"`
	Capacity  int32        `json:"capacity" gorm:"not null;default:4"`
	Active    bool         `json:"active" gorm:"not null;default:true"`
	DeletedAt *time.Time   `json:"deleted_at,omitempty" gorm:""`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (VehicleType) TableName() string { return "vehicle_types" }

// Rate is a tariff class (standard, night, holiday).
type Rate struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Code      string       `json:"code" gorm:"type:text;not null;index"`
	Active    bool         `json:"active" gorm:"not null;default:true"`
	DeletedAt *time.Time   `json:"deleted_at,omitempty" gorm:""`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Rate) TableName() string { return "rates" }

// TransitService is a sellable route: an optional origin, a required
// destination and a default rate. Rows are soft-disabled (Active) and
// soft-deleted (DeletedAt), never removed.
type TransitService struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	Name          string            `json:"name" gorm:"type:text;not null"`
	Code          string            `json:"code" gorm:"type:text;not null;index"`
	OriginID      *snowflake.ID     `json:"origin_id,omitempty" gorm:"column:origin_id;index"`
	DestinationID snowflake.ID      `json:"destination_id" gorm:"column:destination_id;not null;index"`
	DefaultRateID snowflake.ID      `json:"default_rate_id" gorm:"column:default_rate_id;not null"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	Active        bool              `json:"active" gorm:"not null;default:true"`
	DeletedAt     *time.Time        `json:"deleted_at,omitempty" gorm:""`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TransitService) TableName() string { return "transit_services" }

// Exists reports whether the row is not soft-deleted.
func (s *TransitService) Exists() bool {
	return s != nil && s.DeletedAt == nil
}
