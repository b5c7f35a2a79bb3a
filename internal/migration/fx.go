package migration

import (
	"github.com/bwmarrin/snowflake"
	basepricedomain "github.com/transitbase/faretable/internal/baseprice/domain"
	catalogdomain "github.com/transitbase/faretable/internal/catalog/domain"
	clientpricedomain "github.com/transitbase/faretable/internal/clientprice/domain"
	"github.com/transitbase/faretable/internal/config"
	"github.com/transitbase/faretable/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, genID *snowflake.Node) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else if err := autoMigrate(conn); err != nil {
			return err
		}

		if cfg.SeedDemo {
			return seed.EnsureDemoCatalog(conn, genID)
		}
		return nil
	}),
)

// autoMigrate is the non-postgres path, used for sqlite development
// databases. The versioned SQL migrations stay authoritative for postgres.
func autoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&catalogdomain.Poi{},
		&catalogdomain.VehicleType{},
		&catalogdomain.Rate{},
		&catalogdomain.TransitService{},
		&basepricedomain.RatePrice{},
		&clientpricedomain.ClientPrice{},
	); err != nil {
		return err
	}

	// Partial unique indexes carry the single-active-row invariants.
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_rate_prices_active
		 ON rate_prices (service_id, rate_id, vehicle_type_id)
		 WHERE active AND deleted_at IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_client_prices_open
		 ON client_prices (client_id, item_type, item_id, rate_id, vehicle_type_id)
		 WHERE valid_until IS NULL`,
	}
	for _, stmt := range stmts {
		if err := conn.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
