package migrate

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/db/models"
)

// Models lists every table the service reads or writes, in dependency order.
func Models() []any {
	return []any{
		&models.Product{},
		&models.ProductVariant{},
		&models.StockRecord{},
		&models.StockAdjustment{},
		&models.Membership{},
		&models.Notification{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// AutoMigrateModels creates the schema from the gorm models. It backs the
// sqlite driver (local dev and tests), where the Postgres SQL files do not apply.
func AutoMigrateModels(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
