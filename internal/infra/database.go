package infra

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Narimm/OpenVPMS-sub018/internal/model"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that GORM
// cannot express (partial indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates the schema. Also used by the integration
// tests against throwaway containers.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.TemplateLink{},
		&model.ProductPrice{},
		&model.PricingGroup{},
		&model.ImportBatch{},
		&model.PriceChangeLog{},
		&model.User{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot fully handle
// on its own. Each statement uses IF NOT EXISTS semantics so re-running on an
// already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// partial index for the batch worker's pending-batch poll
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_import_batches_pending') THEN
		    CREATE INDEX idx_import_batches_pending
		        ON import_batches (created_at)
		        WHERE status = 'pending';
		  END IF;
		END $$`,
		// open-ended price lookups filter on to_date IS NULL per product
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_product_prices_open') THEN
		    CREATE INDEX idx_product_prices_open
		        ON product_prices (product_id, kind)
		        WHERE to_date IS NULL;
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
