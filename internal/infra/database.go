package infra

import (
	"fmt"

	"nominamx/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that
// GORM cannot express (partial unique indexes).
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

// RunMigrations applies AutoMigrate plus the schema patches. Also used by
// integration tests against a throwaway database.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Empresa{},
		&model.Empleado{},
		&model.Periodo{},
		&model.Usuario{},
		&model.Recibo{},
		&model.ReciboConcepto{},
		&model.SnapshotVersion{},
		&model.SnapshotConcepto{},
		&model.DocumentoFiscal{},
		&model.AutorizacionTimbrado{},
		&model.Bitacora{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// The two partial unique indexes are the DB-level backstop of the ledger
// invariants: at most one active recibo per (periodo, empleado) and at most
// one active authorization per periodo. Application-level checks race;
// these do not.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uq_recibos_activo') THEN
		    CREATE UNIQUE INDEX uq_recibos_activo
		        ON recibos (periodo_id, empleado_id)
		        WHERE activo = true;
		  END IF;
		END $$`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uq_autorizaciones_activa') THEN
		    CREATE UNIQUE INDEX uq_autorizaciones_activa
		        ON autorizaciones_timbrado (periodo_id)
		        WHERE activa = true;
		  END IF;
		END $$`,
		// Partial index for the stamping retry cron query
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_recibos_pending_retry') THEN
		    CREATE INDEX idx_recibos_pending_retry
		        ON recibos (next_retry_at)
		        WHERE estado = 'timbrado_error' AND next_retry_at IS NOT NULL;
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
