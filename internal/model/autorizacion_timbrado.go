package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AutorizacionTimbrado is the period-scoped permission record that must exist
// (activa=true) before any recibo of the period may be sent to the PAC.
// At most one activa row per periodo_id (partial unique index
// uq_autorizaciones_activa). Revoked rows are kept for history.
type AutorizacionTimbrado struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PeriodoID     uuid.UUID `gorm:"type:uuid;not null;index"`
	AutorizadoPor uuid.UUID `gorm:"type:uuid;not null"`
	AutorizadoAt  time.Time `gorm:"not null"`
	Detalle       *string

	// Aggregate figures at authorization time, for the audit trail
	NumRecibos int             `gorm:"not null;default:0"`
	TotalNeto  decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`

	Activa           bool       `gorm:"not null;default:true"`
	RevocadaAt       *time.Time
	RevocadaPor      *uuid.UUID `gorm:"type:uuid"`
	MotivoRevocacion *string

	CreatedAt time.Time
}

// TableName overrides GORM's default pluralization.
func (AutorizacionTimbrado) TableName() string { return "autorizaciones_timbrado" }
