package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados de ciclo de vida de un recibo.
const (
	ReciboPendiente     = "pendiente"
	ReciboCalculado     = "calculado"
	ReciboAprobado      = "aprobado"
	ReciboTimbrando     = "timbrando"
	ReciboTimbradoOk    = "timbrado_ok"
	ReciboTimbradoError = "timbrado_error"
	ReciboPagado        = "pagado"
	ReciboCancelado     = "cancelado"
	ReciboSustituido    = "sustituido"
)

// Estados del timbre fiscal (CFDI).
const (
	TimbreSinTimbrar = "sin_timbrar"
	TimbreTimbrado   = "timbrado"
	TimbreCancelado  = "cancelado"
)

// Recibo is one computed payroll result for one (periodo, empleado) pair.
// Financial figures are immutable once persisted: a recalculation NEVER
// updates them in place — it marks this row sustituido and inserts a
// successor row linked via ParentID.
// Exactly one row per (periodo_id, empleado_id) has activo=true; the
// partial unique index uq_recibos_activo enforces this at the DB layer.
type Recibo struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PeriodoID  uuid.UUID `gorm:"type:uuid;not null;index:idx_recibos_periodo_empleado"`
	EmpleadoID uuid.UUID `gorm:"type:uuid;not null;index:idx_recibos_periodo_empleado"`

	// Versioning chain
	Version      int        `gorm:"not null;default:1"`
	ParentID     *uuid.UUID `gorm:"type:uuid;index"`
	Activo       bool       `gorm:"not null;default:true"`
	SustituidoAt *time.Time

	Estado string `gorm:"type:varchar(20);not null;default:'pendiente'"`

	// Financial snapshot
	DiasTrabajados    decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	TotalPercepciones decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalDeducciones  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	NetoAPagar        decimal.Decimal `gorm:"type:decimal(12,2);not null;column:neto_a_pagar"`

	// Fiscal stamp — set by the timbrado worker from the PAC response.
	// Once EstadoTimbre = "timbrado" the row is legally frozen: no field
	// changes and no successor may be chained until the stamp is cancelled.
	TimbreUUID   *string `gorm:"type:varchar(40);column:timbre_uuid"`
	EstadoTimbre string  `gorm:"type:varchar(20);not null;default:'sin_timbrar'"`
	TimbradoAt   *time.Time

	// Retry fields — used by retry_cron to re-attempt failed PAC calls
	RetryCount  int        `gorm:"not null;default:0"`
	NextRetryAt *time.Time `gorm:"column:next_retry_at"`
	LastError   *string

	CreatedAt time.Time
	UpdatedAt time.Time

	Conceptos []ReciboConcepto `gorm:"foreignKey:ReciboID"`
}

// Tipos de concepto de nómina.
const (
	ConceptoPercepcion = "percepcion"
	ConceptoDeduccion  = "deduccion"
)

// ReciboConcepto is one perception or deduction line of a Recibo.
// Lines are written once, together with their recibo, and never updated.
type ReciboConcepto struct {
	ID       uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ReciboID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Tipo     string          `gorm:"type:varchar(20);not null"`
	Clave    string          `gorm:"type:varchar(20);not null"`
	Nombre   string          `gorm:"not null"`
	Importe  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Orden    int             `gorm:"not null;default:0"`
	CreatedAt time.Time
}

// TableName overrides GORM's default pluralization (recibo_conceptos → recibos_conceptos).
func (ReciboConcepto) TableName() string { return "recibos_conceptos" }
