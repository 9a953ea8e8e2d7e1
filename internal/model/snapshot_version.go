package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Motivos de captura de un snapshot.
const (
	SnapshotInicial   = "inicial"
	SnapshotRecalculo = "recalculo"
	SnapshotCorreccion = "correccion"
	SnapshotAjuste    = "ajuste"
)

// SnapshotVersion is an immutable historical copy of a Recibo, captured at
// creation (motivo=inicial) and at the moment the recibo is superseded.
// Rows are never updated or deleted.
type SnapshotVersion struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ReciboID uuid.UUID `gorm:"type:uuid;not null;index"`
	Version  int       `gorm:"not null"`

	DiasTrabajados    decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	TotalPercepciones decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalDeducciones  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	NetoAPagar        decimal.Decimal `gorm:"type:decimal(12,2);not null;column:neto_a_pagar"`

	// Motivo: "inicial" | "recalculo" | "correccion" | "ajuste"
	Motivo        string  `gorm:"type:varchar(20);not null"`
	MotivoDetalle *string
	CreadoPor     uuid.UUID `gorm:"type:uuid;not null"`
	// EstadoTimbreCaptura records the fiscal stamp state at capture time
	EstadoTimbreCaptura string `gorm:"type:varchar(20);not null;default:'sin_timbrar'"`
	CreatedAt           time.Time

	Conceptos []SnapshotConcepto `gorm:"foreignKey:SnapshotID"`
}

// TableName overrides GORM's default pluralization.
func (SnapshotVersion) TableName() string { return "snapshots_version" }

// SnapshotConcepto is an ordered line-item copy inside a SnapshotVersion.
type SnapshotConcepto struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SnapshotID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Tipo       string          `gorm:"type:varchar(20);not null"`
	Clave      string          `gorm:"type:varchar(20);not null"`
	Nombre     string          `gorm:"not null"`
	Importe    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Orden      int             `gorm:"not null;default:0"`
}

// TableName overrides GORM's default pluralization.
func (SnapshotConcepto) TableName() string { return "snapshots_conceptos" }
