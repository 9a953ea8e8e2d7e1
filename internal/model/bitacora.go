package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Acciones registradas en bitácora.
const (
	AccionReciboCreado        = "recibo_creado"
	AccionReciboRecalculado   = "recibo_recalculado"
	AccionDocumentoAlmacenado = "documento_almacenado"
	AccionDocumentoEliminado  = "documento_eliminado"
	AccionTimbradoAutorizado  = "timbrado_autorizado"
	AccionAutorizacionRevocada = "autorizacion_revocada"
	AccionTimbradoSolicitado  = "timbrado_solicitado"
	AccionReciboTimbrado      = "recibo_timbrado"
)

// Bitacora is an immutable audit event. Rows are NEVER modified or deleted —
// every state-changing operation appends one entry before it is considered
// complete.
type Bitacora struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Accion    string    `gorm:"type:varchar(40);not null;index"`
	UsuarioID uuid.UUID `gorm:"type:uuid;not null"`

	ReciboID    *uuid.UUID `gorm:"type:uuid;index"`
	PeriodoID   *uuid.UUID `gorm:"type:uuid;index"`
	DocumentoID *uuid.UUID `gorm:"type:uuid"`

	// Financial deltas for recalculations
	NetoAntes   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	NetoDespues *decimal.Decimal `gorm:"type:decimal(12,2)"`

	Detalle   string `gorm:"not null"`
	CreatedAt time.Time
}

// TableName overrides GORM's default pluralization (bitacoras → bitacora).
func (Bitacora) TableName() string { return "bitacora" }
