package model

import (
	"time"

	"github.com/google/uuid"
)

// Tipos de documento fiscal.
const (
	DocXMLOriginal          = "xml_original"
	DocXMLTimbrado          = "xml_timbrado"
	DocSolicitudCancelacion = "solicitud_cancelacion"
	DocAcuseCancelacion     = "acuse_cancelacion"
	DocPDFRecibo            = "pdf_recibo"
	DocReporteAuditoria     = "reporte_auditoria"
)

// DocumentoFiscal is the content-addressed registry row for one stored
// artifact (XML, PDF, acuse). The bytes live in the file store at
// RutaStorage; ContentHash is the SHA-256 of the payload and doubles as the
// deduplication key. Version is monotonic per (recibo_id, tipo); storing a
// newer version marks the prior one inactive — rows are never physically
// removed, only soft-deleted.
type DocumentoFiscal struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ReciboID uuid.UUID `gorm:"type:uuid;not null;index:idx_documentos_recibo_tipo"`
	Tipo     string    `gorm:"type:varchar(30);not null;index:idx_documentos_recibo_tipo"`
	Version  int       `gorm:"not null;default:1"`

	ContentHash   string  `gorm:"type:varchar(64);not null;index"`
	RutaStorage   string  `gorm:"not null"`
	TamanoBytes   int64   `gorm:"not null"`
	NombreArchivo *string
	MimeType      *string `gorm:"type:varchar(100)"`

	Activo bool `gorm:"not null;default:true"`
	// Soft delete — the row stays for fiscal reconstruction
	DeletedAt         *time.Time
	DeletedBy         *uuid.UUID `gorm:"type:uuid"`
	MotivoEliminacion *string

	CreadoPor uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt time.Time
}

// TableName overrides GORM's default pluralization.
func (DocumentoFiscal) TableName() string { return "documentos_fiscales" }
