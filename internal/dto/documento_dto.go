package dto

import "github.com/google/uuid"

// AlmacenarOpciones are the store-time options of the integrity store.
type AlmacenarOpciones struct {
	ActorID            uuid.UUID
	NombreArchivo      *string
	MimeType           *string
	PermitirDuplicado  bool
}

type DocumentoResponse struct {
	ID            string  `json:"id"`
	ReciboID      string  `json:"recibo_id"`
	Tipo          string  `json:"tipo"`
	Version       int     `json:"version"`
	ContentHash   string  `json:"content_hash"`
	RutaStorage   string  `json:"ruta_storage"`
	TamanoBytes   int64   `json:"tamano_bytes"`
	NombreArchivo *string `json:"nombre_archivo"`
	MimeType      *string `json:"mime_type"`
	Activo        bool    `json:"activo"`
	CreatedAt     string  `json:"created_at"`
}

// DocumentoObtenido carries the bytes plus the integrity verdict.
// A hash mismatch does NOT fail the read: IntegridadValida=false is surfaced
// so diagnostics remain possible on corrupted artifacts. Callers that require
// guaranteed integrity MUST check the flag before using Contenido.
type DocumentoObtenido struct {
	Documento        DocumentoResponse `json:"documento"`
	Contenido        []byte            `json:"contenido"`
	IntegridadValida bool              `json:"integridad_valida"`
}

// VerificacionDocumento is the per-document result of an integrity scan.
// A missing file is reported (ArchivoExiste=false), never thrown — the scan
// must complete and report all findings.
type VerificacionDocumento struct {
	DocumentoID   string `json:"documento_id"`
	ReciboID      string `json:"recibo_id"`
	Tipo          string `json:"tipo"`
	Version       int    `json:"version"`
	ArchivoExiste bool   `json:"archivo_existe"`
	Valido        bool   `json:"valido"`
	HashEsperado  string `json:"hash_esperado"`
	HashActual    string `json:"hash_actual,omitempty"`
}

type VerificacionPeriodoResponse struct {
	PeriodoID  string                  `json:"periodo_id"`
	Total      int                     `json:"total"`
	Validos    int                     `json:"validos"`
	Invalidos  int                     `json:"invalidos"`
	Faltantes  int                     `json:"faltantes"`
	Resultados []VerificacionDocumento `json:"resultados"`
}

type EliminarDocumentoRequest struct {
	Motivo string `json:"motivo" validate:"required,min=5"`
}
