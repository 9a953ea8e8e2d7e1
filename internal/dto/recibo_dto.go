package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ConceptoInput is one signed perception or deduction line coming from the
// calculation engine. Amounts arrive computed — the ledger never re-derives them.
type ConceptoInput struct {
	Clave   string          `json:"clave"   validate:"required"`
	Nombre  string          `json:"nombre"  validate:"required"`
	Importe decimal.Decimal `json:"importe" validate:"required"`
}

// CrearReciboRequest registers the version-1 recibo of a (periodo, empleado) pair.
type CrearReciboRequest struct {
	PeriodoID         string          `json:"periodo_id"  validate:"required,uuid"`
	EmpleadoID        string          `json:"empleado_id" validate:"required,uuid"`
	DiasTrabajados    decimal.Decimal `json:"dias_trabajados"    validate:"required"`
	TotalPercepciones decimal.Decimal `json:"total_percepciones" validate:"required"`
	TotalDeducciones  decimal.Decimal `json:"total_deducciones"`
	NetoAPagar        decimal.Decimal `json:"neto_a_pagar" validate:"required"`
	Percepciones      []ConceptoInput `json:"percepciones" validate:"required,min=1,dive"`
	Deducciones       []ConceptoInput `json:"deducciones"  validate:"dive"`
}

// RecalcularRequest supersedes the current recibo version with new figures.
type RecalcularRequest struct {
	DiasTrabajados    decimal.Decimal `json:"dias_trabajados"    validate:"required"`
	TotalPercepciones decimal.Decimal `json:"total_percepciones" validate:"required"`
	TotalDeducciones  decimal.Decimal `json:"total_deducciones"`
	NetoAPagar        decimal.Decimal `json:"neto_a_pagar" validate:"required"`
	Percepciones      []ConceptoInput `json:"percepciones" validate:"required,min=1,dive"`
	Deducciones       []ConceptoInput `json:"deducciones"  validate:"dive"`
	Motivo            string          `json:"motivo" validate:"required,oneof=recalculo correccion ajuste"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// PuedeModificarResponse answers the advisory mutability check.
// NOTE: this is a pure read — the recalculation transaction re-checks the
// same preconditions under a row lock before mutating.
type PuedeModificarResponse struct {
	PuedeModificar bool   `json:"puede_modificar"`
	Motivo         string `json:"motivo,omitempty"`
	EstadoActual   string `json:"estado_actual"`
	TieneTimbre    bool   `json:"tiene_timbre"`
}

type ConceptoResponse struct {
	Tipo    string          `json:"tipo"`
	Clave   string          `json:"clave"`
	Nombre  string          `json:"nombre"`
	Importe decimal.Decimal `json:"importe"`
}

type ReciboResponse struct {
	ID                string             `json:"id"`
	PeriodoID         string             `json:"periodo_id"`
	EmpleadoID        string             `json:"empleado_id"`
	Version           int                `json:"version"`
	ParentID          *string            `json:"parent_id"`
	Activo            bool               `json:"activo"`
	Estado            string             `json:"estado"`
	DiasTrabajados    decimal.Decimal    `json:"dias_trabajados"`
	TotalPercepciones decimal.Decimal    `json:"total_percepciones"`
	TotalDeducciones  decimal.Decimal    `json:"total_deducciones"`
	NetoAPagar        decimal.Decimal    `json:"neto_a_pagar"`
	TimbreUUID        *string            `json:"timbre_uuid"`
	EstadoTimbre      string             `json:"estado_timbre"`
	Conceptos         []ConceptoResponse `json:"conceptos"`
	CreatedAt         string             `json:"created_at"`
}

// ReciboVersionItem is one link of the version chain, oldest→newest.
type ReciboVersionItem struct {
	ID           string          `json:"id"`
	Version      int             `json:"version"`
	ParentID     *string         `json:"parent_id"`
	Activo       bool            `json:"activo"`
	Estado       string          `json:"estado"`
	NetoAPagar   decimal.Decimal `json:"neto_a_pagar"`
	EstadoTimbre string          `json:"estado_timbre"`
	SustituidoAt *string         `json:"sustituido_at"`
	CreatedAt    string          `json:"created_at"`
}

// ─── Version comparison ──────────────────────────────────────────────────────

// Tipos de diferencia entre versiones.
const (
	DiffAgregado   = "agregado"
	DiffEliminado  = "eliminado"
	DiffModificado = "modificado"
)

// DiffConcepto describes one line-item difference keyed by concept clave.
type DiffConcepto struct {
	Tipo    string           `json:"tipo"` // agregado | eliminado | modificado
	Clave   string           `json:"clave"`
	Nombre  string           `json:"nombre"`
	ImporteA *decimal.Decimal `json:"importe_a,omitempty"`
	ImporteB *decimal.Decimal `json:"importe_b,omitempty"`
	Delta   decimal.Decimal  `json:"delta"`
}

type ComparacionResponse struct {
	ReciboID         string          `json:"recibo_id"`
	VersionA         int             `json:"version_a"`
	VersionB         int             `json:"version_b"`
	DiffPercepciones []DiffConcepto  `json:"diff_percepciones"`
	DiffDeducciones  []DiffConcepto  `json:"diff_deducciones"`
	NetoDiferencia   decimal.Decimal `json:"neto_diferencia"`
}
