package infra

// pdf.go — payroll receipt PDF generation using go-pdf/fpdf.
// Renders an A4 recibo de nómina with:
//   - Employer header (razón social, RFC, registro patronal)
//   - Employee block (nombre, número, RFC, CURP, NSS)
//   - Period and version line
//   - Perception / deduction tables
//   - Bold net pay
//   - Timbre UUID footer when the receipt is stamped
//
// The bytes are returned (not written to disk) so the caller can register
// them through the content-addressed document store.

import (
	"bytes"
	"fmt"

	"nominamx/internal/model"

	"github.com/go-pdf/fpdf"
)

// GenerateReciboPDF renders the recibo to PDF bytes.
func GenerateReciboPDF(recibo *model.Recibo, empleado *model.Empleado, periodo *model.Periodo, empresa *model.Empresa) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, empresa.RazonSocial, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, "RFC: "+empresa.RFC, "", 1, "C", false, 0, "")
	if empresa.RegistroPatronal != nil {
		pdf.CellFormat(contentW, 5, "Registro Patronal: "+*empresa.RegistroPatronal, "", 1, "C", false, 0, "")
	}
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentW, 6, "Recibo de Nómina", "", 1, "C", false, 0, "")
	pdf.Ln(3)

	// ── Employee block ───────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 5, empleado.Nombre, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 4, fmt.Sprintf("No. empleado: %s   RFC: %s", empleado.NumEmpleado, empleado.RFC), "", 1, "L", false, 0, "")
	detalle := ""
	if empleado.CURP != nil {
		detalle += "CURP: " + *empleado.CURP + "   "
	}
	if empleado.NSS != nil {
		detalle += "NSS: " + *empleado.NSS
	}
	if detalle != "" {
		pdf.CellFormat(contentW, 4, detalle, "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	// ── Period line ──────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 4, fmt.Sprintf("Periodo: %s (%s — %s)   Versión: %d   Días trabajados: %s",
		periodo.Nombre,
		periodo.FechaInicio.Format("02/01/2006"),
		periodo.FechaFin.Format("02/01/2006"),
		recibo.Version,
		recibo.DiasTrabajados.StringFixed(2)), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(2)

	// ── Concept tables ───────────────────────────────────────────────────────
	col1 := contentW * 0.15
	col2 := contentW * 0.55
	col3 := contentW * 0.30

	renderSeccion := func(titulo, tipo string) {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(contentW, 6, titulo, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(col1, 5, "Clave", "B", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, "Concepto", "B", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, "Importe", "B", 1, "R", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		for _, c := range recibo.Conceptos {
			if c.Tipo != tipo {
				continue
			}
			pdf.CellFormat(col1, 5, c.Clave, "", 0, "L", false, 0, "")
			pdf.CellFormat(col2, 5, c.Nombre, "", 0, "L", false, 0, "")
			pdf.CellFormat(col3, 5, "$"+c.Importe.StringFixed(2), "", 1, "R", false, 0, "")
		}
		pdf.Ln(2)
	}
	renderSeccion("Percepciones", model.ConceptoPercepcion)
	renderSeccion("Deducciones", model.ConceptoDeduccion)

	// ── Totals ───────────────────────────────────────────────────────────────
	pdf.Line(15, pdf.GetY(), pageW-15, pdf.GetY())
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(col1+col2, 6, "Total percepciones:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, "$"+recibo.TotalPercepciones.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.CellFormat(col1+col2, 6, "Total deducciones:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, "-$"+recibo.TotalDeducciones.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(col1+col2, 8, "NETO A PAGAR:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 8, "$"+recibo.NetoAPagar.StringFixed(2), "", 1, "R", false, 0, "")

	// ── Timbre footer ────────────────────────────────────────────────────────
	if recibo.TimbreUUID != nil {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.CellFormat(contentW, 4, "Folio fiscal (UUID): "+*recibo.TimbreUUID, "", 1, "L", false, 0, "")
		if recibo.TimbradoAt != nil {
			pdf.CellFormat(contentW, 4, "Fecha de timbrado: "+recibo.TimbradoAt.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render recibo: %w", err)
	}
	return buf.Bytes(), nil
}
