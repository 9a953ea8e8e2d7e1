package worker

// timbrado_worker.go
// Processes stamping jobs from QueueTimbrado.
// Sends the CFDI nómina to the PAC bridge and archives every artifact
// (original XML, stamped XML, receipt PDF) through the content-addressed
// document store. Failures schedule exponential retries; exhausted jobs land
// in the DLQ.

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"time"

	"nominamx/internal/apierror"
	"nominamx/internal/dto"
	"nominamx/internal/infra"
	"nominamx/internal/model"
	"nominamx/internal/repository"
	"nominamx/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// MaxReciboRetries is the retry budget before a stamping job moves to the DLQ.
const MaxReciboRetries = 5

// TimbradoWorker processes stamping jobs from QueueTimbrado. The same
// ProcesarRecibo path serves both fresh jobs and the retry cron.
type TimbradoWorker struct {
	pacClient  *infra.PACClient
	cb         *infra.CircuitBreaker
	recibos    repository.ReciboRepository
	periodos   repository.PeriodoRepository
	empleados  repository.EmpleadoRepository
	empresas   repository.EmpresaRepository
	bitacora   repository.BitacoraRepository
	documentos service.DocumentoService
	dispatcher *Dispatcher
	rdb        *redis.Client
}

func NewTimbradoWorker(
	pacClient *infra.PACClient,
	cb *infra.CircuitBreaker,
	recibos repository.ReciboRepository,
	periodos repository.PeriodoRepository,
	empleados repository.EmpleadoRepository,
	empresas repository.EmpresaRepository,
	bitacora repository.BitacoraRepository,
	documentos service.DocumentoService,
	dispatcher *Dispatcher,
	rdb *redis.Client,
) *TimbradoWorker {
	return &TimbradoWorker{
		pacClient:  pacClient,
		cb:         cb,
		recibos:    recibos,
		periodos:   periodos,
		empleados:  empleados,
		empresas:   empresas,
		bitacora:   bitacora,
		documentos: documentos,
		dispatcher: dispatcher,
		rdb:        rdb,
	}
}

// Process handles one queued stamping job.
func (w *TimbradoWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload TimbradoJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("timbrado_worker: invalid payload")
		return
	}
	reciboID, err := uuid.Parse(payload.ReciboID)
	if err != nil {
		log.Error().Str("recibo_id", payload.ReciboID).Msg("timbrado_worker: invalid recibo_id")
		return
	}
	w.ProcesarRecibo(ctx, reciboID)
}

// ProcesarRecibo runs the full stamping pipeline for one recibo:
//  1. Load the recibo and its fiscal context (empleado, periodo, empresa)
//  2. Build and archive the original CFDI XML
//  3. Call the PAC bridge through the circuit breaker (3 in-call attempts)
//  4. On success: record the timbre, archive the stamped XML and the PDF,
//     append the audit entry, enqueue the employee email
//  5. On failure: mark timbrado_error and schedule the next retry, or DLQ
//     the job when the retry budget is exhausted
func (w *TimbradoWorker) ProcesarRecibo(ctx context.Context, reciboID uuid.UUID) {
	recibo, err := w.recibos.FindByID(ctx, reciboID)
	if err != nil {
		log.Error().Err(err).Str("recibo_id", reciboID.String()).Msg("timbrado_worker: recibo not found")
		return
	}
	if !recibo.Activo {
		log.Warn().Str("recibo_id", reciboID.String()).Msg("timbrado_worker: recibo superseded, skipping")
		return
	}
	if recibo.EstadoTimbre == model.TimbreTimbrado {
		log.Info().Str("recibo_id", reciboID.String()).Msg("timbrado_worker: already stamped, skipping")
		return
	}

	empleado, err := w.empleados.FindByID(ctx, recibo.EmpleadoID)
	if err != nil {
		log.Error().Err(err).Str("recibo_id", reciboID.String()).Msg("timbrado_worker: empleado not found")
		return
	}
	periodo, err := w.periodos.FindByID(ctx, recibo.PeriodoID)
	if err != nil {
		log.Error().Err(err).Str("recibo_id", reciboID.String()).Msg("timbrado_worker: periodo not found")
		return
	}
	empresa, err := w.empresas.FindByID(ctx, periodo.EmpresaID)
	if err != nil {
		log.Error().Err(err).Str("recibo_id", reciboID.String()).Msg("timbrado_worker: empresa not found")
		return
	}

	// 2. Original CFDI — archived before the PAC call so the submitted payload
	// is always reconstructible. A retry regenerates identical bytes; the
	// resulting Conflict means the payload is already on file.
	xmlOriginal, err := generarCFDINomina(recibo, empleado, periodo, empresa)
	if err != nil {
		log.Error().Err(err).Str("recibo_id", reciboID.String()).Msg("timbrado_worker: CFDI generation failed")
		w.registrarFallo(ctx, recibo, err)
		return
	}
	nombreXML := fmt.Sprintf("recibo_%s_v%d.xml", empleado.NumEmpleado, recibo.Version)
	mimeXML := "application/xml"
	if _, err := w.documentos.Almacenar(ctx, reciboID, model.DocXMLOriginal, xmlOriginal, dto.AlmacenarOpciones{
		ActorID:       uuid.Nil, // system actor
		NombreArchivo: &nombreXML,
		MimeType:      &mimeXML,
	}); err != nil && apierror.KindOf(err) != apierror.KindConflict {
		log.Error().Err(err).Str("recibo_id", reciboID.String()).Msg("timbrado_worker: failed to archive original XML")
		w.registrarFallo(ctx, recibo, err)
		return
	}

	// 3. PAC call: circuit breaker around short in-call retries
	pacPayload := infra.PACPayload{
		ReciboID:    reciboID.String(),
		EmpresaRFC:  empresa.RFC,
		EmpleadoRFC: empleado.RFC,
		XMLOriginal: xmlOriginal,
		TotalNeto:   recibo.NetoAPagar.StringFixed(2),
		FechaPago:   periodo.FechaFin.Format("2006-01-02"),
	}
	if empleado.CURP != nil {
		pacPayload.EmpleadoCURP = *empleado.CURP
	}

	var pacResp *infra.PACResponse
	cbErr := w.cb.Execute(func() error {
		return withRetry(ctx, 3, func(attempt int) error {
			resp, err := w.pacClient.Timbrar(ctx, pacPayload)
			if err != nil {
				log.Warn().
					Err(err).
					Int("attempt", attempt+1).
					Str("recibo_id", reciboID.String()).
					Msg("timbrado_worker: PAC attempt failed, retrying")
				return err
			}
			pacResp = resp
			return nil
		})
	})

	if cbErr != nil {
		w.registrarFallo(ctx, recibo, cbErr)
		return
	}

	if pacResp.Resultado != "A" {
		obs := "PAC rechazó el CFDI"
		if len(pacResp.Observaciones) > 0 {
			obs = fmt.Sprintf("PAC rechazó el CFDI: [%s] %s", pacResp.Observaciones[0].Codigo, pacResp.Observaciones[0].Mensaje)
		}
		w.registrarFallo(ctx, recibo, fmt.Errorf("%s", obs))
		return
	}

	// 4. Success — record the timbre and archive everything
	now := time.Now()
	timbreUUID := pacResp.TimbreUUID
	recibo.Estado = model.ReciboTimbradoOk
	recibo.EstadoTimbre = model.TimbreTimbrado
	recibo.TimbreUUID = &timbreUUID
	recibo.TimbradoAt = &now
	recibo.NextRetryAt = nil
	recibo.LastError = nil
	if err := w.recibos.Update(ctx, recibo); err != nil {
		log.Error().Err(err).Str("recibo_id", reciboID.String()).Msg("timbrado_worker: failed to persist timbre")
		return
	}

	nombreTimbrado := fmt.Sprintf("recibo_%s_v%d_timbrado.xml", empleado.NumEmpleado, recibo.Version)
	if _, err := w.documentos.Almacenar(ctx, reciboID, model.DocXMLTimbrado, pacResp.XMLTimbrado, dto.AlmacenarOpciones{
		ActorID:       uuid.Nil,
		NombreArchivo: &nombreTimbrado,
		MimeType:      &mimeXML,
	}); err != nil && apierror.KindOf(err) != apierror.KindConflict {
		log.Error().Err(err).Str("recibo_id", reciboID.String()).Msg("timbrado_worker: failed to archive stamped XML")
	}

	var pdfDoc *dto.DocumentoResponse
	pdfBytes, pdfErr := infra.GenerateReciboPDF(recibo, empleado, periodo, empresa)
	if pdfErr != nil {
		log.Warn().Err(pdfErr).Str("recibo_id", reciboID.String()).Msg("timbrado_worker: PDF generation failed")
	} else {
		nombrePDF := fmt.Sprintf("recibo_%s_v%d.pdf", empleado.NumEmpleado, recibo.Version)
		mimePDF := "application/pdf"
		pdfDoc, err = w.documentos.Almacenar(ctx, reciboID, model.DocPDFRecibo, pdfBytes, dto.AlmacenarOpciones{
			ActorID:       uuid.Nil,
			NombreArchivo: &nombrePDF,
			MimeType:      &mimePDF,
		})
		if err != nil {
			log.Warn().Err(err).Str("recibo_id", reciboID.String()).Msg("timbrado_worker: failed to archive PDF")
		}
	}

	if err := w.bitacora.Create(ctx, &model.Bitacora{
		Accion:    model.AccionReciboTimbrado,
		UsuarioID: uuid.Nil,
		ReciboID:  &recibo.ID,
		PeriodoID: &recibo.PeriodoID,
		Detalle:   fmt.Sprintf("Recibo v%d timbrado, UUID %s", recibo.Version, timbreUUID),
	}); err != nil {
		log.Error().Err(err).Str("recibo_id", reciboID.String()).Msg("timbrado_worker: failed to append audit entry")
	}

	log.Info().
		Str("recibo_id", reciboID.String()).
		Str("timbre_uuid", timbreUUID).
		Msg("timbrado_worker: recibo stamped")

	// 5. Employee email with the stamped PDF
	if empleado.Email != nil && *empleado.Email != "" && pdfDoc != nil {
		emailJob := EmailJobPayload{
			ToEmail:     *empleado.Email,
			Subject:     fmt.Sprintf("Recibo de nómina — %s", periodo.Nombre),
			Body:        fmt.Sprintf("Adjunto encontrarás tu recibo de nómina timbrado.\nNeto a pagar: $%s", recibo.NetoAPagar.StringFixed(2)),
			DocumentoID: pdfDoc.ID,
		}
		if err := w.dispatcher.EnqueueEmail(ctx, emailJob); err != nil {
			log.Warn().Err(err).Str("email", *empleado.Email).Msg("timbrado_worker: failed to enqueue email")
		}
	}
}

// registrarFallo marks the recibo as timbrado_error and schedules the next
// retry; an exhausted retry budget moves the job to the DLQ instead.
func (w *TimbradoWorker) registrarFallo(ctx context.Context, recibo *model.Recibo, cause error) {
	recibo.Estado = model.ReciboTimbradoError
	recibo.RetryCount++
	errMsg := cause.Error()
	recibo.LastError = &errMsg

	if recibo.RetryCount >= MaxReciboRetries {
		recibo.NextRetryAt = nil
		log.Error().
			Str("recibo_id", recibo.ID.String()).
			Int("retries", recibo.RetryCount).
			Msg("timbrado_worker: max retries exceeded, moving to DLQ")

		payload := fmt.Sprintf(`{"recibo_id":%q}`, recibo.ID.String())
		SendToDLQ(ctx, w.rdb, QueueTimbrado, "timbrado", []byte(payload),
			fmt.Sprintf("max retries (%d) exceeded: %s", MaxReciboRetries, errMsg),
			recibo.RetryCount)
	} else {
		nextRetry := time.Now().Add(computeRetryBackoff(recibo.RetryCount))
		recibo.NextRetryAt = &nextRetry
		log.Warn().
			Str("recibo_id", recibo.ID.String()).
			Int("retry_count", recibo.RetryCount).
			Time("next_retry_at", nextRetry).
			Msg("timbrado_worker: stamping failed, scheduled next attempt")
	}

	if err := w.recibos.Update(ctx, recibo); err != nil {
		log.Error().Err(err).Str("recibo_id", recibo.ID.String()).Msg("timbrado_worker: failed to persist failure state")
	}
}

// computeRetryBackoff: 1m, 2m, 4m, 8m … capped at 60m.
func computeRetryBackoff(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	backoff := time.Duration(1<<uint(retryCount-1)) * time.Minute
	if backoff > 60*time.Minute {
		backoff = 60 * time.Minute
	}
	return backoff
}

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = 1s, 3 = 2s.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// ── CFDI nómina generation ───────────────────────────────────────────────────

type cfdiComprobante struct {
	XMLName xml.Name `xml:"Comprobante"`
	Version string   `xml:"Version,attr"`
	Fecha   string   `xml:"Fecha,attr"`
	Total   string   `xml:"Total,attr"`
	Emisor  struct {
		RFC         string `xml:"Rfc,attr"`
		RazonSocial string `xml:"Nombre,attr"`
	} `xml:"Emisor"`
	Receptor struct {
		RFC    string `xml:"Rfc,attr"`
		Nombre string `xml:"Nombre,attr"`
		CURP   string `xml:"Curp,attr,omitempty"`
	} `xml:"Receptor"`
	Nomina struct {
		FechaInicialPago  string         `xml:"FechaInicialPago,attr"`
		FechaFinalPago    string         `xml:"FechaFinalPago,attr"`
		DiasPagados       string         `xml:"NumDiasPagados,attr"`
		TotalPercepciones string         `xml:"TotalPercepciones,attr"`
		TotalDeducciones  string         `xml:"TotalDeducciones,attr"`
		Conceptos         []cfdiConcepto `xml:"Concepto"`
	} `xml:"Nomina"`
}

type cfdiConcepto struct {
	Tipo    string `xml:"Tipo,attr"`
	Clave   string `xml:"Clave,attr"`
	Nombre  string `xml:"Concepto,attr"`
	Importe string `xml:"Importe,attr"`
}

// generarCFDINomina builds the pre-stamp CFDI payload. The PAC bridge seals
// and certifies it; this side only guarantees the figures match the recibo.
func generarCFDINomina(recibo *model.Recibo, empleado *model.Empleado, periodo *model.Periodo, empresa *model.Empresa) ([]byte, error) {
	doc := cfdiComprobante{
		Version: "4.0",
		Fecha:   time.Now().Format("2006-01-02T15:04:05"),
		Total:   recibo.NetoAPagar.StringFixed(2),
	}
	doc.Emisor.RFC = empresa.RFC
	doc.Emisor.RazonSocial = empresa.RazonSocial
	doc.Receptor.RFC = empleado.RFC
	doc.Receptor.Nombre = empleado.Nombre
	if empleado.CURP != nil {
		doc.Receptor.CURP = *empleado.CURP
	}
	doc.Nomina.FechaInicialPago = periodo.FechaInicio.Format("2006-01-02")
	doc.Nomina.FechaFinalPago = periodo.FechaFin.Format("2006-01-02")
	doc.Nomina.DiasPagados = recibo.DiasTrabajados.StringFixed(2)
	doc.Nomina.TotalPercepciones = recibo.TotalPercepciones.StringFixed(2)
	doc.Nomina.TotalDeducciones = recibo.TotalDeducciones.StringFixed(2)
	for _, c := range recibo.Conceptos {
		doc.Nomina.Conceptos = append(doc.Nomina.Conceptos, cfdiConcepto{
			Tipo:    c.Tipo,
			Clave:   c.Clave,
			Nombre:  c.Nombre,
			Importe: c.Importe.StringFixed(2),
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("cfdi: marshal: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
