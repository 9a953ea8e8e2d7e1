package worker

// email_worker.go
// Processes email jobs from QueueEmail.
// Mails the stamped receipt PDF to the employee via SMTP.

import (
	"context"
	"encoding/json"

	"nominamx/internal/infra"
	"nominamx/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EmailJobPayload is the job envelope sent to QueueEmail. The PDF is
// referenced by its document id and fetched (integrity-checked) at send time.
type EmailJobPayload struct {
	ToEmail     string `json:"to_email"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	DocumentoID string `json:"documento_id"`
}

// EmailWorker processes email jobs from QueueEmail.
type EmailWorker struct {
	mailer     *infra.Mailer
	documentos service.DocumentoService
}

func NewEmailWorker(mailer *infra.Mailer, documentos service.DocumentoService) *EmailWorker {
	return &EmailWorker{mailer: mailer, documentos: documentos}
}

// Process sends an email with the receipt PDF as attachment. A PDF that fails
// its integrity check is never mailed.
func (w *EmailWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload EmailJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("email_worker: invalid payload")
		return
	}
	if payload.ToEmail == "" {
		log.Warn().Msg("email_worker: empty to_email — skipping")
		return
	}

	var nombre string
	var contenido []byte
	if payload.DocumentoID != "" {
		docID, err := uuid.Parse(payload.DocumentoID)
		if err != nil {
			log.Error().Str("documento_id", payload.DocumentoID).Msg("email_worker: invalid documento_id")
			return
		}
		obtenido, err := w.documentos.Obtener(ctx, docID, false)
		if err != nil {
			log.Error().Err(err).Str("documento_id", payload.DocumentoID).Msg("email_worker: failed to fetch PDF")
			return
		}
		if !obtenido.IntegridadValida {
			log.Error().Str("documento_id", payload.DocumentoID).Msg("email_worker: PDF failed integrity check, not sending")
			return
		}
		contenido = obtenido.Contenido
		nombre = "recibo.pdf"
		if obtenido.Documento.NombreArchivo != nil {
			nombre = *obtenido.Documento.NombreArchivo
		}
	}

	if err := w.mailer.SendRecibo(payload.ToEmail, payload.Subject, payload.Body, nombre, contenido); err != nil {
		log.Error().Err(err).Str("to", payload.ToEmail).Msg("email_worker: failed to send email")
		return
	}
	log.Info().Str("to", payload.ToEmail).Msg("email_worker: recibo sent successfully")
}
