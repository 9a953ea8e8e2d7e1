package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"nominamx/internal/apierror"
	"nominamx/internal/dto"
	"nominamx/internal/infra"
	"nominamx/internal/model"
	"nominamx/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DocumentoService is the content-addressed store of fiscal artifacts.
// Bytes go to the FileStore; the registry row carries the SHA-256 that every
// later read is verified against. Documents are never physically removed.
type DocumentoService interface {
	Almacenar(ctx context.Context, reciboID uuid.UUID, tipo string, contenido []byte, opts dto.AlmacenarOpciones) (*dto.DocumentoResponse, error)
	Obtener(ctx context.Context, documentoID uuid.UUID, incluirEliminados bool) (*dto.DocumentoObtenido, error)
	VerificarIntegridad(ctx context.Context, documentoID uuid.UUID) (*dto.VerificacionDocumento, error)
	VerificarIntegridadPeriodo(ctx context.Context, periodoID uuid.UUID) (*dto.VerificacionPeriodoResponse, error)
	Eliminar(ctx context.Context, documentoID, actorID uuid.UUID, motivo string) error
}

type documentoService struct {
	documentos repository.DocumentoRepository
	recibos    repository.ReciboRepository
	bitacora   repository.BitacoraRepository
	store      infra.FileStore
}

func NewDocumentoService(
	documentos repository.DocumentoRepository,
	recibos repository.ReciboRepository,
	bitacora repository.BitacoraRepository,
	store infra.FileStore,
) DocumentoService {
	return &documentoService{documentos: documentos, recibos: recibos, bitacora: bitacora, store: store}
}

var tiposDocumentoValidos = map[string]bool{
	model.DocXMLOriginal:          true,
	model.DocXMLTimbrado:          true,
	model.DocSolicitudCancelacion: true,
	model.DocAcuseCancelacion:     true,
	model.DocPDFRecibo:            true,
	model.DocReporteAuditoria:     true,
}

// ── Almacenar ─────────────────────────────────────────────────────────────────

// Almacenar hashes the payload, deduplicates against any prior version of the
// same (recibo, tipo), writes the bytes, then commits the registry row and the
// deactivation of prior versions in one transaction. Re-archiving content that
// is already registered is a Conflict — an unchanged re-upload is not a new
// fiscal event — unless opts.PermitirDuplicado forces a new version anyway.
func (s *documentoService) Almacenar(ctx context.Context, reciboID uuid.UUID, tipo string, contenido []byte, opts dto.AlmacenarOpciones) (*dto.DocumentoResponse, error) {
	if !tiposDocumentoValidos[tipo] {
		return nil, apierror.Validation("tipo de documento '%s' no reconocido", tipo)
	}
	if len(contenido) == 0 {
		return nil, apierror.Validation("el contenido del documento no puede estar vacío")
	}

	recibo, err := s.recibos.FindByID(ctx, reciboID)
	if err != nil {
		return nil, apierror.NotFound("recibo %s no encontrado", reciboID)
	}

	sum := sha256.Sum256(contenido)
	hash := hex.EncodeToString(sum[:])

	if !opts.PermitirDuplicado {
		if existente, err := s.documentos.FindByHash(ctx, reciboID, tipo, hash); err == nil && existente != nil {
			return nil, apierror.Conflict(
				"contenido idéntico ya almacenado como %s v%d (hash %s)", tipo, existente.Version, hash[:12])
		}
	}

	var doc model.DocumentoFiscal
	txErr := runTx(ctx, s.documentos.DB(), func(tx *gorm.DB) error {
		maxVersion, err := s.documentos.MaxVersionTx(tx, reciboID, tipo)
		if err != nil {
			return err
		}

		doc = model.DocumentoFiscal{
			ReciboID:      reciboID,
			Tipo:          tipo,
			Version:       maxVersion + 1,
			ContentHash:   hash,
			RutaStorage:   infra.RutaDocumento(recibo.PeriodoID, reciboID, tipo, maxVersion+1),
			TamanoBytes:   int64(len(contenido)),
			NombreArchivo: opts.NombreArchivo,
			MimeType:      opts.MimeType,
			Activo:        true,
			CreadoPor:     opts.ActorID,
		}

		// Bytes first: an orphan file is harmless, an orphan registry row is not
		if err := s.store.Guardar(doc.RutaStorage, contenido); err != nil {
			return fmt.Errorf("guardando documento en storage: %w", err)
		}
		if err := s.documentos.CreateTx(tx, &doc); err != nil {
			return err
		}
		if err := s.documentos.DeactivatePriorTx(tx, reciboID, tipo, doc.ID); err != nil {
			return err
		}
		return s.bitacora.CreateTx(tx, &model.Bitacora{
			Accion:    model.AccionDocumentoAlmacenado,
			UsuarioID: opts.ActorID,
			ReciboID:  &reciboID,
			PeriodoID: &recibo.PeriodoID,
			Detalle:   fmt.Sprintf("Documento %s v%d almacenado (hash %s, %d bytes)", tipo, doc.Version, hash[:12], len(contenido)),
		})
	})
	if txErr != nil {
		return nil, txErr
	}
	return documentoToResponse(&doc), nil
}

// ── Obtener ───────────────────────────────────────────────────────────────────

// Obtener returns the bytes together with the integrity verdict. Corrupted
// content is still returned (IntegridadValida=false); only a missing file
// fails the read. Soft-deleted rows are hidden unless incluirEliminados is
// set, which exposes them for diagnostics and audit reconstruction.
func (s *documentoService) Obtener(ctx context.Context, documentoID uuid.UUID, incluirEliminados bool) (*dto.DocumentoObtenido, error) {
	doc, err := s.documentos.FindByID(ctx, documentoID)
	if err != nil {
		return nil, apierror.NotFound("documento %s no encontrado", documentoID)
	}
	if doc.DeletedAt != nil && !incluirEliminados {
		return nil, apierror.NotFound("documento %s fue eliminado: %s", documentoID, deref(doc.MotivoEliminacion))
	}

	contenido, err := s.store.Leer(doc.RutaStorage)
	if err != nil {
		return nil, apierror.NotFound("el archivo del documento %s no está disponible en storage", documentoID)
	}

	sum := sha256.Sum256(contenido)
	valido := hex.EncodeToString(sum[:]) == doc.ContentHash
	if !valido {
		log.Warn().
			Str("documento_id", documentoID.String()).
			Str("hash_esperado", doc.ContentHash).
			Msg("Integridad comprometida: el contenido no coincide con el hash registrado")
	}

	return &dto.DocumentoObtenido{
		Documento:        *documentoToResponse(doc),
		Contenido:        contenido,
		IntegridadValida: valido,
	}, nil
}

// ── Verificación ──────────────────────────────────────────────────────────────

func (s *documentoService) VerificarIntegridad(ctx context.Context, documentoID uuid.UUID) (*dto.VerificacionDocumento, error) {
	doc, err := s.documentos.FindByID(ctx, documentoID)
	if err != nil {
		return nil, apierror.NotFound("documento %s no encontrado", documentoID)
	}
	v := s.verificarDocumento(doc)
	return &v, nil
}

// VerificarIntegridadPeriodo scans every active document of the periodo and
// reports ALL findings — a bad document never aborts the scan.
func (s *documentoService) VerificarIntegridadPeriodo(ctx context.Context, periodoID uuid.UUID) (*dto.VerificacionPeriodoResponse, error) {
	docs, err := s.documentos.ListActivosByPeriodo(ctx, periodoID)
	if err != nil {
		return nil, err
	}

	resp := &dto.VerificacionPeriodoResponse{
		PeriodoID:  periodoID.String(),
		Total:      len(docs),
		Resultados: make([]dto.VerificacionDocumento, 0, len(docs)),
	}
	for i := range docs {
		v := s.verificarDocumento(&docs[i])
		switch {
		case !v.ArchivoExiste:
			resp.Faltantes++
		case v.Valido:
			resp.Validos++
		default:
			resp.Invalidos++
		}
		resp.Resultados = append(resp.Resultados, v)
	}
	return resp, nil
}

func (s *documentoService) verificarDocumento(doc *model.DocumentoFiscal) dto.VerificacionDocumento {
	v := dto.VerificacionDocumento{
		DocumentoID:  doc.ID.String(),
		ReciboID:     doc.ReciboID.String(),
		Tipo:         doc.Tipo,
		Version:      doc.Version,
		HashEsperado: doc.ContentHash,
	}
	contenido, err := s.store.Leer(doc.RutaStorage)
	if err != nil {
		return v
	}
	v.ArchivoExiste = true
	sum := sha256.Sum256(contenido)
	v.HashActual = hex.EncodeToString(sum[:])
	v.Valido = v.HashActual == doc.ContentHash
	return v
}

// ── Eliminar ──────────────────────────────────────────────────────────────────

// Eliminar soft-deletes a document. The row and the bytes stay; only the
// registry marks it removed, with actor and motivo for the audit trail.
// Stamped XML of a stamped recibo cannot be deleted.
func (s *documentoService) Eliminar(ctx context.Context, documentoID, actorID uuid.UUID, motivo string) error {
	if len(motivo) < 5 {
		return apierror.Validation("el motivo de eliminación es obligatorio (mínimo 5 caracteres)")
	}

	doc, err := s.documentos.FindByID(ctx, documentoID)
	if err != nil {
		return apierror.NotFound("documento %s no encontrado", documentoID)
	}
	if doc.DeletedAt != nil {
		return apierror.Validation("el documento ya fue eliminado el %s", doc.DeletedAt.Format("2006-01-02"))
	}

	if doc.Tipo == model.DocXMLTimbrado {
		// The guard must never be skipped: if the owning recibo cannot be
		// loaded the delete is rejected rather than waved through.
		recibo, err := s.recibos.FindByID(ctx, doc.ReciboID)
		if err != nil {
			return fmt.Errorf("verificando el timbre del recibo %s: %w", doc.ReciboID, err)
		}
		if recibo.EstadoTimbre == model.TimbreTimbrado {
			return apierror.Validation("no se puede eliminar el XML timbrado de un recibo con timbre vigente")
		}
	}

	now := time.Now()
	doc.Activo = false
	doc.DeletedAt = &now
	doc.DeletedBy = &actorID
	doc.MotivoEliminacion = &motivo
	if err := s.documentos.Update(ctx, doc); err != nil {
		return err
	}

	return s.bitacora.Create(ctx, &model.Bitacora{
		Accion:    model.AccionDocumentoEliminado,
		UsuarioID: actorID,
		ReciboID:  &doc.ReciboID,
		Detalle:   fmt.Sprintf("Documento %s v%d eliminado: %s", doc.Tipo, doc.Version, motivo),
	})
}

func documentoToResponse(d *model.DocumentoFiscal) *dto.DocumentoResponse {
	return &dto.DocumentoResponse{
		ID:            d.ID.String(),
		ReciboID:      d.ReciboID.String(),
		Tipo:          d.Tipo,
		Version:       d.Version,
		ContentHash:   d.ContentHash,
		RutaStorage:   d.RutaStorage,
		TamanoBytes:   d.TamanoBytes,
		NombreArchivo: d.NombreArchivo,
		MimeType:      d.MimeType,
		Activo:        d.Activo,
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
	}
}
