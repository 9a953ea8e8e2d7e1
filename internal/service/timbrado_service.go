package service

import (
	"context"
	"fmt"

	"nominamx/internal/apierror"
	"nominamx/internal/dto"
	"nominamx/internal/model"
	"nominamx/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EncoladorTimbrado pushes one stamping job to the async queue.
// Implemented by worker.Dispatcher.
type EncoladorTimbrado interface {
	QueueTimbrado(ctx context.Context, reciboID uuid.UUID) error
}

// TimbradoService turns an authorized periodo into queued stamping jobs.
// It never talks to the PAC directly — the worker pool does.
type TimbradoService interface {
	TimbrarPeriodo(ctx context.Context, periodoID, actorID uuid.UUID) (*dto.TimbrarPeriodoResponse, error)
	TimbrarRecibo(ctx context.Context, reciboID, actorID uuid.UUID) error
}

type timbradoService struct {
	preparacion    PreparacionService
	recibos        repository.ReciboRepository
	autorizaciones repository.AutorizacionRepository
	bitacora       repository.BitacoraRepository
	encolador      EncoladorTimbrado
}

func NewTimbradoService(
	preparacion PreparacionService,
	recibos repository.ReciboRepository,
	autorizaciones repository.AutorizacionRepository,
	bitacora repository.BitacoraRepository,
	encolador EncoladorTimbrado,
) TimbradoService {
	return &timbradoService{
		preparacion:    preparacion,
		recibos:        recibos,
		autorizaciones: autorizaciones,
		bitacora:       bitacora,
		encolador:      encolador,
	}
}

// estadosTimbrables: the recibo states from which a stamping job may start.
var estadosTimbrables = map[string]bool{
	model.ReciboCalculado:     true,
	model.ReciboAprobado:      true,
	model.ReciboTimbradoError: true,
}

// TimbrarPeriodo runs the readiness aggregator, then marks every stampable
// active recibo as timbrando and enqueues one job each. Already-stamped or
// non-stampable recibos are counted as omitidos, never errors.
func (s *timbradoService) TimbrarPeriodo(ctx context.Context, periodoID, actorID uuid.UUID) (*dto.TimbrarPeriodoResponse, error) {
	prep, err := s.preparacion.PuedeTimbrar(ctx, periodoID)
	if err != nil {
		return nil, err
	}
	if !prep.PuedeTimbrar {
		return nil, apierror.PermissionDenied(
			"el periodo no está listo para timbrar: %d problema(s) crítico(s); consulte puede-timbrar", criticos(prep.Problemas))
	}

	recibos, err := s.recibos.ListByPeriodo(ctx, periodoID)
	if err != nil {
		return nil, err
	}

	resp := &dto.TimbrarPeriodoResponse{PeriodoID: periodoID.String()}
	for i := range recibos {
		r := &recibos[i]
		if !r.Activo || r.EstadoTimbre == model.TimbreTimbrado || !estadosTimbrables[r.Estado] {
			resp.Omitidos++
			continue
		}

		r.Estado = model.ReciboTimbrando
		if err := s.recibos.Update(ctx, r); err != nil {
			log.Error().Err(err).Str("recibo_id", r.ID.String()).Msg("No se pudo marcar el recibo como timbrando")
			resp.Omitidos++
			continue
		}
		if err := s.encolador.QueueTimbrado(ctx, r.ID); err != nil {
			// Roll the state back so the retry cron does not skip it forever
			r.Estado = model.ReciboCalculado
			_ = s.recibos.Update(ctx, r)
			return nil, fmt.Errorf("encolando timbrado del recibo %s: %w", r.ID, err)
		}
		resp.Encolados++
	}

	if resp.Encolados > 0 {
		if err := s.bitacora.Create(ctx, &model.Bitacora{
			Accion:    model.AccionTimbradoSolicitado,
			UsuarioID: actorID,
			PeriodoID: &periodoID,
			Detalle:   fmt.Sprintf("Timbrado masivo solicitado: %d encolados, %d omitidos", resp.Encolados, resp.Omitidos),
		}); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("periodo_id", periodoID.String()).
		Int("encolados", resp.Encolados).
		Int("omitidos", resp.Omitidos).
		Msg("Timbrado de periodo encolado")
	return resp, nil
}

// TimbrarRecibo enqueues a single recibo, still subject to the periodo gate.
func (s *timbradoService) TimbrarRecibo(ctx context.Context, reciboID, actorID uuid.UUID) error {
	recibo, err := s.recibos.FindByID(ctx, reciboID)
	if err != nil {
		return apierror.NotFound("recibo %s no encontrado", reciboID)
	}
	if !recibo.Activo {
		return apierror.PermissionDenied("el recibo v%d fue sustituido: use la versión activa vigente", recibo.Version)
	}
	if recibo.EstadoTimbre == model.TimbreTimbrado {
		return apierror.Conflict("el recibo ya está timbrado (UUID %s)", deref(recibo.TimbreUUID))
	}
	if !estadosTimbrables[recibo.Estado] {
		return apierror.Validation("estado '%s' no permite timbrado", recibo.Estado)
	}

	if auth, err := s.autorizaciones.FindActivaByPeriodo(ctx, recibo.PeriodoID); err != nil || auth == nil {
		return apierror.PermissionDenied("el periodo del recibo no tiene autorización de timbrado activa")
	}

	recibo.Estado = model.ReciboTimbrando
	if err := s.recibos.Update(ctx, recibo); err != nil {
		return err
	}
	if err := s.encolador.QueueTimbrado(ctx, recibo.ID); err != nil {
		recibo.Estado = model.ReciboCalculado
		_ = s.recibos.Update(ctx, recibo)
		return fmt.Errorf("encolando timbrado del recibo %s: %w", recibo.ID, err)
	}

	return s.bitacora.Create(ctx, &model.Bitacora{
		Accion:    model.AccionTimbradoSolicitado,
		UsuarioID: actorID,
		ReciboID:  &recibo.ID,
		PeriodoID: &recibo.PeriodoID,
		Detalle:   fmt.Sprintf("Timbrado individual solicitado para recibo v%d", recibo.Version),
	})
}

func criticos(problemas []dto.Problema) int {
	n := 0
	for _, p := range problemas {
		if p.Severidad == dto.SeveridadCritica {
			n++
		}
	}
	return n
}
