package service

import (
	"context"
	"fmt"
	"time"

	"nominamx/internal/apierror"
	"nominamx/internal/dto"
	"nominamx/internal/model"
	"nominamx/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AutorizacionService is the one-way gate in front of the PAC: no recibo of a
// periodo can be sent for stamping until a supervisor explicitly authorizes
// the periodo, and the authorization can only be revoked while nothing has
// been stamped yet.
type AutorizacionService interface {
	Autorizar(ctx context.Context, periodoID, actorID uuid.UUID, detalle *string) (*dto.AutorizacionResponse, error)
	Revocar(ctx context.Context, periodoID, actorID uuid.UUID, motivo string) error
	PuedeAutorizar(ctx context.Context, usuarioID, periodoID uuid.UUID) (*dto.PuedeAutorizarResponse, error)
	ObtenerActiva(ctx context.Context, periodoID uuid.UUID) (*dto.AutorizacionResponse, error)
	Historial(ctx context.Context, periodoID uuid.UUID) ([]dto.AutorizacionResponse, error)
}

type autorizacionService struct {
	autorizaciones repository.AutorizacionRepository
	periodos       repository.PeriodoRepository
	recibos        repository.ReciboRepository
	usuarios       repository.UsuarioRepository
	bitacora       repository.BitacoraRepository
}

func NewAutorizacionService(
	autorizaciones repository.AutorizacionRepository,
	periodos repository.PeriodoRepository,
	recibos repository.ReciboRepository,
	usuarios repository.UsuarioRepository,
	bitacora repository.BitacoraRepository,
) AutorizacionService {
	return &autorizacionService{
		autorizaciones: autorizaciones,
		periodos:       periodos,
		recibos:        recibos,
		usuarios:       usuarios,
		bitacora:       bitacora,
	}
}

// rolesAutorizadores may open the stamping gate. Nominista prepares payroll
// but never authorizes it.
var rolesAutorizadores = map[string]bool{
	model.RolSupervisor:    true,
	model.RolAdministrador: true,
}

// ── Autorizar ─────────────────────────────────────────────────────────────────

// Autorizar opens the stamping gate for the periodo. Preconditions, in order:
// the periodo exists and is calculado/aprobado, no active authorization exists
// yet, every active recibo is still calculado or pendiente, and nothing was
// stamped already. The aggregate figures (recibo count, total net) are frozen
// into the authorization row for the audit trail.
func (s *autorizacionService) Autorizar(ctx context.Context, periodoID, actorID uuid.UUID, detalle *string) (*dto.AutorizacionResponse, error) {
	periodo, err := s.periodos.FindByID(ctx, periodoID)
	if err != nil {
		return nil, apierror.NotFound("periodo %s no encontrado", periodoID)
	}
	if periodo.Estado != model.PeriodoCalculado && periodo.Estado != model.PeriodoAprobado {
		return nil, apierror.Validation(
			"el periodo está en estado '%s'; debe estar calculado o aprobado para autorizar timbrado", periodo.Estado)
	}

	if existente, err := s.autorizaciones.FindActivaByPeriodo(ctx, periodoID); err == nil && existente != nil {
		return nil, apierror.Conflict("el periodo ya tiene una autorización activa desde %s",
			existente.AutorizadoAt.Format("2006-01-02 15:04"))
	}

	recibos, err := s.recibos.ListByPeriodo(ctx, periodoID)
	if err != nil {
		return nil, err
	}

	rezagados := 0
	totalNeto := decimal.Zero
	numActivos := 0
	for i := range recibos {
		r := &recibos[i]
		if !r.Activo {
			continue
		}
		numActivos++
		totalNeto = totalNeto.Add(r.NetoAPagar)
		if r.EstadoTimbre == model.TimbreTimbrado {
			return nil, apierror.Conflict("el periodo ya tiene recibos timbrados; la autorización no aplica retroactivamente")
		}
		if r.Estado != model.ReciboCalculado && r.Estado != model.ReciboPendiente {
			rezagados++
		}
	}
	if numActivos == 0 {
		return nil, apierror.Validation("el periodo no tiene recibos activos que autorizar")
	}
	if rezagados > 0 {
		return nil, apierror.PermissionDenied(
			"%d recibo(s) ya avanzaron más allá de calculado; el periodo no se puede autorizar en este estado", rezagados)
	}

	auth := model.AutorizacionTimbrado{
		PeriodoID:     periodoID,
		AutorizadoPor: actorID,
		AutorizadoAt:  time.Now(),
		Detalle:       detalle,
		NumRecibos:    numActivos,
		TotalNeto:     totalNeto,
		Activa:        true,
	}

	txErr := runTx(ctx, s.autorizaciones.DB(), func(tx *gorm.DB) error {
		if err := s.autorizaciones.CreateTx(tx, &auth); err != nil {
			return err
		}
		periodo.AutorizadoTimbrado = true
		periodo.AutorizadoAt = &auth.AutorizadoAt
		periodo.AutorizadoPor = &actorID
		if err := s.periodos.UpdateTx(tx, periodo); err != nil {
			return err
		}
		return s.bitacora.CreateTx(tx, &model.Bitacora{
			Accion:    model.AccionTimbradoAutorizado,
			UsuarioID: actorID,
			PeriodoID: &periodoID,
			Detalle:   fmt.Sprintf("Timbrado autorizado: %d recibos, neto total %s", numActivos, totalNeto.StringFixed(2)),
		})
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("periodo_id", periodoID.String()).
		Int("num_recibos", numActivos).
		Msg("Timbrado autorizado")
	return autorizacionToResponse(&auth), nil
}

// ── Revocar ───────────────────────────────────────────────────────────────────

// Revocar closes the gate again — only possible while no recibo of the periodo
// has been stamped. Stamped receipts make the authorization historically
// immutable: cancellation is a separate fiscal flow.
func (s *autorizacionService) Revocar(ctx context.Context, periodoID, actorID uuid.UUID, motivo string) error {
	auth, err := s.autorizaciones.FindActivaByPeriodo(ctx, periodoID)
	if err != nil || auth == nil {
		return apierror.NotFound("el periodo %s no tiene una autorización activa", periodoID)
	}

	recibos, err := s.recibos.ListByPeriodo(ctx, periodoID)
	if err != nil {
		return err
	}
	for i := range recibos {
		if recibos[i].Activo && recibos[i].EstadoTimbre == model.TimbreTimbrado {
			return apierror.PermissionDenied(
				"no se puede revocar: el periodo ya tiene recibos timbrados; cancele los timbres primero")
		}
	}

	periodo, err := s.periodos.FindByID(ctx, periodoID)
	if err != nil {
		return apierror.NotFound("periodo %s no encontrado", periodoID)
	}

	now := time.Now()
	auth.Activa = false
	auth.RevocadaAt = &now
	auth.RevocadaPor = &actorID
	auth.MotivoRevocacion = &motivo

	return runTx(ctx, s.autorizaciones.DB(), func(tx *gorm.DB) error {
		if err := s.autorizaciones.UpdateTx(tx, auth); err != nil {
			return err
		}
		periodo.AutorizadoTimbrado = false
		periodo.AutorizadoAt = nil
		periodo.AutorizadoPor = nil
		if err := s.periodos.UpdateTx(tx, periodo); err != nil {
			return err
		}
		return s.bitacora.CreateTx(tx, &model.Bitacora{
			Accion:    model.AccionAutorizacionRevocada,
			UsuarioID: actorID,
			PeriodoID: &periodoID,
			Detalle:   fmt.Sprintf("Autorización revocada: %s", motivo),
		})
	})
}

// ── PuedeAutorizar ────────────────────────────────────────────────────────────

// PuedeAutorizar reports each capability condition separately: role, empresa
// scope, and account status. All three must hold.
func (s *autorizacionService) PuedeAutorizar(ctx context.Context, usuarioID, periodoID uuid.UUID) (*dto.PuedeAutorizarResponse, error) {
	usuario, err := s.usuarios.FindByID(ctx, usuarioID)
	if err != nil {
		return nil, apierror.NotFound("usuario %s no encontrado", usuarioID)
	}
	periodo, err := s.periodos.FindByID(ctx, periodoID)
	if err != nil {
		return nil, apierror.NotFound("periodo %s no encontrado", periodoID)
	}

	resp := &dto.PuedeAutorizarResponse{
		TieneRol:        rolesAutorizadores[usuario.Rol],
		EmpresaCoincide: usuario.EmpresaID == nil || *usuario.EmpresaID == periodo.EmpresaID,
		UsuarioActivo:   usuario.Activo,
	}
	if !resp.TieneRol {
		resp.Razones = append(resp.Razones,
			fmt.Sprintf("el rol '%s' no puede autorizar timbrado; se requiere supervisor o administrador", usuario.Rol))
	}
	if !resp.EmpresaCoincide {
		resp.Razones = append(resp.Razones, "el usuario no tiene acceso a la empresa del periodo")
	}
	if !resp.UsuarioActivo {
		resp.Razones = append(resp.Razones, "la cuenta del usuario está desactivada")
	}
	resp.Puede = resp.TieneRol && resp.EmpresaCoincide && resp.UsuarioActivo
	return resp, nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *autorizacionService) ObtenerActiva(ctx context.Context, periodoID uuid.UUID) (*dto.AutorizacionResponse, error) {
	auth, err := s.autorizaciones.FindActivaByPeriodo(ctx, periodoID)
	if err != nil || auth == nil {
		return nil, apierror.NotFound("el periodo %s no tiene una autorización activa", periodoID)
	}
	return autorizacionToResponse(auth), nil
}

func (s *autorizacionService) Historial(ctx context.Context, periodoID uuid.UUID) ([]dto.AutorizacionResponse, error) {
	auths, err := s.autorizaciones.ListByPeriodo(ctx, periodoID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.AutorizacionResponse, 0, len(auths))
	for i := range auths {
		out = append(out, *autorizacionToResponse(&auths[i]))
	}
	return out, nil
}

func autorizacionToResponse(a *model.AutorizacionTimbrado) *dto.AutorizacionResponse {
	return &dto.AutorizacionResponse{
		ID:            a.ID.String(),
		PeriodoID:     a.PeriodoID.String(),
		AutorizadoPor: a.AutorizadoPor.String(),
		AutorizadoAt:  a.AutorizadoAt.Format(time.RFC3339),
		NumRecibos:    a.NumRecibos,
		TotalNeto:     a.TotalNeto,
		Activa:        a.Activa,
	}
}
