package service

import (
	"context"
	"fmt"
	"time"

	"nominamx/internal/apierror"
	"nominamx/internal/config"
	"nominamx/internal/dto"
	"nominamx/internal/model"
	"nominamx/internal/repository"

	"github.com/google/uuid"
)

// PreparacionService answers "can this periodo be stamped right now?" by
// running every readiness check and collecting ALL failures, so the operator
// fixes everything in one pass instead of replaying the request per problem.
type PreparacionService interface {
	PuedeTimbrar(ctx context.Context, periodoID uuid.UUID) (*dto.PuedeTimbrarResponse, error)
}

type preparacionService struct {
	cfg            *config.Config
	periodos       repository.PeriodoRepository
	recibos        repository.ReciboRepository
	autorizaciones repository.AutorizacionRepository
}

func NewPreparacionService(
	cfg *config.Config,
	periodos repository.PeriodoRepository,
	recibos repository.ReciboRepository,
	autorizaciones repository.AutorizacionRepository,
) PreparacionService {
	return &preparacionService{cfg: cfg, periodos: periodos, recibos: recibos, autorizaciones: autorizaciones}
}

// Readiness issue codes.
const (
	ProblemaSinAutorizacion   = "sin_autorizacion"
	ProblemaPACNoConfigurado  = "pac_no_configurado"
	ProblemaCSDVencido        = "csd_vencido"
	ProblemaEstadoPeriodo     = "estado_periodo"
	ProblemaSinRecibos        = "sin_recibos"
	ProblemaRecibosPendientes = "recibos_pendientes"
	ProblemaRecibosConError   = "recibos_con_error"
)

// PuedeTimbrar aggregates every stamping precondition. Criticals block;
// warnings (e.g. receipts in retry) do not.
func (s *preparacionService) PuedeTimbrar(ctx context.Context, periodoID uuid.UUID) (*dto.PuedeTimbrarResponse, error) {
	periodo, err := s.periodos.FindByID(ctx, periodoID)
	if err != nil {
		return nil, apierror.NotFound("periodo %s no encontrado", periodoID)
	}

	resp := &dto.PuedeTimbrarResponse{
		Problemas: make([]dto.Problema, 0),
		PAC: dto.ConfigPAC{
			URLConfigurada:           s.cfg.PACBridgeURL != "",
			CredencialesConfiguradas: s.cfg.PACUsuario != "" && s.cfg.PACPassword != "",
			CSDVigente:               s.cfg.CSDVigente(time.Now()),
			CSDVencimiento:           s.cfg.CSDVencimiento,
		},
	}

	// 1. Periodo lifecycle
	if periodo.Estado != model.PeriodoCalculado && periodo.Estado != model.PeriodoAprobado {
		resp.Problemas = append(resp.Problemas, dto.Problema{
			Codigo:     ProblemaEstadoPeriodo,
			Severidad:  dto.SeveridadCritica,
			Mensaje:    fmt.Sprintf("el periodo está en estado '%s'", periodo.Estado),
			Resolucion: "el periodo debe estar calculado o aprobado antes de timbrar",
		})
	}

	// 2. Stamping authorization gate
	if auth, err := s.autorizaciones.FindActivaByPeriodo(ctx, periodoID); err != nil || auth == nil {
		resp.Problemas = append(resp.Problemas, dto.Problema{
			Codigo:     ProblemaSinAutorizacion,
			Severidad:  dto.SeveridadCritica,
			Mensaje:    "el periodo no tiene autorización de timbrado activa",
			Resolucion: "un supervisor o administrador debe autorizar el timbrado del periodo",
		})
	}

	// 3. PAC configuration
	if !s.cfg.PACConfigurado() {
		resp.Problemas = append(resp.Problemas, dto.Problema{
			Codigo:     ProblemaPACNoConfigurado,
			Severidad:  dto.SeveridadCritica,
			Mensaje:    "el puente PAC no está configurado (URL o credenciales faltantes)",
			Resolucion: "configure PAC_BRIDGE_URL, PAC_USUARIO y PAC_PASSWORD",
		})
	}
	if !resp.PAC.CSDVigente {
		resp.Problemas = append(resp.Problemas, dto.Problema{
			Codigo:     ProblemaCSDVencido,
			Severidad:  dto.SeveridadCritica,
			Mensaje:    "el certificado de sello digital está vencido o sin configurar",
			Resolucion: "renueve el CSD y actualice CSD_VENCIMIENTO",
		})
	}

	// 4. Recibo population
	recibos, err := s.recibos.ListByPeriodo(ctx, periodoID)
	if err != nil {
		return nil, err
	}
	pendientes := 0
	for i := range recibos {
		r := &recibos[i]
		if !r.Activo {
			continue
		}
		resp.Recibos.Total++
		switch {
		case r.EstadoTimbre == model.TimbreTimbrado:
			resp.Recibos.Timbrados++
		case r.Estado == model.ReciboTimbradoError:
			resp.Recibos.ConError++
		case r.Estado == model.ReciboPendiente:
			pendientes++
			resp.Recibos.Pendientes++
		default:
			resp.Recibos.Pendientes++
		}
	}

	if resp.Recibos.Total == 0 {
		resp.Problemas = append(resp.Problemas, dto.Problema{
			Codigo:     ProblemaSinRecibos,
			Severidad:  dto.SeveridadCritica,
			Mensaje:    "el periodo no tiene recibos activos",
			Resolucion: "calcule la nómina del periodo antes de timbrar",
		})
	}
	if pendientes > 0 {
		resp.Problemas = append(resp.Problemas, dto.Problema{
			Codigo:     ProblemaRecibosPendientes,
			Severidad:  dto.SeveridadCritica,
			Mensaje:    fmt.Sprintf("%d recibo(s) siguen pendientes de cálculo", pendientes),
			Resolucion: "recalcule los recibos pendientes",
		})
	}
	if resp.Recibos.ConError > 0 {
		resp.Problemas = append(resp.Problemas, dto.Problema{
			Codigo:     ProblemaRecibosConError,
			Severidad:  dto.SeveridadAdvertencia,
			Mensaje:    fmt.Sprintf("%d recibo(s) con error de timbrado previo", resp.Recibos.ConError),
			Resolucion: "los reintentos automáticos continúan; revise los errores PAC si persisten",
		})
	}

	resp.PuedeTimbrar = true
	for _, p := range resp.Problemas {
		if p.Severidad == dto.SeveridadCritica {
			resp.PuedeTimbrar = false
			break
		}
	}
	return resp, nil
}
