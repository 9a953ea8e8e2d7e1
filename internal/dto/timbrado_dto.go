package dto

import "github.com/shopspring/decimal"

// ─── Stamping gate ───────────────────────────────────────────────────────────

type AutorizarTimbradoRequest struct {
	Detalle *string `json:"detalle" validate:"omitempty,max=500"`
}

type RevocarAutorizacionRequest struct {
	Motivo string `json:"motivo" validate:"required,min=5"`
}

type AutorizacionResponse struct {
	ID           string          `json:"id"`
	PeriodoID    string          `json:"periodo_id"`
	AutorizadoPor string         `json:"autorizado_por"`
	AutorizadoAt string          `json:"autorizado_at"`
	NumRecibos   int             `json:"num_recibos"`
	TotalNeto    decimal.Decimal `json:"total_neto"`
	Activa       bool            `json:"activa"`
}

// PuedeAutorizarResponse reports each capability condition separately so the
// caller can render WHY authorization was denied, not just that it was.
type PuedeAutorizarResponse struct {
	Puede           bool     `json:"puede"`
	TieneRol        bool     `json:"tiene_rol"`
	EmpresaCoincide bool     `json:"empresa_coincide"`
	UsuarioActivo   bool     `json:"usuario_activo"`
	Razones         []string `json:"razones,omitempty"`
}

// ─── Readiness aggregator ────────────────────────────────────────────────────

// Severidades de un problema de preparación.
const (
	SeveridadCritica     = "critica"
	SeveridadAdvertencia = "advertencia"
)

// Problema is one failing readiness check. The aggregator collects EVERY
// failing check instead of stopping at the first so the operator can fix all
// of them in one pass.
type Problema struct {
	Codigo     string `json:"codigo"`
	Severidad  string `json:"severidad"`
	Mensaje    string `json:"mensaje"`
	Resolucion string `json:"resolucion"`
}

type ResumenRecibos struct {
	Total      int `json:"total"`
	Timbrados  int `json:"timbrados"`
	Pendientes int `json:"pendientes"`
	ConError   int `json:"con_error"`
}

type ConfigPAC struct {
	URLConfigurada           bool   `json:"url_configurada"`
	CredencialesConfiguradas bool   `json:"credenciales_configuradas"`
	CSDVigente               bool   `json:"csd_vigente"`
	CSDVencimiento           string `json:"csd_vencimiento,omitempty"`
}

type PuedeTimbrarResponse struct {
	PuedeTimbrar bool           `json:"puede_timbrar"`
	Problemas    []Problema     `json:"problemas"`
	Recibos      ResumenRecibos `json:"recibos"`
	PAC          ConfigPAC      `json:"pac"`
}

// TimbrarPeriodoResponse reports how many stamping jobs were enqueued.
type TimbrarPeriodoResponse struct {
	PeriodoID  string `json:"periodo_id"`
	Encolados  int    `json:"encolados"`
	Omitidos   int    `json:"omitidos"` // already stamped or not in a stampable state
}
