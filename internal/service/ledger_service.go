package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nominamx/internal/apierror"
	"nominamx/internal/dto"
	"nominamx/internal/model"
	"nominamx/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService owns the append-only version chain of recibos: financial
// history is never updated in place, and fiscally stamped rows are untouchable.
type LedgerService interface {
	Crear(ctx context.Context, actorID uuid.UUID, req dto.CrearReciboRequest) (*dto.ReciboResponse, error)
	PuedeModificar(ctx context.Context, reciboID uuid.UUID) (*dto.PuedeModificarResponse, error)
	Recalcular(ctx context.Context, reciboID, actorID uuid.UUID, req dto.RecalcularRequest) (*dto.ReciboResponse, error)
	ObtenerActivo(ctx context.Context, periodoID, empleadoID uuid.UUID) (*dto.ReciboResponse, error)
	ObtenerCadena(ctx context.Context, reciboID uuid.UUID) ([]dto.ReciboVersionItem, error)
	CompararVersiones(ctx context.Context, reciboID uuid.UUID, versionA, versionB int) (*dto.ComparacionResponse, error)
}

type ledgerService struct {
	recibos   repository.ReciboRepository
	snapshots repository.SnapshotRepository
	bitacora  repository.BitacoraRepository
}

func NewLedgerService(
	recibos repository.ReciboRepository,
	snapshots repository.SnapshotRepository,
	bitacora repository.BitacoraRepository,
) LedgerService {
	return &ledgerService{recibos: recibos, snapshots: snapshots, bitacora: bitacora}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// estadosRecalculables are the only lifecycle states from which a recibo may
// be superseded by a new version.
var estadosRecalculables = map[string]bool{
	model.ReciboPendiente:     true,
	model.ReciboCalculado:     true,
	model.ReciboTimbradoError: true,
}

// estadosInmutables reject any modification regardless of the fiscal stamp.
var estadosInmutables = map[string]bool{
	model.ReciboTimbradoOk: true,
	model.ReciboPagado:     true,
	model.ReciboCancelado:  true,
	model.ReciboSustituido: true,
}

// ── Crear ─────────────────────────────────────────────────────────────────────

// Crear registers the version-1 recibo of a (periodo, empleado) pair and its
// initial snapshot. Exactly one active recibo may exist per pair; the partial
// unique index makes a concurrent duplicate insert fail at commit.
func (s *ledgerService) Crear(ctx context.Context, actorID uuid.UUID, req dto.CrearReciboRequest) (*dto.ReciboResponse, error) {
	periodoID, err := uuid.Parse(req.PeriodoID)
	if err != nil {
		return nil, apierror.Validation("periodo_id inválido: %v", err)
	}
	empleadoID, err := uuid.Parse(req.EmpleadoID)
	if err != nil {
		return nil, apierror.Validation("empleado_id inválido: %v", err)
	}

	if existente, err := s.recibos.FindActivo(ctx, periodoID, empleadoID); err == nil && existente != nil {
		return nil, apierror.Conflict("ya existe un recibo activo (v%d) para este empleado en el periodo; use recalcular", existente.Version)
	}

	recibo := model.Recibo{
		PeriodoID:         periodoID,
		EmpleadoID:        empleadoID,
		Version:           1,
		Activo:            true,
		Estado:            model.ReciboPendiente,
		DiasTrabajados:    req.DiasTrabajados,
		TotalPercepciones: req.TotalPercepciones,
		TotalDeducciones:  req.TotalDeducciones,
		NetoAPagar:        req.NetoAPagar,
		EstadoTimbre:      model.TimbreSinTimbrar,
		Conceptos:         conceptosFromInputs(req.Percepciones, req.Deducciones),
	}

	txErr := runTx(ctx, s.recibos.DB(), func(tx *gorm.DB) error {
		if err := s.recibos.Create(ctx, tx, &recibo); err != nil {
			return err
		}
		if err := s.snapshots.CreateTx(tx, snapshotDe(&recibo, model.SnapshotInicial, nil, actorID)); err != nil {
			return err
		}
		return s.bitacora.CreateTx(tx, &model.Bitacora{
			Accion:      model.AccionReciboCreado,
			UsuarioID:   actorID,
			ReciboID:    &recibo.ID,
			PeriodoID:   &periodoID,
			NetoDespues: &recibo.NetoAPagar,
			Detalle:     fmt.Sprintf("Recibo v1 creado para empleado %s", empleadoID),
		})
	})
	if txErr != nil {
		return nil, txErr
	}
	return reciboToResponse(&recibo), nil
}

// ── PuedeModificar ────────────────────────────────────────────────────────────

// PuedeModificar is a pure advisory read — no locking, no side effects. The
// recalculation transaction re-checks the same preconditions under a row lock.
func (s *ledgerService) PuedeModificar(ctx context.Context, reciboID uuid.UUID) (*dto.PuedeModificarResponse, error) {
	recibo, err := s.recibos.FindByID(ctx, reciboID)
	if err != nil {
		return nil, apierror.NotFound("recibo %s no encontrado", reciboID)
	}

	resp := &dto.PuedeModificarResponse{
		EstadoActual: recibo.Estado,
		TieneTimbre:  recibo.EstadoTimbre == model.TimbreTimbrado,
	}

	switch {
	case recibo.EstadoTimbre == model.TimbreTimbrado:
		resp.Motivo = "recibo fiscalmente inmutable: cancele el timbre antes de modificar"
	case estadosInmutables[recibo.Estado]:
		resp.Motivo = fmt.Sprintf("estado '%s' es inmutable", recibo.Estado)
	default:
		resp.PuedeModificar = true
	}
	return resp, nil
}

// ── Recalcular ────────────────────────────────────────────────────────────────
// One atomic transaction:
//  a. snapshot the current recibo (with its line items)
//  b. mark it activo=false, estado=sustituido
//  c. insert the successor (version n+1, parent_id = current) with new figures
//  d. append an audit entry with before/after net pay
//
// The preconditions are re-checked INSIDE the transaction on a FOR UPDATE
// read, so two concurrent recalculations of the same recibo serialize on the
// row lock instead of forking the lineage.

func (s *ledgerService) Recalcular(ctx context.Context, reciboID, actorID uuid.UUID, req dto.RecalcularRequest) (*dto.ReciboResponse, error) {
	if _, err := s.recibos.FindByID(ctx, reciboID); err != nil {
		return nil, apierror.NotFound("recibo %s no encontrado", reciboID)
	}

	var nuevo model.Recibo
	txErr := runTx(ctx, s.recibos.DB(), func(tx *gorm.DB) error {
		actual, err := s.recibos.FindByIDForUpdateTx(tx, reciboID)
		if err != nil {
			return apierror.NotFound("recibo %s no encontrado", reciboID)
		}

		if actual.EstadoTimbre == model.TimbreTimbrado {
			return apierror.PermissionDenied(
				"recibo fiscalmente inmutable (timbre %s): cancele el timbre antes de recalcular",
				deref(actual.TimbreUUID))
		}
		if actual.Estado == model.ReciboSustituido || !actual.Activo {
			return apierror.PermissionDenied(
				"el recibo v%d fue sustituido: use la versión activa vigente", actual.Version)
		}
		if !estadosRecalculables[actual.Estado] {
			return apierror.PermissionDenied(
				"estado '%s' no permite recálculo; estados permitidos: pendiente, calculado, timbrado_error",
				actual.Estado)
		}

		// a. Immutable snapshot of the outgoing version
		detalle := fmt.Sprintf("sustituido por v%d", actual.Version+1)
		if err := s.snapshots.CreateTx(tx, snapshotDe(actual, req.Motivo, &detalle, actorID)); err != nil {
			return err
		}

		// b. Supersede the current version — status/metadata only, figures untouched
		now := time.Now()
		netoAntes := actual.NetoAPagar
		actual.Activo = false
		actual.Estado = model.ReciboSustituido
		actual.SustituidoAt = &now
		if err := s.recibos.UpdateTx(tx, actual); err != nil {
			return err
		}

		// c. Insert the successor
		nuevo = model.Recibo{
			PeriodoID:         actual.PeriodoID,
			EmpleadoID:        actual.EmpleadoID,
			Version:           actual.Version + 1,
			ParentID:          &actual.ID,
			Activo:            true,
			Estado:            model.ReciboCalculado,
			DiasTrabajados:    req.DiasTrabajados,
			TotalPercepciones: req.TotalPercepciones,
			TotalDeducciones:  req.TotalDeducciones,
			NetoAPagar:        req.NetoAPagar,
			EstadoTimbre:      model.TimbreSinTimbrar,
			Conceptos:         conceptosFromInputs(req.Percepciones, req.Deducciones),
		}
		if err := s.recibos.Create(ctx, tx, &nuevo); err != nil {
			return err
		}

		// d. Audit entry
		return s.bitacora.CreateTx(tx, &model.Bitacora{
			Accion:      model.AccionReciboRecalculado,
			UsuarioID:   actorID,
			ReciboID:    &actual.ID,
			PeriodoID:   &actual.PeriodoID,
			NetoAntes:   &netoAntes,
			NetoDespues: &nuevo.NetoAPagar,
			Detalle:     fmt.Sprintf("Recálculo (%s): v%d → v%d", req.Motivo, actual.Version, nuevo.Version),
		})
	})
	if txErr != nil {
		return nil, txErr
	}
	return reciboToResponse(&nuevo), nil
}

// ── ObtenerActivo ─────────────────────────────────────────────────────────────

func (s *ledgerService) ObtenerActivo(ctx context.Context, periodoID, empleadoID uuid.UUID) (*dto.ReciboResponse, error) {
	recibo, err := s.recibos.FindActivo(ctx, periodoID, empleadoID)
	if err != nil {
		return nil, apierror.NotFound("no hay recibo activo para el empleado %s en el periodo %s", empleadoID, periodoID)
	}
	return reciboToResponse(recibo), nil
}

// ── ObtenerCadena ─────────────────────────────────────────────────────────────

// ObtenerCadena resolves the full lineage of the given recibo and returns it
// oldest→newest. The recibo may be any link of the chain: resolution starts
// from the active head of its (periodo, empleado), so later versions are
// visible from a superseded recibo too. Versions must strictly decrease while
// walking back — anything else means a corrupted chain and aborts the walk
// instead of looping forever.
func (s *ledgerService) ObtenerCadena(ctx context.Context, reciboID uuid.UUID) ([]dto.ReciboVersionItem, error) {
	cadena, err := s.cadenaModelos(ctx, reciboID)
	if err != nil {
		return nil, err
	}
	items := make([]dto.ReciboVersionItem, 0, len(cadena))
	for _, r := range cadena {
		items = append(items, reciboToVersionItem(r))
	}
	return items, nil
}

func (s *ledgerService) cadenaModelos(ctx context.Context, reciboID uuid.UUID) ([]*model.Recibo, error) {
	pedido, err := s.recibos.FindByID(ctx, reciboID)
	if err != nil {
		return nil, apierror.NotFound("recibo %s no encontrado", reciboID)
	}

	// Parent pointers only look backwards, so from a superseded recibo the
	// successors are invisible. Re-anchor on the active head of the pair and
	// walk back from there.
	cur := pedido
	if activo, err := s.recibos.FindActivo(ctx, pedido.PeriodoID, pedido.EmpleadoID); err == nil && activo != nil {
		cur = activo
	}

	cadena := []*model.Recibo{cur}
	for cur.ParentID != nil {
		parent, err := s.recibos.FindByID(ctx, *cur.ParentID)
		if err != nil {
			return nil, fmt.Errorf("cadena de versiones corrupta: padre %s de v%d no existe", *cur.ParentID, cur.Version)
		}
		if parent.Version >= cur.Version {
			return nil, errors.New("cadena de versiones corrupta: las versiones no decrecen hacia el origen")
		}
		cadena = append([]*model.Recibo{parent}, cadena...)
		cur = parent
	}
	if cadena[0].ParentID != nil || cadena[0].Version != 1 {
		return nil, errors.New("cadena de versiones corrupta: la raíz no es la versión 1")
	}
	for _, r := range cadena {
		if r.ID == pedido.ID {
			return cadena, nil
		}
	}
	return nil, fmt.Errorf("cadena de versiones corrupta: el recibo %s no pertenece al linaje de su cabeza activa", pedido.ID)
}

// ── CompararVersiones ─────────────────────────────────────────────────────────

// CompararVersiones diffs two versions of the same lineage by concept clave.
// Line items come from the version's snapshot; the active head (which has no
// supersession snapshot yet) falls back to its live line items.
func (s *ledgerService) CompararVersiones(ctx context.Context, reciboID uuid.UUID, versionA, versionB int) (*dto.ComparacionResponse, error) {
	if versionA == versionB {
		return nil, apierror.Validation("las versiones a comparar deben ser distintas")
	}

	cadena, err := s.cadenaModelos(ctx, reciboID)
	if err != nil {
		return nil, err
	}

	var reciboA, reciboB *model.Recibo
	for _, r := range cadena {
		if r.Version == versionA {
			reciboA = r
		}
		if r.Version == versionB {
			reciboB = r
		}
	}
	if reciboA == nil {
		return nil, apierror.NotFound("la versión %d no existe en este linaje", versionA)
	}
	if reciboB == nil {
		return nil, apierror.NotFound("la versión %d no existe en este linaje", versionB)
	}

	percA, dedA, netoA := s.lineasDeVersion(ctx, reciboA)
	percB, dedB, netoB := s.lineasDeVersion(ctx, reciboB)

	return &dto.ComparacionResponse{
		ReciboID:         reciboID.String(),
		VersionA:         versionA,
		VersionB:         versionB,
		DiffPercepciones: diffConceptos(percA, percB),
		DiffDeducciones:  diffConceptos(dedA, dedB),
		NetoDiferencia:   netoB.Sub(netoA),
	}, nil
}

// linea is the concept shape shared by live and snapshotted line items.
type linea struct {
	clave   string
	nombre  string
	importe decimal.Decimal
}

func (s *ledgerService) lineasDeVersion(ctx context.Context, r *model.Recibo) (percepciones, deducciones []linea, neto decimal.Decimal) {
	if snap, err := s.snapshots.FindByReciboID(ctx, r.ID); err == nil && snap != nil {
		for _, c := range snap.Conceptos {
			l := linea{clave: c.Clave, nombre: c.Nombre, importe: c.Importe}
			if c.Tipo == model.ConceptoPercepcion {
				percepciones = append(percepciones, l)
			} else {
				deducciones = append(deducciones, l)
			}
		}
		return percepciones, deducciones, snap.NetoAPagar
	}
	for _, c := range r.Conceptos {
		l := linea{clave: c.Clave, nombre: c.Nombre, importe: c.Importe}
		if c.Tipo == model.ConceptoPercepcion {
			percepciones = append(percepciones, l)
		} else {
			deducciones = append(deducciones, l)
		}
	}
	return percepciones, deducciones, r.NetoAPagar
}

// diffConceptos compares two line-item sets keyed by clave.
func diffConceptos(a, b []linea) []dto.DiffConcepto {
	porClaveA := make(map[string]linea, len(a))
	for _, l := range a {
		porClaveA[l.clave] = l
	}

	diffs := make([]dto.DiffConcepto, 0)
	seen := make(map[string]bool, len(b))
	for _, lb := range b {
		seen[lb.clave] = true
		la, existe := porClaveA[lb.clave]
		if !existe {
			importeB := lb.importe
			diffs = append(diffs, dto.DiffConcepto{
				Tipo: dto.DiffAgregado, Clave: lb.clave, Nombre: lb.nombre,
				ImporteB: &importeB, Delta: lb.importe,
			})
			continue
		}
		if !la.importe.Equal(lb.importe) {
			importeA, importeB := la.importe, lb.importe
			diffs = append(diffs, dto.DiffConcepto{
				Tipo: dto.DiffModificado, Clave: lb.clave, Nombre: lb.nombre,
				ImporteA: &importeA, ImporteB: &importeB, Delta: lb.importe.Sub(la.importe),
			})
		}
	}
	for _, la := range a {
		if !seen[la.clave] {
			importeA := la.importe
			diffs = append(diffs, dto.DiffConcepto{
				Tipo: dto.DiffEliminado, Clave: la.clave, Nombre: la.nombre,
				ImporteA: &importeA, Delta: la.importe.Neg(),
			})
		}
	}
	return diffs
}

// ── helpers ──────────────────────────────────────────────────────────────────

func conceptosFromInputs(percepciones, deducciones []dto.ConceptoInput) []model.ReciboConcepto {
	conceptos := make([]model.ReciboConcepto, 0, len(percepciones)+len(deducciones))
	orden := 0
	for _, p := range percepciones {
		conceptos = append(conceptos, model.ReciboConcepto{
			Tipo: model.ConceptoPercepcion, Clave: p.Clave, Nombre: p.Nombre, Importe: p.Importe, Orden: orden,
		})
		orden++
	}
	for _, d := range deducciones {
		conceptos = append(conceptos, model.ReciboConcepto{
			Tipo: model.ConceptoDeduccion, Clave: d.Clave, Nombre: d.Nombre, Importe: d.Importe, Orden: orden,
		})
		orden++
	}
	return conceptos
}

func snapshotDe(r *model.Recibo, motivo string, detalle *string, actorID uuid.UUID) *model.SnapshotVersion {
	snap := &model.SnapshotVersion{
		ReciboID:            r.ID,
		Version:             r.Version,
		DiasTrabajados:      r.DiasTrabajados,
		TotalPercepciones:   r.TotalPercepciones,
		TotalDeducciones:    r.TotalDeducciones,
		NetoAPagar:          r.NetoAPagar,
		Motivo:              motivo,
		MotivoDetalle:       detalle,
		CreadoPor:           actorID,
		EstadoTimbreCaptura: r.EstadoTimbre,
	}
	for _, c := range r.Conceptos {
		snap.Conceptos = append(snap.Conceptos, model.SnapshotConcepto{
			Tipo: c.Tipo, Clave: c.Clave, Nombre: c.Nombre, Importe: c.Importe, Orden: c.Orden,
		})
	}
	return snap
}

func reciboToResponse(r *model.Recibo) *dto.ReciboResponse {
	conceptos := make([]dto.ConceptoResponse, 0, len(r.Conceptos))
	for _, c := range r.Conceptos {
		conceptos = append(conceptos, dto.ConceptoResponse{
			Tipo: c.Tipo, Clave: c.Clave, Nombre: c.Nombre, Importe: c.Importe,
		})
	}
	return &dto.ReciboResponse{
		ID:                r.ID.String(),
		PeriodoID:         r.PeriodoID.String(),
		EmpleadoID:        r.EmpleadoID.String(),
		Version:           r.Version,
		ParentID:          uuidPtrToString(r.ParentID),
		Activo:            r.Activo,
		Estado:            r.Estado,
		DiasTrabajados:    r.DiasTrabajados,
		TotalPercepciones: r.TotalPercepciones,
		TotalDeducciones:  r.TotalDeducciones,
		NetoAPagar:        r.NetoAPagar,
		TimbreUUID:        r.TimbreUUID,
		EstadoTimbre:      r.EstadoTimbre,
		Conceptos:         conceptos,
		CreatedAt:         r.CreatedAt.Format(time.RFC3339),
	}
}

func reciboToVersionItem(r *model.Recibo) dto.ReciboVersionItem {
	var sustituido *string
	if r.SustituidoAt != nil {
		s := r.SustituidoAt.Format(time.RFC3339)
		sustituido = &s
	}
	return dto.ReciboVersionItem{
		ID:           r.ID.String(),
		Version:      r.Version,
		ParentID:     uuidPtrToString(r.ParentID),
		Activo:       r.Activo,
		Estado:       r.Estado,
		NetoAPagar:   r.NetoAPagar,
		EstadoTimbre: r.EstadoTimbre,
		SustituidoAt: sustituido,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
}

func uuidPtrToString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
