package service

import (
	"context"
	"testing"

	"nominamx/internal/apierror"
	"nominamx/internal/dto"
	"nominamx/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type ledgerFixture struct {
	svc       LedgerService
	recibos   *stubReciboRepo
	snapshots *stubSnapshotRepo
	bitacora  *stubBitacoraRepo
}

func newLedgerFixture() *ledgerFixture {
	recibos := newStubReciboRepo()
	snapshots := newStubSnapshotRepo()
	bitacora := newStubBitacoraRepo()
	return &ledgerFixture{
		svc:       NewLedgerService(recibos, snapshots, bitacora),
		recibos:   recibos,
		snapshots: snapshots,
		bitacora:  bitacora,
	}
}

func crearRequest(periodoID, empleadoID uuid.UUID) dto.CrearReciboRequest {
	return dto.CrearReciboRequest{
		PeriodoID:         periodoID.String(),
		EmpleadoID:        empleadoID.String(),
		DiasTrabajados:    d("15"),
		TotalPercepciones: d("12500.00"),
		TotalDeducciones:  d("2500.00"),
		NetoAPagar:        d("10000.00"),
		Percepciones: []dto.ConceptoInput{
			{Clave: "P001", Nombre: "Sueldo", Importe: d("12000.00")},
			{Clave: "P002", Nombre: "Prima dominical", Importe: d("500.00")},
		},
		Deducciones: []dto.ConceptoInput{
			{Clave: "D001", Nombre: "ISR", Importe: d("2000.00")},
			{Clave: "D002", Nombre: "IMSS", Importe: d("500.00")},
		},
	}
}

func TestCrearRecibo(t *testing.T) {
	f := newLedgerFixture()
	actor := uuid.New()
	periodoID, empleadoID := uuid.New(), uuid.New()

	resp, err := f.svc.Crear(context.Background(), actor, crearRequest(periodoID, empleadoID))
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Version)
	assert.Nil(t, resp.ParentID)
	assert.True(t, resp.Activo)
	assert.Equal(t, model.ReciboPendiente, resp.Estado)
	assert.Equal(t, model.TimbreSinTimbrar, resp.EstadoTimbre)
	assert.True(t, resp.NetoAPagar.Equal(d("10000.00")))
	assert.Len(t, resp.Conceptos, 4)

	// The initial snapshot freezes version 1 at creation
	require.Len(t, f.snapshots.snapshots, 1)
	snap := f.snapshots.snapshots[0]
	assert.Equal(t, model.SnapshotInicial, snap.Motivo)
	assert.Equal(t, 1, snap.Version)
	assert.True(t, snap.NetoAPagar.Equal(d("10000.00")))
	assert.Len(t, snap.Conceptos, 4)

	require.Len(t, f.bitacora.entradas, 1)
	assert.Equal(t, model.AccionReciboCreado, f.bitacora.entradas[0].Accion)
	assert.Equal(t, actor, f.bitacora.entradas[0].UsuarioID)
}

func TestCrearRecibo_DuplicadoActivo(t *testing.T) {
	f := newLedgerFixture()
	periodoID, empleadoID := uuid.New(), uuid.New()

	_, err := f.svc.Crear(context.Background(), uuid.New(), crearRequest(periodoID, empleadoID))
	require.NoError(t, err)

	_, err = f.svc.Crear(context.Background(), uuid.New(), crearRequest(periodoID, empleadoID))
	require.Error(t, err)
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))
}

func TestCrearRecibo_IDsInvalidos(t *testing.T) {
	f := newLedgerFixture()
	req := crearRequest(uuid.New(), uuid.New())
	req.PeriodoID = "no-es-uuid"

	_, err := f.svc.Crear(context.Background(), uuid.New(), req)
	require.Error(t, err)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
}

func recalcularRequest() dto.RecalcularRequest {
	return dto.RecalcularRequest{
		DiasTrabajados:    d("15"),
		TotalPercepciones: d("13000.00"),
		TotalDeducciones:  d("2600.00"),
		NetoAPagar:        d("10400.00"),
		Percepciones: []dto.ConceptoInput{
			{Clave: "P001", Nombre: "Sueldo", Importe: d("12000.00")},
			{Clave: "P003", Nombre: "Horas extra", Importe: d("1000.00")},
		},
		Deducciones: []dto.ConceptoInput{
			{Clave: "D001", Nombre: "ISR", Importe: d("2100.00")},
			{Clave: "D002", Nombre: "IMSS", Importe: d("500.00")},
		},
		Motivo: model.SnapshotRecalculo,
	}
}

func TestRecalcular_SustituyeYEncadena(t *testing.T) {
	f := newLedgerFixture()
	actor := uuid.New()
	periodoID, empleadoID := uuid.New(), uuid.New()

	v1, err := f.svc.Crear(context.Background(), actor, crearRequest(periodoID, empleadoID))
	require.NoError(t, err)
	v1ID := uuid.MustParse(v1.ID)

	v2, err := f.svc.Recalcular(context.Background(), v1ID, actor, recalcularRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, v2.Version)
	require.NotNil(t, v2.ParentID)
	assert.Equal(t, v1.ID, *v2.ParentID)
	assert.True(t, v2.Activo)
	assert.Equal(t, model.ReciboCalculado, v2.Estado)
	assert.True(t, v2.NetoAPagar.Equal(d("10400.00")))

	// The superseded version keeps its figures but loses its active flag
	antiguo, err := f.recibos.FindByID(context.Background(), v1ID)
	require.NoError(t, err)
	assert.False(t, antiguo.Activo)
	assert.Equal(t, model.ReciboSustituido, antiguo.Estado)
	assert.NotNil(t, antiguo.SustituidoAt)
	assert.True(t, antiguo.NetoAPagar.Equal(d("10000.00")), "las cifras del recibo sustituido no deben cambiar")

	// Only one active recibo per (periodo, empleado) after the swap
	activo, err := f.recibos.FindActivo(context.Background(), periodoID, empleadoID)
	require.NoError(t, err)
	assert.Equal(t, 2, activo.Version)

	// Supersession snapshot captured v1 with its line items
	require.Len(t, f.snapshots.snapshots, 2)
	snap := f.snapshots.snapshots[1]
	assert.Equal(t, v1ID, snap.ReciboID)
	assert.Equal(t, model.SnapshotRecalculo, snap.Motivo)
	assert.Len(t, snap.Conceptos, 4)

	// Audit entry records the net delta
	require.Len(t, f.bitacora.entradas, 2)
	entrada := f.bitacora.entradas[1]
	assert.Equal(t, model.AccionReciboRecalculado, entrada.Accion)
	require.NotNil(t, entrada.NetoAntes)
	require.NotNil(t, entrada.NetoDespues)
	assert.True(t, entrada.NetoAntes.Equal(d("10000.00")))
	assert.True(t, entrada.NetoDespues.Equal(d("10400.00")))
}

func TestRecalcular_RechazaTimbrado(t *testing.T) {
	f := newLedgerFixture()
	periodoID, empleadoID := uuid.New(), uuid.New()

	v1, err := f.svc.Crear(context.Background(), uuid.New(), crearRequest(periodoID, empleadoID))
	require.NoError(t, err)
	v1ID := uuid.MustParse(v1.ID)

	rec, _ := f.recibos.FindByID(context.Background(), v1ID)
	timbre := "AAD12345-0000-0000-0000-000000000000"
	rec.Estado = model.ReciboTimbradoOk
	rec.EstadoTimbre = model.TimbreTimbrado
	rec.TimbreUUID = &timbre
	require.NoError(t, f.recibos.Update(context.Background(), rec))

	_, err = f.svc.Recalcular(context.Background(), v1ID, uuid.New(), recalcularRequest())
	require.Error(t, err)
	assert.Equal(t, apierror.KindPermissionDenied, apierror.KindOf(err))
	assert.Contains(t, err.Error(), "cancele el timbre")
}

func TestRecalcular_RechazaSustituido(t *testing.T) {
	f := newLedgerFixture()
	actor := uuid.New()
	periodoID, empleadoID := uuid.New(), uuid.New()

	v1, err := f.svc.Crear(context.Background(), actor, crearRequest(periodoID, empleadoID))
	require.NoError(t, err)
	v1ID := uuid.MustParse(v1.ID)

	_, err = f.svc.Recalcular(context.Background(), v1ID, actor, recalcularRequest())
	require.NoError(t, err)

	// Second recalculation against the superseded version must fail
	_, err = f.svc.Recalcular(context.Background(), v1ID, actor, recalcularRequest())
	require.Error(t, err)
	assert.Equal(t, apierror.KindPermissionDenied, apierror.KindOf(err))
	assert.Contains(t, err.Error(), "versión activa vigente")
}

func TestRecalcular_EstadoNoRecalculable(t *testing.T) {
	f := newLedgerFixture()
	periodoID, empleadoID := uuid.New(), uuid.New()

	v1, err := f.svc.Crear(context.Background(), uuid.New(), crearRequest(periodoID, empleadoID))
	require.NoError(t, err)
	v1ID := uuid.MustParse(v1.ID)

	rec, _ := f.recibos.FindByID(context.Background(), v1ID)
	rec.Estado = model.ReciboPagado
	require.NoError(t, f.recibos.Update(context.Background(), rec))

	_, err = f.svc.Recalcular(context.Background(), v1ID, uuid.New(), recalcularRequest())
	require.Error(t, err)
	assert.Equal(t, apierror.KindPermissionDenied, apierror.KindOf(err))
}

func TestRecalcular_NoEncontrado(t *testing.T) {
	f := newLedgerFixture()
	_, err := f.svc.Recalcular(context.Background(), uuid.New(), uuid.New(), recalcularRequest())
	require.Error(t, err)
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))
}

func TestPuedeModificar(t *testing.T) {
	f := newLedgerFixture()
	periodoID, empleadoID := uuid.New(), uuid.New()

	v1, err := f.svc.Crear(context.Background(), uuid.New(), crearRequest(periodoID, empleadoID))
	require.NoError(t, err)
	v1ID := uuid.MustParse(v1.ID)

	resp, err := f.svc.PuedeModificar(context.Background(), v1ID)
	require.NoError(t, err)
	assert.True(t, resp.PuedeModificar)
	assert.False(t, resp.TieneTimbre)

	rec, _ := f.recibos.FindByID(context.Background(), v1ID)
	rec.Estado = model.ReciboTimbradoOk
	rec.EstadoTimbre = model.TimbreTimbrado
	require.NoError(t, f.recibos.Update(context.Background(), rec))

	resp, err = f.svc.PuedeModificar(context.Background(), v1ID)
	require.NoError(t, err)
	assert.False(t, resp.PuedeModificar)
	assert.True(t, resp.TieneTimbre)
	assert.Contains(t, resp.Motivo, "inmutable")
}

func TestObtenerCadena(t *testing.T) {
	f := newLedgerFixture()
	actor := uuid.New()
	periodoID, empleadoID := uuid.New(), uuid.New()

	v1, err := f.svc.Crear(context.Background(), actor, crearRequest(periodoID, empleadoID))
	require.NoError(t, err)
	v2, err := f.svc.Recalcular(context.Background(), uuid.MustParse(v1.ID), actor, recalcularRequest())
	require.NoError(t, err)
	req3 := recalcularRequest()
	req3.NetoAPagar = d("10900.00")
	req3.Motivo = model.SnapshotCorreccion
	v3, err := f.svc.Recalcular(context.Background(), uuid.MustParse(v2.ID), actor, req3)
	require.NoError(t, err)

	// The chain resolves identically from any link
	for _, desde := range []string{v1.ID, v2.ID, v3.ID} {
		cadena, err := f.svc.ObtenerCadena(context.Background(), uuid.MustParse(desde))
		require.NoError(t, err)
		require.Len(t, cadena, 3)
		assert.Equal(t, 1, cadena[0].Version)
		assert.Equal(t, 2, cadena[1].Version)
		assert.Equal(t, 3, cadena[2].Version)
		assert.False(t, cadena[0].Activo)
		assert.False(t, cadena[1].Activo)
		assert.True(t, cadena[2].Activo)
		assert.Nil(t, cadena[0].ParentID)
		require.NotNil(t, cadena[2].ParentID)
		assert.Equal(t, v2.ID, *cadena[2].ParentID)
	}
}

func TestObtenerCadena_PadreInexistente(t *testing.T) {
	f := newLedgerFixture()
	huerfano := uuid.New()
	rec := model.Recibo{
		PeriodoID:  uuid.New(),
		EmpleadoID: uuid.New(),
		Version:    2,
		ParentID:   &huerfano,
		Activo:     true,
		Estado:     model.ReciboCalculado,
	}
	require.NoError(t, f.recibos.Create(context.Background(), nil, &rec))

	_, err := f.svc.ObtenerCadena(context.Background(), rec.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cadena de versiones corrupta")
	// Data corruption is not a domain rejection
	assert.Equal(t, apierror.Kind(""), apierror.KindOf(err))
}

func TestCompararVersiones(t *testing.T) {
	f := newLedgerFixture()
	actor := uuid.New()
	periodoID, empleadoID := uuid.New(), uuid.New()

	v1, err := f.svc.Crear(context.Background(), actor, crearRequest(periodoID, empleadoID))
	require.NoError(t, err)
	v2, err := f.svc.Recalcular(context.Background(), uuid.MustParse(v1.ID), actor, recalcularRequest())
	require.NoError(t, err)

	comp, err := f.svc.CompararVersiones(context.Background(), uuid.MustParse(v2.ID), 1, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, comp.VersionA)
	assert.Equal(t, 2, comp.VersionB)
	assert.True(t, comp.NetoDiferencia.Equal(d("400.00")))

	// Percepciones: P002 eliminado, P003 agregado, P001 sin cambio
	porClave := make(map[string]dto.DiffConcepto)
	for _, diff := range comp.DiffPercepciones {
		porClave[diff.Clave] = diff
	}
	require.Len(t, porClave, 2)
	assert.Equal(t, dto.DiffEliminado, porClave["P002"].Tipo)
	assert.True(t, porClave["P002"].Delta.Equal(d("-500.00")))
	assert.Equal(t, dto.DiffAgregado, porClave["P003"].Tipo)
	assert.True(t, porClave["P003"].Delta.Equal(d("1000.00")))

	// Deducciones: ISR subió 100, IMSS sin cambio
	require.Len(t, comp.DiffDeducciones, 1)
	isr := comp.DiffDeducciones[0]
	assert.Equal(t, dto.DiffModificado, isr.Tipo)
	assert.Equal(t, "D001", isr.Clave)
	require.NotNil(t, isr.ImporteA)
	require.NotNil(t, isr.ImporteB)
	assert.True(t, isr.Delta.Equal(d("100.00")))
}

func TestCompararVersiones_DesdeVersionSustituida(t *testing.T) {
	f := newLedgerFixture()
	actor := uuid.New()

	v1, err := f.svc.Crear(context.Background(), actor, crearRequest(uuid.New(), uuid.New()))
	require.NoError(t, err)
	_, err = f.svc.Recalcular(context.Background(), uuid.MustParse(v1.ID), actor, recalcularRequest())
	require.NoError(t, err)

	// v2 belongs to the same lineage, so referencing it through v1 works too
	comp, err := f.svc.CompararVersiones(context.Background(), uuid.MustParse(v1.ID), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, comp.VersionA)
	assert.Equal(t, 2, comp.VersionB)
	assert.True(t, comp.NetoDiferencia.Equal(d("400.00")))
}

func TestCompararVersiones_MismaVersion(t *testing.T) {
	f := newLedgerFixture()
	_, err := f.svc.CompararVersiones(context.Background(), uuid.New(), 2, 2)
	require.Error(t, err)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
}

func TestCompararVersiones_VersionInexistente(t *testing.T) {
	f := newLedgerFixture()
	v1, err := f.svc.Crear(context.Background(), uuid.New(), crearRequest(uuid.New(), uuid.New()))
	require.NoError(t, err)

	_, err = f.svc.CompararVersiones(context.Background(), uuid.MustParse(v1.ID), 1, 7)
	require.Error(t, err)
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))
}

func TestObtenerActivo(t *testing.T) {
	f := newLedgerFixture()
	periodoID, empleadoID := uuid.New(), uuid.New()

	_, err := f.svc.ObtenerActivo(context.Background(), periodoID, empleadoID)
	require.Error(t, err)
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))

	v1, err := f.svc.Crear(context.Background(), uuid.New(), crearRequest(periodoID, empleadoID))
	require.NoError(t, err)

	activo, err := f.svc.ObtenerActivo(context.Background(), periodoID, empleadoID)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, activo.ID)
}
