package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"nominamx/internal/apierror"
	"nominamx/internal/dto"
	"nominamx/internal/infra"
	"nominamx/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type documentoFixture struct {
	svc        DocumentoService
	documentos *stubDocumentoRepo
	recibos    *stubReciboRepo
	bitacora   *stubBitacoraRepo
	store      *infra.LocalStore
	baseDir    string
	reciboID   uuid.UUID
	periodoID  uuid.UUID
}

func newDocumentoFixture(t *testing.T) *documentoFixture {
	t.Helper()
	baseDir := t.TempDir()
	store, err := infra.NewLocalStore(baseDir)
	require.NoError(t, err)

	documentos := newStubDocumentoRepo()
	recibos := newStubReciboRepo()
	bitacora := newStubBitacoraRepo()

	rec := model.Recibo{
		PeriodoID:  uuid.New(),
		EmpleadoID: uuid.New(),
		Version:    1,
		Activo:     true,
		Estado:     model.ReciboCalculado,
	}
	require.NoError(t, recibos.Create(context.Background(), nil, &rec))

	return &documentoFixture{
		svc:        NewDocumentoService(documentos, recibos, bitacora, store),
		documentos: documentos,
		recibos:    recibos,
		bitacora:   bitacora,
		store:      store,
		baseDir:    baseDir,
		reciboID:   rec.ID,
		periodoID:  rec.PeriodoID,
	}
}

func opcionesDe(actorID uuid.UUID) dto.AlmacenarOpciones {
	nombre := "recibo.xml"
	mime := "application/xml"
	return dto.AlmacenarOpciones{ActorID: actorID, NombreArchivo: &nombre, MimeType: &mime}
}

func TestAlmacenarDocumento(t *testing.T) {
	f := newDocumentoFixture(t)
	actor := uuid.New()
	contenido := []byte(`<?xml version="1.0"?><cfdi:Comprobante/>`)

	resp, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocXMLOriginal, contenido, opcionesDe(actor))
	require.NoError(t, err)

	sum := sha256.Sum256(contenido)
	assert.Equal(t, hex.EncodeToString(sum[:]), resp.ContentHash)
	assert.Equal(t, 1, resp.Version)
	assert.True(t, resp.Activo)
	assert.Equal(t, int64(len(contenido)), resp.TamanoBytes)

	// Bytes landed on disk at the canonical path
	leido, err := f.store.Leer(resp.RutaStorage)
	require.NoError(t, err)
	assert.Equal(t, contenido, leido)

	require.Len(t, f.bitacora.entradas, 1)
	assert.Equal(t, model.AccionDocumentoAlmacenado, f.bitacora.entradas[0].Accion)
}

func TestAlmacenarDocumento_Deduplica(t *testing.T) {
	f := newDocumentoFixture(t)
	actor := uuid.New()
	contenido := []byte("contenido identico")

	primero, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocXMLOriginal, contenido, opcionesDe(actor))
	require.NoError(t, err)

	// Identical bytes are not a new fiscal event: the re-upload is rejected
	_, err = f.svc.Almacenar(context.Background(), f.reciboID, model.DocXMLOriginal, contenido, opcionesDe(actor))
	require.Error(t, err)
	assert.Equal(t, apierror.KindConflict, apierror.KindOf(err))
	assert.Contains(t, err.Error(), "idéntico")
	assert.Len(t, f.documentos.documentos, 1)

	// PermitirDuplicado forces a new version anyway
	opts := opcionesDe(actor)
	opts.PermitirDuplicado = true
	tercero, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocXMLOriginal, contenido, opts)
	require.NoError(t, err)
	assert.NotEqual(t, primero.ID, tercero.ID)
	assert.Equal(t, 2, tercero.Version)
}

func TestAlmacenarDocumento_NuevaVersionDesactivaAnterior(t *testing.T) {
	f := newDocumentoFixture(t)
	actor := uuid.New()

	v1, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocPDFRecibo, []byte("pdf v1"), opcionesDe(actor))
	require.NoError(t, err)
	v2, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocPDFRecibo, []byte("pdf v2"), opcionesDe(actor))
	require.NoError(t, err)

	assert.Equal(t, 2, v2.Version)
	assert.True(t, v2.Activo)

	anterior, err := f.documentos.FindByID(context.Background(), uuid.MustParse(v1.ID))
	require.NoError(t, err)
	assert.False(t, anterior.Activo)
	// The superseded row and its bytes stay for reconstruction
	assert.True(t, f.store.Existe(anterior.RutaStorage))
}

func TestAlmacenarDocumento_Rechazos(t *testing.T) {
	f := newDocumentoFixture(t)
	opts := opcionesDe(uuid.New())

	_, err := f.svc.Almacenar(context.Background(), f.reciboID, "tipo_desconocido", []byte("x"), opts)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))

	_, err = f.svc.Almacenar(context.Background(), f.reciboID, model.DocXMLOriginal, nil, opts)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))

	_, err = f.svc.Almacenar(context.Background(), uuid.New(), model.DocXMLOriginal, []byte("x"), opts)
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))
}

func TestObtenerDocumento_IntegridadValida(t *testing.T) {
	f := newDocumentoFixture(t)
	contenido := []byte("bytes originales")

	resp, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocXMLTimbrado, contenido, opcionesDe(uuid.New()))
	require.NoError(t, err)

	obtenido, err := f.svc.Obtener(context.Background(), uuid.MustParse(resp.ID), false)
	require.NoError(t, err)
	assert.True(t, obtenido.IntegridadValida)
	assert.Equal(t, contenido, obtenido.Contenido)
}

func TestObtenerDocumento_Corrupto(t *testing.T) {
	f := newDocumentoFixture(t)

	resp, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocXMLTimbrado, []byte("bytes originales"), opcionesDe(uuid.New()))
	require.NoError(t, err)

	// Tamper with the stored file behind the registry's back
	abs := filepath.Join(f.baseDir, resp.RutaStorage)
	require.NoError(t, os.WriteFile(abs, []byte("bytes alterados"), 0o640))

	// Corrupted content is still returned, flagged as invalid
	obtenido, err := f.svc.Obtener(context.Background(), uuid.MustParse(resp.ID), false)
	require.NoError(t, err)
	assert.False(t, obtenido.IntegridadValida)
	assert.Equal(t, []byte("bytes alterados"), obtenido.Contenido)
}

func TestObtenerDocumento_ArchivoFaltante(t *testing.T) {
	f := newDocumentoFixture(t)

	resp, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocXMLOriginal, []byte("x"), opcionesDe(uuid.New()))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.baseDir, resp.RutaStorage)))

	_, err = f.svc.Obtener(context.Background(), uuid.MustParse(resp.ID), false)
	require.Error(t, err)
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))
}

func TestVerificarIntegridadPeriodo(t *testing.T) {
	f := newDocumentoFixture(t)
	actor := uuid.New()

	valido, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocXMLOriginal, []byte("contenido sano"), opcionesDe(actor))
	require.NoError(t, err)
	corrupto, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocXMLTimbrado, []byte("sera alterado"), opcionesDe(actor))
	require.NoError(t, err)
	faltante, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocPDFRecibo, []byte("sera borrado"), opcionesDe(actor))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(f.baseDir, corrupto.RutaStorage), []byte("otro contenido"), 0o640))
	require.NoError(t, os.Remove(filepath.Join(f.baseDir, faltante.RutaStorage)))

	// The scan reports every finding without aborting
	resp, err := f.svc.VerificarIntegridadPeriodo(context.Background(), f.periodoID)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.Validos)
	assert.Equal(t, 1, resp.Invalidos)
	assert.Equal(t, 1, resp.Faltantes)
	require.Len(t, resp.Resultados, 3)

	porID := make(map[string]dto.VerificacionDocumento)
	for _, r := range resp.Resultados {
		porID[r.DocumentoID] = r
	}
	assert.True(t, porID[valido.ID].Valido)
	assert.True(t, porID[corrupto.ID].ArchivoExiste)
	assert.False(t, porID[corrupto.ID].Valido)
	assert.NotEqual(t, porID[corrupto.ID].HashEsperado, porID[corrupto.ID].HashActual)
	assert.False(t, porID[faltante.ID].ArchivoExiste)
}

func TestEliminarDocumento(t *testing.T) {
	f := newDocumentoFixture(t)
	actor := uuid.New()

	resp, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocReporteAuditoria, []byte("reporte"), opcionesDe(actor))
	require.NoError(t, err)
	docID := uuid.MustParse(resp.ID)

	require.NoError(t, f.svc.Eliminar(context.Background(), docID, actor, "documento generado por error"))

	// Soft delete: the row survives with the audit fields set
	doc, err := f.documentos.FindByID(context.Background(), docID)
	require.NoError(t, err)
	assert.False(t, doc.Activo)
	require.NotNil(t, doc.DeletedAt)
	require.NotNil(t, doc.DeletedBy)
	assert.Equal(t, actor, *doc.DeletedBy)
	require.NotNil(t, doc.MotivoEliminacion)

	// Deleted documents are no longer readable by default
	_, err = f.svc.Obtener(context.Background(), docID, false)
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))

	// Double delete is rejected
	err = f.svc.Eliminar(context.Background(), docID, actor, "segundo intento")
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
}

func TestObtenerDocumento_EliminadoParaAuditoria(t *testing.T) {
	f := newDocumentoFixture(t)
	actor := uuid.New()
	contenido := []byte("reporte a reconstruir")

	resp, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocReporteAuditoria, contenido, opcionesDe(actor))
	require.NoError(t, err)
	docID := uuid.MustParse(resp.ID)
	require.NoError(t, f.svc.Eliminar(context.Background(), docID, actor, "generado con cifras equivocadas"))

	_, err = f.svc.Obtener(context.Background(), docID, false)
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))

	// incluirEliminados exposes the document for audit reconstruction
	obtenido, err := f.svc.Obtener(context.Background(), docID, true)
	require.NoError(t, err)
	assert.Equal(t, contenido, obtenido.Contenido)
	assert.True(t, obtenido.IntegridadValida)
	assert.False(t, obtenido.Documento.Activo)
}

func TestEliminarDocumento_MotivoCorto(t *testing.T) {
	f := newDocumentoFixture(t)
	err := f.svc.Eliminar(context.Background(), uuid.New(), uuid.New(), "no")
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
}

func TestEliminarDocumento_XMLTimbradoProtegido(t *testing.T) {
	f := newDocumentoFixture(t)
	actor := uuid.New()

	resp, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocXMLTimbrado, []byte("xml timbrado"), opcionesDe(actor))
	require.NoError(t, err)

	rec, _ := f.recibos.FindByID(context.Background(), f.reciboID)
	rec.Estado = model.ReciboTimbradoOk
	rec.EstadoTimbre = model.TimbreTimbrado
	require.NoError(t, f.recibos.Update(context.Background(), rec))

	err = f.svc.Eliminar(context.Background(), uuid.MustParse(resp.ID), actor, "intento de borrar evidencia fiscal")
	require.Error(t, err)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
	assert.Contains(t, err.Error(), "timbre vigente")
}

func TestEliminarDocumento_ReciboInaccesibleRechaza(t *testing.T) {
	f := newDocumentoFixture(t)
	actor := uuid.New()

	resp, err := f.svc.Almacenar(context.Background(), f.reciboID, model.DocXMLTimbrado, []byte("xml timbrado"), opcionesDe(actor))
	require.NoError(t, err)
	docID := uuid.MustParse(resp.ID)

	// If the owning recibo cannot be loaded the guard fails closed
	delete(f.recibos.recibos, f.reciboID)

	err = f.svc.Eliminar(context.Background(), docID, actor, "limpieza de documentos viejos")
	require.Error(t, err)

	doc, ferr := f.documentos.FindByID(context.Background(), docID)
	require.NoError(t, ferr)
	assert.True(t, doc.Activo)
	assert.Nil(t, doc.DeletedAt)
}
