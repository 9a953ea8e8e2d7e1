package handler

import (
	"io"
	"net/http"

	"nominamx/internal/apierror"
	"nominamx/internal/dto"
	"nominamx/internal/service"

	"github.com/gin-gonic/gin"
)

// maxDocumentoBytes caps uploaded artifacts at 10 MB.
const maxDocumentoBytes = 10 << 20

type DocumentosHandler struct{ svc service.DocumentoService }

func NewDocumentosHandler(svc service.DocumentoService) *DocumentosHandler {
	return &DocumentosHandler{svc: svc}
}

// Almacenar godoc
// @Summary      Almacenar documento fiscal
// @Description  Registra un artefacto (XML, PDF, acuse) con hash SHA-256 y deduplicación por contenido.
// @Tags         documentos
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id      path     string true  "UUID del recibo"
// @Param        tipo    formData string true  "Tipo de documento"
// @Param        archivo formData file   true  "Contenido del documento"
// @Success      201  {object} dto.DocumentoResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/recibos/{id}/documentos [post]
func (h *DocumentosHandler) Almacenar(c *gin.Context) {
	reciboID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	tipo := c.PostForm("tipo")
	if tipo == "" {
		c.JSON(http.StatusBadRequest, apierror.New("Campo tipo es obligatorio"))
		return
	}

	fileHeader, err := c.FormFile("archivo")
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Archivo no recibido"))
		return
	}
	if fileHeader.Size > maxDocumentoBytes {
		c.JSON(http.StatusBadRequest, apierror.New("El archivo excede el tamano maximo de 10 MB"))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("No se pudo leer el archivo"))
		return
	}
	defer f.Close()
	contenido, err := io.ReadAll(io.LimitReader(f, maxDocumentoBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("No se pudo leer el archivo"))
		return
	}

	nombre := fileHeader.Filename
	mime := fileHeader.Header.Get("Content-Type")
	opts := dto.AlmacenarOpciones{
		ActorID:           actorID(c),
		NombreArchivo:     &nombre,
		MimeType:          &mime,
		PermitirDuplicado: c.Query("permitir_duplicado") == "true",
	}

	resp, err := h.svc.Almacenar(c.Request.Context(), reciboID, tipo, contenido, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Obtener godoc
// @Summary      Descargar documento fiscal
// @Description  Devuelve los bytes con verificación de integridad. Un documento corrupto se sirve igualmente con X-Integridad-Valida: false.
// @Tags         documentos
// @Produce      octet-stream
// @Security     BearerAuth
// @Param        id path string true "UUID del documento"
// @Param        incluir_eliminados query bool false "Servir también documentos eliminados (auditoría)"
// @Success      200  {file} binary
// @Failure      404  {object} apierror.APIError
// @Router       /v1/documentos/{id} [get]
func (h *DocumentosHandler) Obtener(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	incluirEliminados := c.Query("incluir_eliminados") == "true"
	obtenido, err := h.svc.Obtener(c.Request.Context(), id, incluirEliminados)
	if err != nil {
		respondError(c, err)
		return
	}

	mime := "application/octet-stream"
	if obtenido.Documento.MimeType != nil {
		mime = *obtenido.Documento.MimeType
	}
	if obtenido.Documento.NombreArchivo != nil {
		c.Header("Content-Disposition", `attachment; filename="`+*obtenido.Documento.NombreArchivo+`"`)
	}
	if obtenido.IntegridadValida {
		c.Header("X-Integridad-Valida", "true")
	} else {
		c.Header("X-Integridad-Valida", "false")
	}
	c.Data(http.StatusOK, mime, obtenido.Contenido)
}

// VerificarIntegridad godoc
// @Summary      Verificar integridad de un documento
// @Tags         documentos
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del documento"
// @Success      200  {object} dto.VerificacionDocumento
// @Failure      404  {object} apierror.APIError
// @Router       /v1/documentos/{id}/verificar [get]
func (h *DocumentosHandler) VerificarIntegridad(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.VerificarIntegridad(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// VerificarPeriodo godoc
// @Summary      Verificación de integridad de todos los documentos del periodo
// @Description  Recorre todos los documentos activos y reporta TODOS los hallazgos (válidos, corruptos, faltantes).
// @Tags         documentos
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del periodo"
// @Success      200  {object} dto.VerificacionPeriodoResponse
// @Router       /v1/periodos/{id}/documentos/verificar [get]
func (h *DocumentosHandler) VerificarPeriodo(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.VerificarIntegridadPeriodo(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Eliminar godoc
// @Summary      Eliminar documento (soft delete)
// @Description  Marca el documento como eliminado con actor y motivo; el registro y los bytes se conservan.
// @Tags         documentos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "UUID del documento"
// @Param        body body dto.EliminarDocumentoRequest true "Motivo de eliminación"
// @Success      204
// @Failure      400  {object} apierror.APIError
// @Router       /v1/documentos/{id} [delete]
func (h *DocumentosHandler) Eliminar(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.EliminarDocumentoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Eliminar(c.Request.Context(), id, actorID(c), req.Motivo); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
