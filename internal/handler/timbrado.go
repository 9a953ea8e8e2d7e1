package handler

import (
	"net/http"

	"nominamx/internal/dto"
	"nominamx/internal/service"

	"github.com/gin-gonic/gin"
)

type TimbradoHandler struct {
	autorizaciones service.AutorizacionService
	preparacion    service.PreparacionService
	timbrado       service.TimbradoService
}

func NewTimbradoHandler(
	autorizaciones service.AutorizacionService,
	preparacion service.PreparacionService,
	timbrado service.TimbradoService,
) *TimbradoHandler {
	return &TimbradoHandler{autorizaciones: autorizaciones, preparacion: preparacion, timbrado: timbrado}
}

// Autorizar godoc
// @Summary      Autorizar timbrado del periodo
// @Description  Abre la compuerta de timbrado: congela conteo y neto total para auditoría. Requiere rol supervisor o administrador.
// @Tags         timbrado
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "UUID del periodo"
// @Param        body body dto.AutorizarTimbradoRequest false "Detalle opcional"
// @Success      201  {object} dto.AutorizacionResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/periodos/{id}/autorizar-timbrado [post]
func (h *TimbradoHandler) Autorizar(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.AutorizarTimbradoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.autorizaciones.Autorizar(c.Request.Context(), id, actorID(c), req.Detalle)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Revocar godoc
// @Summary      Revocar autorización de timbrado
// @Description  Cierra la compuerta. Solo posible mientras ningún recibo del periodo haya sido timbrado.
// @Tags         timbrado
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "UUID del periodo"
// @Param        body body dto.RevocarAutorizacionRequest true "Motivo de revocación"
// @Success      204
// @Failure      403  {object} apierror.APIError
// @Router       /v1/periodos/{id}/autorizacion [delete]
func (h *TimbradoHandler) Revocar(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.RevocarAutorizacionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.autorizaciones.Revocar(c.Request.Context(), id, actorID(c), req.Motivo); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PuedeAutorizar godoc
// @Summary      Consultar capacidad de autorización del usuario actual
// @Tags         timbrado
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del periodo"
// @Success      200  {object} dto.PuedeAutorizarResponse
// @Router       /v1/periodos/{id}/puede-autorizar [get]
func (h *TimbradoHandler) PuedeAutorizar(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.autorizaciones.PuedeAutorizar(c.Request.Context(), actorID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ObtenerAutorizacion godoc
// @Summary      Autorización activa del periodo
// @Tags         timbrado
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del periodo"
// @Success      200  {object} dto.AutorizacionResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/periodos/{id}/autorizacion [get]
func (h *TimbradoHandler) ObtenerAutorizacion(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.autorizaciones.ObtenerActiva(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HistorialAutorizaciones godoc
// @Summary      Historial de autorizaciones del periodo
// @Tags         timbrado
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del periodo"
// @Success      200  {array} dto.AutorizacionResponse
// @Router       /v1/periodos/{id}/autorizaciones [get]
func (h *TimbradoHandler) HistorialAutorizaciones(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.autorizaciones.Historial(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PuedeTimbrar godoc
// @Summary      Verificación de preparación para timbrado
// @Description  Ejecuta TODAS las verificaciones (autorización, PAC, CSD, estado del periodo, recibos) y reporta cada problema con su resolución.
// @Tags         timbrado
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del periodo"
// @Success      200  {object} dto.PuedeTimbrarResponse
// @Router       /v1/periodos/{id}/puede-timbrar [get]
func (h *TimbradoHandler) PuedeTimbrar(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.preparacion.PuedeTimbrar(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TimbrarPeriodo godoc
// @Summary      Timbrar periodo (masivo)
// @Description  Encola un trabajo de timbrado por cada recibo activo timbrable. Requiere autorización activa.
// @Tags         timbrado
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del periodo"
// @Success      202  {object} dto.TimbrarPeriodoResponse
// @Failure      403  {object} apierror.APIError
// @Router       /v1/periodos/{id}/timbrar [post]
func (h *TimbradoHandler) TimbrarPeriodo(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.timbrado.TimbrarPeriodo(c.Request.Context(), id, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// TimbrarRecibo godoc
// @Summary      Timbrar recibo individual
// @Tags         timbrado
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del recibo"
// @Success      202
// @Failure      403  {object} apierror.APIError
// @Router       /v1/recibos/{id}/timbrar [post]
func (h *TimbradoHandler) TimbrarRecibo(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.timbrado.TimbrarRecibo(c.Request.Context(), id, actorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
