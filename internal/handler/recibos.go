package handler

import (
	"net/http"
	"strconv"

	"nominamx/internal/apierror"
	"nominamx/internal/dto"
	"nominamx/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RecibosHandler struct{ svc service.LedgerService }

func NewRecibosHandler(svc service.LedgerService) *RecibosHandler { return &RecibosHandler{svc: svc} }

// CrearRecibo godoc
// @Summary      Registrar recibo inicial
// @Description  Registra la versión 1 del recibo de un empleado en un periodo, con su snapshot inicial.
// @Tags         recibos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CrearReciboRequest true "Cifras calculadas del recibo"
// @Success      201  {object} dto.ReciboResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/recibos [post]
func (h *RecibosHandler) CrearRecibo(c *gin.Context) {
	var req dto.CrearReciboRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Crear(c.Request.Context(), actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ObtenerRecibo godoc
// @Summary      Consultar recibo por ID
// @Tags         recibos
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del recibo"
// @Success      200  {object} dto.ReciboResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/recibos/{id} [get]
func (h *RecibosHandler) ObtenerRecibo(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	cadena, err := h.svc.ObtenerCadena(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	// The chain resolves any version; return the requested link
	for _, item := range cadena {
		if item.ID == id.String() {
			c.JSON(http.StatusOK, item)
			return
		}
	}
	c.JSON(http.StatusNotFound, apierror.New("Recibo no encontrado"))
}

// PuedeModificar godoc
// @Summary      Consultar si el recibo admite modificación
// @Description  Chequeo consultivo — la transacción de recálculo revalida bajo bloqueo de fila.
// @Tags         recibos
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID del recibo"
// @Success      200  {object} dto.PuedeModificarResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/recibos/{id}/puede-modificar [get]
func (h *RecibosHandler) PuedeModificar(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.PuedeModificar(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Recalcular godoc
// @Summary      Recalcular recibo (nueva versión)
// @Description  Sustituye la versión activa por una nueva: snapshot, supersesión y alta atómicas.
// @Tags         recibos
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "UUID del recibo activo"
// @Param        body body dto.RecalcularRequest true "Nuevas cifras y motivo"
// @Success      201  {object} dto.ReciboResponse
// @Failure      403  {object} apierror.APIError
// @Router       /v1/recibos/{id}/recalcular [post]
func (h *RecibosHandler) Recalcular(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.RecalcularRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Recalcular(c.Request.Context(), id, actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ObtenerActivo godoc
// @Summary      Recibo activo de un empleado en un periodo
// @Tags         recibos
// @Produce      json
// @Security     BearerAuth
// @Param        periodo_id  query string true "UUID del periodo"
// @Param        empleado_id query string true "UUID del empleado"
// @Success      200  {object} dto.ReciboResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/recibos/activo [get]
func (h *RecibosHandler) ObtenerActivo(c *gin.Context) {
	periodoID, err := uuid.Parse(c.Query("periodo_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("periodo_id invalido"))
		return
	}
	empleadoID, err := uuid.Parse(c.Query("empleado_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("empleado_id invalido"))
		return
	}
	resp, err := h.svc.ObtenerActivo(c.Request.Context(), periodoID, empleadoID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ObtenerCadena godoc
// @Summary      Cadena de versiones del recibo
// @Description  Historial completo desde la versión 1 hasta la más reciente.
// @Tags         recibos
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "UUID de cualquier versión del recibo"
// @Success      200  {array} dto.ReciboVersionItem
// @Failure      404  {object} apierror.APIError
// @Router       /v1/recibos/{id}/versiones [get]
func (h *RecibosHandler) ObtenerCadena(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	items, err := h.svc.ObtenerCadena(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// CompararVersiones godoc
// @Summary      Comparar dos versiones del recibo
// @Description  Diferencias por clave de concepto entre dos versiones del mismo linaje.
// @Tags         recibos
// @Produce      json
// @Security     BearerAuth
// @Param        id path  string true "UUID de cualquier versión del recibo"
// @Param        va query int    true "Versión A"
// @Param        vb query int    true "Versión B"
// @Success      200  {object} dto.ComparacionResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/recibos/{id}/comparar [get]
func (h *RecibosHandler) CompararVersiones(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	va, errA := strconv.Atoi(c.Query("va"))
	vb, errB := strconv.Atoi(c.Query("vb"))
	if errA != nil || errB != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Parametros va y vb deben ser numeros de version"))
		return
	}
	resp, err := h.svc.CompararVersiones(c.Request.Context(), id, va, vb)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
