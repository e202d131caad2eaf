package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/ecf-numeracion/internal/application/dto"
	"github.com/jhoicas/ecf-numeracion/internal/application/numbering"
	"github.com/jhoicas/ecf-numeracion/pkg/logger"
)

// RangeHandler maneja las peticiones HTTP de rangos de numeración (protegido).
type RangeHandler struct {
	uc  *numbering.RangeUseCase
	log *logger.Logger
}

// NewRangeHandler construye el handler.
func NewRangeHandler(uc *numbering.RangeUseCase, log *logger.Logger) *RangeHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RangeHandler{uc: uc, log: log.Component("http")}
}

// Create godoc
// @Summary      Registrar rango autorizado
// @Tags         ranges
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateRangeRequest  true  "Rango autorizado por la DGII"
// @Success      201   {object}  dto.RangeResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/ranges [post]
func (h *RangeHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateRangeRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.CreateRange(c.UserContext(), GetCompanyID(c), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID godoc
// @Summary      Obtener rango por ID
// @Tags         ranges
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del rango"
// @Success      200  {object}  dto.RangeResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/ranges/{id} [get]
func (h *RangeHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetRange(c.UserContext(), c.Params("id"), GetCompanyID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// List godoc
// @Summary      Listar rangos
// @Tags         ranges
// @Security     Bearer
// @Produce      json
// @Param        taxpayer_id           query  string  false  "RNC o cédula"
// @Param        document_type         query  string  false  "Tipo de e-CF"
// @Param        status                query  string  false  "active, exhausted, expired, disabled"
// @Param        search                query  string  false  "Razón social o comentario"
// @Param        expiring_within_days  query  int     false  "Vencen en los próximos N días"
// @Param        limit                 query  int     false  "Límite"  default(20)
// @Param        offset                query  int     false  "Offset"  default(0)
// @Success      200  {object}  dto.RangeListResponse
// @Router       /api/ranges [get]
func (h *RangeHandler) List(c *fiber.Ctx) error {
	in := dto.ListRangesRequest{
		TaxpayerID:         c.Query("taxpayer_id"),
		DocumentType:       c.Query("document_type"),
		Status:             c.Query("status"),
		Search:             c.Query("search"),
		ExpiringWithinDays: c.QueryInt("expiring_within_days", 0),
		PageRequest: dto.PageRequest{
			Limit:  c.QueryInt("limit", 20),
			Offset: c.QueryInt("offset", 0),
		},
	}
	out, err := h.uc.ListRanges(c.UserContext(), GetCompanyID(c), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Actualizar rango
// @Description  Con números emitidos solo se admiten comment, low_water_mark y status.
// @Tags         ranges
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "ID del rango"
// @Param        body  body  dto.UpdateRangeRequest  true  "Campos a modificar"
// @Success      200   {object}  dto.RangeResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/ranges/{id} [patch]
func (h *RangeHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateRangeRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.UpdateRange(c.UserContext(), c.Params("id"), GetCompanyID(c), in)
	if err != nil {
		return writeError(c, h.log, err)
	}
	h.log.Info().Str("user_id", GetUserID(c)).Str("range_id", out.ID).Msg("rango modificado")
	return c.JSON(out)
}

// Delete godoc
// @Summary      Eliminar rango sin uso
// @Tags         ranges
// @Security     Bearer
// @Param        id   path  string  true  "ID del rango"
// @Success      204
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/ranges/{id} [delete]
func (h *RangeHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.DeleteRange(c.UserContext(), c.Params("id"), GetCompanyID(c)); err != nil {
		return writeError(c, h.log, err)
	}
	h.log.Info().Str("user_id", GetUserID(c)).Str("range_id", c.Params("id")).Msg("rango eliminado")
	return c.SendStatus(fiber.StatusNoContent)
}

// ConsumeByID godoc
// @Summary      Emitir el siguiente e-NCF de un rango
// @Tags         ranges
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del rango"
// @Success      200  {object}  dto.ConsumptionResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/ranges/{id}/consume [post]
func (h *RangeHandler) ConsumeByID(c *fiber.Ctx) error {
	out, err := h.uc.ConsumeByRangeID(c.UserContext(), c.Params("id"), GetCompanyID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Consume godoc
// @Summary      Emitir el siguiente e-NCF por contribuyente y tipo
// @Tags         ranges
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ConsumeRequest  true  "Contribuyente y tipo de e-CF"
// @Success      200   {object}  dto.ConsumptionResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/ranges/consume [post]
func (h *RangeHandler) Consume(c *fiber.Ctx) error {
	var in dto.ConsumeRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	out, err := h.uc.ConsumeByTaxpayerAndType(c.UserContext(), GetCompanyID(c), in.TaxpayerID, in.DocumentType)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}

// Stats godoc
// @Summary      Resumen de rangos
// @Tags         ranges
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.RangeStatsResponse
// @Router       /api/ranges/stats [get]
func (h *RangeHandler) Stats(c *fiber.Ctx) error {
	out, err := h.uc.GetStats(c.UserContext(), GetCompanyID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(out)
}
