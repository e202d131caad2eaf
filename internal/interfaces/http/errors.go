package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/ecf-numeracion/internal/application/dto"
	"github.com/jhoicas/ecf-numeracion/internal/domain"
	"github.com/jhoicas/ecf-numeracion/pkg/logger"
)

// writeError traduce errores de dominio a código HTTP y dto.ErrorResponse.
func writeError(c *fiber.Ctx, log *logger.Logger, err error) error {
	var (
		verr   *domain.ValidationError
		oerr   *domain.OverlapError
		lerr   *domain.FieldLockedError
		iuerr  *domain.InUseError
		exerr  *domain.ExhaustedError
		neerr  *domain.NotEligibleError
		nrerr  *domain.NoEligibleRangeError
		status int
		body   dto.ErrorResponse
	)
	switch {
	case errors.Is(err, domain.ErrTransient), errors.Is(err, domain.ErrConcurrencyConflict):
		status, body = fiber.StatusServiceUnavailable, dto.ErrorResponse{Code: "TRANSIENT", Message: "conflicto de concurrencia persistente, reintente"}
		c.Set(fiber.HeaderRetryAfter, "1")
	case errors.As(err, &verr):
		status, body = fiber.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos", Details: verr.Fields}
	case errors.Is(err, domain.ErrInvalidInput):
		status, body = fiber.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		status, body = fiber.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHORIZED", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		status, body = fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: "rango no encontrado"}
	case errors.As(err, &oerr):
		status, body = fiber.StatusConflict, dto.ErrorResponse{Code: "OVERLAP", Message: err.Error(), Details: fiber.Map{
			"conflict_id": oerr.ConflictID, "conflict_start": oerr.ConflictStart, "conflict_end": oerr.ConflictEnd,
		}}
	case errors.Is(err, domain.ErrOverlap):
		status, body = fiber.StatusConflict, dto.ErrorResponse{Code: "OVERLAP", Message: err.Error()}
	case errors.As(err, &lerr):
		status, body = fiber.StatusConflict, dto.ErrorResponse{Code: "FIELD_LOCKED", Message: err.Error(), Details: fiber.Map{
			"fields": lerr.Fields, "used_count": lerr.UsedCount,
		}}
	case errors.As(err, &iuerr):
		status, body = fiber.StatusConflict, dto.ErrorResponse{Code: "IN_USE", Message: err.Error()}
	case errors.As(err, &exerr):
		status, body = fiber.StatusConflict, dto.ErrorResponse{Code: "EXHAUSTED", Message: err.Error(), Details: fiber.Map{
			"available": exerr.Available, "low_water_mark": exerr.LowWaterMark,
		}}
	case errors.As(err, &neerr):
		status, body = fiber.StatusConflict, dto.ErrorResponse{Code: "NOT_ELIGIBLE", Message: err.Error(), Details: fiber.Map{
			"status": neerr.Status,
		}}
	case errors.As(err, &nrerr):
		status, body = fiber.StatusConflict, dto.ErrorResponse{Code: "NO_ELIGIBLE_RANGE", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status, body = fiber.StatusRequestTimeout, dto.ErrorResponse{Code: "TIMEOUT", Message: "la operación fue cancelada"}
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
		status, body = fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"}
	}
	return c.Status(status).JSON(body)
}
