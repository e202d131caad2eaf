package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/ecf-numeracion/internal/application/numbering"
	"github.com/jhoicas/ecf-numeracion/pkg/jwt"
	"github.com/jhoicas/ecf-numeracion/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	RangeUC   *numbering.RangeUseCase
	Logger    *logger.Logger
	JWTSecret string
	JWTIssuer string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))

	readers := RequireRole(jwt.RoleAdmin, jwt.RoleEmisor, jwt.RoleAuditor)
	issuers := RequireRole(jwt.RoleAdmin, jwt.RoleEmisor)
	admins := RequireRole(jwt.RoleAdmin)

	ranges := protected.Group("/ranges")
	h := NewRangeHandler(deps.RangeUC, deps.Logger)
	ranges.Get("/stats", readers, h.Stats)
	ranges.Post("/consume", issuers, h.Consume)
	ranges.Get("/", readers, h.List)
	ranges.Post("/", admins, h.Create)
	ranges.Get("/:id", readers, h.GetByID)
	ranges.Patch("/:id", admins, h.Update)
	ranges.Delete("/:id", admins, h.Delete)
	ranges.Post("/:id/consume", issuers, h.ConsumeByID)
}
