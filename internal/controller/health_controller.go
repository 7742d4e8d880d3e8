package controller

import (
	"research-agent-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	service string
}

func NewHealthController(serviceName string) IHealthController {
	return &healthController{service: serviceName}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/", c.Health)
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Service is running", fiber.Map{
		"service": c.service,
		"status":  "ok",
	}))
}
