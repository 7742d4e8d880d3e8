package controller

import (
	"bytes"
	"encoding/json"

	"research-agent-be/internal/dto"
	"research-agent-be/internal/pkg/serverutils"
	"research-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IQueryController interface {
	RegisterRoutes(r fiber.Router)
	Query(ctx *fiber.Ctx) error
	ResetThread(ctx *fiber.Ctx) error
	ThreadStatus(ctx *fiber.Ctx) error
}

type queryController struct {
	service service.IQueryService
}

func NewQueryController(service service.IQueryService) IQueryController {
	return &queryController{service: service}
}

func (c *queryController) RegisterRoutes(r fiber.Router) {
	r.Post("/query", c.Query)

	h := r.Group("/thread")
	h.Post("/reset", c.ResetThread)
	h.Get("/status/:thread_id", c.ThreadStatus)
}

func (c *queryController) Query(ctx *fiber.Ctx) error {
	var req dto.QueryRequest
	// Unknown keys, including unknown config overrides, are rejected
	dec := json.NewDecoder(bytes.NewReader(ctx.Body()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body: "+err.Error()))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.AnswerQuestion(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Question answered", res))
}

func (c *queryController) ResetThread(ctx *fiber.Ctx) error {
	threadID := ctx.Query("thread_id")
	if threadID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "thread_id is required"))
	}

	res, err := c.service.ResetThread(ctx.UserContext(), threadID)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Thread reset", res))
}

func (c *queryController) ThreadStatus(ctx *fiber.Ctx) error {
	res, err := c.service.ThreadStatus(ctx.UserContext(), ctx.Params("thread_id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Thread status", res))
}
