package controller

import (
	"io"

	"research-agent-be/internal/dto"
	"research-agent-be/internal/pkg/serverutils"
	"research-agent-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	ResetIndex(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
}

type documentController struct {
	service service.IDocumentService
}

func NewDocumentController(service service.IDocumentService) IDocumentController {
	return &documentController{service: service}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	r.Post("/docs/upload", c.Upload)
	r.Post("/vectordb/reset", c.ResetIndex)
	r.Get("/status", c.Status)
}

func (c *documentController) Upload(ctx *fiber.Ctx) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Multipart form with files is required"))
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "At least one file is required"))
	}

	files := make([]dto.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return err
		}
		files = append(files, dto.UploadedFile{Name: fh.Filename, Data: data})
	}

	res, err := c.service.Upload(ctx.UserContext(), files)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Documents indexed", res))
}

func (c *documentController) ResetIndex(ctx *fiber.Ctx) error {
	res, err := c.service.ResetIndex(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Index reset", res))
}

func (c *documentController) Status(ctx *fiber.Ctx) error {
	res, err := c.service.IndexStatus(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Index status", res))
}
