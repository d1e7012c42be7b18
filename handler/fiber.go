package handler

import (
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gofiber/fiber/v2"
)

// Register wires the prompt routes onto the given fiber app. Each route
// forwards to Handle, so local traffic and API Gateway events share decoding
// and error mapping.
func (h *Handler) Register(app *fiber.App) {
	api := app.Group("/api")

	api.Get("/health", h.Fiber)
	api.Post("/send-prompt", h.Fiber)
	api.Post("/send-prompt-with-csv", h.Fiber)
}

// Fiber translates a fiber request into an API Gateway proxy event and writes
// back the result.
func (h *Handler) Fiber(c *fiber.Ctx) error {
	headers := make(map[string]string)
	for k, v := range c.GetReqHeaders() {
		headers[k] = strings.Join(v, ",")
	}

	req := events.APIGatewayProxyRequest{
		HTTPMethod: c.Method(),
		Path:       c.Path(),
		Headers:    headers,
		// Body() is only valid for the lifetime of the handler.
		Body: string(c.Body()),
	}

	resp, err := h.Handle(c.UserContext(), req)
	if err != nil {
		return err
	}
	for k, v := range resp.Headers {
		c.Set(k, v)
	}
	return c.Status(resp.StatusCode).SendString(resp.Body)
}
