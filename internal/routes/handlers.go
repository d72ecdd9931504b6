package routes

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
)

type linesResponse struct {
	Lines []string `json:"lines"`
	Count int      `json:"count"`
}

type routeResponse struct {
	Line  string          `json:"line"`
	Route json.RawMessage `json:"route"`
}

func RegisterRoutes(r fiber.Router, catalog *Catalog) {
	r.Get("/", func(c *fiber.Ctx) error {
		lines := catalog.Lines()
		return c.JSON(linesResponse{Lines: lines, Count: len(lines)})
	})

	r.Get("/:line", func(c *fiber.Ctx) error {
		line := c.Params("line")
		meta, ok := catalog.Lookup(line)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "line not found")
		}
		return c.JSON(routeResponse{Line: line, Route: meta})
	})
}
