package trip

import (
	"errors"
	"log/slog"

	"backend-busboxd/internal/auth"
	"backend-busboxd/internal/shared/page"

	"github.com/gofiber/fiber/v2"
)

type historyResponse struct {
	Trips []Trip      `json:"trips"`
	Page  page.Params `json:"page"`
	Total int         `json:"total"`
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler, logger *slog.Logger) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req NewTrip
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		trip, err := svc.LogTrip(c.UserContext(), auth.CurrentUser(c), req)
		if err != nil {
			return errorStatus(err)
		}
		return c.Status(fiber.StatusCreated).JSON(trip)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		user := c.Query("user")
		if user == "" {
			user = auth.CurrentUser(c)
		}
		p := page.New(c.Query("page"), c.Query("limit"))
		trips, total := svc.History(user, p)
		if trips == nil {
			trips = []Trip{}
		}
		return c.JSON(historyResponse{Trips: trips, Page: p, Total: total})
	})

	r.Post("/sync", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Synchronize(c.UserContext()); err != nil {
			// Reads keep serving whatever was cached; writes stay refused until a sync succeeds.
			logger.Warn("trip synchronize failed", "error", err)
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"trips": svc.Store().Len(), "error": err.Error()})
		}
		return c.JSON(fiber.Map{"trips": svc.Store().Len()})
	})

	r.Get("/sync", authMiddleware, func(c *fiber.Ctx) error {
		return c.JSON(svc.Status())
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		trip, err := svc.GetTrip(c.Params("id"))
		if err != nil {
			return errorStatus(err)
		}
		return c.JSON(trip)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.DeleteTrip(c.UserContext(), auth.CurrentUser(c), c.Params("id")); err != nil {
			return errorStatus(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func errorStatus(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "trip not found")
	case errors.Is(err, ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotSynchronized):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
