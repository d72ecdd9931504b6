package social

import (
	"errors"

	"backend-busboxd/internal/auth"
	"backend-busboxd/internal/storage"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/follow", authMiddleware, func(c *fiber.Ctx) error {
		var req Follow
		if err := c.BodyParser(&req); err != nil || req.User == "" {
			return fiber.NewError(fiber.StatusBadRequest, "user required")
		}
		if err := svc.Follow(c.UserContext(), auth.CurrentUser(c), req.User); err != nil {
			return errorStatus(err)
		}
		return c.SendStatus(fiber.StatusCreated)
	})

	r.Delete("/follow/:user", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Unfollow(c.UserContext(), auth.CurrentUser(c), c.Params("user")); err != nil {
			return errorStatus(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/following", authMiddleware, func(c *fiber.Ctx) error {
		user := c.Query("user", auth.CurrentUser(c))
		users, err := svc.Following(c.UserContext(), user)
		if err != nil {
			return errorStatus(err)
		}
		return c.JSON(Relations{User: user, Users: users, Count: len(users)})
	})

	r.Get("/followers", authMiddleware, func(c *fiber.Ctx) error {
		user := c.Query("user", auth.CurrentUser(c))
		users, err := svc.Followers(c.UserContext(), user)
		if err != nil {
			return errorStatus(err)
		}
		return c.JSON(Relations{User: user, Users: users, Count: len(users)})
	})
}

func errorStatus(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnknownUser):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case storage.IsRemote(err):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
