package feed

import (
	"backend-busboxd/internal/auth"
	"backend-busboxd/internal/shared/page"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		p := page.New(c.Query("page"), c.Query("limit"))
		return c.JSON(svc.Feed(c.UserContext(), auth.CurrentUser(c), p))
	})
}
