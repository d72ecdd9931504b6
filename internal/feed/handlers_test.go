package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestFeedHandler(t *testing.T) {
	follows := staticFollows{following: map[string][]string{"ana": {"bia"}}}
	svc := NewService(sampleTrips(), follows, 0, quietLogger)

	app := fiber.New()
	RegisterRoutes(app.Group("/feed"), svc, func(c *fiber.Ctx) error {
		c.Locals("user_id", "ana")
		return c.Next()
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/feed?limit=1", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("feed status: %v", err)
	}
	var body Page
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 2 || len(body.Items) != 1 || body.Items[0].User != "bia" {
		t.Fatalf("unexpected feed %+v", body)
	}
	if body.Page.Limit != 1 || body.Page.Page != 1 {
		t.Fatalf("unexpected page %+v", body.Page)
	}
}
