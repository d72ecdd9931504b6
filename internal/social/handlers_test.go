package social

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend-busboxd/internal/storage"

	"github.com/gofiber/fiber/v2"
)

func TestSocialHandlers(t *testing.T) {
	svc := NewService(storage.NewMemory(), "follows.json", directory{"ana": true, "bia": true})

	app := fiber.New()
	RegisterRoutes(app.Group("/social"), svc, func(c *fiber.Ctx) error {
		c.Locals("user_id", c.Get("X-User"))
		return c.Next()
	})

	follow := func(user, target string) int {
		body, _ := json.Marshal(Follow{User: target})
		req := httptest.NewRequest(http.MethodPost, "/social/follow", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User", user)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("follow: %v", err)
		}
		return resp.StatusCode
	}

	if code := follow("ana", "bia"); code != http.StatusCreated {
		t.Fatalf("expected created, got %d", code)
	}
	if code := follow("ana", "ana"); code != http.StatusBadRequest {
		t.Fatalf("expected bad request for self follow, got %d", code)
	}
	if code := follow("ana", "zeca"); code != http.StatusNotFound {
		t.Fatalf("expected not found for unknown user, got %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/social/followers?user=bia", nil)
	req.Header.Set("X-User", "ana")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("followers status: %v", err)
	}
	var rel Relations
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rel.User != "bia" || rel.Count != 1 || rel.Users[0] != "ana" {
		t.Fatalf("unexpected followers %+v", rel)
	}

	req = httptest.NewRequest(http.MethodDelete, "/social/follow/bia", nil)
	req.Header.Set("X-User", "ana")
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unfollow status: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/social/following", nil)
	req.Header.Set("X-User", "ana")
	resp, _ = app.Test(req)
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rel.User != "ana" || rel.Count != 0 {
		t.Fatalf("unexpected following %+v", rel)
	}
}
