package trip

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"backend-busboxd/internal/storage"

	"github.com/gofiber/fiber/v2"
)

type lineSet map[string]bool

func (l lineSet) Len() int             { return len(l) }
func (l lineSet) Has(line string) bool { return l[line] }

type recordingNotifier struct {
	mu      sync.Mutex
	logged  []Trip
	deleted []Trip
}

func (r *recordingNotifier) TripLogged(_ context.Context, t Trip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logged = append(r.logged, t)
}

func (r *recordingNotifier) TripDeleted(_ context.Context, t Trip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, t)
}

// asUser stands in for the JWT middleware: the caller is named by X-User.
func asUser(c *fiber.Ctx) error {
	user := c.Get("X-User")
	if user == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing user")
	}
	c.Locals("user_id", user)
	return c.Next()
}

func newTestApp(t *testing.T) (*fiber.App, *Service, *recordingNotifier) {
	t.Helper()
	notify := &recordingNotifier{}
	svc := NewService(newTestStore(t, storage.NewMemory()), lineSet{"553": true, "100": true}, notify)
	app := fiber.New()
	RegisterRoutes(app.Group("/trips"), svc, asUser, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return app, svc, notify
}

func doJSON(t *testing.T, app *fiber.App, method, path, user string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestTripHandlersLogAndHistory(t *testing.T) {
	app, _, notify := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/trips", "ana", NewTrip{Line: "553", Date: "2024-03-01", Time: "08:00"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("log status: %d", resp.StatusCode)
	}
	var created Trip
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.User != "ana" || created.ID == "" {
		t.Fatalf("unexpected trip %+v", created)
	}
	if len(notify.logged) != 1 {
		t.Fatalf("expected notifier call")
	}

	// user in the body is ignored in favour of the caller
	resp = doJSON(t, app, http.MethodPost, "/trips", "ana", NewTrip{User: "bia", Line: "100", Date: "2024-03-01", Time: "14:00"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("log status: %d", resp.StatusCode)
	}

	resp = doJSON(t, app, http.MethodGet, "/trips?limit=1", "ana", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status: %d", resp.StatusCode)
	}
	var history historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if history.Total != 2 || len(history.Trips) != 1 || history.Trips[0].Time != "14:00" {
		t.Fatalf("unexpected history %+v", history)
	}

	resp = doJSON(t, app, http.MethodGet, "/trips?user=bia", "ana", nil)
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if history.Total != 0 || history.Trips == nil {
		t.Fatalf("expected empty list for bia, got %+v", history)
	}
}

func TestTripHandlersValidation(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/trips", "ana", NewTrip{Line: "999"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for unknown line, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, http.MethodPost, "/trips", "ana", NewTrip{Line: "553", Time: "25:99"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for bad time, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, http.MethodPost, "/trips", "", NewTrip{Line: "553"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", resp.StatusCode)
	}
}

func TestTripHandlersDelete(t *testing.T) {
	app, svc, notify := newTestApp(t)

	created, err := svc.LogTrip(context.Background(), "ana", NewTrip{Line: "553", Date: "2024-03-01", Time: "08:00"})
	if err != nil {
		t.Fatalf("log: %v", err)
	}

	resp := doJSON(t, app, http.MethodDelete, "/trips/"+created.ID, "bia", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, http.MethodGet, "/trips/"+created.ID, "bia", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status: %d", resp.StatusCode)
	}

	resp = doJSON(t, app, http.MethodDelete, "/trips/"+created.ID, "ana", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status: %d", resp.StatusCode)
	}
	if len(notify.deleted) != 1 || notify.deleted[0].ID != created.ID {
		t.Fatalf("expected delete notification")
	}

	resp = doJSON(t, app, http.MethodGet, "/trips/"+created.ID, "ana", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found, got %d", resp.StatusCode)
	}
}

func TestTripHandlersSync(t *testing.T) {
	app, svc, _ := newTestApp(t)

	if _, err := svc.LogTrip(context.Background(), "ana", NewTrip{Line: "553", Date: "2024-03-01", Time: "08:00"}); err != nil {
		t.Fatalf("log: %v", err)
	}
	if err := svc.Store().Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	resp := doJSON(t, app, http.MethodPost, "/trips/sync", "ana", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status: %d", resp.StatusCode)
	}
	var body struct {
		Trips int `json:"trips"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Trips != 1 {
		t.Fatalf("expected 1 trip after sync, got %d", body.Trips)
	}

	resp = doJSON(t, app, http.MethodGet, "/trips/sync", "ana", nil)
	var status WritebackStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Pending || status.Attempted != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestTripHandlersRefuseWritesAfterFailedSync(t *testing.T) {
	mem := storage.NewMemory()
	_ = mem.Create(context.Background(), "trips.csv", []byte("usuario,linha,data,hora\nana,553,2024-03-01,\"08:00\n"), "seed")
	svc := NewService(newTestStore(t, mem), lineSet{"553": true}, &recordingNotifier{})
	app := fiber.New()
	RegisterRoutes(app.Group("/trips"), svc, asUser, slog.New(slog.NewTextHandler(io.Discard, nil)))

	resp := doJSON(t, app, http.MethodPost, "/trips/sync", "ana", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected accepted sync with error, got %d", resp.StatusCode)
	}
	resp = doJSON(t, app, http.MethodPost, "/trips", "ana", map[string]string{"line": "553"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected service unavailable, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, http.MethodGet, "/trips/sync", "ana", nil)
	var status WritebackStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Blocked || status.Scheduled != 0 {
		t.Fatalf("unexpected status %+v", status)
	}
}
