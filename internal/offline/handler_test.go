package offline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandler(t *testing.T) {
	c, origin, _ := startedController(t)
	h := c.Handler()

	t.Run("serves from cache", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/styles.css", nil))
		c.Wait()

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body, _ := io.ReadAll(rec.Body)
		if string(body) != "body{}" {
			t.Errorf("body = %q, want body{}", body)
		}
		if rec.Header().Get(SourceHeader) != "cache" {
			t.Errorf("%s = %q, want cache", SourceHeader, rec.Header().Get(SourceHeader))
		}
	})

	t.Run("offline and uncached", func(t *testing.T) {
		origin.setDown(true)
		defer origin.setDown(false)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/js/never-seen.js", nil))

		if rec.Code != http.StatusGatewayTimeout {
			t.Errorf("status = %d, want 504", rec.Code)
		}
	})

	t.Run("offline passthrough", func(t *testing.T) {
		origin.setDown(true)
		defer origin.setDown(false)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/links", nil))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", rec.Code)
		}
	})
}

func TestHandler_ForwardsToOrigin(t *testing.T) {
	origin := newFakeOrigin()
	c := newTestController(t, origin, NewMemoryStorage(), nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	origin.set("/about", "<html>about</html>")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "<html>about</html>" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if rec.Header().Get(SourceHeader) != "network" {
		t.Errorf("%s = %q, want network", SourceHeader, rec.Header().Get(SourceHeader))
	}
}
