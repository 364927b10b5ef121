package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/dikit/config"
	"github.com/kbukum/dikit/di"
	"github.com/kbukum/dikit/errors"
	"github.com/kbukum/dikit/logger"
	"github.com/kbukum/dikit/observability"
)

type store struct{}
type session struct{}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRegistry() *di.Registry {
	reg := di.New(di.WithName("inspect-test"), di.WithLogger(logger.Nop()))
	di.RegisterSingleton(reg, func(di.Resolver) (*store, error) { return &store{}, nil })
	di.RegisterFactory(reg, func(di.Resolver) (*session, error) { return &session{}, nil })
	di.RegisterValue(reg, "postgres://", di.Named("dsn"))
	return reg
}

func newTestServer(reg *di.Registry, allowWarm bool) *Server {
	return New(config.InspectConfig{Addr: "127.0.0.1:0", AllowWarm: allowWarm}, "dikit-test", reg, logger.Nop())
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) RegistryView {
	t.Helper()
	var body struct {
		Data RegistryView `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return body.Data
}

func TestRegistrations(t *testing.T) {
	reg := newTestRegistry()
	di.MustResolve[string](reg, di.Named("dsn"))
	h := newTestServer(reg, false).Handler()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"*inspect.session", "*inspect.store", "string[dsn]"}},
		{"singletons", "?lifetime=singleton", []string{"*inspect.store", "string[dsn]"}},
		{"transients", "?lifetime=factory", []string{"*inspect.session"}},
		{"cached", "?cached=true", []string{"string[dsn]"}},
		{"singleton not cached", "?lifetime=singleton&cached=false", []string{"*inspect.store"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, "/registry"+tt.query)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			view := decodeView(t, w)
			if view.Name != "inspect-test" || view.ID != reg.ID() {
				t.Errorf("unexpected registry identity %q %q", view.Name, view.ID)
			}
			got := make([]string, 0, len(view.Registrations))
			for _, info := range view.Registrations {
				got = append(got, info.Service)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) || view.Count != len(tt.want) {
				t.Errorf("got %v (count %d), want %v", got, view.Count, tt.want)
			}
		})
	}
}

func TestRegistrationsInvalidQuery(t *testing.T) {
	h := newTestServer(newTestRegistry(), false).Handler()

	for _, query := range []string{"?lifetime=scoped", "?cached=maybe"} {
		w := do(t, h, http.MethodGet, "/registry"+query)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", query, w.Code)
		}
		var resp errors.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Error.Code != errors.ErrCodeInvalidInput {
			t.Errorf("%s: expected INVALID_INPUT, got %s", query, resp.Error.Code)
		}
	}
}

func TestWarm(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newTestServer(newTestRegistry(), false).Handler()
		if w := do(t, h, http.MethodPost, "/registry/warm"); w.Code != http.StatusNotFound {
			t.Errorf("expected 404 when warm is not allowed, got %d", w.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		reg := newTestRegistry()
		h := newTestServer(reg, true).Handler()

		w := do(t, h, http.MethodPost, "/registry/warm")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `"cached":2`) {
			t.Errorf("expected two cached singletons, got %s", w.Body.String())
		}
	})

	t.Run("failure", func(t *testing.T) {
		reg := newTestRegistry()
		di.RegisterSingleton(reg, func(di.Resolver) (*store, error) { return nil, fmt.Errorf("dial refused") })
		h := newTestServer(reg, true).Handler()

		w := do(t, h, http.MethodPost, "/registry/warm")
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
		var resp errors.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Error.Code != errors.ErrCodeConstructionFailed {
			t.Errorf("expected CONSTRUCTION_FAILED, got %s", resp.Error.Code)
		}
		if !strings.Contains(fmt.Sprint(resp.Error.Details["error"]), "dial refused") {
			t.Errorf("expected cause in details, got %v", resp.Error.Details)
		}
	})
}

func TestHealth(t *testing.T) {
	h := newTestServer(newTestRegistry(), false).Handler()

	w := do(t, h, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "up" || body["service"] != "dikit-test" {
		t.Errorf("unexpected health body %v", body)
	}
	components, _ := body["components"].([]any)
	if len(components) != 1 {
		t.Fatalf("expected one component, got %v", body["components"])
	}
}

type downChecker struct{}

func (downChecker) CheckHealth(context.Context) observability.Health {
	return observability.Health{Name: "cache", Status: observability.HealthStatusDown, Message: "timeout"}
}

func TestHealthDown(t *testing.T) {
	reg := newTestRegistry()
	h := New(config.InspectConfig{Addr: "127.0.0.1:0"}, "dikit-test", reg, logger.Nop(), downChecker{}).Handler()

	w := do(t, h, http.MethodGet, "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body observability.ServiceHealth
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != observability.HealthStatusDown || len(body.Components) != 2 {
		t.Errorf("unexpected health body %+v", body)
	}
}

func TestVersion(t *testing.T) {
	h := newTestServer(newTestRegistry(), false).Handler()

	w := do(t, h, http.MethodGet, "/registry/version")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["service"] != "dikit-test" || body["version"] == nil {
		t.Errorf("unexpected version body %v", body)
	}
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody errors.ErrorCode
	}{
		{"not registered", &di.NotRegisteredError{Key: di.KeyOf[*store]()}, http.StatusNotFound, errors.ErrCodeNotRegistered},
		{"circular", &di.CircularChainError{Chain: []di.Key{di.KeyOf[*store](), di.KeyOf[*store]()}}, http.StatusConflict, errors.ErrCodeCircularChain},
		{"app error", errors.InvalidInput("q", "bad"), http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"plain", fmt.Errorf("boom"), http.StatusInternalServerError, errors.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			RespondWithError(c, tt.err)

			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, w.Code)
			}
			var resp errors.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error.Code != tt.wantBody {
				t.Errorf("expected %s, got %s", tt.wantBody, resp.Error.Code)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	engine := gin.New()
	engine.Use(Recovery(logger.Nop()), RequestID(), RequestLogger(logger.Nop()))
	engine.GET("/panic", func(*gin.Context) { panic("handler bug") })
	engine.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := do(t, engine, http.MethodGet, "/panic")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 after panic, got %d", w.Code)
	}

	w = do(t, engine, http.MethodGet, "/ok")
	id := w.Header().Get(requestIDHeader)
	if id == "" || w.Body.String() != id {
		t.Errorf("expected generated request id in header and context, got %q / %q", id, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Header().Get(requestIDHeader) != "req-42" {
		t.Error("expected incoming request id to be propagated")
	}
}

func TestServerStartStop(t *testing.T) {
	srv := newTestServer(newTestRegistry(), false)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "registry:inspect-test") {
		t.Errorf("unexpected response %d %s", resp.StatusCode, body)
	}
}
