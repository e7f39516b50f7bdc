package ops

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"server-actions/backend/internal/action"
)

type pingInput struct {
	Text string `mapstructure:"text" validate:"required,max=10"`
}

func ping(_ context.Context, _ action.Caller, in pingInput) (pingInput, error) { return in, nil }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, NewRouter(Options{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	ready := NewRouter(Options{Ready: func(context.Context) error { return nil }})
	rec := get(t, ready, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	notReady := NewRouter(Options{Ready: func(context.Context) error { return errors.New("database: connection refused") }})
	rec = get(t, notReady, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","error":"database: connection refused"}`, rec.Body.String())
}

func TestMetricsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("m 1\n")) })

	assert.Equal(t, "m 1\n", get(t, NewRouter(Options{Metrics: metrics}), "/metrics").Body.String())
	assert.Equal(t, http.StatusNotFound, get(t, NewRouter(Options{}), "/metrics").Code)
}

func TestActions(t *testing.T) {
	reg := action.NewRegistry()
	reg.MustAdd(action.New("echo", "ping", ping, action.Public(), action.Describe("Echo text back.")))

	rec := get(t, NewRouter(Options{Registry: reg}), "/actions")

	require.Equal(t, http.StatusOK, rec.Code)
	var got []CatalogueEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []CatalogueEntry{{
		Name:        "echo.ping",
		Method:      "/serveractions.echo.v1.EchoService/Ping",
		Public:      true,
		Description: "Echo text back.",
		Input: []action.FieldSpec{
			{Name: "text", Type: "string", Required: true, Constraints: "required,max=10"},
		},
	}}, got)
}
