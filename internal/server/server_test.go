package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakoleksy/ecobeectl/internal/config"
	"github.com/jakoleksy/ecobeectl/internal/portal"
	"github.com/jakoleksy/ecobeectl/internal/runner"
)

type fakeCoordinator struct {
	lastOp runner.Operation
	result *runner.Result
	err    error
}

func (f *fakeCoordinator) Run(ctx context.Context, op runner.Operation) (*runner.Result, error) {
	f.lastOp = op
	return f.result, f.err
}

func newTestRouter(t *testing.T, fc *fakeCoordinator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(fc, config.NewDefaultConfig(), zap.NewNop())
	return h.InitRoutes()
}

func do(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &fakeCoordinator{})
	w := do(router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetModeRoutes(t *testing.T) {
	cases := []struct {
		path   string
		device string
		mode   string
	}{
		{"/ecobee/main-floor/aux", "Main Floor", "aux"},
		{"/ecobee/main-floor/heat", "Main Floor", "heat"},
		{"/ecobee/upstairs/aux", "Upstairs", "aux"},
		{"/ecobee/upstairs/heat", "Upstairs", "heat"},
		{"/ecobee/device/main-floor/mode/heat", "Main Floor", "heat"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			fc := &fakeCoordinator{result: &runner.Result{Success: true}}
			router := newTestRouter(t, fc)

			w := do(router, http.MethodPost, tc.path)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, runner.KindSetMode, fc.lastOp.Kind)
			assert.Equal(t, tc.device, fc.lastOp.Device)
			assert.Equal(t, tc.mode, fc.lastOp.Mode)
		})
	}
}

func TestSetTemperatureRoute(t *testing.T) {
	t.Run("Valid Value", func(t *testing.T) {
		fc := &fakeCoordinator{result: &runner.Result{Success: true}}
		router := newTestRouter(t, fc)

		w := do(router, http.MethodPost, "/ecobee/device/upstairs/temperature/71.5")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, runner.KindSetTemperature, fc.lastOp.Kind)
		assert.Equal(t, "Upstairs", fc.lastOp.Device)
		assert.Equal(t, 71.5, fc.lastOp.Temperature)
	})

	t.Run("Unparseable Value", func(t *testing.T) {
		fc := &fakeCoordinator{result: &runner.Result{Success: true}}
		router := newTestRouter(t, fc)

		w := do(router, http.MethodPost, "/ecobee/device/upstairs/temperature/toasty")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		// The coordinator is never invoked for an unparseable value.
		assert.Equal(t, runner.Operation{}, fc.lastOp)
	})
}

func TestStatusRoute(t *testing.T) {
	heating := false
	fc := &fakeCoordinator{result: &runner.Result{
		Success: true,
		Status:  &portal.HeatingStatus{IsHeating: &heating},
	}}
	router := newTestRouter(t, fc)

	w := do(router, http.MethodGet, "/ecobee/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, runner.KindReadStatus, fc.lastOp.Kind)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "status")
}

func TestBusyMapsToConflict(t *testing.T) {
	fc := &fakeCoordinator{err: runner.ErrBusy}
	router := newTestRouter(t, fc)

	w := do(router, http.MethodPost, "/ecobee/main-floor/heat")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCallerMisuseMapsToBadRequest(t *testing.T) {
	fc := &fakeCoordinator{err: portal.ErrUnknownMode}
	router := newTestRouter(t, fc)

	w := do(router, http.MethodPost, "/ecobee/device/main-floor/mode/cool")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFailedRunMapsToServerError(t *testing.T) {
	fc := &fakeCoordinator{result: &runner.Result{
		Success: false,
		Reason:  "login failed: username field not found",
	}}
	router := newTestRouter(t, fc)

	w := do(router, http.MethodPost, "/ecobee/upstairs/aux")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "login failed")
}
