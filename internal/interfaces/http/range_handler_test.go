package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ecf-numeracion/internal/application/dto"
	"github.com/jhoicas/ecf-numeracion/internal/application/numbering"
	"github.com/jhoicas/ecf-numeracion/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/ecf-numeracion/internal/interfaces/http"
	"github.com/jhoicas/ecf-numeracion/pkg/logger"
)

var handlerNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func buildRangeApp(t *testing.T) *fiber.App {
	return buildRangeAppWithLogger(t, logger.Nop())
}

func buildRangeAppWithLogger(t *testing.T, log *logger.Logger) *fiber.App {
	t.Helper()
	uc := numbering.NewRangeUseCase(memory.NewRangeStore(), logger.Nop(), numbering.Options{
		Now: func() time.Time { return handlerNow },
	})
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		RangeUC:   uc,
		Logger:    log,
		JWTSecret: testJWTSecret,
		JWTIssuer: testIssuer,
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, path, role string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, out
}

func rangeBody(start, end int64) fiber.Map {
	return fiber.Map{
		"taxpayer_id":    "130123456",
		"legal_name":     "Supermercado Bravo",
		"document_type":  "31",
		"range_start":    start,
		"range_end":      end,
		"authorized_at":  handlerNow.AddDate(0, -1, 0).Format(time.RFC3339),
		"expires_at":     handlerNow.AddDate(1, 0, 0).Format(time.RFC3339),
		"low_water_mark": 2,
	}
}

func createRange(t *testing.T, app *fiber.App, start, end int64) dto.RangeResponse {
	t.Helper()
	resp, body := call(t, app, http.MethodPost, "/api/ranges", "admin", rangeBody(start, end))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out dto.RangeResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestRangeHandler_CrearYConsumir(t *testing.T) {
	app := buildRangeApp(t)
	r := createRange(t, app, 1, 10)
	assert.Equal(t, "E310000000001", r.NextNumber)

	resp, body := call(t, app, http.MethodPost, "/api/ranges/"+r.ID+"/consume", "emisor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var c dto.ConsumptionResponse
	require.NoError(t, json.Unmarshal(body, &c))
	assert.Equal(t, int64(1), c.IssuedNumber)
	assert.Equal(t, "E310000000001", c.Formatted)
	assert.Equal(t, int64(9), c.AvailableCount)

	resp, body = call(t, app, http.MethodPost, "/api/ranges/consume", "emisor",
		fiber.Map{"taxpayer_id": "130123456", "document_type": "31"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &c))
	assert.Equal(t, "E310000000002", c.Formatted)
}

func TestRangeHandler_Solapamiento409(t *testing.T) {
	app := buildRangeApp(t)
	first := createRange(t, app, 10, 20)

	resp, body := call(t, app, http.MethodPost, "/api/ranges", "admin", rangeBody(15, 25))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "OVERLAP", e.Code)
	details, ok := e.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, first.ID, details["conflict_id"])
}

func TestRangeHandler_Validacion400(t *testing.T) {
	app := buildRangeApp(t)
	b := rangeBody(20, 10)
	b["taxpayer_id"] = "1"

	resp, body := call(t, app, http.MethodPost, "/api/ranges", "admin", b)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "taxpayer_id")
	assert.Contains(t, string(body), "range_end")

	resp, _ = call(t, app, http.MethodPost, "/api/ranges", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRangeHandler_Permisos(t *testing.T) {
	app := buildRangeApp(t)
	r := createRange(t, app, 1, 10)

	resp, _ := call(t, app, http.MethodPost, "/api/ranges", "emisor", rangeBody(50, 60))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, app, http.MethodPost, "/api/ranges/"+r.ID+"/consume", "auditor", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, "/api/ranges/"+r.ID, "auditor", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, "/api/ranges", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRangeHandler_NoEncontrado(t *testing.T) {
	app := buildRangeApp(t)
	resp, body := call(t, app, http.MethodGet, "/api/ranges/no-existe", "admin", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "NOT_FOUND")
}

func TestRangeHandler_ActualizarYEliminar(t *testing.T) {
	app := buildRangeApp(t)
	unused := createRange(t, app, 1, 10)
	used := createRange(t, app, 11, 20)
	resp, _ := call(t, app, http.MethodPost, "/api/ranges/"+used.ID+"/consume", "emisor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := call(t, app, http.MethodPatch, "/api/ranges/"+used.ID, "admin", fiber.Map{"range_end": 30})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "FIELD_LOCKED")

	resp, body = call(t, app, http.MethodPatch, "/api/ranges/"+used.ID, "admin", fiber.Map{"comment": "sucursal centro"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "sucursal centro")

	resp, body = call(t, app, http.MethodDelete, "/api/ranges/"+used.ID, "admin", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "IN_USE")

	resp, _ = call(t, app, http.MethodDelete, "/api/ranges/"+unused.ID, "admin", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRangeHandler_AgotadoYSinRango(t *testing.T) {
	app := buildRangeApp(t)
	r := createRange(t, app, 1, 3) // umbral 2: un solo número utilizable

	resp, _ := call(t, app, http.MethodPost, "/api/ranges/"+r.ID+"/consume", "emisor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := call(t, app, http.MethodPost, "/api/ranges/"+r.ID+"/consume", "emisor", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "EXHAUSTED")

	resp, body = call(t, app, http.MethodPost, "/api/ranges/consume", "emisor",
		fiber.Map{"taxpayer_id": "130123456", "document_type": "31"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "NO_ELIGIBLE_RANGE")
}

func TestRangeHandler_ListarYResumen(t *testing.T) {
	app := buildRangeApp(t)
	createRange(t, app, 1, 10)
	createRange(t, app, 11, 20)

	resp, body := call(t, app, http.MethodGet, "/api/ranges?document_type=31&limit=1", "auditor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var list dto.RangeListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Items, 1)
	assert.Equal(t, 2, list.Page.Total)

	resp, _ = call(t, app, http.MethodGet, "/api/ranges?status=paused", "auditor", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = call(t, app, http.MethodGet, "/api/ranges/stats", "auditor", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var st dto.RangeStatsResponse
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, 2, st.TotalRanges)
	assert.Equal(t, 2, st.CountsByStatus["active"])
}
