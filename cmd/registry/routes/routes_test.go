package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/registry/cmd/registry/container"
	"github.com/lyzr/registry/cmd/registry/repository"
	"github.com/lyzr/registry/common/bootstrap"
	"github.com/lyzr/registry/common/config"
	"github.com/lyzr/registry/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerID    = "owner-principal"
	uploaderID = "uploader-principal"
)

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{
		Service: config.ServiceConfig{Name: "registry", Port: 8080},
		Storage: config.StorageConfig{
			Backend:    config.BackendSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "registry.db"),
		},
		Registry: config.RegistryConfig{
			Owner:            ownerID,
			IDStrategy:       config.StrategyCounter,
			AllowOwnerDelete: true,
			IdentityHeader:   "X-Caller-ID",
		},
		Cache: config.CacheConfig{Enabled: true, Backend: config.CacheMemory, DefaultTTL: time.Minute},
	}

	components, err := bootstrap.Setup(ctx, "registry",
		bootstrap.WithCustomConfig(cfg),
		bootstrap.WithCustomLogger(logger.Discard()),
		bootstrap.WithTables(repository.Tables()...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = components.Shutdown(ctx) })

	c, err := container.NewContainer(ctx, components)
	require.NoError(t, err)

	e := echo.New()
	RegisterHealthRoutes(e, c)
	RegisterAssetRoutes(e, c)
	RegisterSettingsRoutes(e, c)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, caller, body string) (int, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if caller != "" {
		req.Header.Set("X-Caller-ID", caller)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestRoutes_AssetLifecycle(t *testing.T) {
	e := newTestServer(t)

	code, body := do(t, e, http.MethodGet, "/api/v1/owner", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, ownerID, body["owner"])

	// "eA==" is base64 for "x"
	upload := `{"owner":"uploader-principal","content":"eA==","file_name":"f"}`
	code, body = do(t, e, http.MethodPost, "/api/v1/assets?prefix=img-", uploaderID, upload)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "img-1", body["id"])

	code, body = do(t, e, http.MethodGet, "/api/v1/assets/img-1", "", "")
	require.Equal(t, http.StatusOK, code)
	asset := body["asset"].(map[string]interface{})
	assert.Equal(t, uploaderID, asset["owner"])
	assert.Equal(t, "eA==", asset["content"])
	assert.Equal(t, "f", asset["file_name"])

	code, body = do(t, e, http.MethodGet, "/api/v1/assets/count", ownerID, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])

	code, body = do(t, e, http.MethodGet, `/api/v1/assets?filter=file_name%20%3D%3D%20%22f%22`, ownerID, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])

	code, body = do(t, e, http.MethodDelete, "/api/v1/assets/img-1", uploaderID, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Asset deleted:f", body["message"])

	code, body = do(t, e, http.MethodGet, "/api/v1/assets/img-1", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Nil(t, body["asset"])
}

func TestRoutes_Errors(t *testing.T) {
	e := newTestServer(t)

	upload := `{"owner":"uploader-principal","content":"eA==","file_name":"f"}`

	code, body := do(t, e, http.MethodPost, "/api/v1/assets", "", upload)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "caller identity is required", body["error"])

	code, body = do(t, e, http.MethodPost, "/api/v1/assets", "someone-else", upload)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Owner and Caller does not match", body["error"])

	code, _ = do(t, e, http.MethodPost, "/api/v1/assets", uploaderID, `{"owner":`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, e, http.MethodGet, "/api/v1/assets", uploaderID, "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "User not authorized", body["error"])

	code, body = do(t, e, http.MethodDelete, "/api/v1/assets/nope", uploaderID, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Collection doesn't exist", body["error"])

	code, _ = do(t, e, http.MethodGet, "/api/v1/assets?filter=owner%20%3D%3D", ownerID, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRoutes_LastID(t *testing.T) {
	e := newTestServer(t)

	code, body := do(t, e, http.MethodGet, "/api/v1/settings/last-id", ownerID, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "0", body["last_id"])

	code, _ = do(t, e, http.MethodPut, "/api/v1/settings/last-id", uploaderID, `{"last_id":"9"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, e, http.MethodPut, "/api/v1/settings/last-id", ownerID, `{"last_id":"nine"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, e, http.MethodPut, "/api/v1/settings/last-id", ownerID, `{"last_id":"9"}`)
	assert.Equal(t, http.StatusOK, code)

	upload := `{"owner":"uploader-principal","content":"eA==","file_name":"f"}`
	code, body = do(t, e, http.MethodPost, "/api/v1/assets", uploaderID, upload)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "10", body["id"])
}

func TestRoutes_Health(t *testing.T) {
	e := newTestServer(t)

	code, body := do(t, e, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}
