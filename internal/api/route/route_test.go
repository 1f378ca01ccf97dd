package route

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/go_dbproxy/internal/app"
	"github.com/bassista/go_dbproxy/internal/config"
	"github.com/bassista/go_dbproxy/internal/proxy"
)

func newTestApp(t *testing.T, key string) (*app.App, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.json")
	cfg := &config.Config{
		Server: config.ServerConfig{RequestTimeout: time.Second, CORSAllowedOrigins: "*"},
		Data:   config.DataConfig{FilePath: path, PersistInterval: time.Hour},
		Proxy:  proxy.Options{EncryptionKey: key},
	}
	a, err := app.Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)
	return a, path
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetupRoutes_Health(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, _ := newTestApp(t, "")
	r := gin.New()
	SetupRoutes(r, a)

	w := serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"UP"}`, w.Body.String())
}

func TestSetupRoutes_RecordLifecycleEncrypted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, path := newTestApp(t, "t3stK3y")
	r := gin.New()
	SetupRoutes(r, a)

	var saves int
	a.Repo.Proxy().On(proxy.EventSave, func(any) { saves++ })

	w := serve(r, http.MethodPost, "/record", `{"id":"doctor","fields":{"firstname":"The","lastname":"Doctor"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/record/doctor/sealed", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sealed struct{ Data string }
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sealed))
	plain, err := a.Repo.Proxy().Decrypt(sealed.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"firstname":"The","lastname":"Doctor"}`, plain)

	w = serve(r, http.MethodGet, "/proxy", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":"store","cipher":"aes-256-cbc","encrypted":true}`, w.Body.String())

	w = serve(r, http.MethodPost, "/persist", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"saved":true}`, w.Body.String())
	assert.Equal(t, 1, saves)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Doctor")

	w = serve(r, http.MethodGet, "/records", "")
	require.Equal(t, http.StatusOK, w.Code)
	var records []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 1)

	w = serve(r, http.MethodDelete, "/record/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
