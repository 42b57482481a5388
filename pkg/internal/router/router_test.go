package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yeisme/tagdrop/pkg/configs"
	"github.com/yeisme/tagdrop/pkg/internal/handle"
	"github.com/yeisme/tagdrop/pkg/internal/model"
	"github.com/yeisme/tagdrop/pkg/internal/repository"
	"github.com/yeisme/tagdrop/pkg/internal/router"
	"github.com/yeisme/tagdrop/pkg/internal/service"
	"github.com/yeisme/tagdrop/pkg/internal/storage/db"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()

	root := t.TempDir()

	cfg := configs.Default()
	cfg.Storage = configs.StorageConfig{
		FileRoot:  filepath.Join(root, "files"),
		ThumbRoot: filepath.Join(root, "thumbs"),
		TempRoot:  filepath.Join(root, "tmp"),
	}
	cfg.Security.SecretHashCost = bcrypt.MinCost
	cfg.DB = configs.DBConfig{Type: configs.SQLite, Database: filepath.Join(root, "meta.db"), MaxOpenConns: 1}
	cfg.RateLimit.Enabled = false
	cfg.Tracing.Enabled = false

	ctx := context.Background()

	client, err := db.New(ctx, cfg.DB, db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Migrate(ctx, model.All()...))

	repo := repository.NewGorm(client.DB)
	h := handle.New(service.New(service.Deps{Repo: repo, Config: cfg}), cfg.Security, repo)

	return router.New(cfg, h, router.Options{})
}

func serve(e *gin.Engine, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	return w
}

func TestEngineRoutes(t *testing.T) {
	e := newEngine(t)

	w := serve(e, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(e, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(e, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(e, http.MethodGet, "/tags/new", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestGzipSkipsFileStreams(t *testing.T) {
	e := newEngine(t)
	gz := http.Header{"Accept-Encoding": {"gzip"}}

	w := serve(e, http.MethodPost, "/", "hello", http.Header{
		handle.HeaderTag:      {"routertag1"},
		handle.HeaderFilename: {"a.txt"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(e, http.MethodGet, "/tags/routertag1", "", gz)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	w = serve(e, http.MethodGet, "/tags/routertag1/files/a.txt", "", gz)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "hello", w.Body.String())
}
