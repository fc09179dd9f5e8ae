package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kasirkuy/internal/auth"
	"kasirkuy/internal/config"
	mydb "kasirkuy/internal/db"
	"kasirkuy/internal/models"
	"kasirkuy/internal/receipt"
	"kasirkuy/internal/store"
	"kasirkuy/internal/uploads"
)

type testServer struct {
	router   *gin.Engine
	srv      *Server
	db       *gorm.DB
	users    *store.UserStore
	products *store.ProductStore
	tokens   *auth.TokenService
	dir      string
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerCfg(t, nil)
}

// newTestServerCfg lets a test tighten the config, e.g. the request quotas.
func newTestServerCfg(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, mydb.Migrate(gdb))

	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
		// Quotas high enough that only the dedicated tests trip them.
		StrictRateLimit:   1000,
		ModerateRateLimit: 1000,
		UploadDir:         dir,
		ReceiptTTL:        time.Minute,
	}
	if mutate != nil {
		mutate(cfg)
	}

	users := store.NewUserStore(gdb)
	products := store.NewProductStore(gdb)
	um, err := uploads.NewManager(dir, products, cfg.ReceiptTTL, log)
	require.NoError(t, err)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL, auth.NewMemoryRevoker())
	receipts := receipt.NewRenderer(dir, uploads.ReceiptPrefix)

	srv := New(cfg, log, users, products, tokens, auth.NewMemoryThrottle(), um, receipts)
	return &testServer{
		router:   srv.Router(),
		srv:      srv,
		db:       gdb,
		users:    users,
		products: products,
		tokens:   tokens,
		dir:      dir,
	}
}

// seedUser creates a user directly in the store and returns it with a valid
// session token.
func (ts *testServer) seedUser(t *testing.T, username, password string, isAdmin bool) (*models.User, string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u, err := ts.users.Create(username, hash, isAdmin)
	require.NoError(t, err)
	token, err := ts.tokens.Issue(u.ID, u.IsAdmin)
	require.NoError(t, err)
	return u, token
}

func (ts *testServer) doJSON(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) doForm(t *testing.T, method, path string, fields map[string]string, fileName string, fileContent []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("image", fileName)
		require.NoError(t, err)
		_, err = fw.Write(fileContent)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), "body=%s", w.Body.String())
	return m
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, w.Code, "body=%s", w.Body.String())
}
