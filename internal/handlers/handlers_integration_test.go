package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"kalm/internal/config"
	"kalm/internal/logging"
	"kalm/internal/models"
	"kalm/internal/server"
	"kalm/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminEmail    = "admin@kalm.com"
	adminPassword = "admin-secret"
)

func TestMain(m *testing.M) {
	logrus.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		DatabaseDriver:  "sqlite",
		DatabaseDSN:     fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
		JWTSecret:       "test_jwt_secret",
		JWTTTL:          time.Hour,
		LoginRateWindow: time.Minute,
		CORSOrigin:      "*",
	}
}

// setupApp builds the full application on an in-memory SQLite database with
// a bootstrap admin account.
func setupApp(t *testing.T, cfg *config.Config) (*fiber.App, *services.AuthService) {
	t.Helper()
	db, err := server.OpenDatabase(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	srv := server.New(server.Options{Config: cfg, DB: db, Log: logging.Discard()})
	require.NoError(t, srv.Auth.EnsureAdmin(context.Background(), adminEmail, adminPassword))
	return srv.App, srv.Auth
}

func doRaw(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func do(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	status, raw := doRaw(t, app, method, path, token, body)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return status, out
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "missing data object in %v", body)
	return d
}

func register(t *testing.T, app *fiber.App, name, email, password string) string {
	t.Helper()
	status, body := do(t, app, http.MethodPost, "/api/v1/accounts", "", fiber.Map{
		"displayName": name,
		"email":       email,
		"password":    password,
	})
	require.Equal(t, http.StatusCreated, status, body)
	return data(t, body)["id"].(string)
}

func login(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()
	status, body := do(t, app, http.MethodPost, "/api/v1/accounts/login", "", fiber.Map{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, status, body)
	return body["token"].(string)
}

func upgrade(t *testing.T, app *fiber.App, token string) string {
	t.Helper()
	status, body := do(t, app, http.MethodPost, "/api/v1/accounts/upgrade", token, nil)
	require.Equal(t, http.StatusOK, status, body)
	return body["token"].(string)
}

func TestAccountLifecycle(t *testing.T) {
	app, auth := setupApp(t, testConfig())

	status, body := do(t, app, http.MethodPost, "/api/v1/accounts", "", fiber.Map{
		"displayName": "Ana",
		"email":       "ana@x.com",
		"password":    "secret1",
		"role":        "admin",
	})
	require.Equal(t, http.StatusCreated, status)
	created := data(t, body)
	assert.Equal(t, "free", created["role"])
	assert.Equal(t, "ana@x.com", created["email"])
	assert.NotContains(t, created, "passwordHash")
	assert.NotContains(t, created, "password")

	freeToken := login(t, app, "ana@x.com", "secret1")

	status, body = do(t, app, http.MethodGet, "/api/v1/accounts/me", freeToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "free", data(t, body)["role"])

	status, body = do(t, app, http.MethodPost, "/api/v1/accounts/upgrade", freeToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "premium", data(t, body)["role"])
	premiumToken := body["token"].(string)

	claims, err := auth.DecodeToken(premiumToken)
	require.NoError(t, err)
	assert.Equal(t, models.RolePremium, claims.Role)

	// The old token is a snapshot and keeps its tier until it expires.
	old, err := auth.DecodeToken(freeToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleFree, old.Role)
}

func TestRegister_Validation(t *testing.T) {
	app, _ := setupApp(t, testConfig())

	t.Run("missing fields", func(t *testing.T) {
		status, body := do(t, app, http.MethodPost, "/api/v1/accounts", "", fiber.Map{"displayName": "Ana"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "validation failed", body["msg"])
		errs, ok := body["errors"].(map[string]interface{})
		require.True(t, ok)
		assert.Contains(t, errs, "Email")
	})

	t.Run("empty password", func(t *testing.T) {
		status, _ := do(t, app, http.MethodPost, "/api/v1/accounts", "", fiber.Map{
			"displayName": "Cy",
			"email":       "cy@x.com",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("duplicate email in another case", func(t *testing.T) {
		register(t, app, "Ana", "ana@x.com", "secret1")
		status, body := do(t, app, http.MethodPost, "/api/v1/accounts", "", fiber.Map{
			"displayName": "Ana Again",
			"email":       "ANA@X.COM",
			"password":    "secret2",
		})
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "email already registered", body["msg"])
	})

	t.Run("duplicate email wins over other field problems", func(t *testing.T) {
		for _, payload := range []fiber.Map{
			{"displayName": "Ana", "email": "ana@x.com", "password": "abc"},
			{"displayName": "Ana", "email": " ANA@X.com ", "password": "secret1"},
			{"email": "ana@x.com"},
		} {
			status, body := do(t, app, http.MethodPost, "/api/v1/accounts", "", payload)
			assert.Equal(t, http.StatusConflict, status, payload)
			assert.Equal(t, "email already registered", body["msg"])
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	app, _ := setupApp(t, testConfig())
	register(t, app, "Ana", "ana@x.com", "secret1")

	unknownStatus, unknownBody := doRaw(t, app, http.MethodPost, "/api/v1/accounts/login", "", fiber.Map{
		"email": "nobody@x.com", "password": "secret1",
	})
	wrongStatus, wrongBody := doRaw(t, app, http.MethodPost, "/api/v1/accounts/login", "", fiber.Map{
		"email": "ana@x.com", "password": "nope",
	})

	assert.Equal(t, http.StatusUnauthorized, unknownStatus)
	assert.Equal(t, unknownStatus, wrongStatus)
	assert.Equal(t, string(unknownBody), string(wrongBody))
}

func TestLogin_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.LoginRateLimit = 2
	app, _ := setupApp(t, cfg)

	creds := fiber.Map{"email": "nobody@x.com", "password": "secret1"}
	for i := 0; i < 2; i++ {
		status, _ := do(t, app, http.MethodPost, "/api/v1/accounts/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, status)
	}
	status, body := do(t, app, http.MethodPost, "/api/v1/accounts/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.NotEmpty(t, body["msg"])
}

func TestRoleGate(t *testing.T) {
	app, _ := setupApp(t, testConfig())
	register(t, app, "Ana", "ana@x.com", "secret1")
	freeToken := login(t, app, "ana@x.com", "secret1")
	adminToken := login(t, app, adminEmail, adminPassword)

	status, body := do(t, app, http.MethodGet, "/api/v1/accounts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.NotEmpty(t, body["msg"])

	status, _ = do(t, app, http.MethodGet, "/api/v1/accounts", freeToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = do(t, app, http.MethodGet, "/api/v1/accounts", adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 2)

	t.Run("bad token is rejected on gated routes only", func(t *testing.T) {
		status, body := do(t, app, http.MethodGet, "/api/v1/accounts/me", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "invalid or expired token", body["msg"])

		status, body = do(t, app, http.MethodGet, "/api/v1/products", "garbage", nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "free", body["role"])
	})

	t.Run("free accounts cannot write", func(t *testing.T) {
		status, _ := do(t, app, http.MethodPost, "/api/v1/brands", freeToken, fiber.Map{"name": "Nope"})
		assert.Equal(t, http.StatusForbidden, status)
		status, _ = do(t, app, http.MethodPost, "/api/v1/posts", freeToken, fiber.Map{"title": "t", "body": "b"})
		assert.Equal(t, http.StatusForbidden, status)
	})
}

func TestAccountUpdate_SelfOrAdmin(t *testing.T) {
	app, _ := setupApp(t, testConfig())
	anaID := register(t, app, "Ana", "ana@x.com", "secret1")
	boID := register(t, app, "Bo", "bo@x.com", "secret1")
	anaToken := login(t, app, "ana@x.com", "secret1")
	adminToken := login(t, app, adminEmail, adminPassword)

	status, _ := do(t, app, http.MethodPut, "/api/v1/accounts/"+boID, anaToken, fiber.Map{"displayName": "Hacked"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(t, app, http.MethodGet, "/api/v1/accounts/"+boID, anaToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// role and password in the payload are ignored
	status, body := do(t, app, http.MethodPut, "/api/v1/accounts/"+anaID, anaToken, fiber.Map{
		"displayName": "Ana K",
		"role":        "admin",
		"password":    "changed",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ana K", data(t, body)["displayName"])
	assert.Equal(t, "free", data(t, body)["role"])
	login(t, app, "ana@x.com", "secret1")

	status, _ = do(t, app, http.MethodPut, "/api/v1/accounts/"+anaID, anaToken, fiber.Map{"email": "BO@x.com"})
	assert.Equal(t, http.StatusConflict, status)

	status, body = do(t, app, http.MethodPut, "/api/v1/accounts/"+boID, adminToken, fiber.Map{"displayName": "Bo B"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Bo B", data(t, body)["displayName"])

	status, body = do(t, app, http.MethodPut, "/api/v1/accounts/"+boID+"/role", adminToken, fiber.Map{"role": "premium"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "premium", data(t, body)["role"])

	status, _ = do(t, app, http.MethodPut, "/api/v1/accounts/"+boID+"/role", adminToken, fiber.Map{"role": "root"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodDelete, "/api/v1/accounts/"+boID, anaToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = do(t, app, http.MethodDelete, "/api/v1/accounts/"+boID, adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, app, http.MethodGet, "/api/v1/accounts/"+boID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func createBrand(t *testing.T, app *fiber.App, token, name string) string {
	t.Helper()
	status, body := do(t, app, http.MethodPost, "/api/v1/brands", token, fiber.Map{"name": name, "origin": "Sweden"})
	require.Equal(t, http.StatusCreated, status, body)
	return data(t, body)["id"].(string)
}

func createProduct(t *testing.T, app *fiber.App, token, name, brandID string) string {
	t.Helper()
	status, body := do(t, app, http.MethodPost, "/api/v1/products", token, fiber.Map{
		"name":    name,
		"brandId": brandID,
		"type":    "serum",
		"tags":    []string{"dry"},
	})
	require.Equal(t, http.StatusCreated, status, body)
	return data(t, body)["id"].(string)
}

func TestProductListing_Truncation(t *testing.T) {
	app, _ := setupApp(t, testConfig())
	adminToken := login(t, app, adminEmail, adminPassword)
	brandID := createBrand(t, app, adminToken, "Nordic Leaf")
	for _, name := range []string{"F", "E", "D", "C", "B", "A"} {
		createProduct(t, app, adminToken, "Product "+name, brandID)
	}

	register(t, app, "Ana", "ana@x.com", "secret1")
	freeToken := login(t, app, "ana@x.com", "secret1")

	for _, tc := range []struct {
		name  string
		token string
		count int
		role  string
	}{
		{"anonymous", "", 4, "free"},
		{"free", freeToken, 4, "free"},
		{"admin", adminToken, 6, "admin"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			status, body := do(t, app, http.MethodGet, "/api/v1/products", tc.token, nil)
			require.Equal(t, http.StatusOK, status)
			assert.Equal(t, tc.role, body["role"])
			items := body["data"].([]interface{})
			require.Len(t, items, tc.count)
			first := items[0].(map[string]interface{})
			assert.Equal(t, "Product A", first["name"])
			assert.Equal(t, "Nordic Leaf", first["brand"].(map[string]interface{})["name"])
		})
	}

	premiumToken := upgrade(t, app, freeToken)
	status, body := do(t, app, http.MethodGet, "/api/v1/products", premiumToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "premium", body["role"])
	assert.Len(t, body["data"], 6)

	status, body = do(t, app, http.MethodGet, "/api/v1/products?q=product%20b", premiumToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = do(t, app, http.MethodGet, "/api/v1/products/name/product%20c", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = do(t, app, http.MethodGet, "/api/v1/products/name/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProductWrites(t *testing.T) {
	app, _ := setupApp(t, testConfig())
	adminToken := login(t, app, adminEmail, adminPassword)

	status, body := do(t, app, http.MethodPost, "/api/v1/products", adminToken, fiber.Map{"name": "Orphan", "brandId": "missing"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "brand not found", body["msg"])

	status, _ = do(t, app, http.MethodPost, "/api/v1/products", adminToken, fiber.Map{"name": "No brand"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, app, http.MethodPost, "/api/v1/products", "", fiber.Map{"name": "Anon", "brandId": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)

	brandID := createBrand(t, app, adminToken, "Sol")
	productID := createProduct(t, app, adminToken, "Citrus Serum", brandID)

	status, body = do(t, app, http.MethodPut, "/api/v1/products/"+productID, adminToken, fiber.Map{"description": "Bright"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Bright", data(t, body)["description"])
	assert.Equal(t, "Citrus Serum", data(t, body)["name"])

	status, _ = do(t, app, http.MethodDelete, "/api/v1/products/"+productID, adminToken, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, app, http.MethodGet, "/api/v1/products/"+productID, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestBrandDelete_LeavesProductsDangling(t *testing.T) {
	app, _ := setupApp(t, testConfig())
	adminToken := login(t, app, adminEmail, adminPassword)
	brandID := createBrand(t, app, adminToken, "Nordic Leaf")
	productID := createProduct(t, app, adminToken, "Forest Serum", brandID)

	status, _ := do(t, app, http.MethodDelete, "/api/v1/brands/"+brandID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := do(t, app, http.MethodGet, "/api/v1/products/"+productID, "", nil)
	require.Equal(t, http.StatusOK, status)
	product := data(t, body)
	assert.Equal(t, brandID, product["brandId"])
	assert.Nil(t, product["brand"])

	status, _ = do(t, app, http.MethodGet, "/api/v1/brands/"+brandID, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPostOwnership(t *testing.T) {
	app, _ := setupApp(t, testConfig())
	adminToken := login(t, app, adminEmail, adminPassword)

	anaID := register(t, app, "Ana", "ana@x.com", "secret1")
	register(t, app, "Bo", "bo@x.com", "secret1")
	anaToken := upgrade(t, app, login(t, app, "ana@x.com", "secret1"))
	boToken := upgrade(t, app, login(t, app, "bo@x.com", "secret1"))

	status, body := do(t, app, http.MethodPost, "/api/v1/posts", anaToken, fiber.Map{"title": "Routine", "body": "Cleanse first."})
	require.Equal(t, http.StatusCreated, status, body)
	post := data(t, body)
	postID := post["id"].(string)
	assert.Equal(t, "general", post["category"])
	require.NotNil(t, post["author"])
	assert.Equal(t, "Ana", post["author"].(map[string]interface{})["displayName"])

	status, _ = do(t, app, http.MethodPut, "/api/v1/posts/"+postID, boToken, fiber.Map{"title": "Mine"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = do(t, app, http.MethodPut, "/api/v1/posts/"+postID, anaToken, fiber.Map{"title": "Evening routine"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Evening routine", data(t, body)["title"])
	assert.NotNil(t, data(t, body)["author"])

	status, _ = do(t, app, http.MethodPut, "/api/v1/posts/"+postID, adminToken, fiber.Map{"category": "skin"})
	assert.Equal(t, http.StatusOK, status)

	status, body = do(t, app, http.MethodGet, "/api/v1/posts/"+postID, "", nil)
	require.Equal(t, http.StatusOK, status)
	got := data(t, body)
	assert.Equal(t, "skin", got["category"])
	author := got["author"].(map[string]interface{})
	assert.Equal(t, "Ana", author["displayName"])
	assert.NotContains(t, author, "passwordHash")

	// A downgraded author keeps editing rights over their own posts.
	status, _ = do(t, app, http.MethodPut, "/api/v1/accounts/"+anaID+"/role", adminToken, fiber.Map{"role": "free"})
	require.Equal(t, http.StatusOK, status)
	freeAna := login(t, app, "ana@x.com", "secret1")
	status, body = do(t, app, http.MethodPut, "/api/v1/posts/"+postID, freeAna, fiber.Map{"body": "Cleanse twice."})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Cleanse twice.", data(t, body)["body"])

	status, _ = do(t, app, http.MethodDelete, "/api/v1/posts/"+postID, anaToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = do(t, app, http.MethodDelete, "/api/v1/posts/"+postID, adminToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = do(t, app, http.MethodGet, "/api/v1/posts", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 0)
}

func TestOperationalRoutes(t *testing.T) {
	app, _ := setupApp(t, testConfig())

	status, body := do(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, body = do(t, app, http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "endpoint not found", body["msg"])

	status, raw := doRaw(t, app, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "kalm_http_requests_total")
}
