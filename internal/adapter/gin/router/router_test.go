package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"sqlite-user-service/internal/adapter/db/sqlite"
	"sqlite-user-service/internal/adapter/gin/handler"
	usecase "sqlite-user-service/internal/usecase/user"
	"sqlite-user-service/pkg/database"
	"sqlite-user-service/pkg/metrics"
)

type testServer struct {
	router  *gin.Engine
	db      *gorm.DB
	metrics *metrics.HTTP
}

type userJSON struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func setupTestServer(t testing.TB) *testServer {
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))

	path := filepath.Join(t.TempDir(), "users.db")
	db, err := database.Open(database.Options{
		DSN:          "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
		MaxOpenConns: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	_, err = sqlite.InitSchema(context.Background(), db, log)
	require.NoError(t, err)

	uc := usecase.New(sqlite.NewUserRepoSQLite(db, log), log)
	m := metrics.New(prometheus.NewRegistry())

	r := SetupRouter(handler.NewUserHandler(uc, log), Options{
		ServiceName:    "user-service-test",
		DB:             db,
		Metrics:        m,
		SwaggerEnabled: true,
	}, log)

	return &testServer{router: r, db: db, metrics: m}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) listUsers(t *testing.T) []userJSON {
	w := s.do(http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, w.Code)

	var users []userJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	return users
}

func (s *testServer) countUsers(t *testing.T) int64 {
	var count int64
	require.NoError(t, s.db.Raw("SELECT COUNT(*) FROM users").Scan(&count).Error)
	return count
}

func (s *testServer) inUse(t *testing.T) int {
	sqlDB, err := s.db.DB()
	require.NoError(t, err)
	return sqlDB.Stats().InUse
}

func TestListUsers_FreshStartReturnsSeeds(t *testing.T) {
	s := setupTestServer(t)

	assert.Equal(t, []userJSON{
		{ID: 1, Name: "Ivan Ivanov", Email: "ivan@example.com"},
		{ID: 2, Name: "Petr Petrov", Email: "petr@example.com"},
		{ID: 3, Name: "Anna Sidorova", Email: "anna@example.com"},
	}, s.listUsers(t))
	assert.Equal(t, 0, s.inUse(t))
}

func TestCreateUser_ThenGetAndList(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodPost, "/users", `{"name":"Test User","email":"test@example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var created userJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Positive(t, created.ID)
	assert.Equal(t, "Test User", created.Name)
	assert.Equal(t, "test@example.com", created.Email)

	w = s.do(http.MethodGet, fmt.Sprintf("/users/%d", created.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	var fetched userJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, created, fetched)

	assert.Contains(t, s.listUsers(t), created)
	assert.Equal(t, 0, s.inUse(t))
}

func TestCreateUser_StoresTrimmedValues(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodPost, "/users", `{"name":"  Spaced Out ","email":" spaced@example.com\t"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	users := s.listUsers(t)
	last := users[len(users)-1]
	assert.Equal(t, "Spaced Out", last.Name)
	assert.Equal(t, "spaced@example.com", last.Email)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodPost, "/users", `{"name":"Another Ivan","email":"ivan@example.com"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"User with this email already exists"}`, w.Body.String())
	assert.Equal(t, int64(3), s.countUsers(t))
	assert.Equal(t, 0, s.inUse(t))
}

func TestCreateUser_ValidationOrder(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing body", "", "No data"},
		{"malformed json", `{"name":`, "No data"},
		{"empty object", "{}", "No data"},
		{"empty name", `{"name":"","email":"x@example.com"}`, "Name is required"},
		{"missing name", `{"email":"x@example.com"}`, "Name is required"},
		{"blank name and email", `{"name":"  ","email":"  "}`, "Name is required"},
		{"missing email", `{"name":"X"}`, "Email is required"},
		{"blank email", `{"name":"X","email":" \n"}`, "Email is required"},
		{"numeric email", `{"name":"X","email":123}`, "Email is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t)

			w := s.do(http.MethodPost, "/users", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.want), w.Body.String())
			assert.Equal(t, int64(3), s.countUsers(t))
		})
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodGet, "/users/9999", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"User not found"}`, w.Body.String())
}

func TestGetUser_Idempotent(t *testing.T) {
	s := setupTestServer(t)

	first := s.do(http.MethodGet, "/users/2", "")
	second := s.do(http.MethodGet, "/users/2", "")

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.JSONEq(t, `{"id":2,"name":"Petr Petrov","email":"petr@example.com"}`, first.Body.String())
}

func TestHeadMirrorsGet(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		target string
		want   int
	}{
		{"/users", http.StatusOK},
		{"/users/1", http.StatusOK},
		{"/users/9999", http.StatusNotFound},
		{"/users/abc", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := s.do(http.MethodHead, tt.target, "")

			assert.Equal(t, tt.want, w.Code)
		})
	}

	assert.Equal(t, int64(3), s.countUsers(t))
}

func TestUnmatchedRoutes(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/users/abc"},
		{http.MethodGet, "/users/-1"},
		{http.MethodGet, "/users/"},
		{http.MethodGet, "/nowhere"},
		{http.MethodDelete, "/users/1"},
		{http.MethodPut, "/users"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := s.do(tt.method, tt.target, "")

			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.JSONEq(t, `{"error":"Resource not found"}`, w.Body.String())
		})
	}

	assert.Equal(t, int64(3), s.countUsers(t))
}

func TestInternalError_MissingTable(t *testing.T) {
	s := setupTestServer(t)
	require.NoError(t, s.db.Exec("DROP TABLE users").Error)

	w := s.do(http.MethodGet, "/users", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
	assert.Equal(t, 0, s.inUse(t))
}

func TestConcurrentCreates_UniqueEmail(t *testing.T) {
	s := setupTestServer(t)

	const workers = 8
	codes := make([]int, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = s.do(http.MethodPost, "/users", `{"name":"Racer","email":"race@example.com"}`).Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		default:
			assert.Equal(t, http.StatusConflict, code)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, int64(4), s.countUsers(t))
	assert.Equal(t, 0, s.inUse(t))
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"user-service-test"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)

	s.do(http.MethodGet, "/users", "")
	s.do(http.MethodGet, "/users/9999", "")

	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.RequestsTotal.WithLabelValues("GET", "/users", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.RequestsTotal.WithLabelValues("GET", "/users/:id", "404")))

	w := s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_request_duration_seconds")
}

func TestOpenAPIAndSwagger(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, w.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Contains(t, doc["paths"], "/users")

	w = s.do(http.MethodGet, "/swagger/index.html", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger")
}

func TestOptionalSurfacesDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	r := SetupRouter(handler.NewUserHandler(nil, log), Options{ServiceName: "bare"}, log)

	for _, target := range []string{"/metrics", "/openapi.json", "/swagger/index.html"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, target)
	}
}
