package integration__test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/accounts"
	"github.com/geocoder89/taskhub/internal/app"
	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		StoreDriver:    config.DriverMemory,
		SessionBackend: config.DriverMemory,
		AvatarBackend:  config.DriverMemory,
		JWTSecret:      "test-secret-key",
		TokenTTL:       time.Hour,
		BcryptCost:     bcrypt.MinCost,
		MaxBodyBytes:   1 << 20,
		AuthRateLimit:  1000,
		AuthRateWindow: time.Minute,
		FollowUpDelay:  time.Minute,
	}
}

type testApp struct {
	router   *gin.Engine
	backends *app.Backends
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := testConfig()
	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)

	b, err := app.Open(context.Background(), cfg, logger, app.OpenOptions{Digest: tokens})
	if err != nil {
		t.Fatalf("open backends: %v", err)
	}
	t.Cleanup(b.Close)

	router := app.NewAPI(cfg, logger, b, app.APIOptions{Tokens: tokens})

	return &testApp{router: router, backends: b}
}

// function that runs a request and returns the recorder
func doRequest(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

func mustStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}

func register(t *testing.T, router http.Handler, name, email, password string) accounts.Session {
	t.Helper()

	w := doRequest(router, http.MethodPost, "/auth/register",
		`{"name":"`+name+`","email":"`+email+`","password":"`+password+`"}`, "")
	mustStatus(t, w, http.StatusCreated)

	var sess accounts.Session
	mustReadJSON(t, w, &sess)
	if sess.Token == "" || sess.User.ID == "" {
		t.Fatalf("register returned no token or id: %s", w.Body.String())
	}
	return sess
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// mustUnmarshal is for goroutines, where t.Fatalf must not be called.
func mustUnmarshal(w *httptest.ResponseRecorder, out any) bool {
	return json.Unmarshal(w.Body.Bytes(), out) == nil
}

func newAuthedRequest(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
