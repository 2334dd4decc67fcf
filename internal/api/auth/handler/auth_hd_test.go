package authHandler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"intellilot/internal/api/auth"
	"intellilot/internal/middleware"
	"intellilot/pkg/log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

type stubAuthService struct {
	registerRes auth.RegisterResponse
	registerErr error
	loginRes    auth.LoginResponse
	loginErr    error
}

func (s *stubAuthService) Register(_ context.Context, _ auth.RegisterRequest) (auth.RegisterResponse, error) {
	return s.registerRes, s.registerErr
}

func (s *stubAuthService) Login(_ context.Context, _ auth.LoginRequest) (auth.LoginResponse, error) {
	return s.loginRes, s.loginErr
}

func newTestApp(t *testing.T, svc *stubAuthService) *fiber.App {
	t.Helper()

	logger := log.NewLogger()
	app := fiber.New()
	h := New(logger, svc, validator.New(), middleware.New(logger))
	h.Start(app.Group("/api/v1"))

	return app
}

func postJSON(target string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHandleRegisterCreated(t *testing.T) {
	svc := &stubAuthService{
		registerRes: auth.RegisterResponse{ID: "01ABC", Username: "alice"},
	}
	app := newTestApp(t, svc)

	req := postJSON("/api/v1/auth/register", fiber.Map{
		"username":          "alice",
		"password":          "secret-pass",
		"organization_name": "acme",
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var out auth.RegisterResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "alice", out.Username)
}

func TestHandleRegisterValidation(t *testing.T) {
	app := newTestApp(t, &stubAuthService{})

	req := postJSON("/api/v1/auth/register", fiber.Map{
		"username": "al",
		"password": "short",
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleRegisterUsernameTaken(t *testing.T) {
	app := newTestApp(t, &stubAuthService{registerErr: auth.ErrUsernameAlreadyExists})

	req := postJSON("/api/v1/auth/register", fiber.Map{
		"username":          "alice",
		"password":          "secret-pass",
		"organization_name": "acme",
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandleLoginReturnsToken(t *testing.T) {
	svc := &stubAuthService{
		loginRes: auth.LoginResponse{AccessToken: "tok", TokenType: "Bearer", ExpiresIn: 3600},
	}
	app := newTestApp(t, svc)

	req := postJSON("/api/v1/auth/login", fiber.Map{
		"username": "alice",
		"password": "secret-pass",
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out auth.LoginResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "tok", out.AccessToken)
	assert.Equal(t, "Bearer", out.TokenType)
	assert.Equal(t, int64(3600), out.ExpiresIn)
}

func TestHandleLoginBadCredentials(t *testing.T) {
	app := newTestApp(t, &stubAuthService{loginErr: auth.ErrInvalidUsernameOrPasswd})

	req := postJSON("/api/v1/auth/login", fiber.Map{
		"username": "alice",
		"password": "wrong-pass",
	})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
