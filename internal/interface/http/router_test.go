package http

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yanqian/user-accounts/internal/domain/account"
	"github.com/yanqian/user-accounts/internal/domain/avatar"
	"github.com/yanqian/user-accounts/internal/infra/accountrepo"
	"github.com/yanqian/user-accounts/internal/infra/config"
	"github.com/yanqian/user-accounts/internal/infra/ratelimit"
)

func TestRouter_RegisterLoginMeLogout(t *testing.T) {
	server := newRouterUnderTest(t, false, nil)

	rec := performRequest(server, http.MethodPost, "/users", `{"name":"Alice","email":"alice@example.com","password":"secret1","age":30}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeObject(t, rec.Body.Bytes())
	require.Equal(t, "alice@example.com", created["email"])
	require.NotContains(t, created, "password")
	require.NotContains(t, created, "passwordHash")
	require.NotContains(t, created, "tokens")
	require.NotContains(t, created, "avatar")

	rec = performRequest(server, http.MethodPost, "/users/login", `{"email":"alice@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var login account.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)
	require.Equal(t, "Alice", login.User.Name)

	rec = performRequest(server, http.MethodGet, "/users/me", "", login.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var me account.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, login.User.ID, me.ID)

	rec = performRequest(server, http.MethodPost, "/users/logout", "", login.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.Bytes())

	rec = performRequest(server, http.MethodGet, "/users/me", "", login.Token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "please authenticate", errBody["error"]["message"])
}

func TestRouter_AuthGateRejectsMissingAndForgedTokens(t *testing.T) {
	server := newRouterUnderTest(t, false, nil)

	for _, token := range []string{"", "not-a-jwt"} {
		rec := performRequest(server, http.MethodGet, "/users/me", "", token)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		errBody := decodeErrorBody(t, rec.Body.Bytes())
		require.Equal(t, "unauthorized", errBody["error"]["code"])
		require.Equal(t, "please authenticate", errBody["error"]["message"])
	}
}

func TestRouter_LoginFailuresLookTheSame(t *testing.T) {
	server := newRouterUnderTest(t, false, nil)
	registerAndLogin(t, server, "bob@example.com")

	wrongPassword := performRequest(server, http.MethodPost, "/users/login", `{"email":"bob@example.com","password":"nope123"}`, "")
	unknownEmail := performRequest(server, http.MethodPost, "/users/login", `{"email":"nobody@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusBadRequest, wrongPassword.Code)
	require.Equal(t, wrongPassword.Code, unknownEmail.Code)
	require.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestRouter_RegisterValidation(t *testing.T) {
	server := newRouterUnderTest(t, false, nil)

	rec := performRequest(server, http.MethodPost, "/users", `{"name":"A","email":"not-an-email","password":"mypassword1"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeObject(t, rec.Body.Bytes())
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "invalid_input", errObj["code"])
	details, ok := errObj["details"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, details, "email")
	require.Contains(t, details, "password")

	rec = performRequest(server, http.MethodPost, "/users", `{"name":"A","email":"dup@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = performRequest(server, http.MethodPost, "/users", `{"name":"B","email":"DUP@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "email_exists", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_UpdateMe(t *testing.T) {
	server := newRouterUnderTest(t, false, nil)
	token := registerAndLogin(t, server, "carol@example.com")

	rec := performRequest(server, http.MethodPatch, "/users/me", `{"name":"Caroline","age":41}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var view account.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "Caroline", view.Name)
	require.NotNil(t, view.Age)
	require.Equal(t, 41, *view.Age)

	rec = performRequest(server, http.MethodPatch, "/users/me", `{"name":"Mallory","tokens":[],"id":7}`, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeObject(t, rec.Body.Bytes())
	errObj := body["error"].(map[string]any)
	require.Equal(t, "invalid_input", errObj["code"])
	details := errObj["details"].(map[string]any)
	require.ElementsMatch(t, []any{"id", "tokens"}, details["invalidFields"])

	rec = performRequest(server, http.MethodGet, "/users/me", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "Caroline", view.Name)
}

func TestRouter_UpdateMeRejectsOversizedBody(t *testing.T) {
	server := newRouterUnderTest(t, false, nil)
	token := registerAndLogin(t, server, "oscar@example.com")

	body := `{"name":"` + strings.Repeat("a", maxPatchBytes) + `"}`
	rec := performRequest(server, http.MethodPatch, "/users/me", body, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_request", errBody["error"]["code"])
	require.Equal(t, "request body is too large", errBody["error"]["message"])

	rec = performRequest(server, http.MethodGet, "/users/me", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var view account.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, "Test", view.Name)
}

func TestRouter_AvatarLifecycle(t *testing.T) {
	server := newRouterUnderTest(t, false, nil)
	token := registerAndLogin(t, server, "dave@example.com")
	id := currentID(t, server, token)
	avatarPath := "/users/" + strconv.FormatInt(id, 10) + "/avatar"

	rec := performRequest(server, http.MethodGet, avatarPath, "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Empty(t, rec.Body.Bytes())

	rec = performUpload(t, server, token, "me.PNG", pngBytes(t, 400, 200))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = performRequest(server, http.MethodGet, avatarPath, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 250, img.Bounds().Dx())
	require.Equal(t, 250, img.Bounds().Dy())

	rec = performRequest(server, http.MethodDelete, "/users/me/avatar", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = performRequest(server, http.MethodGet, avatarPath, "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_AvatarUploadRejected(t *testing.T) {
	server := newRouterUnderTest(t, false, nil)
	token := registerAndLogin(t, server, "erin@example.com")

	rec := performUpload(t, server, token, "me.gif", pngBytes(t, 10, 10))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_upload", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])

	// A decodable PNG with trailing padding: only the size check can refuse it.
	padded := pngBytes(t, 10, 10)
	padded = append(padded, make([]byte, 3_000_001-len(padded))...)
	rec = performUpload(t, server, token, "big.png", padded)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeErrorBody(t, rec.Body.Bytes())
	require.Equal(t, "invalid_upload", errBody["error"]["code"])
	require.Equal(t, "file must be at most 3000000 bytes", errBody["error"]["message"])

	var bomb bytes.Buffer
	require.NoError(t, png.Encode(&bomb, image.NewGray(image.Rect(0, 0, 5000, 5000))))
	rec = performUpload(t, server, token, "bomb.png", bomb.Bytes())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_upload", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])

	rec = performUpload(t, server, token, "fake.jpg", []byte("definitely not an image"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_upload", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_GetByID(t *testing.T) {
	server := newRouterUnderTest(t, false, nil)
	token := registerAndLogin(t, server, "frank@example.com")
	id := currentID(t, server, token)

	rec := performRequest(server, http.MethodGet, "/users/"+strconv.FormatInt(id, 10), "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	for _, path := range []string{"/users/999", "/users/abc"} {
		rec = performRequest(server, http.MethodGet, path, "", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Empty(t, rec.Body.Bytes())
	}
}

func TestRouter_DeleteMe(t *testing.T) {
	server := newRouterUnderTest(t, false, nil)
	token := registerAndLogin(t, server, "grace@example.com")
	id := currentID(t, server, token)

	rec := performRequest(server, http.MethodDelete, "/users/me", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot account.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.Equal(t, id, snapshot.ID)
	require.Equal(t, "grace@example.com", snapshot.Email)

	rec = performRequest(server, http.MethodGet, "/users/"+strconv.FormatInt(id, 10), "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = performRequest(server, http.MethodGet, "/users/me", "", token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_UnsafeRoutesGated(t *testing.T) {
	hidden := newRouterUnderTest(t, false, nil)
	registerAndLogin(t, hidden, "henry@example.com")
	require.Equal(t, http.StatusNotFound, performRequest(hidden, http.MethodGet, "/users", "", "").Code)
	require.Equal(t, http.StatusNotFound, performRequest(hidden, http.MethodDelete, "/users/1", "", "").Code)
	require.Equal(t, http.StatusOK, performRequest(hidden, http.MethodGet, "/users/1", "", "").Code)

	exposed := newRouterUnderTest(t, true, nil)
	registerAndLogin(t, exposed, "ivy@example.com")
	rec := performRequest(exposed, http.MethodGet, "/users", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var views []account.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)

	rec = performRequest(exposed, http.MethodDelete, "/users/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = performRequest(exposed, http.MethodDelete, "/users/1", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Empty(t, rec.Body.Bytes())
}

func TestRouter_RateLimit(t *testing.T) {
	server := newRouterUnderTest(t, false, ratelimit.NewMemoryLimiter(60, 2))

	require.Equal(t, http.StatusNotFound, performRequest(server, http.MethodGet, "/users/42", "", "").Code)
	require.Equal(t, http.StatusNotFound, performRequest(server, http.MethodGet, "/users/42", "", "").Code)

	rec := performRequest(server, http.MethodGet, "/users/42", "", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "rate_limit_exceeded", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func newRouterUnderTest(t *testing.T, exposeUnsafe bool, limiter RateLimiter) *http.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := accountrepo.NewMemoryRepository()
	issuer, err := account.NewJWTIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	svc := account.NewService(repo, repo, account.NewBcryptHasher(bcrypt.MinCost), issuer, avatar.NewTranscoder(250, 250, 0), logger)

	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:            ":0",
			ExposeUnsafeRoutes: exposeUnsafe,
			RateLimit:          config.RateLimitConfig{Enabled: limiter != nil},
		},
	}
	return NewRouter(cfg, NewHandler(svc, avatar.NewPolicy(3_000_000), logger), limiter)
}

func performRequest(server *http.Server, method, path, body, token string) *httptest.ResponseRecorder {
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
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func performUpload(t *testing.T, server *http.Server, token, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("avatar", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/users/me/avatar", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, server *http.Server, email string) string {
	t.Helper()
	rec := performRequest(server, http.MethodPost, "/users", `{"name":"Test","email":"`+email+`","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = performRequest(server, http.MethodPost, "/users/login", `{"email":"`+email+`","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var login account.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	return login.Token
}

func currentID(t *testing.T, server *http.Server, token string) int64 {
	t.Helper()
	rec := performRequest(server, http.MethodGet, "/users/me", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var view account.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view.ID
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeObject(t *testing.T, payload []byte) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(payload, &body))
	return body
}

func decodeErrorBody(t *testing.T, payload []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(payload, &body))
	return body
}

func TestCORSMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := accountrepo.NewMemoryRepository()
	issuer, err := account.NewJWTIssuer("test-secret", 0)
	require.NoError(t, err)
	svc := account.NewService(repo, repo, account.NewBcryptHasher(bcrypt.MinCost), issuer, avatar.NewTranscoder(250, 250, 0), logger)
	cfg := &config.Config{HTTP: config.HTTPConfig{AllowedOrigins: []string{"https://app.example"}}}
	server := NewRouter(cfg, NewHandler(svc, avatar.NewPolicy(0), logger), nil)

	req := httptest.NewRequest(http.MethodOptions, "/users/me", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	req = httptest.NewRequest(http.MethodOptions, "/users/me", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
