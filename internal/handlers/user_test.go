package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/citizone/authserver/internal/otp"
	"github.com/citizone/authserver/internal/services"
	"github.com/citizone/authserver/internal/storage"
	"github.com/citizone/authserver/internal/store"
	"github.com/citizone/authserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObjectStorage struct {
	objects map[string][]byte
}

func newMemoryObjectStorage() *memoryObjectStorage {
	return &memoryObjectStorage{objects: make(map[string][]byte)}
}

func (m *memoryObjectStorage) EnsureBucket(context.Context) error { return nil }

func (m *memoryObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memoryObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjectStorage) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryObjectStorage) Bucket() string { return "avatars-test" }

type userTestEnv struct {
	router  chi.Router
	repo    *store.MemoryUserRepository
	objects *memoryObjectStorage
	token   string
	userID  int64
}

func newUserTestEnv(t *testing.T) *userTestEnv {
	t.Helper()

	repo := store.NewMemoryUserRepository()
	objects := newMemoryObjectStorage()

	authService := services.NewAuthService(repo, otp.NewManager(5*time.Minute), &fakeOTPSender{})
	authHandler := NewAuthHandler(authService, testSecret, time.Hour, 7*24*time.Hour)
	userHandler := NewUserHandler(services.NewUserService(repo), storage.NewStorage(objects))

	router := chi.NewRouter()
	router.Route("/user", func(r chi.Router) {
		r.Use(authHandler.RequireAuth)
		UserRouter(r, userHandler)
	})

	user, err := authService.RegisterByEmail(context.Background(), services.RegisterInput{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Age:             30,
		Gender:          "female",
		Email:           "ada@example.com",
		Password:        "secret123",
		ConfirmPassword: "secret123",
	})
	require.NoError(t, err)

	token, _, err := authHandler.issueToken(user.ID)
	require.NoError(t, err)

	return &userTestEnv{router: router, repo: repo, objects: objects, token: token, userID: user.ID}
}

func (env *userTestEnv) do(t *testing.T, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+env.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestGetProfile(t *testing.T) {
	env := newUserTestEnv(t)

	rec := env.do(t, http.MethodGet, "/user/profile", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ada@example.com")
	assert.NotContains(t, rec.Body.String(), "passwordHash")
}

func TestUpdateProfile(t *testing.T) {
	env := newUserTestEnv(t)

	rec := env.do(t, http.MethodPut, "/user/profile", "application/json",
		[]byte(`{"firstName":"Augusta","age":31}`))
	assert.Equal(t, http.StatusOK, rec.Code)

	user, err := env.repo.GetByID(context.Background(), env.userID)
	require.NoError(t, err)
	assert.Equal(t, "Augusta", user.FirstName)
	assert.Equal(t, "Lovelace", user.LastName, "omitted fields keep their value")
	assert.Equal(t, 31, user.Age)
}

func TestUpdateProfileValidation(t *testing.T) {
	env := newUserTestEnv(t)

	rec := env.do(t, http.MethodPut, "/user/profile", "application/json",
		[]byte(`{"gender":"unknown"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvatarUploadAndFetch(t *testing.T) {
	env := newUserTestEnv(t)
	image := []byte("\x89PNG fake image bytes")

	rec := env.do(t, http.MethodPost, "/user/avatar", "image/png", image)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, image, env.objects.objects[fmt.Sprintf("avatars/%d", env.userID)])

	rec = env.do(t, http.MethodGet, "/user/avatar", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, image, rec.Body.Bytes())
}

func TestAvatarRejectsWrongContentType(t *testing.T) {
	env := newUserTestEnv(t)

	rec := env.do(t, http.MethodPost, "/user/avatar", "text/plain", []byte("not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvatarNotFound(t *testing.T) {
	env := newUserTestEnv(t)

	rec := env.do(t, http.MethodGet, "/user/avatar", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAvatarStorageUnconfigured(t *testing.T) {
	repo := store.NewMemoryUserRepository()
	authService := services.NewAuthService(repo, otp.NewManager(5*time.Minute), &fakeOTPSender{})
	authHandler := NewAuthHandler(authService, testSecret, time.Hour, 7*24*time.Hour)
	userHandler := NewUserHandler(services.NewUserService(repo), nil)

	router := chi.NewRouter()
	router.Route("/user", func(r chi.Router) {
		r.Use(authHandler.RequireAuth)
		UserRouter(r, userHandler)
	})

	user, err := repo.Create(context.Background(), types.User{FirstName: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	token, _, err := authHandler.issueToken(user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/user/avatar", bytes.NewReader([]byte("img")))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
