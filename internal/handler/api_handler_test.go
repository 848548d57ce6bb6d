package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"wopi-gateway/config"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/handler"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/security"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthenticationService struct {
	mock.Mock
}

func (m *MockAuthenticationService) Login(ctx context.Context, r *http.Request, login, password string) (*model.LoginResult, error) {
	args := m.Called(ctx, r, login, password)
	if result, ok := args.Get(0).(*model.LoginResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockEditorService struct {
	mock.Mock
}

func (m *MockEditorService) OpenEditor(ctx context.Context, userUUID, fileUUID string) (*model.EditorSession, error) {
	args := m.Called(ctx, userUUID, fileUUID)
	if session, ok := args.Get(0).(*model.EditorSession); ok {
		return session, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEditorService) ClearDiscoveryCache(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

const adminToken = "operator-secret"

type apiFixture struct {
	router *chi.Mux
	auth   *MockAuthenticationService
	editor *MockEditorService
	jwt    *security.JWTService
}

func newAPIFixture() *apiFixture {
	jwtService := security.NewJWTService(&config.JWTConfig{SecretKey: "jwt-test-secret", AccessTokenTTL: time.Hour})
	auth := new(MockAuthenticationService)
	editor := new(MockEditorService)

	authHandler := handler.NewAuthenticationHandler(auth, nil)
	editorHandler := handler.NewEditorHandler(editor, nil)

	router := chi.NewRouter()
	router.Post("/api/auth", authHandler.Login)
	router.Group(func(r chi.Router) {
		r.Use(security.JWTMiddleware(jwtService, adminToken))
		r.Get("/api/auth/me", authHandler.GetCurrentUser)
		r.Post("/api/files/{file_id}/editor", editorHandler.OpenEditor)
		r.With(security.RequireAdmin).Post("/api/admin/discovery/clear", editorHandler.ClearDiscoveryCache)
	})

	return &apiFixture{router: router, auth: auth, editor: editor, jwt: jwtService}
}

func (f *apiFixture) session(t *testing.T, role string) string {
	t.Helper()
	token, err := f.jwt.GenerateSessionToken(
		&model.User{UUID: "user-1", Login: "jdoe"},
		&model.Principal{Username: "jdoe", Role: role, AuthSource: model.AuthSourceLDAP},
	)
	require.NoError(t, err)
	return token.AccessToken
}

func (f *apiFixture) do(method, path, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticationHandler_Login(t *testing.T) {
	f := newAPIFixture()

	f.auth.On("Login", mock.Anything, mock.Anything, "jdoe", "secret").Return(&model.LoginResult{
		User:      &model.User{UUID: "user-1"},
		Principal: &model.Principal{Username: "jdoe", AuthSource: model.AuthSourceLDAP},
		Session:   &model.SessionToken{AccessToken: "jwt-value", ExpiresIn: 3600},
	}, nil)

	rec := f.do(http.MethodPost, "/api/auth", "", `{"login":"jdoe","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":{"token":"jwt-value","expires_in":3600,"auth_source":"ldap"}}`, rec.Body.String())
}

func TestAuthenticationHandler_LoginWithoutBody(t *testing.T) {
	f := newAPIFixture()

	f.auth.On("Login", mock.Anything, mock.Anything, "", "").Return(&model.LoginResult{
		User:      &model.User{UUID: "user-1"},
		Principal: &model.Principal{Username: "jdoe", AuthSource: model.AuthSourceLTPA},
		Session:   &model.SessionToken{AccessToken: "jwt-value", ExpiresIn: 3600},
	}, nil)

	rec := f.do(http.MethodPost, "/api/auth", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"auth_source":"ltpa"`)
}

func TestAuthenticationHandler_LoginErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{"Некорректный JSON", `{"login":`, nil, http.StatusBadRequest},
		{"Неверный пароль", `{"login":"jdoe","password":"bad"}`, fmt.Errorf("вход: %w", errs.ErrUnauthorized), http.StatusUnauthorized},
		{"Сбой хранилища", `{"login":"jdoe","password":"bad"}`, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture()
			if tt.serviceErr != nil {
				f.auth.On("Login", mock.Anything, mock.Anything, "jdoe", "bad").Return(nil, tt.serviceErr)
			}

			rec := f.do(http.MethodPost, "/api/auth", "", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp map[string]map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, float64(tt.wantStatus), resp["error"]["code"])
		})
	}
}

func TestAuthenticationHandler_GetCurrentUser(t *testing.T) {
	f := newAPIFixture()

	rec := f.do(http.MethodGet, "/api/auth/me", f.session(t, model.RoleUser), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":{"user_uuid":"user-1","username":"jdoe","role":"user","auth_source":"ldap"}}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/api/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEditorHandler_OpenEditor(t *testing.T) {
	f := newAPIFixture()
	expiresAt := time.UnixMilli(1760000000000)

	f.editor.On("OpenEditor", mock.Anything, "user-1", "file-1").Return(&model.EditorSession{
		URL:         "https://office.example.com/browser/dist/cool.html?WOPISrc=x",
		AccessToken: "tok",
		ExpiresAt:   expiresAt,
		Permission:  model.PermissionEdit,
	}, nil)

	rec := f.do(http.MethodPost, "/api/files/file-1/editor", f.session(t, model.RoleUser), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":{
		"url":"https://office.example.com/browser/dist/cool.html?WOPISrc=x",
		"access_token":"tok",
		"access_token_ttl":1760000000000,
		"permission":"edit"}}`, rec.Body.String())
}

func TestEditorHandler_OpenEditorErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"Нет доступа", fmt.Errorf("[EditorService] нет доступа: %w", errs.ErrForbidden), http.StatusForbidden},
		{"Нет файла", fmt.Errorf("[EditorService] файл: %w", errs.ErrNotFound), http.StatusNotFound},
		{"Discovery недоступен", fmt.Errorf("discovery: %w", errs.ErrUpstreamUnavailable), http.StatusBadGateway},
		{"Неизвестная ошибка", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture()
			f.editor.On("OpenEditor", mock.Anything, "user-1", "file-1").Return(nil, tt.err)

			rec := f.do(http.MethodPost, "/api/files/file-1/editor", f.session(t, model.RoleUser), "")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestEditorHandler_OpenEditorRequiresSession(t *testing.T) {
	f := newAPIFixture()

	rec := f.do(http.MethodPost, "/api/files/file-1/editor", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/api/files/file-1/editor", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	f.editor.AssertNotCalled(t, "OpenEditor", mock.Anything, mock.Anything, mock.Anything)
}

func TestEditorHandler_ClearDiscoveryCache(t *testing.T) {
	f := newAPIFixture()
	f.editor.On("ClearDiscoveryCache", mock.Anything).Return(nil)

	rec := f.do(http.MethodPost, "/api/admin/discovery/clear", f.session(t, model.RoleUser), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	f.editor.AssertNotCalled(t, "ClearDiscoveryCache", mock.Anything)

	rec = f.do(http.MethodPost, "/api/admin/discovery/clear", f.session(t, model.RoleAdmin), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/api/admin/discovery/clear", adminToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.editor.AssertNumberOfCalls(t, "ClearDiscoveryCache", 2)
}
