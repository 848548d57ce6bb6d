package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/handler"
	"wopi-gateway/internal/metrics"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/security"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWOPIService struct {
	mock.Mock
}

func (m *MockWOPIService) CheckFileInfo(ctx context.Context, token *model.AccessToken) (*model.FileInfo, error) {
	args := m.Called(ctx, token)
	if info, ok := args.Get(0).(*model.FileInfo); ok {
		return info, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWOPIService) GetFile(ctx context.Context, token *model.AccessToken) (*model.FileContent, error) {
	args := m.Called(ctx, token)
	if content, ok := args.Get(0).(*model.FileContent); ok {
		return content, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWOPIService) PutFile(ctx context.Context, token *model.AccessToken, lockValue string, body io.Reader) (*model.PutFileResult, error) {
	args := m.Called(ctx, token, lockValue, body)
	if result, ok := args.Get(0).(*model.PutFileResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWOPIService) Lock(ctx context.Context, token *model.AccessToken, lockValue, oldLockValue string) (*model.LockResult, error) {
	args := m.Called(ctx, token, lockValue, oldLockValue)
	return lockResult(args)
}

func (m *MockWOPIService) GetLock(ctx context.Context, token *model.AccessToken) (*model.LockResult, error) {
	args := m.Called(ctx, token)
	return lockResult(args)
}

func (m *MockWOPIService) RefreshLock(ctx context.Context, token *model.AccessToken, lockValue string) (*model.LockResult, error) {
	args := m.Called(ctx, token, lockValue)
	return lockResult(args)
}

func (m *MockWOPIService) Unlock(ctx context.Context, token *model.AccessToken, lockValue string) (*model.LockResult, error) {
	args := m.Called(ctx, token, lockValue)
	return lockResult(args)
}

func (m *MockWOPIService) PutRelative(ctx context.Context, token *model.AccessToken, req *model.PutRelativeRequest, body io.Reader) (*model.PutRelativeResult, error) {
	args := m.Called(ctx, token, req, body)
	if result, ok := args.Get(0).(*model.PutRelativeResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWOPIService) RenameFile(ctx context.Context, token *model.AccessToken, lockValue, requestedName string) (string, error) {
	args := m.Called(ctx, token, lockValue, requestedName)
	return args.String(0), args.Error(1)
}

func (m *MockWOPIService) DeleteFile(ctx context.Context, token *model.AccessToken) error {
	return m.Called(ctx, token).Error(0)
}

func lockResult(args mock.Arguments) (*model.LockResult, error) {
	if result, ok := args.Get(0).(*model.LockResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

const testMaxBodySize = 64

type wopiFixture struct {
	router  *chi.Mux
	service *MockWOPIService
	codec   *security.AccessTokenCodec
	metrics *metrics.Metrics
}

func newWOPIFixture(t *testing.T) *wopiFixture {
	t.Helper()

	codec, err := security.NewAccessTokenCodec("test-access-token-secret", time.Hour)
	require.NoError(t, err)

	service := new(MockWOPIService)
	m := metrics.New()
	router := chi.NewRouter()
	handler.NewWOPIHandler(service, m, testMaxBodySize, nil).RegisterRoutes(router, codec)

	return &wopiFixture{router: router, service: service, codec: codec, metrics: m}
}

// do : запрос от имени user-1 с токеном на tokenFile
func (f *wopiFixture) do(t *testing.T, method, path, tokenFile string, permission model.Permission, headers map[string]string, body string) *httptest.ResponseRecorder {
	t.Helper()

	token, err := f.codec.Mint(tokenFile, "user-1", permission)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path+"?access_token="+token, strings.NewReader(body))
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func forFile(fileUUID string) interface{} {
	return mock.MatchedBy(func(token *model.AccessToken) bool {
		return token.FileUUID == fileUUID && token.UserUUID == "user-1"
	})
}

func TestWOPIHandler_CheckFileInfo(t *testing.T) {
	f := newWOPIFixture(t)

	f.service.On("CheckFileInfo", mock.Anything, forFile("file-1")).Return(&model.FileInfo{
		File: &model.File{
			UUID:      "file-1",
			OwnerUUID: "owner-1",
			Name:      "report.odt",
			SizeBytes: 42,
			Version:   3,
			UpdatedAt: time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC),
		},
		UserUUID:         "user-1",
		UserFriendlyName: "John Doe",
		Permission:       model.PermissionEdit,
		LockValue:        "abc",
	}, nil)

	rec := f.do(t, http.MethodGet, "/wopi/files/file-1", "file-1", model.PermissionEdit, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "report.odt", body["BaseFileName"])
	assert.Equal(t, "owner-1", body["OwnerId"])
	assert.Equal(t, float64(42), body["Size"])
	assert.Equal(t, "3", body["Version"])
	assert.Equal(t, "abc", body["LockValue"])
	assert.Equal(t, "2025-05-20T09:00:00Z", body["LastModifiedTime"])
	assert.Equal(t, true, body["UserCanWrite"])
	assert.Equal(t, false, body["UserCanRename"])
	assert.Equal(t, true, body["SupportsLocks"])
	assert.Equal(t, false, body["ReadOnly"])
}

func TestWOPIHandler_CheckFileInfoViewOnly(t *testing.T) {
	f := newWOPIFixture(t)

	f.service.On("CheckFileInfo", mock.Anything, forFile("file-1")).Return(&model.FileInfo{
		File:       &model.File{UUID: "file-1", Name: "report.odt", Version: 1},
		UserUUID:   "user-1",
		Permission: model.PermissionView,
	}, nil)

	rec := f.do(t, http.MethodGet, "/wopi/files/file-1", "file-1", model.PermissionView, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["UserCanWrite"])
	assert.Equal(t, true, body["ReadOnly"])
	assert.Equal(t, true, body["UserCanNotWriteRelative"])
	assert.NotContains(t, body, "LockValue")
}

func TestWOPIHandler_AccessTokenRequired(t *testing.T) {
	f := newWOPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/wopi/files/file-1", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/wopi/files/file-1?access_token=garbage", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/wopi/files/file-1", "file-2", model.PermissionEdit, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	f.service.AssertNotCalled(t, "CheckFileInfo", mock.Anything, mock.Anything)
}

func TestWOPIHandler_GetFile(t *testing.T) {
	f := newWOPIFixture(t)

	f.service.On("GetFile", mock.Anything, forFile("file-1")).Return(&model.FileContent{
		Body:    io.NopCloser(strings.NewReader("hello")),
		Size:    5,
		Name:    "report.odt",
		Version: 7,
	}, nil)

	rec := f.do(t, http.MethodGet, "/wopi/files/file-1/contents", "file-1", model.PermissionView, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "7", rec.Header().Get("X-WOPI-ItemVersion"))
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
}

func TestWOPIHandler_PutFile(t *testing.T) {
	f := newWOPIFixture(t)

	f.service.On("PutFile", mock.Anything, forFile("file-1"), "abc", mock.Anything).
		Return(&model.PutFileResult{Version: 2}, nil)

	rec := f.do(t, http.MethodPost, "/wopi/files/file-1/contents", "file-1", model.PermissionEdit,
		map[string]string{"X-WOPI-Override": "PUT", "X-WOPI-Lock": "abc"}, "new content")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-WOPI-ItemVersion"))
	f.service.AssertExpectations(t)
}

func TestWOPIHandler_PutFileBodyTooLarge(t *testing.T) {
	f := newWOPIFixture(t)
	large := strings.Repeat("x", testMaxBodySize+1)

	rec := f.do(t, http.MethodPost, "/wopi/files/file-1/contents", "file-1", model.PermissionEdit,
		map[string]string{"X-WOPI-Override": "PUT"}, large)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = f.do(t, http.MethodPost, "/wopi/files/file-1", "file-1", model.PermissionEdit,
		map[string]string{"X-WOPI-Override": "PUT_RELATIVE", "X-WOPI-SuggestedTarget": ".docx"}, large)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	f.service.AssertNotCalled(t, "PutFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.service.AssertNotCalled(t, "PutRelative", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWOPIHandler_PutFileStreamedBodyIsCapped(t *testing.T) {
	f := newWOPIFixture(t)

	var readErr error
	f.service.On("PutFile", mock.Anything, forFile("file-1"), "", mock.Anything).
		Run(func(args mock.Arguments) {
			_, readErr = io.ReadAll(args.Get(3).(io.Reader))
		}).
		Return(nil, fmt.Errorf("[WOPIService] не удалось прочитать тело запроса: %w",
			&http.MaxBytesError{Limit: testMaxBodySize}))

	token, err := f.codec.Mint("file-1", "user-1", model.PermissionEdit)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/wopi/files/file-1/contents?access_token="+token,
		io.MultiReader(strings.NewReader(strings.Repeat("x", testMaxBodySize)), strings.NewReader("overflow")))
	req.ContentLength = -1
	req.Header.Set("X-WOPI-Override", "PUT")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var tooLarge *http.MaxBytesError
	assert.ErrorAs(t, readErr, &tooLarge)
	f.service.AssertExpectations(t)
}

func TestWOPIHandler_PutFileLockMismatch(t *testing.T) {
	f := newWOPIFixture(t)

	f.service.On("PutFile", mock.Anything, forFile("file-1"), "abc", mock.Anything).
		Return(nil, fmt.Errorf("[WOPIService] файл file-1: %w",
			&errs.LockConflictError{CurrentLock: "def", Reason: "файл заблокирован другим значением"}))

	rec := f.do(t, http.MethodPost, "/wopi/files/file-1/contents", "file-1", model.PermissionEdit,
		map[string]string{"X-WOPI-Override": "PUT", "X-WOPI-Lock": "abc"}, "new content")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "def", rec.Header().Get("X-WOPI-Lock"))
	assert.NotEmpty(t, rec.Header().Get("X-WOPI-LockFailureReason"))
}

func TestWOPIHandler_PutFileWrongOverride(t *testing.T) {
	f := newWOPIFixture(t)

	rec := f.do(t, http.MethodPost, "/wopi/files/file-1/contents", "file-1", model.PermissionEdit,
		map[string]string{"X-WOPI-Override": "LOCK"}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.service.AssertNotCalled(t, "PutFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWOPIHandler_LockOperations(t *testing.T) {
	f := newWOPIFixture(t)
	anyCtx := mock.Anything
	token := forFile("file-1")

	f.service.On("Lock", anyCtx, token, "new", "old").Return(&model.LockResult{LockValue: "new", Version: 4}, nil)
	f.service.On("GetLock", anyCtx, token).Return(&model.LockResult{LockValue: "new"}, nil)
	f.service.On("RefreshLock", anyCtx, token, "new").Return(&model.LockResult{LockValue: "new"}, nil)
	f.service.On("Unlock", anyCtx, token, "new").Return(&model.LockResult{Version: 4}, nil)

	tests := []struct {
		name     string
		headers  map[string]string
		wantLock string
	}{
		{"UnlockAndRelock", map[string]string{"X-WOPI-Override": "LOCK", "X-WOPI-Lock": "new", "X-WOPI-OldLock": "old"}, "new"},
		{"GetLock", map[string]string{"X-WOPI-Override": "GET_LOCK"}, "new"},
		{"RefreshLock", map[string]string{"X-WOPI-Override": "REFRESH_LOCK", "X-WOPI-Lock": "new"}, "new"},
		{"Unlock", map[string]string{"X-WOPI-Override": "unlock", "X-WOPI-Lock": "new"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/wopi/files/file-1", "file-1", model.PermissionEdit, tt.headers, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantLock, rec.Header().Get("X-WOPI-Lock"))
		})
	}
	f.service.AssertExpectations(t)
}

func TestWOPIHandler_LockConflictMetrics(t *testing.T) {
	f := newWOPIFixture(t)

	f.service.On("Lock", mock.Anything, forFile("file-1"), "xyz", "").
		Return(nil, &errs.LockConflictError{CurrentLock: "abc", Reason: "файл заблокирован другим значением"})

	rec := f.do(t, http.MethodPost, "/wopi/files/file-1", "file-1", model.PermissionEdit,
		map[string]string{"X-WOPI-Override": "LOCK", "X-WOPI-Lock": "xyz"}, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "abc", rec.Header().Get("X-WOPI-Lock"))

	scrape := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `wopi_gateway_wopi_operations_total{operation="LOCK",status="409"} 1`)
}

func TestWOPIHandler_UnknownOverride(t *testing.T) {
	f := newWOPIFixture(t)

	for _, override := range []string{"", "COBALT", "PUT_USER_INFO"} {
		rec := f.do(t, http.MethodPost, "/wopi/files/file-1", "file-1", model.PermissionEdit,
			map[string]string{"X-WOPI-Override": override}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, override)
	}
}

func TestWOPIHandler_PutRelative(t *testing.T) {
	f := newWOPIFixture(t)

	f.service.On("PutRelative", mock.Anything, forFile("file-1"), &model.PutRelativeRequest{
		RelativeTarget: "Отчёт 2025.docx",
		Overwrite:      true,
		Size:           3,
	}, mock.Anything).Return(&model.PutRelativeResult{
		Name: "Отчёт 2025.docx",
		URL:  "https://gw.example.com/wopi/files/file-9?access_token=tok",
	}, nil)

	rec := f.do(t, http.MethodPost, "/wopi/files/file-1", "file-1", model.PermissionEdit, map[string]string{
		"X-WOPI-Override":                "PUT_RELATIVE",
		"X-WOPI-RelativeTarget":          "+BB4EQgRHBFEEQg 2025.docx",
		"X-WOPI-OverwriteRelativeTarget": "true",
		"X-WOPI-Size":                    "3",
	}, "doc")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Отчёт 2025.docx", body["Name"])
	assert.Equal(t, "https://gw.example.com/wopi/files/file-9?access_token=tok", body["Url"])
}

func TestWOPIHandler_PutRelativeNameConflict(t *testing.T) {
	f := newWOPIFixture(t)

	f.service.On("PutRelative", mock.Anything, forFile("file-1"), &model.PutRelativeRequest{SuggestedTarget: ".pdf"}, mock.Anything).
		Return(nil, &errs.NameConflictError{ValidTarget: "report (2).pdf"})

	rec := f.do(t, http.MethodPost, "/wopi/files/file-1", "file-1", model.PermissionEdit, map[string]string{
		"X-WOPI-Override":        "PUT_RELATIVE",
		"X-WOPI-SuggestedTarget": ".pdf",
	}, "pdf")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "report (2).pdf", rec.Header().Get("X-WOPI-ValidRelativeTarget"))
	assert.NotEmpty(t, rec.Header().Get("X-WOPI-LockFailureReason"))
}

func TestWOPIHandler_PutRelativeBadHeaders(t *testing.T) {
	f := newWOPIFixture(t)

	for _, headers := range []map[string]string{
		{"X-WOPI-Override": "PUT_RELATIVE", "X-WOPI-SuggestedTarget": ".pdf", "X-WOPI-Size": "many"},
		{"X-WOPI-Override": "PUT_RELATIVE", "X-WOPI-SuggestedTarget": ".pdf", "X-WOPI-OverwriteRelativeTarget": "maybe"},
	} {
		rec := f.do(t, http.MethodPost, "/wopi/files/file-1", "file-1", model.PermissionEdit, headers, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	f.service.AssertNotCalled(t, "PutRelative", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWOPIHandler_RenameFile(t *testing.T) {
	f := newWOPIFixture(t)

	f.service.On("RenameFile", mock.Anything, forFile("file-1"), "abc", "summary").Return("summary", nil).Once()
	f.service.On("RenameFile", mock.Anything, forFile("file-1"), "abc", "a/b").
		Return("", fmt.Errorf("недопустимое имя: %w", errs.ErrMalformed)).Once()
	f.service.On("RenameFile", mock.Anything, forFile("file-1"), "abc", "taken").
		Return("", &errs.NameConflictError{ValidTarget: "taken (2).odt"}).Once()

	rename := func(name string) *httptest.ResponseRecorder {
		return f.do(t, http.MethodPost, "/wopi/files/file-1", "file-1", model.PermissionEdit, map[string]string{
			"X-WOPI-Override":      "RENAME_FILE",
			"X-WOPI-Lock":          "abc",
			"X-WOPI-RequestedName": name,
		}, "")
	}

	rec := rename("summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"Name":"summary"}`, rec.Body.String())

	rec = rename("a/b")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-WOPI-InvalidFileNameError"))

	rec = rename("taken")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-WOPI-InvalidFileNameError"))
}

func TestWOPIHandler_DeleteFile(t *testing.T) {
	f := newWOPIFixture(t)

	f.service.On("DeleteFile", mock.Anything, forFile("file-1")).Return(nil).Once()
	f.service.On("DeleteFile", mock.Anything, forFile("file-1")).Return(errs.ErrForbidden).Once()
	f.service.On("DeleteFile", mock.Anything, forFile("file-1")).Return(fmt.Errorf("файл: %w", errs.ErrNotFound)).Once()

	headers := map[string]string{"X-WOPI-Override": "DELETE"}
	for _, want := range []int{http.StatusOK, http.StatusForbidden, http.StatusNotFound} {
		rec := f.do(t, http.MethodPost, "/wopi/files/file-1", "file-1", model.PermissionEdit, headers, "")
		assert.Equal(t, want, rec.Code)
	}
}

func TestWOPIHandler_StorageFailureIs500(t *testing.T) {
	f := newWOPIFixture(t)

	f.service.On("PutFile", mock.Anything, forFile("file-1"), "", mock.Anything).
		Return(nil, fmt.Errorf("s3 недоступен"))

	rec := f.do(t, http.MethodPost, "/wopi/files/file-1/contents", "file-1", model.PermissionEdit,
		map[string]string{"X-WOPI-Override": "PUT"}, "x")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
