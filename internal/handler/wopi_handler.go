package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/metrics"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/model/requestresponse"
	"wopi-gateway/internal/ports"
	"wopi-gateway/internal/security"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Заголовки протокола WOPI
const (
	headerOverride          = "X-WOPI-Override"
	headerLock              = "X-WOPI-Lock"
	headerOldLock           = "X-WOPI-OldLock"
	headerLockFailureReason = "X-WOPI-LockFailureReason"
	headerItemVersion       = "X-WOPI-ItemVersion"
	headerSize              = "X-WOPI-Size"
	headerSuggestedTarget   = "X-WOPI-SuggestedTarget"
	headerRelativeTarget    = "X-WOPI-RelativeTarget"
	headerOverwriteRelative = "X-WOPI-OverwriteRelativeTarget"
	headerValidTarget       = "X-WOPI-ValidRelativeTarget"
	headerRequestedName     = "X-WOPI-RequestedName"
	headerInvalidFileName   = "X-WOPI-InvalidFileNameError"
)

// Значения X-WOPI-Override
const (
	overridePut         = "PUT"
	overrideLock        = "LOCK"
	overrideGetLock     = "GET_LOCK"
	overrideRefreshLock = "REFRESH_LOCK"
	overrideUnlock      = "UNLOCK"
	overridePutRelative = "PUT_RELATIVE"
	overrideRenameFile  = "RENAME_FILE"
	overrideDelete      = "DELETE"

	operationCheckFileInfo = "CHECK_FILE_INFO"
	operationGetFile       = "GET_FILE"
)

// WOPIHandler : конечные точки, которые вызывает движок редактора.
// Ошибки отдаются голым статусом и заголовками WOPI, без JSON конверта
type WOPIHandler struct {
	service     ports.WOPIService
	metrics     *metrics.Metrics
	maxBodySize int64
	log         *zap.Logger
}

// NewWOPIHandler : maxBodySize <= 0 снимает ограничение на тело PutFile и PutRelative
func NewWOPIHandler(service ports.WOPIService, m *metrics.Metrics, maxBodySize int64, log *zap.Logger) *WOPIHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WOPIHandler{service: service, metrics: m, maxBodySize: maxBodySize, log: log.Named("wopi_handler")}
}

// RegisterRoutes : маршруты /wopi/files/{file_id}, все под проверкой access token
func (h *WOPIHandler) RegisterRoutes(r chi.Router, codec *security.AccessTokenCodec) {
	r.Route("/wopi/files/{file_id}", func(r chi.Router) {
		r.Use(security.AccessTokenMiddleware(codec, func(req *http.Request) string {
			return chi.URLParam(req, "file_id")
		}))
		r.Get("/", h.CheckFileInfo)
		r.Post("/", h.FileOperation)
		r.Get("/contents", h.GetFile)
		r.Post("/contents", h.PutFile)
	})
}

// CheckFileInfo godoc
// @Summary WOPI CheckFileInfo
// @Description Метаданные файла и права текущего пользователя
// @Tags WOPI
// @Produce json
// @Param file_id path string true "UUID файла"
// @Param access_token query string true "WOPI access token"
// @Success 200 {object} requestresponse.CheckFileInfoResponse
// @Failure 401 "Невалидный access token"
// @Failure 404 "Файл не найден"
// @Router /wopi/files/{file_id} [get]
func (h *WOPIHandler) CheckFileInfo(w http.ResponseWriter, r *http.Request) {
	token, ok := h.accessToken(w, r, operationCheckFileInfo)
	if !ok {
		return
	}

	info, err := h.service.CheckFileInfo(r.Context(), token)
	if err != nil {
		h.fail(w, operationCheckFileInfo, err)
		return
	}

	h.writeJSON(w, operationCheckFileInfo, toCheckFileInfoResponse(info))
}

// GetFile godoc
// @Summary WOPI GetFile
// @Description Содержимое текущей версии файла
// @Tags WOPI
// @Produce octet-stream
// @Param file_id path string true "UUID файла"
// @Param access_token query string true "WOPI access token"
// @Success 200 {file} file
// @Failure 401 "Невалидный access token"
// @Failure 404 "Файл не найден"
// @Router /wopi/files/{file_id}/contents [get]
func (h *WOPIHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	token, ok := h.accessToken(w, r, operationGetFile)
	if !ok {
		return
	}

	content, err := h.service.GetFile(r.Context(), token)
	if err != nil {
		h.fail(w, operationGetFile, err)
		return
	}
	defer content.Body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(content.Size, 10))
	w.Header().Set(headerItemVersion, strconv.FormatInt(content.Version, 10))
	w.WriteHeader(http.StatusOK)
	h.metrics.ObserveWOPI(operationGetFile, http.StatusOK)

	if _, err := io.Copy(w, content.Body); err != nil {
		h.log.Warn("обрыв при отдаче содержимого", zap.String("file_uuid", token.FileUUID), zap.Error(err))
	}
}

// PutFile godoc
// @Summary WOPI PutFile
// @Description Новая версия содержимого. Текущая версия сохраняется снимком
// @Tags WOPI
// @Accept octet-stream
// @Param file_id path string true "UUID файла"
// @Param access_token query string true "WOPI access token"
// @Param X-WOPI-Override header string true "PUT"
// @Param X-WOPI-Lock header string false "Значение блокировки"
// @Success 200 "Содержимое сохранено, версия в X-WOPI-ItemVersion"
// @Failure 409 "Блокировка не совпадает, актуальное значение в X-WOPI-Lock"
// @Router /wopi/files/{file_id}/contents [post]
func (h *WOPIHandler) PutFile(w http.ResponseWriter, r *http.Request) {
	override := strings.ToUpper(strings.TrimSpace(r.Header.Get(headerOverride)))
	if override != "" && override != overridePut {
		h.status(w, "UNKNOWN", http.StatusBadRequest)
		return
	}

	token, ok := h.accessToken(w, r, overridePut)
	if !ok {
		return
	}

	if h.bodyTooLarge(w, r, overridePut) {
		return
	}

	result, err := h.service.PutFile(r.Context(), token, r.Header.Get(headerLock), h.limitBody(w, r))
	if err != nil {
		h.fail(w, overridePut, err)
		return
	}

	w.Header().Set(headerItemVersion, strconv.FormatInt(result.Version, 10))
	h.status(w, overridePut, http.StatusOK)
}

// FileOperation godoc
// @Summary WOPI операции над файлом
// @Description Выбор операции по X-WOPI-Override: LOCK, GET_LOCK, REFRESH_LOCK, UNLOCK, PUT_RELATIVE, RENAME_FILE, DELETE
// @Tags WOPI
// @Param file_id path string true "UUID файла"
// @Param access_token query string true "WOPI access token"
// @Param X-WOPI-Override header string true "Операция"
// @Param X-WOPI-Lock header string false "Значение блокировки"
// @Success 200 "Операция выполнена"
// @Failure 400 "Неизвестная операция или некорректный запрос"
// @Failure 409 "Конфликт блокировки или имени"
// @Router /wopi/files/{file_id} [post]
func (h *WOPIHandler) FileOperation(w http.ResponseWriter, r *http.Request) {
	override := strings.ToUpper(strings.TrimSpace(r.Header.Get(headerOverride)))

	switch override {
	case overrideLock, overrideGetLock, overrideRefreshLock, overrideUnlock,
		overridePutRelative, overrideRenameFile, overrideDelete:
	default:
		h.log.Info("неизвестная WOPI операция", zap.String("override", override))
		h.status(w, "UNKNOWN", http.StatusBadRequest)
		return
	}

	token, ok := h.accessToken(w, r, override)
	if !ok {
		return
	}
	ctx := r.Context()
	lockValue := r.Header.Get(headerLock)

	switch override {
	case overrideLock:
		result, err := h.service.Lock(ctx, token, lockValue, r.Header.Get(headerOldLock))
		h.lockResponse(w, override, result, err)

	case overrideGetLock:
		result, err := h.service.GetLock(ctx, token)
		h.lockResponse(w, override, result, err)

	case overrideRefreshLock:
		result, err := h.service.RefreshLock(ctx, token, lockValue)
		h.lockResponse(w, override, result, err)

	case overrideUnlock:
		result, err := h.service.Unlock(ctx, token, lockValue)
		h.lockResponse(w, override, result, err)

	case overridePutRelative:
		h.putRelative(w, r, token)

	case overrideRenameFile:
		h.renameFile(w, r, token, lockValue)

	case overrideDelete:
		if err := h.service.DeleteFile(ctx, token); err != nil {
			h.fail(w, override, err)
			return
		}
		h.status(w, override, http.StatusOK)
	}
}

func (h *WOPIHandler) lockResponse(w http.ResponseWriter, operation string, result *model.LockResult, err error) {
	if err != nil {
		h.fail(w, operation, err)
		return
	}

	w.Header().Set(headerLock, result.LockValue)
	if result.Version > 0 {
		w.Header().Set(headerItemVersion, strconv.FormatInt(result.Version, 10))
	}
	h.status(w, operation, http.StatusOK)
}

func (h *WOPIHandler) putRelative(w http.ResponseWriter, r *http.Request, token *model.AccessToken) {
	req := &model.PutRelativeRequest{
		SuggestedTarget: decodeUTF7(r.Header.Get(headerSuggestedTarget)),
		RelativeTarget:  decodeUTF7(r.Header.Get(headerRelativeTarget)),
	}
	if overwrite := r.Header.Get(headerOverwriteRelative); overwrite != "" {
		parsed, err := strconv.ParseBool(overwrite)
		if err != nil {
			h.status(w, overridePutRelative, http.StatusBadRequest)
			return
		}
		req.Overwrite = parsed
	}
	if size := r.Header.Get(headerSize); size != "" {
		parsed, err := strconv.ParseInt(size, 10, 64)
		if err != nil || parsed < 0 {
			h.status(w, overridePutRelative, http.StatusBadRequest)
			return
		}
		req.Size = parsed
	}

	if h.bodyTooLarge(w, r, overridePutRelative) {
		return
	}

	result, err := h.service.PutRelative(r.Context(), token, req, h.limitBody(w, r))
	if err != nil {
		var nameConflict *errs.NameConflictError
		if errors.As(err, &nameConflict) {
			w.Header().Set(headerValidTarget, nameConflict.ValidTarget)
		}
		h.fail(w, overridePutRelative, err)
		return
	}

	h.writeJSON(w, overridePutRelative, requestresponse.PutRelativeResponse{
		Name: result.Name,
		Url:  result.URL,
	})
}

func (h *WOPIHandler) renameFile(w http.ResponseWriter, r *http.Request, token *model.AccessToken, lockValue string) {
	requested := decodeUTF7(r.Header.Get(headerRequestedName))

	name, err := h.service.RenameFile(r.Context(), token, lockValue, requested)
	if err != nil {
		var nameConflict *errs.NameConflictError
		switch {
		case errors.As(err, &nameConflict):
			w.Header().Set(headerInvalidFileName, "файл с таким именем уже существует")
			h.status(w, overrideRenameFile, http.StatusBadRequest)
		case errors.Is(err, errs.ErrMalformed):
			w.Header().Set(headerInvalidFileName, "недопустимое имя файла")
			h.status(w, overrideRenameFile, http.StatusBadRequest)
		default:
			h.fail(w, overrideRenameFile, err)
		}
		return
	}

	h.writeJSON(w, overrideRenameFile, requestresponse.RenameFileResponse{Name: name})
}

// bodyTooLarge : 413 сразу, если Content-Length уже больше предела
func (h *WOPIHandler) bodyTooLarge(w http.ResponseWriter, r *http.Request, operation string) bool {
	if h.maxBodySize > 0 && r.ContentLength > h.maxBodySize {
		h.status(w, operation, http.StatusRequestEntityTooLarge)
		return true
	}
	return false
}

// limitBody : тело без Content-Length обрывается на maxBodySize, сервис получит *http.MaxBytesError
func (h *WOPIHandler) limitBody(w http.ResponseWriter, r *http.Request) io.Reader {
	if h.maxBodySize <= 0 {
		return r.Body
	}
	return http.MaxBytesReader(w, r.Body, h.maxBodySize)
}

// accessToken : токен из контекста, его кладёт AccessTokenMiddleware
func (h *WOPIHandler) accessToken(w http.ResponseWriter, r *http.Request, operation string) (*model.AccessToken, bool) {
	token, err := security.AccessTokenFromContext(r.Context())
	if err != nil {
		h.status(w, operation, http.StatusUnauthorized)
		return nil, false
	}
	return token, true
}

// fail : ошибка сервиса -> статус WOPI. У 409 всегда есть X-WOPI-Lock и причина
func (h *WOPIHandler) fail(w http.ResponseWriter, operation string, err error) {
	var lockConflict *errs.LockConflictError
	var nameConflict *errs.NameConflictError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		h.status(w, operation, http.StatusRequestEntityTooLarge)
	case errors.As(err, &lockConflict):
		w.Header().Set(headerLock, lockConflict.CurrentLock)
		w.Header().Set(headerLockFailureReason, lockConflict.Reason)
		h.status(w, operation, http.StatusConflict)
	case errors.As(err, &nameConflict):
		w.Header().Set(headerLock, "")
		w.Header().Set(headerLockFailureReason, "имя файла занято")
		h.status(w, operation, http.StatusConflict)
	case errors.Is(err, errs.ErrConflict):
		w.Header().Set(headerLock, "")
		w.Header().Set(headerLockFailureReason, err.Error())
		h.status(w, operation, http.StatusConflict)
	case errors.Is(err, errs.ErrMalformed):
		h.status(w, operation, http.StatusBadRequest)
	case errors.Is(err, errs.ErrUnauthorized):
		h.status(w, operation, http.StatusUnauthorized)
	case errors.Is(err, errs.ErrForbidden):
		h.status(w, operation, http.StatusForbidden)
	case errors.Is(err, errs.ErrNotFound):
		h.status(w, operation, http.StatusNotFound)
	case errors.Is(err, errs.ErrUpstreamUnavailable):
		h.status(w, operation, http.StatusBadGateway)
	default:
		h.log.Error("ошибка WOPI операции", zap.String("operation", operation), zap.Error(err))
		h.status(w, operation, http.StatusInternalServerError)
	}
}

func (h *WOPIHandler) status(w http.ResponseWriter, operation string, code int) {
	w.WriteHeader(code)
	h.metrics.ObserveWOPI(operation, code)
}

func (h *WOPIHandler) writeJSON(w http.ResponseWriter, operation string, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	h.metrics.ObserveWOPI(operation, http.StatusOK)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("ошибка кодирования ответа", zap.String("operation", operation), zap.Error(err))
	}
}

func toCheckFileInfoResponse(info *model.FileInfo) requestresponse.CheckFileInfoResponse {
	canWrite := info.Permission.CanWrite()
	canManage := info.IsOwner || info.Permission == model.PermissionAdmin

	return requestresponse.CheckFileInfoResponse{
		BaseFileName:     info.File.Name,
		OwnerId:          info.File.OwnerUUID,
		Size:             info.File.SizeBytes,
		UserId:           info.UserUUID,
		UserFriendlyName: info.UserFriendlyName,
		Version:          strconv.FormatInt(info.File.Version, 10),
		LastModifiedTime: info.File.UpdatedAt.UTC().Format(time.RFC3339),
		LockValue:        info.LockValue,

		UserCanWrite:            canWrite,
		UserCanRename:           canWrite && canManage,
		UserCanNotWriteRelative: !canWrite,
		ReadOnly:                !canWrite,

		SupportsLocks:              true,
		SupportsGetLock:            true,
		SupportsExtendedLockLength: true,
		SupportsUpdate:             true,
		SupportsRename:             true,
		SupportsDeleteFile:         true,

		DisablePrint:     !canWrite,
		DisableExport:    !canWrite,
		HidePrintOption:  !canWrite,
		HideExportOption: !canWrite,
	}
}
