package handler

import (
	"net/http"
	"wopi-gateway/internal/model/requestresponse"
	"wopi-gateway/internal/ports"
	"wopi-gateway/internal/security"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type EditorHandler struct {
	ports.EditorService
	log *zap.Logger
}

func NewEditorHandler(editorService ports.EditorService, log *zap.Logger) *EditorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &EditorHandler{editorService, log.Named("editor_handler")}
}

// OpenEditor godoc
// @Summary Ссылка на редактор
// @Description Проверяет право пользователя на файл, выпускает WOPI access token и строит ссылку на редактор по discovery
// @Tags Editor
// @Produce json
// @Param file_id path string true "UUID файла"
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.EditorURLResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 404 {object} requestresponse.ErrorResponse
// @Failure 502 {object} requestresponse.ErrorResponse "Сервер редактора недоступен"
// @Router /api/files/{file_id}/editor [post]
func (h *EditorHandler) OpenEditor(w http.ResponseWriter, r *http.Request) {
	claims, err := security.GetClaimsFromContext(r.Context())
	if err != nil {
		sendErrorResponse(w, http.StatusUnauthorized, "не авторизован")
		return
	}

	fileUUID := chi.URLParam(r, "file_id")
	if fileUUID == "" {
		sendErrorResponse(w, http.StatusBadRequest, "не указан файл")
		return
	}

	session, err := h.EditorService.OpenEditor(r.Context(), claims.UserUUID, fileUUID)
	if err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	resp := requestresponse.EditorURLResponse{}
	resp.Response.URL = session.URL
	resp.Response.AccessToken = session.AccessToken
	resp.Response.AccessTokenTTL = session.ExpiresAt.UnixMilli()
	resp.Response.Permission = string(session.Permission)

	writeJSON(w, http.StatusOK, resp)
}

// ClearDiscoveryCache godoc
// @Summary Сброс кэша discovery
// @Description Следующий запрос ссылки на редактор заново загрузит discovery. Только для администратора
// @Tags Admin
// @Produce json
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.SuccessResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Failure 403 {object} requestresponse.ErrorResponse
// @Failure 500 {object} requestresponse.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/admin/discovery/clear [post]
func (h *EditorHandler) ClearDiscoveryCache(w http.ResponseWriter, r *http.Request) {
	if err := h.EditorService.ClearDiscoveryCache(r.Context()); err != nil {
		handleServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, requestresponse.SuccessResponse{Message: "кэш discovery сброшен"})
}
