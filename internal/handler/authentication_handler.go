package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/model/requestresponse"
	"wopi-gateway/internal/ports"
	"wopi-gateway/internal/security"
	"wopi-gateway/internal/util"

	"go.uber.org/zap"
)

type AuthenticationHandler struct {
	ports.AuthenticationService
	log *zap.Logger
}

func NewAuthenticationHandler(authenticationService ports.AuthenticationService, log *zap.Logger) *AuthenticationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthenticationHandler{authenticationService, log.Named("auth_handler")}
}

// Login godoc
// @Summary Аутентификация пользователя
// @Description Вход через мост идентификации: LTPA токен из cookie или заголовка, LDAP или локальный пароль, в зависимости от режима
// @Tags Authentication
// @Accept json
// @Produce json
// @Param body body requestresponse.LoginRequest false "Логин и пароль. При входе по LTPA тело можно не передавать"
// @Success 200 {object} requestresponse.LoginResponse "Успешная аутентификация"
// @Failure 400 {object} requestresponse.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} requestresponse.ErrorResponse "Неверные учётные данные или SSO токен"
// @Failure 500 {object} requestresponse.ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/auth [post]
func (h *AuthenticationHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req requestresponse.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		sendErrorResponse(w, http.StatusBadRequest, "некорректный JSON")
		return
	}

	result, err := h.AuthenticationService.Login(r.Context(), r, req.Login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			sendErrorResponse(w, http.StatusUnauthorized, "неверный логин или пароль")
		default:
			h.log.Error("ошибка входа", zap.String("login", req.Login), zap.Error(err))
			sendErrorResponse(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
		}
		return
	}

	resp := requestresponse.LoginResponse{}
	resp.Response.Token = result.Session.AccessToken
	resp.Response.ExpiresIn = result.Session.ExpiresIn
	resp.Response.AuthSource = string(result.Principal.AuthSource)

	writeJSON(w, http.StatusOK, resp)
}

// GetCurrentUser godoc
// @Summary Текущий пользователь
// @Description Данные пользователя из JWT сессии
// @Tags Authentication
// @Produce json
// @Param Authorization header string true "Bearer токен" default(Bearer <access_token>)
// @Success 200 {object} requestresponse.CurrentUserResponse
// @Failure 401 {object} requestresponse.ErrorResponse
// @Router /api/auth/me [get]
func (h *AuthenticationHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, err := security.GetClaimsFromContext(r.Context())
	if err != nil {
		sendErrorResponse(w, http.StatusUnauthorized, "не авторизован")
		return
	}

	resp := requestresponse.CurrentUserResponse{}
	resp.Response.UserUUID = claims.UserUUID
	resp.Response.Username = claims.Username
	resp.Response.Role = claims.Role
	resp.Response.AuthSource = claims.AuthSource

	writeJSON(w, http.StatusOK, resp)
}

// statusFor : ошибка сервиса -> HTTP статус приложения
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrMalformed):
		return http.StatusBadRequest, "некорректный запрос"
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, "не авторизован"
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, "доступ запрещён"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "не найдено"
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, "конфликт"
	case errors.Is(err, errs.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "внешний сервис недоступен"
	}
	return http.StatusInternalServerError, "внутренняя ошибка сервера"
}

func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	code, message := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Error(message, zap.Error(err))
	}
	util.HandleError(w, message, code)
}

func sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, requestresponse.ErrorResponse{
		Error: requestresponse.ErrorDetail{
			Code: statusCode,
			Text: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("ошибка кодирования ответа", zap.Error(err))
	}
}
