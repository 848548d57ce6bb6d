package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"wopi-gateway/config"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/metrics"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/ports"
	"wopi-gateway/internal/security"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// errBranchSkipped : ветка не применима к запросу (нет токена, нет пароля)
var errBranchSkipped = errors.New("ветка аутентификации не применима")

// AuthenticationService : мост идентификации. Ветки LTPA, LDAP и локального пароля
// пробуются по порядку режима, побеждает первая успешная. Неприменимая ветка пропускается,
// отказ применимой ветки завершает вход везде, кроме hybrid
type AuthenticationService struct {
	mode           string
	database       sqlx.ExtContext
	userRepository ports.UserRepository
	jwtService     ports.JWTServiceInterface
	directory      ports.DirectoryClient
	sso            ports.SSOValidator
	metrics        *metrics.Metrics
	log            *zap.Logger
}

func NewAuthenticationService(
	mode string,
	database sqlx.ExtContext,
	userRepository ports.UserRepository,
	jwtService ports.JWTServiceInterface,
	directory ports.DirectoryClient,
	sso ports.SSOValidator,
	m *metrics.Metrics,
	log *zap.Logger,
) *AuthenticationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthenticationService{
		mode:           mode,
		database:       database,
		userRepository: userRepository,
		jwtService:     jwtService,
		directory:      directory,
		sso:            sso,
		metrics:        m,
		log:            log.Named("auth"),
	}
}

type authBranch struct {
	source model.AuthSource
	run    func(ctx context.Context, r *http.Request, login, password string) (*model.Principal, *model.User, error)
}

// Login : проверяет SSO токен запроса и/или учётные данные, выдаёт JWT сессии
func (s *AuthenticationService) Login(ctx context.Context, r *http.Request, login, password string) (*model.LoginResult, error) {
	branches := s.branches()
	if len(branches) == 0 {
		return nil, fmt.Errorf("[AuthService] режим %q не поддерживается: %w", s.mode, errs.ErrUnauthorized)
	}

	var (
		principal *model.Principal
		user      *model.User
	)
	for _, branch := range branches {
		p, u, err := branch.run(ctx, r, login, password)
		if err == nil {
			principal, user = p, u
			s.metrics.ObserveAuth(string(branch.source), "success")
			break
		}
		if errors.Is(err, errBranchSkipped) {
			continue
		}

		result := "failure"
		if errors.Is(err, errs.ErrUpstreamUnavailable) {
			result = "unavailable"
		}
		s.metrics.ObserveAuth(string(branch.source), result)
		s.log.Info("ветка аутентификации не прошла",
			zap.String("source", string(branch.source)),
			zap.String("login", login),
			zap.Error(err))

		// после отказа применимой ветки следующие пробуются только в hybrid
		if s.mode != config.AuthModeHybrid {
			break
		}
	}

	if principal == nil {
		return nil, fmt.Errorf("[AuthService] вход %q отклонён: %w", login, errs.ErrUnauthorized)
	}

	if user == nil {
		ensured, err := s.userRepository.EnsureExternalUser(ctx, s.database, principal)
		if err != nil {
			return nil, fmt.Errorf("[AuthService] не удалось сохранить пользователя %s: %w", principal.Username, err)
		}
		user = ensured
	}

	session, err := s.jwtService.GenerateSessionToken(user, principal)
	if err != nil {
		return nil, fmt.Errorf("[AuthService] ошибка генерации токена сессии: %w", err)
	}

	s.log.Info("пользователь вошёл",
		zap.String("username", principal.Username),
		zap.String("source", string(principal.AuthSource)),
		zap.String("role", principal.Role))

	return &model.LoginResult{User: user, Principal: principal, Session: session}, nil
}

// branches : порядок веток для режима
func (s *AuthenticationService) branches() []authBranch {
	ltpaBranch := authBranch{model.AuthSourceLTPA, s.loginLTPA}
	ldapBranch := authBranch{model.AuthSourceLDAP, s.loginLDAP}
	localBranch := authBranch{model.AuthSourceLocal, s.loginLocal}

	switch s.mode {
	case config.AuthModeLocal:
		return []authBranch{localBranch}
	case config.AuthModeLDAP:
		return []authBranch{ldapBranch}
	case config.AuthModeLTPA:
		return []authBranch{ltpaBranch, localBranch}
	case config.AuthModeLDAPLTPA:
		return []authBranch{{model.AuthSourceLDAPLTPA, s.loginLTPA}, ldapBranch}
	case config.AuthModeHybrid:
		return []authBranch{ltpaBranch, ldapBranch, localBranch}
	}
	return nil
}

// loginLTPA : SSO токен из cookie или заголовка. В ldap_ltpa пользователь обязан быть в каталоге
func (s *AuthenticationService) loginLTPA(ctx context.Context, r *http.Request, _, _ string) (*model.Principal, *model.User, error) {
	if s.sso == nil || r == nil {
		return nil, nil, errBranchSkipped
	}
	token := s.sso.TokenFromRequest(r)
	if token == "" {
		return nil, nil, errBranchSkipped
	}

	principal := s.sso.Validate(token)
	if principal == nil {
		return nil, nil, fmt.Errorf("невалидный LTPA токен: %w", errs.ErrUnauthorized)
	}
	if s.mode != config.AuthModeLDAPLTPA {
		return principal, nil, nil
	}

	if s.directory == nil {
		return nil, nil, fmt.Errorf("каталог не настроен: %w", errs.ErrUpstreamUnavailable)
	}
	exists, err := s.directory.UserExists(ctx, principal.Username)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, fmt.Errorf("пользователь %s из LTPA токена отсутствует в каталоге: %w", principal.Username, errs.ErrUnauthorized)
	}

	principal.AuthSource = model.AuthSourceLDAPLTPA
	if entry, err := s.directory.Lookup(ctx, principal.Username); err == nil {
		principal.Role = entry.Role
		principal.Groups = entry.Groups
		principal.Email = firstNonEmpty(principal.Email, entry.Email)
		if principal.DisplayName == "" || principal.DisplayName == principal.Username {
			principal.DisplayName = firstNonEmpty(entry.DisplayName, principal.DisplayName)
		}
	} else {
		s.log.Warn("не удалось прочитать группы пользователя SSO", zap.String("username", principal.Username), zap.Error(err))
	}
	return principal, nil, nil
}

func (s *AuthenticationService) loginLDAP(ctx context.Context, _ *http.Request, login, password string) (*model.Principal, *model.User, error) {
	if s.directory == nil || strings.TrimSpace(login) == "" {
		return nil, nil, errBranchSkipped
	}
	principal, err := s.directory.Authenticate(ctx, login, password)
	return principal, nil, err
}

func (s *AuthenticationService) loginLocal(ctx context.Context, _ *http.Request, login, password string) (*model.Principal, *model.User, error) {
	if strings.TrimSpace(login) == "" {
		return nil, nil, errBranchSkipped
	}

	user, err := s.userRepository.FindByLogin(ctx, s.database, login)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil, fmt.Errorf("пользователь %s не найден: %w", login, errs.ErrUnauthorized)
		}
		return nil, nil, err
	}
	if !security.CheckPassword(password, user.PasswordHash) {
		return nil, nil, fmt.Errorf("неверный пароль: %w", errs.ErrUnauthorized)
	}

	return &model.Principal{
		Username:    user.Login,
		Email:       user.Email,
		DisplayName: firstNonEmpty(user.DisplayName, user.Login),
		Role:        firstNonEmpty(user.Role, model.RoleUser),
		AuthSource:  model.AuthSourceLocal,
	}, user, nil
}
