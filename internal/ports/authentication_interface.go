package ports

import (
	"context"
	"net/http"
	"wopi-gateway/internal/model"
)

type AuthenticationService interface {
	Login(ctx context.Context, r *http.Request, login, password string) (*model.LoginResult, error)
}

// DirectoryClient : каталог LDAP
type DirectoryClient interface {
	Authenticate(ctx context.Context, username, password string) (*model.Principal, error)
	UserExists(ctx context.Context, username string) (bool, error)
	Lookup(ctx context.Context, username string) (*model.Principal, error)
}

// SSOValidator : LTPA токены из запроса
type SSOValidator interface {
	TokenFromRequest(r *http.Request) string
	Validate(tokenB64 string) *model.Principal
}

// EditorURLBuilder : discovery клиент
type EditorURLBuilder interface {
	BuildEditorURL(ctx context.Context, fileUUID, fileName, accessToken string, permission model.Permission) (string, error)
	ClearCache(ctx context.Context) error
}
