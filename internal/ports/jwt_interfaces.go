package ports

import (
	"time"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/security"
)

type JWTServiceInterface interface {
	GenerateSessionToken(user *model.User, principal *model.Principal) (*model.SessionToken, error)
	ValidateJWT(tokenString string) (*security.Claims, error)
}

// AccessTokenMinter : выпуск WOPI access token
type AccessTokenMinter interface {
	Mint(fileUUID, userUUID string, permission model.Permission) (string, error)
	TTL() time.Duration
}
