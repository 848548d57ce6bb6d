package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"wopi-gateway/config"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const userColumns = `uuid, login, email, display_name, password_hash, role, auth_source, storage_used, created_at`

type UserRepository struct {
	*config.Database
}

func NewUserRepository(database *config.Database) *UserRepository {
	return &UserRepository{database}
}

// FindByUUID : ищет пользователя по UUID
func (r *UserRepository) FindByUUID(ctx context.Context, exec sqlx.ExtContext, uuid string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE uuid = $1`
	return r.findOne(ctx, exec, query, uuid)
}

// FindByLogin : ищет пользователя по login
func (r *UserRepository) FindByLogin(ctx context.Context, exec sqlx.ExtContext, login string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE login = $1`
	return r.findOne(ctx, exec, query, login)
}

// EnsureExternalUser : заводит или обновляет пользователя, подтверждённого каталогом или SSO.
// Пароль внешним пользователям не хранится
func (r *UserRepository) EnsureExternalUser(ctx context.Context, exec sqlx.ExtContext, principal *model.Principal) (*model.User, error) {
	query := `
		INSERT INTO users (uuid, login, email, display_name, password_hash, role, auth_source)
		VALUES ($1, $2, $3, $4, '', $5, $6)
		ON CONFLICT (login) DO UPDATE
		SET email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
		    display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), users.display_name),
		    role = EXCLUDED.role,
		    auth_source = EXCLUDED.auth_source
		RETURNING ` + userColumns

	var user model.User
	err := sqlx.GetContext(ctx, exec, &user, query,
		uuid.NewString(),
		principal.Username,
		principal.Email,
		principal.DisplayName,
		principal.Role,
		string(principal.AuthSource),
	)
	if err != nil {
		return nil, util.LogError("[UserRepo] не удалось сохранить внешнего пользователя", err)
	}
	return &user, nil
}

// AdjustStorageUsed : счётчик занятого места не уходит ниже нуля
func (r *UserRepository) AdjustStorageUsed(ctx context.Context, exec sqlx.ExtContext, uuid string, delta int64) error {
	query := `UPDATE users SET storage_used = GREATEST(storage_used + $2, 0) WHERE uuid = $1`
	if _, err := exec.ExecContext(ctx, query, uuid, delta); err != nil {
		return util.LogError("[UserRepo] не удалось обновить занятое место", err)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, exec sqlx.ExtContext, query, arg string) (*model.User, error) {
	var user model.User
	err := sqlx.GetContext(ctx, exec, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("пользователь %s: %w", arg, errs.ErrNotFound)
	}
	if err != nil {
		return nil, util.LogError("[UserRepo] не удалось найти пользователя в БД", err)
	}
	return &user, nil
}
