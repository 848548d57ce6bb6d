package service

import (
	"context"
	"fmt"
	"time"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/ports"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// EditorService : право пользователя на файл -> access token -> ссылка на редактор
type EditorService struct {
	files     ports.FileRepository
	shares    ports.ShareRepository
	tokens    ports.AccessTokenMinter
	discovery ports.EditorURLBuilder
	now       func() time.Time
	log       *zap.Logger
}

func NewEditorService(
	files ports.FileRepository,
	shares ports.ShareRepository,
	tokens ports.AccessTokenMinter,
	discovery ports.EditorURLBuilder,
	log *zap.Logger,
) *EditorService {
	if log == nil {
		log = zap.NewNop()
	}
	return &EditorService{
		files:     files,
		shares:    shares,
		tokens:    tokens,
		discovery: discovery,
		now:       time.Now,
		log:       log.Named("editor"),
	}
}

// OpenEditor : ссылка для iframe. Право берётся из хранилища, а не из запроса
func (s *EditorService) OpenEditor(ctx context.Context, userUUID, fileUUID string) (*model.EditorSession, error) {
	var (
		file       *model.File
		permission model.Permission
	)

	exec, rollback, commit, err := s.files.BeginTX(ctx)
	if err != nil {
		return nil, fmt.Errorf("[EditorService] не удалось начать транзакцию: %w", err)
	}
	defer rollback()

	file, permission, err = s.resolve(ctx, exec, userUUID, fileUUID)
	if err != nil {
		return nil, err
	}
	if err := commit(); err != nil {
		return nil, fmt.Errorf("[EditorService] не удалось закоммитить транзакцию: %w", err)
	}

	issuedAt := s.now()
	accessToken, err := s.tokens.Mint(file.UUID, userUUID, permission)
	if err != nil {
		return nil, fmt.Errorf("[EditorService] не удалось выпустить access token: %w", err)
	}

	editorURL, err := s.discovery.BuildEditorURL(ctx, file.UUID, file.Name, accessToken, permission)
	if err != nil {
		return nil, fmt.Errorf("[EditorService] не удалось построить ссылку на редактор: %w", err)
	}

	s.log.Info("открыт редактор",
		zap.String("file_uuid", file.UUID),
		zap.String("user_uuid", userUUID),
		zap.String("permission", string(permission)))

	return &model.EditorSession{
		URL:         editorURL,
		AccessToken: accessToken,
		ExpiresAt:   issuedAt.Add(s.tokens.TTL()),
		Permission:  permission,
	}, nil
}

// ClearDiscoveryCache : сброс кэша discovery оператором
func (s *EditorService) ClearDiscoveryCache(ctx context.Context) error {
	if err := s.discovery.ClearCache(ctx); err != nil {
		return fmt.Errorf("[EditorService] не удалось сбросить кэш discovery: %w", err)
	}
	s.log.Info("кэш discovery сброшен")
	return nil
}

func (s *EditorService) resolve(ctx context.Context, exec sqlx.ExtContext, userUUID, fileUUID string) (*model.File, model.Permission, error) {
	file, err := s.files.GetByUUID(ctx, exec, fileUUID)
	if err != nil {
		return nil, "", fmt.Errorf("[EditorService] файл %s: %w", fileUUID, err)
	}

	permission, err := s.shares.PermissionFor(ctx, exec, fileUUID, userUUID)
	if err != nil {
		return nil, "", fmt.Errorf("[EditorService] не удалось проверить доступ: %w", err)
	}
	if permission == "" {
		return nil, "", fmt.Errorf("[EditorService] нет доступа к файлу %s: %w", fileUUID, errs.ErrForbidden)
	}
	return file, permission, nil
}
