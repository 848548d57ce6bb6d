package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"
	"wopi-gateway/config"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/model"
	"wopi-gateway/internal/ports"
	"wopi-gateway/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Действия журнала аудита
const (
	AuditPutFile         = "PUT_FILE"
	AuditLock            = "LOCK"
	AuditRefreshLock     = "REFRESH_LOCK"
	AuditUnlockAndRelock = "UNLOCK_AND_RELOCK"
	AuditUnlock          = "UNLOCK"
	AuditPutRelative     = "PUT_RELATIVE"
	AuditRename          = "RENAME_FILE"
	AuditDelete          = "DELETE"
)

const defaultLockTTL = 30 * time.Minute

// WOPIRepositories : хранилище метаданных, с которым работает движок
type WOPIRepositories struct {
	Files    ports.FileRepository
	Locks    ports.LockRepository
	Versions ports.VersionRepository
	Users    ports.UserRepository
	Audit    ports.AuditRepository
	Cache    ports.CacheRepository
}

// WOPIService : машина состояний блокировок и цепочка версий файла.
// Все изменения одного файла идут под keyed mutex и в транзакции с SELECT ... FOR UPDATE
type WOPIService struct {
	files    ports.FileRepository
	locks    ports.LockRepository
	versions ports.VersionRepository
	users    ports.UserRepository
	audit    ports.AuditRepository
	cache    ports.CacheRepository

	storage     ports.BlobStorage
	tokens      ports.AccessTokenMinter
	fileLocks   *util.KeyedMutex
	nameLocks   *util.KeyedMutex
	lockTTL     time.Duration
	wopiBaseURL string
	now         func() time.Time
	log         *zap.Logger
}

func NewWOPIService(
	repositories WOPIRepositories,
	storage ports.BlobStorage,
	tokens ports.AccessTokenMinter,
	cfg *config.WOPIConfig,
	wopiBaseURL string,
	log *zap.Logger,
) *WOPIService {
	if log == nil {
		log = zap.NewNop()
	}
	lockTTL := defaultLockTTL
	if cfg != nil && cfg.LockTTL > 0 {
		lockTTL = cfg.LockTTL
	}

	return &WOPIService{
		files:       repositories.Files,
		locks:       repositories.Locks,
		versions:    repositories.Versions,
		users:       repositories.Users,
		audit:       repositories.Audit,
		cache:       repositories.Cache,
		storage:     storage,
		tokens:      tokens,
		fileLocks:   util.NewKeyedMutex(),
		nameLocks:   util.NewKeyedMutex(),
		lockTTL:     lockTTL,
		wopiBaseURL: strings.TrimRight(wopiBaseURL, "/"),
		now:         time.Now,
		log:         log.Named("wopi"),
	}
}

// WithClock : подменяет источник времени (для тестов)
func (s *WOPIService) WithClock(now func() time.Time) *WOPIService {
	s.now = now
	return s
}

// CheckFileInfo : метаданные файла, права из токена и текущая блокировка
func (s *WOPIService) CheckFileInfo(ctx context.Context, token *model.AccessToken) (*model.FileInfo, error) {
	file, err := s.loadFile(ctx, token.FileUUID)
	if err != nil {
		return nil, err
	}

	info := &model.FileInfo{
		File:             file,
		UserUUID:         token.UserUUID,
		UserFriendlyName: token.UserUUID,
		Permission:       token.Permission,
		IsOwner:          file.OwnerUUID == token.UserUUID,
	}

	err = s.inTx(ctx, func(exec sqlx.ExtContext) error {
		lock, err := s.locks.Get(ctx, exec, file.UUID)
		if err != nil {
			return err
		}
		if lock.IsLive(s.now()) {
			info.LockValue = lock.LockValue
		}

		user, err := s.users.FindByUUID(ctx, exec, token.UserUUID)
		switch {
		case errors.Is(err, errs.ErrNotFound):
			return nil
		case err != nil:
			return err
		}
		info.UserFriendlyName = firstNonEmpty(user.DisplayName, user.Login, user.UUID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("[WOPIService] CheckFileInfo %s: %w", file.UUID, err)
	}

	return info, nil
}

// GetFile : текущее содержимое файла
func (s *WOPIService) GetFile(ctx context.Context, token *model.AccessToken) (*model.FileContent, error) {
	file, err := s.loadFile(ctx, token.FileUUID)
	if err != nil {
		return nil, err
	}

	content := &model.FileContent{Name: file.Name, Version: file.Version}
	if file.StoragePath == "" {
		content.Body = io.NopCloser(bytes.NewReader(nil))
		return content, nil
	}

	body, size, err := s.storage.GetObject(ctx, file.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("[WOPIService] не удалось прочитать содержимое %s: %w", file.UUID, err)
	}
	content.Body = body
	content.Size = size
	return content, nil
}

// PutFile : снимок текущего содержимого, запись нового объекта, версия +1
func (s *WOPIService) PutFile(ctx context.Context, token *model.AccessToken, lockValue string, body io.Reader) (*model.PutFileResult, error) {
	if !token.Permission.CanWrite() {
		return nil, fmt.Errorf("[WOPIService] PutFile с правом %s: %w", token.Permission, errs.ErrForbidden)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("[WOPIService] не удалось прочитать тело запроса: %w", err)
	}

	version, err := s.replaceContent(ctx, token.FileUUID, token.UserUUID, lockValue, data, AuditPutFile)
	if err != nil {
		return nil, err
	}
	return &model.PutFileResult{Version: version}, nil
}

// Lock : создаёт блокировку, продлевает свою или, при oldLockValue, меняет значение (UnlockAndRelock)
func (s *WOPIService) Lock(ctx context.Context, token *model.AccessToken, lockValue, oldLockValue string) (*model.LockResult, error) {
	if !token.Permission.CanWrite() {
		return nil, fmt.Errorf("[WOPIService] Lock с правом %s: %w", token.Permission, errs.ErrForbidden)
	}
	if lockValue == "" {
		return nil, fmt.Errorf("[WOPIService] пустое значение блокировки: %w", errs.ErrMalformed)
	}

	var result *model.LockResult
	err := s.mutate(ctx, token.FileUUID, func(exec sqlx.ExtContext, file *model.File, current *model.FileLock) error {
		now := s.now()
		live := current.IsLive(now)
		action := AuditLock

		switch {
		case oldLockValue != "":
			if !live || current.LockValue != oldLockValue {
				return lockConflict(current, now, "старое значение блокировки не совпадает")
			}
			action = AuditUnlockAndRelock
		case live && current.LockValue != lockValue:
			return lockConflict(current, now, "файл заблокирован другим значением")
		case live:
			action = AuditRefreshLock
		}

		if err := s.locks.Upsert(ctx, exec, &model.FileLock{
			FileUUID:  file.UUID,
			LockValue: lockValue,
			LockedBy:  token.UserUUID,
			ExpiresAt: now.Add(s.lockTTL),
		}); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, exec, file.UUID, token.UserUUID, action, util.Redact(lockValue)); err != nil {
			return err
		}

		result = &model.LockResult{LockValue: lockValue, Version: file.Version}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("блокировка установлена",
		zap.String("file_uuid", token.FileUUID),
		zap.String("lock", util.Redact(lockValue)),
		zap.Bool("relock", oldLockValue != ""))
	return result, nil
}

// GetLock : значение живой блокировки или пустая строка
func (s *WOPIService) GetLock(ctx context.Context, token *model.AccessToken) (*model.LockResult, error) {
	result := &model.LockResult{}
	err := s.inTx(ctx, func(exec sqlx.ExtContext) error {
		file, err := s.files.GetByUUID(ctx, exec, token.FileUUID)
		if err != nil {
			return err
		}
		result.Version = file.Version

		lock, err := s.locks.Get(ctx, exec, file.UUID)
		if err != nil {
			return err
		}
		if lock.IsLive(s.now()) {
			result.LockValue = lock.LockValue
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("[WOPIService] GetLock %s: %w", token.FileUUID, err)
	}
	return result, nil
}

// RefreshLock : продлевает живую блокировку с тем же значением
func (s *WOPIService) RefreshLock(ctx context.Context, token *model.AccessToken, lockValue string) (*model.LockResult, error) {
	if !token.Permission.CanWrite() {
		return nil, fmt.Errorf("[WOPIService] RefreshLock с правом %s: %w", token.Permission, errs.ErrForbidden)
	}

	var result *model.LockResult
	err := s.mutate(ctx, token.FileUUID, func(exec sqlx.ExtContext, file *model.File, current *model.FileLock) error {
		now := s.now()
		if !current.IsLive(now) || current.LockValue != lockValue {
			return lockConflict(current, now, "нет блокировки с таким значением")
		}

		current.ExpiresAt = now.Add(s.lockTTL)
		if err := s.locks.Upsert(ctx, exec, current); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, exec, file.UUID, token.UserUUID, AuditRefreshLock, util.Redact(lockValue)); err != nil {
			return err
		}

		result = &model.LockResult{LockValue: lockValue, Version: file.Version}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Unlock : снимает блокировку с тем же значением. Без живой блокировки ничего не делает
func (s *WOPIService) Unlock(ctx context.Context, token *model.AccessToken, lockValue string) (*model.LockResult, error) {
	if !token.Permission.CanWrite() {
		return nil, fmt.Errorf("[WOPIService] Unlock с правом %s: %w", token.Permission, errs.ErrForbidden)
	}

	var result *model.LockResult
	err := s.mutate(ctx, token.FileUUID, func(exec sqlx.ExtContext, file *model.File, current *model.FileLock) error {
		now := s.now()
		result = &model.LockResult{Version: file.Version}

		if !current.IsLive(now) {
			if current == nil {
				return nil
			}
			// просроченная строка больше не нужна
			return s.locks.Delete(ctx, exec, file.UUID)
		}
		if current.LockValue != lockValue {
			return lockConflict(current, now, "файл заблокирован другим значением")
		}

		if err := s.locks.Delete(ctx, exec, file.UUID); err != nil {
			return err
		}
		return s.appendAudit(ctx, exec, file.UUID, token.UserUUID, AuditUnlock, util.Redact(lockValue))
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PutRelative : "Сохранить как" рядом с исходным файлом
func (s *WOPIService) PutRelative(ctx context.Context, token *model.AccessToken, req *model.PutRelativeRequest, body io.Reader) (*model.PutRelativeResult, error) {
	if !token.Permission.CanWrite() {
		return nil, fmt.Errorf("[WOPIService] PutRelative с правом %s: %w", token.Permission, errs.ErrForbidden)
	}

	var source *model.File
	if err := s.inTx(ctx, func(exec sqlx.ExtContext) error {
		var err error
		source, err = s.files.GetByUUID(ctx, exec, token.FileUUID)
		return err
	}); err != nil {
		return nil, fmt.Errorf("[WOPIService] PutRelative %s: %w", token.FileUUID, err)
	}

	name, err := resolveRelativeTarget(source.Name, req.SuggestedTarget, req.RelativeTarget)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("[WOPIService] не удалось прочитать тело запроса: %w", err)
	}
	if req.Size > 0 && int64(len(data)) != req.Size {
		return nil, fmt.Errorf("[WOPIService] X-WOPI-Size %d, получено %d байт: %w", req.Size, len(data), errs.ErrMalformed)
	}

	// проверка имени и создание файла под одним ключом, иначе два "Сохранить как" создадут дубликаты
	unlockName := s.nameLocks.Lock(nameKey(source, name))
	defer unlockName()

	var existing *model.File
	if err := s.inTx(ctx, func(exec sqlx.ExtContext) error {
		found, err := s.files.FindByName(ctx, exec, source.OwnerUUID, source.FolderUUID, name)
		if err != nil {
			return err
		}
		existing = found
		if existing == nil || req.Overwrite {
			return nil
		}
		alternate, err := s.freeName(ctx, exec, source, name)
		if err != nil {
			return err
		}
		return &errs.NameConflictError{ValidTarget: alternate}
	}); err != nil {
		return nil, err
	}

	var target *model.File
	if existing != nil {
		// перезапись цели идёт тем же путём, что и PutFile, и уважает её блокировку
		if _, err := s.replaceContent(ctx, existing.UUID, token.UserUUID, "", data, AuditPutRelative); err != nil {
			return nil, err
		}
		target = existing
	} else {
		target, err = s.createFile(ctx, source, name, token.UserUUID, data)
		if err != nil {
			return nil, err
		}
	}

	accessToken, err := s.tokens.Mint(target.UUID, token.UserUUID, token.Permission)
	if err != nil {
		return nil, fmt.Errorf("[WOPIService] не удалось выпустить токен для %s: %w", target.UUID, err)
	}

	s.log.Info("файл сохранён как новый",
		zap.String("source_uuid", source.UUID),
		zap.String("target_uuid", target.UUID),
		zap.Bool("overwrite", existing != nil))

	return &model.PutRelativeResult{
		File:        target,
		Name:        name,
		URL:         s.fileURL(target.UUID, accessToken),
		AccessToken: accessToken,
	}, nil
}

// RenameFile : переименование на месте, блокировки и версии не меняются.
// Возвращает новое имя без расширения
func (s *WOPIService) RenameFile(ctx context.Context, token *model.AccessToken, lockValue, requestedName string) (string, error) {
	var newName string
	err := s.mutate(ctx, token.FileUUID, func(exec sqlx.ExtContext, file *model.File, current *model.FileLock) error {
		if !ownsFile(token, file) {
			return fmt.Errorf("переименовать файл может только владелец: %w", errs.ErrForbidden)
		}
		now := s.now()
		if current.IsLive(now) && current.LockValue != lockValue {
			return lockConflict(current, now, "файл заблокирован другим значением")
		}

		name, err := renameTarget(file.Name, requestedName)
		if err != nil {
			return err
		}
		if name != file.Name {
			other, err := s.files.FindByName(ctx, exec, file.OwnerUUID, file.FolderUUID, name)
			if err != nil {
				return err
			}
			if other != nil && other.UUID != file.UUID {
				alternate, err := s.freeName(ctx, exec, file, name)
				if err != nil {
					return err
				}
				return &errs.NameConflictError{ValidTarget: alternate}
			}
			if err := s.files.Rename(ctx, exec, file.UUID, name); err != nil {
				return err
			}
		}
		if err := s.appendAudit(ctx, exec, file.UUID, token.UserUUID, AuditRename, file.Name+" -> "+name); err != nil {
			return err
		}

		newName = baseName(name)
		return nil
	})
	if err != nil {
		return "", err
	}
	return newName, nil
}

// DeleteFile : логическое удаление. Заблокированный файл не удаляется
func (s *WOPIService) DeleteFile(ctx context.Context, token *model.AccessToken) error {
	return s.mutate(ctx, token.FileUUID, func(exec sqlx.ExtContext, file *model.File, current *model.FileLock) error {
		if !ownsFile(token, file) {
			return fmt.Errorf("удалить файл может только владелец: %w", errs.ErrForbidden)
		}
		now := s.now()
		if current.IsLive(now) {
			return lockConflict(current, now, "файл заблокирован")
		}

		if err := s.files.MarkDeleted(ctx, exec, file.UUID); err != nil {
			return err
		}
		return s.appendAudit(ctx, exec, file.UUID, token.UserUUID, AuditDelete, file.Name)
	})
}

// replaceContent : общий путь PutFile и перезаписи при PUT_RELATIVE.
// Снимок ссылается на прежний объект, новые байты пишутся под новым ключом
func (s *WOPIService) replaceContent(ctx context.Context, fileUUID, userUUID, lockValue string, data []byte, action string) (int64, error) {
	var (
		newVersion int64
		newKey     string
	)

	err := s.mutate(ctx, fileUUID, func(exec sqlx.ExtContext, file *model.File, current *model.FileLock) error {
		now := s.now()
		if current.IsLive(now) && current.LockValue != lockValue {
			return lockConflict(current, now, "блокировка не совпадает")
		}

		if err := s.versions.Create(ctx, exec, &model.FileVersion{
			FileUUID:      file.UUID,
			VersionNumber: file.Version,
			SizeBytes:     file.SizeBytes,
			ContentRef:    file.StoragePath,
			CreatedBy:     userUUID,
		}); err != nil {
			return err
		}

		newVersion = file.Version + 1
		newKey = objectKey(file.UUID, newVersion)
		size := int64(len(data))
		if err := s.storage.PutObject(ctx, newKey, bytes.NewReader(data), size, contentType(file)); err != nil {
			newKey = ""
			return err
		}

		if err := s.files.UpdateContent(ctx, exec, file.UUID, newKey, size, newVersion); err != nil {
			return err
		}
		if err := s.users.AdjustStorageUsed(ctx, exec, file.OwnerUUID, size-file.SizeBytes); err != nil {
			return err
		}
		return s.appendAudit(ctx, exec, file.UUID, userUUID, action, fmt.Sprintf("v%d, %d байт", newVersion, size))
	})
	if err != nil {
		if newKey != "" {
			s.discardObject(newKey)
		}
		return 0, err
	}

	s.log.Info("содержимое файла обновлено",
		zap.String("file_uuid", fileUUID),
		zap.Int64("version", newVersion),
		zap.Int("size", len(data)))
	return newVersion, nil
}

func (s *WOPIService) createFile(ctx context.Context, source *model.File, name, userUUID string, data []byte) (*model.File, error) {
	size := int64(len(data))
	file := &model.File{
		UUID:       uuid.NewString(),
		OwnerUUID:  source.OwnerUUID,
		FolderUUID: source.FolderUUID,
		Name:       name,
		SizeBytes:  size,
		Version:    1,
	}
	file.MimeType = contentType(file)
	file.StoragePath = objectKey(file.UUID, file.Version)

	if err := s.storage.PutObject(ctx, file.StoragePath, bytes.NewReader(data), size, file.MimeType); err != nil {
		return nil, fmt.Errorf("[WOPIService] не удалось записать содержимое нового файла: %w", err)
	}

	err := s.inTx(ctx, func(exec sqlx.ExtContext) error {
		if err := s.files.Create(ctx, exec, file); err != nil {
			return err
		}
		if err := s.users.AdjustStorageUsed(ctx, exec, file.OwnerUUID, size); err != nil {
			return err
		}
		return s.appendAudit(ctx, exec, file.UUID, userUUID, AuditPutRelative, "из "+source.UUID)
	})
	if err != nil {
		s.discardObject(file.StoragePath)

		// имя занял другой экземпляр шлюза, уникальный индекс это поймал
		var nameConflict *errs.NameConflictError
		if errors.As(err, &nameConflict) && nameConflict.ValidTarget == "" {
			return nil, s.nameConflict(ctx, source, name)
		}
		return nil, fmt.Errorf("[WOPIService] не удалось создать файл %s: %w", name, err)
	}
	return file, nil
}

// nameConflict : NameConflictError со свободным именем рядом с source
func (s *WOPIService) nameConflict(ctx context.Context, source *model.File, name string) error {
	var alternate string
	if err := s.inTx(ctx, func(exec sqlx.ExtContext) error {
		var err error
		alternate, err = s.freeName(ctx, exec, source, name)
		return err
	}); err != nil {
		return fmt.Errorf("[WOPIService] имя %s занято: %w", name, err)
	}
	return &errs.NameConflictError{ValidTarget: alternate}
}

// nameKey : ключ имени файла в папке владельца
func nameKey(file *model.File, name string) string {
	folder := ""
	if file.FolderUUID != nil {
		folder = *file.FolderUUID
	}
	return file.OwnerUUID + "/" + folder + "/" + name
}

// mutate : keyed mutex на файл + транзакция с блокировкой строки. Кэш метаданных сбрасывается после коммита
func (s *WOPIService) mutate(ctx context.Context, fileUUID string, fn func(exec sqlx.ExtContext, file *model.File, current *model.FileLock) error) error {
	unlock := s.fileLocks.Lock(fileUUID)
	defer unlock()

	err := s.inTx(ctx, func(exec sqlx.ExtContext) error {
		file, err := s.files.GetForUpdate(ctx, exec, fileUUID)
		if err != nil {
			return err
		}
		current, err := s.locks.Get(ctx, exec, fileUUID)
		if err != nil {
			return err
		}
		return fn(exec, file, current)
	})
	if err != nil {
		var conflict *errs.LockConflictError
		if errors.As(err, &conflict) {
			s.log.Info("конфликт блокировки",
				zap.String("file_uuid", fileUUID),
				zap.String("current_lock", util.Redact(conflict.CurrentLock)),
				zap.String("reason", conflict.Reason))
		}
		return fmt.Errorf("[WOPIService] файл %s: %w", fileUUID, err)
	}

	if s.cache != nil {
		if err := s.cache.DeleteFile(ctx, fileUUID); err != nil {
			s.log.Warn("не удалось сбросить кэш файла", zap.String("file_uuid", fileUUID), zap.Error(err))
		}
	}
	return nil
}

func (s *WOPIService) inTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	exec, rollback, commit, err := s.files.BeginTX(ctx)
	if err != nil {
		return fmt.Errorf("не удалось начать транзакцию: %w", err)
	}
	defer rollback()

	if err := fn(exec); err != nil {
		return err
	}
	if err := commit(); err != nil {
		return fmt.Errorf("не удалось закоммитить транзакцию: %w", err)
	}
	return nil
}

// loadFile : метаданные из Redis, при промахе из БД с записью в кэш
func (s *WOPIService) loadFile(ctx context.Context, fileUUID string) (*model.File, error) {
	if s.cache != nil {
		file, err := s.cache.GetFile(ctx, fileUUID)
		if err != nil {
			s.log.Warn("ошибка чтения кэша", zap.String("file_uuid", fileUUID), zap.Error(err))
		}
		if file != nil {
			return file, nil
		}
	}

	var file *model.File
	if err := s.inTx(ctx, func(exec sqlx.ExtContext) error {
		var err error
		file, err = s.files.GetByUUID(ctx, exec, fileUUID)
		return err
	}); err != nil {
		return nil, fmt.Errorf("[WOPIService] файл %s: %w", fileUUID, err)
	}

	if s.cache != nil {
		if err := s.cache.SetFile(ctx, file); err != nil {
			s.log.Warn("не удалось закэшировать файл", zap.String("file_uuid", fileUUID), zap.Error(err))
		}
	}
	return file, nil
}

// freeName : первое свободное имя вида "name (n).ext" в папке файла
func (s *WOPIService) freeName(ctx context.Context, exec sqlx.ExtContext, file *model.File, name string) (string, error) {
	for n := 1; n <= maxAlternateNames; n++ {
		candidate := alternateName(name, n)
		other, err := s.files.FindByName(ctx, exec, file.OwnerUUID, file.FolderUUID, candidate)
		if err != nil {
			return "", err
		}
		if other == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("не найдено свободное имя для %q: %w", name, errs.ErrConflict)
}

func (s *WOPIService) appendAudit(ctx context.Context, exec sqlx.ExtContext, fileUUID, userUUID, action, detail string) error {
	return s.audit.Append(ctx, exec, &model.AuditRecord{
		UUID:     uuid.NewString(),
		FileUUID: fileUUID,
		UserUUID: userUUID,
		Action:   action,
		Detail:   detail,
	})
}

// discardObject : объект, на который не ссылается ни одна строка
func (s *WOPIService) discardObject(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.storage.DeleteObject(ctx, key); err != nil {
		s.log.Warn("не удалось удалить неиспользуемый объект", zap.String("key", key), zap.Error(err))
	}
}

func (s *WOPIService) fileURL(fileUUID, accessToken string) string {
	return s.wopiBaseURL + "/wopi/files/" + url.PathEscape(fileUUID) + "?access_token=" + url.QueryEscape(accessToken)
}

func lockConflict(current *model.FileLock, now time.Time, reason string) error {
	conflict := &errs.LockConflictError{Reason: reason}
	if current.IsLive(now) {
		conflict.CurrentLock = current.LockValue
	}
	return conflict
}

// ownsFile : владелец или токен с правом admin
func ownsFile(token *model.AccessToken, file *model.File) bool {
	return file.OwnerUUID == token.UserUUID || token.Permission == model.PermissionAdmin
}

func objectKey(fileUUID string, version int64) string {
	return fmt.Sprintf("files/%s/v%d", fileUUID, version)
}

func contentType(file *model.File) string {
	if file.MimeType != "" {
		return file.MimeType
	}
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(file.Name))); t != "" {
		return t
	}
	return "application/octet-stream"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
