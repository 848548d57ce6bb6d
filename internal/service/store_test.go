package service_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/model"

	"github.com/jmoiron/sqlx"
)

// fakeTx : exec транзакции. Записи хранилища регистрируют откат, который выполняется без commit
type fakeTx struct {
	mu        sync.Mutex
	undo      []func()
	committed bool
}

func (f *fakeTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (f *fakeTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (f *fakeTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return &sql.Row{}
}
func (f *fakeTx) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	return nil, nil
}
func (f *fakeTx) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	return &sqlx.Row{}
}
func (f *fakeTx) BindNamed(query string, arg interface{}) (string, []interface{}, error) {
	return "", nil, nil
}
func (f *fakeTx) DriverName() string         { return "fake" }
func (f *fakeTx) Rebind(query string) string { return query }

func (f *fakeTx) onRollback(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.undo = append(f.undo, fn)
}

func (f *fakeTx) commit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = true
	f.undo = nil
	return nil
}

func (f *fakeTx) rollback() error {
	f.mu.Lock()
	undo := f.undo
	f.undo = nil
	committed := f.committed
	f.mu.Unlock()

	if committed {
		return nil
	}
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
	return nil
}

// memStore : хранилище метаданных в памяти с откатом транзакций
type memStore struct {
	mu          sync.Mutex
	files       map[string]model.File
	locks       map[string]model.FileLock
	versions    []model.FileVersion
	users       map[string]model.User
	storageUsed map[string]int64
	audit       []model.AuditRecord
	shares      map[string]model.Permission

	failUpdateContent error
	failCreate        error
	// findByNameDelay : растягивает окно между проверкой имени и созданием файла
	findByNameDelay time.Duration
	transactions    int
}

func newMemStore() *memStore {
	return &memStore{
		files:       map[string]model.File{},
		locks:       map[string]model.FileLock{},
		users:       map[string]model.User{},
		storageUsed: map[string]int64{},
		shares:      map[string]model.Permission{},
	}
}

func (s *memStore) addFile(file model.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[file.UUID] = file
}

func (s *memStore) file(id string) model.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[id]
}

func (s *memStore) lock(id string) (model.FileLock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	return lock, ok
}

func (s *memStore) versionsOf(id string) []model.FileVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.FileVersion
	for _, v := range s.versions {
		if v.FileUUID == id {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out
}

func (s *memStore) auditActions(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.audit {
		if r.FileUUID == id {
			out = append(out, r.Action)
		}
	}
	return out
}

func (s *memStore) used(userUUID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storageUsed[userUUID]
}

func txOf(exec sqlx.ExtContext) *fakeTx {
	tx, _ := exec.(*fakeTx)
	return tx
}

// ===== FileRepository =====

func (s *memStore) BeginTX(ctx context.Context) (sqlx.ExtContext, func() error, func() error, error) {
	s.mu.Lock()
	s.transactions++
	s.mu.Unlock()
	tx := &fakeTx{}
	return tx, tx.rollback, tx.commit, nil
}

func (s *memStore) GetByUUID(ctx context.Context, exec sqlx.ExtContext, fileUUID string) (*model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[fileUUID]
	if !ok || file.DeletedAt != nil {
		return nil, fmt.Errorf("файл %s: %w", fileUUID, errs.ErrNotFound)
	}
	return &file, nil
}

func (s *memStore) GetForUpdate(ctx context.Context, exec sqlx.ExtContext, fileUUID string) (*model.File, error) {
	return s.GetByUUID(ctx, exec, fileUUID)
}

func (s *memStore) FindByName(ctx context.Context, exec sqlx.ExtContext, ownerUUID string, folderUUID *string, name string) (*model.File, error) {
	if s.findByNameDelay > 0 {
		time.Sleep(s.findByNameDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, file := range s.files {
		if file.OwnerUUID == ownerUUID && file.Name == name && file.DeletedAt == nil && file.SameFolder(folderUUID) {
			f := file
			return &f, nil
		}
	}
	return nil, nil
}

func (s *memStore) Create(ctx context.Context, exec sqlx.ExtContext, file *model.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	s.files[file.UUID] = *file
	txOf(exec).onRollback(func() { s.mu.Lock(); delete(s.files, file.UUID); s.mu.Unlock() })
	return nil
}

func (s *memStore) UpdateContent(ctx context.Context, exec sqlx.ExtContext, fileUUID, storagePath string, size, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdateContent != nil {
		return s.failUpdateContent
	}
	prev := s.files[fileUUID]
	next := prev
	next.StoragePath, next.SizeBytes, next.Version = storagePath, size, version
	s.files[fileUUID] = next
	txOf(exec).onRollback(func() { s.mu.Lock(); s.files[fileUUID] = prev; s.mu.Unlock() })
	return nil
}

func (s *memStore) Rename(ctx context.Context, exec sqlx.ExtContext, fileUUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.files[fileUUID]
	next := prev
	next.Name = name
	s.files[fileUUID] = next
	txOf(exec).onRollback(func() { s.mu.Lock(); s.files[fileUUID] = prev; s.mu.Unlock() })
	return nil
}

func (s *memStore) MarkDeleted(ctx context.Context, exec sqlx.ExtContext, fileUUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.files[fileUUID]
	next := prev
	now := time.Now()
	next.DeletedAt = &now
	s.files[fileUUID] = next
	txOf(exec).onRollback(func() { s.mu.Lock(); s.files[fileUUID] = prev; s.mu.Unlock() })
	return nil
}

// ===== LockRepository =====

type memLocks struct{ *memStore }

func (l memLocks) Get(ctx context.Context, exec sqlx.ExtContext, fileUUID string) (*model.FileLock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[fileUUID]
	if !ok {
		return nil, nil
	}
	return &lock, nil
}

func (l memLocks) Upsert(ctx context.Context, exec sqlx.ExtContext, lock *model.FileLock) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev, had := l.locks[lock.FileUUID]
	l.locks[lock.FileUUID] = *lock
	txOf(exec).onRollback(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if had {
			l.locks[lock.FileUUID] = prev
		} else {
			delete(l.locks, lock.FileUUID)
		}
	})
	return nil
}

func (l memLocks) Delete(ctx context.Context, exec sqlx.ExtContext, fileUUID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev, had := l.locks[fileUUID]
	delete(l.locks, fileUUID)
	if had {
		txOf(exec).onRollback(func() { l.mu.Lock(); l.locks[fileUUID] = prev; l.mu.Unlock() })
	}
	return nil
}

// ===== VersionRepository =====

type memVersions struct{ *memStore }

func (v memVersions) Create(ctx context.Context, exec sqlx.ExtContext, version *model.FileVersion) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, existing := range v.versions {
		if existing.FileUUID == version.FileUUID && existing.VersionNumber == version.VersionNumber {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	n := len(v.versions)
	v.versions = append(v.versions, *version)
	txOf(exec).onRollback(func() { v.mu.Lock(); v.versions = v.versions[:n]; v.mu.Unlock() })
	return nil
}

func (v memVersions) ListByFile(ctx context.Context, exec sqlx.ExtContext, fileUUID string) ([]model.FileVersion, error) {
	return v.versionsOf(fileUUID), nil
}

// ===== UserRepository =====

type memUsers struct{ *memStore }

func (u memUsers) FindByUUID(ctx context.Context, exec sqlx.ExtContext, uuid string) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[uuid]
	if !ok {
		return nil, fmt.Errorf("пользователь %s: %w", uuid, errs.ErrNotFound)
	}
	return &user, nil
}

func (u memUsers) FindByLogin(ctx context.Context, exec sqlx.ExtContext, login string) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if user.Login == login {
			found := user
			return &found, nil
		}
	}
	return nil, fmt.Errorf("пользователь %s: %w", login, errs.ErrNotFound)
}

func (u memUsers) EnsureExternalUser(ctx context.Context, exec sqlx.ExtContext, principal *model.Principal) (*model.User, error) {
	return nil, errors.New("не используется")
}

func (u memUsers) AdjustStorageUsed(ctx context.Context, exec sqlx.ExtContext, uuid string, delta int64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	prev := u.storageUsed[uuid]
	next := prev + delta
	if next < 0 {
		next = 0
	}
	u.storageUsed[uuid] = next
	txOf(exec).onRollback(func() { u.mu.Lock(); u.storageUsed[uuid] = prev; u.mu.Unlock() })
	return nil
}

// ===== AuditRepository =====

type memAudit struct{ *memStore }

func (a memAudit) Append(ctx context.Context, exec sqlx.ExtContext, record *model.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.audit)
	a.audit = append(a.audit, *record)
	txOf(exec).onRollback(func() { a.mu.Lock(); a.audit = a.audit[:n]; a.mu.Unlock() })
	return nil
}

// ===== ShareRepository =====

type memShares struct{ *memStore }

func (sh memShares) PermissionFor(ctx context.Context, exec sqlx.ExtContext, fileUUID, userUUID string) (model.Permission, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	file, ok := sh.files[fileUUID]
	if !ok {
		return "", nil
	}
	if file.OwnerUUID == userUUID {
		return model.PermissionEdit, nil
	}
	return sh.shares[fileUUID+"/"+userUUID], nil
}

// ===== BlobStorage =====

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut error
	puts    int
	deletes []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (b *memBlobs) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, 0, fmt.Errorf("объект %s: %w", key, errs.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (b *memBlobs) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	if b.failPut != nil {
		return b.failPut
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size %d != %d", size, len(data))
	}
	b.objects[key] = data
	return nil
}

func (b *memBlobs) DeleteObject(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deletes = append(b.deletes, key)
	return nil
}

func (b *memBlobs) object(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return data, ok
}

// ===== CacheRepository =====

type memCache struct {
	mu    sync.Mutex
	files map[string]model.File
	gets  int
}

func newMemCache() *memCache {
	return &memCache{files: map[string]model.File{}}
}

func (c *memCache) SetFile(ctx context.Context, file *model.File) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[file.UUID] = *file
	return nil
}

func (c *memCache) GetFile(ctx context.Context, uuid string) (*model.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	file, ok := c.files[uuid]
	if !ok {
		return nil, nil
	}
	return &file, nil
}

func (c *memCache) DeleteFile(ctx context.Context, uuid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, uuid)
	return nil
}

func (c *memCache) has(uuid string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.files[uuid]
	return ok
}

func (c *memCache) GetDiscovery(ctx context.Context) ([]byte, time.Time, error) {
	return nil, time.Time{}, errs.ErrNotFound
}

func (c *memCache) SetDiscovery(ctx context.Context, raw []byte, fetchedAt time.Time, ttl time.Duration) error {
	return nil
}

func (c *memCache) DeleteDiscovery(ctx context.Context) error { return nil }

// ===== AccessTokenMinter =====

type fakeMinter struct {
	ttl time.Duration
}

func (m fakeMinter) Mint(fileUUID, userUUID string, permission model.Permission) (string, error) {
	return fmt.Sprintf("tok:%s:%s:%s", fileUUID, userUUID, permission), nil
}

func (m fakeMinter) TTL() time.Duration { return m.ttl }
