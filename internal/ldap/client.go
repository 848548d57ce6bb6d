// Package ldap : клиент каталога для проверки учётных данных и членства в группах.
// Поддерживает OpenLDAP-подобные каталоги, Active Directory и каталоги с плоским пространством имён.
package ldap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"
	"wopi-gateway/config"
	"wopi-gateway/internal/errs"
	"wopi-gateway/internal/model"

	goldap "github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// conn : то, что клиенту нужно от соединения с каталогом
type conn interface {
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	Search(req *goldap.SearchRequest) (*goldap.SearchResult, error)
	Close()
}

type dialFunc func(ctx context.Context) (conn, error)

// Client : каждое обращение открывает своё соединение, общего состояния нет
type Client struct {
	cfg     config.LDAPConfig
	filter  string
	baseDN  string
	timeout time.Duration
	dial    dialFunc
	log     *zap.Logger
}

func NewClient(cfg config.LDAPConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ldap")

	filter, changed := SanitizeFilter(cfg.UserFilter)
	if changed {
		log.Warn("фильтр LDAP исправлен", zap.String("configured", cfg.UserFilter), zap.String("effective", filter))
	}
	if _, err := goldap.CompileFilter(BuildFilter(filter, "username")); err != nil {
		log.Error("фильтр LDAP не компилируется, используется фильтр по умолчанию",
			zap.String("filter", filter), zap.Error(err))
		filter = defaultUserFilter
	}

	baseDN, changed := SanitizeBaseDN(cfg.BaseDN)
	if changed {
		log.Warn("base DN исправлен", zap.String("configured", cfg.BaseDN), zap.String("effective", baseDN))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		cfg:     cfg,
		filter:  filter,
		baseDN:  baseDN,
		timeout: timeout,
		log:     log,
	}
	c.dial = c.dialDirectory
	return c
}

// Filter : действующий шаблон фильтра после исправлений
func (c *Client) Filter() string {
	return c.filter
}

// Authenticate : сервисный bind, поиск единственной записи, bind от имени найденного DN.
// Неверный пароль, ноль или несколько записей дают errs.ErrUnauthorized,
// недоступность каталога даёт errs.ErrUpstreamUnavailable
func (c *Client) Authenticate(ctx context.Context, username, password string) (*model.Principal, error) {
	log := c.log.With(zap.String("username", username))
	if strings.TrimSpace(username) == "" || password == "" {
		// пустой пароль превращает bind в анонимный, который каталог примет
		log.Info("пустое имя или пароль, bind не выполняется")
		return nil, errs.ErrUnauthorized
	}

	var principal *model.Principal
	err := c.withConn(ctx, func(cn conn) error {
		entry, err := c.findUser(cn, username, log)
		if err != nil {
			return err
		}

		if err := cn.Bind(entry.DN, password); err != nil {
			if goldap.IsErrorWithCode(err, goldap.LDAPResultInvalidCredentials) {
				log.Info("неверный пароль", zap.String("dn", entry.DN))
				return errs.ErrUnauthorized
			}
			log.Warn("ошибка bind пользователя", zap.String("dn", entry.DN), zap.Error(err))
			return classify(err)
		}
		log.Debug("bind пользователя успешен", zap.String("dn", entry.DN))

		// после bind пользователя права на чтение групп могут отличаться, перечитываем сервисной учёткой
		if err := c.serviceBind(cn); err != nil {
			log.Warn("повторный сервисный bind не удался, группы берутся из записи", zap.Error(err))
			principal = c.principalFrom(entry, username, groupsFromEntry(entry))
			return nil
		}
		principal = c.principalFrom(entry, username, c.collectGroups(cn, entry, username, log))
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("пользователь аутентифицирован в каталоге", zap.String("role", principal.Role))
	return principal, nil
}

// UserExists : поиск без пароля, нужен для подтверждения SSO входа
func (c *Client) UserExists(ctx context.Context, username string) (bool, error) {
	log := c.log.With(zap.String("username", username))
	err := c.withConn(ctx, func(cn conn) error {
		_, err := c.findUser(cn, username, log)
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errs.ErrUnauthorized):
		return false, nil
	}
	return false, err
}

// Lookup : запись пользователя в виде принципала без проверки пароля
func (c *Client) Lookup(ctx context.Context, username string) (*model.Principal, error) {
	log := c.log.With(zap.String("username", username))
	var principal *model.Principal
	err := c.withConn(ctx, func(cn conn) error {
		entry, err := c.findUser(cn, username, log)
		if err != nil {
			return err
		}
		principal = c.principalFrom(entry, username, c.collectGroups(cn, entry, username, log))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return principal, nil
}

// GroupsOf : группы пользователя из атрибутов записи и из поиска групп по member
func (c *Client) GroupsOf(ctx context.Context, username string) ([]string, error) {
	principal, err := c.Lookup(ctx, username)
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return nil, fmt.Errorf("пользователь %s: %w", username, errs.ErrNotFound)
		}
		return nil, err
	}
	return principal.Groups, nil
}

// IsAdmin : членство в группе, содержащей идентификатор админской группы без учёта регистра
func (c *Client) IsAdmin(groups []string) bool {
	needle := strings.ToLower(strings.TrimSpace(c.cfg.AdminGroup))
	if needle == "" {
		return false
	}
	for _, g := range groups {
		if strings.Contains(strings.ToLower(g), needle) {
			return true
		}
	}
	return false
}

func (c *Client) findUser(cn conn, username string, log *zap.Logger) (*goldap.Entry, error) {
	if err := c.serviceBind(cn); err != nil {
		log.Error("сервисный bind не удался", zap.String("bind_dn", c.cfg.BindDN), zap.Error(err))
		return nil, classify(err)
	}

	filter := BuildFilter(c.filter, username)
	req := goldap.NewSearchRequest(
		c.baseDN,
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		2,
		int(c.timeout.Seconds()),
		false,
		filter,
		searchAttributes(),
		nil,
	)

	res, err := cn.Search(req)
	switch {
	case err != nil && goldap.IsErrorWithCode(err, goldap.LDAPResultSizeLimitExceeded):
		log.Warn("фильтр нашёл несколько записей", zap.String("filter", filter))
		return nil, errs.ErrUnauthorized
	case err != nil && goldap.IsErrorWithCode(err, goldap.LDAPResultNoSuchObject):
		log.Warn("base DN не существует", zap.String("base_dn", c.baseDN))
		return nil, errs.ErrUnauthorized
	case err != nil:
		log.Error("ошибка поиска в каталоге", zap.String("filter", filter), zap.String("base_dn", c.baseDN), zap.Error(err))
		return nil, classify(err)
	}

	switch len(res.Entries) {
	case 0:
		log.Info("пользователь не найден", zap.String("filter", filter), zap.String("base_dn", c.baseDN))
		return nil, errs.ErrUnauthorized
	case 1:
		return res.Entries[0], nil
	}
	log.Warn("фильтр нашёл несколько записей", zap.String("filter", filter), zap.Int("count", len(res.Entries)))
	return nil, errs.ErrUnauthorized
}

func (c *Client) serviceBind(cn conn) error {
	if c.cfg.BindDN == "" {
		return cn.UnauthenticatedBind("")
	}
	return cn.Bind(c.cfg.BindDN, c.cfg.BindPassword)
}

func (c *Client) collectGroups(cn conn, entry *goldap.Entry, username string, log *zap.Logger) []string {
	groups := groupsFromEntry(entry)
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		seen[strings.ToLower(g)] = true
	}

	filter := fmt.Sprintf("(|(member=%s)(uniqueMember=%s)(memberUid=%s))",
		goldap.EscapeFilter(entry.DN), goldap.EscapeFilter(entry.DN), goldap.EscapeFilter(username))
	req := goldap.NewSearchRequest(
		c.baseDN,
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		0,
		int(c.timeout.Seconds()),
		false,
		filter,
		[]string{"cn"},
		nil,
	)

	res, err := cn.Search(req)
	if err != nil {
		log.Warn("поиск групп не удался, используются только атрибуты записи", zap.Error(err))
		return groups
	}
	for _, g := range res.Entries {
		if !seen[strings.ToLower(g.DN)] {
			seen[strings.ToLower(g.DN)] = true
			groups = append(groups, g.DN)
		}
	}
	return groups
}

func groupsFromEntry(entry *goldap.Entry) []string {
	var groups []string
	for _, name := range groupAttributes {
		groups = append(groups, attributeValues(entry, name)...)
	}
	return groups
}

func (c *Client) principalFrom(entry *goldap.Entry, login string, groups []string) *model.Principal {
	id := resolveIdentity(entry)
	username := id.Username
	if username == "" {
		username = login
	}
	displayName := id.DisplayName
	if displayName == "" {
		displayName = username
	}

	role := model.RoleUser
	if c.IsAdmin(groups) {
		role = model.RoleAdmin
	}

	c.log.Debug("запись каталога разобрана",
		zap.String("dn", entry.DN), zap.Stringer("dialect", id.Dialect), zap.Int("groups", len(groups)))

	return &model.Principal{
		Username:    username,
		Email:       id.Email,
		DisplayName: displayName,
		Role:        role,
		Groups:      groups,
		AuthSource:  model.AuthSourceLDAP,
	}
}

// withConn : соединение живёт ровно одну операцию. По истечении срока или отмене
// соединение закрывается, чтобы разблокировать зависший вызов
func (c *Client) withConn(ctx context.Context, fn func(conn) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	s := &session{}
	done := make(chan error, 1)
	go func() {
		done <- s.run(ctx, c.dial, fn)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		s.abort()
		c.log.Warn("операция с каталогом прервана", zap.Error(ctx.Err()))
		return fmt.Errorf("каталог LDAP: %w: %v", errs.ErrUpstreamUnavailable, ctx.Err())
	}
}

type session struct {
	mu      sync.Mutex
	conn    conn
	aborted bool
}

func (s *session) run(ctx context.Context, dial dialFunc, fn func(conn) error) error {
	cn, err := dial(ctx)
	if err != nil {
		return fmt.Errorf("подключение к каталогу: %w: %v", errs.ErrUpstreamUnavailable, err)
	}

	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		cn.Close()
		return errs.ErrUpstreamUnavailable
	}
	s.conn = cn
	s.mu.Unlock()

	defer s.abort()
	return fn(cn)
}

func (s *session) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// classify : сетевые ошибки и прочие отказы каталога считаются недоступностью
func classify(err error) error {
	if errors.Is(err, errs.ErrUnauthorized) || errors.Is(err, errs.ErrUpstreamUnavailable) {
		return err
	}
	return fmt.Errorf("каталог LDAP: %w: %v", errs.ErrUpstreamUnavailable, err)
}

type directoryConn struct {
	conn *goldap.Conn
}

func (d *directoryConn) Bind(username, password string) error {
	return d.conn.Bind(username, password)
}

func (d *directoryConn) UnauthenticatedBind(username string) error {
	return d.conn.UnauthenticatedBind(username)
}

func (d *directoryConn) Search(req *goldap.SearchRequest) (*goldap.SearchResult, error) {
	return d.conn.Search(req)
}

func (d *directoryConn) Close() {
	d.conn.Close()
}

func (c *Client) dialDirectory(ctx context.Context) (conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("некорректный адрес каталога %q: %w", c.cfg.URL, err)
	}

	tlsConfig := &tls.Config{
		ServerName:         u.Hostname(),
		InsecureSkipVerify: c.cfg.InsecureSkipVerify, //nolint:gosec // включается только явно в конфиге
	}
	dialer := &net.Dialer{Timeout: c.timeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	l, err := goldap.DialURL(c.cfg.URL, goldap.DialWithDialer(dialer), goldap.DialWithTLSConfig(tlsConfig))
	if err != nil {
		return nil, err
	}
	l.SetTimeout(c.timeout)

	if c.cfg.StartTLS && !strings.EqualFold(u.Scheme, "ldaps") {
		if err := l.StartTLS(tlsConfig); err != nil {
			l.Close()
			return nil, fmt.Errorf("StartTLS: %w", err)
		}
	}

	return &directoryConn{conn: l}, nil
}
