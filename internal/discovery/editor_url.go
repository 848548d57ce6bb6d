package discovery

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"wopi-gateway/internal/model"

	"go.uber.org/zap"
)

// placeholders в urlsrc вида <ui=UI_LLCC&><rs=DC_LLCC&>
var urlPlaceholders = regexp.MustCompile(`<[^>]*>`)

// BuildEditorURL : ссылка на редактор для iframe. Документ discovery берётся из кеша,
// при полной недоступности используется фиксированный путь редактора
func (c *Client) BuildEditorURL(ctx context.Context, fileUUID, fileName, accessToken string, permission model.Permission) (string, error) {
	action := ActionView
	if permission.CanWrite() {
		action = ActionEdit
	}
	ext := strings.TrimPrefix(path.Ext(fileName), ".")

	template := ""
	if cache, err := c.Fetch(ctx); err == nil && cache != nil {
		src, ok := cache.Actions.Lookup(action, ext)
		if !ok && action == ActionEdit {
			// файл без шаблона редактирования открывается на просмотр
			src, ok = cache.Actions.Lookup(ActionView, ext)
		}
		if ok {
			template = src
		}
	}

	if template == "" {
		c.log.Warn("шаблон редактора не найден, используется путь по умолчанию",
			zap.String("ext", ext), zap.String("action", action))
		template = c.fallbackURL()
	}

	editorURL, err := c.finalizeURL(template, fileUUID, accessToken)
	if err != nil {
		return "", err
	}
	return editorURL, nil
}

// WOPISrc : адрес файла, по которому движок будет ходить обратно в шлюз
func (c *Client) WOPISrc(fileUUID string) string {
	return strings.TrimRight(c.wopiBaseURL, "/") + "/wopi/files/" + url.PathEscape(fileUUID)
}

func (c *Client) finalizeURL(template, fileUUID, accessToken string) (string, error) {
	cleaned := urlPlaceholders.ReplaceAllString(template, "")
	cleaned = strings.TrimRight(cleaned, "?&")

	u, err := url.Parse(cleaned)
	if err != nil {
		return "", fmt.Errorf("некорректный шаблон редактора %q: %w", template, err)
	}

	if public := c.publicBase(); public != nil {
		u.Scheme = public.Scheme
		u.Host = public.Host
	}

	q := u.Query()
	q.Set("WOPISrc", c.WOPISrc(fileUUID))
	q.Set("access_token", accessToken)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (c *Client) publicBase() *url.URL {
	if c.cfg.PublicURL == "" {
		return nil
	}
	u, err := url.Parse(c.cfg.PublicURL)
	if err != nil || u.Host == "" {
		c.log.Warn("некорректный публичный адрес редактора", zap.String("public_url", c.cfg.PublicURL))
		return nil
	}
	return u
}

func (c *Client) fallbackURL() string {
	base := c.cfg.PublicURL
	if base == "" {
		if u, err := url.Parse(c.cfg.URL); err == nil && u.Host != "" {
			base = u.Scheme + "://" + u.Host
		}
	}
	fallback := c.cfg.FallbackPath
	if fallback == "" {
		fallback = "/browser/dist/cool.html"
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(fallback, "/")
}
