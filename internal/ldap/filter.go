package ldap

import (
	"regexp"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"
)

const (
	usernamePlaceholder = "{{username}}"
	defaultUserFilter   = "(uid={{username}})"
)

var placeholderVariants = regexp.MustCompile(`\{+\s*username\s*\}+`)

// SanitizeFilter : исправляет типичные ошибки оператора в шаблоне фильтра.
// Второе значение true, если шаблон пришлось менять
func SanitizeFilter(template string) (string, bool) {
	original := template
	f := strings.TrimSpace(template)
	if f == "" {
		return defaultUserFilter, true
	}

	// {username}, {{ username }}, {{{username}}} -> {{username}}; прочие фигурные скобки выкидываются
	f = placeholderVariants.ReplaceAllString(f, "\x00")
	f = strings.NewReplacer("{", "", "}", "").Replace(f)
	f = strings.ReplaceAll(f, "\x00", usernamePlaceholder)

	f = strings.TrimLeft(f, ") ")
	if f == "" {
		return defaultUserFilter, true
	}
	if !strings.HasPrefix(f, "(") {
		f = "(" + f + ")"
	}
	f = closeParens(f)

	if !strings.Contains(f, usernamePlaceholder) {
		f = "(&" + f + "(uid=" + usernamePlaceholder + "))"
	}

	return f, f != original
}

// closeParens : обрезает всё после закрытия внешней скобки, выкидывает лишние ")"
// и дописывает недостающие
func closeParens(f string) string {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(f); i++ {
		ch := f[i]
		switch ch {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				continue
			}
			depth--
		}
		b.WriteByte(ch)
		if depth == 0 && ch == ')' {
			break
		}
	}
	return b.String() + strings.Repeat(")", depth)
}

// BuildFilter : подстановка имени пользователя после экранирования по RFC 4515
func BuildFilter(template, username string) string {
	return strings.ReplaceAll(template, usernamePlaceholder, goldap.EscapeFilter(username))
}

// SanitizeBaseDN : пробелы вокруг запятых и по краям, висячие запятые
func SanitizeBaseDN(base string) (string, bool) {
	parts := strings.Split(base, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	out := strings.Join(cleaned, ",")
	return out, out != base
}
