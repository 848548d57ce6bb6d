package ltpa

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"wopi-gateway/internal/errs"
)

const userPrefix = "u:user:"

// UsernameStrategy : какой атрибут DN считать именем пользователя
type UsernameStrategy string

const (
	StrategyCN    UsernameStrategy = "cn"
	StrategyUID   UsernameStrategy = "uid"
	StrategyEmail UsernameStrategy = "email"
	StrategyDN    UsernameStrategy = "dn"
)

func ParseUsernameStrategy(name string) (UsernameStrategy, error) {
	switch s := UsernameStrategy(strings.ToLower(strings.TrimSpace(name))); s {
	case StrategyCN, StrategyUID, StrategyEmail, StrategyDN:
		return s, nil
	case "":
		return StrategyCN, nil
	}
	return "", fmt.Errorf("неизвестная стратегия имени пользователя %q", name)
}

// Token : разобранное содержимое LTPA2 токена
type Token struct {
	Username   string
	Realm      string
	DN         string
	ExpireAtMs int64
	Attributes map[string]string
	Signature  string
	// SignedContent : содержимое без сегмента подписи, по нему считается HMAC
	SignedContent string
}

// looksLikeLTPA : проверка расшифрованного текста. Неверный ключ почти всегда даёт мусор
// без разделителя % и без признаков пользователя
func looksLikeLTPA(content string) error {
	if !strings.Contains(content, "%") {
		return &errs.ParseError{What: "LTPA: нет разделителя %"}
	}
	if !strings.Contains(content, "user:") && !strings.Contains(content, "=") {
		return &errs.ParseError{What: "LTPA: нет данных пользователя"}
	}
	return nil
}

// Parse : разбирает "userPart%expiry[%signature]"
func Parse(content string, strategy UsernameStrategy) (*Token, error) {
	parts := splitUnescaped(content, '%')
	if len(parts) < 2 {
		return nil, &errs.ParseError{What: "LTPA: ожидалось userPart%expiry"}
	}

	userPart := parts[0]
	expireAtMs, err := parseExpiry(parts[1])
	if err != nil {
		return nil, &errs.ParseError{What: "LTPA: срок действия", Err: err}
	}

	token := &Token{
		ExpireAtMs:    expireAtMs,
		Attributes:    make(map[string]string),
		SignedContent: parts[0] + "%" + parts[1],
	}
	if len(parts) >= 3 {
		token.Signature = strings.Join(parts[2:], "%")
	}

	segments := splitUnescaped(userPart, '$')
	head := segments[0]
	for _, pair := range segments[1:] {
		kv := splitUnescaped(pair, ':')
		if len(kv) < 2 || kv[0] == "" {
			continue
		}
		token.Attributes[unescape(kv[0])] = unescape(strings.Join(kv[1:], ":"))
	}

	if strings.HasPrefix(head, userPrefix) {
		rest := strings.TrimPrefix(head, userPrefix)
		if realm, dn, ok := strings.Cut(rest, "/"); ok {
			token.Realm = unescape(realm)
			token.DN = unescape(dn)
		} else {
			token.DN = unescape(rest)
		}
	} else if key, value, ok := strings.Cut(head, ":"); ok && key != "" {
		// формат без префикса: все сегменты вида key:value
		token.Attributes[unescape(key)] = unescape(value)
		token.DN = firstNonEmpty(token.Attributes["dn"], strings.TrimPrefix(token.Attributes["u"], "user:"))
	}

	if token.DN == "" {
		return nil, &errs.ParseError{What: "LTPA: не найден DN пользователя"}
	}

	token.Username = UsernameFromDN(token.DN, token.Attributes, strategy)
	if token.Username == "" {
		return nil, &errs.ParseError{What: "LTPA: пустое имя пользователя"}
	}

	return token, nil
}

// parseExpiry : миллисекунды; значения похожие на секунды переводятся в миллисекунды
func parseExpiry(raw string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	if value < 1e12 {
		value *= 1000
	}
	return value, nil
}

// UsernameFromDN : имя пользователя из DN в нотации Domino (CN=X/O=Y) или LDAP (cn=x,o=y).
// Цепочки отката:
//
//	cn:    cn -> uid -> первое RDN -> DN
//	uid:   uid (DN, затем атрибуты) -> cn -> первое RDN -> DN
//	email: mail/email (DN, затем атрибуты) -> cn -> uid -> первое RDN -> DN
//	dn:    DN как есть
//
// Значение, не похожее на DN (см. looksLikeDN), возвращается без изменений для любой стратегии
func UsernameFromDN(dn string, attributes map[string]string, strategy UsernameStrategy) string {
	if strategy == StrategyDN || !looksLikeDN(dn) {
		return dn
	}
	dn = strings.TrimSpace(dn)

	rdns, first := parseRDNs(dn)
	attr := func(keys ...string) string {
		for _, k := range keys {
			if v := attributes[k]; v != "" {
				return v
			}
		}
		return ""
	}

	switch strategy {
	case StrategyUID:
		return firstNonEmpty(rdns["uid"], attr("uid"), rdns["cn"], first, dn)
	case StrategyEmail:
		return firstNonEmpty(rdns["mail"], rdns["email"], attr("mail", "email", "emailAddress"), rdns["cn"], rdns["uid"], first, dn)
	default:
		return firstNonEmpty(rdns["cn"], rdns["uid"], first, dn)
	}
}

// knownRDNKeys : хотя бы один из этих типов атрибутов должен встретиться в DN
var knownRDNKeys = map[string]bool{
	"cn": true, "uid": true, "o": true, "ou": true, "dc": true, "c": true, "l": true,
	"st": true, "mail": true, "email": true, "emailaddress": true, "sn": true, "givenname": true,
}

// looksLikeDN : каждый компонент вида тип=значение с корректным типом атрибута
// и хотя бы один тип из knownRDNKeys. "ops=team" или "a=b/c" остаются именами
func looksLikeDN(value string) bool {
	if !strings.Contains(value, "=") {
		return false
	}

	known := false
	for _, component := range rdnComponents(strings.TrimSpace(value)) {
		key, attrValue, ok := strings.Cut(strings.TrimSpace(component), "=")
		key = strings.TrimSpace(key)
		if !ok || !validAttributeType(key) || strings.TrimSpace(attrValue) == "" {
			return false
		}
		if knownRDNKeys[strings.ToLower(key)] {
			known = true
		}
	}
	return known
}

// validAttributeType : дескриптор (буква, затем буквы, цифры, '-') или OID
func validAttributeType(key string) bool {
	if key == "" {
		return false
	}
	if key[0] >= '0' && key[0] <= '9' {
		for i := 0; i < len(key); i++ {
			if (key[i] < '0' || key[i] > '9') && key[i] != '.' {
				return false
			}
		}
		return true
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if !isLetter && (i == 0 || ((c < '0' || c > '9') && c != '-')) {
			return false
		}
	}
	return true
}

// rdnComponents : LDAP нотация делится по неэкранированным запятым, Domino по '/'
func rdnComponents(dn string) []string {
	if strings.Contains(dn, ",") {
		return splitUnescaped(dn, ',')
	}
	return strings.Split(dn, "/")
}

// parseRDNs : значения RDN по ключу в нижнем регистре и значение первого RDN
func parseRDNs(dn string) (map[string]string, string) {
	components := rdnComponents(dn)

	rdns := make(map[string]string, len(components))
	first := ""
	for _, component := range components {
		key, value, ok := strings.Cut(strings.TrimSpace(component), "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(strings.ReplaceAll(value, `\,`, ","))
		if first == "" {
			first = value
		}
		if _, exists := rdns[key]; !exists {
			rdns[key] = value
		}
	}
	return rdns, first
}

// buildUserPart : "u:user:{realm}/{username}$k:v$k:v", атрибуты в порядке ключей
func buildUserPart(realm, username string, attributes map[string]string) string {
	var b strings.Builder
	b.WriteString(userPrefix)
	b.WriteString(escape(realm))
	b.WriteByte('/')
	b.WriteString(escape(username))

	keys := make([]string, 0, len(attributes))
	for k := range attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('$')
		b.WriteString(escape(k))
		b.WriteByte(':')
		b.WriteString(escape(attributes[k]))
	}
	return b.String()
}

var escaper = strings.NewReplacer(`\`, `\\`, `$`, `\$`, `%`, `\%`, `:`, `\:`)

var unescaper = strings.NewReplacer(`\\`, `\`, `\$`, `$`, `\%`, `%`, `\:`, `:`)

func escape(s string) string   { return escaper.Replace(s) }
func unescape(s string) string { return unescaper.Replace(s) }

// splitUnescaped : split по sep, пропуская экранированные обратным слэшем символы
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
