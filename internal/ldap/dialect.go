package ldap

import (
	"strings"

	goldap "github.com/go-ldap/ldap/v3"
)

// Dialect : соглашение об именах атрибутов в каталоге
type Dialect int

const (
	// DialectStandard : OpenLDAP и подобные, uid/mail/cn
	DialectStandard Dialect = iota
	// DialectActiveDirectory : sAMAccountName/userPrincipalName
	DialectActiveDirectory
	// DialectFlatNamespace : каталоги без uid (Domino и т.п.), cn/shortName/mail
	DialectFlatNamespace
)

func (d Dialect) String() string {
	switch d {
	case DialectActiveDirectory:
		return "active_directory"
	case DialectFlatNamespace:
		return "flat"
	}
	return "standard"
}

// mailLocalPart : псевдоатрибут, часть mail до "@"
const mailLocalPart = "mail@local"

type attributePriority struct {
	Username    []string
	Email       []string
	DisplayName []string
}

var dialectAttributes = map[Dialect]attributePriority{
	DialectStandard: {
		Username:    []string{"uid", "cn", mailLocalPart},
		Email:       []string{"mail", "email"},
		DisplayName: []string{"displayName", "cn", "gecos"},
	},
	DialectActiveDirectory: {
		Username:    []string{"sAMAccountName", "userPrincipalName", "cn"},
		Email:       []string{"mail", "userPrincipalName"},
		DisplayName: []string{"displayName", "name", "cn"},
	},
	DialectFlatNamespace: {
		Username:    []string{"shortName", mailLocalPart, "cn"},
		Email:       []string{"mail", "internetAddress"},
		DisplayName: []string{"displayName", "fullName", "cn"},
	},
}

var groupAttributes = []string{"memberOf", "groupMembership", "isMemberOf"}

// searchAttributes : всё, что может понадобиться любому диалекту
func searchAttributes() []string {
	seen := map[string]bool{}
	attrs := []string{"objectClass"}
	for _, d := range []Dialect{DialectStandard, DialectActiveDirectory, DialectFlatNamespace} {
		prio := dialectAttributes[d]
		for _, list := range [][]string{prio.Username, prio.Email, prio.DisplayName} {
			for _, a := range list {
				if a != mailLocalPart && !seen[a] {
					seen[a] = true
					attrs = append(attrs, a)
				}
			}
		}
	}
	return append(attrs, groupAttributes...)
}

// Classify : диалект определяется один раз на результат поиска
func Classify(entry *goldap.Entry) Dialect {
	if attributeValue(entry, "sAMAccountName") != "" || attributeValue(entry, "userPrincipalName") != "" {
		return DialectActiveDirectory
	}
	if attributeValue(entry, "uid") != "" {
		return DialectStandard
	}
	return DialectFlatNamespace
}

type identity struct {
	Username    string
	Email       string
	DisplayName string
	Dialect     Dialect
}

func resolveIdentity(entry *goldap.Entry) identity {
	dialect := Classify(entry)
	prio := dialectAttributes[dialect]
	return identity{
		Username:    firstAttribute(entry, prio.Username),
		Email:       firstAttribute(entry, prio.Email),
		DisplayName: firstAttribute(entry, prio.DisplayName),
		Dialect:     dialect,
	}
}

func firstAttribute(entry *goldap.Entry, names []string) string {
	for _, name := range names {
		if name == mailLocalPart {
			if local, _, ok := strings.Cut(attributeValue(entry, "mail"), "@"); ok && local != "" {
				return local
			}
			continue
		}
		if v := attributeValue(entry, name); v != "" {
			return v
		}
	}
	return ""
}

// attributeValues : имена атрибутов в каталогах приходят в разном регистре
func attributeValues(entry *goldap.Entry, name string) []string {
	for _, attr := range entry.Attributes {
		if strings.EqualFold(attr.Name, name) {
			return attr.Values
		}
	}
	return nil
}

func attributeValue(entry *goldap.Entry, name string) string {
	for _, v := range attributeValues(entry, name) {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
