package model

// AuthSource : откуда пришла подтверждённая личность
type AuthSource string

const (
	AuthSourceLocal    AuthSource = "local"
	AuthSourceLDAP     AuthSource = "ldap"
	AuthSourceLTPA     AuthSource = "ltpa"
	AuthSourceLDAPLTPA AuthSource = "ldap_ltpa"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Principal : нормализованная личность, результат моста идентификации
type Principal struct {
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	Groups      []string   `json:"groups"`
	AuthSource  AuthSource `json:"auth_source"`
}

// Permission : право, с которым выдан access token
type Permission string

const (
	PermissionView  Permission = "view"
	PermissionEdit  Permission = "edit"
	PermissionAdmin Permission = "admin"
)

// Valid : одно из трёх известных значений
func (p Permission) Valid() bool {
	switch p {
	case PermissionView, PermissionEdit, PermissionAdmin:
		return true
	}
	return false
}

// CanWrite : право на изменяющие WOPI операции
func (p Permission) CanWrite() bool {
	return p == PermissionEdit || p == PermissionAdmin
}
