package model

import "time"

type User struct {
	UUID         string    `db:"uuid" json:"uuid"`
	Login        string    `db:"login" json:"login"`
	Email        string    `db:"email" json:"email"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	AuthSource   string    `db:"auth_source" json:"auth_source"`
	StorageUsed  int64     `db:"storage_used" json:"storage_used"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
