package model

import "time"

// AuditRecord : строка журнала изменяющих операций
type AuditRecord struct {
	UUID      string    `db:"uuid" json:"uuid"`
	FileUUID  string    `db:"file_uuid" json:"file_uuid"`
	UserUUID  string    `db:"user_uuid" json:"user_uuid"`
	Action    string    `db:"action" json:"action"`
	Detail    string    `db:"detail" json:"detail"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
