package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AdminUser struct {
	bun.BaseModel `bun:"table:admin_users,alias:au"`

	ID           string    `bun:"id,pk" json:"id"`
	Name         string    `bun:"name,notnull" json:"name"`
	Email        string    `bun:"email,unique,notnull" json:"email"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"createdAt"`
}
