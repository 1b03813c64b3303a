package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkforge/studio-backend/pkg/enums"
)

// User covers guests, registered customers, and admins. Email is the identity
// key: the unique index is what keeps concurrent guest checkouts from minting
// duplicate accounts.
type User struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string         `gorm:"column:name;not null"`
	Email        string         `gorm:"column:email;uniqueIndex:idx_users_email;not null"`
	Phone        *string        `gorm:"column:phone"`
	Role         enums.UserRole `gorm:"column:role;type:text;not null;default:'customer'"`
	PasswordHash *string        `gorm:"column:password_hash"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// IsGuest reports whether the account was auto-created at express checkout.
func (u *User) IsGuest() bool {
	return u != nil && u.Role == enums.UserRoleGuest
}
