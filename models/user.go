// Package models contains domain entities for users, sessions and scheduled messages
package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_users_uuid" json:"uuid"`
	Phone        string    `gorm:"size:11;not null;uniqueIndex:uk_users_phone" json:"phone"`
	FirstName    string    `gorm:"size:255;not null" json:"first_name"`
	LastName     string    `gorm:"size:255;not null" json:"last_name"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"` // Never serialize password hash

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
