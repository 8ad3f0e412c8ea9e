package models

import (
	"time"

	"github.com/amirphl/future-messages/utils"
)

// UserSession is the database-backed row for an opaque session handle.
// Rows are deactivated on logout and never reused.
type UserSession struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Handle         string    `gorm:"size:64;not null;uniqueIndex:uk_user_sessions_handle" json:"-"` // Never serialize handle
	UserID         uint      `gorm:"not null;index:idx_user_sessions_user_id" json:"user_id"`
	User           *User     `gorm:"foreignKey:UserID;references:ID" json:"-"`
	FirstName      string    `gorm:"size:255;not null" json:"first_name"`
	Phone          string    `gorm:"size:11;not null" json:"phone"`
	IsActive       *bool     `gorm:"default:true;index:idx_user_sessions_is_active" json:"is_active"`
	CreatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	LastAccessedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"last_accessed_at"`
	ExpiresAt      time.Time `gorm:"not null;index:idx_user_sessions_expires_at" json:"expires_at"`
}

func (UserSession) TableName() string {
	return "user_sessions"
}

func (s *UserSession) IsExpired() bool {
	return utils.IsExpired(s.ExpiresAt)
}

func (s *UserSession) IsValid() bool {
	return utils.IsTrue(s.IsActive) && !s.IsExpired()
}
