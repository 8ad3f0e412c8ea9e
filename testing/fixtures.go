package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/future-messages/models"
	"github.com/amirphl/future-messages/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultTestPassword is the plain password of every fixture user
const DefaultTestPassword = "secret123"

// TestFixtures provides methods to create test data
type TestFixtures struct {
	DB *gorm.DB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(testDB *TestDB) *TestFixtures {
	return &TestFixtures{DB: testDB.DB}
}

// CreateTestUser inserts a user whose password is DefaultTestPassword
func (tf *TestFixtures) CreateTestUser(phone string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultTestPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		UUID:         uuid.New(),
		Phone:        phone,
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: string(hash),
	}
	if err := tf.DB.WithContext(context.Background()).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestMessage inserts a message for sender in the given status.
// createdAt lets sweep tests place a row behind the grace period.
func (tf *TestFixtures) CreateTestMessage(senderID uint, status models.MessageStatus, createdAt time.Time) (*models.Message, error) {
	eventDate := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	msg := &models.Message{
		MessageID:      uuid.New(),
		SenderID:       senderID,
		RecipientPhone: "11999990001",
		Body:           "Happy holidays",
		EventDate:      eventDate,
		ReminderDays:   5,
		DueAt:          models.ComputeDueAt(eventDate, 5),
		Status:         status,
		CreatedAt:      createdAt.UTC(),
		UpdatedAt:      createdAt.UTC(),
	}
	if err := tf.DB.WithContext(context.Background()).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create test message: %w", err)
	}
	return msg, nil
}

// CreateTestSession inserts an active session row for user under handle
func (tf *TestFixtures) CreateTestSession(user *models.User, handle string) (*models.UserSession, error) {
	now := utils.UTCNow()
	session := &models.UserSession{
		Handle:         handle,
		UserID:         user.ID,
		FirstName:      user.FirstName,
		Phone:          user.Phone,
		IsActive:       utils.ToPtr(true),
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(utils.SessionTimeout),
	}
	if err := tf.DB.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}
	return session, nil
}
