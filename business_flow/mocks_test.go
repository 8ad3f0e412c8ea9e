package businessflow

import (
	"context"
	"sync"
	"time"

	"github.com/amirphl/future-messages/app/services"
	"github.com/amirphl/future-messages/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) ByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) Save(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) ByPhone(ctx context.Context, phone string) (*models.User, error) {
	args := m.Called(ctx, phone)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

type mockMessageRepository struct {
	mock.Mock
}

func (m *mockMessageRepository) ByID(ctx context.Context, id uint) (*models.Message, error) {
	args := m.Called(ctx, id)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *mockMessageRepository) Save(ctx context.Context, msg *models.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockMessageRepository) ByMessageID(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	args := m.Called(ctx, messageID)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *mockMessageRepository) ListBySender(ctx context.Context, senderID uint, limit, offset int) ([]*models.Message, error) {
	args := m.Called(ctx, senderID, limit, offset)
	msgs, _ := args.Get(0).([]*models.Message)
	return msgs, args.Error(1)
}

func (m *mockMessageRepository) UpdateStatus(ctx context.Context, messageID uuid.UUID, from, to models.MessageStatus) error {
	return m.Called(ctx, messageID, from, to).Error(0)
}

func (m *mockMessageRepository) RecordEnqueueFailure(ctx context.Context, messageID uuid.UUID, reason string) error {
	return m.Called(ctx, messageID, reason).Error(0)
}

func (m *mockMessageRepository) ListStuckProcessing(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]*models.Message, error) {
	args := m.Called(ctx, olderThan, maxAttempts, limit)
	msgs, _ := args.Get(0).([]*models.Message)
	return msgs, args.Error(1)
}

func (m *mockMessageRepository) CountExhausted(ctx context.Context, olderThan time.Time, maxAttempts int) (int64, error) {
	args := m.Called(ctx, olderThan, maxAttempts)
	return args.Get(0).(int64), args.Error(1)
}

// stubPublisher records published jobs and fails while err is set
type stubPublisher struct {
	mu   sync.Mutex
	jobs []services.DeliveryJob
	err  error
}

func (p *stubPublisher) Name() string { return "stub" }

func (p *stubPublisher) Publish(_ context.Context, job services.DeliveryJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func (p *stubPublisher) published() []services.DeliveryJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]services.DeliveryJob(nil), p.jobs...)
}
