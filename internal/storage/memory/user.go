package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shieldops/backend/internal/models"
	"github.com/shieldops/backend/internal/storage"
)

type UserManager struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]models.User
}

func NewUserManager() *UserManager {
	return &UserManager{byID: make(map[int64]models.User)}
}

var _ storage.UserRepository = (*UserManager)(nil)

func (m *UserManager) CreateUser(_ context.Context, email, passwordHash, fullName string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.byID {
		if u.Email == email {
			return nil, storage.ErrEmailTaken
		}
	}

	m.nextID++
	now := time.Now()
	user := models.User{
		ID:           m.nextID,
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[user.ID] = user
	return &user, nil
}

func (m *UserManager) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.byID {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *UserManager) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byID[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &u, nil
}
