package store

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"campauth/internal/auth"
	"campauth/internal/models"
)

// MemoryUsers is an in-memory user store with the same contract as the
// MongoDB store, including the secret-stripping default reads. Used in
// tests and for running the server without a database.
type MemoryUsers struct {
	mu    sync.Mutex
	users map[string]*models.User // keyed by hex id
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]*models.User)}
}

func (m *MemoryUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return auth.ErrDuplicateEmail
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	m.users[u.ID.Hex()] = clone(u)
	return nil
}

func (m *MemoryUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return strip(clone(u)), nil
	}
	return nil, auth.ErrUserNotFound
}

func (m *MemoryUsers) GetByIDWithSecrets(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return clone(u), nil
	}
	return nil, auth.ErrUserNotFound
}

func (m *MemoryUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.byEmail(email); u != nil {
		return strip(clone(u)), nil
	}
	return nil, auth.ErrUserNotFound
}

func (m *MemoryUsers) GetByEmailWithSecrets(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.byEmail(email); u != nil {
		return clone(u), nil
	}
	return nil, auth.ErrUserNotFound
}

func (m *MemoryUsers) UpdateDetails(_ context.Context, id, name, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	if other := m.byEmail(email); other != nil && other.ID.Hex() != id {
		return nil, auth.ErrDuplicateEmail
	}
	u.Name, u.Email = name, email
	return strip(clone(u)), nil
}

func (m *MemoryUsers) SetPassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.PasswordHash = hash
	u.ResetToken = nil
	return nil
}

func (m *MemoryUsers) SetResetToken(_ context.Context, id string, t *models.PendingToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.ResetToken = t
	return nil
}

func (m *MemoryUsers) SetConfirmToken(_ context.Context, id string, t *models.PendingToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.ConfirmToken = t
	return nil
}

func (m *MemoryUsers) ConfirmEmail(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.IsEmailConfirmed = true
	u.ConfirmToken = nil
	return nil
}

func (m *MemoryUsers) SetOTP(_ context.Context, id string, enabled bool, sealedSecret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	u.OTPEnabled = enabled
	if enabled {
		u.OTPSecret = sealedSecret
	} else {
		u.OTPSecret = ""
	}
	return nil
}

func (m *MemoryUsers) FindByResetTokenHash(_ context.Context, hash string, now time.Time) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ResetToken != nil && u.ResetToken.Hash == hash && now.Before(u.ResetToken.ExpiresAt) {
			return strip(clone(u)), nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *MemoryUsers) FindByConfirmTokenHash(_ context.Context, hash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ConfirmToken != nil && u.ConfirmToken.Hash == hash && !u.IsEmailConfirmed {
			return strip(clone(u)), nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *MemoryUsers) byEmail(email string) *models.User {
	for _, u := range m.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func clone(u *models.User) *models.User {
	c := *u
	if u.ResetToken != nil {
		t := *u.ResetToken
		c.ResetToken = &t
	}
	if u.ConfirmToken != nil {
		t := *u.ConfirmToken
		c.ConfirmToken = &t
	}
	return &c
}

// strip drops the fields excluded from default reads.
func strip(u *models.User) *models.User {
	u.PasswordHash = ""
	u.OTPSecret = ""
	return u
}
