package users

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryRepository keeps accounts in process memory. Returned values are
// copies.
type MemoryRepository struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]*User
	byEmail    map[string]int64
	byUsername map[string]int64
	otps       map[int64]OTP
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[int64]*User),
		byEmail:    make(map[string]int64),
		byUsername: make(map[string]int64),
		otps:       make(map[int64]OTP),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyUser(u *User) *User {
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	if u.Profile != nil {
		p := *u.Profile
		c.Profile = &p
	}
	return &c
}

func (r *MemoryRepository) Create(_ context.Context, user *User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[emailKey(user.Email)]; ok {
		return nil, ErrEmailTaken
	}
	if _, ok := r.byUsername[user.UserName]; ok {
		return nil, ErrUsernameTaken
	}

	r.nextID++
	stored := copyUser(user)
	stored.ID = r.nextID
	stored.CreatedAt = time.Now()

	r.byID[stored.ID] = stored
	r.byEmail[emailKey(stored.Email)] = stored.ID
	r.byUsername[stored.UserName] = stored.ID
	return copyUser(stored), nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(r.byID[id]), nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

// Update stores user; email and username are immutable.
func (r *MemoryRepository) Update(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[user.ID]
	if !ok {
		return ErrNotFound
	}
	next := copyUser(user)
	next.Email, next.UserName, next.CreatedAt = cur.Email, cur.UserName, cur.CreatedAt
	r.byID[user.ID] = next
	return nil
}

func (r *MemoryRepository) SetOTP(_ context.Context, userID int64, otp OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[userID]; !ok {
		return ErrNotFound
	}
	r.otps[userID] = otp
	return nil
}

func (r *MemoryRepository) GetOTP(_ context.Context, userID int64) (*OTP, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	otp, ok := r.otps[userID]
	if !ok {
		return nil, nil
	}
	return &otp, nil
}
