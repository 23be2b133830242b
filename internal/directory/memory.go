package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory store intended for tests and dev.
type MemoryStore struct {
	mutex   sync.Mutex
	byID    map[string]*User
	byEmail map[string]string
}

// NewMemoryStore creates a new in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

// FindByEmail locates a user by lowercased email.
func (store *MemoryStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrEmptyEmail
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()

	id, ok := store.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return store.cloneLocked(id)
}

// GetByID fetches a user by identifier.
func (store *MemoryStore) GetByID(ctx context.Context, id string) (*User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.cloneLocked(id)
}

// Create inserts a new user record.
func (store *MemoryStore) Create(ctx context.Context, input CreateUser) (*User, error) {
	if strings.TrimSpace(input.Email) == "" {
		return nil, ErrEmptyEmail
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()

	normalizedEmail := strings.ToLower(input.Email)
	if _, exists := store.byEmail[normalizedEmail]; exists {
		return nil, ErrDuplicateEmail
	}
	now := time.Now().UTC()
	record := &User{
		ID:        uuid.NewString(),
		Name:      input.Name,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     normalizedEmail,
		AvatarURL: input.AvatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	store.byID[record.ID] = record
	store.byEmail[normalizedEmail] = record.ID
	clone := *record
	return &clone, nil
}

// List returns all users ordered by creation time.
func (store *MemoryStore) List(ctx context.Context) ([]User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	records := make([]User, 0, len(store.byID))
	for _, record := range store.byID {
		records = append(records, *record)
	}
	sort.Slice(records, func(left, right int) bool {
		return records[left].CreatedAt.Before(records[right].CreatedAt)
	})
	return records, nil
}

// Update replaces the mutable fields of a user record.
func (store *MemoryStore) Update(ctx context.Context, id string, input UpdateUser) (*User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	normalizedEmail := strings.ToLower(input.Email)
	if normalizedEmail != record.Email {
		if _, exists := store.byEmail[normalizedEmail]; exists {
			return nil, ErrDuplicateEmail
		}
		delete(store.byEmail, record.Email)
		store.byEmail[normalizedEmail] = id
	}
	record.Name = input.Name
	record.FirstName = input.FirstName
	record.LastName = input.LastName
	record.Email = normalizedEmail
	record.AvatarURL = input.AvatarURL
	record.Role = input.Role
	record.UpdatedAt = time.Now().UTC()
	clone := *record
	return &clone, nil
}

// Delete removes a user record.
func (store *MemoryStore) Delete(ctx context.Context, id string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(store.byEmail, record.Email)
	delete(store.byID, id)
	return nil
}

// SetRole assigns a role directly; intended for tests and seeding.
func (store *MemoryStore) SetRole(id string, role string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	record.Role = role
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (store *MemoryStore) cloneLocked(id string) (*User, error) {
	record, ok := store.byID[id]
	if !ok {
		return nil, fmt.Errorf("directory.memory: %w", ErrUserNotFound)
	}
	clone := *record
	return &clone, nil
}
