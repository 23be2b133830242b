package directory

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUserNotFound indicates no user matched the provided identifier or email.
	ErrUserNotFound = errors.New("directory.user_not_found")
	// ErrEmptyEmail indicates a lookup or create call with an empty email.
	ErrEmptyEmail = errors.New("directory.empty_email")
	// ErrDuplicateEmail indicates a create call for an email that already exists.
	ErrDuplicateEmail = errors.New("directory.duplicate_email")
)

// User is an application user record. Email is stored lowercased; Role is
// empty for users without an assigned role.
type User struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	FirstName string    `gorm:"column:first_name;not null;default:''" json:"firstName"`
	LastName  string    `gorm:"column:last_name;not null;default:''" json:"lastName"`
	Email     string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	AvatarURL string    `gorm:"column:avatar_url;not null;default:''" json:"avatarUrl,omitempty"`
	Role      string    `gorm:"column:role;not null;default:''" json:"role,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" json:"-"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"-"`
}

// TableName pins the GORM table name.
func (User) TableName() string {
	return "users"
}

// CreateUser carries the fields accepted when a user record is created.
type CreateUser struct {
	Name      string
	FirstName string
	LastName  string
	Email     string
	AvatarURL string
}

// UpdateUser carries the fields accepted when a user record is updated.
type UpdateUser struct {
	Name      string
	FirstName string
	LastName  string
	Email     string
	AvatarURL string
	Role      string
}

// Directory is the read/create surface the auth layer depends on.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, input CreateUser) (*User, error)
}

// Store is the full persistence surface including the administrative
// operations exposed under /api/users.
type Store interface {
	Directory
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, id string, input UpdateUser) (*User, error)
	Delete(ctx context.Context, id string) error
}
