package directory

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("directory.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("directory.empty_database_url")
	errSQLiteEmptyPath     = errors.New("directory.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("directory.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("directory.unsupported_no_scheme")
)

// DatabaseStore persists users using GORM.
type DatabaseStore struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *DatabaseStore) Driver() string {
	return store.driverLabel
}

// NewDatabaseStore constructs a GORM-backed store from a database URL.
func NewDatabaseStore(ctx context.Context, databaseURL string) (*DatabaseStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("directory.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if openErr != nil {
		return nil, fmt.Errorf("directory.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&User{}); migrateErr != nil {
		return nil, fmt.Errorf("directory.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseStore{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// FindByEmail locates a user by email, compared case-insensitively.
func (store *DatabaseStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("directory.find_by_email.%s: %w", store.driverLabel, ErrEmptyEmail)
	}
	var record User
	err := store.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("directory.find_by_email.%s: %w", store.driverLabel, ErrUserNotFound)
		}
		return nil, fmt.Errorf("directory.find_by_email.%s: %w", store.driverLabel, err)
	}
	return &record, nil
}

// GetByID fetches a user record by its identifier.
func (store *DatabaseStore) GetByID(ctx context.Context, id string) (*User, error) {
	var record User
	err := store.db.WithContext(ctx).Where("id = ?", id).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("directory.get_by_id.%s: %w", store.driverLabel, ErrUserNotFound)
		}
		return nil, fmt.Errorf("directory.get_by_id.%s: %w", store.driverLabel, err)
	}
	return &record, nil
}

// Create inserts a new user record with a generated identifier. Email is
// lowercased before storage so repeated logins resolve to one record.
func (store *DatabaseStore) Create(ctx context.Context, input CreateUser) (*User, error) {
	if strings.TrimSpace(input.Email) == "" {
		return nil, fmt.Errorf("directory.create.%s: %w", store.driverLabel, ErrEmptyEmail)
	}
	now := time.Now().UTC()
	record := User{
		ID:        uuid.NewString(),
		Name:      input.Name,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     strings.ToLower(input.Email),
		AvatarURL: input.AvatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("directory.create.%s: %w", store.driverLabel, ErrDuplicateEmail)
		}
		return nil, fmt.Errorf("directory.create.%s: %w", store.driverLabel, err)
	}
	return &record, nil
}

// List returns all user records.
func (store *DatabaseStore) List(ctx context.Context) ([]User, error) {
	var records []User
	if err := store.db.WithContext(ctx).Order("created_at").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("directory.list.%s: %w", store.driverLabel, err)
	}
	return records, nil
}

// Update replaces the mutable fields of a user record.
func (store *DatabaseStore) Update(ctx context.Context, id string, input UpdateUser) (*User, error) {
	result := store.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":       input.Name,
		"first_name": input.FirstName,
		"last_name":  input.LastName,
		"email":      strings.ToLower(input.Email),
		"avatar_url": input.AvatarURL,
		"role":       input.Role,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return nil, fmt.Errorf("directory.update.%s: %w", store.driverLabel, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("directory.update.%s: %w", store.driverLabel, ErrUserNotFound)
	}
	return store.GetByID(ctx, id)
}

// Delete removes a user record.
func (store *DatabaseStore) Delete(ctx context.Context, id string) error {
	result := store.db.WithContext(ctx).Where("id = ?", id).Delete(&User{})
	if result.Error != nil {
		return fmt.Errorf("directory.delete.%s: %w", store.driverLabel, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("directory.delete.%s: %w", store.driverLabel, ErrUserNotFound)
	}
	return nil
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("directory.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("directory.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("directory.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("directory.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
