package user

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// Profile carries the identity fields used to register a social login.
type Profile struct {
	Email   string
	Name    string
	Picture string
}

// Store exposes user lookup and registration.
type Store interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	EnsureUser(ctx context.Context, profile Profile) (User, bool, error)
}

// GormStore implements Store on top of a gorm database handle.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore returns a GormStore using db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the users table.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	return nil
}

// FindByEmail looks up a user by email.
func (s *GormStore) FindByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user %s: %w", email, err)
	}
	return u, nil
}

// EnsureUser inserts the profile if no user with that email exists yet.
// The boolean reports whether a row was created.
func (s *GormStore) EnsureUser(ctx context.Context, profile Profile) (User, bool, error) {
	if profile.Email == "" {
		return User{}, false, fmt.Errorf("email is required")
	}

	existing, err := s.FindByEmail(ctx, profile.Email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, false, err
	}

	u := User{
		FullName: profile.Name,
		Email:    profile.Email,
		Picture:  profile.Picture,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		// A concurrent login may have inserted the same email first.
		if existing, findErr := s.FindByEmail(ctx, profile.Email); findErr == nil {
			return existing, false, nil
		}
		return User{}, false, fmt.Errorf("create user %s: %w", profile.Email, err)
	}
	return u, true, nil
}
