package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/driftfs/driftfs/pkg/vfs/models"
)

// CreateUser inserts a new user together with the root directory of their
// filesystem. Both records are created in one transaction so a user never
// exists without a root node.
func (s *GORMStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := user.Validate(); err != nil {
		return err
	}
	return s.Transaction(ctx, func(tx *GORMStore) error {
		if err := tx.db.Create(user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s", models.ErrDuplicateUser, user.Username)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		root := models.NewRoot(user.ID)
		root.CreatedBy = user.ID
		root.UpdatedBy = user.ID
		if err := tx.db.Create(root).Error; err != nil {
			return fmt.Errorf("failed to create root directory: %w", err)
		}
		return nil
	})
}

// GetUser retrieves a user by username.
func (s *GORMStore) GetUser(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *GORMStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrUserNotFound)
	}
	return &user, nil
}

// ListUsers returns all users ordered by username.
func (s *GORMStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateUserPassword replaces a user's password hash.
func (s *GORMStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		return fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user and their entire filesystem tree. Blob records
// referenced by the user's files are released by the caller before the user
// is deleted; this method only removes the user and node rows.
func (s *GORMStore) DeleteUser(ctx context.Context, id string) error {
	return s.Transaction(ctx, func(tx *GORMStore) error {
		if err := tx.db.Delete(&models.Node{}, "owner_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete user nodes: %w", err)
		}
		result := tx.db.Delete(&models.User{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return models.ErrUserNotFound
		}
		return nil
	})
}

// ValidateCredentials checks a username and password pair and returns the
// matching user. It returns models.ErrInvalidCredentials for both unknown
// users and wrong passwords so callers cannot distinguish the two cases.
func (s *GORMStore) ValidateCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, models.ErrInvalidCredentials
	}
	if !models.VerifyPassword(password, user.PasswordHash) {
		return nil, models.ErrInvalidCredentials
	}
	return user, nil
}
