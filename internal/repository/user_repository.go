package repository

import (
	"context"
	"fmt"
	"time"

	"taskflow-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
	"github.com/pkg/errors"
)

const userDocType = "user"

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	EmailExists(ctx context.Context, email string) (bool, error)
	// UpdateTaskDatabase replaces the stored snapshot and stamps lastSyncAt.
	UpdateTaskDatabase(ctx context.Context, userID, taskDatabase string, syncedAt time.Time) error
	UpdateLastSyncAt(ctx context.Context, userID string, syncedAt time.Time) error
}

type userRepository struct {
	db *kivik.DB
}

type userDoc struct {
	ID           string     `json:"_id"`
	Rev          string     `json:"_rev,omitempty"`
	DocType      string     `json:"doc_type"`
	UserID       string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Password     string     `json:"password"`
	TaskDatabase string     `json:"task_database,omitempty"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func NewUserRepository(client *kivik.Client, dbName string) UserRepository {
	return &userRepository{
		db: client.DB(dbName),
	}
}

func userDocID(id string) string {
	return fmt.Sprintf("%s:%s", userDocType, id)
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	doc := userToDoc(user)

	if _, err := r.db.Put(ctx, doc.ID, doc); err != nil {
		if isConflict(err) {
			return ErrUserExists
		}
		return errors.Wrap(err, "failed to create user")
	}

	return nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	doc, err := findOne[userDoc](ctx, r.db, map[string]interface{}{
		"doc_type": userDocType,
		"email":    email,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to query user by email")
	}
	if doc == nil {
		return nil, ErrUserNotFound
	}

	return doc.toDomain(), nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	return r.modify(ctx, user.ID, func(doc *userDoc) {
		updated := userToDoc(user)
		updated.Rev = doc.Rev
		*doc = *updated
	})
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	if _, err := r.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *userRepository) UpdateTaskDatabase(ctx context.Context, userID, taskDatabase string, syncedAt time.Time) error {
	return r.modify(ctx, userID, func(doc *userDoc) {
		doc.TaskDatabase = taskDatabase
		doc.LastSyncAt = &syncedAt
		doc.UpdatedAt = syncedAt
	})
}

func (r *userRepository) UpdateLastSyncAt(ctx context.Context, userID string, syncedAt time.Time) error {
	return r.modify(ctx, userID, func(doc *userDoc) {
		doc.LastSyncAt = &syncedAt
	})
}

func (r *userRepository) get(ctx context.Context, id string) (*userDoc, error) {
	var doc userDoc
	if err := r.db.Get(ctx, userDocID(id)).ScanDoc(&doc); err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, "failed to find user by ID")
	}
	return &doc, nil
}

// modify reads the current revision, applies fn and writes the document back.
func (r *userRepository) modify(ctx context.Context, id string, fn func(doc *userDoc)) error {
	doc, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	fn(doc)

	if _, err := r.db.Put(ctx, doc.ID, doc); err != nil {
		return errors.Wrap(err, "failed to update user")
	}

	return nil
}

func userToDoc(user *domain.User) *userDoc {
	return &userDoc{
		ID:           userDocID(user.ID),
		DocType:      userDocType,
		UserID:       user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Password:     user.Password,
		TaskDatabase: user.TaskDatabase,
		LastSyncAt:   user.LastSyncAt,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func (d *userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:           d.UserID,
		Name:         d.Name,
		Email:        d.Email,
		Password:     d.Password,
		TaskDatabase: d.TaskDatabase,
		LastSyncAt:   d.LastSyncAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
