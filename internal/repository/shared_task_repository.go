package repository

import (
	"context"
	"fmt"
	"time"

	"taskflow-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
	"github.com/pkg/errors"
)

const sharedTaskDocType = "shared_task"

type SharedTaskRepository interface {
	Exists(ctx context.Context, taskID, teamID string) (bool, error)
	// Create returns ErrSharedTaskExists when the pair is already linked.
	Create(ctx context.Context, link *domain.SharedTaskLink) error
	// Delete is a no-op for a pair that is not linked.
	Delete(ctx context.Context, taskID, teamID string) error
	ListByTeam(ctx context.Context, teamID string) ([]*domain.SharedTaskLink, error)
}

type sharedTaskRepository struct {
	db *kivik.DB
}

type sharedTaskDoc struct {
	ID        string `json:"_id"`
	Rev       string `json:"_rev,omitempty"`
	DocType   string `json:"doc_type"`
	TaskID    string `json:"task_id"`
	TeamID    string `json:"team_id"`
	CreatedBy string `json:"created_by"`
	SharedAt  string `json:"shared_at"`
}

func NewSharedTaskRepository(client *kivik.Client, dbName string) SharedTaskRepository {
	return &sharedTaskRepository{
		db: client.DB(dbName),
	}
}

// The document id encodes the (task, team) pair, so CouchDB itself rejects
// a second link for the same pair with 409.
func sharedTaskDocID(taskID, teamID string) string {
	return fmt.Sprintf("%s:%s:%s", sharedTaskDocType, taskID, teamID)
}

func (r *sharedTaskRepository) Exists(ctx context.Context, taskID, teamID string) (bool, error) {
	var doc sharedTaskDoc
	if err := r.db.Get(ctx, sharedTaskDocID(taskID, teamID)).ScanDoc(&doc); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to get shared task")
	}
	return true, nil
}

func (r *sharedTaskRepository) Create(ctx context.Context, link *domain.SharedTaskLink) error {
	doc := sharedTaskDoc{
		ID:        sharedTaskDocID(link.TaskID, link.TeamID),
		DocType:   sharedTaskDocType,
		TaskID:    link.TaskID,
		TeamID:    link.TeamID,
		CreatedBy: link.CreatedBy,
		SharedAt:  link.SharedAt.UTC().Format(time.RFC3339Nano),
	}

	if _, err := r.db.Put(ctx, doc.ID, doc); err != nil {
		if isConflict(err) {
			return ErrSharedTaskExists
		}
		return errors.Wrap(err, "failed to create shared task")
	}

	return nil
}

func (r *sharedTaskRepository) Delete(ctx context.Context, taskID, teamID string) error {
	docID := sharedTaskDocID(taskID, teamID)

	var doc sharedTaskDoc
	if err := r.db.Get(ctx, docID).ScanDoc(&doc); err != nil {
		if isNotFound(err) {
			return nil
		}
		return errors.Wrap(err, "failed to get shared task for delete")
	}

	if _, err := r.db.Delete(ctx, docID, doc.Rev); err != nil && !isNotFound(err) {
		return errors.Wrap(err, "failed to delete shared task")
	}

	return nil
}

func (r *sharedTaskRepository) ListByTeam(ctx context.Context, teamID string) ([]*domain.SharedTaskLink, error) {
	docs, err := findAll[sharedTaskDoc](ctx, r.db, map[string]interface{}{
		"doc_type": sharedTaskDocType,
		"team_id":  teamID,
	})
	if err != nil {
		return nil, err
	}

	links := make([]*domain.SharedTaskLink, 0, len(docs))
	for _, doc := range docs {
		sharedAt, err := time.Parse(time.RFC3339Nano, doc.SharedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse shared_at")
		}
		links = append(links, &domain.SharedTaskLink{
			TaskID:    doc.TaskID,
			TeamID:    doc.TeamID,
			CreatedBy: doc.CreatedBy,
			SharedAt:  sharedAt,
		})
	}

	return links, nil
}
