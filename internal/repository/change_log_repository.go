package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"taskflow-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const changeRecordDocType = "change_record"

// ChangeLogRepository is the append-only ledger of accepted changes.
type ChangeLogRepository interface {
	// Append stores record, assigning its ID and Timestamp.
	Append(ctx context.Context, record *domain.ChangeRecord) error
	// FindByEntity returns every record of one entity, newest first.
	FindByEntity(ctx context.Context, entityType, entityID string) ([]*domain.ChangeRecord, error)
	// FindVisibleSince returns records written after since that were either
	// authored by userID or belong to one of teamIDs, oldest first.
	FindVisibleSince(ctx context.Context, userID string, teamIDs []string, since time.Time) ([]*domain.ChangeRecord, error)
	// DeleteBefore removes records written before the cutoff and reports how many.
	DeleteBefore(ctx context.Context, before time.Time) (int, error)
}

type changeLogRepository struct {
	db  *kivik.DB
	now func() time.Time
}

type changeRecordDoc struct {
	ID           string `json:"_id"`
	Rev          string `json:"_rev,omitempty"`
	DocType      string `json:"doc_type"`
	UserID       string `json:"user_id"`
	EntityType   string `json:"entity_type"`
	EntityID     string `json:"entity_id"`
	Action       string `json:"action"`
	TeamID       string `json:"team_id,omitempty"`
	Timestamp    string `json:"timestamp"`
	TimestampNS  int64  `json:"timestamp_ns"`
	DataSnapshot string `json:"data_snapshot"`
}

func NewChangeLogRepository(client *kivik.Client, dbName string) ChangeLogRepository {
	return &changeLogRepository{
		db:  client.DB(dbName),
		now: time.Now,
	}
}

func (r *changeLogRepository) Append(ctx context.Context, record *domain.ChangeRecord) error {
	record.ID = uuid.New().String()
	record.Timestamp = r.now().UTC()

	doc := changeRecordDoc{
		ID:           fmt.Sprintf("%s:%s", changeRecordDocType, record.ID),
		DocType:      changeRecordDocType,
		UserID:       record.UserID,
		EntityType:   record.EntityType,
		EntityID:     record.EntityID,
		Action:       record.Action,
		TeamID:       record.TeamID,
		Timestamp:    record.Timestamp.Format(time.RFC3339Nano),
		TimestampNS:  record.Timestamp.UnixNano(),
		DataSnapshot: record.DataSnapshot,
	}

	if _, err := r.db.Put(ctx, doc.ID, doc); err != nil {
		return errors.Wrap(err, "failed to append change record")
	}

	return nil
}

func (r *changeLogRepository) FindByEntity(ctx context.Context, entityType, entityID string) ([]*domain.ChangeRecord, error) {
	docs, err := findAll[changeRecordDoc](ctx, r.db, map[string]interface{}{
		"doc_type":    changeRecordDocType,
		"entity_type": entityType,
		"entity_id":   entityID,
	})
	if err != nil {
		return nil, err
	}

	records := docsToRecords(docs)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	return records, nil
}

func (r *changeLogRepository) FindVisibleSince(ctx context.Context, userID string, teamIDs []string, since time.Time) ([]*domain.ChangeRecord, error) {
	docs, err := findAll[changeRecordDoc](ctx, r.db, visibleSinceSelector(userID, teamIDs, since))
	if err != nil {
		return nil, err
	}

	records := docsToRecords(docs)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	return records, nil
}

func (r *changeLogRepository) DeleteBefore(ctx context.Context, before time.Time) (int, error) {
	docs, err := findAll[changeRecordDoc](ctx, r.db, writtenBeforeSelector(before))
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, doc := range docs {
		if _, err := r.db.Delete(ctx, doc.ID, doc.Rev); err != nil {
			if isNotFound(err) {
				continue
			}
			return deleted, errors.Wrapf(err, "failed to delete change record %s", doc.ID)
		}
		deleted++
	}

	return deleted, nil
}

// visibleSinceSelector matches records newer than since that userID wrote
// or that belong to one of teamIDs.
func visibleSinceSelector(userID string, teamIDs []string, since time.Time) map[string]interface{} {
	scope := []interface{}{
		map[string]interface{}{"user_id": userID},
	}
	if len(teamIDs) > 0 {
		scope = append(scope, map[string]interface{}{
			"team_id": map[string]interface{}{"$in": teamIDs},
		})
	}

	return map[string]interface{}{
		"doc_type":     changeRecordDocType,
		"timestamp_ns": map[string]interface{}{"$gt": domain.UnixNano(since)},
		"$or":          scope,
	}
}

func writtenBeforeSelector(before time.Time) map[string]interface{} {
	return map[string]interface{}{
		"doc_type":     changeRecordDocType,
		"timestamp_ns": map[string]interface{}{"$lt": domain.UnixNano(before)},
	}
}

func docsToRecords(docs []*changeRecordDoc) []*domain.ChangeRecord {
	records := make([]*domain.ChangeRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, &domain.ChangeRecord{
			ID:           strings.TrimPrefix(doc.ID, changeRecordDocType+":"),
			UserID:       doc.UserID,
			EntityType:   doc.EntityType,
			EntityID:     doc.EntityID,
			Action:       doc.Action,
			TeamID:       doc.TeamID,
			Timestamp:    time.Unix(0, doc.TimestampNS).UTC(),
			DataSnapshot: doc.DataSnapshot,
		})
	}
	return records
}
