package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"taskflow-sync-server/internal/domain"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const changeRecordColumns = "id, user_id, entity_type, entity_id, action, team_id, timestamp_ns, data_snapshot"

// ChangeLog is the SQLite implementation of repository.ChangeLogRepository.
type ChangeLog struct {
	db  *sql.DB
	now func() time.Time
}

func NewChangeLog(db *sql.DB) *ChangeLog {
	return &ChangeLog{db: db, now: time.Now}
}

// WithClock replaces the clock used to stamp appended records.
func (l *ChangeLog) WithClock(now func() time.Time) *ChangeLog {
	l.now = now
	return l
}

func (l *ChangeLog) Append(ctx context.Context, record *domain.ChangeRecord) error {
	record.ID = uuid.New().String()
	record.Timestamp = l.now().UTC()

	var teamID sql.NullString
	if record.TeamID != "" {
		teamID = sql.NullString{String: record.TeamID, Valid: true}
	}

	_, err := l.db.ExecContext(ctx,
		"INSERT INTO change_records ("+changeRecordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		record.ID, record.UserID, record.EntityType, record.EntityID, record.Action,
		teamID, record.Timestamp.UnixNano(), record.DataSnapshot,
	)
	if err != nil {
		return errors.Wrap(err, "insert change record")
	}

	return nil
}

func (l *ChangeLog) FindByEntity(ctx context.Context, entityType, entityID string) ([]*domain.ChangeRecord, error) {
	return l.query(ctx,
		"SELECT "+changeRecordColumns+" FROM change_records WHERE entity_type = ? AND entity_id = ? ORDER BY timestamp_ns DESC, rowid DESC",
		entityType, entityID,
	)
}

func (l *ChangeLog) FindVisibleSince(ctx context.Context, userID string, teamIDs []string, since time.Time) ([]*domain.ChangeRecord, error) {
	var sb strings.Builder
	sb.WriteString("SELECT " + changeRecordColumns + " FROM change_records WHERE timestamp_ns > ? AND (user_id = ?")
	args := []interface{}{domain.UnixNano(since), userID}

	if len(teamIDs) > 0 {
		sb.WriteString(" OR team_id IN (")
		for i, teamID := range teamIDs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("?")
			args = append(args, teamID)
		}
		sb.WriteString(")")
	}
	sb.WriteString(") ORDER BY timestamp_ns ASC, rowid ASC")

	return l.query(ctx, sb.String(), args...)
}

func (l *ChangeLog) DeleteBefore(ctx context.Context, before time.Time) (int, error) {
	res, err := l.db.ExecContext(ctx, "DELETE FROM change_records WHERE timestamp_ns < ?", domain.UnixNano(before))
	if err != nil {
		return 0, errors.Wrap(err, "delete change records")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "count deleted change records")
	}

	return int(n), nil
}

func (l *ChangeLog) query(ctx context.Context, query string, args ...interface{}) ([]*domain.ChangeRecord, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query change records")
	}
	defer rows.Close()

	var records []*domain.ChangeRecord
	for rows.Next() {
		var (
			record      domain.ChangeRecord
			teamID      sql.NullString
			timestampNS int64
		)
		if err := rows.Scan(
			&record.ID, &record.UserID, &record.EntityType, &record.EntityID,
			&record.Action, &teamID, &timestampNS, &record.DataSnapshot,
		); err != nil {
			return nil, errors.Wrap(err, "scan change record")
		}
		record.TeamID = teamID.String
		record.Timestamp = time.Unix(0, timestampNS).UTC()
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate change records")
	}

	return records, nil
}
