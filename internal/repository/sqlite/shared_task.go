package sqlite

import (
	"context"
	"database/sql"
	"time"

	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/repository"

	"github.com/pkg/errors"
)

// SharedTasks is the SQLite implementation of repository.SharedTaskRepository.
type SharedTasks struct {
	db *sql.DB
}

func NewSharedTasks(db *sql.DB) *SharedTasks {
	return &SharedTasks{db: db}
}

func (s *SharedTasks) Exists(ctx context.Context, taskID, teamID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM shared_tasks WHERE task_id = ? AND team_id = ? LIMIT 1",
		taskID, teamID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "check shared task")
	}
	return true, nil
}

func (s *SharedTasks) Create(ctx context.Context, link *domain.SharedTaskLink) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO shared_tasks (task_id, team_id, created_by, shared_at_ns) VALUES (?, ?, ?, ?) ON CONFLICT (task_id, team_id) DO NOTHING",
		link.TaskID, link.TeamID, link.CreatedBy, link.SharedAt.UnixNano(),
	)
	if err != nil {
		return errors.Wrap(err, "insert shared task")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "count inserted shared tasks")
	}
	if n == 0 {
		return repository.ErrSharedTaskExists
	}

	return nil
}

func (s *SharedTasks) Delete(ctx context.Context, taskID, teamID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM shared_tasks WHERE task_id = ? AND team_id = ?",
		taskID, teamID,
	); err != nil {
		return errors.Wrap(err, "delete shared task")
	}
	return nil
}

func (s *SharedTasks) ListByTeam(ctx context.Context, teamID string) ([]*domain.SharedTaskLink, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT task_id, team_id, created_by, shared_at_ns FROM shared_tasks WHERE team_id = ? ORDER BY shared_at_ns, task_id",
		teamID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query shared tasks")
	}
	defer rows.Close()

	var links []*domain.SharedTaskLink
	for rows.Next() {
		var (
			link       domain.SharedTaskLink
			sharedAtNS int64
		)
		if err := rows.Scan(&link.TaskID, &link.TeamID, &link.CreatedBy, &sharedAtNS); err != nil {
			return nil, errors.Wrap(err, "scan shared task")
		}
		link.SharedAt = time.Unix(0, sharedAtNS).UTC()
		links = append(links, &link)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate shared tasks")
	}

	return links, nil
}
