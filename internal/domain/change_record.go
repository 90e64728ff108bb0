package domain

import "time"

const (
	EntityTask     = "task"
	EntityProject  = "project"
	EntityCategory = "category"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ChangeRecord is one accepted mutation in the append-only change log.
// ID and Timestamp are assigned by the store when the record is written.
type ChangeRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	EntityType   string    `json:"entity_type"`
	EntityID     string    `json:"entity_id"`
	Action       string    `json:"action"`
	TeamID       string    `json:"team_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	DataSnapshot string    `json:"data_snapshot"`
}

// SharedTaskLink records that a task is visible to a team.
// (TaskID, TeamID) is unique.
type SharedTaskLink struct {
	TaskID    string    `json:"task_id"`
	TeamID    string    `json:"team_id"`
	CreatedBy string    `json:"created_by"`
	SharedAt  time.Time `json:"shared_at"`
}
