package domain

import "time"

// SnapshotSyncRequest carries a whole task database serialized as JSON.
type SnapshotSyncRequest struct {
	TaskDatabase string     `json:"taskDatabase"`
	LastSyncAt   *Timestamp `json:"lastSyncAt,omitempty"`
}

type SnapshotSyncResponse struct {
	TaskDatabase string     `json:"taskDatabase,omitempty"`
	LastSyncAt   *Timestamp `json:"lastSyncAt"`
	Message      string     `json:"message"`
	Success      bool       `json:"success"`
}

type SyncStatus struct {
	UserID     string     `json:"userId"`
	Email      string     `json:"email"`
	LastSyncAt *Timestamp `json:"lastSyncAt"`
	HasData    bool       `json:"hasData"`
}

// EmptyTaskDatabase is the document handed to users who never uploaded one.
type EmptyTaskDatabase struct {
	Tasks        []interface{} `json:"tasks"`
	Categories   []interface{} `json:"categories"`
	LastModified Timestamp     `json:"lastModified"`
}

func NewEmptyTaskDatabase(now time.Time) *EmptyTaskDatabase {
	return &EmptyTaskDatabase{
		Tasks:        []interface{}{},
		Categories:   []interface{}{},
		LastModified: NewTimestamp(now),
	}
}
