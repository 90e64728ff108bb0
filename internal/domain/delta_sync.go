package domain

// SyncChange is one entity mutation as exchanged with clients, in both
// directions. Data is the opaque entity snapshot; Version is the version the
// client claims to be editing from.
type SyncChange struct {
	EntityType string     `json:"entityType" validate:"required"`
	EntityID   string     `json:"entityId" validate:"required"`
	Action     string     `json:"action" validate:"required,oneof=create update delete"`
	Data       string     `json:"data"`
	Timestamp  *Timestamp `json:"timestamp,omitempty"`
	Version    int        `json:"version"`
}

type DeltaSyncRequest struct {
	Changes    []SyncChange `json:"changes"`
	LastSyncAt *Timestamp   `json:"lastSyncAt"`
}

type DeltaSyncResponse struct {
	Changes    []SyncChange   `json:"changes"`
	Conflicts  []SyncConflict `json:"conflicts"`
	LastSyncAt *Timestamp     `json:"lastSyncAt"`
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
}

// SyncConflict describes a client change rejected because the server holds
// a newer version of the entity.
type SyncConflict struct {
	EntityType    string `json:"entityType"`
	EntityID      string `json:"entityId"`
	LocalVersion  int    `json:"localVersion"`
	ServerVersion int    `json:"serverVersion"`
	ServerData    string `json:"serverData"`
	LocalData     string `json:"localData"`
}

type ChangesSinceResponse struct {
	Changes []SyncChange `json:"changes"`
	Since   Timestamp    `json:"since"`
	SyncAt  Timestamp    `json:"syncAt"`
}
