package websocket

import (
	"encoding/json"
	"time"

	"taskflow-sync-server/internal/codec"
	"taskflow-sync-server/internal/domain"
)

type MessageType string

const (
	TypePing             MessageType = "ping"
	TypePong             MessageType = "pong"
	TypeDeltaSync        MessageType = "delta_sync"
	TypeDeltaSyncResult  MessageType = "delta_sync_result"
	TypeChangesAvailable MessageType = "changes_available"
	TypeError            MessageType = "error"
)

type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	// Payload stays raw until the receiver knows its type.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ChangesAvailablePayload tells a client that teammates logged changes it
// has not pulled yet. Clients answer with a delta sync.
type ChangesAvailablePayload struct {
	Changes []ChangeSummary `json:"changes"`
}

type ChangeSummary struct {
	EntityType string           `json:"entityType"`
	EntityID   string           `json:"entityId"`
	Action     string           `json:"action"`
	TeamID     string           `json:"teamId,omitempty"`
	AuthorID   string           `json:"authorId"`
	Timestamp  domain.Timestamp `json:"timestamp"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func summarize(records []*domain.ChangeRecord) *ChangesAvailablePayload {
	payload := &ChangesAvailablePayload{Changes: make([]ChangeSummary, 0, len(records))}
	for _, r := range records {
		payload.Changes = append(payload.Changes, ChangeSummary{
			EntityType: r.EntityType,
			EntityID:   r.EntityID,
			Action:     r.Action,
			TeamID:     r.TeamID,
			AuthorID:   r.UserID,
			Timestamp:  domain.NewTimestamp(r.Timestamp),
		})
	}
	return payload
}

// NewMessage encodes payload with c. A nil payload leaves Payload empty.
func NewMessage(c codec.Codec, msgType MessageType, payload interface{}) (*Message, error) {
	var raw json.RawMessage
	if payload != nil {
		bytes, err := c.Stringify(payload)
		if err != nil {
			return nil, err
		}
		raw = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

func (m *Message) UnmarshalPayload(c codec.Codec, v interface{}) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return c.Parse(m.Payload, v)
}
