package service

import (
	"testing"

	"taskflow-sync-server/internal/codec"
	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/metadata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotRecords(snapshots ...string) []*domain.ChangeRecord {
	out := make([]*domain.ChangeRecord, 0, len(snapshots))
	for i, s := range snapshots {
		out = append(out, &domain.ChangeRecord{ID: string(rune('a' + i)), DataSnapshot: s})
	}
	return out
}

func TestConflictDetector_ServerVersion(t *testing.T) {
	detector := NewConflictDetector(metadata.NewExtractor(codec.New()))

	tests := []struct {
		name        string
		existing    []*domain.ChangeRecord
		wantVersion int
		wantID      string
	}{
		{name: "no records", existing: nil, wantVersion: 0},
		{name: "single record", existing: snapshotRecords(`{"version":4}`), wantVersion: 4, wantID: "a"},
		{name: "max is not newest", existing: snapshotRecords(`{"version":2}`, `{"version":7}`, `{"version":3}`), wantVersion: 7, wantID: "b"},
		{name: "tie keeps newest", existing: snapshotRecords(`{"version":3}`, `{"version":3}`), wantVersion: 3, wantID: "a"},
		{name: "unparseable counts as zero", existing: snapshotRecords(`not json`, `{"version":1}`), wantVersion: 1, wantID: "b"},
		{name: "all unversioned", existing: snapshotRecords(`{}`, `[]`), wantVersion: 0, wantID: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, latest := detector.ServerVersion(tt.existing)
			assert.Equal(t, tt.wantVersion, version)
			if tt.wantID == "" {
				assert.Nil(t, latest)
				return
			}
			require.NotNil(t, latest)
			assert.Equal(t, tt.wantID, latest.ID)
		})
	}
}

func TestConflictDetector_Detect(t *testing.T) {
	detector := NewConflictDetector(metadata.NewExtractor(codec.New()))
	existing := snapshotRecords(`{"version":3,"title":"server"}`, `{"version":1}`)

	tests := []struct {
		name         string
		existing     []*domain.ChangeRecord
		localVersion int
		wantConflict bool
		wantServer   string
	}{
		{name: "older local version", existing: existing, localVersion: 2, wantConflict: true, wantServer: `{"version":3,"title":"server"}`},
		{name: "equal version", existing: existing, localVersion: 3},
		{name: "newer local version", existing: existing, localVersion: 9},
		{name: "new entity", existing: nil, localVersion: 0},
		{name: "negative version on new entity", existing: nil, localVersion: -1, wantConflict: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := &domain.SyncChange{
				EntityType: domain.EntityTask,
				EntityID:   "t1",
				Action:     domain.ActionUpdate,
				Data:       `{"title":"local"}`,
				Version:    tt.localVersion,
			}

			conflict := detector.Detect(tt.existing, change)
			if !tt.wantConflict {
				assert.Nil(t, conflict)
				return
			}

			require.NotNil(t, conflict)
			assert.Equal(t, "t1", conflict.EntityID)
			assert.Equal(t, tt.localVersion, conflict.LocalVersion)
			assert.Equal(t, tt.wantServer, conflict.ServerData)
			assert.Equal(t, change.Data, conflict.LocalData)
		})
	}
}
