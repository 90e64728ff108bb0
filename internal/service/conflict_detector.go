package service

import (
	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/metadata"
)

// ConflictDetector decides whether a client change was made against a stale
// version of its entity.
type ConflictDetector struct {
	extractor *metadata.Extractor
}

func NewConflictDetector(extractor *metadata.Extractor) *ConflictDetector {
	return &ConflictDetector{extractor: extractor}
}

// ServerVersion returns the highest version recorded for the entity and the
// record carrying it. existing is expected newest first; on equal versions the
// newest record wins. Without records the version is 0 and the record nil.
func (d *ConflictDetector) ServerVersion(existing []*domain.ChangeRecord) (int, *domain.ChangeRecord) {
	var (
		maxVersion int
		latest     *domain.ChangeRecord
	)

	for _, record := range existing {
		version := d.extractor.Version(record.DataSnapshot)
		if latest == nil || version > maxVersion {
			maxVersion = version
			latest = record
		}
	}

	return maxVersion, latest
}

// Detect returns a conflict when the server holds a newer version than the
// one the client claims, nil otherwise. Equal versions are not a conflict.
// An entity without records sits at version 0.
func (d *ConflictDetector) Detect(existing []*domain.ChangeRecord, change *domain.SyncChange) *domain.SyncConflict {
	serverVersion, latest := d.ServerVersion(existing)
	if serverVersion <= change.Version {
		return nil
	}

	conflict := &domain.SyncConflict{
		EntityType:    change.EntityType,
		EntityID:      change.EntityID,
		LocalVersion:  change.Version,
		ServerVersion: serverVersion,
		LocalData:     change.Data,
	}
	if latest != nil {
		conflict.ServerData = latest.DataSnapshot
	}

	return conflict
}
