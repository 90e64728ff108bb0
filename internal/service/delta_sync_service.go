package service

import (
	"context"
	"fmt"
	"time"

	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/metadata"
	"taskflow-sync-server/internal/metrics"
	"taskflow-sync-server/internal/repository"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const (
	msgSyncCompleted = "Sync completed successfully"
	msgSyncFailed    = "Sync failed"
)

// ChangeNotifier tells connected clients that new changes wait for them.
type ChangeNotifier interface {
	NotifyChanges(userIDs []string, records []*domain.ChangeRecord) error
}

type ChangeStatus string

const (
	ChangeApplied    ChangeStatus = metrics.OutcomeApplied
	ChangeConflicted ChangeStatus = metrics.OutcomeConflicted
	ChangeSkipped    ChangeStatus = metrics.OutcomeSkipped
)

// ChangeOutcome is the result of applying one client change. Record is set
// for applied changes, Conflict for conflicted ones. Reason explains a skip,
// or a side effect that failed after the change was logged.
type ChangeOutcome struct {
	Change   *domain.SyncChange
	Status   ChangeStatus
	Record   *domain.ChangeRecord
	Conflict *domain.SyncConflict
	Reason   string
}

type DeltaSyncConfig struct {
	// PullHorizon is how far back a pull without lastSyncAt reaches.
	PullHorizon time.Duration
	// ChangesLookback is the default window of GetChangesSince.
	ChangesLookback time.Duration
}

// DeltaSyncService reconciles batches of client changes with the change log
// and returns what other users changed since the client last synced.
type DeltaSyncService struct {
	changeLog   repository.ChangeLogRepository
	sharedTasks repository.SharedTaskRepository
	teams       TeamDirectory
	extractor   *metadata.Extractor
	detector    *ConflictDetector
	notifier    ChangeNotifier
	validate    *validator.Validate
	locks       *entityLocks
	cfg         DeltaSyncConfig
	now         func() time.Time
}

func NewDeltaSyncService(
	changeLog repository.ChangeLogRepository,
	sharedTasks repository.SharedTaskRepository,
	teams TeamDirectory,
	extractor *metadata.Extractor,
	cfg DeltaSyncConfig,
) *DeltaSyncService {
	return &DeltaSyncService{
		changeLog:   changeLog,
		sharedTasks: sharedTasks,
		teams:       teams,
		extractor:   extractor,
		detector:    NewConflictDetector(extractor),
		validate:    validator.New(),
		locks:       newEntityLocks(),
		cfg:         cfg,
		now:         time.Now,
	}
}

func (s *DeltaSyncService) SetNotifier(notifier ChangeNotifier) {
	s.notifier = notifier
}

// ProcessDeltaSync applies req.Changes in order, then returns the changes
// other users made since req.LastSyncAt. It never fails outright: problems
// are reported through Success and Message. The returned LastSyncAt is the
// time the request started.
func (s *DeltaSyncService) ProcessDeltaSync(ctx context.Context, userID string, req *domain.DeltaSyncRequest) *domain.DeltaSyncResponse {
	timer := prometheus.NewTimer(metrics.SyncDuration.WithLabelValues(metrics.KindDelta))
	defer timer.ObserveDuration()

	syncTimestamp := s.now().UTC()
	resp := s.processDeltaSync(ctx, userID, req, syncTimestamp)

	metrics.SyncRequests.WithLabelValues(metrics.KindDelta, metrics.Result(resp.Success)).Inc()
	metrics.SyncPulledChanges.Add(float64(len(resp.Changes)))

	return resp
}

func (s *DeltaSyncService) processDeltaSync(ctx context.Context, userID string, req *domain.DeltaSyncRequest, syncTimestamp time.Time) *domain.DeltaSyncResponse {
	logger := log.WithField("user_id", userID)

	teamIDs, err := s.teams.GetUserTeamIDs(ctx, userID)
	if err != nil {
		logger.WithError(err).Error("delta sync aborted before applying changes")
		return failedSync(syncTimestamp, err, nil)
	}

	outcomes := s.ApplyChanges(ctx, userID, req.Changes)

	conflicts := make([]domain.SyncConflict, 0)
	applied, skipped := 0, 0
	for _, o := range outcomes {
		switch o.Status {
		case ChangeConflicted:
			conflicts = append(conflicts, *o.Conflict)
		case ChangeApplied:
			applied++
		case ChangeSkipped:
			skipped++
		}
	}

	s.notifyTeams(ctx, userID, outcomes)

	since := syncTimestamp.Add(-s.cfg.PullHorizon)
	if req.LastSyncAt != nil && !req.LastSyncAt.IsZero() {
		since = req.LastSyncAt.Time
	}

	changes, err := s.pull(ctx, userID, teamIDs, since)
	if err != nil {
		logger.WithError(err).Error("delta sync failed to collect server changes")
		return failedSync(syncTimestamp, err, conflicts)
	}

	logger.WithFields(log.Fields{
		"applied":   applied,
		"conflicts": len(conflicts),
		"skipped":   skipped,
		"pulled":    len(changes),
	}).Info("delta sync completed")

	return &domain.DeltaSyncResponse{
		Changes:    changes,
		Conflicts:  conflicts,
		LastSyncAt: domain.TimestampPtr(syncTimestamp),
		Success:    true,
		Message:    msgSyncCompleted,
	}
}

// ApplyChanges runs every change through conflict detection and logs the
// accepted ones. A failing change is skipped and never stops the batch.
func (s *DeltaSyncService) ApplyChanges(ctx context.Context, userID string, changes []domain.SyncChange) []ChangeOutcome {
	outcomes := make([]ChangeOutcome, 0, len(changes))

	for i := range changes {
		outcome := s.applyChange(ctx, userID, &changes[i])
		metrics.SyncChanges.WithLabelValues(string(outcome.Status)).Inc()

		if outcome.Reason != "" {
			log.WithFields(log.Fields{
				"user_id":     userID,
				"entity_type": outcome.Change.EntityType,
				"entity_id":   outcome.Change.EntityID,
				"status":      outcome.Status,
				"reason":      outcome.Reason,
			}).Warn("change not fully applied")
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

func (s *DeltaSyncService) applyChange(ctx context.Context, userID string, change *domain.SyncChange) (outcome ChangeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = skippedChange(change, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := s.validate.Struct(change); err != nil {
		return skippedChange(change, "invalid change: "+err.Error())
	}

	unlock := s.locks.Lock(change.EntityType, change.EntityID)
	defer unlock()

	existing, err := s.changeLog.FindByEntity(ctx, change.EntityType, change.EntityID)
	if err != nil {
		return skippedChange(change, err.Error())
	}

	if conflict := s.detector.Detect(existing, change); conflict != nil {
		return ChangeOutcome{Change: change, Status: ChangeConflicted, Conflict: conflict}
	}

	record := &domain.ChangeRecord{
		UserID:       userID,
		EntityType:   change.EntityType,
		EntityID:     change.EntityID,
		Action:       change.Action,
		TeamID:       s.extractor.Parse(change.Data).TeamID,
		DataSnapshot: change.Data,
	}
	if err := s.changeLog.Append(ctx, record); err != nil {
		return skippedChange(change, err.Error())
	}

	outcome = ChangeOutcome{Change: change, Status: ChangeApplied, Record: record}
	if err := s.mirrorSharedTask(ctx, userID, record); err != nil {
		outcome.Reason = "shared task link not updated: " + err.Error()
	}

	return outcome
}

// mirrorSharedTask keeps the shared task links in step with task changes
// that carry a team.
func (s *DeltaSyncService) mirrorSharedTask(ctx context.Context, userID string, record *domain.ChangeRecord) error {
	if record.EntityType != domain.EntityTask || record.TeamID == "" {
		return nil
	}

	switch record.Action {
	case domain.ActionCreate, domain.ActionUpdate:
		exists, err := s.sharedTasks.Exists(ctx, record.EntityID, record.TeamID)
		if err != nil || exists {
			return err
		}

		err = s.sharedTasks.Create(ctx, &domain.SharedTaskLink{
			TaskID:    record.EntityID,
			TeamID:    record.TeamID,
			CreatedBy: userID,
			SharedAt:  record.Timestamp,
		})
		if errors.Is(err, repository.ErrSharedTaskExists) {
			return nil
		}
		return err

	case domain.ActionDelete:
		return s.sharedTasks.Delete(ctx, record.EntityID, record.TeamID)
	}

	return nil
}

// pull returns records visible to userID written after since, leaving out
// the user's own writes.
func (s *DeltaSyncService) pull(ctx context.Context, userID string, teamIDs []string, since time.Time) ([]domain.SyncChange, error) {
	records, err := s.changeLog.FindVisibleSince(ctx, userID, teamIDs, since)
	if err != nil {
		return nil, err
	}

	changes := make([]domain.SyncChange, 0, len(records))
	for _, record := range records {
		if record.UserID == userID {
			continue
		}
		changes = append(changes, s.toSyncChange(record))
	}

	return changes, nil
}

// GetChangesSince lists every record visible to userID after since,
// including the user's own. A nil since means the configured lookback.
func (s *DeltaSyncService) GetChangesSince(ctx context.Context, userID string, since *time.Time) (*domain.ChangesSinceResponse, error) {
	now := s.now().UTC()
	from := now.Add(-s.cfg.ChangesLookback)
	if since != nil {
		from = *since
	}

	teamIDs, err := s.teams.GetUserTeamIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := s.changeLog.FindVisibleSince(ctx, userID, teamIDs, from)
	if err != nil {
		return nil, err
	}

	changes := make([]domain.SyncChange, 0, len(records))
	for _, record := range records {
		changes = append(changes, s.toSyncChange(record))
	}

	return &domain.ChangesSinceResponse{
		Changes: changes,
		Since:   domain.NewTimestamp(from),
		SyncAt:  domain.NewTimestamp(now),
	}, nil
}

// Compact drops change records older than olderThan. Clients offline for
// longer than that will not receive the dropped changes.
func (s *DeltaSyncService) Compact(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, errors.New("retention must be positive")
	}

	cutoff := s.now().UTC().Add(-olderThan)
	deleted, err := s.changeLog.DeleteBefore(ctx, cutoff)
	if err != nil {
		return deleted, errors.Wrap(err, "failed to compact change log")
	}

	metrics.CompactedRecords.Add(float64(deleted))
	log.WithFields(log.Fields{"cutoff": cutoff, "deleted": deleted}).Info("change log compacted")

	return deleted, nil
}

func (s *DeltaSyncService) notifyTeams(ctx context.Context, userID string, outcomes []ChangeOutcome) {
	if s.notifier == nil {
		return
	}

	byTeam := make(map[string][]*domain.ChangeRecord)
	for _, o := range outcomes {
		if o.Status == ChangeApplied && o.Record.TeamID != "" {
			byTeam[o.Record.TeamID] = append(byTeam[o.Record.TeamID], o.Record)
		}
	}

	for teamID, records := range byTeam {
		memberIDs, err := s.teams.GetMemberIDs(ctx, teamID)
		if err != nil {
			log.WithError(err).WithField("team_id", teamID).Warn("cannot notify team members")
			continue
		}

		recipients := mapset.NewThreadUnsafeSet(memberIDs...)
		recipients.Remove(userID)
		if recipients.Cardinality() == 0 {
			continue
		}

		if err := s.notifier.NotifyChanges(recipients.ToSlice(), records); err != nil {
			log.WithError(err).WithField("team_id", teamID).Warn("failed to notify team members")
		}
	}
}

func (s *DeltaSyncService) toSyncChange(record *domain.ChangeRecord) domain.SyncChange {
	return domain.SyncChange{
		EntityType: record.EntityType,
		EntityID:   record.EntityID,
		Action:     record.Action,
		Data:       record.DataSnapshot,
		Timestamp:  domain.TimestampPtr(record.Timestamp),
		Version:    s.extractor.Version(record.DataSnapshot),
	}
}

func skippedChange(change *domain.SyncChange, reason string) ChangeOutcome {
	return ChangeOutcome{Change: change, Status: ChangeSkipped, Reason: reason}
}

func failedSync(syncTimestamp time.Time, err error, conflicts []domain.SyncConflict) *domain.DeltaSyncResponse {
	if conflicts == nil {
		conflicts = make([]domain.SyncConflict, 0)
	}
	return &domain.DeltaSyncResponse{
		Changes:    make([]domain.SyncChange, 0),
		Conflicts:  conflicts,
		LastSyncAt: domain.TimestampPtr(syncTimestamp),
		Success:    false,
		Message:    fmt.Sprintf("%s: %v", msgSyncFailed, err),
	}
}
