package service

import (
	"context"
	"strings"
	"time"

	"taskflow-sync-server/internal/codec"
	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/metrics"
	"taskflow-sync-server/internal/repository"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

var (
	ErrEmptyTaskDatabase   = errors.New("task database cannot be empty")
	ErrInvalidTaskDatabase = errors.New("invalid task database format")
)

const (
	msgUploadSucceeded   = "Database uploaded successfully"
	msgDownloadSucceeded = "Database downloaded successfully"
)

// SnapshotSyncService stores one whole task database per user. Every upload
// replaces the previous snapshot entirely.
type SnapshotSyncService struct {
	userRepo repository.UserRepository
	codec    codec.Codec
	now      func() time.Time
}

func NewSnapshotSyncService(userRepo repository.UserRepository, c codec.Codec) *SnapshotSyncService {
	return &SnapshotSyncService{
		userRepo: userRepo,
		codec:    c,
		now:      time.Now,
	}
}

// Upload validates and stores taskDatabase as the user's snapshot.
func (s *SnapshotSyncService) Upload(ctx context.Context, userID, taskDatabase string) *domain.SnapshotSyncResponse {
	timer := prometheus.NewTimer(metrics.SyncDuration.WithLabelValues(metrics.KindUpload))
	defer timer.ObserveDuration()

	resp := s.upload(ctx, userID, taskDatabase)
	metrics.SyncRequests.WithLabelValues(metrics.KindUpload, metrics.Result(resp.Success)).Inc()
	return resp
}

func (s *SnapshotSyncService) upload(ctx context.Context, userID, taskDatabase string) *domain.SnapshotSyncResponse {
	logger := log.WithField("user_id", userID)

	if err := s.ValidateTaskDatabase(taskDatabase); err != nil {
		logger.WithError(err).Warn("rejected task database upload")
		return failedSnapshot(err)
	}

	syncedAt := s.now().UTC()
	if err := s.userRepo.UpdateTaskDatabase(ctx, userID, taskDatabase, syncedAt); err != nil {
		logger.WithError(err).Error("failed to store task database")
		return failedSnapshot(errors.Wrap(err, "upload failed"))
	}

	logger.WithField("bytes", len(taskDatabase)).Info("task database uploaded")

	return &domain.SnapshotSyncResponse{
		TaskDatabase: taskDatabase,
		LastSyncAt:   domain.TimestampPtr(syncedAt),
		Message:      msgUploadSucceeded,
		Success:      true,
	}
}

// Download returns the stored snapshot, or an empty database when the user
// never uploaded one. Either way the user's lastSyncAt advances.
func (s *SnapshotSyncService) Download(ctx context.Context, userID string) *domain.SnapshotSyncResponse {
	timer := prometheus.NewTimer(metrics.SyncDuration.WithLabelValues(metrics.KindDownload))
	defer timer.ObserveDuration()

	resp := s.download(ctx, userID)
	metrics.SyncRequests.WithLabelValues(metrics.KindDownload, metrics.Result(resp.Success)).Inc()
	return resp
}

func (s *SnapshotSyncService) download(ctx context.Context, userID string) *domain.SnapshotSyncResponse {
	logger := log.WithField("user_id", userID)

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		logger.WithError(err).Error("failed to load user for download")
		return failedSnapshot(errors.Wrap(err, "download failed"))
	}

	syncedAt := s.now().UTC()

	taskDatabase := user.TaskDatabase
	if strings.TrimSpace(taskDatabase) == "" {
		empty, err := s.codec.Stringify(domain.NewEmptyTaskDatabase(syncedAt))
		if err != nil {
			return failedSnapshot(errors.Wrap(err, "download failed"))
		}
		taskDatabase = string(empty)
	}

	if err := s.userRepo.UpdateLastSyncAt(ctx, userID, syncedAt); err != nil {
		logger.WithError(err).Error("failed to record download time")
		return failedSnapshot(errors.Wrap(err, "download failed"))
	}

	return &domain.SnapshotSyncResponse{
		TaskDatabase: taskDatabase,
		LastSyncAt:   domain.TimestampPtr(syncedAt),
		Message:      msgDownloadSucceeded,
		Success:      true,
	}
}

// Status reports when the user last synced and whether a snapshot exists.
func (s *SnapshotSyncService) Status(ctx context.Context, userID string) (*domain.SyncStatus, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &domain.SyncStatus{
		UserID:  user.ID,
		Email:   user.Email,
		HasData: strings.TrimSpace(user.TaskDatabase) != "",
	}
	if user.LastSyncAt != nil {
		status.LastSyncAt = domain.TimestampPtr(*user.LastSyncAt)
	}

	return status, nil
}

// ValidateTaskDatabase requires a JSON object with "tasks" and "categories"
// arrays.
func (s *SnapshotSyncService) ValidateTaskDatabase(taskDatabase string) error {
	if strings.TrimSpace(taskDatabase) == "" {
		return ErrEmptyTaskDatabase
	}

	var doc map[string]interface{}
	if err := s.codec.Parse([]byte(taskDatabase), &doc); err != nil || doc == nil {
		return ErrInvalidTaskDatabase
	}

	for _, field := range []string{"tasks", "categories"} {
		if _, ok := doc[field].([]interface{}); !ok {
			return ErrInvalidTaskDatabase
		}
	}

	return nil
}

func failedSnapshot(err error) *domain.SnapshotSyncResponse {
	return &domain.SnapshotSyncResponse{
		Message: err.Error(),
		Success: false,
	}
}
