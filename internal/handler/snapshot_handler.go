package handler

import (
	"net/http"

	"taskflow-sync-server/internal/codec"
	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/middleware"
	"taskflow-sync-server/internal/service"
	"taskflow-sync-server/pkg/response"
)

type SnapshotHandler struct {
	snapshotService *service.SnapshotSyncService
	codec           codec.Codec
}

func NewSnapshotHandler(snapshotService *service.SnapshotSyncService, c codec.Codec) *SnapshotHandler {
	return &SnapshotHandler{
		snapshotService: snapshotService,
		codec:           c,
	}
}

func (h *SnapshotHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req domain.SnapshotSyncRequest
	if err := decodeBody(h.codec, w, r, &req); err != nil {
		response.Raw(w, http.StatusBadRequest, &domain.SnapshotSyncResponse{
			Message: "Invalid request body",
		})
		return
	}

	writeSnapshot(w, h.snapshotService.Upload(r.Context(), userID, req.TaskDatabase))
}

func (h *SnapshotHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	writeSnapshot(w, h.snapshotService.Download(r.Context(), userID))
}

func (h *SnapshotHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	status, err := h.snapshotService.Status(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Raw(w, http.StatusOK, status)
}

func writeSnapshot(w http.ResponseWriter, resp *domain.SnapshotSyncResponse) {
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusBadRequest
	}
	response.Raw(w, status, resp)
}
