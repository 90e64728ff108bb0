package handler

import (
	"net/http"
	"time"

	"taskflow-sync-server/internal/codec"
	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/middleware"
	"taskflow-sync-server/internal/service"
	"taskflow-sync-server/pkg/response"
)

// SyncHandler serves delta sync. Its bodies are not wrapped in the usual
// response envelope since they carry success and message themselves.
type SyncHandler struct {
	deltaService *service.DeltaSyncService
	codec        codec.Codec
}

func NewSyncHandler(deltaService *service.DeltaSyncService, c codec.Codec) *SyncHandler {
	return &SyncHandler{
		deltaService: deltaService,
		codec:        c,
	}
}

func (h *SyncHandler) Delta(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req domain.DeltaSyncRequest
	if err := decodeBody(h.codec, w, r, &req); err != nil {
		response.Raw(w, http.StatusBadRequest, &domain.DeltaSyncResponse{
			Changes:   []domain.SyncChange{},
			Conflicts: []domain.SyncConflict{},
			Success:   false,
			Message:   "Invalid request body: " + err.Error(),
		})
		return
	}

	resp := h.deltaService.ProcessDeltaSync(r.Context(), userID, &req)

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusInternalServerError
	}
	response.Raw(w, status, resp)
}

// Changes lists everything visible to the user since the "since" query
// parameter, own changes included.
func (h *SyncHandler) Changes(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := domain.ParseTimestamp(raw)
		if err != nil {
			response.BadRequest(w, "Invalid since parameter")
			return
		}
		since = &parsed
	}

	resp, err := h.deltaService.GetChangesSince(r.Context(), userID, since)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Raw(w, http.StatusOK, resp)
}
