package handler

import (
	"net/http"

	"taskflow-sync-server/internal/codec"
	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/middleware"
	"taskflow-sync-server/internal/service"
	"taskflow-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
)

type UserHandler struct {
	userService *service.UserService
	codec       codec.Codec
	validator   *validator.Validate
}

func NewUserHandler(userService *service.UserService, c codec.Codec) *UserHandler {
	return &UserHandler{
		userService: userService,
		codec:       c,
		validator:   validator.New(),
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Success(w, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req domain.UpdateProfileRequest
	if err := decodeBody(h.codec, w, r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := h.userService.UpdateName(r.Context(), userID, req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Success(w, user)
}
