package handler

import (
	"net/http"

	"taskflow-sync-server/internal/codec"
	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/service"
	"taskflow-sync-server/pkg/hash"
	"taskflow-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

type AuthHandler struct {
	authService *service.AuthService
	codec       codec.Codec
	validator   *validator.Validate
}

func NewAuthHandler(authService *service.AuthService, c codec.Codec) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		codec:       c,
		validator:   validator.New(),
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeBody(h.codec, w, r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		if errors.Is(err, hash.ErrPasswordTooShort) {
			response.BadRequest(w, err.Error())
			return
		}
		writeServiceError(w, r, err)
		return
	}

	response.Created(w, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeBody(h.codec, w, r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	loginResp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Success(w, loginResp)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshTokenRequest
	if err := decodeBody(h.codec, w, r, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	tokenResp, err := h.authService.RefreshToken(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Success(w, tokenResp)
}
