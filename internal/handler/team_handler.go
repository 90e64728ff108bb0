package handler

import (
	"net/http"

	"taskflow-sync-server/internal/codec"
	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/middleware"
	"taskflow-sync-server/internal/service"
	"taskflow-sync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type TeamHandler struct {
	teamService *service.TeamService
	codec       codec.Codec
	validator   *validator.Validate
}

func NewTeamHandler(teamService *service.TeamService, c codec.Codec) *TeamHandler {
	return &TeamHandler{
		teamService: teamService,
		codec:       c,
		validator:   validator.New(),
	}
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.CreateTeamRequest
	if err := decodeBody(h.codec, w, r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	team, err := h.teamService.Create(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Created(w, team)
}

func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	teams, err := h.teamService.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Success(w, teams)
}

func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	team, err := h.teamService.Get(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Success(w, team)
}

func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.UpdateTeamRequest
	if err := decodeBody(h.codec, w, r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	team, err := h.teamService.Update(r.Context(), userID, mux.Vars(r)["id"], &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Success(w, team)
}

func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := h.teamService.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.NoContent(w)
}

func (h *TeamHandler) Members(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	members, err := h.teamService.ListMembers(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if members == nil {
		members = []*domain.TeamMember{}
	}

	response.Success(w, members)
}

func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req domain.AddMemberRequest
	if err := decodeBody(h.codec, w, r, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	member, err := h.teamService.AddMember(r.Context(), userID, mux.Vars(r)["id"], &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.Created(w, member)
}

func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	vars := mux.Vars(r)
	if err := h.teamService.RemoveMember(r.Context(), userID, vars["id"], vars["userId"]); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.NoContent(w)
}

func (h *TeamHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if err := h.teamService.Leave(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.NoContent(w)
}

func (h *TeamHandler) SharedTasks(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	if userID == "" {
		response.Unauthorized(w, "unauthorized")
		return
	}

	links, err := h.teamService.ListSharedTasks(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if links == nil {
		links = []*domain.SharedTaskLink{}
	}

	response.Success(w, links)
}
