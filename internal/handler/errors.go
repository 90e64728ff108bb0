package handler

import (
	"io"
	"net/http"

	"taskflow-sync-server/internal/codec"
	"taskflow-sync-server/internal/repository"
	"taskflow-sync-server/internal/service"
	"taskflow-sync-server/pkg/response"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 16 << 20

var errEmptyBody = errors.New("empty request body")

// decodeBody parses the JSON request body into v.
func decodeBody(c codec.Codec, w http.ResponseWriter, r *http.Request, v interface{}) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(data) == 0 {
		return errEmptyBody
	}
	return c.Parse(data, v)
}

// writeServiceError maps service and repository errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrAccessDenied):
		response.Forbidden(w, "access denied")
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(w, "invalid credentials")
	case errors.Is(err, service.ErrEmailTaken):
		response.Conflict(w, err.Error())
	case errors.Is(err, service.ErrOwnerCannotLeave):
		response.BadRequest(w, err.Error())
	case errors.Is(err, repository.ErrUserNotFound):
		response.NotFound(w, "user not found")
	case errors.Is(err, repository.ErrTeamNotFound):
		response.NotFound(w, "team not found")
	case errors.Is(err, repository.ErrMemberNotFound):
		response.NotFound(w, "member not found")
	case errors.Is(err, repository.ErrMemberExists):
		response.Conflict(w, "user is already a member")
	default:
		log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		response.InternalError(w, "internal server error")
	}
}
