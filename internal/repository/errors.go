package repository

import (
	"net/http"

	"github.com/go-kivik/kivik/v4"
	"github.com/pkg/errors"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrTeamNotFound       = errors.New("team not found")
	ErrTeamExists         = errors.New("team already exists")
	ErrMemberNotFound     = errors.New("team member not found")
	ErrMemberExists       = errors.New("user is already a team member")
	ErrSharedTaskExists   = errors.New("task is already shared with team")
	ErrSharedTaskNotFound = errors.New("shared task not found")
)

func isNotFound(err error) bool {
	return kivik.HTTPStatus(err) == http.StatusNotFound
}

func isConflict(err error) bool {
	return kivik.HTTPStatus(err) == http.StatusConflict
}
