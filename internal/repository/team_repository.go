package repository

import (
	"context"
	"fmt"
	"time"

	"taskflow-sync-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
	"github.com/pkg/errors"
)

const (
	teamDocType       = "team"
	teamMemberDocType = "team_member"
)

type TeamRepository interface {
	Create(ctx context.Context, team *domain.Team) error
	Get(ctx context.Context, id string) (*domain.Team, error)
	Update(ctx context.Context, team *domain.Team) error
	// Delete removes the team document only; memberships are removed separately.
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, member *domain.TeamMember) error
	RemoveMember(ctx context.Context, teamID, userID string) error
	GetMember(ctx context.Context, teamID, userID string) (*domain.TeamMember, error)
	ListMembers(ctx context.Context, teamID string) ([]*domain.TeamMember, error)
	// ListMemberships returns every membership held by userID.
	ListMemberships(ctx context.Context, userID string) ([]*domain.TeamMember, error)
}

type CouchDBTeamRepository struct {
	db *kivik.DB
}

type teamDoc struct {
	ID          string `json:"_id"`
	Rev         string `json:"_rev,omitempty"`
	DocType     string `json:"doc_type"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type teamMemberDoc struct {
	ID       string `json:"_id"`
	Rev      string `json:"_rev,omitempty"`
	DocType  string `json:"doc_type"`
	TeamID   string `json:"team_id"`
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
}

func NewTeamRepository(client *kivik.Client, dbName string) *CouchDBTeamRepository {
	return &CouchDBTeamRepository{
		db: client.DB(dbName),
	}
}

func teamDocID(id string) string {
	return fmt.Sprintf("%s:%s", teamDocType, id)
}

func teamMemberDocID(teamID, userID string) string {
	return fmt.Sprintf("%s:%s:%s", teamMemberDocType, teamID, userID)
}

func (r *CouchDBTeamRepository) Create(ctx context.Context, team *domain.Team) error {
	doc := teamDoc{
		ID:          teamDocID(team.ID),
		DocType:     teamDocType,
		OwnerID:     team.OwnerID,
		Name:        team.Name,
		Description: team.Description,
		CreatedAt:   team.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   team.UpdatedAt.Format(time.RFC3339),
	}

	if _, err := r.db.Put(ctx, doc.ID, doc); err != nil {
		if isConflict(err) {
			return ErrTeamExists
		}
		return errors.Wrap(err, "failed to create team")
	}

	return nil
}

func (r *CouchDBTeamRepository) Get(ctx context.Context, id string) (*domain.Team, error) {
	var doc teamDoc
	if err := r.db.Get(ctx, teamDocID(id)).ScanDoc(&doc); err != nil {
		if isNotFound(err) {
			return nil, ErrTeamNotFound
		}
		return nil, errors.Wrap(err, "failed to get team")
	}

	return docToTeam(id, &doc)
}

func (r *CouchDBTeamRepository) Update(ctx context.Context, team *domain.Team) error {
	docID := teamDocID(team.ID)

	var existing teamDoc
	if err := r.db.Get(ctx, docID).ScanDoc(&existing); err != nil {
		if isNotFound(err) {
			return ErrTeamNotFound
		}
		return errors.Wrap(err, "failed to get team for update")
	}

	doc := teamDoc{
		ID:          docID,
		Rev:         existing.Rev,
		DocType:     teamDocType,
		OwnerID:     team.OwnerID,
		Name:        team.Name,
		Description: team.Description,
		CreatedAt:   team.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   team.UpdatedAt.Format(time.RFC3339),
	}

	if _, err := r.db.Put(ctx, docID, doc); err != nil {
		return errors.Wrap(err, "failed to update team")
	}

	return nil
}

func (r *CouchDBTeamRepository) Delete(ctx context.Context, id string) error {
	docID := teamDocID(id)

	var doc teamDoc
	if err := r.db.Get(ctx, docID).ScanDoc(&doc); err != nil {
		if isNotFound(err) {
			return ErrTeamNotFound
		}
		return errors.Wrap(err, "failed to get team for delete")
	}

	if _, err := r.db.Delete(ctx, docID, doc.Rev); err != nil && !isNotFound(err) {
		return errors.Wrap(err, "failed to delete team")
	}

	return nil
}

func (r *CouchDBTeamRepository) AddMember(ctx context.Context, member *domain.TeamMember) error {
	doc := teamMemberDoc{
		ID:       teamMemberDocID(member.TeamID, member.UserID),
		DocType:  teamMemberDocType,
		TeamID:   member.TeamID,
		UserID:   member.UserID,
		Role:     member.Role,
		JoinedAt: member.JoinedAt.Format(time.RFC3339),
	}

	if _, err := r.db.Put(ctx, doc.ID, doc); err != nil {
		if isConflict(err) {
			return ErrMemberExists
		}
		return errors.Wrap(err, "failed to add team member")
	}

	return nil
}

func (r *CouchDBTeamRepository) RemoveMember(ctx context.Context, teamID, userID string) error {
	docID := teamMemberDocID(teamID, userID)

	var doc teamMemberDoc
	if err := r.db.Get(ctx, docID).ScanDoc(&doc); err != nil {
		if isNotFound(err) {
			return ErrMemberNotFound
		}
		return errors.Wrap(err, "failed to get team member for delete")
	}

	if _, err := r.db.Delete(ctx, docID, doc.Rev); err != nil {
		return errors.Wrap(err, "failed to remove team member")
	}

	return nil
}

func (r *CouchDBTeamRepository) GetMember(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	var doc teamMemberDoc
	if err := r.db.Get(ctx, teamMemberDocID(teamID, userID)).ScanDoc(&doc); err != nil {
		if isNotFound(err) {
			return nil, ErrMemberNotFound
		}
		return nil, errors.Wrap(err, "failed to get team member")
	}

	return docToMember(&doc)
}

func (r *CouchDBTeamRepository) ListMembers(ctx context.Context, teamID string) ([]*domain.TeamMember, error) {
	return r.listMembers(ctx, map[string]interface{}{
		"doc_type": teamMemberDocType,
		"team_id":  teamID,
	})
}

func (r *CouchDBTeamRepository) ListMemberships(ctx context.Context, userID string) ([]*domain.TeamMember, error) {
	return r.listMembers(ctx, map[string]interface{}{
		"doc_type": teamMemberDocType,
		"user_id":  userID,
	})
}

func (r *CouchDBTeamRepository) listMembers(ctx context.Context, selector map[string]interface{}) ([]*domain.TeamMember, error) {
	docs, err := findAll[teamMemberDoc](ctx, r.db, selector)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query team members")
	}

	members := make([]*domain.TeamMember, 0, len(docs))
	for _, doc := range docs {
		member, err := docToMember(doc)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return members, nil
}

func docToTeam(id string, doc *teamDoc) (*domain.Team, error) {
	createdAt, err := parseTime(doc.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse created_at")
	}

	updatedAt, err := parseTime(doc.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse updated_at")
	}

	return &domain.Team{
		ID:          id,
		OwnerID:     doc.OwnerID,
		Name:        doc.Name,
		Description: doc.Description,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func docToMember(doc *teamMemberDoc) (*domain.TeamMember, error) {
	joinedAt, err := parseTime(doc.JoinedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse joined_at")
	}

	return &domain.TeamMember{
		TeamID:   doc.TeamID,
		UserID:   doc.UserID,
		Role:     doc.Role,
		JoinedAt: joinedAt,
	}, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
