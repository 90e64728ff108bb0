package service

import (
	"context"
	"sort"
	"time"

	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/repository"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TeamDirectory answers the team questions asked during sync.
type TeamDirectory interface {
	// GetUserTeamIDs lists the teams whose shared changes userID may see.
	GetUserTeamIDs(ctx context.Context, userID string) ([]string, error)
	GetMemberIDs(ctx context.Context, teamID string) ([]string, error)
}

type TeamService struct {
	teamRepo       repository.TeamRepository
	userRepo       repository.UserRepository
	sharedTaskRepo repository.SharedTaskRepository
	now            func() time.Time
}

func NewTeamService(teamRepo repository.TeamRepository, userRepo repository.UserRepository, sharedTaskRepo repository.SharedTaskRepository) *TeamService {
	return &TeamService{
		teamRepo:       teamRepo,
		userRepo:       userRepo,
		sharedTaskRepo: sharedTaskRepo,
		now:            time.Now,
	}
}

// Create creates a team owned by ownerID, who becomes its first member.
func (s *TeamService) Create(ctx context.Context, ownerID string, req *domain.CreateTeamRequest) (*domain.TeamResponse, error) {
	now := s.now().UTC()
	team := &domain.Team{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, err
	}

	owner := &domain.TeamMember{
		TeamID:   team.ID,
		UserID:   ownerID,
		Role:     domain.TeamRoleOwner,
		JoinedAt: now,
	}
	if err := s.teamRepo.AddMember(ctx, owner); err != nil {
		return nil, errors.Wrap(err, "failed to add team owner")
	}

	return teamToResponse(team, domain.TeamRoleOwner, []*domain.TeamMember{owner}), nil
}

// List returns every team the user belongs to.
func (s *TeamService) List(ctx context.Context, userID string) ([]*domain.TeamResponse, error) {
	memberships, err := s.teamRepo.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]*domain.TeamResponse, 0, len(memberships))
	for _, m := range memberships {
		team, err := s.teamRepo.Get(ctx, m.TeamID)
		if err != nil {
			if errors.Is(err, repository.ErrTeamNotFound) {
				continue
			}
			return nil, err
		}
		responses = append(responses, teamToResponse(team, m.Role, nil))
	}

	sort.Slice(responses, func(i, j int) bool {
		return responses[i].CreatedAt.Before(responses[j].CreatedAt)
	})

	return responses, nil
}

// Get returns a team with its members, provided the user is one of them.
func (s *TeamService) Get(ctx context.Context, userID, teamID string) (*domain.TeamResponse, error) {
	team, membership, err := s.requireMember(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}

	members, err := s.teamRepo.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}

	return teamToResponse(team, membership.Role, members), nil
}

// Update renames or re-describes a team. Only the owner may update.
func (s *TeamService) Update(ctx context.Context, ownerID, teamID string, req *domain.UpdateTeamRequest) (*domain.TeamResponse, error) {
	team, err := s.requireOwner(ctx, ownerID, teamID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		team.Name = *req.Name
	}
	if req.Description != nil {
		team.Description = *req.Description
	}
	team.UpdatedAt = s.now().UTC()

	if err := s.teamRepo.Update(ctx, team); err != nil {
		return nil, err
	}

	return teamToResponse(team, domain.TeamRoleOwner, nil), nil
}

// Delete removes a team together with its memberships and shared task links.
// Only the owner may delete. The change log keeps the team's history until
// compaction.
func (s *TeamService) Delete(ctx context.Context, ownerID, teamID string) error {
	if _, err := s.requireOwner(ctx, ownerID, teamID); err != nil {
		return err
	}

	links, err := s.sharedTaskRepo.ListByTeam(ctx, teamID)
	if err != nil {
		return errors.Wrap(err, "failed to list shared tasks of team")
	}
	for _, link := range links {
		if err := s.sharedTaskRepo.Delete(ctx, link.TaskID, teamID); err != nil {
			return errors.Wrapf(err, "failed to unshare task %s", link.TaskID)
		}
	}

	members, err := s.teamRepo.ListMembers(ctx, teamID)
	if err != nil {
		return errors.Wrap(err, "failed to list team members")
	}
	for _, m := range members {
		if err := s.teamRepo.RemoveMember(ctx, teamID, m.UserID); err != nil && !errors.Is(err, repository.ErrMemberNotFound) {
			return errors.Wrapf(err, "failed to remove member %s", m.UserID)
		}
	}

	return s.teamRepo.Delete(ctx, teamID)
}

// ListMembers returns the members of a team the user belongs to.
func (s *TeamService) ListMembers(ctx context.Context, userID, teamID string) ([]*domain.TeamMember, error) {
	if _, _, err := s.requireMember(ctx, userID, teamID); err != nil {
		return nil, err
	}

	members, err := s.teamRepo.ListMembers(ctx, teamID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})

	return members, nil
}

// AddMember adds the user registered under email. Only the owner may add.
func (s *TeamService) AddMember(ctx context.Context, ownerID, teamID string, req *domain.AddMemberRequest) (*domain.TeamMember, error) {
	if _, err := s.requireOwner(ctx, ownerID, teamID); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	member := &domain.TeamMember{
		TeamID:   teamID,
		UserID:   user.ID,
		Role:     domain.TeamRoleMember,
		JoinedAt: s.now().UTC(),
	}
	if err := s.teamRepo.AddMember(ctx, member); err != nil {
		return nil, err
	}

	return member, nil
}

// RemoveMember removes userID from the team. Only the owner may remove, and
// the owner cannot remove themselves.
func (s *TeamService) RemoveMember(ctx context.Context, ownerID, teamID, userID string) error {
	team, err := s.requireOwner(ctx, ownerID, teamID)
	if err != nil {
		return err
	}
	if userID == team.OwnerID {
		return ErrOwnerCannotLeave
	}

	return s.teamRepo.RemoveMember(ctx, teamID, userID)
}

func (s *TeamService) Leave(ctx context.Context, userID, teamID string) error {
	team, _, err := s.requireMember(ctx, userID, teamID)
	if err != nil {
		return err
	}
	if userID == team.OwnerID {
		return ErrOwnerCannotLeave
	}

	return s.teamRepo.RemoveMember(ctx, teamID, userID)
}

// ListSharedTasks returns the tasks currently shared with the team.
func (s *TeamService) ListSharedTasks(ctx context.Context, userID, teamID string) ([]*domain.SharedTaskLink, error) {
	if _, _, err := s.requireMember(ctx, userID, teamID); err != nil {
		return nil, err
	}
	return s.sharedTaskRepo.ListByTeam(ctx, teamID)
}

func (s *TeamService) GetUserTeamIDs(ctx context.Context, userID string) ([]string, error) {
	memberships, err := s.teamRepo.ListMemberships(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve team memberships")
	}

	teamIDs := mapset.NewThreadUnsafeSet[string]()
	for _, m := range memberships {
		teamIDs.Add(m.TeamID)
	}

	ids := teamIDs.ToSlice()
	sort.Strings(ids)
	return ids, nil
}

func (s *TeamService) GetMemberIDs(ctx context.Context, teamID string) ([]string, error) {
	members, err := s.teamRepo.ListMembers(ctx, teamID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list team members")
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (s *TeamService) requireMember(ctx context.Context, userID, teamID string) (*domain.Team, *domain.TeamMember, error) {
	team, err := s.teamRepo.Get(ctx, teamID)
	if err != nil {
		return nil, nil, err
	}

	membership, err := s.teamRepo.GetMember(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return nil, nil, ErrAccessDenied
		}
		return nil, nil, err
	}

	return team, membership, nil
}

func (s *TeamService) requireOwner(ctx context.Context, userID, teamID string) (*domain.Team, error) {
	team, err := s.teamRepo.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.OwnerID != userID {
		return nil, ErrAccessDenied
	}
	return team, nil
}

func teamToResponse(team *domain.Team, role string, members []*domain.TeamMember) *domain.TeamResponse {
	return &domain.TeamResponse{
		ID:          team.ID,
		Name:        team.Name,
		Description: team.Description,
		OwnerID:     team.OwnerID,
		Role:        role,
		Members:     members,
		CreatedAt:   team.CreatedAt,
		UpdatedAt:   team.UpdatedAt,
	}
}
