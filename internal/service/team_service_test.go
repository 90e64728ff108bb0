package service

import (
	"context"
	"testing"
	"time"

	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTeamFixture(t *testing.T) (*TeamService, *memTeamRepo, *memSharedTasks) {
	t.Helper()

	users := newMemUserRepo()
	ctx := context.Background()
	for _, u := range []*domain.User{
		{ID: "alice", Name: "Alice", Email: "alice@example.com"},
		{ID: "bob", Name: "Bob", Email: "bob@example.com"},
		{ID: "carol", Name: "Carol", Email: "carol@example.com"},
	} {
		require.NoError(t, users.Create(ctx, u))
	}

	teams := newMemTeamRepo()
	shared := newMemSharedTasks()
	svc := NewTeamService(teams, users, shared)
	svc.now = fixedClock(baseTime)

	return svc, teams, shared
}

func TestTeamService_CreateMakesOwnerMember(t *testing.T) {
	svc, _, _ := newTeamFixture(t)
	ctx := context.Background()

	team, err := svc.Create(ctx, "alice", &domain.CreateTeamRequest{Name: "Design"})
	require.NoError(t, err)
	assert.NotEmpty(t, team.ID)
	assert.Equal(t, domain.TeamRoleOwner, team.Role)
	require.Len(t, team.Members, 1)
	assert.Equal(t, "alice", team.Members[0].UserID)

	ids, err := svc.GetUserTeamIDs(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{team.ID}, ids)

	listed, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Design", listed[0].Name)
}

func TestTeamService_Membership(t *testing.T) {
	svc, _, _ := newTeamFixture(t)
	ctx := context.Background()

	team, err := svc.Create(ctx, "alice", &domain.CreateTeamRequest{Name: "Ops"})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, "bob", team.ID, &domain.AddMemberRequest{Email: "carol@example.com"})
	assert.ErrorIs(t, err, ErrAccessDenied)

	member, err := svc.AddMember(ctx, "alice", team.ID, &domain.AddMemberRequest{Email: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.TeamRoleMember, member.Role)

	_, err = svc.AddMember(ctx, "alice", team.ID, &domain.AddMemberRequest{Email: "bob@example.com"})
	assert.ErrorIs(t, err, repository.ErrMemberExists)

	_, err = svc.AddMember(ctx, "alice", team.ID, &domain.AddMemberRequest{Email: "nobody@example.com"})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	got, err := svc.Get(ctx, "bob", team.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TeamRoleMember, got.Role)
	assert.Len(t, got.Members, 2)

	_, err = svc.Get(ctx, "carol", team.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)

	memberIDs, err := svc.GetMemberIDs(ctx, team.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, memberIDs)

	assert.ErrorIs(t, svc.Leave(ctx, "alice", team.ID), ErrOwnerCannotLeave)
	assert.ErrorIs(t, svc.RemoveMember(ctx, "alice", team.ID, "alice"), ErrOwnerCannotLeave)
	require.NoError(t, svc.Leave(ctx, "bob", team.ID))

	ids, err := svc.GetUserTeamIDs(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestTeamService_RemoveMember(t *testing.T) {
	svc, _, _ := newTeamFixture(t)
	ctx := context.Background()

	team, err := svc.Create(ctx, "alice", &domain.CreateTeamRequest{Name: "Ops"})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, "alice", team.ID, &domain.AddMemberRequest{Email: "bob@example.com"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.RemoveMember(ctx, "bob", team.ID, "alice"), ErrAccessDenied)
	require.NoError(t, svc.RemoveMember(ctx, "alice", team.ID, "bob"))
	assert.ErrorIs(t, svc.RemoveMember(ctx, "alice", team.ID, "bob"), repository.ErrMemberNotFound)

	assert.ErrorIs(t, svc.RemoveMember(ctx, "alice", "missing", "bob"), repository.ErrTeamNotFound)
}

func TestTeamService_ListSharedTasks(t *testing.T) {
	svc, _, shared := newTeamFixture(t)
	ctx := context.Background()

	team, err := svc.Create(ctx, "alice", &domain.CreateTeamRequest{Name: "Ops"})
	require.NoError(t, err)
	require.NoError(t, shared.Create(ctx, &domain.SharedTaskLink{TaskID: "t1", TeamID: team.ID, CreatedBy: "alice", SharedAt: baseTime}))

	links, err := svc.ListSharedTasks(ctx, "alice", team.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "t1", links[0].TaskID)

	_, err = svc.ListSharedTasks(ctx, "carol", team.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestTeamService_Update(t *testing.T) {
	svc, teams, _ := newTeamFixture(t)
	ctx := context.Background()

	team, err := svc.Create(ctx, "alice", &domain.CreateTeamRequest{Name: "Ops", Description: "on call"})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, "alice", team.ID, &domain.AddMemberRequest{Email: "bob@example.com"})
	require.NoError(t, err)

	renamed := "Platform"
	_, err = svc.Update(ctx, "bob", team.ID, &domain.UpdateTeamRequest{Name: &renamed})
	assert.ErrorIs(t, err, ErrAccessDenied)

	svc.now = fixedClock(baseTime.Add(time.Hour))
	updated, err := svc.Update(ctx, "alice", team.ID, &domain.UpdateTeamRequest{Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "Platform", updated.Name)
	assert.Equal(t, "on call", updated.Description)
	assert.Equal(t, baseTime.Add(time.Hour), updated.UpdatedAt)

	stored, err := teams.Get(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, "Platform", stored.Name)

	_, err = svc.Update(ctx, "alice", "missing", &domain.UpdateTeamRequest{Name: &renamed})
	assert.ErrorIs(t, err, repository.ErrTeamNotFound)
}

func TestTeamService_DeleteRemovesMembershipsAndLinks(t *testing.T) {
	svc, teams, shared := newTeamFixture(t)
	ctx := context.Background()

	team, err := svc.Create(ctx, "alice", &domain.CreateTeamRequest{Name: "Ops"})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, "alice", team.ID, &domain.AddMemberRequest{Email: "bob@example.com"})
	require.NoError(t, err)
	require.NoError(t, shared.Create(ctx, &domain.SharedTaskLink{TaskID: "t1", TeamID: team.ID, CreatedBy: "alice", SharedAt: baseTime}))
	require.NoError(t, shared.Create(ctx, &domain.SharedTaskLink{TaskID: "t1", TeamID: "other", CreatedBy: "alice", SharedAt: baseTime}))

	assert.ErrorIs(t, svc.Delete(ctx, "bob", team.ID), ErrAccessDenied)

	require.NoError(t, svc.Delete(ctx, "alice", team.ID))

	_, err = teams.Get(ctx, team.ID)
	assert.ErrorIs(t, err, repository.ErrTeamNotFound)

	for _, user := range []string{"alice", "bob"} {
		ids, err := svc.GetUserTeamIDs(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, ids, user)
	}

	exists, err := shared.Exists(ctx, "t1", team.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = shared.Exists(ctx, "t1", "other")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.ErrorIs(t, svc.Delete(ctx, "alice", team.ID), repository.ErrTeamNotFound)
}

func TestTeamService_ListMembers(t *testing.T) {
	svc, _, _ := newTeamFixture(t)
	ctx := context.Background()

	team, err := svc.Create(ctx, "alice", &domain.CreateTeamRequest{Name: "Ops"})
	require.NoError(t, err)
	svc.now = fixedClock(baseTime.Add(time.Minute))
	_, err = svc.AddMember(ctx, "alice", team.ID, &domain.AddMemberRequest{Email: "bob@example.com"})
	require.NoError(t, err)

	members, err := svc.ListMembers(ctx, "bob", team.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "alice", members[0].UserID)
	assert.Equal(t, domain.TeamRoleOwner, members[0].Role)
	assert.Equal(t, "bob", members[1].UserID)

	_, err = svc.ListMembers(ctx, "carol", team.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)
}
