package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskflow-sync-server/internal/domain"
	"taskflow-sync-server/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// steppingClock returns start, then advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(time.Second)
		return now
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type memChangeLog struct {
	mu      sync.Mutex
	records []*domain.ChangeRecord
	now     func() time.Time

	failAppendFor string
	findErr       error
	visibleErr    error
}

func newMemChangeLog() *memChangeLog {
	return &memChangeLog{now: steppingClock(baseTime)}
}

func (m *memChangeLog) Append(ctx context.Context, record *domain.ChangeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAppendFor != "" && record.EntityID == m.failAppendFor {
		return errors.New("ledger unavailable")
	}

	record.ID = uuid.New().String()
	record.Timestamp = m.now()
	copied := *record
	m.records = append(m.records, &copied)
	return nil
}

func (m *memChangeLog) FindByEntity(ctx context.Context, entityType, entityID string) ([]*domain.ChangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}

	var out []*domain.ChangeRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if r.EntityType == entityType && r.EntityID == entityID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memChangeLog) FindVisibleSince(ctx context.Context, userID string, teamIDs []string, since time.Time) ([]*domain.ChangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.visibleErr != nil {
		return nil, m.visibleErr
	}

	teams := make(map[string]bool, len(teamIDs))
	for _, id := range teamIDs {
		teams[id] = true
	}

	var out []*domain.ChangeRecord
	for _, r := range m.records {
		if !r.Timestamp.After(since) {
			continue
		}
		if r.UserID == userID || (r.TeamID != "" && teams[r.TeamID]) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memChangeLog) DeleteBefore(ctx context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	deleted := 0
	for _, r := range m.records {
		if r.Timestamp.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

func (m *memChangeLog) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type memSharedTasks struct {
	mu        sync.Mutex
	links     map[string]*domain.SharedTaskLink
	createErr error
}

func newMemSharedTasks() *memSharedTasks {
	return &memSharedTasks{links: make(map[string]*domain.SharedTaskLink)}
}

func sharedKey(taskID, teamID string) string {
	return taskID + "|" + teamID
}

func (m *memSharedTasks) Exists(ctx context.Context, taskID, teamID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.links[sharedKey(taskID, teamID)]
	return ok, nil
}

func (m *memSharedTasks) Create(ctx context.Context, link *domain.SharedTaskLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	key := sharedKey(link.TaskID, link.TeamID)
	if _, ok := m.links[key]; ok {
		return repository.ErrSharedTaskExists
	}
	copied := *link
	m.links[key] = &copied
	return nil
}

func (m *memSharedTasks) Delete(ctx context.Context, taskID, teamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, sharedKey(taskID, teamID))
	return nil
}

func (m *memSharedTasks) ListByTeam(ctx context.Context, teamID string) ([]*domain.SharedTaskLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.SharedTaskLink
	for _, link := range m.links {
		if link.TeamID == teamID {
			out = append(out, link)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out, nil
}

type memTeamRepo struct {
	mu      sync.Mutex
	teams   map[string]*domain.Team
	members map[string]map[string]*domain.TeamMember
}

func newMemTeamRepo() *memTeamRepo {
	return &memTeamRepo{
		teams:   make(map[string]*domain.Team),
		members: make(map[string]map[string]*domain.TeamMember),
	}
}

func (m *memTeamRepo) Create(ctx context.Context, team *domain.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teams[team.ID]; ok {
		return repository.ErrTeamExists
	}
	m.teams[team.ID] = team
	return nil
}

func (m *memTeamRepo) Get(ctx context.Context, id string) (*domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[id]
	if !ok {
		return nil, repository.ErrTeamNotFound
	}
	return team, nil
}

func (m *memTeamRepo) Update(ctx context.Context, team *domain.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teams[team.ID]; !ok {
		return repository.ErrTeamNotFound
	}
	copied := *team
	m.teams[team.ID] = &copied
	return nil
}

func (m *memTeamRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.teams[id]; !ok {
		return repository.ErrTeamNotFound
	}
	delete(m.teams, id)
	return nil
}

func (m *memTeamRepo) AddMember(ctx context.Context, member *domain.TeamMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[member.TeamID] == nil {
		m.members[member.TeamID] = make(map[string]*domain.TeamMember)
	}
	if _, ok := m.members[member.TeamID][member.UserID]; ok {
		return repository.ErrMemberExists
	}
	m.members[member.TeamID][member.UserID] = member
	return nil
}

func (m *memTeamRepo) RemoveMember(ctx context.Context, teamID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[teamID][userID]; !ok {
		return repository.ErrMemberNotFound
	}
	delete(m.members[teamID], userID)
	return nil
}

func (m *memTeamRepo) GetMember(ctx context.Context, teamID, userID string) (*domain.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[teamID][userID]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	return member, nil
}

func (m *memTeamRepo) ListMembers(ctx context.Context, teamID string) ([]*domain.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.TeamMember
	for _, member := range m.members[teamID] {
		out = append(out, member)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memTeamRepo) ListMemberships(ctx context.Context, userID string) ([]*domain.TeamMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.TeamMember
	for _, members := range m.members {
		if member, ok := members[userID]; ok {
			out = append(out, member)
		}
	}
	return out, nil
}

// join registers userID in teamID, creating the team on first use.
func (m *memTeamRepo) join(teamID, userID string) {
	ctx := context.Background()
	if _, err := m.Get(ctx, teamID); err != nil {
		_ = m.Create(ctx, &domain.Team{ID: teamID, OwnerID: userID, Name: teamID, CreatedAt: baseTime})
	}
	_ = m.AddMember(ctx, &domain.TeamMember{TeamID: teamID, UserID: userID, Role: domain.TeamRoleMember})
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User

	updateErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (m *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrUserExists
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memUserRepo) Update(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *memUserRepo) UpdateTaskDatabase(ctx context.Context, userID, taskDatabase string, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.TaskDatabase = taskDatabase
	u.LastSyncAt = &syncedAt
	return nil
}

func (m *memUserRepo) UpdateLastSyncAt(ctx context.Context, userID string, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.LastSyncAt = &syncedAt
	return nil
}

type failingDirectory struct {
	err error
}

func (f failingDirectory) GetUserTeamIDs(ctx context.Context, userID string) ([]string, error) {
	return nil, f.err
}

func (f failingDirectory) GetMemberIDs(ctx context.Context, teamID string) ([]string, error) {
	return nil, f.err
}

type notification struct {
	userIDs []string
	records []*domain.ChangeRecord
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (r *recordingNotifier) NotifyChanges(userIDs []string, records []*domain.ChangeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)
	r.sent = append(r.sent, notification{userIDs: ids, records: records})
	return nil
}
