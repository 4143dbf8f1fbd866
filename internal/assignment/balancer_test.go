package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

type fakeDirectory struct {
	groups    map[string][]domain.Technician
	workloads map[string]domain.TechnicianWorkload
	listErr   error
}

func (f *fakeDirectory) ActiveTechnicians(_ context.Context, groupID string) ([]domain.Technician, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.groups[groupID], nil
}

func (f *fakeDirectory) Workload(_ context.Context, id string) (domain.TechnicianWorkload, error) {
	w := f.workloads[id]
	w.TechnicianID = id
	return w, nil
}

func (f *fakeDirectory) GetTechnician(_ context.Context, id string) (*domain.Technician, error) {
	for _, techs := range f.groups {
		for _, tech := range techs {
			if tech.ID == id {
				t := tech
				return &t, nil
			}
		}
	}
	return nil, errors.New("not found")
}

type fakeRoutes struct {
	templates map[string][]domain.GroupRoute
	groups    []domain.SupportGroup
}

func (f *fakeRoutes) TemplateRoutes(_ context.Context, templateID string) ([]domain.GroupRoute, error) {
	return f.templates[templateID], nil
}

func (f *fakeRoutes) ActiveSupportGroups(context.Context) ([]domain.SupportGroup, error) {
	return f.groups, nil
}

type fakeBackups struct {
	byTechnician map[string]*domain.BackupAssignment
}

func (f *fakeBackups) ActiveBackupFor(_ context.Context, id string, _ time.Time) (*domain.BackupAssignment, error) {
	return f.byTechnician[id], nil
}

func tech(id string) domain.Technician {
	return domain.Technician{ID: id, Name: "Tech " + id, Email: id + "@example.com", Active: true}
}

func firstPick(int) int { return 0 }

func candidates(loads ...int) []Candidate {
	out := make([]Candidate, len(loads))
	for i, load := range loads {
		id := string(rune('a' + i))
		out[i] = Candidate{Technician: tech(id), Workload: domain.TechnicianWorkload{TechnicianID: id, ActiveTickets: load}}
	}
	return out
}

func TestSelectLeastLoad(t *testing.T) {
	t.Run("picks a minimum load technician", func(t *testing.T) {
		pool := candidates(3, 1, 1, 5)
		for i := 0; i < 2; i++ {
			chosen, ok := Select(pool, LeastLoad, func(n int) int {
				require.Equal(t, 2, n)
				return i
			})
			require.True(t, ok)
			assert.Equal(t, 1, chosen.Workload.ActiveTickets)
		}
	})

	t.Run("ties resolve within the tied subset", func(t *testing.T) {
		chosen, ok := Select(candidates(2, 0, 0), LeastLoad, firstPick)
		require.True(t, ok)
		assert.Equal(t, "b", chosen.Technician.ID)
	})

	t.Run("older last assignment wins on equal load", func(t *testing.T) {
		pool := candidates(1, 1)
		recent := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
		older := recent.Add(-time.Hour)
		pool[0].Workload.LastAssignedAt = &recent
		pool[1].Workload.LastAssignedAt = &older

		chosen, _ := Select(pool, LeastLoad, firstPick)
		assert.Equal(t, "b", chosen.Technician.ID)
	})
}

func TestSelectLeastLoadThenOldestAssignment(t *testing.T) {
	pool := candidates(2, 0, 0)
	t0 := time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t1.Add(time.Hour)
	pool[0].Workload.LastAssignedAt = &t0
	pool[1].Workload.LastAssignedAt = &t1
	pool[2].Workload.LastAssignedAt = &t2

	chosen, ok := Select(pool, LeastLoad, func(n int) int {
		require.Equal(t, 1, n)
		return 0
	})
	require.True(t, ok)
	assert.Equal(t, "b", chosen.Technician.ID)
}

func TestSelectRoundRobinPrefersNeverAssigned(t *testing.T) {
	pool := candidates(0, 9, 0)
	last := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	pool[0].Workload.LastAssignedAt = &last
	pool[2].Workload.LastAssignedAt = &last

	chosen, ok := Select(pool, RoundRobin, firstPick)
	require.True(t, ok)
	assert.Equal(t, "b", chosen.Technician.ID)
}

func TestSelectRandomUsesWholePool(t *testing.T) {
	chosen, ok := Select(candidates(4, 0, 7), Random, func(n int) int {
		assert.Equal(t, 3, n)
		return 2
	})
	require.True(t, ok)
	assert.Equal(t, "c", chosen.Technician.ID)
}

func TestSelectEmpty(t *testing.T) {
	_, ok := Select(nil, LeastLoad, firstPick)
	assert.False(t, ok)
}

func TestAssignFromGroup(t *testing.T) {
	dir := &fakeDirectory{
		groups: map[string][]domain.Technician{"g1": {tech("t1"), tech("t2"), tech("t3")}},
		workloads: map[string]domain.TechnicianWorkload{
			"t1": {ActiveTickets: 2},
			"t2": {ActiveTickets: 0},
			"t3": {ActiveTickets: 0},
		},
	}
	b := NewBalancer(dir, &fakeRoutes{}, nil, Options{Picker: firstPick})

	result, err := b.Assign(context.Background(), "g1", LeastLoad)
	require.NoError(t, err)
	assert.Equal(t, "t2", result.Technician.ID)
	assert.Equal(t, "g1", result.SupportGroupID)
	assert.Nil(t, result.RedirectedFrom)
}

func TestAssignEmptyGroup(t *testing.T) {
	b := NewBalancer(&fakeDirectory{}, &fakeRoutes{}, nil, Options{Picker: firstPick})

	_, err := b.Assign(context.Background(), "missing", RoundRobin)
	assert.ErrorIs(t, err, ErrNoAvailableTechnicians)
}

func TestAssignRedirectsToBackup(t *testing.T) {
	now := time.Date(2025, 2, 4, 10, 0, 0, 0, time.UTC)
	dir := &fakeDirectory{
		groups: map[string][]domain.Technician{
			"g1":     {tech("t1")},
			"others": {tech("t9")},
		},
	}
	backups := &fakeBackups{byTechnician: map[string]*domain.BackupAssignment{
		"t1": {
			ID:                   "b1",
			OriginalTechnicianID: "t1",
			BackupTechnicianID:   "t9",
			StartDate:            now.Add(-24 * time.Hour),
			EndDate:              now.Add(24 * time.Hour),
			Active:               true,
		},
	}}
	b := NewBalancer(dir, &fakeRoutes{}, backups, Options{Picker: firstPick, Now: func() time.Time { return now }})

	result, err := b.Assign(context.Background(), "g1", LeastLoad)
	require.NoError(t, err)
	assert.Equal(t, "t9", result.Technician.ID)
	require.NotNil(t, result.RedirectedFrom)
	assert.Equal(t, "t1", result.RedirectedFrom.ID)
	assert.Equal(t, "b1", result.Backup.ID)

	t.Run("expired backup is ignored", func(t *testing.T) {
		later := now.Add(48 * time.Hour)
		b.now = func() time.Time { return later }
		result, err := b.Assign(context.Background(), "g1", LeastLoad)
		require.NoError(t, err)
		assert.Equal(t, "t1", result.Technician.ID)
		assert.Nil(t, result.RedirectedFrom)
	})
}

func TestAutoAssignWalksTemplateGroupsInPriorityOrder(t *testing.T) {
	dir := &fakeDirectory{groups: map[string][]domain.Technician{
		"second": {tech("t2")},
		"third":  {tech("t3")},
	}}
	routes := &fakeRoutes{templates: map[string][]domain.GroupRoute{
		"tpl": {
			{SupportGroupID: "third", Strategy: "random", Priority: 3},
			{SupportGroupID: "first", Strategy: "round_robin", Priority: 1},
			{SupportGroupID: "second", Strategy: "load_balancing", Priority: 2},
		},
	}}
	b := NewBalancer(dir, routes, nil, Options{Picker: firstPick})

	result, err := b.AutoAssign(context.Background(), "tpl")
	require.NoError(t, err)
	assert.Equal(t, "t2", result.Technician.ID)
	assert.Equal(t, "second", result.SupportGroupID)
	assert.Equal(t, LeastLoad, result.Strategy)
}

func TestAutoAssignGlobalFallback(t *testing.T) {
	dir := &fakeDirectory{groups: map[string][]domain.Technician{"g2": {tech("t5")}}}
	routes := &fakeRoutes{groups: []domain.SupportGroup{{ID: "g1", IsActive: true}, {ID: "g2", IsActive: true}}}
	b := NewBalancer(dir, routes, nil, Options{GlobalStrategy: RoundRobin, Picker: firstPick})

	result, err := b.AutoAssign(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "t5", result.Technician.ID)
	assert.Equal(t, RoundRobin, result.Strategy)
}

func TestAutoAssignFailures(t *testing.T) {
	t.Run("no groups configured", func(t *testing.T) {
		b := NewBalancer(&fakeDirectory{}, &fakeRoutes{}, nil, Options{})
		_, err := b.AutoAssign(context.Background(), "")
		assert.ErrorIs(t, err, ErrNoSupportGroups)
	})

	t.Run("every group empty", func(t *testing.T) {
		routes := &fakeRoutes{groups: []domain.SupportGroup{{ID: "g1"}}}
		b := NewBalancer(&fakeDirectory{}, routes, nil, Options{})
		_, err := b.AutoAssign(context.Background(), "")
		assert.ErrorIs(t, err, ErrNoAvailableTechnicians)
	})
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("load_balancing")
	require.NoError(t, err)
	assert.Equal(t, LeastLoad, s)

	s, err = ParseStrategy(" Round_Robin ")
	require.NoError(t, err)
	assert.Equal(t, RoundRobin, s)

	_, err = ParseStrategy("weighted")
	assert.Error(t, err)
}
