package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivePercentage(t *testing.T) {
	tests := []struct {
		active, total int
		want          float64
	}{
		{0, 0, 0},
		{3, 3, 100},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{0, 7, 0},
		{1, 8, 12.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ActivePercentage(tt.active, tt.total), "%d/%d", tt.active, tt.total)
	}
}

func TestAnalytics_EmptyStore(t *testing.T) {
	a, err := NewMemoryStore().Analytics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, a.TotalWorkflows)
	assert.Zero(t, a.ActivePercentage)
	assert.NotNil(t, a.RecentWorkflows)
	assert.Empty(t, a.RecentWorkflows)
}

func TestAnalytics_RecentAreNewestFirstAndCapped(t *testing.T) {
	s := NewMemoryStore()
	for i := 0; i < 7; i++ {
		s.Add(Workflow{Name: string(rune('a' + i)), IsActive: i%2 == 0})
	}

	a, err := s.Analytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, a.TotalWorkflows)
	assert.Equal(t, 4, a.ActiveWorkflows)
	assert.Equal(t, 3, a.InactiveWorkflows)
	assert.Equal(t, 57.14, a.ActivePercentage)

	require.Len(t, a.RecentWorkflows, RecentLimit)
	ids := make([]int64, 0, len(a.RecentWorkflows))
	for _, r := range a.RecentWorkflows {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{7, 6, 5, 4, 3}, ids)
}

func TestMemoryStore_FindAllOrderedByID(t *testing.T) {
	s := NewMemoryStore()
	s.Add(Workflow{ID: 10, Name: "late"})
	s.Add(Workflow{ID: 2, Name: "early"})
	third := s.Add(Workflow{Name: "auto"})
	assert.Equal(t, int64(11), third.ID)

	all, err := s.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"early", "late", "auto"}, []string{all[0].Name, all[1].Name, all[2].Name})

	all[0].Name = "mutated"
	again, _ := s.FindAll(context.Background())
	assert.Equal(t, "early", again[0].Name)
}

func TestMemoryStore_Seeded(t *testing.T) {
	s := NewMemoryStore(Seed()...)
	all, err := s.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Daily report", all[0].Name)
	require.NotNil(t, all[0].Description)
	assert.Equal(t, "Collects metrics and emails the team", *all[0].Description)

	a, err := s.Analytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.ActivePercentage)
	assert.Equal(t, "Customer onboarding", a.RecentWorkflows[0].Name)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore(Seed()...).FindAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
