package workflow

import (
	"context"
	"math"
	"sort"
)

// Workflow is one stored automation definition.
type Workflow struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	IsActive    bool    `json:"isActive"`
}

// Summary is the abbreviated form used in analytics.
type Summary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

type Analytics struct {
	TotalWorkflows    int       `json:"totalWorkflows"`
	ActiveWorkflows   int       `json:"activeWorkflows"`
	InactiveWorkflows int       `json:"inactiveWorkflows"`
	ActivePercentage  float64   `json:"activePercentage"`
	RecentWorkflows   []Summary `json:"recentWorkflows"`
}

// Store is read-only access to workflows. FindAll is ordered by ascending id.
type Store interface {
	FindAll(ctx context.Context) ([]Workflow, error)
	Analytics(ctx context.Context) (Analytics, error)
}

// RecentLimit caps Analytics.RecentWorkflows.
const RecentLimit = 5

// ActivePercentage rounds active/total to two decimals, 0 for an empty store.
func ActivePercentage(active, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(active)/float64(total)*10000) / 100
}

// ComputeAnalytics derives the summary from a full listing. Used by stores
// that cannot aggregate natively.
func ComputeAnalytics(all []Workflow) Analytics {
	out := Analytics{TotalWorkflows: len(all), RecentWorkflows: []Summary{}}
	for _, w := range all {
		if w.IsActive {
			out.ActiveWorkflows++
		}
	}
	out.InactiveWorkflows = out.TotalWorkflows - out.ActiveWorkflows
	out.ActivePercentage = ActivePercentage(out.ActiveWorkflows, out.TotalWorkflows)

	byIDDesc := make([]Workflow, len(all))
	copy(byIDDesc, all)
	sort.Slice(byIDDesc, func(i, j int) bool { return byIDDesc[i].ID > byIDDesc[j].ID })
	for i := 0; i < len(byIDDesc) && i < RecentLimit; i++ {
		w := byIDDesc[i]
		out.RecentWorkflows = append(out.RecentWorkflows, Summary{ID: w.ID, Name: w.Name, IsActive: w.IsActive})
	}
	return out
}

func strPtr(s string) *string { return &s }

// Seed is the initial data set loaded into a fresh store.
func Seed() []Workflow {
	return []Workflow{
		{Name: "Daily report", Description: strPtr("Collects metrics and emails the team"), IsActive: true},
		{Name: "Lead enrichment", Description: strPtr("Enrich CRM records via third-party APIs"), IsActive: true},
		{Name: "Customer onboarding", Description: strPtr("Guides new customers through initial setup steps"), IsActive: true},
	}
}
