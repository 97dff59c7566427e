package query

import (
	"context"
	"fmt"
	"math/big"

	"github.com/dotgo-labs/dotgo-indexer/internal/event"
)

// analyticsLimit bounds the page fetched for a student fold. Well above any
// realistic per-student event count for the marketplace.
const analyticsLimit = 1000

// Analytics is the aggregate view over one student's events.
type Analytics struct {
	Student           string              `json:"student"`
	TotalProjects     int                 `json:"totalProjects"`
	TotalUnlocks      int                 `json:"totalUnlocks"`
	TotalReviews      int                 `json:"totalReviews"`
	TotalEarnings     string              `json:"totalEarnings"` // exact smallest-unit integer
	AverageRating     float64             `json:"averageRating"`
	ProjectsByChain   map[event.Chain]int `json:"projectsByChain"`
	SkillDistribution map[string]int      `json:"skillDistribution"`
}

// StudentAnalytics folds all events for a student into one summary. Every
// call is a full recompute; no state is held between calls. Review records
// carry no student attribute, so reviews are fetched per project of the
// student in a second pass.
func (s *Service) StudentAnalytics(ctx context.Context, student string) (Analytics, error) {
	events, err := s.Events(ctx, Filters{Student: student, Limit: analyticsLimit})
	if err != nil {
		return Analytics{}, fmt.Errorf("student analytics: %w", err)
	}
	if len(events) == analyticsLimit {
		s.log.Warn("analytics page full, results may be truncated",
			"student", student, "limit", analyticsLimit)
	}

	a := Analytics{
		Student:           student,
		TotalEarnings:     "0",
		ProjectsByChain:   map[event.Chain]int{event.ChainBase: 0, event.ChainPolkadot: 0},
		SkillDistribution: map[string]int{},
	}
	earnings := new(big.Int)
	var projects []string

	for _, ev := range events {
		switch ev.Type {
		case event.TypeProjectCreated:
			a.TotalProjects++
			a.ProjectsByChain[ev.Chain]++
			for _, skill := range ev.Skills {
				a.SkillDistribution[skill]++
			}
			projects = append(projects, ev.ProjectID)

		case event.TypeProjectUnlocked:
			a.TotalUnlocks++
			// Amounts are smallest-unit decimal strings; big.Int keeps the
			// sum exact where float64 would round.
			amount, ok := new(big.Int).SetString(ev.Amount, 10)
			if !ok {
				return Analytics{}, fmt.Errorf("student analytics: bad amount %q for project %s", ev.Amount, ev.ProjectID)
			}
			earnings.Add(earnings, amount)
		}
	}

	for _, projectID := range projects {
		reviews, err := s.Events(ctx, Filters{
			EventType: event.TypeReviewSubmitted,
			ProjectID: projectID,
			Limit:     analyticsLimit,
		})
		if err != nil {
			return Analytics{}, fmt.Errorf("student analytics: reviews for %s: %w", projectID, err)
		}
		if len(reviews) == analyticsLimit {
			s.log.Warn("analytics page full, results may be truncated",
				"student", student, "project_id", projectID, "limit", analyticsLimit)
		}
		for _, ev := range reviews {
			a.TotalReviews++
			n := float64(a.TotalReviews)
			a.AverageRating = (a.AverageRating*(n-1) + float64(ev.Rating)) / n
		}
	}

	a.TotalEarnings = earnings.String()
	return a, nil
}
