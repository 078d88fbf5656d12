package domain

import "math"

// DefaultProximityMeters is the grouping threshold used when none is configured.
const DefaultProximityMeters = 10.0

// ProblemGroup is a set of same-status problems that render as one marker.
type ProblemGroup struct {
	// Seed is the point of the first member. It never moves as members join.
	Seed    Coordinates
	Status  Status
	Members []ReportedProblem
}

// GroupProblems partitions problems into proximity groups for map display.
//
// Problems are visited in input order. Each one joins the first group, in
// creation order, that has the same normalized status and whose seed is
// strictly closer than thresholdMeters; otherwise it seeds a new group.
// Problems without a valid coordinate are skipped. A threshold that is not a
// positive finite number falls back to DefaultProximityMeters.
//
// Candidate groups are bucketed by status, which keeps the first-match result
// identical to a scan over all groups.
func GroupProblems(problems []ReportedProblem, thresholdMeters float64) []ProblemGroup {
	if !(thresholdMeters > 0) || math.IsInf(thresholdMeters, 0) {
		thresholdMeters = DefaultProximityMeters
	}

	groups := make([]ProblemGroup, 0)
	byStatus := make(map[Status][]int)

	for _, p := range problems {
		point, ok := p.Coordinates()
		if !ok {
			continue
		}
		status := p.CanonicalStatus()

		joined := false
		for _, idx := range byStatus[status] {
			if Distance(point, groups[idx].Seed) < thresholdMeters {
				groups[idx].Members = append(groups[idx].Members, p)
				joined = true
				break
			}
		}
		if joined {
			continue
		}

		byStatus[status] = append(byStatus[status], len(groups))
		groups = append(groups, ProblemGroup{
			Seed:    point,
			Status:  status,
			Members: []ReportedProblem{p},
		})
	}

	return groups
}
