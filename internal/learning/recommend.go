package learning

import "sort"

const (
	maxNextSteps   = 3
	maxReviewSteps = 2
	reviewBelow    = 3
)

// NextSteps returns the frontier: steps not yet completed whose prerequisites are all
// completed, ordered by ascending difficulty with ties in catalog order.
func NextSteps(path *LearningPath, progress *LearningProgress) []LearningStep {
	completed := progress.completedSet()
	steps := []LearningStep{}
	for _, s := range path.Steps {
		if !completed[s.ID] && prerequisitesMet(s, completed) {
			steps = append(steps, s)
		}
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Difficulty < steps[j].Difficulty
	})
	return steps
}

// Recommend derives next, review and supplementary material for a learner. It never
// mutates its arguments.
func Recommend(path *LearningPath, progress *LearningProgress) Recommendation {
	rec := Recommendation{
		ReviewSteps:         []LearningStep{},
		AdditionalResources: []LearningResource{},
	}

	next := NextSteps(path, progress)
	if len(next) > maxNextSteps {
		next = next[:maxNextSteps]
	}
	rec.NextSteps = next

	completed := progress.completedSet()
	for _, s := range path.Steps {
		rating, rated := progress.Ratings[s.ID]
		if !rated || rating >= reviewBelow {
			continue
		}
		if completed[s.ID] && len(rec.ReviewSteps) < maxReviewSteps {
			rec.ReviewSteps = append(rec.ReviewSteps, s)
		}
		rec.AdditionalResources = append(rec.AdditionalResources, LearningResource{
			Title:      s.Title + " supplementary material",
			Type:       "article",
			Content:    "Extra explanations and worked examples for " + s.Title + ".",
			Duration:   s.EstimatedTime / 2,
			Difficulty: clampDifficulty(s.Difficulty - 1),
			Provider:   "system",
		})
	}

	for _, s := range path.Steps {
		if !completed[s.ID] {
			rec.EstimatedTimeToComplete += s.EstimatedTime
		}
	}
	return rec
}
