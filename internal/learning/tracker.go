package learning

import (
	"math"
	"time"
)

// newProgress initializes a record with nothing completed and the first eligible step current.
func newProgress(path *LearningPath, userID string, now time.Time) *LearningProgress {
	p := &LearningProgress{
		UserID:         userID,
		PathID:         path.ID,
		CompletedSteps: []string{},
		StartedAt:      now,
		LastAccessedAt: now,
		Notes:          map[string]string{},
		Ratings:        map[string]int{},
	}
	p.CurrentStepID = currentStep(path, p.completedSet())
	return p
}

// currentStep scans steps in catalog order for the first one that is not completed and
// whose prerequisites are all completed. Empty means finished or blocked.
func currentStep(path *LearningPath, completed map[string]bool) string {
	for _, s := range path.Steps {
		if !completed[s.ID] && prerequisitesMet(s, completed) {
			return s.ID
		}
	}
	return ""
}

func prerequisitesMet(s LearningStep, completed map[string]bool) bool {
	for _, id := range s.Prerequisites {
		if !completed[id] {
			return false
		}
	}
	return true
}

// completion is one CompleteStep call's input.
type completion struct {
	StepID    string
	TimeSpent int
	Rating    *int
	Note      *string
}

// applyCompletion mutates path and progress for one completed step. Re-completing a step
// leaves the completed set unchanged but still accumulates time and overwrites rating/note.
func applyCompletion(path *LearningPath, progress *LearningProgress, c completion, now time.Time) {
	step := path.Step(c.StepID)
	step.Status = StatusCompleted
	step.Progress = 100
	if step.CompletedAt == nil {
		at := now
		step.CompletedAt = &at
	}

	if !progress.HasCompleted(c.StepID) {
		progress.CompletedSteps = append(progress.CompletedSteps, c.StepID)
	}
	progress.TotalTimeSpent += c.TimeSpent
	progress.LastAccessedAt = now
	progress.CompletionPercentage = completionPercentage(len(progress.CompletedSteps), len(path.Steps))

	if c.Rating != nil {
		if progress.Ratings == nil {
			progress.Ratings = map[string]int{}
		}
		progress.Ratings[c.StepID] = *c.Rating
	}
	if c.Note != nil {
		if progress.Notes == nil {
			progress.Notes = map[string]string{}
		}
		progress.Notes[c.StepID] = *c.Note
	}

	progress.CurrentStepID = currentStep(path, progress.completedSet())
	path.UpdatedAt = now
}

func completionPercentage(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(done) / float64(total)
}

// recomputeStats refreshes the aggregate block from the steps and every user's progress
// on the path. records must already include the caller's latest progress.
func recomputeStats(path *LearningPath, records []LearningProgress) {
	recomputeStructure(path)

	completedSteps, completedTime := 0, 0
	for _, s := range path.Steps {
		if s.Status == StatusCompleted {
			completedSteps++
			completedTime += s.EstimatedTime
		}
	}
	path.Stats.CompletedSteps = completedSteps
	path.Stats.CompletedTime = completedTime

	sum, n := 0, 0
	for _, r := range records {
		for _, rating := range r.Ratings {
			sum += rating
			n++
		}
	}
	if n > 0 {
		path.Stats.AverageRating = math.Round(float64(sum)/float64(n)*100) / 100
	} else {
		path.Stats.AverageRating = 0
	}
}

// mergeProgress returns records with the entry for p.UserID replaced (or appended).
func mergeProgress(records []LearningProgress, p *LearningProgress) []LearningProgress {
	out := make([]LearningProgress, 0, len(records)+1)
	replaced := false
	for _, r := range records {
		if r.UserID == p.UserID {
			out = append(out, *p)
			replaced = true
			continue
		}
		out = append(out, r)
	}
	if !replaced {
		out = append(out, *p)
	}
	return out
}
