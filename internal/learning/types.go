// Package learning implements the learning path engine: a builder that turns goals into
// prerequisite-ordered step graphs, a per-user progress tracker, and a recommender.
package learning

import "time"

// StepType classifies the kind of work a step represents.
type StepType string

const (
	StepConcept    StepType = "concept"
	StepPractice   StepType = "practice"
	StepAssessment StepType = "assessment"
	StepProject    StepType = "project"
	StepReading    StepType = "reading"
)

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	switch t {
	case StepConcept, StepPractice, StepAssessment, StepProject, StepReading:
		return true
	}
	return false
}

// StepStatus is the lifecycle state of a step.
type StepStatus string

const (
	StatusNotStarted StepStatus = "not-started"
	StatusInProgress StepStatus = "in-progress"
	StatusCompleted  StepStatus = "completed"
	StatusSkipped    StepStatus = "skipped"
)

// Tier is the coarse difficulty of a whole path.
type Tier string

const (
	TierBeginner     Tier = "beginner"
	TierIntermediate Tier = "intermediate"
	TierAdvanced     Tier = "advanced"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierBeginner || t == TierIntermediate || t == TierAdvanced
}

// Priority of a learning goal.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

const (
	minDifficulty = 1
	maxDifficulty = 5
)

// LearningResource is supplementary material attached to a step.
type LearningResource struct {
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	URL        string   `json:"url,omitempty"`
	Content    string   `json:"content,omitempty"`
	Duration   int      `json:"duration,omitempty"` // minutes
	Difficulty int      `json:"difficulty"`
	Rating     *float64 `json:"rating,omitempty"`
	Provider   string   `json:"provider,omitempty"`
}

// LearningStep is a unit of work within a path.
type LearningStep struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	Type          StepType           `json:"type"`
	Difficulty    int                `json:"difficulty"`
	EstimatedTime int                `json:"estimated_time"` // minutes
	Prerequisites []string           `json:"prerequisites"`
	Resources     []LearningResource `json:"resources"`
	Tags          []string           `json:"tags"`
	Status        StepStatus         `json:"status"`
	Progress      int                `json:"progress"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	Note          string             `json:"note,omitempty"`
}

// PathStats is derived from a path's steps and its progress records.
// It is always recomputed, never edited directly.
type PathStats struct {
	TotalSteps     int     `json:"total_steps"`
	CompletedSteps int     `json:"completed_steps"`
	TotalTime      int     `json:"total_time"`
	CompletedTime  int     `json:"completed_time"`
	AverageRating  float64 `json:"average_rating"`
	Enrollments    int     `json:"enrollments"`
}

// LearningPath is an ordered catalog of steps forming a DAG.
type LearningPath struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	Category           string         `json:"category"`
	Difficulty         Tier           `json:"difficulty"`
	EstimatedDuration  float64        `json:"estimated_duration"` // hours
	Steps              []LearningStep `json:"steps"`
	Prerequisites      []string       `json:"prerequisites"`
	LearningObjectives []string       `json:"learning_objectives"`
	Tags               []string       `json:"tags"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	CreatedBy          string         `json:"created_by"`
	IsPublic           bool           `json:"is_public"`
	Stats              PathStats      `json:"stats"`
}

// Step returns a pointer to the step with the given id, or nil.
func (p *LearningPath) Step(id string) *LearningStep {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// LearningProgress is the per-(user, path) tracking record.
type LearningProgress struct {
	UserID               string            `json:"user_id"`
	PathID               string            `json:"path_id"`
	CurrentStepID        string            `json:"current_step_id"`
	CompletedSteps       []string          `json:"completed_steps"`
	TotalTimeSpent       int               `json:"total_time_spent"` // minutes
	StartedAt            time.Time         `json:"started_at"`
	LastAccessedAt       time.Time         `json:"last_accessed_at"`
	CompletionPercentage float64           `json:"completion_percentage"`
	Notes                map[string]string `json:"notes"`
	Ratings              map[string]int    `json:"ratings"`
}

// HasCompleted reports whether stepID is in the completed set.
func (p *LearningProgress) HasCompleted(stepID string) bool {
	for _, id := range p.CompletedSteps {
		if id == stepID {
			return true
		}
	}
	return false
}

func (p *LearningProgress) completedSet() map[string]bool {
	set := make(map[string]bool, len(p.CompletedSteps))
	for _, id := range p.CompletedSteps {
		set[id] = true
	}
	return set
}

// LearningGoal is the input from which a path is generated.
type LearningGoal struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	TargetSkills  []string   `json:"target_skills"`
	Difficulty    int        `json:"difficulty"`
	EstimatedTime int        `json:"estimated_time"` // minutes
	Priority      Priority   `json:"priority"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TopicPreferences drives GeneratePath.
type TopicPreferences struct {
	StepTypes []StepType `json:"step_types"`
	// TimeAvailable is the total minutes the learner can spend; zero uses per-type defaults.
	TimeAvailable int    `json:"time_available,omitempty"`
	CreatedBy     string `json:"created_by,omitempty"`
}

// Recommendation is the derived advice for one learner on one path.
type Recommendation struct {
	NextSteps               []LearningStep     `json:"next_steps"`
	ReviewSteps             []LearningStep     `json:"review_steps"`
	AdditionalResources     []LearningResource `json:"additional_resources"`
	EstimatedTimeToComplete int                `json:"estimated_time_to_complete"` // minutes
}

// SearchFilters are hard exclusions applied before scoring.
type SearchFilters struct {
	Category    string   `json:"category,omitempty"`
	Difficulty  Tier     `json:"difficulty,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	MinDuration float64  `json:"min_duration,omitempty"` // hours, 0 = unbounded
	MaxDuration float64  `json:"max_duration,omitempty"` // hours, 0 = unbounded
	PublicOnly  bool     `json:"public_only,omitempty"`
}

// SearchResult pairs a path with its relevance score.
type SearchResult struct {
	Path  LearningPath `json:"path"`
	Score float64      `json:"score"`
}

// Achievement is a badge earned from aggregate stats.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UserStats aggregates all of a user's progress records.
type UserStats struct {
	UserID             string        `json:"user_id"`
	CompletedPaths     int           `json:"completed_paths"`
	InProgressPaths    int           `json:"in_progress_paths"`
	TotalTimeSpent     int           `json:"total_time_spent"` // minutes
	AverageCompletion  float64       `json:"average_completion"`
	FavoriteCategories []string      `json:"favorite_categories"`
	Achievements       []Achievement `json:"achievements"`
}
