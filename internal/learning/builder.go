package learning

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Share of a skill's time budget per step type; the assessment gets the remaining tenth
// of the goal's total.
const (
	conceptShare    = 0.3
	practiceShare   = 0.4
	projectShare    = 0.2
	assessmentShare = 0.1

	projectMinDifficulty = 3
)

// Per-step defaults for topic paths when no time budget is given (minutes).
var defaultStepTime = map[StepType]int{
	StepConcept:    60,
	StepPractice:   90,
	StepProject:    180,
	StepAssessment: 30,
}

var topicStepOrder = []StepType{StepConcept, StepPractice, StepProject, StepAssessment}

// Builder turns goals and topic requests into learning paths.
// It never touches progress state.
type Builder struct {
	categories categorizer
	now        func() time.Time
}

// NewBuilder creates a builder using the given category rules (nil means defaults).
func NewBuilder(rules []CategoryRule, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{categories: newCategorizer(rules), now: now}
}

// InferCategory returns the catalog category for a topic.
func (b *Builder) InferCategory(topic string) string {
	return b.categories.infer(topic)
}

// GenerateLearningPath builds a concept → practice → [project] chain per skill, followed
// by one assessment that depends on every earlier step.
func (b *Builder) GenerateLearningPath(goal LearningGoal) (*LearningPath, error) {
	skills := cleanList(goal.TargetSkills)
	if len(skills) == 0 {
		return nil, invalid("goal must name at least one target skill")
	}
	if goal.Difficulty < minDifficulty || goal.Difficulty > maxDifficulty {
		return nil, invalid("goal difficulty must be in [1, 5], got %d", goal.Difficulty)
	}
	if goal.EstimatedTime < 0 {
		return nil, invalid("goal estimated time must be >= 0, got %d", goal.EstimatedTime)
	}

	title := strings.TrimSpace(goal.Title)
	if title == "" {
		title = "Learning path: " + strings.Join(skills, ", ")
	}

	perSkill := float64(goal.EstimatedTime) / float64(len(skills))
	steps := make([]LearningStep, 0, len(skills)*3+1)
	var emitted []string

	for _, skill := range skills {
		concept := newStep(StepConcept,
			skill+" fundamentals",
			fmt.Sprintf("Learn the core concepts of %s.", skill),
			clampDifficulty(goal.Difficulty-1),
			minutes(perSkill*conceptShare),
			nil,
			[]string{skill},
		)
		steps = append(steps, concept)

		practice := newStep(StepPractice,
			skill+" practice",
			fmt.Sprintf("Apply %s through guided exercises.", skill),
			goal.Difficulty,
			minutes(perSkill*practiceShare),
			[]string{concept.ID},
			[]string{skill},
		)
		steps = append(steps, practice)
		emitted = append(emitted, concept.ID, practice.ID)

		if goal.Difficulty >= projectMinDifficulty {
			project := newStep(StepProject,
				skill+" project",
				fmt.Sprintf("Build a small project that uses %s end to end.", skill),
				clampDifficulty(goal.Difficulty+1),
				minutes(perSkill*projectShare),
				[]string{practice.ID},
				[]string{skill},
			)
			steps = append(steps, project)
			emitted = append(emitted, project.ID)
		}
	}

	steps = append(steps, newStep(StepAssessment,
		title+" assessment",
		"Check mastery of every skill in this path.",
		goal.Difficulty,
		minutes(float64(goal.EstimatedTime)*assessmentShare),
		append([]string(nil), emitted...),
		skills,
	))

	objectives := make([]string, 0, len(skills))
	for _, skill := range skills {
		objectives = append(objectives, "Master "+skill)
	}

	category := b.categories.infer(skills[0])
	if category == GeneralCategory {
		category = b.categories.infer(title)
	}

	path := b.newPath(title, goal.Description, category, tierForDifficulty(goal.Difficulty), steps)
	path.LearningObjectives = objectives
	path.Tags = append([]string(nil), skills...)
	path.CreatedBy = goal.UserID
	return path, nil
}

// GeneratePath builds one step per requested type, chained concept → practice → project →
// assessment. An empty preference list requests all four.
func (b *Builder) GeneratePath(topic string, tier Tier, prefs TopicPreferences) (*LearningPath, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, invalid("topic is required")
	}
	if tier == "" {
		tier = TierBeginner
	}
	if !tier.Valid() {
		return nil, invalid("unknown difficulty tier %q", tier)
	}
	if prefs.TimeAvailable < 0 {
		return nil, invalid("time available must be >= 0, got %d", prefs.TimeAvailable)
	}

	requested := make(map[StepType]bool, len(prefs.StepTypes))
	for _, t := range prefs.StepTypes {
		if _, ok := defaultStepTime[t]; !ok {
			return nil, invalid("unsupported step type preference %q", t)
		}
		requested[t] = true
	}
	if len(requested) == 0 {
		for _, t := range topicStepOrder {
			requested[t] = true
		}
	}

	weights := map[StepType]float64{
		StepConcept:    conceptShare,
		StepPractice:   practiceShare,
		StepProject:    projectShare,
		StepAssessment: assessmentShare,
	}
	var totalWeight float64
	for t := range requested {
		totalWeight += weights[t]
	}

	base := baseDifficulty(tier)
	var steps []LearningStep
	var prev string
	for _, t := range topicStepOrder {
		if !requested[t] {
			continue
		}
		est := defaultStepTime[t]
		if prefs.TimeAvailable > 0 {
			est = minutes(float64(prefs.TimeAvailable) * weights[t] / totalWeight)
		}
		difficulty := base
		if t == StepProject {
			difficulty = clampDifficulty(base + 1)
		}
		var prereqs []string
		if prev != "" {
			prereqs = []string{prev}
		}
		step := newStep(t, topicStepTitle(topic, t), topicStepDescription(topic, t), difficulty, est, prereqs, []string{topic})
		steps = append(steps, step)
		prev = step.ID
	}

	path := b.newPath(topic, fmt.Sprintf("Learn %s at the %s level.", topic, tier), b.categories.infer(topic), tier, steps)
	path.LearningObjectives = []string{"Understand " + topic}
	path.Tags = []string{topic}
	path.CreatedBy = prefs.CreatedBy
	return path, nil
}

func (b *Builder) newPath(title, description, category string, tier Tier, steps []LearningStep) *LearningPath {
	now := b.now()
	path := &LearningPath{
		ID:                 newPathID(),
		Title:              title,
		Description:        description,
		Category:           category,
		Difficulty:         tier,
		Steps:              steps,
		Prerequisites:      []string{},
		LearningObjectives: []string{},
		Tags:               []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
		IsPublic:           true,
	}
	recomputeStructure(path)
	return path
}

func newStep(t StepType, title, description string, difficulty, estimated int, prereqs, tags []string) LearningStep {
	if prereqs == nil {
		prereqs = []string{}
	}
	return LearningStep{
		ID:            newStepID(),
		Title:         title,
		Description:   description,
		Type:          t,
		Difficulty:    difficulty,
		EstimatedTime: estimated,
		Prerequisites: prereqs,
		Resources:     []LearningResource{},
		Tags:          append([]string(nil), tags...),
		Status:        StatusNotStarted,
	}
}

func topicStepTitle(topic string, t StepType) string {
	switch t {
	case StepConcept:
		return topic + " fundamentals"
	case StepPractice:
		return topic + " practice"
	case StepProject:
		return topic + " project"
	default:
		return topic + " assessment"
	}
}

func topicStepDescription(topic string, t StepType) string {
	switch t {
	case StepConcept:
		return fmt.Sprintf("Learn the core concepts of %s.", topic)
	case StepPractice:
		return fmt.Sprintf("Apply %s through guided exercises.", topic)
	case StepProject:
		return fmt.Sprintf("Build a small project that uses %s end to end.", topic)
	default:
		return fmt.Sprintf("Check your understanding of %s.", topic)
	}
}

// recomputeStructure refreshes the stats that depend only on the step list.
func recomputeStructure(p *LearningPath) {
	total := 0
	for _, s := range p.Steps {
		total += s.EstimatedTime
	}
	p.Stats.TotalSteps = len(p.Steps)
	p.Stats.TotalTime = total
	p.EstimatedDuration = math.Round(float64(total)/60*100) / 100
}

func tierForDifficulty(d int) Tier {
	switch {
	case d <= 2:
		return TierBeginner
	case d == 3:
		return TierIntermediate
	default:
		return TierAdvanced
	}
}

func baseDifficulty(t Tier) int {
	switch t {
	case TierAdvanced:
		return 4
	case TierIntermediate:
		return 3
	default:
		return 1
	}
}

func clampDifficulty(d int) int {
	return max(minDifficulty, min(maxDifficulty, d))
}

func minutes(v float64) int {
	return int(math.Round(v))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
