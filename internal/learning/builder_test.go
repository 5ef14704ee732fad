package learning_test

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-paths/internal/learning"
)

var fixedNow = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestBuilder() *learning.Builder {
	return learning.NewBuilder(nil, func() time.Time { return fixedNow })
}

func stepIndex(steps []learning.LearningStep) map[string]int {
	idx := make(map[string]int, len(steps))
	for i, s := range steps {
		idx[s.ID] = i
	}
	return idx
}

func mustGenerate(t *testing.T, goal learning.LearningGoal) *learning.LearningPath {
	t.Helper()
	path, err := newTestBuilder().GenerateLearningPath(goal)
	if err != nil {
		t.Fatalf("GenerateLearningPath() error = %v", err)
	}
	return path
}

func TestGenerateLearningPath_TwoSkillsSevenSteps(t *testing.T) {
	path := mustGenerate(t, learning.LearningGoal{
		UserID:        "alice",
		Title:         "Frontend",
		TargetSkills:  []string{"react", "javascript"},
		Difficulty:    3,
		EstimatedTime: 600,
	})
	if len(path.Steps) != 7 {
		t.Fatalf("len(Steps) = %d, want 7", len(path.Steps))
	}

	type shape struct {
		Title      string
		Type       learning.StepType
		Difficulty int
		Minutes    int
	}
	var got []shape
	for _, s := range path.Steps {
		got = append(got, shape{s.Title, s.Type, s.Difficulty, s.EstimatedTime})
	}
	want := []shape{
		{"react fundamentals", learning.StepConcept, 2, 90},
		{"react practice", learning.StepPractice, 3, 120},
		{"react project", learning.StepProject, 4, 60},
		{"javascript fundamentals", learning.StepConcept, 2, 90},
		{"javascript practice", learning.StepPractice, 3, 120},
		{"javascript project", learning.StepProject, 4, 60},
		{"Frontend assessment", learning.StepAssessment, 3, 60},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("steps = %+v\nwant %+v", got, want)
	}

	// Each skill forms its own chain; the assessment waits for everything.
	if len(path.Steps[0].Prerequisites) != 0 || len(path.Steps[3].Prerequisites) != 0 {
		t.Error("concept steps should have no prerequisites")
	}
	if !reflect.DeepEqual(path.Steps[1].Prerequisites, []string{path.Steps[0].ID}) {
		t.Errorf("practice prerequisites = %v, want [%s]", path.Steps[1].Prerequisites, path.Steps[0].ID)
	}
	if !reflect.DeepEqual(path.Steps[2].Prerequisites, []string{path.Steps[1].ID}) {
		t.Errorf("project prerequisites = %v, want [%s]", path.Steps[2].Prerequisites, path.Steps[1].ID)
	}
	assessment := path.Steps[6]
	wantPrereqs := []string{}
	for _, s := range path.Steps[:6] {
		wantPrereqs = append(wantPrereqs, s.ID)
	}
	if !reflect.DeepEqual(assessment.Prerequisites, wantPrereqs) {
		t.Errorf("assessment prerequisites = %v, want %v", assessment.Prerequisites, wantPrereqs)
	}

	if path.Category != "frontend development" {
		t.Errorf("Category = %q, want frontend development", path.Category)
	}
	if path.Difficulty != learning.TierIntermediate {
		t.Errorf("Difficulty = %q, want intermediate", path.Difficulty)
	}
	if path.EstimatedDuration != 10 {
		t.Errorf("EstimatedDuration = %v, want 10", path.EstimatedDuration)
	}
	if path.Stats.TotalSteps != 7 || path.Stats.TotalTime != 600 {
		t.Errorf("Stats = %+v, want 7 steps and 600 minutes", path.Stats)
	}
	if !reflect.DeepEqual(path.Tags, []string{"react", "javascript"}) {
		t.Errorf("Tags = %v", path.Tags)
	}
	if want := []string{"Master react", "Master javascript"}; !reflect.DeepEqual(path.LearningObjectives, want) {
		t.Errorf("LearningObjectives = %v, want %v", path.LearningObjectives, want)
	}
	if path.CreatedBy != "alice" || !path.IsPublic {
		t.Errorf("CreatedBy/IsPublic = %q/%v, want alice/true", path.CreatedBy, path.IsPublic)
	}
	if !path.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt = %v, want %v", path.CreatedAt, fixedNow)
	}
	if !strings.HasPrefix(path.ID, "path_") {
		t.Errorf("ID = %q, want path_ prefix", path.ID)
	}
	for _, s := range path.Steps {
		if s.Status != learning.StatusNotStarted {
			t.Errorf("step %s status = %q, want not_started", s.ID, s.Status)
		}
		if !strings.HasPrefix(s.ID, "step_") {
			t.Errorf("step ID = %q, want step_ prefix", s.ID)
		}
	}
	if err := learning.ValidateSteps(path.Steps); err != nil {
		t.Errorf("ValidateSteps() error = %v", err)
	}
}

func TestGenerateLearningPath_NoProjectBelowThreshold(t *testing.T) {
	path := mustGenerate(t, learning.LearningGoal{
		TargetSkills:  []string{"python"},
		Difficulty:    2,
		EstimatedTime: 100,
	})
	if len(path.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3", len(path.Steps))
	}

	var types []learning.StepType
	for _, s := range path.Steps {
		types = append(types, s.Type)
	}
	if want := []learning.StepType{learning.StepConcept, learning.StepPractice, learning.StepAssessment}; !reflect.DeepEqual(types, want) {
		t.Errorf("step types = %v, want %v", types, want)
	}
	if path.Steps[0].Difficulty != 1 {
		t.Errorf("concept difficulty = %d, want 1", path.Steps[0].Difficulty)
	}
	if want := []string{path.Steps[0].ID, path.Steps[1].ID}; !reflect.DeepEqual(path.Steps[2].Prerequisites, want) {
		t.Errorf("assessment prerequisites = %v, want %v", path.Steps[2].Prerequisites, want)
	}
	if path.Title != "Learning path: python" {
		t.Errorf("Title = %q", path.Title)
	}
	if path.Difficulty != learning.TierBeginner || path.Category != "backend development" {
		t.Errorf("Difficulty/Category = %q/%q, want beginner/backend development", path.Difficulty, path.Category)
	}
}

func TestGenerateLearningPath_DifficultyClamped(t *testing.T) {
	low := mustGenerate(t, learning.LearningGoal{TargetSkills: []string{"go"}, Difficulty: 1})
	if got := low.Steps[0].Difficulty; got != 1 {
		t.Errorf("concept difficulty = %d, want 1 (never below 1)", got)
	}

	high := mustGenerate(t, learning.LearningGoal{TargetSkills: []string{"go"}, Difficulty: 5})
	if got := high.Steps[2].Difficulty; got != 5 {
		t.Errorf("project difficulty = %d, want 5 (never above 5)", got)
	}
	if high.Difficulty != learning.TierAdvanced {
		t.Errorf("Difficulty = %q, want advanced", high.Difficulty)
	}
}

func TestGenerateLearningPath_CategoryFallsBackToTitle(t *testing.T) {
	path := mustGenerate(t, learning.LearningGoal{
		Title:        "Figma for pastry chefs",
		TargetSkills: []string{"baking"},
		Difficulty:   2,
	})
	if path.Category != "design" {
		t.Errorf("Category = %q, want design", path.Category)
	}

	path = mustGenerate(t, learning.LearningGoal{TargetSkills: []string{"baking"}, Difficulty: 2})
	if path.Category != learning.GeneralCategory {
		t.Errorf("Category = %q, want %q", path.Category, learning.GeneralCategory)
	}
}

func TestGenerateLearningPath_InvalidGoals(t *testing.T) {
	tests := []struct {
		name string
		goal learning.LearningGoal
	}{
		{"no skills", learning.LearningGoal{Difficulty: 2}},
		{"blank skills", learning.LearningGoal{TargetSkills: []string{" ", ""}, Difficulty: 2}},
		{"difficulty zero", learning.LearningGoal{TargetSkills: []string{"go"}, Difficulty: 0}},
		{"difficulty six", learning.LearningGoal{TargetSkills: []string{"go"}, Difficulty: 6}},
		{"negative time", learning.LearningGoal{TargetSkills: []string{"go"}, Difficulty: 2, EstimatedTime: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newTestBuilder().GenerateLearningPath(tt.goal); !errors.Is(err, learning.ErrInvalidInput) {
				t.Errorf("GenerateLearningPath() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

// Every generated path must be a DAG whose prerequisites point at earlier steps.
func TestGenerateLearningPath_AlwaysAcyclic(t *testing.T) {
	skills := []string{"react", "go", "sql", "docker", "figma"}
	for n := 1; n <= len(skills); n++ {
		for d := 1; d <= 5; d++ {
			t.Run(fmt.Sprintf("skills=%d/difficulty=%d", n, d), func(t *testing.T) {
				path := mustGenerate(t, learning.LearningGoal{
					TargetSkills:  skills[:n],
					Difficulty:    d,
					EstimatedTime: 60 * n,
				})
				if err := learning.ValidateSteps(path.Steps); err != nil {
					t.Fatalf("ValidateSteps() error = %v", err)
				}

				idx := stepIndex(path.Steps)
				for i, s := range path.Steps {
					if s.Difficulty < 1 || s.Difficulty > 5 {
						t.Errorf("step %s difficulty = %d, want 1..5", s.ID, s.Difficulty)
					}
					for _, p := range s.Prerequisites {
						j, ok := idx[p]
						if !ok {
							t.Fatalf("prerequisite %s of %s is not in the path", p, s.ID)
						}
						if j >= i {
							t.Errorf("step %d depends on later step %d", i, j)
						}
					}
				}
			})
		}
	}
}

func TestGeneratePath_Defaults(t *testing.T) {
	path, err := newTestBuilder().GeneratePath("kubernetes", "", learning.TopicPreferences{CreatedBy: "ops"})
	if err != nil {
		t.Fatalf("GeneratePath() error = %v", err)
	}
	if len(path.Steps) != 4 {
		t.Fatalf("len(Steps) = %d, want 4", len(path.Steps))
	}

	wantTypes := []learning.StepType{learning.StepConcept, learning.StepPractice, learning.StepProject, learning.StepAssessment}
	wantTimes := []int{60, 90, 180, 30}
	wantDifficulty := []int{1, 1, 2, 1}
	for i, s := range path.Steps {
		if s.Type != wantTypes[i] || s.EstimatedTime != wantTimes[i] || s.Difficulty != wantDifficulty[i] {
			t.Errorf("step %d = %s/%d min/difficulty %d, want %s/%d/%d",
				i, s.Type, s.EstimatedTime, s.Difficulty, wantTypes[i], wantTimes[i], wantDifficulty[i])
		}
		if i == 0 {
			if len(s.Prerequisites) != 0 {
				t.Errorf("first step prerequisites = %v, want none", s.Prerequisites)
			}
		} else if want := []string{path.Steps[i-1].ID}; !reflect.DeepEqual(s.Prerequisites, want) {
			t.Errorf("step %d prerequisites = %v, want %v", i, s.Prerequisites, want)
		}
	}
	if path.Title != "kubernetes" {
		t.Errorf("Title = %q, want kubernetes", path.Title)
	}
	if path.Description != "Learn kubernetes at the beginner level." {
		t.Errorf("Description = %q", path.Description)
	}
	if path.Difficulty != learning.TierBeginner || path.Category != "devops" {
		t.Errorf("Difficulty/Category = %q/%q, want beginner/devops", path.Difficulty, path.Category)
	}
	if !reflect.DeepEqual(path.Tags, []string{"kubernetes"}) {
		t.Errorf("Tags = %v, want [kubernetes]", path.Tags)
	}
	if path.CreatedBy != "ops" {
		t.Errorf("CreatedBy = %q, want ops", path.CreatedBy)
	}
	if path.EstimatedDuration != 6 {
		t.Errorf("EstimatedDuration = %v, want 6", path.EstimatedDuration)
	}
}

func TestGeneratePath_TimeBudgetSplitsByWeight(t *testing.T) {
	path, err := newTestBuilder().GeneratePath("sql", learning.TierAdvanced, learning.TopicPreferences{
		StepTypes:     []learning.StepType{learning.StepPractice, learning.StepConcept},
		TimeAvailable: 100,
	})
	if err != nil {
		t.Fatalf("GeneratePath() error = %v", err)
	}
	if len(path.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(path.Steps))
	}

	// Catalog order is fixed regardless of preference order.
	if s := path.Steps[0]; s.Type != learning.StepConcept || s.EstimatedTime != 43 || s.Difficulty != 4 {
		t.Errorf("first step = %s/%d min/difficulty %d, want concept/43/4", s.Type, s.EstimatedTime, s.Difficulty)
	}
	if s := path.Steps[1]; s.Type != learning.StepPractice || s.EstimatedTime != 57 {
		t.Errorf("second step = %s/%d min, want practice/57", s.Type, s.EstimatedTime)
	}
}

func TestGeneratePath_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		tier  learning.Tier
		prefs learning.TopicPreferences
	}{
		{"empty topic", "  ", learning.TierBeginner, learning.TopicPreferences{}},
		{"unknown tier", "go", "expert", learning.TopicPreferences{}},
		{"reading not generated", "go", "", learning.TopicPreferences{StepTypes: []learning.StepType{learning.StepReading}}},
		{"unknown step type", "go", "", learning.TopicPreferences{StepTypes: []learning.StepType{"lecture"}}},
		{"negative time", "go", "", learning.TopicPreferences{TimeAvailable: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newTestBuilder().GeneratePath(tt.topic, tt.tier, tt.prefs); !errors.Is(err, learning.ErrInvalidInput) {
				t.Errorf("GeneratePath() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestBuilder_CustomCategories(t *testing.T) {
	b := learning.NewBuilder([]learning.CategoryRule{
		{Category: "music", Keywords: []string{"Guitar", "piano"}},
	}, nil)
	if got := b.InferCategory("Jazz GUITAR basics"); got != "music" {
		t.Errorf("InferCategory(Jazz GUITAR basics) = %q, want music", got)
	}
	if got := b.InferCategory("react"); got != learning.GeneralCategory {
		t.Errorf("InferCategory(react) = %q, want %q", got, learning.GeneralCategory)
	}
}
