package learning_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-paths/internal/learning"
)

// storeFixturePath returns a two-step path created at the given time.
func storeFixturePath(id string, createdAt time.Time) *learning.LearningPath {
	return &learning.LearningPath{
		ID:         id,
		Title:      "Path " + id,
		Category:   "backend development",
		Difficulty: learning.TierBeginner,
		Steps: []learning.LearningStep{
			{ID: id + "-a", Title: "A", Type: learning.StepConcept, Difficulty: 1, EstimatedTime: 30, Prerequisites: []string{}, Resources: []learning.LearningResource{}, Tags: []string{}, Status: learning.StatusNotStarted},
			{ID: id + "-b", Title: "B", Type: learning.StepPractice, Difficulty: 2, EstimatedTime: 45, Prerequisites: []string{id + "-a"}, Resources: []learning.LearningResource{}, Tags: []string{"go"}, Status: learning.StatusNotStarted},
		},
		Prerequisites:      []string{},
		LearningObjectives: []string{"Learn " + id},
		Tags:               []string{"go"},
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
		IsPublic:           true,
	}
}

func storeFixtureProgress(pathID, userID string, startedAt time.Time) *learning.LearningProgress {
	return &learning.LearningProgress{
		UserID:         userID,
		PathID:         pathID,
		CurrentStepID:  pathID + "-a",
		CompletedSteps: []string{},
		StartedAt:      startedAt,
		LastAccessedAt: startedAt,
		Notes:          map[string]string{},
		Ratings:        map[string]int{},
	}
}

func mustCreatePath(t *testing.T, s learning.Store, path *learning.LearningPath) {
	t.Helper()
	if err := s.CreatePath(context.Background(), path); err != nil {
		t.Fatalf("CreatePath(%s) error = %v", path.ID, err)
	}
}

func mustSaveProgress(t *testing.T, s learning.Store, path *learning.LearningPath, progress *learning.LearningProgress) {
	t.Helper()
	if err := s.SaveProgress(context.Background(), path, progress); err != nil {
		t.Fatalf("SaveProgress(%s, %s) error = %v", progress.PathID, progress.UserID, err)
	}
}

func listPathIDs(t *testing.T, s learning.Store) []string {
	t.Helper()
	paths, err := s.ListPaths(context.Background())
	if err != nil {
		t.Fatalf("ListPaths() error = %v", err)
	}
	ids := []string{}
	for _, p := range paths {
		ids = append(ids, p.ID)
	}
	return ids
}

// runStoreContract exercises behavior every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) learning.Store) {
	t0 := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	t.Run("path round trip", func(t *testing.T) {
		s := newStore(t)
		mustCreatePath(t, s, storeFixturePath("p1", t0))

		got, err := s.GetPath(context.Background(), "p1")
		if err != nil {
			t.Fatalf("GetPath() error = %v", err)
		}
		if got.Title != "Path p1" || got.Difficulty != learning.TierBeginner {
			t.Errorf("GetPath() = %q/%q, want Path p1/beginner", got.Title, got.Difficulty)
		}
		if !got.CreatedAt.Equal(t0) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, t0)
		}
		if len(got.Steps) != 2 {
			t.Fatalf("len(Steps) = %d, want 2", len(got.Steps))
		}
		if !reflect.DeepEqual(got.Steps[1].Prerequisites, []string{"p1-a"}) {
			t.Errorf("Prerequisites = %v, want [p1-a]", got.Steps[1].Prerequisites)
		}
		if !reflect.DeepEqual(got.Tags, []string{"go"}) {
			t.Errorf("Tags = %v, want [go]", got.Tags)
		}
	})

	t.Run("create path rejects a taken id", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		original := storeFixturePath("p1", t0)
		mustCreatePath(t, s, original)
		mustSaveProgress(t, s, original, storeFixtureProgress("p1", "alice", t0))

		replacement := storeFixturePath("p1", t0.Add(time.Hour))
		replacement.Title = "replacement"
		replacement.Steps = replacement.Steps[:1]
		err := s.CreatePath(ctx, replacement)
		if !errors.Is(err, learning.ErrAlreadyExists) {
			t.Fatalf("CreatePath() error = %v, want ErrAlreadyExists", err)
		}

		got, err := s.GetPath(ctx, "p1")
		if err != nil {
			t.Fatalf("GetPath() error = %v", err)
		}
		if got.Title != "Path p1" || len(got.Steps) != 2 {
			t.Errorf("stored path = %q with %d steps, want the original", got.Title, len(got.Steps))
		}
		if _, err := s.GetProgress(ctx, "p1", "alice"); err != nil {
			t.Errorf("GetProgress() error = %v, progress must survive", err)
		}
	})

	t.Run("concurrent creates of one id", func(t *testing.T) {
		s := newStore(t)
		const writers = 8
		var wg sync.WaitGroup
		errs := make([]error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.CreatePath(context.Background(), storeFixturePath("race", t0))
			}(i)
		}
		wg.Wait()

		var ok int
		for _, err := range errs {
			if err == nil {
				ok++
			} else if !errors.Is(err, learning.ErrAlreadyExists) {
				t.Errorf("CreatePath() unexpected error = %v", err)
			}
		}
		if ok != 1 {
			t.Errorf("CreatePath() succeeded %d times, want 1", ok)
		}
		if ids := listPathIDs(t, s); !reflect.DeepEqual(ids, []string{"race"}) {
			t.Errorf("ListPaths() = %v, want [race]", ids)
		}
	})

	t.Run("missing records", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.GetPath(ctx, "nope"); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("GetPath() error = %v, want ErrNotFound", err)
		}
		if _, err := s.GetProgress(ctx, "nope", "alice"); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("GetProgress() error = %v, want ErrNotFound", err)
		}
		if _, err := s.GetGoal(ctx, "nope"); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("GetGoal() error = %v, want ErrNotFound", err)
		}
		if err := s.DeletePath(ctx, "nope"); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("DeletePath() error = %v, want ErrNotFound", err)
		}
		if err := s.DeleteGoal(ctx, "nope"); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("DeleteGoal() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("returned paths are copies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustCreatePath(t, s, storeFixturePath("p1", t0))

		got, err := s.GetPath(ctx, "p1")
		if err != nil {
			t.Fatalf("GetPath() error = %v", err)
		}
		got.Title = "changed"
		got.Steps[0].Status = learning.StatusCompleted

		again, err := s.GetPath(ctx, "p1")
		if err != nil {
			t.Fatalf("GetPath() error = %v", err)
		}
		if again.Title != "Path p1" || again.Steps[0].Status != learning.StatusNotStarted {
			t.Errorf("stored path changed through a returned copy: %q/%s", again.Title, again.Steps[0].Status)
		}
	})

	t.Run("list paths in creation order", func(t *testing.T) {
		s := newStore(t)
		mustCreatePath(t, s, storeFixturePath("late", t0.Add(2*time.Hour)))
		mustCreatePath(t, s, storeFixturePath("early", t0))
		mustCreatePath(t, s, storeFixturePath("middle", t0.Add(time.Hour)))

		want := []string{"early", "middle", "late"}
		if ids := listPathIDs(t, s); !reflect.DeepEqual(ids, want) {
			t.Errorf("ListPaths() = %v, want %v", ids, want)
		}
	})

	t.Run("same creation time keeps insertion order", func(t *testing.T) {
		s := newStore(t)
		want := []string{"zz", "aa", "mm", "bb"}
		for _, id := range want {
			mustCreatePath(t, s, storeFixturePath(id, t0))
		}
		mustCreatePath(t, s, storeFixturePath("first", t0.Add(-time.Minute)))

		want = append([]string{"first"}, want...)
		if ids := listPathIDs(t, s); !reflect.DeepEqual(ids, want) {
			t.Errorf("ListPaths() = %v, want %v", ids, want)
		}
	})

	t.Run("save progress writes path and record together", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		path := storeFixturePath("p1", t0)
		mustCreatePath(t, s, path)

		path.Stats.Enrollments = 1
		progress := storeFixtureProgress("p1", "alice", t0.Add(time.Minute))
		progress.Ratings["p1-a"] = 4
		mustSaveProgress(t, s, path, progress)

		gotPath, err := s.GetPath(ctx, "p1")
		if err != nil {
			t.Fatalf("GetPath() error = %v", err)
		}
		if gotPath.Stats.Enrollments != 1 {
			t.Errorf("Enrollments = %d, want 1", gotPath.Stats.Enrollments)
		}

		gotProgress, err := s.GetProgress(ctx, "p1", "alice")
		if err != nil {
			t.Fatalf("GetProgress() error = %v", err)
		}
		if gotProgress.CurrentStepID != "p1-a" {
			t.Errorf("CurrentStepID = %q, want p1-a", gotProgress.CurrentStepID)
		}
		if !reflect.DeepEqual(gotProgress.Ratings, map[string]int{"p1-a": 4}) {
			t.Errorf("Ratings = %v, want map[p1-a:4]", gotProgress.Ratings)
		}

		orphan := storeFixturePath("ghost", t0)
		if err := s.SaveProgress(ctx, orphan, storeFixtureProgress("ghost", "alice", t0)); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("SaveProgress(orphan) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list progress by path and user", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		p1, p2 := storeFixturePath("p1", t0), storeFixturePath("p2", t0.Add(time.Hour))
		mustCreatePath(t, s, p1)
		mustCreatePath(t, s, p2)

		mustSaveProgress(t, s, p2, storeFixtureProgress("p2", "alice", t0.Add(3*time.Hour)))
		mustSaveProgress(t, s, p1, storeFixtureProgress("p1", "alice", t0.Add(2*time.Hour)))
		mustSaveProgress(t, s, p1, storeFixtureProgress("p1", "bob", t0.Add(4*time.Hour)))

		byUser, err := s.ListProgressByUser(ctx, "alice")
		if err != nil {
			t.Fatalf("ListProgressByUser() error = %v", err)
		}
		if len(byUser) != 2 || byUser[0].PathID != "p1" || byUser[1].PathID != "p2" {
			t.Errorf("ListProgressByUser(alice) = %+v, want p1 then p2", byUser)
		}

		byPath, err := s.ListProgressByPath(ctx, "p1")
		if err != nil {
			t.Fatalf("ListProgressByPath() error = %v", err)
		}
		if len(byPath) != 2 || byPath[0].UserID != "alice" || byPath[1].UserID != "bob" {
			t.Errorf("ListProgressByPath(p1) = %+v, want alice then bob", byPath)
		}

		none, err := s.ListProgressByUser(ctx, "carol")
		if err != nil {
			t.Fatalf("ListProgressByUser() error = %v", err)
		}
		if len(none) != 0 {
			t.Errorf("ListProgressByUser(carol) = %d records, want 0", len(none))
		}
	})

	t.Run("delete path cascades to progress", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		p1, p2 := storeFixturePath("p1", t0), storeFixturePath("p2", t0.Add(time.Hour))
		mustCreatePath(t, s, p1)
		mustCreatePath(t, s, p2)
		mustSaveProgress(t, s, p1, storeFixtureProgress("p1", "alice", t0))
		mustSaveProgress(t, s, p2, storeFixtureProgress("p2", "alice", t0))

		if err := s.DeletePath(ctx, "p1"); err != nil {
			t.Fatalf("DeletePath() error = %v", err)
		}

		if _, err := s.GetPath(ctx, "p1"); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("GetPath() error = %v, want ErrNotFound", err)
		}
		if _, err := s.GetProgress(ctx, "p1", "alice"); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("GetProgress() error = %v, want ErrNotFound", err)
		}

		left, err := s.ListProgressByUser(ctx, "alice")
		if err != nil {
			t.Fatalf("ListProgressByUser() error = %v", err)
		}
		if len(left) != 1 || left[0].PathID != "p2" {
			t.Errorf("ListProgressByUser(alice) = %+v, want only p2", left)
		}
		if ids := listPathIDs(t, s); !reflect.DeepEqual(ids, []string{"p2"}) {
			t.Errorf("ListPaths() = %v, want [p2]", ids)
		}
	})

	t.Run("goals", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		goals := []*learning.LearningGoal{
			{ID: "g1", UserID: "alice", Title: "Go", TargetSkills: []string{"go"}, Difficulty: 2, Priority: learning.PriorityHigh, CreatedAt: t0},
			{ID: "g2", UserID: "bob", Title: "SQL", TargetSkills: []string{"sql"}, Difficulty: 3, Priority: learning.PriorityLow, CreatedAt: t0.Add(time.Hour)},
			{ID: "g3", UserID: "alice", Title: "K8s", TargetSkills: []string{"kubernetes"}, Difficulty: 4, Priority: learning.PriorityMedium, CreatedAt: t0.Add(2 * time.Hour)},
		}
		for _, g := range goals {
			if err := s.SaveGoal(ctx, g); err != nil {
				t.Fatalf("SaveGoal(%s) error = %v", g.ID, err)
			}
		}

		got, err := s.GetGoal(ctx, "g1")
		if err != nil {
			t.Fatalf("GetGoal() error = %v", err)
		}
		if !reflect.DeepEqual(got.TargetSkills, []string{"go"}) || got.Priority != learning.PriorityHigh {
			t.Errorf("GetGoal(g1) = %+v", got)
		}

		alice, err := s.ListGoals(ctx, "alice")
		if err != nil {
			t.Fatalf("ListGoals() error = %v", err)
		}
		if len(alice) != 2 || alice[0].ID != "g1" || alice[1].ID != "g3" {
			t.Errorf("ListGoals(alice) = %+v, want g1 then g3", alice)
		}

		all, err := s.ListGoals(ctx, "")
		if err != nil {
			t.Fatalf("ListGoals() error = %v", err)
		}
		if len(all) != 3 {
			t.Errorf("len(ListGoals()) = %d, want 3", len(all))
		}

		if err := s.DeleteGoal(ctx, "g2"); err != nil {
			t.Fatalf("DeleteGoal() error = %v", err)
		}
		if _, err := s.GetGoal(ctx, "g2"); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("GetGoal(g2) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("rejects records without ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.CreatePath(ctx, &learning.LearningPath{}); !errors.Is(err, learning.ErrInvalidInput) {
			t.Errorf("CreatePath() error = %v, want ErrInvalidInput", err)
		}
		if err := s.SaveGoal(ctx, &learning.LearningGoal{}); !errors.Is(err, learning.ErrInvalidInput) {
			t.Errorf("SaveGoal() error = %v, want ErrInvalidInput", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(*testing.T) learning.Store { return learning.NewMemoryStore() })
}
