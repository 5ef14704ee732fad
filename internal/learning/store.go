package learning

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists paths, progress records and goals. Implementations return copies, so
// callers may mutate results freely, and report missing records with ErrNotFound.
type Store interface {
	// CreatePath inserts a new path. It fails with ErrAlreadyExists when the id is taken;
	// later changes to the path go through SaveProgress.
	CreatePath(ctx context.Context, path *LearningPath) error
	GetPath(ctx context.Context, id string) (*LearningPath, error)
	// ListPaths returns every path by creation time, ties in insertion order.
	ListPaths(ctx context.Context) ([]LearningPath, error)
	// DeletePath removes the path and every progress record that references it.
	DeletePath(ctx context.Context, id string) error

	// SaveProgress writes the path and one progress record together.
	SaveProgress(ctx context.Context, path *LearningPath, progress *LearningProgress) error
	GetProgress(ctx context.Context, pathID, userID string) (*LearningProgress, error)
	ListProgressByPath(ctx context.Context, pathID string) ([]LearningProgress, error)
	ListProgressByUser(ctx context.Context, userID string) ([]LearningProgress, error)

	SaveGoal(ctx context.Context, goal *LearningGoal) error
	GetGoal(ctx context.Context, id string) (*LearningGoal, error)
	// ListGoals returns goals for userID, or all goals when userID is empty.
	ListGoals(ctx context.Context, userID string) ([]LearningGoal, error)
	DeleteGoal(ctx context.Context, id string) error
}

type progressKey struct {
	pathID string
	userID string
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	paths    map[string]*LearningPath
	progress map[progressKey]*LearningProgress
	goals    map[string]*LearningGoal
	seq      map[string]uint64 // insertion order of paths
	next     uint64
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory learning store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		paths:    make(map[string]*LearningPath),
		progress: make(map[progressKey]*LearningProgress),
		goals:    make(map[string]*LearningGoal),
		seq:      make(map[string]uint64),
	}
}

func (s *MemoryStore) CreatePath(_ context.Context, path *LearningPath) error {
	if path == nil || path.ID == "" {
		return invalid("path id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.paths[path.ID]; ok {
		return alreadyExists("path", path.ID)
	}
	s.next++
	s.seq[path.ID] = s.next
	s.paths[path.ID] = clonePath(path)
	return nil
}

func (s *MemoryStore) GetPath(_ context.Context, id string) (*LearningPath, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.paths[id]
	if !ok {
		return nil, notFound("path", id)
	}
	return clonePath(p), nil
}

func (s *MemoryStore) ListPaths(_ context.Context) ([]LearningPath, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]LearningPath, 0, len(s.paths))
	for _, p := range s.paths {
		out = append(out, *clonePath(p))
	}
	sort.Slice(out, func(i, j int) bool { return s.seq[out[i].ID] < s.seq[out[j].ID] })
	sortPaths(out)
	return out, nil
}

func (s *MemoryStore) DeletePath(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.paths[id]; !ok {
		return notFound("path", id)
	}
	delete(s.paths, id)
	delete(s.seq, id)
	for key := range s.progress {
		if key.pathID == id {
			delete(s.progress, key)
		}
	}
	return nil
}

func (s *MemoryStore) SaveProgress(_ context.Context, path *LearningPath, progress *LearningProgress) error {
	if path == nil || progress == nil {
		return invalid("path and progress are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.paths[path.ID]; !ok {
		return notFound("path", path.ID)
	}
	s.paths[path.ID] = clonePath(path)
	s.progress[progressKey{pathID: progress.PathID, userID: progress.UserID}] = cloneProgress(progress)
	return nil
}

func (s *MemoryStore) GetProgress(_ context.Context, pathID, userID string) (*LearningProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[progressKey{pathID: pathID, userID: userID}]
	if !ok {
		return nil, notFound("progress", pathID+"/"+userID)
	}
	return cloneProgress(p), nil
}

func (s *MemoryStore) ListProgressByPath(_ context.Context, pathID string) ([]LearningProgress, error) {
	return s.listProgress(func(k progressKey) bool { return k.pathID == pathID }), nil
}

func (s *MemoryStore) ListProgressByUser(_ context.Context, userID string) ([]LearningProgress, error) {
	return s.listProgress(func(k progressKey) bool { return k.userID == userID }), nil
}

func (s *MemoryStore) listProgress(match func(progressKey) bool) []LearningProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []LearningProgress{}
	for key, p := range s.progress {
		if match(key) {
			out = append(out, *cloneProgress(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		if out[i].PathID != out[j].PathID {
			return out[i].PathID < out[j].PathID
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (s *MemoryStore) SaveGoal(_ context.Context, goal *LearningGoal) error {
	if goal == nil || goal.ID == "" {
		return invalid("goal id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g := *goal
	g.TargetSkills = append([]string(nil), goal.TargetSkills...)
	s.goals[g.ID] = &g
	return nil
}

func (s *MemoryStore) GetGoal(_ context.Context, id string) (*LearningGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.goals[id]
	if !ok {
		return nil, notFound("goal", id)
	}
	out := *g
	out.TargetSkills = append([]string(nil), g.TargetSkills...)
	return &out, nil
}

func (s *MemoryStore) ListGoals(_ context.Context, userID string) ([]LearningGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []LearningGoal{}
	for _, g := range s.goals {
		if userID == "" || g.UserID == userID {
			c := *g
			c.TargetSkills = append([]string(nil), g.TargetSkills...)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) DeleteGoal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.goals[id]; !ok {
		return notFound("goal", id)
	}
	delete(s.goals, id)
	return nil
}

// sortPaths orders paths by creation time. Input must be in insertion order, which
// breaks ties.
func sortPaths(paths []LearningPath) {
	sort.SliceStable(paths, func(i, j int) bool {
		return paths[i].CreatedAt.Before(paths[j].CreatedAt)
	})
}

func clonePath(p *LearningPath) *LearningPath {
	c := *p
	c.Steps = make([]LearningStep, len(p.Steps))
	for i, s := range p.Steps {
		c.Steps[i] = cloneStep(s)
	}
	c.Prerequisites = append([]string{}, p.Prerequisites...)
	c.LearningObjectives = append([]string{}, p.LearningObjectives...)
	c.Tags = append([]string{}, p.Tags...)
	return &c
}

func cloneStep(s LearningStep) LearningStep {
	s.Prerequisites = append([]string{}, s.Prerequisites...)
	s.Resources = append([]LearningResource{}, s.Resources...)
	s.Tags = append([]string{}, s.Tags...)
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		s.CompletedAt = &at
	}
	return s
}

func cloneProgress(p *LearningProgress) *LearningProgress {
	c := *p
	c.CompletedSteps = append([]string{}, p.CompletedSteps...)
	c.Notes = make(map[string]string, len(p.Notes))
	for k, v := range p.Notes {
		c.Notes[k] = v
	}
	c.Ratings = make(map[string]int, len(p.Ratings))
	for k, v := range p.Ratings {
		c.Ratings[k] = v
	}
	return &c
}

// truncate drops monotonic clock readings so values round-trip through storage unchanged.
func truncate(t time.Time) time.Time {
	return t.Round(0).UTC().Truncate(time.Microsecond)
}
