package learning

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// EngineConfig holds dependencies for the learning engine.
type EngineConfig struct {
	Store        Store
	Events       EventLogger
	Categories   []CategoryRule        // keyword table for category inference (default built-in)
	Achievements AchievementThresholds // zero value uses DefaultAchievementThresholds
	Now          func() time.Time
}

// Engine builds paths, tracks progress and serves recommendations.
type Engine struct {
	store        Store
	events       EventLogger
	builder      *Builder
	achievements AchievementThresholds
	now          func() time.Time
	locks        pathLocks
}

// NewEngine creates a new learning engine.
func NewEngine(cfg EngineConfig) *Engine {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	achievements := cfg.Achievements
	if achievements == (AchievementThresholds{}) {
		achievements = DefaultAchievementThresholds()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return truncate(time.Now()) }
	}
	return &Engine{
		store:        store,
		events:       events,
		builder:      NewBuilder(cfg.Categories, now),
		achievements: achievements,
		now:          now,
		locks:        pathLocks{locks: make(map[string]*pathLock)},
	}
}

// CreateGoal validates and records a learning goal.
func (e *Engine) CreateGoal(ctx context.Context, goal LearningGoal) (*LearningGoal, error) {
	goal.TargetSkills = cleanList(goal.TargetSkills)
	goal.Title = strings.TrimSpace(goal.Title)
	if goal.Title == "" && len(goal.TargetSkills) == 0 {
		return nil, invalid("goal needs a title or at least one target skill")
	}
	if goal.Difficulty < minDifficulty || goal.Difficulty > maxDifficulty {
		return nil, invalid("goal difficulty must be in [1, 5], got %d", goal.Difficulty)
	}
	if goal.EstimatedTime < 0 {
		return nil, invalid("goal estimated time must be >= 0, got %d", goal.EstimatedTime)
	}
	switch goal.Priority {
	case "":
		goal.Priority = PriorityMedium
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return nil, invalid("unknown goal priority %q", goal.Priority)
	}
	if goal.ID == "" {
		goal.ID = newGoalID()
	}
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = e.now()
	}

	if err := e.store.SaveGoal(ctx, &goal); err != nil {
		return nil, err
	}
	slog.Info("goal created", "goal_id", goal.ID, "user_id", goal.UserID, "skills", len(goal.TargetSkills))
	return &goal, nil
}

// GetGoal returns a goal by id.
func (e *Engine) GetGoal(ctx context.Context, id string) (*LearningGoal, error) {
	return e.store.GetGoal(ctx, id)
}

// ListGoals returns the goals of userID, or every goal when userID is empty.
func (e *Engine) ListGoals(ctx context.Context, userID string) ([]LearningGoal, error) {
	return e.store.ListGoals(ctx, userID)
}

// DeleteGoal removes only the goal record; paths generated from it are untouched.
func (e *Engine) DeleteGoal(ctx context.Context, id string) error {
	if err := e.store.DeleteGoal(ctx, id); err != nil {
		return err
	}
	slog.Info("goal deleted", "goal_id", id)
	return nil
}

// CreatePathFromGoal generates a path from goal and registers it. A goal without an id is
// recorded first.
func (e *Engine) CreatePathFromGoal(ctx context.Context, goal LearningGoal) (*LearningPath, error) {
	path, err := e.builder.GenerateLearningPath(goal)
	if err != nil {
		return nil, err
	}

	if goal.ID == "" {
		if _, err := e.CreateGoal(ctx, goal); err != nil {
			return nil, err
		}
	} else if _, err := e.store.GetGoal(ctx, goal.ID); errors.Is(err, ErrNotFound) {
		if _, err := e.CreateGoal(ctx, goal); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	return e.register(ctx, path, "goal")
}

// CreatePathFromTopic generates a topic path from step-type preferences and registers it.
func (e *Engine) CreatePathFromTopic(ctx context.Context, topic string, tier Tier, prefs TopicPreferences) (*LearningPath, error) {
	path, err := e.builder.GeneratePath(topic, tier, prefs)
	if err != nil {
		return nil, err
	}
	return e.register(ctx, path, "topic")
}

// ImportPath validates an externally built path and registers it. Step statuses and
// progress are reset, derived fields are recomputed, and a missing id is assigned.
func (e *Engine) ImportPath(ctx context.Context, path LearningPath) (*LearningPath, error) {
	p := clonePath(&path)
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return nil, invalid("path title is required")
	}
	if p.Difficulty == "" {
		p.Difficulty = TierBeginner
	}
	if !p.Difficulty.Valid() {
		return nil, invalid("unknown difficulty tier %q", p.Difficulty)
	}
	if err := ValidateSteps(p.Steps); err != nil {
		return nil, err
	}

	if p.ID == "" {
		p.ID = newPathID()
	} else {
		unlock := e.locks.lock(p.ID)
		defer unlock()
		if _, err := e.store.GetPath(ctx, p.ID); err == nil {
			return nil, alreadyExists("path", p.ID)
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	if p.Category == "" {
		p.Category = e.builder.InferCategory(p.Title)
	}
	for i := range p.Steps {
		p.Steps[i].Status = StatusNotStarted
		p.Steps[i].Progress = 0
		p.Steps[i].CompletedAt = nil
	}
	now := e.now()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Stats = PathStats{}
	recomputeStats(p, nil)

	return e.register(ctx, p, "import")
}

func (e *Engine) register(ctx context.Context, path *LearningPath, source string) (*LearningPath, error) {
	if err := e.store.CreatePath(ctx, path); err != nil {
		return nil, err
	}
	slog.Info("learning path created",
		"path_id", path.ID,
		"source", source,
		"category", path.Category,
		"steps", len(path.Steps),
	)
	e.emit(Event{
		PathID:    path.ID,
		UserID:    path.CreatedBy,
		EventType: EventPathCreated,
		Data:      map[string]any{"source": source, "steps": len(path.Steps)},
	})
	return path, nil
}

// GetPath returns a path by id.
func (e *Engine) GetPath(ctx context.Context, id string) (*LearningPath, error) {
	return e.store.GetPath(ctx, id)
}

// ListPaths returns the whole catalog in creation order.
func (e *Engine) ListPaths(ctx context.Context) ([]LearningPath, error) {
	return e.store.ListPaths(ctx)
}

// DeletePath removes a path and every progress record that references it.
func (e *Engine) DeletePath(ctx context.Context, id string) error {
	unlock := e.locks.lock(id)
	defer unlock()

	if err := e.store.DeletePath(ctx, id); err != nil {
		return err
	}
	slog.Info("learning path deleted", "path_id", id)
	e.emit(Event{PathID: id, EventType: EventPathDeleted})
	return nil
}

// StartPath enrolls userID in a path. Starting an already started path returns the
// existing record and does not count a second enrollment.
func (e *Engine) StartPath(ctx context.Context, pathID, userID string) (*LearningProgress, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user id is required")
	}
	unlock := e.locks.lock(pathID)
	defer unlock()

	path, err := e.store.GetPath(ctx, pathID)
	if err != nil {
		return nil, err
	}
	if existing, err := e.store.GetProgress(ctx, pathID, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := e.now()
	progress := newProgress(path, userID, now)
	path.Stats.Enrollments++
	path.UpdatedAt = now

	if err := e.store.SaveProgress(ctx, path, progress); err != nil {
		return nil, err
	}
	slog.Info("learning path started", "path_id", pathID, "user_id", userID, "current_step_id", progress.CurrentStepID)
	e.emit(Event{PathID: pathID, UserID: userID, EventType: EventPathStarted})
	return progress, nil
}

// GetProgress returns the progress record for (pathID, userID).
func (e *Engine) GetProgress(ctx context.Context, pathID, userID string) (*LearningProgress, error) {
	return e.store.GetProgress(ctx, pathID, userID)
}

// ListUserProgress returns every progress record of userID, oldest enrollment first.
func (e *Engine) ListUserProgress(ctx context.Context, userID string) ([]LearningProgress, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user id is required")
	}
	return e.store.ListProgressByUser(ctx, userID)
}

// CompleteStepRequest is the input to CompleteStep. Rating and Note are optional.
type CompleteStepRequest struct {
	PathID    string
	UserID    string
	StepID    string
	TimeSpent int // minutes
	Rating    *int
	Note      *string
}

// CompleteStep marks a step completed for a user. Each call accumulates TimeSpent, even
// when the step was already completed; rating and note overwrite earlier values.
func (e *Engine) CompleteStep(ctx context.Context, req CompleteStepRequest) (*LearningProgress, error) {
	if req.TimeSpent < 0 {
		return nil, invalid("time spent must be >= 0, got %d", req.TimeSpent)
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return nil, invalid("rating must be in [1, 5], got %d", *req.Rating)
	}

	unlock := e.locks.lock(req.PathID)
	defer unlock()

	path, err := e.store.GetPath(ctx, req.PathID)
	if err != nil {
		return nil, err
	}
	progress, err := e.store.GetProgress(ctx, req.PathID, req.UserID)
	if err != nil {
		return nil, err
	}
	if path.Step(req.StepID) == nil {
		return nil, notFound("step", req.StepID)
	}

	wasDone := progress.CompletionPercentage >= 100
	applyCompletion(path, progress, completion{
		StepID:    req.StepID,
		TimeSpent: req.TimeSpent,
		Rating:    req.Rating,
		Note:      req.Note,
	}, e.now())

	records, err := e.store.ListProgressByPath(ctx, req.PathID)
	if err != nil {
		return nil, err
	}
	recomputeStats(path, mergeProgress(records, progress))

	if err := e.store.SaveProgress(ctx, path, progress); err != nil {
		return nil, err
	}

	slog.Info("step completed",
		"path_id", req.PathID,
		"user_id", req.UserID,
		"step_id", req.StepID,
		"completion", progress.CompletionPercentage,
		"current_step_id", progress.CurrentStepID,
	)
	e.emit(Event{
		PathID:    req.PathID,
		UserID:    req.UserID,
		EventType: EventStepCompleted,
		Data: map[string]any{
			"step_id":    req.StepID,
			"time_spent": req.TimeSpent,
			"completion": progress.CompletionPercentage,
		},
	})
	if !wasDone && progress.CompletionPercentage >= 100 {
		e.emit(Event{PathID: req.PathID, UserID: req.UserID, EventType: EventPathCompleted})
	}
	return progress, nil
}

// GetNextSteps returns every step the user may start now, easiest first.
func (e *Engine) GetNextSteps(ctx context.Context, pathID, userID string) ([]LearningStep, error) {
	path, progress, err := e.load(ctx, pathID, userID)
	if err != nil {
		return nil, err
	}
	return NextSteps(path, progress), nil
}

// GetRecommendations returns next steps, review candidates and supplementary material.
func (e *Engine) GetRecommendations(ctx context.Context, pathID, userID string) (*Recommendation, error) {
	path, progress, err := e.load(ctx, pathID, userID)
	if err != nil {
		return nil, err
	}
	rec := Recommend(path, progress)
	slog.Debug("recommendations computed",
		"path_id", pathID,
		"user_id", userID,
		"next", len(rec.NextSteps),
		"review", len(rec.ReviewSteps),
	)
	return &rec, nil
}

func (e *Engine) load(ctx context.Context, pathID, userID string) (*LearningPath, *LearningProgress, error) {
	path, err := e.store.GetPath(ctx, pathID)
	if err != nil {
		return nil, nil, err
	}
	progress, err := e.store.GetProgress(ctx, pathID, userID)
	if err != nil {
		return nil, nil, err
	}
	return path, progress, nil
}

// SearchPaths filters and ranks the catalog.
func (e *Engine) SearchPaths(ctx context.Context, query string, filters SearchFilters) ([]SearchResult, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	paths, err := e.store.ListPaths(ctx)
	if err != nil {
		return nil, err
	}
	results, err := Search(paths, query, filters)
	if err != nil {
		return nil, err
	}
	slog.Debug("paths searched", "query", query, "candidates", len(paths), "results", len(results))
	return results, nil
}

// GetUserStats aggregates every progress record of userID.
func (e *Engine) GetUserStats(ctx context.Context, userID string) (*UserStats, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user id is required")
	}
	records, err := e.store.ListProgressByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	categories := make(map[string]string, len(records))
	for _, r := range records {
		path, err := e.store.GetPath(ctx, r.PathID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		categories[r.PathID] = path.Category
	}

	stats := computeUserStats(userID, records, categories, e.achievements)
	return &stats, nil
}

func (e *Engine) emit(event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.now()
	}
	if err := e.events.LogEvent(event); err != nil {
		slog.Warn("failed to log event", "type", event.EventType, "path_id", event.PathID, "error", err)
	}
}

// pathLocks serializes writers per path id; different paths never contend.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func (l *pathLocks) lock(id string) func() {
	l.mu.Lock()
	pl, ok := l.locks[id]
	if !ok {
		pl = &pathLock{}
		l.locks[id] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
