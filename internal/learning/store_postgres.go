package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store implementation. Paths, progress records and
// goals are stored as JSONB documents next to the columns used for lookups; the schema is
// created by database.Migrate.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed learning store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreatePath(ctx context.Context, path *LearningPath) error {
	if path == nil || path.ID == "" {
		return invalid("path id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	data, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("marshal path: %w", err)
	}
	cmd, err := s.pool.Exec(ctx,
		`INSERT INTO learning_paths (id, title, category, difficulty, data, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		path.ID,
		path.Title,
		path.Category,
		string(path.Difficulty),
		string(data),
		path.CreatedAt,
		path.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create path: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return alreadyExists("path", path.ID)
	}
	return nil
}

func (s *PostgresStore) GetPath(ctx context.Context, id string) (*LearningPath, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM learning_paths WHERE id = $1`,
		id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("path", id)
		}
		return nil, fmt.Errorf("get path: %w", err)
	}

	var path LearningPath
	if err := json.Unmarshal(data, &path); err != nil {
		return nil, fmt.Errorf("decode path %s: %w", id, err)
	}
	return &path, nil
}

func (s *PostgresStore) ListPaths(ctx context.Context) ([]LearningPath, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT data FROM learning_paths ORDER BY created_at ASC, seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	return collectJSON[LearningPath](rows, "path")
}

func (s *PostgresStore) DeletePath(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	// learning_progress.path_id cascades on delete.
	cmd, err := s.pool.Exec(ctx, `DELETE FROM learning_paths WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete path: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return notFound("path", id)
	}
	return nil
}

func (s *PostgresStore) SaveProgress(ctx context.Context, path *LearningPath, progress *LearningProgress) error {
	if path == nil || progress == nil {
		return invalid("path and progress are required")
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	pathData, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("marshal path: %w", err)
	}
	cmd, err := tx.Exec(ctx,
		`UPDATE learning_paths
		 SET title = $2, category = $3, difficulty = $4, data = $5::jsonb, updated_at = $6
		 WHERE id = $1`,
		path.ID,
		path.Title,
		path.Category,
		string(path.Difficulty),
		string(pathData),
		path.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update path: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return notFound("path", path.ID)
	}

	progressData, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO learning_progress (path_id, user_id, data, started_at, updated_at)
		 VALUES ($1, $2, $3::jsonb, $4, $5)
		 ON CONFLICT (path_id, user_id)
		 DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		progress.PathID,
		progress.UserID,
		string(progressData),
		progress.StartedAt,
		progress.LastAccessedAt,
	); err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProgress(ctx context.Context, pathID, userID string) (*LearningProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM learning_progress WHERE path_id = $1 AND user_id = $2`,
		pathID,
		userID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("progress", pathID+"/"+userID)
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}

	var p LearningProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) ListProgressByPath(ctx context.Context, pathID string) ([]LearningProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT data FROM learning_progress WHERE path_id = $1 ORDER BY started_at ASC, user_id ASC`,
		pathID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	return collectJSON[LearningProgress](rows, "progress")
}

func (s *PostgresStore) ListProgressByUser(ctx context.Context, userID string) ([]LearningProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT data FROM learning_progress WHERE user_id = $1 ORDER BY started_at ASC, path_id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	return collectJSON[LearningProgress](rows, "progress")
}

func (s *PostgresStore) SaveGoal(ctx context.Context, goal *LearningGoal) error {
	if goal == nil || goal.ID == "" {
		return invalid("goal id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	data, err := json.Marshal(goal)
	if err != nil {
		return fmt.Errorf("marshal goal: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO learning_goals (id, user_id, data, created_at)
		 VALUES ($1, $2, $3::jsonb, $4)
		 ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, data = EXCLUDED.data`,
		goal.ID,
		nullIfEmpty(goal.UserID),
		string(data),
		goal.CreatedAt,
	); err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetGoal(ctx context.Context, id string) (*LearningGoal, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM learning_goals WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("goal", id)
		}
		return nil, fmt.Errorf("get goal: %w", err)
	}

	var g LearningGoal
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode goal %s: %w", id, err)
	}
	return &g, nil
}

func (s *PostgresStore) ListGoals(ctx context.Context, userID string) ([]LearningGoal, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT data FROM learning_goals
		 WHERE $1 = '' OR user_id = $1
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	return collectJSON[LearningGoal](rows, "goal")
}

func (s *PostgresStore) DeleteGoal(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM learning_goals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return notFound("goal", id)
	}
	return nil
}

func collectJSON[T any](rows pgx.Rows, what string) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return out, nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
