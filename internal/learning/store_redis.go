package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "learn"

// RedisStore is a Redis/Dragonfly-backed Store implementation. Documents are JSON strings;
// a sorted set scored by an insertion counter keeps catalog order and plain sets index
// progress by path and by user.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed learning store. An empty prefix uses "learn".
func NewRedisStore(client redis.UniversalClient, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) pathKey(id string) string      { return s.prefix + ":path:" + id }
func (s *RedisStore) pathsKey() string              { return s.prefix + ":paths" }
func (s *RedisStore) pathSeqKey() string            { return s.prefix + ":paths:seq" }
func (s *RedisStore) pathUsersKey(id string) string { return s.prefix + ":path:" + id + ":users" }
func (s *RedisStore) userPathsKey(id string) string { return s.prefix + ":user:" + id + ":paths" }
func (s *RedisStore) goalKey(id string) string      { return s.prefix + ":goal:" + id }
func (s *RedisStore) goalsKey() string              { return s.prefix + ":goals" }
func (s *RedisStore) progressKey(pathID, userID string) string {
	return s.prefix + ":progress:" + pathID + ":" + userID
}

func (s *RedisStore) CreatePath(ctx context.Context, path *LearningPath) error {
	if path == nil || path.ID == "" {
		return invalid("path id is required")
	}
	data, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("marshal path: %w", err)
	}

	pathKey := s.pathKey(path.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, pathKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return alreadyExists("path", path.ID)
		}
		seq, err := tx.Incr(ctx, s.pathSeqKey()).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, pathKey, data, 0)
			pipe.ZAdd(ctx, s.pathsKey(), redis.Z{Score: float64(seq), Member: path.ID})
			return nil
		})
		return err
	}, pathKey)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAlreadyExists):
		return err
	case errors.Is(err, redis.TxFailedErr):
		// Only a concurrent create can touch a key that did not exist.
		return alreadyExists("path", path.ID)
	default:
		return fmt.Errorf("create path: %w", err)
	}
}

func (s *RedisStore) GetPath(ctx context.Context, id string) (*LearningPath, error) {
	var path LearningPath
	if err := s.getJSON(ctx, s.pathKey(id), &path); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound("path", id)
		}
		return nil, fmt.Errorf("get path: %w", err)
	}
	return &path, nil
}

func (s *RedisStore) ListPaths(ctx context.Context) ([]LearningPath, error) {
	ids, err := s.client.ZRange(ctx, s.pathsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list path ids: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.pathKey(id)
	}
	paths, err := mgetJSON[LearningPath](ctx, s.client, keys)
	if err != nil {
		return nil, fmt.Errorf("list paths: %w", err)
	}
	sortPaths(paths)
	return paths, nil
}

func (s *RedisStore) DeletePath(ctx context.Context, id string) error {
	pathKey := s.pathKey(id)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, pathKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("path", id)
		}
		users, err := tx.SMembers(ctx, s.pathUsersKey(id)).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, pathKey, s.pathUsersKey(id))
			pipe.ZRem(ctx, s.pathsKey(), id)
			for _, userID := range users {
				pipe.Del(ctx, s.progressKey(id, userID))
				pipe.SRem(ctx, s.userPathsKey(userID), id)
			}
			return nil
		})
		return err
	}, pathKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete path: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveProgress(ctx context.Context, path *LearningPath, progress *LearningProgress) error {
	if path == nil || progress == nil {
		return invalid("path and progress are required")
	}
	pathData, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("marshal path: %w", err)
	}
	progressData, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	pathKey := s.pathKey(path.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, pathKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("path", path.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, pathKey, pathData, 0)
			pipe.Set(ctx, s.progressKey(progress.PathID, progress.UserID), progressData, 0)
			pipe.SAdd(ctx, s.pathUsersKey(progress.PathID), progress.UserID)
			pipe.SAdd(ctx, s.userPathsKey(progress.UserID), progress.PathID)
			return nil
		})
		return err
	}, pathKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *RedisStore) GetProgress(ctx context.Context, pathID, userID string) (*LearningProgress, error) {
	var p LearningProgress
	if err := s.getJSON(ctx, s.progressKey(pathID, userID), &p); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound("progress", pathID+"/"+userID)
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return &p, nil
}

func (s *RedisStore) ListProgressByPath(ctx context.Context, pathID string) ([]LearningProgress, error) {
	users, err := s.client.SMembers(ctx, s.pathUsersKey(pathID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list path users: %w", err)
	}
	keys := make([]string, len(users))
	for i, userID := range users {
		keys[i] = s.progressKey(pathID, userID)
	}
	return s.listProgress(ctx, keys)
}

func (s *RedisStore) ListProgressByUser(ctx context.Context, userID string) ([]LearningProgress, error) {
	pathIDs, err := s.client.SMembers(ctx, s.userPathsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list user paths: %w", err)
	}
	keys := make([]string, len(pathIDs))
	for i, pathID := range pathIDs {
		keys[i] = s.progressKey(pathID, userID)
	}
	return s.listProgress(ctx, keys)
}

func (s *RedisStore) listProgress(ctx context.Context, keys []string) ([]LearningProgress, error) {
	out, err := mgetJSON[LearningProgress](ctx, s.client, keys)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
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
	return out, nil
}

func (s *RedisStore) SaveGoal(ctx context.Context, goal *LearningGoal) error {
	if goal == nil || goal.ID == "" {
		return invalid("goal id is required")
	}
	data, err := json.Marshal(goal)
	if err != nil {
		return fmt.Errorf("marshal goal: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.goalKey(goal.ID), data, 0)
		pipe.ZAddNX(ctx, s.goalsKey(), redis.Z{
			Score:  float64(goal.CreatedAt.UnixMicro()),
			Member: goal.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save goal: %w", err)
	}
	return nil
}

func (s *RedisStore) GetGoal(ctx context.Context, id string) (*LearningGoal, error) {
	var g LearningGoal
	if err := s.getJSON(ctx, s.goalKey(id), &g); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound("goal", id)
		}
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return &g, nil
}

func (s *RedisStore) ListGoals(ctx context.Context, userID string) ([]LearningGoal, error) {
	ids, err := s.client.ZRange(ctx, s.goalsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list goal ids: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.goalKey(id)
	}
	goals, err := mgetJSON[LearningGoal](ctx, s.client, keys)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	if userID == "" {
		return goals, nil
	}
	out := []LearningGoal{}
	for _, g := range goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *RedisStore) DeleteGoal(ctx context.Context, id string) error {
	cmds, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.goalKey(id))
		pipe.ZRem(ctx, s.goalsKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n, _ := cmds[0].(*redis.IntCmd).Result(); n == 0 {
		return notFound("goal", id)
	}
	return nil
}

func (s *RedisStore) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// mgetJSON fetches and decodes keys, skipping keys that no longer exist.
func mgetJSON[T any](ctx context.Context, client redis.UniversalClient, keys []string) ([]T, error) {
	out := []T{}
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(str), &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, item)
	}
	return out, nil
}
