package learning

import (
	"math"
	"sort"
)

// AchievementThresholds configures when badges are awarded.
type AchievementThresholds struct {
	Beginner      int     // completed paths
	Enthusiast    int     // completed paths
	Master        int     // completed paths
	TimeInvestor  int     // minutes spent
	Perfectionist float64 // average completion percentage
}

// DefaultAchievementThresholds returns the stock badge thresholds.
func DefaultAchievementThresholds() AchievementThresholds {
	return AchievementThresholds{
		Beginner:      1,
		Enthusiast:    5,
		Master:        10,
		TimeInvestor:  3600,
		Perfectionist: 80,
	}
}

const maxFavoriteCategories = 3

// computeUserStats aggregates a user's records. categories maps path id to category for
// the paths that still exist.
func computeUserStats(userID string, records []LearningProgress, categories map[string]string, th AchievementThresholds) UserStats {
	stats := UserStats{
		UserID:             userID,
		FavoriteCategories: []string{},
		Achievements:       []Achievement{},
	}

	var sumCompletion float64
	counts := map[string]int{}
	for _, r := range records {
		switch {
		case r.CompletionPercentage >= 100:
			stats.CompletedPaths++
		case r.CompletionPercentage > 0:
			stats.InProgressPaths++
		}
		stats.TotalTimeSpent += r.TotalTimeSpent
		sumCompletion += r.CompletionPercentage
		if c, ok := categories[r.PathID]; ok && c != "" {
			counts[c]++
		}
	}
	if len(records) > 0 {
		stats.AverageCompletion = math.Round(sumCompletion/float64(len(records))*100) / 100
	}

	cats := make([]string, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		if counts[cats[i]] != counts[cats[j]] {
			return counts[cats[i]] > counts[cats[j]]
		}
		return cats[i] < cats[j]
	})
	if len(cats) > maxFavoriteCategories {
		cats = cats[:maxFavoriteCategories]
	}
	stats.FavoriteCategories = cats

	stats.Achievements = achievements(stats, th)
	return stats
}

func achievements(s UserStats, th AchievementThresholds) []Achievement {
	out := []Achievement{}
	if th.Beginner > 0 && s.CompletedPaths >= th.Beginner {
		out = append(out, Achievement{ID: "beginner", Title: "Beginner", Description: "Completed your first learning path"})
	}
	if th.Enthusiast > 0 && s.CompletedPaths >= th.Enthusiast {
		out = append(out, Achievement{ID: "learning-enthusiast", Title: "Learning Enthusiast", Description: "Completed several learning paths"})
	}
	if th.Master > 0 && s.CompletedPaths >= th.Master {
		out = append(out, Achievement{ID: "knowledge-master", Title: "Knowledge Master", Description: "Completed many learning paths"})
	}
	if th.TimeInvestor > 0 && s.TotalTimeSpent >= th.TimeInvestor {
		out = append(out, Achievement{ID: "time-investor", Title: "Time Investor", Description: "Invested a large amount of time in learning"})
	}
	if th.Perfectionist > 0 && s.AverageCompletion >= th.Perfectionist {
		out = append(out, Achievement{ID: "perfectionist", Title: "Perfectionist", Description: "Keeps a high average completion rate"})
	}
	return out
}
