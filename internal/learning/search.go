package learning

import (
	"sort"
	"strings"
)

const (
	titleWeight       = 0.8
	descriptionWeight = 0.6
	tagWeight         = 0.4
)

// Validate rejects filters that can never match anything meaningful.
func (f SearchFilters) Validate() error {
	if f.Difficulty != "" && !f.Difficulty.Valid() {
		return invalid("unknown difficulty filter %q", f.Difficulty)
	}
	if f.MinDuration < 0 || f.MaxDuration < 0 {
		return invalid("duration filters must be >= 0")
	}
	if f.MaxDuration > 0 && f.MinDuration > f.MaxDuration {
		return invalid("min duration %.2f exceeds max duration %.2f", f.MinDuration, f.MaxDuration)
	}
	return nil
}

func (f SearchFilters) match(p LearningPath) bool {
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.Difficulty != "" && p.Difficulty != f.Difficulty {
		return false
	}
	if f.PublicOnly && !p.IsPublic {
		return false
	}
	if f.MinDuration > 0 && p.EstimatedDuration < f.MinDuration {
		return false
	}
	if f.MaxDuration > 0 && p.EstimatedDuration > f.MaxDuration {
		return false
	}
	if len(f.Tags) > 0 && !hasAnyTag(p.Tags, f.Tags) {
		return false
	}
	return true
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

// score weights title, description and each matching tag.
func score(p LearningPath, query string) float64 {
	var s float64
	if containsFold(p.Title, query) {
		s += titleWeight
	}
	if containsFold(p.Description, query) {
		s += descriptionWeight
	}
	for _, tag := range p.Tags {
		if containsFold(tag, query) {
			s += tagWeight
		}
	}
	return s
}

// Search filters paths, scores the survivors against query and orders them by descending
// score. paths must be in catalog order; ties keep it. An empty query keeps every
// survivor with score 0, otherwise zero-score paths are dropped.
func Search(paths []LearningPath, query string, filters SearchFilters) ([]SearchResult, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)

	results := []SearchResult{}
	for _, p := range paths {
		if !filters.match(p) {
			continue
		}
		if query == "" {
			results = append(results, SearchResult{Path: p})
			continue
		}
		if s := score(p, query); s > 0 {
			results = append(results, SearchResult{Path: p, Score: s})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}
