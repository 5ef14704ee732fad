package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/p-n-ai/pai-paths/internal/learning"
)

// parseFilters reads search filters from the query string. tag may repeat or hold a
// comma-separated list.
func parseFilters(q url.Values) (learning.SearchFilters, error) {
	f := learning.SearchFilters{
		Category:   strings.TrimSpace(q.Get("category")),
		Difficulty: learning.Tier(strings.TrimSpace(q.Get("difficulty"))),
	}

	for _, raw := range q["tag"] {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}

	var err error
	if f.MinDuration, err = floatParam(q, "min_hours"); err != nil {
		return f, err
	}
	if f.MaxDuration, err = floatParam(q, "max_hours"); err != nil {
		return f, err
	}
	if v := q.Get("public"); v != "" {
		public, err := strconv.ParseBool(v)
		if err != nil {
			return f, badRequest("public must be a boolean, got %q", v)
		}
		f.PublicOnly = public
	}
	return f, nil
}

func floatParam(q url.Values, key string) (float64, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, badRequest("%s must be a number, got %q", key, v)
	}
	return f, nil
}
