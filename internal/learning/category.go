package learning

import (
	"strings"

	"golang.org/x/text/cases"
)

// GeneralCategory is used when no keyword matches.
const GeneralCategory = "general skills"

// CategoryRule maps topic keywords to a category. Rules are checked in order.
type CategoryRule struct {
	Category string   `json:"category" yaml:"category"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// DefaultCategoryRules is the built-in keyword table.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Category: "frontend development", Keywords: []string{"react", "vue", "angular", "javascript", "typescript", "css", "html", "前端"}},
		{Category: "backend development", Keywords: []string{"node", "golang", "go", "java", "python", "api", "database", "sql", "后端"}},
		{Category: "mobile development", Keywords: []string{"ios", "android", "flutter", "swift", "kotlin", "移动"}},
		{Category: "data science", Keywords: []string{"machine learning", "data", "statistics", "pandas", "ai", "数据", "机器学习"}},
		{Category: "devops", Keywords: []string{"docker", "kubernetes", "ci", "cloud", "linux", "运维"}},
		{Category: "design", Keywords: []string{"ui", "ux", "figma", "design", "设计"}},
	}
}

var fold = cases.Fold()

// categorizer infers categories by case-folded whole-word or substring match.
type categorizer struct {
	rules []CategoryRule
}

func newCategorizer(rules []CategoryRule) categorizer {
	if len(rules) == 0 {
		rules = DefaultCategoryRules()
	}
	folded := make([]CategoryRule, 0, len(rules))
	for _, r := range rules {
		kw := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = strings.TrimSpace(k); k != "" {
				kw = append(kw, fold.String(k))
			}
		}
		folded = append(folded, CategoryRule{Category: r.Category, Keywords: kw})
	}
	return categorizer{rules: folded}
}

// infer returns the first category whose keyword appears in topic.
// Short ASCII keywords ("go", "ai", "ci", "ui") must match a whole word so "google" is not "go".
func (c categorizer) infer(topic string) string {
	t := fold.String(topic)
	words := strings.FieldsFunc(t, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/' || r == '.' || r == ','
	})
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if len(kw) <= 2 {
				for _, w := range words {
					if w == kw {
						return r.Category
					}
				}
				continue
			}
			if strings.Contains(t, kw) {
				return r.Category
			}
		}
	}
	return GeneralCategory
}

// containsFold is a case-insensitive substring test.
func containsFold(s, substr string) bool {
	return strings.Contains(fold.String(s), fold.String(substr))
}
