package curriculum

import "github.com/p-n-ai/pai-paths/internal/learning"

// PathDocument is a curated learning path authored as a *.path.yaml file.
type PathDocument struct {
	ID                 string         `yaml:"id"`
	Title              string         `yaml:"title"`
	Description        string         `yaml:"description"`
	Category           string         `yaml:"category"`
	Difficulty         string         `yaml:"difficulty"`
	Public             *bool          `yaml:"public"`
	CreatedBy          string         `yaml:"created_by"`
	Tags               []string       `yaml:"tags"`
	Prerequisites      []string       `yaml:"prerequisites"`
	LearningObjectives []string       `yaml:"learning_objectives"`
	Steps              []StepDocument `yaml:"steps"`

	// Source is the file the document was read from.
	Source string `yaml:"-"`
}

// StepDocument is one step inside a PathDocument.
type StepDocument struct {
	ID            string             `yaml:"id"`
	Title         string             `yaml:"title"`
	Description   string             `yaml:"description"`
	Type          string             `yaml:"type"`
	Difficulty    int                `yaml:"difficulty"`
	Minutes       int                `yaml:"minutes"`
	Prerequisites []string           `yaml:"prerequisites"`
	Tags          []string           `yaml:"tags"`
	Resources     []ResourceDocument `yaml:"resources"`
}

// ResourceDocument is a learning resource attached to a step.
type ResourceDocument struct {
	Title      string   `yaml:"title"`
	Type       string   `yaml:"type"`
	URL        string   `yaml:"url"`
	Content    string   `yaml:"content"`
	Minutes    int      `yaml:"minutes"`
	Difficulty int      `yaml:"difficulty"`
	Rating     *float64 `yaml:"rating"`
	Provider   string   `yaml:"provider"`
}

// categoryFile is the layout of the category keyword table.
type categoryFile struct {
	Categories []learning.CategoryRule `yaml:"categories"`
}

// Path converts the document into a path ready for learning.Engine.ImportPath.
func (d PathDocument) Path() learning.LearningPath {
	public := true
	if d.Public != nil {
		public = *d.Public
	}

	p := learning.LearningPath{
		ID:                 d.ID,
		Title:              d.Title,
		Description:        d.Description,
		Category:           d.Category,
		Difficulty:         learning.Tier(d.Difficulty),
		Tags:               d.Tags,
		Prerequisites:      d.Prerequisites,
		LearningObjectives: d.LearningObjectives,
		CreatedBy:          d.CreatedBy,
		IsPublic:           public,
		Steps:              make([]learning.LearningStep, 0, len(d.Steps)),
	}
	for _, s := range d.Steps {
		difficulty := s.Difficulty
		if difficulty == 0 {
			difficulty = 1
		}
		step := learning.LearningStep{
			ID:            s.ID,
			Title:         s.Title,
			Description:   s.Description,
			Type:          learning.StepType(s.Type),
			Difficulty:    difficulty,
			EstimatedTime: s.Minutes,
			Prerequisites: s.Prerequisites,
			Tags:          s.Tags,
			Resources:     make([]learning.LearningResource, 0, len(s.Resources)),
		}
		for _, r := range s.Resources {
			step.Resources = append(step.Resources, learning.LearningResource{
				Title:      r.Title,
				Type:       r.Type,
				URL:        r.URL,
				Content:    r.Content,
				Duration:   r.Minutes,
				Difficulty: r.Difficulty,
				Rating:     r.Rating,
				Provider:   r.Provider,
			})
		}
		p.Steps = append(p.Steps, step)
	}
	return p
}
