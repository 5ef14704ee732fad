// Package curriculum loads curated learning paths and the category keyword table from
// YAML files.
package curriculum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-paths/internal/learning"
)

// Importer registers a validated path. learning.Engine implements it.
type Importer interface {
	ImportPath(ctx context.Context, path learning.LearningPath) (*learning.LearningPath, error)
}

// Loader loads and caches path documents from the filesystem.
type Loader struct {
	rootDir string
	docs    map[string]PathDocument // keyed by path id
	mu      sync.RWMutex
}

// NewLoader creates a new curriculum loader and loads every *.path.yaml under rootDir.
// Documents that fail to parse or validate are skipped with a warning.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir: rootDir,
		docs:    make(map[string]PathDocument),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	slog.Info("curriculum loaded", "root", rootDir, "paths", len(l.docs))
	return l, nil
}

// Get returns a document by path id.
func (l *Loader) Get(id string) (PathDocument, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.docs[id]
	return d, ok
}

// Documents returns all loaded documents ordered by source file.
func (l *Loader) Documents() []PathDocument {
	l.mu.RLock()
	defer l.mu.RUnlock()
	docs := make([]PathDocument, 0, len(l.docs))
	for _, d := range l.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	return docs
}

// ImportAll registers every loaded document with imp and returns how many were added.
// Paths that already exist are skipped; other failures are logged and skipped.
func (l *Loader) ImportAll(ctx context.Context, imp Importer) (int, error) {
	imported := 0
	for _, doc := range l.Documents() {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		path, err := imp.ImportPath(ctx, doc.Path())
		switch {
		case err == nil:
			imported++
			slog.Debug("curriculum path imported", "path_id", path.ID, "source", doc.Source)
		case errors.Is(err, learning.ErrAlreadyExists):
			slog.Debug("curriculum path already present", "path_id", doc.ID, "source", doc.Source)
		case learning.Kind(err) == learning.KindInvalid:
			slog.Warn("skipping invalid curriculum path", "source", doc.Source, "error", err)
		default:
			return imported, fmt.Errorf("import %s: %w", doc.Source, err)
		}
	}
	slog.Info("curriculum imported", "imported", imported, "documents", len(l.docs))
	return imported, nil
}

func (l *Loader) loadAll() error {
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !isPathFile(path) {
			return nil
		}
		return l.loadDocument(path)
	})
}

func (l *Loader) loadDocument(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	doc, err := ParseDocument(data)
	if err != nil {
		slog.Warn("skipping invalid path document", "path", path, "error", err)
		return nil
	}
	doc.Source = path
	if doc.ID == "" {
		rel, err := filepath.Rel(l.rootDir, path)
		if err != nil {
			rel = path
		}
		doc.ID = stableID(filepath.ToSlash(rel))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.docs[doc.ID]; ok {
		slog.Warn("duplicate path id in curriculum", "path_id", doc.ID, "kept", prev.Source, "skipped", path)
		return nil
	}
	l.docs[doc.ID] = doc
	return nil
}

// ParseDocument validates raw YAML against the path document schema and decodes it.
func ParseDocument(data []byte) (PathDocument, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return PathDocument{}, fmt.Errorf("parse yaml: %w", err)
	}
	if raw == nil {
		return PathDocument{}, errors.New("empty document")
	}
	if err := validateDocument(pathSchema, raw); err != nil {
		return PathDocument{}, err
	}

	var doc PathDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return PathDocument{}, fmt.Errorf("decode path document: %w", err)
	}
	return doc, nil
}

// LoadCategories reads a category keyword table. An empty path returns the built-in table.
func LoadCategories(path string) ([]learning.CategoryRule, error) {
	if path == "" {
		return learning.DefaultCategoryRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse categories: %w", err)
	}
	if err := validateDocument(categorySchema, raw); err != nil {
		return nil, fmt.Errorf("categories %s: %w", path, err)
	}

	var file categoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	slog.Info("category table loaded", "path", path, "categories", len(file.Categories))
	return file.Categories, nil
}

func isPathFile(path string) bool {
	return strings.HasSuffix(path, ".path.yaml") || strings.HasSuffix(path, ".path.yml")
}

// stableID derives a path id from the document location so re-imports are recognised.
func stableID(rel string) string {
	return "path_" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("curriculum:"+rel)).String()
}
