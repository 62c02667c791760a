// Package templates resolves template identifiers to LaTeX résumé skeletons.
package templates

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"

	"latexcv/internal/models"
)

// ErrUnknownTemplate is returned for identifiers outside the supported set.
var ErrUnknownTemplate = errors.New("unknown template")

// UnknownError carries the rejected identifier and matches ErrUnknownTemplate.
type UnknownError struct {
	Name string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnknownTemplate, e.Name)
}

func (e *UnknownError) Unwrap() error { return ErrUnknownTemplate }

//go:embed tex/*.tex
var builtin embed.FS

var displayNames = map[models.TemplateID]string{
	models.TemplateSoftware:  "Software",
	models.TemplateIIT:       "IIT",
	models.TemplateIIM:       "IIM",
	models.TemplateNonTech:   "Non-Tech",
	models.TemplateOffCampus: "Off-Campus",
}

// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	defs map[models.TemplateID]models.TemplateDefinition
}

// New loads the embedded templates. When dir is non-empty, any <id>_template.tex
// file found there replaces the embedded body for that id.
func New(ctx context.Context, dir string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{defs: make(map[models.TemplateID]models.TemplateDefinition, len(models.TemplateIDs))}
	for _, id := range models.TemplateIDs {
		body, err := builtin.ReadFile("tex/" + fileName(id))
		if err != nil {
			return nil, fmt.Errorf("read embedded template %s: %w", id, err)
		}
		r.defs[id] = models.TemplateDefinition{ID: id, DisplayName: displayNames[id], Body: string(body)}
	}
	if dir == "" {
		return r, nil
	}
	if err := r.loadOverrides(ctx, dir, logger); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) loadOverrides(ctx context.Context, dir string, logger *slog.Logger) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("template dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("template dir %s is not a directory", dir)
	}

	p, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return fmt.Errorf("template parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      p,
	})
	if err != nil {
		return fmt.Errorf("template loader: %w", err)
	}

	for _, id := range models.TemplateIDs {
		path := filepath.Join(dir, fileName(id))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		docs, err := loader.Load(ctx, document.Source{URI: path})
		if err != nil {
			return fmt.Errorf("load template %s: %w", path, err)
		}
		var builder strings.Builder
		for _, doc := range docs {
			builder.WriteString(doc.Content)
		}
		body := builder.String()
		if strings.TrimSpace(body) == "" {
			return fmt.Errorf("template %s is empty", path)
		}
		def := r.defs[id]
		def.Body = body
		r.defs[id] = def
		logger.Info("template override loaded", "template", id, "path", path)
	}
	return nil
}

// Resolve looks up a template by id, ignoring case. Anything outside the fixed
// set fails with *UnknownError.
func (r *Registry) Resolve(id string) (models.TemplateDefinition, error) {
	def, ok := r.defs[models.TemplateID(strings.ToLower(id))]
	if !ok {
		return models.TemplateDefinition{}, &UnknownError{Name: id}
	}
	return def, nil
}

// List returns every template in display order.
func (r *Registry) List() []models.TemplateDefinition {
	out := make([]models.TemplateDefinition, 0, len(models.TemplateIDs))
	for _, id := range models.TemplateIDs {
		out = append(out, r.defs[id])
	}
	return out
}

func fileName(id models.TemplateID) string {
	return string(id) + "_template.tex"
}
