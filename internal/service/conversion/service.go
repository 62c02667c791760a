// Package conversion runs the résumé pipeline: extract, prompt, generate, persist,
// and later fetch and compile.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"latexcv/internal/compile"
	"latexcv/internal/models"
	"latexcv/internal/service/ai"
)

var (
	// ErrNoText is returned when an uploaded PDF has no text layer to convert.
	ErrNoText         = errors.New("no extractable text in the uploaded PDF")
	ErrRemoteDisabled = errors.New("remote compilation is not configured")
)

type Extractor interface {
	Extract(data []byte) (string, error)
}

type TemplateResolver interface {
	Resolve(id string) (models.TemplateDefinition, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type RecordStore interface {
	Create(ctx context.Context, rec models.ConversionRecord) (string, error)
	Get(ctx context.Context, id string) (*models.ConversionRecord, error)
}

// Deps lists the collaborators of a Service. Remote may be nil, in which case
// remote compilation reports ErrRemoteDisabled.
type Deps struct {
	Extractor Extractor
	Templates TemplateResolver
	Generator Generator
	Store     RecordStore
	Compiler  compile.Compiler
	Remote    compile.Compiler
	Logger    *slog.Logger
}

type Service struct {
	extractor Extractor
	templates TemplateResolver
	generator Generator
	store     RecordStore
	compiler  compile.Compiler
	remote    compile.Compiler
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor: d.Extractor,
		templates: d.Templates,
		generator: d.Generator,
		store:     d.Store,
		compiler:  d.Compiler,
		remote:    d.Remote,
		logger:    logger,
		now:       time.Now,
	}
}

// Convert turns an uploaded PDF into a stored LaTeX record. Steps run strictly
// in order and the first failure is returned unchanged in kind.
func (s *Service) Convert(ctx context.Context, pdf []byte, templateID string) (*models.ConversionRecord, error) {
	// generation and persistence finish even if the client goes away
	work := context.WithoutCancel(ctx)
	rec, err := s.Draft(work, pdf, templateID)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Create(work, *rec)
	if err != nil {
		s.logger.Error("store record failed", "template", rec.TemplateID, "error", err)
		return nil, fmt.Errorf("store record: %w", err)
	}
	rec.ID = id
	s.logger.Info("conversion stored", "doc_id", id, "template", rec.TemplateID)
	return rec, nil
}

// Draft runs extraction and generation without persisting the result. The
// returned record has no ID.
func (s *Service) Draft(ctx context.Context, pdf []byte, templateID string) (*models.ConversionRecord, error) {
	if strings.TrimSpace(templateID) == "" {
		templateID = string(models.DefaultTemplate)
	}
	def, err := s.templates.Resolve(templateID)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("template", def.ID)

	text, err := s.extractor.Extract(pdf)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(strings.ReplaceAll(text, "\f", "")) == "" {
		return nil, ErrNoText
	}

	prompt, err := ai.BuildPrompt(text, def)
	if err != nil {
		return nil, err
	}

	start := s.now()
	latex, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Error("latex generation failed", "error", err)
		return nil, err
	}
	logger.Info("latex generated", "elapsed", s.now().Sub(start), "chars", len(latex))

	return &models.ConversionRecord{
		OriginalText:   text,
		GeneratedLaTeX: latex,
		TemplateID:     def.ID,
		CreatedAt:      s.now().UTC(),
	}, nil
}

// Record fetches a stored conversion.
func (s *Service) Record(ctx context.Context, id string) (*models.ConversionRecord, error) {
	return s.store.Get(ctx, strings.TrimSpace(id))
}

// CompilePDF compiles a stored record with the configured strategy.
func (s *Service) CompilePDF(ctx context.Context, id string) (*models.ConversionRecord, []byte, error) {
	return s.compileWith(ctx, id, s.compiler)
}

// CompilePDFRemote always uses the remote strategy.
func (s *Service) CompilePDFRemote(ctx context.Context, id string) (*models.ConversionRecord, []byte, error) {
	if s.remote == nil {
		return nil, nil, ErrRemoteDisabled
	}
	return s.compileWith(ctx, id, s.remote)
}

func (s *Service) compileWith(ctx context.Context, id string, c compile.Compiler) (*models.ConversionRecord, []byte, error) {
	rec, err := s.Record(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	start := s.now()
	pdf, err := c.Compile(ctx, rec.ID, rec.GeneratedLaTeX)
	logger := s.logger.With("doc_id", rec.ID, "strategy", c.Name(), "elapsed", s.now().Sub(start))
	if err != nil {
		logger.Warn("pdf compilation failed", "error", err)
		return rec, nil, err
	}
	if len(pdf) == 0 {
		return rec, nil, &compile.FailedError{Reason: "compiler returned an empty document"}
	}
	logger.Info("pdf compiled", "bytes", len(pdf))
	return rec, pdf, nil
}
