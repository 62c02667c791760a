package conversion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"latexcv/internal/compile"
	"latexcv/internal/extract"
	"latexcv/internal/models"
	"latexcv/internal/service/ai"
	"latexcv/internal/storage"
	"latexcv/internal/templates"
)

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract([]byte) (string, error) { return f.text, f.err }

type fakeGenerator struct {
	latex   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return f.latex, f.err
}

type memStore struct {
	mu      sync.Mutex
	records map[string]models.ConversionRecord
	err     error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]models.ConversionRecord{}}
}

func (m *memStore) Create(_ context.Context, rec models.ConversionRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	id := storage.NewID()
	rec.ID = id
	m.records[id] = rec
	return id, nil
}

func (m *memStore) Get(_ context.Context, id string) (*models.ConversionRecord, error) {
	id, err := storage.ParseID(id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &rec, nil
}

type fakeCompiler struct {
	name   string
	pdf    []byte
	err    error
	latexs []string
}

func (f *fakeCompiler) Name() string { return f.name }

func (f *fakeCompiler) Compile(_ context.Context, _ string, latex string) ([]byte, error) {
	f.latexs = append(f.latexs, latex)
	return f.pdf, f.err
}

type fixture struct {
	svc    *Service
	gen    *fakeGenerator
	store  *memStore
	local  *fakeCompiler
	remote *fakeCompiler
}

func newFixture(t *testing.T, ex Extractor) *fixture {
	t.Helper()
	reg, err := templates.New(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	f := &fixture{
		gen:    &fakeGenerator{latex: `\documentclass{article}\begin{document}Jane\end{document}`},
		store:  newMemStore(),
		local:  &fakeCompiler{name: "local", pdf: []byte("%PDF-1.4 local")},
		remote: &fakeCompiler{name: "remote", pdf: []byte("%PDF-1.4 remote")},
	}
	f.svc = NewService(Deps{
		Extractor: ex,
		Templates: reg,
		Generator: f.gen,
		Store:     f.store,
		Compiler:  f.local,
		Remote:    f.remote,
	})
	return f
}

func TestConvertStoresRecord(t *testing.T) {
	f := newFixture(t, fakeExtractor{text: "Jane Doe\fExperience"})

	rec, err := f.svc.Convert(context.Background(), []byte("%PDF"), "IIT")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(rec.ID) != 24 || rec.TemplateID != models.TemplateIIT {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.GeneratedLaTeX != f.gen.latex || rec.OriginalText != "Jane Doe\fExperience" {
		t.Fatalf("record content mismatch %+v", rec)
	}
	stored, err := f.store.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if stored.GeneratedLaTeX != rec.GeneratedLaTeX {
		t.Fatal("stored latex differs from returned latex")
	}
	if len(f.gen.prompts) != 1 || !strings.Contains(f.gen.prompts[0], "Use the template style: IIT.") {
		t.Fatalf("unexpected prompts %q", f.gen.prompts)
	}
}

func TestConvertDefaultsToSoftware(t *testing.T) {
	f := newFixture(t, fakeExtractor{text: "Jane"})
	rec, err := f.svc.Convert(context.Background(), nil, "  ")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if rec.TemplateID != models.TemplateSoftware {
		t.Fatalf("expected software template, got %s", rec.TemplateID)
	}
}

func TestConvertFailuresCreateNoRecord(t *testing.T) {
	cases := []struct {
		name     string
		ex       Extractor
		template string
		genErr   error
		want     error
	}{
		{"unknown template", fakeExtractor{text: "x"}, "designer", nil, templates.ErrUnknownTemplate},
		{"not a pdf", fakeExtractor{err: extract.ErrNotPDF}, "software", nil, extract.ErrNotPDF},
		{"blank text", fakeExtractor{text: " \f \n"}, "software", nil, ErrNoText},
		{"generation", fakeExtractor{text: "x"}, "software", ai.ErrGeneration, ai.ErrGeneration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.ex)
			f.gen.err = tc.genErr
			_, err := f.svc.Convert(context.Background(), []byte("data"), tc.template)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(f.store.records) != 0 {
				t.Fatalf("expected no records, got %d", len(f.store.records))
			}
		})
	}
}

func TestConvertSurvivesClientCancel(t *testing.T) {
	f := newFixture(t, fakeExtractor{text: "Jane"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.Convert(ctx, nil, "software"); err != nil {
		t.Fatalf("convert should not observe client cancellation: %v", err)
	}
}

func TestCompilePDFUsesStrategies(t *testing.T) {
	f := newFixture(t, fakeExtractor{text: "Jane"})
	rec, err := f.svc.Convert(context.Background(), nil, "software")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	_, pdf, err := f.svc.CompilePDF(context.Background(), " "+rec.ID+" ")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if string(pdf) != "%PDF-1.4 local" || len(f.local.latexs) != 1 || f.local.latexs[0] != rec.GeneratedLaTeX {
		t.Fatalf("local compiler not used as expected: %q %v", pdf, f.local.latexs)
	}

	_, pdf, err = f.svc.CompilePDFRemote(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("remote compile: %v", err)
	}
	if string(pdf) != "%PDF-1.4 remote" {
		t.Fatalf("remote compiler not used: %q", pdf)
	}
}

func TestCompilePDFErrors(t *testing.T) {
	f := newFixture(t, fakeExtractor{text: "Jane"})
	if _, _, err := f.svc.CompilePDF(context.Background(), "bad-id"); !errors.Is(err, storage.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, _, err := f.svc.CompilePDF(context.Background(), storage.NewID()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rec, err := f.svc.Convert(context.Background(), nil, "software")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	f.local.err = &compile.FailedError{Reason: "bad", Stdout: "! Undefined control sequence."}
	_, _, err = f.svc.CompilePDF(context.Background(), rec.ID)
	var failed *compile.FailedError
	if !errors.As(err, &failed) || failed.Stdout == "" {
		t.Fatalf("expected FailedError with output, got %v", err)
	}

	f.local.err = nil
	f.local.pdf = nil
	if _, _, err := f.svc.CompilePDF(context.Background(), rec.ID); !errors.As(err, &failed) {
		t.Fatalf("empty output should be a compile failure, got %v", err)
	}
}

func TestCompilePDFRemoteDisabled(t *testing.T) {
	svc := NewService(Deps{Store: newMemStore()})
	if _, _, err := svc.CompilePDFRemote(context.Background(), storage.NewID()); !errors.Is(err, ErrRemoteDisabled) {
		t.Fatalf("expected ErrRemoteDisabled, got %v", err)
	}
}

func TestDraftDoesNotPersist(t *testing.T) {
	f := newFixture(t, fakeExtractor{text: "Jane"})
	rec, err := f.svc.Draft(context.Background(), nil, "nontech")
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if rec.ID != "" || rec.TemplateID != models.TemplateNonTech {
		t.Fatalf("unexpected draft %+v", rec)
	}
	if len(f.store.records) != 0 {
		t.Fatalf("draft should not store records, got %d", len(f.store.records))
	}

	for _, id := range []string{"non-tech", "off-campus"} {
		if _, err := f.svc.Draft(context.Background(), nil, id); !errors.Is(err, templates.ErrUnknownTemplate) {
			t.Fatalf("draft %q: expected ErrUnknownTemplate, got %v", id, err)
		}
	}
}
