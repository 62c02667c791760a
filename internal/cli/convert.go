package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"latexcv/internal/models"
)

type convertOptions struct {
	template string
	outDir   string
	pdf      bool
	store    bool
	parallel int
}

var convertOpts convertOptions

var convertCmd = &cobra.Command{
	Use:   "convert <pdf>...",
	Short: "Convert résumé PDFs to LaTeX without the HTTP API",
	Long: "Convert one or more résumé PDFs. Each input writes <name>.tex into the output directory; " +
		"--pdf also compiles it and --store persists the record like an upload would.",
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringVarP(&convertOpts.template, "template", "t", string(models.DefaultTemplate), "template id (software, iit, iim, nontech or non-tech, offcampus or off-campus)")
	f.StringVarP(&convertOpts.outDir, "out", "o", ".", "output directory")
	f.BoolVar(&convertOpts.pdf, "pdf", false, "compile the generated LaTeX to PDF")
	f.BoolVar(&convertOpts.store, "store", false, "persist the conversion in the configured store")
	f.IntVarP(&convertOpts.parallel, "parallel", "p", 2, "number of files converted at once")
	rootCmd.AddCommand(convertCmd)
}

// scriptAliases maps the hyphenated template spellings of the old conversion
// script onto registry ids. The HTTP API does not accept them.
var scriptAliases = map[string]models.TemplateID{
	"non-tech":   models.TemplateNonTech,
	"off-campus": models.TemplateOffCampus,
}

func templateArg(s string) string {
	key := strings.ToLower(strings.TrimSpace(s))
	if id, ok := scriptAliases[key]; ok {
		return string(id)
	}
	return key
}

// checkOutputNames rejects inputs that would write the same output files.
func checkOutputNames(inputs []string) error {
	seen := make(map[string]string, len(inputs))
	for _, input := range inputs {
		base := outputBase(input)
		if prev, ok := seen[base]; ok {
			return fmt.Errorf("%s and %s would both write %s.tex", prev, input, base)
		}
		seen[base] = input
	}
	return nil
}

func outputBase(input string) string {
	return strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
}

func runConvert(cmd *cobra.Command, args []string) error {
	if err := checkOutputNames(args); err != nil {
		return err
	}
	opts := convertOpts
	opts.template = templateArg(opts.template)

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, logger, opts.store)
	if err != nil {
		return err
	}
	defer a.close()

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.parallel, 1))
	for _, input := range args {
		g.Go(func() error {
			out, err := a.convertFile(gctx, input, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(out, "\n"))
			return nil
		})
	}
	return g.Wait()
}

// convertFile runs one input through the pipeline and returns the paths it wrote.
func (a *app) convertFile(ctx context.Context, input string, opts convertOptions) ([]string, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}

	var rec *models.ConversionRecord
	if opts.store {
		rec, err = a.service.Convert(ctx, data, opts.template)
	} else {
		rec, err = a.service.Draft(ctx, data, opts.template)
	}
	if err != nil {
		return nil, err
	}

	base := outputBase(input)
	texPath := filepath.Join(opts.outDir, base+".tex")
	if err := os.WriteFile(texPath, []byte(rec.GeneratedLaTeX), 0o644); err != nil {
		return nil, fmt.Errorf("write latex: %w", err)
	}
	written := []string{texPath}
	if rec.ID != "" {
		a.logger.Info("conversion stored", "input", input, "doc_id", rec.ID)
	}

	if !opts.pdf {
		return written, nil
	}
	docID := rec.ID
	if docID == "" {
		docID = base
	}
	pdf, err := a.compiler.Compile(ctx, docID, rec.GeneratedLaTeX)
	if err != nil {
		return written, fmt.Errorf("compile: %w", err)
	}
	pdfPath := filepath.Join(opts.outDir, base+".pdf")
	if err := os.WriteFile(pdfPath, pdf, 0o644); err != nil {
		return written, fmt.Errorf("write pdf: %w", err)
	}
	return append(written, pdfPath), nil
}
