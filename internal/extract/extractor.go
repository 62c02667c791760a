// Package extract pulls the text layer out of uploaded PDF résumés.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageBreak separates the text of consecutive pages.
const PageBreak = "\f"

var (
	// ErrNotPDF reports input that does not parse as a PDF document.
	ErrNotPDF = errors.New("input is not a valid PDF")
	// ErrExtraction reports a PDF whose text layer could not be read.
	ErrExtraction = errors.New("pdf text extraction failed")
)

var disableConfigDir sync.Once

// Extractor reads the text layer of PDF documents. It performs no OCR.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	disableConfigDir.Do(api.DisableConfigDir)
	return &Extractor{logger: logger}
}

// PageCount validates data as a PDF and returns its page count.
func (e *Extractor) PageCount(data []byte) (int, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return 0, ErrNotPDF
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	return n, nil
}

// Extract returns the plain text of every page in document order, joined by PageBreak.
// A document with no text layer yields an empty string and no error.
func (e *Extractor) Extract(data []byte) (text string, err error) {
	pages, err := e.PageCount(data)
	if err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open: %v", ErrExtraction, err)
	}
	if reader.NumPage() != pages {
		e.logger.Debug("page count mismatch between parsers", "pdfcpu", pages, "reader", reader.NumPage())
	}

	parts := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			parts = append(parts, "")
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrExtraction, i, err)
		}
		parts = append(parts, content)
	}

	text = strings.Join(parts, PageBreak)
	if strings.TrimSpace(strings.ReplaceAll(text, PageBreak, "")) == "" {
		e.logger.Info("pdf has no extractable text layer", "pages", pages)
	}
	return text, nil
}
