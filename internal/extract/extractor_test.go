package extract

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
)

func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		if text != "" {
			doc.Cell(40, 10, text)
		}
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	return buf.Bytes()
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestExtractSinglePage(t *testing.T) {
	e := NewExtractor(nil)
	text, err := e.Extract(buildPDF(t, "JaneDoe SoftwareEngineer"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(squash(text), "JaneDoeSoftwareEngineer") {
		t.Fatalf("unexpected text %q", text)
	}
	if strings.Contains(text, PageBreak) {
		t.Fatalf("single page should not contain a page break: %q", text)
	}
}

func TestExtractKeepsPageOrder(t *testing.T) {
	e := NewExtractor(nil)
	text, err := e.Extract(buildPDF(t, "FirstPage", "SecondPage", "ThirdPage"))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	parts := strings.Split(text, PageBreak)
	if len(parts) != 3 {
		t.Fatalf("expected 3 pages, got %d: %q", len(parts), text)
	}
	for i, want := range []string{"FirstPage", "SecondPage", "ThirdPage"} {
		if !strings.Contains(squash(parts[i]), want) {
			t.Fatalf("page %d: expected %q in %q", i+1, want, parts[i])
		}
	}
}

func TestExtractBlankPageIsNotAnError(t *testing.T) {
	e := NewExtractor(nil)
	text, err := e.Extract(buildPDF(t, ""))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if strings.TrimSpace(text) != "" {
		t.Fatalf("expected empty text, got %q", text)
	}
}

func TestExtractRejectsNonPDF(t *testing.T) {
	e := NewExtractor(nil)
	for name, data := range map[string][]byte{
		"plain text": []byte("just some words"),
		"empty":      nil,
		"truncated":  []byte("%PDF-1.4\n1 0 obj\n"),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := e.Extract(data); !errors.Is(err, ErrNotPDF) {
				t.Fatalf("expected ErrNotPDF, got %v", err)
			}
		})
	}
}

func TestPageCount(t *testing.T) {
	e := NewExtractor(nil)
	n, err := e.PageCount(buildPDF(t, "a", "b"))
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pages, got %d", n)
	}
}
