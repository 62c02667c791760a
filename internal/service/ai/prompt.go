package ai

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"latexcv/internal/models"
)

//go:embed prompts/convert.md
var convertPromptRaw string

// ConvertTemplate is parsed once at package init and reused for every prompt.
var ConvertTemplate = template.Must(template.New("convert").Parse(convertPromptRaw))

// BuildPrompt renders the conversion instructions for one résumé. Identical
// inputs always produce byte-identical output.
func BuildPrompt(cvText string, def models.TemplateDefinition) (string, error) {
	name := def.DisplayName
	if name == "" {
		name = string(def.ID)
	}
	var buf strings.Builder
	if err := ConvertTemplate.Execute(&buf, struct {
		TemplateName string
		ResumeText   string
		TemplateBody string
	}{
		TemplateName: name,
		ResumeText:   cvText,
		TemplateBody: def.Body,
	}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}
