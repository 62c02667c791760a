package models

// TemplateID names one of the fixed LaTeX résumé layouts.
type TemplateID string

const (
	TemplateSoftware  TemplateID = "software"
	TemplateIIT       TemplateID = "iit"
	TemplateIIM       TemplateID = "iim"
	TemplateNonTech   TemplateID = "nontech"
	TemplateOffCampus TemplateID = "offcampus"
)

// DefaultTemplate is used when an upload does not name a template.
const DefaultTemplate = TemplateSoftware

// TemplateIDs lists every supported template in display order.
var TemplateIDs = []TemplateID{
	TemplateSoftware,
	TemplateIIT,
	TemplateIIM,
	TemplateNonTech,
	TemplateOffCampus,
}

// TemplateDefinition pairs a template id with its LaTeX body.
type TemplateDefinition struct {
	ID          TemplateID
	DisplayName string
	Body        string
}
