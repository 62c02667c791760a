package models

import "time"

// ConversionRecord is one persisted résumé conversion.
type ConversionRecord struct {
	ID             string     `json:"id"`
	OriginalText   string     `json:"cv_text"`
	GeneratedLaTeX string     `json:"latex"`
	TemplateID     TemplateID `json:"template"`
	CreatedAt      time.Time  `json:"created_at"`
}
