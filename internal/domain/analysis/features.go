package analysis

import "time"

// DocumentID tipe untuk dokumen tender
type DocumentID string

// DocumentMetadata holds the file metadata extracted by the ingestion side.
// Empty string / nil pointer means the field was absent in the source file;
// absence never counts as a match.
type DocumentMetadata struct {
	Author          string     `json:"author,omitempty"`
	LastModifiedBy  string     `json:"last_modified_by,omitempty"`
	Creator         string     `json:"creator,omitempty"`
	Producer        string     `json:"producer,omitempty"`
	SoftwareVersion string     `json:"software_version,omitempty"`
	Company         string     `json:"company,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	ModifiedAt      *time.Time `json:"modified_at,omitempty"`
}

// Layout is the bucketed structural descriptor of a document.
type Layout struct {
	MarginBucket  string `json:"margin_bucket,omitempty"`
	SpacingBucket string `json:"spacing_bucket,omitempty"`
}

// DocumentFeatures is the canonical per-document input record. It is produced
// by the parsing collaborator and is read-only to the engine.
type DocumentFeatures struct {
	ID         DocumentID         `json:"id"`
	ProjectID  string             `json:"project_id"`
	Company    string             `json:"company"`
	Text       string             `json:"text"`
	TextLength int                `json:"text_length"`
	PageCount  int                `json:"page_count"`
	Fonts      []string           `json:"fonts,omitempty"`
	Layout     Layout             `json:"layout"`
	Metadata   DocumentMetadata   `json:"metadata"`
	LineItems  map[string]float64 `json:"line_items,omitempty"`
	Total      *float64           `json:"total,omitempty"`
}
