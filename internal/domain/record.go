package domain

import "time"

// RecordStatus values stored on a ProcessRecord.
const (
	StatusProcessed = "processed"
	StatusCompleted = "completed"
)

// DefaultUserID is recorded when the caller is not identified.
const DefaultUserID = "anonymous"

// Label is one detected concept with its confidence in percent.
type Label struct {
	Name       string   `json:"Name" dynamodbav:"Name"`
	Confidence float64  `json:"Confidence" dynamodbav:"Confidence"`
	Categories []string `json:"Categories" dynamodbav:"Categories"`
}

// LabelNames returns the names of labels in order.
func LabelNames(labels []Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return names
}

// ProcessingSummary condenses the outcome of one pipeline run.
type ProcessingSummary struct {
	TotalLabels        int  `json:"totalLabels" dynamodbav:"totalLabels"`
	HasErrors          bool `json:"hasErrors" dynamodbav:"hasErrors"`
	EnhancementApplied bool `json:"enhancementApplied" dynamodbav:"enhancementApplied"`
}

// ProcessRecord is the persisted trace of one processed upload.
type ProcessRecord struct {
	ProcessID        string            `json:"process_id" dynamodbav:"process_id"`
	UserID           string            `json:"user_id" dynamodbav:"user_id"`
	FileName         string            `json:"file_name" dynamodbav:"file_name"`
	FileType         string            `json:"file_type" dynamodbav:"file_type"`
	URL              string            `json:"url" dynamodbav:"url"`
	EnhancedFileName string            `json:"enhanced_file_name,omitempty" dynamodbav:"enhanced_file_name,omitempty"`
	EnhancedFileType string            `json:"enhanced_file_type,omitempty" dynamodbav:"enhanced_file_type,omitempty"`
	EnhancedURL      string            `json:"enhanced_url,omitempty" dynamodbav:"enhanced_url,omitempty"`
	Labels           []string          `json:"labels" dynamodbav:"labels"`
	LabelDetails     []Label           `json:"labels_details" dynamodbav:"labels_details"`
	Description      string            `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Status           string            `json:"status" dynamodbav:"status"`
	ClientCountry    string            `json:"client_country,omitempty" dynamodbav:"client_country,omitempty"`
	CreatedAt        time.Time         `json:"created_at" dynamodbav:"created_at"`
	ProcessedAt      time.Time         `json:"processed_at" dynamodbav:"processed_at"`
	Summary          ProcessingSummary `json:"processing_summary" dynamodbav:"processing_summary"`
}

// EnhancedImage describes the stored enhanced rendition.
type EnhancedImage struct {
	FileName    string    `json:"fileName"`
	Bucket      string    `json:"bucket"`
	URL         string    `json:"url"`
	ProcessedAt time.Time `json:"processedAt"`
}

// DetectOptions bounds a label detection call.
type DetectOptions struct {
	MaxLabels     int
	MinConfidence float64
}

// ListOptions selects a page of records. Cursor is opaque and comes from a
// previous RecordPage.
type ListOptions struct {
	Limit  int
	Cursor string
}

// RecordPage is one page of records; NextCursor is empty on the last page.
type RecordPage struct {
	Items      []ProcessRecord
	NextCursor string
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// NormalizedLimit clamps Limit to (0, MaxListLimit], defaulting to DefaultListLimit.
func (o ListOptions) NormalizedLimit() int {
	switch {
	case o.Limit <= 0:
		return DefaultListLimit
	case o.Limit > MaxListLimit:
		return MaxListLimit
	}
	return o.Limit
}
