package domain

// Confidence is the categorical certainty attached to an AI suggestion.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is one of the three recognized tiers.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Snippet is a keyword-triggered text expansion.
type Snippet struct {
	Content     string `json:"content"`
	Name        string `json:"name"`
	Keyword     string `json:"keyword"`
	UID         string `json:"uid"`
	Description string `json:"description,omitempty"`
}

// StoredSnippet is a snippet together with its on-disk location.
type StoredSnippet struct {
	Snippet
	Collection string `json:"collection"`
	FilePath   string `json:"file_path"`
}

// Suggestion holds AI-proposed metadata for new snippet content. It is
// ephemeral: produced per call, never persisted.
type Suggestion struct {
	Collection  string     `json:"collection"`
	Name        string     `json:"name"`
	Keyword     string     `json:"keyword"`
	Description string     `json:"description"`
	Confidence  Confidence `json:"confidence"`
}

// CreateResult describes a successful snippet creation.
type CreateResult struct {
	FilePath     string     `json:"file_path"`
	Collection   string     `json:"collection"`
	Name         string     `json:"name"`
	Keyword      string     `json:"keyword"`
	Description  string     `json:"description,omitempty"`
	AISuggested  bool       `json:"ai_suggested"`
	AIConfidence Confidence `json:"ai_confidence,omitempty"`
	Overwritten  bool       `json:"overwritten"`
}

// BatchItem is one entry of a batch creation request. Content may arrive
// under either "content" or the legacy "snippet" key.
type BatchItem struct {
	Content     string `json:"content"`
	Snippet     string `json:"snippet"`
	Name        string `json:"name"`
	Keyword     string `json:"keyword"`
	Collection  string `json:"collection"`
	Description string `json:"description"`
}

// Body returns the item content, honoring the legacy field alias.
func (it BatchItem) Body() string {
	if it.Content != "" {
		return it.Content
	}
	return it.Snippet
}

// BatchError describes one failed item of a batch run.
type BatchError struct {
	Index   int    `json:"index"` // 1-based position in the input
	Message string `json:"error"`
	Kind    Kind   `json:"kind"`
	Preview string `json:"content_preview"`
}

// BatchResult aggregates the outcome of a batch creation run.
type BatchResult struct {
	Total      int            `json:"total"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Created    []CreateResult `json:"created_snippets"`
	Errors     []BatchError   `json:"errors"`
}

// HealthReport is the outcome of a setup validation probe. Sub-failures are
// collected into Errors rather than raised.
type HealthReport struct {
	FolderOK    bool     `json:"folder_ok"`
	APIOK       bool     `json:"api_ok"`
	Collections int      `json:"collections_count"`
	Snippets    int      `json:"snippets_count"`
	Skipped     int      `json:"skipped_files"`
	Errors      []string `json:"errors"`
}
