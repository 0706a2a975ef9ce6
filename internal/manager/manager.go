// Package manager ties the repository store and the suggestion client into
// the snippet creation workflow: merge user input with AI suggestions,
// resolve duplicate keywords, commit to disk.
package manager

import (
	"strings"

	"go.uber.org/zap"

	"snips/internal/domain"
	"snips/internal/store"
)

// Suggester produces metadata suggestions for raw content.
type Suggester interface {
	Analyze(content string, collections []string) (*domain.Suggestion, error)
	TestConnection() bool
}

// Manager is the snippet orchestrator.
type Manager struct {
	store  *store.Store
	ai     Suggester
	logger *zap.Logger
}

// New creates a Manager over a store and a suggestion client.
func New(st *store.Store, ai Suggester, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: st, ai: ai, logger: logger}
}

// CreateRequest carries the inputs of a single snippet creation.
type CreateRequest struct {
	Content     string
	Name        string
	Keyword     string
	Collection  string
	Description string
	UseAI       bool
	Overwrite   bool
}

// CreateSnippet runs the create workflow. When UseAI is set and any of name,
// keyword, or collection is missing, the suggestion client fills the gaps;
// explicit values always win over suggestions. The duplicate check is
// global: a keyword held by any collection collides.
func (m *Manager) CreateSnippet(req CreateRequest) (*domain.CreateResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, domain.E(domain.KindValidation, "snippet content cannot be empty")
	}

	var suggestion *domain.Suggestion
	if req.UseAI && (req.Name == "" || req.Keyword == "" || req.Collection == "") {
		collections, err := m.store.Collections()
		if err != nil {
			return nil, err
		}

		suggestion, err = m.ai.Analyze(content, collections)
		if err != nil {
			m.logger.Warn("AI analysis failed", zap.Error(err))
			if req.Name == "" || req.Keyword == "" || req.Collection == "" {
				return nil, domain.Wrap(domain.KindSnippet, err, "AI analysis failed and required metadata missing")
			}
			suggestion = nil
		} else {
			m.logger.Info("AI suggestion received",
				zap.String("confidence", string(suggestion.Confidence)))
		}
	}

	name := req.Name
	keyword := req.Keyword
	collection := req.Collection
	description := req.Description
	if suggestion != nil {
		if name == "" {
			name = suggestion.Name
		}
		if keyword == "" {
			keyword = suggestion.Keyword
		}
		if collection == "" {
			collection = suggestion.Collection
		}
		if description == "" {
			description = suggestion.Description
		}
	}

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if keyword == "" {
		missing = append(missing, "keyword")
	}
	if collection == "" {
		missing = append(missing, "collection")
	}
	if len(missing) > 0 {
		return nil, domain.E(domain.KindValidation, "missing required fields: %s", strings.Join(missing, ", "))
	}

	isDuplicate, existingCollection, err := m.store.CheckDuplicate(keyword, "")
	if err != nil {
		return nil, err
	}
	if isDuplicate && !req.Overwrite {
		return nil, domain.E(domain.KindDuplicate,
			"snippet with keyword %q already exists in collection %q", keyword, existingCollection)
	}
	if isDuplicate && req.Overwrite {
		if _, err := m.store.DeleteSnippet(existingCollection, keyword); err != nil {
			return nil, err
		}
		m.logger.Info("overwriting existing snippet", zap.String("keyword", keyword))
	}

	stored, err := m.store.WriteSnippet(collection, domain.Snippet{
		Content:     content,
		Name:        name,
		Keyword:     keyword,
		Description: description,
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindValidation {
			return nil, err
		}
		return nil, domain.Wrap(domain.KindSnippet, err, "failed to create snippet file")
	}

	result := &domain.CreateResult{
		FilePath:    stored.FilePath,
		Collection:  stored.Collection,
		Name:        name,
		Keyword:     keyword,
		Description: description,
		AISuggested: suggestion != nil,
		Overwritten: isDuplicate && req.Overwrite,
	}
	if suggestion != nil {
		result.AIConfidence = suggestion.Confidence
	}

	m.logger.Info("snippet created",
		zap.String("keyword", keyword),
		zap.String("collection", stored.Collection))
	return result, nil
}

// BatchOptions controls a batch creation run.
type BatchOptions struct {
	UseAI           bool
	Overwrite       bool
	ContinueOnError bool
}

// CreateBatch processes items in order, isolating per-item failures into the
// result instead of raising. When ContinueOnError is false, processing stops
// at the first failure.
func (m *Manager) CreateBatch(items []domain.BatchItem, opts BatchOptions) *domain.BatchResult {
	result := &domain.BatchResult{Total: len(items)}

	for i, item := range items {
		var created *domain.CreateResult
		err := func() error {
			content := item.Body()
			if content == "" {
				return domain.E(domain.KindValidation, "snippet %d: missing 'content' or 'snippet' field", i+1)
			}

			var err error
			created, err = m.CreateSnippet(CreateRequest{
				Content:     content,
				Name:        item.Name,
				Keyword:     item.Keyword,
				Collection:  item.Collection,
				Description: item.Description,
				UseAI:       opts.UseAI,
				Overwrite:   opts.Overwrite,
			})
			return err
		}()

		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, domain.BatchError{
				Index:   i + 1,
				Message: err.Error(),
				Kind:    domain.KindOf(err),
				Preview: preview(item.Content),
			})
			m.logger.Error("failed to create snippet",
				zap.Int("index", i+1),
				zap.Error(err))
			if !opts.ContinueOnError {
				break
			}
			continue
		}

		result.Successful++
		result.Created = append(result.Created, *created)
	}

	m.logger.Info("batch processing complete",
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed))
	return result
}

const previewLen = 50

func preview(content string) string {
	if len(content) > previewLen {
		content = content[:previewLen]
	}
	return content + "..."
}

// Suggestions returns AI metadata for content without creating anything.
// API failures yield a nil suggestion, never an error; folder failures while
// listing collections still propagate.
func (m *Manager) Suggestions(content string) (*domain.Suggestion, error) {
	collections, err := m.store.Collections()
	if err != nil {
		return nil, err
	}

	suggestion, err := m.ai.Analyze(content, collections)
	if err != nil {
		m.logger.Warn("AI suggestion failed", zap.Error(err))
		return nil, nil
	}
	return suggestion, nil
}

// Collections lists the existing collection names.
func (m *Manager) Collections() ([]string, error) {
	return m.store.Collections()
}

// Snippets lists existing snippets, optionally restricted to one collection.
func (m *Manager) Snippets(collection string) (map[string]domain.StoredSnippet, error) {
	return m.store.Snippets(collection)
}

// DeleteSnippet removes a snippet by keyword. With an empty collection the
// whole repository is searched. Reports false when the keyword is unknown.
func (m *Manager) DeleteSnippet(keyword, collection string) (bool, error) {
	if collection != "" {
		return m.store.DeleteSnippet(collection, keyword)
	}

	snippets, err := m.store.Snippets("")
	if err != nil {
		return false, err
	}

	existing, ok := snippets[keyword]
	if !ok {
		return false, nil
	}
	return m.store.DeleteSnippet(existing.Collection, keyword)
}

// ValidateSetup probes folder access and API connectivity independently and
// reports both. It never returns an error; sub-failures land in the report.
func (m *Manager) ValidateSetup() *domain.HealthReport {
	report := &domain.HealthReport{}

	collections, err := m.store.Collections()
	if err != nil {
		report.Errors = append(report.Errors, "folder error: "+err.Error())
	} else {
		report.FolderOK = true
		report.Collections = len(collections)

		snippets, skipped, err := m.store.Scan("")
		if err != nil {
			report.Errors = append(report.Errors, "folder error: "+err.Error())
		} else {
			report.Snippets = len(snippets)
			report.Skipped = skipped
		}
	}

	if m.ai.TestConnection() {
		report.APIOK = true
	} else {
		report.Errors = append(report.Errors, "API connection test failed")
	}

	return report
}
