// Package store owns the on-disk snippet layout: one folder per collection
// under a fixed root, one JSON file per snippet inside its collection.
package store

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"snips/internal/domain"
)

// fallbackCollection is used when sanitization leaves a collection name empty.
const fallbackCollection = "Snippets"

var (
	keywordPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	unsafeFolder   = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// Store handles snippet file operations under a single root directory.
type Store struct {
	root   string
	logger *zap.Logger
}

// New creates a Store rooted at path. The root must already exist, be a
// directory, and be writable.
func New(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	root, err := filepath.Abs(path)
	if err != nil {
		return nil, domain.Wrap(domain.KindFolder, err, "resolve snippets path %q", path)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, domain.Wrap(domain.KindFolder, err, "snippets folder does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, domain.E(domain.KindFolder, "snippets path is not a directory: %s", root)
	}

	// Probe writability; permission bits alone are not reliable across
	// platforms and mount options.
	probe, err := os.CreateTemp(root, ".snips-probe-*")
	if err != nil {
		return nil, domain.Wrap(domain.KindFolder, err, "snippets folder is not writable: %s", root)
	}
	probe.Close()
	os.Remove(probe.Name())

	return &Store{root: root, logger: logger}, nil
}

// Root returns the absolute snippets root path.
func (s *Store) Root() string { return s.root }

// Collections returns the names of the immediate subdirectories of the root,
// sorted lexicographically. Hidden directories are ignored.
func (s *Store) Collections() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, domain.Wrap(domain.KindFolder, err, "list collections in %s", s.root)
	}

	var collections []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			collections = append(collections, entry.Name())
		}
	}
	return collections, nil
}

// SanitizeCollection strips filesystem-hostile characters and leading or
// trailing dots and spaces from a collection name. An empty result falls
// back to a default name.
func SanitizeCollection(name string) string {
	sanitized := unsafeFolder.ReplaceAllString(name, "")
	sanitized = strings.Trim(sanitized, ". ")
	if sanitized == "" {
		return fallbackCollection
	}
	return sanitized
}

// CreateCollection ensures the folder for the given collection exists and
// returns its path. Creation is idempotent.
func (s *Store) CreateCollection(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", domain.E(domain.KindValidation, "collection name cannot be empty")
	}

	sanitized := SanitizeCollection(strings.TrimSpace(name))
	path := filepath.Join(s.root, sanitized)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", domain.Wrap(domain.KindFolder, err, "create collection %q", sanitized)
	}
	return path, nil
}

// Scan reads snippets from one collection, or from every collection when
// collection is empty, and returns a keyword-indexed map plus the number of
// files that were skipped as malformed. The read path is tolerant: files
// that are not valid snippet records are counted and skipped, never fatal.
// When scanning all collections, a keyword appearing in several collections
// keeps the record from the last collection in sorted order.
func (s *Store) Scan(collection string) (map[string]domain.StoredSnippet, int, error) {
	var collections []string
	if collection != "" {
		collections = []string{collection}
	} else {
		var err error
		collections, err = s.Collections()
		if err != nil {
			return nil, 0, err
		}
	}

	snippets := make(map[string]domain.StoredSnippet)
	skipped := 0

	for _, col := range collections {
		dir := filepath.Join(s.root, col)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				continue
			}
			return nil, skipped, domain.Wrap(domain.KindFolder, err, "scan collection %q", col)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			sn, ok := loadSnippetFile(path)
			if !ok {
				skipped++
				continue
			}

			snippets[sn.Keyword] = domain.StoredSnippet{
				Snippet:    sn,
				Collection: col,
				FilePath:   path,
			}
		}
	}

	if skipped > 0 {
		s.logger.Debug("skipped malformed snippet files",
			zap.Int("count", skipped),
			zap.String("collection", collection))
	}
	return snippets, skipped, nil
}

// Snippets is Scan without the skip count.
func (s *Store) Snippets(collection string) (map[string]domain.StoredSnippet, error) {
	snippets, _, err := s.Scan(collection)
	return snippets, err
}

// snippetFile is the external on-disk format: a single top-level
// "alfredsnippet" object with exactly four required string keys.
type snippetFile struct {
	AlfredSnippet *snippetBody `json:"alfredsnippet"`
}

type snippetBody struct {
	Snippet *string `json:"snippet"`
	Name    *string `json:"name"`
	Keyword *string `json:"keyword"`
	UID     *string `json:"uid"`
}

// loadSnippetFile parses one file, reporting ok=false for anything that is
// not a structurally complete snippet record.
func loadSnippetFile(path string) (domain.Snippet, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Snippet{}, false
	}

	var file snippetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return domain.Snippet{}, false
	}

	body := file.AlfredSnippet
	if body == nil || body.Snippet == nil || body.Name == nil || body.Keyword == nil || body.UID == nil {
		return domain.Snippet{}, false
	}

	return domain.Snippet{
		Content: *body.Snippet,
		Name:    *body.Name,
		Keyword: *body.Keyword,
		UID:     *body.UID,
	}, true
}

// CheckDuplicate reports whether the keyword already exists, optionally
// scoped to one collection, and which collection holds it.
func (s *Store) CheckDuplicate(keyword, collection string) (bool, string, error) {
	snippets, err := s.Snippets(collection)
	if err != nil {
		return false, "", err
	}

	if existing, ok := snippets[keyword]; ok {
		return true, existing.Collection, nil
	}
	return false, "", nil
}

// Filename derives the snippet filename from its keyword and uid. Characters
// outside [a-zA-Z0-9_-] are replaced with underscores.
func Filename(keyword, uid string) string {
	safe := unsafeFilename.ReplaceAllString(strings.ToLower(keyword), "_")
	return safe + "_" + uid + ".json"
}

// NewUID generates an opaque snippet identifier.
func NewUID() string {
	return strings.ToUpper(uuid.New().String())
}

// validate checks the required record fields and the keyword pattern.
func validate(sn domain.Snippet) error {
	required := []struct {
		field string
		value string
	}{
		{"content", sn.Content},
		{"name", sn.Name},
		{"keyword", sn.Keyword},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domain.E(domain.KindValidation, "field %q cannot be empty", r.field)
		}
	}

	if !keywordPattern.MatchString(strings.TrimSpace(sn.Keyword)) {
		return domain.E(domain.KindValidation, "invalid keyword format: %s", sn.Keyword)
	}
	return nil
}

// WriteSnippet validates the record and writes it into the collection,
// creating the collection folder if needed. A uid is generated when absent.
// An existing file with the derived name fails the write; this guards the
// physical filename, the logical keyword policy lives in the manager.
func (s *Store) WriteSnippet(collection string, sn domain.Snippet) (domain.StoredSnippet, error) {
	if err := validate(sn); err != nil {
		return domain.StoredSnippet{}, err
	}

	dir, err := s.CreateCollection(collection)
	if err != nil {
		return domain.StoredSnippet{}, err
	}

	if sn.UID == "" {
		sn.UID = NewUID()
	}

	path := filepath.Join(dir, Filename(sn.Keyword, sn.UID))

	// O_EXCL doubles as the collision guard.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return domain.StoredSnippet{}, domain.E(domain.KindFolder, "snippet file already exists: %s", path)
		}
		return domain.StoredSnippet{}, domain.Wrap(domain.KindFolder, err, "create snippet file %s", path)
	}

	file := snippetFile{AlfredSnippet: &snippetBody{
		Snippet: &sn.Content,
		Name:    &sn.Name,
		Keyword: &sn.Keyword,
		UID:     &sn.UID,
	}}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// goccy/go-json's indent encoder crashes on this struct when it is
	// passed by value (nil deref in vm_indent); encoding via pointer emits
	// identical JSON and avoids the crash.
	if err := enc.Encode(&file); err != nil {
		f.Close()
		os.Remove(path)
		return domain.StoredSnippet{}, domain.Wrap(domain.KindFolder, err, "write snippet file %s", path)
	}
	if err := f.Close(); err != nil {
		return domain.StoredSnippet{}, domain.Wrap(domain.KindFolder, err, "write snippet file %s", path)
	}

	s.logger.Info("snippet written",
		zap.String("keyword", sn.Keyword),
		zap.String("collection", filepath.Base(dir)),
		zap.String("file", filepath.Base(path)))

	stored := domain.StoredSnippet{
		Snippet:    sn,
		Collection: filepath.Base(dir),
		FilePath:   path,
	}
	return stored, nil
}

// DeleteSnippet removes the snippet with the given keyword from a collection.
// It reports false without error when the keyword is not present.
func (s *Store) DeleteSnippet(collection, keyword string) (bool, error) {
	snippets, err := s.Snippets(collection)
	if err != nil {
		return false, err
	}

	existing, ok := snippets[keyword]
	if !ok {
		return false, nil
	}

	if err := os.Remove(existing.FilePath); err != nil {
		return false, domain.Wrap(domain.KindFolder, err, "delete snippet %q", keyword)
	}

	s.logger.Info("snippet deleted",
		zap.String("keyword", keyword),
		zap.String("collection", existing.Collection))
	return true, nil
}
