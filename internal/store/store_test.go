package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snips/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestNew_RootMustExist(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindFolder, domain.KindOf(err))
}

func TestNew_RootMustBeDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := New(file, nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindFolder, domain.KindOf(err))
}

func TestSanitizeCollection(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Git", "Git"},
		{`My:Col*lection`, "MyCollection"},
		{`a<>:"/\|?*b`, "ab"},
		{"  .dotted.  ", "dotted"},
		{`<>:"/\|?*`, "Snippets"},
		{"...", "Snippets"},
	}
	for _, tt := range tests {
		got := SanitizeCollection(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.NotContains(t, got, ":")
		assert.NotContains(t, got, "*")
	}
}

func TestCreateCollection(t *testing.T) {
	s := newTestStore(t)

	path, err := s.CreateCollection("My:Col*lection")
	require.NoError(t, err)
	assert.Equal(t, "MyCollection", filepath.Base(path))

	// Idempotent: calling again yields the same single directory.
	again, err := s.CreateCollection("My:Col*lection")
	require.NoError(t, err)
	assert.Equal(t, path, again)

	collections, err := s.Collections()
	require.NoError(t, err)
	assert.Equal(t, []string{"MyCollection"}, collections)
}

func TestCreateCollection_EmptyName(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateCollection("   ")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestCollections_IgnoresHiddenAndFiles(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "Git"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), ".hidden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "stray.json"), []byte("{}"), 0o644))

	collections, err := s.Collections()
	require.NoError(t, err)
	assert.Equal(t, []string{"Git"}, collections)
}

func TestWriteSnippet_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	stored, err := s.WriteSnippet("Git", domain.Snippet{
		Content: "git log --oneline --graph",
		Name:    "Git: Pretty Log",
		Keyword: "git_log5",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.UID)
	assert.Equal(t, "Git", stored.Collection)
	assert.True(t, strings.HasPrefix(filepath.Base(stored.FilePath), "git_log5_"))

	snippets, err := s.Snippets("Git")
	require.NoError(t, err)
	require.Contains(t, snippets, "git_log5")

	got := snippets["git_log5"]
	assert.Equal(t, "git log --oneline --graph", got.Content)
	assert.Equal(t, "Git: Pretty Log", got.Name)
	assert.Equal(t, "git_log5", got.Keyword)
	assert.Equal(t, stored.UID, got.UID)
}

func TestWriteSnippet_FileContent(t *testing.T) {
	s := newTestStore(t)

	stored, err := s.WriteSnippet("Terminal", domain.Snippet{
		Content: "echo \"héllo\" <&3",
		Name:    "Echo",
		Keyword: "term_echo",
		UID:     "ABC-123",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(stored.FilePath)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, `"alfredsnippet"`)
	assert.Contains(t, text, "  \"snippet\"", "two-space indent")
	assert.Contains(t, text, "héllo", "UTF-8 kept literal")
	assert.Contains(t, text, "<&3", "no HTML escaping")
	assert.Equal(t, "term_echo_ABC-123.json", filepath.Base(stored.FilePath))
}

func TestWriteSnippet_Validation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name    string
		snippet domain.Snippet
	}{
		{"empty content", domain.Snippet{Name: "n", Keyword: "k"}},
		{"empty name", domain.Snippet{Content: "c", Keyword: "k"}},
		{"empty keyword", domain.Snippet{Content: "c", Name: "n"}},
		{"keyword with space", domain.Snippet{Content: "c", Name: "n", Keyword: "git log"}},
		{"keyword with slash", domain.Snippet{Content: "c", Name: "n", Keyword: "git/log"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.WriteSnippet("Git", tt.snippet)
			require.Error(t, err)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
		})
	}

	_, err := s.WriteSnippet("Git", domain.Snippet{Content: "c", Name: "n", Keyword: "git_log5"})
	assert.NoError(t, err)
}

func TestWriteSnippet_FilenameCollision(t *testing.T) {
	s := newTestStore(t)

	sn := domain.Snippet{Content: "c", Name: "n", Keyword: "dup", UID: "SAME"}
	_, err := s.WriteSnippet("Git", sn)
	require.NoError(t, err)

	_, err = s.WriteSnippet("Git", sn)
	require.Error(t, err)
	assert.Equal(t, domain.KindFolder, domain.KindOf(err))
	assert.Contains(t, err.Error(), "already exists")
}

func TestFilename_SanitizesKeyword(t *testing.T) {
	assert.Equal(t, "git_log_U1.json", Filename("Git.Log", "U1"))
	assert.Equal(t, "a_b-c_U2.json", Filename("a b-c", "U2"))
}

func TestScan_TolerantReadPath(t *testing.T) {
	s := newTestStore(t)

	_, err := s.WriteSnippet("Git", domain.Snippet{Content: "c", Name: "n", Keyword: "good"})
	require.NoError(t, err)

	dir := filepath.Join(s.Root(), "Git")
	// Broken JSON and a structurally wrong record both get skipped.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.json"), []byte(`{"foo":"bar"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.json"),
		[]byte(`{"alfredsnippet":{"snippet":"x","name":"y"}}`), 0o644))
	// Non-JSON files are not snippet candidates at all.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))

	snippets, skipped, err := s.Scan("Git")
	require.NoError(t, err)
	assert.Len(t, snippets, 1)
	assert.Contains(t, snippets, "good")
	assert.Equal(t, 3, skipped)
}

func TestScan_LastCollectionWinsOnSharedKeyword(t *testing.T) {
	s := newTestStore(t)

	_, err := s.WriteSnippet("Alpha", domain.Snippet{Content: "first", Name: "n", Keyword: "shared"})
	require.NoError(t, err)
	_, err = s.WriteSnippet("Beta", domain.Snippet{Content: "second", Name: "n", Keyword: "shared"})
	require.NoError(t, err)

	snippets, err := s.Snippets("")
	require.NoError(t, err)
	require.Contains(t, snippets, "shared")
	// Collections scan in sorted order, so Beta overwrites Alpha.
	assert.Equal(t, "Beta", snippets["shared"].Collection)
	assert.Equal(t, "second", snippets["shared"].Content)
}

func TestCheckDuplicate(t *testing.T) {
	s := newTestStore(t)

	_, err := s.WriteSnippet("Git", domain.Snippet{Content: "git status", Name: "Git: Status", Keyword: "git_status"})
	require.NoError(t, err)

	dup, col, err := s.CheckDuplicate("git_status", "")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, "Git", col)

	dup, _, err = s.CheckDuplicate("git_status", "Terminal")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, _, err = s.CheckDuplicate("unknown", "")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestDeleteSnippet(t *testing.T) {
	s := newTestStore(t)

	stored, err := s.WriteSnippet("Git", domain.Snippet{Content: "c", Name: "n", Keyword: "gone"})
	require.NoError(t, err)

	deleted, err := s.DeleteSnippet("Git", "gone")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoFileExists(t, stored.FilePath)

	// Absent keyword is a not-found indicator, not an error.
	deleted, err = s.DeleteSnippet("Git", "gone")
	require.NoError(t, err)
	assert.False(t, deleted)
}
