package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"snips/internal/domain"
	"snips/internal/manager"
	"snips/internal/store"
)

type stubSuggester struct {
	suggestion *domain.Suggestion
	err        error
	connected  bool
}

func (s *stubSuggester) Analyze(string, []string) (*domain.Suggestion, error) {
	return s.suggestion, s.err
}

func (s *stubSuggester) TestConnection() bool { return s.connected }

func newTestServer(t *testing.T, ai *stubSuggester) *httptest.Server {
	t.Helper()
	st, err := store.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	mgr := manager.New(st, ai, zap.NewNop())
	srv := httptest.NewServer(New(mgr, "", zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubSuggester{connected: true})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report domain.HealthReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.True(t, report.FolderOK)
	assert.True(t, report.APIOK)
}

func TestCreateAndListSnippets(t *testing.T) {
	srv := newTestServer(t, &stubSuggester{})

	resp := postJSON(t, srv.URL+"/snippets",
		`{"content":"git status","name":"Git: Status","keyword":"git_status","collection":"Git"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created domain.CreateResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "git_status", created.Keyword)

	resp, err := http.Get(srv.URL + "/snippets?collection=Git")
	require.NoError(t, err)
	defer resp.Body.Close()

	var listing struct {
		Snippets map[string]domain.StoredSnippet `json:"snippets"`
		Count    int                             `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.Equal(t, 1, listing.Count)
	assert.Contains(t, listing.Snippets, "git_status")

	resp, err = http.Get(srv.URL + "/collections")
	require.NoError(t, err)
	defer resp.Body.Close()

	var cols struct {
		Collections []string `json:"collections"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cols))
	assert.Equal(t, []string{"Git"}, cols.Collections)
}

func TestCreateSnippet_ErrorMapping(t *testing.T) {
	srv := newTestServer(t, &stubSuggester{})

	// Missing metadata maps to 400.
	resp := postJSON(t, srv.URL+"/snippets", `{"content":"something"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Duplicate keyword maps to 409.
	body := `{"content":"c","name":"n","keyword":"dup","collection":"A"}`
	resp = postJSON(t, srv.URL+"/snippets", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/snippets", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSuggest(t *testing.T) {
	srv := newTestServer(t, &stubSuggester{suggestion: &domain.Suggestion{
		Collection: "Git",
		Name:       "Git: Status",
		Keyword:    "git_status",
		Confidence: domain.ConfidenceHigh,
	}})

	resp := postJSON(t, srv.URL+"/suggest", `{"content":"git status"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Suggestion *domain.Suggestion `json:"suggestion"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotNil(t, out.Suggestion)
	assert.Equal(t, "git_status", out.Suggestion.Keyword)
}

func TestSuggest_APIFailureYieldsNull(t *testing.T) {
	srv := newTestServer(t, &stubSuggester{err: domain.E(domain.KindAPI, "down")})

	resp := postJSON(t, srv.URL+"/suggest", `{"content":"git status"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Suggestion *domain.Suggestion `json:"suggestion"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Nil(t, out.Suggestion)
}

func TestSuggest_EmptyContent(t *testing.T) {
	srv := newTestServer(t, &stubSuggester{})

	resp := postJSON(t, srv.URL+"/suggest", `{"content":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
