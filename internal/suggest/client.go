// Package suggest asks the Anthropic Messages API for snippet metadata:
// a collection, name, keyword, and description for raw content, with a
// confidence tier attached.
package suggest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"snips/internal/domain"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"

	// DefaultModel is the model used when configuration does not override it.
	DefaultModel = "claude-3-5-haiku-latest"

	maxAttempts      = 3
	retryDelay       = time.Second
	maxRateLimitWait = 300 * time.Second
	requestTimeout   = 30 * time.Second
	probeTimeout     = 10 * time.Second
	maxTokens        = 1000
)

// Client talks to the metadata-suggestion API.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client
	logger  *zap.Logger
	sleep   func(time.Duration)
}

// New creates a Client. The API key must be non-empty.
func New(apiKey, model string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, domain.E(domain.KindConfiguration, "API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: requestTimeout},
		logger:  logger,
		sleep:   time.Sleep,
	}, nil
}

// Analyze asks the model for metadata describing content, given the names of
// the collections that already exist.
func (c *Client) Analyze(content string, collections []string) (*domain.Suggestion, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.E(domain.KindValidation, "snippet content cannot be empty")
	}

	text, err := c.call(buildPrompt(content, collections))
	if err != nil {
		return nil, err
	}

	return parseSuggestion(text)
}

func buildPrompt(content string, collections []string) string {
	collectionsText := "None"
	if len(collections) > 0 {
		collectionsText = strings.Join(collections, ", ")
	}

	var sb strings.Builder
	sb.WriteString("Analyze this snippet content and suggest appropriate metadata for a text-expansion snippet:\n\n")
	sb.WriteString("Content:\n")
	sb.WriteString(content)
	sb.WriteString("\n\nExisting collections: ")
	sb.WriteString(collectionsText)
	sb.WriteString("\n\n")
	sb.WriteString(`Please provide a JSON response with the following structure:
{
  "collection": "suggested collection name (Title Case)",
  "name": "descriptive snippet name (Title Case, start with topic if applicable)",
  "keyword": "trigger keyword (lowercase, topic_function format with underscores or dashes)",
  "description": "brief description (1-2 sentences)",
  "confidence": "high|medium|low"
}

Rules:
1. If the content matches an existing collection topic, use that collection
2. For new collections, use Title Case (e.g., "Git", "Dataview", "Terminal")
3. Names should be descriptive and start with the topic when possible (e.g., "Git: Pretty Log")
4. Keywords should be lowercase with topic prefix (e.g., "git_log5", "dv_projects")
5. Set confidence to:
   - "high" if you're very confident about the categorization
   - "medium" if reasonably confident but could fit multiple categories
   - "low" if the content is ambiguous or you're unsure

Examples:
- Git command -> collection: "Git", keyword: "git_something"
- Dataview query -> collection: "Dataview", keyword: "dv_something"
- Shell command -> collection: "Terminal", keyword: "term_something"
- Code snippet -> collection based on language/framework

Respond only with valid JSON.`)

	return sb.String()
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// call posts the prompt and returns the text payload of the model response.
// Transient failures (429, 5xx, network errors) are retried up to the
// attempt budget; other non-2xx statuses fail immediately.
func (c *Client) call(prompt string) (string, error) {
	body, err := json.Marshal(apiRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  []apiMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", domain.Wrap(domain.KindAPI, err, "marshal request")
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
		if err != nil {
			return "", domain.Wrap(domain.KindAPI, err, "create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", apiVersion)

		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = domain.Wrap(domain.KindNetwork, err, "request failed")
			c.logger.Warn("suggestion request failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			if attempt < maxAttempts-1 {
				c.sleep(backoff(attempt))
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = domain.Wrap(domain.KindNetwork, readErr, "read response")
			if attempt < maxAttempts-1 {
				c.sleep(backoff(attempt))
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return extractText(respBody)

		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt < maxAttempts-1 {
				wait := retryAfter(resp.Header)
				c.logger.Warn("rate limited, backing off",
					zap.Duration("wait", wait),
					zap.Int("attempt", attempt+1))
				c.sleep(wait)
				continue
			}
			return "", domain.E(domain.KindRateLimit, "rate limit exceeded, please try again later")

		case resp.StatusCode >= 500:
			if attempt < maxAttempts-1 {
				c.sleep(backoff(attempt))
				continue
			}
			return "", &domain.Error{
				Kind:   domain.KindAPI,
				Status: resp.StatusCode,
				Msg:    fmt.Sprintf("server error: %d", resp.StatusCode),
			}

		default:
			// Client errors are not transient.
			return "", &domain.Error{
				Kind:   domain.KindAPI,
				Status: resp.StatusCode,
				Msg:    fmt.Sprintf("api error %d: %s", resp.StatusCode, string(respBody)),
			}
		}
	}

	if lastErr != nil {
		return "", lastErr
	}
	return "", domain.E(domain.KindAPI, "api call failed after %d attempts", maxAttempts)
}

func backoff(attempt int) time.Duration {
	return retryDelay * (1 << attempt)
}

// retryAfter reads the server-suggested wait, defaulting to a minute and
// capped at five.
func retryAfter(h http.Header) time.Duration {
	wait := time.Minute
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			wait = time.Duration(secs) * time.Second
		}
	}
	if wait > maxRateLimitWait {
		wait = maxRateLimitWait
	}
	return wait
}

// extractText pulls the text payload out of the response envelope.
func extractText(body []byte) (string, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.Wrap(domain.KindValidation, err, "unmarshal response")
	}
	if len(resp.Content) == 0 {
		return "", domain.E(domain.KindValidation, "empty response from API")
	}
	if resp.Content[0].Type != "text" {
		return "", domain.E(domain.KindValidation, "invalid response type from API")
	}
	return strings.TrimSpace(resp.Content[0].Text), nil
}

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	braceJSON  = regexp.MustCompile(`(?s)\{[^}]*\}`)
)

// parseSuggestion decodes the model output. Models do not always return bare
// JSON, so parsing falls back to a fenced code block and then to the first
// brace-delimited substring before giving up.
func parseSuggestion(text string) (*domain.Suggestion, error) {
	raw := []byte(text)

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		fields = nil
		if m := fencedJSON.FindStringSubmatch(text); m != nil {
			if err := json.Unmarshal([]byte(m[1]), &fields); err != nil {
				fields = nil
			}
		}
		if fields == nil {
			if m := braceJSON.FindString(text); m != "" {
				if err := json.Unmarshal([]byte(m), &fields); err != nil {
					fields = nil
				}
			}
		}
		if fields == nil {
			return nil, domain.E(domain.KindValidation, "could not parse JSON from response: %s", text)
		}
	}

	for _, field := range []string{"collection", "name", "keyword", "description", "confidence"} {
		if _, ok := fields[field]; !ok {
			return nil, domain.E(domain.KindValidation, "missing required field in API response: %s", field)
		}
	}

	confidence := domain.Confidence(asString(fields["confidence"]))
	if !confidence.Valid() {
		// Fail safe instead of hard: an unknown tier downgrades to low.
		confidence = domain.ConfidenceLow
	}

	return &domain.Suggestion{
		Collection:  asString(fields["collection"]),
		Name:        asString(fields["name"]),
		Keyword:     strings.ToLower(asString(fields["keyword"])),
		Description: asString(fields["description"]),
		Confidence:  confidence,
	}, nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// TestConnection probes the endpoint with a GET. The messages endpoint
// answers 405 to GET when authentication is valid, so both 200 and 405 count
// as success. Transport failures report false, never an error.
func (c *Client) TestConnection() bool {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/v1/messages", nil)
	if err != nil {
		return false
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	probe := &http.Client{Timeout: probeTimeout}
	resp, err := probe.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusMethodNotAllowed
}
