package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deevee3/perryMillNews/internal/feed/domain"
)

// ErrAnalysisUnavailable is returned when the narrative backend is not
// configured or returns nothing usable.
var ErrAnalysisUnavailable = errors.New("analysis backend unavailable")

const (
	openAIEndpoint   = "https://api.openai.com/v1/chat/completions"
	analysisModel    = "gpt-4o-mini"
	maxPromptEntries = 15
)

// Analyzer turns a fetched feed into an editorial narrative via the OpenAI
// chat completions API.
type Analyzer struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewAnalyzer returns an Analyzer. An empty apiKey disables analysis:
// Analyze then fails with ErrAnalysisUnavailable.
func NewAnalyzer(apiKey string) *Analyzer {
	return &Analyzer{
		apiKey:   apiKey,
		endpoint: openAIEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether an API key is configured.
func (a *Analyzer) Enabled() bool { return a.apiKey != "" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Usage map[string]any `json:"usage"`
}

// Analyze produces a narrative for the feed's leading entries.
func (a *Analyzer) Analyze(ctx context.Context, feed *domain.Result) (*domain.Analysis, error) {
	if !a.Enabled() {
		return nil, ErrAnalysisUnavailable
	}
	if feed == nil || len(feed.Entries) == 0 {
		return nil, errors.New("feed has no entries to analyze")
	}

	body, err := json.Marshal(chatRequest{
		Model: analysisModel,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a seasoned news editor."},
			{Role: "user", Content: buildPrompt(feed)},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contact analysis backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrAnalysisUnavailable, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode analysis response: %w", err)
	}

	narrative := ""
	if len(parsed.Choices) > 0 {
		narrative = strings.TrimSpace(parsed.Choices[0].Message.Content)
		if narrative == "" {
			narrative = strings.TrimSpace(parsed.Choices[0].Text)
		}
	}
	if narrative == "" {
		return nil, fmt.Errorf("%w: empty narrative", ErrAnalysisUnavailable)
	}

	return &domain.Analysis{Narrative: narrative, Usage: parsed.Usage}, nil
}

// buildPrompt renders the leading entries into the editorial prompt.
func buildPrompt(feed *domain.Result) string {
	entries := feed.Entries
	if len(entries) > maxPromptEntries {
		entries = entries[:maxPromptEntries]
	}

	var sb strings.Builder
	for _, e := range entries {
		source := e.Source
		if source == "" {
			source = "Unknown source"
		}
		fmt.Fprintf(&sb, "Title: %s\nSource: %s\nPublished: %s\nSummary: %s\n\n", e.Title, source, e.Published, e.Summary)
	}

	return "You are an editorial AI assistant summarizing the latest news items for a digest called 'Perry Mill'. " +
		"Write a concise narrative (3-5 paragraphs) highlighting the major themes, noteworthy events, and overall sentiment. " +
		"Tie related stories together, and mention sources when useful. Avoid bullet lists; respond with polished prose.\n\n" +
		"Stories:\n" + sb.String()
}
