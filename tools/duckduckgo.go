package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DuckDuckGoSearcher backs the search_web tool with the DuckDuckGo
// instant answer API. No API key required.
type DuckDuckGoSearcher struct {
	httpClient *http.Client
	baseURL    string
}

// NewDuckDuckGoSearcher creates a searcher with a sane timeout
func NewDuckDuckGoSearcher() *DuckDuckGoSearcher {
	return &DuckDuckGoSearcher{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    "https://api.duckduckgo.com/",
	}
}

type ddgResponse struct {
	AbstractText  string     `json:"AbstractText"`
	AbstractURL   string     `json:"AbstractURL"`
	Answer        string     `json:"Answer"`
	RelatedTopics []ddgTopic `json:"RelatedTopics"`
}

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

// Search implements the Searcher interface
func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, maxResults int) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build search request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read search response: %w", err)
	}

	var parsed ddgResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse search response: %w", err)
	}

	var lines []string
	if parsed.Answer != "" {
		lines = append(lines, parsed.Answer)
	}
	if parsed.AbstractText != "" {
		line := parsed.AbstractText
		if parsed.AbstractURL != "" {
			line += " (" + parsed.AbstractURL + ")"
		}
		lines = append(lines, line)
	}
	lines = appendTopics(lines, parsed.RelatedTopics, maxResults)

	if len(lines) > maxResults {
		lines = lines[:maxResults]
	}
	return strings.Join(lines, "\n"), nil
}

// appendTopics flattens the nested related-topic groups
func appendTopics(lines []string, topics []ddgTopic, max int) []string {
	for _, topic := range topics {
		if len(lines) >= max {
			break
		}
		if topic.Text != "" {
			line := topic.Text
			if topic.FirstURL != "" {
				line += " (" + topic.FirstURL + ")"
			}
			lines = append(lines, line)
		}
		if len(topic.Topics) > 0 {
			lines = appendTopics(lines, topic.Topics, max)
		}
	}
	return lines
}
