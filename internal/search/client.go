package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.duckduckgo.com/"

// DefaultMaxResults is how many results a search directive asks for.
const DefaultMaxResults = 6

// Result is one web search hit.
type Result struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Body  string `json:"body"`
}

// Client queries the DuckDuckGo instant answer API. Search never fails: any
// error is logged and yields no results.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// SetTestTransport points the client at a test server.
func (c *Client) SetTestTransport(baseURL string) {
	c.baseURL = baseURL
}

type topic struct {
	Text     string  `json:"Text"`
	FirstURL string  `json:"FirstURL"`
	Name     string  `json:"Name"`
	Topics   []topic `json:"Topics"`
}

type response struct {
	Heading       string  `json:"Heading"`
	AbstractText  string  `json:"AbstractText"`
	AbstractURL   string  `json:"AbstractURL"`
	Answer        string  `json:"Answer"`
	Results       []topic `json:"Results"`
	RelatedTopics []topic `json:"RelatedTopics"`
}

// Search returns at most max results for query.
func (c *Client) Search(ctx context.Context, query string, max int) []Result {
	if strings.TrimSpace(query) == "" || max <= 0 {
		return nil
	}

	results, err := c.search(ctx, query, max)
	if err != nil {
		c.logger.Warn("web search failed", "query", query, "error", err)
		return nil
	}
	c.logger.Debug("web search complete", "query", query, "results", len(results))
	return results
}

func (c *Client) search(ctx context.Context, query string, max int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")
	q.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search error %d: %s", resp.StatusCode, string(body))
	}

	var apiResp response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return collect(apiResp, max), nil
}

// collect flattens the abstract, direct results and related topics in that
// order, skipping entries without a URL or duplicate URLs.
func collect(r response, max int) []Result {
	var out []Result
	seen := make(map[string]bool)
	add := func(res Result) bool {
		if res.Href == "" || seen[res.Href] {
			return len(out) < max
		}
		seen[res.Href] = true
		out = append(out, res)
		return len(out) < max
	}

	if r.AbstractText != "" {
		if !add(Result{Title: r.Heading, Href: r.AbstractURL, Body: r.AbstractText}) {
			return out
		}
	}

	var walk func(ts []topic) bool
	walk = func(ts []topic) bool {
		for _, t := range ts {
			if len(t.Topics) > 0 {
				if !walk(t.Topics) {
					return false
				}
				continue
			}
			if !add(Result{Title: titleOf(t.Text), Href: t.FirstURL, Body: t.Text}) {
				return false
			}
		}
		return true
	}
	if walk(r.Results) {
		walk(r.RelatedTopics)
	}
	return out
}

// titleOf uses the part of a topic text before " - " as its title.
func titleOf(text string) string {
	if head, _, ok := strings.Cut(text, " - "); ok {
		return strings.TrimSpace(head)
	}
	return text
}
