// Package mcp implements the search and detail providers on top of the MCP
// inspector endpoint, which exposes crawl tools as JSON-over-HTTP calls.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"notecrawler/internal/crawl"
)

const (
	toolSearch = "xhs_search"
	toolDetail = "xhs_crawler_detail"

	defaultTimeout = 30 * time.Second
	defaultSource  = "pc_feed"
)

// Config captures the parameters required to reach the inspector endpoint.
type Config struct {
	// BaseURL is the full tool-execution URL, e.g.
	// http://localhost:9091/api/admin/inspector/execute.
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds each HTTP round trip; the orchestrator applies its own
	// task-level timeouts on top.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Client speaks the inspector's tool-call protocol. It implements both
// crawl.SearchProvider and crawl.DetailProvider; single-attempt semantics,
// no retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider base_url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		logger:     logger,
	}, nil
}

type toolRequest struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

type toolEnvelope struct {
	Result toolResult `json:"result"`
}

type toolResult struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Search returns one page of item summaries for a keyword. An empty notes
// array means the provider ran out of pages and is not an error.
func (c *Client) Search(ctx context.Context, keyword string, page, pageSize int) ([]crawl.ItemSummary, error) {
	result, err := c.call(ctx, toolSearch, map[string]any{
		"keywords":  keyword,
		"page_num":  page,
		"page_size": pageSize,
	})
	if err != nil {
		return nil, err
	}
	var data struct {
		Notes []crawl.ItemSummary `json:"notes"`
	}
	if len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, &data); err != nil {
			return nil, fmt.Errorf("decode search notes: %w", err)
		}
	}
	c.logger.Debug("search page fetched",
		zap.String("keyword", keyword),
		zap.Int("page", page),
		zap.Int("notes", len(data.Notes)),
	)
	return data.Notes, nil
}

// FetchDetail returns the enriched record for one item.
func (c *Client) FetchDetail(ctx context.Context, itemID, token, source string) (crawl.DetailRecord, error) {
	if source == "" {
		source = defaultSource
	}
	result, err := c.call(ctx, toolDetail, map[string]any{
		"note_id":     itemID,
		"xsec_token":  token,
		"xsec_source": source,
	})
	if err != nil {
		return crawl.DetailRecord{}, err
	}
	var data struct {
		Notes []crawl.DetailRecord `json:"notes"`
	}
	if len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, &data); err != nil {
			return crawl.DetailRecord{}, fmt.Errorf("decode detail notes: %w", err)
		}
	}
	if len(data.Notes) == 0 {
		return crawl.DetailRecord{}, fmt.Errorf("detail not found for item %s", itemID)
	}
	detail := data.Notes[0]
	if detail.ItemID == "" {
		detail.ItemID = itemID
	}
	detail.FetchedAt = time.Now().UTC()
	return detail, nil
}

// call performs one tool invocation and unwraps the result envelope. A
// non-zero result code is the call's definitive failure.
func (c *Client) call(ctx context.Context, tool string, params map[string]any) (toolResult, error) {
	body, err := json.Marshal(toolRequest{Tool: tool, Params: params})
	if err != nil {
		return toolResult{}, fmt.Errorf("marshal tool request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return toolResult{}, fmt.Errorf("build tool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return toolResult{}, fmt.Errorf("call tool %s: %w", tool, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return toolResult{}, fmt.Errorf("tool %s returned status %d: %s", tool, resp.StatusCode, snippet)
	}

	var envelope toolEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return toolResult{}, fmt.Errorf("decode tool response: %w", err)
	}
	if envelope.Result.Code != 0 {
		return toolResult{}, fmt.Errorf("tool %s failed with code %d: %s", tool, envelope.Result.Code, envelope.Result.Msg)
	}
	return envelope.Result, nil
}
