package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/marketlens/internal/models"
)

const (
	// DefaultBaseURL is the base URL for the fundamentals API.
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent mimics a desktop browser; the provider rejects
	// default Go user agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	quoteSummaryModules = "balanceSheetHistory,incomeStatementHistory,cashflowStatementHistory"
)

// Client is a fundamentals API client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the minimum interval between requests.
func WithRateLimit(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval > 0 {
			c.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// WithUserAgent sets a custom user agent.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient creates a new fundamentals API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetFinancialStatements fetches the yearly balance sheet, income statement
// and cash flow tables for a symbol, newest year first.
func (c *Client) GetFinancialStatements(ctx context.Context, symbol string) (*models.FinancialStatements, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("modules", quoteSummaryModules)
	reqURL := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug().
			Str("symbol", symbol).
			Msg("Fundamentals API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &ErrNoFundamentals{Symbol: symbol}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Symbol:     symbol,
		}
	}

	var envelope quoteSummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if envelope.QuoteSummary.Error != nil {
		return nil, &ErrNoFundamentals{Symbol: symbol}
	}
	if len(envelope.QuoteSummary.Result) == 0 {
		return nil, &ErrNoFundamentals{Symbol: symbol}
	}

	result := envelope.QuoteSummary.Result[0]
	statements := &models.FinancialStatements{
		Symbol:       symbol,
		BalanceSheet: buildTable(result.BalanceSheetHistory.Statements),
		IncomeStmt:   buildTable(result.IncomeStatementHistory.Statements),
		CashFlow:     buildTable(result.CashflowStatementHistory.Statements),
	}

	if len(statements.BalanceSheet) == 0 || len(statements.IncomeStmt) == 0 {
		return nil, &ErrNoFundamentals{Symbol: symbol}
	}

	return statements, nil
}

// buildTable converts the provider's per-year statement list into a row
// table keyed by humanized label, year offsets matching the source order
// (newest first).
func buildTable(periods []rawStatement) models.StatementTable {
	table := models.StatementTable{}

	for yearIdx, period := range periods {
		for field := range period {
			// Period bookkeeping fields are not statement rows
			if field == "endDate" || field == "maxAge" {
				continue
			}
			value, ok := period.numericValue(field)
			if !ok {
				continue
			}
			label := humanizeField(field)

			row := table[label]
			// Pad missing earlier years so offsets stay aligned
			for len(row) < yearIdx {
				row = append(row, 0)
			}
			row = append(row, value)
			table[label] = row
		}
	}

	return table
}
