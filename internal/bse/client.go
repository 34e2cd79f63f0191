package bse

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
)

const (
	// DefaultBaseURL is the base URL for the BSE India API.
	DefaultBaseURL = "https://api.bseindia.com/BseIndiaAPI/api"

	// DefaultAttachmentBase is the live PDF mirror.
	DefaultAttachmentBase = "https://www.bseindia.com/xml-data/corpfiling/AttachLive/"

	// DefaultHistoricalBase is the historical PDF mirror, tried when the
	// live mirror returns 403 or 404.
	DefaultHistoricalBase = "https://www.bseindia.com/xml-data/corpfiling/AttachHis/"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxPages caps listing pagination as a safety bound.
	DefaultMaxPages = 10

	// DefaultUserAgent mimics a desktop browser; the repository rejects
	// default Go user agents.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	refererHeader = "https://www.bseindia.com/"
)

// Client is a BSE India filings API client.
type Client struct {
	baseURL        string
	attachmentBase string
	historicalBase string
	userAgent      string
	maxPages       int
	httpClient     *http.Client
	logger         arbor.ILogger
	limiter        *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithMirrors sets custom PDF mirror base URLs.
func WithMirrors(live, historical string) ClientOption {
	return func(c *Client) {
		if live != "" {
			c.attachmentBase = live
		}
		if historical != "" {
			c.historicalBase = historical
		}
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

// WithMaxPages sets the pagination safety cap.
func WithMaxPages(maxPages int) ClientOption {
	return func(c *Client) {
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

// NewClient creates a new BSE India API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        DefaultBaseURL,
		attachmentBase: DefaultAttachmentBase,
		historicalBase: DefaultHistoricalBase,
		userAgent:      DefaultUserAgent,
		maxPages:       DefaultMaxPages,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetAnnouncements retrieves all announcement listing rows for a scrip code
// within the lookback window, following pagination to completion. Pagination
// stops when a page comes back empty, the reported total row count is
// reached, or the page cap is hit.
func (c *Client) GetAnnouncements(ctx context.Context, scripCode string, from, to time.Time) ([]AnnouncementRow, error) {
	var rows []AnnouncementRow

	for pageNo := 1; pageNo <= c.maxPages; pageNo++ {
		params := url.Values{}
		params.Set("pageno", fmt.Sprintf("%d", pageNo))
		params.Set("strCat", "-1")
		params.Set("strPrevDate", from.Format("20060102"))
		params.Set("strToDate", to.Format("20060102"))
		params.Set("strScrip", scripCode)
		params.Set("strSearch", "P")
		params.Set("strType", "C")

		var page announcementsResponse
		if err := c.get(ctx, "/AnnGetData/w", params, &page); err != nil {
			return nil, err
		}

		if len(page.Table) == 0 {
			break
		}
		rows = append(rows, page.Table...)

		if len(page.Table1) > 0 && page.Table1[0].RowCount > 0 && len(rows) >= page.Table1[0].RowCount {
			break
		}
	}

	return rows, nil
}

// DownloadPDF fetches an attachment, trying the live mirror first and the
// historical mirror on 403/404. Returns the PDF bytes and the URL that
// served them.
func (c *Client) DownloadPDF(ctx context.Context, attachmentName string) ([]byte, string, error) {
	if attachmentName == "" {
		return nil, "", fmt.Errorf("attachment name is empty")
	}

	var (
		lastStatus int
		lastURL    string
	)

	for _, base := range []string{c.attachmentBase, c.historicalBase} {
		pdfURL := base + attachmentName
		lastURL = pdfURL

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Referer", refererHeader)
		req.Header.Set("Accept", "application/pdf,application/octet-stream;q=0.9,*/*;q=0.8")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network failures on the live mirror still fall through to
			// the historical mirror.
			if c.logger != nil {
				c.logger.Debug().Err(err).Str("url", pdfURL).Msg("PDF mirror request failed")
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, "", fmt.Errorf("failed to read PDF body: %w", err)
			}
			return body, pdfURL, nil
		}

		resp.Body.Close()
		lastStatus = resp.StatusCode

		if c.logger != nil {
			c.logger.Debug().
				Int("status", resp.StatusCode).
				Str("url", pdfURL).
				Msg("PDF mirror miss, trying next")
		}
	}

	return nil, "", &PDFNotFoundError{
		AttachmentName: attachmentName,
		LastStatus:     lastStatus,
		LastURL:        lastURL,
	}
}

// get performs a GET request to the API.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", refererHeader)
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug().
			Str("url", c.baseURL+path).
			Msg("BSE API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
