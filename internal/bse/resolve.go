package bse

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var scripCodeRegex = regexp.MustCompile(`\b(\d{6})\b`)

// ResolveScripCode resolves a non-numeric instrument code to its numeric
// scrip code via the repository's smart search endpoint. Numeric input is
// returned as-is.
func (c *Client) ResolveScripCode(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", fmt.Errorf("identifier is empty")
	}

	if isNumeric(identifier) {
		return identifier, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("Type", "SS")
	params.Set("text", identifier)
	reqURL := fmt.Sprintf("%s/PeerSmartSearch/w?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", refererHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    "scrip search failed",
			Endpoint:   "/PeerSmartSearch/w",
		}
	}

	// The endpoint returns an HTML fragment of <li> suggestions; the first
	// entry carrying a six-digit code is the best match.
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse search response: %w", err)
	}

	var code string
	doc.Find("li").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if match := scripCodeRegex.FindString(sel.Text()); match != "" {
			code = match
			return false
		}
		return true
	})
	if code == "" {
		// Fragment without list markup still carries the code in text
		if match := scripCodeRegex.FindString(doc.Text()); match != "" {
			code = match
		}
	}

	if code == "" {
		return "", fmt.Errorf("could not resolve scrip code for %q", identifier)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("identifier", identifier).
			Str("scrip_code", code).
			Msg("Resolved scrip code")
	}

	return code, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
