package filings

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/models"
)

// DefaultHTMLListingURL is the server-rendered announcements listing page.
// Used as a fallback when the JSON API is unavailable.
const DefaultHTMLListingURL = "https://www.bseindia.com/corporates/ann.html"

// HTMLProvider scrapes the announcements listing page. It only sees the
// first page of results, which is acceptable for a fallback: the
// pipeline wants the newest filings anyway.
type HTMLProvider struct {
	listingURL string
	httpClient *http.Client
	userAgent  string
	logger     arbor.ILogger
}

// NewHTMLProvider creates the HTML scraping fallback provider.
func NewHTMLProvider(listingURL, userAgent string, httpClient *http.Client, logger arbor.ILogger) *HTMLProvider {
	if listingURL == "" {
		listingURL = DefaultHTMLListingURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTMLProvider{
		listingURL: listingURL,
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Name implements interfaces.AnnouncementProvider.
func (p *HTMLProvider) Name() string {
	return "html"
}

// FetchAnnouncements implements interfaces.AnnouncementProvider.
func (p *HTMLProvider) FetchAnnouncements(ctx context.Context, scripCode string, lookbackDays int) ([]models.Announcement, error) {
	listingURL := fmt.Sprintf("%s?scripcode=%s", p.listingURL, url.QueryEscape(scripCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing request failed: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -lookbackDays)

	var announcements []models.Announcement
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		heading := strings.TrimSpace(cells.Eq(1).Text())
		if heading == "" {
			heading = "No heading"
		}

		rawDate := strings.TrimSpace(cells.Eq(0).Text())
		parsed := parseListingDate(rawDate)
		if !parsed.IsZero() && parsed.Before(cutoff) {
			return
		}

		announcement := models.Announcement{
			Heading:    heading,
			Date:       rawDate,
			ParsedDate: parsed,
		}
		if !parsed.IsZero() {
			announcement.Date = parsed.Format("02/01/2006")
		}

		// The attachment name is the last path segment of the PDF link.
		row.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href, _ := link.Attr("href")
			if !strings.HasSuffix(strings.ToLower(href), ".pdf") {
				return true
			}
			announcement.AttachmentName = path.Base(href)
			announcement.PDFURL = href
			return false
		})

		if announcement.AttachmentName == "" {
			return
		}
		announcements = append(announcements, announcement)
	})

	p.logger.Debug().
		Str("scrip_code", scripCode).
		Int("rows", len(announcements)).
		Msg("Fetched announcements from listing page")

	return announcements, nil
}

// parseListingDate handles the date formats the listing page renders.
func parseListingDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		"02/01/2006",
		"02-01-2006",
		"02 Jan 2006",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
