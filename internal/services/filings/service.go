// Package filings implements the exchange filing summarization pipeline:
// resolve the scrip code, list announcements, download and extract each
// filing PDF and summarize it with an LLM.
package filings

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/bse"
	"github.com/ternarybob/marketlens/internal/common"
	"github.com/ternarybob/marketlens/internal/interfaces"
	"github.com/ternarybob/marketlens/internal/models"
)

// Listing-level error messages surfaced to the cache entry.
const (
	errScripNotResolved = "Could not resolve scrip code"
	errNoAnnouncements  = "No announcements found"
	errNoPDFFilings     = "No PDF-based announcements to summarize"
)

// Service implements interfaces.FilingsService. Announcement providers are
// tried in configured order; the first that returns rows wins.
type Service struct {
	client    *bse.Client
	providers []interfaces.AnnouncementProvider
	extractor interfaces.PDFExtractor
	summarize *summarizer
	config    *common.FilingsConfig
	logger    arbor.ILogger
}

// NewService creates a filings service with the default provider set,
// ordered per config ("api,html").
func NewService(client *bse.Client, extractor interfaces.PDFExtractor, llm interfaces.LLMService, config *common.FilingsConfig, logger arbor.ILogger) *Service {
	s := &Service{
		client:    client,
		extractor: extractor,
		summarize: &summarizer{
			llm:           llm,
			promptBudget:  config.PromptBudget,
			minTextLength: config.MinTextLength,
		},
		config: config,
		logger: logger,
	}

	available := map[string]interfaces.AnnouncementProvider{
		"api":  NewAPIProvider(client, logger),
		"html": NewHTMLProvider("", config.UserAgent, nil, logger),
	}
	for _, name := range strings.Split(config.ProviderOrder, ",") {
		if provider, ok := available[strings.TrimSpace(strings.ToLower(name))]; ok {
			s.RegisterProvider(provider)
		}
	}
	if len(s.providers) == 0 {
		s.RegisterProvider(available["api"])
	}

	return s
}

// RegisterProvider adds a provider. Providers are tried in registration
// order.
func (s *Service) RegisterProvider(provider interfaces.AnnouncementProvider) {
	s.providers = append(s.providers, provider)
	s.logger.Debug().
		Str("provider", provider.Name()).
		Msg("Registered announcement provider")
}

// Summarize implements interfaces.FilingsService. Listing-level failures
// are recorded on the result set rather than returned: the orchestrator
// persists them as the per-source error field.
func (s *Service) Summarize(ctx context.Context, symbol common.CanonicalSymbol) (*models.FilingSummarySet, error) {
	result := &models.FilingSummarySet{
		Stock: symbol.FilingID,
		News:  []models.FilingSummary{},
	}

	scripCode, err := s.client.ResolveScripCode(ctx, symbol.FilingID)
	if err != nil {
		s.logger.Warn().
			Str("symbol", symbol.FilingID).
			Err(err).
			Msg("Scrip code resolution failed")
		result.Error = errScripNotResolved
		return result, nil
	}
	result.ScripCode = scripCode

	announcements, fetchErr := s.fetchAnnouncements(ctx, scripCode)
	if fetchErr != nil {
		result.Error = fmt.Sprintf("Error fetching announcements: %v", fetchErr)
		return result, nil
	}
	if len(announcements) == 0 {
		result.Error = errNoAnnouncements
		return result, nil
	}

	sortNewestFirst(announcements)
	result.News = s.summarizeFilings(ctx, announcements)

	if len(result.News) == 0 {
		result.Error = errNoPDFFilings
	}

	return result, nil
}

// fetchAnnouncements tries each provider in order, returning the first
// non-empty listing. A provider error falls through to the next provider;
// the last error is surfaced only when no provider produced rows.
func (s *Service) fetchAnnouncements(ctx context.Context, scripCode string) ([]models.Announcement, error) {
	var lastErr error
	for _, provider := range s.providers {
		rows, err := provider.FetchAnnouncements(ctx, scripCode, s.config.LookbackDays)
		if err != nil {
			s.logger.Warn().
				Str("provider", provider.Name()).
				Str("scrip_code", scripCode).
				Err(err).
				Msg("Announcement provider failed")
			lastErr = err
			continue
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}
	return nil, lastErr
}

// summarizeFilings walks the sorted listing and summarizes PDF-backed
// filings up to the configured budget. Rows without a PDF attachment and
// PDFs whose extracted text is empty are skipped without consuming budget;
// download, extraction and summarization failures keep their slot with an
// error and do consume it.
func (s *Service) summarizeFilings(ctx context.Context, announcements []models.Announcement) []models.FilingSummary {
	items := make([]models.FilingSummary, 0, s.config.MaxFilings)
	count := 0

	for idx, announcement := range announcements {
		if count >= s.config.MaxFilings {
			break
		}
		if ctx.Err() != nil {
			break
		}

		attachment := announcement.AttachmentName
		if attachment == "" || !strings.HasSuffix(strings.ToLower(attachment), ".pdf") {
			continue
		}

		summary, pdfURL, err := s.summarizeOne(ctx, announcement)
		if err != nil {
			items = append(items, models.FilingSummary{
				Index:          idx + 1,
				Heading:        announcement.Heading,
				Date:           announcement.Date,
				AttachmentName: attachment,
				Error:          fmt.Sprintf("Error summarizing: %v", err),
			})
			count++
			continue
		}
		if summary == "" {
			// Extraction produced no text, usually a scanned image PDF.
			continue
		}

		items = append(items, models.FilingSummary{
			Index:          idx + 1,
			Heading:        announcement.Heading,
			Date:           announcement.Date,
			PDFURL:         pdfURL,
			Summary:        summary,
			AttachmentName: attachment,
		})
		count++
	}

	return items
}

// summarizeOne downloads, extracts and summarizes a single filing. An
// empty summary with nil error means the PDF had no extractable text.
func (s *Service) summarizeOne(ctx context.Context, announcement models.Announcement) (summary, pdfURL string, err error) {
	data, servedURL, err := s.client.DownloadPDF(ctx, announcement.AttachmentName)
	if err != nil {
		return "", "", err
	}

	text, err := s.extractor.ExtractText(ctx, data)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", "", nil
	}

	summary, err = s.summarize.Summarize(ctx, text, announcement.Heading, announcement.Date, servedURL)
	if err != nil {
		return "", "", err
	}
	return summary, servedURL, nil
}

// sortNewestFirst orders announcements newest first; rows whose published
// date could not be parsed sort after every dated row, keeping their
// relative order.
func sortNewestFirst(announcements []models.Announcement) {
	sort.SliceStable(announcements, func(i, j int) bool {
		a, b := announcements[i], announcements[j]
		switch {
		case a.HasParsedDate() && b.HasParsedDate():
			return a.ParsedDate.After(b.ParsedDate)
		case a.HasParsedDate():
			return true
		default:
			return false
		}
	})
}
