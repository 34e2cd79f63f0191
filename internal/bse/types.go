// Package bse provides a client for the BSE India corporate filings API.
// This package centralizes all filing repository interactions for the
// application.
package bse

import (
	"fmt"
	"strings"
	"time"
)

// AnnouncementRow is one row of the announcements listing as published by
// the repository API. Field names vary across endpoint versions, so the
// heading is resolved from several candidates.
type AnnouncementRow struct {
	NewsID         string `json:"NEWSID"`
	ScripCode      any    `json:"SCRIP_CD"`
	NewsDT         string `json:"NEWS_DT"`
	Heading        string `json:"HEADING"`
	Headline       string `json:"HEADLINE"`
	Subject        string `json:"SUBJECT"`
	NewsSubject    string `json:"NEWSSUB"`
	NewsDesc       string `json:"NEWS_DESC"`
	CategoryName   string `json:"CATEGORYNAME"`
	AttachmentName string `json:"ATTACHMENTNAME"`
}

// BestHeading returns the first non-empty heading candidate, mirroring the
// priority order the repository uses across endpoint versions.
func (r AnnouncementRow) BestHeading() string {
	for _, candidate := range []string{r.Heading, r.Headline, r.Subject, r.NewsSubject, r.NewsDesc} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return "No heading"
}

// ParseNewsDate parses the row's NEWS_DT timestamp. The repository emits
// ISO-8601 timestamps, occasionally with a trailing Z. Returns the zero
// time when unparsable.
func (r AnnouncementRow) ParseNewsDate() time.Time {
	raw := strings.TrimSpace(r.NewsDT)
	if raw == "" {
		return time.Time{}
	}

	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// DisplayDate renders NEWS_DT as dd/mm/yyyy, falling back to the date part
// of the raw string when unparsable.
func (r AnnouncementRow) DisplayDate() string {
	if t := r.ParseNewsDate(); !t.IsZero() {
		return t.Format("02/01/2006")
	}
	if r.NewsDT == "" {
		return "No date"
	}
	return strings.SplitN(r.NewsDT, " ", 2)[0]
}

// announcementsResponse is the paged listing envelope. Table carries the
// rows, Table1 the total row count for pagination.
type announcementsResponse struct {
	Table  []AnnouncementRow `json:"Table"`
	Table1 []struct {
		RowCount int `json:"ROWCNT"`
	} `json:"Table1"`
}

// APIError represents an error from the repository API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("BSE API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// PDFNotFoundError indicates the attachment was absent from both the live
// and historical mirrors.
type PDFNotFoundError struct {
	AttachmentName string
	LastStatus     int
	LastURL        string
}

func (e *PDFNotFoundError) Error() string {
	return fmt.Sprintf("PDF %s not found on any mirror (last status: %d, url: %s)", e.AttachmentName, e.LastStatus, e.LastURL)
}
