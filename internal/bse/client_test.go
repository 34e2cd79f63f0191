package bse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAnnouncementsPaginates(t *testing.T) {
	pages := map[string]string{
		"1": `{"Table":[{"NEWS_DT":"2026-08-20T10:00:00","HEADLINE":"Board Meeting","ATTACHMENTNAME":"a.pdf"}],"Table1":[{"ROWCNT":2}]}`,
		"2": `{"Table":[{"NEWS_DT":"2026-08-18T10:00:00","HEADLINE":"Dividend","ATTACHMENTNAME":"b.pdf"}],"Table1":[{"ROWCNT":2}]}`,
	}

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		body, ok := pages[r.URL.Query().Get("pageno")]
		if !ok {
			body = `{"Table":[],"Table1":[]}`
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithRateLimit(time.Millisecond),
	)

	rows, err := client.GetAnnouncements(context.Background(), "500325",
		time.Now().AddDate(0, 0, -60), time.Now())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "Board Meeting", rows[0].BestHeading())
	// ROWCNT satisfied after page 2, no further requests
	assert.Equal(t, 2, requests)
}

func TestGetAnnouncementsStopsOnEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Table":[],"Table1":[]}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(time.Millisecond))

	rows, err := client.GetAnnouncements(context.Background(), "500325",
		time.Now().AddDate(0, 0, -60), time.Now())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetAnnouncementsHonorsPageCap(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		// Never-ending listing that lies about its total
		fmt.Fprint(w, `{"Table":[{"NEWS_DT":"2026-08-20T10:00:00","HEADLINE":"Spam"}],"Table1":[{"ROWCNT":9999}]}`)
	}))
	defer server.Close()

	client := NewClient(
		WithBaseURL(server.URL),
		WithRateLimit(time.Millisecond),
		WithMaxPages(3),
	)

	rows, err := client.GetAnnouncements(context.Background(), "500325",
		time.Now().AddDate(0, 0, -60), time.Now())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, 3, requests)
}

func TestGetAnnouncementsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(time.Millisecond))

	_, err := client.GetAnnouncements(context.Background(), "500325",
		time.Now().AddDate(0, 0, -60), time.Now())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestDownloadPDFFallsBackToHistoricalMirror(t *testing.T) {
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer live.Close()

	historical := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 test"))
	}))
	defer historical.Close()

	client := NewClient(
		WithMirrors(live.URL+"/", historical.URL+"/"),
		WithRateLimit(time.Millisecond),
	)

	body, servedURL, err := client.DownloadPDF(context.Background(), "abcd1234.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 test"), body)
	assert.Equal(t, historical.URL+"/abcd1234.pdf", servedURL)
}

func TestDownloadPDFNotFoundOnAnyMirror(t *testing.T) {
	miss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer miss.Close()

	client := NewClient(
		WithMirrors(miss.URL+"/", miss.URL+"/"),
		WithRateLimit(time.Millisecond),
	)

	_, _, err := client.DownloadPDF(context.Background(), "gone.pdf")
	require.Error(t, err)
	var notFound *PDFNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "gone.pdf", notFound.AttachmentName)
	assert.Equal(t, http.StatusForbidden, notFound.LastStatus)
}

func TestParseNewsDate(t *testing.T) {
	tests := []struct {
		raw      string
		parsable bool
	}{
		{"2026-08-20T10:30:00", true},
		{"2026-08-20T10:30:00.123", true},
		{"2026-08-20T10:30:00Z", true},
		{"2026-08-20", true},
		{"garbage", false},
		{"", false},
	}

	for _, tt := range tests {
		row := AnnouncementRow{NewsDT: tt.raw}
		if tt.parsable {
			assert.False(t, row.ParseNewsDate().IsZero(), "expected %q to parse", tt.raw)
		} else {
			assert.True(t, row.ParseNewsDate().IsZero(), "expected %q not to parse", tt.raw)
		}
	}
}

func TestDisplayDate(t *testing.T) {
	assert.Equal(t, "20/08/2026", AnnouncementRow{NewsDT: "2026-08-20T10:30:00"}.DisplayDate())
	assert.Equal(t, "No date", AnnouncementRow{}.DisplayDate())
	assert.Equal(t, "bad-date", AnnouncementRow{NewsDT: "bad-date extra"}.DisplayDate())
}

func TestBestHeading(t *testing.T) {
	assert.Equal(t, "Primary", AnnouncementRow{Heading: "Primary", Headline: "Secondary"}.BestHeading())
	assert.Equal(t, "Secondary", AnnouncementRow{Headline: "Secondary"}.BestHeading())
	assert.Equal(t, "No heading", AnnouncementRow{}.BestHeading())
}
