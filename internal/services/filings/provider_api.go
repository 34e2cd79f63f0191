package filings

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/bse"
	"github.com/ternarybob/marketlens/internal/models"
)

// APIProvider fetches the announcement listing from the exchange JSON API.
// It is the primary provider; the HTML provider covers outages of the API.
type APIProvider struct {
	client *bse.Client
	logger arbor.ILogger
}

// NewAPIProvider creates the JSON API announcement provider.
func NewAPIProvider(client *bse.Client, logger arbor.ILogger) *APIProvider {
	return &APIProvider{
		client: client,
		logger: logger,
	}
}

// Name implements interfaces.AnnouncementProvider.
func (p *APIProvider) Name() string {
	return "api"
}

// FetchAnnouncements implements interfaces.AnnouncementProvider. The client
// handles pagination internally; rows are returned in published order.
func (p *APIProvider) FetchAnnouncements(ctx context.Context, scripCode string, lookbackDays int) ([]models.Announcement, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -lookbackDays)

	rows, err := p.client.GetAnnouncements(ctx, scripCode, from, to)
	if err != nil {
		return nil, err
	}

	announcements := make([]models.Announcement, 0, len(rows))
	for _, row := range rows {
		announcements = append(announcements, models.Announcement{
			Heading:        row.BestHeading(),
			Category:       row.CategoryName,
			Date:           row.DisplayDate(),
			ParsedDate:     row.ParseNewsDate(),
			AttachmentName: row.AttachmentName,
		})
	}

	p.logger.Debug().
		Str("scrip_code", scripCode).
		Int("rows", len(announcements)).
		Msg("Fetched announcements from API")

	return announcements, nil
}
