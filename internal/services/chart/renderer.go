// Package chart renders candlestick charts headless and runs the two-stage
// vision pattern detection on the captured image.
package chart

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/common"
)

// popupSelectors are tried in order after page load. The chart site shows
// promo and cookie dialogs that would otherwise cover the canvas.
var popupSelectors = []string{
	`button[aria-label="Close"]`,
	`div.tv-dialog__close`,
	`button[data-name="close"]`,
	`div[class*="close-button"]`,
}

// canvasCaptureJS finds the main chart canvas and returns it as a PNG data
// URL. The primary pane canvas is preferred; when it is absent the largest
// canvas on the page is used.
const canvasCaptureJS = `(() => {
	let canvas = document.querySelector('div[data-name="pane-0"] canvas');
	if (!canvas) {
		const all = Array.from(document.querySelectorAll('canvas'));
		if (all.length === 0) {
			return "";
		}
		canvas = all.reduce((a, b) => (a.width * a.height >= b.width * b.height ? a : b));
	}
	return canvas.toDataURL("image/png");
})()`

// Renderer captures chart screenshots with a headless browser.
type Renderer struct {
	config *common.ChartConfig
	logger arbor.ILogger
}

// NewRenderer creates a chart renderer.
func NewRenderer(config *common.ChartConfig, logger arbor.ILogger) *Renderer {
	return &Renderer{
		config: config,
		logger: logger,
	}
}

// Capture opens the chart page for chartID, waits for the chart to settle,
// dismisses popups and returns the chart canvas as a PNG.
func (r *Renderer) Capture(ctx context.Context, chartID string) ([]byte, error) {
	chartURL := fmt.Sprintf(r.config.BaseURL, chartID)
	if r.config.Interval != "" {
		chartURL += "&interval=" + r.config.Interval
	}

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	defer allocatorCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	defer browserCancel()

	renderCtx, renderCancel := context.WithTimeout(browserCtx, common.Duration(r.config.RenderTimeout, 90*time.Second))
	defer renderCancel()

	settleWait := common.Duration(r.config.SettleWait, 6*time.Second)

	r.logger.Debug().
		Str("chart_id", chartID).
		Str("url", chartURL).
		Msg("Rendering chart")

	var dataURL string
	err := chromedp.Run(renderCtx,
		emulation.SetDeviceMetricsOverride(int64(r.config.ViewportWidth), int64(r.config.ViewportHeight), 1, false),
		chromedp.Navigate(chartURL),
		chromedp.Sleep(settleWait),
		r.dismissPopups(),
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(canvasCaptureJS, &dataURL),
	)
	if err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	if dataURL == "" {
		return nil, fmt.Errorf("no canvas found on chart page")
	}

	return decodeDataURL(dataURL)
}

// dismissPopups clicks the first matching popup close button, trying each
// selector in order. Missing popups are not an error.
func (r *Renderer) dismissPopups() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, selector := range popupSelectors {
			clickJS := fmt.Sprintf(`(() => {
				const el = document.querySelector(%q);
				if (el) { el.click(); return true; }
				return false;
			})()`, selector)

			var clicked bool
			if err := chromedp.Evaluate(clickJS, &clicked).Do(ctx); err != nil {
				continue
			}
			if clicked {
				r.logger.Debug().
					Str("selector", selector).
					Msg("Dismissed chart popup")
				return chromedp.Sleep(time.Second).Do(ctx)
			}
		}
		return nil
	})
}

// decodeDataURL decodes a "data:image/png;base64,..." payload.
func decodeDataURL(dataURL string) ([]byte, error) {
	idx := strings.Index(dataURL, "base64,")
	if idx < 0 {
		return nil, fmt.Errorf("unexpected canvas data url format")
	}
	image, err := base64.StdEncoding.DecodeString(dataURL[idx+len("base64,"):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode canvas image: %w", err)
	}
	return image, nil
}
