package chart

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketlens/internal/common"
	"github.com/ternarybob/marketlens/internal/interfaces"
	"github.com/ternarybob/marketlens/internal/models"
)

// Service implements interfaces.ChartService by combining the headless
// renderer with the vision pattern detector.
type Service struct {
	renderer *Renderer
	detector *Detector
}

// NewService creates the chart service. The LLM service must be
// vision-capable.
func NewService(config *common.ChartConfig, llm interfaces.LLMService, logger arbor.ILogger) *Service {
	return &Service{
		renderer: NewRenderer(config, logger),
		detector: NewDetector(llm, logger),
	}
}

// Capture implements interfaces.ChartService.
func (s *Service) Capture(ctx context.Context, chartID string) ([]byte, error) {
	return s.renderer.Capture(ctx, chartID)
}

// DetectPattern implements interfaces.ChartService.
func (s *Service) DetectPattern(ctx context.Context, symbol string, image []byte) (*models.ChartPattern, error) {
	return s.detector.DetectPattern(ctx, symbol, image)
}
