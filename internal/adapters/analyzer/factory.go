package analyzer

import (
	"context"
	"fmt"

	"github.com/okian/facepace/internal/config"
	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/logger"
)

// Analyzer is implemented by Client and Simulated.
type Analyzer interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisReport, error)
}

// NewFromConfig returns the analyzer selected by cfg.AnalysisMode.
func NewFromConfig(cfg *config.Config, l logger.Logger) (Analyzer, error) {
	switch cfg.AnalysisMode {
	case config.AnalysisRemote:
		return NewClient(cfg.AnalysisEndpoint, WithTimeout(cfg.AnalysisTimeout()), WithLogger(l))
	case config.AnalysisSimulated:
		if l != nil {
			l.Warn(context.Background(), "analysis mode is simulated; reports are demo data and flagged as such")
		}
		return NewSimulated(WithSimulatedLogger(l)), nil
	default:
		return nil, fmt.Errorf("unknown analysis mode %q", cfg.AnalysisMode)
	}
}
