package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/logger"
	"github.com/okian/facepace/pkg/metrics"
)

// Default simulated latency range.
const (
	defaultMinLatency = 80 * time.Millisecond
	defaultMaxLatency = 150 * time.Millisecond
)

// SimulatedOption configures a Simulated analyzer.
type SimulatedOption func(*Simulated)

// WithLatencyRange sets the simulated service latency.
func WithLatencyRange(minLatency, maxLatency time.Duration) SimulatedOption {
	return func(s *Simulated) {
		if minLatency >= 0 && maxLatency >= minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// WithSimulatedLogger sets the logger.
func WithSimulatedLogger(l logger.Logger) SimulatedOption {
	return func(s *Simulated) {
		if l != nil {
			s.logger = l
		}
	}
}

// Simulated produces deterministic demo reports. It is only used when
// configured explicitly, and every report it returns has Simulated set.
type Simulated struct {
	minLatency time.Duration
	maxLatency time.Duration
	logger     logger.Logger
}

// NewSimulated creates the demo analyzer.
func NewSimulated(opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("analyzer-simulated")
	return s
}

// Analyze derives a report from the request. The same request always yields
// the same report.
func (s *Simulated) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisReport, error) {
	if req.VideoRef == "" || req.ImageRef == "" {
		return nil, fmt.Errorf("%w: request without media references", model.ErrMissingAsset)
	}
	if err := model.ValidateAge(req.DeclaredAge); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(req.VideoRef + "\x00" + req.ImageRef))
	rng := rand.New(rand.NewSource(int64(h.Sum64()) ^ int64(req.DeclaredAge))) //nolint:gosec // deterministic demo values

	latency := s.minLatency
	if span := s.maxLatency - s.minLatency; span > 0 {
		latency += time.Duration(rng.Int63n(int64(span)))
	}
	start := time.Now()
	select {
	case <-ctx.Done():
		metrics.RecordAnalysis("canceled", float64(time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-time.After(latency):
	}

	pace := round(0.6+rng.Float64()*0.8, 2)
	functional := math.Max(1, math.Round(float64(req.DeclaredAge)*pace))
	diff := functional - float64(req.DeclaredAge)

	report := &model.AnalysisReport{
		PaceOfAging:             num(pace),
		FunctionalAge:           num(functional),
		BiologicalAgeDifference: describeDifference(diff),
		HR:                      num(round(55+rng.Float64()*30, 0)),
		SDNN:                    num(round(20+rng.Float64()*60, 1)),
		RMSSD:                   num(round(15+rng.Float64()*70, 1)),
		PNN50:                   num(round(rng.Float64()*40, 1)),
		NN50:                    num(round(rng.Float64()*60, 0)),
		Acne:                    subScore(rng, "skin clarity"),
		EyeBags:                 subScore(rng, "under-eye puffiness"),
		BrainHealth:             subScore(rng, "cognitive vitality"),
		Simulated:               true,
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode simulated report: %w", err)
	}
	report.Raw = raw

	metrics.RecordAnalysis("simulated", float64(time.Since(start).Milliseconds()))
	s.logger.Debug(ctx, "simulated report produced", logger.Int("age", req.DeclaredAge))
	return report, nil
}

func subScore(rng *rand.Rand, subject string) *model.SubScore {
	score := rng.Intn(11)
	var level string
	switch {
	case score <= 3:
		level = "low"
	case score <= 6:
		level = "moderate"
	default:
		level = "high"
	}
	return &model.SubScore{
		Description: fmt.Sprintf("%s %s", level, subject),
		Score:       model.Number(strconv.Itoa(score)),
	}
}

func describeDifference(diff float64) string {
	switch {
	case diff < 0:
		return fmt.Sprintf("%.0f years younger than declared", -diff)
	case diff > 0:
		return fmt.Sprintf("%.0f years older than declared", diff)
	default:
		return "in line with declared age"
	}
}

func num(v float64) model.Number {
	return model.Number(strconv.FormatFloat(v, 'f', -1, 64))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
