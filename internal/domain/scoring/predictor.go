// Package scoring predicts an event's success rate from its description using a
// trained random-forest artifact.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kasakmasrani/CampusSync-AI/internal/ml/artifact"
	"github.com/kasakmasrani/CampusSync-AI/internal/ml/forest"
	"github.com/kasakmasrani/CampusSync-AI/pkg/metrics"
)

const (
	// ArtifactKind tags event model envelopes.
	ArtifactKind = "event_model"

	minSuccessRate = 30
	maxSuccessRate = 99
	maxEngagement  = 100
	engagementLift = 5
)

var (
	ErrInvalidInput     = errors.New("invalid prediction input")
	ErrModelUnavailable = errors.New("model unavailable")
)

// Model is the payload of the event model artifact.
type Model struct {
	Encoding    Encoding       `json:"encoding"`
	Features    []string       `json:"features"`
	Forest      *forest.Forest `json:"forest"`
	TrainedRows int            `json:"trained_rows"`
	R2          float64        `json:"r2"`
}

// Prediction is the post-processed model output.
type Prediction struct {
	SuccessRate       int    `json:"success_rate"`
	ExpectedAttendees int    `json:"expected_attendees"`
	Engagement        int    `json:"engagement"`
	Sentiment         string `json:"sentiment"`
}

// Predictor computes a Prediction for an event description.
type Predictor interface {
	Predict(ctx context.Context, in Input) (Prediction, error)
}

// ArtifactPredictor reads the model artifact from disk on every call, so a
// retrained model takes effect on the next request.
type ArtifactPredictor struct {
	path string
}

// NewArtifactPredictor creates a predictor backed by the artifact at path.
func NewArtifactPredictor(path string) *ArtifactPredictor {
	return &ArtifactPredictor{path: path}
}

// Predict loads the artifact, builds the feature vector, and post-processes the
// regression output. Artifact problems wrap ErrModelUnavailable.
func (p *ArtifactPredictor) Predict(ctx context.Context, in Input) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	if in.MaxCapacity < 1 {
		return Prediction{}, fmt.Errorf("%w: max_capacity must be at least 1", ErrInvalidInput)
	}
	m, err := LoadModel(p.path)
	if err != nil {
		return Prediction{}, err
	}
	raw, err := m.Forest.Predict(m.Encoding.Vector(in))
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	return Derive(raw, in.MaxCapacity), nil
}

// LoadModel reads and validates the event model artifact.
func LoadModel(path string) (*Model, error) {
	start := time.Now()
	var m Model
	if _, err := artifact.Load(path, ArtifactKind, SchemaVersion, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	metrics.RecordArtifactLoad(ArtifactKind, metrics.SinceMs(start))
	if m.Forest == nil || len(m.Forest.Trees) == 0 || m.Forest.NFeatures != len(FeatureNames) {
		return nil, fmt.Errorf("%w: %w: forest does not match the feature layout", ErrModelUnavailable, artifact.ErrArtifactCorrupt)
	}
	if m.Encoding.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: %w: encoding version %d", ErrModelUnavailable, artifact.ErrSchemaMismatch, m.Encoding.Version)
	}
	return &m, nil
}

// SaveModel atomically writes m as the event model artifact.
func SaveModel(path string, m *Model) error {
	return artifact.Save(path, ArtifactKind, SchemaVersion, m)
}

// Derive rounds the raw output half-to-even, clips it to [30, 99], and computes
// the dependent fields.
func Derive(raw float64, capacity int) Prediction {
	rate := int(math.RoundToEven(raw))
	rate = max(minSuccessRate, min(maxSuccessRate, rate))
	return Prediction{
		SuccessRate:       rate,
		ExpectedAttendees: int(math.RoundToEven(float64(rate*capacity) / 100)),
		Engagement:        min(maxEngagement, rate+engagementLift),
		Sentiment:         SentimentLabel(rate),
	}
}

// SentimentLabel maps a success rate to the predicted audience sentiment.
func SentimentLabel(rate int) string {
	switch {
	case rate > 70:
		return "Positive"
	case rate > 50:
		return "Neutral"
	default:
		return "Negative"
	}
}
