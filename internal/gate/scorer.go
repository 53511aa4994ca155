package gate

import (
	"math"
	"sync"
)

// Features is the fixed vector fed to the win-probability scorer. Every
// component is normalized to [0, 1] before training or prediction.
type Features struct {
	PatternStrength float64 `json:"pattern_strength"`
	Agreement       float64 `json:"agreement"`
	RiskReward      float64 `json:"risk_reward"`
	Liquidity       float64 `json:"liquidity"`
	DataQuality     float64 `json:"data_quality"`
	RegimeFit       float64 `json:"regime_fit"`
}

// Vector flattens the features in a stable order.
func (f Features) Vector() []float64 {
	return []float64{
		f.PatternStrength, f.Agreement, f.RiskReward,
		f.Liquidity, f.DataQuality, f.RegimeFit,
	}
}

// FeaturesFromVector rebuilds a Features value from a persisted vector. Short
// vectors zero-fill so replaying records from an older schema cannot panic.
func FeaturesFromVector(v []float64) Features {
	padded := make([]float64, 6)
	copy(padded, v)
	return Features{
		PatternStrength: padded[0],
		Agreement:       padded[1],
		RiskReward:      padded[2],
		Liquidity:       padded[3],
		DataQuality:     padded[4],
		RegimeFit:       padded[5],
	}
}

// LogisticScorer is the online-trainable win-probability model. Incremental
// SGD keeps retraining cheap enough to run on every outcome; reads happen
// concurrently from the scan path, so weights live behind the lock.
type LogisticScorer struct {
	mu           sync.RWMutex
	weights      []float64
	bias         float64
	learningRate float64
	samples      int
	correct      int
}

// NewLogisticScorer seeds a mildly optimistic prior so cold-start
// predictions hover just above 0.5 for strong feature vectors.
func NewLogisticScorer(learningRate float64) *LogisticScorer {
	if learningRate <= 0 {
		learningRate = 0.05
	}
	return &LogisticScorer{
		weights:      []float64{0.6, 0.5, 0.3, 0.2, 0.2, 0.4},
		bias:         -1.0,
		learningRate: learningRate,
	}
}

// Predict returns the win probability in [0, 1].
func (s *LogisticScorer) Predict(f Features) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sigmoid(s.dot(f))
}

// Train performs one SGD step toward the label (1 win, 0 loss, 0.5 timeout
// partial credit) and updates the rolling accuracy statistics.
func (s *LogisticScorer) Train(f Features, label float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pred := sigmoid(s.dot(f))
	grad := pred - label
	vec := f.Vector()
	for i := range s.weights {
		s.weights[i] -= s.learningRate * grad * vec[i]
	}
	s.bias -= s.learningRate * grad

	// Only decisive labels count toward accuracy; a 0.5 label has no side.
	if label != 0.5 {
		s.samples++
		if (pred >= 0.5) == (label >= 0.5) {
			s.correct++
		}
	}
}

// Accuracy returns the live model accuracy over decisive outcomes and the
// decisive sample count.
func (s *LogisticScorer) Accuracy() (float64, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.samples == 0 {
		return 0, 0
	}
	return float64(s.correct) / float64(s.samples), s.samples
}

func (s *LogisticScorer) dot(f Features) float64 {
	sum := s.bias
	for i, v := range f.Vector() {
		sum += s.weights[i] * v
	}
	return sum
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
