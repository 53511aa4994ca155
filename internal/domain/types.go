package domain

import (
	"time"
)

// Direction is the side a strategy or signal is voting for.
type Direction string

const (
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
	Neutral Direction = "NEUTRAL"
)

// QualityTier classifies how trustworthy a consensus decision is.
type QualityTier string

const (
	TierHigh   QualityTier = "HIGH"
	TierMedium QualityTier = "MEDIUM"
	TierLow    QualityTier = "LOW"
)

// Priority is the scheduling class assigned by the market matcher.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
)

// Result is the terminal classification of a published signal.
type Result string

const (
	ResultWin     Result = "WIN"
	ResultLoss    Result = "LOSS"
	ResultTimeout Result = "TIMEOUT"
)

// Barrier names which exit condition resolved a signal.
type Barrier string

const (
	BarrierTarget  Barrier = "target"
	BarrierStop    Barrier = "stop"
	BarrierTimeout Barrier = "timeout"
)

// Candle is one OHLCV bar of the snapshot's recent history.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// MarketSnapshot is the normalized per-instrument tick delivered by the
// snapshot provider. Immutable for the duration of one scan.
type MarketSnapshot struct {
	Symbol        string    `json:"symbol"`
	LastPrice     float64   `json:"last_price"`
	Volume24h     float64   `json:"volume_24h"`
	Change24h     float64   `json:"change_24h"` // percent
	BookImbalance float64   `json:"book_imbalance"`
	FundingRate   float64   `json:"funding_rate"`
	Candles       []Candle  `json:"candles"`
	DataQuality   float64   `json:"data_quality"` // 0-100, venue corroboration
	Degraded      bool      `json:"degraded"`     // served from last-known-good
	Timestamp     time.Time `json:"timestamp"`
}

// StrategyVote is one detector's directional opinion for a single scan.
// Ephemeral: only the consensus aggregate is persisted.
type StrategyVote struct {
	Strategy   string    `json:"strategy"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"` // 0-100
	Patterns   []string  `json:"patterns,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RegimeState is the regime classification recomputed fresh every scan.
type RegimeState struct {
	Regime        Regime  `json:"regime"`
	Confidence    float64 `json:"confidence"` // 0-100
	TrendStrength float64 `json:"trend_strength"`
	Volatility    float64 `json:"volatility"` // annualized realized vol estimate
}

// Regime labels current market behavior.
type Regime string

const (
	TrendingUp       Regime = "trending_up"
	TrendingDown     Regime = "trending_down"
	RangingLowVol    Regime = "ranging_low_vol"
	RangingHighVol   Regime = "ranging_high_vol"
	VolatileBreakout Regime = "volatile_breakout"
	Choppy           Regime = "choppy"
	Accumulation     Regime = "accumulation"
)

// HighVolatility reports whether the regime implies elevated volatility
// independent of the numeric estimate.
func (r Regime) HighVolatility() bool {
	return r == VolatileBreakout || r == RangingHighVol
}

// Trending reports whether the regime is directional.
func (r Regime) Trending() bool {
	return r == TrendingUp || r == TrendingDown || r == VolatileBreakout
}

// ConsensusDecision is the single weighted decision produced per scan when
// votes are non-trivial. Never mutated after creation.
type ConsensusDecision struct {
	Symbol        string         `json:"symbol"`
	Direction     Direction      `json:"direction"`
	Confidence    float64        `json:"confidence"` // weighted, 0-100
	Agreement     float64        `json:"agreement"`  // 0-1
	AgreeingVotes int            `json:"agreeing_votes"`
	Tier          QualityTier    `json:"tier"`
	Regime        RegimeState    `json:"regime"`
	Votes         []StrategyVote `json:"votes"`
	Timestamp     time.Time      `json:"timestamp"`
}

// AdmittedDecision is a consensus decision the market matcher let through.
type AdmittedDecision struct {
	ConsensusDecision
	Priority        Priority  `json:"priority"`
	AdmissionReason string    `json:"admission_reason"`
	AdmittedAt      time.Time `json:"admitted_at"`
}

// FilteredSignal is the authoritative accept/reject record from the quality
// gate. Rejected signals are persisted for audit and learning.
type FilteredSignal struct {
	ID string `json:"id"`
	AdmittedDecision
	Originator     string    `json:"originator"`      // highest-confidence agreeing strategy
	QualityScore   float64   `json:"quality_score"`   // 0-100
	WinProbability float64   `json:"win_probability"` // 0-1
	Entry          float64   `json:"entry"`
	Stop           float64   `json:"stop"`
	Targets        []float64 `json:"targets"` // 3 tiers, nearest first
	RiskReward     float64   `json:"risk_reward"`
	Features       []float64 `json:"features"` // scorer input, replayed on restart
	Rejected       bool      `json:"rejected"`
	RejectReason   string    `json:"reject_reason,omitempty"`
	FilteredAt     time.Time `json:"filtered_at"`
}

// PublishedSignal is an accepted signal owned by the lifecycle manager from
// publish until outcome.
type PublishedSignal struct {
	FilteredSignal
	DedupKey    string        `json:"dedup_key"` // symbol|direction
	TimeLimit   time.Duration `json:"time_limit"`
	PublishedAt time.Time     `json:"published_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Outcome     *Outcome      `json:"outcome,omitempty"` // attached exactly once
}

// Outcome is the terminal result of a published signal.
type Outcome struct {
	SignalID   string        `json:"signal_id"`
	Symbol     string        `json:"symbol"`
	Result     Result        `json:"result"`
	Barrier    Barrier       `json:"barrier"`
	ExitPrice  float64       `json:"exit_price"`
	ReturnPct  float64       `json:"return_pct"`
	Duration   time.Duration `json:"duration"`
	ResolvedAt time.Time     `json:"resolved_at"`
}

// DedupKey builds the lifecycle dedup key for a symbol and direction.
func DedupKey(symbol string, dir Direction) string {
	return symbol + "|" + string(dir)
}
