package types

import "time"

// Fact is a long-lived, type-deduplicated record about an entity. Re-storing
// the same (entity, fact_type) pair overwrites in place.
type Fact struct {
	Entity          string                 `json:"entity,omitempty"`
	FactType        string                 `json:"fact_type"`
	Data            map[string]interface{} `json:"data"`
	ConfidenceScore float64                `json:"confidence_score"`
	Source          string                 `json:"source,omitempty"`
	CreatedAt       time.Time              `json:"created_at,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at,omitempty"`
	ExpiresAt       *time.Time             `json:"expires_at,omitempty"`
}

// Signal is one append-only time-series observation. Signals never expire
// individually; reads filter by a caller-supplied lookback window.
type Signal struct {
	Entity     string                 `json:"entity,omitempty"`
	SignalType string                 `json:"signal_type"`
	Value      *float64               `json:"signal_value,omitempty"`
	Data       map[string]interface{} `json:"signal_data,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// RecentOutput is a short-lived cached agent output. Its lifetime is computed
// at read time from its own TTL, not from a global expiry column.
type RecentOutput struct {
	RequestID  string                 `json:"request_id"`
	Entity     string                 `json:"entity,omitempty"`
	AgentName  string                 `json:"agent_name"`
	Data       map[string]interface{} `json:"output_data"`
	Timestamp  time.Time              `json:"timestamp"`
	TTLSeconds int                    `json:"ttl_seconds,omitempty"`
}

// SignalSummary aggregates one signal type inside a context snapshot. For
// numeric signals Count/Min/Max/Avg/Latest are populated; for non-numeric
// signal types only Count and LatestTimestamp are set.
type SignalSummary struct {
	Count           int        `json:"count"`
	Min             *float64   `json:"min,omitempty"`
	Max             *float64   `json:"max,omitempty"`
	Avg             *float64   `json:"avg,omitempty"`
	Latest          *float64   `json:"latest,omitempty"`
	LatestTimestamp *time.Time `json:"latest_timestamp,omitempty"`
}

// ContextSnapshot is a read-only view of an entity's current facts, recent
// signals, and recent outputs.
type ContextSnapshot struct {
	Entity            string                    `json:"entity"`
	BuiltAt           time.Time                 `json:"built_at"`
	CachedFacts       []Fact                    `json:"cached_facts"`
	FactsCount        *int                      `json:"facts_count,omitempty"`
	HistoricalSignals []Signal                  `json:"historical_signals"`
	SignalsCount      *int                      `json:"signals_count,omitempty"`
	SignalSummary     map[string]SignalSummary  `json:"signal_summary,omitempty"`
	RecentOutputs     []RecentOutput            `json:"recent_outputs"`
	OutputsCount      *int                      `json:"outputs_count,omitempty"`
	OutputsByAgent    map[string][]RecentOutput `json:"outputs_by_agent,omitempty"`
}

// ContextCounts is the bounded summary embedded into enriched outputs instead
// of the full snapshot, to keep payload growth in check.
type ContextCounts struct {
	CachedFactsCount       int                      `json:"cached_facts_count"`
	HistoricalSignalsCount int                      `json:"historical_signals_count"`
	RecentOutputsCount     int                      `json:"recent_outputs_count"`
	SignalSummary          map[string]SignalSummary `json:"signal_summary"`
}

// EnrichedOutput wraps a raw agent output with entity scope and context counts.
type EnrichedOutput struct {
	Entity      string                 `json:"entity"`
	AgentName   string                 `json:"agent_name"`
	Timestamp   time.Time              `json:"timestamp"`
	AgentOutput map[string]interface{} `json:"agent_output"`
	Context     ContextCounts          `json:"context"`
}
