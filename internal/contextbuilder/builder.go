package contextbuilder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PrudhviKosuri/Rival-Scan/internal/logger"
	"github.com/PrudhviKosuri/Rival-Scan/internal/storage"
	"github.com/PrudhviKosuri/Rival-Scan/pkg/types"
)

// Builder composes entity context snapshots and runs the write path that
// promotes fresh agent outputs into facts and signals.
type Builder struct {
	store *storage.ContextStore
}

// NewBuilder wires a builder over the context store.
func NewBuilder(store *storage.ContextStore) *Builder {
	return &Builder{store: store}
}

// Options narrows what a snapshot includes. The zero value of each Include
// flag means "include"; SignalHoursBack of zero uses the default window.
type Options struct {
	SkipFacts       bool
	SkipSignals     bool
	SkipOutputs     bool
	SignalHoursBack int
}

// BuildContext assembles the read-only snapshot of an entity's facts,
// signal summaries, and recent outputs grouped by agent.
func (b *Builder) BuildContext(ctx context.Context, entity string, opts Options) (*types.ContextSnapshot, error) {
	snap := &types.ContextSnapshot{
		Entity:            entity,
		BuiltAt:           time.Now().UTC(),
		CachedFacts:       []types.Fact{},
		HistoricalSignals: []types.Signal{},
		RecentOutputs:     []types.RecentOutput{},
	}

	if !opts.SkipFacts {
		facts, err := b.store.GetAllFacts(ctx, entity)
		if err != nil {
			return nil, err
		}
		snap.CachedFacts = facts
		n := len(facts)
		snap.FactsCount = &n
	}

	if !opts.SkipSignals {
		signals, err := b.store.GetSignals(ctx, entity, "", opts.SignalHoursBack)
		if err != nil {
			return nil, err
		}
		snap.HistoricalSignals = signals
		n := len(signals)
		snap.SignalsCount = &n
		if len(signals) > 0 {
			snap.SignalSummary = SummarizeSignals(signals)
		}
	}

	if !opts.SkipOutputs {
		outputs, err := b.store.GetRecentOutputs(ctx, entity, "", 20)
		if err != nil {
			return nil, err
		}
		snap.RecentOutputs = outputs
		n := len(outputs)
		snap.OutputsCount = &n

		byAgent := map[string][]types.RecentOutput{}
		for _, out := range outputs {
			byAgent[out.AgentName] = append(byAgent[out.AgentName], out)
		}
		snap.OutputsByAgent = byAgent
	}

	return snap, nil
}

// SummarizeSignals aggregates signals per type. Signals must arrive newest
// first; the first numeric value per type becomes "latest". Types with no
// numeric values report only a count and the newest timestamp.
func SummarizeSignals(signals []types.Signal) map[string]types.SignalSummary {
	byType := map[string][]types.Signal{}
	order := []string{}
	for _, sig := range signals {
		if _, seen := byType[sig.SignalType]; !seen {
			order = append(order, sig.SignalType)
		}
		byType[sig.SignalType] = append(byType[sig.SignalType], sig)
	}

	summary := make(map[string]types.SignalSummary, len(order))
	for _, sigType := range order {
		group := byType[sigType]
		values := []float64{}
		for _, sig := range group {
			if sig.Value != nil {
				values = append(values, *sig.Value)
			}
		}
		if len(values) == 0 {
			ts := group[0].Timestamp
			summary[sigType] = types.SignalSummary{
				Count:           len(group),
				LatestTimestamp: &ts,
			}
			continue
		}

		min, max, sum := values[0], values[0], 0.0
		for _, v := range values {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			sum += v
		}
		avg := sum / float64(len(values))
		latest := values[0]
		summary[sigType] = types.SignalSummary{
			Count:  len(values),
			Min:    &min,
			Max:    &max,
			Avg:    &avg,
			Latest: &latest,
		}
	}
	return summary
}

// EnrichWithContext wraps a raw agent output with context counts and, when
// store is set, records it as a recent output.
func (b *Builder) EnrichWithContext(ctx context.Context, entity string, agentOutput map[string]interface{}, agentName string, store bool) (*types.EnrichedOutput, error) {
	snap, err := b.BuildContext(ctx, entity, Options{})
	if err != nil {
		return nil, err
	}

	counts := types.ContextCounts{SignalSummary: map[string]types.SignalSummary{}}
	if snap.FactsCount != nil {
		counts.CachedFactsCount = *snap.FactsCount
	}
	if snap.SignalsCount != nil {
		counts.HistoricalSignalsCount = *snap.SignalsCount
	}
	if snap.OutputsCount != nil {
		counts.RecentOutputsCount = *snap.OutputsCount
	}
	if snap.SignalSummary != nil {
		counts.SignalSummary = snap.SignalSummary
	}

	now := time.Now().UTC()
	enriched := &types.EnrichedOutput{
		Entity:      entity,
		AgentName:   agentName,
		Timestamp:   now,
		AgentOutput: agentOutput,
		Context:     counts,
	}

	if store {
		requestID := fmt.Sprintf("%s_%s_%d", entity, agentName, now.UnixNano())
		if err := b.store.StoreOutput(ctx, requestID, entity, agentName, agentOutput, 0); err != nil {
			return nil, err
		}
	}
	return enriched, nil
}

// extractionKind classifies what an agent's output promotes into.
type extractionKind int

const (
	extractNone extractionKind = iota
	extractProfileFact
	extractFinancialFact
	extractPriceSignal
	extractLaunchFact
)

// classifyAgent maps an agent name to its extraction kind by ordered
// substring matching.
func classifyAgent(agentName string) extractionKind {
	lowered := strings.ToLower(agentName)
	switch {
	case agentName == "company_profile" || strings.Contains(lowered, "profile"):
		return extractProfileFact
	case agentName == "financial_analysis" || strings.Contains(lowered, "financial"):
		return extractFinancialFact
	case agentName == "price_changes" || strings.Contains(lowered, "price"):
		return extractPriceSignal
	case agentName == "product_launches" || strings.Contains(lowered, "launch"):
		return extractLaunchFact
	default:
		return extractNone
	}
}

type factRule struct {
	FactType       string
	ExpiresInHours int
}

// factRules holds the promotion parameters for fact-producing kinds.
// Financial data changes often, so it carries a shorter expiry.
var factRules = map[extractionKind]factRule{
	extractProfileFact:   {FactType: "company_profile", ExpiresInHours: 720},
	extractFinancialFact: {FactType: "financial_data", ExpiresInHours: 168},
	extractLaunchFact:    {FactType: "product_launch", ExpiresInHours: 720},
}

// ExtractAndStoreFacts promotes a fresh agent output into the context store.
// Fact-producing outputs are gated on a present confidence score meeting the
// threshold; price outputs become ungated signals keyed on change_percentage.
func (b *Builder) ExtractAndStoreFacts(ctx context.Context, entity string, agentOutput map[string]interface{}, agentName string, confidenceThreshold float64) error {
	kind := classifyAgent(agentName)
	switch kind {
	case extractNone:
		return nil

	case extractPriceSignal:
		raw, ok := agentOutput["change_percentage"]
		if !ok {
			return nil
		}
		var value *float64
		if v, ok := toFloat(raw); ok {
			value = &v
		}
		return b.store.StoreSignal(ctx, entity, "price_change", value, agentOutput,
			map[string]interface{}{"agent": agentName})

	default:
		rule := factRules[kind]
		raw, ok := agentOutput["confidence_score"]
		if !ok {
			return nil
		}
		conf, ok := toFloat(raw)
		if !ok || conf < confidenceThreshold {
			logger.Logger.Debug().
				Str("entity", entity).
				Str("agent", agentName).
				Str("fact_type", rule.FactType).
				Msg("Skipping low-confidence fact")
			return nil
		}
		return b.store.StoreFact(ctx, entity, rule.FactType, agentOutput, conf, agentName, rule.ExpiresInHours)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
