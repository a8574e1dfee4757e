package contextbuilder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PrudhviKosuri/Rival-Scan/internal/storage"
	"github.com/PrudhviKosuri/Rival-Scan/pkg/types"
)

func newTestBuilder(t *testing.T) (*Builder, *storage.ContextStore) {
	t.Helper()
	store, err := storage.NewContextStore(filepath.Join(t.TempDir(), "context.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewBuilder(store), store
}

func TestBuildContextAggregates(t *testing.T) {
	b, store := newTestBuilder(t)
	ctx := context.Background()

	require.NoError(t, store.StoreFact(ctx, "Acme", "company_profile",
		map[string]interface{}{"industry": "software"}, 0.8, "agent_ac", 720))
	v := 4.5
	require.NoError(t, store.StoreSignal(ctx, "Acme", "price_change", &v, nil, nil))
	require.NoError(t, store.StoreOutput(ctx, "req-1", "Acme", "agent_ac",
		map[string]interface{}{"x": float64(1)}, 3600))
	require.NoError(t, store.StoreOutput(ctx, "req-2", "Acme", "agent_at",
		map[string]interface{}{"x": float64(2)}, 3600))

	snap, err := b.BuildContext(ctx, "Acme", Options{})
	require.NoError(t, err)
	require.Equal(t, "Acme", snap.Entity)
	require.NotNil(t, snap.FactsCount)
	require.Equal(t, 1, *snap.FactsCount)
	require.Equal(t, 1, *snap.SignalsCount)
	require.Equal(t, 2, *snap.OutputsCount)
	require.Len(t, snap.OutputsByAgent, 2)
	require.Len(t, snap.OutputsByAgent["agent_ac"], 1)
	require.Contains(t, snap.SignalSummary, "price_change")
}

func TestBuildContextSkipsSections(t *testing.T) {
	b, store := newTestBuilder(t)
	ctx := context.Background()

	require.NoError(t, store.StoreFact(ctx, "Acme", "company_profile",
		map[string]interface{}{"a": true}, 0.9, "agent_ac", 0))

	snap, err := b.BuildContext(ctx, "Acme", Options{SkipFacts: true, SkipOutputs: true})
	require.NoError(t, err)
	require.Nil(t, snap.FactsCount)
	require.Nil(t, snap.OutputsCount)
	require.NotNil(t, snap.SignalsCount)
	require.Empty(t, snap.CachedFacts)
}

func TestSummarizeSignalsNumeric(t *testing.T) {
	newest, older, oldest := 10.0, -2.0, 4.0
	signals := []types.Signal{
		{SignalType: "price_change", Value: &newest, Timestamp: time.Now()},
		{SignalType: "price_change", Value: &older, Timestamp: time.Now().Add(-time.Hour)},
		{SignalType: "price_change", Value: &oldest, Timestamp: time.Now().Add(-2 * time.Hour)},
	}

	summary := SummarizeSignals(signals)
	pc := summary["price_change"]
	require.Equal(t, 3, pc.Count)
	require.Equal(t, -2.0, *pc.Min)
	require.Equal(t, 10.0, *pc.Max)
	require.Equal(t, 4.0, *pc.Avg)
	require.Equal(t, 10.0, *pc.Latest)
	require.Nil(t, pc.LatestTimestamp)
}

func TestSummarizeSignalsNonNumeric(t *testing.T) {
	ts := time.Now().UTC()
	signals := []types.Signal{
		{SignalType: "sentiment", Timestamp: ts},
		{SignalType: "sentiment", Timestamp: ts.Add(-time.Hour)},
	}

	summary := SummarizeSignals(signals)
	s := summary["sentiment"]
	require.Equal(t, 2, s.Count)
	require.Nil(t, s.Min)
	require.NotNil(t, s.LatestTimestamp)
	require.Equal(t, ts, *s.LatestTimestamp)
}

func TestEnrichWithContextStoresOutput(t *testing.T) {
	b, store := newTestBuilder(t)
	ctx := context.Background()

	output := map[string]interface{}{"company_name": "Acme"}
	enriched, err := b.EnrichWithContext(ctx, "Acme", output, "agent_ac", true)
	require.NoError(t, err)
	require.Equal(t, "Acme", enriched.Entity)
	require.Equal(t, "agent_ac", enriched.AgentName)
	require.Equal(t, output, enriched.AgentOutput)
	// Counts reflect state before this output was stored.
	require.Zero(t, enriched.Context.RecentOutputsCount)

	outs, err := store.GetRecentOutputs(ctx, "Acme", "", 10)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	require.Contains(t, outs[0].RequestID, "Acme_agent_ac_")
}

func TestExtractProfileFactGatedOnConfidence(t *testing.T) {
	b, store := newTestBuilder(t)
	ctx := context.Background()

	// Below threshold: dropped.
	require.NoError(t, b.ExtractAndStoreFacts(ctx, "Acme",
		map[string]interface{}{"confidence_score": 0.3}, "company_profile", 0.5))
	fact, err := store.GetFact(ctx, "Acme", "company_profile")
	require.NoError(t, err)
	require.Nil(t, fact)

	// Missing confidence key: dropped.
	require.NoError(t, b.ExtractAndStoreFacts(ctx, "Acme",
		map[string]interface{}{"industry": "software"}, "company_profile", 0.5))
	fact, err = store.GetFact(ctx, "Acme", "company_profile")
	require.NoError(t, err)
	require.Nil(t, fact)

	// At threshold: stored with a 30-day expiry.
	require.NoError(t, b.ExtractAndStoreFacts(ctx, "Acme",
		map[string]interface{}{"confidence_score": 0.5, "industry": "software"}, "company_profile", 0.5))
	fact, err = store.GetFact(ctx, "Acme", "company_profile")
	require.NoError(t, err)
	require.NotNil(t, fact)
	require.Equal(t, 0.5, fact.ConfidenceScore)
	require.Equal(t, "company_profile", fact.Source)
	require.NotNil(t, fact.ExpiresAt)
}

func TestExtractFinancialFactShortExpiry(t *testing.T) {
	b, store := newTestBuilder(t)
	ctx := context.Background()

	require.NoError(t, b.ExtractAndStoreFacts(ctx, "Acme",
		map[string]interface{}{"confidence_score": 0.9, "annual_turnover": "100M"},
		"financial_analysis", 0.5))

	fact, err := store.GetFact(ctx, "Acme", "financial_data")
	require.NoError(t, err)
	require.NotNil(t, fact)
	require.WithinDuration(t, time.Now().Add(168*time.Hour), *fact.ExpiresAt, time.Minute)
}

func TestExtractPriceSignalUngated(t *testing.T) {
	b, store := newTestBuilder(t)
	ctx := context.Background()

	// No confidence score required for signals.
	require.NoError(t, b.ExtractAndStoreFacts(ctx, "Acme",
		map[string]interface{}{"change_percentage": -7.5}, "price_changes", 0.5))

	signals, err := store.GetSignals(ctx, "Acme", "price_change", 168)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	require.Equal(t, -7.5, *signals[0].Value)
	require.Equal(t, "price_changes", signals[0].Metadata["agent"])

	// Missing change_percentage means nothing to promote.
	require.NoError(t, b.ExtractAndStoreFacts(ctx, "Acme",
		map[string]interface{}{"note": "no data"}, "price_changes", 0.5))
	signals, err = store.GetSignals(ctx, "Acme", "price_change", 168)
	require.NoError(t, err)
	require.Len(t, signals, 1)
}

func TestExtractUnknownAgentIsNoop(t *testing.T) {
	b, store := newTestBuilder(t)
	ctx := context.Background()

	require.NoError(t, b.ExtractAndStoreFacts(ctx, "Acme",
		map[string]interface{}{"confidence_score": 0.9}, "mystery_agent", 0.5))

	facts, err := store.GetAllFacts(ctx, "Acme")
	require.NoError(t, err)
	require.Empty(t, facts)
}
