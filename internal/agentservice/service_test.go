package agentservice

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PrudhviKosuri/Rival-Scan/internal/llm"
	"github.com/PrudhviKosuri/Rival-Scan/internal/schema"
	"github.com/PrudhviKosuri/Rival-Scan/internal/storage"
	"github.com/PrudhviKosuri/Rival-Scan/pkg/types"
)

type fakeGenerator struct {
	result llm.Result
	gotReq llm.Request
}

func (f *fakeGenerator) GenerateStructured(ctx context.Context, req llm.Request) llm.Result {
	f.gotReq = req
	return f.result
}

func newTestService(t *testing.T, gen Generator) (*Service, *storage.ManagedStore) {
	t.Helper()
	catalog, err := schema.NewCatalog()
	require.NoError(t, err)
	store, err := storage.NewManagedStore(filepath.Join(t.TempDir(), "managed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(gen, catalog, store), store
}

func validOverviewOutput() map[string]interface{} {
	return map[string]interface{}{
		"company_name":     "Acme Corp",
		"industry":         "software",
		"headquarters":     "Berlin",
		"key_products":     []interface{}{"Widget"},
		"business_model":   []interface{}{"SaaS"},
		"confidence_score": 0.85,
	}
}

func TestProcessStoresValidatedOutput(t *testing.T) {
	gen := &fakeGenerator{result: llm.Result{Data: validOverviewOutput()}}
	svc, store := newTestService(t, gen)

	result := svc.Process(context.Background(), ProcessParams{
		Entity:    "Acme",
		AgentType: "company_overview",
		Prompt:    "Analyze Acme",
		UseSearch: true,
	})
	require.True(t, result.Success)
	require.True(t, result.Validated)
	require.Equal(t, 0.85, result.ConfidenceScore)
	require.NotEmpty(t, result.StorageKey)
	require.NotNil(t, gen.gotReq.Schema)
	require.True(t, gen.gotReq.UseSearch)

	items, err := store.Retrieve(context.Background(), types.RetrieveFilter{Entity: "Acme"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, types.StorageTypeFact, items[0].StorageType)
	require.Equal(t, []string{"company_overview", "acme"}, items[0].Metadata.Tags)
	require.Equal(t, "gemini", items[0].Metadata.Source)

	// company_name was indexed.
	indexed, err := store.RetrieveByIndex(context.Background(), "company_name", "Acme Corp", "", 0)
	require.NoError(t, err)
	require.Len(t, indexed, 1)
}

func TestProcessPreservesInvalidData(t *testing.T) {
	bad := map[string]interface{}{"company_name": "Acme"} // missing required fields
	gen := &fakeGenerator{result: llm.Result{Data: bad}}
	svc, store := newTestService(t, gen)

	result := svc.Process(context.Background(), ProcessParams{
		Entity:    "Acme",
		AgentType: "company_overview",
		Prompt:    "Analyze Acme",
	})
	require.False(t, result.Success)
	require.Contains(t, result.Error, "Validation failed")
	require.Equal(t, bad, result.InvalidData)

	items, err := store.Retrieve(context.Background(), types.RetrieveFilter{Entity: "Acme"})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestProcessGenerationError(t *testing.T) {
	gen := &fakeGenerator{result: llm.Result{Err: "Generation failed: quota"}}
	svc, _ := newTestService(t, gen)

	result := svc.Process(context.Background(), ProcessParams{
		Entity:    "Acme",
		AgentType: "revenue_turnover",
		Prompt:    "Analyze Acme",
	})
	require.False(t, result.Success)
	require.Equal(t, "Generation failed: quota", result.Error)
}

func TestProcessBelowMinConfidenceSkipsStore(t *testing.T) {
	out := validOverviewOutput()
	out["confidence_score"] = 0.2
	gen := &fakeGenerator{result: llm.Result{Data: out}}
	svc, store := newTestService(t, gen)

	result := svc.Process(context.Background(), ProcessParams{
		Entity:        "Acme",
		AgentType:     "company_overview",
		Prompt:        "Analyze Acme",
		MinConfidence: 0.5,
	})
	require.True(t, result.Success)
	require.Empty(t, result.StorageKey)

	items, err := store.Retrieve(context.Background(), types.RetrieveFilter{Entity: "Acme"})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestProcessSentimentStoresAsSignal(t *testing.T) {
	gen := &fakeGenerator{result: llm.Result{Data: map[string]interface{}{
		"sentiment_summary": "Positive sentiment",
		"sentiment_score":   0.7,
		"confidence_score":  0.6,
	}}}
	svc, store := newTestService(t, gen)

	result := svc.Process(context.Background(), ProcessParams{
		Entity:    "Acme",
		AgentType: "sentiment",
		Prompt:    "Sentiment for Acme",
	})
	require.True(t, result.Success)

	items, err := store.Retrieve(context.Background(), types.RetrieveFilter{Entity: "Acme"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, types.StorageTypeSignal, items[0].StorageType)
}

func TestProcessCallerSuppliedSchema(t *testing.T) {
	gen := &fakeGenerator{result: llm.Result{Data: map[string]interface{}{"answer": "yes"}}}
	svc, store := newTestService(t, gen)

	customSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"answer": map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"answer"},
	}
	result := svc.Process(context.Background(), ProcessParams{
		Entity:    "Acme",
		AgentType: "custom_agent",
		Prompt:    "Ask",
		Schema:    customSchema,
	})
	require.True(t, result.Success)

	// Unknown agent types store as plain outputs.
	items, err := store.Retrieve(context.Background(), types.RetrieveFilter{Entity: "Acme"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, types.StorageTypeOutput, items[0].StorageType)
}
