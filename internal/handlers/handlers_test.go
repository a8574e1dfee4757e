package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/PrudhviKosuri/Rival-Scan/internal/agent"
	"github.com/PrudhviKosuri/Rival-Scan/internal/agentservice"
	"github.com/PrudhviKosuri/Rival-Scan/internal/background"
	"github.com/PrudhviKosuri/Rival-Scan/internal/contextbuilder"
	"github.com/PrudhviKosuri/Rival-Scan/internal/llm"
	"github.com/PrudhviKosuri/Rival-Scan/internal/orchestrator"
	"github.com/PrudhviKosuri/Rival-Scan/internal/router"
	"github.com/PrudhviKosuri/Rival-Scan/internal/schema"
	"github.com/PrudhviKosuri/Rival-Scan/internal/storage"
	"github.com/PrudhviKosuri/Rival-Scan/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type promptGenerator struct {
	results map[string]llm.Result
}

func (g *promptGenerator) GenerateStructured(_ context.Context, req llm.Request) llm.Result {
	for key, res := range g.results {
		if strings.Contains(req.Prompt, key) {
			return res
		}
	}
	return llm.Result{Err: "Generation failed: no scripted result"}
}

type testDeps struct {
	engine       *gin.Engine
	contextStore *storage.ContextStore
	managed      *storage.ManagedStore
	runner       *background.Runner
}

func newTestServer(t *testing.T, gen agentservice.Generator, agentNames []string, agentHandler http.Handler) *testDeps {
	t.Helper()
	dir := t.TempDir()

	cs, err := storage.NewContextStore(filepath.Join(dir, "context.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	ms, err := storage.NewManagedStore(filepath.Join(dir, "managed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ms.Close() })

	if agentHandler == nil {
		agentHandler = http.NewServeMux()
	}
	agentSrv := httptest.NewServer(agentHandler)
	t.Cleanup(agentSrv.Close)
	baseURLs := map[string]string{}
	for _, name := range agentNames {
		baseURLs[name] = agentSrv.URL + "/" + name
	}

	registry := agent.NewRegistry(baseURLs)
	client := agent.NewClient(registry, 5*time.Second)
	rt := router.NewRouter(registry, client)
	builder := contextbuilder.NewBuilder(cs)
	catalog, err := schema.NewCatalog()
	require.NoError(t, err)
	if gen == nil {
		gen = &promptGenerator{}
	}
	svc := agentservice.NewService(gen, catalog, ms)
	runner := background.NewRunner(32, 2)
	t.Cleanup(runner.Stop)
	driver := orchestrator.NewDriver(builder, rt, client, cs, ms, svc, runner, 0.3)

	h := &Handlers{
		Driver:       driver,
		Router:       rt,
		Registry:     registry,
		Client:       client,
		Builder:      builder,
		ContextStore: cs,
		Managed:      ms,
		AgentService: svc,
		Runner:       runner,
	}
	engine := gin.New()
	h.Register(engine)
	return &testDeps{engine: engine, contextStore: cs, managed: ms, runner: runner}
}

func echoAgentMux(names ...string) http.Handler {
	mux := http.NewServeMux()
	for _, name := range names {
		agentName := name
		mux.HandleFunc("/"+agentName+"/chat", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"agent":    agentName,
				"response": body["message"],
			})
		})
	}
	return mux
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRootAndHealth(t *testing.T) {
	deps := newTestServer(t, nil, []string{"agent_ac"}, nil)

	w := doJSON(t, deps.engine, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, "RivalScan Orchestrator API", body["service"])

	w = doJSON(t, deps.engine, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, float64(1), body["agents_registered"])
}

func TestRouteRejectsInvalidAgentType(t *testing.T) {
	deps := newTestServer(t, nil, []string{"agent_ac"}, nil)
	w := doJSON(t, deps.engine, http.MethodPost, "/router/route", gin.H{
		"entity":     "Acme",
		"agent_type": "weather_forecast",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decodeBody(t, w)["error"], "Invalid agent type 'weather_forecast'")
}

func TestRouteStoresOutputForEntity(t *testing.T) {
	deps := newTestServer(t, nil, []string{"agent_ac"}, echoAgentMux("agent_ac"))

	w := doJSON(t, deps.engine, http.MethodPost, "/router/route", gin.H{
		"entity":     "Acme",
		"agent_type": "company_overview",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, "company_overview", body["agent_type"])
	result := body["result"].(map[string]interface{})
	require.NotContains(t, result, "error")

	w = doJSON(t, deps.engine, http.MethodGet, "/outputs/Acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	outputs := decodeBody(t, w)
	require.Equal(t, float64(1), outputs["count"])
}

func TestRouteByIntentEndpoint(t *testing.T) {
	deps := newTestServer(t, nil, []string{"agent_pc"}, echoAgentMux("agent_pc"))
	w := doJSON(t, deps.engine, http.MethodPost, "/router/route-by-intent", gin.H{
		"entity": "Acme",
		"intent": "any recent price changes?",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	result := body["result"].(map[string]interface{})
	meta := result[types.RoutingMetadataKey].(map[string]interface{})
	require.Equal(t, "pricing_change", meta["agent_type"])
}

func TestInvokeAgentUnknown(t *testing.T) {
	deps := newTestServer(t, nil, []string{"agent_ac"}, nil)
	w := doJSON(t, deps.engine, http.MethodPost, "/invoke-agent", gin.H{
		"agent_name": "agent_zz",
		"message":    "hello",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "Agent 'agent_zz' not found", decodeBody(t, w)["error"])
}

func TestOrchestrateEndpointDefaultFanOut(t *testing.T) {
	names := []string{"agent_ac", "agent_at", "agent_pc", "agent_sc"}
	deps := newTestServer(t, nil, names, echoAgentMux(names...))
	w := doJSON(t, deps.engine, http.MethodPost, "/orchestrate", gin.H{"entity": "Acme"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, float64(4), body["success_count"])
	require.Equal(t, float64(0), body["error_count"])
	require.NotNil(t, body["context"])
	require.Empty(t, body["aggregated_summary"])
}

func TestOrchestrateRequiresEntity(t *testing.T) {
	deps := newTestServer(t, nil, nil, nil)
	w := doJSON(t, deps.engine, http.MethodPost, "/orchestrate", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetFactsTypedMissing(t *testing.T) {
	deps := newTestServer(t, nil, nil, nil)
	w := doJSON(t, deps.engine, http.MethodGet, "/facts/Acme?fact_type=company_profile", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, deps.engine, http.MethodGet, "/facts/Acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(0), decodeBody(t, w)["count"])
}

func TestGetFactsTypedFound(t *testing.T) {
	deps := newTestServer(t, nil, nil, nil)
	require.NoError(t, deps.contextStore.StoreFact(context.Background(), "Acme", "company_profile",
		map[string]interface{}{"industry": "software"}, 0.9, "", 0))
	w := doJSON(t, deps.engine, http.MethodGet, "/facts/Acme?fact_type=company_profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, "company_profile", body["fact_type"])
}

func TestGetContextSkipsSections(t *testing.T) {
	deps := newTestServer(t, nil, nil, nil)
	w := doJSON(t, deps.engine, http.MethodGet, "/context/Acme?include_signals=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, "Acme", body["entity"])
	require.Contains(t, body, "facts_count")
	require.NotContains(t, body, "signals_count")
}

func TestProcessEndpoint(t *testing.T) {
	gen := &promptGenerator{results: map[string]llm.Result{
		"profile Acme": {Data: map[string]interface{}{
			"company_name":     "Acme",
			"industry":         "Software",
			"headquarters":     "Berlin",
			"key_products":     []interface{}{"Widget"},
			"business_model":   []interface{}{"B2B"},
			"confidence_score": 0.9,
		}},
	}}
	deps := newTestServer(t, gen, nil, nil)
	w := doJSON(t, deps.engine, http.MethodPost, "/agent-service/process", gin.H{
		"entity":     "Acme",
		"agent_type": "company_overview",
		"prompt":     "profile Acme",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, true, body["success"])
	require.Equal(t, true, body["validated"])
	require.NotEmpty(t, body["storage_key"])
}

func TestJobStatusUnknown(t *testing.T) {
	deps := newTestServer(t, nil, nil, nil)
	w := doJSON(t, deps.engine, http.MethodGet, "/api/jobs/nope/status", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
