package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PrudhviKosuri/Rival-Scan/internal/agent"
	"github.com/PrudhviKosuri/Rival-Scan/internal/agentservice"
	"github.com/PrudhviKosuri/Rival-Scan/internal/background"
	"github.com/PrudhviKosuri/Rival-Scan/internal/contextbuilder"
	"github.com/PrudhviKosuri/Rival-Scan/internal/logger"
	"github.com/PrudhviKosuri/Rival-Scan/internal/orchestrator"
	"github.com/PrudhviKosuri/Rival-Scan/internal/router"
	"github.com/PrudhviKosuri/Rival-Scan/internal/storage"
	"github.com/PrudhviKosuri/Rival-Scan/pkg/types"
)

// Version is the API version reported on the root endpoint.
const Version = "1.0.0"

// Handlers bundles the services behind the HTTP API.
type Handlers struct {
	Driver       *orchestrator.Driver
	Router       *router.Router
	Registry     *agent.Registry
	Client       *agent.Client
	Builder      *contextbuilder.Builder
	ContextStore *storage.ContextStore
	Managed      *storage.ManagedStore
	AgentService *agentservice.Service
	Runner       *background.Runner
}

// RootHandler reports the service identity and its main endpoints.
func (h *Handlers) RootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "RivalScan Orchestrator API",
		"version": Version,
		"endpoints": gin.H{
			"orchestrate": "/orchestrate",
			"context":     "/context/{entity}",
			"agents":      "/agents",
			"health":      "/health",
		},
	})
}

// HealthHandler reports liveness and the registered agent count.
func (h *Handlers) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"agents_registered": len(h.Registry.Names()),
	})
}

// ListAgentsHandler lists registered agents with their discovery cards.
func (h *Handlers) ListAgentsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	agents := []gin.H{}
	for _, name := range h.Registry.Names() {
		baseURL, err := h.Registry.BaseURL(name)
		if err != nil {
			continue
		}
		card := h.Client.Card(ctx, name)
		agents = append(agents, gin.H{
			"name":       name,
			"base_url":   baseURL,
			"agent_card": card,
		})
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents, "count": len(agents)})
}

// ListRouterAgentsHandler lists the routable agent types and availability.
func (h *Handlers) ListRouterAgentsHandler(c *gin.Context) {
	available := h.Router.ListAgents()
	c.JSON(http.StatusOK, gin.H{
		"agent_types": available,
		"count":       len(available),
	})
}

// RouteRequest asks the router to dispatch one agent type for an entity.
type RouteRequest struct {
	Entity    string `json:"entity" binding:"required"`
	AgentType string `json:"agent_type" binding:"required"`
	Message   string `json:"message"`
}

// RouteHandler routes a request to a specific agent type.
func (h *Handlers) RouteHandler(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	agentType, err := types.ParseAgentType(req.AgentType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid agent type '%s'. Valid types: %v", req.AgentType, types.AgentTypeStrings()),
		})
		return
	}

	ctx := c.Request.Context()
	result := h.Router.Route(ctx, agentType, req.Entity, req.Message)
	if req.Entity != "" && !result.Failed() {
		if _, err := h.Builder.EnrichWithContext(ctx, req.Entity, result.Payload, req.AgentType, true); err != nil {
			logger.Logger.Warn().Err(err).
				Str("entity", req.Entity).
				Str("agent_type", req.AgentType).
				Msg("Failed to store routed output")
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"agent_type": req.AgentType,
		"entity":     req.Entity,
		"result":     resultPayload(result),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// RouteByIntentRequest routes from a free-text intent description.
type RouteByIntentRequest struct {
	Entity string `json:"entity" binding:"required"`
	Intent string `json:"intent" binding:"required"`
}

// RouteByIntentHandler classifies the intent and routes accordingly.
func (h *Handlers) RouteByIntentHandler(c *gin.Context) {
	var req RouteByIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	agentType, result := h.Router.RouteByIntent(ctx, req.Entity, req.Intent)
	if !result.Failed() {
		if _, err := h.Builder.EnrichWithContext(ctx, req.Entity, result.Payload, string(agentType), true); err != nil {
			logger.Logger.Warn().Err(err).
				Str("entity", req.Entity).
				Msg("Failed to store intent-routed output")
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"entity":    req.Entity,
		"intent":    req.Intent,
		"result":    resultPayload(result),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func resultPayload(result types.AgentResult) map[string]interface{} {
	if result.Failed() {
		return map[string]interface{}{"error": result.Err}
	}
	return result.Payload
}

// OrchestrateRequest is the body of the main orchestration endpoint. The
// boolean flags default to true when omitted.
type OrchestrateRequest struct {
	Entity         string   `json:"entity" binding:"required"`
	AgentTypes     []string `json:"agent_types"`
	Agents         []string `json:"agents"`
	UseRouter      *bool    `json:"use_router"`
	IncludeContext *bool    `json:"include_context"`
	StoreOutputs   *bool    `json:"store_outputs"`
	ExtractFacts   *bool    `json:"extract_facts"`
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// OrchestrateHandler runs a full orchestration pass across the requested
// agents.
func (h *Handlers) OrchestrateHandler(c *gin.Context) {
	var req OrchestrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	envelope, err := h.Driver.Orchestrate(c.Request.Context(), orchestrator.Request{
		Entity:         req.Entity,
		AgentTypes:     req.AgentTypes,
		Agents:         req.Agents,
		UseRouter:      boolOr(req.UseRouter, true),
		IncludeContext: boolOr(req.IncludeContext, true),
		StoreOutputs:   boolOr(req.StoreOutputs, true),
		ExtractFacts:   boolOr(req.ExtractFacts, true),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, envelope)
}

// GetContextHandler returns the current context snapshot for an entity.
func (h *Handlers) GetContextHandler(c *gin.Context) {
	entity := c.Param("entity")
	opts := contextbuilder.Options{
		SkipFacts:       c.DefaultQuery("include_facts", "true") == "false",
		SkipSignals:     c.DefaultQuery("include_signals", "true") == "false",
		SkipOutputs:     c.DefaultQuery("include_outputs", "true") == "false",
		SignalHoursBack: queryInt(c, "signal_hours_back", 168),
	}
	snapshot, err := h.Builder.BuildContext(c.Request.Context(), entity, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// InvokeAgentRequest invokes one registered agent by name.
type InvokeAgentRequest struct {
	AgentName      string `json:"agent_name" binding:"required"`
	Message        string `json:"message" binding:"required"`
	Entity         string `json:"entity"`
	ConversationID string `json:"conversation_id"`
}

// InvokeAgentHandler invokes a specific agent directly, optionally storing
// the response against an entity.
func (h *Handlers) InvokeAgentHandler(c *gin.Context) {
	var req InvokeAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.Registry.BaseURL(req.AgentName); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Agent '%s' not found", req.AgentName)})
		return
	}

	ctx := c.Request.Context()
	result := h.Client.Invoke(ctx, req.AgentName, req.Message, req.ConversationID)
	if req.Entity != "" && !result.Failed() {
		if _, err := h.Builder.EnrichWithContext(ctx, req.Entity, result.Payload, req.AgentName, true); err != nil {
			logger.Logger.Warn().Err(err).
				Str("entity", req.Entity).
				Str("agent_name", req.AgentName).
				Msg("Failed to store invoked output")
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"agent_name": req.AgentName,
		"response":   resultPayload(result),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// GetFactsHandler returns cached facts, or one typed fact when fact_type is
// given.
func (h *Handlers) GetFactsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	entity := c.Param("entity")
	if factType := c.Query("fact_type"); factType != "" {
		fact, err := h.ContextStore.GetFact(ctx, entity, factType)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if fact == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Fact not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entity": entity, "fact_type": factType, "fact": fact})
		return
	}
	facts, err := h.ContextStore.GetAllFacts(ctx, entity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entity": entity, "facts": facts, "count": len(facts)})
}

// GetSignalsHandler returns historical signals inside the lookback window.
func (h *Handlers) GetSignalsHandler(c *gin.Context) {
	entity := c.Param("entity")
	signalType := c.Query("signal_type")
	hoursBack := queryInt(c, "hours_back", 168)
	signals, err := h.ContextStore.GetSignals(c.Request.Context(), entity, signalType, hoursBack)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entity":      entity,
		"signal_type": signalType,
		"signals":     signals,
		"count":       len(signals),
		"hours_back":  hoursBack,
	})
}

// GetOutputsHandler returns recent cached agent outputs.
func (h *Handlers) GetOutputsHandler(c *gin.Context) {
	entity := c.Param("entity")
	agentName := c.Query("agent_name")
	limit := queryInt(c, "limit", 10)
	outputs, err := h.ContextStore.GetRecentOutputs(c.Request.Context(), entity, agentName, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entity":     entity,
		"agent_name": agentName,
		"outputs":    outputs,
		"count":      len(outputs),
	})
}

// GetManagedStorageHandler returns managed storage items for an entity.
func (h *Handlers) GetManagedStorageHandler(c *gin.Context) {
	entity := c.Param("entity")
	agentType := c.Query("agent_type")
	limit := queryInt(c, "limit", 10)
	items, err := h.Managed.Retrieve(c.Request.Context(), types.RetrieveFilter{
		Entity:    entity,
		AgentType: agentType,
		Limit:     limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entity":     entity,
		"agent_type": agentType,
		"results":    items,
		"count":      len(items),
	})
}

// ProcessRequest runs the agent service pipeline directly.
type ProcessRequest struct {
	Entity            string                 `json:"entity" binding:"required"`
	AgentType         string                 `json:"agent_type" binding:"required"`
	Prompt            string                 `json:"prompt" binding:"required"`
	Schema            map[string]interface{} `json:"schema"`
	SystemInstruction string                 `json:"system_instruction"`
	UseSearch         *bool                  `json:"use_search"`
	StoreResult       *bool                  `json:"store_result"`
}

// ProcessHandler generates, validates, and stores one structured output.
func (h *Handlers) ProcessHandler(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result := h.AgentService.Process(c.Request.Context(), agentservice.ProcessParams{
		Entity:            req.Entity,
		AgentType:         req.AgentType,
		Prompt:            req.Prompt,
		Schema:            req.Schema,
		SystemInstruction: req.SystemInstruction,
		UseSearch:         boolOr(req.UseSearch, true),
		SkipStore:         !boolOr(req.StoreResult, true),
	})
	c.JSON(http.StatusOK, result)
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
