package router

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PrudhviKosuri/Rival-Scan/internal/agent"
	"github.com/PrudhviKosuri/Rival-Scan/internal/logger"
	"github.com/PrudhviKosuri/Rival-Scan/pkg/types"
)

// route describes how one agent type reaches its downstream agent.
type route struct {
	AgentName string
	Fallback  string
	Tool      string
	Desc      string
}

// routingTable is fixed at compile time. sentiment carries no handle, which
// is a reportable state rather than a configuration error.
var routingTable = map[types.AgentType]route{
	types.AgentTypeCompanyOverview: {
		AgentName: "agent_ac",
		Tool:      "company_profile",
		Desc:      "Company Overview Agent - provides company profile, industry, HQ, products",
	},
	types.AgentTypeRevenueTurnover: {
		AgentName: "agent_at",
		Tool:      "financial_analysis",
		Desc:      "Revenue/Turnover Agent - provides financial metrics, annual turnover, growth rates",
	},
	types.AgentTypePricingChange: {
		AgentName: "agent_pc",
		Tool:      "price_changes",
		Desc:      "Pricing Change Agent - detects recent price changes for company products",
	},
	types.AgentTypeProductLaunch: {
		AgentName: "agent_sc",
		Fallback:  "agent_pl",
		Tool:      "product_launches",
		Desc:      "Product Launch Agent - tracks new product launches and announcements",
	},
	types.AgentTypeSentiment: {
		Desc: "Sentiment Agent - analyzes market sentiment (to be implemented)",
	},
}

// intentRule pairs a target agent type with its trigger keywords. Rules are
// evaluated in order, first match wins, so specific intents beat the
// catch-all overview bucket.
type intentRule struct {
	AgentType types.AgentType
	Keywords  []string
}

var intentRules = []intentRule{
	{types.AgentTypePricingChange, []string{"price", "pricing", "cost", "price change"}},
	{types.AgentTypeProductLaunch, []string{"launch", "product launch", "new product", "announcement"}},
	{types.AgentTypeSentiment, []string{"sentiment", "feeling", "opinion", "mood"}},
	{types.AgentTypeCompanyOverview, []string{"overview", "profile", "company info", "about"}},
	{types.AgentTypeRevenueTurnover, []string{"revenue", "turnover", "financial", "earnings", "profit"}},
}

// defaultFanOutTypes is the standard four-agent analysis set. sentiment is
// excluded because it has no handle.
var defaultFanOutTypes = []types.AgentType{
	types.AgentTypeCompanyOverview,
	types.AgentTypeRevenueTurnover,
	types.AgentTypePricingChange,
	types.AgentTypeProductLaunch,
}

// DefaultFanOutTypes returns a copy of the standard fan-out set.
func DefaultFanOutTypes() []types.AgentType {
	out := make([]types.AgentType, len(defaultFanOutTypes))
	copy(out, defaultFanOutTypes)
	return out
}

// AgentInfo describes one routing table entry for fleet listings.
type AgentInfo struct {
	AgentType   string `json:"agent_type"`
	Description string `json:"description"`
	AgentName   string `json:"agent_name,omitempty"`
	Tool        string `json:"tool,omitempty"`
	Available   bool   `json:"available"`
	Fallback    string `json:"fallback,omitempty"`
}

// Router resolves agent types and free-text intents to downstream agents.
type Router struct {
	registry *agent.Registry
	client   *agent.Client
}

// NewRouter builds a router over a registry and its invocation client.
func NewRouter(registry *agent.Registry, client *agent.Client) *Router {
	return &Router{registry: registry, client: client}
}

// Route invokes the agent mapped to agentType. The returned payload carries
// routing metadata under the reserved "routing_metadata" key.
func (r *Router) Route(ctx context.Context, agentType types.AgentType, entity, message string) types.AgentResult {
	info, ok := routingTable[agentType]
	if !ok || info.AgentName == "" {
		return types.AgentResult{Err: fmt.Sprintf(
			"agent type %q not available, valid types: %v", agentType, types.AgentTypeStrings())}
	}

	agentName := info.AgentName
	if _, err := r.registry.BaseURL(agentName); err != nil {
		if info.Fallback == "" {
			return types.AgentResult{Err: fmt.Sprintf("agent %q not found in registry", agentName)}
		}
		if _, err := r.registry.BaseURL(info.Fallback); err != nil {
			return types.AgentResult{Err: fmt.Sprintf(
				"agents %q and fallback %q not found in registry", agentName, info.Fallback)}
		}
		logger.Logger.Debug().
			Str("agent_type", string(agentType)).
			Str("fallback", info.Fallback).
			Msg("Primary agent unavailable, using fallback")
		agentName = info.Fallback
	}

	result := r.client.Invoke(ctx, agentName, buildMessage(info, entity, message), "")
	if result.Failed() {
		return result
	}
	if result.Payload == nil {
		result.Payload = map[string]interface{}{}
	}
	result.Payload[types.RoutingMetadataKey] = types.RoutingMetadata{
		AgentType:   string(agentType),
		AgentName:   agentName,
		ToolUsed:    info.Tool,
		Description: info.Desc,
	}
	return result
}

func buildMessage(info route, entity, message string) string {
	if message == "" {
		if info.Tool != "" {
			return fmt.Sprintf("Use %s tool to analyze %s", info.Tool, entity)
		}
		return fmt.Sprintf("Analyze %s", entity)
	}
	if !strings.Contains(strings.ToLower(message), strings.ToLower(entity)) {
		return fmt.Sprintf("%s for %s", message, entity)
	}
	return message
}

// ClassifyIntent maps free-text intent to an agent type by ordered keyword
// matching. Unmatched text falls back to company_overview.
func ClassifyIntent(intent string) types.AgentType {
	lowered := strings.ToLower(intent)
	for _, rule := range intentRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lowered, kw) {
				return rule.AgentType
			}
		}
	}
	return types.AgentTypeCompanyOverview
}

// RouteByIntent classifies the intent text and routes to the matching agent.
func (r *Router) RouteByIntent(ctx context.Context, entity, intent string) (types.AgentType, types.AgentResult) {
	agentType := ClassifyIntent(intent)
	return agentType, r.Route(ctx, agentType, entity, intent)
}

// RouteMultiple fans out to the given agent types in parallel. One type's
// failure never aborts the others; every requested type lands in exactly one
// of Results or Errors.
func (r *Router) RouteMultiple(ctx context.Context, agentTypes []types.AgentType, entity, message string) types.MultiRouteResult {
	if len(agentTypes) == 0 {
		agentTypes = DefaultFanOutTypes()
	}

	out := types.MultiRouteResult{
		Entity:  entity,
		Results: make(map[types.AgentType]map[string]interface{}, len(agentTypes)),
		Errors:  make(map[types.AgentType]string),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, at := range agentTypes {
		wg.Add(1)
		go func(at types.AgentType) {
			defer wg.Done()
			result := r.Route(ctx, at, entity, message)
			mu.Lock()
			defer mu.Unlock()
			if result.Failed() {
				out.Errors[at] = result.Err
			} else {
				out.Results[at] = result.Payload
			}
		}(at)
	}
	wg.Wait()

	out.SuccessCount = len(out.Results)
	out.ErrorCount = len(out.Errors)
	return out
}

// ListAgents reports every routing table entry and whether its handle is
// currently registered.
func (r *Router) ListAgents() []AgentInfo {
	infos := make([]AgentInfo, 0, len(routingTable))
	for _, at := range types.AllAgentTypes {
		info := routingTable[at]
		available := false
		if info.AgentName != "" {
			_, err := r.registry.BaseURL(info.AgentName)
			available = err == nil
		}
		infos = append(infos, AgentInfo{
			AgentType:   string(at),
			Description: info.Desc,
			AgentName:   info.AgentName,
			Tool:        info.Tool,
			Available:   available,
			Fallback:    info.Fallback,
		})
	}
	return infos
}
