package types

import "fmt"

// AgentType identifies one of the specialized analysis agents.
type AgentType string

const (
	AgentTypeCompanyOverview AgentType = "company_overview"
	AgentTypeRevenueTurnover AgentType = "revenue_turnover"
	AgentTypePricingChange   AgentType = "pricing_change"
	AgentTypeProductLaunch   AgentType = "product_launch"
	AgentTypeSentiment       AgentType = "sentiment"
)

// AllAgentTypes enumerates every valid agent type in a stable order.
var AllAgentTypes = []AgentType{
	AgentTypeCompanyOverview,
	AgentTypeRevenueTurnover,
	AgentTypePricingChange,
	AgentTypeProductLaunch,
	AgentTypeSentiment,
}

// ParseAgentType validates a raw string against the closed enumeration.
func ParseAgentType(s string) (AgentType, error) {
	for _, at := range AllAgentTypes {
		if string(at) == s {
			return at, nil
		}
	}
	return "", fmt.Errorf("invalid agent type %q, valid types: %v", s, AgentTypeStrings())
}

// AgentTypeStrings returns all valid agent types as plain strings, for error payloads.
func AgentTypeStrings() []string {
	out := make([]string, len(AllAgentTypes))
	for i, at := range AllAgentTypes {
		out[i] = string(at)
	}
	return out
}

// AgentCard is the discovery document served by downstream agents at
// /.well-known/agent-card.json. A missing or erroring card marks the agent
// unavailable in listings but does not block invocation attempts.
type AgentCard struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RoutingMetadata is attached by the router under the reserved
// "routing_metadata" key of every successfully routed payload.
type RoutingMetadata struct {
	AgentType   string `json:"agent_type"`
	AgentName   string `json:"agent_name"`
	ToolUsed    string `json:"tool_used,omitempty"`
	Description string `json:"description,omitempty"`
}

// RoutingMetadataKey is reserved in agent payloads; router annotation always
// writes under this key and never clobbers other payload fields.
const RoutingMetadataKey = "routing_metadata"

// AgentResult is the normalized outcome of one agent invocation. Exactly one
// of the payload or the error string is meaningful.
type AgentResult struct {
	Payload map[string]interface{}
	Err     string
}

// Failed reports whether the invocation collapsed into an error result.
func (r AgentResult) Failed() bool { return r.Err != "" }

// MultiRouteResult aggregates a parallel fan-out. Every requested agent type
// appears in exactly one of Results or Errors.
type MultiRouteResult struct {
	Entity       string                               `json:"entity"`
	Results      map[AgentType]map[string]interface{} `json:"agent_results"`
	Errors       map[AgentType]string                 `json:"errors"`
	SuccessCount int                                  `json:"success_count"`
	ErrorCount   int                                  `json:"error_count"`
}
