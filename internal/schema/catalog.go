package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/PrudhviKosuri/Rival-Scan/pkg/types"
)

// AlertsSchemaName is the catalog entry used by the alerts synthesis step.
const AlertsSchemaName = "alerts_agent"

func str() map[string]interface{} { return map[string]interface{}{"type": "string"} }
func num() map[string]interface{} { return map[string]interface{}{"type": "number"} }
func boolT() map[string]interface{} { return map[string]interface{}{"type": "boolean"} }

func strArray() map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": str()}
}

func strEnum(values ...string) map[string]interface{} {
	enum := make([]interface{}, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return map[string]interface{}{"type": "string", "enum": enum}
}

func obj(props map[string]interface{}, required ...string) map[string]interface{} {
	out := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		req := make([]interface{}, len(required))
		for i, r := range required {
			req[i] = r
		}
		out["required"] = req
	}
	return out
}

func companyOverviewSchema() map[string]interface{} {
	return obj(map[string]interface{}{
		"schema_version":        str(),
		"company_name":          str(),
		"industry":              str(),
		"headquarters":          str(),
		"founded_year":          map[string]interface{}{"type": "integer"},
		"business_model":        strArray(),
		"key_products":          strArray(),
		"market_position":       str(),
		"geographic_presence":   strArray(),
		"strategic_focus_areas": strArray(),
		"confidence_score":      num(),
		"data_sources":          strArray(),
	}, "company_name", "industry", "headquarters", "key_products", "business_model")
}

func revenueTurnoverSchema() map[string]interface{} {
	return obj(map[string]interface{}{
		"schema_version": str(),
		"company":        str(),
		"fiscal_year":    str(),
		"annual_turnover": obj(map[string]interface{}{
			"value": num(), "unit": str(), "currency": str(),
		}),
		"growth_rate":             num(),
		"revenue_trend":           strEnum("growing", "stable", "declining", "unknown"),
		"profitability_indicator": str(),
		"key_drivers":             strArray(),
		"confidence_score":        num(),
		"data_sources":            strArray(),
	}, "company", "annual_turnover", "revenue_trend")
}

func pricingChangeSchema() map[string]interface{} {
	priceObj := obj(map[string]interface{}{
		"value": num(), "currency": str(), "confidence": num(),
	})
	return obj(map[string]interface{}{
		"schema_version":        str(),
		"company":               str(),
		"product":               str(),
		"price_change_detected": boolT(),
		"change_type":           strEnum("increase", "decrease", "stable", "unknown"),
		"change_percentage":     num(),
		"effective_date":        str(),
		"price_before":          priceObj,
		"price_after":           priceObj,
		"drivers":               strArray(),
		"market_context": obj(map[string]interface{}{
			"industry_trend": str(), "competitor_alignment": str(),
		}),
		"confidence_score": num(),
		"data_sources":     strArray(),
		"notes":            str(),
	}, "company", "price_change_detected", "change_type")
}

func productLaunchSchema() map[string]interface{} {
	return obj(map[string]interface{}{
		"schema_version":   str(),
		"company":          str(),
		"product_name":     str(),
		"product_category": str(),
		"launch_type":      strEnum("new_product", "variant", "relaunch", "soft_launch", "unknown"),
		"launch_status":    strEnum("announced", "launched", "rumored", "unknown"),
		"launch_date":      str(),
		"key_features":     strArray(),
		"target_segment":   str(),
		"expected_price_range": obj(map[string]interface{}{
			"min": num(), "max": num(), "currency": str(),
		}),
		"strategic_intent": strArray(),
		"confidence_score": num(),
		"data_sources":     strArray(),
		"notes":            str(),
	}, "company", "product_name", "launch_status")
}

func sentimentSchema() map[string]interface{} {
	return obj(map[string]interface{}{
		"schema_version":    str(),
		"company":           str(),
		"sentiment_summary": str(),
		"sentiment_score":   num(),
		"risks":             strArray(),
		"opportunities":     strArray(),
		"confidence_score":  num(),
		"data_sources":      strArray(),
	}, "sentiment_summary", "sentiment_score")
}

func alertsSchema() map[string]interface{} {
	alertItem := obj(map[string]interface{}{
		"type":               strEnum("Opportunity", "Risk", "Watch"),
		"severity":           strEnum("Low", "Medium", "High"),
		"title":              str(),
		"description":        str(),
		"recommended_action": str(),
		"time_horizon":       strEnum("Immediate", "Short-term", "Mid-term", "Long-term"),
		"confidence":         num(),
	}, "type", "severity", "title", "description", "recommended_action", "time_horizon", "confidence")
	return obj(map[string]interface{}{
		"alerts": map[string]interface{}{
			"type":     "array",
			"items":    alertItem,
			"minItems": 3,
			"maxItems": 7,
		},
		"summary": str(),
	}, "alerts", "summary")
}

// Catalog holds the static, startup-compiled JSON Schemas for every agent
// type plus the alerts synthesis schema.
type Catalog struct {
	raw      map[string]map[string]interface{}
	compiled map[string]*gojsonschema.Schema
}

// NewCatalog declares and compiles every schema. A compilation failure here
// is a programming error and should abort startup.
func NewCatalog() (*Catalog, error) {
	raw := map[string]map[string]interface{}{
		string(types.AgentTypeCompanyOverview): companyOverviewSchema(),
		string(types.AgentTypeRevenueTurnover): revenueTurnoverSchema(),
		string(types.AgentTypePricingChange):   pricingChangeSchema(),
		string(types.AgentTypeProductLaunch):   productLaunchSchema(),
		string(types.AgentTypeSentiment):       sentimentSchema(),
		AlertsSchemaName:                       alertsSchema(),
	}

	compiled := make(map[string]*gojsonschema.Schema, len(raw))
	for name, def := range raw {
		s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		compiled[name] = s
	}
	return &Catalog{raw: raw, compiled: compiled}, nil
}

// Raw returns the declared schema document for a name, or nil when unknown.
// Callers get a shared reference and must not mutate it.
func (c *Catalog) Raw(name string) map[string]interface{} {
	return c.raw[name]
}

// Names lists every schema in the catalog.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.raw))
	for name := range c.raw {
		names = append(names, name)
	}
	return names
}

// Validate checks data against the named schema. In strict mode properties
// outside the declared set are rejected as well. The returned string holds
// the joined validation errors when valid is false.
func (c *Catalog) Validate(data map[string]interface{}, name string, strict bool) (bool, string, error) {
	def, ok := c.raw[name]
	if !ok {
		return false, "", fmt.Errorf("unknown schema %q", name)
	}

	var s *gojsonschema.Schema
	if strict {
		strictDef := make(map[string]interface{}, len(def)+1)
		for k, v := range def {
			strictDef[k] = v
		}
		if _, has := strictDef["additionalProperties"]; !has {
			strictDef["additionalProperties"] = false
		}
		var err error
		s, err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(strictDef))
		if err != nil {
			return false, "", fmt.Errorf("compile strict schema %s: %w", name, err)
		}
	} else {
		s = c.compiled[name]
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return false, "", fmt.Errorf("validate against %s: %w", name, err)
	}
	if result.Valid() {
		return true, "", nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		msgs = append(msgs, resultErr.String())
	}
	return false, strings.Join(msgs, "; "), nil
}

// ValidateForAgentType is a convenience wrapper keyed on the agent type enum.
func (c *Catalog) ValidateForAgentType(data map[string]interface{}, agentType types.AgentType, strict bool) (bool, string, error) {
	return c.Validate(data, string(agentType), strict)
}
