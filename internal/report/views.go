package report

import (
	"strconv"
	"strings"
)

// Results is the decoded "results" map of a completed analysis job. Agent
// outputs are reached through typed views so missing agents and missing
// fields degrade to zero values instead of panics.
type Results map[string]interface{}

func (r Results) agentOutput(agentName string) interface{} {
	entry, ok := r[agentName].(map[string]interface{})
	if !ok {
		return nil
	}
	return entry["agent_output"]
}

func (r Results) outputMap(agentName string) map[string]interface{} {
	m, _ := r.agentOutput(agentName).(map[string]interface{})
	return m
}

func getString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func getStringList(m map[string]interface{}, key string) []string {
	raw, _ := m[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, stringify(v))
	}
	return out
}

func getFloat(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return formatNumber(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// OverviewView reads the company overview output.
type OverviewView struct {
	raw map[string]interface{}
}

func (r Results) Overview() OverviewView {
	return OverviewView{raw: r.outputMap("company_overview")}
}

func (v OverviewView) Raw() map[string]interface{} { return v.raw }

// Name falls back from company_name to company.
func (v OverviewView) Name() string {
	if s := getString(v.raw, "company_name"); s != "" {
		return s
	}
	return getString(v.raw, "company")
}

func (v OverviewView) Industry() string       { return getString(v.raw, "industry") }
func (v OverviewView) Headquarters() string   { return getString(v.raw, "headquarters") }
func (v OverviewView) MarketPosition() string { return getString(v.raw, "market_position") }
func (v OverviewView) KeyProducts() []string  { return getStringList(v.raw, "key_products") }

// FinancialsView reads the revenue and turnover output.
type FinancialsView struct {
	raw map[string]interface{}
}

func (r Results) Financials() FinancialsView {
	return FinancialsView{raw: r.outputMap("revenue_turnover")}
}

func (v FinancialsView) Raw() map[string]interface{} { return v.raw }

func (v FinancialsView) GrowthRate() (float64, bool) { return getFloat(v.raw, "growth_rate") }
func (v FinancialsView) RevenueTrend() string        { return getString(v.raw, "revenue_trend") }
func (v FinancialsView) Profitability() string       { return getString(v.raw, "profitability_indicator") }
func (v FinancialsView) KeyDrivers() []string        { return getStringList(v.raw, "key_drivers") }

// Turnover renders annual_turnover as "value currency (unit)". When no part
// is present it reads "Unavailable".
func (v FinancialsView) Turnover() string {
	obj, _ := v.raw["annual_turnover"].(map[string]interface{})
	return FormatTurnover(obj)
}

// GrowthDisplay renders the growth rate as "{rate}% YoY", or empty when
// the rate is absent.
func (v FinancialsView) GrowthDisplay() string {
	gr, ok := v.GrowthRate()
	if !ok {
		return ""
	}
	return formatNumber(gr) + "% YoY"
}

// AnalysisSummary joins trend, profitability, and drivers into one line.
func (v FinancialsView) AnalysisSummary() string {
	var parts []string
	if trend := v.RevenueTrend(); trend != "" {
		parts = append(parts, "Trend: "+trend+".")
	}
	if prof := v.Profitability(); prof != "" {
		parts = append(parts, "Profitability: "+prof+".")
	}
	if drivers := v.KeyDrivers(); len(drivers) > 0 {
		parts = append(parts, "Drivers: "+strings.Join(drivers, ", ")+".")
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// PricingView reads one pricing change record.
type PricingView struct {
	raw map[string]interface{}
}

// PricingChanges normalizes the pricing output: a single object yields one
// view, a list yields one per element, anything else yields none.
func (r Results) PricingChanges() []PricingView {
	switch out := r.agentOutput("pricing_change").(type) {
	case map[string]interface{}:
		return []PricingView{{raw: out}}
	case []interface{}:
		views := make([]PricingView, 0, len(out))
		for _, item := range out {
			if m, ok := item.(map[string]interface{}); ok {
				views = append(views, PricingView{raw: m})
			}
		}
		return views
	default:
		return nil
	}
}

func (v PricingView) ProductName() string {
	if s := getString(v.raw, "product_name"); s != "" {
		return s
	}
	return getString(v.raw, "product")
}

func (v PricingView) OldPrice() string {
	obj, _ := v.raw["price_before"].(map[string]interface{})
	return FormatPrice(obj)
}

func (v PricingView) NewPrice() string {
	obj, _ := v.raw["price_after"].(map[string]interface{})
	return FormatPrice(obj)
}

func (v PricingView) Direction() string { return getString(v.raw, "change_type") }

// Description falls back from notes to the market context's industry trend.
func (v PricingView) Description() string {
	if notes := getString(v.raw, "notes"); notes != "" {
		return notes
	}
	mc, _ := v.raw["market_context"].(map[string]interface{})
	return getString(mc, "industry_trend")
}

// LaunchView reads one product launch record.
type LaunchView struct {
	raw map[string]interface{}
}

func (r Results) ProductLaunches() []LaunchView {
	switch out := r.agentOutput("product_launch").(type) {
	case map[string]interface{}:
		return []LaunchView{{raw: out}}
	case []interface{}:
		views := make([]LaunchView, 0, len(out))
		for _, item := range out {
			if m, ok := item.(map[string]interface{}); ok {
				views = append(views, LaunchView{raw: m})
			}
		}
		return views
	default:
		return nil
	}
}

func (v LaunchView) ProductName() string   { return getString(v.raw, "product_name") }
func (v LaunchView) LaunchDate() string    { return getString(v.raw, "launch_date") }
func (v LaunchView) KeyFeatures() []string { return getStringList(v.raw, "key_features") }

// Description joins the notes with the comma-joined strategic intent.
func (v LaunchView) Description() string {
	var parts []string
	if notes := getString(v.raw, "notes"); notes != "" {
		parts = append(parts, notes)
	}
	if intent := getStringList(v.raw, "strategic_intent"); len(intent) > 0 {
		parts = append(parts, strings.Join(intent, ", "))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// SentimentView reads the sentiment output, falling back to a neutral
// placeholder when the agent produced nothing usable.
type SentimentView struct {
	raw map[string]interface{}
}

func (r Results) Sentiment() SentimentView {
	out := r.outputMap("sentiment")
	if out != nil {
		_, hasSummary := out["sentiment_summary"]
		_, hasScore := out["sentiment_score"]
		if hasSummary || hasScore {
			return SentimentView{raw: out}
		}
	}
	return SentimentView{}
}

func (v SentimentView) Summary() string {
	if v.raw == nil {
		return "Neutral sentiment (0.0)."
	}
	return getString(v.raw, "sentiment_summary")
}

func (v SentimentView) Score() float64 {
	if v.raw == nil {
		return 0.0
	}
	score, _ := getFloat(v.raw, "sentiment_score")
	return score
}

func (v SentimentView) Risks() []string {
	if v.raw == nil {
		return nil
	}
	return getStringList(v.raw, "risks")
}

func (v SentimentView) Opportunities() []string {
	if v.raw == nil {
		return nil
	}
	return getStringList(v.raw, "opportunities")
}

// FormatPrice renders a price object as "value currency", with the unit
// appended in parentheses. A nil or empty object renders empty.
func FormatPrice(obj map[string]interface{}) string {
	if obj == nil {
		return ""
	}
	var parts []string
	if value, ok := obj["value"]; ok && value != nil {
		parts = append(parts, stringify(value))
	}
	if currency := getString(obj, "currency"); currency != "" {
		parts = append(parts, currency)
	}
	text := strings.TrimSpace(strings.Join(parts, " "))
	if unit := getString(obj, "unit"); unit != "" {
		text = strings.TrimSpace(text + " (" + unit + ")")
	}
	return text
}

// FormatTurnover renders like FormatPrice but reads "Unavailable" when the
// object carries no value, currency, or unit at all.
func FormatTurnover(obj map[string]interface{}) string {
	if obj == nil {
		return "Unavailable"
	}
	value, hasValue := obj["value"]
	currency := getString(obj, "currency")
	unit := getString(obj, "unit")
	if (!hasValue || value == nil) && currency == "" && unit == "" {
		return "Unavailable"
	}
	var parts []string
	if hasValue && value != nil {
		parts = append(parts, stringify(value))
	}
	if currency != "" {
		parts = append(parts, currency)
	}
	text := strings.TrimSpace(strings.Join(parts, " "))
	if unit != "" {
		if text == "" {
			return unit
		}
		text += " (" + unit + ")"
	}
	return text
}
