package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Confidence is the heuristic confidence estimate attached to every derived
// report section.
type Confidence struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// ComputeConfidence scores how well populated a payload is. Objects score on
// the share of non-empty fields plus a bonus per numeric field; lists score
// on length alone.
func ComputeConfidence(data interface{}) Confidence {
	switch v := data.(type) {
	case map[string]interface{}:
		totalKeys := len(v)
		nonEmpty := 0
		signals := 0
		for _, value := range v {
			switch field := value.(type) {
			case nil:
			case []interface{}:
				if len(field) > 0 {
					nonEmpty++
				}
			case map[string]interface{}:
				if len(field) > 0 {
					nonEmpty++
				}
			case []string:
				if len(field) > 0 {
					nonEmpty++
				}
			default:
				if strings.TrimSpace(stringify(field)) != "" {
					nonEmpty++
				}
			}
			// Booleans count as numeric signals.
			switch value.(type) {
			case float64, int, bool:
				signals++
			}
		}
		base := float64(nonEmpty) / float64(max(1, totalKeys))
		signalBonus := math.Min(0.3, float64(signals)*0.05)
		score := clamp01(0.5*base + signalBonus)
		var reasons []string
		if signals > 0 {
			reasons = append(reasons, "numeric data present")
		}
		if nonEmpty >= max(1, totalKeys/2) {
			reasons = append(reasons, "sufficient fields populated")
		}
		if len(reasons) == 0 {
			reasons = append(reasons, "limited data available")
		}
		return Confidence{Score: round2(score), Reason: strings.Join(reasons, ", ")}
	case []interface{}:
		score := clamp01(0.3 + math.Min(0.4, float64(len(v))*0.05))
		return Confidence{Score: round2(score), Reason: "list length indicates available data"}
	default:
		return Confidence{Score: 0.0, Reason: "unable to estimate"}
	}
}

func clamp01(f float64) float64 { return math.Max(0.0, math.Min(1.0, f)) }

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// OverviewSection merges the overview output with its confidence estimate.
func OverviewSection(results Results) map[string]interface{} {
	raw := results.outputMap("company_overview")
	merged := make(map[string]interface{}, len(raw)+1)
	for k, v := range raw {
		merged[k] = v
	}
	merged["confidence"] = ComputeConfidence(raw)
	return merged
}

// OfferingsSection aggregates pricing changes and product launches into the
// offerings shape.
func OfferingsSection(results Results) map[string]interface{} {
	pricingChanges := []map[string]interface{}{}
	for _, pc := range results.PricingChanges() {
		pricingChanges = append(pricingChanges, map[string]interface{}{
			"product_name": pc.ProductName(),
			"old_price":    pc.OldPrice(),
			"new_price":    pc.NewPrice(),
			"direction":    pc.Direction(),
			"description":  pc.Description(),
		})
	}
	productLaunches := []map[string]interface{}{}
	for _, pl := range results.ProductLaunches() {
		productLaunches = append(productLaunches, map[string]interface{}{
			"product_name": pl.ProductName(),
			"launch_date":  pl.LaunchDate(),
			"description":  pl.Description(),
			"key_features": pl.KeyFeatures(),
		})
	}
	section := map[string]interface{}{
		"product_launches": productLaunches,
		"pricing_changes":  pricingChanges,
	}
	section["confidence"] = ComputeConfidence(map[string]interface{}{
		"product_launches": toInterfaceList(productLaunches),
		"pricing_changes":  toInterfaceList(pricingChanges),
	})
	return section
}

func toInterfaceList(items []map[string]interface{}) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// MarketSignalsSection derives the financials block from the revenue output.
func MarketSignalsSection(results Results) map[string]interface{} {
	fin := results.Financials()
	turnover := fin.Turnover()
	return map[string]interface{}{
		"financials": map[string]interface{}{
			"revenue":          turnover,
			"turnover":         turnover,
			"growth_rate":      fin.GrowthDisplay(),
			"analysis_summary": fin.AnalysisSummary(),
		},
		"competitor_trend": nil,
		"graph_data":       nil,
		"confidence":       ComputeConfidence(fin.Raw()),
	}
}

// SentimentSection returns the neutral placeholder sentiment block.
func SentimentSection() map[string]interface{} {
	score := 0.0
	summary := "Neutral sentiment (0.0)."
	risks := []string{}
	opportunities := []string{}
	return map[string]interface{}{
		"sentiment_summary": summary,
		"sentiment_score":   score,
		"risks":             risks,
		"opportunities":     opportunities,
		"confidence": ComputeConfidence(map[string]interface{}{
			"sentiment_summary": summary,
			"sentiment_score":   score,
			"risks":             []interface{}{},
			"opportunities":     []interface{}{},
		}),
	}
}

// ExecutiveSummary is the synthesized top-of-report block.
type ExecutiveSummary struct {
	Summary        string   `json:"summary"`
	KeyHighlights  []string `json:"key_highlights"`
	OverallOutlook string   `json:"overall_outlook"`
}

func outputCount(out interface{}) int {
	switch v := out.(type) {
	case []interface{}:
		return len(v)
	case map[string]interface{}:
		if len(v) > 0 {
			return 1
		}
	}
	return 0
}

// BuildExecutiveSummary synthesizes a narrative summary, key highlights, and
// an overall outlook from the section outputs. A negative growth signal,
// declining trend, weak sentiment, or any high severity risk forces the
// outlook Negative even when the positive conditions hold.
func BuildExecutiveSummary(results Results) ExecutiveSummary {
	ov := results.Overview()
	fin := results.Financials()
	sent := results.Sentiment()

	name := ov.Name()
	industry := ov.Industry()
	hq := ov.Headquarters()
	keyProducts := ov.KeyProducts()
	prCount := outputCount(results.agentOutput("pricing_change"))
	plCount := outputCount(results.agentOutput("product_launch"))
	growth, hasGrowth := fin.GrowthRate()
	trend := fin.RevenueTrend()
	sScore := sent.Score()

	tagged := ClassifyRiskSeverity(sent.Risks(), fin, results.PricingChanges())
	highCount := 0
	for _, r := range tagged {
		if r.Severity == "High" {
			highCount++
		}
	}

	outlook := "Neutral"
	if hasGrowth && growth > 0 && sScore >= 0.3 && highCount == 0 && trend != "declining" {
		outlook = "Positive"
	}
	if (hasGrowth && growth < 0) || trend == "declining" || sScore < 0.2 || highCount > 0 {
		outlook = "Negative"
	}

	var lines []string
	if name != "" || industry != "" || hq != "" {
		lines = append(lines, fmt.Sprintf("%s operates in %s with headquarters in %s.", name, industry, hq))
	}
	if len(keyProducts) > 0 {
		top := keyProducts
		if len(top) > 3 {
			top = top[:3]
		}
		lines = append(lines, fmt.Sprintf("Key products include %s.", strings.Join(top, ", ")))
	}
	if hasGrowth {
		lines = append(lines, fmt.Sprintf("Reported growth rate is %s%%.", formatNumber(growth)))
	} else if trend != "" {
		lines = append(lines, fmt.Sprintf("Revenue trend appears %s.", trend))
	}
	if prCount > 0 || plCount > 0 {
		lines = append(lines, fmt.Sprintf("Recent activity includes %d pricing changes and %d product launches.", prCount, plCount))
	}
	lines = append(lines, fmt.Sprintf("Sentiment indicates %s.", strings.ToLower(sent.Summary())))
	if highCount > 0 {
		lines = append(lines, fmt.Sprintf("%d high severity risk identified.", highCount))
	}
	if len(lines) > 7 {
		lines = lines[:7]
	}

	var highlights []string
	if hasGrowth {
		highlights = append(highlights, fmt.Sprintf("Growth: %s%%", formatNumber(growth)))
	}
	if trend != "" {
		highlights = append(highlights, "Trend: "+trend)
	}
	if prCount > 0 {
		highlights = append(highlights, fmt.Sprintf("Pricing changes: %d", prCount))
	}
	if plCount > 0 {
		highlights = append(highlights, fmt.Sprintf("Product launches: %d", plCount))
	}

	return ExecutiveSummary{
		Summary:        strings.TrimSpace(strings.Join(lines, " ")),
		KeyHighlights:  highlights,
		OverallOutlook: outlook,
	}
}

// TaggedRisk is one sentiment risk annotated with severity and reasoning.
type TaggedRisk struct {
	Risk     string `json:"risk"`
	Severity string `json:"severity"`
	Reason   string `json:"reason"`
}

// ClassifyRiskSeverity tags each risk from the financial and pricing
// context. A declining trend or negative growth rates High, a flat trend
// rates Medium, and a detected pricing decrease forces High regardless.
func ClassifyRiskSeverity(risks []string, fin FinancialsView, pricing []PricingView) []TaggedRisk {
	growth, hasGrowth := fin.GrowthRate()
	trend := fin.RevenueTrend()

	var priceDirs []string
	for _, pc := range pricing {
		if d := pc.Direction(); d != "" {
			priceDirs = append(priceDirs, d)
		}
	}
	hasDecrease := false
	for _, d := range priceDirs {
		if d == "decrease" {
			hasDecrease = true
			break
		}
	}

	out := make([]TaggedRisk, 0, len(risks))
	for _, risk := range risks {
		severity := "Low"
		var reasons []string
		if trend == "declining" || (hasGrowth && growth < 0) {
			severity = "High"
			reasons = append(reasons, "negative growth indicators")
		} else if trend == "stable" || (hasGrowth && growth == 0) {
			severity = "Medium"
			reasons = append(reasons, "flat growth indicators")
		}
		if hasDecrease {
			severity = "High"
			reasons = append(reasons, "pricing decrease detected")
		}
		if len(reasons) == 0 {
			reasons = append(reasons, "limited signals")
		}
		out = append(out, TaggedRisk{Risk: risk, Severity: severity, Reason: strings.Join(reasons, ", ")})
	}
	return out
}

// GenerateFollowUps proposes follow-up questions from the analysis results,
// padded to at least three and capped at five.
func GenerateFollowUps(results Results) []string {
	var questions []string
	ov := results.Overview()
	fin := results.Financials()
	name := ov.Name()
	if name == "" {
		name = "the company"
	}
	if kps := ov.KeyProducts(); len(kps) > 0 {
		questions = append(questions, fmt.Sprintf("What is the market performance of %s for %s?", kps[0], name))
	}
	if growth, ok := fin.GrowthRate(); ok && growth < 0 {
		questions = append(questions, "What are the biggest threats to future growth?")
	}
	if outputCount(results.agentOutput("pricing_change")) > 0 {
		questions = append(questions, "How do recent pricing changes compare with competitors?")
	}
	if outputCount(results.agentOutput("product_launch")) > 0 {
		questions = append(questions, "Which customer segments are targeted by recent product launches?")
	}
	if fin.RevenueTrend() == "declining" {
		questions = append(questions, "Where can operational efficiencies be improved to stabilize revenue?")
	}
	if len(questions) < 3 {
		questions = append(questions, fmt.Sprintf("What competitive strategies should %s prioritize next?", name))
	}
	if len(questions) > 5 {
		questions = questions[:5]
	}
	return questions
}

// AlertsPrompt assembles the synthesis prompt for the alerts agent from the
// raw section outputs, each truncated to keep the prompt bounded.
func AlertsPrompt(entity string, results Results) string {
	ov := results.Overview()
	name := ov.Name()
	if name == "" {
		name = entity
	}
	return fmt.Sprintf(
		"Domain: %s\nCompany: %s\n\n"+
			"Offerings Pricing: %s\n"+
			"Offerings Launches: %s\n"+
			"Market Signals: %s\n"+
			"Sentiment: %s\n\n"+
			"Synthesize critical alerts. Follow the schema. Minimum 3, maximum 7. "+
			"Include at least one Opportunity and one Risk. Severity must be logically justified. "+
			"Avoid generic repetition. Return valid JSON only.",
		ov.Industry(), name,
		marshalTrunc(results.agentOutput("pricing_change")),
		marshalTrunc(results.agentOutput("product_launch")),
		marshalTrunc(results.agentOutput("revenue_turnover")),
		marshalTrunc(results.agentOutput("sentiment")),
	)
}

func marshalTrunc(v interface{}) string {
	if v == nil {
		return "{}"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	if len(raw) > 2000 {
		raw = raw[:2000]
	}
	return string(raw)
}

// ExportLines flattens the selected sections into the line sequence rendered
// into the exported PDF.
func ExportLines(results Results, include []string) []string {
	included := map[string]bool{}
	for _, s := range include {
		included[s] = true
	}
	if len(include) == 0 {
		for _, s := range []string{"overview", "offerings", "market-signals", "sentiment"} {
			included[s] = true
		}
	}

	var lines []string
	es := BuildExecutiveSummary(results)
	if es.Summary != "" {
		lines = append(lines, es.Summary)
	}
	lines = append(lines, "Outlook: "+es.OverallOutlook)
	if len(es.KeyHighlights) > 0 {
		top := es.KeyHighlights
		if len(top) > 5 {
			top = top[:5]
		}
		lines = append(lines, "Highlights: "+strings.Join(top, ", "))
	}

	if included["overview"] {
		ov := results.Overview()
		lines = append(lines, fmt.Sprintf("Overview: %s | %s | %s", ov.Name(), ov.Industry(), ov.Headquarters()))
		if mp := ov.MarketPosition(); mp != "" {
			lines = append(lines, "Position: "+mp)
		}
		if kps := ov.KeyProducts(); len(kps) > 0 {
			lines = append(lines, "Key Products:")
			for _, p := range capList(kps, 10) {
				lines = append(lines, "- "+p)
			}
		}
	}
	if included["offerings"] {
		pricing := results.PricingChanges()
		if len(pricing) > 0 {
			lines = append(lines, "Pricing Changes:")
			if len(pricing) > 10 {
				pricing = pricing[:10]
			}
			for _, pc := range pricing {
				lines = append(lines, fmt.Sprintf("- %s: %s -> %s (%s)",
					pc.ProductName(), pc.OldPrice(), pc.NewPrice(), pc.Direction()))
			}
		}
		launches := results.ProductLaunches()
		if len(launches) > 0 {
			lines = append(lines, "Product Launches:")
			if len(launches) > 10 {
				launches = launches[:10]
			}
			for _, pl := range launches {
				lines = append(lines, fmt.Sprintf("- %s (%s)", pl.ProductName(), pl.LaunchDate()))
			}
		}
		if conf, ok := OfferingsSection(results)["confidence"].(Confidence); ok {
			lines = append(lines, fmt.Sprintf("Offerings Confidence: %s (%s)", formatNumber(conf.Score), conf.Reason))
		}
	}
	if included["market-signals"] {
		fin := results.Financials()
		lines = append(lines, fmt.Sprintf("Financials: Turnover %s | Growth %s", fin.Turnover(), fin.GrowthDisplay()))
		if summary := fin.AnalysisSummary(); summary != "" {
			lines = append(lines, summary)
		}
		conf := ComputeConfidence(fin.Raw())
		lines = append(lines, fmt.Sprintf("Market Signals Confidence: %s (%s)", formatNumber(conf.Score), conf.Reason))
	}
	if included["sentiment"] {
		section := SentimentSection()
		lines = append(lines, fmt.Sprintf("Sentiment: %s", section["sentiment_summary"]))
		sent := results.Sentiment()
		tagged := ClassifyRiskSeverity(sent.Risks(), results.Financials(), results.PricingChanges())
		if len(tagged) > 0 {
			lines = append(lines, "Risks:")
			if len(tagged) > 10 {
				tagged = tagged[:10]
			}
			for _, r := range tagged {
				lines = append(lines, fmt.Sprintf("- [%s] %s: %s", r.Severity, r.Risk, r.Reason))
			}
		}
		if conf, ok := section["confidence"].(Confidence); ok {
			lines = append(lines, fmt.Sprintf("Sentiment Confidence: %s (%s)", formatNumber(conf.Score), conf.Reason))
		}
	}
	return lines
}

func capList(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
