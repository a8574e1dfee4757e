package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func resultsWith(outputs map[string]interface{}) Results {
	r := Results{}
	for agentName, output := range outputs {
		r[agentName] = map[string]interface{}{
			"agent_name":   agentName,
			"agent_output": output,
		}
	}
	return r
}

func TestComputeConfidenceObject(t *testing.T) {
	conf := ComputeConfidence(map[string]interface{}{
		"name":   "Acme",
		"score":  0.9,
		"empty":  "",
		"absent": nil,
	})
	// 2 of 4 fields populated, one numeric signal.
	require.InDelta(t, 0.3, conf.Score, 1e-9)
	require.Equal(t, "numeric data present, sufficient fields populated", conf.Reason)
}

func TestComputeConfidenceEmptyObject(t *testing.T) {
	conf := ComputeConfidence(map[string]interface{}{})
	require.Equal(t, 0.0, conf.Score)
	require.Equal(t, "limited data available", conf.Reason)

	var nilMap map[string]interface{}
	conf = ComputeConfidence(nilMap)
	require.Equal(t, "limited data available", conf.Reason)
}

func TestComputeConfidenceList(t *testing.T) {
	conf := ComputeConfidence([]interface{}{1, 2, 3})
	require.InDelta(t, 0.45, conf.Score, 1e-9)
	require.Equal(t, "list length indicates available data", conf.Reason)

	// Length bonus is capped at 0.4.
	long := make([]interface{}, 50)
	conf = ComputeConfidence(long)
	require.InDelta(t, 0.7, conf.Score, 1e-9)
}

func TestComputeConfidenceUnknownShape(t *testing.T) {
	conf := ComputeConfidence("just a string")
	require.Equal(t, 0.0, conf.Score)
	require.Equal(t, "unable to estimate", conf.Reason)
}

func TestComputeConfidenceClampedToOne(t *testing.T) {
	data := map[string]interface{}{}
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		data[k] = 1.0
	}
	conf := ComputeConfidence(data)
	require.InDelta(t, 0.8, conf.Score, 1e-9)
	require.LessOrEqual(t, conf.Score, 1.0)
}

func TestFormatTurnover(t *testing.T) {
	require.Equal(t, "12.5 EUR (million)", FormatTurnover(map[string]interface{}{
		"value": 12.5, "currency": "EUR", "unit": "million",
	}))
	require.Equal(t, "Unavailable", FormatTurnover(map[string]interface{}{}))
	require.Equal(t, "Unavailable", FormatTurnover(nil))
	require.Equal(t, "million", FormatTurnover(map[string]interface{}{"unit": "million"}))
	require.Equal(t, "EUR", FormatTurnover(map[string]interface{}{"currency": "EUR"}))
}

func TestFormatPrice(t *testing.T) {
	require.Equal(t, "9.99 USD", FormatPrice(map[string]interface{}{"value": 9.99, "currency": "USD"}))
	require.Equal(t, "", FormatPrice(map[string]interface{}{}))
	require.Equal(t, "", FormatPrice(nil))
}

func TestOverviewSectionMergesConfidence(t *testing.T) {
	results := resultsWith(map[string]interface{}{
		"company_overview": map[string]interface{}{
			"company_name": "Acme",
			"industry":     "Software",
		},
	})
	section := OverviewSection(results)
	require.Equal(t, "Acme", section["company_name"])
	conf, ok := section["confidence"].(Confidence)
	require.True(t, ok)
	require.Greater(t, conf.Score, 0.0)
}

func TestOverviewSectionMissingAgent(t *testing.T) {
	section := OverviewSection(Results{})
	conf, ok := section["confidence"].(Confidence)
	require.True(t, ok)
	require.Equal(t, 0.0, conf.Score)
	require.Equal(t, "limited data available", conf.Reason)
}

func TestOfferingsSectionSingleObjects(t *testing.T) {
	results := resultsWith(map[string]interface{}{
		"pricing_change": map[string]interface{}{
			"product":      "Widget",
			"change_type":  "increase",
			"price_before": map[string]interface{}{"value": 10.0, "currency": "USD"},
			"price_after":  map[string]interface{}{"value": 12.0, "currency": "USD"},
			"notes":        "List price bump",
		},
		"product_launch": map[string]interface{}{
			"product_name":     "Widget 2",
			"launch_date":      "2026-03-01",
			"notes":            "Flagship refresh",
			"strategic_intent": []interface{}{"upsell", "retention"},
			"key_features":     []interface{}{"faster"},
		},
	})
	section := OfferingsSection(results)

	pricing := section["pricing_changes"].([]map[string]interface{})
	require.Len(t, pricing, 1)
	require.Equal(t, "Widget", pricing[0]["product_name"])
	require.Equal(t, "10 USD", pricing[0]["old_price"])
	require.Equal(t, "12 USD", pricing[0]["new_price"])
	require.Equal(t, "increase", pricing[0]["direction"])
	require.Equal(t, "List price bump", pricing[0]["description"])

	launches := section["product_launches"].([]map[string]interface{})
	require.Len(t, launches, 1)
	require.Equal(t, "Widget 2", launches[0]["product_name"])
	require.Equal(t, "Flagship refresh upsell, retention", launches[0]["description"])
}

func TestOfferingsSectionListOutputs(t *testing.T) {
	results := resultsWith(map[string]interface{}{
		"pricing_change": []interface{}{
			map[string]interface{}{"product": "A", "change_type": "decrease"},
			map[string]interface{}{"product": "B", "change_type": "stable"},
		},
	})
	section := OfferingsSection(results)
	pricing := section["pricing_changes"].([]map[string]interface{})
	require.Len(t, pricing, 2)
	require.Equal(t, "A", pricing[0]["product_name"])
	require.Equal(t, "decrease", pricing[0]["direction"])
}

func TestPricingDescriptionFallsBackToMarketContext(t *testing.T) {
	results := resultsWith(map[string]interface{}{
		"pricing_change": map[string]interface{}{
			"change_type":    "increase",
			"market_context": map[string]interface{}{"industry_trend": "sector-wide increases"},
		},
	})
	pcs := results.PricingChanges()
	require.Len(t, pcs, 1)
	require.Equal(t, "sector-wide increases", pcs[0].Description())
}

func TestMarketSignalsSection(t *testing.T) {
	results := resultsWith(map[string]interface{}{
		"revenue_turnover": map[string]interface{}{
			"annual_turnover":         map[string]interface{}{"value": 12.5, "currency": "EUR", "unit": "billion"},
			"growth_rate":             4.2,
			"revenue_trend":           "growing",
			"profitability_indicator": "profitable",
			"key_drivers":             []interface{}{"cloud", "services"},
		},
	})
	section := MarketSignalsSection(results)
	fin := section["financials"].(map[string]interface{})
	require.Equal(t, "12.5 EUR (billion)", fin["revenue"])
	require.Equal(t, fin["revenue"], fin["turnover"])
	require.Equal(t, "4.2% YoY", fin["growth_rate"])
	require.Equal(t, "Trend: growing. Profitability: profitable. Drivers: cloud, services.", fin["analysis_summary"])
	require.Nil(t, section["competitor_trend"])
}

func TestSentimentSectionPlaceholder(t *testing.T) {
	section := SentimentSection()
	require.Equal(t, "Neutral sentiment (0.0).", section["sentiment_summary"])
	require.Equal(t, 0.0, section["sentiment_score"])
	require.Empty(t, section["risks"])
	conf := section["confidence"].(Confidence)
	require.InDelta(t, 0.3, conf.Score, 1e-9)
}

func TestClassifyRiskSeverity(t *testing.T) {
	risks := []string{"regulatory pressure"}

	declining := resultsWith(map[string]interface{}{
		"revenue_turnover": map[string]interface{}{"revenue_trend": "declining"},
	})
	tagged := ClassifyRiskSeverity(risks, declining.Financials(), declining.PricingChanges())
	require.Len(t, tagged, 1)
	require.Equal(t, "High", tagged[0].Severity)
	require.Equal(t, "negative growth indicators", tagged[0].Reason)

	stable := resultsWith(map[string]interface{}{
		"revenue_turnover": map[string]interface{}{"revenue_trend": "stable"},
	})
	tagged = ClassifyRiskSeverity(risks, stable.Financials(), stable.PricingChanges())
	require.Equal(t, "Medium", tagged[0].Severity)
	require.Equal(t, "flat growth indicators", tagged[0].Reason)

	decrease := resultsWith(map[string]interface{}{
		"revenue_turnover": map[string]interface{}{"revenue_trend": "stable"},
		"pricing_change":   map[string]interface{}{"change_type": "decrease"},
	})
	tagged = ClassifyRiskSeverity(risks, decrease.Financials(), decrease.PricingChanges())
	require.Equal(t, "High", tagged[0].Severity)
	require.Equal(t, "flat growth indicators, pricing decrease detected", tagged[0].Reason)

	empty := Results{}
	tagged = ClassifyRiskSeverity(risks, empty.Financials(), empty.PricingChanges())
	require.Equal(t, "Low", tagged[0].Severity)
	require.Equal(t, "limited signals", tagged[0].Reason)
}

func TestBuildExecutiveSummaryPositive(t *testing.T) {
	results := resultsWith(map[string]interface{}{
		"company_overview": map[string]interface{}{
			"company_name": "Acme",
			"industry":     "Software",
			"headquarters": "Berlin",
			"key_products": []interface{}{"Widget", "Gadget", "Gizmo", "Doohickey"},
		},
		"revenue_turnover": map[string]interface{}{
			"growth_rate":   5.0,
			"revenue_trend": "growing",
		},
		"sentiment": map[string]interface{}{
			"sentiment_summary": "Positive coverage.",
			"sentiment_score":   0.5,
		},
	})
	es := BuildExecutiveSummary(results)
	require.Equal(t, "Positive", es.OverallOutlook)
	require.Contains(t, es.Summary, "Acme operates in Software with headquarters in Berlin.")
	require.Contains(t, es.Summary, "Key products include Widget, Gadget, Gizmo.")
	require.Contains(t, es.Summary, "Reported growth rate is 5%.")
	require.Contains(t, es.Summary, "Sentiment indicates positive coverage.")
	require.Contains(t, es.KeyHighlights, "Growth: 5%")
	require.Contains(t, es.KeyHighlights, "Trend: growing")
}

func TestBuildExecutiveSummaryNegativeOverridesPositive(t *testing.T) {
	results := resultsWith(map[string]interface{}{
		"revenue_turnover": map[string]interface{}{
			"growth_rate":   5.0,
			"revenue_trend": "declining",
		},
		"sentiment": map[string]interface{}{
			"sentiment_summary": "Positive coverage.",
			"sentiment_score":   0.5,
		},
	})
	es := BuildExecutiveSummary(results)
	require.Equal(t, "Negative", es.OverallOutlook)
}

func TestBuildExecutiveSummaryDefaultsNeutralSentiment(t *testing.T) {
	results := resultsWith(map[string]interface{}{
		"revenue_turnover": map[string]interface{}{
			"growth_rate":   5.0,
			"revenue_trend": "growing",
		},
	})
	es := BuildExecutiveSummary(results)
	// Missing sentiment defaults to a 0.0 score, which reads Negative.
	require.Equal(t, "Negative", es.OverallOutlook)
	require.Contains(t, es.Summary, "Sentiment indicates neutral sentiment (0.0).")
}

func TestBuildExecutiveSummaryHighRiskLine(t *testing.T) {
	results := resultsWith(map[string]interface{}{
		"revenue_turnover": map[string]interface{}{"revenue_trend": "declining"},
		"sentiment": map[string]interface{}{
			"sentiment_summary": "Mixed.",
			"sentiment_score":   0.4,
			"risks":             []interface{}{"churn"},
		},
	})
	es := BuildExecutiveSummary(results)
	require.Equal(t, "Negative", es.OverallOutlook)
	require.Contains(t, es.Summary, "1 high severity risk identified.")
}

func TestGenerateFollowUpsPadsAndCaps(t *testing.T) {
	questions := GenerateFollowUps(Results{})
	require.Len(t, questions, 1)
	require.Equal(t, "What competitive strategies should the company prioritize next?", questions[0])

	full := resultsWith(map[string]interface{}{
		"company_overview": map[string]interface{}{
			"company_name": "Acme",
			"key_products": []interface{}{"Widget"},
		},
		"revenue_turnover": map[string]interface{}{
			"growth_rate":   -2.0,
			"revenue_trend": "declining",
		},
		"pricing_change": map[string]interface{}{"change_type": "decrease"},
		"product_launch": map[string]interface{}{"product_name": "Widget 2"},
	})
	questions = GenerateFollowUps(full)
	require.Len(t, questions, 5)
	require.Equal(t, "What is the market performance of Widget for Acme?", questions[0])
	require.Contains(t, questions, "What are the biggest threats to future growth?")
}

func TestAlertsPromptIncludesSections(t *testing.T) {
	results := resultsWith(map[string]interface{}{
		"company_overview": map[string]interface{}{
			"company_name": "Acme",
			"industry":     "Software",
		},
		"pricing_change": map[string]interface{}{"change_type": "increase"},
	})
	prompt := AlertsPrompt("fallback", results)
	require.Contains(t, prompt, "Company: Acme")
	require.Contains(t, prompt, "Domain: Software")
	require.Contains(t, prompt, `"change_type":"increase"`)
	require.Contains(t, prompt, "Synthesize critical alerts.")

	prompt = AlertsPrompt("Fallback Co", Results{})
	require.Contains(t, prompt, "Company: Fallback Co")
}

func TestExportLinesFullReport(t *testing.T) {
	results := resultsWith(map[string]interface{}{
		"company_overview": map[string]interface{}{
			"company_name":    "Acme",
			"industry":        "Software",
			"headquarters":    "Berlin",
			"market_position": "challenger",
			"key_products":    []interface{}{"Widget"},
		},
		"revenue_turnover": map[string]interface{}{
			"annual_turnover": map[string]interface{}{"value": 12.5, "currency": "EUR", "unit": "billion"},
			"growth_rate":     4.2,
			"revenue_trend":   "growing",
		},
		"pricing_change": map[string]interface{}{
			"product":      "Widget",
			"change_type":  "increase",
			"price_before": map[string]interface{}{"value": 10.0, "currency": "EUR"},
			"price_after":  map[string]interface{}{"value": 12.0, "currency": "EUR"},
		},
		"product_launch": map[string]interface{}{
			"product_name": "Widget 2",
			"launch_date":  "2026-03-01",
		},
	})
	lines := ExportLines(results, nil)
	joined := strings.Join(lines, "\n")
	require.Contains(t, joined, "Outlook:")
	require.Contains(t, joined, "Overview: Acme | Software | Berlin")
	require.Contains(t, joined, "Position: challenger")
	require.Contains(t, joined, "- Widget: 10 EUR -> 12 EUR (increase)")
	require.Contains(t, joined, "- Widget 2 (2026-03-01)")
	require.Contains(t, joined, "Financials: Turnover 12.5 EUR (billion) | Growth 4.2% YoY")
	require.Contains(t, joined, "Sentiment: Neutral sentiment (0.0).")
}

func TestExportLinesHonorsIncludeFilter(t *testing.T) {
	results := resultsWith(map[string]interface{}{
		"company_overview": map[string]interface{}{"company_name": "Acme"},
	})
	lines := ExportLines(results, []string{"overview"})
	joined := strings.Join(lines, "\n")
	require.Contains(t, joined, "Overview: Acme")
	require.NotContains(t, joined, "Financials:")
	require.NotContains(t, joined, "Sentiment:")
}
