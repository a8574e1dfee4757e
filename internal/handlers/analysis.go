package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PrudhviKosuri/Rival-Scan/internal/agentservice"
	"github.com/PrudhviKosuri/Rival-Scan/internal/logger"
	"github.com/PrudhviKosuri/Rival-Scan/internal/pdfgen"
	"github.com/PrudhviKosuri/Rival-Scan/internal/report"
	"github.com/PrudhviKosuri/Rival-Scan/internal/schema"
	"github.com/PrudhviKosuri/Rival-Scan/pkg/types"
)

// CreateAnalysisRequest starts a full background analysis. If competitor is
// absent the domain stands in as the analyzed entity.
type CreateAnalysisRequest struct {
	Domain     string `json:"domain" binding:"required"`
	Competitor string `json:"competitor"`
}

// CreateAnalysisHandler creates a job and schedules the analysis run.
func (h *Handlers) CreateAnalysisHandler(c *gin.Context) {
	var req CreateAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entity := req.Competitor
	if entity == "" {
		entity = req.Domain
	}

	job, err := h.Managed.CreateJob(c.Request.Context(), entity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	jobID := job.ID
	h.Runner.Submit("analysis_job", func(taskCtx context.Context) error {
		h.Driver.RunAnalysisJob(taskCtx, jobID, entity)
		return nil
	})

	c.JSON(http.StatusOK, gin.H{
		"job_id":     jobID,
		"status":     types.JobStatusQueued,
		"created_at": job.CreatedAt.Format(time.RFC3339),
	})
}

// JobStatusHandler reports job lifecycle state and coarse progress.
func (h *Handlers) JobStatusHandler(c *gin.Context) {
	job, err := h.Managed.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	progress := 0
	if job.Status == types.JobStatusCompleted {
		progress = 100
	}
	c.JSON(http.StatusOK, gin.H{
		"job_id":     job.ID,
		"status":     job.Status,
		"progress":   progress,
		"created_at": job.CreatedAt.Format(time.RFC3339),
	})
}

// jobResults loads a job and its results map. A nil return means a response
// was already written.
func (h *Handlers) jobResults(c *gin.Context, requireCompleted bool) (*types.Job, report.Results) {
	job, err := h.Managed.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, nil
	}
	if job == nil || job.Result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis results not found"})
		return nil, nil
	}
	if requireCompleted && job.Status != types.JobStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Analysis not complete"})
		return nil, nil
	}
	results, _ := job.Result["results"].(map[string]interface{})
	if results == nil {
		results = map[string]interface{}{}
	}
	return job, report.Results(results)
}

// AnalysisOverviewHandler returns the company overview section.
func (h *Handlers) AnalysisOverviewHandler(c *gin.Context) {
	_, results := h.jobResults(c, false)
	if results == nil {
		return
	}
	c.JSON(http.StatusOK, report.OverviewSection(results))
}

// AnalysisOfferingsHandler returns pricing changes and product launches.
func (h *Handlers) AnalysisOfferingsHandler(c *gin.Context) {
	_, results := h.jobResults(c, false)
	if results == nil {
		return
	}
	c.JSON(http.StatusOK, report.OfferingsSection(results))
}

// AnalysisMarketSignalsHandler returns the financial signals section.
func (h *Handlers) AnalysisMarketSignalsHandler(c *gin.Context) {
	_, results := h.jobResults(c, false)
	if results == nil {
		return
	}
	c.JSON(http.StatusOK, report.MarketSignalsSection(results))
}

// AnalysisSentimentHandler returns the placeholder sentiment section.
func (h *Handlers) AnalysisSentimentHandler(c *gin.Context) {
	_, results := h.jobResults(c, false)
	if results == nil {
		return
	}
	c.JSON(http.StatusOK, report.SentimentSection())
}

// ExecutiveSummaryHandler synthesizes the executive summary block.
func (h *Handlers) ExecutiveSummaryHandler(c *gin.Context) {
	_, results := h.jobResults(c, true)
	if results == nil {
		return
	}
	c.JSON(http.StatusOK, report.BuildExecutiveSummary(results))
}

// RisksHandler returns sentiment risks tagged with severity.
func (h *Handlers) RisksHandler(c *gin.Context) {
	_, results := h.jobResults(c, true)
	if results == nil {
		return
	}
	sent := results.Sentiment()
	tagged := report.ClassifyRiskSeverity(sent.Risks(), results.Financials(), results.PricingChanges())
	c.JSON(http.StatusOK, gin.H{"risks": tagged})
}

// FollowUpsHandler returns suggested follow-up questions.
func (h *Handlers) FollowUpsHandler(c *gin.Context) {
	_, results := h.jobResults(c, true)
	if results == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": report.GenerateFollowUps(results)})
}

// AlertsHandler returns the synthesized alerts for a completed job. The
// first call generates them through the agent service and persists them into
// the job result so later calls are served from storage.
func (h *Handlers) AlertsHandler(c *gin.Context) {
	job, results := h.jobResults(c, true)
	if results == nil {
		return
	}
	if existing := results["alerts_agent"]; existing != nil {
		if entry, ok := existing.(map[string]interface{}); ok {
			if output, ok := entry["agent_output"].(map[string]interface{}); ok {
				if _, hasAlerts := output["alerts"]; hasAlerts {
					c.JSON(http.StatusOK, output)
					return
				}
			}
		}
	}

	ctx := c.Request.Context()
	out := h.AgentService.Process(ctx, agentservice.ProcessParams{
		Entity:    job.Entity,
		AgentType: schema.AlertsSchemaName,
		Prompt:    report.AlertsPrompt(job.Entity, results),
		UseSearch: true,
	})
	if !out.Success || out.Data == nil {
		logger.Logger.Warn().
			Str("job_id", job.ID).
			Str("error", out.Error).
			Msg("Alerts synthesis failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Alerts generation failed"})
		return
	}

	results["alerts_agent"] = map[string]interface{}{
		"agent_name":   schema.AlertsSchemaName,
		"agent_output": out.Data,
		"timestamp":    out.Timestamp.Format(time.RFC3339),
	}
	job.Result["results"] = map[string]interface{}(results)
	if err := h.Managed.UpdateJob(ctx, job.ID, job.Status, job.Result); err != nil {
		logger.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to persist synthesized alerts")
	}
	c.JSON(http.StatusOK, out.Data)
}

// ExportConfig optionally narrows the exported PDF to named sections.
type ExportConfig struct {
	IncludeSections []string `json:"include_sections"`
}

// ExportPDFHandler renders the analysis report as a PDF attachment.
func (h *Handlers) ExportPDFHandler(c *gin.Context) {
	job, err := h.Managed.GetJob(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil || job.Result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis results not found"})
		return
	}
	if job.Status != types.JobStatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Analysis not complete"})
		return
	}

	var cfg ExportConfig
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	resultsRaw, _ := job.Result["results"].(map[string]interface{})
	lines := report.ExportLines(report.Results(resultsRaw), cfg.IncludeSections)
	pdf := pdfgen.Render("Analysis Report", lines)

	c.Header("Content-Disposition", `attachment; filename="analysis_report.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
