package handlers

import "github.com/gin-gonic/gin"

// Register mounts every API route on the engine.
func (h *Handlers) Register(engine *gin.Engine) {
	engine.GET("/", h.RootHandler)
	engine.GET("/health", h.HealthHandler)
	engine.GET("/agents", h.ListAgentsHandler)

	engine.GET("/router/agents", h.ListRouterAgentsHandler)
	engine.POST("/router/route", h.RouteHandler)
	engine.POST("/router/route-by-intent", h.RouteByIntentHandler)

	engine.POST("/orchestrate", h.OrchestrateHandler)
	engine.POST("/invoke-agent", h.InvokeAgentHandler)

	engine.GET("/context/:entity", h.GetContextHandler)
	engine.GET("/facts/:entity", h.GetFactsHandler)
	engine.GET("/signals/:entity", h.GetSignalsHandler)
	engine.GET("/outputs/:entity", h.GetOutputsHandler)
	engine.GET("/managed-storage/:entity", h.GetManagedStorageHandler)

	engine.POST("/agent-service/process", h.ProcessHandler)

	api := engine.Group("/api")
	{
		api.POST("/analysis/create", h.CreateAnalysisHandler)
		api.GET("/jobs/:job_id/status", h.JobStatusHandler)

		analysis := api.Group("/analysis/:job_id")
		{
			analysis.GET("/overview", h.AnalysisOverviewHandler)
			analysis.GET("/offerings", h.AnalysisOfferingsHandler)
			analysis.GET("/market-signals", h.AnalysisMarketSignalsHandler)
			analysis.GET("/sentiment", h.AnalysisSentimentHandler)
			analysis.GET("/executive-summary", h.ExecutiveSummaryHandler)
			analysis.GET("/risks", h.RisksHandler)
			analysis.GET("/follow-ups", h.FollowUpsHandler)
			analysis.GET("/alerts", h.AlertsHandler)
			analysis.POST("/export/pdf", h.ExportPDFHandler)
		}
	}
}
