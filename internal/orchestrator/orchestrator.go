package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PrudhviKosuri/Rival-Scan/internal/agent"
	"github.com/PrudhviKosuri/Rival-Scan/internal/agentservice"
	"github.com/PrudhviKosuri/Rival-Scan/internal/background"
	"github.com/PrudhviKosuri/Rival-Scan/internal/contextbuilder"
	"github.com/PrudhviKosuri/Rival-Scan/internal/logger"
	"github.com/PrudhviKosuri/Rival-Scan/internal/router"
	"github.com/PrudhviKosuri/Rival-Scan/internal/storage"
	"github.com/PrudhviKosuri/Rival-Scan/pkg/types"
)

// Driver coordinates context building, routing, enrichment, and background
// promotion for one orchestration run.
type Driver struct {
	builder      *contextbuilder.Builder
	router       *router.Router
	client       *agent.Client
	contextStore *storage.ContextStore
	managed      *storage.ManagedStore
	agentSvc     *agentservice.Service
	runner       *background.Runner

	confidenceThreshold float64
}

// NewDriver wires the orchestration driver.
func NewDriver(
	builder *contextbuilder.Builder,
	rt *router.Router,
	client *agent.Client,
	contextStore *storage.ContextStore,
	managed *storage.ManagedStore,
	agentSvc *agentservice.Service,
	runner *background.Runner,
	confidenceThreshold float64,
) *Driver {
	return &Driver{
		builder:             builder,
		router:              rt,
		client:              client,
		contextStore:        contextStore,
		managed:             managed,
		agentSvc:            agentSvc,
		runner:              runner,
		confidenceThreshold: confidenceThreshold,
	}
}

// Request selects the orchestration mode: explicit agent types through the
// router, a legacy direct agent-name list, or the default four-type fan-out.
type Request struct {
	Entity         string   `json:"entity" binding:"required"`
	AgentTypes     []string `json:"agent_types"`
	Agents         []string `json:"agents"`
	UseRouter      bool     `json:"use_router"`
	IncludeContext bool     `json:"include_context"`
	StoreOutputs   bool     `json:"store_outputs"`
	ExtractFacts   bool     `json:"extract_facts"`
}

// DefaultRequest returns a request with the standard flag defaults applied.
func DefaultRequest(entity string) Request {
	return Request{
		Entity:         entity,
		UseRouter:      true,
		IncludeContext: true,
		StoreOutputs:   true,
		ExtractFacts:   true,
	}
}

// Orchestrate runs one full orchestration and returns the aggregate
// envelope. Per-agent failures land in the envelope's Errors map; only an
// unusable context read fails the call outright.
func (d *Driver) Orchestrate(ctx context.Context, req Request) (*types.OrchestrationEnvelope, error) {
	requestID := uuid.New().String()
	entity := req.Entity

	var snap *types.ContextSnapshot
	if req.IncludeContext {
		var err error
		snap, err = d.builder.BuildContext(ctx, entity, contextbuilder.Options{})
		if err != nil {
			return nil, fmt.Errorf("build context for %s: %w", entity, err)
		}
	}

	results := map[string]interface{}{}
	errors := map[string]string{}

	switch {
	case req.UseRouter && len(req.AgentTypes) > 0:
		agentTypes := make([]types.AgentType, 0, len(req.AgentTypes))
		for _, raw := range req.AgentTypes {
			at, err := types.ParseAgentType(raw)
			if err != nil {
				errors[raw] = fmt.Sprintf("Invalid agent type. Valid types: %v", types.AgentTypeStrings())
				continue
			}
			agentTypes = append(agentTypes, at)
		}
		if len(agentTypes) > 0 {
			d.fanOut(ctx, agentTypes, entity, snap, req, results, errors)
		}

	case len(req.Agents) > 0:
		d.invokeDirect(ctx, requestID, entity, snap, req, results, errors)

	default:
		out := d.router.RouteMultiple(ctx, nil, entity, contextMessage(entity, snap))
		for at, payload := range out.Results {
			results[string(at)] = payload
		}
		for at, errStr := range out.Errors {
			errors[string(at)] = errStr
		}
	}

	d.runner.Submit("cleanup_expired", func(taskCtx context.Context) error {
		if err := d.contextStore.CleanupExpired(taskCtx); err != nil {
			return err
		}
		_, err := d.managed.CleanupExpired(taskCtx)
		return err
	})

	return &types.OrchestrationEnvelope{
		OrchestrationID: requestID,
		Entity:          entity,
		Timestamp:       time.Now().UTC(),
		Context:         snap,
		Results:         results,
		// Reserved for cross-agent synthesis.
		AggregatedSummary: map[string]interface{}{},
		Errors:            errors,
		SuccessCount:      len(results),
		ErrorCount:        len(errors),
	}, nil
}

func (d *Driver) fanOut(ctx context.Context, agentTypes []types.AgentType, entity string, snap *types.ContextSnapshot, req Request, results map[string]interface{}, errors map[string]string) {
	out := d.router.RouteMultiple(ctx, agentTypes, entity, contextMessage(entity, snap))
	for at, payload := range out.Results {
		name := string(at)
		if req.IncludeContext {
			enriched, err := d.builder.EnrichWithContext(ctx, entity, payload, name, req.StoreOutputs)
			if err != nil {
				errors[name] = err.Error()
				continue
			}
			results[name] = enriched
		} else {
			results[name] = map[string]interface{}{
				"agent_type": name,
				"output":     payload,
				"timestamp":  time.Now().UTC(),
			}
		}
		if req.ExtractFacts {
			d.submitExtraction(entity, payload, name)
		}
	}
	for at, errStr := range out.Errors {
		errors[string(at)] = errStr
	}
}

func (d *Driver) invokeDirect(ctx context.Context, requestID, entity string, snap *types.ContextSnapshot, req Request, results map[string]interface{}, errors map[string]string) {
	message := contextMessage(entity, snap)
	for _, agentName := range req.Agents {
		result := d.client.Invoke(ctx, agentName, message, requestID)
		if result.Failed() {
			errors[agentName] = result.Err
			continue
		}
		if req.IncludeContext {
			enriched, err := d.builder.EnrichWithContext(ctx, entity, result.Payload, agentName, req.StoreOutputs)
			if err != nil {
				errors[agentName] = err.Error()
				continue
			}
			results[agentName] = enriched
		} else {
			results[agentName] = map[string]interface{}{
				"agent_name": agentName,
				"output":     result.Payload,
				"timestamp":  time.Now().UTC(),
			}
		}
		if req.ExtractFacts {
			d.submitExtraction(entity, result.Payload, agentName)
		}
	}
}

func (d *Driver) submitExtraction(entity string, payload map[string]interface{}, agentName string) {
	d.runner.Submit("extract_facts", func(taskCtx context.Context) error {
		return d.builder.ExtractAndStoreFacts(taskCtx, entity, payload, agentName, d.confidenceThreshold)
	})
}

func contextMessage(entity string, snap *types.ContextSnapshot) string {
	message := fmt.Sprintf("Analyze %s", entity)
	if snap != nil && len(snap.CachedFacts) > 0 {
		message += fmt.Sprintf(". Use context: %d cached facts available.", len(snap.CachedFacts))
	}
	return message
}

// analysisPrompts drive the per-type generation inside an analysis job.
var analysisPrompts = map[types.AgentType]string{
	types.AgentTypeCompanyOverview: "Analyze the company '%s' and provide comprehensive company information: official name, industry, headquarters, founding year, business model, key products, market position, geographic presence, and strategic focus areas.",
	types.AgentTypeRevenueTurnover: "Analyze '%s' financial performance: annual turnover with currency and unit, growth rate, revenue trend, profitability, key drivers, and fiscal year.",
	types.AgentTypePricingChange:   "Detect recent pricing changes for '%s' products: whether a change was detected, its direction, percentage, prices before and after, effective date, and market context.",
	types.AgentTypeProductLaunch:   "Track recent product launches and announcements by '%s': product name, category, launch type and status, launch date, key features, target segment, and strategic intent.",
	types.AgentTypeSentiment:       "Analyze current market sentiment for '%s': a summary, a sentiment score between -1 and 1, notable risks, and notable opportunities.",
}

// RunAnalysisJob drives one analysis job end to end. Per-agent failures land
// in the envelope's errors map; only a driver-level failure marks the job
// failed.
func (d *Driver) RunAnalysisJob(ctx context.Context, jobID, entity string) {
	logger.Logger.Info().
		Str("job_id", jobID).
		Str("entity", entity).
		Msg("Starting analysis job")

	if err := d.managed.UpdateJob(ctx, jobID, types.JobStatusAnalyzing, nil); err != nil {
		logger.Logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to mark job analyzing")
		return
	}

	envelope := map[string]interface{}{
		"orchestration_id":   jobID,
		"entity":             entity,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"results":            map[string]interface{}{},
		"aggregated_summary": map[string]interface{}{},
		"errors":             map[string]string{},
	}
	results := envelope["results"].(map[string]interface{})
	jobErrors := envelope["errors"].(map[string]string)

	for _, at := range types.AllAgentTypes {
		prompt := fmt.Sprintf(analysisPrompts[at], entity)
		out := d.agentSvc.Process(ctx, agentservice.ProcessParams{
			Entity:    entity,
			AgentType: string(at),
			Prompt:    prompt,
			UseSearch: true,
		})
		if !out.Success {
			jobErrors[string(at)] = out.Error
			logger.Logger.Warn().
				Str("job_id", jobID).
				Str("agent_type", string(at)).
				Str("error", out.Error).
				Msg("Agent generation failed")
			continue
		}
		results[string(at)] = map[string]interface{}{
			"agent_name":   string(at),
			"agent_output": out.Data,
			"timestamp":    out.Timestamp.Format(time.RFC3339),
		}
	}
	envelope["success_count"] = len(results)
	envelope["error_count"] = len(jobErrors)

	if err := d.managed.UpdateJob(ctx, jobID, types.JobStatusCompleted, envelope); err != nil {
		logger.Logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to store job result")
		if updateErr := d.managed.UpdateJob(ctx, jobID, types.JobStatusFailed,
			map[string]interface{}{"error": err.Error()}); updateErr != nil {
			logger.Logger.Error().Err(updateErr).Str("job_id", jobID).Msg("Failed to mark job failed")
		}
		return
	}
	logger.Logger.Info().
		Str("job_id", jobID).
		Int("success_count", len(results)).
		Int("error_count", len(jobErrors)).
		Msg("Analysis job completed")
}
