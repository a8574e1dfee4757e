package agentservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/PrudhviKosuri/Rival-Scan/internal/llm"
	"github.com/PrudhviKosuri/Rival-Scan/internal/logger"
	"github.com/PrudhviKosuri/Rival-Scan/internal/schema"
	"github.com/PrudhviKosuri/Rival-Scan/internal/storage"
	"github.com/PrudhviKosuri/Rival-Scan/pkg/types"
)

// Generator is the structured generation engine behind the pipeline.
type Generator interface {
	GenerateStructured(ctx context.Context, req llm.Request) llm.Result
}

// indexedFields are promoted into the managed storage inverted index when
// present in a stored payload.
var indexedFields = []string{"company_name", "company", "fiscal_year", "product_name"}

// storageTypeByAgent maps agent types to their managed storage class. Types
// outside the map (alerts and other synthesized outputs) store as output.
var storageTypeByAgent = map[string]types.StorageType{
	string(types.AgentTypeCompanyOverview): types.StorageTypeFact,
	string(types.AgentTypeRevenueTurnover): types.StorageTypeFact,
	string(types.AgentTypeProductLaunch):   types.StorageTypeFact,
	string(types.AgentTypePricingChange):   types.StorageTypeSignal,
	string(types.AgentTypeSentiment):       types.StorageTypeSignal,
}

// Service runs the generate, validate, store pipeline for one agent request.
type Service struct {
	gen     Generator
	catalog *schema.Catalog
	store   *storage.ManagedStore
}

// NewService wires the pipeline.
func NewService(gen Generator, catalog *schema.Catalog, store *storage.ManagedStore) *Service {
	return &Service{gen: gen, catalog: catalog, store: store}
}

// ProcessParams captures one pipeline invocation.
type ProcessParams struct {
	Entity            string
	AgentType         string
	Prompt            string
	Schema            map[string]interface{}
	SystemInstruction string
	UseSearch         bool
	SkipStore         bool
	SkipValidation    bool
	MinConfidence     float64
	ExpiresInHours    int
}

// ProcessResult is the pipeline outcome. On validation failure InvalidData
// preserves the raw generated payload for caller inspection.
type ProcessResult struct {
	Success         bool                   `json:"success"`
	Entity          string                 `json:"entity"`
	AgentType       string                 `json:"agent_type"`
	Data            map[string]interface{} `json:"data,omitempty"`
	Error           string                 `json:"error,omitempty"`
	InvalidData     map[string]interface{} `json:"invalid_data,omitempty"`
	ConfidenceScore float64                `json:"confidence_score"`
	StorageKey      string                 `json:"storage_key,omitempty"`
	Validated       bool                   `json:"validated"`
	Timestamp       time.Time              `json:"timestamp"`
}

// Process generates a structured payload, validates it against the agent
// type's schema, and persists it into managed storage.
func (s *Service) Process(ctx context.Context, params ProcessParams) ProcessResult {
	failure := func(errMsg string, invalid map[string]interface{}) ProcessResult {
		return ProcessResult{
			Entity:      params.Entity,
			AgentType:   params.AgentType,
			Error:       errMsg,
			InvalidData: invalid,
			Timestamp:   time.Now().UTC(),
		}
	}

	schemaDoc := params.Schema
	if schemaDoc == nil {
		schemaDoc = s.catalog.Raw(params.AgentType)
	}
	if schemaDoc == nil {
		return failure(fmt.Sprintf("no schema known for agent type %q", params.AgentType), nil)
	}

	gen := s.gen.GenerateStructured(ctx, llm.Request{
		Prompt:            params.Prompt,
		SystemInstruction: params.SystemInstruction,
		Schema:            schemaDoc,
		UseSearch:         params.UseSearch,
		Temperature:       0, // deterministic for structured outputs
	})
	if gen.Failed() {
		return failure(gen.Err, gen.InvalidData)
	}
	data := gen.Data

	validated := false
	if !params.SkipValidation {
		ok, msg, err := s.validate(data, params)
		if err != nil {
			return failure(fmt.Sprintf("Validation failed: %v", err), data)
		}
		if !ok {
			return failure(fmt.Sprintf("Validation failed: %s", msg), data)
		}
		validated = true
	}

	confidence := 0.0
	if raw, ok := data["confidence_score"]; ok {
		if v, ok := raw.(float64); ok {
			confidence = v
		}
	}

	result := ProcessResult{
		Success:         true,
		Entity:          params.Entity,
		AgentType:       params.AgentType,
		Data:            data,
		ConfidenceScore: confidence,
		Validated:       validated,
		Timestamp:       time.Now().UTC(),
	}

	if !params.SkipStore && confidence >= params.MinConfidence {
		storageType, ok := storageTypeByAgent[params.AgentType]
		if !ok {
			storageType = types.StorageTypeOutput
		}
		schemaVersion := "1.0"
		if v, ok := data["schema_version"].(string); ok && v != "" {
			schemaVersion = v
		}
		key, err := s.store.Store(ctx, types.StoreRequest{
			Entity:          params.Entity,
			AgentType:       params.AgentType,
			Data:            data,
			StorageType:     storageType,
			SchemaVersion:   schemaVersion,
			ConfidenceScore: confidence,
			ExpiresInHours:  params.ExpiresInHours,
			Tags:            []string{params.AgentType, strings.ToLower(params.Entity)},
			Source:          "gemini",
			IndexFields:     indexedFields,
		})
		if err != nil {
			// A storage failure does not invalidate the generated data.
			logger.Logger.Warn().Err(err).
				Str("entity", params.Entity).
				Str("agent_type", params.AgentType).
				Msg("Failed to store agent output")
		} else {
			result.StorageKey = key
		}
	}
	return result
}

// validate checks the generated payload against the catalog entry for the
// agent type, or against the caller-supplied schema document when the type
// is not in the catalog.
func (s *Service) validate(data map[string]interface{}, params ProcessParams) (bool, string, error) {
	if s.catalog.Raw(params.AgentType) != nil {
		return s.catalog.Validate(data, params.AgentType, true)
	}
	if params.Schema == nil {
		return false, "", fmt.Errorf("unknown schema %q", params.AgentType)
	}
	loader := gojsonschema.NewGoLoader(params.Schema)
	result, err := gojsonschema.Validate(loader, gojsonschema.NewGoLoader(data))
	if err != nil {
		return false, "", err
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

// Latest returns the newest stored output for (entity, agentType) across
// all storage tiers.
func (s *Service) Latest(ctx context.Context, entity, agentType string) (*types.ManagedItem, error) {
	return s.store.GetLatest(ctx, entity, agentType, "")
}
