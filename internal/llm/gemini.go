package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"google.golang.org/genai"

	"github.com/PrudhviKosuri/Rival-Scan/internal/logger"
)

// Client wraps the Gemini generation engine with JSON-mode output, schema
// validation, and a fixed retry budget.
type Client struct {
	genai      *genai.Client
	model      string
	maxRetries int
}

// NewClient builds a Gemini client. An empty API key is a configuration
// error; callers decide whether that is fatal (production) or deferred.
func NewClient(ctx context.Context, apiKey, model string, maxRetries int) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not configured")
	}
	if model == "" {
		model = "gemini-1.5-pro"
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{genai: gc, model: model, maxRetries: maxRetries}, nil
}

// Request describes one structured generation call.
type Request struct {
	Prompt            string
	SystemInstruction string
	Schema            map[string]interface{}
	UseSearch         bool
	Temperature       float32
}

// Result is the normalized outcome. Exactly one of Data or Err is
// meaningful; RawResponse and InvalidData survive for caller inspection.
type Result struct {
	Data        map[string]interface{}
	Err         string
	RawResponse string
	InvalidData map[string]interface{}
}

// Failed reports whether generation collapsed into an error result.
func (r Result) Failed() bool { return r.Err != "" }

// GenerateStructured runs the generate-parse-validate loop, retrying with
// identical parameters up to the retry budget.
func (c *Client) GenerateStructured(ctx context.Context, req Request) Result {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buildSystemInstruction(req), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr(req.Temperature),
	}
	if req.UseSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.Schema != nil {
		config.ResponseSchema = toGenaiSchema(req.Schema)
	}

	var validator *gojsonschema.Schema
	if req.Schema != nil {
		var err error
		validator, err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(req.Schema))
		if err != nil {
			return Result{Err: fmt.Sprintf("Generation failed: invalid schema: %v", err)}
		}
	}

	var last Result
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		resp, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), config)
		if err != nil {
			last = Result{Err: fmt.Sprintf("Generation failed: %v", err)}
			continue
		}

		raw := StripFences(resp.Text())
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			last = Result{
				Err:         fmt.Sprintf("JSON parsing failed: %v", err),
				RawResponse: resp.Text(),
			}
			continue
		}

		if validator != nil {
			vr, err := validator.Validate(gojsonschema.NewGoLoader(data))
			if err != nil {
				last = Result{Err: fmt.Sprintf("Schema validation failed: %v", err), InvalidData: data}
				continue
			}
			if !vr.Valid() {
				msgs := make([]string, 0, len(vr.Errors()))
				for _, ve := range vr.Errors() {
					msgs = append(msgs, ve.String())
				}
				last = Result{
					Err:         fmt.Sprintf("Schema validation failed: %s", strings.Join(msgs, "; ")),
					InvalidData: data,
				}
				logger.Logger.Debug().
					Int("attempt", attempt+1).
					Str("error", last.Err).
					Msg("Generated output failed schema validation, retrying")
				continue
			}
		}
		return Result{Data: data}
	}
	if last.Err == "" {
		last.Err = "Max retries exceeded"
	}
	return last
}

func buildSystemInstruction(req Request) string {
	var b strings.Builder
	if req.SystemInstruction != "" {
		b.WriteString(req.SystemInstruction)
	}
	if req.Schema != nil {
		schemaJSON, _ := json.MarshalIndent(req.Schema, "", "  ")
		b.WriteString("\n\nCRITICAL: You MUST return ONLY valid JSON that strictly matches this JSON Schema:\n")
		b.Write(schemaJSON)
		b.WriteString("\n\nRules:\n")
		b.WriteString("1. Return ONLY valid JSON, no markdown, no code blocks\n")
		b.WriteString("2. All required fields must be present\n")
		b.WriteString("3. No additional properties beyond the schema\n")
		b.WriteString("4. Enum values must match exactly\n")
		b.WriteString("5. Types must match exactly (string, number, integer, boolean, array, object)\n")
	}
	if b.Len() == 0 {
		b.WriteString("Return ONLY valid JSON. No markdown.")
	}
	return b.String()
}

// StripFences removes markdown code fences the model sometimes wraps JSON in.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[7:]
	} else if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var typeNames = map[string]genai.Type{
	"object":  genai.TypeObject,
	"array":   genai.TypeArray,
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
}

// toGenaiSchema converts a JSON Schema document into the engine's native
// schema type. Unknown constraints are dropped; the gojsonschema pass after
// generation still enforces the full document.
func toGenaiSchema(doc map[string]interface{}) *genai.Schema {
	out := &genai.Schema{}
	if t, ok := doc["type"].(string); ok {
		if mapped, known := typeNames[t]; known {
			out.Type = mapped
		}
	}
	if props, ok := doc["properties"].(map[string]interface{}); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]interface{}); ok {
				out.Properties[name] = toGenaiSchema(sub)
			}
		}
	}
	if req, ok := doc["required"].([]interface{}); ok {
		for _, r := range req {
			if name, ok := r.(string); ok {
				out.Required = append(out.Required, name)
			}
		}
	}
	if items, ok := doc["items"].(map[string]interface{}); ok {
		out.Items = toGenaiSchema(items)
	}
	if enum, ok := doc["enum"].([]interface{}); ok {
		for _, e := range enum {
			if v, ok := e.(string); ok {
				out.Enum = append(out.Enum, v)
			}
		}
	}
	if n, ok := doc["minItems"].(int); ok {
		out.MinItems = genai.Ptr(int64(n))
	}
	if n, ok := doc["maxItems"].(int); ok {
		out.MaxItems = genai.Ptr(int64(n))
	}
	return out
}
