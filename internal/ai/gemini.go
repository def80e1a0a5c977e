package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

type GeminiConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint, mostly for tests and proxies.
	BaseURL string
}

// GeminiModel is a Model backed by the Gemini generateContent API.
type GeminiModel struct {
	models *genai.Models
	name   string
}

// NewGeminiFactory returns a Factory sharing one genai client across all
// Gemini model names.
func NewGeminiFactory(cfg GeminiConfig) Factory {
	var (
		mu     sync.Mutex
		client *genai.Client
	)
	return func(ctx context.Context, modelName string) (Model, error) {
		mu.Lock()
		defer mu.Unlock()
		if client == nil {
			if cfg.APIKey == "" {
				return nil, fmt.Errorf("gemini api key is empty")
			}
			clientCfg := &genai.ClientConfig{
				APIKey:  cfg.APIKey,
				Backend: genai.BackendGeminiAPI,
			}
			if cfg.BaseURL != "" {
				clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
			}
			built, err := genai.NewClient(ctx, clientCfg)
			if err != nil {
				return nil, fmt.Errorf("build gemini client failed: %w", err)
			}
			client = built
		}
		return &GeminiModel{models: client.Models, name: modelName}, nil
	}
}

func (m *GeminiModel) Name() string { return m.name }

func (m *GeminiModel) Generate(ctx context.Context, req *Request) (*Response, error) {
	contents, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, err
	}
	resp, err := m.models.GenerateContent(ctx, m.name, contents, toGeminiConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini generate failed: %w", err)
	}
	out := &Response{}
	collectGeminiParts(resp, out, nil)
	return out, nil
}

func (m *GeminiModel) GenerateStream(ctx context.Context, req *Request, onText func(string) error) (*Response, error) {
	contents, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, err
	}
	out := &Response{}
	for chunk, err := range m.models.GenerateContentStream(ctx, m.name, contents, toGeminiConfig(req)) {
		if err != nil {
			return nil, fmt.Errorf("gemini stream failed: %w", err)
		}
		if err := collectGeminiParts(chunk, out, onText); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// collectGeminiParts appends visible text and function calls from the first
// candidate. Thought parts are skipped.
func collectGeminiParts(resp *genai.GenerateContentResponse, out *Response, onText func(string) error) error {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, fromGeminiCall(part))
			continue
		}
		if part.Thought || part.Text == "" {
			continue
		}
		out.Text += part.Text
		if onText != nil {
			if err := onText(part.Text); err != nil {
				return err
			}
		}
	}
	return nil
}

func fromGeminiCall(part *genai.Part) ToolCall {
	fc := part.FunctionCall
	args := "{}"
	if len(fc.Args) > 0 {
		if raw, err := json.Marshal(fc.Args); err == nil {
			args = string(raw)
		}
	}
	id := fc.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	return ToolCall{ID: id, Name: fc.Name, Arguments: args, Signature: part.ThoughtSignature}
}

func toGeminiConfig(req *Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, spec := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  toGeminiSchema(spec.Parameters),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

func toGeminiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(s.Type)),
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGeminiSchema(prop)
		}
	}
	return out
}

// toGeminiContents maps the conversation onto user/model turns. Consecutive
// tool results are folded into a single user turn of function responses.
func toGeminiContents(messages []Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			parts := make([]*genai.Part, 0, 1+len(msg.Images))
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, img := range msg.Images {
				parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
		case RoleAssistant:
			parts := make([]*genai.Part, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				args := map[string]any{}
				if strings.TrimSpace(call.Arguments) != "" {
					if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
						args = map[string]any{}
					}
				}
				parts = append(parts, &genai.Part{
					FunctionCall:     &genai.FunctionCall{ID: call.ID, Name: call.Name, Args: args},
					ThoughtSignature: call.Signature,
				})
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
		case RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolCallID,
				Name:     msg.ToolName,
				Response: toolResponseMap(msg.Content),
			}}
			if last := len(contents) - 1; last >= 0 && isFunctionResponseTurn(contents[last]) {
				contents[last].Parts = append(contents[last].Parts, part)
				continue
			}
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	return contents, nil
}

func isFunctionResponseTurn(c *genai.Content) bool {
	if c == nil || c.Role != genai.RoleUser || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}

func toolResponseMap(content string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]any{"output": content}
}
