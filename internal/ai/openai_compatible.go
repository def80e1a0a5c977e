package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

type ChatConfig struct {
	BaseURL string
	APIKey  string
}

type OpenAICompatibleClient struct {
	httpClient *http.Client
	cfg        ChatConfig
}

func NewOpenAICompatibleClient(cfg ChatConfig) *OpenAICompatibleClient {
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: 90 * time.Second},
		cfg:        cfg,
	}
}

// Factory exposes the client as a registry backend.
func (c *OpenAICompatibleClient) Factory() Factory {
	return func(_ context.Context, modelName string) (Model, error) {
		if c.cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai base url is empty")
		}
		return &OpenAIModel{client: c, name: modelName}, nil
	}
}

type OpenAIModel struct {
	client *OpenAICompatibleClient
	name   string
}

func (m *OpenAIModel) Name() string { return m.name }

func (m *OpenAIModel) Generate(ctx context.Context, req *Request) (*Response, error) {
	return m.client.complete(ctx, m.name, req)
}

func (m *OpenAIModel) GenerateStream(ctx context.Context, req *Request, onText func(string) error) (*Response, error) {
	return m.client.streamComplete(ctx, m.name, req, onText)
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type chatTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters,omitempty"`
	} `json:"function"`
}

func (c *OpenAICompatibleClient) complete(ctx context.Context, model string, in *Request) (*Response, error) {
	resp, err := c.post(ctx, model, in, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read llm response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content   string         `json:"content"`
				ToolCalls []chatToolCall `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("empty llm choices")
	}
	msg := parsed.Choices[0].Message
	out := &Response{Text: msg.Content}
	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out, nil
}

func (c *OpenAICompatibleClient) streamComplete(
	ctx context.Context,
	model string,
	in *Request,
	onChunk func(chunk string) error,
) (*Response, error) {
	resp, err := c.post(ctx, model, in, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llm stream status %d: %s", resp.StatusCode, string(raw))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var full strings.Builder
	// tool call deltas arrive keyed by index and must be concatenated
	calls := map[int]*ToolCall{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content   string `json:"content"`
					ToolCalls []struct {
						Index    int    `json:"index"`
						ID       string `json:"id"`
						Function struct {
							Name      string `json:"name"`
							Arguments string `json:"arguments"`
						} `json:"function"`
					} `json:"tool_calls"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		for _, tc := range delta.ToolCalls {
			call, ok := calls[tc.Index]
			if !ok {
				call = &ToolCall{}
				calls[tc.Index] = call
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			call.Name += tc.Function.Name
			call.Arguments += tc.Function.Arguments
		}
		if delta.Content == "" {
			continue
		}

		full.WriteString(delta.Content)
		if onChunk != nil {
			if err := onChunk(delta.Content); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan llm stream failed: %w", err)
	}

	out := &Response{Text: full.String()}
	indexes := make([]int, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		out.ToolCalls = append(out.ToolCalls, *calls[idx])
	}
	return out, nil
}

func (c *OpenAICompatibleClient) post(ctx context.Context, model string, in *Request, stream bool) (*http.Response, error) {
	reqBody := map[string]interface{}{
		"model":       model,
		"messages":    toChatMessages(in),
		"stream":      stream,
		"temperature": in.Temperature,
	}
	if len(in.Tools) > 0 {
		tools, err := toChatTools(in.Tools)
		if err != nil {
			return nil, err
		}
		reqBody["tools"] = tools
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal llm request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build llm request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	return resp, nil
}

func toChatMessages(in *Request) []chatMessage {
	out := make([]chatMessage, 0, len(in.Messages)+1)
	if strings.TrimSpace(in.System) != "" {
		out = append(out, chatMessage{Role: "system", Content: in.System})
	}
	for _, msg := range in.Messages {
		switch msg.Role {
		case RoleTool:
			out = append(out, chatMessage{Role: "tool", Content: msg.Content, ToolCallID: msg.ToolCallID})
		case RoleAssistant:
			cm := chatMessage{Role: "assistant", Content: msg.Content}
			for _, call := range msg.ToolCalls {
				var tc chatToolCall
				tc.ID = call.ID
				tc.Type = "function"
				tc.Function.Name = call.Name
				tc.Function.Arguments = call.Arguments
				cm.ToolCalls = append(cm.ToolCalls, tc)
			}
			out = append(out, cm)
		default:
			if len(msg.Images) == 0 {
				out = append(out, chatMessage{Role: "user", Content: msg.Content})
				continue
			}
			parts := []chatContentPart{{Type: "text", Text: msg.Content}}
			for _, img := range msg.Images {
				part := chatContentPart{Type: "image_url"}
				part.ImageURL = &struct {
					URL string `json:"url"`
				}{URL: "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)}
				parts = append(parts, part)
			}
			out = append(out, chatMessage{Role: "user", Content: parts})
		}
	}
	return out
}

func toChatTools(specs []ToolSpec) ([]chatTool, error) {
	tools := make([]chatTool, 0, len(specs))
	for _, spec := range specs {
		var tool chatTool
		tool.Type = "function"
		tool.Function.Name = spec.Name
		tool.Function.Description = spec.Description
		if spec.Parameters != nil {
			raw, err := json.Marshal(jsonSchema(spec.Parameters))
			if err != nil {
				return nil, fmt.Errorf("marshal tool %s schema failed: %w", spec.Name, err)
			}
			tool.Function.Parameters = raw
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

func jsonSchema(s *Schema) map[string]any {
	out := map[string]any{"type": s.Type}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = jsonSchema(prop)
		}
		out["properties"] = props
	}
	return out
}
