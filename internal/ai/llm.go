package ai

import (
	"context"
	"errors"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

const (
	TypeObject  = "object"
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
)

var ErrUnknownModel = errors.New("unknown llm model")

type Image struct {
	Data     []byte
	MIMEType string
}

// Message is one entry of a model conversation. Tool results use RoleTool
// with ToolCallID and ToolName set.
type Message struct {
	Role       string
	Content    string
	Images     []Image
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// ToolCall is a tool invocation requested by the model. Arguments holds the
// raw JSON object exactly as the backend produced it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	// Signature is an opaque backend token that must be echoed back.
	Signature []byte
}

type Schema struct {
	Type        string
	Description string
	Properties  map[string]*Schema
	Required    []string
	Enum        []string
}

type ToolSpec struct {
	Name        string
	Description string
	Parameters  *Schema
}

type Request struct {
	System      string
	Messages    []Message
	Tools       []ToolSpec
	Temperature float64
}

type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Model turns a message list plus a tool catalog into either final text or
// tool calls.
type Model interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// StreamModel additionally reports text fragments as they arrive. The
// returned Response carries the full text and any tool calls.
type StreamModel interface {
	Model
	GenerateStream(ctx context.Context, req *Request, onText func(string) error) (*Response, error)
}
