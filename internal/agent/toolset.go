package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"zeus-insurance/internal/ai"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Tool is a single callable capability exposed to the model. Run receives the
// raw JSON argument object and decodes it into its own argument struct.
type Tool interface {
	Spec() ai.ToolSpec
	Run(ctx context.Context, args json.RawMessage) (any, error)
}

// Failure is the payload fed back to the model when a tool cannot complete.
type Failure struct {
	Result  string `json:"result"`
	Success bool   `json:"success"`
}

// Toolset dispatches tool calls by name.
type Toolset struct {
	tools map[string]Tool
	specs []ai.ToolSpec
}

func NewToolset(tools ...Tool) *Toolset {
	ts := &Toolset{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		spec := t.Spec()
		if _, dup := ts.tools[spec.Name]; dup {
			panic(fmt.Sprintf("duplicate tool %q", spec.Name))
		}
		ts.tools[spec.Name] = t
		ts.specs = append(ts.specs, spec)
	}
	sort.Slice(ts.specs, func(i, j int) bool { return ts.specs[i].Name < ts.specs[j].Name })
	return ts
}

func (ts *Toolset) Specs() []ai.ToolSpec {
	return ts.specs
}

// Execute runs one tool call and always returns a JSON document for the
// model. Tool errors, unknown names and malformed arguments become Failure
// payloads; ok reports whether the tool succeeded.
func (ts *Toolset) Execute(ctx context.Context, call ai.ToolCall) (out string, ok bool) {
	t, found := ts.tools[call.Name]
	if !found {
		return failure(fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)), false
	}

	args := json.RawMessage(strings.TrimSpace(call.Arguments))
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if !json.Valid(args) || args[0] != '{' {
		return failure(fmt.Errorf("%w for %s: expected a JSON object, got %q", ErrInvalidArguments, call.Name, call.Arguments)), false
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool panicked", "tool", call.Name, "panic", r)
			out, ok = failure(fmt.Errorf("tool %s failed unexpectedly", call.Name)), false
		}
	}()

	result, err := t.Run(ctx, args)
	if err != nil {
		return failure(err), false
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return failure(fmt.Errorf("encode %s result failed: %w", call.Name, err)), false
	}
	return string(raw), true
}

func failure(err error) string {
	raw, _ := json.Marshal(Failure{Result: err.Error(), Success: false})
	return string(raw)
}

// DecodeArgs decodes a tool argument object into dst.
func DecodeArgs(args json.RawMessage, dst any) error {
	if err := json.Unmarshal(args, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
