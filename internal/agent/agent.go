package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"zeus-insurance/internal/ai"
)

const DefaultMaxRounds = 8

type Config struct {
	MaxRounds   int
	Temperature float64
	System      string
}

type EventKind string

const (
	EventToken     EventKind = "token"
	EventToolStart EventKind = "tool_start"
	EventToolEnd   EventKind = "tool_end"
)

// Event is one incremental output of a streamed run.
type Event struct {
	Kind EventKind
	Data string
}

type Input struct {
	SessionID string
	History   []ai.Message
	Message   ai.Message
}

type Result struct {
	Reply     string
	Rounds    int
	Completed bool
}

// Agent drives a bounded exchange between a model and a toolset until the
// model answers with text.
type Agent struct {
	tools  *Toolset
	cfg    Config
	logger *slog.Logger
}

func New(tools *Toolset, cfg Config) *Agent {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.System == "" {
		cfg.System = SystemPrompt
	}
	return &Agent{
		tools:  tools,
		cfg:    cfg,
		logger: slog.Default().With("component", "agent"),
	}
}

func (a *Agent) Run(ctx context.Context, model ai.Model, in Input) (*Result, error) {
	return a.run(ctx, model, in, nil)
}

// Stream behaves like Run but reports text fragments and tool boundaries
// through emit as they happen. An emit error aborts the run.
func (a *Agent) Stream(ctx context.Context, model ai.Model, in Input, emit func(Event) error) (*Result, error) {
	return a.run(ctx, model, in, emit)
}

func (a *Agent) run(ctx context.Context, model ai.Model, in Input, emit func(Event) error) (*Result, error) {
	ctx = WithSessionID(ctx, in.SessionID)

	messages := make([]ai.Message, 0, len(in.History)+1)
	messages = append(messages, in.History...)
	messages = append(messages, in.Message)

	req := &ai.Request{
		System:      a.cfg.System,
		Tools:       a.tools.Specs(),
		Temperature: a.cfg.Temperature,
	}

	for round := 1; round <= a.cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req.Messages = messages

		resp, err := a.generate(ctx, model, req, emit)
		if err != nil {
			return nil, fmt.Errorf("model %s round %d failed: %w", model.Name(), round, err)
		}
		if len(resp.ToolCalls) == 0 {
			return &Result{Reply: strings.TrimSpace(resp.Text), Rounds: round, Completed: true}, nil
		}

		messages = append(messages, ai.Message{
			Role:      ai.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := send(emit, Event{Kind: EventToolStart, Data: call.Name}); err != nil {
				return nil, err
			}
			// a started tool call runs to completion even if the caller goes away
			out, ok := a.tools.Execute(context.WithoutCancel(ctx), call)
			a.logger.Info("tool executed", "session_id", in.SessionID, "tool", call.Name, "round", round, "success", ok)
			messages = append(messages, ai.Message{
				Role:       ai.RoleTool,
				Content:    out,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
			if err := send(emit, Event{Kind: EventToolEnd, Data: call.Name}); err != nil {
				return nil, err
			}
		}
	}

	a.logger.Warn("round limit reached", "session_id", in.SessionID, "max_rounds", a.cfg.MaxRounds)
	if err := send(emit, Event{Kind: EventToken, Data: IncompleteReply}); err != nil {
		return nil, err
	}
	return &Result{Reply: IncompleteReply, Rounds: a.cfg.MaxRounds, Completed: false}, nil
}

func (a *Agent) generate(ctx context.Context, model ai.Model, req *ai.Request, emit func(Event) error) (*ai.Response, error) {
	if emit == nil {
		return model.Generate(ctx, req)
	}
	if sm, ok := model.(ai.StreamModel); ok {
		return sm.GenerateStream(ctx, req, func(text string) error {
			return emit(Event{Kind: EventToken, Data: text})
		})
	}
	resp, err := model.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Text != "" {
		if err := emit(Event{Kind: EventToken, Data: resp.Text}); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func send(emit func(Event) error, ev Event) error {
	if emit == nil {
		return nil
	}
	return emit(ev)
}
