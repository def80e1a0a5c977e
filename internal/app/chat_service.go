package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"zeus-insurance/internal/agent"
	"zeus-insurance/internal/ai"
	"zeus-insurance/internal/model"
	"zeus-insurance/internal/repository"
)

var ErrInvalidImage = errors.New("image_base64 is not valid base64")

type ModelResolver interface {
	Resolve(ctx context.Context, name string) (ai.Model, error)
}

type TurnPublisher interface {
	Publish(ctx context.Context, turn model.Turn) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID string) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID string, messages []model.Message) error
	BeginTurn(ctx context.Context, sessionID string) error
	EndTurn(ctx context.Context, sessionID string) error
	IsDirty(ctx context.Context, sessionID string) (bool, error)
}

// historyWindow bounds what GetHistory reads and caches per session.
const historyWindow = 200

type ChatConfig struct {
	DefaultModel string
	HistoryLimit int
	// PendingTurnWait bounds how long a turn waits for the previous one of
	// the same session to reach the database.
	PendingTurnWait time.Duration
}

const pendingTurnPoll = 50 * time.Millisecond

type ChatInput struct {
	SessionID   string
	Message     string
	ImageBase64 string
	Model       string
}

type ChatResult struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	ModelUsed string `json:"model_used"`
}

// ChatService runs one conversational turn: it loads recent history, lets
// the agent work with the tools, and appends the user/assistant pair.
type ChatService struct {
	sessionRepo  *repository.SessionRepository
	messageRepo  *repository.MessageRepository
	publisher    TurnPublisher
	historyCache HistoryCache
	models       ModelResolver
	agent        *agent.Agent
	cfg          ChatConfig
	now          func() time.Time
	logger       *slog.Logger
}

func NewChatService(
	sessionRepo *repository.SessionRepository,
	messageRepo *repository.MessageRepository,
	publisher TurnPublisher,
	historyCache HistoryCache,
	models ModelResolver,
	runner *agent.Agent,
	cfg ChatConfig,
) *ChatService {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	if cfg.PendingTurnWait <= 0 {
		cfg.PendingTurnWait = 3 * time.Second
	}
	return &ChatService{
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		publisher:    publisher,
		historyCache: historyCache,
		models:       models,
		agent:        runner,
		cfg:          cfg,
		now:          time.Now,
		logger:       slog.Default().With("component", "chat"),
	}
}

type preparedTurn struct {
	sessionID string
	model     ai.Model
	input     agent.Input
	userText  string
	image     string
}

func (s *ChatService) Chat(ctx context.Context, input ChatInput) (*ChatResult, error) {
	turn, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}
	res, err := s.agent.Run(ctx, turn.model, turn.input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if err := s.persistTurn(ctx, turn, res.Reply); err != nil {
		return nil, err
	}
	return &ChatResult{SessionID: turn.sessionID, Reply: res.Reply, ModelUsed: turn.model.Name()}, nil
}

// StreamChat is Chat with incremental events. The turn is stored only after
// the stream completed without error.
func (s *ChatService) StreamChat(ctx context.Context, input ChatInput, emit func(agent.Event) error) (*ChatResult, error) {
	turn, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}
	res, err := s.agent.Stream(ctx, turn.model, turn.input, emit)
	if err != nil {
		return nil, err
	}
	// the reply is complete; store it even if the client has gone
	if err := s.persistTurn(context.WithoutCancel(ctx), turn, res.Reply); err != nil {
		return nil, err
	}
	return &ChatResult{SessionID: turn.sessionID, Reply: res.Reply, ModelUsed: turn.model.Name()}, nil
}

func (s *ChatService) prepare(ctx context.Context, input ChatInput) (*preparedTurn, error) {
	text := strings.TrimSpace(input.Message)
	image := strings.TrimSpace(input.ImageBase64)
	if text == "" && image == "" {
		return nil, ErrMessageEmpty
	}

	userMsg := ai.Message{Role: ai.RoleUser, Content: text}
	if image != "" {
		img, err := decodeImage(image)
		if err != nil {
			return nil, err
		}
		userMsg.Images = []ai.Image{img}
		if text == "" {
			userMsg.Content = agent.DefaultImagePrompt
		}
	}

	modelName := strings.TrimSpace(input.Model)
	if modelName == "" {
		modelName = s.cfg.DefaultModel
	}
	llm, err := s.models.Resolve(ctx, modelName)
	if err != nil {
		if errors.Is(err, ai.ErrUnknownModel) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if _, err := s.sessionRepo.Ensure(ctx, sessionID); err != nil {
		return nil, err
	}
	history, err := s.buildHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &preparedTurn{
		sessionID: sessionID,
		model:     llm,
		input:     agent.Input{SessionID: sessionID, History: history, Message: userMsg},
		userText:  userMsg.Content,
		image:     image,
	}, nil
}

func (s *ChatService) buildHistory(ctx context.Context, sessionID string) ([]ai.Message, error) {
	if err := s.awaitPendingTurn(ctx, sessionID); err != nil {
		return nil, err
	}
	recent, err := s.messageRepo.ListRecentBySessionID(ctx, sessionID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	history := make([]ai.Message, 0, len(recent))
	for _, item := range recent {
		role := ai.RoleUser
		if item.Role == model.RoleAssistant {
			role = ai.RoleAssistant
		}
		history = append(history, ai.Message{Role: role, Content: item.Content})
	}
	return history, nil
}

// awaitPendingTurn blocks while a published turn of the session is still
// queued, so the next turn sees it in the database. After PendingTurnWait
// the turn proceeds without it.
func (s *ChatService) awaitPendingTurn(ctx context.Context, sessionID string) error {
	if !s.async() {
		return nil
	}
	deadline := time.Now().Add(s.cfg.PendingTurnWait)
	for {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err != nil || !dirty {
			return nil
		}
		if time.Now().After(deadline) {
			s.logger.Warn("previous turn still queued", "session_id", sessionID)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pendingTurnPoll):
		}
	}
}

// async reports whether turns go through the queue. The dirty marker is what
// orders queued turns against history reads, so the queue is used only with
// the cache.
func (s *ChatService) async() bool {
	return s.publisher != nil && s.historyCache != nil
}

// persistTurn appends the user message and the reply, in that order. Empty
// replies leave the session untouched.
func (s *ChatService) persistTurn(ctx context.Context, turn *preparedTurn, reply string) error {
	if strings.TrimSpace(reply) == "" {
		return nil
	}
	now := s.now()
	messages := []model.Message{
		{SessionID: turn.sessionID, Role: model.RoleUser, Content: turn.userText, ImageBase64: turn.image, CreatedAt: now},
		{SessionID: turn.sessionID, Role: model.RoleAssistant, Content: reply, CreatedAt: now},
	}

	if s.async() {
		err := s.publishTurn(ctx, turn.sessionID, messages)
		if err == nil {
			return nil
		}
		s.logger.Warn("queue turn failed, writing directly", "session_id", turn.sessionID, "err", err)
	}

	if err := s.messageRepo.CreateBatch(ctx, messages); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.EndTurn(ctx, turn.sessionID)
	}
	return nil
}

// publishTurn marks the session pending before queueing its turn. Without
// the marker the turn is written directly.
func (s *ChatService) publishTurn(ctx context.Context, sessionID string, messages []model.Message) error {
	if err := s.historyCache.BeginTurn(ctx, sessionID); err != nil {
		return err
	}
	return s.publisher.Publish(ctx, model.Turn{SessionID: sessionID, Messages: messages})
}

// GetHistory returns the stored messages of a session, oldest first.
func (s *ChatService) GetHistory(ctx context.Context, sessionID string, limit int) ([]model.Message, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidInput
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListRecentBySessionID(ctx, sessionID, historyWindow)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return trimMessages(messages, limit), nil
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}

func decodeImage(raw string) (ai.Image, error) {
	if strings.HasPrefix(raw, "data:") {
		if idx := strings.Index(raw, ","); idx >= 0 {
			raw = raw[idx+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(data) == 0 {
		return ai.Image{}, ErrInvalidImage
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return ai.Image{Data: data, MIMEType: mime}, nil
}
