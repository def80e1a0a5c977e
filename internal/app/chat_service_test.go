package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"zeus-insurance/internal/agent"
	"zeus-insurance/internal/ai"
	"zeus-insurance/internal/cache"
	"zeus-insurance/internal/model"
	"zeus-insurance/internal/repository"
)

type recordingModel struct {
	name     string
	reply    string
	err      error
	requests []*ai.Request
}

func (m *recordingModel) Name() string { return m.name }

func (m *recordingModel) Generate(_ context.Context, req *ai.Request) (*ai.Response, error) {
	snapshot := *req
	snapshot.Messages = append([]ai.Message(nil), req.Messages...)
	m.requests = append(m.requests, &snapshot)
	if m.err != nil {
		return nil, m.err
	}
	return &ai.Response{Text: m.reply}, nil
}

type staticResolver struct {
	models map[string]ai.Model
}

func (r staticResolver) Resolve(_ context.Context, name string) (ai.Model, error) {
	if m, ok := r.models[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", ai.ErrUnknownModel, name)
}

type stubPublisher struct {
	err   error
	turns []model.Turn
}

func (p *stubPublisher) Publish(_ context.Context, turn model.Turn) error {
	if p.err != nil {
		return p.err
	}
	p.turns = append(p.turns, turn)
	return nil
}

type chatFixture struct {
	db       *gorm.DB
	model    *recordingModel
	messages *repository.MessageRepository
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db := newTestDB(t)
	return &chatFixture{
		db:       db,
		model:    &recordingModel{name: "gemini-2.5-flash", reply: "Which model year is your Civic?"},
		messages: repository.NewMessageRepository(db),
	}
}

func (f *chatFixture) service(publisher TurnPublisher, historyCache HistoryCache) *ChatService {
	svc := NewChatService(
		repository.NewSessionRepository(f.db),
		f.messages,
		publisher,
		historyCache,
		staticResolver{models: map[string]ai.Model{f.model.name: f.model}},
		agent.New(agent.NewToolset(), agent.Config{}),
		ChatConfig{DefaultModel: f.model.name, HistoryLimit: 4},
	)
	svc.now = newClock().Now
	return svc
}

func (f *chatFixture) stored(t *testing.T, sessionID string) []model.Message {
	t.Helper()
	msgs, err := f.messages.ListRecentBySessionID(context.Background(), sessionID, 100)
	require.NoError(t, err)
	return msgs
}

func TestChatPersistsTurn(t *testing.T) {
	f := newChatFixture(t)
	svc := f.service(nil, nil)

	res, err := svc.Chat(context.Background(), ChatInput{Message: "  I want to insure my Honda Civic  "})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "Which model year is your Civic?", res.Reply)
	assert.Equal(t, "gemini-2.5-flash", res.ModelUsed)

	msgs := f.stored(t, res.SessionID)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "I want to insure my Honda Civic", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, res.Reply, msgs[1].Content)
}

func TestChatSendsRecentHistory(t *testing.T) {
	f := newChatFixture(t)
	svc := f.service(nil, nil)
	ctx := context.Background()

	var sessionID string
	for i := 0; i < 4; i++ {
		res, err := svc.Chat(ctx, ChatInput{SessionID: sessionID, Message: fmt.Sprintf("message %d", i)})
		require.NoError(t, err)
		sessionID = res.SessionID
	}

	last := f.model.requests[len(f.model.requests)-1]
	require.Len(t, last.Messages, 5)
	assert.Equal(t, "message 1", last.Messages[0].Content)
	assert.Equal(t, ai.RoleAssistant, last.Messages[1].Role)
	assert.Equal(t, "message 3", last.Messages[4].Content)
	assert.Equal(t, agent.SystemPrompt, last.System)
	assert.Len(t, f.stored(t, sessionID), 8)
}

func TestChatSkipsEmptyReply(t *testing.T) {
	f := newChatFixture(t)
	f.model.reply = "   "
	svc := f.service(nil, nil)

	res, err := svc.Chat(context.Background(), ChatInput{SessionID: "s-empty", Message: "hello"})
	require.NoError(t, err)
	assert.Empty(t, res.Reply)
	assert.Empty(t, f.stored(t, "s-empty"))
}

func TestChatRejectsBadInput(t *testing.T) {
	f := newChatFixture(t)
	svc := f.service(nil, nil)
	ctx := context.Background()

	_, err := svc.Chat(ctx, ChatInput{Message: "  "})
	assert.ErrorIs(t, err, ErrMessageEmpty)

	_, err = svc.Chat(ctx, ChatInput{Message: "hi", Model: "gpt-9"})
	assert.ErrorIs(t, err, ai.ErrUnknownModel)

	_, err = svc.Chat(ctx, ChatInput{ImageBase64: "%%%not-base64"})
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Empty(t, f.model.requests)
}

func TestChatWrapsModelFailure(t *testing.T) {
	f := newChatFixture(t)
	f.model.err = errors.New("quota exceeded")
	svc := f.service(nil, nil)

	_, err := svc.Chat(context.Background(), ChatInput{SessionID: "s-fail", Message: "hello"})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Empty(t, f.stored(t, "s-fail"))
}

func TestChatWithImageOnly(t *testing.T) {
	f := newChatFixture(t)
	svc := f.service(nil, nil)
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	res, err := svc.Chat(context.Background(), ChatInput{ImageBase64: encoded})
	require.NoError(t, err)

	sent := f.model.requests[0].Messages[0]
	assert.Equal(t, agent.DefaultImagePrompt, sent.Content)
	require.Len(t, sent.Images, 1)
	assert.Equal(t, "image/png", sent.Images[0].MIMEType)
	assert.Equal(t, png, sent.Images[0].Data)

	msgs := f.stored(t, res.SessionID)
	require.Len(t, msgs, 2)
	assert.Equal(t, encoded, msgs[0].ImageBase64)
}

func TestStreamChatEmitsAndPersists(t *testing.T) {
	f := newChatFixture(t)
	svc := f.service(nil, nil)

	var events []agent.Event
	res, err := svc.StreamChat(context.Background(), ChatInput{SessionID: "s-stream", Message: "hello"}, func(ev agent.Event) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, agent.EventToken, events[0].Kind)
	assert.Equal(t, res.Reply, events[0].Data)
	assert.Len(t, f.stored(t, "s-stream"), 2)
}

func TestStreamChatAbortedByClient(t *testing.T) {
	f := newChatFixture(t)
	svc := f.service(nil, nil)

	_, err := svc.StreamChat(context.Background(), ChatInput{SessionID: "s-gone", Message: "hello"}, func(agent.Event) error {
		return errors.New("client gone")
	})
	require.Error(t, err)
	assert.Empty(t, f.stored(t, "s-gone"))
}

func newHistoryCache(t *testing.T) *cache.HistoryCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewHistoryCache(client, time.Minute, time.Minute)
}

func TestChatPublishesTurn(t *testing.T) {
	f := newChatFixture(t)
	pub := &stubPublisher{}
	historyCache := newHistoryCache(t)
	svc := f.service(pub, historyCache)

	res, err := svc.Chat(context.Background(), ChatInput{SessionID: "s-pub", Message: "hello"})
	require.NoError(t, err)
	require.Len(t, pub.turns, 1)
	assert.Equal(t, res.SessionID, pub.turns[0].SessionID)
	require.Len(t, pub.turns[0].Messages, 2)
	assert.Equal(t, model.RoleUser, pub.turns[0].Messages[0].Role)
	assert.Empty(t, f.stored(t, "s-pub"))

	dirty, err := historyCache.IsDirty(context.Background(), "s-pub")
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestChatWritesDirectlyWithoutCache(t *testing.T) {
	f := newChatFixture(t)
	pub := &stubPublisher{}
	svc := f.service(pub, nil)

	_, err := svc.Chat(context.Background(), ChatInput{SessionID: "s-nocache", Message: "hello"})
	require.NoError(t, err)
	assert.Empty(t, pub.turns)
	assert.Len(t, f.stored(t, "s-nocache"), 2)
}

func TestChatFallsBackWhenPublishFails(t *testing.T) {
	f := newChatFixture(t)
	pub := &stubPublisher{err: errors.New("channel closed")}
	historyCache := newHistoryCache(t)
	svc := f.service(pub, historyCache)

	_, err := svc.Chat(context.Background(), ChatInput{SessionID: "s-fallback", Message: "hello"})
	require.NoError(t, err)
	assert.Len(t, f.stored(t, "s-fallback"), 2)

	dirty, err := historyCache.IsDirty(context.Background(), "s-fallback")
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestChatWaitsForQueuedTurn(t *testing.T) {
	f := newChatFixture(t)
	pub := &stubPublisher{}
	historyCache := newHistoryCache(t)
	svc := f.service(pub, historyCache)
	svc.cfg.PendingTurnWait = 5 * time.Second
	ctx := context.Background()

	_, err := svc.Chat(ctx, ChatInput{SessionID: "s-queued", Message: "first"})
	require.NoError(t, err)
	require.Len(t, pub.turns, 1)
	queued := pub.turns[0]

	drained := make(chan error, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		if err := f.messages.CreateBatch(ctx, queued.Messages); err != nil {
			drained <- err
			return
		}
		drained <- historyCache.EndTurn(ctx, queued.SessionID)
	}()

	_, err = svc.Chat(ctx, ChatInput{SessionID: "s-queued", Message: "second"})
	require.NoError(t, err)
	require.NoError(t, <-drained)

	require.Len(t, f.model.requests, 2)
	msgs := f.model.requests[1].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, ai.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "second", msgs[2].Content)
}

func TestChatStopsWaitingForStuckTurn(t *testing.T) {
	f := newChatFixture(t)
	pub := &stubPublisher{}
	svc := f.service(pub, newHistoryCache(t))
	svc.cfg.PendingTurnWait = 100 * time.Millisecond
	ctx := context.Background()

	_, err := svc.Chat(ctx, ChatInput{SessionID: "s-stuck", Message: "first"})
	require.NoError(t, err)
	_, err = svc.Chat(ctx, ChatInput{SessionID: "s-stuck", Message: "second"})
	require.NoError(t, err)

	require.Len(t, f.model.requests, 2)
	require.Len(t, f.model.requests[1].Messages, 1)
	assert.Len(t, pub.turns, 2)
}

func TestGetHistoryUsesCache(t *testing.T) {
	f := newChatFixture(t)
	historyCache := newHistoryCache(t)
	svc := f.service(nil, historyCache)
	ctx := context.Background()

	_, err := svc.Chat(ctx, ChatInput{SessionID: "s-cache", Message: "first"})
	require.NoError(t, err)

	history, err := svc.GetHistory(ctx, "s-cache", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)

	cached, hit, err := historyCache.GetHistory(ctx, "s-cache")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Len(t, cached, 2)

	_, err = svc.Chat(ctx, ChatInput{SessionID: "s-cache", Message: "second"})
	require.NoError(t, err)
	_, hit, err = historyCache.GetHistory(ctx, "s-cache")
	require.NoError(t, err)
	assert.False(t, hit)

	history, err = svc.GetHistory(ctx, "s-cache", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.RoleAssistant, history[0].Role)

	_, err = svc.GetHistory(ctx, " ", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDecodeImageDefaultsToJPEG(t *testing.T) {
	img, err := decodeImage(base64.StdEncoding.EncodeToString([]byte("not really an image")))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)

	_, err = decodeImage("")
	assert.ErrorIs(t, err, ErrInvalidImage)
}
