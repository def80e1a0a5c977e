package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"zeus-insurance/internal/model"
	"zeus-insurance/internal/platform/rabbitmq"
)

// MaxPersistAttempts bounds how often one turn is retried before it is
// dropped to the log.
const MaxPersistAttempts = 5

var errMalformedTurn = errors.New("malformed turn")

type TurnStore interface {
	CreateBatch(ctx context.Context, messages []model.Message) error
}

// HistoryInvalidator is told when a session's turn has reached the database.
type HistoryInvalidator interface {
	EndTurn(ctx context.Context, sessionID string) error
}

// TurnPersistWorker drains the turn queue into the message table. Each
// delivery carries one user/assistant pair which is written in one batch.
// A turn the store rejects is published again with a bumped attempt count.
type TurnPersistWorker struct {
	conn      *amqp.Connection
	store     TurnStore
	cache     HistoryInvalidator
	queueName string
	logger    *slog.Logger

	requeue      func(ctx context.Context, body []byte, attempt int) error
	retryBackoff time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTurnPersistWorker(conn *amqp.Connection, store TurnStore, cache HistoryInvalidator, queueName string) *TurnPersistWorker {
	return &TurnPersistWorker{
		conn:         conn,
		store:        store,
		cache:        cache,
		queueName:    queueName,
		logger:       slog.Default().With("component", "turn-persist-worker"),
		retryBackoff: 500 * time.Millisecond,
	}
}

func (w *TurnPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	if w.requeue == nil {
		w.requeue = func(ctx context.Context, body []byte, attempt int) error {
			return rabbitmq.PublishTurn(ctx, ch, w.queueName, body, attempt)
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.process(workerCtx, d)
			}
		}
	}()

	return nil
}

// process stores one delivery and settles it. Store failures are retried
// up to MaxPersistAttempts; a turn that cannot be republished goes back
// to the broker unacknowledged.
func (w *TurnPersistWorker) process(ctx context.Context, d amqp.Delivery) {
	err := w.Handle(ctx, d.Body)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	attempt := rabbitmq.Attempt(d.Headers) + 1
	if errors.Is(err, errMalformedTurn) || attempt >= MaxPersistAttempts {
		w.logger.Error("dropping turn", "attempt", attempt, "body", string(d.Body), "err", err)
		_ = d.Nack(false, false)
		return
	}

	w.logger.Warn("persist turn failed, retrying", "attempt", attempt, "err", err)
	if w.retryBackoff > 0 {
		select {
		case <-ctx.Done():
			_ = d.Nack(false, true)
			return
		case <-time.After(time.Duration(attempt) * w.retryBackoff):
		}
	}
	if w.requeue == nil {
		_ = d.Nack(false, true)
		return
	}
	if rqErr := w.requeue(ctx, d.Body, attempt); rqErr != nil {
		w.logger.Error("republish turn failed", "err", rqErr)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// Handle stores one encoded turn.
func (w *TurnPersistWorker) Handle(ctx context.Context, body []byte) error {
	var turn model.Turn
	if err := json.Unmarshal(body, &turn); err != nil {
		return fmt.Errorf("%w: %v", errMalformedTurn, err)
	}
	if len(turn.Messages) == 0 {
		return nil
	}
	if err := w.store.CreateBatch(ctx, turn.Messages); err != nil {
		return err
	}
	if w.cache != nil {
		if err := w.cache.EndTurn(ctx, turn.SessionID); err != nil {
			w.logger.Warn("release cached history failed", "session_id", turn.SessionID, "err", err)
		}
	}
	return nil
}

func (w *TurnPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
