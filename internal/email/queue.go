package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultQueueKey = "mail:outbox"

type redisPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

type redisPopper interface {
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// QueueSender encola mensajes en una lista de Redis; Worker los entrega.
type QueueSender struct {
	client redisPusher
	key    string
}

func NewQueueSender(client *redis.Client, key string) *QueueSender {
	if key == "" {
		key = defaultQueueKey
	}
	return &QueueSender{client: client, key: key}
}

func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Worker consume la cola y entrega cada mensaje con el Sender subyacente.
// Los fallos de entrega se registran y el mensaje se descarta.
type Worker struct {
	client  redisPopper
	key     string
	sender  Sender
	logger  *zap.Logger
	timeout time.Duration
}

func NewWorker(client *redis.Client, key string, sender Sender, logger *zap.Logger) *Worker {
	if key == "" {
		key = defaultQueueKey
	}
	return &Worker{
		client:  client,
		key:     key,
		sender:  sender,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Run procesa mensajes hasta que ctx se cancela.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.ProcessOne(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("mail queue poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOne espera un mensaje y lo entrega. Devuelve false si no habia mensajes.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	res, err := w.client.BRPop(ctx, w.timeout, w.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(res) != 2 {
		return false, fmt.Errorf("unexpected brpop reply of %d elements", len(res))
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		w.logger.Error("discarding undecodable mail", zap.Error(err))
		return true, nil
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		w.logger.Warn("queued mail delivery failed",
			zap.Error(err),
			zap.String("to", msg.To),
			zap.String("template", msg.Template),
		)
	}
	return true, nil
}
